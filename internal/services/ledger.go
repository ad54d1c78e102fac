package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mentorium/backend/internal/clients/redisstore"
	"github.com/mentorium/backend/internal/platform/apierr"
	"github.com/mentorium/backend/internal/platform/logger"
	"github.com/mentorium/backend/internal/types"
)

const (
	resourceKeyPrefix = "resource:"
	hashKeyPrefix     = "resourcehash:"
)

// hashEntry is the content-hash index record: which resource owns the hash
// and where the stored copy lives.
type hashEntry struct {
	ResourceID  string `json:"resource_id"`
	StoragePath string `json:"storage_path"`
}

// ResourceLedger enforces at-most-once indexing per distinct content and
// tracks which vector ids belong to which resource.
//
// Resource states: absent -> registered(unembedded) -> embedded -> absent.
// Register gates the transition into registered; AttachVectorIDs completes
// the embedded transition; Remove is valid from either live state.
type ResourceLedger interface {
	// Register claims the resource's content hash. It returns true when this
	// resource now owns the hash and the caller should chunk+embed; false
	// when identical content is already indexed and embedding must be
	// skipped. A resource record is written only when the id is not already
	// tracked: a replayed ingest of a known resource leaves its record, and
	// any attached vector ids, untouched.
	Register(ctx context.Context, res *types.Resource) (bool, error)
	Get(ctx context.Context, resourceID string) (*types.Resource, bool, error)
	// AttachVectorIDs records a complete embedding pass. Never call it with
	// a partial id list; a failed pass leaves the record unembedded.
	AttachVectorIDs(ctx context.Context, resourceID string, ids []string) error
	// Remove deletes the hash entry (when owned), the recorded vectors via
	// deleteVectors, and the resource record, returning the removed record.
	// A not_found error is the "nothing to remove" outcome.
	Remove(ctx context.Context, resourceID string, deleteVectors func(ctx context.Context, ids []string) error) (*types.Resource, error)
}

type resourceLedger struct {
	log   *logger.Logger
	store redisstore.Store
}

func NewResourceLedger(log *logger.Logger, store redisstore.Store) (ResourceLedger, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if store == nil {
		return nil, fmt.Errorf("store required")
	}
	return &resourceLedger{
		log:   log.With("service", "ResourceLedger"),
		store: store,
	}, nil
}

func (l *resourceLedger) Register(ctx context.Context, res *types.Resource) (bool, error) {
	if res == nil || res.ResourceID == "" {
		return false, apierr.Newf(http.StatusBadRequest, apierr.CodeInvalidArgument, "resource id required")
	}
	if res.FileHash == "" {
		return false, apierr.Newf(http.StatusBadRequest, apierr.CodeInvalidArgument, "resource %s has no content hash", res.ResourceID)
	}

	entry, err := json.Marshal(hashEntry{ResourceID: res.ResourceID, StoragePath: res.StoragePath})
	if err != nil {
		return false, err
	}
	record := *res
	record.VectorIDs = nil
	raw, err := json.Marshal(&record)
	if err != nil {
		return false, err
	}

	// SETNX: exactly one concurrent ingest of identical bytes wins the hash.
	inserted, err := l.store.SetIfAbsent(ctx, hashKeyPrefix+res.FileHash, string(entry))
	if err != nil {
		return false, fmt.Errorf("hash index insert: %w", err)
	}

	if !inserted {
		// Replayed ingest of a tracked resource. Writing here would reset
		// VectorIDs and regress an embedded resource to unembedded, so the
		// existing record stays as is.
		if _, found, err := l.Get(ctx, res.ResourceID); err != nil {
			return false, err
		} else if found {
			l.log.Info("Content hash already indexed, skipping embedding", "resource_id", res.ResourceID, "file_hash", res.FileHash)
			return false, nil
		}
	}

	if err := l.store.Set(ctx, resourceKeyPrefix+res.ResourceID, string(raw)); err != nil {
		// Release a freshly claimed hash so it never stays ownerless: the
		// only intended recovery state is registered(unembedded), and that
		// requires the record to exist.
		if inserted {
			_ = l.store.Del(ctx, hashKeyPrefix+res.FileHash)
		}
		return false, fmt.Errorf("resource record insert: %w", err)
	}

	if !inserted {
		l.log.Info("Content hash already indexed, skipping embedding", "resource_id", res.ResourceID, "file_hash", res.FileHash)
	}
	return inserted, nil
}

func (l *resourceLedger) Get(ctx context.Context, resourceID string) (*types.Resource, bool, error) {
	raw, found, err := l.store.Get(ctx, resourceKeyPrefix+resourceID)
	if err != nil || !found {
		return nil, false, err
	}
	var res types.Resource
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, false, fmt.Errorf("resource record decode: %w", err)
	}
	return &res, true, nil
}

func (l *resourceLedger) AttachVectorIDs(ctx context.Context, resourceID string, ids []string) error {
	res, found, err := l.Get(ctx, resourceID)
	if err != nil {
		return err
	}
	if !found {
		return apierr.Newf(http.StatusNotFound, apierr.CodeNotFound, "resource %s not registered", resourceID)
	}

	res.VectorIDs = ids
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return l.store.Set(ctx, resourceKeyPrefix+resourceID, string(raw))
}

func (l *resourceLedger) Remove(ctx context.Context, resourceID string, deleteVectors func(ctx context.Context, ids []string) error) (*types.Resource, error) {
	res, found, err := l.Get(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apierr.Newf(http.StatusNotFound, apierr.CodeNotFound, "resource %s does not exist", resourceID)
	}

	// Only the hash owner releases the hash entry; a duplicate that never
	// embedded must not orphan the owner's index entry.
	if raw, ok, err := l.store.Get(ctx, hashKeyPrefix+res.FileHash); err != nil {
		return nil, err
	} else if ok {
		var entry hashEntry
		if err := json.Unmarshal([]byte(raw), &entry); err == nil && entry.ResourceID == res.ResourceID {
			if err := l.store.Del(ctx, hashKeyPrefix+res.FileHash); err != nil {
				return nil, fmt.Errorf("hash index delete: %w", err)
			}
		}
	}

	// Tolerates an empty id list: registered-but-unembedded resources are
	// removable too.
	if deleteVectors != nil {
		if err := deleteVectors(ctx, res.VectorIDs); err != nil {
			return nil, fmt.Errorf("vector delete for %s: %w", resourceID, err)
		}
	}

	if err := l.store.Del(ctx, resourceKeyPrefix+resourceID); err != nil {
		return nil, fmt.Errorf("resource record delete: %w", err)
	}

	l.log.Info("Resource removed from ledger", "resource_id", resourceID, "vectors_deleted", len(res.VectorIDs))
	return res, nil
}

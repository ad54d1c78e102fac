package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mentorium/backend/internal/clients/redisstore"
	"github.com/mentorium/backend/internal/platform/logger"
)

const (
	libraryKeyPrefix        = "library:"
	libraryReverseKeyPrefix = "library:resource:"
)

// LibraryService tracks which resources belong to which syllabus. Membership
// is a set per syllabus plus a reverse index per resource so removal does not
// have to scan every syllabus set.
type LibraryService interface {
	Add(ctx context.Context, syllabusEventID int64, resourceID string) error
	Members(ctx context.Context, syllabusEventID int64) ([]string, error)
	// Replace makes the syllabus set exactly resourceIDs, pruning members
	// that are no longer listed upstream.
	Replace(ctx context.Context, syllabusEventID int64, resourceIDs []string) error
	// RemoveEverywhere drops the resource from every syllabus set it was
	// added to and clears the reverse index. Idempotent.
	RemoveEverywhere(ctx context.Context, resourceID string) error
}

type libraryService struct {
	log   *logger.Logger
	store redisstore.Store
}

func NewLibraryService(log *logger.Logger, store redisstore.Store) (LibraryService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if store == nil {
		return nil, fmt.Errorf("store required")
	}
	return &libraryService{
		log:   log.With("service", "LibraryService"),
		store: store,
	}, nil
}

func libraryKey(syllabusEventID int64) string {
	return libraryKeyPrefix + strconv.FormatInt(syllabusEventID, 10)
}

func (s *libraryService) Add(ctx context.Context, syllabusEventID int64, resourceID string) error {
	if syllabusEventID == 0 || resourceID == "" {
		return fmt.Errorf("library add: syllabus event id and resource id required")
	}
	if err := s.store.SAdd(ctx, libraryKey(syllabusEventID), resourceID); err != nil {
		return fmt.Errorf("library membership add: %w", err)
	}
	if err := s.store.SAdd(ctx, libraryReverseKeyPrefix+resourceID, strconv.FormatInt(syllabusEventID, 10)); err != nil {
		return fmt.Errorf("library reverse index add: %w", err)
	}
	return nil
}

func (s *libraryService) Members(ctx context.Context, syllabusEventID int64) ([]string, error) {
	return s.store.SMembers(ctx, libraryKey(syllabusEventID))
}

func (s *libraryService) Replace(ctx context.Context, syllabusEventID int64, resourceIDs []string) error {
	if syllabusEventID == 0 {
		return fmt.Errorf("library replace: syllabus event id required")
	}

	current, err := s.store.SMembers(ctx, libraryKey(syllabusEventID))
	if err != nil {
		return fmt.Errorf("library membership read: %w", err)
	}
	desired := make(map[string]struct{}, len(resourceIDs))
	for _, id := range resourceIDs {
		if id != "" {
			desired[id] = struct{}{}
		}
	}

	scope := strconv.FormatInt(syllabusEventID, 10)
	for _, m := range current {
		if _, keep := desired[m]; keep {
			continue
		}
		if err := s.store.SRem(ctx, libraryKey(syllabusEventID), m); err != nil {
			return fmt.Errorf("library membership prune: %w", err)
		}
		if err := s.store.SRem(ctx, libraryReverseKeyPrefix+m, scope); err != nil {
			return fmt.Errorf("library reverse index prune: %w", err)
		}
	}

	for id := range desired {
		if err := s.Add(ctx, syllabusEventID, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *libraryService) RemoveEverywhere(ctx context.Context, resourceID string) error {
	if resourceID == "" {
		return nil
	}
	scopes, err := s.store.SMembers(ctx, libraryReverseKeyPrefix+resourceID)
	if err != nil {
		return fmt.Errorf("library reverse index read: %w", err)
	}
	for _, scope := range scopes {
		id, err := strconv.ParseInt(scope, 10, 64)
		if err != nil {
			s.log.Warn("Skipping malformed library scope", "resource_id", resourceID, "scope", scope)
			continue
		}
		if err := s.store.SRem(ctx, libraryKey(id), resourceID); err != nil {
			return fmt.Errorf("library membership remove: %w", err)
		}
	}
	if err := s.store.Del(ctx, libraryReverseKeyPrefix+resourceID); err != nil {
		return fmt.Errorf("library reverse index delete: %w", err)
	}
	return nil
}

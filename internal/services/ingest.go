package services

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path"

	"github.com/mentorium/backend/internal/clients/gcp"
	"github.com/mentorium/backend/internal/ingestion/chunk"
	"github.com/mentorium/backend/internal/ingestion/extract"
	"github.com/mentorium/backend/internal/ingestion/fetch"
	"github.com/mentorium/backend/internal/platform/apierr"
	"github.com/mentorium/backend/internal/platform/envutil"
	"github.com/mentorium/backend/internal/platform/logger"
	"github.com/mentorium/backend/internal/types"
)

// IngestStatus reports how an ingest run ended. Every status is a success
// from the caller's point of view; failures surface as errors.
type IngestStatus string

const (
	StatusIndexed          IngestStatus = "indexed"
	StatusDuplicateContent IngestStatus = "duplicate_content"
	StatusUnsupported      IngestStatus = "unsupported_format"
)

type IngestResult struct {
	ResourceID string       `json:"resource_id"`
	Status     IngestStatus `json:"status"`
	Chunks     int          `json:"chunks"`
}

// IngestService orchestrates the pipeline:
//
//	fetch -> hash -> archive -> register -> extract -> chunk -> embed -> attach
//
// and its reverse on removal. Steps run in this order so every failure
// leaves a recoverable state: a failed embed pass keeps the resource
// registered with the hash and storage path tracked, and re-ingesting later
// does not re-archive different bytes under the same key.
type IngestService interface {
	Ingest(ctx context.Context, desc types.ResourceDescriptor) (*IngestResult, error)
	// Remove deletes vectors, ledger state, the archived blob and every
	// library membership. Unknown ids are the not-found outcome, not a fault.
	Remove(ctx context.Context, resourceID string) (*types.Resource, error)
}

type ingestService struct {
	log     *logger.Logger
	fetcher *fetch.Fetcher
	bucket  gcp.BucketService
	ledger  ResourceLedger
	indexer IndexerService
	library LibraryService
	chunker *chunk.Chunker

	narrative   chunk.Profile
	spreadsheet chunk.Profile
}

func NewIngestService(
	log *logger.Logger,
	fetcher *fetch.Fetcher,
	bucket gcp.BucketService,
	ledger ResourceLedger,
	indexer IndexerService,
	library LibraryService,
	chunker *chunk.Chunker,
) (IngestService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if fetcher == nil || bucket == nil || ledger == nil || indexer == nil || library == nil || chunker == nil {
		return nil, fmt.Errorf("ingest service: all dependencies required")
	}
	return &ingestService{
		log:     log.With("service", "IngestService"),
		fetcher: fetcher,
		bucket:  bucket,
		ledger:  ledger,
		indexer: indexer,
		library: library,
		chunker: chunker,
		narrative: chunk.Profile{
			MaxTokens: envutil.Int("CHUNK_MAX_TOKENS", 400),
			Overlap:   envutil.Int("CHUNK_OVERLAP_TOKENS", 20),
		},
		spreadsheet: chunk.Profile{
			MaxTokens: envutil.Int("SHEET_CHUNK_MAX_TOKENS", 8000),
			Overlap:   0,
		},
	}, nil
}

func (s *ingestService) Ingest(ctx context.Context, desc types.ResourceDescriptor) (*IngestResult, error) {
	if desc.ResourceID == "" || desc.DriveID == "" {
		return nil, apierr.Newf(http.StatusBadRequest, apierr.CodeInvalidArgument, "resource id and drive id required")
	}

	local, err := s.fetcher.Fetch(ctx, desc.Title, desc.DriveID)
	if err != nil {
		return nil, err
	}
	defer local.Cleanup()

	storagePath, err := s.archive(ctx, local)
	if err != nil {
		return nil, err
	}

	res := &types.Resource{
		ResourceID:      desc.ResourceID,
		Title:           desc.Title,
		DriveID:         desc.DriveID,
		FileHash:        local.Hash,
		StoragePath:     storagePath,
		SyllabusEventID: desc.SyllabusEventID,
	}

	inserted, err := s.ledger.Register(ctx, res)
	if err != nil {
		return nil, err
	}
	if err := s.addMembership(ctx, desc); err != nil {
		return nil, err
	}
	if !inserted {
		return &IngestResult{ResourceID: desc.ResourceID, Status: StatusDuplicateContent}, nil
	}

	docType := extract.DetectDocumentType(local.Name)
	if docType == extract.TypeUnsupported {
		// Tracked but never indexed; a later removal still cleans up the
		// hash entry and the archived blob.
		s.log.Warn("Unsupported resource format, skipping indexing",
			"resource_id", desc.ResourceID, "file", local.Name)
		return &IngestResult{ResourceID: desc.ResourceID, Status: StatusUnsupported}, nil
	}

	units, err := extract.Extract(local.Path, docType)
	if err != nil {
		return nil, err
	}

	chunks, err := s.chunker.Split(units, chunk.ProfileFor(docType, s.narrative, s.spreadsheet))
	if err != nil {
		return nil, err
	}

	ids, err := s.indexer.EmbedAndUpsert(ctx, chunks, types.ChunkMetadata{
		ResourceID:      desc.ResourceID,
		Title:           desc.Title,
		FileHash:        local.Hash,
		StoragePath:     storagePath,
		SyllabusEventID: desc.SyllabusEventID,
	})
	if err != nil {
		// Registered but unembedded; removable, never half-attached.
		return nil, err
	}

	if err := s.ledger.AttachVectorIDs(ctx, desc.ResourceID, ids); err != nil {
		return nil, err
	}

	s.log.Info("Resource ingested",
		"resource_id", desc.ResourceID, "doc_type", docType.String(), "chunks", len(chunks))
	return &IngestResult{ResourceID: desc.ResourceID, Status: StatusIndexed, Chunks: len(chunks)}, nil
}

func (s *ingestService) Remove(ctx context.Context, resourceID string) (*types.Resource, error) {
	res, err := s.ledger.Remove(ctx, resourceID, s.indexer.Delete)
	if err != nil {
		return nil, err
	}

	if key := path.Base(res.StoragePath); key != "" && key != "." {
		if err := s.bucket.Delete(ctx, key); err != nil {
			// The index and ledger are already clean; an orphaned blob is
			// harmless and logged for manual sweep.
			s.log.Warn("Archived blob delete failed", "resource_id", resourceID, "key", key, "error", err)
		}
	}

	if err := s.library.RemoveEverywhere(ctx, resourceID); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *ingestService) archive(ctx context.Context, local *fetch.LocalFile) (string, error) {
	file, err := os.Open(local.Path)
	if err != nil {
		return "", fmt.Errorf("open staged file: %w", err)
	}
	defer file.Close()
	return s.bucket.Upload(ctx, local.Name, file)
}

func (s *ingestService) addMembership(ctx context.Context, desc types.ResourceDescriptor) error {
	if desc.SyllabusEventID == 0 {
		return nil
	}
	return s.library.Add(ctx, desc.SyllabusEventID, desc.ResourceID)
}

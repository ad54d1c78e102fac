package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/mentorium/backend/internal/clients/pinecone"
	"github.com/mentorium/backend/internal/ingestion/chunk"
	"github.com/mentorium/backend/internal/platform/apierr"
	"github.com/mentorium/backend/internal/platform/logger"
	"github.com/mentorium/backend/internal/types"
)

// Embedder is the slice of the OpenAI client the indexer needs.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// ScopeFilter restricts a similarity search to one syllabus or to an
// explicit resource allowlist. The two modes are mutually exclusive.
type ScopeFilter struct {
	SyllabusEventID int64
	ResourceIDs     []string
}

func (f ScopeFilter) Validate() error {
	if f.SyllabusEventID != 0 && len(f.ResourceIDs) > 0 {
		return apierr.Newf(http.StatusBadRequest, apierr.CodeInvalidArgument,
			"scope filter: syllabus id and resource allowlist are mutually exclusive")
	}
	return nil
}

func (f ScopeFilter) AsMap() map[string]any {
	switch {
	case f.SyllabusEventID != 0:
		return map[string]any{"syllabus_event_id": f.SyllabusEventID}
	case len(f.ResourceIDs) > 0:
		ids := make([]any, len(f.ResourceIDs))
		for i, id := range f.ResourceIDs {
			ids[i] = id
		}
		return map[string]any{"resource_id": map[string]any{"$in": ids}}
	default:
		return nil
	}
}

// IndexerService owns the embed+upsert and search sides of the vector index.
type IndexerService interface {
	// EmbedAndUpsert embeds every chunk, assigns each a fresh id, merges the
	// resource metadata onto the stored record and upserts. Ids come back in
	// chunk order. All-or-nothing: on failure no ids are returned.
	EmbedAndUpsert(ctx context.Context, chunks []chunk.Chunk, meta types.ChunkMetadata) ([]string, error)
	Search(ctx context.Context, query string, topK int, filter ScopeFilter) ([]pinecone.VectorMatch, error)
	Delete(ctx context.Context, ids []string) error
}

type indexerService struct {
	log      *logger.Logger
	embedder Embedder
	vec      pinecone.VectorStore
}

const embedBatchSize = 64

func NewIndexerService(log *logger.Logger, embedder Embedder, vec pinecone.VectorStore) (IndexerService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder required")
	}
	if vec == nil {
		return nil, fmt.Errorf("vector store required")
	}
	return &indexerService{
		log:      log.With("service", "IndexerService"),
		embedder: embedder,
		vec:      vec,
	}, nil
}

func (s *indexerService) EmbedAndUpsert(ctx context.Context, chunks []chunk.Chunk, meta types.ChunkMetadata) ([]string, error) {
	if len(chunks) == 0 {
		return []string{}, nil
	}

	// Embed everything before touching the index so a mid-batch failure
	// never leaves a partial id list behind.
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		inputs := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			inputs = append(inputs, c.Text)
		}
		batch, err := s.embedder.Embed(ctx, inputs)
		if err != nil {
			s.log.Error("Chunk embedding failed", "resource_id", meta.ResourceID, "batch_start", start, "error", err)
			return nil, apierr.New(http.StatusBadGateway, apierr.CodeEmbeddingFailed, err)
		}
		vectors = append(vectors, batch...)
	}

	ids := make([]string, len(chunks))
	records := make([]pinecone.Vector, len(chunks))
	for i, c := range chunks {
		id := uuid.NewString()
		md := meta.AsMap()
		md["text"] = c.Text
		md["chunk_index"] = i
		md["unit_index"] = c.Unit
		ids[i] = id
		records[i] = pinecone.Vector{ID: id, Values: vectors[i], Metadata: md}
	}

	for start := 0; start < len(records); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(records) {
			end = len(records)
		}
		if err := s.vec.Upsert(ctx, records[start:end]); err != nil {
			s.log.Error("Vector upsert failed", "resource_id", meta.ResourceID, "batch_start", start, "error", err)
			return nil, apierr.New(http.StatusBadGateway, apierr.CodeEmbeddingFailed, err)
		}
	}

	s.log.Info("Chunks indexed", "resource_id", meta.ResourceID, "chunks", len(chunks))
	return ids, nil
}

func (s *indexerService) Search(ctx context.Context, query string, topK int, filter ScopeFilter) ([]pinecone.VectorMatch, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 6
	}

	embedded, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, apierr.CodeEmbeddingFailed, err)
	}
	if len(embedded) != 1 {
		return nil, fmt.Errorf("query embedding: want 1 vector, got %d", len(embedded))
	}

	return s.vec.QueryMatches(ctx, embedded[0], topK, filter.AsMap())
}

func (s *indexerService) Delete(ctx context.Context, ids []string) error {
	return s.vec.DeleteIDs(ctx, ids)
}

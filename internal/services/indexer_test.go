package services

import (
	"context"
	"testing"

	"github.com/mentorium/backend/internal/ingestion/chunk"
	"github.com/mentorium/backend/internal/platform/apierr"
	"github.com/mentorium/backend/internal/types"
)

func newTestIndexer(t *testing.T, emb *fakeEmbedder, vec *fakeVectorStore) IndexerService {
	t.Helper()
	idx, err := NewIndexerService(testLogger(t), emb, vec)
	if err != nil {
		t.Fatalf("NewIndexerService: %v", err)
	}
	return idx
}

func TestEmbedAndUpsertAssignsOneIDPerChunk(t *testing.T) {
	emb := &fakeEmbedder{}
	vec := &fakeVectorStore{}
	idx := newTestIndexer(t, emb, vec)

	chunks := []chunk.Chunk{
		{Text: "limits and continuity", Unit: 0},
		{Text: "derivative rules", Unit: 0},
		{Text: "chain rule examples", Unit: 1},
	}
	meta := types.ChunkMetadata{ResourceID: "r1", Title: "calc.pdf", FileHash: "aaa", StoragePath: "gs://b/calc.pdf", SyllabusEventID: 7}

	ids, err := idx.EmbedAndUpsert(context.Background(), chunks, meta)
	if err != nil {
		t.Fatalf("EmbedAndUpsert: %v", err)
	}
	if len(ids) != len(chunks) {
		t.Fatalf("ids: want=%d got=%d", len(chunks), len(ids))
	}
	seen := map[string]bool{}
	for _, id := range ids {
		if id == "" || seen[id] {
			t.Fatalf("ids must be unique and non-empty, got %v", ids)
		}
		seen[id] = true
	}

	if len(vec.upserted) != len(chunks) {
		t.Fatalf("upserted vectors: want=%d got=%d", len(chunks), len(vec.upserted))
	}
	for i, v := range vec.upserted {
		if v.ID != ids[i] {
			t.Fatalf("vector %d id: want=%s got=%s", i, ids[i], v.ID)
		}
		if v.Metadata["text"] != chunks[i].Text {
			t.Fatalf("vector %d text metadata: want=%q got=%v", i, chunks[i].Text, v.Metadata["text"])
		}
		if v.Metadata["resource_id"] != "r1" {
			t.Fatalf("vector %d resource_id: got=%v", i, v.Metadata["resource_id"])
		}
		if v.Metadata["chunk_index"] != i {
			t.Fatalf("vector %d chunk_index: want=%d got=%v", i, i, v.Metadata["chunk_index"])
		}
	}
	if vec.upserted[2].Metadata["unit_index"] != 1 {
		t.Fatalf("unit_index: want=1 got=%v", vec.upserted[2].Metadata["unit_index"])
	}
}

func TestEmbedAndUpsertEmptyInput(t *testing.T) {
	emb := &fakeEmbedder{}
	vec := &fakeVectorStore{}
	idx := newTestIndexer(t, emb, vec)

	ids, err := idx.EmbedAndUpsert(context.Background(), nil, types.ChunkMetadata{ResourceID: "r1"})
	if err != nil {
		t.Fatalf("EmbedAndUpsert: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("ids for empty input: want=0 got=%d", len(ids))
	}
	if emb.calls != 0 {
		t.Fatalf("embedder calls for empty input: want=0 got=%d", emb.calls)
	}
}

func TestEmbedFailureYieldsNoIDs(t *testing.T) {
	emb := &fakeEmbedder{failAt: 1}
	vec := &fakeVectorStore{}
	idx := newTestIndexer(t, emb, vec)

	ids, err := idx.EmbedAndUpsert(context.Background(), []chunk.Chunk{{Text: "x"}}, types.ChunkMetadata{ResourceID: "r1"})
	if !apierr.IsCode(err, apierr.CodeEmbeddingFailed) {
		t.Fatalf("want embedding_failed got %v", err)
	}
	if ids != nil {
		t.Fatalf("ids on failure: want=nil got=%v", ids)
	}
	if len(vec.upserted) != 0 {
		t.Fatalf("no vectors may be upserted when embedding fails, got %d", len(vec.upserted))
	}
}

func TestUpsertFailureYieldsNoIDs(t *testing.T) {
	emb := &fakeEmbedder{}
	vec := &fakeVectorStore{failUpsert: true}
	idx := newTestIndexer(t, emb, vec)

	ids, err := idx.EmbedAndUpsert(context.Background(), []chunk.Chunk{{Text: "x"}}, types.ChunkMetadata{ResourceID: "r1"})
	if !apierr.IsCode(err, apierr.CodeEmbeddingFailed) {
		t.Fatalf("want embedding_failed got %v", err)
	}
	if ids != nil {
		t.Fatalf("ids on upsert failure: want=nil got=%v", ids)
	}
}

func TestSearchRejectsConflictingScope(t *testing.T) {
	idx := newTestIndexer(t, &fakeEmbedder{}, &fakeVectorStore{})

	_, err := idx.Search(context.Background(), "q", 6, ScopeFilter{SyllabusEventID: 1, ResourceIDs: []string{"r1"}})
	if !apierr.IsCode(err, apierr.CodeInvalidArgument) {
		t.Fatalf("conflicting scope: want invalid_argument got %v", err)
	}
}

func TestSearchFilterShapes(t *testing.T) {
	vec := &fakeVectorStore{}
	idx := newTestIndexer(t, &fakeEmbedder{}, vec)
	ctx := context.Background()

	if _, err := idx.Search(ctx, "q", 0, ScopeFilter{SyllabusEventID: 42}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if vec.lastTopK != 6 {
		t.Fatalf("default topK: want=6 got=%d", vec.lastTopK)
	}
	if got := vec.lastFilter["syllabus_event_id"]; got != int64(42) {
		t.Fatalf("syllabus filter: want=42 got=%v", got)
	}

	if _, err := idx.Search(ctx, "q", 3, ScopeFilter{ResourceIDs: []string{"r1", "r2"}}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	in, ok := vec.lastFilter["resource_id"].(map[string]any)
	if !ok {
		t.Fatalf("allowlist filter shape: got=%v", vec.lastFilter)
	}
	ids, ok := in["$in"].([]any)
	if !ok || len(ids) != 2 {
		t.Fatalf("allowlist $in: want 2 ids got=%v", in["$in"])
	}

	if _, err := idx.Search(ctx, "q", 3, ScopeFilter{}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if vec.lastFilter != nil {
		t.Fatalf("unscoped filter: want=nil got=%v", vec.lastFilter)
	}
}

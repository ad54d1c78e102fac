package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mentorium/backend/internal/clients/pinecone"
	"github.com/mentorium/backend/internal/ingestion/chunk"
	"github.com/mentorium/backend/internal/platform/logger"
	"github.com/mentorium/backend/internal/types"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

// fakeStore is an in-memory stand-in for the redis store.
type fakeStore struct {
	kv    map[string]string
	sets  map[string]map[string]struct{}
	lists map[string][]string

	failSetKeys map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		kv:          map[string]string{},
		sets:        map[string]map[string]struct{}{},
		lists:       map[string][]string{},
		failSetKeys: map[string]bool{},
	}
}

func (s *fakeStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := s.kv[key]
	return v, ok, nil
}

func (s *fakeStore) Set(ctx context.Context, key, value string) error {
	if s.failSetKeys[key] {
		return fmt.Errorf("set %s unavailable", key)
	}
	s.kv[key] = value
	return nil
}

func (s *fakeStore) SetIfAbsent(ctx context.Context, key, value string) (bool, error) {
	if _, ok := s.kv[key]; ok {
		return false, nil
	}
	s.kv[key] = value
	return true, nil
}

func (s *fakeStore) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(s.kv, k)
		delete(s.sets, k)
		delete(s.lists, k)
	}
	return nil
}

func (s *fakeStore) SAdd(ctx context.Context, key string, members ...string) error {
	set, ok := s.sets[key]
	if !ok {
		set = map[string]struct{}{}
		s.sets[key] = set
	}
	for _, m := range members {
		set[m] = struct{}{}
	}
	return nil
}

func (s *fakeStore) SRem(ctx context.Context, key string, members ...string) error {
	set, ok := s.sets[key]
	if !ok {
		return nil
	}
	for _, m := range members {
		delete(set, m)
	}
	return nil
}

func (s *fakeStore) SMembers(ctx context.Context, key string) ([]string, error) {
	set := s.sets[key]
	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	return out, nil
}

func (s *fakeStore) LPush(ctx context.Context, key, value string) error {
	s.lists[key] = append([]string{value}, s.lists[key]...)
	return nil
}

func (s *fakeStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	list := s.lists[key]
	n := int64(len(list))
	if n == 0 {
		return nil, nil
	}
	if start < 0 {
		start = n + start
	}
	if stop < 0 {
		stop = n + stop
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop {
		return nil, nil
	}
	out := make([]string, stop-start+1)
	copy(out, list[start:stop+1])
	return out, nil
}

func (s *fakeStore) LSet(ctx context.Context, key string, index int64, value string) error {
	list := s.lists[key]
	if index < 0 || index >= int64(len(list)) {
		return fmt.Errorf("index out of range")
	}
	list[index] = value
	return nil
}

func (s *fakeStore) LTrim(ctx context.Context, key string, start, stop int64) error {
	list, err := s.LRange(ctx, key, start, stop)
	if err != nil {
		return err
	}
	s.lists[key] = list
	return nil
}

func (s *fakeStore) Expire(ctx context.Context, key string, ttl time.Duration) error { return nil }

func (s *fakeStore) Close() error { return nil }

// fakeEmbedder returns one deterministic vector per input.
type fakeEmbedder struct {
	calls   int
	inputs  [][]string
	failAt  int // 1-based call index that fails; 0 never fails
	wantDim int
}

func (e *fakeEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	e.calls++
	e.inputs = append(e.inputs, inputs)
	if e.failAt > 0 && e.calls >= e.failAt {
		return nil, fmt.Errorf("embedding backend down")
	}
	dim := e.wantDim
	if dim == 0 {
		dim = 4
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		vec := make([]float32, dim)
		vec[0] = float32(len(inputs[i]))
		out[i] = vec
	}
	return out, nil
}

// fakeVectorStore records upserts and deletions and serves canned matches.
type fakeVectorStore struct {
	upserted   []pinecone.Vector
	deleted    []string
	matches    []pinecone.VectorMatch
	lastFilter map[string]any
	lastTopK   int
	failUpsert bool
}

func (v *fakeVectorStore) Upsert(ctx context.Context, vectors []pinecone.Vector) error {
	if v.failUpsert {
		return fmt.Errorf("upsert unavailable")
	}
	v.upserted = append(v.upserted, vectors...)
	return nil
}

func (v *fakeVectorStore) QueryMatches(ctx context.Context, q []float32, topK int, filter map[string]any) ([]pinecone.VectorMatch, error) {
	v.lastTopK = topK
	v.lastFilter = filter
	return v.matches, nil
}

func (v *fakeVectorStore) DeleteIDs(ctx context.Context, ids []string) error {
	v.deleted = append(v.deleted, ids...)
	return nil
}

// fakeIndexer drives retrieval tests without touching embeddings.
type fakeIndexer struct {
	matches   []pinecone.VectorMatch
	upserts   []int
	deleted   [][]string
	lastQuery string
	lastTopK  int
	err       error
}

func (f *fakeIndexer) EmbedAndUpsert(ctx context.Context, chunks []chunk.Chunk, meta types.ChunkMetadata) ([]string, error) {
	f.upserts = append(f.upserts, len(chunks))
	if f.err != nil {
		return nil, f.err
	}
	ids := make([]string, len(chunks))
	for i := range ids {
		ids[i] = fmt.Sprintf("vec-%d", i)
	}
	return ids, nil
}

func (f *fakeIndexer) Search(ctx context.Context, query string, topK int, filter ScopeFilter) ([]pinecone.VectorMatch, error) {
	f.lastQuery = query
	f.lastTopK = topK
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

func (f *fakeIndexer) Delete(ctx context.Context, ids []string) error {
	f.deleted = append(f.deleted, ids)
	return nil
}

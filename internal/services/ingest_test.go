package services

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/mentorium/backend/internal/ingestion/chunk"
	"github.com/mentorium/backend/internal/ingestion/fetch"
	"github.com/mentorium/backend/internal/platform/apierr"
	"github.com/mentorium/backend/internal/types"
)

// fakeDrive serves canned bytes keyed by drive id.
type fakeDrive struct {
	files map[string][]byte
}

func (d *fakeDrive) Download(ctx context.Context, driveID, destPath string) error {
	data, ok := d.files[driveID]
	if !ok {
		return apierr.Newf(502, apierr.CodeFetchFailed, "no such drive file %s", driveID)
	}
	return os.WriteFile(destPath, data, 0o644)
}

// fakeBucket archives objects in memory.
type fakeBucket struct {
	objects map[string][]byte
	deleted []string
}

func newFakeBucket() *fakeBucket { return &fakeBucket{objects: map[string][]byte{}} }

func (b *fakeBucket) Upload(ctx context.Context, key string, file io.Reader) (string, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return "", err
	}
	b.objects[key] = data
	return "gs://test-bucket/didactic_resources/" + key, nil
}

func (b *fakeBucket) Delete(ctx context.Context, key string) error {
	b.deleted = append(b.deleted, key)
	delete(b.objects, key)
	return nil
}

func (b *fakeBucket) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("no object %s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *fakeBucket) ObjectURL(key string) string {
	return "https://storage.googleapis.com/test-bucket/didactic_resources/" + key
}

// wordTokenizer treats each whitespace-separated word as one token.
type wordTokenizer struct {
	words []string
	index map[string]int
}

func newWordTokenizer() *wordTokenizer {
	return &wordTokenizer{index: map[string]int{}}
}

func (t *wordTokenizer) Encode(text string) []int {
	fields := strings.Fields(text)
	out := make([]int, len(fields))
	for i, w := range fields {
		id, ok := t.index[w]
		if !ok {
			id = len(t.words)
			t.index[w] = id
			t.words = append(t.words, w)
		}
		out[i] = id
	}
	return out
}

func (t *wordTokenizer) Decode(tokens []int) string {
	parts := make([]string, len(tokens))
	for i, id := range tokens {
		parts[i] = t.words[id]
	}
	return strings.Join(parts, " ")
}

// docxBytes builds a minimal docx container with one paragraph per string.
func docxBytes(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body strings.Builder
	body.WriteString(`<?xml version="1.0"?><w:document xmlns:w="ns"><w:body>`)
	for _, p := range paragraphs {
		fmt.Fprintf(&body, `<w:p><w:r><w:t>%s</w:t></w:r></w:p>`, p)
	}
	body.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	if _, err := w.Write([]byte(body.String())); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

type ingestFixture struct {
	svc     IngestService
	ledger  ResourceLedger
	library LibraryService
	indexer *fakeIndexer
	bucket  *fakeBucket
	store   *fakeStore
}

func newIngestFixture(t *testing.T, drive *fakeDrive) *ingestFixture {
	t.Helper()
	log := testLogger(t)
	store := newFakeStore()

	fetcher, err := fetch.NewFetcher(log, drive, t.TempDir())
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	chunker, err := chunk.NewChunker(newWordTokenizer())
	if err != nil {
		t.Fatalf("NewChunker: %v", err)
	}
	ledger, err := NewResourceLedger(log, store)
	if err != nil {
		t.Fatalf("NewResourceLedger: %v", err)
	}
	library, err := NewLibraryService(log, store)
	if err != nil {
		t.Fatalf("NewLibraryService: %v", err)
	}
	indexer := &fakeIndexer{}
	bucket := newFakeBucket()

	svc, err := NewIngestService(log, fetcher, bucket, ledger, indexer, library, chunker)
	if err != nil {
		t.Fatalf("NewIngestService: %v", err)
	}
	return &ingestFixture{svc: svc, ledger: ledger, library: library, indexer: indexer, bucket: bucket, store: store}
}

func TestIngestIndexesDocx(t *testing.T) {
	doc := docxBytes(t, "limits and continuity", "rules for derivatives")
	fx := newIngestFixture(t, &fakeDrive{files: map[string][]byte{"d1": doc}})
	ctx := context.Background()

	result, err := fx.svc.Ingest(ctx, types.ResourceDescriptor{
		ResourceID:      "r1",
		Title:           "Guía de Cálculo.docx",
		DriveID:         "d1",
		SyllabusEventID: 7,
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.Status != StatusIndexed {
		t.Fatalf("status: want=%s got=%s", StatusIndexed, result.Status)
	}
	if result.Chunks == 0 {
		t.Fatalf("chunks: want>0 got=0")
	}

	res, found, err := fx.ledger.Get(ctx, "r1")
	if err != nil || !found {
		t.Fatalf("ledger Get: found=%v err=%v", found, err)
	}
	if !res.Embedded() {
		t.Fatalf("resource must be embedded after successful ingest")
	}
	if res.StoragePath == "" || !strings.Contains(res.StoragePath, "Guia_de_Calculo.docx") {
		t.Fatalf("storage path: got=%q", res.StoragePath)
	}
	if _, ok := fx.bucket.objects["Guia_de_Calculo.docx"]; !ok {
		t.Fatalf("archived object missing, have %v", fx.bucket.objects)
	}

	members, err := fx.library.Members(ctx, 7)
	if err != nil || len(members) != 1 || members[0] != "r1" {
		t.Fatalf("library members: want=[r1] got=%v err=%v", members, err)
	}
}

func TestIngestDuplicateContentSkipsEmbedding(t *testing.T) {
	doc := docxBytes(t, "same bytes twice")
	fx := newIngestFixture(t, &fakeDrive{files: map[string][]byte{"d1": doc, "d2": doc}})
	ctx := context.Background()

	if _, err := fx.svc.Ingest(ctx, types.ResourceDescriptor{ResourceID: "r1", Title: "a.docx", DriveID: "d1"}); err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	embedsAfterFirst := len(fx.indexer.upserts)

	result, err := fx.svc.Ingest(ctx, types.ResourceDescriptor{ResourceID: "r2", Title: "b.docx", DriveID: "d2", SyllabusEventID: 9})
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if result.Status != StatusDuplicateContent {
		t.Fatalf("status: want=%s got=%s", StatusDuplicateContent, result.Status)
	}
	if len(fx.indexer.upserts) != embedsAfterFirst {
		t.Fatalf("duplicate content must not embed: want=%d got=%d", embedsAfterFirst, len(fx.indexer.upserts))
	}

	// Duplicate is still tracked and member of its syllabus.
	res, found, _ := fx.ledger.Get(ctx, "r2")
	if !found || res.Embedded() {
		t.Fatalf("duplicate record: found=%v embedded=%v", found, found && res.Embedded())
	}
	members, _ := fx.library.Members(ctx, 9)
	if len(members) != 1 {
		t.Fatalf("duplicate membership: want=1 got=%d", len(members))
	}
}

func TestReingestThenRemoveDeletesVectors(t *testing.T) {
	doc := docxBytes(t, "replayed catalog event")
	fx := newIngestFixture(t, &fakeDrive{files: map[string][]byte{"d1": doc}})
	ctx := context.Background()

	if _, err := fx.svc.Ingest(ctx, types.ResourceDescriptor{ResourceID: "r1", Title: "a.docx", DriveID: "d1"}); err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	res, _, err := fx.ledger.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("ledger Get: %v", err)
	}
	attached := len(res.VectorIDs)
	if attached == 0 {
		t.Fatalf("first ingest attached no vector ids")
	}

	// Catalog event replay for the same id and bytes.
	result, err := fx.svc.Ingest(ctx, types.ResourceDescriptor{ResourceID: "r1", Title: "a.docx", DriveID: "d1"})
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if result.Status != StatusDuplicateContent {
		t.Fatalf("status: want=%s got=%s", StatusDuplicateContent, result.Status)
	}
	res, _, err = fx.ledger.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("ledger Get after replay: %v", err)
	}
	if len(res.VectorIDs) != attached {
		t.Fatalf("replay must keep vector ids: want=%d got=%d", attached, len(res.VectorIDs))
	}

	// Removal after the replay still deletes every vector it attached.
	if _, err := fx.svc.Remove(ctx, "r1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(fx.indexer.deleted) != 1 || len(fx.indexer.deleted[0]) != attached {
		t.Fatalf("vector deletes after replay: want=%d got=%v", attached, fx.indexer.deleted)
	}
}

func TestIngestUnsupportedFormatStaysRegistered(t *testing.T) {
	fx := newIngestFixture(t, &fakeDrive{files: map[string][]byte{"d1": []byte("plain text")}})
	ctx := context.Background()

	result, err := fx.svc.Ingest(ctx, types.ResourceDescriptor{ResourceID: "r1", Title: "notes.txt", DriveID: "d1"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.Status != StatusUnsupported {
		t.Fatalf("status: want=%s got=%s", StatusUnsupported, result.Status)
	}
	if len(fx.indexer.upserts) != 0 {
		t.Fatalf("unsupported format must not embed")
	}

	res, found, _ := fx.ledger.Get(ctx, "r1")
	if !found {
		t.Fatalf("unsupported resource must stay registered")
	}
	if res.FileHash == "" || res.StoragePath == "" {
		t.Fatalf("hash and storage path must be tracked, got %+v", res)
	}
}

func TestIngestEmbedFailureLeavesRecoverableState(t *testing.T) {
	doc := docxBytes(t, "content that fails to embed")
	fx := newIngestFixture(t, &fakeDrive{files: map[string][]byte{"d1": doc}})
	fx.indexer.err = apierr.Newf(502, apierr.CodeEmbeddingFailed, "backend down")
	ctx := context.Background()

	_, err := fx.svc.Ingest(ctx, types.ResourceDescriptor{ResourceID: "r1", Title: "a.docx", DriveID: "d1"})
	if !apierr.IsCode(err, apierr.CodeEmbeddingFailed) {
		t.Fatalf("want embedding_failed got %v", err)
	}

	res, found, _ := fx.ledger.Get(ctx, "r1")
	if !found {
		t.Fatalf("failed embed must leave the resource registered")
	}
	if res.Embedded() {
		t.Fatalf("vector ids must not be attached after a failed pass")
	}

	// Removal of the registered-unembedded record cleans up.
	if _, err := fx.svc.Remove(ctx, "r1"); err != nil {
		t.Fatalf("Remove after failed embed: %v", err)
	}
	if _, found, _ := fx.ledger.Get(ctx, "r1"); found {
		t.Fatalf("record must be gone after removal")
	}
}

func TestRemoveCleansEverything(t *testing.T) {
	doc := docxBytes(t, "to be removed")
	fx := newIngestFixture(t, &fakeDrive{files: map[string][]byte{"d1": doc}})
	ctx := context.Background()

	if _, err := fx.svc.Ingest(ctx, types.ResourceDescriptor{ResourceID: "r1", Title: "a.docx", DriveID: "d1", SyllabusEventID: 7}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	res, err := fx.svc.Remove(ctx, "r1")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if res.ResourceID != "r1" {
		t.Fatalf("removed id: want=r1 got=%s", res.ResourceID)
	}
	if len(fx.indexer.deleted) != 1 {
		t.Fatalf("vector delete calls: want=1 got=%d", len(fx.indexer.deleted))
	}
	if len(fx.bucket.deleted) != 1 || fx.bucket.deleted[0] != "a.docx" {
		t.Fatalf("blob delete: want=[a.docx] got=%v", fx.bucket.deleted)
	}
	members, _ := fx.library.Members(ctx, 7)
	if len(members) != 0 {
		t.Fatalf("membership after removal: want=0 got=%v", members)
	}
}

func TestRemoveUnknownIsNotFound(t *testing.T) {
	fx := newIngestFixture(t, &fakeDrive{files: map[string][]byte{}})

	_, err := fx.svc.Remove(context.Background(), "ghost")
	if !apierr.IsCode(err, apierr.CodeNotFound) {
		t.Fatalf("want not_found got %v", err)
	}
}

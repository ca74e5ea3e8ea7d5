package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/engine/mock"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/gcp"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/logger"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/pinecone"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/qdrant"
)

func TestChunk(t *testing.T) {
	cases := []struct {
		name string
		text string
		size int
		want []string
	}{
		{"empty", "", 3, nil},
		{"exact", "abcdef", 3, []string{"abc", "def"}},
		{"remainder", "abcdefg", 3, []string{"abc", "def", "g"}},
		{"skips blank", "abc   def", 3, []string{"abc", "def"}},
		{"runes", "ééééé", 2, []string{"éé", "éé", "é"}},
	}
	for _, tc := range cases {
		got := Chunk(tc.text, tc.size)
		if strings.Join(got, "|") != strings.Join(tc.want, "|") || len(got) != len(tc.want) {
			t.Fatalf("%s: got=%q want=%q", tc.name, got, tc.want)
		}
	}

	long := strings.Repeat("x", 1234)
	chunks := Chunk(long, 0)
	if len(chunks) != 3 || utf8.RuneCountInString(chunks[0]) != DefaultChunkSize || len(chunks[2]) != 234 {
		t.Fatalf("default size chunks=%d", len(chunks))
	}
}

type fakeDocAI struct{ text string }

func (f fakeDocAI) ProcessBytes(ctx context.Context, req gcp.DocAIProcessBytesRequest) (*gcp.DocAIResult, error) {
	if req.MimeType != "application/pdf" {
		return nil, errors.New("unexpected mime " + req.MimeType)
	}
	return &gcp.DocAIResult{Text: f.text, Pages: []gcp.DocAIPage{{Number: 1, Text: f.text}}}, nil
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestFileExtractor(t *testing.T) {
	ctx := context.Background()
	txt := writeFile(t, "doctrine.md", "# Doctrine\nAdvance by bounds.")
	pdf := writeFile(t, "manual.pdf", "%PDF-1.7 binary")
	html := writeFile(t, "page.html", "<p>Hold</p><b>fire</b>")

	ex := NewFileExtractor(logger.Nop(), fakeDocAI{text: "Fire and maneuver."})
	doc, err := ex.Extract(ctx, txt)
	if err != nil || doc.ID != "doctrine.md" || doc.Kind != "text" || !strings.Contains(doc.Text, "bounds") {
		t.Fatalf("doc=%+v err=%v", doc, err)
	}
	doc, err = ex.Extract(ctx, pdf)
	if err != nil || doc.Kind != "pdf" || doc.Text != "Fire and maneuver." {
		t.Fatalf("doc=%+v err=%v", doc, err)
	}
	doc, err = ex.Extract(ctx, html)
	if err != nil || strings.Contains(doc.Text, "<p>") {
		t.Fatalf("doc=%+v err=%v", doc, err)
	}

	if _, err := NewFileExtractor(logger.Nop(), nil).Extract(ctx, pdf); err == nil {
		t.Fatalf("expected error without Document AI")
	}
	if _, err := ex.Extract(ctx, writeFile(t, "blank.txt", "  \n ")); err == nil {
		t.Fatalf("expected error for blank text")
	}
}

type recordingWriter struct {
	mu      sync.Mutex
	ensured map[string]int
	vectors []Vector
	batches int
	fail    bool
}

func (w *recordingWriter) EnsureIndex(ctx context.Context, indexName string, dim int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ensured == nil {
		w.ensured = map[string]int{}
	}
	w.ensured[indexName] = dim
	return nil
}

func (w *recordingWriter) Upsert(ctx context.Context, indexName string, vectors []Vector) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return errors.New("quota exceeded")
	}
	w.batches++
	w.vectors = append(w.vectors, vectors...)
	return nil
}

func TestIngestBatchesAndIDs(t *testing.T) {
	path := writeFile(t, "fm3-21.txt", strings.Repeat("a", 25))
	w := &recordingWriter{}
	in, err := NewIngestor(logger.Nop(), NewFileExtractor(logger.Nop(), nil), mock.New(4), w, Options{
		EmbedModel: "minilm",
		Dimension:  4,
		ChunkSize:  5,
		BatchSize:  2,
		Parallel:   2,
	})
	if err != nil {
		t.Fatalf("NewIngestor: %v", err)
	}
	if err := in.EnsureIndex(context.Background(), "pdf-rag-index"); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	if w.ensured["pdf-rag-index"] != 4 {
		t.Fatalf("ensured=%v", w.ensured)
	}

	rep, err := in.Ingest(context.Background(), path, "pdf-rag-index")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if rep.Chunks != 5 || rep.Batches != 3 || rep.Source != "fm3-21.txt" {
		t.Fatalf("report=%+v", rep)
	}
	if w.batches != 3 || len(w.vectors) != 5 {
		t.Fatalf("batches=%d vectors=%d", w.batches, len(w.vectors))
	}
	seen := map[string]bool{}
	for _, v := range w.vectors {
		seen[v.ID] = true
		if v.Metadata["text"] != "aaaaa" || v.Metadata["source"] != "fm3-21.txt" || len(v.Values) != 4 {
			t.Fatalf("vector=%+v", v)
		}
	}
	for j := 0; j < 5; j++ {
		if id := "fm3-21.txt-" + string(rune('0'+j)); !seen[id] {
			t.Fatalf("missing id %s in %v", id, seen)
		}
	}
}

func TestIngestUpsertFailure(t *testing.T) {
	path := writeFile(t, "doc.txt", "some doctrine text")
	in, err := NewIngestor(logger.Nop(), NewFileExtractor(logger.Nop(), nil), mock.New(4), &recordingWriter{fail: true}, Options{EmbedModel: "m"})
	if err != nil {
		t.Fatalf("NewIngestor: %v", err)
	}
	if _, err := in.Ingest(context.Background(), path, "idx"); err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("err=%v", err)
	}
}

type fakePinecone struct {
	cloud, region string
	got           []pinecone.Vector
}

func (f *fakePinecone) EnsureIndex(ctx context.Context, indexName string, dim int, cloud, region string) error {
	f.cloud, f.region = cloud, region
	return nil
}

func (f *fakePinecone) Upsert(ctx context.Context, indexName string, vectors []pinecone.Vector) error {
	f.got = vectors
	return nil
}

type fakeQdrant struct {
	dim int
	got []qdrant.Point
}

func (f *fakeQdrant) EnsureCollection(ctx context.Context, collection string, dim int) error {
	f.dim = dim
	return nil
}

func (f *fakeQdrant) Upsert(ctx context.Context, collection string, points []qdrant.Point) error {
	f.got = points
	return nil
}

func TestWriters(t *testing.T) {
	ctx := context.Background()
	vs := []Vector{{ID: "d-0", Values: []float32{1, 2}, Metadata: map[string]any{"text": "t"}}}

	pc := &fakePinecone{}
	pw := PineconeWriter(pc, "aws", "us-east-1")
	if err := pw.EnsureIndex(ctx, "idx", 384); err != nil || pc.cloud != "aws" || pc.region != "us-east-1" {
		t.Fatalf("pinecone ensure err=%v cloud=%q region=%q", err, pc.cloud, pc.region)
	}
	if err := pw.Upsert(ctx, "idx", vs); err != nil || len(pc.got) != 1 || pc.got[0].ID != "d-0" || pc.got[0].Metadata["text"] != "t" {
		t.Fatalf("pinecone upsert err=%v got=%+v", err, pc.got)
	}

	qd := &fakeQdrant{}
	qw := QdrantWriter(qd)
	if err := qw.EnsureIndex(ctx, "idx", 384); err != nil || qd.dim != 384 {
		t.Fatalf("qdrant ensure err=%v dim=%d", err, qd.dim)
	}
	if err := qw.Upsert(ctx, "idx", vs); err != nil || len(qd.got) != 1 || qd.got[0].ID != "d-0" || qd.got[0].Vector[1] != 2 {
		t.Fatalf("qdrant upsert err=%v got=%+v", err, qd.got)
	}
}

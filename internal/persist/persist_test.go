package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/logger"
)

func sampleRecord() Record {
	return Record{
		ScenarioName: "recon1",
		Timestamp:    "20240101_120000",
		XML:          "<root>\n  <a/>\n</root>",
		Metadata: Metadata{
			Prompt:           "Conduct a reconnaissance of the river crossing",
			ContextChunks:    3,
			ContextUsed:      "chunk",
			GenerationParams: GenerationParams{MaxNewTokens: 512, Temperature: 0.7, TopP: 0.95},
			XMLStatus:        "parsed",
		},
	}
}

func TestLocalSinkSave(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalSink(logger.Nop(), root)
	if err != nil {
		t.Fatalf("NewLocalSink: %v", err)
	}
	loc, err := s.Save(context.Background(), sampleRecord())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	wantXML := filepath.Join(root, "xml", "recon1_20240101_120000.xml")
	wantMeta := filepath.Join(root, "metadata", "recon1_20240101_120000.json")
	if loc.XML != wantXML || loc.Metadata != wantMeta {
		t.Fatalf("loc=%+v", loc)
	}
	xmlRaw, err := os.ReadFile(wantXML)
	if err != nil || string(xmlRaw) != "<root>\n  <a/>\n</root>" {
		t.Fatalf("xml=%q err=%v", xmlRaw, err)
	}

	metaRaw, err := os.ReadFile(wantMeta)
	if err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(metaRaw, &got); err != nil {
		t.Fatalf("metadata json: %v", err)
	}
	if got["scenario"] != "recon1" || got["timestamp"] != "20240101_120000" {
		t.Fatalf("metadata=%v", got)
	}
	params, _ := got["generation_params"].(map[string]any)
	if params["max_new_tokens"] != float64(512) || params["top_p"] != 0.95 {
		t.Fatalf("generation_params=%v", params)
	}
	if got["context_chunks"] != float64(3) {
		t.Fatalf("context_chunks=%v", got["context_chunks"])
	}

	for _, dir := range []string{"xml", "metadata"} {
		entries, _ := os.ReadDir(filepath.Join(root, dir))
		for _, e := range entries {
			if strings.Contains(e.Name(), ".tmp-") {
				t.Fatalf("temp file left behind: %s", e.Name())
			}
		}
	}
}

func TestLocalSinkWritesMetadataFirst(t *testing.T) {
	root := t.TempDir()
	// A file where the xml directory should be makes the artifact write fail.
	if err := os.WriteFile(filepath.Join(root, "xml"), []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	s, _ := NewLocalSink(logger.Nop(), root)
	loc, err := s.Save(context.Background(), sampleRecord())
	if err == nil {
		t.Fatalf("expected error")
	}
	if loc.XML != "" {
		t.Fatalf("xml location reported on failure: %+v", loc)
	}
	if _, err := os.Stat(filepath.Join(root, "metadata", "recon1_20240101_120000.json")); err != nil {
		t.Fatalf("metadata missing: %v", err)
	}
}

func TestLocalSinkSuffixesTakenKey(t *testing.T) {
	root := t.TempDir()
	s, _ := NewLocalSink(logger.Nop(), root)
	first := sampleRecord()
	locA, err := s.Save(context.Background(), first)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	second := sampleRecord()
	second.XML = "<root/>"
	second.Metadata.Prompt = "second"
	locB, err := s.Save(context.Background(), second)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if locB.XML != filepath.Join(root, "xml", "recon1_20240101_120000_2.xml") {
		t.Fatalf("second loc=%+v", locB)
	}
	a, _ := os.ReadFile(locA.XML)
	b, _ := os.ReadFile(locB.XML)
	if string(a) != first.XML || string(b) != "<root/>" {
		t.Fatalf("a=%q b=%q", a, b)
	}
	var meta Metadata
	raw, _ := os.ReadFile(locB.Metadata)
	if err := json.Unmarshal(raw, &meta); err != nil {
		t.Fatalf("metadata json: %v", err)
	}
	if meta.Prompt != "second" || meta.FileKey != "recon1_20240101_120000_2" {
		t.Fatalf("metadata=%+v", meta)
	}
}

func TestLocalSinkConcurrentSameKey(t *testing.T) {
	root := t.TempDir()
	s, _ := NewLocalSink(logger.Nop(), root)

	const n = 8
	locs := make([]Location, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := sampleRecord()
			rec.XML = fmt.Sprintf("<root id=\"%d\"/>", i)
			rec.Metadata.Prompt = fmt.Sprintf("p%d", i)
			locs[i], errs[i] = s.Save(context.Background(), rec)
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("save %d: %v", i, errs[i])
		}
		if seen[locs[i].XML] {
			t.Fatalf("two runs share %s", locs[i].XML)
		}
		seen[locs[i].XML] = true

		xmlRaw, _ := os.ReadFile(locs[i].XML)
		metaRaw, _ := os.ReadFile(locs[i].Metadata)
		var meta Metadata
		if err := json.Unmarshal(metaRaw, &meta); err != nil {
			t.Fatalf("metadata %d: %v", i, err)
		}
		if string(xmlRaw) != fmt.Sprintf("<root id=\"%d\"/>", i) || meta.Prompt != fmt.Sprintf("p%d", i) {
			t.Fatalf("run %d paired xml=%q with prompt=%q", i, xmlRaw, meta.Prompt)
		}
	}
}

func TestLocalSinkKeepsUnicodeNames(t *testing.T) {
	root := t.TempDir()
	s, _ := NewLocalSink(logger.Nop(), root)
	for _, name := range []string{"侦察", "recon alpha", "recon_alpha"} {
		rec := sampleRecord()
		rec.ScenarioName = name
		loc, err := s.Save(context.Background(), rec)
		if err != nil {
			t.Fatalf("Save(%q): %v", name, err)
		}
		want := filepath.Join(root, "metadata", name+"_20240101_120000.json")
		if loc.Metadata != want {
			t.Fatalf("name=%q loc=%+v", name, loc)
		}
	}
}

func TestSaveRejectsBadNames(t *testing.T) {
	s, _ := NewLocalSink(logger.Nop(), t.TempDir())
	for _, rec := range []Record{
		{ScenarioName: "", Timestamp: "20240101_120000"},
		{ScenarioName: "..", Timestamp: "20240101_120000"},
		{ScenarioName: "ok", Timestamp: ""},
		{ScenarioName: "ok", Timestamp: "../../etc"},
	} {
		if _, err := s.Save(context.Background(), rec); err == nil {
			t.Fatalf("expected error for %+v", rec)
		}
	}
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"recon1":          "recon1",
		"night raid":      "night raid",
		"侦察":              "侦察",
		"Aufklärung-2":    "Aufklärung-2",
		"../escape":       "_escape",
		" a/b\\c ":        "a_b_c",
		"tab\there":       "tab_here",
		"///":             "",
		"..":              "",
		"v1.2-final_copy": "v1.2-final_copy",
	}
	for in, want := range cases {
		if got := SanitizeName(in); got != want {
			t.Fatalf("SanitizeName(%q)=%q want %q", in, got, want)
		}
	}
	if _, err := NameKey("/"); err == nil {
		t.Fatalf("expected error for unusable name")
	}
}

func TestTimestamp(t *testing.T) {
	ts := Timestamp(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	if ts != "20240101_120000" {
		t.Fatalf("ts=%s", ts)
	}
}

type fakeStore struct {
	puts    []string
	taken   map[string]bool
	failKey string
}

func (f *fakeStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if key == f.failKey {
		return errors.New("denied")
	}
	f.puts = append(f.puts, key+"|"+contentType)
	return nil
}

func (f *fakeStore) PutIfAbsent(ctx context.Context, key string, data []byte, contentType string) (bool, error) {
	if f.taken[key] {
		return false, nil
	}
	if err := f.Put(ctx, key, data, contentType); err != nil {
		return false, err
	}
	if f.taken == nil {
		f.taken = map[string]bool{}
	}
	f.taken[key] = true
	return true, nil
}

func (f *fakeStore) URL(key string) string { return "gs://bucket/" + key }

func TestObjectSinkSave(t *testing.T) {
	store := &fakeStore{}
	s, err := NewObjectSink(logger.Nop(), store, "/runs/")
	if err != nil {
		t.Fatalf("NewObjectSink: %v", err)
	}
	loc, err := s.Save(context.Background(), sampleRecord())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	want := []string{
		"runs/metadata/recon1_20240101_120000.json|application/json",
		"runs/xml/recon1_20240101_120000.xml|application/xml",
	}
	if strings.Join(store.puts, ",") != strings.Join(want, ",") {
		t.Fatalf("puts=%v", store.puts)
	}
	if loc.XML != "gs://bucket/runs/xml/recon1_20240101_120000.xml" {
		t.Fatalf("loc=%+v", loc)
	}
}

func TestObjectSinkStopsWhenMetadataFails(t *testing.T) {
	store := &fakeStore{failKey: "metadata/recon1_20240101_120000.json"}
	s, _ := NewObjectSink(logger.Nop(), store, "")
	if _, err := s.Save(context.Background(), sampleRecord()); err == nil {
		t.Fatalf("expected error")
	}
	if len(store.puts) != 0 {
		t.Fatalf("artifact written without metadata: %v", store.puts)
	}
}

func TestObjectSinkSuffixesTakenKey(t *testing.T) {
	store := &fakeStore{taken: map[string]bool{"metadata/recon1_20240101_120000.json": true}}
	s, _ := NewObjectSink(logger.Nop(), store, "")
	loc, err := s.Save(context.Background(), sampleRecord())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	want := []string{
		"metadata/recon1_20240101_120000_2.json|application/json",
		"xml/recon1_20240101_120000_2.xml|application/xml",
	}
	if strings.Join(store.puts, ",") != strings.Join(want, ",") {
		t.Fatalf("puts=%v", store.puts)
	}
	if loc.Metadata != "gs://bucket/metadata/recon1_20240101_120000_2.json" {
		t.Fatalf("loc=%+v", loc)
	}
}

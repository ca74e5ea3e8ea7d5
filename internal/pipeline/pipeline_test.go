package pipeline

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

	"go.uber.org/goleak"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/engine/mock"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/generation"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/observability"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/persist"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/logger"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/retrieval"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/runlog"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/xmlextract"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeRetriever struct {
	matches []retrieval.Match
	err     error

	mu    sync.Mutex
	calls []int
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query, indexName string, topK int) ([]retrieval.Match, error) {
	f.mu.Lock()
	f.calls = append(f.calls, topK)
	f.mu.Unlock()
	if strings.Contains(query, "boom") {
		return nil, errors.New("index unavailable")
	}
	return f.matches, f.err
}

type fakeLedger struct {
	mu   sync.Mutex
	runs []runlog.Run
	err  error
}

func (f *fakeLedger) Record(ctx context.Context, run runlog.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return f.err
}

func textMatch(id, text string) retrieval.Match {
	return retrieval.Match{ID: id, Score: 0.9, Metadata: map[string]any{retrieval.TextKey: text}}
}

type harness struct {
	p       *Pipeline
	root    string
	ledger  *fakeLedger
	metrics *observability.Metrics
}

func newHarness(t *testing.T, r Retriever, concurrency int) harness {
	t.Helper()
	log := logger.Nop()
	gen, err := generation.NewGenerator(log, mock.New(8), "base-model", generation.NewAdapterSwitch("bt-adapter", true))
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	root := t.TempDir()
	sink, err := persist.NewLocalSink(log, root)
	if err != nil {
		t.Fatalf("NewLocalSink: %v", err)
	}
	ledger := &fakeLedger{}
	metrics := observability.NewMetrics()
	fixed := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	p, err := New(log, Deps{
		Retriever: r,
		Generator: gen,
		Sink:      sink,
		Ledger:    ledger,
		Metrics:   metrics,
	}, Options{
		IndexName:   "pdf-rag-index",
		TopK:        3,
		Concurrency: concurrency,
		Now:         func() time.Time { return fixed },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return harness{p: p, root: root, ledger: ledger, metrics: metrics}
}

func TestRunWritesArtifactAndMetadata(t *testing.T) {
	r := &fakeRetriever{matches: []retrieval.Match{
		textMatch("a", "Units advance in wedge formation."),
		{ID: "b", Score: 0.5},
		textMatch("c", "Flank when the enemy is pinned."),
	}}
	h := newHarness(t, r, 1)

	out, err := h.p.Run(context.Background(), Scenario{Name: "ambush", Prompt: "Ambush an enemy convoy"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Timestamp != "20240305_140709" {
		t.Fatalf("timestamp=%q", out.Timestamp)
	}
	if out.ContextChunks != 3 {
		t.Fatalf("context_chunks=%d", out.ContextChunks)
	}
	if out.Context != "Units advance in wedge formation.\n\nFlank when the enemy is pinned." {
		t.Fatalf("context=%q", out.Context)
	}
	if out.Extract.Status != xmlextract.StatusParsed {
		t.Fatalf("xml status=%q", out.Extract.Status)
	}
	if !strings.Contains(out.Prompt, "Ambush an enemy convoy") || !strings.Contains(out.Prompt, "Flank when the enemy is pinned.") {
		t.Fatalf("prompt missing query or context: %q", out.Prompt)
	}
	if strings.Contains(out.RawResponse, "[INST]") {
		t.Fatalf("echoed prompt not stripped: %q", out.RawResponse)
	}

	xmlPath := filepath.Join(h.root, "xml", "ambush_20240305_140709.xml")
	if out.Location.XML != xmlPath {
		t.Fatalf("xml location=%q want %q", out.Location.XML, xmlPath)
	}
	xmlBytes, err := os.ReadFile(xmlPath)
	if err != nil {
		t.Fatalf("read xml: %v", err)
	}
	if !strings.Contains(string(xmlBytes), `model="bt-adapter"`) {
		t.Fatalf("xml=%q", xmlBytes)
	}

	raw, err := os.ReadFile(filepath.Join(h.root, "metadata", "ambush_20240305_140709.json"))
	if err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	var md persist.Metadata
	if err := json.Unmarshal(raw, &md); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if md.Scenario != "ambush" || md.Prompt != "Ambush an enemy convoy" || md.ContextChunks != 3 {
		t.Fatalf("metadata=%+v", md)
	}
	if md.GenerationParams != (persist.GenerationParams{MaxNewTokens: 512, Temperature: 0.7, TopP: 0.95}) {
		t.Fatalf("generation_params=%+v", md.GenerationParams)
	}
	if !md.AdapterEnabled || md.Model != "bt-adapter" || md.RunID != out.RunID {
		t.Fatalf("metadata=%+v", md)
	}

	if len(h.ledger.runs) != 1 || h.ledger.runs[0].ID != out.RunID || h.ledger.runs[0].Error != "" {
		t.Fatalf("ledger=%+v", h.ledger.runs)
	}
	if got := h.ledger.runs[0].XMLPath; got != xmlPath {
		t.Fatalf("ledger xml path=%q", got)
	}
}

func TestRunWithoutContextStillGenerates(t *testing.T) {
	h := newHarness(t, &fakeRetriever{}, 1)
	out, err := h.p.Run(context.Background(), Scenario{Name: "patrol", Prompt: "Patrol the perimeter"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.ContextChunks != 0 || out.Context != "" || out.Metadata.ContextUsed != "" {
		t.Fatalf("outcome=%+v", out)
	}
	if !out.Extract.Found() {
		t.Fatalf("xml status=%q", out.Extract.Status)
	}
}

func TestRunTruncatesContextPreview(t *testing.T) {
	long := strings.Repeat("x", 600)
	h := newHarness(t, &fakeRetriever{matches: []retrieval.Match{textMatch("a", long)}}, 1)
	out, err := h.p.Run(context.Background(), Scenario{Name: "long", Prompt: "Hold the ridge"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := strings.Repeat("x", 500) + "..."
	if out.Metadata.ContextUsed != want {
		t.Fatalf("context_used len=%d", len(out.Metadata.ContextUsed))
	}
}

func TestRunScenarioTopKOverride(t *testing.T) {
	r := &fakeRetriever{}
	h := newHarness(t, r, 1)
	if _, err := h.p.Run(context.Background(), Scenario{Name: "a", Prompt: "p"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := h.p.Run(context.Background(), Scenario{Name: "b", Prompt: "p", TopK: 7}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(r.calls) != 2 || r.calls[0] != 3 || r.calls[1] != 7 {
		t.Fatalf("topK calls=%v", r.calls)
	}
}

func TestRunRetrievalFailure(t *testing.T) {
	h := newHarness(t, &fakeRetriever{}, 1)
	_, err := h.p.Run(context.Background(), Scenario{Name: "fail", Prompt: "boom"})
	var se *StepError
	if !errors.As(err, &se) || se.Step != "retrieve" || se.Scenario != "fail" {
		t.Fatalf("err=%v", err)
	}
	if !strings.Contains(err.Error(), "index unavailable") {
		t.Fatalf("err=%v", err)
	}
	if len(h.ledger.runs) != 1 || h.ledger.runs[0].Error == "" {
		t.Fatalf("ledger=%+v", h.ledger.runs)
	}
	entries, _ := os.ReadDir(filepath.Join(h.root, "xml"))
	if len(entries) != 0 {
		t.Fatalf("unexpected artifacts: %d", len(entries))
	}
}

func TestRunValidatesScenario(t *testing.T) {
	h := newHarness(t, &fakeRetriever{}, 1)
	if _, err := h.p.Run(context.Background(), Scenario{Name: " ", Prompt: "p"}); err == nil {
		t.Fatalf("expected error for blank name")
	}
	if _, err := h.p.Run(context.Background(), Scenario{Name: "n", Prompt: ""}); err == nil {
		t.Fatalf("expected error for blank prompt")
	}
}

func TestRunRejectsUnusableNameBeforeRetrieval(t *testing.T) {
	r := &fakeRetriever{}
	h := newHarness(t, r, 1)
	_, err := h.p.Run(context.Background(), Scenario{Name: "///", Prompt: "p"})
	var stepErr *StepError
	if !errors.As(err, &stepErr) || stepErr.Step != "validate" {
		t.Fatalf("err=%v", err)
	}
	if len(r.calls) != 0 {
		t.Fatalf("retriever called %d times", len(r.calls))
	}
}

func readMetadata(t *testing.T, path string) persist.Metadata {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	var md persist.Metadata
	if err := json.Unmarshal(raw, &md); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	return md
}

func TestRunBatchKeepsDistinctNamesApart(t *testing.T) {
	h := newHarness(t, &fakeRetriever{}, 1)
	report := h.p.RunBatch(context.Background(), []Scenario{
		{Name: "recon alpha", Prompt: "p1"},
		{Name: "recon_alpha", Prompt: "p2"},
		{Name: "侦察", Prompt: "p3"},
		{Name: "recon/alpha", Prompt: "p4"},
	})
	if report.Succeeded != 3 || report.Failed != 1 {
		t.Fatalf("report=%+v", report)
	}
	if report.Items[3].Err == nil || !strings.Contains(report.Items[3].Err.Error(), "already used") {
		t.Fatalf("clash err=%v", report.Items[3].Err)
	}

	wantKeys := []string{"recon alpha_20240305_140709", "recon_alpha_20240305_140709", "侦察_20240305_140709"}
	for i, key := range wantKeys {
		out := report.Items[i].Outcome
		if out.Location.Metadata != filepath.Join(h.root, "metadata", key+".json") {
			t.Fatalf("item %d metadata=%q", i, out.Location.Metadata)
		}
		md := readMetadata(t, out.Location.Metadata)
		if md.Prompt != report.Items[i].Scenario.Prompt || md.Scenario != report.Items[i].Scenario.Name || md.FileKey != key {
			t.Fatalf("item %d metadata=%+v", i, md)
		}
	}
}

func TestRunSameNameConcurrentlyPairsFiles(t *testing.T) {
	h := newHarness(t, &fakeRetriever{}, 1)

	const n = 4
	outs := make([]Outcome, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outs[i], errs[i] = h.p.Run(context.Background(), Scenario{Name: "api_generation", Prompt: fmt.Sprintf("prompt %d", i)})
		}(i)
	}
	wg.Wait()

	paths := map[string]bool{}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("run %d: %v", i, errs[i])
		}
		if paths[outs[i].Location.XML] {
			t.Fatalf("runs share %s", outs[i].Location.XML)
		}
		paths[outs[i].Location.XML] = true

		md := readMetadata(t, outs[i].Location.Metadata)
		if md.RunID != outs[i].RunID || md.Prompt != fmt.Sprintf("prompt %d", i) {
			t.Fatalf("run %d metadata=%+v", i, md)
		}
		xmlBytes, err := os.ReadFile(outs[i].Location.XML)
		if err != nil || string(xmlBytes) != outs[i].Extract.XML {
			t.Fatalf("run %d xml=%q err=%v", i, xmlBytes, err)
		}
	}
}

func TestRunLedgerFailureDoesNotFailRun(t *testing.T) {
	h := newHarness(t, &fakeRetriever{}, 1)
	h.ledger.err = errors.New("db down")
	if _, err := h.p.Run(context.Background(), Scenario{Name: "ok", Prompt: "p"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRunBatchContinuesPastFailures(t *testing.T) {
	for _, conc := range []int{1, 3} {
		h := newHarness(t, &fakeRetriever{matches: []retrieval.Match{textMatch("a", "doctrine")}}, conc)
		report := h.p.RunBatch(context.Background(), []Scenario{
			{Name: "one", Prompt: "Advance"},
			{Name: "two", Prompt: "boom"},
			{Name: "three", Prompt: "Retreat"},
		})
		if report.Succeeded != 2 || report.Failed != 1 {
			t.Fatalf("conc=%d report=%+v", conc, report)
		}
		if report.Items[0].Scenario.Name != "one" || report.Items[2].Scenario.Name != "three" {
			t.Fatalf("conc=%d order=%+v", conc, report.Items)
		}
		if report.Items[1].Err == nil || report.Items[1].Outcome != nil {
			t.Fatalf("conc=%d item=%+v", conc, report.Items[1])
		}
		entries, err := os.ReadDir(filepath.Join(h.root, "xml"))
		if err != nil || len(entries) != 2 {
			t.Fatalf("conc=%d xml entries=%d err=%v", conc, len(entries), err)
		}
	}
}

func TestRunBatchCancelled(t *testing.T) {
	h := newHarness(t, &fakeRetriever{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := h.p.RunBatch(ctx, []Scenario{{Name: "a", Prompt: "p"}, {Name: "b", Prompt: "p"}})
	if report.Failed != 2 {
		t.Fatalf("report=%+v", report)
	}
	if !errors.Is(report.Items[0].Err, context.Canceled) {
		t.Fatalf("err=%v", report.Items[0].Err)
	}
}

func TestRunRecordsMetrics(t *testing.T) {
	h := newHarness(t, &fakeRetriever{}, 1)
	_, _ = h.p.Run(context.Background(), Scenario{Name: "a", Prompt: "p"})
	var b strings.Builder
	if err := h.metrics.WritePrometheus(&b); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := b.String()
	for _, want := range []string{
		`btgen_pipeline_runs_total{status="ok",xml_status="parsed"} 1`,
		`btgen_llm_requests_total{model="bt-adapter",status="ok"} 1`,
		`btgen_pipeline_step_seconds_count{step="save",status="ok"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("metrics missing %q:\n%s", want, out)
		}
	}
}

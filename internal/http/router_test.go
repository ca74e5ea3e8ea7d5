package http

import (
	"context"
	"encoding/json"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/generation"
	httpH "github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/http/handlers"
	httpMW "github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/http/middleware"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/observability"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/persist"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/pipeline"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/logger"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/runlog"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/xmlextract"
)

type fakePipeline struct {
	last pipeline.Scenario
}

func (f *fakePipeline) Run(ctx context.Context, sc pipeline.Scenario) (pipeline.Outcome, error) {
	f.last = sc
	if strings.Contains(sc.Prompt, "boom") {
		return pipeline.Outcome{}, errors.New("engine unavailable")
	}
	return pipeline.Outcome{
		RunID:    "run-" + sc.Name,
		Scenario: sc,
		Context:  "doctrine",
		Extract:  xmlextract.Result{Status: xmlextract.StatusParsed, XML: "<root/>"},
		Metadata: persist.Metadata{Scenario: sc.Name, Prompt: sc.Prompt, ContextChunks: 1},
		Location: persist.Location{XML: "out/xml/" + sc.Name + ".xml", Metadata: "out/metadata/" + sc.Name + ".json"},
	}, nil
}

func (f *fakePipeline) RunBatch(ctx context.Context, scenarios []pipeline.Scenario) pipeline.BatchReport {
	var rep pipeline.BatchReport
	for _, sc := range scenarios {
		out, err := f.Run(ctx, sc)
		it := pipeline.BatchItem{Scenario: sc}
		if err != nil {
			it.Err = err
			rep.Failed++
		} else {
			it.Outcome = &out
			rep.Succeeded++
		}
		rep.Items = append(rep.Items, it)
	}
	return rep
}

type fakeStarter struct{ n int }

func (f *fakeStarter) StartBatch(ctx context.Context, scenarios []pipeline.Scenario) (string, error) {
	f.n = len(scenarios)
	return "btgen-batch-1", nil
}

type fakeComparer struct{ probe bool }

func (f *fakeComparer) CompareAdapter(ctx context.Context, prompt string, cfg generation.DecodingConfig) (generation.Comparison, error) {
	return generation.Comparison{Prompt: prompt, WithAdapter: "a", BaseOnly: "b", Differs: true}, nil
}

func (f *fakeComparer) VerifyAdapter(ctx context.Context) (generation.Comparison, error) {
	f.probe = true
	return generation.Comparison{Prompt: generation.VerifyPrompt}, nil
}

type fakeRuns struct{ limit int }

func (f *fakeRuns) Recent(ctx context.Context, limit int) ([]runlog.Run, error) {
	f.limit = limit
	return []runlog.Run{{ID: "r1", Scenario: "patrol", XMLStatus: "parsed"}}, nil
}

type testServer struct {
	router   *gin.Engine
	pipe     *fakePipeline
	starter  *fakeStarter
	comparer *fakeComparer
	runs     *fakeRuns
	metrics  *observability.Metrics
}

func newTestServer(t *testing.T, withStarter bool, ready error) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.Nop()
	ts := testServer{pipe: &fakePipeline{}, comparer: &fakeComparer{}, runs: &fakeRuns{}, metrics: observability.NewMetrics()}
	var starter httpH.BatchStarter
	if withStarter {
		ts.starter = &fakeStarter{}
		starter = ts.starter
	}
	ts.router = NewRouter(RouterConfig{
		Log:             log,
		Metrics:         ts.metrics,
		MaxRequestBytes: 1 << 10,
		HealthHandler: httpH.NewHealthHandler(httpH.ReadinessCheck{
			Name:  "vector_index",
			Check: func(ctx context.Context) error { return ready },
		}),
		GenerateHandler:  httpH.NewGenerateHandler(log, ts.pipe),
		ScenariosHandler: httpH.NewScenariosHandler(log, ts.pipe, starter),
		AdapterHandler:   httpH.NewAdapterHandler(ts.comparer, generation.DefaultDecoding()),
		RunsHandler:      httpH.NewRunsHandler(ts.runs),
	})
	return ts
}

func (ts testServer) do(method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	var req *nethttp.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t, false, nil)
	if rec, _ := ts.do(nethttp.MethodGet, "/healthz", ""); rec.Code != nethttp.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz=%d %q", rec.Code, rec.Body.String())
	}
	if rec, _ := ts.do(nethttp.MethodGet, "/readyz", ""); rec.Code != nethttp.StatusOK {
		t.Fatalf("readyz=%d", rec.Code)
	}

	down := newTestServer(t, false, errors.New("index not reachable"))
	rec, body := down.do(nethttp.MethodGet, "/readyz", "")
	if rec.Code != nethttp.StatusServiceUnavailable {
		t.Fatalf("readyz=%d", rec.Code)
	}
	checks, _ := body["checks"].(map[string]any)
	if checks["vector_index"] != "index not reachable" {
		t.Fatalf("checks=%v", body)
	}
}

func TestGenerateSuccess(t *testing.T) {
	ts := newTestServer(t, false, nil)
	rec, body := ts.do(nethttp.MethodPost, "/v1/generate", `{"prompt":"Ambush a convoy","top_k":5}`)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if body["success"] != true || body["response"] != "<root/>" || body["context_used"] != true || body["xml_status"] != "parsed" {
		t.Fatalf("body=%v", body)
	}
	if ts.pipe.last.Name != httpH.DefaultScenarioName || ts.pipe.last.TopK != 5 {
		t.Fatalf("scenario=%+v", ts.pipe.last)
	}
	if rec.Header().Get(httpMW.HeaderRequestID) == "" {
		t.Fatalf("missing request id header")
	}
}

func TestGenerateErrors(t *testing.T) {
	ts := newTestServer(t, false, nil)
	cases := []struct {
		body   string
		status int
	}{
		{`{"prompt":"  "}`, nethttp.StatusBadRequest},
		{`{"prompt":`, nethttp.StatusBadRequest},
		{`{"prompt":"p","top_k":-1}`, nethttp.StatusBadRequest},
		{`{"prompt":"p","name":"../.."}`, nethttp.StatusBadRequest},
		{`{"prompt":"boom"}`, nethttp.StatusInternalServerError},
		{`{"prompt":"` + strings.Repeat("a", 2048) + `"}`, nethttp.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		rec, body := ts.do(nethttp.MethodPost, "/v1/generate", tc.body)
		if rec.Code != tc.status {
			t.Fatalf("body=%.40q status=%d want=%d", tc.body, rec.Code, tc.status)
		}
		if body["success"] != false || body["error"] == "" {
			t.Fatalf("response=%v", body)
		}
	}
}

func TestScenariosSync(t *testing.T) {
	ts := newTestServer(t, false, nil)
	rec, body := ts.do(nethttp.MethodPost, "/v1/scenarios", `{"scenarios":[{"name":"a","prompt":"Advance"},{"name":"b","prompt":"boom"}]}`)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if body["succeeded"] != float64(1) || body["failed"] != float64(1) {
		t.Fatalf("body=%v", body)
	}
	results, _ := body["results"].([]any)
	if len(results) != 2 {
		t.Fatalf("results=%v", body["results"])
	}
	first, _ := results[0].(map[string]any)
	if first["xml"] != "<root/>" || first["success"] != true {
		t.Fatalf("first=%v", first)
	}
	md, _ := first["metadata"].(map[string]any)
	if md["scenario"] != "a" {
		t.Fatalf("metadata=%v", md)
	}
	second, _ := results[1].(map[string]any)
	if second["success"] != false || second["error"] != "engine unavailable" {
		t.Fatalf("second=%v", second)
	}
}

func TestScenariosValidation(t *testing.T) {
	ts := newTestServer(t, false, nil)
	for _, b := range []string{`{"scenarios":[]}`, `{"scenarios":[{"name":"a","prompt":"p"},{"name":"a","prompt":"q"}]}`} {
		if rec, _ := ts.do(nethttp.MethodPost, "/v1/scenarios", b); rec.Code != nethttp.StatusBadRequest {
			t.Fatalf("body=%s status=%d", b, rec.Code)
		}
	}
	rec, _ := ts.do(nethttp.MethodPost, "/v1/scenarios", `{"scenarios":[{"name":"a","prompt":"boom"}]}`)
	if rec.Code != nethttp.StatusInternalServerError {
		t.Fatalf("all-failed status=%d", rec.Code)
	}
}

func TestScenariosAsync(t *testing.T) {
	off := newTestServer(t, false, nil)
	if rec, _ := off.do(nethttp.MethodPost, "/v1/scenarios?async=true", `{"scenarios":[{"name":"a","prompt":"p"}]}`); rec.Code != nethttp.StatusServiceUnavailable {
		t.Fatalf("status=%d", rec.Code)
	}

	on := newTestServer(t, true, nil)
	rec, body := on.do(nethttp.MethodPost, "/v1/scenarios?async=true", `{"scenarios":[{"name":"a","prompt":"p"},{"name":"b","prompt":"q"}]}`)
	if rec.Code != nethttp.StatusAccepted || body["workflow_id"] != "btgen-batch-1" {
		t.Fatalf("status=%d body=%v", rec.Code, body)
	}
	if on.starter.n != 2 {
		t.Fatalf("started=%d", on.starter.n)
	}
}

func TestAdapterCompare(t *testing.T) {
	ts := newTestServer(t, false, nil)
	rec, body := ts.do(nethttp.MethodPost, "/v1/adapter/compare", `{"prompt":"Hold the line"}`)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	cmp, _ := body["comparison"].(map[string]any)
	if cmp["differs"] != true || cmp["prompt"] != "Hold the line" {
		t.Fatalf("comparison=%v", cmp)
	}
	if ts.comparer.probe {
		t.Fatalf("probe ran for explicit prompt")
	}

	rec, _ = ts.do(nethttp.MethodPost, "/v1/adapter/compare", "")
	if rec.Code != nethttp.StatusOK || !ts.comparer.probe {
		t.Fatalf("probe status=%d ran=%v", rec.Code, ts.comparer.probe)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, false, nil)
	ts.do(nethttp.MethodGet, "/healthz", "")
	rec, _ := ts.do(nethttp.MethodGet, "/metrics", "")
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `btgen_api_requests_total{method="GET",route="/healthz",status="200"} 1`) {
		t.Fatalf("metrics=%s", rec.Body.String())
	}
}

func TestRecentRuns(t *testing.T) {
	ts := newTestServer(t, false, nil)
	rec, body := ts.do(nethttp.MethodGet, "/v1/runs?limit=500", "")
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	runs, _ := body["runs"].([]any)
	if len(runs) != 1 || ts.runs.limit != 200 {
		t.Fatalf("runs=%v limit=%d", runs, ts.runs.limit)
	}

	rec, _ = ts.do(nethttp.MethodGet, "/v1/runs?limit=abc", "")
	if rec.Code != nethttp.StatusBadRequest {
		t.Fatalf("bad limit status=%d", rec.Code)
	}

	gin.SetMode(gin.TestMode)
	r := NewRouter(RouterConfig{Log: logger.Nop(), RunsHandler: httpH.NewRunsHandler(nil)})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(nethttp.MethodGet, "/v1/runs", nil))
	if w.Code != nethttp.StatusServiceUnavailable {
		t.Fatalf("disabled status=%d", w.Code)
	}
}

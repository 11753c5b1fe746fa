package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/shaiso/Sequencer/internal/domain"
	"github.com/shaiso/Sequencer/internal/engine"
	"github.com/shaiso/Sequencer/internal/functions"
	"github.com/shaiso/Sequencer/internal/orchestrator"
	"github.com/shaiso/Sequencer/internal/planner"
	"github.com/shaiso/Sequencer/internal/repo"
	"github.com/shaiso/Sequencer/internal/telemetry"
)

// memRuns — история runs в памяти.
type memRuns struct {
	runs []domain.Run
}

func (m *memRuns) GetByID(_ context.Context, id uuid.UUID) (*domain.Run, error) {
	for i := range m.runs {
		if m.runs[i].ID == id {
			return &m.runs[i], nil
		}
	}
	return nil, repo.ErrNotFound
}

func (m *memRuns) List(_ context.Context, filter repo.RunFilter) ([]domain.Run, error) {
	var out []domain.Run
	for _, r := range m.runs {
		if filter.Status == "" || r.Status == filter.Status {
			out = append(out, r)
		}
	}
	return out, nil
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
	Error ErrorDetail     `json:"error"`
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, mutate func(*Config)) *httptest.Server {
	t.Helper()
	logger := discard()

	reg, err := functions.NewRegistry(functions.Deps{Logger: logger})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	eng := engine.New(reg, engine.WithLogger(logger))

	cfg := Config{
		Functions:    reg,
		Validator:    eng,
		Orchestrator: orchestrator.New(orchestrator.Config{Executor: eng, MaxSteps: 10, Logger: logger}),
		Planner:      planner.NewChain([]planner.Planner{planner.NewFallbackPlanner()}, planner.WithLogger(logger)),
		Logger:       logger,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	mux := http.NewServeMux()
	NewHandler(cfg).RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, contentType, body string) (int, envelope) {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), method, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	// тело читается до конца: ответ завершён только после всех middleware
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode response: %v\n%s", err, raw)
	}
	return resp.StatusCode, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode data: %v\n%s", err, raw)
	}
	return v
}

const invoicePlan = `{"steps": [
	{"function": "get_invoices", "inputs": {"month": "March"}},
	{"function": "summarize_invoices", "inputs": {"invoices": "$output_0.invoices"}}
]}`

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)

	status, env := do(t, srv, http.MethodGet, "/api/v1/health", "", "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}

	health := decode[HealthResponse](t, env.Data)
	if health.Functions != 25 || health.LLM != "disabled" || health.Database {
		t.Errorf("unexpected health %+v", health)
	}
}

func TestListFunctions(t *testing.T) {
	srv := newTestServer(t, nil)

	status, env := do(t, srv, http.MethodGet, "/api/v1/functions", "", "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}

	fns := decode[[]FunctionResponse](t, env.Data)
	if env.Total != 25 || len(fns) != 25 {
		t.Fatalf("expected 25 functions, got %d", len(fns))
	}
	if fns[0].Name != "get_invoices" || fns[0].Inputs[0].Name != "month" {
		t.Errorf("unexpected first function %+v", fns[0])
	}
}

func TestValidatePlan(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
		wantValid   bool
		wantKind    domain.ErrorKind
	}{
		{
			name:       "valid json",
			body:       invoicePlan,
			wantStatus: http.StatusOK,
			wantValid:  true,
		},
		{
			name:        "valid yaml",
			contentType: "application/yaml",
			body: `steps:
  - function: add_numbers
    inputs: {a: 2, b: 3}
  - function: uppercase_string
    inputs: {text: "$output_0.operation"}
`,
			wantStatus: http.StatusOK,
			wantValid:  true,
		},
		{
			name:       "forward reference",
			body:       `[{"function": "uppercase_string", "inputs": {"text": "$output_1.result"}}, {"function": "add_numbers", "inputs": {"a": 1, "b": 2}}]`,
			wantStatus: http.StatusOK,
			wantKind:   domain.ErrorKindDanglingReference,
		},
		{
			name:       "unknown function",
			body:       `[{"function": "launch_rocket", "inputs": {}}]`,
			wantStatus: http.StatusOK,
			wantKind:   domain.ErrorKindUnknownFunction,
		},
		{
			name:       "broken json",
			body:       `{"steps": [`,
			wantStatus: http.StatusBadRequest,
		},
	}

	srv := newTestServer(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct := tt.contentType
			if ct == "" {
				ct = "application/json"
			}
			status, env := do(t, srv, http.MethodPost, "/api/v1/plans/validate", ct, tt.body)
			if status != tt.wantStatus {
				t.Fatalf("expected %d, got %d (%+v)", tt.wantStatus, status, env.Error)
			}
			if status != http.StatusOK {
				if env.Error.Code != ErrCodeBadRequest {
					t.Errorf("expected BAD_REQUEST, got %s", env.Error.Code)
				}
				return
			}

			report := decode[domain.PlanReport](t, env.Data)
			if report.Valid != tt.wantValid {
				t.Errorf("expected valid=%v, got %+v", tt.wantValid, report)
			}
			if tt.wantKind != "" && (report.Error == nil || report.Error.Kind != tt.wantKind) {
				t.Errorf("expected %s, got %+v", tt.wantKind, report.Error)
			}
		})
	}
}

func TestExecutePlan(t *testing.T) {
	srv := newTestServer(t, nil)

	status, env := do(t, srv, http.MethodPost, "/api/v1/plans/execute", "application/json", invoicePlan)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%+v)", status, env.Error)
	}

	run := decode[RunResponse](t, env.Data)
	if run.Status != string(domain.RunStatusSucceeded) {
		t.Errorf("expected SUCCEEDED, got %s", run.Status)
	}
	if run.Result == nil || run.Result.Status != domain.StatusAllSucceeded || run.Result.FinalStep != 1 {
		t.Fatalf("unexpected result %+v", run.Result)
	}
	total, _, ok := run.Result.FinalOutput.Lookup([]string{"summary", "total_amount"})
	if n, _ := total.AsNumber(); !ok || n != 18700 {
		t.Errorf("expected total 18700, got %v", total)
	}
	if run.Summary == "" {
		t.Error("expected summary")
	}
}

func TestExecutePlan_PartialSuccess(t *testing.T) {
	srv := newTestServer(t, nil)

	body := `[
		{"function": "add_numbers", "inputs": {"a": 1, "b": 2}},
		{"function": "divide_numbers", "inputs": {"a": 1, "b": 0}},
		{"function": "uppercase_string", "inputs": {"text": "done"}}
	]`
	status, env := do(t, srv, http.MethodPost, "/api/v1/plans/execute", "application/json", body)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}

	run := decode[RunResponse](t, env.Data)
	if run.Status != string(domain.RunStatusPartial) || run.Result.Status != domain.StatusPartiallySucceeded {
		t.Errorf("expected partial success, got %s / %s", run.Status, run.Result.Status)
	}
	if run.Result.Steps[1].Error == nil || run.Result.Steps[1].Error.Kind != domain.ErrorKindFunctionExecution {
		t.Errorf("expected function execution error on step 1, got %+v", run.Result.Steps[1])
	}
}

func TestExecutePlan_TooManySteps(t *testing.T) {
	srv := newTestServer(t, nil)

	steps := make([]string, 11)
	for i := range steps {
		steps[i] = `{"function": "get_current_time"}`
	}
	status, env := do(t, srv, http.MethodPost, "/api/v1/plans/execute", "application/json", "["+strings.Join(steps, ",")+"]")
	if status != http.StatusBadRequest || env.Error.Code != ErrCodeBadRequest {
		t.Errorf("expected 400 BAD_REQUEST, got %d %+v", status, env.Error)
	}
}

func TestSubmitPlan_NoStore(t *testing.T) {
	srv := newTestServer(t, nil)

	status, env := do(t, srv, http.MethodPost, "/api/v1/plans/submit", "application/json", invoicePlan)
	if status != http.StatusServiceUnavailable || env.Error.Code != ErrCodeUnavailable {
		t.Errorf("expected 503 UNAVAILABLE, got %d %+v", status, env.Error)
	}
}

func TestPlanQuery(t *testing.T) {
	srv := newTestServer(t, nil)

	status, env := do(t, srv, http.MethodPost, "/api/v1/query/plan", "application/json",
		`{"query": "Get invoices for April and summarize them"}`)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%+v)", status, env.Error)
	}

	resp := decode[QueryPlanResponse](t, env.Data)
	if resp.Source != planner.SourceFallback || len(resp.Plan.Steps) != 2 {
		t.Fatalf("unexpected plan %+v", resp)
	}
	if resp.Plan.Steps[0].Inputs["month"] != "April" {
		t.Errorf("expected April, got %v", resp.Plan.Steps[0].Inputs["month"])
	}
	if resp.Validation == nil || !resp.Validation.Valid {
		t.Errorf("expected valid plan, got %+v", resp.Validation)
	}
}

func TestExecuteQuery(t *testing.T) {
	srv := newTestServer(t, nil)

	status, env := do(t, srv, http.MethodPost, "/api/v1/query/execute", "application/json",
		`{"query": "what is 2 + 3"}`)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%+v)", status, env.Error)
	}

	resp := decode[QueryExecuteResponse](t, env.Data)
	if resp.Run.Query != "what is 2 + 3" || resp.Run.Status != string(domain.RunStatusSucceeded) {
		t.Fatalf("unexpected run %+v", resp.Run)
	}
	result, _ := resp.Run.Result.FinalOutput.Field("result")
	if n, _ := result.AsNumber(); n != 5 {
		t.Errorf("expected 5, got %v", result)
	}
}

func TestExecuteQuery_DryRun(t *testing.T) {
	srv := newTestServer(t, nil)

	status, env := do(t, srv, http.MethodPost, "/api/v1/query/execute", "application/json",
		`{"query": "is 13 prime", "dry_run": true}`)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}

	resp := decode[QueryPlanResponse](t, env.Data)
	if len(resp.Plan.Steps) != 1 || resp.Plan.Steps[0].Function != "check_prime" {
		t.Errorf("unexpected plan %+v", resp.Plan)
	}
}

func TestQueryErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   ErrorCode
	}{
		{"unplannable", `{"query": "sing me a song"}`, http.StatusUnprocessableEntity, ErrCodePlanningFailed},
		{"empty query", `{"query": "   "}`, http.StatusBadRequest, ErrCodeBadRequest},
		{"bad body", `query=x`, http.StatusBadRequest, ErrCodeBadRequest},
	}

	srv := newTestServer(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := do(t, srv, http.MethodPost, "/api/v1/query/execute", "application/json", tt.body)
			if status != tt.wantStatus || env.Error.Code != tt.wantCode {
				t.Errorf("expected %d %s, got %d %s", tt.wantStatus, tt.wantCode, status, env.Error.Code)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, func(c *Config) {
		c.Limiter = rate.NewLimiter(rate.Every(time.Hour), 1)
	})

	body := `{"query": "is 7 prime", "dry_run": true}`
	if status, _ := do(t, srv, http.MethodPost, "/api/v1/query/execute", "application/json", body); status != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", status)
	}

	status, env := do(t, srv, http.MethodPost, "/api/v1/query/execute", "application/json", body)
	if status != http.StatusTooManyRequests || env.Error.Code != ErrCodeRateLimited {
		t.Errorf("expected 429 RATE_LIMITED, got %d %+v", status, env.Error)
	}

	// планы без запроса не ограничиваются
	if status, _ := do(t, srv, http.MethodPost, "/api/v1/plans/validate", "application/json", invoicePlan); status != http.StatusOK {
		t.Errorf("plans must not be rate limited, got %d", status)
	}
}

func TestRuns(t *testing.T) {
	finished := domain.NewRun("add", domain.PlanSpec{Steps: []domain.StepSpec{{Function: "add_numbers"}}})
	finished.MarkFinished(&domain.ExecutionResult{Status: domain.StatusAllSucceeded, FinalStep: -1}, "ok")
	pending := domain.NewRun("", domain.PlanSpec{})
	store := &memRuns{runs: []domain.Run{*finished, *pending}}

	srv := newTestServer(t, func(c *Config) { c.Runs = store })

	t.Run("list", func(t *testing.T) {
		status, env := do(t, srv, http.MethodGet, "/api/v1/runs", "", "")
		if status != http.StatusOK || env.Total != 2 {
			t.Fatalf("expected 2 runs, got %d %d", status, env.Total)
		}
	})

	t.Run("filter", func(t *testing.T) {
		status, env := do(t, srv, http.MethodGet, "/api/v1/runs?status=PENDING", "", "")
		runs := decode[[]RunSummaryResponse](t, env.Data)
		if status != http.StatusOK || len(runs) != 1 || runs[0].ID != pending.ID {
			t.Errorf("unexpected runs %+v", runs)
		}
	})

	t.Run("get", func(t *testing.T) {
		status, env := do(t, srv, http.MethodGet, "/api/v1/runs/"+finished.ID.String(), "", "")
		run := decode[RunResponse](t, env.Data)
		if status != http.StatusOK || run.Summary != "ok" || run.Status != string(domain.RunStatusSucceeded) {
			t.Errorf("unexpected run %d %+v", status, run)
		}
	})

	errorCases := []struct {
		path       string
		wantStatus int
	}{
		{"/api/v1/runs/" + uuid.NewString(), http.StatusNotFound},
		{"/api/v1/runs/not-a-uuid", http.StatusBadRequest},
		{"/api/v1/runs?status=DONE", http.StatusBadRequest},
		{"/api/v1/runs?limit=-1", http.StatusBadRequest},
	}
	for _, tc := range errorCases {
		t.Run(tc.path, func(t *testing.T) {
			if status, _ := do(t, srv, http.MethodGet, tc.path, "", ""); status != tc.wantStatus {
				t.Errorf("expected %d, got %d", tc.wantStatus, status)
			}
		})
	}
}

func TestRuns_NoStore(t *testing.T) {
	srv := newTestServer(t, nil)

	status, env := do(t, srv, http.MethodGet, "/api/v1/runs", "", "")
	if status != http.StatusServiceUnavailable || env.Error.Code != ErrCodeUnavailable {
		t.Errorf("expected 503, got %d %+v", status, env.Error)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, func(c *Config) { c.Metrics = telemetry.NewMetrics(nil) })

	do(t, srv, http.MethodGet, "/api/v1/functions", "", "")

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `sequencer_api_http_requests_total{method="GET",route="GET /api/v1/functions",status="200"} 1`) {
		t.Errorf("expected request counter in metrics output")
	}
}

func TestRecovery(t *testing.T) {
	h := Chain(Recovery(discard()), Logging(discard()))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected request id header")
	}
}

func TestIsYAML(t *testing.T) {
	tests := map[string]bool{
		"application/yaml":               true,
		"application/x-yaml":             true,
		"text/yaml; charset=utf-8":       true,
		"application/json":               false,
		"":                               false,
		"application/json; charset=utf8": false,
	}
	for ct, want := range tests {
		if got := isYAML(ct); got != want {
			t.Errorf("isYAML(%q) = %v, want %v", ct, got, want)
		}
	}
}

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// ParamResponse — параметр или поле функции.
type ParamResponse struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional,omitempty"`
}

// FunctionResponse — функция из реестра.
type FunctionResponse struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Inputs      []ParamResponse `json:"inputs"`
	Outputs     []ParamResponse `json:"outputs"`
}

// FailureResponse — ошибка шага.
type FailureResponse struct {
	Step     int    `json:"step"`
	Function string `json:"function,omitempty"`
	Param    string `json:"param,omitempty"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	Cause    string `json:"cause,omitempty"`
}

func (f *FailureResponse) String() string {
	if f == nil {
		return ""
	}
	return f.Kind + ": " + f.Message
}

// StepReportResponse — проверка одного шага.
type StepReportResponse struct {
	Step     int              `json:"step"`
	Function string           `json:"function"`
	OK       bool             `json:"ok"`
	Warnings []string         `json:"warnings,omitempty"`
	Error    *FailureResponse `json:"error,omitempty"`
}

// PlanReportResponse — отчёт проверки плана.
type PlanReportResponse struct {
	Valid      bool                 `json:"valid"`
	Message    string               `json:"message"`
	TotalSteps int                  `json:"total_steps"`
	Steps      []StepReportResponse `json:"steps"`
	Error      *FailureResponse     `json:"error,omitempty"`
}

// StepResultResponse — исход шага.
type StepResultResponse struct {
	Step     int              `json:"step"`
	Function string           `json:"function"`
	Outcome  string           `json:"outcome"`
	Output   json.RawMessage  `json:"output,omitempty"`
	Error    *FailureResponse `json:"error,omitempty"`
}

// ResultResponse — итог выполнения плана.
type ResultResponse struct {
	Status      string               `json:"status"`
	StepResults []StepResultResponse `json:"step_results"`
	FinalOutput json.RawMessage      `json:"final_output"`
	FinalStep   int                  `json:"final_step"`
	Error       *FailureResponse     `json:"error,omitempty"`
}

// RunResponse — run из API.
type RunResponse struct {
	ID         string          `json:"id"`
	Query      string          `json:"query,omitempty"`
	Plan       json.RawMessage `json:"plan,omitempty"`
	Status     string          `json:"status"`
	Result     *ResultResponse `json:"result,omitempty"`
	Summary    string          `json:"summary,omitempty"`
	StartedAt  string          `json:"started_at,omitempty"`
	FinishedAt string          `json:"finished_at,omitempty"`
	DurationMs int64           `json:"duration_ms,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  string          `json:"created_at"`
}

// RunSummaryResponse — run в списке.
type RunSummaryResponse struct {
	ID         string `json:"id"`
	Query      string `json:"query,omitempty"`
	Status     string `json:"status"`
	Steps      int    `json:"steps"`
	Summary    string `json:"summary,omitempty"`
	FinishedAt string `json:"finished_at,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// QueryPlanResponse — план, составленный по запросу.
type QueryPlanResponse struct {
	Query      string              `json:"query"`
	Source     string              `json:"source"`
	Plan       json.RawMessage     `json:"plan"`
	Validation *PlanReportResponse `json:"validation"`
}

// QueryExecuteResponse — выполненный запрос.
type QueryExecuteResponse struct {
	Query  string      `json:"query"`
	Source string      `json:"source"`
	Run    RunResponse `json:"run"`
}

// --- Request types ---

// QueryRequest — запрос на естественном языке.
type QueryRequest struct {
	Query  string `json:"query"`
	DryRun bool   `json:"dry_run,omitempty"`
}

// ListRunsOpts — параметры фильтрации runs.
type ListRunsOpts struct {
	Status string
	Limit  int
	Offset int
}

// PlanFile — содержимое файла плана.
type PlanFile struct {
	Data []byte
	YAML bool
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError — ошибка, возвращённая сервером.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: HTTP %d", e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// --- Client ---

// Client — HTTP-клиент для Sequencer API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
// Выполнение плана ждёт ответа модели, поэтому таймаут больше обычного.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

// --- Functions ---

// ListFunctions возвращает каталог функций.
func (c *Client) ListFunctions(ctx context.Context) ([]FunctionResponse, error) {
	var fns []FunctionResponse
	_, err := c.list(ctx, "/api/v1/functions", nil, &fns)
	return fns, err
}

// --- Plans ---

// ValidatePlan выполняет dry run плана.
func (c *Client) ValidatePlan(ctx context.Context, plan PlanFile) (*PlanReportResponse, error) {
	var report PlanReportResponse
	err := c.postPlan(ctx, "/api/v1/plans/validate", plan, &report)
	return &report, err
}

// ExecutePlan выполняет план синхронно.
func (c *Client) ExecutePlan(ctx context.Context, plan PlanFile) (*RunResponse, error) {
	var run RunResponse
	err := c.postPlan(ctx, "/api/v1/plans/execute", plan, &run)
	return &run, err
}

// SubmitPlan ставит план в очередь.
func (c *Client) SubmitPlan(ctx context.Context, plan PlanFile) (*RunResponse, error) {
	var run RunResponse
	err := c.postPlan(ctx, "/api/v1/plans/submit", plan, &run)
	return &run, err
}

// --- Queries ---

// PlanQuery составляет план по запросу без выполнения.
func (c *Client) PlanQuery(ctx context.Context, query string) (*QueryPlanResponse, error) {
	var resp QueryPlanResponse
	err := c.post(ctx, "/api/v1/query/plan", QueryRequest{Query: query}, &resp)
	return &resp, err
}

// ExecuteQuery составляет и выполняет план по запросу.
func (c *Client) ExecuteQuery(ctx context.Context, query string) (*QueryExecuteResponse, error) {
	var resp QueryExecuteResponse
	err := c.post(ctx, "/api/v1/query/execute", QueryRequest{Query: query}, &resp)
	return &resp, err
}

// --- Runs ---

// ListRuns возвращает список runs с фильтрацией.
func (c *Client) ListRuns(ctx context.Context, opts ListRunsOpts) ([]RunSummaryResponse, int, error) {
	params := url.Values{}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		params.Set("offset", strconv.Itoa(opts.Offset))
	}

	var runs []RunSummaryResponse
	total, err := c.list(ctx, "/api/v1/runs", params, &runs)
	return runs, total, err
}

// GetRun возвращает run по ID.
func (c *Client) GetRun(ctx context.Context, id string) (*RunResponse, error) {
	var run RunResponse
	err := c.get(ctx, "/api/v1/runs/"+url.PathEscape(id), &run)
	return &run, err
}

// --- HTTP helpers ---

func (c *Client) get(ctx context.Context, path string, result any) error {
	return c.doData(ctx, http.MethodGet, path, nil, "", result)
}

func (c *Client) post(ctx context.Context, path string, body any, result any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.doData(ctx, http.MethodPost, path, bytes.NewReader(data), "application/json", result)
}

func (c *Client) postPlan(ctx context.Context, path string, plan PlanFile, result any) error {
	contentType := "application/json"
	if plan.YAML {
		contentType = "application/yaml"
	}
	return c.doData(ctx, http.MethodPost, path, bytes.NewReader(plan.Data), contentType, result)
}

func (c *Client) list(ctx context.Context, path string, params url.Values, result any) (int, error) {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return 0, err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}

	return lr.Total, json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(ctx context.Context, method, path string, body io.Reader, contentType string, result any) error {
	resp, err := c.do(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	apiErr := &APIError{Status: resp.StatusCode}
	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err == nil {
		apiErr.Code = er.Error.Code
		apiErr.Message = er.Error.Message
	}
	return apiErr
}

// IsNotFound проверяет, что сервер ответил 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

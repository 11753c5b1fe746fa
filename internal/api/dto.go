package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Sequencer/internal/domain"
	"github.com/shaiso/Sequencer/internal/planner"
)

// Function DTOs

// FunctionResponse — описание функции реестра.
type FunctionResponse struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Inputs      []domain.Param `json:"inputs"`
	Outputs     []domain.Field `json:"outputs"`
}

// FunctionFromDomain конвертирует domain.FunctionSpec в FunctionResponse.
func FunctionFromDomain(f domain.FunctionSpec) FunctionResponse {
	inputs := f.Inputs
	if inputs == nil {
		inputs = []domain.Param{}
	}
	return FunctionResponse{
		Name:        f.Name,
		Description: f.Description,
		Inputs:      inputs,
		Outputs:     f.Outputs,
	}
}

// Query DTOs

// QueryRequest — запрос на естественном языке.
type QueryRequest struct {
	Query string `json:"query"`

	// DryRun — только составить и проверить план (для /query/execute).
	DryRun bool `json:"dry_run,omitempty"`
}

// QueryPlanResponse — план, составленный по запросу, и его проверка.
type QueryPlanResponse struct {
	Query      string             `json:"query"`
	Source     string             `json:"source"`
	Plan       domain.PlanSpec    `json:"plan"`
	Validation *domain.PlanReport `json:"validation"`
}

// QueryPlanFromRaw собирает QueryPlanResponse.
func QueryPlanFromRaw(query string, raw *planner.RawPlan, report *domain.PlanReport) QueryPlanResponse {
	return QueryPlanResponse{
		Query:      query,
		Source:     raw.Source,
		Plan:       raw.Spec,
		Validation: report,
	}
}

// QueryExecuteResponse — результат выполнения запроса.
type QueryExecuteResponse struct {
	Query  string      `json:"query"`
	Source string      `json:"source"`
	Run    RunResponse `json:"run"`
}

// Run DTOs

// RunResponse — ответ с run.
type RunResponse struct {
	ID         uuid.UUID               `json:"id"`
	Query      string                  `json:"query,omitempty"`
	Plan       domain.PlanSpec         `json:"plan"`
	Status     string                  `json:"status"`
	Result     *domain.ExecutionResult `json:"result,omitempty"`
	Summary    string                  `json:"summary,omitempty"`
	StartedAt  *time.Time              `json:"started_at,omitempty"`
	FinishedAt *time.Time              `json:"finished_at,omitempty"`
	DurationMs int64                   `json:"duration_ms,omitempty"`
	Error      string                  `json:"error,omitempty"`
	CreatedAt  time.Time               `json:"created_at"`
}

// RunFromDomain конвертирует domain.Run в RunResponse.
func RunFromDomain(r domain.Run) RunResponse {
	return RunResponse{
		ID:         r.ID,
		Query:      r.Query,
		Plan:       r.Plan,
		Status:     string(r.Status),
		Result:     r.Result,
		Summary:    r.Summary,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		DurationMs: r.Duration().Milliseconds(),
		Error:      r.Error,
		CreatedAt:  r.CreatedAt,
	}
}

// RunSummaryResponse — run в списке, без плана и результата.
type RunSummaryResponse struct {
	ID         uuid.UUID  `json:"id"`
	Query      string     `json:"query,omitempty"`
	Status     string     `json:"status"`
	Steps      int        `json:"steps"`
	Summary    string     `json:"summary,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// RunSummaryFromDomain конвертирует domain.Run в RunSummaryResponse.
func RunSummaryFromDomain(r domain.Run) RunSummaryResponse {
	return RunSummaryResponse{
		ID:         r.ID,
		Query:      r.Query,
		Status:     string(r.Status),
		Steps:      len(r.Plan.Steps),
		Summary:    r.Summary,
		FinishedAt: r.FinishedAt,
		CreatedAt:  r.CreatedAt,
	}
}

// Health DTOs

// HealthResponse — состояние сервиса.
type HealthResponse struct {
	Status    string `json:"status"`
	Functions int    `json:"functions"`
	LLM       string `json:"llm"`
	Database  bool   `json:"database"`
}

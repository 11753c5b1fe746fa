package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run — сохранённое выполнение плана.
//
// Run создаётся когда:
// - Клиент выполняет план синхронно (через API/CLI) — сразу с результатом
// - Клиент отправляет план на асинхронное выполнение — в статусе PENDING,
//   его подхватывает worker
// - Запрос на естественном языке превращается в план и выполняется
type Run struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// Query — исходный запрос на естественном языке (если был).
	Query string `json:"query,omitempty"`

	// Plan — план в исходном виде.
	Plan PlanSpec `json:"plan"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// Result — результат выполнения. Nil, пока run не завершён.
	Result *ExecutionResult `json:"result,omitempty"`

	// Summary — человекочитаемое описание результата.
	Summary string `json:"summary,omitempty"`

	// StartedAt — время начала выполнения (когда статус стал RUNNING).
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки, если run не удалось выполнить.
	Error string `json:"error,omitempty"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// NewRun создаёт run в статусе PENDING.
func NewRun(query string, plan PlanSpec) *Run {
	return &Run{
		ID:        uuid.New(),
		Query:     query,
		Plan:      plan,
		Status:    RunStatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён (в любом статусе).
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkRunning переводит run в статус RUNNING.
func (r *Run) MarkRunning() {
	now := time.Now().UTC()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// MarkFinished сохраняет результат и выставляет статус по нему.
func (r *Run) MarkFinished(result *ExecutionResult, summary string) {
	now := time.Now().UTC()
	if r.StartedAt == nil {
		started := result.StartedAt
		if started.IsZero() {
			started = now
		}
		r.StartedAt = &started
	}
	r.Result = result
	r.Summary = summary
	r.Status = RunStatusFromResult(result.Status)
	r.FinishedAt = &now
	if result.Error != nil {
		r.Error = result.Error.Message
	}
}

// MarkFailed переводит run в статус FAILED с ошибкой.
func (r *Run) MarkFailed(err string) {
	now := time.Now().UTC()
	r.Status = RunStatusFailed
	r.FinishedAt = &now
	r.Error = err
}

package domain

import "time"

// Status — итог выполнения плана.
//
// Четыре значения: all-succeeded, partially-succeeded, failed-before-start
// и failed (функции вызывались, но успешных шагов нет).
type Status string

const (
	// StatusAllSucceeded — все шаги выполнены успешно (в том числе пустой план).
	StatusAllSucceeded Status = "all-succeeded"

	// StatusPartiallySucceeded — хотя бы один шаг успешен и хотя бы один упал.
	StatusPartiallySucceeded Status = "partially-succeeded"

	// StatusFailedBeforeStart — план отклонён на проверке, ни одна функция не вызвана.
	StatusFailedBeforeStart Status = "failed-before-start"

	// StatusFailed — функции вызывались, но ни одна не завершилась успешно.
	StatusFailed Status = "failed"
)

// Outcome — исход отдельного шага.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// ErrorKind — вид ошибки шага.
type ErrorKind string

const (
	ErrorKindUnknownFunction    ErrorKind = "UNKNOWN_FUNCTION"
	ErrorKindMissingInput       ErrorKind = "MISSING_INPUT"
	ErrorKindMalformedReference ErrorKind = "MALFORMED_REFERENCE"
	ErrorKindDanglingReference  ErrorKind = "DANGLING_REFERENCE"
	ErrorKindMissingField       ErrorKind = "MISSING_FIELD"
	ErrorKindFunctionExecution  ErrorKind = "FUNCTION_EXECUTION_ERROR"
)

// IsPlanLevel возвращает true для ошибок, означающих дефект самого плана.
func (k ErrorKind) IsPlanLevel() bool {
	switch k {
	case ErrorKindUnknownFunction, ErrorKindMissingInput, ErrorKindMalformedReference:
		return true
	default:
		return false
	}
}

// Failure — описание ошибки для отчёта.
type Failure struct {
	Step     int       `json:"step"`
	Function string    `json:"function,omitempty"`
	Param    string    `json:"param,omitempty"`
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`

	// Cause — ошибка шага-источника, если эта ошибка — следствие его падения.
	Cause string `json:"cause,omitempty"`
}

// StepResult — исход одного шага.
type StepResult struct {
	Index     int              `json:"step"`
	Function  string           `json:"function"`
	OutputVar string           `json:"output_var,omitempty"`
	Outcome   Outcome          `json:"outcome"`
	Inputs    map[string]Value `json:"inputs,omitempty"`
	Output    *Value           `json:"output,omitempty"`
	Error     *Failure         `json:"error,omitempty"`
	Duration  time.Duration    `json:"duration_ns,omitempty"`
}

// Succeeded проверяет, выполнен ли шаг успешно.
func (r StepResult) Succeeded() bool { return r.Outcome == OutcomeSucceeded }

// ExecutionResult — итог выполнения плана.
type ExecutionResult struct {
	Status Status       `json:"status"`
	Steps  []StepResult `json:"step_results"`

	// FinalOutput — output последнего успешного шага, nil если таких нет.
	FinalOutput *Value `json:"final_output"`

	// FinalStep — индекс шага, давшего FinalOutput, или -1.
	FinalStep int `json:"final_step"`

	// Error — ошибка, остановившая выполнение (проверка плана или разрешение ссылок).
	Error *Failure `json:"error,omitempty"`

	// Err — та же ошибка в виде Go error для errors.Is/As.
	Err error `json:"-"`

	// Outputs — содержимое OutputStore по именам output_N.
	Outputs map[string]Value `json:"outputs,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Count возвращает количество шагов с указанным исходом.
func (r *ExecutionResult) Count(o Outcome) int {
	n := 0
	for _, s := range r.Steps {
		if s.Outcome == o {
			n++
		}
	}
	return n
}

// Duration возвращает продолжительность выполнения.
func (r *ExecutionResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// StepReport — результат проверки одного шага в dry run.
type StepReport struct {
	Index       int              `json:"step"`
	Function    string           `json:"function"`
	Description string           `json:"description,omitempty"`
	OutputVar   string           `json:"output_var,omitempty"`
	OK          bool             `json:"ok"`
	Inputs      map[string]Value `json:"inputs,omitempty"`
	Warnings    []string         `json:"warnings,omitempty"`
	Error       *Failure         `json:"error,omitempty"`
}

// PlanReport — отчёт dry run.
type PlanReport struct {
	Valid      bool         `json:"valid"`
	Message    string       `json:"message"`
	TotalSteps int          `json:"total_steps"`
	Steps      []StepReport `json:"steps"`
	Error      *Failure     `json:"error,omitempty"`
	Err        error        `json:"-"`
}

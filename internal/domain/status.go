package domain

// RunStatus — статус сохранённого run.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ PARTIAL
//	                  ↘ FAILED
type RunStatus string

const (
	// RunStatusPending — run создан, но ещё не начал выполняться.
	RunStatusPending RunStatus = "PENDING"

	// RunStatusRunning — run в процессе выполнения.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusSucceeded — все шаги плана выполнены.
	RunStatusSucceeded RunStatus = "SUCCEEDED"

	// RunStatusPartial — часть шагов выполнена, часть упала.
	RunStatusPartial RunStatus = "PARTIAL"

	// RunStatusFailed — план отклонён или ни один шаг не выполнен.
	RunStatusFailed RunStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusPartial, RunStatusFailed:
		return true
	default:
		return false
	}
}

// IsValid проверяет, известен ли статус.
func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusSucceeded, RunStatusPartial, RunStatusFailed:
		return true
	default:
		return false
	}
}

// RunStatusFromResult отображает итог выполнения на статус run.
func RunStatusFromResult(s Status) RunStatus {
	switch s {
	case StatusAllSucceeded:
		return RunStatusSucceeded
	case StatusPartiallySucceeded:
		return RunStatusPartial
	default:
		return RunStatusFailed
	}
}

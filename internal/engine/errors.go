package engine

import (
	"errors"
	"fmt"

	"github.com/shaiso/Sequencer/internal/domain"
	"github.com/shaiso/Sequencer/internal/registry"
)

// Ошибки проверки плана.
var (
	// ErrConfiguration — план ссылается на несуществующую функцию
	// или не связывает обязательный параметр. Такой план не выполняется вовсе.
	ErrConfiguration = errors.New("plan configuration error")

	// ErrUnknownFunction — функция не найдена в реестре.
	ErrUnknownFunction = registry.ErrUnknownFunction

	// ErrMissingInput — обязательный параметр функции не связан.
	ErrMissingInput = errors.New("missing required input")
)

// Ошибки ссылок.
var (
	// ErrMalformedReference — строка-ссылка не соответствует синтаксису.
	ErrMalformedReference = errors.New("malformed reference")

	// ErrDanglingReference — ссылка на output, которого нет в OutputStore.
	ErrDanglingReference = errors.New("dangling reference")

	// ErrMissingField — путь ссылки не разрешается внутри output.
	ErrMissingField = errors.New("missing field")
)

// Ошибки выполнения.
var (
	// ErrFunctionExecution — функция вернула ошибку.
	ErrFunctionExecution = errors.New("function execution failed")

	// ErrInvalidOutput — функция вернула не запись.
	ErrInvalidOutput = errors.New("function output is not a record")

	// ErrFunctionPanic — реализация функции запаниковала.
	ErrFunctionPanic = errors.New("function panicked")

	// ErrOutputExists — output с таким индексом уже записан.
	ErrOutputExists = errors.New("output already stored")
)

// StepError — ошибка шага с контекстом.
type StepError struct {
	Index    int              // индекс шага
	Function string           // имя функции шага
	Param    string           // параметр, вызвавший ошибку
	Kind     domain.ErrorKind // вид ошибки
	Err      error            // базовая ошибка
}

// Error реализует интерфейс error.
func (e *StepError) Error() string {
	prefix := fmt.Sprintf("step %d", e.Index)
	if e.Function != "" {
		prefix += " (" + e.Function + ")"
	}
	if e.Param != "" {
		prefix += " input " + e.Param
	}
	return prefix + ": " + e.Err.Error()
}

// Unwrap возвращает базовую ошибку.
func (e *StepError) Unwrap() error {
	return e.Err
}

// Is позволяет проверять ошибки конфигурации через errors.Is(err, ErrConfiguration).
func (e *StepError) Is(target error) bool {
	if target != ErrConfiguration {
		return false
	}
	return e.Kind == domain.ErrorKindUnknownFunction || e.Kind == domain.ErrorKindMissingInput
}

// Failure возвращает описание ошибки для отчёта.
func (e *StepError) Failure() *domain.Failure {
	return &domain.Failure{
		Step:     e.Index,
		Function: e.Function,
		Param:    e.Param,
		Kind:     e.Kind,
		Message:  e.Err.Error(),
	}
}

// NewStepError создаёт ошибку шага. Вид ошибки определяется по err.
func NewStepError(index int, function, param string, err error) *StepError {
	return &StepError{
		Index:    index,
		Function: function,
		Param:    param,
		Kind:     KindOf(err),
		Err:      err,
	}
}

// KindOf определяет вид ошибки по цепочке обёрток.
func KindOf(err error) domain.ErrorKind {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Kind
	}

	switch {
	case errors.Is(err, ErrUnknownFunction):
		return domain.ErrorKindUnknownFunction
	case errors.Is(err, ErrMissingInput):
		return domain.ErrorKindMissingInput
	case errors.Is(err, ErrMalformedReference):
		return domain.ErrorKindMalformedReference
	case errors.Is(err, ErrDanglingReference):
		return domain.ErrorKindDanglingReference
	case errors.Is(err, ErrMissingField):
		return domain.ErrorKindMissingField
	default:
		return domain.ErrorKindFunctionExecution
	}
}

// ReferenceError — ошибка разрешения конкретной ссылки.
type ReferenceError struct {
	Ref domain.Reference
	Err error
}

// Error реализует интерфейс error.
func (e *ReferenceError) Error() string {
	return e.Err.Error()
}

// Unwrap возвращает базовую ошибку.
func (e *ReferenceError) Unwrap() error {
	return e.Err
}

package functions

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shaiso/Sequencer/internal/domain"
)

// Ошибки функций.
var (
	// ErrInvalidArgument — аргумент несовместим с параметром.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDivisionByZero — деление на ноль.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrNoStore — хранилище файлов не настроено.
	ErrNoStore = errors.New("file storage is not configured")

	// ErrBadStatus — сервер ответил неуспешным статусом.
	ErrBadStatus = errors.New("unexpected HTTP status")
)

// ArgError — аргумент функции не прошёл проверку типа.
type ArgError struct {
	Param string
	Want  string
	Got   string
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("%s %q: expected %s, got %s", ErrInvalidArgument, e.Param, e.Want, e.Got)
}

func (e *ArgError) Unwrap() error {
	return ErrInvalidArgument
}

func argError(param, want string, v domain.Value, present bool) *ArgError {
	got := "nothing"
	if present {
		got = v.Kind().String()
	}
	return &ArgError{Param: param, Want: want, Got: got}
}

// stringArg извлекает строку.
func stringArg(args domain.Args, name string) (string, error) {
	v, ok := args[name]
	if s, isStr := v.AsString(); ok && isStr {
		return s, nil
	}
	return "", argError(name, "string", v, ok)
}

// numberArg извлекает число. Строка с числом тоже принимается.
func numberArg(args domain.Args, name string) (float64, error) {
	v, ok := args[name]
	if !ok {
		return 0, argError(name, "number", v, ok)
	}
	if n, isNum := v.AsNumber(); isNum {
		return n, nil
	}
	if s, isStr := v.AsString(); isStr {
		if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return n, nil
		}
	}
	return 0, argError(name, "number", v, ok)
}

// intArg извлекает целое число.
func intArg(args domain.Args, name string) (int, error) {
	n, err := numberArg(args, name)
	if err != nil {
		return 0, err
	}
	i, ok := domain.Number(n).AsInt()
	if !ok {
		return 0, &ArgError{Param: name, Want: "integer", Got: strconv.FormatFloat(n, 'f', -1, 64)}
	}
	return i, nil
}

// recordsArg извлекает список записей.
func recordsArg(args domain.Args, name string) ([]domain.Value, error) {
	v, ok := args[name]
	items, isList := v.Items()
	if !ok || !isList {
		return nil, argError(name, "list of records", v, ok)
	}
	for i, item := range items {
		if item.Kind() != domain.KindRecord {
			return nil, argError(fmt.Sprintf("%s[%d]", name, i), "record", item, true)
		}
	}
	return items, nil
}

// numericField возвращает числовое поле записи. Отсутствующее или
// нечисловое поле считается нулём.
func numericField(item domain.Value, field string) float64 {
	v, ok := item.Field(field)
	if !ok {
		return 0
	}
	if n, ok := v.AsNumber(); ok {
		return n
	}
	if s, ok := v.AsString(); ok {
		if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return n
		}
	}
	return 0
}

// formatNumber форматирует число без лишних нулей.
func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

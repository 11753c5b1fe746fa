// Package registry содержит реестр функций, доступных плану.
//
// Реестр строится один раз при старте процесса и дальше только читается:
// методов изменения нет, поэтому его можно разделять между любым
// количеством одновременных выполнений без блокировок.
package registry

import (
	"errors"
	"fmt"

	"github.com/shaiso/Sequencer/internal/domain"
)

// Ошибки реестра.
var (
	// ErrUnknownFunction — функция не найдена в реестре.
	ErrUnknownFunction = errors.New("unknown function")

	// ErrDuplicateFunction — функция с таким именем уже зарегистрирована.
	ErrDuplicateFunction = errors.New("duplicate function")

	// ErrInvalidFunction — описание функции некорректно.
	ErrInvalidFunction = errors.New("invalid function spec")
)

// Registry — неизменяемый реестр функций.
//
// Функции хранятся в порядке регистрации: этот порядок используется
// в листинге и в промпте планировщика.
type Registry struct {
	specs []domain.FunctionSpec
	index map[string]int
}

// New создаёт реестр из описаний функций.
// Возвращает ошибку при пустом имени, отсутствии реализации,
// дублировании имён функций или параметров.
func New(specs ...domain.FunctionSpec) (*Registry, error) {
	r := &Registry{
		specs: make([]domain.FunctionSpec, 0, len(specs)),
		index: make(map[string]int, len(specs)),
	}

	for _, spec := range specs {
		if err := validateSpec(spec); err != nil {
			return nil, err
		}
		if _, exists := r.index[spec.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateFunction, spec.Name)
		}
		r.index[spec.Name] = len(r.specs)
		r.specs = append(r.specs, spec)
	}

	return r, nil
}

// MustNew — как New, но паникует при ошибке.
func MustNew(specs ...domain.FunctionSpec) *Registry {
	r, err := New(specs...)
	if err != nil {
		panic(err)
	}
	return r
}

func validateSpec(spec domain.FunctionSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidFunction)
	}
	if spec.Impl == nil {
		return fmt.Errorf("%w: %s has no implementation", ErrInvalidFunction, spec.Name)
	}

	seen := make(map[string]bool, len(spec.Inputs))
	for _, p := range spec.Inputs {
		if p.Name == "" || seen[p.Name] {
			return fmt.Errorf("%w: %s has empty or duplicate input %q", ErrInvalidFunction, spec.Name, p.Name)
		}
		seen[p.Name] = true
	}

	seen = make(map[string]bool, len(spec.Outputs))
	for _, o := range spec.Outputs {
		if o.Name == "" || seen[o.Name] {
			return fmt.Errorf("%w: %s has empty or duplicate output %q", ErrInvalidFunction, spec.Name, o.Name)
		}
		seen[o.Name] = true
	}

	return nil
}

// Lookup возвращает функцию по имени.
// Возвращает ErrUnknownFunction, если функция не найдена.
func (r *Registry) Lookup(name string) (domain.FunctionSpec, error) {
	i, exists := r.index[name]
	if !exists {
		return domain.FunctionSpec{}, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}
	return r.specs[i], nil
}

// Has проверяет, зарегистрирована ли функция.
func (r *Registry) Has(name string) bool {
	_, exists := r.index[name]
	return exists
}

// List возвращает все функции в порядке регистрации.
func (r *Registry) List() []domain.FunctionSpec {
	out := make([]domain.FunctionSpec, len(r.specs))
	copy(out, r.specs)
	return out
}

// Names возвращает имена функций в порядке регистрации.
func (r *Registry) Names() []string {
	names := make([]string, len(r.specs))
	for i, s := range r.specs {
		names[i] = s.Name
	}
	return names
}

// Len возвращает количество зарегистрированных функций.
func (r *Registry) Len() int {
	return len(r.specs)
}

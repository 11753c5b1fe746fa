package engine

import (
	"fmt"
	"sort"

	"github.com/shaiso/Sequencer/internal/domain"
)

// Outputs — источник outputs шагов для разрешения ссылок.
type Outputs interface {
	// Output возвращает output шага с индексом i.
	Output(i int) (domain.Value, bool)
}

// OutputStore — накапливаемые outputs шагов одного выполнения.
//
// Только добавление: записанный output не перезаписывается.
// Каждое выполнение создаёт свой OutputStore; блокировок нет,
// так как шаги одного плана выполняются последовательно.
type OutputStore struct {
	values map[int]domain.Value
}

// NewOutputStore создаёт пустое хранилище.
func NewOutputStore() *OutputStore {
	return &OutputStore{values: make(map[int]domain.Value)}
}

// Put сохраняет output шага i.
// Возвращает ErrOutputExists, если output уже записан.
func (s *OutputStore) Put(i int, v domain.Value) error {
	if _, exists := s.values[i]; exists {
		return fmt.Errorf("%w: %s", ErrOutputExists, domain.OutputName(i))
	}
	s.values[i] = v
	return nil
}

// Output реализует Outputs.
func (s *OutputStore) Output(i int) (domain.Value, bool) {
	v, ok := s.values[i]
	return v, ok
}

// Len возвращает количество записанных outputs.
func (s *OutputStore) Len() int {
	return len(s.values)
}

// Indices возвращает индексы записанных шагов по возрастанию.
func (s *OutputStore) Indices() []int {
	idx := make([]int, 0, len(s.values))
	for i := range s.values {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

// Snapshot возвращает outputs по именам output_N.
func (s *OutputStore) Snapshot() map[string]domain.Value {
	out := make(map[string]domain.Value, len(s.values))
	for i, v := range s.values {
		out[domain.OutputName(i)] = v
	}
	return out
}

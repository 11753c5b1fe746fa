package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shaiso/Sequencer/internal/domain"
)

func noop(context.Context, domain.Args) (domain.Value, error) {
	return domain.Record(nil), nil
}

func spec(name string) domain.FunctionSpec {
	return domain.FunctionSpec{
		Name:    name,
		Inputs:  []domain.Param{{Name: "x", Type: domain.TypeAny}},
		Outputs: []domain.Field{{Name: "y", Type: domain.TypeAny}},
		Impl:    noop,
	}
}

func TestRegistry(t *testing.T) {
	r, err := New(spec("b"), spec("a"), spec("c"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if r.Len() != 3 {
		t.Errorf("expected 3 functions, got %d", r.Len())
	}

	// Порядок регистрации сохраняется
	names := r.Names()
	want := []string{"b", "a", "c"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %s, want %s", i, names[i], want[i])
		}
	}

	fn, err := r.Lookup("a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fn.Name != "a" {
		t.Errorf("expected a, got %s", fn.Name)
	}

	_, err = r.Lookup("unknown")
	if !errors.Is(err, ErrUnknownFunction) {
		t.Errorf("expected ErrUnknownFunction, got %v", err)
	}

	if !r.Has("c") || r.Has("unknown") {
		t.Error("Has returned wrong result")
	}
}

func TestRegistry_ListIsCopy(t *testing.T) {
	r := MustNew(spec("a"), spec("b"))

	list := r.List()
	list[0].Name = "mutated"

	if _, err := r.Lookup("a"); err != nil {
		t.Errorf("registry mutated through List(): %v", err)
	}
	if r.List()[0].Name != "a" {
		t.Error("List() exposed internal slice")
	}
}

func TestNew_Invalid(t *testing.T) {
	noImpl := spec("x")
	noImpl.Impl = nil

	dupInput := spec("y")
	dupInput.Inputs = append(dupInput.Inputs, domain.Param{Name: "x"})

	tests := []struct {
		name  string
		specs []domain.FunctionSpec
		want  error
	}{
		{"duplicate name", []domain.FunctionSpec{spec("a"), spec("a")}, ErrDuplicateFunction},
		{"empty name", []domain.FunctionSpec{spec("")}, ErrInvalidFunction},
		{"no implementation", []domain.FunctionSpec{noImpl}, ErrInvalidFunction},
		{"duplicate input", []domain.FunctionSpec{dupInput}, ErrInvalidFunction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.specs...)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRegistry_ConcurrentReads(t *testing.T) {
	r := MustNew(spec("a"), spec("b"))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if _, err := r.Lookup("a"); err != nil {
					t.Error(err)
					return
				}
				_ = r.List()
			}
		}()
	}
	wg.Wait()
}

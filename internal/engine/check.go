package engine

import (
	"fmt"

	"github.com/shaiso/Sequencer/internal/domain"
)

// stepCheck — результат статической проверки одного шага.
type stepCheck struct {
	spec     domain.FunctionSpec
	known    bool
	inputs   domain.Args
	warnings []string
	err      *StepError
}

// checkStep проверяет шаг i против реестра и имитированного хранилища.
//
// sim содержит заглушки outputs только для шагов с индексом меньше i,
// поэтому ссылки вперёд и на себя не разрешаются.
// Используется и перед выполнением, и в dry run.
func checkStep(funcs Functions, i int, step domain.Step, sim Outputs) stepCheck {
	var c stepCheck

	if step.Function == "" {
		c.err = &StepError{
			Index: i,
			Kind:  domain.ErrorKindUnknownFunction,
			Err:   fmt.Errorf("%w: empty function name", ErrUnknownFunction),
		}
		return c
	}

	spec, err := funcs.Lookup(step.Function)
	if err != nil {
		c.err = NewStepError(i, step.Function, "", err)
		return c
	}
	c.spec = spec
	c.known = true

	for _, p := range spec.Required() {
		if _, ok := step.Inputs[p.Name]; !ok {
			c.err = &StepError{
				Index:    i,
				Function: step.Function,
				Param:    p.Name,
				Kind:     domain.ErrorKindMissingInput,
				Err:      fmt.Errorf("%w: %s", ErrMissingInput, p.Name),
			}
			return c
		}
	}

	// Ссылки вперёд отклоняются до разрешения, с явным сообщением
	for _, p := range spec.Inputs {
		b, ok := step.Inputs[p.Name]
		if !ok {
			continue
		}
		for _, ref := range b.References() {
			if ref.Step >= i {
				c.err = &StepError{
					Index:    i,
					Function: step.Function,
					Param:    p.Name,
					Kind:     domain.ErrorKindDanglingReference,
					Err: fmt.Errorf("%w: %s refers to step %d, which does not run before step %d",
						ErrDanglingReference, ref.String(), ref.Step, i),
				}
				return c
			}
		}
	}

	args, param, err := ResolveInputs(spec, step, sim)
	if err != nil {
		c.err = NewStepError(i, step.Function, param, err)
		return c
	}
	c.inputs = args

	for _, name := range unexpectedInputs(spec, step) {
		c.warnings = append(c.warnings, fmt.Sprintf("input %q is not declared by %s and will be ignored", name, spec.Name))
	}
	for _, p := range spec.Inputs {
		v, ok := args[p.Name]
		if !ok {
			continue
		}
		if w := typeWarning(p, v); w != "" {
			c.warnings = append(c.warnings, w)
		}
	}

	return c
}

// typeWarning сообщает о несовпадении типа значения с объявленным типом параметра.
// Несовпадение не считается ошибкой: функция сама проверяет аргументы.
func typeWarning(p domain.Param, v domain.Value) string {
	if p.Type == "" || p.Type == domain.TypeAny {
		return ""
	}

	if v.Kind() == domain.KindPlaceholder {
		t := v.PlaceholderType()
		if t == "" || t == domain.TypeAny || t == p.Type {
			return ""
		}
		if p.Type == domain.TypeNumber && t == domain.TypeInteger {
			return ""
		}
		return fmt.Sprintf("input %q expects %s, %s is declared as %s", p.Name, p.Type, v.Source(), t)
	}

	if p.Type.Accepts(v) {
		return ""
	}
	return fmt.Sprintf("input %q expects %s, got %s", p.Name, p.Type, v.Kind())
}

// preflight проверяет все шаги плана до выполнения.
// Возвращает первую ошибку.
func preflight(funcs Functions, plan domain.Plan) *StepError {
	sim := NewOutputStore()
	for i, step := range plan.Steps {
		c := checkStep(funcs, i, step, sim)
		if c.err != nil {
			return c.err
		}
		_ = sim.Put(i, c.spec.OutputShape(domain.OutputName(i)))
	}
	return nil
}

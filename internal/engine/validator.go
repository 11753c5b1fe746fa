package engine

import (
	"fmt"

	"github.com/shaiso/Sequencer/internal/domain"
)

// Validate выполняет dry run: проверяет план без вызова функций.
//
// Outputs шагов заменяются заглушками по объявленным полям функций,
// поэтому ссылки и пути проверяются так же, как при выполнении.
// В отличие от Execute, проверка не останавливается на первой ошибке:
// отчёт содержит результат по каждому шагу.
func (e *Engine) Validate(plan domain.Plan) *domain.PlanReport {
	report := &domain.PlanReport{
		TotalSteps: len(plan.Steps),
		Steps:      make([]domain.StepReport, len(plan.Steps)),
	}

	sim := NewOutputStore()
	invalid := 0

	for i, step := range plan.Steps {
		c := checkStep(e.funcs, i, step, sim)

		sr := domain.StepReport{
			Index:     i,
			Function:  step.Function,
			OutputVar: step.OutputVar,
			OK:        c.err == nil,
			Inputs:    c.inputs,
			Warnings:  c.warnings,
		}
		if c.known {
			sr.Description = c.spec.Description
			// Известная функция даёт заглушку output даже при ошибке входов,
			// чтобы следующие шаги проверялись независимо
			_ = sim.Put(i, c.spec.OutputShape(domain.OutputName(i)))
		}

		if c.err != nil {
			sr.Error = c.err.Failure()
			invalid++
			if report.Err == nil {
				report.Error = sr.Error
				report.Err = c.err
			}
		}

		report.Steps[i] = sr
	}

	report.Valid = invalid == 0
	if report.Valid {
		report.Message = fmt.Sprintf("plan is valid: %d step(s)", len(plan.Steps))
	} else {
		report.Message = fmt.Sprintf("plan is invalid: %d of %d step(s) failed validation", invalid, len(plan.Steps))
	}

	return report
}

// ValidateSpec разбирает план и выполняет dry run.
// Ошибка разбора даёт недействительный отчёт с этой ошибкой.
func (e *Engine) ValidateSpec(spec domain.PlanSpec) *domain.PlanReport {
	plan, err := ParsePlan(spec)
	if err == nil {
		return e.Validate(plan)
	}

	stepErr := asStepError(err)
	failure := stepErr.Failure()

	report := &domain.PlanReport{
		Valid:      false,
		Message:    "plan could not be parsed: " + stepErr.Error(),
		TotalSteps: len(spec.Steps),
		Steps:      make([]domain.StepReport, len(spec.Steps)),
		Error:      failure,
		Err:        stepErr,
	}
	for i, s := range spec.Steps {
		sr := domain.StepReport{
			Index:     i,
			Function:  s.Function,
			OutputVar: s.OutputVar,
			OK:        i != stepErr.Index,
		}
		if i == stepErr.Index {
			sr.Error = failure
		}
		report.Steps[i] = sr
	}
	return report
}

package engine

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/shaiso/Sequencer/internal/domain"
)

func TestValidate_ValidPlan(t *testing.T) {
	e, c := newTestEngine(t)

	plan := domain.NewPlan(
		step("get_invoices", map[string]domain.Binding{"month": lit("March")}),
		step("summarize_invoices", map[string]domain.Binding{"invoices": domain.RefTo(0, "invoices")}),
		step("add_numbers", map[string]domain.Binding{
			"a": domain.RefTo(1, "summary", "total_amount"),
			"b": domain.RefTo(0, "invoices", "0", "amount"),
		}),
	)

	report := e.Validate(plan)

	if !report.Valid || report.Error != nil {
		t.Fatalf("expected valid plan, got %+v", report.Error)
	}
	if report.TotalSteps != 3 || len(report.Steps) != 3 {
		t.Errorf("expected 3 steps, got %d", len(report.Steps))
	}
	if c.total() != 0 {
		t.Errorf("dry run must not call functions, got %d", c.total())
	}

	in := report.Steps[1].Inputs["invoices"]
	if in.Kind() != domain.KindPlaceholder || in.Source() != "output_0.invoices" {
		t.Errorf("expected placeholder input, got %v", in)
	}
	nested := report.Steps[2].Inputs["a"]
	if nested.Source() != "output_1.summary.total_amount" {
		t.Errorf("unexpected nested placeholder source %q", nested.Source())
	}
	if report.Steps[0].Description != "Returns invoices for a month" {
		t.Errorf("expected description, got %q", report.Steps[0].Description)
	}
}

func TestValidate_ReportsEveryStep(t *testing.T) {
	e, _ := newTestEngine(t)

	plan := domain.NewPlan(
		step("no_such_function", nil),
		step("divide_numbers", map[string]domain.Binding{"a": lit(1)}),
		step("add_numbers", map[string]domain.Binding{"a": domain.RefTo(3, "result"), "b": lit(1)}),
		step("add_numbers", map[string]domain.Binding{"a": lit(1), "b": lit(1)}),
		step("add_numbers", map[string]domain.Binding{"a": domain.RefTo(3, "result", "deeper"), "b": lit(1)}),
	)

	report := e.Validate(plan)

	if report.Valid {
		t.Fatal("expected invalid plan")
	}

	wantKinds := []domain.ErrorKind{
		domain.ErrorKindUnknownFunction,
		domain.ErrorKindMissingInput,
		domain.ErrorKindDanglingReference,
		"",
		domain.ErrorKindMissingField,
	}
	for i, want := range wantKinds {
		s := report.Steps[i]
		if want == "" {
			if !s.OK || s.Error != nil {
				t.Errorf("step %d: expected ok, got %+v", i, s.Error)
			}
			continue
		}
		if s.OK || s.Error == nil || s.Error.Kind != want {
			t.Errorf("step %d: expected %s, got %+v", i, want, s.Error)
		}
	}

	if report.Error.Step != 0 || !errors.Is(report.Err, ErrUnknownFunction) {
		t.Errorf("expected first error from step 0, got %+v", report.Error)
	}
	if !strings.Contains(report.Message, "4 of 5") {
		t.Errorf("unexpected message %q", report.Message)
	}
}

func TestValidate_Warnings(t *testing.T) {
	e, _ := newTestEngine(t)

	plan := domain.NewPlan(
		step("get_invoices", map[string]domain.Binding{"month": lit("March")}),
		step("add_numbers", map[string]domain.Binding{
			"a":      lit("ten"),
			"b":      domain.RefTo(0, "invoices"),
			"unused": lit(true),
		}),
	)

	report := e.Validate(plan)
	if !report.Valid {
		t.Fatalf("warnings must not invalidate the plan: %+v", report.Error)
	}

	warnings := strings.Join(report.Steps[1].Warnings, "\n")
	for _, want := range []string{`"unused"`, `"a" expects number, got string`, `"b" expects number`} {
		if !strings.Contains(warnings, want) {
			t.Errorf("expected warning containing %s, got:\n%s", want, warnings)
		}
	}
}

func TestValidate_Idempotent(t *testing.T) {
	e, _ := newTestEngine(t)

	plan := domain.NewPlan(
		step("get_invoices", map[string]domain.Binding{"month": lit("March")}),
		step("summarize_invoices", map[string]domain.Binding{"invoices": domain.RefTo(4, "invoices")}),
		step("greet", nil),
	)

	first := e.Validate(plan)
	second := e.Validate(plan)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("dry run is not idempotent:\n%+v\n%+v", first, second)
	}
}

func TestValidateSpec_ParseError(t *testing.T) {
	e, _ := newTestEngine(t)

	report := e.ValidateSpec(domain.PlanSpec{Steps: []domain.StepSpec{
		{Function: "greet"},
		{Function: "add_numbers", Inputs: map[string]any{"a": "{{output_.x}}", "b": 1}},
	}})

	if report.Valid {
		t.Fatal("expected invalid report")
	}
	if report.Error.Kind != domain.ErrorKindMalformedReference || report.Error.Step != 1 {
		t.Errorf("unexpected error: %+v", report.Error)
	}
	if !report.Steps[0].OK || report.Steps[1].OK {
		t.Errorf("unexpected step flags: %+v", report.Steps)
	}
}

func TestValidate_MatchesExecutePreflight(t *testing.T) {
	e, c := newTestEngine(t)

	plan := domain.NewPlan(
		step("get_invoices", map[string]domain.Binding{"month": lit("March")}),
		step("summarize_invoices", map[string]domain.Binding{"invoices": domain.RefTo(0, "count", "x")}),
	)

	report := e.Validate(plan)
	res := e.Execute(t.Context(), plan)

	if report.Valid || res.Status != domain.StatusFailedBeforeStart {
		t.Fatalf("expected both to reject: valid=%v status=%s", report.Valid, res.Status)
	}
	if report.Error.Kind != res.Error.Kind || report.Error.Message != res.Error.Message {
		t.Errorf("dry run and execution disagree: %+v vs %+v", report.Error, res.Error)
	}
	if c.total() != 0 {
		t.Errorf("expected no calls, got %d", c.total())
	}
}

package repo

import (
	"encoding/json"
	"testing"

	"github.com/shaiso/Sequencer/internal/domain"
)

func TestRunFilter_Limit(t *testing.T) {
	tests := []struct {
		limit int
		want  int
	}{
		{0, DefaultListLimit},
		{-5, DefaultListLimit},
		{10, 10},
	}

	for _, tt := range tests {
		if got := (RunFilter{Limit: tt.limit}).limit(); got != tt.want {
			t.Errorf("limit(%d): expected %d, got %d", tt.limit, tt.want, got)
		}
	}
}

func TestMarshalRun(t *testing.T) {
	run := domain.NewRun("add", domain.PlanSpec{Steps: []domain.StepSpec{
		{Function: "add_numbers", Inputs: map[string]any{"a": 1.0, "b": 2.0}},
	}})

	planJSON, resultJSON, err := marshalRun(run)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resultJSON != nil {
		t.Errorf("pending run must have NULL result, got %s", resultJSON)
	}

	var plan domain.PlanSpec
	if err := json.Unmarshal(planJSON, &plan); err != nil {
		t.Fatalf("plan JSON: %v", err)
	}
	if len(plan.Steps) != 1 || plan.Steps[0].Function != "add_numbers" {
		t.Errorf("unexpected plan %+v", plan)
	}

	out := domain.MustFromAny(map[string]any{"result": 3})
	run.MarkFinished(&domain.ExecutionResult{
		Status:      domain.StatusAllSucceeded,
		FinalOutput: &out,
	}, "done")

	_, resultJSON, err = marshalRun(run)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var res domain.ExecutionResult
	if err := json.Unmarshal(resultJSON, &res); err != nil {
		t.Fatalf("result JSON: %v", err)
	}
	if res.Status != domain.StatusAllSucceeded || res.FinalOutput == nil {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestNullString(t *testing.T) {
	if nullString("") != nil {
		t.Error("empty string must map to NULL")
	}
	if s := nullString("x"); s == nil || *s != "x" {
		t.Error("non-empty string must be kept")
	}
}

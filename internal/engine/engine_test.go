package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/Sequencer/internal/domain"
	"github.com/shaiso/Sequencer/internal/registry"
)

// calls считает вызовы функций в тестах.
type calls struct {
	mu sync.Mutex
	n  map[string]int
}

func (c *calls) inc(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n == nil {
		c.n = make(map[string]int)
	}
	c.n[name]++
}

func (c *calls) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	sum := 0
	for _, n := range c.n {
		sum += n
	}
	return sum
}

func (c *calls) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n[name]
}

func num(args domain.Args, name string) float64 {
	n, _ := args[name].AsNumber()
	return n
}

var cancelRun context.CancelFunc

func testFunctions() []domain.FunctionSpec {
	greeting := domain.String("world")

	return []domain.FunctionSpec{
		{
			Name:        "get_invoices",
			Description: "Returns invoices for a month",
			Inputs:      []domain.Param{{Name: "month", Type: domain.TypeString}},
			Outputs: []domain.Field{
				{Name: "invoices", Type: domain.TypeList},
				{Name: "count", Type: domain.TypeInteger},
			},
			Impl: func(_ context.Context, args domain.Args) (domain.Value, error) {
				month, _ := args["month"].AsString()
				invoices := domain.MustFromAny([]any{
					map[string]any{"id": "INV-1", "amount": 100, "month": month},
					map[string]any{"id": "INV-2", "amount": 250, "month": month},
				})
				return domain.Record(map[string]domain.Value{
					"invoices": invoices,
					"count":    domain.Int(invoices.Len()),
				}), nil
			},
		},
		{
			Name:        "summarize_invoices",
			Description: "Summarizes invoices",
			Inputs:      []domain.Param{{Name: "invoices", Type: domain.TypeList}},
			Outputs: []domain.Field{
				{Name: "summary", Type: domain.TypeRecord},
				{Name: "total_amount", Type: domain.TypeNumber},
			},
			Impl: func(_ context.Context, args domain.Args) (domain.Value, error) {
				items, ok := args["invoices"].Items()
				if !ok {
					return domain.Value{}, errors.New("invoices must be a list")
				}
				total := 0.0
				for _, it := range items {
					a, _ := it.Field("amount")
					n, _ := a.AsNumber()
					total += n
				}
				return domain.Record(map[string]domain.Value{
					"summary": domain.Record(map[string]domain.Value{
						"total_amount":   domain.Number(total),
						"total_invoices": domain.Int(len(items)),
					}),
					"total_amount": domain.Number(total),
				}), nil
			},
		},
		{
			Name: "divide_numbers",
			Inputs: []domain.Param{
				{Name: "a", Type: domain.TypeNumber},
				{Name: "b", Type: domain.TypeNumber},
			},
			Outputs: []domain.Field{{Name: "result", Type: domain.TypeNumber}},
			Impl: func(_ context.Context, args domain.Args) (domain.Value, error) {
				if num(args, "b") == 0 {
					return domain.Value{}, errors.New("division by zero")
				}
				return domain.Record(map[string]domain.Value{
					"result": domain.Number(num(args, "a") / num(args, "b")),
				}), nil
			},
		},
		{
			Name: "add_numbers",
			Inputs: []domain.Param{
				{Name: "a", Type: domain.TypeNumber},
				{Name: "b", Type: domain.TypeNumber},
			},
			Outputs: []domain.Field{{Name: "result", Type: domain.TypeNumber}},
			Impl: func(_ context.Context, args domain.Args) (domain.Value, error) {
				return domain.Record(map[string]domain.Value{
					"result": domain.Number(num(args, "a") + num(args, "b")),
				}), nil
			},
		},
		{
			Name:    "greet",
			Inputs:  []domain.Param{{Name: "name", Type: domain.TypeString, Optional: true, Default: &greeting}},
			Outputs: []domain.Field{{Name: "message", Type: domain.TypeString}},
			Impl: func(_ context.Context, args domain.Args) (domain.Value, error) {
				name, _ := args["name"].AsString()
				return domain.Record(map[string]domain.Value{
					"message": domain.String("hello " + name),
				}), nil
			},
		},
		{
			Name:    "explode",
			Outputs: []domain.Field{{Name: "never", Type: domain.TypeAny}},
			Impl: func(context.Context, domain.Args) (domain.Value, error) {
				panic("boom")
			},
		},
		{
			Name:    "scalar",
			Outputs: []domain.Field{{Name: "value", Type: domain.TypeNumber}},
			Impl: func(context.Context, domain.Args) (domain.Value, error) {
				return domain.Number(42), nil
			},
		},
		{
			Name:    "cancel_run",
			Outputs: []domain.Field{{Name: "done", Type: domain.TypeBoolean}},
			Impl: func(context.Context, domain.Args) (domain.Value, error) {
				if cancelRun != nil {
					cancelRun()
				}
				return domain.Record(map[string]domain.Value{"done": domain.Bool(true)}), nil
			},
		},
	}
}

// newTestEngine создаёт Engine с тестовыми функциями и счётчиком вызовов.
func newTestEngine(t *testing.T, opts ...Option) (*Engine, *calls) {
	t.Helper()

	c := &calls{}
	specs := testFunctions()
	for i := range specs {
		name, impl := specs[i].Name, specs[i].Impl
		specs[i].Impl = func(ctx context.Context, args domain.Args) (domain.Value, error) {
			c.inc(name)
			return impl(ctx, args)
		}
	}

	reg, err := registry.New(specs...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(reg, append([]Option{WithLogger(logger)}, opts...)...), c
}

func lit(x any) domain.Binding {
	return domain.Literal(domain.MustFromAny(x))
}

func step(fn string, inputs map[string]domain.Binding) domain.Step {
	return domain.Step{Function: fn, Inputs: inputs}
}

func TestExecute_InvoiceChain(t *testing.T) {
	e, c := newTestEngine(t)

	plan := domain.NewPlan(
		step("get_invoices", map[string]domain.Binding{"month": lit("March")}),
		step("summarize_invoices", map[string]domain.Binding{"invoices": domain.RefTo(0, "invoices")}),
	)

	res := e.Execute(context.Background(), plan)

	if res.Status != domain.StatusAllSucceeded {
		t.Fatalf("expected all-succeeded, got %s (%v)", res.Status, res.Err)
	}
	if c.total() != 2 {
		t.Errorf("expected 2 calls, got %d", c.total())
	}
	if res.FinalStep != 1 || res.FinalOutput == nil {
		t.Fatalf("expected final output from step 1, got %d", res.FinalStep)
	}

	total, _, ok := res.FinalOutput.Lookup([]string{"summary", "total_amount"})
	if !ok || !total.Equal(domain.Number(350)) {
		t.Errorf("expected total 350, got %v", total)
	}

	// Ссылка читает ровно то значение, которое вернул шаг 0
	passed := res.Steps[1].Inputs["invoices"]
	produced, _ := res.Outputs["output_0"].Field("invoices")
	if !passed.Equal(produced) {
		t.Errorf("input differs from produced output: %v vs %v", passed, produced)
	}

	if len(res.Outputs) != 2 {
		t.Errorf("expected 2 outputs, got %d", len(res.Outputs))
	}
}

func TestExecute_ForwardReferenceRejected(t *testing.T) {
	e, c := newTestEngine(t)

	plan := domain.NewPlan(
		step("summarize_invoices", map[string]domain.Binding{"invoices": domain.RefTo(5, "invoices")}),
	)

	res := e.Execute(context.Background(), plan)

	if res.Status != domain.StatusFailedBeforeStart {
		t.Fatalf("expected failed-before-start, got %s", res.Status)
	}
	if c.total() != 0 {
		t.Errorf("expected no function calls, got %d", c.total())
	}
	if res.Error == nil || res.Error.Kind != domain.ErrorKindDanglingReference {
		t.Fatalf("expected DANGLING_REFERENCE, got %+v", res.Error)
	}
	if !errors.Is(res.Err, ErrDanglingReference) {
		t.Errorf("expected ErrDanglingReference, got %v", res.Err)
	}
	if len(res.Outputs) != 0 {
		t.Errorf("expected no outputs, got %v", res.Outputs)
	}
	if res.FinalOutput != nil || res.FinalStep != -1 {
		t.Error("expected no final output")
	}
}

func TestExecute_SelfReferenceRejected(t *testing.T) {
	e, c := newTestEngine(t)

	plan := domain.NewPlan(
		step("add_numbers", map[string]domain.Binding{"a": lit(1), "b": lit(2)}),
		step("add_numbers", map[string]domain.Binding{"a": domain.RefTo(1, "result"), "b": lit(1)}),
	)

	res := e.Execute(context.Background(), plan)

	if res.Status != domain.StatusFailedBeforeStart {
		t.Fatalf("expected failed-before-start, got %s", res.Status)
	}
	if c.total() != 0 {
		t.Errorf("step 0 must not run, got %d calls", c.total())
	}
	if res.Steps[0].Outcome != domain.OutcomeSkipped || res.Steps[1].Outcome != domain.OutcomeFailed {
		t.Errorf("unexpected outcomes: %s, %s", res.Steps[0].Outcome, res.Steps[1].Outcome)
	}
}

func TestExecute_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name  string
		plan  domain.Plan
		kind  domain.ErrorKind
		step  int
		param string
	}{
		{
			name: "unknown function",
			plan: domain.NewPlan(
				step("add_numbers", map[string]domain.Binding{"a": lit(1), "b": lit(2)}),
				step("no_such_function", nil),
			),
			kind: domain.ErrorKindUnknownFunction,
			step: 1,
		},
		{
			name: "empty function name",
			plan: domain.NewPlan(step("", nil)),
			kind: domain.ErrorKindUnknownFunction,
			step: 0,
		},
		{
			name: "missing input",
			plan: domain.NewPlan(
				step("divide_numbers", map[string]domain.Binding{"a": lit(1)}),
			),
			kind:  domain.ErrorKindMissingInput,
			step:  0,
			param: "b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, c := newTestEngine(t)
			res := e.Execute(context.Background(), tt.plan)

			if res.Status != domain.StatusFailedBeforeStart {
				t.Fatalf("expected failed-before-start, got %s", res.Status)
			}
			if c.total() != 0 {
				t.Errorf("expected no calls, got %d", c.total())
			}
			if res.Error.Kind != tt.kind || res.Error.Step != tt.step || res.Error.Param != tt.param {
				t.Errorf("unexpected error: %+v", res.Error)
			}
			if !errors.Is(res.Err, ErrConfiguration) {
				t.Errorf("expected configuration error, got %v", res.Err)
			}
		})
	}
}

func TestExecute_UndeclaredFieldRejected(t *testing.T) {
	e, c := newTestEngine(t)

	plan := domain.NewPlan(
		step("get_invoices", map[string]domain.Binding{"month": lit("May")}),
		step("summarize_invoices", map[string]domain.Binding{"invoices": domain.RefTo(0, "bills")}),
	)

	res := e.Execute(context.Background(), plan)

	if res.Status != domain.StatusFailedBeforeStart || res.Error.Kind != domain.ErrorKindMissingField {
		t.Fatalf("expected MISSING_FIELD before start, got %s %+v", res.Status, res.Error)
	}
	if c.total() != 0 {
		t.Errorf("expected no calls, got %d", c.total())
	}
}

func TestExecute_PartialSuccess(t *testing.T) {
	e, c := newTestEngine(t)

	plan := domain.NewPlan(
		step("add_numbers", map[string]domain.Binding{"a": lit(2), "b": lit(3)}),
		step("divide_numbers", map[string]domain.Binding{"a": lit(1), "b": lit(0)}),
		step("add_numbers", map[string]domain.Binding{"a": domain.RefTo(0, "result"), "b": lit(10)}),
	)

	res := e.Execute(context.Background(), plan)

	if res.Status != domain.StatusPartiallySucceeded {
		t.Fatalf("expected partially-succeeded, got %s", res.Status)
	}
	if c.total() != 3 {
		t.Errorf("expected 3 calls, got %d", c.total())
	}

	failed := res.Steps[1]
	if failed.Outcome != domain.OutcomeFailed || failed.Error.Kind != domain.ErrorKindFunctionExecution {
		t.Errorf("unexpected step 1 result: %+v", failed)
	}
	if _, ok := res.Outputs["output_1"]; ok {
		t.Error("failed step must not have an output")
	}

	if res.FinalStep != 2 {
		t.Errorf("expected final step 2, got %d", res.FinalStep)
	}
	result, _ := res.FinalOutput.Field("result")
	if !result.Equal(domain.Number(15)) {
		t.Errorf("expected 15, got %v", result)
	}
	if res.Error != nil {
		t.Errorf("function errors must not set run error, got %+v", res.Error)
	}
}

func TestExecute_CascadeFromFailedStep(t *testing.T) {
	e, c := newTestEngine(t)

	plan := domain.NewPlan(
		step("divide_numbers", map[string]domain.Binding{"a": lit(1), "b": lit(0)}),
		step("add_numbers", map[string]domain.Binding{"a": domain.RefTo(0, "result"), "b": lit(1)}),
		step("add_numbers", map[string]domain.Binding{"a": domain.RefTo(1, "result"), "b": lit(1)}),
	)

	res := e.Execute(context.Background(), plan)

	if res.Status != domain.StatusFailed {
		t.Fatalf("expected failed, got %s", res.Status)
	}
	if c.count("add_numbers") != 0 {
		t.Errorf("dependents must not be invoked, got %d calls", c.count("add_numbers"))
	}

	root := res.Steps[0].Error
	for _, i := range []int{1, 2} {
		f := res.Steps[i].Error
		if f == nil || f.Kind != domain.ErrorKindDanglingReference {
			t.Fatalf("step %d: expected DANGLING_REFERENCE, got %+v", i, f)
		}
		if f.Cause != root.Message {
			t.Errorf("step %d: expected cause %q, got %q", i, root.Message, f.Cause)
		}
	}
	if root.Kind != domain.ErrorKindFunctionExecution {
		t.Errorf("failed step keeps its own error, got %s", root.Kind)
	}
}

func TestExecute_NestedPath(t *testing.T) {
	e, _ := newTestEngine(t)

	plan := domain.NewPlan(
		step("get_invoices", map[string]domain.Binding{"month": lit("June")}),
		step("summarize_invoices", map[string]domain.Binding{"invoices": domain.RefTo(0, "invoices")}),
		step("add_numbers", map[string]domain.Binding{
			"a": domain.RefTo(1, "summary", "total_amount"),
			"b": domain.RefTo(0, "invoices", "1", "amount"),
		}),
	)

	res := e.Execute(context.Background(), plan)
	if res.Status != domain.StatusAllSucceeded {
		t.Fatalf("expected all-succeeded, got %s (%v)", res.Status, res.Err)
	}
	result, _ := res.FinalOutput.Field("result")
	if !result.Equal(domain.Number(600)) {
		t.Errorf("expected 600, got %v", result)
	}
}

func TestExecute_MissingNestedFieldAborts(t *testing.T) {
	e, c := newTestEngine(t)

	plan := domain.NewPlan(
		step("get_invoices", map[string]domain.Binding{"month": lit("June")}),
		step("summarize_invoices", map[string]domain.Binding{"invoices": domain.RefTo(0, "invoices")}),
		step("add_numbers", map[string]domain.Binding{
			"a": domain.RefTo(1, "summary", "tax"),
			"b": lit(1),
		}),
		step("add_numbers", map[string]domain.Binding{"a": lit(1), "b": lit(1)}),
	)

	res := e.Execute(context.Background(), plan)

	if res.Error == nil || res.Error.Kind != domain.ErrorKindMissingField {
		t.Fatalf("expected MISSING_FIELD, got %+v", res.Error)
	}
	if !errors.Is(res.Err, ErrMissingField) {
		t.Errorf("expected ErrMissingField, got %v", res.Err)
	}
	if res.Steps[3].Outcome != domain.OutcomeSkipped {
		t.Errorf("expected step 3 skipped, got %s", res.Steps[3].Outcome)
	}
	if c.count("add_numbers") != 0 {
		t.Errorf("add_numbers must not run, got %d", c.count("add_numbers"))
	}
	if res.Status != domain.StatusPartiallySucceeded {
		t.Errorf("expected partially-succeeded, got %s", res.Status)
	}
}

func TestExecute_Defaults(t *testing.T) {
	e, _ := newTestEngine(t)

	res := e.Execute(context.Background(), domain.NewPlan(step("greet", nil)))
	if res.Status != domain.StatusAllSucceeded {
		t.Fatalf("expected all-succeeded, got %s", res.Status)
	}
	msg, _ := res.FinalOutput.Field("message")
	if s, _ := msg.AsString(); s != "hello world" {
		t.Errorf("expected default to apply, got %q", s)
	}
}

func TestExecute_EmptyPlan(t *testing.T) {
	e, _ := newTestEngine(t)

	res := e.Execute(context.Background(), domain.NewPlan())
	if res.Status != domain.StatusAllSucceeded {
		t.Errorf("expected all-succeeded, got %s", res.Status)
	}
	if res.FinalOutput != nil || res.FinalStep != -1 {
		t.Error("expected no final output")
	}
}

func TestExecute_PanicAndInvalidOutput(t *testing.T) {
	e, _ := newTestEngine(t)

	plan := domain.NewPlan(
		step("explode", nil),
		step("scalar", nil),
		step("add_numbers", map[string]domain.Binding{"a": lit(1), "b": lit(1)}),
	)

	res := e.Execute(context.Background(), plan)

	if res.Status != domain.StatusPartiallySucceeded {
		t.Fatalf("expected partially-succeeded, got %s", res.Status)
	}

	var stepErr *StepError
	if res.Steps[0].Error == nil || res.Steps[0].Error.Kind != domain.ErrorKindFunctionExecution {
		t.Errorf("expected panic to become FUNCTION_EXECUTION_ERROR, got %+v", res.Steps[0].Error)
	}
	if res.Steps[1].Error == nil || res.Steps[1].Error.Kind != domain.ErrorKindFunctionExecution {
		t.Errorf("expected invalid output error, got %+v", res.Steps[1].Error)
	}
	if errors.As(res.Err, &stepErr) {
		t.Errorf("function failures must not abort the run: %v", stepErr)
	}
}

func TestExecute_Cancellation(t *testing.T) {
	e, c := newTestEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cancelRun = cancel
	defer func() { cancelRun = nil }()

	plan := domain.NewPlan(
		step("add_numbers", map[string]domain.Binding{"a": lit(1), "b": lit(1)}),
		step("cancel_run", nil),
		step("add_numbers", map[string]domain.Binding{"a": lit(2), "b": lit(2)}),
	)

	res := e.Execute(ctx, plan)

	if res.Status != domain.StatusPartiallySucceeded {
		t.Fatalf("expected partially-succeeded, got %s", res.Status)
	}
	if c.count("add_numbers") != 1 {
		t.Errorf("expected 1 add_numbers call, got %d", c.count("add_numbers"))
	}
	last := res.Steps[2]
	if last.Outcome != domain.OutcomeFailed || last.Error.Kind != domain.ErrorKindFunctionExecution {
		t.Errorf("expected cancelled step to fail, got %+v", last)
	}
	if res.FinalStep != 1 {
		t.Errorf("expected final step 1, got %d", res.FinalStep)
	}
}

type recordedMetrics struct {
	mu    sync.Mutex
	runs  []domain.Status
	steps map[domain.Outcome]int
}

func (m *recordedMetrics) RunFinished(s domain.Status, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, s)
}

func (m *recordedMetrics) StepFinished(_ string, o domain.Outcome, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.steps == nil {
		m.steps = make(map[domain.Outcome]int)
	}
	m.steps[o]++
}

func TestExecute_MetricsAndClock(t *testing.T) {
	m := &recordedMetrics{}
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	e, _ := newTestEngine(t, WithMetrics(m), WithClock(clock))

	plan := domain.NewPlan(
		step("add_numbers", map[string]domain.Binding{"a": lit(1), "b": lit(1)}),
		step("divide_numbers", map[string]domain.Binding{"a": lit(1), "b": lit(0)}),
	)
	res := e.Execute(context.Background(), plan)

	if len(m.runs) != 1 || m.runs[0] != domain.StatusPartiallySucceeded {
		t.Errorf("unexpected run metrics: %v", m.runs)
	}
	if m.steps[domain.OutcomeSucceeded] != 1 || m.steps[domain.OutcomeFailed] != 1 {
		t.Errorf("unexpected step metrics: %v", m.steps)
	}
	if res.Steps[0].Duration != time.Second {
		t.Errorf("expected step duration 1s, got %v", res.Steps[0].Duration)
	}
	if res.Duration() <= 0 {
		t.Errorf("expected positive run duration, got %v", res.Duration())
	}
}

func TestRun_ParsesSpec(t *testing.T) {
	e, _ := newTestEngine(t)

	spec := domain.PlanSpec{Steps: []domain.StepSpec{
		{Function: "get_invoices", Inputs: map[string]any{"month": "March"}, OutputVar: "march"},
		{Function: "summarize_invoices", Inputs: map[string]any{"invoices": "$march.invoices"}},
		{Function: "add_numbers", Inputs: map[string]any{"a": "{{output_1.summary.total_amount}}", "b": 0.5}},
	}}

	res := e.Run(context.Background(), spec)
	if res.Status != domain.StatusAllSucceeded {
		t.Fatalf("expected all-succeeded, got %s (%v)", res.Status, res.Err)
	}
	result, _ := res.FinalOutput.Field("result")
	if !result.Equal(domain.Number(350.5)) {
		t.Errorf("expected 350.5, got %v", result)
	}
	if res.Steps[0].OutputVar != "march" {
		t.Errorf("expected output_var to be reported, got %q", res.Steps[0].OutputVar)
	}
}

func TestRun_MalformedReference(t *testing.T) {
	e, c := newTestEngine(t)

	spec := domain.PlanSpec{Steps: []domain.StepSpec{
		{Function: "add_numbers", Inputs: map[string]any{"a": 1, "b": 2}},
		{Function: "add_numbers", Inputs: map[string]any{"a": "$output_x.result", "b": 2}},
	}}

	res := e.Run(context.Background(), spec)
	if res.Status != domain.StatusFailedBeforeStart {
		t.Fatalf("expected failed-before-start, got %s", res.Status)
	}
	if res.Error.Kind != domain.ErrorKindMalformedReference || res.Error.Step != 1 {
		t.Errorf("unexpected error: %+v", res.Error)
	}
	if c.total() != 0 {
		t.Errorf("expected no calls, got %d", c.total())
	}
}

func TestExecute_ConcurrentRuns(t *testing.T) {
	e, _ := newTestEngine(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			plan := domain.NewPlan(
				step("add_numbers", map[string]domain.Binding{"a": lit(n), "b": lit(1)}),
				step("add_numbers", map[string]domain.Binding{"a": domain.RefTo(0, "result"), "b": lit(1)}),
			)
			res := e.Execute(context.Background(), plan)
			result, _ := res.FinalOutput.Field("result")
			if !result.Equal(domain.Int(n + 2)) {
				t.Errorf("run %d: expected %d, got %v", n, n+2, result)
			}
		}(i)
	}
	wg.Wait()
}

func TestStatusOf(t *testing.T) {
	ok := domain.StepResult{Outcome: domain.OutcomeSucceeded}
	bad := domain.StepResult{Outcome: domain.OutcomeFailed}

	tests := []struct {
		name  string
		steps []domain.StepResult
		want  domain.Status
	}{
		{"empty plan", nil, domain.StatusAllSucceeded},
		{"all ok", []domain.StepResult{ok, ok}, domain.StatusAllSucceeded},
		{"mixed", []domain.StepResult{ok, bad}, domain.StatusPartiallySucceeded},
		{"none ok", []domain.StepResult{bad, bad}, domain.StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusOf(&domain.ExecutionResult{Steps: tt.steps}); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Sequencer/internal/domain"
	"github.com/shaiso/Sequencer/internal/telemetry"
)

// Functions — источник описаний функций. Реализуется *registry.Registry.
type Functions interface {
	Lookup(name string) (domain.FunctionSpec, error)
}

// Metrics принимает события выполнения для метрик.
type Metrics interface {
	RunFinished(status domain.Status, d time.Duration)
	StepFinished(function string, outcome domain.Outcome, d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) RunFinished(domain.Status, time.Duration)          {}
func (nopMetrics) StepFinished(string, domain.Outcome, time.Duration) {}

// Engine выполняет планы против реестра функций.
//
// Engine не хранит состояния выполнения: каждый вызов Execute создаёт
// свой OutputStore, поэтому один Engine можно использовать
// из нескольких горутин одновременно.
type Engine struct {
	funcs   Functions
	logger  *slog.Logger
	metrics Metrics
	now     func() time.Time
}

// Option настраивает Engine.
type Option func(*Engine)

// WithLogger задаёт логгер. По умолчанию берётся логгер из контекста вызова.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics задаёт приёмник метрик.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithClock задаёт источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New создаёт Engine.
func New(funcs Functions, opts ...Option) *Engine {
	e := &Engine{
		funcs:   funcs,
		metrics: nopMetrics{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) loggerFor(ctx context.Context) *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return telemetry.FromContext(ctx)
}

// Run разбирает план и выполняет его.
// Ошибка разбора даёт результат со статусом failed-before-start.
func (e *Engine) Run(ctx context.Context, spec domain.PlanSpec) *domain.ExecutionResult {
	plan, err := ParsePlan(spec)
	if err == nil {
		return e.Execute(ctx, plan)
	}

	res := e.newResult(stepsFromSpec(spec))
	stepErr := asStepError(err)
	e.rejectPlan(res, stepErr)
	return e.finish(e.loggerFor(ctx), res, nil)
}

// Execute выполняет план.
//
// Фаза 1: все шаги проверяются до вызова первой функции (функции,
// обязательные входы, ссылки). Любая ошибка останавливает выполнение
// со статусом failed-before-start.
//
// Фаза 2: шаги выполняются по порядку. Ошибка функции не останавливает
// выполнение; шаги, ссылающиеся на output упавшего шага, получают
// DANGLING_REFERENCE с причиной. Прочие ошибки разрешения ссылок
// прерывают выполнение, оставшиеся шаги пропускаются.
//
// Execute всегда возвращает результат; отмена ctx превращается
// в ошибки шагов.
func (e *Engine) Execute(ctx context.Context, plan domain.Plan) *domain.ExecutionResult {
	logger := e.loggerFor(ctx)
	res := e.newResult(plan.Steps)

	if stepErr := preflight(e.funcs, plan); stepErr != nil {
		e.rejectPlan(res, stepErr)
		logger.Warn("plan rejected",
			"step", stepErr.Index,
			"kind", stepErr.Kind,
			"error", stepErr.Err,
		)
		return e.finish(logger, res, nil)
	}

	store := NewOutputStore()
	for i, step := range plan.Steps {
		if aborted := e.executeStep(ctx, logger, res, store, i, step); aborted {
			break
		}
	}

	return e.finish(logger, res, store)
}

// executeStep выполняет шаг i. Возвращает true, если выполнение плана прервано.
func (e *Engine) executeStep(
	ctx context.Context,
	logger *slog.Logger,
	res *domain.ExecutionResult,
	store *OutputStore,
	i int,
	step domain.Step,
) bool {
	sr := &res.Steps[i]
	log := telemetry.WithFunction(logger, step.Function).With("step", i)

	spec, err := e.funcs.Lookup(step.Function)
	if err != nil {
		// Реестр неизменяем, после проверки плана сюда не попасть
		e.abort(res, sr, NewStepError(i, step.Function, "", err))
		return true
	}

	args, param, err := ResolveInputs(spec, step, store)
	if err != nil {
		stepErr := NewStepError(i, step.Function, param, err)

		if cause, ok := cascadeCause(res, err); ok {
			failure := stepErr.Failure()
			failure.Cause = cause
			sr.Outcome = domain.OutcomeFailed
			sr.Error = failure
			e.metrics.StepFinished(step.Function, domain.OutcomeFailed, 0)
			log.Warn("step skipped after upstream failure", "error", stepErr.Err, "cause", cause)
			return false
		}

		e.abort(res, sr, stepErr)
		log.Warn("reference resolution failed, run aborted", "param", param, "error", stepErr.Err)
		return true
	}
	sr.Inputs = args

	log.Debug("step started")
	started := e.now()
	out, err := invoke(ctx, spec, args)
	sr.Duration = e.now().Sub(started)

	if err != nil {
		stepErr := &StepError{
			Index:    i,
			Function: step.Function,
			Kind:     domain.ErrorKindFunctionExecution,
			Err:      err,
		}
		sr.Outcome = domain.OutcomeFailed
		sr.Error = stepErr.Failure()
		e.metrics.StepFinished(step.Function, domain.OutcomeFailed, sr.Duration)
		log.Warn("step failed", "error", err, "duration", sr.Duration)
		return false
	}

	if err := store.Put(i, out); err != nil {
		e.abort(res, sr, NewStepError(i, step.Function, "", err))
		return true
	}

	sr.Outcome = domain.OutcomeSucceeded
	sr.Output = &out
	e.metrics.StepFinished(step.Function, domain.OutcomeSucceeded, sr.Duration)
	log.Debug("step succeeded", "duration", sr.Duration)
	return false
}

// invoke вызывает реализацию функции.
// Паника перехватывается и возвращается как ошибка.
func invoke(ctx context.Context, spec domain.FunctionSpec, args domain.Args) (out domain.Value, err error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.Value{}, fmt.Errorf("%w: %w", ErrFunctionExecution, ctxErr)
	}

	defer func() {
		if r := recover(); r != nil {
			out = domain.Value{}
			err = fmt.Errorf("%w: %w: %v", ErrFunctionExecution, ErrFunctionPanic, r)
		}
	}()

	out, err = spec.Impl(ctx, args)
	if err != nil {
		return domain.Value{}, fmt.Errorf("%w: %w", ErrFunctionExecution, err)
	}
	if out.Kind() != domain.KindRecord {
		return domain.Value{}, fmt.Errorf("%w: %w: got %s", ErrFunctionExecution, ErrInvalidOutput, out.Kind())
	}
	return out, nil
}

// cascadeCause проверяет, вызвана ли ошибка ссылкой на упавший шаг.
// Возвращает исходную ошибку упавшего шага.
func cascadeCause(res *domain.ExecutionResult, err error) (string, bool) {
	var refErr *ReferenceError
	if !errors.As(err, &refErr) || !errors.Is(err, ErrDanglingReference) {
		return "", false
	}

	idx := refErr.Ref.Step
	if idx < 0 || idx >= len(res.Steps) {
		return "", false
	}

	upstream := res.Steps[idx]
	if upstream.Outcome != domain.OutcomeFailed || upstream.Error == nil {
		return "", false
	}
	if upstream.Error.Cause != "" {
		return upstream.Error.Cause, true
	}
	return upstream.Error.Message, true
}

func (e *Engine) newResult(steps []domain.Step) *domain.ExecutionResult {
	res := &domain.ExecutionResult{
		Steps:     make([]domain.StepResult, len(steps)),
		FinalStep: -1,
		StartedAt: e.now(),
	}
	for i, s := range steps {
		res.Steps[i] = domain.StepResult{
			Index:     i,
			Function:  s.Function,
			OutputVar: s.OutputVar,
			Outcome:   domain.OutcomeSkipped,
		}
	}
	return res
}

// rejectPlan отмечает шаг, не прошедший проверку. Остальные шаги остаются пропущенными.
func (e *Engine) rejectPlan(res *domain.ExecutionResult, stepErr *StepError) {
	failure := stepErr.Failure()
	if stepErr.Index >= 0 && stepErr.Index < len(res.Steps) {
		res.Steps[stepErr.Index].Outcome = domain.OutcomeFailed
		res.Steps[stepErr.Index].Error = failure
	}
	res.Status = domain.StatusFailedBeforeStart
	res.Error = failure
	res.Err = stepErr
}

func (e *Engine) abort(res *domain.ExecutionResult, sr *domain.StepResult, stepErr *StepError) {
	failure := stepErr.Failure()
	sr.Outcome = domain.OutcomeFailed
	sr.Error = failure
	res.Error = failure
	res.Err = stepErr
	e.metrics.StepFinished(sr.Function, domain.OutcomeFailed, 0)
}

func (e *Engine) finish(logger *slog.Logger, res *domain.ExecutionResult, store *OutputStore) *domain.ExecutionResult {
	res.FinishedAt = e.now()

	if store != nil {
		res.Outputs = store.Snapshot()
		if idx := store.Indices(); len(idx) > 0 {
			last := idx[len(idx)-1]
			out, _ := store.Output(last)
			res.FinalOutput = &out
			res.FinalStep = last
		}
	}

	if res.Status == "" {
		res.Status = statusOf(res)
	}

	e.metrics.RunFinished(res.Status, res.Duration())
	logger.Info("plan finished",
		"status", res.Status,
		"steps", len(res.Steps),
		"succeeded", res.Count(domain.OutcomeSucceeded),
		"failed", res.Count(domain.OutcomeFailed),
		"duration", res.Duration(),
	)
	return res
}

// statusOf выводит итог выполненного плана из исходов шагов.
//
// Кроме all-succeeded и partially-succeeded возможен StatusFailed:
// функции вызывались, но ни одна не завершилась успешно.
// StatusFailedBeforeStart сюда не попадает, его выставляет проверка.
func statusOf(res *domain.ExecutionResult) domain.Status {
	succeeded := res.Count(domain.OutcomeSucceeded)
	failed := res.Count(domain.OutcomeFailed)

	switch {
	case failed == 0:
		return domain.StatusAllSucceeded
	case succeeded > 0:
		return domain.StatusPartiallySucceeded
	default:
		return domain.StatusFailed
	}
}

func stepsFromSpec(spec domain.PlanSpec) []domain.Step {
	steps := make([]domain.Step, len(spec.Steps))
	for i, s := range spec.Steps {
		steps[i] = domain.Step{Function: s.Function, OutputVar: s.OutputVar}
	}
	return steps
}

func asStepError(err error) *StepError {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr
	}
	return &StepError{Index: -1, Kind: KindOf(err), Err: err}
}

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Sequencer/internal/domain"
	"github.com/shaiso/Sequencer/internal/engine"
	"github.com/shaiso/Sequencer/internal/mq"
	"github.com/shaiso/Sequencer/internal/repo"
	"github.com/shaiso/Sequencer/internal/telemetry"
)

// persistTimeout ограничивает сохранение результата после отмены ctx.
const persistTimeout = 10 * time.Second

// Executor выполняет план. Реализуется *engine.Engine.
type Executor interface {
	Run(ctx context.Context, spec domain.PlanSpec) *domain.ExecutionResult
}

// Summarizer описывает результат выполнения. Реализуется *planner.Summarizer.
type Summarizer interface {
	Summarize(ctx context.Context, query string, res *domain.ExecutionResult) string
}

// RunStore хранит runs. Реализуется *repo.RunRepo.
type RunStore interface {
	Create(ctx context.Context, run *domain.Run) error
	Update(ctx context.Context, run *domain.Run) error
	Claim(ctx context.Context, id uuid.UUID) (*domain.Run, error)
}

// Notifier публикует события runs. Реализуется *mq.Publisher.
type Notifier interface {
	PublishRunPending(ctx context.Context, runID uuid.UUID) error
	PublishRunCompleted(ctx context.Context, payload mq.RunCompletedPayload) error
}

// Metrics учитывает runs, обработанные асинхронно.
type Metrics interface {
	WorkerRun(status domain.RunStatus)
}

type nopMetrics struct{}

func (nopMetrics) WorkerRun(domain.RunStatus) {}

// Orchestrator ведёт run от плана до сохранённого результата.
//
// Orchestrator не хранит состояния между вызовами, поэтому его можно
// вызывать из нескольких горутин одновременно.
type Orchestrator struct {
	executor   Executor
	summarizer Summarizer
	runs       RunStore
	notifier   Notifier
	metrics    Metrics

	executionTimeout time.Duration
	maxSteps         int

	logger *slog.Logger
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Executor — движок. Обязателен.
	Executor Executor

	// Summarizer — сводка результата. Если nil, используется engine.Summarize.
	Summarizer Summarizer

	// Runs — хранилище. Если nil, runs не сохраняются и Submit недоступен.
	Runs RunStore

	// Notifier — публикация событий. Если nil, события не публикуются.
	Notifier Notifier

	Metrics Metrics

	// ExecutionTimeout — таймаут выполнения одного плана. 0 — без таймаута.
	ExecutionTimeout time.Duration

	// MaxSteps — максимальное число шагов. 0 — без ограничения.
	MaxSteps int

	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var metrics Metrics = nopMetrics{}
	if cfg.Metrics != nil {
		metrics = cfg.Metrics
	}

	return &Orchestrator{
		executor:         cfg.Executor,
		summarizer:       cfg.Summarizer,
		runs:             cfg.Runs,
		notifier:         cfg.Notifier,
		metrics:          metrics,
		executionTimeout: cfg.ExecutionTimeout,
		maxSteps:         cfg.MaxSteps,
		logger:           logger,
	}
}

// HasStore сообщает, сохраняются ли runs.
func (o *Orchestrator) HasStore() bool {
	return o.runs != nil
}

// CheckLimits проверяет ограничения плана.
func (o *Orchestrator) CheckLimits(spec domain.PlanSpec) error {
	if o.maxSteps > 0 && len(spec.Steps) > o.maxSteps {
		return fmt.Errorf("%w: %d > %d", ErrTooManySteps, len(spec.Steps), o.maxSteps)
	}
	return nil
}

// Execute выполняет план синхронно и возвращает завершённый run.
//
// Если хранилище настроено, run сохраняется уже завершённым. Ошибка
// сохранения логируется: результат выполнения всё равно возвращается.
func (o *Orchestrator) Execute(ctx context.Context, query string, spec domain.PlanSpec) (*domain.Run, error) {
	if err := o.CheckLimits(spec); err != nil {
		return nil, err
	}

	run := domain.NewRun(query, spec)
	run.MarkRunning()
	o.run(ctx, run)

	if o.runs != nil {
		pctx, cancel := persistContext(ctx)
		err := o.runs.Create(pctx, run)
		cancel()
		if err != nil {
			o.logger.WarnContext(ctx, "failed to persist run", "run_id", run.ID, "error", err)
		}
	}
	o.notifyCompleted(ctx, run)

	return run, nil
}

// Submit сохраняет run в статусе PENDING и публикует run.pending.
//
// Если публикация не удалась, run всё равно подхватит опрос БД worker'а.
func (o *Orchestrator) Submit(ctx context.Context, query string, spec domain.PlanSpec) (*domain.Run, error) {
	if o.runs == nil {
		return nil, ErrNoStore
	}
	if err := o.CheckLimits(spec); err != nil {
		return nil, err
	}

	run := domain.NewRun(query, spec)
	if err := o.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	if o.notifier != nil {
		if err := o.notifier.PublishRunPending(ctx, run.ID); err != nil {
			o.logger.WarnContext(ctx, "failed to publish run.pending", "run_id", run.ID, "error", err)
		}
	}

	o.logger.InfoContext(ctx, "run submitted", "run_id", run.ID, "steps", len(spec.Steps))
	return run, nil
}

// Process выполняет сохранённый PENDING run.
//
// Run переводится в RUNNING атомарно, поэтому один run не выполняется
// дважды. Возвращает ErrRunNotFound или ErrRunNotPending, если
// выполнять нечего.
func (o *Orchestrator) Process(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	if o.runs == nil {
		return nil, ErrNoStore
	}

	run, err := o.runs.Claim(ctx, id)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case errors.Is(err, repo.ErrInvalidState):
		return nil, fmt.Errorf("%w: %s", ErrRunNotPending, id)
	case err != nil:
		return nil, fmt.Errorf("claim run: %w", err)
	}

	if err := o.CheckLimits(run.Plan); err != nil {
		run.MarkFailed(err.Error())
	} else {
		o.run(ctx, run)
	}

	pctx, cancel := persistContext(ctx)
	defer cancel()
	if err := o.runs.Update(pctx, run); err != nil {
		return run, fmt.Errorf("update run: %w", err)
	}

	o.metrics.WorkerRun(run.Status)
	o.notifyCompleted(ctx, run)
	return run, nil
}

// run выполняет план run'а и записывает результат.
func (o *Orchestrator) run(ctx context.Context, run *domain.Run) {
	logger := telemetry.WithRunID(o.logger, run.ID.String())
	ctx = telemetry.WithLogger(ctx, logger)

	execCtx, cancel := o.withTimeout(ctx)
	defer cancel()

	res := o.executor.Run(execCtx, run.Plan)
	run.MarkFinished(res, o.summarize(ctx, run.Query, res))

	logger.InfoContext(ctx, "run finished",
		"status", run.Status,
		"plan_status", res.Status,
		"duration", run.Duration(),
	)
}

func (o *Orchestrator) summarize(ctx context.Context, query string, res *domain.ExecutionResult) string {
	if o.summarizer == nil {
		return engine.Summarize(res)
	}
	return o.summarizer.Summarize(ctx, query, res)
}

func (o *Orchestrator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.executionTimeout > 0 {
		return context.WithTimeout(ctx, o.executionTimeout)
	}
	return context.WithCancel(ctx)
}

func (o *Orchestrator) notifyCompleted(ctx context.Context, run *domain.Run) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.PublishRunCompleted(ctx, mq.RunCompletedFromRun(run)); err != nil {
		o.logger.WarnContext(ctx, "failed to publish run.completed", "run_id", run.ID, "error", err)
	}
}

// persistContext отвязывает сохранение результата от отмены запроса.
func persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
}

package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Sequencer/internal/domain"
	"github.com/shaiso/Sequencer/internal/mq"
	"github.com/shaiso/Sequencer/internal/orchestrator"
)

// Default configuration values.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 50
	defaultConcurrency  = 4
)

// Processor выполняет сохранённый run. Реализуется *orchestrator.Orchestrator.
type Processor interface {
	Process(ctx context.Context, id uuid.UUID) (*domain.Run, error)
}

// PendingLister возвращает runs в статусе PENDING. Реализуется *repo.RunRepo.
type PendingLister interface {
	ListPending(ctx context.Context, limit int) ([]domain.Run, error)
}

// Worker выполняет планы, отправленные на асинхронное выполнение.
//
// Worker:
//   - Получает run.pending из очереди RabbitMQ (event-driven)
//   - Периодически проверяет PENDING runs в БД (polling fallback)
//   - Передаёт run в Processor, который выполняет план и сохраняет результат
//
// Workers масштабируются горизонтально: Processor забирает run
// атомарно, поэтому один run выполняется одним экземпляром.
type Worker struct {
	processor Processor
	pending   PendingLister
	conn      *mq.Connection

	pollInterval time.Duration
	batchSize    int
	concurrency  int

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	Processor Processor
	Pending   PendingLister

	// Conn — соединение с RabbitMQ. Если nil, работает только polling.
	Conn *mq.Connection

	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // количество runs за один poll (default: 50)
	Concurrency  int           // одновременно выполняемых runs (default: 4)

	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		processor:    cfg.Processor,
		pending:      cfg.Pending,
		conn:         cfg.Conn,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		concurrency:  concurrency,
		logger:       logger,
	}
}

// Start запускает consumer runs.pending (если есть соединение)
// и polling. Не блокирует.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"poll_interval", w.pollInterval,
		"batch_size", w.batchSize,
		"concurrency", w.concurrency,
		"mq", w.conn != nil,
	)

	if w.conn != nil {
		consumer := mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
			Queue:    mq.QueueRunsPending,
			Handler:  w.handleRunPending,
			Prefetch: w.concurrency,
		})

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("run consumer error", "error", err)
			}
		}()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pollLoop(ctx)
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker и ждёт завершения выполняемых runs.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}

// handleRunPending обрабатывает событие из очереди runs.pending.
func (w *Worker) handleRunPending(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunPendingPayload](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse run.pending payload", "error", err)
		return err
	}

	w.logger.Debug("received run.pending event", "run_id", payload.RunID)

	return w.process(ctx, payload.RunID)
}

// process выполняет один run. Run, который уже взят или не найден,
// не считается ошибкой.
func (w *Worker) process(ctx context.Context, id uuid.UUID) error {
	run, err := w.processor.Process(ctx, id)
	if err != nil {
		if errors.Is(err, orchestrator.ErrRunNotFound) || errors.Is(err, orchestrator.ErrRunNotPending) {
			w.logger.Debug("run not processed", "run_id", id, "reason", err)
			return nil
		}
		w.logger.Error("failed to process run", "run_id", id, "error", err)
		return err
	}

	w.logger.Info("run processed",
		"run_id", run.ID,
		"status", run.Status,
		"duration", run.Duration(),
	)
	return nil
}

// pollLoop — цикл polling для fallback.
func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// первый poll сразу: подхватываем runs, созданные пока worker был выключен
	w.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll выполняет PENDING runs, не больше concurrency одновременно.
func (w *Worker) poll(ctx context.Context) {
	if w.pending == nil {
		return
	}

	runs, err := w.pending.ListPending(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("failed to list pending runs", "error", err)
		return
	}
	if len(runs) == 0 {
		return
	}

	w.logger.Debug("poll found pending runs", "count", len(runs))

	sem := make(chan struct{}, w.concurrency)
	var wg sync.WaitGroup
	for _, run := range runs {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			defer func() { <-sem }()
			_ = w.process(ctx, id)
		}(run.ID)
	}
	wg.Wait()
}

// Package app собирает зависимости сервисов Sequencer из конфигурации.
//
// sequencer-api и sequencer-worker используют одну сборку: реестр
// функций, движок, планировщик, оркестратор и, если они настроены,
// PostgreSQL и RabbitMQ.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/shaiso/Sequencer/internal/config"
	"github.com/shaiso/Sequencer/internal/engine"
	"github.com/shaiso/Sequencer/internal/functions"
	"github.com/shaiso/Sequencer/internal/mq"
	"github.com/shaiso/Sequencer/internal/objectstore"
	"github.com/shaiso/Sequencer/internal/orchestrator"
	"github.com/shaiso/Sequencer/internal/planner"
	"github.com/shaiso/Sequencer/internal/registry"
	"github.com/shaiso/Sequencer/internal/repo"
	"github.com/shaiso/Sequencer/internal/telemetry"
)

// ErrDatabaseRequired — сервису нужна БД, а database.url не задан.
var ErrDatabaseRequired = errors.New("database is required")

// App — собранные зависимости.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *telemetry.Metrics

	Registry     *registry.Registry
	Engine       *engine.Engine
	LLM          *planner.LLMPlanner // nil, если модель не настроена
	Planner      *planner.Chain
	Summarizer   *planner.Summarizer
	Orchestrator *orchestrator.Orchestrator

	Runs      *repo.RunRepo  // nil без БД
	Conn      *mq.Connection // nil без брокера
	Publisher *mq.Publisher  // nil без брокера
	Limiter   *rate.Limiter  // nil, если ограничение выключено

	closers []func()
}

// Options — требования сервиса к инфраструктуре.
type Options struct {
	RequireDatabase bool
}

// New собирает App. При ошибке уже открытые ресурсы закрываются.
//
// Недоступный брокер не является ошибкой: сервис работает без
// событий, а worker переходит на polling.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (_ *App, err error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: telemetry.NewMetrics(nil),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if err := a.setupFunctions(ctx); err != nil {
		return nil, err
	}
	if err := a.setupPlanner(); err != nil {
		return nil, err
	}
	if err := a.setupDatabase(ctx, opts.RequireDatabase); err != nil {
		return nil, err
	}
	a.setupBroker(ctx)

	orchCfg := orchestrator.Config{
		Executor:         a.Engine,
		Summarizer:       a.Summarizer,
		Metrics:          a.Metrics,
		ExecutionTimeout: cfg.Limits.ExecutionTimeout,
		MaxSteps:         cfg.Limits.MaxSteps,
		Logger:           logger,
	}
	// nil указатели не должны попасть в интерфейсы
	if a.Runs != nil {
		orchCfg.Runs = a.Runs
	}
	if a.Publisher != nil {
		orchCfg.Notifier = a.Publisher
	}
	a.Orchestrator = orchestrator.New(orchCfg)

	if cfg.Limits.RequestsPerSecond > 0 {
		a.Limiter = rate.NewLimiter(rate.Limit(cfg.Limits.RequestsPerSecond), cfg.Limits.Burst)
	}

	return a, nil
}

func (a *App) setupFunctions(ctx context.Context) error {
	cfg := a.Config

	store, err := objectstore.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("object store: %w", err)
	}

	deps := functions.Deps{
		Store:            store,
		HTTPClient:       &http.Client{Timeout: cfg.Limits.HTTPTimeout},
		Logger:           a.Logger,
		MaxDownloadBytes: cfg.Limits.MaxDownloadBytes,
	}
	if cfg.SMTP.Enabled() {
		deps.Mailer = functions.NewSMTPMailer(cfg.SMTP)
	}

	a.Registry, err = functions.NewRegistry(deps)
	if err != nil {
		return fmt.Errorf("function registry: %w", err)
	}

	a.Engine = engine.New(a.Registry,
		engine.WithLogger(a.Logger),
		engine.WithMetrics(a.Metrics),
	)

	a.Logger.Info("functions registered", "count", a.Registry.Len(), "storage", cfg.Storage.Backend)
	return nil
}

func (a *App) setupPlanner() error {
	cfg := a.Config.LLM

	model, err := planner.NewModel(cfg)
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}

	var opts []planner.LLMOption
	if cfg.Temperature > 0 {
		opts = append(opts, planner.WithTemperature(cfg.Temperature))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, planner.WithTimeout(cfg.Timeout))
	}

	a.LLM = planner.NewLLMPlanner(model, a.Registry.List(), opts...)

	planners := []planner.Planner{planner.NewFallbackPlanner()}
	if a.LLM != nil {
		planners = append([]planner.Planner{a.LLM}, planners...)
		a.Logger.Info("llm planner enabled", "provider", cfg.Provider, "model", cfg.Model)
	}

	a.Planner = planner.NewChain(planners,
		planner.WithLogger(a.Logger),
		planner.WithMetrics(a.Metrics),
	)
	a.Summarizer = planner.NewSummarizer(model, a.Logger)
	return nil
}

func (a *App) setupDatabase(ctx context.Context, required bool) error {
	cfg := a.Config.Database
	if !cfg.Enabled() {
		if required {
			return ErrDatabaseRequired
		}
		a.Logger.Info("database not configured, run history disabled")
		return nil
	}

	pool, err := repo.NewPool(ctx, cfg.URL)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	a.closers = append(a.closers, pool.Close)

	if cfg.AutoMigrate {
		if err := repo.EnsureSchema(ctx, pool); err != nil {
			return err
		}
	}

	a.Runs = repo.NewRunRepo(pool)
	a.Logger.Info("connected to database")
	return nil
}

func (a *App) setupBroker(ctx context.Context) {
	cfg := a.Config.RabbitMQ
	if !cfg.Enabled() {
		a.Logger.Info("rabbitmq not configured, events disabled")
		return
	}

	conn, err := mq.NewConnection(cfg.URL, a.Logger)
	if err != nil {
		a.Logger.Warn("RabbitMQ not available, running without events", "error", err)
		return
	}
	a.closers = append(a.closers, func() {
		if err := conn.Close(); err != nil {
			a.Logger.Warn("failed to close rabbitmq connection", "error", err)
		}
	})

	if err := mq.SetupTopology(ctx, conn); err != nil {
		a.Logger.Warn("failed to setup topology", "error", err)
	}

	a.Conn = conn
	a.Publisher = mq.NewPublisher(conn, a.Logger)
	a.Logger.Info("RabbitMQ connected")
}

// Close освобождает ресурсы в обратном порядке.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

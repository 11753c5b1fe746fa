package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/shaiso/Sequencer/internal/domain"
	"github.com/shaiso/Sequencer/internal/orchestrator"
	"github.com/shaiso/Sequencer/internal/planner"
	"github.com/shaiso/Sequencer/internal/repo"
	"github.com/shaiso/Sequencer/internal/telemetry"
)

// Functions — реестр функций. Реализуется *registry.Registry.
type Functions interface {
	List() []domain.FunctionSpec
	Len() int
}

// Validator выполняет dry run. Реализуется *engine.Engine.
type Validator interface {
	ValidateSpec(spec domain.PlanSpec) *domain.PlanReport
}

// Planner составляет план по запросу. Реализуется *planner.Chain.
type Planner interface {
	Plan(ctx context.Context, query string) (*planner.RawPlan, error)
}

// Pinger проверяет доступность языковой модели. Реализуется *planner.LLMPlanner.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RunReader читает историю runs. Реализуется *repo.RunRepo.
type RunReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	List(ctx context.Context, filter repo.RunFilter) ([]domain.Run, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	functions    Functions
	validator    Validator
	orchestrator *orchestrator.Orchestrator
	planner      Planner
	llm          Pinger
	runs         RunReader
	metrics      *telemetry.Metrics
	limiter      *rate.Limiter
	logger       *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Functions    Functions
	Validator    Validator
	Orchestrator *orchestrator.Orchestrator
	Planner      Planner

	// LLM — опционально; nil означает, что модель не настроена.
	LLM Pinger

	// Runs — опционально; nil отключает /runs.
	Runs RunReader

	// Metrics — опционально; nil отключает /metrics и метрики запросов.
	Metrics *telemetry.Metrics

	// Limiter — опционально; ограничивает /api/v1/query/*.
	Limiter *rate.Limiter

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	llm := cfg.LLM
	if p, ok := llm.(*planner.LLMPlanner); ok && p == nil {
		llm = nil
	}

	return &Handler{
		functions:    cfg.Functions,
		validator:    cfg.Validator,
		orchestrator: cfg.Orchestrator,
		planner:      cfg.Planner,
		llm:          llm,
		runs:         cfg.Runs,
		metrics:      cfg.Metrics,
		limiter:      cfg.Limiter,
		logger:       logger,
	}
}

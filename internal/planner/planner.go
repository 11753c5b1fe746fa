package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shaiso/Sequencer/internal/domain"
)

// Источники плана.
const (
	SourceLLM      = "llm"
	SourceFallback = "fallback"
)

// Ошибки планирования.
var (
	// ErrEmptyQuery — пустой запрос.
	ErrEmptyQuery = errors.New("empty query")

	// ErrNoPlan — планировщик не смог составить ни одного шага.
	ErrNoPlan = errors.New("no plan produced")

	// ErrUnparseable — ответ модели не содержит JSON массива шагов.
	ErrUnparseable = errors.New("unparseable planner response")

	// ErrModel — ошибка вызова языковой модели.
	ErrModel = errors.New("language model call failed")
)

// PlanningError — запрос не удалось превратить в план.
//
// Такие ошибки обрабатываются до движка: план с ошибкой планирования
// никогда не выполняется.
type PlanningError struct {
	Query string
	Err   error
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf("planning failed for %q: %v", e.Query, e.Err)
}

func (e *PlanningError) Unwrap() error {
	return e.Err
}

// RawPlan — план в исходном виде, как его составил планировщик.
type RawPlan struct {
	// Spec — шаги плана. Ссылки ещё не разобраны.
	Spec domain.PlanSpec `json:"plan"`

	// Source — кто составил план: llm или fallback.
	Source string `json:"source"`

	// Response — исходный ответ модели, если план составлен ею.
	Response string `json:"response,omitempty"`
}

// Planner превращает запрос на естественном языке в план.
type Planner interface {
	Plan(ctx context.Context, query string) (*RawPlan, error)
}

// Metrics учитывает запросы к планировщикам.
type Metrics interface {
	Planned(source string, err error)
}

type nopMetrics struct{}

func (nopMetrics) Planned(string, error) {}

// Chain опрашивает планировщики по порядку и возвращает первый
// непустой план. Обычно это LLMPlanner, а затем FallbackPlanner.
type Chain struct {
	planners []namedPlanner
	logger   *slog.Logger
	metrics  Metrics
}

type namedPlanner struct {
	source string
	p      Planner
}

// ChainOption — опция Chain.
type ChainOption func(*Chain)

// WithLogger задаёт логгер.
func WithLogger(logger *slog.Logger) ChainOption {
	return func(c *Chain) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics задаёт приёмник метрик.
func WithMetrics(m Metrics) ChainOption {
	return func(c *Chain) {
		if m != nil {
			c.metrics = m
		}
	}
}

// NewChain создаёт цепочку. nil планировщики пропускаются, поэтому
// LLMPlanner можно передавать даже если модель не настроена.
func NewChain(planners []Planner, opts ...ChainOption) *Chain {
	c := &Chain{logger: slog.Default(), metrics: nopMetrics{}}
	for _, opt := range opts {
		opt(c)
	}

	for _, p := range planners {
		if p == nil {
			continue
		}
		if lp, ok := p.(*LLMPlanner); ok && lp == nil {
			continue
		}
		c.planners = append(c.planners, namedPlanner{source: sourceOf(p), p: p})
	}
	return c
}

func sourceOf(p Planner) string {
	switch p.(type) {
	case *LLMPlanner:
		return SourceLLM
	case *FallbackPlanner:
		return SourceFallback
	default:
		return fmt.Sprintf("%T", p)
	}
}

// Plan возвращает план первого успешного планировщика.
// Если все планировщики отказали, возвращает *PlanningError
// с ошибкой последнего из них.
func (c *Chain) Plan(ctx context.Context, query string) (*RawPlan, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &PlanningError{Query: query, Err: ErrEmptyQuery}
	}

	lastErr := ErrNoPlan
	for _, np := range c.planners {
		raw, err := np.p.Plan(ctx, query)
		if err == nil && (raw == nil || len(raw.Spec.Steps) == 0) {
			err = ErrNoPlan
		}
		c.metrics.Planned(np.source, err)

		if err == nil {
			c.logger.InfoContext(ctx, "plan produced",
				"source", raw.Source,
				"steps", len(raw.Spec.Steps),
			)
			return raw, nil
		}

		c.logger.WarnContext(ctx, "planner failed",
			"source", np.source,
			"error", err,
		)
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	var pe *PlanningError
	if errors.As(lastErr, &pe) {
		return nil, pe
	}
	return nil, &PlanningError{Query: query, Err: lastErr}
}

package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Sequencer/internal/domain"
)

// Metrics — набор Prometheus метрик сервиса.
//
// Реализует engine.Metrics. Метрики регистрируются в переданном
// Registry, что позволяет создавать изолированные наборы в тестах.
type Metrics struct {
	runsTotal     *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	stepsTotal    *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	planningTotal *prometheus.CounterVec
	workerRuns    *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewMetrics создаёт и регистрирует метрики.
// Если reg == nil, создаётся отдельный prometheus.Registry
// с метриками Go runtime и процесса.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	f := promauto.With(reg)

	return &Metrics{
		runsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sequencer_engine_runs_total",
			Help: "Total plan executions by final status",
		}, []string{"status"}),

		runDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sequencer_engine_run_duration_seconds",
			Help:    "Plan execution duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),

		stepsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sequencer_engine_steps_total",
			Help: "Total executed steps by function and outcome",
		}, []string{"function", "outcome"}),

		stepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sequencer_engine_step_duration_seconds",
			Help:    "Function invocation duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"function"}),

		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sequencer_api_http_requests_total",
			Help: "Total HTTP requests handled by sequencer-api",
		}, []string{"method", "route", "status"}),

		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sequencer_api_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),

		planningTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sequencer_planner_requests_total",
			Help: "Planning requests by planner source and result",
		}, []string{"source", "result"}),

		workerRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sequencer_worker_runs_total",
			Help: "Runs processed by sequencer-worker by run status",
		}, []string{"status"}),

		gatherer: reg,
	}
}

// RunFinished учитывает завершённое выполнение плана.
func (m *Metrics) RunFinished(status domain.Status, d time.Duration) {
	m.runsTotal.WithLabelValues(string(status)).Inc()
	m.runDuration.WithLabelValues(string(status)).Observe(d.Seconds())
}

// StepFinished учитывает завершённый шаг.
func (m *Metrics) StepFinished(function string, outcome domain.Outcome, d time.Duration) {
	m.stepsTotal.WithLabelValues(function, string(outcome)).Inc()
	if d > 0 {
		m.stepDuration.WithLabelValues(function).Observe(d.Seconds())
	}
}

// HTTPRequest учитывает обработанный HTTP запрос.
func (m *Metrics) HTTPRequest(method, route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Planned учитывает запрос к планировщику.
func (m *Metrics) Planned(source string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.planningTotal.WithLabelValues(source, result).Inc()
}

// WorkerRun учитывает run, обработанный worker'ом.
func (m *Metrics) WorkerRun(status domain.RunStatus) {
	m.workerRuns.WithLabelValues(string(status)).Inc()
}

// Handler возвращает HTTP handler для /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
		Metrics(h.metrics),
	)
	limited := Chain(chain, RateLimit(h.limiter))

	mux.HandleFunc("GET /healthz", h.Healthz)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics.Handler())
	}

	mux.Handle("GET /api/v1/health", chain(http.HandlerFunc(h.Health)))
	mux.Handle("GET /api/v1/functions", chain(http.HandlerFunc(h.ListFunctions)))

	// Plans
	mux.Handle("POST /api/v1/plans/validate", chain(http.HandlerFunc(h.ValidatePlan)))
	mux.Handle("POST /api/v1/plans/execute", chain(http.HandlerFunc(h.ExecutePlan)))
	mux.Handle("POST /api/v1/plans/submit", chain(http.HandlerFunc(h.SubmitPlan)))

	// Natural language queries
	mux.Handle("POST /api/v1/query/plan", limited(http.HandlerFunc(h.PlanQuery)))
	mux.Handle("POST /api/v1/query/execute", limited(http.HandlerFunc(h.ExecuteQuery)))

	// Runs
	mux.Handle("GET /api/v1/runs", chain(http.HandlerFunc(h.ListRuns)))
	mux.Handle("GET /api/v1/runs/{id}", chain(http.HandlerFunc(h.GetRun)))
}

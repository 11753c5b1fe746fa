package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/shaiso/Sequencer/internal/planner"
)

// PlanQuery составляет план по запросу и проверяет его, не выполняя.
// POST /api/v1/query/plan
func (h *Handler) PlanQuery(w http.ResponseWriter, r *http.Request) {
	req, raw, ok := h.plan(w, r)
	if !ok {
		return
	}

	Success(w, QueryPlanFromRaw(req.Query, raw, h.validator.ValidateSpec(raw.Spec)))
}

// ExecuteQuery составляет план по запросу, выполняет его и описывает результат.
// С dry_run=true работает как PlanQuery.
// POST /api/v1/query/execute
func (h *Handler) ExecuteQuery(w http.ResponseWriter, r *http.Request) {
	req, raw, ok := h.plan(w, r)
	if !ok {
		return
	}

	if req.DryRun {
		Success(w, QueryPlanFromRaw(req.Query, raw, h.validator.ValidateSpec(raw.Spec)))
		return
	}

	run, err := h.orchestrator.Execute(r.Context(), req.Query, raw.Spec)
	if h.handleOrchestratorError(w, err) {
		return
	}

	Success(w, QueryExecuteResponse{
		Query:  req.Query,
		Source: raw.Source,
		Run:    RunFromDomain(*run),
	})
}

// plan декодирует QueryRequest и составляет план.
func (h *Handler) plan(w http.ResponseWriter, r *http.Request) (QueryRequest, *planner.RawPlan, bool) {
	var req QueryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return req, nil, false
	}

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		BadRequest(w, "query is required")
		return req, nil, false
	}

	raw, err := h.planner.Plan(r.Context(), req.Query)
	if err != nil {
		var pe *planner.PlanningError
		if errors.As(err, &pe) {
			PlanningFailed(w, pe.Error())
			return req, nil, false
		}
		InternalError(w, h.logger, err)
		return req, nil, false
	}

	return req, raw, true
}

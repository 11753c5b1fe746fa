package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/shaiso/Sequencer/internal/domain"
	"github.com/shaiso/Sequencer/internal/engine"
	"github.com/shaiso/Sequencer/internal/orchestrator"
)

// maxBodyBytes — максимальный размер тела запроса.
const maxBodyBytes = 1 << 20

// ListFunctions возвращает реестр функций в порядке регистрации.
// GET /api/v1/functions
func (h *Handler) ListFunctions(w http.ResponseWriter, r *http.Request) {
	specs := h.functions.List()

	result := make([]FunctionResponse, len(specs))
	for i, spec := range specs {
		result[i] = FunctionFromDomain(spec)
	}

	List(w, result, len(result))
}

// ValidatePlan выполняет dry run присланного плана.
// Недействительный план — это успешный ответ с valid=false.
// POST /api/v1/plans/validate
func (h *Handler) ValidatePlan(w http.ResponseWriter, r *http.Request) {
	spec, ok := h.readPlan(w, r)
	if !ok {
		return
	}

	Success(w, h.validator.ValidateSpec(spec))
}

// ExecutePlan выполняет присланный план синхронно.
// POST /api/v1/plans/execute
func (h *Handler) ExecutePlan(w http.ResponseWriter, r *http.Request) {
	spec, ok := h.readPlan(w, r)
	if !ok {
		return
	}

	run, err := h.orchestrator.Execute(r.Context(), "", spec)
	if h.handleOrchestratorError(w, err) {
		return
	}

	Success(w, RunFromDomain(*run))
}

// SubmitPlan сохраняет план для асинхронного выполнения worker'ом.
// POST /api/v1/plans/submit
func (h *Handler) SubmitPlan(w http.ResponseWriter, r *http.Request) {
	spec, ok := h.readPlan(w, r)
	if !ok {
		return
	}

	run, err := h.orchestrator.Submit(r.Context(), "", spec)
	if h.handleOrchestratorError(w, err) {
		return
	}

	Accepted(w, RunFromDomain(*run))
}

// readPlan декодирует план из тела запроса (JSON или YAML).
func (h *Handler) readPlan(w http.ResponseWriter, r *http.Request) (domain.PlanSpec, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		BadRequest(w, "failed to read request body")
		return domain.PlanSpec{}, false
	}

	decode := engine.DecodePlan
	if isYAML(r.Header.Get("Content-Type")) {
		decode = engine.DecodePlanYAML
	}

	spec, err := decode(data)
	if err != nil {
		BadRequest(w, fmt.Sprintf("invalid plan: %v", err))
		return domain.PlanSpec{}, false
	}
	return spec, true
}

func isYAML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasSuffix(mediaType, "yaml")
}

// handleOrchestratorError преобразует ошибку оркестратора в HTTP ответ.
func (h *Handler) handleOrchestratorError(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, orchestrator.ErrTooManySteps):
		BadRequest(w, err.Error())
	case errors.Is(err, orchestrator.ErrNoStore):
		Unavailable(w, "asynchronous execution requires a database")
	default:
		InternalError(w, h.logger, err)
	}
	return true
}

package api

import (
	"context"
	"net/http"
	"time"
)

// llmPingTimeout ограничивает проверку модели в /health.
const llmPingTimeout = 5 * time.Second

// Healthz — проверка, что процесс жив.
// GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Health возвращает состояние зависимостей.
// GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Functions: h.functions.Len(),
		LLM:       "disabled",
		Database:  h.runs != nil,
	}

	if h.llm != nil {
		ctx, cancel := context.WithTimeout(r.Context(), llmPingTimeout)
		defer cancel()

		resp.LLM = "ok"
		if err := h.llm.Ping(ctx); err != nil {
			h.logger.WarnContext(ctx, "llm ping failed", "error", err)
			resp.LLM = "unreachable"
			resp.Status = "degraded"
		}
	}

	Success(w, resp)
}

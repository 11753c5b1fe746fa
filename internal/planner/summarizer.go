package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/shaiso/Sequencer/internal/domain"
	"github.com/shaiso/Sequencer/internal/engine"
)

const (
	summaryTemperature = 0.3
	summaryMaxTokens   = 200
	summarySystem      = "You are a data analyst that creates clear, concise summaries."
)

// Summarizer описывает результат выполнения плана человеческим языком.
//
// Без модели или при её ошибке возвращает текстовую сводку движка.
type Summarizer struct {
	model  llms.Model
	logger *slog.Logger
}

// NewSummarizer создаёт Summarizer. model может быть nil.
func NewSummarizer(model llms.Model, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{model: model, logger: logger}
}

// Summarize возвращает сводку результата для запроса query.
func (s *Summarizer) Summarize(ctx context.Context, query string, res *domain.ExecutionResult) string {
	fallback := engine.Summarize(res)
	if s.model == nil || res == nil || res.Status == domain.StatusFailedBeforeStart {
		return fallback
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, summarySystem),
		llms.TextParts(llms.ChatMessageTypeHuman, summaryPrompt(query, res)),
	}

	resp, err := s.model.GenerateContent(ctx, messages,
		llms.WithTemperature(summaryTemperature),
		llms.WithMaxTokens(summaryMaxTokens),
	)
	if err != nil || len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		s.logger.WarnContext(ctx, "llm summary failed, using text summary", "error", err)
		return fallback
	}

	return strings.TrimSpace(resp.Choices[0].Content)
}

func summaryPrompt(query string, res *domain.ExecutionResult) string {
	data := map[string]any{
		"status": res.Status,
	}
	if res.FinalOutput != nil {
		data["final_output"] = res.FinalOutput
	}

	var failures []string
	for _, sr := range res.Steps {
		if sr.Error != nil {
			failures = append(failures, fmt.Sprintf("step %d %s: %s", sr.Index, sr.Function, sr.Error.Message))
		}
	}
	if len(failures) > 0 {
		data["failures"] = failures
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		raw = []byte(engine.Summarize(res))
	}

	return fmt.Sprintf(`Generate a clear, concise summary of the following data:

Context: results of the request %q
Data: %s

Provide a human-readable summary in 2-3 sentences.
`, query, raw)
}

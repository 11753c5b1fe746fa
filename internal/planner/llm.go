package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/shaiso/Sequencer/internal/config"
	"github.com/shaiso/Sequencer/internal/domain"
)

const (
	planningTemperature = 0.1
	planningMaxTokens   = 1000
	planningSystem      = "You are a function planning AI. Analyze user queries and return a JSON array of function calls."
)

var jsonArrayRe = regexp.MustCompile(`(?s)\[.*\]`)

// NewModel создаёт языковую модель по конфигурации.
// Для провайдера none возвращает nil без ошибки.
func NewModel(cfg config.LLMConfig) (llms.Model, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		return ollama.New(opts...)

	case config.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(cfg.APIKey),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)

	case config.ProviderNone, "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// LLMPlanner составляет план с помощью языковой модели.
type LLMPlanner struct {
	model       llms.Model
	catalog     []domain.FunctionSpec
	temperature float64
	timeout     time.Duration
}

// LLMOption — опция LLMPlanner.
type LLMOption func(*LLMPlanner)

// WithTemperature задаёт температуру генерации.
func WithTemperature(t float64) LLMOption {
	return func(p *LLMPlanner) { p.temperature = t }
}

// WithTimeout ограничивает время одного обращения к модели.
func WithTimeout(d time.Duration) LLMOption {
	return func(p *LLMPlanner) { p.timeout = d }
}

// NewLLMPlanner создаёт планировщик. catalog — функции, которые
// модель может использовать, в порядке реестра.
// Если model == nil, возвращает nil.
func NewLLMPlanner(model llms.Model, catalog []domain.FunctionSpec, opts ...LLMOption) *LLMPlanner {
	if model == nil {
		return nil
	}
	p := &LLMPlanner{
		model:       model,
		catalog:     catalog,
		temperature: planningTemperature,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan запрашивает у модели план и извлекает из ответа массив шагов.
func (p *LLMPlanner) Plan(ctx context.Context, query string) (*RawPlan, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, planningSystem),
		llms.TextParts(llms.ChatMessageTypeHuman, BuildPrompt(query, p.catalog)),
	}

	resp, err := p.model.GenerateContent(ctx, messages,
		llms.WithTemperature(p.temperature),
		llms.WithMaxTokens(planningMaxTokens),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModel, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrModel)
	}

	text := resp.Choices[0].Content
	spec, err := ExtractPlan(text)
	if err != nil {
		return nil, err
	}

	return &RawPlan{Spec: spec, Source: SourceLLM, Response: text}, nil
}

// Ping проверяет доступность модели коротким запросом.
func (p *LLMPlanner) Ping(ctx context.Context) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	if _, err := llms.GenerateFromSinglePrompt(ctx, p.model, "ping", llms.WithMaxTokens(1)); err != nil {
		return fmt.Errorf("%w: %w", ErrModel, err)
	}
	return nil
}

func (p *LLMPlanner) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout > 0 {
		return context.WithTimeout(ctx, p.timeout)
	}
	return context.WithCancel(ctx)
}

// BuildPrompt собирает промпт с каталогом функций и правилами ссылок.
func BuildPrompt(query string, catalog []domain.FunctionSpec) string {
	var b strings.Builder

	b.WriteString("You are a function planning AI that converts natural language queries into structured function call sequences.\n\n")
	b.WriteString("AVAILABLE FUNCTIONS:\n")
	for _, spec := range catalog {
		fmt.Fprintf(&b, "\nFunction: %s\nDescription: %s\n", spec.Name, spec.Description)
		b.WriteString("Inputs: " + describeInputs(spec.Inputs) + "\n")
		b.WriteString("Outputs: " + describeOutputs(spec.Outputs) + "\n")
	}

	fmt.Fprintf(&b, "\nUSER QUERY: %q\n\n", query)
	b.WriteString(`TASK: Analyze the user query and create a sequence of function calls to fulfill the request.

RULES:
1. Return ONLY a valid JSON array of function calls
2. Each function call must have: {"function": "function_name", "inputs": {"param": "value"}}
3. Use references like "$output_0.field" or "{{output_1.field}}" to pass outputs of earlier steps
4. The first function's output is output_0, the second is output_1, and so on
5. A step may only reference steps that come before it
6. Use only the functions listed above and be specific with parameter values

EXAMPLE FORMAT:
[
  {"function": "get_invoices", "inputs": {"month": "March"}},
  {"function": "summarize_invoices", "inputs": {"invoices": "$output_0.invoices"}},
  {"function": "send_email", "inputs": {"content": "$output_1.summary", "recipient": "user@example.com", "subject": "Invoice Summary"}}
]

RESPONSE (JSON only):
`)
	return b.String()
}

func describeInputs(params []domain.Param) string {
	if len(params) == 0 {
		return "none"
	}
	parts := make([]string, len(params))
	for i, p := range params {
		s := p.Name + ": " + string(p.Type)
		if p.Optional {
			s += " (optional)"
		}
		parts[i] = s
	}
	return strings.Join(parts, ", ")
}

func describeOutputs(fields []domain.Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Name + ": " + string(f.Type)
	}
	return strings.Join(parts, ", ")
}

// ExtractPlan извлекает из ответа модели JSON массив шагов.
//
// Берётся текст от первой "[" до последней "]". Элементы без function
// или с inputs, не являющимся объектом, отбрасываются.
func ExtractPlan(text string) (domain.PlanSpec, error) {
	match := jsonArrayRe.FindString(text)
	if match == "" {
		return domain.PlanSpec{}, fmt.Errorf("%w: no JSON array found", ErrUnparseable)
	}

	var items []any
	if err := json.Unmarshal([]byte(match), &items); err != nil {
		return domain.PlanSpec{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	var spec domain.PlanSpec
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		fn, ok := item["function"].(string)
		if !ok || fn == "" {
			continue
		}
		inputs, ok := item["inputs"].(map[string]any)
		if !ok {
			if item["inputs"] != nil {
				continue
			}
			inputs = map[string]any{}
		}
		step := domain.StepSpec{Function: fn, Inputs: inputs}
		if name, ok := item["output_var"].(string); ok {
			step.OutputVar = name
		}
		spec.Steps = append(spec.Steps, step)
	}

	if len(spec.Steps) == 0 {
		return domain.PlanSpec{}, ErrNoPlan
	}
	return spec, nil
}

package planner

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shaiso/Sequencer/internal/domain"
)

var (
	emailRe  = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	urlRe    = regexp.MustCompile(`https?://[^\s"'<>]+`)
	numberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	quotedRe = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
	exprRe   = regexp.MustCompile(`(-?\d+(?:\.\d+)?)\s*([+\-*/×÷])\s*(-?\d+(?:\.\d+)?)`)
	wordRe   = regexp.MustCompile(`[a-z]+`)
)

var months = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// FallbackPlanner составляет план по ключевым словам запроса.
//
// Используется, когда языковая модель не настроена или не смогла
// ответить. Значения аргументов извлекаются из запроса: числа,
// адреса почты, URL, текст в кавычках и названия месяцев.
type FallbackPlanner struct{}

// NewFallbackPlanner создаёт FallbackPlanner.
func NewFallbackPlanner() *FallbackPlanner {
	return &FallbackPlanner{}
}

type call = domain.StepSpec

func step(fn string, inputs map[string]any) call {
	if inputs == nil {
		inputs = map[string]any{}
	}
	return call{Function: fn, Inputs: inputs}
}

// Plan строит план. Возвращает ErrNoPlan, если запрос не распознан.
func (f *FallbackPlanner) Plan(ctx context.Context, query string) (*RawPlan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	steps := plan(query)
	if len(steps) == 0 {
		return nil, ErrNoPlan
	}
	return &RawPlan{Spec: domain.PlanSpec{Steps: steps}, Source: SourceFallback}, nil
}

// queryText — разобранный запрос.
type queryText struct {
	raw   string
	lower string
	words map[string]bool
}

func parseQuery(query string) queryText {
	lower := strings.ToLower(query)
	words := make(map[string]bool)
	for _, w := range wordRe.FindAllString(lower, -1) {
		words[w] = true
	}
	return queryText{raw: query, lower: lower, words: words}
}

func (q queryText) has(words ...string) bool {
	for _, w := range words {
		if q.words[w] {
			return true
		}
	}
	return false
}

func (q queryText) mentions(phrases ...string) bool {
	for _, p := range phrases {
		if strings.Contains(q.lower, p) {
			return true
		}
	}
	return false
}

func (q queryText) email(def string) string {
	if m := emailRe.FindString(q.raw); m != "" {
		return m
	}
	return def
}

func (q queryText) url(def string) string {
	if m := urlRe.FindString(q.raw); m != "" {
		return strings.TrimRight(m, ".,;)")
	}
	return def
}

func (q queryText) numbers() []float64 {
	// адреса и URL не должны давать чисел
	text := urlRe.ReplaceAllString(emailRe.ReplaceAllString(q.raw, " "), " ")
	var out []float64
	for _, m := range numberRe.FindAllString(text, -1) {
		if n, err := strconv.ParseFloat(m, 64); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func (q queryText) pair(a, b float64) (float64, float64) {
	nums := q.numbers()
	if len(nums) >= 2 {
		return nums[0], nums[1]
	}
	return a, b
}

func (q queryText) text(def string) string {
	if m := quotedRe.FindStringSubmatch(q.raw); m != nil {
		if m[1] != "" {
			return m[1]
		}
		return m[2]
	}
	return def
}

func (q queryText) month(def string) string {
	for _, m := range months {
		if q.words[m] || q.words[m[:3]] {
			return strings.ToUpper(m[:1]) + m[1:]
		}
	}
	return def
}

func plan(query string) []call {
	q := parseQuery(query)

	if q.words["valid"] || q.words["validate"] {
		if q.has("email", "mail", "address") || emailRe.MatchString(q.raw) {
			return []call{step("validate_email", map[string]any{"email": q.email("test@example.com")})}
		}
	}

	if m := exprRe.FindStringSubmatch(q.raw); m != nil && !q.mentions("invoice") {
		if fn, ok := operators[m[2]]; ok {
			a, _ := strconv.ParseFloat(m[1], 64)
			b, _ := strconv.ParseFloat(m[3], 64)
			return []call{step(fn, map[string]any{"a": a, "b": b})}
		}
	}

	switch {
	case q.has("add", "plus", "sum"):
		a, b := q.pair(5, 3)
		return []call{step("add_numbers", map[string]any{"a": a, "b": b})}
	case q.has("subtract", "minus"):
		a, b := q.pair(10, 3)
		return []call{step("subtract_numbers", map[string]any{"a": a, "b": b})}
	case q.has("multiply", "times", "product"):
		a, b := q.pair(4, 5)
		return []call{step("multiply_numbers", map[string]any{"a": a, "b": b})}
	case q.has("divide", "divided"):
		a, b := q.pair(20, 4)
		return []call{step("divide_numbers", map[string]any{"a": a, "b": b})}
	}

	switch {
	case q.has("uppercase", "upper"):
		return []call{step("uppercase_string", map[string]any{"text": q.text("hello world")})}
	case q.has("lowercase", "lower"):
		return []call{step("lowercase_string", map[string]any{"text": q.text("HELLO WORLD")})}
	case q.has("reverse"):
		return []call{step("reverse_string", map[string]any{"text": q.text("hello")})}
	}

	hasURL := urlRe.MatchString(q.raw) || q.has("url", "link")
	switch {
	case q.has("download") && hasURL:
		return []call{step("download_file", map[string]any{"url": q.url("https://example.com/file.txt")})}
	case q.has("summarize", "summarise", "summary") && (hasURL || q.has("web", "page", "website", "article")):
		return []call{step("web_summarizer", map[string]any{"url": q.url("https://example.com")})}
	case q.has("status", "reachable", "up") && hasURL:
		return []call{step("check_url_status", map[string]any{"url": q.url("https://example.com")})}
	case q.has("domain") && hasURL:
		return []call{step("extract_domain", map[string]any{"url": q.url("https://example.com")})}
	}

	switch {
	case q.mentions("current time", "time now", "what time", "current date"):
		return []call{step("get_current_time", nil)}
	case q.mentions("random number"):
		lo, hi := q.pair(1, 100)
		return []call{step("generate_random_number", map[string]any{"min_val": lo, "max_val": hi})}
	case q.has("prime"):
		n := 17.0
		if nums := q.numbers(); len(nums) > 0 {
			n = nums[0]
		}
		return []call{step("check_prime", map[string]any{"number": n})}
	}

	var steps []call
	if q.mentions("invoice") {
		steps = append(steps, step("get_invoices", map[string]any{"month": q.month("March")}))
		if q.has("summary", "summarize", "summarise", "total", "report") {
			steps = append(steps, step("summarize_invoices", map[string]any{"invoices": "$output_0.invoices"}))
		}
	}

	if len(steps) > 0 && q.has("send", "email", "mail") {
		last := len(steps) - 1
		content := fmt.Sprintf("$output_%d", last)
		if steps[last].Function == "summarize_invoices" {
			content = fmt.Sprintf("$output_%d.summary", last)
		}
		steps = append(steps, step("send_email", map[string]any{
			"content":   content,
			"recipient": q.email("user@example.com"),
			"subject":   "Automated Report",
		}))
	}

	return steps
}

var operators = map[string]string{
	"+": "add_numbers",
	"-": "subtract_numbers",
	"*": "multiply_numbers",
	"×": "multiply_numbers",
	"/": "divide_numbers",
	"÷": "divide_numbers",
}

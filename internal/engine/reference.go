package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Sequencer/internal/domain"
)

// Синтаксис ссылок:
//
//	$output_N[.path]      — output шага N
//	{{output_N[.path]}}   — то же в шаблонной записи
//	$name[.path]          — output шага, объявившего output_var "name"
//	$$text                — литеральная строка "$text"
//
// Звенья пути — имена полей записи или индексы списков.
var (
	identRe   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	outputRe  = regexp.MustCompile(`^output_([0-9]+)$`)
	segmentRe = regexp.MustCompile(`^[^\s.{}$]+$`)
)

// IsReference проверяет, записана ли строка как ссылка.
func IsReference(s string) bool {
	if strings.HasPrefix(s, "$$") {
		return false
	}
	if strings.HasPrefix(s, "$") {
		return len(s) > 1 && isIdentStart(s[1])
	}
	return isTemplate(s)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isTemplate(s string) bool {
	return strings.HasPrefix(s, "{{") && strings.HasSuffix(s, "}}") && len(s) >= 4
}

// ParseReference разбирает строку-ссылку.
//
// Ссылки через output_var возвращаются с Step = -1 и заполненным Alias;
// связывание с индексом шага выполняет ParsePlan.
func ParseReference(raw string) (domain.Reference, error) {
	var body string
	switch {
	case strings.HasPrefix(raw, "$") && !strings.HasPrefix(raw, "$$"):
		body = raw[1:]
	case isTemplate(raw):
		body = strings.TrimSpace(raw[2 : len(raw)-2])
	default:
		return domain.Reference{}, fmt.Errorf("%w: %q is not a reference", ErrMalformedReference, raw)
	}

	segs := strings.Split(body, ".")
	head := segs[0]
	if !identRe.MatchString(head) {
		return domain.Reference{}, fmt.Errorf("%w: %q: invalid output name %q", ErrMalformedReference, raw, head)
	}

	for _, seg := range segs[1:] {
		if !segmentRe.MatchString(seg) {
			return domain.Reference{}, fmt.Errorf("%w: %q: invalid path segment %q", ErrMalformedReference, raw, seg)
		}
	}

	ref := domain.Reference{Step: -1, Raw: raw}
	if len(segs) > 1 {
		ref.Path = segs[1:]
	}

	if m := outputRe.FindStringSubmatch(head); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return domain.Reference{}, fmt.Errorf("%w: %q: %v", ErrMalformedReference, raw, err)
		}
		ref.Step = n
		return ref, nil
	}

	if strings.HasPrefix(head, "output_") || head == "output" {
		return domain.Reference{}, fmt.Errorf("%w: %q: expected output_<index>", ErrMalformedReference, raw)
	}

	ref.Alias = head
	return ref, nil
}

// ParseBinding разбирает значение параметра из декодированного JSON/YAML.
// Списки и записи просматриваются рекурсивно.
func ParseBinding(raw any) (domain.Binding, error) {
	switch v := raw.(type) {
	case string:
		if strings.HasPrefix(v, "$$") {
			return domain.Literal(domain.String(v[1:])), nil
		}
		if IsReference(v) {
			ref, err := ParseReference(v)
			if err != nil {
				return domain.Binding{}, err
			}
			return domain.Ref(ref), nil
		}
		return domain.Literal(domain.String(v)), nil

	case []any:
		items := make([]domain.Binding, len(v))
		hasRefs := false
		for i, e := range v {
			b, err := ParseBinding(e)
			if err != nil {
				return domain.Binding{}, fmt.Errorf("[%d]: %w", i, err)
			}
			items[i] = b
			hasRefs = hasRefs || b.Kind != domain.BindingLiteral
		}
		if hasRefs {
			return domain.ListBinding(items...), nil
		}
		values := make([]domain.Value, len(items))
		for i, b := range items {
			values[i] = b.Literal
		}
		return domain.Literal(domain.List(values...)), nil

	case map[string]any:
		fields := make(map[string]domain.Binding, len(v))
		hasRefs := false
		for _, k := range sortedKeys(v) {
			b, err := ParseBinding(v[k])
			if err != nil {
				return domain.Binding{}, fmt.Errorf("%s: %w", k, err)
			}
			fields[k] = b
			hasRefs = hasRefs || b.Kind != domain.BindingLiteral
		}
		if hasRefs {
			return domain.RecordBinding(fields), nil
		}
		values := make(map[string]domain.Value, len(fields))
		for k, b := range fields {
			values[k] = b.Literal
		}
		return domain.Literal(domain.Record(values)), nil

	default:
		val, err := domain.FromAny(raw)
		if err != nil {
			return domain.Binding{}, err
		}
		return domain.Literal(val), nil
	}
}

// ParsePlan разбирает план: ссылки разбираются один раз, здесь,
// псевдонимы output_var связываются с индексом последнего предыдущего
// шага, объявившего это имя.
//
// Ошибки синтаксиса возвращаются как *StepError с видом MALFORMED_REFERENCE.
// Ссылки на неизвестные или будущие псевдонимы остаются несвязанными
// (Step = -1) и отклоняются при проверке плана как DANGLING_REFERENCE.
func ParsePlan(spec domain.PlanSpec) (domain.Plan, error) {
	aliases := make(map[string]int)
	steps := make([]domain.Step, len(spec.Steps))

	for i, s := range spec.Steps {
		inputs := make(map[string]domain.Binding, len(s.Inputs))
		for _, name := range sortedKeys(s.Inputs) {
			b, err := ParseBinding(s.Inputs[name])
			if err != nil {
				return domain.Plan{}, &StepError{
					Index:    i,
					Function: s.Function,
					Param:    name,
					Kind:     KindOf(err),
					Err:      err,
				}
			}
			inputs[name] = bindAliases(b, aliases)
		}

		if s.OutputVar != "" {
			if !identRe.MatchString(s.OutputVar) || outputRe.MatchString(s.OutputVar) {
				return domain.Plan{}, &StepError{
					Index:    i,
					Function: s.Function,
					Kind:     domain.ErrorKindMalformedReference,
					Err:      fmt.Errorf("%w: invalid output_var %q", ErrMalformedReference, s.OutputVar),
				}
			}
			aliases[s.OutputVar] = i
		}

		steps[i] = domain.Step{
			Function:  s.Function,
			Inputs:    inputs,
			OutputVar: s.OutputVar,
		}
	}

	return domain.Plan{Steps: steps}, nil
}

// bindAliases связывает ссылки по псевдонимам с индексами шагов.
func bindAliases(b domain.Binding, aliases map[string]int) domain.Binding {
	switch b.Kind {
	case domain.BindingRef:
		if b.Ref.Step < 0 && b.Ref.Alias != "" {
			if idx, ok := aliases[b.Ref.Alias]; ok {
				b.Ref.Step = idx
			}
		}
		return b
	case domain.BindingList:
		items := make([]domain.Binding, len(b.Items))
		for i, item := range b.Items {
			items[i] = bindAliases(item, aliases)
		}
		return domain.ListBinding(items...)
	case domain.BindingRecord:
		fields := make(map[string]domain.Binding, len(b.Fields))
		for k, f := range b.Fields {
			fields[k] = bindAliases(f, aliases)
		}
		return domain.RecordBinding(fields)
	default:
		return b
	}
}

// planDocument — допустимые формы документа с планом.
type planDocument struct {
	Steps         []domain.StepSpec `json:"steps" yaml:"steps"`
	FunctionCalls []domain.StepSpec `json:"function_calls" yaml:"function_calls"`
}

func (d planDocument) spec() domain.PlanSpec {
	if len(d.Steps) > 0 {
		return domain.PlanSpec{Steps: d.Steps}
	}
	return domain.PlanSpec{Steps: d.FunctionCalls}
}

// DecodePlan декодирует план из JSON.
//
// Принимает массив шагов [{function, inputs, output_var}]
// или объект {"steps": [...]} / {"function_calls": [...]}.
func DecodePlan(data []byte) (domain.PlanSpec, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return domain.PlanSpec{}, fmt.Errorf("empty plan document")
	}

	if data[0] == '[' {
		var steps []domain.StepSpec
		if err := json.Unmarshal(data, &steps); err != nil {
			return domain.PlanSpec{}, fmt.Errorf("decode plan: %w", err)
		}
		return domain.PlanSpec{Steps: steps}, nil
	}

	var doc planDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.PlanSpec{}, fmt.Errorf("decode plan: %w", err)
	}
	return doc.spec(), nil
}

// DecodePlanYAML декодирует план из YAML. Формы те же, что у DecodePlan.
func DecodePlanYAML(data []byte) (domain.PlanSpec, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return domain.PlanSpec{}, fmt.Errorf("decode plan: %w", err)
	}
	if len(node.Content) == 0 {
		return domain.PlanSpec{}, fmt.Errorf("empty plan document")
	}

	if node.Content[0].Kind == yaml.SequenceNode {
		var steps []domain.StepSpec
		if err := node.Decode(&steps); err != nil {
			return domain.PlanSpec{}, fmt.Errorf("decode plan: %w", err)
		}
		return domain.PlanSpec{Steps: steps}, nil
	}

	var doc planDocument
	if err := node.Decode(&doc); err != nil {
		return domain.PlanSpec{}, fmt.Errorf("decode plan: %w", err)
	}
	return doc.spec(), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

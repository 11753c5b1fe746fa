package domain

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// PlanSpec — план в исходном виде, как его присылает планировщик или клиент.
//
// Ссылки на выходы предыдущих шагов записываются строками:
//
//	"$output_0.invoices"
//	"{{output_1.summary.total_amount}}"
//	"$report.summary" (по output_var)
//
// Перед выполнением PlanSpec разбирается в Plan (engine.ParsePlan).
type PlanSpec struct {
	Steps []StepSpec `json:"steps" yaml:"steps"`
}

// StepSpec — шаг плана в исходном виде.
type StepSpec struct {
	// Function — имя функции в реестре.
	Function string `json:"function" yaml:"function"`

	// Inputs — связывания параметров: литералы или строки-ссылки.
	Inputs map[string]any `json:"inputs,omitempty" yaml:"inputs,omitempty"`

	// OutputVar — необязательное имя для output шага.
	OutputVar string `json:"output_var,omitempty" yaml:"output_var,omitempty"`
}

// Plan — разобранный план: упорядоченная последовательность шагов.
// Неизменяем после передачи движку.
type Plan struct {
	Steps []Step `json:"steps"`
}

// NewPlan создаёт план из шагов.
func NewPlan(steps ...Step) Plan {
	return Plan{Steps: steps}
}

// Len возвращает количество шагов.
func (p Plan) Len() int { return len(p.Steps) }

// Step — один вызов функции в плане. Идентифицируется индексом.
type Step struct {
	Function  string             `json:"function"`
	Inputs    map[string]Binding `json:"inputs,omitempty"`
	OutputVar string             `json:"output_var,omitempty"`
}

// OutputName возвращает стабильное имя output шага с индексом i.
func OutputName(i int) string {
	return "output_" + strconv.Itoa(i)
}

// Reference — ссылка на поле output предыдущего шага.
type Reference struct {
	// Step — индекс шага-источника. -1, если псевдоним не удалось связать.
	Step int `json:"step"`

	// Path — путь внутри output: первое звено — объявленное поле,
	// дальше — вложенные ключи или индексы списков.
	Path []string `json:"path,omitempty"`

	// Alias — output_var, через который записана ссылка (если был).
	Alias string `json:"alias,omitempty"`

	// Raw — исходная запись ссылки.
	Raw string `json:"raw,omitempty"`
}

// Field возвращает первое звено пути (имя поля output).
func (r Reference) Field() string {
	if len(r.Path) == 0 {
		return ""
	}
	return r.Path[0]
}

// String возвращает каноническую запись: output_N.a.b.
func (r Reference) String() string {
	var b strings.Builder
	if r.Step >= 0 {
		b.WriteString(OutputName(r.Step))
	} else {
		b.WriteString(r.Alias)
	}
	for _, seg := range r.Path {
		b.WriteByte('.')
		b.WriteString(seg)
	}
	return b.String()
}

// BindingKind — вид связывания.
type BindingKind uint8

const (
	BindingLiteral BindingKind = iota
	BindingRef
	BindingList
	BindingRecord
)

// Binding — значение параметра шага.
//
// Литерал, ссылка, либо список/запись, внутри которых есть ссылки.
// Если ссылок нет, составное значение хранится как литерал.
type Binding struct {
	Kind    BindingKind
	Literal Value
	Ref     Reference
	Items   []Binding
	Fields  map[string]Binding
}

// Literal создаёт связывание-литерал.
func Literal(v Value) Binding {
	return Binding{Kind: BindingLiteral, Literal: v}
}

// Ref создаёт связывание-ссылку.
func Ref(r Reference) Binding {
	return Binding{Kind: BindingRef, Ref: r}
}

// RefTo — сокращение для ссылки на output_<step>.<path...>.
func RefTo(step int, path ...string) Binding {
	return Ref(Reference{Step: step, Path: path})
}

// ListBinding создаёт список связываний.
func ListBinding(items ...Binding) Binding {
	return Binding{Kind: BindingList, Items: items}
}

// RecordBinding создаёт запись связываний.
func RecordBinding(fields map[string]Binding) Binding {
	return Binding{Kind: BindingRecord, Fields: fields}
}

// References возвращает все ссылки внутри связывания в порядке обхода.
func (b Binding) References() []Reference {
	var refs []Reference
	b.walk(func(r Reference) { refs = append(refs, r) })
	return refs
}

func (b Binding) walk(fn func(Reference)) {
	switch b.Kind {
	case BindingRef:
		fn(b.Ref)
	case BindingList:
		for _, item := range b.Items {
			item.walk(fn)
		}
	case BindingRecord:
		for _, key := range sortedBindingKeys(b.Fields) {
			b.Fields[key].walk(fn)
		}
	}
}

// MarshalJSON возвращает связывание в исходной строковой записи.
func (b Binding) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Any())
}

// Any возвращает связывание как значение Go в исходной записи плана.
// Ссылки становятся строками "$output_N.path", литеральные строки,
// начинающиеся с "$", экранируются удвоением.
func (b Binding) Any() any {
	switch b.Kind {
	case BindingRef:
		return "$" + b.Ref.String()
	case BindingList:
		out := make([]any, len(b.Items))
		for i, item := range b.Items {
			out[i] = item.Any()
		}
		return out
	case BindingRecord:
		out := make(map[string]any, len(b.Fields))
		for k, f := range b.Fields {
			out[k] = f.Any()
		}
		return out
	default:
		return escapeLiteral(b.Literal.Any())
	}
}

func escapeLiteral(x any) any {
	switch t := x.(type) {
	case string:
		if strings.HasPrefix(t, "$") {
			return "$" + t
		}
		return t
	case []any:
		for i := range t {
			t[i] = escapeLiteral(t[i])
		}
		return t
	case map[string]any:
		for k := range t {
			t[k] = escapeLiteral(t[k])
		}
		return t
	default:
		return x
	}
}

func sortedBindingKeys(m map[string]Binding) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Spec возвращает план в исходном виде (ссылки в канонической записи).
func (p Plan) Spec() PlanSpec {
	steps := make([]StepSpec, len(p.Steps))
	for i, s := range p.Steps {
		inputs := make(map[string]any, len(s.Inputs))
		for name, b := range s.Inputs {
			inputs[name] = b.Any()
		}
		steps[i] = StepSpec{Function: s.Function, Inputs: inputs, OutputVar: s.OutputVar}
	}
	return PlanSpec{Steps: steps}
}

package domain

import "context"

// Type — семантический тип входа или выхода функции.
type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
	TypeList    Type = "list"
	TypeRecord  Type = "record"
	TypeAny     Type = "any"
)

// IsCompound возвращает true для типов, внутрь которых можно спуститься по пути.
func (t Type) IsCompound() bool {
	switch t {
	case TypeList, TypeRecord, TypeAny:
		return true
	default:
		return false
	}
}

// Accepts проверяет, совместимо ли значение с типом.
// Заглушка совместима с любым типом.
func (t Type) Accepts(v Value) bool {
	if v.Kind() == KindPlaceholder {
		return true
	}
	switch t {
	case TypeString:
		return v.Kind() == KindString
	case TypeNumber:
		return v.Kind() == KindNumber
	case TypeInteger:
		_, ok := v.AsInt()
		return ok
	case TypeBoolean:
		return v.Kind() == KindBool
	case TypeList:
		return v.Kind() == KindList
	case TypeRecord:
		return v.Kind() == KindRecord
	case TypeAny, "":
		return true
	default:
		return false
	}
}

// Param — объявленный входной параметр функции.
type Param struct {
	Name        string `json:"name"`
	Type        Type   `json:"type"`
	Description string `json:"description,omitempty"`

	// Optional — параметр можно не связывать в плане.
	Optional bool `json:"optional,omitempty"`

	// Default — значение для несвязанного необязательного параметра.
	Default *Value `json:"default,omitempty"`
}

// Field — объявленное поле результата функции.
type Field struct {
	Name        string `json:"name"`
	Type        Type   `json:"type"`
	Description string `json:"description,omitempty"`
}

// Args — разрешённые входные значения вызова.
type Args map[string]Value

// Func — реализация функции.
//
// Возвращает запись, поля которой соответствуют объявленным Outputs.
// Реализация должна проверять ctx.Done() при блокирующих операциях.
type Func func(ctx context.Context, args Args) (Value, error)

// FunctionSpec — описание функции в реестре.
type FunctionSpec struct {
	// Name — уникальное имя функции.
	Name string `json:"name"`

	// Description — описание для планировщика и листинга.
	Description string `json:"description"`

	// Inputs — входные параметры в порядке объявления.
	Inputs []Param `json:"inputs"`

	// Outputs — поля результата в порядке объявления.
	Outputs []Field `json:"outputs"`

	// Impl — реализация. Не сериализуется.
	Impl Func `json:"-"`
}

// Input возвращает объявленный параметр по имени.
func (f FunctionSpec) Input(name string) (Param, bool) {
	for _, p := range f.Inputs {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Output возвращает объявленное поле результата по имени.
func (f FunctionSpec) Output(name string) (Field, bool) {
	for _, o := range f.Outputs {
		if o.Name == name {
			return o, true
		}
	}
	return Field{}, false
}

// Required возвращает обязательные параметры.
func (f FunctionSpec) Required() []Param {
	var req []Param
	for _, p := range f.Inputs {
		if !p.Optional {
			req = append(req, p)
		}
	}
	return req
}

// OutputShape возвращает заглушку результата: запись с полем-заглушкой
// на каждый объявленный выход. source — имя output, например "output_0".
func (f FunctionSpec) OutputShape(source string) Value {
	fields := make(map[string]Value, len(f.Outputs))
	for _, o := range f.Outputs {
		fields[o.Name] = Placeholder(o.Type, source+"."+o.Name)
	}
	return Record(fields)
}

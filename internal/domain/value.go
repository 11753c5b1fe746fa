package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrUnsupportedValue — значение Go не может быть представлено как Value.
var ErrUnsupportedValue = errors.New("unsupported value type")

// Kind — вид значения Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindRecord

	// KindPlaceholder — значение-заглушка, используется только в dry run.
	// Заменяет реальный output шага, форма которого известна лишь по схеме.
	KindPlaceholder
)

// String возвращает имя вида.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindRecord:
		return "record"
	case KindPlaceholder:
		return "placeholder"
	default:
		return "unknown"
	}
}

// Value — значение, которым обмениваются шаги плана.
//
// Tagged union: скаляр (null, bool, number, string), упорядоченный список
// или запись с именованными полями. Value неизменяем: аксессоры для
// составных значений возвращают копии.
type Value struct {
	kind   Kind
	b      bool
	n      float64
	s      string
	typ    Type
	list   []Value
	fields map[string]Value
}

// Null возвращает пустое значение.
func Null() Value { return Value{} }

// Bool создаёт булево значение.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number создаёт числовое значение.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// Int создаёт числовое значение из int.
func Int(n int) Value { return Value{kind: KindNumber, n: float64(n)} }

// String создаёт строковое значение.
func String(s string) Value { return Value{kind: KindString, s: s} }

// List создаёт список из элементов.
func List(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindList, list: cp}
}

// Record создаёт запись из полей.
func Record(fields map[string]Value) Value {
	cp := make(map[string]Value, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return Value{kind: KindRecord, fields: cp}
}

// Placeholder создаёт заглушку типа t для output source (например "output_0.invoices").
func Placeholder(t Type, source string) Value {
	return Value{kind: KindPlaceholder, typ: t, s: source}
}

// Kind возвращает вид значения.
func (v Value) Kind() Kind { return v.kind }

// IsNull проверяет, пустое ли значение.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool возвращает bool, если значение булево.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsNumber возвращает число, если значение числовое.
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }

// AsInt возвращает целое, если значение — число без дробной части.
func (v Value) AsInt() (int, bool) {
	if v.kind != KindNumber || v.n != math.Trunc(v.n) || math.IsInf(v.n, 0) {
		return 0, false
	}
	return int(v.n), true
}

// AsString возвращает строку, если значение строковое.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// Items возвращает копию элементов списка.
func (v Value) Items() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	cp := make([]Value, len(v.list))
	copy(cp, v.list)
	return cp, true
}

// Len возвращает длину списка или количество полей записи.
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.list)
	case KindRecord:
		return len(v.fields)
	default:
		return 0
	}
}

// Field возвращает поле записи.
func (v Value) Field(name string) (Value, bool) {
	if v.kind != KindRecord {
		return Value{}, false
	}
	f, ok := v.fields[name]
	return f, ok
}

// Keys возвращает отсортированные имена полей записи.
func (v Value) Keys() []string {
	if v.kind != KindRecord {
		return nil
	}
	keys := make([]string, 0, len(v.fields))
	for k := range v.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PlaceholderType возвращает тип заглушки.
func (v Value) PlaceholderType() Type { return v.typ }

// Source возвращает источник заглушки.
func (v Value) Source() string {
	if v.kind != KindPlaceholder {
		return ""
	}
	return v.s
}

// Lookup спускается по пути из сегментов.
//
// Сегменты записи — имена полей, сегменты списка — индексы.
// Для заглушек составного типа спуск всегда успешен и возвращает
// заглушку типа any. При неудаче возвращает индекс сегмента,
// который не удалось разрешить.
func (v Value) Lookup(path []string) (Value, int, bool) {
	cur := v
	for i, seg := range path {
		switch cur.kind {
		case KindRecord:
			next, ok := cur.fields[seg]
			if !ok {
				return Value{}, i, false
			}
			cur = next

		case KindList:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(cur.list) {
				return Value{}, i, false
			}
			cur = cur.list[idx]

		case KindPlaceholder:
			if !cur.typ.IsCompound() {
				return Value{}, i, false
			}
			cur = Placeholder(TypeAny, cur.s+"."+seg)

		default:
			return Value{}, i, false
		}
	}
	return cur, -1, true
}

// Equal выполняет глубокое сравнение значений.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindNumber:
		return v.n == other.n
	case KindString:
		return v.s == other.s
	case KindPlaceholder:
		return v.typ == other.typ && v.s == other.s
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case KindRecord:
		if len(v.fields) != len(other.fields) {
			return false
		}
		for k, f := range v.fields {
			o, ok := other.fields[k]
			if !ok || !f.Equal(o) {
				return false
			}
		}
		return true
	}
	return false
}

// FromAny конвертирует декодированное значение Go (JSON, YAML) в Value.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Int(t), nil
	case int8:
		return Number(float64(t)), nil
	case int16:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case uint:
		return Number(float64(t)), nil
	case uint32:
		return Number(float64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
		}
		return Number(n), nil
	case string:
		return String(t), nil
	case []Value:
		return List(t...), nil
	case []string:
		items := make([]Value, len(t))
		for i, s := range t {
			items[i] = String(s)
		}
		return Value{kind: KindList, list: items}, nil
	case []any:
		items := make([]Value, len(t))
		for i, e := range t {
			item, err := FromAny(e)
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			items[i] = item
		}
		return Value{kind: KindList, list: items}, nil
	case []map[string]any:
		items := make([]Value, len(t))
		for i, e := range t {
			item, err := FromAny(e)
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			items[i] = item
		}
		return Value{kind: KindList, list: items}, nil
	case map[string]Value:
		return Record(t), nil
	case map[string]string:
		fields := make(map[string]Value, len(t))
		for k, s := range t {
			fields[k] = String(s)
		}
		return Value{kind: KindRecord, fields: fields}, nil
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, e := range t {
			f, err := FromAny(e)
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", k, err)
			}
			fields[k] = f
		}
		return Value{kind: KindRecord, fields: fields}, nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, x)
	}
}

// MustFromAny — как FromAny, но паникует при ошибке.
// Используется для статических данных и в тестах.
func MustFromAny(x any) Value {
	v, err := FromAny(x)
	if err != nil {
		panic(err)
	}
	return v
}

// Any конвертирует Value обратно в значение Go.
// Заглушки превращаются в запись {"$placeholder": source, "type": type}.
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Any()
		}
		return out
	case KindRecord:
		out := make(map[string]any, len(v.fields))
		for k, f := range v.fields {
			out[k] = f.Any()
		}
		return out
	case KindPlaceholder:
		return map[string]any{
			"$placeholder": v.s,
			"type":         string(v.typ),
		}
	default:
		return nil
	}
}

// MarshalJSON реализует json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindNumber && (math.IsNaN(v.n) || math.IsInf(v.n, 0)) {
		return json.Marshal(strconv.FormatFloat(v.n, 'g', -1, 64))
	}
	return json.Marshal(v.Any())
}

// UnmarshalJSON реализует json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// String возвращает компактное текстовое представление.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case KindPlaceholder:
		return "<" + v.s + ":" + string(v.typ) + ">"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<%s>", v.kind)
	}
	return strings.TrimSpace(string(b))
}

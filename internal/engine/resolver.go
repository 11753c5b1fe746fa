package engine

import (
	"fmt"
	"strings"

	"github.com/shaiso/Sequencer/internal/domain"
)

// Resolve возвращает конкретное значение связывания.
//
// Литерал возвращается без изменений. Ссылка читает output шага
// из outputs и спускается по пути; тип значения не приводится.
// Функция чистая: outputs только читаются.
func Resolve(b domain.Binding, outputs Outputs) (domain.Value, error) {
	switch b.Kind {
	case domain.BindingLiteral:
		return b.Literal, nil

	case domain.BindingRef:
		return ResolveReference(b.Ref, outputs)

	case domain.BindingList:
		items := make([]domain.Value, len(b.Items))
		for i, item := range b.Items {
			v, err := Resolve(item, outputs)
			if err != nil {
				return domain.Value{}, err
			}
			items[i] = v
		}
		return domain.List(items...), nil

	case domain.BindingRecord:
		fields := make(map[string]domain.Value, len(b.Fields))
		for _, k := range sortedKeys(b.Fields) {
			v, err := Resolve(b.Fields[k], outputs)
			if err != nil {
				return domain.Value{}, err
			}
			fields[k] = v
		}
		return domain.Record(fields), nil

	default:
		return domain.Value{}, fmt.Errorf("unknown binding kind %d", b.Kind)
	}
}

// ResolveReference разрешает одну ссылку.
//
// Ошибки:
//   - ErrDanglingReference — output шага отсутствует (шаг ещё не выполнен,
//     упал или псевдоним не связан)
//   - ErrMissingField — путь не разрешается внутри output
func ResolveReference(ref domain.Reference, outputs Outputs) (domain.Value, error) {
	if ref.Step < 0 {
		return domain.Value{}, &ReferenceError{
			Ref: ref,
			Err: fmt.Errorf("%w: unknown output %q", ErrDanglingReference, ref.Alias),
		}
	}

	out, ok := outputs.Output(ref.Step)
	if !ok {
		return domain.Value{}, &ReferenceError{
			Ref: ref,
			Err: fmt.Errorf("%w: %s is not available", ErrDanglingReference, domain.OutputName(ref.Step)),
		}
	}

	v, failed, ok := out.Lookup(ref.Path)
	if !ok {
		resolved := domain.OutputName(ref.Step)
		if failed > 0 {
			resolved += "." + strings.Join(ref.Path[:failed], ".")
		}
		return domain.Value{}, &ReferenceError{
			Ref: ref,
			Err: fmt.Errorf("%w: %s has no %q", ErrMissingField, resolved, ref.Path[failed]),
		}
	}

	return v, nil
}

// ResolveInputs разрешает входы шага по объявленным параметрам функции.
//
// Несвязанные необязательные параметры получают значение по умолчанию,
// если оно объявлено. Связывания для необъявленных параметров
// игнорируются. При ошибке возвращает имя параметра.
func ResolveInputs(spec domain.FunctionSpec, step domain.Step, outputs Outputs) (domain.Args, string, error) {
	args := make(domain.Args, len(spec.Inputs))

	for _, p := range spec.Inputs {
		b, bound := step.Inputs[p.Name]
		if !bound {
			if p.Default != nil {
				args[p.Name] = *p.Default
			}
			continue
		}

		v, err := Resolve(b, outputs)
		if err != nil {
			return nil, p.Name, err
		}
		args[p.Name] = v
	}

	return args, "", nil
}

// unexpectedInputs возвращает связывания, которых нет среди параметров функции.
func unexpectedInputs(spec domain.FunctionSpec, step domain.Step) []string {
	var extra []string
	for _, name := range sortedKeys(step.Inputs) {
		if _, ok := spec.Input(name); !ok {
			extra = append(extra, name)
		}
	}
	return extra
}

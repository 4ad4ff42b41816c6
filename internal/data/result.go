package data

import "strings"

// ResultType классифицирует итог транзакции.
// Порядок важен: при объединении побеждает "худший" тип.
type ResultType uint8

const (
	ResultUndefined ResultType = iota
	ResultSuccess
	ResultFailure
)

// String возвращает строковое представление типа
func (t ResultType) String() string {
	switch t {
	case ResultSuccess:
		return "SUCCESS"
	case ResultFailure:
		return "FAILURE"
	default:
		return "UNDEFINED"
	}
}

// TransactionResult — итог записи, удаления или копирования.
// Неуспех — это значение, которое вызывающий обязан проверить, а не ошибка.
type TransactionResult struct {
	Type     ResultType
	Success  []Value // новые значения, успешно записанные
	Replaced []Value // значения, вытесненные записью (для отката)
	Rejected []Value // значения, которые не принял ни один слой
}

// SuccessResult создаёт успешный результат
func SuccessResult(newValue Value, replaced ...Value) TransactionResult {
	r := TransactionResult{Type: ResultSuccess}
	if !newValue.IsZero() {
		r.Success = []Value{newValue}
	}
	for _, v := range replaced {
		if !v.IsZero() {
			r.Replaced = append(r.Replaced, v)
		}
	}
	return r
}

// FailNoData — неуспех без данных
func FailNoData() TransactionResult {
	return TransactionResult{Type: ResultFailure}
}

// FailResult — неуспех с отклонёнными значениями
func FailResult(rejected ...Value) TransactionResult {
	r := TransactionResult{Type: ResultFailure}
	for _, v := range rejected {
		if !v.IsZero() {
			r.Rejected = append(r.Rejected, v)
		}
	}
	return r
}

// IsSuccessful возвращает true только для ResultSuccess
func (r TransactionResult) IsSuccessful() bool {
	return r.Type == ResultSuccess
}

// Combine объединяет результаты: списки склеиваются, тип — худший из входных.
// Пустое объединение даёт ResultUndefined.
func Combine(results ...TransactionResult) TransactionResult {
	var out TransactionResult
	for _, r := range results {
		if r.Type > out.Type {
			out.Type = r.Type
		}
		out.Success = append(out.Success, r.Success...)
		out.Replaced = append(out.Replaced, r.Replaced...)
		out.Rejected = append(out.Rejected, r.Rejected...)
	}
	return out
}

func (r TransactionResult) String() string {
	var sb strings.Builder
	sb.WriteString(r.Type.String())
	write := func(name string, vs []Value) {
		if len(vs) == 0 {
			return
		}
		sb.WriteString(" ")
		sb.WriteString(name)
		sb.WriteString("=[")
		for i, v := range vs {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(v.String())
		}
		sb.WriteString("]")
	}
	write("success", r.Success)
	write("replaced", r.Replaced)
	write("rejected", r.Rejected)
	return sb.String()
}

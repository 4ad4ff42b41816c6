package data

import "fmt"

// Value — неизменяемое (отсоединённое) значение ключа.
// Его можно хранить и передавать, оно не привязано к ячейке.
type Value struct {
	key     *Key
	payload any
}

// NewValue создаёт значение. Возвращает false, если payload не подходит ключу.
func NewValue(key *Key, payload any) (Value, bool) {
	if key == nil || !key.Accepts(payload) {
		return Value{}, false
	}
	return Value{key: key, payload: payload}, true
}

// MustValue создаёт значение или паникует при несовпадении типа
func MustValue(key *Key, payload any) Value {
	v, ok := NewValue(key, payload)
	if !ok {
		panic(fmt.Sprintf("data: payload %#v is not a %s for key %s", payload, key.Kind, key.ID))
	}
	return v
}

// Key возвращает ключ-владелец
func (v Value) Key() *Key { return v.key }

// Payload возвращает полезную нагрузку
func (v Value) Payload() any { return v.payload }

// IsZero сообщает, что значение не инициализировано
func (v Value) IsZero() bool { return v.key == nil }

// Equal сравнивает ключ и полезную нагрузку
func (v Value) Equal(o Value) bool {
	return v.key == o.key && v.payload == o.payload
}

func (v Value) String() string {
	if v.key == nil {
		return "<empty>"
	}
	return fmt.Sprintf("%s=%v", v.key.ID, v.payload)
}

// ValueContainer — любой источник значений (состояние блока, жидкости, архетип, Bag)
type ValueContainer interface {
	Values() []Value
}

// Get типизированно читает полезную нагрузку из пары (payload, ok)
func Get[T any](payload any, ok bool) (T, bool) {
	var zero T
	if !ok {
		return zero, false
	}
	t, ok := payload.(T)
	return t, ok
}

// Dedupe удаляет повторяющиеся значения, сохраняя порядок первого появления
func Dedupe(values []Value) []Value {
	out := make([]Value, 0, len(values))
	for _, v := range values {
		dup := false
		for _, o := range out {
			if o.Equal(v) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, v)
		}
	}
	return out
}

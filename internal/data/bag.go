package data

import "sort"

// Bag — простой упорядоченный контейнер значений, по одному на ключ.
// Используется как источник копирования и как данные предметов.
type Bag struct {
	values []Value
}

// NewBag создаёт контейнер из значений; более поздние значения вытесняют ранние
func NewBag(values ...Value) *Bag {
	b := &Bag{}
	for _, v := range values {
		b.Set(v)
	}
	return b
}

// Set записывает значение, заменяя прежнее для того же ключа.
// Возвращает вытесненное значение, если оно было.
func (b *Bag) Set(v Value) (Value, bool) {
	for i, o := range b.values {
		if o.key == v.key {
			b.values[i] = v
			return o, true
		}
	}
	b.values = append(b.values, v)
	return Value{}, false
}

// Get возвращает полезную нагрузку ключа
func (b *Bag) Get(k *Key) (any, bool) {
	for _, v := range b.values {
		if v.key == k {
			return v.payload, true
		}
	}
	return nil, false
}

// Remove удаляет значение ключа
func (b *Bag) Remove(k *Key) (Value, bool) {
	for i, v := range b.values {
		if v.key == k {
			b.values = append(b.values[:i], b.values[i+1:]...)
			return v, true
		}
	}
	return Value{}, false
}

// Len возвращает количество значений
func (b *Bag) Len() int { return len(b.values) }

// Values реализует ValueContainer
func (b *Bag) Values() []Value {
	out := make([]Value, len(b.values))
	copy(out, b.values)
	return out
}

// Clone возвращает независимую копию
func (b *Bag) Clone() *Bag {
	return &Bag{values: b.Values()}
}

// FromMap строит контейнер из карты "id ключа" -> значение.
// Неизвестные ключи и неподходящие значения возвращаются во втором результате.
func FromMap(m map[string]any) (*Bag, []string) {
	b := &Bag{}
	var rejected []string
	for id, raw := range m {
		k, ok := Lookup(id)
		if !ok {
			rejected = append(rejected, id)
			continue
		}
		payload, ok := k.Coerce(raw)
		if !ok {
			rejected = append(rejected, id)
			continue
		}
		b.Set(Value{key: k, payload: payload})
	}
	sortValues(b.values)
	return b, rejected
}

// ToMap возвращает значения как карту "id ключа" -> значение
func (b *Bag) ToMap() map[string]any {
	m := make(map[string]any, len(b.values))
	for _, v := range b.values {
		m[v.key.ID] = v.payload
	}
	return m
}

func sortValues(vs []Value) {
	sort.Slice(vs, func(i, j int) bool { return vs[i].key.ID < vs[j].key.ID })
}

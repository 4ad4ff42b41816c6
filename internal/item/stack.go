package item

import (
	"fmt"

	"github.com/annel0/blockverse/internal/data"
)

// Stack — изменяемый стак предметов
type Stack struct {
	typ      *Type
	Quantity int
	Damage   int
	Data     *data.Bag
	Compound map[string]any // сырые NBT-данные
}

// Type возвращает тип предмета
func (s *Stack) Type() *Type { return s.typ }

// MaxQuantity возвращает максимальный размер стака для типа
func (s *Stack) MaxQuantity() int { return s.typ.MaxStack }

// IsEmpty сообщает, что стак пуст
func (s *Stack) IsEmpty() bool { return s == nil || s.typ == nil || s.Quantity <= 0 }

// Snapshot возвращает неизменяемую копию стака
func (s *Stack) Snapshot() Snapshot {
	return Snapshot{
		typ:      s.typ,
		quantity: s.Quantity,
		damage:   s.Damage,
		data:     cloneBag(s.Data),
		compound: cloneCompound(s.Compound),
	}
}

func (s *Stack) String() string {
	if s.IsEmpty() {
		return "empty"
	}
	return fmt.Sprintf("%dx%s", s.Quantity, s.typ.ID)
}

// Snapshot — неизменяемый снимок стака
type Snapshot struct {
	typ      *Type
	quantity int
	damage   int
	data     *data.Bag
	compound map[string]any
}

func (s Snapshot) Type() *Type   { return s.typ }
func (s Snapshot) Quantity() int { return s.quantity }
func (s Snapshot) Damage() int   { return s.damage }
func (s Snapshot) IsEmpty() bool { return s.typ == nil || s.quantity <= 0 }

func (s Snapshot) Values() []data.Value {
	if s.data == nil {
		return nil
	}
	return s.data.Values()
}

// Get читает значение данных предмета
func (s Snapshot) Get(key *data.Key) (any, bool) {
	if s.data == nil {
		return nil, false
	}
	return s.data.Get(key)
}

// Compound возвращает копию сырых NBT-данных
func (s Snapshot) Compound() (map[string]any, bool) {
	if s.compound == nil {
		return nil, false
	}
	return cloneCompound(s.compound), true
}

// Stack создаёт изменяемый стак из снимка
func (s Snapshot) Stack() *Stack {
	return &Stack{
		typ:      s.typ,
		Quantity: s.quantity,
		Damage:   s.damage,
		Data:     cloneBag(s.data),
		Compound: cloneCompound(s.compound),
	}
}

func cloneBag(b *data.Bag) *data.Bag {
	if b == nil {
		return data.NewBag()
	}
	return b.Clone()
}

func cloneCompound(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			v = cloneCompound(nested)
		}
		out[k] = v
	}
	return out
}

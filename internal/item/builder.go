package item

import (
	"fmt"

	"github.com/annel0/blockverse/internal/data"
	"github.com/annel0/blockverse/internal/world/archetype"
	"github.com/annel0/blockverse/internal/world/block"
)

// Записи контейнера, из которого собирается стак
const (
	ContainerType     = "ItemType"
	ContainerCount    = "Count"
	ContainerDamage   = "UnsafeDamage"
	ContainerCompound = "UnsafeData"
	ContainerData     = "Data"

	// BlockEntityTag — запись сырых данных с блок-сущностью поставленного блока
	BlockEntityTag = "BlockEntityTag"
)

// Builder собирает снимки стаков. Ошибки программиста (неверное количество,
// данные без типа, сборка без типа) приводят к панике.
type Builder struct {
	typ         *Type
	quantity    int
	maxQuantity int
	damage      int
	data        *data.Bag
	compound    map[string]any
}

// NewBuilder создаёт сброшенный сборщик
func NewBuilder() *Builder {
	return (&Builder{}).Reset()
}

// Reset возвращает сборщик в исходное состояние
func (b *Builder) Reset() *Builder {
	b.typ = nil
	b.quantity = 1
	b.maxQuantity = DefaultMaxStack
	b.damage = 0
	b.data = data.NewBag()
	b.compound = nil
	return b
}

// Type задаёт тип предмета
func (b *Builder) Type(t *Type) *Builder {
	if t == nil {
		panic("item: type cannot be nil")
	}
	b.typ = t
	return b
}

// Quantity задаёт количество; оно должно быть больше нуля
func (b *Builder) Quantity(n int) *Builder {
	if n <= 0 {
		panic(fmt.Sprintf("item: quantity must be greater than 0, got %d", n))
	}
	b.quantity = n
	return b
}

// Damage задаёт повреждение предмета
func (b *Builder) Damage(d int) *Builder {
	if d < 0 {
		panic(fmt.Sprintf("item: damage cannot be negative, got %d", d))
	}
	b.damage = d
	return b
}

// Data добавляет значение данных. Тип должен быть задан заранее и допускать ключ.
func (b *Builder) Data(key *data.Key, payload any) *Builder {
	if b.typ == nil {
		panic("item: cannot set data without having set a type first")
	}
	if !b.typ.Applicable(key) {
		panic(fmt.Sprintf("item: %s is not applicable to %s", key, b.typ.ID))
	}
	if coerced, ok := key.Coerce(payload); ok {
		payload = coerced
	}
	b.data.Set(data.MustValue(key, payload))
	return b
}

// FromStack копирует стак целиком, включая максимальный размер его типа
func (b *Builder) FromStack(s *Stack) *Builder {
	if s == nil {
		panic("item: stack cannot be nil")
	}
	b.typ = s.typ
	b.quantity = s.Quantity
	if s.typ != nil {
		b.maxQuantity = s.typ.MaxStack
	}
	b.damage = s.Damage
	b.data = cloneBag(s.Data)
	b.compound = cloneCompound(s.Compound)
	return b
}

// FromSnapshot копирует снимок; данные проверяются как при вызове Data
func (b *Builder) FromSnapshot(s Snapshot) *Builder {
	b.Type(s.typ)
	b.Quantity(s.quantity)
	for _, v := range s.Values() {
		b.Data(v.Key(), v.Payload())
	}
	b.damage = s.damage
	b.compound = cloneCompound(s.compound)
	return b
}

// FromContainer читает стак из сериализованного представления.
// Если нет типа, количества или повреждения, сборщик не меняется.
func (b *Builder) FromContainer(c map[string]any) *Builder {
	typeID, hasType := c[ContainerType].(string)
	count, hasCount := asInt(c[ContainerCount])
	damage, hasDamage := asInt(c[ContainerDamage])
	if !hasType || !hasCount || !hasDamage {
		return b
	}
	b.Reset()
	b.Quantity(count)

	t, ok := Get(typeID)
	if !ok {
		panic(fmt.Sprintf("item: unknown item type %q", typeID))
	}
	b.Type(t)
	b.damage = damage

	if compound, ok := c[ContainerCompound].(map[string]any); ok {
		b.compound = cloneCompound(compound)
	}
	if values, ok := c[ContainerData].(map[string]any); ok {
		bag, _ := data.FromMap(values)
		for _, v := range bag.Values() {
			if t.Applicable(v.Key()) {
				b.data.Set(v)
			}
		}
	}
	return b
}

// FromBlockSnapshot собирает один предмет блока. Данные блок-сущности
// сохраняются в сырых данных под BlockEntityTag.
func (b *Builder) FromBlockSnapshot(s block.State, be *archetype.BlockEntity) *Builder {
	b.Reset()
	t, ok := ForBlock(s)
	if !ok {
		panic(fmt.Sprintf("item: no item type for block %s", s))
	}
	b.Type(t)
	b.Quantity(1)
	if be != nil {
		b.compound = map[string]any{BlockEntityTag: be.RawData()}
	}
	return b
}

// Build собирает снимок стака
func (b *Builder) Build() Snapshot {
	if b.typ == nil {
		panic("item: type has not been set")
	}
	if b.quantity > b.maxQuantity {
		panic(fmt.Sprintf("item: quantity cannot be greater than the max quantity (%d)", b.maxQuantity))
	}
	return Snapshot{
		typ:      b.typ,
		quantity: b.quantity,
		damage:   b.damage,
		data:     b.data.Clone(),
		compound: cloneCompound(b.compound),
	}
}

// ToContainer сериализует снимок в представление, понятное FromContainer
func (s Snapshot) ToContainer() map[string]any {
	c := map[string]any{
		ContainerType:   s.typ.ID,
		ContainerCount:  s.quantity,
		ContainerDamage: s.damage,
	}
	if s.data != nil && s.data.Len() > 0 {
		c[ContainerData] = s.data.ToMap()
	}
	if s.compound != nil {
		c[ContainerCompound] = cloneCompound(s.compound)
	}
	return c
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

package inventory

import (
	"fmt"

	"github.com/annel0/blockverse/internal/item"
)

// SlotKind — назначение слота
type SlotKind uint8

const (
	SlotStorage SlotKind = iota
	SlotHotbar
	SlotCraftingOutput
	SlotCraftingInput
	SlotEquipment
	SlotOffhand
)

func (k SlotKind) String() string {
	switch k {
	case SlotStorage:
		return "storage"
	case SlotHotbar:
		return "hotbar"
	case SlotCraftingOutput:
		return "crafting_output"
	case SlotCraftingInput:
		return "crafting_input"
	case SlotEquipment:
		return "equipment"
	case SlotOffhand:
		return "offhand"
	default:
		return fmt.Sprintf("SlotKind(%d)", uint8(k))
	}
}

// EquipmentType — место экипировки
type EquipmentType uint8

const (
	EquipmentNone EquipmentType = iota
	EquipmentHead
	EquipmentChest
	EquipmentLegs
	EquipmentFeet
	EquipmentOffhand
)

// SlotLens отображает слот представления на слот ткани
type SlotLens struct {
	Index     int // индекс в ткани
	Kind      SlotKind
	Equipment EquipmentType
	accepts   func(*item.Stack) bool
}

// Accepts сообщает, можно ли положить стак в слот
func (l SlotLens) Accepts(s *item.Stack) bool {
	if s.IsEmpty() {
		return true
	}
	if s.Quantity > s.MaxQuantity() {
		return false
	}
	return l.accepts == nil || l.accepts(s)
}

// ReadOnly — фильтр для слотов, в которые ничего нельзя положить
func ReadOnly(*item.Stack) bool { return false }

// SlotLensBuilder собирает таблицу слотов. Индексы ткани выдаются подряд.
type SlotLensBuilder struct {
	slots []SlotLens
}

// NewSlotLensBuilder создаёт пустой сборщик
func NewSlotLensBuilder() *SlotLensBuilder {
	return &SlotLensBuilder{}
}

// Add добавляет n обычных слотов хранения
func (b *SlotLensBuilder) Add(n int) *SlotLensBuilder {
	return b.AddKind(n, func(index int) SlotLens {
		return SlotLens{Index: index, Kind: SlotStorage}
	})
}

// AddKind добавляет n слотов, созданных фабрикой по индексу ткани
func (b *SlotLensBuilder) AddKind(n int, factory func(index int) SlotLens) *SlotLensBuilder {
	for i := 0; i < n; i++ {
		lens := factory(len(b.slots))
		lens.Index = len(b.slots)
		b.slots = append(b.slots, lens)
	}
	return b
}

// Size возвращает число уже добавленных слотов
func (b *SlotLensBuilder) Size() int { return len(b.slots) }

// Build фиксирует таблицу
func (b *SlotLensBuilder) Build() *SlotLensCollection {
	slots := make([]SlotLens, len(b.slots))
	copy(slots, b.slots)
	return &SlotLensCollection{slots: slots}
}

// SlotLensCollection — неизменяемая таблица слотов
type SlotLensCollection struct {
	slots []SlotLens
}

// Size возвращает число слотов
func (c *SlotLensCollection) Size() int { return len(c.slots) }

// Slot возвращает линзу слота i
func (c *SlotLensCollection) Slot(i int) (SlotLens, bool) {
	if i < 0 || i >= len(c.slots) {
		return SlotLens{}, false
	}
	return c.slots[i], true
}

// OfKind возвращает подтаблицу слотов заданного назначения
func (c *SlotLensCollection) OfKind(kinds ...SlotKind) *SlotLensCollection {
	var out []SlotLens
	for _, s := range c.slots {
		for _, k := range kinds {
			if s.Kind == k {
				out = append(out, s)
				break
			}
		}
	}
	return &SlotLensCollection{slots: out}
}

// Get читает слот i представления из ткани
func (c *SlotLensCollection) Get(f *Fabric, i int) *item.Stack {
	lens, ok := c.Slot(i)
	if !ok {
		return nil
	}
	return f.Get(lens.Index)
}

// Set записывает слот i представления в ткань
func (c *SlotLensCollection) Set(f *Fabric, i int, s *item.Stack) bool {
	lens, ok := c.Slot(i)
	if !ok || !lens.Accepts(s) {
		return false
	}
	return f.Set(lens.Index, s)
}

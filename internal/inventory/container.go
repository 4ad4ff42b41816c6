package inventory

import "fmt"

// Размеры раскладки контейнера игрока
const (
	CraftingGridSize = 4
	StorageSize      = 27
	HotbarSize       = 9
	MainSize         = StorageSize + HotbarSize
	EquipmentSize    = 4

	// PlayerContainerSize — минимальный размер контейнера игрока
	PlayerContainerSize = 1 + CraftingGridSize + EquipmentSize + MainSize + 1
)

// PlayerContainer — раскладка контейнера игрока: выход крафта, сетка крафта,
// броня, основной инвентарь, вторая рука и дополнительные слоты.
type PlayerContainer struct {
	lenses  *SlotLensCollection
	offhand int
}

// ContainerPlayerLayout строит раскладку контейнера из totalSlots слотов
func ContainerPlayerLayout(totalSlots int) (*PlayerContainer, error) {
	if totalSlots < PlayerContainerSize {
		return nil, fmt.Errorf("player container needs at least %d slots, got %d", PlayerContainerSize, totalSlots)
	}
	c := &PlayerContainer{}

	b := NewSlotLensBuilder()
	b.AddKind(1, func(i int) SlotLens {
		return SlotLens{Kind: SlotCraftingOutput, accepts: ReadOnly}
	})
	b.AddKind(CraftingGridSize, func(i int) SlotLens {
		return SlotLens{Kind: SlotCraftingInput}
	})
	for _, eq := range []EquipmentType{EquipmentHead, EquipmentChest, EquipmentLegs, EquipmentFeet} {
		b.AddKind(1, func(i int) SlotLens {
			return SlotLens{Kind: SlotEquipment, Equipment: eq}
		})
	}
	b.Add(StorageSize)
	b.AddKind(HotbarSize, func(i int) SlotLens {
		return SlotLens{Kind: SlotHotbar}
	})
	b.AddKind(1, func(i int) SlotLens {
		return SlotLens{Kind: SlotOffhand, Equipment: EquipmentOffhand}
	})
	c.offhand = b.Size() - 1
	b.Add(totalSlots - b.Size())

	c.lenses = b.Build()
	return c, nil
}

// Lenses возвращает таблицу слотов контейнера
func (c *PlayerContainer) Lenses() *SlotLensCollection { return c.lenses }

// OffhandIndex возвращает индекс слота второй руки
func (c *PlayerContainer) OffhandIndex() int { return c.offhand }

// Extra возвращает слоты сверх стандартной раскладки
func (c *PlayerContainer) Extra() *SlotLensCollection {
	return &SlotLensCollection{slots: c.lenses.slots[PlayerContainerSize:]}
}

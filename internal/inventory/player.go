package inventory

import (
	"fmt"

	"github.com/annel0/blockverse/internal/item"
)

// Carrier — владелец инвентаря
type Carrier interface {
	Name() string
}

// View — представление над тканью через таблицу слотов
type View struct {
	fabric *Fabric
	lenses *SlotLensCollection
}

func (v *View) Size() int                     { return v.lenses.Size() }
func (v *View) Get(i int) *item.Stack         { return v.lenses.Get(v.fabric, i) }
func (v *View) Set(i int, s *item.Stack) bool { return v.lenses.Set(v.fabric, i, s) }
func (v *View) Lenses() *SlotLensCollection   { return v.lenses }
func (v *View) Slot(i int) (SlotLens, bool)   { return v.lenses.Slot(i) }

// PlayerInventory — инвентарь игрока поверх ткани [36 основных][4 брони][1 вторая рука].
// Слоты 0..8 основного массива — хотбар.
type PlayerInventory struct {
	fabric   *Fabric
	carrier  Carrier
	selected int

	all       *SlotLensCollection
	main      *View
	equipment *View
	offhand   *View
	hotbar    *View
}

// NewPlayerFabric создаёт ткань стандартного инвентаря игрока
func NewPlayerFabric() *Fabric {
	return NewFabric(MainSize, EquipmentSize, 1)
}

// NewPlayerInventory создаёт инвентарь над тканью. carrier может быть nil.
func NewPlayerInventory(f *Fabric, carrier Carrier) (*PlayerInventory, error) {
	if f == nil {
		return nil, fmt.Errorf("player inventory: nil fabric")
	}
	need := MainSize + EquipmentSize + 1
	if f.Size() < need {
		return nil, fmt.Errorf("player inventory needs at least %d slots, got %d", need, f.Size())
	}
	return &PlayerInventory{fabric: f, carrier: carrier}, nil
}

func (p *PlayerInventory) lenses() *SlotLensCollection {
	if p.all != nil {
		return p.all
	}
	b := NewSlotLensBuilder()
	b.AddKind(HotbarSize, func(i int) SlotLens { return SlotLens{Kind: SlotHotbar} })
	b.Add(StorageSize)
	for _, eq := range []EquipmentType{EquipmentHead, EquipmentChest, EquipmentLegs, EquipmentFeet} {
		b.AddKind(1, func(i int) SlotLens { return SlotLens{Kind: SlotEquipment, Equipment: eq} })
	}
	b.AddKind(1, func(i int) SlotLens { return SlotLens{Kind: SlotOffhand, Equipment: EquipmentOffhand} })
	b.Add(p.fabric.Size() - b.Size())
	p.all = b.Build()
	return p.all
}

func (p *PlayerInventory) view(cached **View, kinds ...SlotKind) *View {
	if *cached == nil {
		*cached = &View{fabric: p.fabric, lenses: p.lenses().OfKind(kinds...)}
	}
	return *cached
}

// Main — основной инвентарь: хотбар и хранилище
func (p *PlayerInventory) Main() *View { return p.view(&p.main, SlotHotbar, SlotStorage) }

// Equipment — слоты брони
func (p *PlayerInventory) Equipment() *View { return p.view(&p.equipment, SlotEquipment) }

// Offhand — вторая рука
func (p *PlayerInventory) Offhand() *View { return p.view(&p.offhand, SlotOffhand) }

// Hotbar — панель быстрого доступа
func (p *PlayerInventory) Hotbar() *View { return p.view(&p.hotbar, SlotHotbar) }

// Carrier возвращает владельца, если он есть
func (p *PlayerInventory) Carrier() (Carrier, bool) {
	return p.carrier, p.carrier != nil
}

// Selected возвращает выбранный слот хотбара
func (p *PlayerInventory) Selected() int { return p.selected }

// Select выбирает слот хотбара
func (p *PlayerInventory) Select(i int) error {
	if i < 0 || i >= HotbarSize {
		return fmt.Errorf("hotbar slot %d out of range", i)
	}
	p.selected = i
	return nil
}

// Held возвращает стак в выбранном слоте хотбара
func (p *PlayerInventory) Held() *item.Stack {
	return p.Hotbar().Get(p.selected)
}

// Size возвращает общее число слотов
func (p *PlayerInventory) Size() int { return p.lenses().Size() }

// Slot читает слот по общему индексу
func (p *PlayerInventory) Slot(i int) *item.Stack {
	return p.lenses().Get(p.fabric, i)
}

// SetSlot записывает слот по общему индексу
func (p *PlayerInventory) SetSlot(i int, s *item.Stack) bool {
	return p.lenses().Set(p.fabric, i, s)
}

// Invalidate сбрасывает кэш представлений после изменения размера ткани
func (p *PlayerInventory) Invalidate() {
	p.all = nil
	p.main = nil
	p.equipment = nil
	p.offhand = nil
	p.hotbar = nil
}

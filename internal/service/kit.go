package service

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/annel0/blockverse/internal/inventory"
	"github.com/annel0/blockverse/internal/item"
	"github.com/annel0/blockverse/internal/schematic"
	"github.com/annel0/blockverse/internal/vec"
)

// KitSlot — занятый слот набора строителя
type KitSlot struct {
	Slot int            `json:"slot"`
	Kind string         `json:"kind"`
	Item map[string]any `json:"item"`
}

// Kit — инвентарь игрока с предметами, нужными для постройки схематики
type Kit struct {
	Slots []KitSlot `json:"slots"`
	// Missing — предметы, не поместившиеся в основной инвентарь
	Missing map[string]int `json:"missing,omitempty"`
}

type kitEntry struct {
	typ   *item.Type
	count int
}

// Kit раскладывает блоки схематики по основному инвентарю игрока:
// сначала хотбар, потом хранилище. Самые частые блоки идут первыми.
// Блоки без предмета (воздух, жидкости) не учитываются.
func (s *Schematics) Kit(ctx context.Context, id uuid.UUID) (Kit, error) {
	var entries []kitEntry
	err := s.with(ctx, id, func(sc *schematic.Schematic) error {
		entries = countItems(sc)
		return nil
	})
	if err != nil {
		return Kit{}, err
	}

	inv, err := inventory.NewPlayerInventory(inventory.NewPlayerFabric(), nil)
	if err != nil {
		return Kit{}, err
	}
	view := inv.Main()
	kit := Kit{Slots: []KitSlot{}}
	slot := 0
	for _, e := range entries {
		left := e.count
		for left > 0 && slot < view.Size() {
			n := min(left, e.typ.MaxStack)
			stack := item.NewBuilder().Type(e.typ).Quantity(n).Build().Stack()
			if view.Set(slot, stack) {
				left -= n
			}
			slot++
		}
		if left > 0 {
			if kit.Missing == nil {
				kit.Missing = make(map[string]int)
			}
			kit.Missing[e.typ.ID] = left
		}
	}

	for i := 0; i < view.Size(); i++ {
		st := view.Get(i)
		if st.IsEmpty() {
			continue
		}
		lens, _ := view.Slot(i)
		kit.Slots = append(kit.Slots, KitSlot{Slot: i, Kind: lens.Kind.String(), Item: st.Snapshot().ToContainer()})
	}
	return kit, nil
}

func countItems(sc *schematic.Schematic) []kitEntry {
	counts := make(map[*item.Type]int)
	b := sc.Bounds()
	for i := 0; i < b.Volume(); i++ {
		if t, ok := item.ForBlock(sc.Block(b.At(i))); ok {
			counts[t]++
		}
	}
	out := make([]kitEntry, 0, len(counts))
	for t, n := range counts {
		out = append(out, kitEntry{typ: t, count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].typ.ID < out[j].typ.ID
	})
	return out
}

// pickItem — предмет, который получает игрок при выборе блока ячейки
func pickItem(sc *schematic.Schematic, c vec.Vec3) map[string]any {
	st := sc.Block(c)
	if _, ok := item.ForBlock(st); !ok {
		return nil
	}
	be, _ := sc.BlockEntity(c)
	return item.NewBuilder().FromBlockSnapshot(st, be).Build().ToContainer()
}

// Package item описывает типы предметов, стаки и их сборку.
package item

import (
	"fmt"
	"sort"
	"sync"

	"github.com/annel0/blockverse/internal/data"
	"github.com/annel0/blockverse/internal/world/archetype"
	"github.com/annel0/blockverse/internal/world/block"
	_ "github.com/annel0/blockverse/internal/world/block/implementations"
)

// DefaultMaxStack — максимальный размер стака по умолчанию
const DefaultMaxStack = 64

// Ключи данных предметов
var (
	DisplayNameKey = data.NewKey("blockverse:display_name", data.KindString)
	EnchantedKey   = data.NewKey("blockverse:enchanted", data.KindBool)
	DurabilityKey  = data.NewKey("blockverse:durability", data.KindInt)
)

// Type описывает тип предмета
type Type struct {
	ID       string
	Name     string
	MaxStack int
	Block    block.BlockID // блок, который ставит предмет
	IsBlock  bool
	Keys     []*data.Key // ключи данных, применимые к предмету
}

// Applicable сообщает, можно ли хранить ключ в предмете этого типа
func (t *Type) Applicable(key *data.Key) bool {
	for _, k := range t.Keys {
		if k == key {
			return true
		}
	}
	return false
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]*Type)
)

// Register добавляет тип предмета. Повторная регистрация — ошибка программиста.
func Register(t *Type) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[t.ID]; exists {
		panic(fmt.Sprintf("item: type %s already registered", t.ID))
	}
	if t.MaxStack <= 0 {
		t.MaxStack = DefaultMaxStack
	}
	registry[t.ID] = t
}

// Get возвращает тип по идентификатору
func Get(id string) (*Type, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	t, ok := registry[id]
	return t, ok
}

// ForBlock возвращает предмет, который выпадает из блока
func ForBlock(s block.State) (*Type, bool) {
	bt, ok := s.Type()
	if !ok || bt.Item == "" {
		return nil, false
	}
	return Get(bt.Item)
}

// Types возвращает все типы, отсортированные по ID
func Types() []*Type {
	registryMu.RLock()
	out := make([]*Type, 0, len(registry))
	for _, t := range registry {
		out = append(out, t)
	}
	registryMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func init() {
	common := []*data.Key{DisplayNameKey, EnchantedKey}
	for _, id := range []block.BlockID{
		block.StoneBlockID, block.DirtBlockID, block.SandBlockID,
		block.FlowerBlockID, block.LogBlockID, block.CactusBlockID,
		block.ChestBlockID, block.DoorBlockID, block.SignBlockID, block.FurnaceBlockID,
	} {
		bt, ok := block.Get(id)
		if !ok || bt.Item != bt.Name {
			continue
		}
		keys := common
		if bt.HasEntity {
			keys = append(append([]*data.Key{}, common...), archetype.CustomNameKey)
		}
		maxStack := DefaultMaxStack
		if id == block.DoorBlockID || id == block.SignBlockID {
			maxStack = 16
		}
		Register(&Type{ID: bt.Item, Name: bt.Name, MaxStack: maxStack, Block: id, IsBlock: true, Keys: keys})
	}
	Register(&Type{ID: "blockverse:diamond", Name: "blockverse:diamond", Keys: common})
	Register(&Type{
		ID:       "blockverse:sword",
		Name:     "blockverse:sword",
		MaxStack: 1,
		Keys:     []*data.Key{DisplayNameKey, EnchantedKey, DurabilityKey},
	})
}

// Package archetype содержит шаблоны дополнительных данных ячеек (блок-сущности)
// и сущностей схематики.
package archetype

import (
	"sync"

	"github.com/annel0/blockverse/internal/data"
	"github.com/annel0/blockverse/internal/world/block"
)

// Ключи данных блок-сущностей
var (
	CustomNameKey    = data.NewKey("blockverse:custom_name", data.KindString)
	LockKey          = data.NewKey("blockverse:lock", data.KindString)
	SignTextKey      = data.NewKey("blockverse:sign_text", data.KindString)
	SpawnerEntityKey = data.NewKey("blockverse:spawn_entity", data.KindString)
	SpawnerDelayKey  = data.NewKey("blockverse:spawn_delay", data.KindInt)
	BurnTimeKey      = data.NewKey("blockverse:burn_time", data.KindInt)
)

var (
	schemaMu sync.RWMutex
	schemas  = make(map[block.BlockID][]*data.Key)
)

// RegisterSchema объявляет ключи, которые принимает блок-сущность данного типа блока.
func RegisterSchema(id block.BlockID, keys ...*data.Key) {
	schemaMu.Lock()
	defer schemaMu.Unlock()
	schemas[id] = append(schemas[id], keys...)
}

// Schema возвращает ключи, объявленные для типа блока
func Schema(id block.BlockID) []*data.Key {
	schemaMu.RLock()
	defer schemaMu.RUnlock()
	out := make([]*data.Key, len(schemas[id]))
	copy(out, schemas[id])
	return out
}

func declared(id block.BlockID, key *data.Key) bool {
	schemaMu.RLock()
	defer schemaMu.RUnlock()
	for _, k := range schemas[id] {
		if k == key {
			return true
		}
	}
	return false
}

func init() {
	RegisterSchema(block.ChestBlockID, CustomNameKey, LockKey)
	RegisterSchema(block.FurnaceBlockID, CustomNameKey, LockKey, BurnTimeKey)
	RegisterSchema(block.SignBlockID, SignTextKey)
	RegisterSchema(block.SpawnerBlockID, SpawnerEntityKey, SpawnerDelayKey)
}

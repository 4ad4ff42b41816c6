package implementations

import "github.com/annel0/blockverse/internal/world/block"

func init() {
	// Спаунер не выпадает предметом
	block.Register(&block.Type{ID: block.SpawnerBlockID, Name: "blockverse:spawner", HasEntity: true})
}

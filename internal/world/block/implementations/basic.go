package implementations

import "github.com/annel0/blockverse/internal/world/block"

// Базовые блоки
func init() {
	block.Register(&block.Type{ID: block.AirBlockID, Name: "blockverse:air"})
	block.Register(&block.Type{ID: block.StoneBlockID, Name: "blockverse:stone", Item: "blockverse:stone"})
	block.Register(&block.Type{ID: block.GrassBlockID, Name: "blockverse:grass", Item: "blockverse:dirt"})
	block.Register(&block.Type{ID: block.SandBlockID, Name: "blockverse:sand", Item: "blockverse:sand"})
	block.Register(&block.Type{ID: block.DirtBlockID, Name: "blockverse:dirt", Item: "blockverse:dirt"})
}

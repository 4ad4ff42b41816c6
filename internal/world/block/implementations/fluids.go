package implementations

import "github.com/annel0/blockverse/internal/world/block"

// Блоки-жидкости. Уровень и течение хранятся в слое жидкостей,
// поэтому у самих блоков свойств нет.
func init() {
	block.Register(&block.Type{ID: block.WaterBlockID, Name: "blockverse:water", Fluid: "blockverse:water"})
	block.Register(&block.Type{ID: block.LavaBlockID, Name: "blockverse:lava", Fluid: "blockverse:lava"})
}

package implementations

import "github.com/annel0/blockverse/internal/world/block"

func init() {
	block.Register(&block.Type{
		ID:   block.FlowerBlockID,
		Name: "blockverse:flower",
		Item: "blockverse:flower",
		Properties: []block.Property{
			{Name: "color", Key: block.ColorKey, Allowed: []any{"red", "yellow", "blue"}, Default: "red"},
		},
	})
	block.Register(&block.Type{
		ID:   block.LogBlockID,
		Name: "blockverse:log",
		Item: "blockverse:log",
		Properties: []block.Property{
			{Name: "axis", Key: block.AxisKey, Allowed: []any{"x", "y", "z"}, Default: "y"},
		},
	})
	// Кактус растёт: возраст 0..15
	block.Register(&block.Type{
		ID:         block.CactusBlockID,
		Name:       "blockverse:cactus",
		Item:       "blockverse:cactus",
		Properties: []block.Property{block.AgeProperty(15)},
	})
}

package implementations

import "github.com/annel0/blockverse/internal/world/block"

// Интерактивные блоки. Сундук, табличка и печь несут блок-сущность.
func init() {
	block.Register(&block.Type{
		ID:         block.ChestBlockID,
		Name:       "blockverse:chest",
		Item:       "blockverse:chest",
		HasEntity:  true,
		Properties: []block.Property{block.FacingProperty("north")},
	})
	block.Register(&block.Type{
		ID:   block.DoorBlockID,
		Name: "blockverse:door",
		Item: "blockverse:door",
		Properties: []block.Property{
			block.FacingProperty("north"),
			{Name: "half", Key: block.HalfKey, Allowed: []any{"lower", "upper"}, Default: "lower"},
			{Name: "open", Key: block.OpenKey, Default: false},
		},
	})
	block.Register(&block.Type{
		ID:         block.SignBlockID,
		Name:       "blockverse:sign",
		Item:       "blockverse:sign",
		HasEntity:  true,
		Properties: []block.Property{block.FacingProperty("north")},
	})
	block.Register(&block.Type{
		ID:        block.FurnaceBlockID,
		Name:      "blockverse:furnace",
		Item:      "blockverse:furnace",
		HasEntity: true,
		Properties: []block.Property{
			block.FacingProperty("north"),
			{Name: "lit", Key: block.LitKey, Default: false},
		},
	})
}

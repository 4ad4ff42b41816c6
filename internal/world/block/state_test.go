package block_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/blockverse/internal/world/block"
	_ "github.com/annel0/blockverse/internal/world/block/implementations"
)

func TestDefaultStates(t *testing.T) {
	air := block.Air()
	assert.True(t, air.IsAir())
	assert.Empty(t, air.Keys())
	assert.Equal(t, "blockverse:air", air.String())

	chest := block.DefaultState(block.ChestBlockID)
	facing, ok := chest.Get(block.FacingKey)
	require.True(t, ok)
	assert.Equal(t, "north", facing)
	assert.True(t, chest.Supports(block.FacingKey))
	assert.False(t, chest.Supports(block.AgeKey))
}

func TestStateWithIsImmutable(t *testing.T) {
	chest := block.DefaultState(block.ChestBlockID)

	east, ok := chest.With(block.FacingKey, "east")
	require.True(t, ok)
	assert.NotEqual(t, chest, east)

	v, _ := chest.Get(block.FacingKey)
	assert.Equal(t, "north", v, "исходное состояние не должно меняться")

	v, _ = east.Get(block.FacingKey)
	assert.Equal(t, "east", v)

	// Недопустимое значение и чужой ключ
	_, ok = chest.With(block.FacingKey, "up")
	assert.False(t, ok)
	_, ok = chest.With(block.AgeKey, 3)
	assert.False(t, ok)
	_, ok = chest.With(block.FacingKey, 3)
	assert.False(t, ok)
}

func TestStateWithoutFails(t *testing.T) {
	door := block.DefaultState(block.DoorBlockID)
	same, ok := door.Without(block.OpenKey)
	assert.False(t, ok)
	assert.Equal(t, door, same)
}

func TestStateStringRoundTrip(t *testing.T) {
	door := block.DefaultState(block.DoorBlockID)
	door, ok := door.With(block.OpenKey, true)
	require.True(t, ok)
	door, ok = door.With(block.FacingKey, "west")
	require.True(t, ok)

	str := door.String()
	assert.Equal(t, "blockverse:door[facing=west,half=lower,open=true]", str)

	parsed, err := block.ParseState(str)
	require.NoError(t, err)
	assert.Equal(t, door, parsed)
}

func TestParseState(t *testing.T) {
	s, err := block.ParseState("stone")
	require.NoError(t, err)
	assert.Equal(t, block.StoneBlockID, s.ID())

	s, err = block.ParseState("blockverse:cactus[age=7]")
	require.NoError(t, err)
	age, _ := s.Get(block.AgeKey)
	assert.Equal(t, 7, age)

	for _, bad := range []string{
		"blockverse:nothing",
		"blockverse:cactus[age=99]",
		"blockverse:cactus[age=x]",
		"blockverse:cactus[colour=red]",
		"blockverse:cactus[age=1",
		"blockverse:cactus[age]",
	} {
		_, err := block.ParseState(bad)
		assert.Error(t, err, bad)
	}
}

func TestValuesAndFluidName(t *testing.T) {
	furnace := block.DefaultState(block.FurnaceBlockID)
	values := furnace.Values()
	require.Len(t, values, 2)
	assert.Equal(t, block.FacingKey, values[0].Key())
	assert.Equal(t, block.LitKey, values[1].Key())

	assert.Equal(t, "blockverse:water", block.DefaultState(block.WaterBlockID).FluidName())
	assert.Empty(t, furnace.FluidName())
}

func TestRegistryLookups(t *testing.T) {
	typ, ok := block.ByName("blockverse:spawner")
	require.True(t, ok)
	assert.Equal(t, block.SpawnerBlockID, typ.ID)
	assert.True(t, typ.HasEntity)
	assert.True(t, block.IsValidBlockID(block.LavaBlockID))
	assert.False(t, block.IsValidBlockID(9999))

	assert.Panics(t, func() {
		block.Register(&block.Type{ID: block.StoneBlockID, Name: "blockverse:stone2"})
	})
}

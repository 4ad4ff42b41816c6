package item

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/blockverse/internal/world/archetype"
	"github.com/annel0/blockverse/internal/world/block"
)

func mustType(t *testing.T, id string) *Type {
	t.Helper()
	typ, ok := Get(id)
	require.True(t, ok, id)
	return typ
}

func TestBuilderBasics(t *testing.T) {
	diamond := mustType(t, "blockverse:diamond")
	snap := NewBuilder().Type(diamond).Quantity(12).Data(DisplayNameKey, "Shiny").Build()

	assert.Equal(t, diamond, snap.Type())
	assert.Equal(t, 12, snap.Quantity())
	name, ok := snap.Get(DisplayNameKey)
	require.True(t, ok)
	assert.Equal(t, "Shiny", name)
	assert.False(t, snap.IsEmpty())
}

func TestBuilderPanicsOnProgrammerErrors(t *testing.T) {
	diamond := mustType(t, "blockverse:diamond")

	assert.Panics(t, func() { NewBuilder().Quantity(0) })
	assert.Panics(t, func() { NewBuilder().Quantity(-3) })
	assert.Panics(t, func() { NewBuilder().Data(DisplayNameKey, "x") }, "данные без типа")
	assert.Panics(t, func() { NewBuilder().Type(diamond).Data(DurabilityKey, 3) }, "ключ не применим")
	assert.Panics(t, func() { NewBuilder().Type(diamond).Data(DisplayNameKey, 3) }, "неверный тип значения")
	assert.Panics(t, func() { NewBuilder().Build() }, "сборка без типа")
	assert.Panics(t, func() { NewBuilder().Type(diamond).Quantity(65).Build() })
	assert.Panics(t, func() { NewBuilder().Type(nil) })
}

func TestBuilderMaxQuantityFollowsStack(t *testing.T) {
	sword := mustType(t, "blockverse:sword")

	// Без исходного стака действует предел по умолчанию
	snap := NewBuilder().Type(sword).Quantity(5).Build()
	assert.Equal(t, 5, snap.Quantity())

	stack := NewBuilder().Type(sword).Data(DurabilityKey, 100).Build().Stack()
	b := NewBuilder().FromStack(stack)
	assert.Panics(t, func() { b.Quantity(2).Build() })

	copied := NewBuilder().FromStack(stack).Build()
	durability, _ := copied.Get(DurabilityKey)
	assert.Equal(t, 100, durability)
}

func TestFromSnapshotAndStackAreIndependent(t *testing.T) {
	log := mustType(t, "blockverse:log")
	original := NewBuilder().Type(log).Quantity(3).Data(EnchantedKey, true).Build()

	stack := original.Stack()
	stack.Quantity = 10
	stack.Data.Remove(EnchantedKey)
	assert.Equal(t, 3, original.Quantity())
	_, ok := original.Get(EnchantedKey)
	assert.True(t, ok)

	rebuilt := NewBuilder().FromSnapshot(original).Build()
	assert.Equal(t, original.Values(), rebuilt.Values())
	assert.Equal(t, 3, rebuilt.Quantity())
}

func TestFromContainer(t *testing.T) {
	container := map[string]any{
		ContainerType:     "blockverse:diamond",
		ContainerCount:    float64(7), // JSON
		ContainerDamage:   int32(0),   // NBT
		ContainerCompound: map[string]any{"Custom": "x"},
		ContainerData:     map[string]any{DisplayNameKey.ID: "Gem", DurabilityKey.ID: 5},
	}
	snap := NewBuilder().FromContainer(container).Build()
	assert.Equal(t, "blockverse:diamond", snap.Type().ID)
	assert.Equal(t, 7, snap.Quantity())
	name, _ := snap.Get(DisplayNameKey)
	assert.Equal(t, "Gem", name)
	_, ok := snap.Get(DurabilityKey)
	assert.False(t, ok, "неприменимые данные отбрасываются")
	compound, ok := snap.Compound()
	require.True(t, ok)
	assert.Equal(t, "x", compound["Custom"])

	// Неполный контейнер молча игнорируется
	sword := mustType(t, "blockverse:sword")
	b := NewBuilder().Type(sword)
	b.FromContainer(map[string]any{ContainerType: "blockverse:diamond", ContainerCount: 1})
	assert.Equal(t, sword, b.Build().Type())

	assert.Panics(t, func() {
		NewBuilder().FromContainer(map[string]any{ContainerType: "blockverse:nothing", ContainerCount: 1, ContainerDamage: 0})
	})
}

func TestContainerRoundTrip(t *testing.T) {
	door := mustType(t, "blockverse:door")
	snap := NewBuilder().Type(door).Quantity(4).Damage(1).Data(DisplayNameKey, "Front").Build()

	rebuilt := NewBuilder().FromContainer(snap.ToContainer()).Build()
	assert.Equal(t, snap.Type(), rebuilt.Type())
	assert.Equal(t, 4, rebuilt.Quantity())
	assert.Equal(t, 1, rebuilt.Damage())
	assert.Equal(t, snap.Values(), rebuilt.Values())
}

func TestFromBlockSnapshot(t *testing.T) {
	chestState := block.DefaultState(block.ChestBlockID)
	chest := archetype.NewBlockEntity(block.ChestBlockID)
	chest.Offer(archetype.CustomNameKey, "Stash")

	snap := NewBuilder().FromBlockSnapshot(chestState, chest).Build()
	assert.Equal(t, "blockverse:chest", snap.Type().ID)
	assert.Equal(t, 1, snap.Quantity())
	compound, ok := snap.Compound()
	require.True(t, ok)
	tag, ok := compound[BlockEntityTag].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Stash", tag[archetype.CustomNameKey.ID])

	grass := NewBuilder().FromBlockSnapshot(block.DefaultState(block.GrassBlockID), nil).Build()
	assert.Equal(t, "blockverse:dirt", grass.Type().ID)
	_, ok = grass.Compound()
	assert.False(t, ok)

	assert.Panics(t, func() { NewBuilder().FromBlockSnapshot(block.Air(), nil) })
	assert.Panics(t, func() { NewBuilder().FromBlockSnapshot(block.DefaultState(block.SpawnerBlockID), nil) })
}

func TestRegistry(t *testing.T) {
	assert.NotEmpty(t, Types())
	assert.Panics(t, func() { Register(&Type{ID: "blockverse:diamond"}) })
	typ, ok := ForBlock(block.DefaultState(block.StoneBlockID))
	require.True(t, ok)
	assert.True(t, typ.IsBlock)
	assert.Equal(t, block.StoneBlockID, typ.Block)
}

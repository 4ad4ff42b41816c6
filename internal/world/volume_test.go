package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/blockverse/internal/data"
	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world/archetype"
	"github.com/annel0/blockverse/internal/world/block"
	"github.com/annel0/blockverse/internal/world/fluid"
)

func init() {
	// Табличка хранит направление и уровень ещё и в блок-сущности,
	// чтобы проверить затенение слоёв.
	archetype.RegisterSchema(block.SignBlockID, block.FacingKey, fluid.LevelKey)
}

var origin = vec.Vec3{}

func newTestVolume() *Volume {
	return NewVolume(vec.NewBounds(vec.Vec3{}, vec.Vec3{X: 31, Y: 31, Z: 31}))
}

type cellSnapshot struct {
	block  block.State
	fluid  fluid.State
	hasBE  bool
	beData map[string]any
}

func snapshotCell(v *Volume, c vec.Vec3) cellSnapshot {
	s := cellSnapshot{block: v.Block(c), fluid: v.Fluid(c)}
	if a, ok := v.BlockEntity(c); ok {
		s.hasBE = true
		s.beData = a.RawData()
	}
	return s
}

// signCell ставит табличку (facing=east) с блок-сущностью (facing=north)
func signCell(t *testing.T, v *Volume, c vec.Vec3) *archetype.BlockEntity {
	t.Helper()
	st, ok := block.DefaultState(block.SignBlockID).With(block.FacingKey, "east")
	require.True(t, ok)
	require.True(t, v.SetBlock(c, st))

	a := archetype.NewBlockEntity(block.SignBlockID)
	_, ok = a.Offer(block.FacingKey, "north")
	require.True(t, ok)
	_, ok = a.Offer(archetype.SignTextKey, "hello")
	require.True(t, ok)
	require.True(t, v.AddBlockEntity(c, a))
	return a
}

func TestGetFirstLayerWins(t *testing.T) {
	v := newTestVolume()
	c := vec.Vec3{X: 1, Y: 2, Z: 3}
	signCell(t, v, c)

	got, ok := v.Get(c, block.FacingKey)
	require.True(t, ok)
	assert.Equal(t, "east", got, "слой блоков затеняет блок-сущность")

	bound, ok := v.GetValue(c, block.FacingKey)
	require.True(t, ok)
	assert.Equal(t, LayerBlock, bound.Layer())
	assert.Equal(t, c, bound.Cell())

	text, ok := v.Get(c, archetype.SignTextKey)
	require.True(t, ok)
	assert.Equal(t, "hello", text)

	_, ok = v.Get(c, block.AgeKey)
	assert.False(t, ok)
	_, ok = v.Get(vec.Vec3{X: 100}, block.FacingKey)
	assert.False(t, ok)
}

func TestGetFluidShadowsArchetype(t *testing.T) {
	v := newTestVolume()
	c := vec.Vec3{X: 4}
	require.True(t, v.SetBlock(c, block.DefaultState(block.WaterBlockID)))

	a := archetype.NewBlockEntity(block.SignBlockID)
	_, ok := a.Offer(fluid.LevelKey, 3)
	require.True(t, ok)
	v.AddBlockEntity(c, a)

	level, ok := v.GetValue(c, fluid.LevelKey)
	require.True(t, ok)
	assert.Equal(t, fluid.SourceLevel, level.Get())
	assert.Equal(t, LayerFluid, level.Layer())
}

func TestSupportsKeysAndValuesUnion(t *testing.T) {
	v := newTestVolume()
	c := vec.Vec3{X: 5, Y: 5, Z: 5}
	signCell(t, v, c)

	assert.True(t, v.Supports(c, block.FacingKey))
	assert.True(t, v.Supports(c, archetype.SignTextKey))
	assert.True(t, v.Supports(c, fluid.LevelKey), "схема таблички объявляет уровень")
	assert.False(t, v.Supports(c, block.AgeKey))
	assert.False(t, v.Supports(origin, archetype.SignTextKey))

	keys := v.Keys(c)
	assert.Equal(t, []*data.Key{block.FacingKey, fluid.LevelKey, archetype.SignTextKey}, keys)

	values := v.Values(c)
	assert.Contains(t, values, data.MustValue(block.FacingKey, "east"))
	assert.Contains(t, values, data.MustValue(block.FacingKey, "north"))
	assert.Contains(t, values, data.MustValue(archetype.SignTextKey, "hello"))
	assert.Len(t, values, 3)

	assert.Empty(t, v.Keys(origin))
	assert.Empty(t, v.Values(origin))
}

func TestOfferCommitsToExactlyOneLayer(t *testing.T) {
	v := newTestVolume()
	c := vec.Vec3{X: 2, Y: 2, Z: 2}
	a := signCell(t, v, c)
	before := snapshotCell(v, c)

	r := v.Offer(c, block.FacingKey, "west")
	require.True(t, r.IsSuccessful())
	assert.Equal(t, []data.Value{data.MustValue(block.FacingKey, "west")}, r.Success)
	assert.Equal(t, []data.Value{data.MustValue(block.FacingKey, "east")}, r.Replaced)

	got, _ := v.Get(c, block.FacingKey)
	assert.Equal(t, "west", got)

	after := snapshotCell(v, c)
	assert.Equal(t, before.fluid, after.fluid)
	assert.Equal(t, before.beData, after.beData)
	facing, _ := a.Get(block.FacingKey)
	assert.Equal(t, "north", facing)

	// Ключ, который принимает только блок-сущность
	r = v.Offer(c, archetype.SignTextKey, "bye")
	require.True(t, r.IsSuccessful())
	assert.Equal(t, after.block, v.Block(c))
	text, _ := v.Get(c, archetype.SignTextKey)
	assert.Equal(t, "bye", text)
}

func TestOfferFluidLayer(t *testing.T) {
	v := newTestVolume()
	c := vec.Vec3{Y: 1}
	require.True(t, v.SetFluid(c, fluid.Source(fluid.Lava)))
	assert.Equal(t, block.LavaBlockID, v.Block(c).ID())

	r := v.Offer(c, fluid.LevelKey, 2)
	require.True(t, r.IsSuccessful())
	assert.Equal(t, 2, v.Fluid(c).Level)
	assert.Equal(t, block.LavaBlockID, v.Block(c).ID())

	// Значения из JSON приходят как float64
	r = v.Offer(c, fluid.LevelKey, float64(5))
	require.True(t, r.IsSuccessful())
	assert.Equal(t, 5, v.Fluid(c).Level)

	r = v.Offer(c, fluid.LevelKey, 42)
	assert.False(t, r.IsSuccessful())
	assert.Equal(t, 5, v.Fluid(c).Level)
}

func TestOfferRejectedLeavesCellUnchanged(t *testing.T) {
	v := newTestVolume()
	c := vec.Vec3{X: 3}
	v.SetBlock(c, block.DefaultState(block.StoneBlockID))
	before := snapshotCell(v, c)

	r := v.Offer(c, block.FacingKey, "north")
	assert.Equal(t, data.ResultFailure, r.Type)
	assert.Equal(t, []data.Value{data.MustValue(block.FacingKey, "north")}, r.Rejected)
	assert.Equal(t, before, snapshotCell(v, c))

	r = v.Offer(c, block.FacingKey, 17)
	assert.Equal(t, data.ResultFailure, r.Type)
	assert.Equal(t, before, snapshotCell(v, c))

	r = v.Offer(vec.Vec3{X: -1}, block.FacingKey, "north")
	assert.Equal(t, data.ResultFailure, r.Type)
}

func TestOfferDoesNotCreateBlockEntity(t *testing.T) {
	v := newTestVolume()
	before := snapshotCell(v, origin)
	require.True(t, before.block.IsAir())
	require.True(t, before.fluid.IsEmpty())
	require.False(t, before.hasBE)

	r := v.Offer(origin, archetype.CustomNameKey, "Alice")
	assert.Equal(t, data.ResultFailure, r.Type)
	assert.Equal(t, []data.Value{data.MustValue(archetype.CustomNameKey, "Alice")}, r.Rejected)
	assert.Equal(t, before, snapshotCell(v, origin))
	_, ok := v.BlockEntity(origin)
	assert.False(t, ok, "блок-сущность не создаётся автоматически")

	// С заранее размещённой блок-сущностью запись проходит
	v.SetBlock(origin, block.DefaultState(block.ChestBlockID))
	v.AddBlockEntity(origin, archetype.NewBlockEntity(block.ChestBlockID))
	r = v.Offer(origin, archetype.CustomNameKey, "Alice")
	require.True(t, r.IsSuccessful())
	assert.Empty(t, r.Replaced)
	name, ok := v.Get(origin, archetype.CustomNameKey)
	require.True(t, ok)
	assert.Equal(t, "Alice", name)
}

func TestUndoRestoresPreviousValue(t *testing.T) {
	v := newTestVolume()
	c := vec.Vec3{X: 7, Y: 7, Z: 7}
	signCell(t, v, c)

	for _, tc := range []struct {
		key     *data.Key
		payload any
	}{
		{block.FacingKey, "south"},
		{archetype.SignTextKey, "changed"},
	} {
		before, _ := v.Get(c, tc.key)
		beforeCell := snapshotCell(v, c)

		r := v.Offer(c, tc.key, tc.payload)
		require.True(t, r.IsSuccessful())

		undo := v.Undo(c, r)
		require.True(t, undo.IsSuccessful())
		after, _ := v.Get(c, tc.key)
		assert.Equal(t, before, after, tc.key.ID)
		assert.Equal(t, beforeCell, snapshotCell(v, c), tc.key.ID)
	}

	// Нечего восстанавливать
	assert.Equal(t, data.ResultUndefined, v.Undo(c, data.TransactionResult{}).Type)
}

// Undo восстанавливает только вытесненные значения: ключ, которого не было
// до записи, остаётся на месте
func TestUndoKeepsNewlyAddedValue(t *testing.T) {
	v := newTestVolume()
	c := vec.Vec3{X: 2, Y: 2, Z: 2}
	v.SetBlock(c, block.DefaultState(block.ChestBlockID))
	v.AddBlockEntity(c, archetype.NewBlockEntity(block.ChestBlockID))
	_, ok := v.Get(c, archetype.CustomNameKey)
	require.False(t, ok)

	r := v.Offer(c, archetype.CustomNameKey, "Alice")
	require.True(t, r.IsSuccessful())
	assert.Empty(t, r.Replaced)

	undo := v.Undo(c, r)
	assert.Equal(t, data.ResultUndefined, undo.Type)
	name, ok := v.Get(c, archetype.CustomNameKey)
	require.True(t, ok)
	assert.Equal(t, "Alice", name)

	// Откат такой записи делается через Remove
	require.True(t, v.Remove(c, archetype.CustomNameKey).IsSuccessful())
	_, ok = v.Get(c, archetype.CustomNameKey)
	assert.False(t, ok)
}

func TestRemove(t *testing.T) {
	v := newTestVolume()
	c := vec.Vec3{X: 1, Y: 1, Z: 1}
	signCell(t, v, c)

	r := v.Remove(c, archetype.SignTextKey)
	require.True(t, r.IsSuccessful())
	assert.Equal(t, []data.Value{data.MustValue(archetype.SignTextKey, "hello")}, r.Replaced)
	_, ok := v.Get(c, archetype.SignTextKey)
	assert.False(t, ok)

	// Свойство блока снять нельзя, но блок-сущность хранит то же свойство
	r = v.Remove(c, block.FacingKey)
	require.True(t, r.IsSuccessful())
	assert.Equal(t, LayerBlock, mustBound(t, v, c, block.FacingKey).Layer())
	a, _ := v.BlockEntity(c)
	_, ok = a.Get(block.FacingKey)
	assert.False(t, ok)

	r = v.Remove(c, block.FacingKey)
	assert.Equal(t, data.ResultFailure, r.Type)

	r = v.Remove(origin, archetype.SignTextKey)
	assert.False(t, r.IsSuccessful())
}

func mustBound(t *testing.T, v *Volume, c vec.Vec3, key *data.Key) BoundValue {
	t.Helper()
	b, ok := v.GetValue(c, key)
	require.True(t, ok)
	return b
}

type valueList []data.Value

func (l valueList) Values() []data.Value { return l }

func TestCopyFromMergeSeesCurrentValues(t *testing.T) {
	v := newTestVolume()
	c := vec.Vec3{X: 9}
	v.SetBlock(c, block.DefaultState(block.DoorBlockID))

	type seen struct{ existing, incoming data.Value }
	var calls []seen
	merge := func(existing, incoming data.Value) data.Value {
		calls = append(calls, seen{existing, incoming})
		return incoming
	}

	source := valueList{
		data.MustValue(block.FacingKey, "south"),
		data.MustValue(block.OpenKey, true),
		data.MustValue(block.FacingKey, "east"),
	}
	r := v.CopyFromMerge(c, source, merge)
	require.True(t, r.IsSuccessful())
	require.Len(t, calls, 3, "слияние вызывается ровно один раз на значение")

	assert.Equal(t, data.MustValue(block.FacingKey, "north"), calls[0].existing)
	// Слияние для open видит собственное прежнее значение, а не запись facing
	assert.Equal(t, data.MustValue(block.OpenKey, false), calls[1].existing)
	// Повторный ключ видит запись, сделанную ранее в этом же вызове
	assert.Equal(t, data.MustValue(block.FacingKey, "south"), calls[2].existing)

	facing, _ := v.Get(c, block.FacingKey)
	assert.Equal(t, "east", facing)
	open, _ := v.Get(c, block.OpenKey)
	assert.Equal(t, true, open)
}

func TestCopyFromMergeFunctions(t *testing.T) {
	v := newTestVolume()
	c := vec.Vec3{X: 10}
	v.SetBlock(c, block.DefaultState(block.ChestBlockID))
	source := data.NewBag(data.MustValue(block.FacingKey, "west"))

	r := v.CopyFromMerge(c, source, data.OriginalPreferred)
	require.True(t, r.IsSuccessful())
	facing, _ := v.Get(c, block.FacingKey)
	assert.Equal(t, "north", facing)

	r = v.CopyFromMerge(c, source, data.ReplacementPreferred)
	require.True(t, r.IsSuccessful())
	facing, _ = v.Get(c, block.FacingKey)
	assert.Equal(t, "west", facing)

	assert.Equal(t, data.ResultUndefined, v.CopyFrom(c, data.NewBag()).Type)
}

func TestCopyFromPartialFailure(t *testing.T) {
	v := newTestVolume()
	c := vec.Vec3{X: 11}
	v.SetBlock(c, block.DefaultState(block.ChestBlockID))

	r := v.CopyFrom(c, data.NewBag(
		data.MustValue(block.FacingKey, "east"),
		data.MustValue(block.AgeKey, 3),
	))
	assert.Equal(t, data.ResultFailure, r.Type)
	assert.Len(t, r.Success, 1)
	assert.Len(t, r.Rejected, 1)
	facing, _ := v.Get(c, block.FacingKey)
	assert.Equal(t, "east", facing)
}

func TestCopyFromCell(t *testing.T) {
	v := newTestVolume()
	from := vec.Vec3{X: 12}
	to := vec.Vec3{X: 13}
	signCell(t, v, from)
	v.SetBlock(to, block.DefaultState(block.SignBlockID))
	v.AddBlockEntity(to, archetype.NewBlockEntity(block.SignBlockID))

	r := v.CopyFromCell(to, from, nil)
	require.True(t, r.IsSuccessful())

	text, ok := v.Get(to, archetype.SignTextKey)
	require.True(t, ok)
	assert.Equal(t, "hello", text)
	// Оба значения facing источника попадают в слой блоков, последнее побеждает
	facing, _ := v.Get(to, block.FacingKey)
	assert.Equal(t, "north", facing)
}

func TestRawData(t *testing.T) {
	v := newTestVolume()
	c := vec.Vec3{Z: 1}

	assert.False(t, v.ValidateRawData(c, map[string]any{}))
	assert.NoError(t, v.SetRawData(c, map[string]any{archetype.CustomNameKey.ID: "x"}))
	_, ok := v.BlockEntity(c)
	assert.False(t, ok)

	v.AddBlockEntity(c, archetype.NewBlockEntity(block.ChestBlockID))
	view := map[string]any{archetype.CustomNameKey.ID: "Treasure"}
	assert.True(t, v.ValidateRawData(c, view))
	require.NoError(t, v.SetRawData(c, view))
	name, _ := v.Get(c, archetype.CustomNameKey)
	assert.Equal(t, "Treasure", name)

	assert.Error(t, v.SetRawData(c, map[string]any{archetype.CustomNameKey.ID: 5}))
}

func TestBoundValueSet(t *testing.T) {
	v := newTestVolume()
	c := vec.Vec3{Y: 3}
	v.SetBlock(c, block.DefaultState(block.CactusBlockID))

	bound := mustBound(t, v, c, block.AgeKey)
	assert.Equal(t, 0, bound.Get())
	r := bound.Set(4)
	require.True(t, r.IsSuccessful())

	age, _ := v.Get(c, block.AgeKey)
	assert.Equal(t, 4, age)
	assert.Equal(t, 0, bound.AsImmutable().Payload(), "отсоединённое значение не меняется")
}

func TestDenseStoreIsTotal(t *testing.T) {
	s := NewDenseStore(vec.NewBounds(vec.Vec3{X: -20, Y: -20, Z: -20}, vec.Vec3{X: 20, Y: 20, Z: 20}), block.Air())
	c := vec.Vec3{X: -17, Y: 3, Z: 19}

	assert.True(t, s.Read(c).IsAir())
	assert.False(t, s.Loaded(c))

	stone := block.DefaultState(block.StoneBlockID)
	require.True(t, s.Write(c, stone))
	assert.True(t, s.Loaded(c))
	assert.Equal(t, stone, s.Read(c))
	assert.True(t, s.Read(vec.Vec3{X: -18, Y: 3, Z: 19}).IsAir(), "соседи в секции по умолчанию")

	assert.False(t, s.Write(vec.Vec3{X: 21}, stone))
	assert.True(t, s.Read(vec.Vec3{X: 21}).IsAir())
	assert.Len(t, s.Sections(), 1)
}

func TestStreams(t *testing.T) {
	v := newTestVolume()
	v.SetBlock(vec.Vec3{X: 1}, block.DefaultState(block.StoneBlockID))
	v.SetBlock(vec.Vec3{X: 20, Y: 20, Z: 20}, block.DefaultState(block.DirtBlockID))
	a := archetype.NewBlockEntity(block.ChestBlockID)
	v.AddBlockEntity(vec.Vec3{X: 2}, a)

	all := v.BlockStateStream(vec.Vec3{}, vec.Vec3{X: 31, Y: 31, Z: 31}, StreamOptions{})
	assert.Equal(t, 32*32*32, all.Count())

	loaded := v.BlockStateStream(vec.Vec3{}, vec.Vec3{X: 31, Y: 31, Z: 31}, StreamOptions{Loading: OnlyLoaded})
	assert.Equal(t, 2*SectionVolume, loaded.Count())

	solid := loaded.Filter(func(_ vec.Vec3, s block.State) bool { return !s.IsAir() }).ToSlice()
	require.Len(t, solid, 2)
	assert.Equal(t, vec.Vec3{X: 1}, solid[0].Cell)
	assert.Equal(t, block.DirtBlockID, solid[1].Value.ID())

	// Диапазон обрезается границами объёма
	clamped := v.BlockStateStream(vec.Vec3{X: -10, Y: -10, Z: -10}, vec.Vec3{X: 1}, StreamOptions{})
	assert.Equal(t, 2, clamped.Count())
	assert.Zero(t, v.BlockStateStream(vec.Vec3{X: 100}, vec.Vec3{X: 200}, StreamOptions{}).Count())

	copies := v.BlockEntityStream(vec.Vec3{}, vec.Vec3{X: 31, Y: 31, Z: 31}, StreamOptions{CarbonCopy: true}).ToSlice()
	require.Len(t, copies, 1)
	assert.NotSame(t, a, copies[0].Value)
	copies[0].Value.Offer(archetype.CustomNameKey, "copy")
	_, ok := a.Get(archetype.CustomNameKey)
	assert.False(t, ok)

	live := v.BlockEntityStream(vec.Vec3{}, vec.Vec3{X: 31, Y: 31, Z: 31}, StreamOptions{}).ToSlice()
	assert.Same(t, a, live[0].Value)

	// Apply записывает поток в другой объём
	dst := newTestVolume()
	v.BlockStateStream(vec.Vec3{}, vec.Vec3{X: 31, Y: 31, Z: 31}, StreamOptions{Loading: OnlyLoaded}).
		Filter(func(_ vec.Vec3, s block.State) bool { return !s.IsAir() }).
		Apply(func(c vec.Vec3, s block.State) { dst.SetBlock(c, s) })
	assert.Equal(t, block.StoneBlockID, dst.Block(vec.Vec3{X: 1}).ID())
}

func TestPalettes(t *testing.T) {
	v := newTestVolume()
	stone := block.DefaultState(block.StoneBlockID)
	v.SetBlock(vec.Vec3{X: 1}, stone)
	v.SetBlock(vec.Vec3{X: 2}, stone)
	v.SetBiome(vec.Vec3{X: 3}, BiomeDesert)

	p := v.BlockPalette()
	assert.Equal(t, 2, p.Len())
	i, ok := p.Index(block.Air())
	require.True(t, ok)
	assert.Zero(t, i)
	i, ok = p.Index(stone)
	require.True(t, ok)
	assert.Equal(t, 1, i)

	bp := v.BiomePalette()
	assert.Equal(t, []Biome{BiomePlains, BiomeDesert}, bp.Entries())
}

func TestHighestYAt(t *testing.T) {
	v := newTestVolume()
	assert.Equal(t, -1, v.HighestYAt(0, 0))

	v.SetBlock(vec.Vec3{X: 4, Y: 3, Z: 4}, block.DefaultState(block.StoneBlockID))
	v.SetBlock(vec.Vec3{X: 4, Y: 19, Z: 4}, block.DefaultState(block.SandBlockID))
	assert.Equal(t, 19, v.HighestYAt(4, 4))
	v.RemoveBlock(vec.Vec3{X: 4, Y: 19, Z: 4})
	assert.Equal(t, 3, v.HighestYAt(4, 4))
	assert.Equal(t, -1, v.HighestYAt(100, 4))
}

func TestSetBlockWritesImpliedFluid(t *testing.T) {
	v := newTestVolume()
	c := vec.Vec3{X: 6}
	v.SetBlock(c, block.DefaultState(block.WaterBlockID))
	assert.Equal(t, fluid.Source(fluid.Water), v.Fluid(c))

	v.SetBlock(c, block.DefaultState(block.StoneBlockID))
	assert.True(t, v.Fluid(c).IsEmpty())
}

func TestEntities(t *testing.T) {
	v := newTestVolume()
	cow := archetype.NewEntity("blockverse:cow", vec.Vec3Float{X: 1.5, Y: 1, Z: 1.5})
	pig := archetype.NewEntity("blockverse:pig", vec.Vec3Float{X: 1.2, Y: 1, Z: 1.7})
	require.True(t, v.AddEntity(cow))
	require.True(t, v.AddEntity(pig))
	assert.False(t, v.AddEntity(archetype.NewEntity("blockverse:cow", vec.Vec3Float{X: -5})))

	cows := v.Entities(func(e *archetype.Entity) bool { return e.Type == "blockverse:cow" })
	assert.Equal(t, []*archetype.Entity{cow}, cows)
	assert.Len(t, v.Entities(nil), 2)
	assert.Len(t, v.EntitiesByPosition()[vec.Vec3{X: 1, Y: 1, Z: 1}], 2)
}

func TestSubscribe(t *testing.T) {
	v := newTestVolume()
	var changes []Change
	v.Subscribe(func(c Change) { changes = append(changes, c) })

	v.SetBlock(origin, block.DefaultState(block.ChestBlockID))
	v.Offer(origin, block.FacingKey, "east")
	v.Offer(origin, block.AgeKey, 1)

	require.Len(t, changes, 2)
	assert.Equal(t, ChangeBlock, changes[0].Kind)
	assert.Equal(t, ChangeOffer, changes[1].Kind)
	assert.Equal(t, LayerBlock, changes[1].Layer)
	assert.True(t, changes[1].Result.IsSuccessful())
}

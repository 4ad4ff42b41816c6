package schematic

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world"
	"github.com/annel0/blockverse/internal/world/archetype"
	"github.com/annel0/blockverse/internal/world/block"
	"github.com/annel0/blockverse/internal/world/fluid"
)

// sampleSchematic собирает небольшую схематику со всеми слоями
func sampleSchematic(t *testing.T) *Schematic {
	t.Helper()
	s := New("house", "builder", vec.Vec3{X: 4, Y: 3, Z: 5})
	s.Metadata["Description"] = "test house"

	stone := block.DefaultState(block.StoneBlockID)
	for x := 0; x < 4; x++ {
		for z := 0; z < 5; z++ {
			s.SetBlock(vec.Vec3{X: x, Z: z}, stone)
		}
	}
	door, ok := block.DefaultState(block.DoorBlockID).With(block.OpenKey, true)
	require.True(t, ok)
	s.SetBlock(vec.Vec3{X: 1, Y: 1, Z: 0}, door)

	chestPos := vec.Vec3{X: 2, Y: 1, Z: 2}
	s.SetBlock(chestPos, block.DefaultState(block.ChestBlockID))
	chest := archetype.NewBlockEntity(block.ChestBlockID)
	chest.Offer(archetype.CustomNameKey, "Loot")
	require.NoError(t, chest.SetRawData(map[string]any{
		archetype.CustomNameKey.ID: "Loot",
		"Items":                    "diamond",
	}))
	s.AddBlockEntity(chestPos, chest)

	shallow, ok := fluid.Source(fluid.Water).With(fluid.LevelKey, 4)
	require.True(t, ok)
	s.SetFluid(vec.Vec3{X: 3, Y: 2, Z: 4}, shallow)
	s.SetBiome(vec.Vec3{X: 0, Y: 0, Z: 0}, world.BiomeDesert)

	cow := archetype.NewEntity("blockverse:cow", vec.Vec3Float{X: 1.5, Y: 1, Z: 3.5})
	cow.Data["Name"] = "Bessie"
	s.AddEntity(cow)
	return s
}

func assertSameContent(t *testing.T, want, got *Schematic) {
	t.Helper()
	require.Equal(t, want.Bounds(), got.Bounds())
	b := want.Bounds()
	for i := 0; i < b.Volume(); i++ {
		c := b.At(i)
		assert.Equal(t, want.Block(c), got.Block(c), "block at %s", c)
		assert.Equal(t, want.Fluid(c), got.Fluid(c), "fluid at %s", c)
		assert.Equal(t, want.Biome(c), got.Biome(c), "biome at %s", c)
	}
	require.Len(t, got.BlockEntities(), len(want.BlockEntities()))
	for c, a := range want.BlockEntities() {
		other, ok := got.BlockEntity(c)
		require.True(t, ok, "block entity at %s", c)
		assert.Equal(t, a.RawData(), other.RawData())
	}
}

func TestCodecRoundTrip(t *testing.T) {
	s := sampleSchematic(t)
	s.Offset = vec.Vec3{X: -3, Y: 64, Z: 12}

	b, err := Encode(s)
	require.NoError(t, err)

	decoded, err := Decode(b)
	require.NoError(t, err)

	assert.Equal(t, s.ID, decoded.ID)
	assert.Equal(t, "house", decoded.Name)
	assert.Equal(t, "builder", decoded.Author)
	assert.Equal(t, s.Offset, decoded.Offset)
	assert.True(t, s.CreatedAt.Equal(decoded.CreatedAt))
	assert.Equal(t, "test house", decoded.Metadata["Description"])
	assertSameContent(t, s, decoded)

	entities := decoded.Entities(nil)
	require.Len(t, entities, 1)
	assert.Equal(t, "blockverse:cow", entities[0].Type)
	assert.Equal(t, vec.Vec3Float{X: 1.5, Y: 1, Z: 3.5}, entities[0].Position)
	assert.Equal(t, "Bessie", entities[0].Data["Name"])
}

func TestFileRoundTrip(t *testing.T) {
	s := sampleSchematic(t)
	path := filepath.Join(t.TempDir(), "house.schem")
	require.NoError(t, WriteFile(path, s))

	loaded, err := ReadFile(path)
	require.NoError(t, err)
	assertSameContent(t, s, loaded)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.schem"))
	assert.Error(t, err)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not a schematic"))
	assert.Error(t, err)

	doc, err := toDocument(sampleSchematic(t))
	require.NoError(t, err)
	doc.BlockData = doc.BlockData[:len(doc.BlockData)-1]
	_, err = fromDocument(doc, math.MaxInt16)
	assert.ErrorIs(t, err, ErrInvalidSchematic)

	doc, err = toDocument(sampleSchematic(t))
	require.NoError(t, err)
	doc.Version = 3
	_, err = fromDocument(doc, math.MaxInt16)
	assert.ErrorIs(t, err, ErrInvalidSchematic)

	doc, err = toDocument(sampleSchematic(t))
	require.NoError(t, err)
	doc.Palette["blockverse:nothing"] = 99
	_, err = fromDocument(doc, math.MaxInt16)
	assert.ErrorIs(t, err, ErrInvalidSchematic)
}

func TestCaptureAndPaste(t *testing.T) {
	src := world.NewVolume(vec.NewBounds(vec.Vec3{X: -16, Y: 0, Z: -16}, vec.Vec3{X: 15, Y: 15, Z: 15}))
	region := vec.NewBounds(vec.Vec3{X: -2, Y: 1, Z: -2}, vec.Vec3{X: 1, Y: 3, Z: 1})

	log := block.DefaultState(block.LogBlockID)
	src.SetBlock(vec.Vec3{X: -2, Y: 1, Z: -2}, log)
	src.SetBlock(vec.Vec3{X: 5, Y: 5, Z: 5}, log) // вне области
	sign := archetype.NewBlockEntity(block.SignBlockID)
	sign.Offer(archetype.SignTextKey, "hi")
	src.SetBlock(vec.Vec3{X: 0, Y: 2, Z: 0}, block.DefaultState(block.SignBlockID))
	src.AddBlockEntity(vec.Vec3{X: 0, Y: 2, Z: 0}, sign)
	src.AddEntity(archetype.NewEntity("blockverse:pig", vec.Vec3Float{X: -1.5, Y: 1, Z: -1.5}))

	s, err := Capture(src, region, CaptureOptions{Name: "copy", Entities: true})
	require.NoError(t, err)
	assert.Equal(t, vec.Vec3{X: 4, Y: 3, Z: 4}, s.Size())
	assert.Equal(t, region.Min, s.Offset)
	assert.Equal(t, log, s.Block(vec.Vec3{}))

	copied, ok := s.BlockEntity(vec.Vec3{X: 2, Y: 1, Z: 2})
	require.True(t, ok)
	assert.NotSame(t, sign, copied)
	text, _ := copied.Get(archetype.SignTextKey)
	assert.Equal(t, "hi", text)

	pigs := s.Entities(nil)
	require.Len(t, pigs, 1)
	assert.Equal(t, vec.Vec3Float{X: 0.5, Y: 0, Z: 0.5}, pigs[0].Position)

	dst := world.NewVolume(vec.NewBounds(vec.Vec3{}, vec.Vec3{X: 31, Y: 31, Z: 31}))
	at := vec.Vec3{X: 10, Y: 10, Z: 10}
	written := Paste(dst, s, at, PasteOptions{SkipAir: true})
	assert.Equal(t, 2, written)
	assert.Equal(t, log, dst.Block(at))
	_, ok = dst.BlockEntity(vec.Vec3{X: 12, Y: 11, Z: 12})
	assert.True(t, ok)
	assert.Len(t, dst.Entities(nil), 1)

	_, err = Capture(src, vec.NewBounds(vec.Vec3{X: 100}, vec.Vec3{X: 110}), CaptureOptions{})
	assert.Error(t, err)
}

func TestPasteKeepsFluidLevel(t *testing.T) {
	s := sampleSchematic(t)
	dst := world.NewVolume(vec.NewBounds(vec.Vec3{}, vec.Vec3{X: 15, Y: 15, Z: 15}))
	Paste(dst, s, vec.Vec3{}, PasteOptions{})
	assert.Equal(t, 4, dst.Fluid(vec.Vec3{X: 3, Y: 2, Z: 4}).Level)
	assert.Equal(t, world.BiomeDesert, dst.Biome(vec.Vec3{}))
}

func TestGenerateIsDeterministic(t *testing.T) {
	size := vec.Vec3{X: 24, Y: 20, Z: 24}
	a, err := Generate(99, size, DefaultGenerateOptions())
	require.NoError(t, err)
	b, err := Generate(99, size, DefaultGenerateOptions())
	require.NoError(t, err)

	assertSameContent(t, a, b)
	summary := a.Summarize()
	assert.Equal(t, size, summary.Size)
	assert.Positive(t, summary.NonAir)
	assert.Equal(t, 1, summary.BlockEntities)

	// Нижний слой всегда заполнен
	for x := 0; x < size.X; x++ {
		assert.False(t, a.Block(vec.Vec3{X: x}).IsAir())
	}

	_, err = Generate(1, vec.Vec3{X: 4, Y: 2, Z: 4}, DefaultGenerateOptions())
	assert.Error(t, err)
}

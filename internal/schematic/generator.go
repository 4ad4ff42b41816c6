package schematic

import (
	"fmt"
	"math/rand"

	"github.com/annel0/blockverse/internal/util"
	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world"
	"github.com/annel0/blockverse/internal/world/archetype"
	"github.com/annel0/blockverse/internal/world/block"
	"github.com/annel0/blockverse/internal/world/fluid"
)

// GenerateOptions настраивает генерацию ландшафта
type GenerateOptions struct {
	Name          string
	Author        string
	SeaLevel      float64 // доля высоты, ниже которой рельеф заливается водой
	NoiseScale    float64 // масштаб основного шума (высота)
	BiomeScale    float64 // масштаб шума биомов
	ForestDensity float64 // шанс бревна на равнинах
	Chest         bool    // поставить сундук с блок-сущностью в центре
}

// DefaultGenerateOptions возвращает настройки по умолчанию
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Name:          "generated",
		SeaLevel:      0.30,
		NoiseScale:    0.05, // Настройка сглаженности ландшафта
		BiomeScale:    0.02, // Настройка размера биомов
		ForestDensity: 0.05, // 5% шанс появления деревьев на равнинах
		Chest:         true,
	}
}

// Generate заполняет новую схематику рельефом на шуме Перлина.
// Результат детерминирован для пары (seed, size).
func Generate(seed int64, size vec.Vec3, opts GenerateOptions) (*Schematic, error) {
	if size.X <= 0 || size.Y < 4 || size.Z <= 0 {
		return nil, fmt.Errorf("schematic: cannot generate terrain of size %s", size)
	}
	s := New(opts.Name, opts.Author, size)
	s.Metadata["Seed"] = seed

	height := util.NewNoise(seed)
	biomeNoise := util.NewNoise(seed + 42)
	rng := rand.New(rand.NewSource(seed))
	seaY := int(opts.SeaLevel * float64(size.Y-1))

	for z := 0; z < size.Z; z++ {
		for x := 0; x < size.X; x++ {
			h := height.At2D(float64(x)*opts.NoiseScale, float64(z)*opts.NoiseScale)
			topY := int(h * float64(size.Y-2))
			biome := biomeFor(topY, seaY, biomeNoise.At2D(float64(x)*opts.BiomeScale, float64(z)*opts.BiomeScale))

			for y := 0; y <= topY; y++ {
				s.SetBlock(vec.Vec3{X: x, Y: y, Z: z}, block.DefaultState(layerBlock(biome, topY-y)))
			}
			for y := topY + 1; y <= seaY; y++ {
				s.SetFluid(vec.Vec3{X: x, Y: y, Z: z}, fluid.Source(fluid.Water))
			}
			for y := 0; y < size.Y; y++ {
				s.SetBiome(vec.Vec3{X: x, Y: y, Z: z}, biome)
			}
			if topY >= seaY && topY+1 < size.Y {
				decorate(s, vec.Vec3{X: x, Y: topY + 1, Z: z}, biome, opts, rng)
			}
		}
	}

	if opts.Chest {
		placeChest(s, size)
	}
	return s, nil
}

// biomeFor определяет биом на основе высоты и значения шума биомов
func biomeFor(topY, seaY int, biomeValue float64) world.Biome {
	if topY < seaY {
		return world.BiomeOcean
	}
	switch {
	case biomeValue < 0.35:
		return world.BiomeDesert
	case biomeValue > 0.65:
		return world.BiomeForest
	}
	return world.BiomePlains
}

// layerBlock возвращает блок на глубине depth под поверхностью
func layerBlock(biome world.Biome, depth int) block.BlockID {
	switch {
	case depth > 3:
		return block.StoneBlockID
	case biome == world.BiomeDesert || biome == world.BiomeOcean:
		return block.SandBlockID
	case depth == 0:
		return block.GrassBlockID
	}
	return block.DirtBlockID
}

// decorate ставит растительность на поверхность
func decorate(s *Schematic, at vec.Vec3, biome world.Biome, opts GenerateOptions, rng *rand.Rand) {
	switch {
	case biome == world.BiomeForest && rng.Float64() < 0.15: // 15% шанс дерева в лесу
		placeLog(s, at, rng)
	case biome == world.BiomePlains && rng.Float64() < opts.ForestDensity:
		placeLog(s, at, rng)
	case biome == world.BiomePlains && rng.Float64() < 0.1:
		colors := []string{"red", "yellow", "blue"}
		flower, _ := block.DefaultState(block.FlowerBlockID).With(block.ColorKey, colors[rng.Intn(len(colors))])
		s.SetBlock(at, flower)
	case biome == world.BiomeDesert && rng.Float64() < 0.02: // 2% шанс кактуса в пустыне
		cactus, _ := block.DefaultState(block.CactusBlockID).With(block.AgeKey, rng.Intn(16))
		s.SetBlock(at, cactus)
	}
}

func placeLog(s *Schematic, at vec.Vec3, rng *rand.Rand) {
	treeHeight := 3 + rng.Intn(3) // Высота дерева 3-5 блоков
	log := block.DefaultState(block.LogBlockID)
	for i := 0; i < treeHeight; i++ {
		if !s.SetBlock(at.Add(vec.Vec3{Y: i}), log) {
			return
		}
	}
}

func placeChest(s *Schematic, size vec.Vec3) {
	x, z := size.X/2, size.Z/2
	y := min(s.HighestYAt(x, z)+1, size.Y-1)
	c := vec.Vec3{X: x, Y: y, Z: z}
	s.SetBlock(c, block.DefaultState(block.ChestBlockID))
	chest := archetype.NewBlockEntity(block.ChestBlockID)
	chest.Offer(archetype.CustomNameKey, "Generated")
	s.AddBlockEntity(c, chest)
}

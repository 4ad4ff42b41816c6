package world

import (
	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world/archetype"
	"github.com/annel0/blockverse/internal/world/block"
	_ "github.com/annel0/blockverse/internal/world/block/implementations"
	"github.com/annel0/blockverse/internal/world/fluid"
)

// Reader — доступ на чтение к содержимому объёма
type Reader interface {
	Bounds() vec.Bounds
	Block(c vec.Vec3) block.State
	Fluid(c vec.Vec3) fluid.State
	Biome(c vec.Vec3) Biome
	BlockEntity(c vec.Vec3) (*archetype.BlockEntity, bool)
	Entities(filter func(*archetype.Entity) bool) []*archetype.Entity
}

// Writer — доступ на запись, достаточный для вставки схематики
type Writer interface {
	Bounds() vec.Bounds
	SetBlock(c vec.Vec3, s block.State) bool
	SetFluid(c vec.Vec3, f fluid.State) bool
	SetBiome(c vec.Vec3, b Biome) bool
	AddBlockEntity(c vec.Vec3, a *archetype.BlockEntity) bool
	AddEntity(e *archetype.Entity) bool
}

// Volume — слоистый объём ячеек: состояния блоков, состояния жидкостей
// и разреженные блок-сущности, плюс биомы и список сущностей.
//
// Volume не синхронизирован: предполагается один писатель.
type Volume struct {
	bounds     vec.Bounds
	blocks     *DenseStore[block.State]
	fluids     *DenseStore[fluid.State]
	biomes     *DenseStore[Biome]
	archetypes *ArchetypeStore
	entities   []*archetype.Entity
	listeners  []func(Change)
}

// NewVolume создаёт объём в указанных границах.
// Все ячейки изначально воздух без жидкости, биом по умолчанию.
func NewVolume(bounds vec.Bounds) *Volume {
	return &Volume{
		bounds:     bounds,
		blocks:     NewDenseStore(bounds, block.Air()),
		fluids:     NewDenseStore(bounds, fluid.None()),
		biomes:     NewDenseStore(bounds, DefaultBiome),
		archetypes: NewArchetypeStore(),
	}
}

// Bounds возвращает границы объёма
func (v *Volume) Bounds() vec.Bounds { return v.bounds }

// Contains проверяет принадлежность ячейки объёму
func (v *Volume) Contains(c vec.Vec3) bool { return v.bounds.Contains(c) }

// Block возвращает состояние блока (воздух вне границ)
func (v *Volume) Block(c vec.Vec3) block.State {
	return v.blocks.Read(c)
}

// Fluid возвращает состояние жидкости
func (v *Volume) Fluid(c vec.Vec3) fluid.State {
	return v.fluids.Read(c)
}

func (v *Volume) setBlock(c vec.Vec3, s block.State) bool {
	if !v.blocks.Write(c, s) {
		return false
	}
	v.fluids.Write(c, fluid.FromBlock(s))
	return true
}

// SetBlock устанавливает блок и подразумеваемую им жидкость.
// Блок-сущность ячейки не затрагивается.
func (v *Volume) SetBlock(c vec.Vec3, s block.State) bool {
	if !v.setBlock(c, s) {
		return false
	}
	v.notify(Change{Kind: ChangeBlock, Cell: c, Layer: LayerBlock})
	return true
}

// RemoveBlock заменяет блок воздухом
func (v *Volume) RemoveBlock(c vec.Vec3) bool {
	return v.SetBlock(c, block.Air())
}

func (v *Volume) setFluid(c vec.Vec3, f fluid.State) bool {
	if !v.blocks.Write(c, f.Block()) {
		return false
	}
	v.fluids.Write(c, f)
	return true
}

// SetFluid устанавливает жидкость; в слой блоков пишется блок, который её представляет
func (v *Volume) SetFluid(c vec.Vec3, f fluid.State) bool {
	if !v.setFluid(c, f) {
		return false
	}
	v.notify(Change{Kind: ChangeBlock, Cell: c, Layer: LayerFluid})
	return true
}

// HighestYAt возвращает высоту самого верхнего не-воздушного блока столбца
// или Min.Y-1, если столбец пуст или лежит вне объёма.
func (v *Volume) HighestYAt(x, z int) int {
	if !v.bounds.ContainsColumn(vec.Vec2{X: x, Y: z}) {
		return v.bounds.Min.Y - 1
	}
	for y := v.bounds.Max.Y; y >= v.bounds.Min.Y; y-- {
		c := vec.Vec3{X: x, Y: y, Z: z}
		if !v.blocks.Loaded(c) {
			// Невыделенная секция целиком состоит из воздуха
			y = (y >> 4) << 4
			continue
		}
		if !v.blocks.Read(c).IsAir() {
			return y
		}
	}
	return v.bounds.Min.Y - 1
}

// BlockEntity возвращает блок-сущность ячейки
func (v *Volume) BlockEntity(c vec.Vec3) (*archetype.BlockEntity, bool) {
	return v.archetypes.Get(c)
}

// AddBlockEntity размещает блок-сущность в ячейке, заменяя прежнюю
func (v *Volume) AddBlockEntity(c vec.Vec3, a *archetype.BlockEntity) bool {
	if a == nil || !v.bounds.Contains(c) {
		return false
	}
	v.archetypes.Put(c, a)
	v.notify(Change{Kind: ChangeBlockEntity, Cell: c, Layer: LayerArchetype})
	return true
}

// RemoveBlockEntity удаляет блок-сущность ячейки
func (v *Volume) RemoveBlockEntity(c vec.Vec3) bool {
	if _, ok := v.archetypes.Remove(c); !ok {
		return false
	}
	v.notify(Change{Kind: ChangeBlockEntity, Cell: c, Layer: LayerArchetype})
	return true
}

// BlockEntities возвращает все блок-сущности объёма
func (v *Volume) BlockEntities() map[vec.Vec3]*archetype.BlockEntity {
	return v.archetypes.All()
}

func (v *Volume) Biome(c vec.Vec3) Biome {
	return v.biomes.Read(c)
}

func (v *Volume) SetBiome(c vec.Vec3, b Biome) bool {
	if !v.biomes.Write(c, b) {
		return false
	}
	v.notify(Change{Kind: ChangeBiome, Cell: c})
	return true
}

// AddEntity добавляет сущность, если её позиция внутри объёма
func (v *Volume) AddEntity(e *archetype.Entity) bool {
	if e == nil || !v.bounds.Contains(e.Cell()) {
		return false
	}
	v.entities = append(v.entities, e)
	v.notify(Change{Kind: ChangeEntity, Cell: e.Cell()})
	return true
}

// Entities возвращает сущности, удовлетворяющие фильтру (nil — все)
func (v *Volume) Entities(filter func(*archetype.Entity) bool) []*archetype.Entity {
	out := make([]*archetype.Entity, 0, len(v.entities))
	for _, e := range v.entities {
		if filter == nil || filter(e) {
			out = append(out, e)
		}
	}
	return out
}

// EntitiesByPosition группирует сущности по ячейкам
func (v *Volume) EntitiesByPosition() map[vec.Vec3][]*archetype.Entity {
	out := make(map[vec.Vec3][]*archetype.Entity)
	for _, e := range v.entities {
		out[e.Cell()] = append(out[e.Cell()], e)
	}
	return out
}

package schematic

import (
	"fmt"

	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world"
	"github.com/annel0/blockverse/internal/world/archetype"
)

// CaptureOptions настраивает захват области
type CaptureOptions struct {
	Name     string
	Author   string
	Entities bool // захватывать сущности области
}

// Capture копирует область другого объёма в новую схематику с началом в (0,0,0).
// Блок-сущности и сущности копируются, а не разделяются с источником.
func Capture(src world.Reader, region vec.Bounds, opts CaptureOptions) (*Schematic, error) {
	r, ok := src.Bounds().Intersect(region)
	if !ok {
		return nil, fmt.Errorf("schematic: region %s is outside of source %s", region, src.Bounds())
	}
	s := New(opts.Name, opts.Author, r.Size())
	s.Offset = r.Min

	for i := 0; i < r.Volume(); i++ {
		c := r.At(i)
		local := c.Sub(r.Min)
		if b := src.Block(c); !b.IsAir() {
			s.SetBlock(local, b)
		}
		if f := src.Fluid(c); f != s.Fluid(local) {
			s.SetFluid(local, f)
		}
		if biome := src.Biome(c); biome != world.DefaultBiome {
			s.SetBiome(local, biome)
		}
		if a, ok := src.BlockEntity(c); ok {
			s.AddBlockEntity(local, a.Clone())
		}
	}

	if opts.Entities {
		for _, e := range src.Entities(func(e *archetype.Entity) bool { return r.Contains(e.Cell()) }) {
			clone := e.Clone()
			clone.Position = vec.Vec3Float{
				X: e.Position.X - float64(r.Min.X),
				Y: e.Position.Y - float64(r.Min.Y),
				Z: e.Position.Z - float64(r.Min.Z),
			}
			s.AddEntity(clone)
		}
	}
	return s, nil
}

// PasteOptions настраивает вставку
type PasteOptions struct {
	SkipAir bool // не перезаписывать ячейки назначения воздухом
}

// Paste записывает схематику в объём так, что её начало оказывается в точке at.
// Возвращает количество записанных блоков.
func Paste(dst world.Writer, s *Schematic, at vec.Vec3, opts PasteOptions) int {
	written := 0
	b := s.Bounds()
	for i := 0; i < b.Volume(); i++ {
		local := b.At(i)
		target := local.Add(at)
		if !dst.Bounds().Contains(target) {
			continue
		}
		st := s.Block(local)
		if st.IsAir() && opts.SkipAir {
			continue
		}
		dst.SetBlock(target, st)
		// Уровень жидкости может отличаться от подразумеваемого блоком
		if f := s.Fluid(local); !f.IsEmpty() {
			dst.SetFluid(target, f)
		}
		if biome := s.Biome(local); biome != world.DefaultBiome {
			dst.SetBiome(target, biome)
		}
		written++
	}
	for c, a := range s.BlockEntities() {
		dst.AddBlockEntity(c.Add(at), a.Clone())
	}
	for _, e := range s.Entities(nil) {
		clone := e.Clone()
		clone.Position = vec.Vec3Float{
			X: e.Position.X + float64(at.X),
			Y: e.Position.Y + float64(at.Y),
			Z: e.Position.Z + float64(at.Z),
		}
		dst.AddEntity(clone)
	}
	return written
}

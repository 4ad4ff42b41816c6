package world

import (
	"iter"

	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world/archetype"
	"github.com/annel0/blockverse/internal/world/block"
	"github.com/annel0/blockverse/internal/world/fluid"
)

// LoadingStyle определяет, какие ячейки посещает поток
type LoadingStyle uint8

const (
	// LoadAll посещает каждую ячейку диапазона
	LoadAll LoadingStyle = iota
	// OnlyLoaded пропускает ячейки невыделенных секций
	OnlyLoaded
)

// StreamOptions настраивает потоки объёма
type StreamOptions struct {
	CarbonCopy bool // выдавать копии архетипов вместо живых объектов
	Loading    LoadingStyle
}

// Entry — одна запись потока
type Entry[T any] struct {
	Cell  vec.Vec3
	Value T
}

// Stream — ленивая конечная последовательность (ячейка, значение).
// Каждый вызов All проходит диапазон заново.
type Stream[T any] struct {
	seq iter.Seq2[vec.Vec3, T]
}

// All возвращает итератор потока
func (s *Stream[T]) All() iter.Seq2[vec.Vec3, T] { return s.seq }

// Filter возвращает поток только с записями, для которых pred истинен
func (s *Stream[T]) Filter(pred func(vec.Vec3, T) bool) *Stream[T] {
	return &Stream[T]{seq: func(yield func(vec.Vec3, T) bool) {
		for c, v := range s.seq {
			if pred(c, v) && !yield(c, v) {
				return
			}
		}
	}}
}

// ToSlice собирает поток в срез
func (s *Stream[T]) ToSlice() []Entry[T] {
	var out []Entry[T]
	for c, v := range s.seq {
		out = append(out, Entry[T]{Cell: c, Value: v})
	}
	return out
}

// Count возвращает количество записей
func (s *Stream[T]) Count() int {
	n := 0
	for range s.seq {
		n++
	}
	return n
}

// Apply передаёт каждую запись в fn, обычно запись в другой объём
func (s *Stream[T]) Apply(fn func(vec.Vec3, T)) {
	for c, v := range s.seq {
		fn(c, v)
	}
}

// clamp ограничивает диапазон границами объёма
func (v *Volume) clamp(min, max vec.Vec3) (vec.Bounds, bool) {
	return v.bounds.Intersect(vec.NewBounds(min, max))
}

func denseStream[S any](store *DenseStore[S], r vec.Bounds, ok bool, opts StreamOptions) *Stream[S] {
	return &Stream[S]{seq: func(yield func(vec.Vec3, S) bool) {
		if !ok {
			return
		}
		for y := r.Min.Y; y <= r.Max.Y; y++ {
			for z := r.Min.Z; z <= r.Max.Z; z++ {
				for x := r.Min.X; x <= r.Max.X; x++ {
					c := vec.Vec3{X: x, Y: y, Z: z}
					if opts.Loading == OnlyLoaded && !store.Loaded(c) {
						continue
					}
					if !yield(c, store.Read(c)) {
						return
					}
				}
			}
		}
	}}
}

// BlockStateStream возвращает поток состояний блоков в диапазоне
func (v *Volume) BlockStateStream(min, max vec.Vec3, opts StreamOptions) *Stream[block.State] {
	r, ok := v.clamp(min, max)
	return denseStream(v.blocks, r, ok, opts)
}

// FluidStream возвращает поток состояний жидкостей в диапазоне
func (v *Volume) FluidStream(min, max vec.Vec3, opts StreamOptions) *Stream[fluid.State] {
	r, ok := v.clamp(min, max)
	return denseStream(v.fluids, r, ok, opts)
}

// BiomeStream возвращает поток биомов в диапазоне
func (v *Volume) BiomeStream(min, max vec.Vec3, opts StreamOptions) *Stream[Biome] {
	r, ok := v.clamp(min, max)
	return denseStream(v.biomes, r, ok, opts)
}

// BlockEntityStream возвращает поток блок-сущностей в диапазоне.
// С CarbonCopy выдаются копии, изменение которых не влияет на объём.
func (v *Volume) BlockEntityStream(min, max vec.Vec3, opts StreamOptions) *Stream[*archetype.BlockEntity] {
	r, ok := v.clamp(min, max)
	return &Stream[*archetype.BlockEntity]{seq: func(yield func(vec.Vec3, *archetype.BlockEntity) bool) {
		if !ok {
			return
		}
		for _, c := range v.archetypes.Cells() {
			if !r.Contains(c) {
				continue
			}
			a, exists := v.archetypes.Get(c)
			if !exists {
				continue
			}
			if opts.CarbonCopy {
				a = a.Clone()
			}
			if !yield(c, a) {
				return
			}
		}
	}}
}

package world

import (
	"github.com/annel0/blockverse/internal/world/block"
)

// Palette — упорядоченный набор уникальных значений с индексами
type Palette[T comparable] struct {
	entries []T
	index   map[T]int
}

// NewPalette создаёт палитру с начальными записями
func NewPalette[T comparable](initial ...T) *Palette[T] {
	p := &Palette[T]{index: make(map[T]int)}
	for _, v := range initial {
		p.Add(v)
	}
	return p
}

// Add добавляет значение, если его ещё нет, и возвращает индекс
func (p *Palette[T]) Add(v T) int {
	if i, ok := p.index[v]; ok {
		return i
	}
	i := len(p.entries)
	p.entries = append(p.entries, v)
	p.index[v] = i
	return i
}

// Index возвращает индекс значения
func (p *Palette[T]) Index(v T) (int, bool) {
	i, ok := p.index[v]
	return i, ok
}

// At возвращает значение по индексу
func (p *Palette[T]) At(i int) (T, bool) {
	if i < 0 || i >= len(p.entries) {
		var zero T
		return zero, false
	}
	return p.entries[i], true
}

func (p *Palette[T]) Len() int { return len(p.entries) }

// Entries возвращает копию записей в порядке индексов
func (p *Palette[T]) Entries() []T {
	out := make([]T, len(p.entries))
	copy(out, p.entries)
	return out
}

// BlockPalette строит палитру состояний блоков объёма. Воздух всегда имеет индекс 0.
func (v *Volume) BlockPalette() *Palette[block.State] {
	p := NewPalette(block.Air())
	for _, s := range v.BlockStateStream(v.bounds.Min, v.bounds.Max, StreamOptions{Loading: OnlyLoaded}).All() {
		p.Add(s)
	}
	return p
}

// BiomePalette строит палитру биомов объёма. Биом по умолчанию имеет индекс 0.
func (v *Volume) BiomePalette() *Palette[Biome] {
	p := NewPalette(DefaultBiome)
	for _, b := range v.BiomeStream(v.bounds.Min, v.bounds.Max, StreamOptions{Loading: OnlyLoaded}).All() {
		p.Add(b)
	}
	return p
}

package world

import (
	"sort"

	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world/archetype"
)

// ArchetypeStore — разреженное хранилище блок-сущностей: не более одной на ячейку
type ArchetypeStore struct {
	entries map[vec.Vec3]*archetype.BlockEntity
}

// NewArchetypeStore создаёт пустое хранилище
func NewArchetypeStore() *ArchetypeStore {
	return &ArchetypeStore{entries: make(map[vec.Vec3]*archetype.BlockEntity)}
}

func (s *ArchetypeStore) Get(c vec.Vec3) (*archetype.BlockEntity, bool) {
	a, ok := s.entries[c]
	return a, ok
}

// Put размещает архетип в ячейке, заменяя прежний
func (s *ArchetypeStore) Put(c vec.Vec3, a *archetype.BlockEntity) {
	s.entries[c] = a
}

// Remove удаляет архетип и возвращает его
func (s *ArchetypeStore) Remove(c vec.Vec3) (*archetype.BlockEntity, bool) {
	a, ok := s.entries[c]
	if ok {
		delete(s.entries, c)
	}
	return a, ok
}

func (s *ArchetypeStore) Len() int { return len(s.entries) }

// All возвращает копию карты архетипов (сами архетипы не копируются)
func (s *ArchetypeStore) All() map[vec.Vec3]*archetype.BlockEntity {
	out := make(map[vec.Vec3]*archetype.BlockEntity, len(s.entries))
	for c, a := range s.entries {
		out[c] = a
	}
	return out
}

// Cells возвращает занятые ячейки, упорядоченные как линейный индекс объёма
func (s *ArchetypeStore) Cells() []vec.Vec3 {
	out := make([]vec.Vec3, 0, len(s.entries))
	for c := range s.entries {
		out = append(out, c)
	}
	sortCells(out)
	return out
}

func sortCells(cells []vec.Vec3) {
	sort.Slice(cells, func(i, j int) bool {
		a, b := cells[i], cells[j]
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		if a.Z != b.Z {
			return a.Z < b.Z
		}
		return a.X < b.X
	})
}

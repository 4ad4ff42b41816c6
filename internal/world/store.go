package world

import "github.com/annel0/blockverse/internal/vec"

// Размер секции плотного хранилища (16x16x16 ячеек, как чанк)
const (
	SectionSize   = 16
	SectionVolume = SectionSize * SectionSize * SectionSize
)

// DenseStore — плотное хранилище значений по ячейкам объёма.
// Объём разбит на секции, которые выделяются при первой записи;
// невыделенная секция читается как значение по умолчанию.
type DenseStore[S any] struct {
	bounds   vec.Bounds
	def      S
	sections map[vec.Vec3]*[SectionVolume]S
}

// NewDenseStore создаёт хранилище для границ с значением по умолчанию
func NewDenseStore[S any](bounds vec.Bounds, def S) *DenseStore[S] {
	return &DenseStore[S]{
		bounds:   bounds,
		def:      def,
		sections: make(map[vec.Vec3]*[SectionVolume]S),
	}
}

// Bounds возвращает границы хранилища
func (s *DenseStore[S]) Bounds() vec.Bounds { return s.bounds }

// Default возвращает значение по умолчанию
func (s *DenseStore[S]) Default() S { return s.def }

func sectionIndex(c vec.Vec3) int {
	l := c.LocalInSection()
	return l.X + l.Z*SectionSize + l.Y*SectionSize*SectionSize
}

// Read возвращает значение ячейки. Для ячеек вне границ и невыделенных
// секций возвращается значение по умолчанию.
func (s *DenseStore[S]) Read(c vec.Vec3) S {
	if !s.bounds.Contains(c) {
		return s.def
	}
	sec, ok := s.sections[c.Section()]
	if !ok {
		return s.def
	}
	return sec[sectionIndex(c)]
}

// Write записывает значение. Возвращает false для ячеек вне границ.
func (s *DenseStore[S]) Write(c vec.Vec3, v S) bool {
	if !s.bounds.Contains(c) {
		return false
	}
	key := c.Section()
	sec, ok := s.sections[key]
	if !ok {
		sec = new([SectionVolume]S)
		for i := range sec {
			sec[i] = s.def
		}
		s.sections[key] = sec
	}
	sec[sectionIndex(c)] = v
	return true
}

// Loaded сообщает, выделена ли секция, содержащая ячейку
func (s *DenseStore[S]) Loaded(c vec.Vec3) bool {
	if !s.bounds.Contains(c) {
		return false
	}
	_, ok := s.sections[c.Section()]
	return ok
}

// Sections возвращает координаты выделенных секций в порядке (y, z, x)
func (s *DenseStore[S]) Sections() []vec.Vec3 {
	out := make([]vec.Vec3, 0, len(s.sections))
	for k := range s.sections {
		out = append(out, k)
	}
	sortCells(out)
	return out
}

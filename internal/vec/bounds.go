package vec

import "fmt"

// Bounds описывает прямоугольный объём ячеек. Обе границы включительно.
type Bounds struct {
	Min Vec3
	Max Vec3
}

// NewBounds создаёт границы по двум углам в любом порядке
func NewBounds(a, b Vec3) Bounds {
	return Bounds{Min: MinComponents(a, b), Max: MaxComponents(a, b)}
}

// BoundsOfSize создаёт границы размера size с началом в origin
func BoundsOfSize(origin, size Vec3) Bounds {
	return Bounds{
		Min: origin,
		Max: Vec3{X: origin.X + size.X - 1, Y: origin.Y + size.Y - 1, Z: origin.Z + size.Z - 1},
	}
}

// Size возвращает размер по каждой оси
func (b Bounds) Size() Vec3 {
	return Vec3{X: b.Max.X - b.Min.X + 1, Y: b.Max.Y - b.Min.Y + 1, Z: b.Max.Z - b.Min.Z + 1}
}

// Volume возвращает количество ячеек
func (b Bounds) Volume() int {
	s := b.Size()
	if s.X <= 0 || s.Y <= 0 || s.Z <= 0 {
		return 0
	}
	return s.X * s.Y * s.Z
}

// Empty сообщает, что границы не содержат ни одной ячейки
func (b Bounds) Empty() bool {
	return b.Volume() == 0
}

// Contains проверяет принадлежность ячейки объёму
func (b Bounds) Contains(c Vec3) bool {
	return c.X >= b.Min.X && c.X <= b.Max.X &&
		c.Y >= b.Min.Y && c.Y <= b.Max.Y &&
		c.Z >= b.Min.Z && c.Z <= b.Max.Z
}

// ContainsColumn проверяет принадлежность столбца проекции объёма
func (b Bounds) ContainsColumn(c Vec2) bool {
	return c.X >= b.Min.X && c.X <= b.Max.X && c.Y >= b.Min.Z && c.Y <= b.Max.Z
}

// Index возвращает линейный индекс ячейки: x + z*w + y*w*l.
// Вызывающий обязан проверить Contains.
func (b Bounds) Index(c Vec3) int {
	s := b.Size()
	l := c.Sub(b.Min)
	return l.X + l.Z*s.X + l.Y*s.X*s.Z
}

// At возвращает ячейку по линейному индексу (обратное к Index)
func (b Bounds) At(index int) Vec3 {
	s := b.Size()
	layer := s.X * s.Z
	y := index / layer
	rest := index % layer
	return b.Min.Add(Vec3{X: rest % s.X, Y: y, Z: rest / s.X})
}

// Intersect возвращает пересечение границ; второй результат false, если оно пусто
func (b Bounds) Intersect(o Bounds) (Bounds, bool) {
	r := Bounds{Min: MaxComponents(b.Min, o.Min), Max: MinComponents(b.Max, o.Max)}
	if r.Empty() {
		return Bounds{}, false
	}
	return r, true
}

// Translate сдвигает границы на вектор
func (b Bounds) Translate(d Vec3) Bounds {
	return Bounds{Min: b.Min.Add(d), Max: b.Max.Add(d)}
}

func (b Bounds) String() string {
	return fmt.Sprintf("%s..%s", b.Min, b.Max)
}

package vec

// Vec2 представляет координаты столбца (X, Z) в горизонтальной плоскости.
// Поле Y хранит мировую координату Z.
type Vec2 struct {
	X, Y int
}

// WithHeight поднимает столбец до ячейки на высоте y
func (v Vec2) WithHeight(y int) Vec3 {
	return Vec3{X: v.X, Y: y, Z: v.Y}
}

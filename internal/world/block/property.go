package block

import "github.com/annel0/blockverse/internal/data"

// Key — псевдоним ключа данных для краткости внутри пакета
type Key = data.Key

// MaxProperties ограничивает число свойств одного типа блока,
// чтобы State оставался сравнимым значением фиксированного размера.
const MaxProperties = 4

// Ключи свойств блоков
var (
	FacingKey = data.NewKey("blockverse:facing", data.KindString)
	AxisKey   = data.NewKey("blockverse:axis", data.KindString)
	AgeKey    = data.NewKey("blockverse:age", data.KindInt)
	OpenKey   = data.NewKey("blockverse:open", data.KindBool)
	HalfKey   = data.NewKey("blockverse:half", data.KindString)
	LitKey    = data.NewKey("blockverse:lit", data.KindBool)
	ColorKey  = data.NewKey("blockverse:color", data.KindString)
)

// Property описывает одно свойство состояния блока
type Property struct {
	Name    string // короткое имя в каноническом виде состояния
	Key     *Key
	Allowed []any // допустимые значения; пусто — любое значение нужного типа
	Default any
}

// Allows проверяет, что значение допустимо для свойства
func (p Property) Allows(v any) bool {
	if !p.Key.Accepts(v) {
		return false
	}
	if len(p.Allowed) == 0 {
		return true
	}
	for _, a := range p.Allowed {
		if a == v {
			return true
		}
	}
	return false
}

// Horizontal — стандартные горизонтальные направления
var Horizontal = []any{"north", "east", "south", "west"}

// FacingProperty — свойство направления
func FacingProperty(def string) Property {
	return Property{Name: "facing", Key: FacingKey, Allowed: Horizontal, Default: def}
}

// AgeProperty — свойство возраста 0..max
func AgeProperty(maxAge int) Property {
	allowed := make([]any, 0, maxAge+1)
	for i := 0; i <= maxAge; i++ {
		allowed = append(allowed, i)
	}
	return Property{Name: "age", Key: AgeKey, Allowed: allowed, Default: 0}
}

package archetype

import (
	"fmt"
	"maps"

	"github.com/annel0/blockverse/internal/vec"
)

// Entity — архетип сущности в схематике: тип, позиция и произвольные данные.
type Entity struct {
	Type     string
	Position vec.Vec3Float
	Data     map[string]any
}

// NewEntity создаёт архетип сущности
func NewEntity(typ string, pos vec.Vec3Float) *Entity {
	return &Entity{Type: typ, Position: pos, Data: make(map[string]any)}
}

// Cell возвращает ячейку, в которой находится сущность
func (e *Entity) Cell() vec.Vec3 {
	return e.Position.Floor()
}

// Clone возвращает глубокую копию
func (e *Entity) Clone() *Entity {
	return &Entity{Type: e.Type, Position: e.Position, Data: cloneMap(e.Data)}
}

// RawData возвращает представление сущности: Id, Pos и данные
func (e *Entity) RawData() map[string]any {
	raw := make(map[string]any, len(e.Data)+2)
	maps.Copy(raw, e.Data)
	raw["Id"] = e.Type
	raw["Pos"] = []any{e.Position.X, e.Position.Y, e.Position.Z}
	return raw
}

// EntityFromRawData разбирает представление, созданное RawData (в том числе после NBT)
func EntityFromRawData(raw map[string]any) (*Entity, error) {
	typ, ok := raw["Id"].(string)
	if !ok || typ == "" {
		return nil, fmt.Errorf("archetype: entity without Id")
	}
	pos, ok := raw["Pos"].([]any)
	if !ok || len(pos) != 3 {
		return nil, fmt.Errorf("archetype: entity %s has invalid Pos", typ)
	}
	var coords [3]float64
	for i, c := range pos {
		switch f := c.(type) {
		case float64:
			coords[i] = f
		case float32:
			coords[i] = float64(f)
		default:
			return nil, fmt.Errorf("archetype: entity %s has non-numeric Pos", typ)
		}
	}
	e := NewEntity(typ, vec.Vec3Float{X: coords[0], Y: coords[1], Z: coords[2]})
	for k, v := range raw {
		if k != "Id" && k != "Pos" {
			e.Data[k] = v
		}
	}
	return e, nil
}

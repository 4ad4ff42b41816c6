// Package fluid описывает состояния жидкостей, хранимые отдельным слоем объёма.
package fluid

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/annel0/blockverse/internal/data"
	"github.com/annel0/blockverse/internal/world/block"
)

// Type — вид жидкости
type Type uint8

const (
	Empty Type = iota
	Water
	Lava
)

// SourceLevel — уровень источника
const SourceLevel = 8

var (
	LevelKey   = data.NewKey("blockverse:level", data.KindInt)
	FallingKey = data.NewKey("blockverse:falling", data.KindBool)
)

var typeNames = map[Type]string{
	Empty: "blockverse:empty",
	Water: "blockverse:water",
	Lava:  "blockverse:lava",
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return "blockverse:unknown_fluid"
}

// TypeByName возвращает вид жидкости по имени
func TypeByName(name string) (Type, bool) {
	for t, n := range typeNames {
		if n == name {
			return t, true
		}
	}
	return Empty, false
}

// State — неизменяемое состояние жидкости в ячейке
type State struct {
	Type    Type
	Level   int
	Falling bool
}

// None возвращает пустое состояние (ячейка без жидкости)
func None() State { return State{} }

// Source возвращает состояние источника жидкости
func Source(t Type) State {
	if t == Empty {
		return State{}
	}
	return State{Type: t, Level: SourceLevel}
}

// IsEmpty сообщает, что жидкости нет
func (s State) IsEmpty() bool { return s.Type == Empty }

// Get возвращает значение ключа. Пустая жидкость не поддерживает ключей.
func (s State) Get(key *data.Key) (any, bool) {
	if s.IsEmpty() {
		return nil, false
	}
	switch key {
	case LevelKey:
		return s.Level, true
	case FallingKey:
		return s.Falling, true
	}
	return nil, false
}

// Value возвращает неизменяемое значение ключа
func (s State) Value(key *data.Key) (data.Value, bool) {
	v, ok := s.Get(key)
	if !ok {
		return data.Value{}, false
	}
	return data.NewValue(key, v)
}

// Supports сообщает, поддерживает ли состояние ключ
func (s State) Supports(key *data.Key) bool {
	_, ok := s.Get(key)
	return ok
}

// Keys возвращает поддерживаемые ключи
func (s State) Keys() []*data.Key {
	if s.IsEmpty() {
		return nil
	}
	return []*data.Key{FallingKey, LevelKey}
}

// Values возвращает все значения состояния
func (s State) Values() []data.Value {
	if s.IsEmpty() {
		return nil
	}
	return []data.Value{
		data.MustValue(FallingKey, s.Falling),
		data.MustValue(LevelKey, s.Level),
	}
}

// With возвращает новое состояние с изменённым значением ключа
func (s State) With(key *data.Key, payload any) (State, bool) {
	if s.IsEmpty() || !key.Accepts(payload) {
		return s, false
	}
	next := s
	switch key {
	case LevelKey:
		level := payload.(int)
		if level < 1 || level > SourceLevel {
			return s, false
		}
		next.Level = level
	case FallingKey:
		next.Falling = payload.(bool)
	default:
		return s, false
	}
	return next, true
}

// Without всегда неуспешен: уровень и течение обязательны.
func (s State) Without(key *data.Key) (State, bool) {
	return s, false
}

// Block возвращает состояние блока, которое представляет жидкость
func (s State) Block() block.State {
	switch s.Type {
	case Water:
		return block.DefaultState(block.WaterBlockID)
	case Lava:
		return block.DefaultState(block.LavaBlockID)
	}
	return block.Air()
}

// FromBlock возвращает жидкость, которую подразумевает блок:
// блоки воды и лавы дают источник, остальные — пустое состояние.
func FromBlock(b block.State) State {
	t, ok := TypeByName(b.FluidName())
	if !ok {
		return None()
	}
	return Source(t)
}

// String возвращает каноническое представление: "blockverse:water[falling=false,level=8]"
func (s State) String() string {
	if s.IsEmpty() {
		return Empty.String()
	}
	return fmt.Sprintf("%s[falling=%t,level=%d]", s.Type, s.Falling, s.Level)
}

// ParseState разбирает каноническое представление
func ParseState(str string) (State, error) {
	name, props, hasProps := strings.Cut(str, "[")
	t, ok := TypeByName(name)
	if !ok {
		return State{}, fmt.Errorf("fluid: unknown fluid %q", name)
	}
	s := Source(t)
	if !hasProps {
		return s, nil
	}
	if t == Empty || !strings.HasSuffix(props, "]") {
		return State{}, fmt.Errorf("fluid: malformed state %q", str)
	}
	for _, kv := range strings.Split(strings.TrimSuffix(props, "]"), ",") {
		k, v, _ := strings.Cut(kv, "=")
		var ok bool
		switch k {
		case "level":
			n, err := strconv.Atoi(v)
			if err != nil {
				return State{}, fmt.Errorf("fluid: level in %q: %w", str, err)
			}
			s, ok = s.With(LevelKey, n)
		case "falling":
			b, err := strconv.ParseBool(v)
			if err != nil {
				return State{}, fmt.Errorf("fluid: falling in %q: %w", str, err)
			}
			s, ok = s.With(FallingKey, b)
		}
		if !ok {
			return State{}, fmt.Errorf("fluid: invalid property %q in %q", kv, str)
		}
	}
	return s, nil
}

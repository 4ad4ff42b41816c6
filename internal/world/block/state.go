package block

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/annel0/blockverse/internal/data"
)

// State — неизменяемое состояние блока: тип и значения свойств.
// Изменение ячейки означает вычисление нового State и запись его обратно.
// State сравним (==) и пригоден как ключ карты.
type State struct {
	id   BlockID
	vals [MaxProperties]any
}

// Air возвращает состояние пустой ячейки
func Air() State {
	return State{id: AirBlockID}
}

// DefaultState возвращает состояние по умолчанию для ID.
// Для незарегистрированного ID возвращается состояние без свойств.
func DefaultState(id BlockID) State {
	if t, ok := Get(id); ok {
		return t.DefaultState()
	}
	return State{id: id}
}

// ID возвращает идентификатор типа блока
func (s State) ID() BlockID { return s.id }

// Type возвращает тип блока
func (s State) Type() (*Type, bool) { return Get(s.id) }

// FluidName возвращает имя жидкости, которую представляет блок
func (s State) FluidName() string {
	if t, ok := s.Type(); ok {
		return t.Fluid
	}
	return ""
}

// IsAir сообщает, что состояние — воздух
func (s State) IsAir() bool { return s.id == AirBlockID }

// Get возвращает значение ключа
func (s State) Get(key *Key) (any, bool) {
	t, ok := s.Type()
	if !ok {
		return nil, false
	}
	i := t.property(key)
	if i < 0 {
		return nil, false
	}
	return s.vals[i], true
}

// Value возвращает неизменяемое значение ключа
func (s State) Value(key *Key) (data.Value, bool) {
	v, ok := s.Get(key)
	if !ok {
		return data.Value{}, false
	}
	return data.NewValue(key, v)
}

// Supports сообщает, объявлен ли ключ типом блока
func (s State) Supports(key *Key) bool {
	t, ok := s.Type()
	return ok && t.property(key) >= 0
}

// Keys возвращает ключи свойств в каноническом порядке
func (s State) Keys() []*Key {
	t, ok := s.Type()
	if !ok {
		return nil
	}
	keys := make([]*Key, len(t.Properties))
	for i, p := range t.Properties {
		keys[i] = p.Key
	}
	return keys
}

// Values возвращает значения всех свойств
func (s State) Values() []data.Value {
	t, ok := s.Type()
	if !ok {
		return nil
	}
	out := make([]data.Value, 0, len(t.Properties))
	for i, p := range t.Properties {
		out = append(out, data.MustValue(p.Key, s.vals[i]))
	}
	return out
}

// With возвращает новое состояние с изменённым свойством.
// false — тип не объявляет ключ или значение недопустимо.
func (s State) With(key *Key, payload any) (State, bool) {
	t, ok := s.Type()
	if !ok {
		return s, false
	}
	i := t.property(key)
	if i < 0 || !t.Properties[i].Allows(payload) {
		return s, false
	}
	next := s
	next.vals[i] = payload
	return next, true
}

// Without всегда неуспешен: свойства блока обязательны и не могут быть сняты.
func (s State) Without(key *Key) (State, bool) {
	return s, false
}

// String возвращает каноническое представление: "blockverse:chest[facing=north]"
func (s State) String() string {
	t, ok := s.Type()
	if !ok {
		return fmt.Sprintf("%s:unknown_%d", Namespace, s.id)
	}
	if len(t.Properties) == 0 {
		return t.Name
	}
	parts := make([]string, len(t.Properties))
	for i, p := range t.Properties {
		parts[i] = fmt.Sprintf("%s=%v", p.Name, s.vals[i])
	}
	sort.Strings(parts)
	return t.Name + "[" + strings.Join(parts, ",") + "]"
}

// ParseState разбирает каноническое представление состояния.
// Неуказанные свойства получают значения по умолчанию.
func ParseState(str string) (State, error) {
	name, props := str, ""
	if i := strings.IndexByte(str, '['); i >= 0 {
		if !strings.HasSuffix(str, "]") {
			return State{}, fmt.Errorf("block: malformed state %q", str)
		}
		name, props = str[:i], str[i+1:len(str)-1]
	}
	if !strings.Contains(name, ":") {
		name = Namespace + ":" + name
	}
	t, ok := ByName(name)
	if !ok {
		return State{}, fmt.Errorf("block: unknown block type %q", name)
	}
	s := t.DefaultState()
	if props == "" {
		return s, nil
	}
	for _, kv := range strings.Split(props, ",") {
		k, v, found := strings.Cut(kv, "=")
		if !found {
			return State{}, fmt.Errorf("block: malformed property %q in %q", kv, str)
		}
		idx := -1
		for i, p := range t.Properties {
			if p.Name == k {
				idx = i
				break
			}
		}
		if idx < 0 {
			return State{}, fmt.Errorf("block: %s has no property %q", name, k)
		}
		p := t.Properties[idx]
		payload, err := parsePayload(p.Key, v)
		if err != nil {
			return State{}, fmt.Errorf("block: property %s of %s: %w", k, name, err)
		}
		if !p.Allows(payload) {
			return State{}, fmt.Errorf("block: value %q is not allowed for %s.%s", v, name, k)
		}
		s.vals[idx] = payload
	}
	return s, nil
}

func parsePayload(key *Key, raw string) (any, error) {
	switch key.Kind {
	case data.KindBool:
		return strconv.ParseBool(raw)
	case data.KindInt:
		return strconv.Atoi(raw)
	case data.KindFloat:
		return strconv.ParseFloat(raw, 64)
	default:
		return raw, nil
	}
}

// MustParseState разбирает состояние или паникует; для статических таблиц и тестов
func MustParseState(str string) State {
	s, err := ParseState(str)
	if err != nil {
		panic(err)
	}
	return s
}

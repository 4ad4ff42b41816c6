package archetype

import (
	"fmt"
	"maps"

	"github.com/annel0/blockverse/internal/data"
	"github.com/annel0/blockverse/internal/world/block"
)

// IDEntry — имя записи сырых данных с типом блока
const IDEntry = "Id"

// BlockEntity — архетип блок-сущности: тип блока, значения объявленных ключей
// и прочие сырые данные, которые сохраняются как есть.
type BlockEntity struct {
	blockID block.BlockID
	values  *data.Bag
	extra   map[string]any
}

// NewBlockEntity создаёт пустой архетип для типа блока
func NewBlockEntity(id block.BlockID) *BlockEntity {
	return &BlockEntity{blockID: id, values: data.NewBag(), extra: make(map[string]any)}
}

// BlockID возвращает тип блока архетипа
func (a *BlockEntity) BlockID() block.BlockID { return a.blockID }

// TypeName возвращает имя типа блока
func (a *BlockEntity) TypeName() string {
	if t, ok := block.Get(a.blockID); ok {
		return t.Name
	}
	return fmt.Sprintf("%s:unknown_%d", block.Namespace, a.blockID)
}

func (a *BlockEntity) Get(key *data.Key) (any, bool) {
	return a.values.Get(key)
}

func (a *BlockEntity) Value(key *data.Key) (data.Value, bool) {
	v, ok := a.values.Get(key)
	if !ok {
		return data.Value{}, false
	}
	return data.NewValue(key, v)
}

// Supports сообщает, что ключ объявлен для типа блока или уже хранится в архетипе
func (a *BlockEntity) Supports(key *data.Key) bool {
	if declared(a.blockID, key) {
		return true
	}
	_, ok := a.values.Get(key)
	return ok
}

// Keys возвращает объявленные и фактически хранимые ключи, по ID
func (a *BlockEntity) Keys() []*data.Key {
	keys := Schema(a.blockID)
	for _, v := range a.values.Values() {
		if !declared(a.blockID, v.Key()) {
			keys = append(keys, v.Key())
		}
	}
	data.SortKeys(keys)
	return keys
}

func (a *BlockEntity) Values() []data.Value {
	return a.values.Values()
}

// Offer записывает значение. Возвращает вытесненное значение (или нулевое)
// и false, если архетип не принимает ключ.
func (a *BlockEntity) Offer(key *data.Key, payload any) (replaced data.Value, ok bool) {
	if !a.Supports(key) {
		return data.Value{}, false
	}
	v, ok := data.NewValue(key, payload)
	if !ok {
		return data.Value{}, false
	}
	replaced, _ = a.values.Set(v)
	return replaced, true
}

// Remove удаляет значение ключа
func (a *BlockEntity) Remove(key *data.Key) (data.Value, bool) {
	return a.values.Remove(key)
}

// RawData возвращает сырое представление: тип, значения по ID ключей
// и дополнительные записи.
func (a *BlockEntity) RawData() map[string]any {
	raw := make(map[string]any, a.values.Len()+len(a.extra)+1)
	maps.Copy(raw, a.extra)
	maps.Copy(raw, a.values.ToMap())
	raw[IDEntry] = a.TypeName()
	return raw
}

// ValidateRawData проверяет, что представление можно применить к архетипу:
// тип совпадает (или не указан), а значения известных ключей приводимы к их типу.
func (a *BlockEntity) ValidateRawData(view map[string]any) bool {
	_, err := a.parseRaw(view)
	return err == nil
}

// SetRawData заменяет содержимое архетипа представлением
func (a *BlockEntity) SetRawData(view map[string]any) error {
	parsed, err := a.parseRaw(view)
	if err != nil {
		return err
	}
	a.values = parsed.values
	a.extra = parsed.extra
	return nil
}

func (a *BlockEntity) parseRaw(view map[string]any) (*BlockEntity, error) {
	if view == nil {
		return nil, fmt.Errorf("archetype: nil raw data")
	}
	if id, ok := view[IDEntry]; ok {
		name, isString := id.(string)
		if !isString || name != a.TypeName() {
			return nil, fmt.Errorf("archetype: raw data is for %v, not %s", id, a.TypeName())
		}
	}
	out := NewBlockEntity(a.blockID)
	for name, raw := range view {
		if name == IDEntry {
			continue
		}
		key, known := data.Lookup(name)
		if !known || !a.Supports(key) {
			out.extra[name] = raw
			continue
		}
		payload, ok := key.Coerce(raw)
		if !ok {
			return nil, fmt.Errorf("archetype: entry %s: %v is not a %s", name, raw, key.Kind)
		}
		out.values.Set(data.MustValue(key, payload))
	}
	return out, nil
}

// Clone возвращает глубокую копию архетипа
func (a *BlockEntity) Clone() *BlockEntity {
	return &BlockEntity{blockID: a.blockID, values: a.values.Clone(), extra: cloneMap(a.extra)}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case map[string]any:
			out[k] = cloneMap(t)
		case []any:
			out[k] = append([]any(nil), t...)
		default:
			out[k] = v
		}
	}
	return out
}

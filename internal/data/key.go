package data

import (
	"fmt"
	"sort"
	"sync"
)

// Kind описывает тип полезной нагрузки ключа
type Kind uint8

const (
	KindBool Kind = iota
	KindInt
	KindFloat
	KindString
)

// String возвращает строковое представление типа
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Key идентифицирует одну единицу данных ячейки ("facing", "custom_name").
// Ключи сравниваются по указателю: один ID соответствует одному *Key.
type Key struct {
	ID   string
	Kind Kind
}

// NewKey создаёт ключ и регистрирует его в глобальном реестре.
// Повторная регистрация с тем же типом возвращает уже существующий ключ.
func NewKey(id string, kind Kind) *Key {
	return Register(&Key{ID: id, Kind: kind})
}

// Accepts проверяет, что payload имеет подходящий Go-тип
func (k *Key) Accepts(payload any) bool {
	switch k.Kind {
	case KindBool:
		_, ok := payload.(bool)
		return ok
	case KindInt:
		_, ok := payload.(int)
		return ok
	case KindFloat:
		_, ok := payload.(float64)
		return ok
	case KindString:
		_, ok := payload.(string)
		return ok
	}
	return false
}

// Coerce приводит значения из внешних источников (JSON, NBT) к типу ключа.
// Числа JSON приходят как float64, целые NBT как int32 и т.п.
func (k *Key) Coerce(payload any) (any, bool) {
	if k.Accepts(payload) {
		return payload, true
	}
	switch k.Kind {
	case KindInt:
		switch v := payload.(type) {
		case int8:
			return int(v), true
		case int16:
			return int(v), true
		case int32:
			return int(v), true
		case int64:
			return int(v), true
		case float64:
			if v == float64(int(v)) {
				return int(v), true
			}
		}
	case KindFloat:
		switch v := payload.(type) {
		case float32:
			return float64(v), true
		case int:
			return float64(v), true
		case int32:
			return float64(v), true
		}
	case KindBool:
		switch v := payload.(type) {
		case uint8:
			return v != 0, true
		case int8:
			return v != 0, true
		}
	}
	return nil, false
}

func (k *Key) String() string {
	return k.ID
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]*Key)
)

// Register добавляет ключ в реестр. Конфликт типов для одного ID — ошибка программиста.
func Register(k *Key) *Key {
	registryMu.Lock()
	defer registryMu.Unlock()

	if existing, ok := registry[k.ID]; ok {
		if existing.Kind != k.Kind {
			panic(fmt.Sprintf("data: key %q already registered as %s, not %s", k.ID, existing.Kind, k.Kind))
		}
		return existing
	}
	registry[k.ID] = k
	return k
}

// Lookup возвращает ключ по идентификатору
func Lookup(id string) (*Key, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	k, ok := registry[id]
	return k, ok
}

// Keys возвращает все зарегистрированные ключи, отсортированные по ID
func Keys() []*Key {
	registryMu.RLock()
	keys := make([]*Key, 0, len(registry))
	for _, k := range registry {
		keys = append(keys, k)
	}
	registryMu.RUnlock()
	SortKeys(keys)
	return keys
}

// SortKeys сортирует ключи по ID
func SortKeys(keys []*Key) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].ID < keys[j].ID })
}

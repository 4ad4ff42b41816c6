package block

import (
	"fmt"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[BlockID]*Type)
	byName     = make(map[string]*Type)
)

// Register добавляет тип блока в регистр.
// Повторная регистрация ID или имени — ошибка программиста.
func Register(t *Type) {
	if len(t.Properties) > MaxProperties {
		panic(fmt.Sprintf("block: %s declares %d properties, max is %d", t.Name, len(t.Properties), MaxProperties))
	}
	for _, p := range t.Properties {
		if !p.Allows(p.Default) {
			panic(fmt.Sprintf("block: %s property %s default %v is not allowed", t.Name, p.Name, p.Default))
		}
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[t.ID]; exists {
		panic(fmt.Sprintf("block: id %d already registered", t.ID))
	}
	if _, exists := byName[t.Name]; exists {
		panic(fmt.Sprintf("block: name %s already registered", t.Name))
	}
	registry[t.ID] = t
	byName[t.Name] = t
}

// Get возвращает тип для указанного ID
func Get(id BlockID) (*Type, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	t, exists := registry[id]
	return t, exists
}

// ByName возвращает тип по полному имени ("blockverse:stone")
func ByName(name string) (*Type, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	t, exists := byName[name]
	return t, exists
}

// IsValidBlockID проверяет, является ли ID допустимым идентификатором блока
func IsValidBlockID(id BlockID) bool {
	_, exists := Get(id)
	return exists
}

// BlockID представляет идентификатор блока
type BlockID uint16

// Константы ID блоков
const (
	// Базовые типы блоков
	AirBlockID   BlockID = iota // 0
	StoneBlockID                // 1
	GrassBlockID                // 2
	WaterBlockID                // 3
	SandBlockID                 // 4
	DirtBlockID                 // 5
	LavaBlockID                 // 6

	// Для возможности расширения, оставляем большие промежутки между категориями

	// Декоративные блоки (начиная с 100)
	FlowerBlockID BlockID = 100 // Цветок
	LogBlockID    BlockID = 101 // Бревно
	CactusBlockID BlockID = 102 // Кактус

	// Интерактивные блоки (начиная с 200)
	ChestBlockID   BlockID = 200 // Сундук
	DoorBlockID    BlockID = 201 // Дверь
	SignBlockID    BlockID = 202 // Табличка
	FurnaceBlockID BlockID = 203 // Печь

	// Специальные блоки (начиная с 1000)
	SpawnerBlockID BlockID = 1001 // Спаунер
)

// Namespace — пространство имён встроенных типов
const Namespace = "blockverse"

// Type описывает тип блока: имя, свойства состояния и связанные данные
type Type struct {
	ID         BlockID
	Name       string     // полное имя, например "blockverse:chest"
	Properties []Property // свойства состояния в каноническом порядке
	Fluid      string     // имя жидкости, которую представляет блок ("" — нет)
	Item       string     // предмет, который выпадает из блока ("" — нет)
	HasEntity  bool       // блок несёт архетип блок-сущности
}

// property возвращает индекс свойства по ключу
func (t *Type) property(key *Key) int {
	for i := range t.Properties {
		if t.Properties[i].Key == key {
			return i
		}
	}
	return -1
}

// DefaultState возвращает состояние со значениями свойств по умолчанию
func (t *Type) DefaultState() State {
	s := State{id: t.ID}
	for i, p := range t.Properties {
		s.vals[i] = p.Default
	}
	return s
}

package world

import (
	"github.com/annel0/blockverse/internal/data"
	"github.com/annel0/blockverse/internal/vec"
)

// ChangeKind определяет вид изменения объёма
type ChangeKind uint8

const (
	ChangeOffer       ChangeKind = iota // запись значения ключа
	ChangeRemove                        // удаление значения ключа
	ChangeBlock                         // прямая установка блока или жидкости
	ChangeBlockEntity                   // добавление, удаление или сырые данные блок-сущности
	ChangeBiome                         // установка биома
	ChangeEntity                        // добавление сущности
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeOffer:
		return "offer"
	case ChangeRemove:
		return "remove"
	case ChangeBlock:
		return "block"
	case ChangeBlockEntity:
		return "block_entity"
	case ChangeBiome:
		return "biome"
	case ChangeEntity:
		return "entity"
	default:
		return "unknown"
	}
}

// Change описывает одно зафиксированное изменение ячейки
type Change struct {
	Kind   ChangeKind
	Cell   vec.Vec3
	Layer  Layer
	Result data.TransactionResult
}

// Subscribe регистрирует слушателя изменений. Слушатель вызывается синхронно
// после каждой успешной записи.
func (v *Volume) Subscribe(fn func(Change)) {
	v.listeners = append(v.listeners, fn)
}

func (v *Volume) notify(c Change) {
	for _, fn := range v.listeners {
		fn(c)
	}
}

// commit уведомляет слушателей об успешной записи и возвращает результат
func (v *Volume) commit(kind ChangeKind, cell vec.Vec3, layer Layer, r data.TransactionResult) data.TransactionResult {
	if r.IsSuccessful() {
		v.notify(Change{Kind: kind, Cell: cell, Layer: layer, Result: r})
	}
	return r
}

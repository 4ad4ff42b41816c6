package world

import (
	"github.com/annel0/blockverse/internal/data"
	"github.com/annel0/blockverse/internal/vec"
)

// BoundValue — значение, привязанное к ячейке объёма и слою, который его вернул.
// Живёт в пределах одного запроса и не кэширует состояние слоёв.
type BoundValue struct {
	value  data.Value
	cell   vec.Vec3
	layer  Layer
	volume *Volume
}

func (b BoundValue) Key() *data.Key { return b.value.Key() }

func (b BoundValue) Get() any { return b.value.Payload() }

func (b BoundValue) Cell() vec.Vec3 { return b.cell }

// Layer возвращает слой, который ответил на запрос
func (b BoundValue) Layer() Layer { return b.layer }

// AsImmutable отсоединяет значение от объёма
func (b BoundValue) AsImmutable() data.Value { return b.value }

// Set предлагает новое значение того же ключа через объём
func (b BoundValue) Set(payload any) data.TransactionResult {
	return b.volume.Offer(b.cell, b.value.Key(), payload)
}

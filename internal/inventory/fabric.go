// Package inventory описывает слоты инвентаря игрока и линзы над ними.
package inventory

import (
	"github.com/annel0/blockverse/internal/item"
)

// Fabric — сырые массивы слотов, принадлежащие владельцу.
// Слоты нумеруются подряд через все массивы.
type Fabric struct {
	inventories [][]*item.Stack
}

// NewFabric создаёт ткань из массивов заданных размеров
func NewFabric(sizes ...int) *Fabric {
	f := &Fabric{}
	for _, n := range sizes {
		f.Grow(n)
	}
	return f
}

// Size возвращает общее число слотов
func (f *Fabric) Size() int {
	n := 0
	for _, inv := range f.inventories {
		n += len(inv)
	}
	return n
}

func (f *Fabric) locate(i int) (int, int, bool) {
	if i < 0 {
		return 0, 0, false
	}
	for n, inv := range f.inventories {
		if i < len(inv) {
			return n, i, true
		}
		i -= len(inv)
	}
	return 0, 0, false
}

// Get возвращает стак в слоте; nil для пустого слота или индекса вне ткани
func (f *Fabric) Get(i int) *item.Stack {
	n, slot, ok := f.locate(i)
	if !ok {
		return nil
	}
	return f.inventories[n][slot]
}

// Set кладёт стак в слот
func (f *Fabric) Set(i int, s *item.Stack) bool {
	n, slot, ok := f.locate(i)
	if !ok {
		return false
	}
	if s.IsEmpty() {
		s = nil
	}
	f.inventories[n][slot] = s
	return true
}

// Grow добавляет новый массив из n слотов. После этого линзы,
// построенные по старому размеру, нужно пересоздать.
func (f *Fabric) Grow(n int) {
	if n <= 0 {
		return
	}
	f.inventories = append(f.inventories, make([]*item.Stack, n))
}

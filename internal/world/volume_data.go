package world

import (
	"github.com/annel0/blockverse/internal/data"
	"github.com/annel0/blockverse/internal/vec"
)

// Get читает значение ключа: слой блоков, затем жидкостей, затем блок-сущность.
// Возвращается первый найденный результат.
func (v *Volume) Get(c vec.Vec3, key *data.Key) (any, bool) {
	val, ok := v.lookup(c, key)
	if !ok {
		return nil, false
	}
	return val.Get(), true
}

// GetValue работает как Get, но возвращает привязанное значение
func (v *Volume) GetValue(c vec.Vec3, key *data.Key) (BoundValue, bool) {
	return v.lookup(c, key)
}

func (v *Volume) lookup(c vec.Vec3, key *data.Key) (BoundValue, bool) {
	if !v.bounds.Contains(c) || key == nil {
		return BoundValue{}, false
	}
	bind := func(val data.Value, layer Layer) (BoundValue, bool) {
		return BoundValue{value: val, cell: c, layer: layer, volume: v}, true
	}
	if val, ok := v.blocks.Read(c).Value(key); ok {
		return bind(val, LayerBlock)
	}
	if val, ok := v.fluids.Read(c).Value(key); ok {
		return bind(val, LayerFluid)
	}
	if a, ok := v.archetypes.Get(c); ok {
		if val, ok := a.Value(key); ok {
			return bind(val, LayerArchetype)
		}
	}
	return BoundValue{}, false
}

// Supports сообщает, поддерживает ли ключ хотя бы один слой ячейки
func (v *Volume) Supports(c vec.Vec3, key *data.Key) bool {
	if !v.bounds.Contains(c) || key == nil {
		return false
	}
	if v.blocks.Read(c).Supports(key) || v.fluids.Read(c).Supports(key) {
		return true
	}
	a, ok := v.archetypes.Get(c)
	return ok && a.Supports(key)
}

// Keys возвращает объединение ключей всех слоёв ячейки, отсортированное по ID
func (v *Volume) Keys(c vec.Vec3) []*data.Key {
	if !v.bounds.Contains(c) {
		return nil
	}
	seen := make(map[*data.Key]struct{})
	var keys []*data.Key
	add := func(ks []*data.Key) {
		for _, k := range ks {
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	add(v.blocks.Read(c).Keys())
	add(v.fluids.Read(c).Keys())
	if a, ok := v.archetypes.Get(c); ok {
		add(a.Keys())
	}
	data.SortKeys(keys)
	return keys
}

// Values возвращает объединение значений всех слоёв ячейки без повторов.
// Один ключ может встретиться с разными значениями из разных слоёв.
func (v *Volume) Values(c vec.Vec3) []data.Value {
	if !v.bounds.Contains(c) {
		return nil
	}
	values := v.blocks.Read(c).Values()
	values = append(values, v.fluids.Read(c).Values()...)
	if a, ok := v.archetypes.Get(c); ok {
		values = append(values, a.Values()...)
	}
	return data.Dedupe(values)
}

// Offer записывает значение ключа в первый слой, который его примет:
// блок, жидкость, затем существующая блок-сущность. Блок-сущность
// не создаётся автоматически.
func (v *Volume) Offer(c vec.Vec3, key *data.Key, payload any) data.TransactionResult {
	if key == nil {
		return data.FailNoData()
	}
	if coerced, ok := key.Coerce(payload); ok {
		payload = coerced
	}
	value, ok := data.NewValue(key, payload)
	if !ok {
		return data.FailNoData()
	}
	if !v.bounds.Contains(c) {
		return data.FailResult(value)
	}

	st := v.blocks.Read(c)
	if next, ok := st.With(key, payload); ok {
		old, _ := st.Value(key)
		v.setBlock(c, next)
		return v.commit(ChangeOffer, c, LayerBlock, data.SuccessResult(value, old))
	}

	fl := v.fluids.Read(c)
	if next, ok := fl.With(key, payload); ok {
		old, _ := fl.Value(key)
		v.setFluid(c, next)
		return v.commit(ChangeOffer, c, LayerFluid, data.SuccessResult(value, old))
	}

	if a, ok := v.archetypes.Get(c); ok {
		if old, ok := a.Offer(key, payload); ok {
			return v.commit(ChangeOffer, c, LayerArchetype, data.SuccessResult(value, old))
		}
	}
	return data.FailResult(value)
}

// OfferValue записывает неизменяемое значение
func (v *Volume) OfferValue(c vec.Vec3, val data.Value) data.TransactionResult {
	if val.IsZero() {
		return data.FailNoData()
	}
	return v.Offer(c, val.Key(), val.Payload())
}

// Remove удаляет значение ключа в первом слое, который хранит его и может снять.
// Свойства блоков и жидкостей обязательны, поэтому фактически удаляются
// только данные блок-сущностей.
func (v *Volume) Remove(c vec.Vec3, key *data.Key) data.TransactionResult {
	if !v.bounds.Contains(c) || key == nil {
		return data.FailNoData()
	}

	st := v.blocks.Read(c)
	if old, ok := st.Value(key); ok {
		if next, ok := st.Without(key); ok {
			v.setBlock(c, next)
			return v.commit(ChangeRemove, c, LayerBlock, data.SuccessResult(data.Value{}, old))
		}
	}

	fl := v.fluids.Read(c)
	if old, ok := fl.Value(key); ok {
		if next, ok := fl.Without(key); ok {
			v.setFluid(c, next)
			return v.commit(ChangeRemove, c, LayerFluid, data.SuccessResult(data.Value{}, old))
		}
	}

	if a, ok := v.archetypes.Get(c); ok {
		if old, ok := a.Remove(key); ok {
			return v.commit(ChangeRemove, c, LayerArchetype, data.SuccessResult(data.Value{}, old))
		}
	}
	return data.FailNoData()
}

// Undo повторно предлагает вытесненные значения результата
func (v *Volume) Undo(c vec.Vec3, result data.TransactionResult) data.TransactionResult {
	results := make([]data.TransactionResult, 0, len(result.Replaced))
	for _, val := range result.Replaced {
		results = append(results, v.OfferValue(c, val))
	}
	return data.Combine(results...)
}

// CopyFrom предлагает все значения источника
func (v *Volume) CopyFrom(to vec.Vec3, source data.ValueContainer) data.TransactionResult {
	values := source.Values()
	results := make([]data.TransactionResult, 0, len(values))
	for _, val := range values {
		results = append(results, v.OfferValue(to, val))
	}
	return data.Combine(results...)
}

// CopyFromMerge предлагает значения источника, объединяя их с текущими
// значениями назначения. Текущее значение читается непосредственно перед
// каждой записью, поэтому учитывает предыдущие записи того же вызова.
func (v *Volume) CopyFromMerge(to vec.Vec3, source data.ValueContainer, fn data.MergeFunction) data.TransactionResult {
	if fn == nil {
		return v.CopyFrom(to, source)
	}
	values := source.Values()
	results := make([]data.TransactionResult, 0, len(values))
	for _, incoming := range values {
		merged := incoming
		if existing, ok := v.lookup(to, incoming.Key()); ok {
			merged = fn(existing.AsImmutable(), incoming)
		}
		results = append(results, v.OfferValue(to, merged))
	}
	return data.Combine(results...)
}

// CopyFromCell копирует значения другой ячейки этого объёма.
// Значения источника снимаются до первой записи.
func (v *Volume) CopyFromCell(to, from vec.Vec3, fn data.MergeFunction) data.TransactionResult {
	return v.CopyFromMerge(to, snapshot(v.Values(from)), fn)
}

type snapshot []data.Value

func (s snapshot) Values() []data.Value { return s }

// ValidateRawData проверяет сырые данные блок-сущности ячейки
func (v *Volume) ValidateRawData(c vec.Vec3, view map[string]any) bool {
	a, ok := v.archetypes.Get(c)
	return ok && a.ValidateRawData(view)
}

// SetRawData заменяет сырые данные блок-сущности ячейки.
// Без блок-сущности вызов ничего не делает.
func (v *Volume) SetRawData(c vec.Vec3, view map[string]any) error {
	a, ok := v.archetypes.Get(c)
	if !ok {
		return nil
	}
	if err := a.SetRawData(view); err != nil {
		return err
	}
	v.notify(Change{Kind: ChangeBlockEntity, Cell: c, Layer: LayerArchetype})
	return nil
}

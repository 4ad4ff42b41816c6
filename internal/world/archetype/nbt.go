package archetype

import (
	"fmt"

	"github.com/sandertv/gophertunnel/minecraft/nbt"

	"github.com/annel0/blockverse/internal/world/block"
)

// ToNBT приводит сырые данные к типам, которые кодирует NBT:
// int -> int32, bool -> byte, вложенные карты и списки рекурсивно.
func ToNBT(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = toNBTValue(v)
	}
	return out
}

func toNBTValue(v any) any {
	switch t := v.(type) {
	case int:
		return int32(t)
	case bool:
		if t {
			return uint8(1)
		}
		return uint8(0)
	case map[string]any:
		return ToNBT(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = toNBTValue(e)
		}
		return out
	}
	return v
}

// MarshalNBT кодирует архетип в NBT (big endian)
func (a *BlockEntity) MarshalNBT() ([]byte, error) {
	b, err := nbt.MarshalEncoding(ToNBT(a.RawData()), nbt.BigEndian)
	if err != nil {
		return nil, fmt.Errorf("archetype: encode %s: %w", a.TypeName(), err)
	}
	return b, nil
}

// FromRawData создаёт архетип по сырому представлению с записью Id
func FromRawData(raw map[string]any) (*BlockEntity, error) {
	name, _ := raw[IDEntry].(string)
	t, ok := block.ByName(name)
	if !ok {
		return nil, fmt.Errorf("archetype: unknown block entity type %q", name)
	}
	a := NewBlockEntity(t.ID)
	if err := a.SetRawData(raw); err != nil {
		return nil, err
	}
	return a, nil
}

// UnmarshalBlockEntityNBT восстанавливает архетип из NBT
func UnmarshalBlockEntityNBT(b []byte) (*BlockEntity, error) {
	var raw map[string]any
	if err := nbt.UnmarshalEncoding(b, &raw, nbt.BigEndian); err != nil {
		return nil, fmt.Errorf("archetype: decode: %w", err)
	}
	return FromRawData(raw)
}

package world

// Layer определяет слой объёма, который ответил на запрос или принял запись.
// Порядок констант совпадает с приоритетом чтения и записи.
type Layer uint8

const (
	LayerNone Layer = iota
	LayerBlock
	LayerFluid
	LayerArchetype
)

func (l Layer) String() string {
	switch l {
	case LayerBlock:
		return "block"
	case LayerFluid:
		return "fluid"
	case LayerArchetype:
		return "archetype"
	default:
		return "none"
	}
}

// Package schematic хранит захваченные фрагменты объёма вместе с метаданными
// и умеет сериализовать их в собственный формат .schem.
package schematic

import (
	"time"

	"github.com/google/uuid"

	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world"
)

// Schematic — объём с началом в (0,0,0) и метаданными.
// Операции над ячейками делегируются встроенному объёму.
type Schematic struct {
	ID        uuid.UUID
	Name      string
	Author    string
	Offset    vec.Vec3 // смещение точки вставки относительно начала
	Metadata  map[string]any
	CreatedAt time.Time

	*world.Volume
}

// New создаёт пустую схематику указанного размера
func New(name, author string, size vec.Vec3) *Schematic {
	return &Schematic{
		ID:        uuid.New(),
		Name:      name,
		Author:    author,
		Metadata:  make(map[string]any),
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		Volume:    world.NewVolume(vec.BoundsOfSize(vec.Vec3{}, size)),
	}
}

// Size возвращает размер схематики
func (s *Schematic) Size() vec.Vec3 {
	return s.Bounds().Size()
}

// Summary — краткая сводка для каталога и CLI
type Summary struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Author        string    `json:"author"`
	Size          vec.Vec3  `json:"size"`
	NonAir        int       `json:"non_air"`
	Palette       int       `json:"palette"`
	BlockEntities int       `json:"block_entities"`
	Entities      int       `json:"entities"`
	CreatedAt     time.Time `json:"created_at"`
}

// Summarize подсчитывает сводку схематики
func (s *Schematic) Summarize() Summary {
	b := s.Bounds()
	nonAir := 0
	for _, st := range s.BlockStateStream(b.Min, b.Max, world.StreamOptions{Loading: world.OnlyLoaded}).All() {
		if !st.IsAir() {
			nonAir++
		}
	}
	return Summary{
		ID:            s.ID,
		Name:          s.Name,
		Author:        s.Author,
		Size:          s.Size(),
		NonAir:        nonAir,
		Palette:       s.BlockPalette().Len(),
		BlockEntities: len(s.BlockEntities()),
		Entities:      len(s.Entities(nil)),
		CreatedAt:     s.CreatedAt,
	}
}

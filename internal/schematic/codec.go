package schematic

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/sandertv/gophertunnel/minecraft/nbt"

	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world"
	"github.com/annel0/blockverse/internal/world/archetype"
	"github.com/annel0/blockverse/internal/world/block"
	"github.com/annel0/blockverse/internal/world/fluid"
)

// Версия формата документа
const (
	FormatVersion = 2
	DataVersion   = 1
)

// Ошибки декодирования
var (
	ErrInvalidSchematic = errors.New("schematic: invalid document")
	ErrTooLarge         = errors.New("schematic: document exceeds limits")
)

// Limits ограничивает декодируемый документ до разбора ячеек
type Limits struct {
	MaxDim   int   // по любой оси
	MaxBytes int64 // NBT после распаковки
}

// DefaultLimits покрывает любой документ, который может записать Encode
var DefaultLimits = Limits{MaxDim: math.MaxInt16, MaxBytes: 256 << 20}

// Зарезервированные записи метаданных
const (
	metaName   = "Name"
	metaAuthor = "Author"
	metaDate   = "Date"
	metaID     = "Id"
)

// document — корневой NBT-компаунд файла .schem
type document struct {
	Version         int32            `nbt:"Version"`
	DataVersion     int32            `nbt:"DataVersion"`
	Width           int16            `nbt:"Width"`
	Height          int16            `nbt:"Height"`
	Length          int16            `nbt:"Length"`
	Offset          [3]int32         `nbt:"Offset"`
	Metadata        map[string]any   `nbt:"Metadata"`
	PaletteMax      int32            `nbt:"PaletteMax"`
	Palette         map[string]int32 `nbt:"Palette"`
	BlockData       []byte           `nbt:"BlockData"`
	BlockEntities   []map[string]any `nbt:"BlockEntities"`
	Entities        []map[string]any `nbt:"Entities"`
	BiomePaletteMax int32            `nbt:"BiomePaletteMax"`
	BiomePalette    map[string]int32 `nbt:"BiomePalette"`
	BiomeData       []byte           `nbt:"BiomeData"`
	FluidPalette    map[string]int32 `nbt:"FluidPalette"`
	FluidData       []byte           `nbt:"FluidData"`
}

// Encode сериализует схематику в сжатый gzip NBT-документ
func Encode(s *Schematic) ([]byte, error) {
	doc, err := toDocument(s)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := nbt.NewEncoderWithEncoding(zw, nbt.BigEndian).Encode(doc); err != nil {
		return nil, fmt.Errorf("schematic: encode nbt: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("schematic: compress: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode восстанавливает схематику из результата Encode
func Decode(b []byte) (*Schematic, error) {
	return DecodeWithLimits(b, DefaultLimits)
}

// DecodeWithLimits отклоняет документ с ErrTooLarge, если распакованные данные
// или объявленный размер превышают lim
func DecodeWithLimits(b []byte, lim Limits) (*Schematic, error) {
	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("schematic: decompress: %w", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(io.LimitReader(zr, lim.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("schematic: decompress: %w", err)
	}
	if int64(len(raw)) > lim.MaxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes after decompression", ErrTooLarge, lim.MaxBytes)
	}
	var doc document
	if err := nbt.UnmarshalEncoding(raw, &doc, nbt.BigEndian); err != nil {
		return nil, fmt.Errorf("schematic: decode nbt: %w", err)
	}
	return fromDocument(&doc, lim.MaxDim)
}

// WriteFile сохраняет схематику в файл
func WriteFile(path string, s *Schematic) error {
	b, err := Encode(s)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("schematic: write %s: %w", path, err)
	}
	return nil
}

// ReadFile загружает схематику из файла
func ReadFile(path string) (*Schematic, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schematic: read %s: %w", path, err)
	}
	return Decode(b)
}

func toDocument(s *Schematic) (*document, error) {
	size := s.Size()
	if size.X > math.MaxInt16 || size.Y > math.MaxInt16 || size.Z > math.MaxInt16 {
		return nil, fmt.Errorf("schematic: size %s does not fit the format", size)
	}
	b := s.Bounds()
	doc := &document{
		Version:     FormatVersion,
		DataVersion: DataVersion,
		Width:       int16(size.X),
		Height:      int16(size.Y),
		Length:      int16(size.Z),
		Offset:      [3]int32{int32(s.Offset.X), int32(s.Offset.Y), int32(s.Offset.Z)},
		Metadata:    archetype.ToNBT(s.Metadata),
	}
	doc.Metadata[metaName] = s.Name
	doc.Metadata[metaAuthor] = s.Author
	doc.Metadata[metaDate] = s.CreatedAt.UnixMilli()
	doc.Metadata[metaID] = s.ID.String()

	blocks := s.BlockPalette()
	doc.Palette = make(map[string]int32, blocks.Len())
	for i, st := range blocks.Entries() {
		doc.Palette[st.String()] = int32(i)
	}
	doc.PaletteMax = int32(blocks.Len())

	biomes := s.BiomePalette()
	doc.BiomePalette = make(map[string]int32, biomes.Len())
	for i, bm := range biomes.Entries() {
		doc.BiomePalette[string(bm)] = int32(i)
	}
	doc.BiomePaletteMax = int32(biomes.Len())

	fluids := world.NewPalette(fluid.None())
	for i := 0; i < b.Volume(); i++ {
		c := b.At(i)
		bi, _ := blocks.Index(s.Block(c))
		doc.BlockData = binary.AppendUvarint(doc.BlockData, uint64(bi))
		mi, _ := biomes.Index(s.Biome(c))
		doc.BiomeData = binary.AppendUvarint(doc.BiomeData, uint64(mi))
		doc.FluidData = binary.AppendUvarint(doc.FluidData, uint64(fluids.Add(s.Fluid(c))))
	}
	doc.FluidPalette = make(map[string]int32, fluids.Len())
	for i, f := range fluids.Entries() {
		doc.FluidPalette[f.String()] = int32(i)
	}

	for _, c := range sortedCells(s.BlockEntities()) {
		a, _ := s.BlockEntity(c)
		entry := archetype.ToNBT(a.RawData())
		entry["Pos"] = [3]int32{int32(c.X), int32(c.Y), int32(c.Z)}
		doc.BlockEntities = append(doc.BlockEntities, entry)
	}
	for _, e := range s.Entities(nil) {
		doc.Entities = append(doc.Entities, archetype.ToNBT(e.RawData()))
	}
	return doc, nil
}

func sortedCells(m map[vec.Vec3]*archetype.BlockEntity) []vec.Vec3 {
	store := world.NewArchetypeStore()
	for c, a := range m {
		store.Put(c, a)
	}
	return store.Cells()
}

func fromDocument(doc *document, maxDim int) (*Schematic, error) {
	if doc.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidSchematic, doc.Version)
	}
	size := vec.Vec3{X: int(doc.Width), Y: int(doc.Height), Z: int(doc.Length)}
	if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
		return nil, fmt.Errorf("%w: bad size %s", ErrInvalidSchematic, size)
	}
	if size.X > maxDim || size.Y > maxDim || size.Z > maxDim {
		return nil, fmt.Errorf("%w: size %s (max %d)", ErrTooLarge, size, maxDim)
	}
	// Каждая ячейка занимает хотя бы байт в BlockData, поэтому цикл по ячейкам
	// ограничен размером документа. Биомы и жидкости могут отсутствовать целиком.
	volume := size.X * size.Y * size.Z
	if len(doc.BlockData) < volume {
		return nil, fmt.Errorf("%w: %d bytes of block data for %d cells", ErrInvalidSchematic, len(doc.BlockData), volume)
	}
	for name, data := range map[string][]byte{"biome": doc.BiomeData, "fluid": doc.FluidData} {
		if len(data) != 0 && len(data) < volume {
			return nil, fmt.Errorf("%w: %d bytes of %s data for %d cells", ErrInvalidSchematic, len(data), name, volume)
		}
	}

	s := New("", "", size)
	s.Offset = vec.Vec3{X: int(doc.Offset[0]), Y: int(doc.Offset[1]), Z: int(doc.Offset[2])}
	if err := s.readMetadata(doc.Metadata); err != nil {
		return nil, err
	}

	blocks, err := invertPalette(doc.Palette, block.ParseState)
	if err != nil {
		return nil, err
	}
	biomes, err := invertPalette(doc.BiomePalette, func(name string) (world.Biome, error) {
		return world.Biome(name), nil
	})
	if err != nil {
		return nil, err
	}
	fluids, err := invertPalette(doc.FluidPalette, fluid.ParseState)
	if err != nil {
		return nil, err
	}

	b := s.Bounds()
	blockData, biomeData, fluidData := doc.BlockData, doc.BiomeData, doc.FluidData
	for i := 0; i < b.Volume(); i++ {
		c := b.At(i)
		var st block.State
		if st, blockData, err = next(blocks, blockData, block.Air()); err != nil {
			return nil, fmt.Errorf("%w: block data at %s: %v", ErrInvalidSchematic, c, err)
		}
		if !st.IsAir() {
			s.SetBlock(c, st)
		}
		var bm world.Biome
		if bm, biomeData, err = next(biomes, biomeData, world.DefaultBiome); err != nil {
			return nil, fmt.Errorf("%w: biome data at %s: %v", ErrInvalidSchematic, c, err)
		}
		if bm != world.DefaultBiome {
			s.SetBiome(c, bm)
		}
		var fl fluid.State
		if fl, fluidData, err = next(fluids, fluidData, fluid.None()); err != nil {
			return nil, fmt.Errorf("%w: fluid data at %s: %v", ErrInvalidSchematic, c, err)
		}
		if fl != s.Fluid(c) {
			s.SetFluid(c, fl)
		}
	}
	for name, rest := range map[string][]byte{"block": blockData, "biome": biomeData, "fluid": fluidData} {
		if len(rest) != 0 {
			return nil, fmt.Errorf("%w: %d trailing bytes of %s data", ErrInvalidSchematic, len(rest), name)
		}
	}

	for _, entry := range doc.BlockEntities {
		c, err := readPos(entry["Pos"])
		if err != nil {
			return nil, err
		}
		delete(entry, "Pos")
		a, err := archetype.FromRawData(entry)
		if err != nil {
			return nil, fmt.Errorf("%w: block entity at %s: %v", ErrInvalidSchematic, c, err)
		}
		if !s.AddBlockEntity(c, a) {
			return nil, fmt.Errorf("%w: block entity at %s is out of bounds", ErrInvalidSchematic, c)
		}
	}
	for _, entry := range doc.Entities {
		e, err := archetype.EntityFromRawData(entry)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSchematic, err)
		}
		s.AddEntity(e)
	}
	return s, nil
}

func (s *Schematic) readMetadata(meta map[string]any) error {
	for k, v := range meta {
		switch k {
		case metaName:
			s.Name, _ = v.(string)
		case metaAuthor:
			s.Author, _ = v.(string)
		case metaDate:
			if ms, ok := v.(int64); ok {
				s.CreatedAt = time.UnixMilli(ms).UTC()
			}
		case metaID:
			str, _ := v.(string)
			id, err := uuid.Parse(str)
			if err != nil {
				return fmt.Errorf("%w: bad id %q: %v", ErrInvalidSchematic, str, err)
			}
			s.ID = id
		default:
			s.Metadata[k] = v
		}
	}
	return nil
}

func invertPalette[T any](palette map[string]int32, parse func(string) (T, error)) (map[uint64]T, error) {
	out := make(map[uint64]T, len(palette))
	for name, idx := range palette {
		if idx < 0 {
			return nil, fmt.Errorf("%w: negative palette index for %q", ErrInvalidSchematic, name)
		}
		v, err := parse(name)
		if err != nil {
			return nil, fmt.Errorf("%w: palette entry %q: %v", ErrInvalidSchematic, name, err)
		}
		out[uint64(idx)] = v
	}
	return out, nil
}

// next читает очередной индекс палитры. Пустые данные дают значение по умолчанию,
// что позволяет опускать необязательные слои (биомы, жидкости).
func next[T any](palette map[uint64]T, buf []byte, def T) (T, []byte, error) {
	if len(buf) == 0 && len(palette) == 0 {
		return def, buf, nil
	}
	idx, n := binary.Uvarint(buf)
	if n <= 0 {
		return def, buf, fmt.Errorf("truncated varint")
	}
	v, ok := palette[idx]
	if !ok {
		return def, buf, fmt.Errorf("index %d is not in palette", idx)
	}
	return v, buf[n:], nil
}

func readPos(raw any) (vec.Vec3, error) {
	var p [3]int32
	switch t := raw.(type) {
	case [3]int32:
		p = t
	case []int32:
		if len(t) != 3 {
			return vec.Vec3{}, fmt.Errorf("%w: bad block entity position", ErrInvalidSchematic)
		}
		copy(p[:], t)
	case []any:
		if len(t) != 3 {
			return vec.Vec3{}, fmt.Errorf("%w: bad block entity position", ErrInvalidSchematic)
		}
		for i, e := range t {
			n, ok := e.(int32)
			if !ok {
				return vec.Vec3{}, fmt.Errorf("%w: bad block entity position", ErrInvalidSchematic)
			}
			p[i] = n
		}
	default:
		return vec.Vec3{}, fmt.Errorf("%w: block entity without position", ErrInvalidSchematic)
	}
	return vec.Vec3{X: int(p[0]), Y: int(p[1]), Z: int(p[2])}, nil
}

// Package service управляет открытыми схематиками и связывает объёмы
// с хранилищем, каталогом, кешем и шиной событий.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/annel0/blockverse/internal/cache"
	"github.com/annel0/blockverse/internal/data"
	"github.com/annel0/blockverse/internal/eventbus"
	"github.com/annel0/blockverse/internal/logging"
	"github.com/annel0/blockverse/internal/observability"
	"github.com/annel0/blockverse/internal/schematic"
	"github.com/annel0/blockverse/internal/storage"
	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world"
	"github.com/annel0/blockverse/internal/world/archetype"
	"github.com/annel0/blockverse/internal/world/block"
)

// Ошибки сервиса
var (
	ErrNotFound     = storage.ErrNotFound
	ErrUnknownKey   = errors.New("unknown data key")
	ErrInvalidSize  = errors.New("invalid schematic size")
	ErrOutOfBounds  = errors.New("cell is outside of the schematic")
	ErrInvalidInput = errors.New("invalid input")
)

// Options — зависимости сервиса. Cache, Bus и Metrics необязательны.
type Options struct {
	Store   storage.SchematicStore
	Catalog storage.Catalog
	Cache   cache.CacheRepo
	Bus     eventbus.EventBus
	Metrics *Metrics
	Source  string // имя узла в событиях
	MaxDim  int    // максимальный размер по любой оси
}

// Schematics хранит открытые схематики. Каждая схематика защищена своим мьютексом.
type Schematics struct {
	opts Options
	log  *logging.Logger

	mu   sync.Mutex
	open map[uuid.UUID]*handle
}

type handle struct {
	mu      sync.Mutex
	s       *schematic.Schematic
	dirty   bool
	deleted bool // выставляется Delete под mu, после этого handle не сохраняется
}

// New создаёт сервис
func New(opts Options) (*Schematics, error) {
	if opts.Store == nil || opts.Catalog == nil {
		return nil, fmt.Errorf("service: store and catalog are required")
	}
	if opts.Source == "" {
		opts.Source = "blockverse"
	}
	if opts.MaxDim <= 0 {
		opts.MaxDim = 256
	}
	return &Schematics{
		opts: opts,
		log:  logging.GetComponentLogger("service"),
		open: make(map[uuid.UUID]*handle),
	}, nil
}

func (s *Schematics) checkSize(size vec.Vec3) error {
	if size.X <= 0 || size.Y <= 0 || size.Z <= 0 ||
		size.X > s.opts.MaxDim || size.Y > s.opts.MaxDim || size.Z > s.opts.MaxDim {
		return fmt.Errorf("%w: %s (max %d)", ErrInvalidSize, size, s.opts.MaxDim)
	}
	return nil
}

// track регистрирует схематику как открытую и подписывается на её изменения.
// Если схематика с тем же ID уже открыта, возвращается существующая.
func (s *Schematics) track(sc *schematic.Schematic, dirty bool) *handle {
	s.mu.Lock()
	if h, ok := s.open[sc.ID]; ok {
		s.mu.Unlock()
		if dirty {
			h.mu.Lock()
			h.s, h.dirty = sc, true
			h.mu.Unlock()
			s.subscribe(h, sc)
		}
		return h
	}
	h := &handle{s: sc, dirty: dirty}
	s.open[sc.ID] = h
	n := len(s.open)
	s.mu.Unlock()

	s.subscribe(h, sc)
	s.opts.Metrics.setOpen(n)
	return h
}

func (s *Schematics) subscribe(h *handle, sc *schematic.Schematic) {
	id := sc.ID.String()
	sc.Subscribe(func(c world.Change) {
		h.dirty = true
		s.opts.Metrics.change(c)
		s.publish(eventbus.TypeCellChanged, id, cellChanged(id, c))
	})
}

func cellChanged(id string, c world.Change) eventbus.CellChanged {
	ev := eventbus.CellChanged{
		Schematic: id,
		X:         c.Cell.X,
		Y:         c.Cell.Y,
		Z:         c.Cell.Z,
		Change:    c.Kind.String(),
		Layer:     c.Layer.String(),
		Result:    c.Result.Type.String(),
	}
	for _, v := range c.Result.Success {
		ev.Values = append(ev.Values, v.String())
	}
	return ev
}

func (s *Schematics) publish(eventType, id string, payload any) {
	if s.opts.Bus == nil {
		return
	}
	ev, err := eventbus.NewEnvelope(s.opts.Source, eventType, id, payload)
	if err != nil {
		s.log.Error("Не удалось собрать событие %s: %v", eventType, err)
		return
	}
	if err := s.opts.Bus.Publish(context.Background(), ev); err != nil {
		s.log.Warn("Публикация %s для %s не удалась: %v", eventType, id, err)
	}
}

// Create создаёт пустую схематику и сразу сохраняет её
func (s *Schematics) Create(ctx context.Context, name, author string, size vec.Vec3) (schematic.Summary, error) {
	if err := s.checkSize(size); err != nil {
		return schematic.Summary{}, err
	}
	sc := schematic.New(name, author, size)
	return s.adopt(ctx, sc)
}

// Generate создаёт схематику с рельефом
func (s *Schematics) Generate(ctx context.Context, seed int64, size vec.Vec3, opts schematic.GenerateOptions) (schematic.Summary, error) {
	if err := s.checkSize(size); err != nil {
		return schematic.Summary{}, err
	}
	sc, err := schematic.Generate(seed, size, opts)
	if err != nil {
		return schematic.Summary{}, fmt.Errorf("%w: %v", ErrInvalidSize, err)
	}
	return s.adopt(ctx, sc)
}

// Import декодирует .schem и сохраняет его, заменяя схематику с тем же ID
func (s *Schematics) Import(ctx context.Context, b []byte) (schematic.Summary, error) {
	sc, err := schematic.DecodeWithLimits(b, schematic.Limits{
		MaxDim:   s.opts.MaxDim,
		MaxBytes: schematic.DefaultLimits.MaxBytes,
	})
	if errors.Is(err, schematic.ErrTooLarge) {
		return schematic.Summary{}, fmt.Errorf("%w: %v", ErrInvalidSize, err)
	}
	if err != nil {
		logging.LogCodecError("import", err, b)
		return schematic.Summary{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.checkSize(sc.Size()); err != nil {
		return schematic.Summary{}, err
	}
	return s.adopt(ctx, sc)
}

func (s *Schematics) adopt(ctx context.Context, sc *schematic.Schematic) (schematic.Summary, error) {
	h := s.track(sc, true)
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := s.persist(ctx, h); err != nil {
		return schematic.Summary{}, err
	}
	s.log.Info("Схематика %s (%q) создана", sc.ID, sc.Name)
	return sc.Summarize(), nil
}

// Open загружает схематику в память: из кеша, если он есть, иначе из хранилища
func (s *Schematics) Open(ctx context.Context, id uuid.UUID) error {
	_, err := s.acquire(ctx, id)
	return err
}

func (s *Schematics) acquire(ctx context.Context, id uuid.UUID) (*handle, error) {
	s.mu.Lock()
	h, ok := s.open[id]
	s.mu.Unlock()
	if ok {
		return h, nil
	}

	sc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.track(sc, false), nil
}

// IsOpen сообщает, загружена ли схематика в память
func (s *Schematics) IsOpen(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.open[id]
	return ok
}

func (s *Schematics) load(ctx context.Context, id uuid.UUID) (_ *schematic.Schematic, err error) {
	ctx, span := observability.Start(ctx, "schematics.load", attribute.String("schematic.id", id.String()))
	defer func() { observability.End(span, err) }()

	if s.opts.Cache == nil {
		return s.opts.Store.Load(ctx, id)
	}
	b, err := s.opts.Cache.Get(ctx, cache.SchematicKey(id.String()))
	if cache.IsCacheMiss(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.log.Warn("Кеш недоступен для %s, читаем хранилище: %v", id, err)
		return s.opts.Store.Load(ctx, id)
	}
	return schematic.Decode(b)
}

// with выполняет fn под мьютексом открытой схематики
func (s *Schematics) with(ctx context.Context, id uuid.UUID, fn func(sc *schematic.Schematic) error) error {
	h, err := s.acquire(ctx, id)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.deleted {
		return ErrNotFound
	}
	return fn(h.s)
}

// Save сохраняет изменения открытой схематики
func (s *Schematics) Save(ctx context.Context, id uuid.UUID) error {
	h, err := s.acquire(ctx, id)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.deleted {
		return ErrNotFound
	}
	if !h.dirty {
		return nil
	}
	return s.persist(ctx, h)
}

// persist вызывается под h.mu
func (s *Schematics) persist(ctx context.Context, h *handle) (err error) {
	if h.deleted {
		return ErrNotFound
	}
	sc := h.s
	ctx, span := observability.Start(ctx, "schematics.persist", attribute.String("schematic.id", sc.ID.String()))
	defer func() { observability.End(span, err) }()

	b, err := schematic.Encode(sc)
	if err != nil {
		return fmt.Errorf("кодирование схематики %s: %w", sc.ID, err)
	}

	key := cache.SchematicKey(sc.ID.String())
	if raw, ok := s.opts.Store.(storage.RawStore); ok {
		err = raw.StoreRaw(ctx, key, b)
	} else {
		err = s.opts.Store.Save(ctx, sc)
	}
	if err != nil {
		s.log.Error("Не удалось сохранить схематику %s: %v", sc.ID, err)
		return err
	}

	if err := s.opts.Catalog.Put(ctx, storage.EntryFromSummary(sc.Summarize())); err != nil {
		s.log.Error("Не удалось обновить каталог для %s: %v", sc.ID, err)
		return err
	}
	if s.opts.Cache != nil {
		if err := s.opts.Cache.Invalidate(ctx, key); err != nil {
			s.log.Warn("Инвалидация кеша %s не удалась: %v", key, err)
		}
	}

	h.dirty = false
	span.SetAttributes(attribute.Int("schematic.bytes", len(b)))
	s.publish(eventbus.TypeSaved, sc.ID.String(), eventbus.Saved{Schematic: sc.ID.String(), Name: sc.Name, Size: len(b)})
	s.log.Debug("Схематика %s сохранена (%d байт)", sc.ID, len(b))
	return nil
}

// Flush сохраняет все изменённые схематики
func (s *Schematics) Flush(ctx context.Context) error {
	s.mu.Lock()
	handles := make([]*handle, 0, len(s.open))
	for _, h := range s.open {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	var errs []error
	for _, h := range handles {
		h.mu.Lock()
		if h.dirty && !h.deleted {
			if err := s.persist(ctx, h); err != nil {
				errs = append(errs, err)
			}
		}
		h.mu.Unlock()
	}
	return errors.Join(errs...)
}

// Export возвращает закодированную схематику
func (s *Schematics) Export(ctx context.Context, id uuid.UUID) ([]byte, error) {
	s.mu.Lock()
	h, ok := s.open[id]
	s.mu.Unlock()
	if ok {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.deleted {
			return nil, ErrNotFound
		}
		return schematic.Encode(h.s)
	}

	if s.opts.Cache != nil {
		b, err := s.opts.Cache.Get(ctx, cache.SchematicKey(id.String()))
		if cache.IsCacheMiss(err) {
			return nil, ErrNotFound
		}
		if err == nil {
			return b, nil
		}
	}
	if raw, ok := s.opts.Store.(storage.RawStore); ok {
		return raw.LoadRaw(ctx, cache.SchematicKey(id.String()))
	}
	sc, err := s.opts.Store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return schematic.Encode(sc)
}

// Delete удаляет схематику отовсюду. Открытый handle блокируется до конца
// удаления, ожидающие его Save и Flush получают ErrNotFound.
func (s *Schematics) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	h, ok := s.open[id]
	delete(s.open, id)
	n := len(s.open)
	s.mu.Unlock()
	s.opts.Metrics.setOpen(n)

	if ok {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.deleted = true
	}

	if err := s.opts.Store.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.opts.Catalog.Remove(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if s.opts.Cache != nil {
		if err := s.opts.Cache.Invalidate(ctx, cache.SchematicKey(id.String())); err != nil {
			s.log.Warn("Инвалидация кеша %s не удалась: %v", id, err)
		}
	}
	s.publish(eventbus.TypeDeleted, id.String(), eventbus.Deleted{Schematic: id.String()})
	s.log.Info("Схематика %s удалена", id)
	return nil
}

// List ищет схематики в каталоге
func (s *Schematics) List(ctx context.Context, q storage.Query) ([]storage.Entry, error) {
	return s.opts.Catalog.Search(ctx, q)
}

// Summary возвращает сводку открытой (или загружаемой) схематики
func (s *Schematics) Summary(ctx context.Context, id uuid.UUID) (schematic.Summary, error) {
	var out schematic.Summary
	err := s.with(ctx, id, func(sc *schematic.Schematic) error {
		out = sc.Summarize()
		return nil
	})
	return out, err
}

// CellView — содержимое ячейки во всех слоях
type CellView struct {
	Cell        vec.Vec3       `json:"cell"`
	Block       string         `json:"block"`
	Fluid       string         `json:"fluid"`
	Biome       string         `json:"biome"`
	Values      map[string]any `json:"values"`
	BlockEntity map[string]any `json:"block_entity,omitempty"`
	Item        map[string]any `json:"item,omitempty"` // предмет блока для pick-block
}

// Cell читает ячейку
func (s *Schematics) Cell(ctx context.Context, id uuid.UUID, c vec.Vec3) (CellView, error) {
	var view CellView
	err := s.with(ctx, id, func(sc *schematic.Schematic) error {
		if !sc.Contains(c) {
			return ErrOutOfBounds
		}
		view = CellView{
			Cell:   c,
			Block:  sc.Block(c).String(),
			Fluid:  sc.Fluid(c).String(),
			Biome:  string(sc.Biome(c)),
			Values: make(map[string]any),
		}
		for _, v := range sc.Values(c) {
			view.Values[v.Key().ID] = v.Payload()
		}
		if a, ok := sc.BlockEntity(c); ok {
			view.BlockEntity = a.RawData()
		}
		view.Item = pickItem(sc, c)
		return nil
	})
	return view, err
}

func lookupKey(id string) (*data.Key, error) {
	k, ok := data.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, id)
	}
	return k, nil
}

// Offer записывает значение ключа в ячейку
func (s *Schematics) Offer(ctx context.Context, id uuid.UUID, c vec.Vec3, keyID string, payload any) (data.TransactionResult, error) {
	key, err := lookupKey(keyID)
	if err != nil {
		return data.TransactionResult{}, err
	}
	var r data.TransactionResult
	err = s.with(ctx, id, func(sc *schematic.Schematic) error {
		r = sc.Offer(c, key, payload)
		return nil
	})
	if err != nil {
		return r, err
	}
	s.opts.Metrics.observe("offer", r)
	s.log.Debug("offer %s %s=%v -> %s", c, keyID, payload, r)
	return r, nil
}

// Remove удаляет значение ключа ячейки
func (s *Schematics) Remove(ctx context.Context, id uuid.UUID, c vec.Vec3, keyID string) (data.TransactionResult, error) {
	key, err := lookupKey(keyID)
	if err != nil {
		return data.TransactionResult{}, err
	}
	var r data.TransactionResult
	err = s.with(ctx, id, func(sc *schematic.Schematic) error {
		r = sc.Remove(c, key)
		return nil
	})
	if err != nil {
		return r, err
	}
	s.opts.Metrics.observe("remove", r)
	return r, nil
}

// Undo повторно предлагает вытесненные значения
func (s *Schematics) Undo(ctx context.Context, id uuid.UUID, c vec.Vec3, replaced map[string]any) (data.TransactionResult, error) {
	keys := make([]string, 0, len(replaced))
	for k := range replaced {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var prev data.TransactionResult
	for _, k := range keys {
		key, err := lookupKey(k)
		if err != nil {
			return data.TransactionResult{}, err
		}
		payload, ok := key.Coerce(replaced[k])
		if !ok {
			return data.FailNoData(), nil
		}
		prev.Replaced = append(prev.Replaced, data.MustValue(key, payload))
	}

	var r data.TransactionResult
	err := s.with(ctx, id, func(sc *schematic.Schematic) error {
		r = sc.Undo(c, prev)
		return nil
	})
	if err != nil {
		return r, err
	}
	s.opts.Metrics.observe("undo", r)
	return r, nil
}

// MergeFunction выбирает функцию слияния по имени: replace (по умолчанию) или original
func MergeFunction(name string) (data.MergeFunction, error) {
	switch name {
	case "", "replace":
		return data.ReplacementPreferred, nil
	case "original":
		return data.OriginalPreferred, nil
	}
	return nil, fmt.Errorf("%w: unknown merge function %q", ErrInvalidInput, name)
}

// Copy копирует значения ячейки from в ячейку to
func (s *Schematics) Copy(ctx context.Context, id uuid.UUID, to, from vec.Vec3, merge string) (data.TransactionResult, error) {
	fn, err := MergeFunction(merge)
	if err != nil {
		return data.TransactionResult{}, err
	}
	var r data.TransactionResult
	err = s.with(ctx, id, func(sc *schematic.Schematic) error {
		if !sc.Contains(from) {
			return ErrOutOfBounds
		}
		r = sc.CopyFromCell(to, from, fn)
		return nil
	})
	if err != nil {
		return r, err
	}
	s.opts.Metrics.observe("copy", r)
	return r, nil
}

// SetBlock устанавливает блок по каноническому представлению состояния
func (s *Schematics) SetBlock(ctx context.Context, id uuid.UUID, c vec.Vec3, state string) error {
	st, err := block.ParseState(state)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return s.with(ctx, id, func(sc *schematic.Schematic) error {
		if !sc.SetBlock(c, st) {
			return ErrOutOfBounds
		}
		return nil
	})
}

// AddBlockEntity размещает блок-сущность из сырых данных (поле Id задаёт блок)
func (s *Schematics) AddBlockEntity(ctx context.Context, id uuid.UUID, c vec.Vec3, raw map[string]any) error {
	a, err := archetype.FromRawData(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return s.with(ctx, id, func(sc *schematic.Schematic) error {
		if !sc.AddBlockEntity(c, a) {
			return ErrOutOfBounds
		}
		return nil
	})
}

// Close сохраняет изменённые схематики и выгружает их из памяти
func (s *Schematics) Close(ctx context.Context) error {
	err := s.Flush(ctx)
	s.mu.Lock()
	s.open = make(map[uuid.UUID]*handle)
	s.mu.Unlock()
	s.opts.Metrics.setOpen(0)
	return err
}

// Stats — состояние открытых схематик
type Stats struct {
	Open  int `json:"open"`
	Dirty int `json:"dirty"`
}

// Stats подсчитывает открытые и несохранённые схематики
func (s *Schematics) Stats() Stats {
	s.mu.Lock()
	handles := make([]*handle, 0, len(s.open))
	for _, h := range s.open {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	st := Stats{Open: len(handles)}
	for _, h := range handles {
		h.mu.Lock()
		if h.dirty {
			st.Dirty++
		}
		h.mu.Unlock()
	}
	return st
}

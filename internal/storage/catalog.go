package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/annel0/blockverse/internal/schematic"
	"github.com/annel0/blockverse/internal/vec"
)

// Entry — запись каталога схематик
type Entry struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Author        string    `json:"author"`
	Size          vec.Vec3  `json:"size"`
	NonAir        int       `json:"non_air"`
	BlockEntities int       `json:"block_entities"`
	Entities      int       `json:"entities"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// EntryFromSummary строит запись каталога из сводки схематики
func EntryFromSummary(s schematic.Summary) Entry {
	return Entry{
		ID:            s.ID,
		Name:          s.Name,
		Author:        s.Author,
		Size:          s.Size,
		NonAir:        s.NonAir,
		BlockEntities: s.BlockEntities,
		Entities:      s.Entities,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     time.Now().UTC().Truncate(time.Millisecond),
	}
}

// Query — фильтр поиска по каталогу; пустые поля не фильтруют
type Query struct {
	Name   string // подстрока имени без учёта регистра
	Author string
	Limit  int
}

const defaultQueryLimit = 100

func (q Query) limit() int {
	if q.Limit <= 0 || q.Limit > defaultQueryLimit {
		return defaultQueryLimit
	}
	return q.Limit
}

func (q Query) matches(e Entry) bool {
	if q.Author != "" && !strings.EqualFold(q.Author, e.Author) {
		return false
	}
	return q.Name == "" || strings.Contains(strings.ToLower(e.Name), strings.ToLower(q.Name))
}

// Catalog — индекс схематик для поиска
type Catalog interface {
	Put(ctx context.Context, e Entry) error
	Get(ctx context.Context, id uuid.UUID) (Entry, error)
	Remove(ctx context.Context, id uuid.UUID) error
	// Search возвращает записи, новые первыми
	Search(ctx context.Context, q Query) ([]Entry, error)
	Close() error
}

// MemoryCatalog реализует Catalog в памяти
type MemoryCatalog struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]Entry
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{entries: make(map[uuid.UUID]Entry)}
}

func (c *MemoryCatalog) Put(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.entries[e.ID] = e
	c.mu.Unlock()
	return nil
}

func (c *MemoryCatalog) Get(ctx context.Context, id uuid.UUID) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (c *MemoryCatalog) Remove(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[id]; !ok {
		return ErrNotFound
	}
	delete(c.entries, id)
	return nil
}

func (c *MemoryCatalog) Search(ctx context.Context, q Query) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		if q.matches(e) {
			out = append(out, e)
		}
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if len(out) > q.limit() {
		out = out[:q.limit()]
	}
	return out, nil
}

func (c *MemoryCatalog) Close() error { return nil }

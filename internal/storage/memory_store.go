package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/annel0/blockverse/internal/cache"
	"github.com/annel0/blockverse/internal/schematic"
)

// MemoryStore хранит закодированные схематики в памяти.
// Используется для CI/локальной разработки и одиночного узла.
// ВНИМАНИЕ: Данные теряются при перезапуске сервера!
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte // schematic:<id> -> .schem
}

// NewMemoryStore создает пустое хранилище
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Save(ctx context.Context, s *schematic.Schematic) error {
	b, err := schematic.Encode(s)
	if err != nil {
		return fmt.Errorf("кодирование схематики %s: %w", s.ID, err)
	}
	return m.StoreRaw(ctx, cache.SchematicKey(s.ID.String()), b)
}

func (m *MemoryStore) Load(ctx context.Context, id uuid.UUID) (*schematic.Schematic, error) {
	b, err := m.LoadRaw(ctx, cache.SchematicKey(id.String()))
	if err != nil {
		return nil, err
	}
	return schematic.Decode(b)
}

func (m *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := cache.SchematicKey(id.String())

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; !ok {
		return ErrNotFound
	}
	delete(m.data, key)
	return nil
}

func (m *MemoryStore) List(ctx context.Context) ([]uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(m.data))
	for key := range m.data {
		if id, ok := idFromKey(key); ok {
			ids = append(ids, id)
		}
	}
	sortIDs(ids)
	return ids, nil
}

func (m *MemoryStore) LoadRaw(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return b, nil
}

func (m *MemoryStore) StoreRaw(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
}

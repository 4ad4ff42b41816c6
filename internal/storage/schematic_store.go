package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/annel0/blockverse/internal/cache"
	"github.com/annel0/blockverse/internal/schematic"
)

// ErrNotFound — схематика отсутствует в хранилище
var ErrNotFound = errors.New("schematic not found")

// SchematicStore определяет постоянное хранилище схематик.
// Схематики хранятся в закодированном виде (.schem).
type SchematicStore interface {
	// Save кодирует и сохраняет схематику, перезаписывая прежнюю версию.
	Save(ctx context.Context, s *schematic.Schematic) error

	// Load возвращает ErrNotFound, если схематики нет.
	Load(ctx context.Context, id uuid.UUID) (*schematic.Schematic, error)

	// Delete возвращает ErrNotFound, если удалять нечего.
	Delete(ctx context.Context, id uuid.UUID) error

	// List возвращает идентификаторы всех схематик.
	List(ctx context.Context) ([]uuid.UUID, error)

	Close() error
}

// RawStore — доступ к закодированным данным по ключу schematic:<id>
type RawStore interface {
	LoadRaw(ctx context.Context, key string) ([]byte, error)
	StoreRaw(ctx context.Context, key string, value []byte) error
}

// Cold оборачивает RawStore в cache.ColdStorage
func Cold(s RawStore) cache.ColdStorage {
	return coldAdapter{s}
}

type coldAdapter struct {
	RawStore
}

func (c coldAdapter) Load(ctx context.Context, key string) ([]byte, error) {
	b, err := c.LoadRaw(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, cache.ErrNotStored
	}
	return b, err
}

func (c coldAdapter) Store(ctx context.Context, key string, value []byte) error {
	return c.StoreRaw(ctx, key, value)
}

const keyPrefix = "schematic:"

func idFromKey(key string) (uuid.UUID, bool) {
	if !strings.HasPrefix(key, keyPrefix) {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimPrefix(key, keyPrefix))
	return id, err == nil
}

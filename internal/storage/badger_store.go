package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"

	"github.com/annel0/blockverse/internal/cache"
	"github.com/annel0/blockverse/internal/logging"
	"github.com/annel0/blockverse/internal/schematic"
)

// BadgerStore хранит закодированные схематики в BadgerDB под ключами schematic:<id>
type BadgerStore struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

// NewBadgerStore открывает (или создаёт) базу в dataPath/schematics
func NewBadgerStore(dataPath string) (*BadgerStore, error) {
	dbPath := filepath.Join(dataPath, "schematics")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	logging.GetStorageLogger().Info("BadgerDB открыта: %s", dbPath)
	return &BadgerStore{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
	}, nil
}

// Close закрывает хранилище данных
func (bs *BadgerStore) Close() error {
	bs.mutex.Lock()
	defer bs.mutex.Unlock()

	if !bs.isReady {
		return nil
	}

	bs.isReady = false
	return bs.db.Close()
}

func (bs *BadgerStore) ready() error {
	if !bs.isReady {
		return fmt.Errorf("хранилище не готово")
	}
	return nil
}

// Save кодирует схематику и сохраняет её
func (bs *BadgerStore) Save(ctx context.Context, s *schematic.Schematic) error {
	b, err := schematic.Encode(s)
	if err != nil {
		return fmt.Errorf("кодирование схематики %s: %w", s.ID, err)
	}
	return bs.StoreRaw(ctx, cache.SchematicKey(s.ID.String()), b)
}

// Load загружает и декодирует схематику
func (bs *BadgerStore) Load(ctx context.Context, id uuid.UUID) (*schematic.Schematic, error) {
	b, err := bs.LoadRaw(ctx, cache.SchematicKey(id.String()))
	if err != nil {
		return nil, err
	}
	s, err := schematic.Decode(b)
	if err != nil {
		logging.GetStorageLogger().Error("Повреждённая схематика %s: %v", id, err)
		return nil, err
	}
	return s, nil
}

// Delete удаляет схематику
func (bs *BadgerStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bs.mutex.RLock()
	defer bs.mutex.RUnlock()
	if err := bs.ready(); err != nil {
		return err
	}

	key := []byte(cache.SchematicKey(id.String()))
	return bs.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return txn.Delete(key)
	})
}

// List перечисляет схематики по префиксу ключа
func (bs *BadgerStore) List(ctx context.Context) ([]uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bs.mutex.RLock()
	defer bs.mutex.RUnlock()
	if err := bs.ready(); err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	err := bs.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if id, ok := idFromKey(string(it.Item().Key())); ok {
				ids = append(ids, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения списка схематик: %w", err)
	}
	sortIDs(ids)
	return ids, nil
}

// LoadRaw читает закодированные данные по ключу
func (bs *BadgerStore) LoadRaw(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bs.mutex.RLock()
	defer bs.mutex.RUnlock()
	if err := bs.ready(); err != nil {
		return nil, err
	}

	var data []byte
	err := bs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}
	return data, nil
}

// StoreRaw записывает закодированные данные по ключу
func (bs *BadgerStore) StoreRaw(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bs.mutex.RLock()
	defer bs.mutex.RUnlock()
	if err := bs.ready(); err != nil {
		return err
	}

	err := bs.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

// RunGC запускает сборку мусора в value log
func (bs *BadgerStore) RunGC() error {
	bs.mutex.RLock()
	defer bs.mutex.RUnlock()
	if err := bs.ready(); err != nil {
		return err
	}
	err := bs.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}

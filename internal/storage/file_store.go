package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/annel0/blockverse/internal/cache"
	"github.com/annel0/blockverse/internal/logging"
	"github.com/annel0/blockverse/internal/schematic"
)

const schemExt = ".schem"

// FileStore хранит каждую схематику отдельным файлом <basePath>/<id>.schem.
// Файлы совместимы с schem-cli.
type FileStore struct {
	basePath string
	mu       sync.RWMutex
	recent   map[string][]byte // последние записанные/прочитанные файлы
	maxCache int
}

// NewFileStore создаёт файловое хранилище; директория создаётся при необходимости
func NewFileStore(basePath string) (*FileStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию %s: %w", basePath, err)
	}
	logging.GetStorageLogger().Info("Файловое хранилище схематик: %s", basePath)
	return &FileStore{
		basePath: basePath,
		recent:   make(map[string][]byte),
		maxCache: 64,
	}, nil
}

// filename возвращает имя файла для ключа schematic:<id>
func (st *FileStore) filename(key string) (string, error) {
	id, ok := idFromKey(key)
	if !ok {
		return "", fmt.Errorf("storage: неверный ключ %q", key)
	}
	return filepath.Join(st.basePath, id.String()+schemExt), nil
}

func (st *FileStore) remember(key string, b []byte) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.recent) >= st.maxCache {
		for k := range st.recent {
			delete(st.recent, k)
			break
		}
	}
	st.recent[key] = b
}

func (st *FileStore) forget(key string) {
	st.mu.Lock()
	delete(st.recent, key)
	st.mu.Unlock()
}

func (st *FileStore) Save(ctx context.Context, s *schematic.Schematic) error {
	b, err := schematic.Encode(s)
	if err != nil {
		return fmt.Errorf("кодирование схематики %s: %w", s.ID, err)
	}
	return st.StoreRaw(ctx, cache.SchematicKey(s.ID.String()), b)
}

func (st *FileStore) Load(ctx context.Context, id uuid.UUID) (*schematic.Schematic, error) {
	b, err := st.LoadRaw(ctx, cache.SchematicKey(id.String()))
	if err != nil {
		return nil, err
	}
	return schematic.Decode(b)
}

func (st *FileStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := cache.SchematicKey(id.String())
	name, err := st.filename(key)
	if err != nil {
		return err
	}
	st.forget(key)

	err = os.Remove(name)
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("ошибка удаления файла %s: %w", name, err)
	}
	return nil
}

// List обходит директорию и возвращает ID всех файлов .schem
func (st *FileStore) List(ctx context.Context) ([]uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(st.basePath)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения директории %s: %w", st.basePath, err)
	}

	var ids []uuid.UUID
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != schemExt {
			continue
		}
		id, err := uuid.Parse(strings.TrimSuffix(e.Name(), schemExt))
		if err != nil {
			continue // посторонний файл
		}
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids, nil
}

func (st *FileStore) LoadRaw(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st.mu.RLock()
	b, ok := st.recent[key]
	st.mu.RUnlock()
	if ok {
		return b, nil
	}

	name, err := st.filename(key)
	if err != nil {
		return nil, err
	}
	b, err = os.ReadFile(name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла %s: %w", name, err)
	}
	st.remember(key, b)
	return b, nil
}

// StoreRaw пишет во временный файл и переименовывает его поверх старого
func (st *FileStore) StoreRaw(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := st.filename(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(st.basePath, ".tmp-*"+schemExt)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("ошибка записи файла %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), name); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("ошибка записи файла %s: %w", name, err)
	}

	st.remember(key, append([]byte(nil), value...))
	return nil
}

// Stats возвращает статистику хранилища
func (st *FileStore) Stats() map[string]interface{} {
	st.mu.RLock()
	cached := len(st.recent)
	st.mu.RUnlock()

	var files int
	var bytes int64
	filepath.WalkDir(st.basePath, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && filepath.Ext(path) == schemExt && !strings.HasPrefix(d.Name(), ".tmp-") {
			files++
			if info, err := d.Info(); err == nil {
				bytes += info.Size()
			}
		}
		return nil
	})

	return map[string]interface{}{
		"cached_files": cached,
		"stored_files": files,
		"stored_bytes": bytes,
		"base_path":    st.basePath,
	}
}

func (st *FileStore) Close() error {
	st.mu.Lock()
	st.recent = make(map[string][]byte)
	st.mu.Unlock()
	return nil
}

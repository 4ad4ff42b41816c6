package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

// MariaCatalog реализует Catalog для MariaDB/MySQL (таблица schematic_catalog).
type MariaCatalog struct {
	db *sql.DB
}

// NewMariaCatalog подключается к базе и создаёт таблицу, если её нет.
//
// Параметры:
//
//	dsn - строка подключения (user:pass@tcp(host:port)/dbname); parseTime включается автоматически
func NewMariaCatalog(dsn string) (*MariaCatalog, error) {
	if !strings.Contains(dsn, "parseTime=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	// Проверяем соединение
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	c := &MariaCatalog{db: db}
	if err := c.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицу: %w", err)
	}
	return c, nil
}

func (c *MariaCatalog) createTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS schematic_catalog (
			id             CHAR(36)     PRIMARY KEY,
			name           VARCHAR(255) NOT NULL,
			author         VARCHAR(255) NOT NULL,
			size_x         INT          NOT NULL,
			size_y         INT          NOT NULL,
			size_z         INT          NOT NULL,
			non_air        INT          NOT NULL,
			block_entities INT          NOT NULL,
			entities       INT          NOT NULL,
			created_at     DATETIME(3)  NOT NULL,
			updated_at     DATETIME(3)  NOT NULL,
			INDEX idx_author (author),
			INDEX idx_created_at (created_at)
		) ENGINE=InnoDB
	`
	if _, err := c.db.Exec(query); err != nil {
		return fmt.Errorf("ошибка создания таблицы schematic_catalog: %w", err)
	}
	return nil
}

// Put вставляет или обновляет запись (INSERT ... ON DUPLICATE KEY UPDATE).
func (c *MariaCatalog) Put(ctx context.Context, e Entry) error {
	query := `
		INSERT INTO schematic_catalog
			(id, name, author, size_x, size_y, size_z, non_air, block_entities, entities, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			name = VALUES(name),
			author = VALUES(author),
			size_x = VALUES(size_x),
			size_y = VALUES(size_y),
			size_z = VALUES(size_z),
			non_air = VALUES(non_air),
			block_entities = VALUES(block_entities),
			entities = VALUES(entities),
			updated_at = VALUES(updated_at)
	`
	_, err := c.db.ExecContext(ctx, query, e.ID.String(), e.Name, e.Author,
		e.Size.X, e.Size.Y, e.Size.Z, e.NonAir, e.BlockEntities, e.Entities, nonZeroTime(e.CreatedAt), nonZeroTime(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("ошибка сохранения записи каталога %s: %w", e.ID, err)
	}
	return nil
}

const mariaColumns = `id, name, author, size_x, size_y, size_z, non_air, block_entities, entities, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		e  Entry
		id string
	)
	err := row.Scan(&id, &e.Name, &e.Author, &e.Size.X, &e.Size.Y, &e.Size.Z,
		&e.NonAir, &e.BlockEntities, &e.Entities, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return Entry{}, err
	}
	if e.ID, err = uuid.Parse(id); err != nil {
		return Entry{}, fmt.Errorf("некорректный id %q: %w", id, err)
	}
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return e, nil
}

func (c *MariaCatalog) Get(ctx context.Context, id uuid.UUID) (Entry, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+mariaColumns+` FROM schematic_catalog WHERE id = ?`, id.String())
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("ошибка загрузки записи каталога %s: %w", id, err)
	}
	return e, nil
}

func (c *MariaCatalog) Remove(ctx context.Context, id uuid.UUID) error {
	result, err := c.db.ExecContext(ctx, `DELETE FROM schematic_catalog WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("ошибка удаления записи каталога %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества затронутых строк: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *MariaCatalog) Search(ctx context.Context, q Query) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if q.Name != "" {
		where = append(where, "LOWER(name) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Name)+"%")
	}
	if q.Author != "" {
		where = append(where, "LOWER(author) = ?")
		args = append(args, strings.ToLower(q.Author))
	}
	query := `SELECT ` + mariaColumns + ` FROM schematic_catalog`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id LIMIT ?"
	args = append(args, q.limit())

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска в каталоге: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DB отдаёт пул соединений каталога для таблицы пользователей
func (c *MariaCatalog) DB() *sql.DB { return c.db }

// Close закрывает соединение с базой данных.
func (c *MariaCatalog) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// DATETIME не принимает нулевое время Go
func nonZeroTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return t
}

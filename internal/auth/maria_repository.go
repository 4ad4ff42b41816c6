package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

const mariaDuplicateEntry = 1062

const usersDDL = `CREATE TABLE IF NOT EXISTS bv_users (
	id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
	username      VARCHAR(50)  NOT NULL,
	password_hash VARCHAR(255) NOT NULL,
	is_admin      BOOLEAN      NOT NULL DEFAULT FALSE,
	created_at    DATETIME(3)  NOT NULL,
	last_login    DATETIME(3)  NOT NULL,
	UNIQUE KEY uq_username (username)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`

const userColumns = `id, username, password_hash, is_admin, created_at, last_login`

// MariaUserRepo хранит пользователей в таблице bv_users рядом с каталогом схематик
type MariaUserRepo struct {
	db      *sql.DB
	owned   bool
	timeout time.Duration
}

// NewMariaUserRepo открывает своё подключение по DSN
func NewMariaUserRepo(dsn string) (*MariaUserRepo, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("разбор DSN MariaDB: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("подключение к MariaDB: %w", err)
	}
	repo, err := NewMariaUserRepoFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	repo.owned = true
	return repo, nil
}

// NewMariaUserRepoFromDB работает поверх чужого *sql.DB (DSN должен содержать parseTime=true)
func NewMariaUserRepoFromDB(db *sql.DB) (*MariaUserRepo, error) {
	repo := &MariaUserRepo{db: db, timeout: 5 * time.Second}
	ctx, cancel := repo.ctx()
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("MariaDB недоступна: %w", err)
	}
	if _, err := db.ExecContext(ctx, usersDDL); err != nil {
		return nil, fmt.Errorf("создание таблицы bv_users: %w", err)
	}
	return repo, nil
}

func (m *MariaUserRepo) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.timeout)
}

func (m *MariaUserRepo) queryOne(where string, arg any) (*User, error) {
	ctx, cancel := m.ctx()
	defer cancel()

	u := &User{}
	err := m.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM bv_users WHERE "+where, arg).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt, &u.LastLogin)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrUserNotFound
	case err != nil:
		return nil, fmt.Errorf("чтение пользователя: %w", err)
	}
	return u, nil
}

func (m *MariaUserRepo) GetUserByUsername(username string) (*User, error) {
	return m.queryOne("username = ?", normalize(username))
}

func (m *MariaUserRepo) GetUserByID(id uint64) (*User, error) {
	return m.queryOne("id = ?", id)
}

func (m *MariaUserRepo) CreateUser(username string, passwordHash string, isAdmin bool) (*User, error) {
	ctx, cancel := m.ctx()
	defer cancel()

	u := &User{
		Username:     normalize(username),
		PasswordHash: passwordHash,
		IsAdmin:      isAdmin,
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
	u.LastLogin = u.CreatedAt

	res, err := m.db.ExecContext(ctx,
		"INSERT INTO bv_users (username, password_hash, is_admin, created_at, last_login) VALUES (?, ?, ?, ?, ?)",
		u.Username, u.PasswordHash, u.IsAdmin, u.CreatedAt, u.LastLogin)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mariaDuplicateEntry {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("создание пользователя: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("id пользователя: %w", err)
	}
	u.ID = uint64(id)
	return u, nil
}

// ValidateCredentials проверяет пароль и отмечает время входа
func (m *MariaUserRepo) ValidateCredentials(username, password string) (*User, error) {
	u, err := validateWith(m.GetUserByUsername, username, password)
	if err != nil {
		return nil, err
	}
	ctx, cancel := m.ctx()
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	if _, err := m.db.ExecContext(ctx, "UPDATE bv_users SET last_login = ? WHERE id = ?", now, u.ID); err != nil {
		return nil, fmt.Errorf("обновление last_login: %w", err)
	}
	u.LastLogin = now
	return u, nil
}

// Close закрывает подключение, только если репозиторий открыл его сам
func (m *MariaUserRepo) Close() error {
	if !m.owned {
		return nil
	}
	return m.db.Close()
}

package auth

import (
	"strings"
	"sync"
	"time"
)

// MemoryUserRepo держит пользователей в памяти процесса; годится для одного узла и тестов
type MemoryUserRepo struct {
	mu     sync.RWMutex
	byID   map[uint64]User
	byName map[string]uint64
	lastID uint64
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		byID:   make(map[uint64]User),
		byName: make(map[string]uint64),
	}
}

// normalize приводит имя к виду, в котором оно хранится во всех репозиториях
func normalize(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (r *MemoryUserRepo) GetUserByUsername(username string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[normalize(username)]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := r.byID[id]
	return &u, nil
}

func (r *MemoryUserRepo) GetUserByID(id uint64) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (r *MemoryUserRepo) CreateUser(username string, passwordHash string, isAdmin bool) (*User, error) {
	name := normalize(username)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byName[name]; taken {
		return nil, ErrUserExists
	}
	r.lastID++
	now := time.Now()
	u := User{
		ID:           r.lastID,
		Username:     name,
		PasswordHash: passwordHash,
		IsAdmin:      isAdmin,
		CreatedAt:    now,
		LastLogin:    now,
	}
	r.byID[u.ID] = u
	r.byName[name] = u.ID
	return &u, nil
}

func (r *MemoryUserRepo) ValidateCredentials(username, password string) (*User, error) {
	u, err := validateWith(r.GetUserByUsername, username, password)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	if stored, ok := r.byID[u.ID]; ok {
		stored.LastLogin = time.Now()
		r.byID[u.ID] = stored
		u.LastLogin = stored.LastLogin
	}
	r.mu.Unlock()
	return u, nil
}

func (r *MemoryUserRepo) Close() error { return nil }

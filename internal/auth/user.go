package auth

import "time"

// User represents an account of the schematic service
type User struct {
	ID           uint64    `json:"id"`
	Username     string    `json:"username"` // уникален без учёта регистра
	PasswordHash string    `json:"-"`        // bcrypt
	CreatedAt    time.Time `json:"created_at"`
	LastLogin    time.Time `json:"last_login"`
	IsAdmin      bool      `json:"is_admin"`
}

package auth

import "errors"

// UserRepository defines operations for user persistence and retrieval.
type UserRepository interface {
	// GetUserByUsername returns a user by username (case-insensitive). If the user
	// is not found, (nil, ErrUserNotFound) should be returned.
	GetUserByUsername(username string) (*User, error)

	// CreateUser creates a new user with the supplied data and returns the stored
	// user instance. Caller is expected to pass a bcrypt-hashed password.
	// Implementations must enforce unique usernames and return ErrUserExists on
	// conflict.
	CreateUser(username string, passwordHash string, isAdmin bool) (*User, error)

	// GetUserByID returns a user by ID or ErrUserNotFound.
	GetUserByID(id uint64) (*User, error)

	// ValidateCredentials returns ErrInvalidCredentials for an unknown user or a wrong password.
	ValidateCredentials(username, password string) (*User, error)

	Close() error
}

// Domain-level errors returned by the repository.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// validateWith проверяет пароль пользователя, найденного lookup
func validateWith(lookup func(string) (*User, error), username, password string) (*User, error) {
	user, err := lookup(username)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// EnsureAdmin создаёт администратора, если пользователя с таким именем ещё нет
func EnsureAdmin(repo UserRepository, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	_, err = repo.CreateUser(username, hash, true)
	if errors.Is(err, ErrUserExists) {
		return nil
	}
	return err
}

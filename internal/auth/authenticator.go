package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/annel0/blockverse/internal/logging"
)

// Session — результат успешного входа
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

// Authenticator связывает хранилище пользователей и выпуск токенов
type Authenticator struct {
	users  UserRepository
	tokens *TokenManager
	log    *logging.Logger
}

// NewAuthenticator создает новый аутентификатор
func NewAuthenticator(users UserRepository, tokens *TokenManager) *Authenticator {
	return &Authenticator{
		users:  users,
		tokens: tokens,
		log:    logging.GetComponentLogger("auth"),
	}
}

// Login проверяет учётные данные и выпускает JWT
func (a *Authenticator) Login(username, password string) (*Session, error) {
	user, err := a.users.ValidateCredentials(username, password)
	if err != nil {
		a.log.Warn("Неудачная аутентификация для пользователя %s: %v", username, err)
		return nil, err
	}
	token, expires, err := a.tokens.Generate(user)
	if err != nil {
		return nil, fmt.Errorf("выпуск токена для %s: %w", user.Username, err)
	}
	a.log.Info("Пользователь %s (ID: %d) вошёл, токен до %s", user.Username, user.ID, expires.Format(time.RFC3339))
	return &Session{Token: token, ExpiresAt: expires, User: user}, nil
}

// Authenticate проверяет токен и возвращает актуального пользователя
func (a *Authenticator) Authenticate(token string) (*User, error) {
	claims, err := a.tokens.Validate(token)
	if err != nil {
		return nil, err
	}
	user, err := a.users.GetUserByID(claims.UserID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidToken
	}
	return user, err
}

// Register создаёт пользователя
func (a *Authenticator) Register(username, password string, isAdmin bool) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: empty username", ErrInvalidCredentials)
	}
	if err := CheckPasswordPolicy(password); err != nil {
		return nil, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user, err := a.users.CreateUser(username, hash, isAdmin)
	if err != nil {
		return nil, err
	}
	a.log.Info("Зарегистрирован пользователь %s (admin=%v)", user.Username, user.IsAdmin)
	return user, nil
}

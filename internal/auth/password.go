package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Ограничения пароля. bcrypt учитывает только первые 72 байта.
const (
	minPasswordLen = 6
	maxPasswordLen = 72
)

var (
	ErrWeakPassword    = errors.New("password is too short")
	ErrPasswordTooLong = errors.New("password is too long")
)

// BcryptCost — стоимость хеширования; тесты понижают её до bcrypt.MinCost
var BcryptCost = bcrypt.DefaultCost

// CheckPasswordPolicy проверяет длину пароля перед регистрацией
func CheckPasswordPolicy(password string) error {
	switch {
	case len(password) < minPasswordLen:
		return fmt.Errorf("%w: minimum %d characters", ErrWeakPassword, minPasswordLen)
	case len(password) > maxPasswordLen:
		return fmt.Errorf("%w: maximum %d bytes", ErrPasswordTooLong, maxPasswordLen)
	}
	return nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(hash), nil
}

// CheckPassword сравнивает пароль с bcrypt-хешем
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NeedsRehash сообщает, что хеш создан с другой стоимостью
func NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	return err != nil || cost != BcryptCost
}

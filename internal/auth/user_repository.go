package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/annel0/eldara-server/internal/config"
	"github.com/annel0/eldara-server/internal/logging"
	"github.com/annel0/eldara-server/internal/storage"
)

// UserRepository хранилище учётных записей.
type UserRepository interface {
	// GetUserByUsername ищет пользователя без учёта регистра.
	// Если пользователя нет, возвращает (nil, ErrUserNotFound).
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// CreateUser создаёт пользователя. Пароль передаётся уже в виде bcrypt хеша.
	// При конфликте имени возвращает ErrUserExists.
	CreateUser(ctx context.Context, username string, passwordHash string, isAdmin bool) (*User, error)

	// TouchLastLogin обновляет время последнего входа
	TouchLastLogin(ctx context.Context, userID uint64) error

	Close() error
}

// Ошибки уровня домена
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidUsername    = errors.New("invalid username")
)

// NewUserRepository выбирает реализацию по auth.backend
func NewUserRepository(cfg config.AuthConfig) (UserRepository, error) {
	switch cfg.Backend {
	case "", "memory":
		logging.GetServerLogger().Warn("⚠️ Учётные записи хранятся в памяти и теряются при перезапуске")
		return NewMemoryUserRepo(), nil
	case "mongo":
		return NewMongoUserRepo(MongoConfig{URI: cfg.MongoURI, Database: cfg.MongoDB})
	case "maria":
		return NewMariaUserRepo(storage.MariaDSN(cfg.Maria))
	default:
		return nil, fmt.Errorf("unknown auth backend %q", cfg.Backend)
	}
}

// normalize ключ имени пользователя
func normalize(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

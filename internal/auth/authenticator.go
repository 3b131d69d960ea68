package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode"

	"github.com/annel0/eldara-server/internal/logging"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 32
)

// Session результат успешного входа
type Session struct {
	User      *User
	Token     string
	ExpiresAt time.Time
	Created   bool // учётная запись создана этим входом
}

// Authenticator проверяет учётные данные и выпускает токены сессии.
// С autoRegister неизвестное имя регистрируется с переданным паролем.
type Authenticator struct {
	repo         UserRepository
	tokens       *TokenIssuer
	autoRegister bool
	logger       *logging.Logger
}

// NewAuthenticator создаёт аутентификатор
func NewAuthenticator(repo UserRepository, tokens *TokenIssuer, autoRegister bool) *Authenticator {
	return &Authenticator{
		repo:         repo,
		tokens:       tokens,
		autoRegister: autoRegister,
		logger:       logging.GetServerLogger(),
	}
}

// Tokens выпускающий токены
func (a *Authenticator) Tokens() *TokenIssuer { return a.tokens }

// Login проверяет пару имя/пароль. Ошибки ErrInvalidCredentials и ErrInvalidUsername
// означают отказ клиенту, остальные ошибки относятся к хранилищу.
func (a *Authenticator) Login(ctx context.Context, username, password string) (*Session, error) {
	if !ValidUsername(username) {
		return nil, ErrInvalidUsername
	}
	if password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := a.repo.GetUserByUsername(ctx, username)
	created := false
	switch {
	case errors.Is(err, ErrUserNotFound) && a.autoRegister:
		user, err = a.register(ctx, username, password)
		if err != nil {
			return nil, err
		}
		created = true
	case errors.Is(err, ErrUserNotFound):
		a.logger.Info("🔐 Вход отклонён: пользователь %s не найден", username)
		return nil, ErrInvalidCredentials
	case err != nil:
		return nil, fmt.Errorf("ошибка поиска пользователя: %w", err)
	default:
		if !CheckPassword(user.PasswordHash, password) {
			a.logger.Info("🔐 Вход отклонён: неверный пароль для %s", username)
			return nil, ErrInvalidCredentials
		}
		if err := a.repo.TouchLastLogin(ctx, user.ID); err != nil {
			a.logger.Warn("⚠️ Не удалось обновить время входа %s: %v", username, err)
		}
	}

	token, expiresAt, err := a.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("ошибка выпуска токена: %w", err)
	}
	a.logger.Info("✅ Пользователь %s (аккаунт %d) вошёл", user.Username, user.ID)
	return &Session{User: user, Token: token, ExpiresAt: expiresAt, Created: created}, nil
}

func (a *Authenticator) register(ctx context.Context, username, password string) (*User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("ошибка хеширования пароля: %w", err)
	}
	user, err := a.repo.CreateUser(ctx, username, hash, false)
	if errors.Is(err, ErrUserExists) {
		// параллельная регистрация того же имени
		user, err = a.repo.GetUserByUsername(ctx, username)
		if err != nil {
			return nil, fmt.Errorf("ошибка поиска пользователя: %w", err)
		}
		if !CheckPassword(user.PasswordHash, password) {
			return nil, ErrInvalidCredentials
		}
		return user, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка регистрации: %w", err)
	}
	a.logger.Info("🆕 Зарегистрирован аккаунт %d (%s)", user.ID, username)
	return user, nil
}

// ValidUsername длина 3..32, буквы, цифры, '_' и '-'
func ValidUsername(name string) bool {
	n := len([]rune(name))
	if n < MinUsernameLength || n > MaxUsernameLength {
		return false
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' {
			return false
		}
	}
	return true
}

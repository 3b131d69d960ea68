package auth

import "time"

// User учётная запись игрока или администратора.
// Id учётной записи используется как AccountID персонажей.
type User struct {
	ID           uint64    // Неизменяемый идентификатор
	Username     string    // Уникальное имя (без учёта регистра)
	PasswordHash string    // bcrypt хеш пароля
	CreatedAt    time.Time // Время создания
	LastLogin    time.Time // Последний успешный вход
	IsAdmin      bool      // Права администратора
}

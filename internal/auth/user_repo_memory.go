package auth

import (
	"context"
	"sync"
	"time"
)

// MemoryUserRepo потокобезопасное хранилище в памяти для тестов и одиночного сервера.
// Id выдаются по возрастанию начиная с 1.
type MemoryUserRepo struct {
	mu     sync.RWMutex
	users  map[string]*User // ключ = normalize(username)
	byID   map[uint64]*User
	nextID uint64
}

// NewMemoryUserRepo создаёт пустое хранилище
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		users:  make(map[string]*User),
		byID:   make(map[uint64]*User),
		nextID: 1,
	}
}

func (r *MemoryUserRepo) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[normalize(username)]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (r *MemoryUserRepo) CreateUser(ctx context.Context, username string, passwordHash string, isAdmin bool) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := normalize(username)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[key]; exists {
		return nil, ErrUserExists
	}

	now := time.Now().UTC()
	user := &User{
		ID:           r.nextID,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		LastLogin:    now,
		IsAdmin:      isAdmin,
	}
	r.nextID++
	r.users[key] = user
	r.byID[user.ID] = user
	cp := *user
	return &cp, nil
}

func (r *MemoryUserRepo) TouchLastLogin(ctx context.Context, userID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.LastLogin = time.Now().UTC()
	return nil
}

// Count количество учётных записей
func (r *MemoryUserRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

func (r *MemoryUserRepo) Close() error { return nil }

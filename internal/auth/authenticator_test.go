package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthenticator(t *testing.T, autoRegister bool) (*Authenticator, *MemoryUserRepo) {
	t.Helper()
	repo := NewMemoryUserRepo()
	tokens, err := NewTokenIssuer("secret", time.Hour)
	require.NoError(t, err)
	return NewAuthenticator(repo, tokens, autoRegister), repo
}

func TestLoginAutoRegistersThenChecksPassword(t *testing.T) {
	a, repo := newAuthenticator(t, true)
	ctx := context.Background()

	first, err := a.Login(ctx, "Sylwen", "hunter2")
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, uint64(1), first.User.ID)
	assert.Equal(t, 1, repo.Count())

	claims, err := a.Tokens().Validate(first.Token)
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, claims.AccountID)

	again, err := a.Login(ctx, "sylwen", "hunter2")
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, first.User.ID, again.User.ID, "имя без учёта регистра")

	_, err = a.Login(ctx, "Sylwen", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginWithoutAutoRegister(t *testing.T) {
	a, repo := newAuthenticator(t, false)
	ctx := context.Background()

	_, err := a.Login(ctx, "nobody", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Zero(t, repo.Count())

	hash, err := HashPassword("pw")
	require.NoError(t, err)
	_, err = repo.CreateUser(ctx, "Thalor", hash, false)
	require.NoError(t, err)

	s, err := a.Login(ctx, "thalor", "pw")
	require.NoError(t, err)
	assert.Equal(t, "Thalor", s.User.Username)
}

func TestLoginRejectsBadInput(t *testing.T) {
	a, _ := newAuthenticator(t, true)
	ctx := context.Background()

	cases := []struct {
		name     string
		username string
		password string
		err      error
	}{
		{"short name", "ab", "pw", ErrInvalidUsername},
		{"spaces", "two words", "pw", ErrInvalidUsername},
		{"empty password", "valid_name", "", ErrInvalidCredentials},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := a.Login(ctx, tc.username, tc.password)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestMemoryRepoUniqueness(t *testing.T) {
	repo := NewMemoryUserRepo()
	ctx := context.Background()

	u, err := repo.CreateUser(ctx, "Aelric", "h", false)
	require.NoError(t, err)
	_, err = repo.CreateUser(ctx, "AELRIC", "h", false)
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = repo.GetUserByUsername(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)

	assert.NoError(t, repo.TouchLastLogin(ctx, u.ID))
	assert.ErrorIs(t, repo.TouchLastLogin(ctx, 99), ErrUserNotFound)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("secret")
	require.NoError(t, err)
	assert.NotEqual(t, "secret", hash)
	assert.True(t, CheckPassword(hash, "secret"))
	assert.False(t, CheckPassword(hash, "Secret"))
}

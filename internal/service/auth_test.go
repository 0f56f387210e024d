package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/argon2"

	"github.com/myfreehouseplans/catalog/internal/model"
)

func newTestAuthService(t *testing.T) (*AuthService, *fakeUserStore, *fakeSessionStore) {
	t.Helper()
	users := &fakeUserStore{users: make(map[int64]*model.User)}
	sessions := newFakeSessionStore()
	svc := NewAuthService(users, sessions, time.Hour, testLogger())

	_, err := svc.CreateAdmin(context.Background(), AdminInput{
		Username: "admin",
		Email:    "Admin@Example.com",
		Password: "correct horse battery",
	})
	require.NoError(t, err)
	return svc, users, sessions
}

func TestAuthLogin(t *testing.T) {
	t.Parallel()

	svc, users, _ := newTestAuthService(t)
	ctx := context.Background()

	for _, login := range []string{"admin", "admin@example.com"} {
		session, user, err := svc.Login(ctx, LoginInput{Username: login, Password: "correct horse battery"})
		require.NoError(t, err, login)
		assert.Equal(t, "admin", user.Username)
		assert.NotEmpty(t, session.CSRFToken)
		assert.NotNil(t, user.LastLogin)
	}

	_, _, err := svc.Login(ctx, LoginInput{Username: "admin", Password: "wrong password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, LoginInput{Username: "nobody", Password: "whatever1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	users.users[1].IsActive = false
	_, _, err = svc.Login(ctx, LoginInput{Username: "admin", Password: "correct horse battery"})
	assert.ErrorIs(t, err, ErrUserInactive)
}

func TestAuthLogin_UpgradesLegacyHash(t *testing.T) {
	t.Parallel()

	svc, users, _ := newTestAuthService(t)
	ctx := context.Background()

	salt := []byte("0123456789abcdef")
	key := argon2.IDKey([]byte("correct horse battery"), salt, 2, 19456, 1, 32)
	legacy := fmt.Sprintf("$argon2id$v=%d$m=19456,t=2,p=1$%s$%s", argon2.Version,
		base64.RawStdEncoding.EncodeToString(salt), base64.RawStdEncoding.EncodeToString(key))
	users.users[1].PasswordHash = legacy

	_, _, err := svc.Login(ctx, LoginInput{Username: "admin", Password: "correct horse battery"})
	require.NoError(t, err)

	upgraded := users.users[1].PasswordHash
	assert.NotEqual(t, legacy, upgraded)
	assert.Contains(t, upgraded, "m=65536,t=1,p=4")

	_, _, err = svc.Login(ctx, LoginInput{Username: "admin", Password: "correct horse battery"})
	assert.NoError(t, err)
}

func TestAuthSession(t *testing.T) {
	t.Parallel()

	svc, users, sessions := newTestAuthService(t)
	ctx := context.Background()

	session, _, err := svc.Login(ctx, LoginInput{Username: "admin", Password: "correct horse battery"})
	require.NoError(t, err)

	_, user, err := svc.Session(ctx, session.Token)
	require.NoError(t, err)
	assert.EqualValues(t, 1, user.ID)
	assert.Equal(t, 1, sessions.touched)

	_, _, err = svc.Session(ctx, "unknown")
	assert.ErrorIs(t, err, ErrSessionExpired)

	users.users[1].Role = model.RoleCustomer
	_, _, err = svc.Session(ctx, session.Token)
	assert.ErrorIs(t, err, ErrUserInactive)
	_, ok := sessions.sessions[session.Token]
	assert.False(t, ok, "a demoted user's session is dropped")

	require.NoError(t, svc.Logout(ctx, ""))
}

func TestAuthEnsureAdmin(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	created, err := svc.EnsureAdmin(ctx, AdminInput{Username: "admin", Email: "other@example.com", Password: "long enough"})
	require.NoError(t, err)
	assert.False(t, created)

	created, err = svc.EnsureAdmin(ctx, AdminInput{Username: "second", Email: "second@example.com", Password: "long enough"})
	require.NoError(t, err)
	assert.True(t, created)

	_, err = svc.CreateAdmin(ctx, AdminInput{Username: "third", Email: "second@example.com", Password: "long enough"})
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = svc.CreateAdmin(ctx, AdminInput{Username: "fourth", Email: "fourth@example.com", Password: "short"})
	assert.ErrorIs(t, err, ErrValidation)
}

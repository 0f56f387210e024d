package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

// ErrSessionNotFound is returned for unknown or expired sessions.
var ErrSessionNotFound = errors.New("session not found")

// Session is the server side state of a signed-in admin.
type Session struct {
	Token     string    `json:"-"`
	UserID    int64     `json:"user_id"`
	CSRFToken string    `json:"csrf_token"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateSession stores a new session and returns it with a fresh token.
func (c *Cache) CreateSession(ctx context.Context, userID int64, csrfToken string, ttl time.Duration) (*Session, error) {
	s := &Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		CSRFToken: csrfToken,
		CreatedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	if err := c.client.Set(ctx, sessionKeyPrefix+s.Token, data, ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	return s, nil
}

// GetSession loads a session by token.
func (c *Cache) GetSession(ctx context.Context, token string) (*Session, error) {
	if _, err := uuid.Parse(token); err != nil {
		return nil, ErrSessionNotFound
	}

	data, err := c.client.Get(ctx, sessionKeyPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, ErrSessionNotFound
	}
	s.Token = token
	return &s, nil
}

// TouchSession slides the session expiry forward.
func (c *Cache) TouchSession(ctx context.Context, token string, ttl time.Duration) error {
	return c.client.Expire(ctx, sessionKeyPrefix+token, ttl).Err()
}

// DeleteSession signs the session out.
func (c *Cache) DeleteSession(ctx context.Context, token string) error {
	return c.client.Del(ctx, sessionKeyPrefix+token).Err()
}

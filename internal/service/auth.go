package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/myfreehouseplans/catalog/internal/auth"
	"github.com/myfreehouseplans/catalog/internal/cache"
	"github.com/myfreehouseplans/catalog/internal/model"
	"github.com/myfreehouseplans/catalog/internal/repository"
)

// LoginInput is the admin login form.
type LoginInput struct {
	Username string `form:"username" validate:"required,max=80"`
	Password string `form:"password" validate:"required,max=256"`
}

// AdminInput creates an admin account.
type AdminInput struct {
	Username string `form:"username" validate:"required,min=3,max=80"`
	Email    string `form:"email" validate:"required,email,max=120"`
	Password string `form:"password" validate:"required,min=8,max=256"`
}

// AuthService signs admins in and resolves their sessions.
type AuthService struct {
	users      UserStore
	sessions   SessionStore
	sessionTTL time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(users UserStore, sessions SessionStore, sessionTTL time.Duration, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:      users,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		logger:     logger.With("component", "service.auth"),
		now:        time.Now,
	}
}

// SessionTTL is the sliding lifetime of admin sessions.
func (s *AuthService) SessionTTL() time.Duration {
	return s.sessionTTL
}

// Login checks credentials and opens a session. The username may also be the email.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*cache.Session, *model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := validateStruct(in); err != nil {
		return nil, nil, err
	}

	user, err := s.lookup(ctx, in.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}

	ok, err := auth.VerifyPassword(in.Password, user.PasswordHash)
	if err != nil {
		s.logger.Warn("stored password hash is unreadable", "user_id", user.ID, "error", err)
		return nil, nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, nil, ErrInvalidCredentials
	}
	if !user.IsActive || !user.IsAdmin() {
		return nil, nil, ErrUserInactive
	}
	if auth.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user.ID, in.Password)
	}

	csrf, err := auth.GenerateToken(auth.DefaultTokenBytes)
	if err != nil {
		return nil, nil, err
	}
	session, err := s.sessions.CreateSession(ctx, user.ID, csrf, s.sessionTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open session: %w", err)
	}

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to record last login", "user_id", user.ID, "error", err)
	} else {
		user.LastLogin = &now
	}

	s.logger.Info("admin signed in", "user_id", user.ID)
	return session, user, nil
}

func (s *AuthService) lookup(ctx context.Context, login string) (*model.User, error) {
	if strings.Contains(login, "@") {
		return s.users.GetByEmail(ctx, strings.ToLower(login))
	}
	return s.users.GetByUsername(ctx, login)
}

// Logout deletes the session.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Session resolves a session token to its admin and slides the expiry.
func (s *AuthService) Session(ctx context.Context, token string) (*cache.Session, *model.User, error) {
	session, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, cache.ErrSessionNotFound) {
			return nil, nil, ErrSessionExpired
		}
		return nil, nil, fmt.Errorf("failed to load session: %w", err)
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = s.sessions.DeleteSession(ctx, token)
			return nil, nil, ErrSessionExpired
		}
		return nil, nil, fmt.Errorf("failed to load session user: %w", err)
	}
	if !user.IsActive || !user.IsAdmin() {
		_ = s.sessions.DeleteSession(ctx, token)
		return nil, nil, ErrUserInactive
	}

	if err := s.sessions.TouchSession(ctx, token, s.sessionTTL); err != nil {
		s.logger.Warn("failed to extend session", "user_id", user.ID, "error", err)
	}
	return session, user, nil
}

// rehash upgrades a stored hash to the current cost settings.
// Failure only costs the upgrade, never the login.
func (s *AuthService) rehash(ctx context.Context, userID int64, password string) {
	hash, err := auth.HashPassword(password)
	if err == nil {
		err = s.users.UpdatePassword(ctx, userID, hash)
	}
	if err != nil {
		s.logger.Warn("failed to upgrade password hash", "user_id", userID, "error", err)
		return
	}
	s.logger.Info("password hash upgraded", "user_id", userID)
}

// CreateAdmin creates an active super admin.
func (s *AuthService) CreateAdmin(ctx context.Context, in AdminInput) (*model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return nil, fieldError("password", err.Error())
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         model.RoleSuperAdmin,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}

	s.logger.Info("admin created", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// EnsureAdmin creates the bootstrap admin unless the username is taken.
// It reports whether an account was created.
func (s *AuthService) EnsureAdmin(ctx context.Context, in AdminInput) (bool, error) {
	if _, err := s.users.GetByUsername(ctx, strings.TrimSpace(in.Username)); err == nil {
		return false, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return false, fmt.Errorf("failed to look up admin: %w", err)
	}

	if _, err := s.CreateAdmin(ctx, in); err != nil {
		if errors.Is(err, ErrUserExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ChangePassword replaces a user's password.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, password string) error {
	if err := auth.ValidatePassword(password); err != nil {
		return fieldError("password", err.Error())
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/store"
)

const (
	// DefaultSessionTTL is how long a session lives without activity.
	DefaultSessionTTL = 30 * 24 * time.Hour
	sessionTokenBytes = 32
	sessionCacheTTL   = 5 * time.Minute
)

// dummyHash is compared against when the username is unknown so both login
// failures cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("fintrack-dummy-password"), bcrypt.DefaultCost)

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		v := core.NewValidationError()
		v.Add("password", "password must be at most 72 bytes")
		return "", v
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// CheckPassword reports whether password matches the bcrypt hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateSessionToken returns an opaque url-safe token of 32 random bytes.
func GenerateSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

type AuthConfig struct {
	SessionTTL time.Duration
	CacheSize  int
}

// Authenticated is the result of resolving a session token.
type Authenticated struct {
	User    core.User
	Session core.Session
	// Renewed is set when the session passed half of its lifetime and its
	// expiry was pushed forward.
	Renewed bool
}

// AuthService registers users and manages sessions. Resolved sessions are
// kept in a short-lived cache in front of the session store.
type AuthService struct {
	store    store.Store
	sessions *cache.LRUCache[core.Session]
	ttl      time.Duration
	logger   *log.Logger
	now      func() time.Time
}

func NewAuthService(st store.Store, cfg AuthConfig, logger *log.Logger) *AuthService {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1000
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	s := &AuthService{
		store:  st,
		ttl:    cfg.SessionTTL,
		logger: logger.WithComponent(log.ComponentAuth),
		now:    time.Now,
	}
	s.sessions = cache.NewLRUCache[core.Session](cfg.CacheSize, sessionCacheTTL).WithClock(func() time.Time { return s.now() })
	return s
}

// WithClock replaces the time source for session expiry.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// SessionTTL is the lifetime given to new and renewed sessions.
func (s *AuthService) SessionTTL() time.Duration {
	return s.ttl
}

// SessionCache exposes the session cache for periodic cleanup.
func (s *AuthService) SessionCache() *cache.LRUCache[core.Session] {
	return s.sessions
}

// Register creates a user from reg. The role defaults to employee. Only an
// admin caller may create another admin, except for the very first user.
func (s *AuthService) Register(ctx context.Context, caller *core.User, reg core.Registration) (core.User, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.TrimSpace(reg.Email)
	reg.FullName = strings.TrimSpace(reg.FullName)
	if err := reg.Validate(); err != nil {
		return core.User{}, err
	}
	if reg.Role == "" {
		reg.Role = core.RoleEmployee
	}
	if reg.Role == core.RoleAdmin && (caller == nil || !caller.IsAdmin()) {
		users, err := s.store.ListUsers(ctx)
		if err != nil {
			return core.User{}, err
		}
		if len(users) > 0 {
			return core.User{}, core.ErrForbidden
		}
	}

	hash, err := HashPassword(reg.Password)
	if err != nil {
		return core.User{}, err
	}
	u, err := s.store.CreateUser(ctx, core.User{
		Username:     reg.Username,
		Email:        reg.Email,
		PasswordHash: hash,
		FullName:     reg.FullName,
		Role:         reg.Role,
	})
	if err != nil {
		return core.User{}, err
	}

	s.logger.InfoContext(ctx, "User registered", log.FieldUserID, u.ID, "role", string(u.Role))
	return u, nil
}

// Login checks the credentials and opens a session. Unknown users and wrong
// passwords fail with the same ErrUnauthenticated.
func (s *AuthService) Login(ctx context.Context, username, password string) (core.User, core.Session, error) {
	u, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, core.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return core.User{}, core.Session{}, core.ErrUnauthenticated
	}
	if err != nil {
		return core.User{}, core.Session{}, err
	}
	if !CheckPassword(password, u.PasswordHash) {
		s.logger.InfoContext(ctx, "Login rejected", log.FieldUserID, u.ID)
		return core.User{}, core.Session{}, core.ErrUnauthenticated
	}

	token, err := GenerateSessionToken()
	if err != nil {
		return core.User{}, core.Session{}, err
	}
	now := s.now().UTC().Truncate(time.Second)
	sess := core.Session{Token: token, UserID: u.ID, ExpiresAt: now.Add(s.ttl), CreatedAt: now}
	if err := s.store.CreateSession(ctx, token, u.ID, sess.ExpiresAt); err != nil {
		return core.User{}, core.Session{}, err
	}
	s.sessions.SetUntil(token, sess, sess.ExpiresAt)

	s.logger.InfoContext(ctx, "User logged in", log.FieldUserID, u.ID)
	return u, sess, nil
}

// Authenticate resolves token to its user, renewing the session once it
// is past half of its lifetime.
func (s *AuthService) Authenticate(ctx context.Context, token string) (Authenticated, error) {
	if token == "" {
		return Authenticated{}, core.ErrUnauthenticated
	}

	sess, ok := s.sessions.Get(token)
	if !ok {
		var err error
		sess, err = s.store.GetSession(ctx, token)
		if errors.Is(err, core.ErrNotFound) {
			return Authenticated{}, core.ErrUnauthenticated
		}
		if err != nil {
			return Authenticated{}, err
		}
	}

	now := s.now().UTC()
	if !now.Before(sess.ExpiresAt) {
		s.sessions.Delete(token)
		if err := s.store.DeleteSession(ctx, token); err != nil {
			s.logger.WarnContext(ctx, "Failed to delete expired session", log.FieldError, err)
		}
		return Authenticated{}, core.ErrUnauthenticated
	}

	u, err := s.store.GetUser(ctx, sess.UserID)
	if errors.Is(err, core.ErrNotFound) {
		s.sessions.Delete(token)
		return Authenticated{}, core.ErrUnauthenticated
	}
	if err != nil {
		return Authenticated{}, err
	}

	res := Authenticated{User: u, Session: sess}
	if sess.ExpiresAt.Sub(now) < s.ttl/2 {
		expiresAt := now.Truncate(time.Second).Add(s.ttl)
		if err := s.store.RenewSession(ctx, token, expiresAt); err != nil {
			// the current session is still valid
			s.logger.WarnContext(ctx, "Failed to renew session", log.FieldUserID, u.ID, log.FieldError, err)
		} else {
			res.Session.ExpiresAt = expiresAt
			res.Renewed = true
		}
	}
	s.sessions.SetUntil(token, res.Session, res.Session.ExpiresAt)
	return res, nil
}

// Logout ends the session. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	s.sessions.Delete(token)
	return s.store.DeleteSession(ctx, token)
}

// SweepExpiredSessions deletes expired sessions from the store.
func (s *AuthService) SweepExpiredSessions(ctx context.Context) (int64, error) {
	return s.store.DeleteExpiredSessions(ctx, s.now().UTC())
}

// ListUsers returns every user. Only admins may list users.
func (s *AuthService) ListUsers(ctx context.Context, caller core.User) ([]core.User, error) {
	if !caller.IsAdmin() {
		return nil, core.ErrForbidden
	}
	return s.store.ListUsers(ctx)
}

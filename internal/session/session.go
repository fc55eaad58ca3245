// Package session manages dashboard sign-ins. A session binds a browser
// cookie to the backend bearer token obtained at login; the token is kept
// sealed in the local repository
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"parkadmin/internal/domain"
	"parkadmin/internal/repository"
)

var (
	// ErrRoleNotAllowed is returned at sign-in for accounts that are
	// neither ADMIN nor STAFF
	ErrRoleNotAllowed = errors.New("session: account is not allowed to use the dashboard")
	ErrNotFound       = errors.New("session: not found")
	ErrExpired        = errors.New("session: expired")
)

// Session is a signed-in dashboard user. It implements gateway.TokenSource
type Session struct {
	ID        string
	UserID    string
	Email     string
	Role      string
	ExpiresAt time.Time
	token     string
}

// Token returns the bearer token, or "" once the session has expired
func (s *Session) Token() string {
	if s == nil || !time.Now().Before(s.ExpiresAt) {
		return ""
	}
	return s.token
}

func (s *Session) IsAdmin() bool { return s.Role == domain.RoleAdmin }

// Config holds configuration for a Store
type Config struct {
	Secret string
	TTL    time.Duration
	Logger *slog.Logger
	// Now defaults to time.Now
	Now func() time.Time
}

// Store creates, resolves and ends sessions
type Store struct {
	repo   repository.SessionRepository
	sealer *Sealer
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a store over repo
func NewStore(repo repository.SessionRepository, cfg Config) (*Store, error) {
	sealer, err := NewSealer(cfg.Secret)
	if err != nil {
		return nil, err
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Hour
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Store{repo: repo, sealer: sealer, ttl: cfg.TTL, logger: logger, now: now}, nil
}

// Create opens a session for a freshly issued token. The session ends at
// the earliest of the configured TTL, backendExpiry and the token's exp
// claim; zero times are ignored
func (s *Store) Create(ctx context.Context, email, token string, backendExpiry time.Time) (*Session, error) {
	claims, err := ParseClaims(token)
	if err != nil {
		return nil, err
	}
	role := claims.Role()
	if role == "" {
		return nil, ErrRoleNotAllowed
	}

	now := s.now()
	expires := now.Add(s.ttl)
	for _, t := range []time.Time{backendExpiry, claims.ExpiresAt} {
		if !t.IsZero() && t.Before(expires) {
			expires = t
		}
	}
	if !now.Before(expires) {
		return nil, ErrExpired
	}

	sealed, err := s.sealer.Seal(token)
	if err != nil {
		return nil, err
	}
	if email == "" {
		email = claims.Subject
	}
	record := &domain.SessionRecord{
		ID:          uuid.NewString(),
		UserID:      claims.UserID,
		Email:       email,
		Role:        role,
		SealedToken: sealed,
		ExpiresAt:   expires,
		CreatedAt:   now,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "session created", "user", record.UserID, "role", role, "expires_at", expires)
	return &Session{
		ID:        record.ID,
		UserID:    record.UserID,
		Email:     record.Email,
		Role:      role,
		ExpiresAt: expires,
		token:     token,
	}, nil
}

// Get resolves a session id. Expired sessions are removed and reported as
// ErrExpired
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrNotFound
	}

	now := s.now()
	if record.Expired(now) {
		if err := s.repo.Delete(ctx, id); err != nil {
			s.logger.WarnContext(ctx, "failed to remove expired session", "error", err)
		}
		return nil, ErrExpired
	}

	token, err := s.sealer.Open(record.SealedToken)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	if err := s.repo.Touch(ctx, id, now); err != nil {
		s.logger.WarnContext(ctx, "failed to touch session", "error", err)
	}

	return &Session{
		ID:        record.ID,
		UserID:    record.UserID,
		Email:     record.Email,
		Role:      record.Role,
		ExpiresAt: record.ExpiresAt,
		token:     token,
	}, nil
}

// Alive reports whether id names an unexpired session. Unlike Get it does
// not touch the session
func (s *Store) Alive(ctx context.Context, id string) (bool, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return record != nil && !record.Expired(s.now()), nil
}

// Delete ends a session. Unknown ids are not an error
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Sweep removes expired sessions
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "expired sessions removed", "count", n)
	}
	return n, nil
}

// Active returns the number of unexpired sessions
func (s *Store) Active(ctx context.Context) (int, error) {
	return s.repo.CountActive(ctx, s.now())
}

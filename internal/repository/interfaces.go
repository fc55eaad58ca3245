// Package repository defines interfaces for local persistence. Business data
// lives in the remote backend; only dashboard sessions and preferences are
// stored here
package repository

import (
	"context"
	"time"

	"parkadmin/internal/domain"
)

// SessionRepository defines the interface for dashboard session storage
type SessionRepository interface {
	Create(ctx context.Context, session *domain.SessionRecord) error
	// GetByID returns nil, nil when no session has that id
	GetByID(ctx context.Context, id string) (*domain.SessionRecord, error)
	Touch(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	CountActive(ctx context.Context, now time.Time) (int, error)
}

// SettingsRepository handles key-value preferences
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// LocationKey returns the settings key holding userID's selected location
func LocationKey(userID string) string {
	return "location:" + userID
}

// Repositories bundles all repository interfaces
type Repositories struct {
	Sessions SessionRepository
	Settings SettingsRepository
}

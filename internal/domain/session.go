package domain

import "time"

// SessionRecord is a signed-in dashboard session as persisted locally.
// The backend bearer token is only ever stored sealed
type SessionRecord struct {
	ID          string
	UserID      string
	Email       string
	Role        string
	SealedToken []byte
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Expired reports whether the session is past its expiry at now
func (s *SessionRecord) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

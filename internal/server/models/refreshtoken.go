package models

import "time"

// RefreshToken is a persisted long-lived credential. The opaque Token value
// acts as the primary key; a token is usable only while Revoked is false and
// ExpiresAt is in the future.
type RefreshToken struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// Active reports whether the token is still usable at the given moment.
func (t *RefreshToken) Active(now time.Time) bool {
	return !t.Revoked && t.ExpiresAt.After(now)
}

// Package refreshtokens declares the server-side repository contract for
// managing refresh tokens in persistent storage.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/simpleauth/internal/server/models"
)

// Repository defines operations for issuing, validating, and rotating
// refresh tokens.
type Repository interface {
	// Create stores a new refresh token for userID with an expiry of
	// now+validity. A duplicate token value must be reported as
	// common.ErrorAlreadyExists so the caller can retry with a fresh value.
	Create(ctx context.Context, userID string, token string, validity time.Duration) error

	// Find looks up a refresh token by its opaque token string and returns
	// the full row, including the owning user id, in one round trip.
	// Implementations return common.ErrorNotFound when the token is absent.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// RevokeIfActive atomically marks the token revoked and returns the
	// owning user id, but only if the token is currently active (not
	// revoked, not expired). When the token is absent, already revoked, or
	// expired, it returns common.ErrorNotFound. This compare-and-swap is the
	// serialization point for concurrent rotation: for a given token value,
	// exactly one caller can win.
	RevokeIfActive(ctx context.Context, token string) (string, error)

	// DeleteExpired prunes tokens whose expiry is at or before now.
	// It returns the number of rows removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

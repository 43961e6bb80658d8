// Package auth creates and verifies signed access tokens (JWT, HS256).
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/simpleauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrEmptySecret is returned when token signing is attempted without a
// configured secret. This is a misconfiguration, not a per-request error.
var ErrEmptySecret = errors.New("empty signing secret")

// Claims is the set of claims embedded into access tokens: the registered
// claims (subject, jti, iat, exp) and nothing else. Password material must
// never appear here.
type Claims struct {
	jwt.RegisteredClaims
}

// GenerateToken mints a signed access token for userID, expiring after
// validityDuration. Each token carries a fresh random jti so otherwise
// identical tokens for the same subject remain distinguishable.
func GenerateToken(userID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	if len(secretKey) == 0 {
		return "", ErrEmptySecret
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GetUserIDFromToken verifies the signature and expiry of tokenString and
// returns the subject. No clock-skew leeway is granted: a token is rejected
// the moment its exp passes.
func GetUserIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, common.ErrInvalidToken
		}
		return secretKey, nil
	})
	if err != nil {
		return "", common.ErrInvalidToken
	}

	if !token.Valid || claims.Subject == "" {
		return "", common.ErrInvalidToken
	}

	return claims.Subject, nil
}

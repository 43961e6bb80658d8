// Package services contains server-side business logic. This file implements
// AuthService, which handles login and refresh: verifying credentials,
// minting JWTs, and issuing/rotating server-stored refresh tokens.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/simpleauth/internal/common"
	"github.com/dmitrijs2005/simpleauth/internal/dbx"
	"github.com/dmitrijs2005/simpleauth/internal/server/auth"
	"github.com/dmitrijs2005/simpleauth/internal/server/config"
	"github.com/dmitrijs2005/simpleauth/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

// AccessTokenResponse is the terminal result of a successful login or
// refresh. ExpiresIn is the access-token lifetime in seconds.
type AccessTokenResponse struct {
	AccessToken  string
	ExpiresIn    int64
	RefreshToken string
}

// dummyPasswordHash is a valid bcrypt hash compared against when the user is
// unknown, so the missing-user path costs about as much as a real
// verification.
var dummyPasswordHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// tokenIssueAttempts bounds retries when a generated refresh token value
// collides with an existing row. With 64 random bytes a collision is
// effectively impossible, but a collision must trigger a retry rather than
// silently reusing the value.
const tokenIssueAttempts = 3

// AuthService provides the authentication operations:
// - Login: verify credentials and mint a token pair
// - Refresh: rotate refresh tokens and mint new access tokens
type AuthService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
}

// NewAuthService constructs an AuthService using repositories and server config.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *AuthService {
	return &AuthService{
		db:                           db,
		repomanager:                  m,
		jwtSecret:                    []byte(cfg.JwtKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
	}
}

// Login resolves the user by username, falling back to email, verifies the
// password, and returns a fresh token pair. Unknown user and wrong password
// both yield common.ErrorUnauthorized with no further detail and no
// persistence write.
func (s *AuthService) Login(ctx context.Context, login string, password string) (*AccessTokenResponse, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByUserName(ctx, login)
	if errors.Is(err, common.ErrorNotFound) {
		user, err = repo.GetByEmail(ctx, login)
	}
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// burn a comparison so the response time does not reveal
			// whether the account exists
			_ = bcrypt.CompareHashAndPassword(dummyPasswordHash, []byte(password))
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("%w: resolving user: %w", common.ErrorInternal, err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, common.ErrorUnauthorized
	}

	return s.generateTokenPair(ctx, user.ID, s.db)
}

// Refresh validates the presented refresh token and rotates it
// transactionally: the old token is revoked and a replacement is inserted in
// the same transaction, so either both happen or neither does. An absent,
// expired, or already revoked token yields common.ErrorUnauthorized; after a
// successful call the presented value can never validate again.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AccessTokenResponse, error) {
	var pair *AccessTokenResponse

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		userID, err := s.repomanager.RefreshTokens(tx).RevokeIfActive(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrorUnauthorized
			}
			return fmt.Errorf("%w: rotating refresh token: %w", common.ErrorInternal, err)
		}

		pair, err = s.generateTokenPair(ctx, userID, tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	return pair, nil
}

// generateTokenPair mints an access token and persists a new refresh token
// through the given DBTX. A refresh-token value collision is retried with a
// fresh value.
func (s *AuthService) generateTokenPair(ctx context.Context, userID string, db dbx.DBTX) (*AccessTokenResponse, error) {
	accessToken, err := auth.GenerateToken(userID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("%w: signing access token: %w", common.ErrorInternal, err)
	}

	repo := s.repomanager.RefreshTokens(db)

	var refreshToken string
	for attempt := 0; ; attempt++ {
		refreshToken = common.MakeRandB64String(common.RefreshTokenByteLength)
		err = repo.Create(ctx, userID, refreshToken, s.refreshTokenValidityDuration)
		if err == nil {
			break
		}
		if !errors.Is(err, common.ErrorAlreadyExists) || attempt+1 >= tokenIssueAttempts {
			return nil, fmt.Errorf("%w: storing refresh token: %w", common.ErrorInternal, err)
		}
	}

	return &AccessTokenResponse{
		AccessToken:  accessToken,
		ExpiresIn:    int64(s.accessTokenValidityDuration.Seconds()),
		RefreshToken: refreshToken,
	}, nil
}

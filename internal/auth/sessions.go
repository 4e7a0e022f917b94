package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/lostfound/internal/model"
	"github.com/erazemk/lostfound/internal/store"
)

// ErrTokenRevoked is returned for tokens invalidated by sign-out.
var ErrTokenRevoked = errors.New("token revoked")

// Sessions issues and verifies session tokens. Revocations are kept in the
// database so sign-out survives restarts.
type Sessions struct {
	db     *sql.DB
	secret string
}

// NewSessions creates a session manager, loading (or generating) the
// signing secret from the settings table.
func NewSessions(ctx context.Context, db *sql.DB) (*Sessions, error) {
	secret, err := store.GetJWTSecret(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("loading signing secret: %w", err)
	}
	return &Sessions{db: db, secret: secret}, nil
}

// Issue returns a signed token for sess.
func (s *Sessions) Issue(sess *model.Session) (string, error) {
	return GenerateToken(s.secret, sess)
}

// Verify validates the token and checks it has not been revoked.
func (s *Sessions) Verify(ctx context.Context, token string) (*Claims, error) {
	claims, err := ValidateToken(s.secret, token)
	if err != nil {
		return nil, err
	}
	revoked, err := store.IsTokenRevoked(ctx, s.db, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("checking revocation: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Revoke invalidates the token identified by claims until it would have
// expired anyway.
func (s *Sessions) Revoke(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ID == "" {
		return nil
	}
	if claims.ExpiresAt == nil {
		return fmt.Errorf("token %s has no expiry", claims.ID)
	}
	return store.RevokeToken(ctx, s.db, claims.ID, claims.ExpiresAt.Time)
}

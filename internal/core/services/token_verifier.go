package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/vncsmyrnk/usersync/internal/core/domain"
	"github.com/vncsmyrnk/usersync/internal/core/ports"
)

// TokenVerifier validates access tokens without calling the identity
// service. Any process holding the access secret can run one. The denylist
// is optional; when nil verification is purely stateless.
type TokenVerifier struct {
	codec        ports.TokenCodec
	denylist     ports.TokenDenylist
	accessSecret []byte
}

func NewTokenVerifier(codec ports.TokenCodec, denylist ports.TokenDenylist, accessSecret []byte) *TokenVerifier {
	return &TokenVerifier{
		codec:        codec,
		denylist:     denylist,
		accessSecret: accessSecret,
	}
}

func (v *TokenVerifier) ValidateAccess(ctx context.Context, accessToken string) (domain.Claims, error) {
	token, err := v.codec.Verify(accessToken, v.accessSecret)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			return domain.Claims{}, fmt.Errorf("%w: %w", domain.ErrAccessExpired, err)
		}
		return domain.Claims{}, fmt.Errorf("%w: %w", domain.ErrAccessInvalid, err)
	}

	revoked, err := v.isRevoked(ctx, accessToken)
	if err != nil {
		return domain.Claims{}, err
	}
	if revoked {
		return domain.Claims{}, fmt.Errorf("%w: %w", domain.ErrAccessInvalid, domain.ErrTokenRevoked)
	}

	return token.Claims, nil
}

func (v *TokenVerifier) isRevoked(ctx context.Context, token string) (bool, error) {
	if v.denylist == nil {
		return false, nil
	}
	revoked, err := v.denylist.IsRevoked(ctx, hashToken(token))
	if err != nil {
		return false, fmt.Errorf("failed to check token denylist: %w", err)
	}
	return revoked, nil
}

func (v *TokenVerifier) revoke(ctx context.Context, token string, expiresAt, now time.Time) error {
	if v.denylist == nil {
		return nil
	}
	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		return nil
	}
	if err := v.denylist.Revoke(ctx, hashToken(token), ttl); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

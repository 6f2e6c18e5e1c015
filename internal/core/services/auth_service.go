package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vncsmyrnk/usersync/internal/core/domain"
	"github.com/vncsmyrnk/usersync/internal/core/ports"
)

type TokenSettings struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type AuthService struct {
	*TokenVerifier
	store    ports.CredentialStore
	codec    ports.TokenCodec
	settings TokenSettings
	now      func() time.Time
}

func NewAuthService(store ports.CredentialStore, codec ports.TokenCodec, denylist ports.TokenDenylist, settings TokenSettings) *AuthService {
	return &AuthService{
		TokenVerifier: NewTokenVerifier(codec, denylist, settings.AccessSecret),
		store:         store,
		codec:         codec,
		settings:      settings,
		now:           time.Now,
	}
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	// VerifyPassword runs the full hash comparison for a nil user too.
	if !s.store.VerifyPassword(user, password) || user == nil {
		return nil, domain.ErrInvalidCredentials
	}

	pair, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	return &domain.LoginResult{User: user.PublicProfile(), TokenPair: *pair}, nil
}

// Refresh mints a new pair from the stored user record, so a role change
// takes effect on the next refresh rather than at refresh-token expiry.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	token, err := s.codec.Verify(refreshToken, s.settings.RefreshSecret)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", domain.ErrRefreshExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrRefreshInvalid, err)
	}

	revoked, err := s.isRevoked(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, fmt.Errorf("%w: %w", domain.ErrRefreshInvalid, domain.ErrTokenRevoked)
	}

	user, err := s.store.FindByID(ctx, token.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRefreshInvalid, domain.ErrUserNotFound)
	}

	return s.issue(user)
}

// Logout revokes whichever of the two tokens still verify. Without a
// denylist there is nothing to revoke and tokens live until they expire.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if s.denylist == nil {
		return nil
	}

	now := s.now()
	if accessToken != "" {
		if token, err := s.codec.Verify(accessToken, s.settings.AccessSecret); err == nil {
			if err := s.revoke(ctx, accessToken, token.ExpiresAt, now); err != nil {
				return err
			}
		}
	}
	if refreshToken != "" {
		if token, err := s.codec.Verify(refreshToken, s.settings.RefreshSecret); err == nil {
			if err := s.revoke(ctx, refreshToken, token.ExpiresAt, now); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *AuthService) issue(user *domain.User) (*domain.TokenPair, error) {
	claims := user.Claims()

	accessToken, err := s.codec.Sign(claims, s.settings.AccessSecret, s.settings.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := s.codec.Sign(claims, s.settings.RefreshSecret, s.settings.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &domain.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

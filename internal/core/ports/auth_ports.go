package ports

import (
	"context"
	"time"

	"github.com/vncsmyrnk/usersync/internal/core/domain"
)

// TokenCodec signs and verifies compact credential tokens. Verify fails with
// domain.ErrTokenExpired or domain.ErrTokenInvalid.
type TokenCodec interface {
	Sign(claims domain.Claims, secret []byte, ttl time.Duration) (string, error)
	Verify(token string, secret []byte) (domain.Token, error)
}

// TokenDenylist holds revoked tokens until they would have expired anyway.
type TokenDenylist interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type AccessValidator interface {
	ValidateAccess(ctx context.Context, accessToken string) (domain.Claims, error)
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshInput struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type AuthService interface {
	AccessValidator
	Login(ctx context.Context, email, password string) (*domain.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
}

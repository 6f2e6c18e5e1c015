// Package token implements the stateless token codec on HS256 JWTs.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vncsmyrnk/usersync/internal/core/domain"
)

type claims struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type Option func(*Codec)

// WithClock replaces time.Now for both signing and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// WithIssuer stamps tokens with iss and requires it on verification.
func WithIssuer(issuer string) Option {
	return func(c *Codec) {
		c.issuer = issuer
	}
}

// Codec is safe for concurrent use. Signing is deterministic for identical
// claims, secret and issue time.
type Codec struct {
	now    func() time.Time
	issuer string
}

func NewCodec(opts ...Option) *Codec {
	c := &Codec{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Codec) Sign(in domain.Claims, secret []byte, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("signing secret is empty")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("token ttl must be positive, got %s", ttl)
	}

	now := c.now()
	tc := claims{
		ID:    in.ID.String(),
		Email: in.Email,
		Role:  in.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   in.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tc)
	return token.SignedString(secret)
}

// Verify checks the signature before the expiry, so a token signed with a
// different secret is always reported as invalid, never as expired.
func (c *Codec) Verify(raw string, secret []byte) (domain.Token, error) {
	if raw == "" || len(secret) == 0 {
		return domain.Token{}, domain.ErrTokenInvalid
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	var tc claims
	_, err := jwt.ParseWithClaims(raw, &tc, func(*jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return domain.Token{}, domain.ErrTokenExpired
		}
		return domain.Token{}, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}

	id, err := uuid.Parse(tc.ID)
	if err != nil {
		return domain.Token{}, fmt.Errorf("%w: bad subject id", domain.ErrTokenInvalid)
	}

	token := domain.Token{
		Claims: domain.Claims{ID: id, Email: tc.Email, Role: tc.Role},
	}
	if tc.IssuedAt != nil {
		token.IssuedAt = tc.IssuedAt.Time
	}
	if tc.ExpiresAt != nil {
		token.ExpiresAt = tc.ExpiresAt.Time
	}
	return token, nil
}

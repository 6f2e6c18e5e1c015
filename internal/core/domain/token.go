package domain

import (
	"time"

	"github.com/google/uuid"
)

// Claims is the identity assertion carried by access and refresh tokens.
type Claims struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Role  string    `json:"role,omitempty"`
}

// Token is a verified token together with its validity window.
type Token struct {
	Claims
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type LoginResult struct {
	User PublicProfile `json:"user"`
	TokenPair
}

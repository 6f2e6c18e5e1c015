package domain

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrForbidden          = errors.New("not authorized to perform this action")

	// Token Codec failures.
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")

	// Token lifecycle failures. They are returned joined with the codec
	// failure that caused them, so both kinds match with errors.Is.
	ErrAccessExpired  = errors.New("access token expired")
	ErrAccessInvalid  = errors.New("invalid access token")
	ErrRefreshExpired = errors.New("refresh token expired")
	ErrRefreshInvalid = errors.New("invalid refresh token")
	ErrTokenRevoked   = errors.New("token revoked")

	ErrChannelUnavailable = errors.New("event channel unavailable")
	ErrHandlerFailed      = errors.New("event handler failed")
	// ErrMalformedEvent marks failures that redelivery cannot fix.
	ErrMalformedEvent = errors.New("malformed event")

	ErrUserNotFound    = errors.New("user not found")
	ErrEmailTaken      = errors.New("email already exists")
	ErrProductNotFound = errors.New("product not found")
	ErrValidation      = errors.New("validation failed")
)

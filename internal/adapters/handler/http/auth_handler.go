package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/vncsmyrnk/usersync/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
	logger      *slog.Logger
}

func NewAuthHandler(authService ports.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// Login godoc
// @Summary      Logs a user in
// @Description  Verifies email and password and issues an access and refresh token pair.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Success      200
// @Failure      400
// @Failure      401
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req ports.LoginInput
	if err := decodeAndValidate(w, r, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	result, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Refresh godoc
// @Summary      Refreshes the token pair
// @Description  Mints a new access and refresh token from a valid refresh token. Claims are read again from the user record.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Success      200
// @Failure      400
// @Failure      401
// @Router       /api/auth/refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req ports.RefreshInput
	if err := decodeAndValidate(w, r, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	pair, err := h.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Logout godoc
// @Summary      Logs the authenticated user out
// @Description  Revokes the presented access token and, if given, the refresh token.
// @Tags         auth
// @Accept       json
// @Security     BearerAuth
// @Success      204
// @Failure      401
// @Router       /api/auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	// The body is optional; an empty one, chunked or not, means no refresh token.
	var req logoutRequest
	if err := decodeAndValidate(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		handleError(w, r, h.logger, err)
		return
	}

	if err := h.authService.Logout(r.Context(), accessTokenFrom(r.Context()), req.RefreshToken); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

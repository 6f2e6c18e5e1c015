package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vncsmyrnk/usersync/internal/core/domain"
)

type successResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

type errorResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(successResponse{Status: "success", Data: data})
}

func writeError(w http.ResponseWriter, status int, message string, details ...string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Status: "error", Message: message, Errors: details})
}

// errorStatus maps domain errors to a status and a message safe to show to
// callers. Anything unrecognised is a 500 with a generic message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "Validation Error"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, domain.ErrTokenRevoked):
		return http.StatusUnauthorized, "Token revoked"
	case errors.Is(err, domain.ErrAccessExpired), errors.Is(err, domain.ErrRefreshExpired):
		return http.StatusUnauthorized, "Token expired"
	case errors.Is(err, domain.ErrAccessInvalid), errors.Is(err, domain.ErrRefreshInvalid):
		return http.StatusUnauthorized, "Invalid token"
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "Authentication required"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "Not authorized to access this resource"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound, "Product not found"
	case errors.Is(err, domain.ErrEmailTaken):
		return http.StatusConflict, "Email already exists"
	case errors.Is(err, domain.ErrChannelUnavailable):
		return http.StatusServiceUnavailable, "Service unavailable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func handleError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, message := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestID(r),
			"error", err,
		)
	} else {
		logger.Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}

	var verr *validationError
	if errors.As(err, &verr) {
		writeError(w, status, message, verr.fields...)
		return
	}
	writeError(w, status, message)
}

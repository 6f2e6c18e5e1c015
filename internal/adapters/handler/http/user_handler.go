package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vncsmyrnk/usersync/internal/core/domain"
	"github.com/vncsmyrnk/usersync/internal/core/ports"
)

type UserHandler struct {
	service ports.UserService
	logger  *slog.Logger
}

func NewUserHandler(service ports.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		logger:  logger,
	}
}

func profiles(users []*domain.User) []domain.PublicProfile {
	out := make([]domain.PublicProfile, 0, len(users))
	for _, u := range users {
		out = append(out, u.PublicProfile())
	}
	return out
}

func pathID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

// Register godoc
// @Summary      Registers a new user
// @Tags         users
// @Accept       json
// @Produce      json
// @Success      201
// @Failure      400
// @Failure      409
// @Router       /api/users/register [post]
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req ports.CreateUserInput
	if err := decodeAndValidate(w, r, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	user, err := h.service.Create(r.Context(), req)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, user.PublicProfile())
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFrom(r.Context())
	if !ok {
		handleError(w, r, h.logger, domain.ErrUnauthenticated)
		return
	}
	h.get(w, r, claims.ID)
}

// UpdateMe lets a user change their own profile. The role field is ignored
// here; only admins can change roles.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFrom(r.Context())
	if !ok {
		handleError(w, r, h.logger, domain.ErrUnauthenticated)
		return
	}

	var req ports.UpdateUserInput
	if err := decodeAndValidate(w, r, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	req.Role = nil

	h.update(w, r, claims.ID, req)
}

func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFrom(r.Context())
	if !ok {
		handleError(w, r, h.logger, domain.ErrUnauthenticated)
		return
	}
	h.delete(w, r, claims.ID)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles(users))
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		handleError(w, r, h.logger, domain.ErrUserNotFound)
		return
	}
	h.get(w, r, id)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		handleError(w, r, h.logger, domain.ErrUserNotFound)
		return
	}

	var req ports.UpdateUserInput
	if err := decodeAndValidate(w, r, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	h.update(w, r, id, req)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		handleError(w, r, h.logger, domain.ErrUserNotFound)
		return
	}
	h.delete(w, r, id)
}

func (h *UserHandler) get(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	user, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user.PublicProfile())
}

func (h *UserHandler) update(w http.ResponseWriter, r *http.Request, id uuid.UUID, req ports.UpdateUserInput) {
	user, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user.PublicProfile())
}

func (h *UserHandler) delete(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.service.Delete(r.Context(), id); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

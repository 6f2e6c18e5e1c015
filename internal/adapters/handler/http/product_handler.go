package http

import (
	"log/slog"
	"net/http"

	"github.com/vncsmyrnk/usersync/internal/core/domain"
	"github.com/vncsmyrnk/usersync/internal/core/ports"
)

type ProductHandler struct {
	service ports.ProductService
	logger  *slog.Logger
}

func NewProductHandler(service ports.ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service: service,
		logger:  logger,
	}
}

// CreateProduct godoc
// @Summary      Creates a product owned by the caller
// @Tags         products
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Success      201
// @Failure      400
// @Failure      401
// @Router       /api/products [post]
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())

	var req ports.CreateProductInput
	if err := decodeAndValidate(w, r, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	product, err := h.service.Create(r.Context(), claims, req)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, product)
}

// ListProducts godoc
// @Summary      Lists active products
// @Description  Admins see every active product, other users only their own.
// @Tags         products
// @Security     BearerAuth
// @Produce      json
// @Success      200
// @Failure      401
// @Router       /api/products [get]
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())

	products, err := h.service.List(r.Context(), claims)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	if products == nil {
		products = []*domain.Product{}
	}

	writeJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		handleError(w, r, h.logger, domain.ErrProductNotFound)
		return
	}

	product, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	id, ok := pathID(r)
	if !ok {
		handleError(w, r, h.logger, domain.ErrProductNotFound)
		return
	}

	var req ports.UpdateProductInput
	if err := decodeAndValidate(w, r, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	product, err := h.service.Update(r.Context(), claims, id, req)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	id, ok := pathID(r)
	if !ok {
		handleError(w, r, h.logger, domain.ErrProductNotFound)
		return
	}

	if err := h.service.Delete(r.Context(), claims, id); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

package http

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vncsmyrnk/usersync/internal/core/domain"
	"github.com/vncsmyrnk/usersync/internal/core/ports"
)

func newProductFixture() (http.Handler, *mockProductService) {
	auth := &mockAuthService{}
	auth.On("ValidateAccess", mock.Anything, "alice-token").Return(alice, nil).Maybe()
	products := &mockProductService{}

	cfg := RouterConfig{Logger: discardLogger()}
	return NewProductRouter(cfg, NewProductHandler(products, discardLogger()), auth), products
}

func TestProducts_RequireAuthentication(t *testing.T) {
	router, _ := newProductFixture()

	rec, _ := do(t, router, http.MethodGet, "/api/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProducts_Create(t *testing.T) {
	router, products := newProductFixture()
	input := ports.CreateProductInput{Name: "Lamp", Description: "desk lamp", Price: 10}
	products.On("Create", mock.Anything, alice, input).
		Return(&domain.Product{ID: uuid.New(), Name: "Lamp", UserID: alice.ID, IsActive: true}, nil)

	rec, env := do(t, router, http.MethodPost, "/api/products", "alice-token", input)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, string(env.Data), alice.ID.String())

	rec, env = do(t, router, http.MethodPost, "/api/products", "alice-token", map[string]any{"name": "Lamp", "description": "x", "price": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Errors, "price must be greater than or equal to 0")

	rec, env = do(t, router, http.MethodPost, "/api/products", "alice-token", map[string]any{"name": "Lamp", "description": "x", "price": 1e10})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Errors, "price must be less than or equal to 9999999999.99")
	products.AssertNumberOfCalls(t, "Create", 1)
}

func TestProducts_UpdateRejectsPriceBeyondColumn(t *testing.T) {
	router, products := newProductFixture()

	rec, _ := do(t, router, http.MethodPatch, "/api/products/"+uuid.NewString(), "alice-token", map[string]any{"price": 12345678901.5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	products.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProducts_ListEmptyIsArray(t *testing.T) {
	router, products := newProductFixture()
	products.On("List", mock.Anything, alice).Return(nil, nil)

	rec, env := do(t, router, http.MethodGet, "/api/products", "alice-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestProducts_OwnershipErrors(t *testing.T) {
	router, products := newProductFixture()
	theirs := uuid.New()
	gone := uuid.New()
	products.On("Delete", mock.Anything, alice, theirs).Return(domain.ErrForbidden)
	products.On("Delete", mock.Anything, alice, gone).Return(domain.ErrProductNotFound)

	rec, env := do(t, router, http.MethodDelete, "/api/products/"+theirs.String(), "alice-token", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "error", env.Status)

	rec, _ = do(t, router, http.MethodDelete, "/api/products/"+gone.String(), "alice-token", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProducts_Update(t *testing.T) {
	router, products := newProductFixture()
	id := uuid.New()
	products.On("Update", mock.Anything, alice, id, mock.MatchedBy(func(in ports.UpdateProductInput) bool {
		return in.Price != nil && *in.Price == 12.5 && in.Name == nil
	})).Return(&domain.Product{ID: id, Price: 12.5}, nil)

	rec, _ := do(t, router, http.MethodPatch, "/api/products/"+id.String(), "alice-token", map[string]any{"price": 12.5})
	assert.Equal(t, http.StatusOK, rec.Code)
	products.AssertExpectations(t)
}

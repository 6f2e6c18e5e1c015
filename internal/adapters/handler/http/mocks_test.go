package http

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/vncsmyrnk/usersync/internal/core/domain"
	"github.com/vncsmyrnk/usersync/internal/core/ports"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockAuthService struct {
	mock.Mock
}

func (m *mockAuthService) ValidateAccess(ctx context.Context, token string) (domain.Claims, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(domain.Claims), args.Error(1)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	args := m.Called(ctx, email, password)
	res, _ := args.Get(0).(*domain.LoginResult)
	return res, args.Error(1)
}

func (m *mockAuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	pair, _ := args.Get(0).(*domain.TokenPair)
	return pair, args.Error(1)
}

func (m *mockAuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	return m.Called(ctx, accessToken, refreshToken).Error(0)
}

type mockUserService struct {
	mock.Mock
}

func (m *mockUserService) Create(ctx context.Context, input ports.CreateUserInput) (*domain.User, error) {
	args := m.Called(ctx, input)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

func (m *mockUserService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

func (m *mockUserService) List(ctx context.Context) ([]*domain.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]*domain.User)
	return users, args.Error(1)
}

func (m *mockUserService) Update(ctx context.Context, id uuid.UUID, input ports.UpdateUserInput) (*domain.User, error) {
	args := m.Called(ctx, id, input)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

func (m *mockUserService) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type mockProductService struct {
	mock.Mock
}

func (m *mockProductService) Create(ctx context.Context, caller domain.Claims, input ports.CreateProductInput) (*domain.Product, error) {
	args := m.Called(ctx, caller, input)
	p, _ := args.Get(0).(*domain.Product)
	return p, args.Error(1)
}

func (m *mockProductService) List(ctx context.Context, caller domain.Claims) ([]*domain.Product, error) {
	args := m.Called(ctx, caller)
	p, _ := args.Get(0).([]*domain.Product)
	return p, args.Error(1)
}

func (m *mockProductService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*domain.Product)
	return p, args.Error(1)
}

func (m *mockProductService) Update(ctx context.Context, caller domain.Claims, id uuid.UUID, input ports.UpdateProductInput) (*domain.Product, error) {
	args := m.Called(ctx, caller, id, input)
	p, _ := args.Get(0).(*domain.Product)
	return p, args.Error(1)
}

func (m *mockProductService) Delete(ctx context.Context, caller domain.Claims, id uuid.UUID) error {
	return m.Called(ctx, caller, id).Error(0)
}

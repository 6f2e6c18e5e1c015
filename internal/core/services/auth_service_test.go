package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vncsmyrnk/usersync/internal/adapters/token"
	"github.com/vncsmyrnk/usersync/internal/core/domain"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type authFixture struct {
	svc      *AuthService
	repo     *memUserRepo
	denylist *memDenylist
	clock    *clock
	user     *domain.User
}

func newAuthFixture(t *testing.T, withDenylist bool) *authFixture {
	t.Helper()

	c := &clock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	user := &domain.User{
		ID:           uuid.New(),
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Email:        "a@x.com",
		PasswordHash: "hashed:secret1",
		Role:         domain.RoleUser,
	}
	repo := newMemUserRepo(user)
	hasher := &plainHasher{}
	codec := token.NewCodec(token.WithClock(c.Now))

	f := &authFixture{repo: repo, clock: c, user: user}
	settings := TokenSettings{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	}
	if withDenylist {
		f.denylist = newMemDenylist()
		f.svc = NewAuthService(NewCredentialStore(repo, hasher), codec, f.denylist, settings)
	} else {
		f.svc = NewAuthService(NewCredentialStore(repo, hasher), codec, nil, settings)
	}
	f.svc.now = c.Now
	return f
}

func TestLogin_ThenValidateAccess(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := context.Background()

	res, err := f.svc.Login(ctx, "A@X.com ", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.NotEqual(t, res.AccessToken, res.RefreshToken)
	assert.Equal(t, domain.RoleUser, res.User.Role)
	assert.Equal(t, f.user.ID, res.User.ID)

	claims, err := f.svc.ValidateAccess(ctx, res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, f.user.Claims(), claims)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.Login(ctx, "a@x.com", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, "nobody@x.com", "secret1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestLogin_StoreFailure(t *testing.T) {
	f := newAuthFixture(t, false)
	f.repo.err = errStorage

	_, err := f.svc.Login(context.Background(), "a@x.com", "secret1")
	assert.ErrorIs(t, err, errStorage)
	assert.NotErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestValidateAccess_Expired(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := context.Background()

	res, err := f.svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	f.clock.Advance(16 * time.Minute)

	_, err = f.svc.ValidateAccess(ctx, res.AccessToken)
	assert.ErrorIs(t, err, domain.ErrAccessExpired)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestValidateAccess_RejectsRefreshToken(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := context.Background()

	res, err := f.svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	_, err = f.svc.ValidateAccess(ctx, res.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrAccessInvalid)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestRefresh_RederivesClaimsFromStore(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := context.Background()

	res, err := f.svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	// Promote the user after the refresh token was issued.
	f.repo.users[f.user.ID].Role = domain.RoleAdmin
	f.clock.Advance(time.Hour)

	pair, err := f.svc.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)

	claims, err := f.svc.ValidateAccess(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
}

func TestRefresh_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("expired", func(t *testing.T) {
		f := newAuthFixture(t, false)
		res, err := f.svc.Login(ctx, "a@x.com", "secret1")
		require.NoError(t, err)

		f.clock.Advance(8 * 24 * time.Hour)

		_, err = f.svc.Refresh(ctx, res.RefreshToken)
		assert.ErrorIs(t, err, domain.ErrRefreshExpired)
	})

	t.Run("access token presented", func(t *testing.T) {
		f := newAuthFixture(t, false)
		res, err := f.svc.Login(ctx, "a@x.com", "secret1")
		require.NoError(t, err)

		_, err = f.svc.Refresh(ctx, res.AccessToken)
		assert.ErrorIs(t, err, domain.ErrRefreshInvalid)
	})

	t.Run("user gone", func(t *testing.T) {
		f := newAuthFixture(t, false)
		res, err := f.svc.Login(ctx, "a@x.com", "secret1")
		require.NoError(t, err)

		delete(f.repo.users, f.user.ID)

		_, err = f.svc.Refresh(ctx, res.RefreshToken)
		assert.ErrorIs(t, err, domain.ErrRefreshInvalid)
	})
}

func TestLogout_RevokesBothTokens(t *testing.T) {
	f := newAuthFixture(t, true)
	ctx := context.Background()

	res, err := f.svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, res.AccessToken, res.RefreshToken))
	assert.Len(t, f.denylist.entries, 2)
	assert.Equal(t, 15*time.Minute, f.denylist.entries[hashToken(res.AccessToken)])

	_, err = f.svc.ValidateAccess(ctx, res.AccessToken)
	assert.ErrorIs(t, err, domain.ErrAccessInvalid)
	assert.ErrorIs(t, err, domain.ErrTokenRevoked)

	_, err = f.svc.Refresh(ctx, res.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrRefreshInvalid)
	assert.ErrorIs(t, err, domain.ErrTokenRevoked)
}

func TestLogout_IgnoresUnverifiableTokens(t *testing.T) {
	f := newAuthFixture(t, true)

	require.NoError(t, f.svc.Logout(context.Background(), "garbage", ""))
	assert.Empty(t, f.denylist.entries)
}

func TestLogout_WithoutDenylistIsStateless(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := context.Background()

	res, err := f.svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(ctx, res.AccessToken, res.RefreshToken))

	_, err = f.svc.ValidateAccess(ctx, res.AccessToken)
	assert.NoError(t, err)
}

func TestValidateAccess_DenylistDown(t *testing.T) {
	f := newAuthFixture(t, true)
	ctx := context.Background()

	res, err := f.svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	f.denylist.err = errStorage
	_, err = f.svc.ValidateAccess(ctx, res.AccessToken)
	assert.ErrorIs(t, err, errStorage)
}

func TestCredentialStore_UnknownUserStillCompares(t *testing.T) {
	hasher := &plainHasher{}
	store := NewCredentialStore(newMemUserRepo(), hasher)

	assert.False(t, store.VerifyPassword(nil, "anything"))
	assert.Equal(t, 1, hasher.compared)
}

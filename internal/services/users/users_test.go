package users

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/designhub/internal/config"
	"github.com/magabrotheeeer/designhub/internal/lib/apperr"
	"github.com/magabrotheeeer/designhub/internal/lib/password"
	"github.com/magabrotheeeer/designhub/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/services/subscription"
	"github.com/magabrotheeeer/designhub/internal/storage/memory"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

type InvalidatorMock struct {
	mock.Mock
}

func (m *InvalidatorMock) InvalidateSession(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func newService(t *testing.T, inv *InvalidatorMock) (*Service, *memory.Storage) {
	t.Helper()
	st := memory.New()
	subs := subscription.NewService(st, nil, rabbitmq.NopPublisher{}, newNoopLogger())
	if inv == nil {
		return NewService(st, subs, nil, newNoopLogger()), st
	}
	return NewService(st, subs, inv, newNoopLogger()), st
}

func TestProfileAndOnboarding(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t, nil)
	u, err := st.CreateUser(ctx, models.User{Name: "Ann", Email: "ann@x.io", Role: models.RoleUser})
	require.NoError(t, err)

	id, err := svc.UpdateName(ctx, u.ID, "  Anna ")
	require.NoError(t, err)
	assert.Equal(t, "Anna", id.Name)

	_, err = svc.UpdateName(ctx, u.ID, " ")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	id, err = svc.UpdateOnboarding(ctx, u.ID, 3, true)
	require.NoError(t, err)
	assert.Equal(t, 3, id.OnboardingStep)
	assert.True(t, id.OnboardingCompleted)

	id, err = svc.UpdateOnboarding(ctx, u.ID, 1, false)
	require.NoError(t, err)
	assert.True(t, id.OnboardingCompleted, "completed onboarding stays completed")

	_, err = svc.UpdateOnboarding(ctx, u.ID, -1, false)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Profile(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdate_RoleInvalidatesSession(t *testing.T) {
	ctx := context.Background()
	inv := new(InvalidatorMock)
	svc, st := newService(t, inv)
	u, err := st.CreateUser(ctx, models.User{Name: "Bob", Email: "bob@x.io", Role: models.RoleUser})
	require.NoError(t, err)

	inv.On("InvalidateSession", mock.Anything, u.ID).Return(nil).Once()

	role := models.RoleAdmin
	updated, err := svc.Update(ctx, u.ID, Patch{Role: &role})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, updated.Role)
	inv.AssertExpectations(t)

	bad := "ROOT"
	_, err = svc.Update(ctx, u.ID, Patch{Role: &bad})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestUpdate_SubscriptionStatus(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t, nil)
	u, err := st.CreateUser(ctx, models.User{Name: "Cid", Email: "cid@x.io", Role: models.RoleUser})
	require.NoError(t, err)

	cancelled := models.StatusCancelled
	_, err = svc.Update(ctx, u.ID, Patch{SubscriptionStatus: &cancelled})
	assert.ErrorIs(t, err, apperr.ErrNotFound, "no subscription to update")

	pkg, err := st.CreatePackage(ctx, models.Package{Name: "Pro", Active: true})
	require.NoError(t, err)
	_, err = st.CreateSubscription(ctx, models.Subscription{UserID: u.ID, PackageID: pkg.ID, Status: models.StatusActive})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, u.ID, Patch{SubscriptionStatus: &cancelled})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, updated.SubscriptionStatus)

	unknown := "gold"
	_, err = svc.Update(ctx, u.ID, Patch{SubscriptionStatus: &unknown})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestEnsureAdmin(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled without email", func(t *testing.T) {
		svc, _ := newService(t, nil)
		assert.NoError(t, svc.EnsureAdmin(ctx, config.BootstrapAdmin{}))
	})

	t.Run("creates admin once", func(t *testing.T) {
		svc, st := newService(t, nil)
		cfg := config.BootstrapAdmin{AdminEmail: "Root@X.io", AdminPassword: "s3cret-pass", AdminName: "Root"}
		require.NoError(t, svc.EnsureAdmin(ctx, cfg))
		require.NoError(t, svc.EnsureAdmin(ctx, cfg))

		u, err := st.GetUserByEmail(ctx, "root@x.io")
		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, u.Role)
		assert.NoError(t, password.CompareHash(u.PasswordHash, "s3cret-pass"))

		list, err := svc.List(ctx, models.UserFilter{Role: models.RoleAdmin})
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("promotes existing user", func(t *testing.T) {
		svc, st := newService(t, nil)
		_, err := st.CreateUser(ctx, models.User{Email: "boss@x.io", Role: models.RoleUser})
		require.NoError(t, err)
		require.NoError(t, svc.EnsureAdmin(ctx, config.BootstrapAdmin{AdminEmail: "boss@x.io"}))
		u, err := st.GetUserByEmail(ctx, "boss@x.io")
		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, u.Role)
	})

	t.Run("missing password", func(t *testing.T) {
		svc, _ := newService(t, nil)
		err := svc.EnsureAdmin(ctx, config.BootstrapAdmin{AdminEmail: "new@x.io"})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})
}

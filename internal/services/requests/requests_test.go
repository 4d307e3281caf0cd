package requests

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/designhub/internal/lib/apperr"
	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/storage/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e models.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

type fixture struct {
	svc   *Service
	pub   *recordingPublisher
	owner models.Actor
	other models.Actor
	admin models.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	mk := func(email, role string) models.Actor {
		u, err := st.CreateUser(ctx, models.User{Name: email, Email: email, Role: role})
		require.NoError(t, err)
		return models.Actor{ID: u.ID, Role: role, SubscriptionStatus: models.StatusActive}
	}
	pub := &recordingPublisher{}
	svc := NewService(st, pub, newNoopLogger())
	svc.now = func() time.Time { return time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC) }
	return &fixture{
		svc:   svc,
		pub:   pub,
		owner: mk("owner@example.com", models.RoleUser),
		other: mk("other@example.com", models.RoleUser),
		admin: mk("admin@example.com", models.RoleAdmin),
	}
}

func (f *fixture) create(t *testing.T) *models.DesignRequest {
	t.Helper()
	r, err := f.svc.Create(context.Background(), f.owner, Input{Title: "Landing page"})
	require.NoError(t, err)
	return r
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	r := f.create(t)
	assert.Equal(t, models.RequestPending, r.Status)
	assert.Equal(t, models.PriorityMedium, r.Priority)
	assert.Equal(t, f.owner.ID, r.UserID)

	inactive := f.owner
	inactive.SubscriptionStatus = models.StatusPending
	_, err := f.svc.Create(context.Background(), inactive, Input{Title: "x"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestGet_Permissions(t *testing.T) {
	f := newFixture(t)
	r := f.create(t)
	ctx := context.Background()

	_, err := f.svc.Get(ctx, f.owner, r.ID)
	assert.NoError(t, err)
	_, err = f.svc.Get(ctx, f.admin, r.ID)
	assert.NoError(t, err)

	_, notOwned := f.svc.Get(ctx, f.other, r.ID)
	assert.ErrorIs(t, notOwned, apperr.ErrNotFound)
	_, absent := f.svc.Get(ctx, f.owner, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, absent, apperr.ErrNotFound)
	// чужая заявка неотличима от несуществующей
	assert.Equal(t, apperr.PublicMessage(absent), apperr.PublicMessage(notOwned))
}

func TestList_UserSeesOnlyOwn(t *testing.T) {
	f := newFixture(t)
	f.create(t)
	_, err := f.svc.Create(context.Background(), f.other, Input{Title: "Logo"})
	require.NoError(t, err)

	own, err := f.svc.List(context.Background(), f.owner, models.RequestFilter{UserID: f.other.ID})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, f.owner.ID, own[0].UserID)

	all, err := f.svc.List(context.Background(), f.admin, models.RequestFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestChangeStatus_Lifecycle(t *testing.T) {
	f := newFixture(t)
	r := f.create(t)
	ctx := context.Background()

	_, err := f.svc.ChangeStatus(ctx, f.owner, r.ID, models.RequestInProgress)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.ChangeStatus(ctx, f.admin, r.ID, models.RequestCompleted)
	assert.ErrorIs(t, err, apperr.ErrValidation, "PENDING cannot jump to COMPLETED")

	r, err = f.svc.ChangeStatus(ctx, f.admin, r.ID, models.RequestInProgress)
	require.NoError(t, err)
	r, err = f.svc.ChangeStatus(ctx, f.owner, r.ID, models.RequestRevisionsRequested)
	require.NoError(t, err)
	r, err = f.svc.ChangeStatus(ctx, f.admin, r.ID, models.RequestInProgress)
	require.NoError(t, err)
	r, err = f.svc.ChangeStatus(ctx, f.admin, r.ID, models.RequestCompleted)
	require.NoError(t, err)
	require.NotNil(t, r.CompletedAt)
	assert.Equal(t, time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC), *r.CompletedAt)

	_, err = f.svc.ChangeStatus(ctx, f.admin, r.ID, models.RequestCanceled)
	assert.ErrorIs(t, err, apperr.ErrValidation, "COMPLETED is terminal")

	require.Len(t, f.pub.events, 4)
	last := f.pub.events[3]
	assert.Equal(t, models.EventRequestStatusChanged, last.Type)
	assert.Equal(t, "owner@example.com", last.Email)
	assert.Equal(t, models.RequestCompleted, last.Attributes["status"])
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	r := f.create(t)
	ctx := context.Background()

	updated, err := f.svc.Update(ctx, f.owner, r.ID, Input{Title: "New title", Priority: models.PriorityHigh})
	require.NoError(t, err)
	assert.Equal(t, "New title", updated.Title)
	assert.Equal(t, models.PriorityHigh, updated.Priority)

	_, err = f.svc.ChangeStatus(ctx, f.admin, r.ID, models.RequestInProgress)
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, f.owner, r.ID, Input{Title: "again"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.svc.Update(ctx, f.admin, r.ID, Input{Title: "admin edit"})
	assert.NoError(t, err)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := f.create(t)
	assert.ErrorIs(t, f.svc.Delete(ctx, f.other, r.ID), apperr.ErrNotFound)
	require.NoError(t, f.svc.Delete(ctx, f.owner, r.ID))

	r = f.create(t)
	_, err := f.svc.ChangeStatus(ctx, f.admin, r.ID, models.RequestInProgress)
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.Delete(ctx, f.owner, r.ID), apperr.ErrForbidden)
	assert.NoError(t, f.svc.Delete(ctx, f.admin, r.ID))
}

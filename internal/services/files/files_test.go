package files

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/designhub/internal/lib/apperr"
	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/storage/memory"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestRecordUpload(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	owner, err := st.CreateUser(ctx, models.User{Email: "o@x.io", Role: models.RoleUser})
	require.NoError(t, err)
	other, err := st.CreateUser(ctx, models.User{Email: "p@x.io", Role: models.RoleUser})
	require.NoError(t, err)
	req, err := st.CreateRequest(ctx, models.DesignRequest{UserID: owner.ID, Title: "Logo"})
	require.NoError(t, err)
	svc := NewService(st, newNoopLogger())

	upload := models.File{UserID: owner.ID, DesignRequestID: req.ID, FileName: "brief.pdf", FileSize: 42, FileURL: "https://cdn/x", Key: "k1"}
	first, err := svc.RecordUpload(ctx, upload)
	require.NoError(t, err)
	second, err := svc.RecordUpload(ctx, upload)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "callback redelivery is idempotent")

	_, err = svc.RecordUpload(ctx, models.File{UserID: "00000000-0000-0000-0000-000000000000", Key: "k2"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.RecordUpload(ctx, models.File{UserID: other.ID, DesignRequestID: req.ID, Key: "k3"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	owner, err := st.CreateUser(ctx, models.User{Email: "o@x.io", Role: models.RoleUser})
	require.NoError(t, err)
	other, err := st.CreateUser(ctx, models.User{Email: "p@x.io", Role: models.RoleUser})
	require.NoError(t, err)
	req, err := st.CreateRequest(ctx, models.DesignRequest{UserID: owner.ID, Title: "Logo"})
	require.NoError(t, err)
	svc := NewService(st, newNoopLogger())

	f, err := svc.RecordUpload(ctx, models.File{UserID: owner.ID, DesignRequestID: req.ID, Key: "a"})
	require.NoError(t, err)
	_, err = svc.RecordUpload(ctx, models.File{UserID: other.ID, Key: "b"})
	require.NoError(t, err)

	ownerActor := models.Actor{ID: owner.ID, Role: models.RoleUser}
	otherActor := models.Actor{ID: other.ID, Role: models.RoleUser}
	admin := models.Actor{ID: "admin", Role: models.RoleAdmin}

	list, err := svc.List(ctx, ownerActor, "")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = svc.List(ctx, admin, "")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = svc.List(ctx, otherActor, req.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, otherActor, f.ID), apperr.ErrNotFound)
	assert.NoError(t, svc.Delete(ctx, ownerActor, f.ID))
	assert.ErrorIs(t, svc.Delete(ctx, ownerActor, f.ID), apperr.ErrNotFound)
}

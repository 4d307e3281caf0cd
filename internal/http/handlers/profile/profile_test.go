package profile

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/designhub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/designhub/internal/lib/jwt"
	"github.com/magabrotheeeer/designhub/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/services/auth"
	"github.com/magabrotheeeer/designhub/internal/services/subscription"
	"github.com/magabrotheeeer/designhub/internal/services/users"
	"github.com/magabrotheeeer/designhub/internal/storage/memory"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestOnboarding_PersistsAndReissuesToken(t *testing.T) {
	ctx := context.Background()
	log := newNoopLogger()
	st := memory.New()
	u, err := st.CreateUser(ctx, models.User{Name: "Ann", Email: "ann@x.io", Role: models.RoleUser})
	require.NoError(t, err)

	subs := subscription.NewService(st, nil, rabbitmq.NopPublisher{}, log)
	svc := users.NewService(st, subs, nil, log)
	sessions := auth.NewSessionService(st, svc, jwt.NewJWTMaker("secret", time.Hour, "designhub"), log)
	h := New(log, svc, sessions, middlewarectx.Cookies{Name: "session_token", TTL: time.Hour})

	claims := &jwt.Claims{Role: models.RoleUser, SubscriptionStatus: models.StatusInactive}
	claims.Subject = u.ID
	req := httptest.NewRequest(http.MethodPatch, "/api/onboarding", strings.NewReader(`{"step":4,"completed":true}`))
	req = req.WithContext(middlewarectx.WithClaims(req.Context(), claims))
	rec := httptest.NewRecorder()
	h.Onboarding(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	stored, err := st.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.OnboardingStep)
	assert.True(t, stored.OnboardingCompleted)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	parsed, err := sessions.Parse(cookies[0].Value)
	require.NoError(t, err)
	assert.Equal(t, 4, parsed.OnboardingStep)
	assert.True(t, parsed.OnboardingCompleted)
}

func TestUpdate_Validation(t *testing.T) {
	log := newNoopLogger()
	h := New(log, nil, nil, middlewarectx.Cookies{Name: "session_token"})
	claims := &jwt.Claims{}
	claims.Subject = "u1"
	req := httptest.NewRequest(http.MethodPatch, "/api/profile", strings.NewReader(`{"name":""}`))
	req = req.WithContext(middlewarectx.WithClaims(req.Context(), claims))
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"status":"Error","error":"field Name is a required field"}`, rec.Body.String())
}

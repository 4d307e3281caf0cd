package session

import (
	"context"
	"encoding/json"
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
	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/services/auth"
)

type snapshotStub struct {
	snap models.SessionSnapshot
}

func (s *snapshotStub) SessionSnapshot(_ context.Context, _ string) (*models.SessionSnapshot, error) {
	out := s.snap
	return &out, nil
}

func (s *snapshotStub) UpdateOnboarding(_ context.Context, userID string, step int, completed bool) (*models.Identity, error) {
	s.snap.OnboardingStep = step
	s.snap.OnboardingCompleted = completed
	return &models.Identity{ID: userID, OnboardingStep: step, OnboardingCompleted: completed}, nil
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestUpdate_IgnoresClientRoleAndStatus(t *testing.T) {
	src := &snapshotStub{snap: models.SessionSnapshot{Role: models.RoleUser, SubscriptionStatus: models.StatusPending}}
	sessions := auth.NewSessionService(src, src, jwt.NewJWTMaker("secret", time.Hour, "designhub"), newNoopLogger())
	h := New(newNoopLogger(), sessions, middlewarectx.Cookies{Name: "session_token", TTL: time.Hour})

	claims := &jwt.Claims{Role: models.RoleUser, SubscriptionStatus: models.StatusPending}
	claims.Subject = "u1"

	body := `{"onboarding_step":2,"onboarding_completed":true,"role":"ADMIN","subscription_status":"active"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/auth/session", strings.NewReader(body))
	req = req.WithContext(middlewarectx.WithClaims(req.Context(), claims))
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data struct {
			Session jwt.Claims `json:"session"`
			Token   string     `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.RoleUser, resp.Data.Session.Role)
	assert.Equal(t, models.StatusPending, resp.Data.Session.SubscriptionStatus)
	assert.Equal(t, 2, resp.Data.Session.OnboardingStep)
	assert.True(t, resp.Data.Session.OnboardingCompleted)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, resp.Data.Token, cookies[0].Value)
}

func TestGet_Unauthenticated(t *testing.T) {
	h := New(newNoopLogger(), nil, middlewarectx.Cookies{Name: "session_token"})
	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

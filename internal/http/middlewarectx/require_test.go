package middlewarectx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/designhub/internal/lib/jwt"
	"github.com/magabrotheeeer/designhub/internal/models"
)

func TestRequireAuthAndAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name       string
		mw         func(http.Handler) http.Handler
		claims     *jwt.Claims
		wantStatus int
	}{
		{"auth without session", RequireAuth, nil, http.StatusUnauthorized},
		{"auth with session", RequireAuth, claimsWith("u1", models.RoleUser, models.StatusInactive), http.StatusOK},
		{"admin without session", RequireAdmin, nil, http.StatusUnauthorized},
		{"admin as user", RequireAdmin, claimsWith("u1", models.RoleUser, models.StatusActive), http.StatusForbidden},
		{"admin as admin", RequireAdmin, claimsWith("a1", models.RoleAdmin, models.StatusInactive), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.claims != nil {
				req = req.WithContext(WithClaims(req.Context(), tt.claims))
			}
			rec := httptest.NewRecorder()
			tt.mw(ok).ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestActorFrom(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := ActorFrom(req.Context())
	assert.False(t, ok)

	ctx := WithClaims(req.Context(), claimsWith("a1", models.RoleAdmin, models.StatusActive))
	actor, ok := ActorFrom(ctx)
	assert.True(t, ok)
	assert.Equal(t, models.Actor{ID: "a1", Role: models.RoleAdmin, SubscriptionStatus: models.StatusActive}, actor)
}

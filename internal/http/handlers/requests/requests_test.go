package requests

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/designhub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/designhub/internal/lib/jwt"
	"github.com/magabrotheeeer/designhub/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/services/files"
	"github.com/magabrotheeeer/designhub/internal/services/requests"
	"github.com/magabrotheeeer/designhub/internal/storage/memory"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

type env struct {
	router http.Handler
	store  *memory.Storage
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := newNoopLogger()
	st := memory.New()
	h := New(log, requests.NewService(st, rabbitmq.NopPublisher{}, log), files.NewService(st, log))

	r := chi.NewRouter()
	r.Get("/requests", h.List)
	r.Post("/requests", h.Create)
	r.Get("/requests/{id}", h.Get)
	r.Put("/requests/{id}", h.Update)
	r.Patch("/requests/{id}/status", h.ChangeStatus)
	r.Delete("/requests/{id}", h.Delete)
	r.Get("/requests/{id}/files", h.Files)
	return &env{router: r, store: st}
}

func (e *env) user(t *testing.T, email, role string) *models.User {
	t.Helper()
	u, err := e.store.CreateUser(context.Background(), models.User{Email: email, Role: role})
	require.NoError(t, err)
	return u
}

func (e *env) do(t *testing.T, method, url, body string, u *models.User, status string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	claims := &jwt.Claims{Role: u.Role, SubscriptionStatus: status}
	claims.Subject = u.ID
	req = req.WithContext(middlewarectx.WithClaims(req.Context(), claims))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func createdID(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Data struct {
			Request models.DesignRequest `json:"request"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Data.Request.ID
}

const validBody = `{"title":"Logo","description":"A new logo","category":"branding"}`

func TestCreate_RequiresActiveSubscription(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "u@x.io", models.RoleUser)

	rec := e.do(t, http.MethodPost, "/requests", validBody, u, models.StatusPending)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPost, "/requests", validBody, u, models.StatusActive)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"PENDING"`)
	assert.Contains(t, rec.Body.String(), `"priority":"MEDIUM"`)

	rec = e.do(t, http.MethodPost, "/requests", `{"title":"Logo","description":"x","category":"b","priority":"URGENT"}`, u, models.StatusActive)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLifecycleAndAccess(t *testing.T) {
	e := newEnv(t)
	owner := e.user(t, "owner@x.io", models.RoleUser)
	other := e.user(t, "other@x.io", models.RoleUser)
	admin := e.user(t, "admin@x.io", models.RoleAdmin)

	id := createdID(t, e.do(t, http.MethodPost, "/requests", validBody, owner, models.StatusActive))

	notOwned := e.do(t, http.MethodGet, "/requests/"+id, "", other, models.StatusActive)
	absent := e.do(t, http.MethodGet, "/requests/00000000-0000-0000-0000-000000000000", "", other, models.StatusActive)
	assert.Equal(t, http.StatusNotFound, notOwned.Code)
	assert.Equal(t, http.StatusNotFound, absent.Code)
	assert.JSONEq(t, absent.Body.String(), notOwned.Body.String())
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodDelete, "/requests/"+id, "", other, models.StatusActive).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/requests/"+id+"/files", "", other, models.StatusActive).Code)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/requests/"+id, "", admin, "").Code)

	rec := e.do(t, http.MethodPatch, "/requests/"+id+"/status", `{"status":"IN_PROGRESS"}`, owner, models.StatusActive)
	assert.Equal(t, http.StatusForbidden, rec.Code, "owner cannot start work")

	rec = e.do(t, http.MethodPatch, "/requests/"+id+"/status", `{"status":"IN_PROGRESS"}`, admin, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPatch, "/requests/"+id+"/status", `{"status":"PENDING"}`, admin, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "IN_PROGRESS -> PENDING is not a valid transition")

	rec = e.do(t, http.MethodGet, "/requests", "", other, models.StatusActive)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"requests":[]`)

	rec = e.do(t, http.MethodGet, "/requests/"+id+"/files", "", owner, models.StatusActive)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"files":[]`)
}

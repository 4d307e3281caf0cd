package content

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
	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/services/content"
	"github.com/magabrotheeeer/designhub/internal/storage/memory"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/case-studies", h.ListCaseStudies)
	r.Get("/case-studies/{id}", h.GetCaseStudy)
	r.Post("/case-studies", h.CreateCaseStudy)
	r.Put("/case-studies/{id}", h.UpdateCaseStudy)
	r.Delete("/case-studies/{id}", h.DeleteCaseStudy)
	r.Post("/testimonials", h.CreateTestimonial)
	r.Get("/services", h.ListServices)
	r.Post("/services", h.CreateService)
	return r
}

func do(router http.Handler, method, url, body string, actor *models.Actor) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	if actor != nil {
		claims := &jwt.Claims{Role: actor.Role}
		claims.Subject = actor.ID
		req = req.WithContext(middlewarectx.WithClaims(req.Context(), claims))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func newEnv(t *testing.T) (http.Handler, *memory.Storage) {
	t.Helper()
	log := newNoopLogger()
	st := memory.New()
	return newRouter(New(log, content.NewService(st, log))), st
}

func newActor(t *testing.T, st *memory.Storage, email, role string) *models.Actor {
	t.Helper()
	u, err := st.CreateUser(context.Background(), models.User{Email: email, Role: role})
	require.NoError(t, err)
	return &models.Actor{ID: u.ID, Role: u.Role}
}

func createCaseStudy(t *testing.T, router http.Handler, author *models.Actor, body string) models.CaseStudy {
	t.Helper()
	rec := do(router, http.MethodPost, "/case-studies", body, author)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		Data struct {
			CaseStudy models.CaseStudy `json:"case_study"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Data.CaseStudy
}

func TestDeleteCaseStudy_AdminVersusOthers(t *testing.T) {
	router, st := newEnv(t)
	admin := newActor(t, st, "admin@x.io", models.RoleAdmin)
	author := newActor(t, st, "author@x.io", models.RoleUser)
	stranger := newActor(t, st, "stranger@x.io", models.RoleUser)

	tests := []struct {
		name       string
		actor      *models.Actor
		wantStatus int
	}{
		{"anonymous", nil, http.StatusForbidden},
		{"other user", stranger, http.StatusForbidden},
		{"author", author, http.StatusOK},
		{"admin", admin, http.StatusOK},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := createCaseStudy(t, router, author,
				`{"title":"Case `+string(rune('A'+i))+`","published":true}`)

			rec := do(router, http.MethodDelete, "/case-studies/"+cs.ID, "", tt.actor)
			assert.Equal(t, tt.wantStatus, rec.Code)

			rec = do(router, http.MethodGet, "/case-studies/"+cs.ID, "", admin)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, http.StatusNotFound, rec.Code)
			} else {
				assert.Equal(t, http.StatusOK, rec.Code, "case study must survive a denied delete")
			}
		})
	}
}

func TestCaseStudies_SlugAndDrafts(t *testing.T) {
	router, st := newEnv(t)
	author := newActor(t, st, "author@x.io", models.RoleUser)

	cs := createCaseStudy(t, router, author, `{"title":"Fintech Rebrand 2024"}`)
	assert.Equal(t, "fintech-rebrand-2024", cs.Slug)

	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/case-studies/fintech-rebrand-2024", "", author).Code)
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/case-studies/fintech-rebrand-2024", "", nil).Code)

	rec := do(router, http.MethodGet, "/case-studies", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), cs.ID)

	rec = do(router, http.MethodPost, "/case-studies", `{"title":"Other","slug":"fintech-rebrand-2024"}`, author)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTestimonialsAndServices_Validation(t *testing.T) {
	router, st := newEnv(t)
	admin := newActor(t, st, "admin@x.io", models.RoleAdmin)

	rec := do(router, http.MethodPost, "/testimonials", `{"author_name":"Kim","quote":"Great","rating":6}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "field Rating must be at most 5")

	rec = do(router, http.MethodPost, "/testimonials", `{"author_name":"Kim","quote":"Great","rating":5}`, admin)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = do(router, http.MethodPost, "/services", `{"description":"no title"}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "field Title is a required field")

	rec = do(router, http.MethodPost, "/services", `{"title":"Logos","sort_order":1}`, admin)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(router, http.MethodGet, "/services", "", nil)
	assert.Contains(t, rec.Body.String(), `"title":"Logos"`)
}

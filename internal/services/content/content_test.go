package content

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

type fixture struct {
	svc    *Service
	author models.Actor
	other  models.Actor
	admin  models.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	mk := func(email, role string) models.Actor {
		u, err := st.CreateUser(ctx, models.User{Email: email, Role: role})
		require.NoError(t, err)
		return models.Actor{ID: u.ID, Role: role}
	}
	return &fixture{
		svc:    NewService(st, newNoopLogger()),
		author: mk("author@x.io", models.RoleUser),
		other:  mk("other@x.io", models.RoleUser),
		admin:  mk("admin@x.io", models.RoleAdmin),
	}
}

func TestDeleteCaseStudy_Permissions(t *testing.T) {
	tests := []struct {
		name    string
		actor   func(f *fixture) models.Actor
		wantErr error
	}{
		{name: "admin deletes", actor: func(f *fixture) models.Actor { return f.admin }},
		{name: "author deletes", actor: func(f *fixture) models.Actor { return f.author }},
		{name: "other user is forbidden", actor: func(f *fixture) models.Actor { return f.other }, wantErr: apperr.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			cs, err := f.svc.CreateCaseStudy(ctx, f.author, models.CaseStudy{Title: "Brand refresh", Published: true})
			require.NoError(t, err)

			err = f.svc.DeleteCaseStudy(ctx, tt.actor(f), cs.ID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				_, getErr := f.svc.GetCaseStudy(ctx, f.admin, cs.ID)
				assert.NoError(t, getErr, "case study must survive a denied delete")
				return
			}
			require.NoError(t, err)
			_, err = f.svc.GetCaseStudy(ctx, f.admin, cs.ID)
			assert.ErrorIs(t, err, apperr.ErrNotFound)
		})
	}
}

func TestCaseStudy_SlugAndDrafts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cs, err := f.svc.CreateCaseStudy(ctx, f.author, models.CaseStudy{Title: "Fintech App: Onboarding  Redesign!"})
	require.NoError(t, err)
	assert.Equal(t, "fintech-app-onboarding-redesign", cs.Slug)
	assert.Equal(t, f.author.ID, cs.AuthorID)

	_, err = f.svc.CreateCaseStudy(ctx, f.admin, models.CaseStudy{Title: "Fintech app onboarding redesign"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = f.svc.GetCaseStudy(ctx, f.other, cs.Slug)
	assert.ErrorIs(t, err, apperr.ErrNotFound, "drafts are hidden from other users")
	got, err := f.svc.GetCaseStudy(ctx, f.author, cs.Slug)
	require.NoError(t, err)
	assert.Equal(t, cs.ID, got.ID)

	list, err := f.svc.ListCaseStudies(ctx, f.other)
	require.NoError(t, err)
	assert.Empty(t, list)

	cs.Published = true
	_, err = f.svc.UpdateCaseStudy(ctx, f.other, *cs)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	updated, err := f.svc.UpdateCaseStudy(ctx, f.author, *cs)
	require.NoError(t, err)
	assert.False(t, updated.Published, "only an admin publishes")

	_, err = f.svc.UpdateCaseStudy(ctx, f.admin, *cs)
	require.NoError(t, err)

	list, err = f.svc.ListCaseStudies(ctx, f.other)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestTestimonialRating(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateTestimonial(context.Background(), models.Testimonial{AuthorName: "A", Quote: "Great", Rating: 6})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	tm, err := f.svc.CreateTestimonial(context.Background(), models.Testimonial{AuthorName: "A", Quote: "Great", Rating: 5})
	require.NoError(t, err)
	assert.NoError(t, f.svc.DeleteTestimonial(context.Background(), tm.ID))
	assert.ErrorIs(t, f.svc.DeleteTestimonial(context.Background(), tm.ID), apperr.ErrNotFound)
}

func TestServicesCRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateService(ctx, models.Service{Title: "Branding", SortOrder: 2})
	require.NoError(t, err)
	first, err := f.svc.CreateService(ctx, models.Service{Title: "UX audit", SortOrder: 1})
	require.NoError(t, err)

	list, err := f.svc.ListServices(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)

	_, err = f.svc.GetService(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "hello-world", Slugify("  Hello, World  "))
	assert.Equal(t, "a1-b2", Slugify("A1 -- B2"))
	assert.Equal(t, "", Slugify("!!!"))
}

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/designhub/internal/lib/apperr"
	"github.com/magabrotheeeer/designhub/internal/lib/jwt"
	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/storage"
)

type snapshotStub struct {
	snap *models.SessionSnapshot
	err  error
}

func (s *snapshotStub) SessionSnapshot(_ context.Context, _ string) (*models.SessionSnapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := *s.snap
	return &out, nil
}

// onboardingStore хранит онбординг одного пользователя и отдаёт его как снимок сессии.
type onboardingStore struct {
	snap models.SessionSnapshot
}

func (s *onboardingStore) SessionSnapshot(_ context.Context, _ string) (*models.SessionSnapshot, error) {
	out := s.snap
	return &out, nil
}

func (s *onboardingStore) UpdateOnboarding(_ context.Context, userID string, step int, completed bool) (*models.Identity, error) {
	if step < 0 {
		return nil, apperr.Validation("onboarding step cannot be negative")
	}
	s.snap.OnboardingStep = step
	s.snap.OnboardingCompleted = s.snap.OnboardingCompleted || completed
	return &models.Identity{ID: userID, OnboardingStep: step, OnboardingCompleted: s.snap.OnboardingCompleted}, nil
}

func newSessionService(src SnapshotReader) *SessionService {
	return NewSessionService(src, nil, jwt.NewJWTMaker("test-secret", time.Hour, "designhub"), newNoopLogger())
}

func baseClaims() *jwt.Claims {
	c := &jwt.Claims{
		Role:               models.RoleUser,
		SubscriptionStatus: models.StatusPending,
		OnboardingStep:     1,
	}
	c.Subject = "u1"
	return c
}

func TestIssue_PopulatesAllFields(t *testing.T) {
	svc := newSessionService(&snapshotStub{})
	identity := &models.Identity{
		ID: "u1", Role: models.RoleAdmin, SubscriptionStatus: models.StatusActive,
		OnboardingStep: 3, OnboardingCompleted: true,
	}

	token, claims, err := svc.Issue(identity)
	require.NoError(t, err)

	parsed, err := svc.Parse(token)
	require.NoError(t, err)
	assert.True(t, parsed.SameSession(claims))
	assert.Equal(t, "u1", parsed.UserID())
	assert.Equal(t, models.RoleAdmin, parsed.Role)
	assert.Equal(t, models.StatusActive, parsed.SubscriptionStatus)
	assert.Equal(t, 3, parsed.OnboardingStep)
	assert.True(t, parsed.OnboardingCompleted)
}

func TestRefresh(t *testing.T) {
	tests := []struct {
		name       string
		src        *snapshotStub
		wantRole   string
		wantStatus string
		wantStep   int
	}{
		{
			name: "overwrites from store",
			src: &snapshotStub{snap: &models.SessionSnapshot{
				Role: models.RoleAdmin, SubscriptionStatus: models.StatusActive, OnboardingStep: 5, OnboardingCompleted: true,
			}},
			wantRole:   models.RoleAdmin,
			wantStatus: models.StatusActive,
			wantStep:   5,
		},
		{
			name:       "store failure keeps last known",
			src:        &snapshotStub{err: errors.New("db down")},
			wantRole:   models.RoleUser,
			wantStatus: models.StatusPending,
			wantStep:   1,
		},
		{
			name:       "missing user keeps last known",
			src:        &snapshotStub{err: storage.ErrNotFound},
			wantRole:   models.RoleUser,
			wantStatus: models.StatusPending,
			wantStep:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newSessionService(tt.src)
			in := baseClaims()

			out := svc.Refresh(context.Background(), in)
			assert.Equal(t, tt.wantRole, out.Role)
			assert.Equal(t, tt.wantStatus, out.SubscriptionStatus)
			assert.Equal(t, tt.wantStep, out.OnboardingStep)
			assert.Equal(t, models.StatusPending, in.SubscriptionStatus, "input is not mutated")
		})
	}
}

func TestRefresh_Idempotent(t *testing.T) {
	svc := newSessionService(&snapshotStub{snap: &models.SessionSnapshot{Role: models.RoleUser, SubscriptionStatus: models.StatusActive}})

	first := svc.Refresh(context.Background(), baseClaims())
	second := svc.Refresh(context.Background(), first)
	assert.True(t, first.SameSession(second))
}

func TestRefresh_NoSubjectIsUntouched(t *testing.T) {
	svc := newSessionService(&snapshotStub{err: errors.New("must not be called")})
	c := &jwt.Claims{Role: models.RoleUser}

	out := svc.Refresh(context.Background(), c)
	assert.Equal(t, models.RoleUser, out.Role)
}

func newOnboardingSessions() (*SessionService, *onboardingStore) {
	store := &onboardingStore{snap: models.SessionSnapshot{Role: models.RoleUser, SubscriptionStatus: models.StatusPending, OnboardingStep: 1}}
	return NewSessionService(store, store, jwt.NewJWTMaker("test-secret", time.Hour, "designhub"), newNoopLogger()), store
}

func TestUpdate_IgnoresClientSuppliedRoleAndStatus(t *testing.T) {
	svc, store := newOnboardingSessions()
	step := 4
	done := true
	role := models.RoleAdmin
	status := models.StatusActive

	out, err := svc.Update(context.Background(), baseClaims(), SessionPatch{
		OnboardingStep:      &step,
		OnboardingCompleted: &done,
		Role:                &role,
		SubscriptionStatus:  &status,
	})
	require.NoError(t, err)

	assert.Equal(t, 4, out.OnboardingStep)
	assert.True(t, out.OnboardingCompleted)
	assert.Equal(t, models.RoleUser, out.Role)
	assert.Equal(t, models.StatusPending, out.SubscriptionStatus)
	assert.Equal(t, 4, store.snap.OnboardingStep, "onboarding is persisted")
	assert.True(t, store.snap.OnboardingCompleted)
}

func TestUpdate_CompletedOnboardingCannotBeReset(t *testing.T) {
	svc, store := newOnboardingSessions()
	store.snap.OnboardingStep = 5
	store.snap.OnboardingCompleted = true
	step := 2
	notDone := false

	claims := baseClaims()
	claims.OnboardingCompleted = true
	out, err := svc.Update(context.Background(), claims, SessionPatch{OnboardingStep: &step, OnboardingCompleted: &notDone})
	require.NoError(t, err)
	assert.True(t, out.OnboardingCompleted)
	assert.Equal(t, 2, out.OnboardingStep)

	// поле из токена без сохранения не переживает Refresh
	forged := *out
	forged.OnboardingCompleted = false
	assert.True(t, svc.Refresh(context.Background(), &forged).OnboardingCompleted)
}

func TestUpdate_InvalidOnboardingIsRejected(t *testing.T) {
	svc, _ := newOnboardingSessions()
	step := -1

	out, err := svc.Update(context.Background(), baseClaims(), SessionPatch{OnboardingStep: &step})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Nil(t, out)
}

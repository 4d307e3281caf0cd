package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/magabrotheeeer/designhub/internal/lib/jwt"
	"github.com/magabrotheeeer/designhub/internal/lib/sl"
	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/storage"
)

// SnapshotReader отдаёт актуальные роль и статус подписки пользователя.
// Реализуется хранилищем или кэшем снимков поверх него.
type SnapshotReader interface {
	SessionSnapshot(ctx context.Context, userID string) (*models.SessionSnapshot, error)
}

// OnboardingWriter сохраняет прогресс онбординга. Завершённый онбординг не сбрасывается.
type OnboardingWriter interface {
	UpdateOnboarding(ctx context.Context, userID string, step int, completed bool) (*models.Identity, error)
}

// SessionPatch — поля, которые клиент присылает при явном обновлении сессии.
// Role и SubscriptionStatus принимаются только для того, чтобы их проигнорировать.
type SessionPatch struct {
	OnboardingStep      *int    `json:"onboarding_step,omitempty"`
	OnboardingCompleted *bool   `json:"onboarding_completed,omitempty"`
	Role                *string `json:"role,omitempty"`
	SubscriptionStatus  *string `json:"subscription_status,omitempty"`
}

// SessionService выпускает токен сессии и поддерживает его актуальным.
type SessionService struct {
	snapshots  SnapshotReader
	onboarding OnboardingWriter
	maker      jwt.Maker
	log        *slog.Logger
}

// NewSessionService создает новый экземпляр SessionService.
// onboarding может быть nil, тогда поля онбординга в Update игнорируются.
func NewSessionService(snapshots SnapshotReader, onboarding OnboardingWriter, maker jwt.Maker, log *slog.Logger) *SessionService {
	return &SessionService{
		snapshots:  snapshots,
		onboarding: onboarding,
		maker:      maker,
		log:        log,
	}
}

// Issue заполняет claims из данных пользователя и подписывает токен.
func (s *SessionService) Issue(identity *models.Identity) (string, *jwt.Claims, error) {
	claims := &jwt.Claims{
		Role:                identity.Role,
		SubscriptionStatus:  identity.SubscriptionStatus,
		OnboardingCompleted: identity.OnboardingCompleted,
		OnboardingStep:      identity.OnboardingStep,
	}
	claims.Subject = identity.ID
	token, err := s.maker.Issue(*claims)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// Sign подписывает уже заполненные claims.
func (s *SessionService) Sign(claims *jwt.Claims) (string, error) {
	return s.maker.Issue(*claims)
}

// Parse проверяет токен и возвращает его claims.
func (s *SessionService) Parse(token string) (*jwt.Claims, error) {
	return s.maker.Parse(token)
}

// Refresh перечитывает роль, статус подписки и онбординг и возвращает обновлённую копию claims.
//
// Ошибка чтения или отсутствие пользователя не делают сессию недействительной:
// в этом случае сохраняются последние известные значения.
func (s *SessionService) Refresh(ctx context.Context, claims *jwt.Claims) *jwt.Claims {
	const op = "services.auth.Refresh"
	out := *claims
	userID := claims.UserID()
	if userID == "" {
		return &out
	}

	snap, err := s.snapshots.SessionSnapshot(ctx, userID)
	if err != nil {
		log := s.log.With(slog.String("op", op), slog.String("user_id", userID))
		if errors.Is(err, storage.ErrNotFound) {
			log.Warn("session user not found, keeping last known values")
		} else {
			log.Error("failed to refresh session, keeping last known values", sl.Err(err))
		}
		return &out
	}

	out.Role = snap.Role
	out.SubscriptionStatus = snap.SubscriptionStatus
	out.OnboardingStep = snap.OnboardingStep
	out.OnboardingCompleted = snap.OnboardingCompleted
	return &out
}

// Update сохраняет присланные клиентом поля онбординга и затем выполняет Refresh.
// Все поля токена после этого берутся из хранилища, поэтому клиент не может
// ни поднять себе роль или статус подписки, ни сбросить завершённый онбординг.
func (s *SessionService) Update(ctx context.Context, claims *jwt.Claims, patch SessionPatch) (*jwt.Claims, error) {
	const op = "services.auth.Update"
	log := s.log.With(slog.String("op", op), slog.String("user_id", claims.UserID()))
	if patch.Role != nil || patch.SubscriptionStatus != nil {
		log.Warn("ignoring client supplied session fields")
	}

	if patch.OnboardingStep != nil || patch.OnboardingCompleted != nil {
		if s.onboarding == nil {
			log.Warn("onboarding writer is not configured, ignoring onboarding fields")
			return s.Refresh(ctx, claims), nil
		}
		step, completed := claims.OnboardingStep, claims.OnboardingCompleted
		if patch.OnboardingStep != nil {
			step = *patch.OnboardingStep
		}
		if patch.OnboardingCompleted != nil {
			completed = *patch.OnboardingCompleted
		}
		if _, err := s.onboarding.UpdateOnboarding(ctx, claims.UserID(), step, completed); err != nil {
			log.Info("failed to save onboarding from session patch", sl.Err(err))
			return nil, err
		}
	}
	return s.Refresh(ctx, claims), nil
}

// Package users содержит бизнес-логику профиля пользователя и управления клиентами.
package users

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/designhub/internal/config"
	"github.com/magabrotheeeer/designhub/internal/lib/apperr"
	"github.com/magabrotheeeer/designhub/internal/lib/password"
	"github.com/magabrotheeeer/designhub/internal/lib/sl"
	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/storage"
)

// Repository определяет методы хранилища пользователей.
type Repository interface {
	CreateUser(ctx context.Context, user models.User) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	UpdateUserName(ctx context.Context, id, name string) error
	UpdateOnboarding(ctx context.Context, id string, step int, completed bool) error
	UpdateUserRole(ctx context.Context, id, role string) error
}

// Subscriptions меняет статус подписки пользователя.
type Subscriptions interface {
	UpdateStatus(ctx context.Context, userID, status string) (*models.Subscription, error)
}

// SessionInvalidator сбрасывает кэшированный снимок сессии пользователя.
type SessionInvalidator interface {
	InvalidateSession(ctx context.Context, userID string) error
}

// Patch — изменения пользователя, которые вносит администратор. Nil-поля не меняются.
type Patch struct {
	Name               *string
	Role               *string
	SubscriptionStatus *string
}

// Service реализует операции над пользователями.
type Service struct {
	repo     Repository
	subs     Subscriptions
	sessions SessionInvalidator
	log      *slog.Logger
}

// NewService создает новый экземпляр Service. sessions может быть nil, если кэш сессий выключен.
func NewService(repo Repository, subs Subscriptions, sessions SessionInvalidator, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		subs:     subs,
		sessions: sessions,
		log:      log,
	}
}

// Profile возвращает публичные данные текущего пользователя.
func (s *Service) Profile(ctx context.Context, userID string) (*models.Identity, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, s.storageErr("services.users.Profile", userID, err)
	}
	return u.Identity(), nil
}

// UpdateName меняет отображаемое имя пользователя.
func (s *Service) UpdateName(ctx context.Context, userID, name string) (*models.Identity, error) {
	const op = "services.users.UpdateName"
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("name cannot be empty")
	}
	if err := s.repo.UpdateUserName(ctx, userID, name); err != nil {
		return nil, s.storageErr(op, userID, err)
	}
	return s.Profile(ctx, userID)
}

// UpdateOnboarding сохраняет прогресс онбординга. Шаг не может уменьшаться после завершения.
func (s *Service) UpdateOnboarding(ctx context.Context, userID string, step int, completed bool) (*models.Identity, error) {
	const op = "services.users.UpdateOnboarding"
	if step < 0 {
		return nil, apperr.Validation("onboarding step cannot be negative")
	}
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, s.storageErr(op, userID, err)
	}
	if u.OnboardingCompleted {
		completed = true
	}
	if err := s.repo.UpdateOnboarding(ctx, userID, step, completed); err != nil {
		return nil, s.storageErr(op, userID, err)
	}
	s.invalidate(ctx, s.log.With(slog.String("op", op), slog.String("user_id", userID)), userID)
	return s.Profile(ctx, userID)
}

// List возвращает пользователей для администратора.
func (s *Service) List(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	if filter.Role != "" && !models.ValidRole(filter.Role) {
		return nil, apperr.Validation("unknown role")
	}
	list, err := s.repo.ListUsers(ctx, filter)
	if err != nil {
		return nil, s.storageErr("services.users.List", "", err)
	}
	return list, nil
}

// Get возвращает пользователя по ID.
func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, s.storageErr("services.users.Get", id, err)
	}
	return u, nil
}

// Update применяет изменения администратора. Смена роли сбрасывает снимок сессии,
// смена статуса идёт через сервис подписок.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (*models.User, error) {
	const op = "services.users.Update"
	log := s.log.With(slog.String("op", op), slog.String("user_id", id))

	if patch.Role != nil && !models.ValidRole(*patch.Role) {
		return nil, apperr.Validation("unknown role")
	}
	if patch.SubscriptionStatus != nil && !models.ValidSubscriptionStatus(*patch.SubscriptionStatus) {
		return nil, apperr.Validation("unknown subscription status")
	}
	if _, err := s.repo.GetUser(ctx, id); err != nil {
		return nil, s.storageErr(op, id, err)
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperr.Validation("name cannot be empty")
		}
		if err := s.repo.UpdateUserName(ctx, id, name); err != nil {
			return nil, s.storageErr(op, id, err)
		}
	}
	if patch.Role != nil {
		if err := s.repo.UpdateUserRole(ctx, id, *patch.Role); err != nil {
			return nil, s.storageErr(op, id, err)
		}
		s.invalidate(ctx, log, id)
		log.Info("user role changed", slog.String("role", *patch.Role))
	}
	if patch.SubscriptionStatus != nil {
		if _, err := s.subs.UpdateStatus(ctx, id, *patch.SubscriptionStatus); err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, id)
}

// EnsureAdmin создаёт администратора из конфига, если его ещё нет,
// и повышает роль существующего пользователя с тем же email.
func (s *Service) EnsureAdmin(ctx context.Context, cfg config.BootstrapAdmin) error {
	const op = "services.users.EnsureAdmin"
	log := s.log.With(slog.String("op", op))
	if cfg.AdminEmail == "" {
		return nil
	}

	existing, err := s.repo.GetUserByEmail(ctx, cfg.AdminEmail)
	switch {
	case err == nil:
		if existing.Role == models.RoleAdmin {
			return nil
		}
		if err := s.repo.UpdateUserRole(ctx, existing.ID, models.RoleAdmin); err != nil {
			return s.storageErr(op, existing.ID, err)
		}
		s.invalidate(ctx, log, existing.ID)
		log.Info("existing user promoted to admin", slog.String("user_id", existing.ID))
		return nil
	case !errors.Is(err, storage.ErrNotFound):
		return s.storageErr(op, "", err)
	}

	if cfg.AdminPassword == "" {
		return apperr.Validation("bootstrap admin password is empty")
	}
	hashed, err := password.GetHash(cfg.AdminPassword)
	if err != nil {
		return apperr.Upstream(err)
	}
	u, err := s.repo.CreateUser(ctx, models.User{
		Name:         cfg.AdminName,
		Email:        cfg.AdminEmail,
		PasswordHash: hashed,
		Role:         models.RoleAdmin,
	})
	if err != nil {
		return s.storageErr(op, "", err)
	}
	log.Info("bootstrap admin created", slog.String("user_id", u.ID))
	return nil
}

func (s *Service) invalidate(ctx context.Context, log *slog.Logger, userID string) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.InvalidateSession(ctx, userID); err != nil {
		log.Warn("failed to invalidate session snapshot", sl.Err(err))
	}
}

func (s *Service) storageErr(op, userID string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return apperr.NotFound("user not found")
	case errors.Is(err, storage.ErrAlreadyExists):
		return apperr.Conflict("user with this email already exists")
	}
	s.log.Error("user storage failure", slog.String("op", op), slog.String("user_id", userID), sl.Err(err))
	return apperr.Upstream(err)
}

// Package subscription содержит бизнес-логику подписок пользователей.
//
// Каждая запись подписки сбрасывает кэшированный снимок сессии пользователя
// и публикует событие subscription.changed.
package subscription

import (
	"context"
	"errors"
	"log/slog"

	"github.com/magabrotheeeer/designhub/internal/lib/apperr"
	"github.com/magabrotheeeer/designhub/internal/lib/sl"
	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/storage"
)

// ErrAlreadySubscribed возвращается при повторном создании подписки для пользователя.
var ErrAlreadySubscribed = apperr.Conflict("user already has a subscription")

// Repository определяет методы хранилища, нужные сервису подписок.
type Repository interface {
	// CreateSubscription создаёт подписку, если у пользователя её ещё нет.
	CreateSubscription(ctx context.Context, sub models.Subscription) (*models.Subscription, error)
	// UpsertSubscription атомарно создаёт или обновляет подписку пользователя.
	UpsertSubscription(ctx context.Context, sub models.Subscription) (*models.Subscription, error)
	UpdateSubscriptionStatus(ctx context.Context, userID, status string) (*models.Subscription, error)
	GetSubscriptionByUser(ctx context.Context, userID string) (*models.Subscription, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetPackage(ctx context.Context, id string) (*models.Package, error)
}

// SessionInvalidator сбрасывает кэшированный снимок сессии.
type SessionInvalidator interface {
	InvalidateSession(ctx context.Context, userID string) error
}

// EventPublisher публикует доменные события.
type EventPublisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// Service реализует операции над подписками.
type Service struct {
	repo      Repository
	sessions  SessionInvalidator
	publisher EventPublisher
	log       *slog.Logger
}

// NewService создает новый экземпляр Service. sessions может быть nil, если кэш снимков выключен.
func NewService(repo Repository, sessions SessionInvalidator, publisher EventPublisher, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		sessions:  sessions,
		publisher: publisher,
		log:       log,
	}
}

// Create создаёт подписку. Повторный вызов для того же пользователя возвращает ErrAlreadySubscribed.
func (s *Service) Create(ctx context.Context, sub models.Subscription) (*models.Subscription, error) {
	const op = "services.subscription.Create"
	if !models.ValidSubscriptionStatus(sub.Status) {
		return nil, apperr.Validation("invalid subscription status")
	}
	created, err := s.repo.CreateSubscription(ctx, sub)
	if errors.Is(err, storage.ErrAlreadyExists) {
		return nil, ErrAlreadySubscribed
	}
	if err != nil {
		return nil, s.storageErr(op, sub.UserID, err)
	}
	s.afterWrite(ctx, op, created)
	return created, nil
}

// Upsert создаёт подписку или обновляет существующую одной операцией.
// Пустые идентификаторы во входных данных не затирают сохранённые.
func (s *Service) Upsert(ctx context.Context, sub models.Subscription) (*models.Subscription, error) {
	const op = "services.subscription.Upsert"
	if !models.ValidSubscriptionStatus(sub.Status) {
		return nil, apperr.Validation("invalid subscription status")
	}
	saved, err := s.repo.UpsertSubscription(ctx, sub)
	if err != nil {
		return nil, s.storageErr(op, sub.UserID, err)
	}
	s.afterWrite(ctx, op, saved)
	return saved, nil
}

// UpdateStatus меняет статус существующей подписки.
func (s *Service) UpdateStatus(ctx context.Context, userID, status string) (*models.Subscription, error) {
	const op = "services.subscription.UpdateStatus"
	if !models.ValidSubscriptionStatus(status) {
		return nil, apperr.Validation("invalid subscription status")
	}
	updated, err := s.repo.UpdateSubscriptionStatus(ctx, userID, status)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("subscription not found")
	}
	if err != nil {
		return nil, s.storageErr(op, userID, err)
	}
	s.afterWrite(ctx, op, updated)
	return updated, nil
}

// Grant выдаёт пользователю подписку на пакет от имени администратора.
func (s *Service) Grant(ctx context.Context, userID, packageID, status string) (*models.Subscription, error) {
	const op = "services.subscription.Grant"
	if status == "" {
		status = models.StatusActive
	}
	if _, err := s.repo.GetPackage(ctx, packageID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("package not found")
		}
		return nil, s.storageErr(op, userID, err)
	}
	return s.Upsert(ctx, models.Subscription{UserID: userID, PackageID: packageID, Status: status})
}

// Get возвращает подписку пользователя.
func (s *Service) Get(ctx context.Context, userID string) (*models.Subscription, error) {
	const op = "services.subscription.Get"
	sub, err := s.repo.GetSubscriptionByUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("subscription not found")
	}
	if err != nil {
		return nil, s.storageErr(op, userID, err)
	}
	return sub, nil
}

// Status возвращает статус подписки пользователя или inactive, если подписки нет.
func (s *Service) Status(ctx context.Context, userID string) (string, error) {
	sub, err := s.Get(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return models.StatusInactive, nil
	}
	if err != nil {
		return "", err
	}
	return sub.Status, nil
}

func (s *Service) storageErr(op, userID string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("user or package not found")
	}
	s.log.Error("subscription storage failure",
		slog.String("op", op),
		slog.String("user_id", userID),
		sl.Err(err),
	)
	return apperr.Upstream(err)
}

func (s *Service) afterWrite(ctx context.Context, op string, sub *models.Subscription) {
	log := s.log.With(slog.String("op", op), slog.String("user_id", sub.UserID))
	if s.sessions != nil {
		if err := s.sessions.InvalidateSession(ctx, sub.UserID); err != nil {
			log.Warn("failed to invalidate session snapshot", sl.Err(err))
		}
	}

	event := models.Event{
		Type:       models.EventSubscriptionChanged,
		UserID:     sub.UserID,
		Attributes: map[string]string{"status": sub.Status, "package_id": sub.PackageID},
	}
	if user, err := s.repo.GetUser(ctx, sub.UserID); err == nil {
		event.Email = user.Email
		event.Name = user.Name
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Warn("failed to publish event", sl.Err(err))
	}
	log.Info("subscription saved", slog.String("status", sub.Status))
}

// Package auth содержит бизнес-логику аутентификации по email и паролю
// и обслуживание токена сессии.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/designhub/internal/lib/apperr"
	"github.com/magabrotheeeer/designhub/internal/lib/password"
	"github.com/magabrotheeeer/designhub/internal/lib/sl"
	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/storage"
)

// ErrInvalidCredentials — единственная ошибка входа, которую видит клиент.
// Нет пользователя, нет пароля, неверный пароль и сбой хранилища неотличимы снаружи.
var ErrInvalidCredentials = apperr.Unauthorized("invalid credentials")

// UserRepository описывает контракт хранилища пользователей.
type UserRepository interface {
	// CreateUser сохраняет пользователя, для занятого email возвращает storage.ErrAlreadyExists.
	CreateUser(ctx context.Context, user models.User) (*models.User, error)
	// GetUserByEmail ищет пользователя по email без учёта регистра.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

// EventPublisher публикует доменные события для рассылки уведомлений.
type EventPublisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// Service отвечает за регистрацию, вход и смену пароля.
type Service struct {
	users     UserRepository
	publisher EventPublisher
	log       *slog.Logger
}

// NewService создает новый экземпляр Service.
func NewService(users UserRepository, publisher EventPublisher, log *slog.Logger) *Service {
	return &Service{
		users:     users,
		publisher: publisher,
		log:       log,
	}
}

// Authenticate проверяет email и пароль и возвращает публичные данные пользователя.
//
// Для отсутствующего пользователя и пользователя без пароля всё равно выполняется
// сравнение с фиктивным хешем, поэтому время ответа не выдаёт причину отказа.
func (s *Service) Authenticate(ctx context.Context, email, rawPassword string) (*models.Identity, error) {
	const op = "services.auth.Authenticate"
	email = strings.ToLower(strings.TrimSpace(email))
	log := s.log.With(slog.String("op", op), slog.String("email", email))

	if email == "" || rawPassword == "" {
		_ = password.CompareDummy(rawPassword)
		log.Info("empty credentials")
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		_ = password.CompareDummy(rawPassword)
		if errors.Is(err, storage.ErrNotFound) {
			log.Info("user not found")
		} else {
			log.Error("failed to load user", sl.Err(err))
		}
		return nil, ErrInvalidCredentials
	}

	if user.PasswordHash == "" {
		_ = password.CompareDummy(rawPassword)
		log.Info("user has no password set", slog.String("user_id", user.ID))
		return nil, ErrInvalidCredentials
	}

	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			log.Info("password mismatch", slog.String("user_id", user.ID))
		} else {
			log.Error("stored hash is unusable", slog.String("user_id", user.ID), sl.Err(err))
		}
		return nil, ErrInvalidCredentials
	}

	log.Info("user authenticated", slog.String("user_id", user.ID))
	return user.Identity(), nil
}

// Register создает пользователя с ролью USER и без подписки.
func (s *Service) Register(ctx context.Context, name, email, rawPassword string) (*models.Identity, error) {
	const op = "services.auth.Register"
	log := s.log.With(slog.String("op", op))

	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		log.Error("failed to hash password", sl.Err(err))
		return nil, apperr.Upstream(err)
	}

	user, err := s.users.CreateUser(ctx, models.User{
		Name:         strings.TrimSpace(name),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hashed,
		Role:         models.RoleUser,
	})
	if errors.Is(err, storage.ErrAlreadyExists) {
		return nil, apperr.Conflict("user with this email already exists")
	}
	if err != nil {
		log.Error("failed to create user", sl.Err(err))
		return nil, apperr.Upstream(err)
	}

	event := models.Event{
		Type:   models.EventUserRegistered,
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Warn("failed to publish event", slog.String("user_id", user.ID), sl.Err(err))
	}

	log.Info("user registered", slog.String("user_id", user.ID))
	return user.Identity(), nil
}

// ChangePassword меняет пароль, если текущий пароль указан верно.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	const op = "services.auth.ChangePassword"
	log := s.log.With(slog.String("op", op), slog.String("user_id", userID))

	user, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("user not found")
	}
	if err != nil {
		log.Error("failed to load user", sl.Err(err))
		return apperr.Upstream(err)
	}

	if user.PasswordHash != "" {
		if err := password.CompareHash(user.PasswordHash, oldPassword); err != nil {
			log.Info("current password mismatch")
			return apperr.Validation("current password is incorrect")
		}
	}

	hashed, err := password.GetHash(newPassword)
	if err != nil {
		return apperr.Upstream(err)
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hashed); err != nil {
		log.Error("failed to update password", sl.Err(err))
		return apperr.Upstream(err)
	}
	log.Info("password changed")
	return nil
}

// Package files содержит бизнес-логику файлов, загруженных через провайдера загрузок.
package files

import (
	"context"
	"errors"
	"log/slog"

	"github.com/magabrotheeeer/designhub/internal/lib/apperr"
	"github.com/magabrotheeeer/designhub/internal/lib/sl"
	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/storage"
)

// Repository определяет методы хранилища файлов.
type Repository interface {
	// CreateFile сохраняет файл. Повтор с тем же ключом возвращает уже сохранённую запись.
	CreateFile(ctx context.Context, f models.File) (*models.File, error)
	GetFile(ctx context.Context, id string) (*models.File, error)
	ListFiles(ctx context.Context, userID, requestID string) ([]models.File, error)
	DeleteFile(ctx context.Context, id string) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetRequest(ctx context.Context, id string) (*models.DesignRequest, error)
}

// Service реализует операции над файлами.
type Service struct {
	repo Repository
	log  *slog.Logger
}

// NewService создает новый экземпляр Service.
func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// RecordUpload сохраняет файл из колбэка провайдера загрузок.
// Заявка, если указана, должна принадлежать тому же пользователю.
func (s *Service) RecordUpload(ctx context.Context, f models.File) (*models.File, error) {
	const op = "services.files.RecordUpload"
	log := s.log.With(slog.String("op", op), slog.String("user_id", f.UserID), slog.String("key", f.Key))

	if _, err := s.repo.GetUser(ctx, f.UserID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.Validation("unknown user")
		}
		log.Error("failed to load user", sl.Err(err))
		return nil, apperr.Upstream(err)
	}
	if f.DesignRequestID != "" {
		r, err := s.repo.GetRequest(ctx, f.DesignRequestID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.Validation("unknown design request")
		}
		if err != nil {
			log.Error("failed to load request", sl.Err(err))
			return nil, apperr.Upstream(err)
		}
		if r.UserID != f.UserID {
			return nil, apperr.Validation("design request belongs to another user")
		}
	}

	saved, err := s.repo.CreateFile(ctx, f)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.Validation("unknown user or design request")
	}
	if err != nil {
		log.Error("failed to save file", sl.Err(err))
		return nil, apperr.Upstream(err)
	}
	log.Info("file recorded", slog.String("file_id", saved.ID))
	return saved, nil
}

// List возвращает файлы пользователя, при requestID только файлы этой заявки.
// Администратор видит файлы всех пользователей.
func (s *Service) List(ctx context.Context, actor models.Actor, requestID string) ([]models.File, error) {
	const op = "services.files.List"
	userID := actor.ID
	if actor.IsAdmin() {
		userID = ""
	}
	if requestID != "" {
		r, err := s.repo.GetRequest(ctx, requestID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("request not found")
		}
		if err != nil {
			return nil, s.storageErr(op, err)
		}
		if !actor.CanAccess(r.UserID) {
			return nil, apperr.NotFound("request not found")
		}
	}
	list, err := s.repo.ListFiles(ctx, userID, requestID)
	if err != nil {
		return nil, s.storageErr(op, err)
	}
	return list, nil
}

// Delete удаляет запись о файле. Доступно владельцу и администратору.
func (s *Service) Delete(ctx context.Context, actor models.Actor, id string) error {
	const op = "services.files.Delete"
	f, err := s.repo.GetFile(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("file not found")
	}
	if err != nil {
		return s.storageErr(op, err)
	}
	if !actor.CanAccess(f.UserID) {
		return apperr.NotFound("file not found")
	}
	if err := s.repo.DeleteFile(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("file not found")
		}
		return s.storageErr(op, err)
	}
	return nil
}

func (s *Service) storageErr(op string, err error) error {
	s.log.Error("file storage failure", slog.String("op", op), sl.Err(err))
	return apperr.Upstream(err)
}

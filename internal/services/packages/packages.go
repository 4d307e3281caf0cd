// Package packages содержит бизнес-логику тарифных пакетов.
package packages

import (
	"context"
	"errors"
	"log/slog"

	"github.com/magabrotheeeer/designhub/internal/lib/apperr"
	"github.com/magabrotheeeer/designhub/internal/lib/sl"
	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/storage"
)

// Repository определяет методы хранилища пакетов.
type Repository interface {
	CreatePackage(ctx context.Context, p models.Package) (*models.Package, error)
	UpdatePackage(ctx context.Context, p models.Package) (*models.Package, error)
	// ArchivePackage снимает пакет с продажи. Подписки на пакет остаются.
	ArchivePackage(ctx context.Context, id string) error
	GetPackage(ctx context.Context, id string) (*models.Package, error)
	ListPackages(ctx context.Context, onlyActive bool) ([]models.Package, error)
}

// Service реализует операции над пакетами.
type Service struct {
	repo Repository
	log  *slog.Logger
}

// NewService создает новый экземпляр Service.
func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// List возвращает пакеты. Архивные пакеты видит только администратор.
func (s *Service) List(ctx context.Context, actor models.Actor) ([]models.Package, error) {
	list, err := s.repo.ListPackages(ctx, !actor.IsAdmin())
	if err != nil {
		return nil, s.storageErr("services.packages.List", err)
	}
	return list, nil
}

// Get возвращает пакет по идентификатору.
func (s *Service) Get(ctx context.Context, actor models.Actor, id string) (*models.Package, error) {
	p, err := s.repo.GetPackage(ctx, id)
	if err != nil {
		return nil, s.storageErr("services.packages.Get", err)
	}
	if !p.Active && !actor.IsAdmin() {
		return nil, apperr.NotFound("package not found")
	}
	return p, nil
}

// Create добавляет пакет.
func (s *Service) Create(ctx context.Context, p models.Package) (*models.Package, error) {
	if p.Currency == "" {
		p.Currency = "usd"
	}
	if p.Features == nil {
		p.Features = []string{}
	}
	created, err := s.repo.CreatePackage(ctx, p)
	if err != nil {
		return nil, s.storageErr("services.packages.Create", err)
	}
	s.log.Info("package created", slog.String("package_id", created.ID), slog.String("name", created.Name))
	return created, nil
}

// Update заменяет поля пакета.
func (s *Service) Update(ctx context.Context, p models.Package) (*models.Package, error) {
	if p.Features == nil {
		p.Features = []string{}
	}
	updated, err := s.repo.UpdatePackage(ctx, p)
	if err != nil {
		return nil, s.storageErr("services.packages.Update", err)
	}
	return updated, nil
}

// Archive снимает пакет с продажи.
func (s *Service) Archive(ctx context.Context, id string) error {
	if err := s.repo.ArchivePackage(ctx, id); err != nil {
		return s.storageErr("services.packages.Archive", err)
	}
	s.log.Info("package archived", slog.String("package_id", id))
	return nil
}

func (s *Service) storageErr(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return apperr.NotFound("package not found")
	case errors.Is(err, storage.ErrAlreadyExists):
		return apperr.Conflict("package with this name already exists")
	}
	s.log.Error("package storage failure", slog.String("op", op), sl.Err(err))
	return apperr.Upstream(err)
}

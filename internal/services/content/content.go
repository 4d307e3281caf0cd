// Package content содержит бизнес-логику контента сайта: услуг, кейсов и отзывов.
package content

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode"

	"github.com/magabrotheeeer/designhub/internal/lib/apperr"
	"github.com/magabrotheeeer/designhub/internal/lib/sl"
	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/storage"
)

// Repository определяет методы хранилища контента.
type Repository interface {
	CreateService(ctx context.Context, v models.Service) (*models.Service, error)
	UpdateService(ctx context.Context, v models.Service) (*models.Service, error)
	GetService(ctx context.Context, id string) (*models.Service, error)
	ListServices(ctx context.Context) ([]models.Service, error)
	DeleteService(ctx context.Context, id string) error

	CreateCaseStudy(ctx context.Context, v models.CaseStudy) (*models.CaseStudy, error)
	UpdateCaseStudy(ctx context.Context, v models.CaseStudy) (*models.CaseStudy, error)
	GetCaseStudy(ctx context.Context, id string) (*models.CaseStudy, error)
	GetCaseStudyBySlug(ctx context.Context, slug string) (*models.CaseStudy, error)
	ListCaseStudies(ctx context.Context, onlyPublished bool) ([]models.CaseStudy, error)
	DeleteCaseStudy(ctx context.Context, id string) error

	CreateTestimonial(ctx context.Context, v models.Testimonial) (*models.Testimonial, error)
	UpdateTestimonial(ctx context.Context, v models.Testimonial) (*models.Testimonial, error)
	GetTestimonial(ctx context.Context, id string) (*models.Testimonial, error)
	ListTestimonials(ctx context.Context) ([]models.Testimonial, error)
	DeleteTestimonial(ctx context.Context, id string) error
}

// Service реализует операции над контентом.
type Service struct {
	repo Repository
	log  *slog.Logger
}

// NewService создает новый экземпляр Service.
func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Services

func (s *Service) ListServices(ctx context.Context) ([]models.Service, error) {
	list, err := s.repo.ListServices(ctx)
	return list, s.mapErr("services.content.ListServices", "service", err)
}

func (s *Service) GetService(ctx context.Context, id string) (*models.Service, error) {
	v, err := s.repo.GetService(ctx, id)
	return v, s.mapErr("services.content.GetService", "service", err)
}

func (s *Service) CreateService(ctx context.Context, v models.Service) (*models.Service, error) {
	created, err := s.repo.CreateService(ctx, v)
	return created, s.mapErr("services.content.CreateService", "service", err)
}

func (s *Service) UpdateService(ctx context.Context, v models.Service) (*models.Service, error) {
	updated, err := s.repo.UpdateService(ctx, v)
	return updated, s.mapErr("services.content.UpdateService", "service", err)
}

func (s *Service) DeleteService(ctx context.Context, id string) error {
	return s.mapErr("services.content.DeleteService", "service", s.repo.DeleteService(ctx, id))
}

// Case studies

// ListCaseStudies возвращает кейсы. Черновики видит только администратор.
func (s *Service) ListCaseStudies(ctx context.Context, actor models.Actor) ([]models.CaseStudy, error) {
	list, err := s.repo.ListCaseStudies(ctx, !actor.IsAdmin())
	return list, s.mapErr("services.content.ListCaseStudies", "case study", err)
}

// GetCaseStudy ищет кейс по идентификатору или slug. Черновик доступен администратору и автору.
func (s *Service) GetCaseStudy(ctx context.Context, actor models.Actor, idOrSlug string) (*models.CaseStudy, error) {
	const op = "services.content.GetCaseStudy"
	v, err := s.repo.GetCaseStudy(ctx, idOrSlug)
	if errors.Is(err, storage.ErrNotFound) {
		v, err = s.repo.GetCaseStudyBySlug(ctx, idOrSlug)
	}
	if err != nil {
		return nil, s.mapErr(op, "case study", err)
	}
	if !v.Published && !actor.CanAccess(v.AuthorID) {
		return nil, apperr.NotFound("case study not found")
	}
	return v, nil
}

// CreateCaseStudy создаёт кейс от имени actor. Пустой slug строится из заголовка.
// Публикует кейс только администратор, кейс другого автора сохраняется черновиком.
func (s *Service) CreateCaseStudy(ctx context.Context, actor models.Actor, v models.CaseStudy) (*models.CaseStudy, error) {
	v.AuthorID = actor.ID
	if !actor.IsAdmin() {
		v.Published = false
	}
	if v.Slug == "" {
		v.Slug = Slugify(v.Title)
	}
	if v.Slug == "" {
		return nil, apperr.Validation("slug cannot be empty")
	}
	created, err := s.repo.CreateCaseStudy(ctx, v)
	return created, s.mapErr("services.content.CreateCaseStudy", "case study", err)
}

// UpdateCaseStudy обновляет кейс. Доступно администратору и автору.
func (s *Service) UpdateCaseStudy(ctx context.Context, actor models.Actor, v models.CaseStudy) (*models.CaseStudy, error) {
	const op = "services.content.UpdateCaseStudy"
	existing, err := s.repo.GetCaseStudy(ctx, v.ID)
	if err != nil {
		return nil, s.mapErr(op, "case study", err)
	}
	if !actor.CanAccess(existing.AuthorID) {
		return nil, apperr.Forbidden("only the author or an administrator can edit this case study")
	}
	if v.Slug == "" {
		v.Slug = existing.Slug
	}
	if !actor.IsAdmin() {
		v.Published = existing.Published
	}
	updated, err := s.repo.UpdateCaseStudy(ctx, v)
	return updated, s.mapErr(op, "case study", err)
}

// DeleteCaseStudy удаляет кейс. Доступно администратору и автору, остальным Forbidden.
func (s *Service) DeleteCaseStudy(ctx context.Context, actor models.Actor, id string) error {
	const op = "services.content.DeleteCaseStudy"
	existing, err := s.repo.GetCaseStudy(ctx, id)
	if err != nil {
		return s.mapErr(op, "case study", err)
	}
	if !actor.CanAccess(existing.AuthorID) {
		s.log.Info("case study delete denied",
			slog.String("op", op),
			slog.String("user_id", actor.ID),
			slog.String("case_study_id", id),
		)
		return apperr.Forbidden("only the author or an administrator can delete this case study")
	}
	return s.mapErr(op, "case study", s.repo.DeleteCaseStudy(ctx, id))
}

// Testimonials

func (s *Service) ListTestimonials(ctx context.Context) ([]models.Testimonial, error) {
	list, err := s.repo.ListTestimonials(ctx)
	return list, s.mapErr("services.content.ListTestimonials", "testimonial", err)
}

func (s *Service) GetTestimonial(ctx context.Context, id string) (*models.Testimonial, error) {
	v, err := s.repo.GetTestimonial(ctx, id)
	return v, s.mapErr("services.content.GetTestimonial", "testimonial", err)
}

func (s *Service) CreateTestimonial(ctx context.Context, v models.Testimonial) (*models.Testimonial, error) {
	if v.Rating < 1 || v.Rating > 5 {
		return nil, apperr.Validation("rating must be between 1 and 5")
	}
	created, err := s.repo.CreateTestimonial(ctx, v)
	return created, s.mapErr("services.content.CreateTestimonial", "testimonial", err)
}

func (s *Service) UpdateTestimonial(ctx context.Context, v models.Testimonial) (*models.Testimonial, error) {
	if v.Rating < 1 || v.Rating > 5 {
		return nil, apperr.Validation("rating must be between 1 and 5")
	}
	updated, err := s.repo.UpdateTestimonial(ctx, v)
	return updated, s.mapErr("services.content.UpdateTestimonial", "testimonial", err)
}

func (s *Service) DeleteTestimonial(ctx context.Context, id string) error {
	return s.mapErr("services.content.DeleteTestimonial", "testimonial", s.repo.DeleteTestimonial(ctx, id))
}

func (s *Service) mapErr(op, entity string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return apperr.NotFound(entity + " not found")
	case errors.Is(err, storage.ErrAlreadyExists):
		return apperr.Conflict(entity + " with this slug already exists")
	}
	s.log.Error("content storage failure", slog.String("op", op), sl.Err(err))
	return apperr.Upstream(err)
}

// Slugify переводит заголовок в slug: латиница и цифры в нижнем регистре через дефис.
func Slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/storage"
)

const (
	serviceColumns     = `id, title, description, icon, sort_order, created_at, updated_at`
	caseStudyColumns   = `id, author_id, title, slug, summary, body, cover_url, published, created_at, updated_at`
	testimonialColumns = `id, author_name, company, quote, rating, created_at, updated_at`
)

func scanService(row interface{ Scan(...any) error }) (*models.Service, error) {
	v := &models.Service{}
	if err := row.Scan(&v.ID, &v.Title, &v.Description, &v.Icon, &v.SortOrder, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	return v, nil
}

func scanCaseStudy(row interface{ Scan(...any) error }) (*models.CaseStudy, error) {
	v := &models.CaseStudy{}
	if err := row.Scan(&v.ID, &v.AuthorID, &v.Title, &v.Slug, &v.Summary, &v.Body, &v.CoverURL, &v.Published,
		&v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	return v, nil
}

func scanTestimonial(row interface{ Scan(...any) error }) (*models.Testimonial, error) {
	v := &models.Testimonial{}
	if err := row.Scan(&v.ID, &v.AuthorName, &v.Company, &v.Quote, &v.Rating, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	return v, nil
}

// deleteByID удаляет строку таблицы table по ID.
func (s *Storage) deleteByID(ctx context.Context, op, table, id string) error {
	if err := ctxDone(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	res, err := s.DB.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return nil
}

// CreateService сохраняет услугу.
func (s *Storage) CreateService(ctx context.Context, v models.Service) (*models.Service, error) {
	const op = "storage.CreateService"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	created, err := scanService(s.DB.QueryRowContext(ctx,
		`INSERT INTO services (title, description, icon, sort_order) VALUES ($1, $2, $3, $4) RETURNING `+serviceColumns,
		v.Title, v.Description, v.Icon, v.SortOrder))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return created, nil
}

// UpdateService перезаписывает услугу.
func (s *Storage) UpdateService(ctx context.Context, v models.Service) (*models.Service, error) {
	const op = "storage.UpdateService"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	updated, err := scanService(s.DB.QueryRowContext(ctx,
		`UPDATE services SET title = $2, description = $3, icon = $4, sort_order = $5, updated_at = now()
		 WHERE id = $1 RETURNING `+serviceColumns,
		v.ID, v.Title, v.Description, v.Icon, v.SortOrder))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return updated, nil
}

// GetService возвращает услугу по ID.
func (s *Storage) GetService(ctx context.Context, id string) (*models.Service, error) {
	const op = "storage.GetService"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	v, err := scanService(s.DB.QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return v, nil
}

// ListServices возвращает услуги в порядке sort_order.
func (s *Storage) ListServices(ctx context.Context) ([]models.Service, error) {
	const op = "storage.ListServices"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT `+serviceColumns+` FROM services ORDER BY sort_order, title`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	result := make([]models.Service, 0)
	for rows.Next() {
		v, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// DeleteService удаляет услугу.
func (s *Storage) DeleteService(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "storage.DeleteService", "services", id)
}

// CreateCaseStudy сохраняет кейс. Повторный slug возвращает storage.ErrAlreadyExists.
func (s *Storage) CreateCaseStudy(ctx context.Context, v models.CaseStudy) (*models.CaseStudy, error) {
	const op = "storage.CreateCaseStudy"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	created, err := scanCaseStudy(s.DB.QueryRowContext(ctx,
		`INSERT INTO case_studies (author_id, title, slug, summary, body, cover_url, published)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING `+caseStudyColumns,
		v.AuthorID, v.Title, v.Slug, v.Summary, v.Body, v.CoverURL, v.Published))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return created, nil
}

// UpdateCaseStudy перезаписывает кейс. Автор не меняется.
func (s *Storage) UpdateCaseStudy(ctx context.Context, v models.CaseStudy) (*models.CaseStudy, error) {
	const op = "storage.UpdateCaseStudy"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	updated, err := scanCaseStudy(s.DB.QueryRowContext(ctx,
		`UPDATE case_studies SET title = $2, slug = $3, summary = $4, body = $5, cover_url = $6,
		     published = $7, updated_at = now()
		 WHERE id = $1 RETURNING `+caseStudyColumns,
		v.ID, v.Title, v.Slug, v.Summary, v.Body, v.CoverURL, v.Published))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return updated, nil
}

// GetCaseStudy возвращает кейс по ID.
func (s *Storage) GetCaseStudy(ctx context.Context, id string) (*models.CaseStudy, error) {
	const op = "storage.GetCaseStudy"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	v, err := scanCaseStudy(s.DB.QueryRowContext(ctx, `SELECT `+caseStudyColumns+` FROM case_studies WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return v, nil
}

// GetCaseStudyBySlug возвращает кейс по slug.
func (s *Storage) GetCaseStudyBySlug(ctx context.Context, slug string) (*models.CaseStudy, error) {
	const op = "storage.GetCaseStudyBySlug"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	v, err := scanCaseStudy(s.DB.QueryRowContext(ctx, `SELECT `+caseStudyColumns+` FROM case_studies WHERE slug = $1`, slug))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return v, nil
}

// ListCaseStudies возвращает кейсы, новые первыми.
func (s *Storage) ListCaseStudies(ctx context.Context, onlyPublished bool) ([]models.CaseStudy, error) {
	const op = "storage.ListCaseStudies"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+caseStudyColumns+` FROM case_studies WHERE (NOT $1::boolean OR published) ORDER BY created_at DESC`,
		onlyPublished)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	result := make([]models.CaseStudy, 0)
	for rows.Next() {
		v, err := scanCaseStudy(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// DeleteCaseStudy удаляет кейс.
func (s *Storage) DeleteCaseStudy(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "storage.DeleteCaseStudy", "case_studies", id)
}

// CreateTestimonial сохраняет отзыв.
func (s *Storage) CreateTestimonial(ctx context.Context, v models.Testimonial) (*models.Testimonial, error) {
	const op = "storage.CreateTestimonial"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	created, err := scanTestimonial(s.DB.QueryRowContext(ctx,
		`INSERT INTO testimonials (author_name, company, quote, rating) VALUES ($1, $2, $3, $4) RETURNING `+testimonialColumns,
		v.AuthorName, v.Company, v.Quote, v.Rating))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return created, nil
}

// UpdateTestimonial перезаписывает отзыв.
func (s *Storage) UpdateTestimonial(ctx context.Context, v models.Testimonial) (*models.Testimonial, error) {
	const op = "storage.UpdateTestimonial"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	updated, err := scanTestimonial(s.DB.QueryRowContext(ctx,
		`UPDATE testimonials SET author_name = $2, company = $3, quote = $4, rating = $5, updated_at = now()
		 WHERE id = $1 RETURNING `+testimonialColumns,
		v.ID, v.AuthorName, v.Company, v.Quote, v.Rating))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return updated, nil
}

// GetTestimonial возвращает отзыв по ID.
func (s *Storage) GetTestimonial(ctx context.Context, id string) (*models.Testimonial, error) {
	const op = "storage.GetTestimonial"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	v, err := scanTestimonial(s.DB.QueryRowContext(ctx, `SELECT `+testimonialColumns+` FROM testimonials WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return v, nil
}

// ListTestimonials возвращает отзывы, новые первыми.
func (s *Storage) ListTestimonials(ctx context.Context) ([]models.Testimonial, error) {
	const op = "storage.ListTestimonials"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT `+testimonialColumns+` FROM testimonials ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	result := make([]models.Testimonial, 0)
	for rows.Next() {
		v, err := scanTestimonial(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// DeleteTestimonial удаляет отзыв.
func (s *Storage) DeleteTestimonial(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "storage.DeleteTestimonial", "testimonials", id)
}

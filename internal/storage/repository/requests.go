package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/storage"
)

const requestColumns = `id, user_id, title, description, category, priority, status,
	completed_at, created_at, updated_at`

func scanRequest(row interface{ Scan(...any) error }) (*models.DesignRequest, error) {
	r := &models.DesignRequest{}
	var completedAt sql.NullTime
	if err := row.Scan(&r.ID, &r.UserID, &r.Title, &r.Description, &r.Category, &r.Priority, &r.Status,
		&completedAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	return r, nil
}

// CreateRequest сохраняет заявку на дизайн в статусе PENDING.
func (s *Storage) CreateRequest(ctx context.Context, r models.DesignRequest) (*models.DesignRequest, error) {
	const op = "storage.CreateRequest"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO design_requests (user_id, title, description, category, priority, status)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING ` + requestColumns
	created, err := scanRequest(s.DB.QueryRowContext(ctx, query,
		r.UserID, r.Title, r.Description, r.Category, r.Priority, models.RequestPending))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return created, nil
}

// GetRequest возвращает заявку по ID.
func (s *Storage) GetRequest(ctx context.Context, id string) (*models.DesignRequest, error) {
	const op = "storage.GetRequest"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	r, err := scanRequest(s.DB.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM design_requests WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return r, nil
}

// ListRequests возвращает заявки, новые первыми. Пустой UserID означает заявки всех пользователей.
func (s *Storage) ListRequests(ctx context.Context, filter models.RequestFilter) ([]models.DesignRequest, error) {
	const op = "storage.ListRequests"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	p := page(filter.Limit, filter.Offset)
	query := `SELECT ` + requestColumns + ` FROM design_requests
			  WHERE ($1::text = '' OR user_id::text = $1::text)
			    AND ($2::text = '' OR status = $2::text)
			  ORDER BY created_at DESC
			  LIMIT $3 OFFSET $4`
	rows, err := s.DB.QueryContext(ctx, query, filter.UserID, filter.Status, p.Limit, p.Offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.DesignRequest, 0)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpdateRequest перезаписывает описательные поля заявки.
func (s *Storage) UpdateRequest(ctx context.Context, r models.DesignRequest) (*models.DesignRequest, error) {
	const op = "storage.UpdateRequest"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `UPDATE design_requests
			  SET title = $2, description = $3, category = $4, priority = $5, updated_at = now()
			  WHERE id = $1
			  RETURNING ` + requestColumns
	updated, err := scanRequest(s.DB.QueryRowContext(ctx, query, r.ID, r.Title, r.Description, r.Category, r.Priority))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return updated, nil
}

// UpdateRequestStatus переводит заявку из статуса from в статус to.
//
// Если статус заявки уже не from, возвращает storage.ErrConflict.
func (s *Storage) UpdateRequestStatus(ctx context.Context, id, from, to string, completedAt *time.Time) (*models.DesignRequest, error) {
	const op = "storage.UpdateRequestStatus"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var completed sql.NullTime
	if completedAt != nil {
		completed = sql.NullTime{Time: *completedAt, Valid: true}
	}
	query := `UPDATE design_requests SET status = $3, completed_at = $4, updated_at = now()
			  WHERE id = $1 AND status = $2
			  RETURNING ` + requestColumns
	updated, err := scanRequest(s.DB.QueryRowContext(ctx, query, id, from, to, completed))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return updated, nil
}

// DeleteRequest удаляет заявку. Файлы заявки остаются у пользователя.
func (s *Storage) DeleteRequest(ctx context.Context, id string) error {
	const op = "storage.DeleteRequest"
	if err := ctxDone(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	res, err := s.DB.ExecContext(ctx, `DELETE FROM design_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return nil
}

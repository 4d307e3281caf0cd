package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/storage"
)

const fileColumns = `id, user_id, COALESCE(design_request_id::text, ''), file_name, file_size, file_url, key, created_at`

func scanFile(row interface{ Scan(...any) error }) (*models.File, error) {
	f := &models.File{}
	if err := row.Scan(&f.ID, &f.UserID, &f.DesignRequestID, &f.FileName, &f.FileSize, &f.FileURL, &f.Key, &f.CreatedAt); err != nil {
		return nil, err
	}
	return f, nil
}

// CreateFile сохраняет файл. Повторный колбэк с тем же key возвращает уже сохранённую запись.
func (s *Storage) CreateFile(ctx context.Context, f models.File) (*models.File, error) {
	const op = "storage.CreateFile"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO files (user_id, design_request_id, file_name, file_size, file_url, key)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  ON CONFLICT (key) DO NOTHING
			  RETURNING ` + fileColumns
	created, err := scanFile(s.DB.QueryRowContext(ctx, query,
		f.UserID, nullString(f.DesignRequestID), f.FileName, f.FileSize, f.FileURL, f.Key))
	if errors.Is(err, sql.ErrNoRows) {
		existing, err := scanFile(s.DB.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE key = $1`, f.Key))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, mapError(err))
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return created, nil
}

// GetFile возвращает файл по ID.
func (s *Storage) GetFile(ctx context.Context, id string) (*models.File, error) {
	const op = "storage.GetFile"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	f, err := scanFile(s.DB.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return f, nil
}

// ListFiles возвращает файлы пользователя или заявки. Пустые фильтры не ограничивают выборку.
func (s *Storage) ListFiles(ctx context.Context, userID, requestID string) ([]models.File, error) {
	const op = "storage.ListFiles"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `SELECT ` + fileColumns + ` FROM files
			  WHERE ($1::text = '' OR user_id::text = $1::text)
			    AND ($2::text = '' OR design_request_id::text = $2::text)
			  ORDER BY created_at DESC`
	rows, err := s.DB.QueryContext(ctx, query, userID, requestID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.File, 0)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// DeleteFile удаляет запись о файле.
func (s *Storage) DeleteFile(ctx context.Context, id string) error {
	const op = "storage.DeleteFile"
	if err := ctxDone(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	res, err := s.DB.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return nil
}

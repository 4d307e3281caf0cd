package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/storage"
)

const packageColumns = `id, name, description, price, currency, features, active,
	COALESCE(stripe_price_id, ''), created_at, updated_at`

func scanPackage(row interface{ Scan(...any) error }) (*models.Package, error) {
	p := &models.Package{}
	var features []byte
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Currency, &features, &p.Active,
		&p.StripePriceID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(features, &p.Features); err != nil {
		return nil, err
	}
	return p, nil
}

func encodeFeatures(features []string) ([]byte, error) {
	if features == nil {
		features = []string{}
	}
	return json.Marshal(features)
}

// CreatePackage сохраняет тарифный план.
func (s *Storage) CreatePackage(ctx context.Context, p models.Package) (*models.Package, error) {
	const op = "storage.CreatePackage"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	features, err := encodeFeatures(p.Features)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO packages (name, description, price, currency, features, active, stripe_price_id)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING ` + packageColumns
	created, err := scanPackage(s.DB.QueryRowContext(ctx, query,
		p.Name, p.Description, p.Price, p.Currency, features, p.Active, nullString(p.StripePriceID)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return created, nil
}

// UpdatePackage перезаписывает поля тарифного плана.
func (s *Storage) UpdatePackage(ctx context.Context, p models.Package) (*models.Package, error) {
	const op = "storage.UpdatePackage"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	features, err := encodeFeatures(p.Features)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `UPDATE packages SET name = $2, description = $3, price = $4, currency = $5,
			      features = $6, active = $7, stripe_price_id = $8, updated_at = now()
			  WHERE id = $1
			  RETURNING ` + packageColumns
	updated, err := scanPackage(s.DB.QueryRowContext(ctx, query,
		p.ID, p.Name, p.Description, p.Price, p.Currency, features, p.Active, nullString(p.StripePriceID)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return updated, nil
}

// ArchivePackage снимает план с продажи. Подписки на него продолжают ссылаться на запись.
func (s *Storage) ArchivePackage(ctx context.Context, id string) error {
	const op = "storage.ArchivePackage"
	if err := ctxDone(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE packages SET active = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return nil
}

// GetPackage возвращает план по ID.
func (s *Storage) GetPackage(ctx context.Context, id string) (*models.Package, error) {
	const op = "storage.GetPackage"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p, err := scanPackage(s.DB.QueryRowContext(ctx, `SELECT `+packageColumns+` FROM packages WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return p, nil
}

// GetPackageByName возвращает план по имени без учёта регистра.
func (s *Storage) GetPackageByName(ctx context.Context, name string) (*models.Package, error) {
	const op = "storage.GetPackageByName"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p, err := scanPackage(s.DB.QueryRowContext(ctx,
		`SELECT `+packageColumns+` FROM packages WHERE lower(name) = lower($1)`, name))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return p, nil
}

// ListPackages возвращает планы, отсортированные по цене.
func (s *Storage) ListPackages(ctx context.Context, onlyActive bool) ([]models.Package, error) {
	const op = "storage.ListPackages"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+packageColumns+` FROM packages WHERE (NOT $1::boolean OR active) ORDER BY price, name`, onlyActive)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.Package, 0)
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

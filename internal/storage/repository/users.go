package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/storage"
)

const userColumns = `id, name, email, COALESCE(password_hash, ''), role, subscription_status,
	onboarding_step, onboarding_completed, COALESCE(stripe_customer_id, ''), created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.SubscriptionStatus,
		&u.OnboardingStep, &u.OnboardingCompleted, &u.StripeCustomerID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return u, nil
}

// CreateUser сохраняет нового пользователя. Повторный email возвращает storage.ErrAlreadyExists.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	const op = "storage.CreateUser"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO users (name, email, password_hash, role, subscription_status)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING ` + userColumns
	u, err := scanUser(s.DB.QueryRowContext(ctx, query,
		user.Name, strings.ToLower(strings.TrimSpace(user.Email)), nullString(user.PasswordHash),
		user.Role, models.StatusInactive))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return u, nil
}

// GetUser возвращает пользователя по его ID.
func (s *Storage) GetUser(ctx context.Context, id string) (*models.User, error) {
	const op = "storage.GetUser"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	u, err := scanUser(s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return u, nil
}

// GetUserByEmail ищет пользователя по email без учёта регистра.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	u, err := scanUser(s.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return u, nil
}

// GetUserByStripeCustomerID ищет пользователя по идентификатору клиента Stripe.
func (s *Storage) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	const op = "storage.GetUserByStripeCustomerID"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	u, err := scanUser(s.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE stripe_customer_id = $1`, customerID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return u, nil
}

// ListUsers возвращает пользователей с фильтром по роли и подстроке имени или email.
func (s *Storage) ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	const op = "storage.ListUsers"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	p := page(filter.Limit, filter.Offset)
	query := `SELECT ` + userColumns + ` FROM users
			  WHERE ($1::text = '' OR role = $1::text)
			    AND ($2::text = '' OR name ILIKE '%' || $2::text || '%' OR email ILIKE '%' || $2::text || '%')
			  ORDER BY created_at DESC
			  LIMIT $3 OFFSET $4`
	rows, err := s.DB.QueryContext(ctx, query, filter.Role, filter.Query, p.Limit, p.Offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func (s *Storage) execUserUpdate(ctx context.Context, op, query string, args ...any) error {
	if err := ctxDone(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return nil
}

// UpdateUserName меняет отображаемое имя пользователя.
func (s *Storage) UpdateUserName(ctx context.Context, id, name string) error {
	return s.execUserUpdate(ctx, "storage.UpdateUserName",
		`UPDATE users SET name = $2, updated_at = now() WHERE id = $1`, id, name)
}

// UpdatePasswordHash сохраняет новый хэш пароля.
func (s *Storage) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return s.execUserUpdate(ctx, "storage.UpdatePasswordHash",
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, hash)
}

// UpdateOnboarding сохраняет прогресс онбординга.
func (s *Storage) UpdateOnboarding(ctx context.Context, id string, step int, completed bool) error {
	return s.execUserUpdate(ctx, "storage.UpdateOnboarding",
		`UPDATE users SET onboarding_step = $2, onboarding_completed = $3, updated_at = now() WHERE id = $1`,
		id, step, completed)
}

// UpdateUserRole меняет роль пользователя.
func (s *Storage) UpdateUserRole(ctx context.Context, id, role string) error {
	return s.execUserUpdate(ctx, "storage.UpdateUserRole",
		`UPDATE users SET role = $2, updated_at = now() WHERE id = $1`, id, role)
}

// ClaimStripeCustomerID привязывает клиента Stripe к пользователю, только если
// привязки ещё нет. Возвращает идентификатор, который сохранён в итоге.
func (s *Storage) ClaimStripeCustomerID(ctx context.Context, id, customerID string) (string, error) {
	const op = "storage.ClaimStripeCustomerID"
	if err := ctxDone(ctx); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	var stored string
	err := s.DB.QueryRowContext(ctx,
		`UPDATE users SET stripe_customer_id = $2, updated_at = now()
		 WHERE id = $1 AND COALESCE(stripe_customer_id, '') = ''
		 RETURNING stripe_customer_id`, id, customerID).Scan(&stored)
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s: %w", op, mapError(err))
	}

	// клиент уже привязан или пользователя нет
	err = s.DB.QueryRowContext(ctx,
		`SELECT COALESCE(stripe_customer_id, '') FROM users WHERE id = $1`, id).Scan(&stored)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, mapError(err))
	}
	return stored, nil
}

// SessionSnapshot читает роль, статус подписки и онбординг пользователя.
// Статус берётся из subscriptions, при отсутствии подписки inactive.
func (s *Storage) SessionSnapshot(ctx context.Context, userID string) (*models.SessionSnapshot, error) {
	const op = "storage.SessionSnapshot"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `SELECT u.role, COALESCE(s.status, $2), u.onboarding_step, u.onboarding_completed
			  FROM users u
			  LEFT JOIN subscriptions s ON s.user_id = u.id
			  WHERE u.id = $1`
	var snap models.SessionSnapshot
	if err := s.DB.QueryRowContext(ctx, query, userID, models.StatusInactive).
		Scan(&snap.Role, &snap.SubscriptionStatus, &snap.OnboardingStep, &snap.OnboardingCompleted); err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return &snap, nil
}

// syncUserStatus обновляет производный статус подписки пользователя в той же транзакции.
func syncUserStatus(ctx context.Context, tx *sql.Tx, userID, status string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE users SET subscription_status = $2, updated_at = now() WHERE id = $1`, userID, status)
	return err
}

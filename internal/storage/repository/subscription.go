package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/storage"
)

const subscriptionColumns = `id, user_id, COALESCE(package_id::text, ''), status,
	COALESCE(stripe_customer_id, ''), COALESCE(stripe_subscription_id, ''),
	current_period_end, cancel_at_period_end, created_at, updated_at`

func scanSubscription(row interface{ Scan(...any) error }) (*models.Subscription, error) {
	sub := &models.Subscription{}
	var periodEnd sql.NullTime
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.PackageID, &sub.Status,
		&sub.StripeCustomerID, &sub.StripeSubscriptionID,
		&periodEnd, &sub.CancelAtPeriodEnd, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return nil, err
	}
	if periodEnd.Valid {
		t := periodEnd.Time
		sub.CurrentPeriodEnd = &t
	}
	return sub, nil
}

func subscriptionArgs(sub models.Subscription) []any {
	var periodEnd sql.NullTime
	if sub.CurrentPeriodEnd != nil {
		periodEnd = sql.NullTime{Time: *sub.CurrentPeriodEnd, Valid: true}
	}
	return []any{
		sub.UserID, nullString(sub.PackageID), sub.Status,
		nullString(sub.StripeCustomerID), nullString(sub.StripeSubscriptionID),
		periodEnd, sub.CancelAtPeriodEnd,
	}
}

// CreateSubscription атомарно создаёт подписку пользователя.
//
// Если подписка уже есть, возвращает storage.ErrAlreadyExists и ничего не меняет.
// Производный статус в users обновляется в той же транзакции.
func (s *Storage) CreateSubscription(ctx context.Context, sub models.Subscription) (*models.Subscription, error) {
	const op = "storage.CreateSubscription"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO subscriptions (user_id, package_id, status, stripe_customer_id,
			      stripe_subscription_id, current_period_end, cancel_at_period_end)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  ON CONFLICT (user_id) DO NOTHING
			  RETURNING ` + subscriptionColumns
	var created *models.Subscription
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		created, err = scanSubscription(tx.QueryRowContext(ctx, query, subscriptionArgs(sub)...))
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrAlreadyExists
		}
		if err != nil {
			return mapError(err)
		}
		return syncUserStatus(ctx, tx, created.UserID, created.Status)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return created, nil
}

// UpsertSubscription создаёт подписку или обновляет существующую одним запросом.
//
// Пустые идентификаторы и nil-даты не затирают уже сохранённые значения.
func (s *Storage) UpsertSubscription(ctx context.Context, sub models.Subscription) (*models.Subscription, error) {
	const op = "storage.UpsertSubscription"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO subscriptions (user_id, package_id, status, stripe_customer_id,
			      stripe_subscription_id, current_period_end, cancel_at_period_end)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  ON CONFLICT (user_id) DO UPDATE SET
			      package_id = COALESCE(EXCLUDED.package_id, subscriptions.package_id),
			      status = EXCLUDED.status,
			      stripe_customer_id = COALESCE(EXCLUDED.stripe_customer_id, subscriptions.stripe_customer_id),
			      stripe_subscription_id = COALESCE(EXCLUDED.stripe_subscription_id, subscriptions.stripe_subscription_id),
			      current_period_end = COALESCE(EXCLUDED.current_period_end, subscriptions.current_period_end),
			      cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			      updated_at = now()
			  RETURNING ` + subscriptionColumns
	var saved *models.Subscription
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		saved, err = scanSubscription(tx.QueryRowContext(ctx, query, subscriptionArgs(sub)...))
		if err != nil {
			return mapError(err)
		}
		return syncUserStatus(ctx, tx, saved.UserID, saved.Status)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return saved, nil
}

// UpdateSubscriptionStatus меняет статус подписки пользователя.
func (s *Storage) UpdateSubscriptionStatus(ctx context.Context, userID, status string) (*models.Subscription, error) {
	const op = "storage.UpdateSubscriptionStatus"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `UPDATE subscriptions SET status = $2, updated_at = now()
			  WHERE user_id = $1
			  RETURNING ` + subscriptionColumns
	var saved *models.Subscription
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		saved, err = scanSubscription(tx.QueryRowContext(ctx, query, userID, status))
		if err != nil {
			return mapError(err)
		}
		return syncUserStatus(ctx, tx, userID, status)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return saved, nil
}

// GetSubscriptionByUser возвращает подписку пользователя.
func (s *Storage) GetSubscriptionByUser(ctx context.Context, userID string) (*models.Subscription, error) {
	const op = "storage.GetSubscriptionByUser"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sub, err := scanSubscription(s.DB.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1`, userID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return sub, nil
}

// GetSubscriptionByStripeID возвращает подписку по идентификатору подписки Stripe.
func (s *Storage) GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	const op = "storage.GetSubscriptionByStripeID"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sub, err := scanSubscription(s.DB.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE stripe_subscription_id = $1`, stripeSubscriptionID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return sub, nil
}

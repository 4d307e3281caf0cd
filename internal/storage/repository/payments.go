package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/storage"
)

const paymentColumns = `id, user_id, COALESCE(subscription_id::text, ''), amount, refunded_amount, currency, status,
	COALESCE(stripe_payment_intent_id, ''), COALESCE(stripe_invoice_id, ''), description, created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }) (*models.Payment, error) {
	p := &models.Payment{}
	if err := row.Scan(&p.ID, &p.UserID, &p.SubscriptionID, &p.Amount, &p.RefundedAmount, &p.Currency, &p.Status,
		&p.StripePaymentIntentID, &p.StripeInvoiceID, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

// CreatePayment сохраняет платёж.
//
// Платёж с уже известным stripe_invoice_id не дублируется: возвращается сохранённая запись и created=false.
func (s *Storage) CreatePayment(ctx context.Context, p models.Payment) (*models.Payment, bool, error) {
	const op = "storage.CreatePayment"
	if err := ctxDone(ctx); err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO payments (user_id, subscription_id, amount, refunded_amount, currency, status,
			      stripe_payment_intent_id, stripe_invoice_id, description)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  ON CONFLICT (stripe_invoice_id) DO NOTHING
			  RETURNING ` + paymentColumns
	created, err := scanPayment(s.DB.QueryRowContext(ctx, query,
		p.UserID, nullString(p.SubscriptionID), p.Amount, p.RefundedAmount, p.Currency, p.Status,
		nullString(p.StripePaymentIntentID), nullString(p.StripeInvoiceID), p.Description))
	if errors.Is(err, sql.ErrNoRows) {
		existing, err := scanPayment(s.DB.QueryRowContext(ctx,
			`SELECT `+paymentColumns+` FROM payments WHERE stripe_invoice_id = $1`, p.StripeInvoiceID))
		if err != nil {
			return nil, false, fmt.Errorf("%s: %w", op, mapError(err))
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return created, true, nil
}

// GetPayment возвращает платёж по ID.
func (s *Storage) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	const op = "storage.GetPayment"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p, err := scanPayment(s.DB.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return p, nil
}

// GetPaymentByIntent возвращает последний платёж по PaymentIntent Stripe.
func (s *Storage) GetPaymentByIntent(ctx context.Context, intentID string) (*models.Payment, error) {
	const op = "storage.GetPaymentByIntent"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p, err := scanPayment(s.DB.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE stripe_payment_intent_id = $1 ORDER BY created_at DESC LIMIT 1`, intentID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return p, nil
}

// ListPayments возвращает платежи пользователя, новые первыми. Пустой userID означает все платежи.
func (s *Storage) ListPayments(ctx context.Context, userID string, limit, offset int) ([]models.Payment, error) {
	const op = "storage.ListPayments"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pg := page(limit, offset)
	query := `SELECT ` + paymentColumns + ` FROM payments
			  WHERE ($1::text = '' OR user_id::text = $1::text)
			  ORDER BY created_at DESC
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, userID, pg.Limit, pg.Offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
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

// UpdatePaymentRefund записывает новую сумму возврата и статус.
//
// Обновление проходит, только если refunded_amount всё ещё равен expectedRefunded,
// иначе возвращается storage.ErrConflict.
func (s *Storage) UpdatePaymentRefund(ctx context.Context, id string, expectedRefunded, refunded int64, status string) (*models.Payment, error) {
	const op = "storage.UpdatePaymentRefund"
	if err := ctxDone(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `UPDATE payments SET refunded_amount = $3, status = $4, updated_at = now()
			  WHERE id = $1 AND refunded_amount = $2 AND $3 <= amount
			  RETURNING ` + paymentColumns
	updated, err := scanPayment(s.DB.QueryRowContext(ctx, query, id, expectedRefunded, refunded, status))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return updated, nil
}

// Package payments содержит бизнес-логику платежей: просмотр и возвраты.
package payments

import (
	"context"
	"errors"
	"log/slog"

	"github.com/magabrotheeeer/designhub/internal/lib/apperr"
	"github.com/magabrotheeeer/designhub/internal/lib/sl"
	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/services/billing"
	"github.com/magabrotheeeer/designhub/internal/storage"
)

// ErrRefundExceedsBalance возвращается, когда сумма возврата больше оставшейся к возврату суммы.
var ErrRefundExceedsBalance = apperr.Validation("refund amount exceeds refundable balance")

// Repository определяет методы хранилища платежей.
type Repository interface {
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	ListPayments(ctx context.Context, userID string, limit, offset int) ([]models.Payment, error)
	// UpdatePaymentRefund обновляет сумму возврата, только если текущая сумма равна expectedRefunded.
	UpdatePaymentRefund(ctx context.Context, id string, expectedRefunded, refunded int64, status string) (*models.Payment, error)
}

// Refunder выполняет возврат у платёжного провайдера.
type Refunder interface {
	Refund(ctx context.Context, paymentIntentID string, amount int64) (string, error)
}

// Subscriptions обновляет статус подписки после возврата.
type Subscriptions interface {
	UpdateStatus(ctx context.Context, userID, status string) (*models.Subscription, error)
}

// Service реализует операции над платежами.
type Service struct {
	repo     Repository
	refunder Refunder
	subs     Subscriptions
	log      *slog.Logger
}

// NewService создает новый экземпляр Service. refunder равен nil, если биллинг не настроен.
func NewService(repo Repository, refunder Refunder, subs Subscriptions, log *slog.Logger) *Service {
	return &Service{repo: repo, refunder: refunder, subs: subs, log: log}
}

// List возвращает платежи. Обычный пользователь видит только свои,
// администратор может отфильтровать по userID или получить все.
func (s *Service) List(ctx context.Context, actor models.Actor, userID string, limit, offset int) ([]models.Payment, error) {
	const op = "services.payments.List"
	if !actor.IsAdmin() {
		userID = actor.ID
	}
	list, err := s.repo.ListPayments(ctx, userID, limit, offset)
	if err != nil {
		s.log.Error("failed to list payments", slog.String("op", op), sl.Err(err))
		return nil, apperr.Upstream(err)
	}
	return list, nil
}

// Get возвращает платёж владельцу или администратору.
func (s *Service) Get(ctx context.Context, actor models.Actor, id string) (*models.Payment, error) {
	const op = "services.payments.Get"
	p, err := s.repo.GetPayment(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("payment not found")
	}
	if err != nil {
		s.log.Error("failed to load payment", slog.String("op", op), sl.Err(err))
		return nil, apperr.Upstream(err)
	}
	if !actor.CanAccess(p.UserID) {
		return nil, apperr.NotFound("payment not found")
	}
	return p, nil
}

// releaseRefund снимает резерв суммы после неудачного возврата у провайдера.
func (s *Service) releaseRefund(ctx context.Context, log *slog.Logger, p *models.Payment, reserved int64) {
	_, err := s.repo.UpdatePaymentRefund(ctx, p.ID, reserved, p.RefundedAmount, p.Status)
	if err != nil {
		log.Error("failed to release refund reservation, reconcile manually",
			slog.Int64("reserved_amount", reserved),
			slog.Int64("refunded_amount", p.RefundedAmount),
			sl.Err(err))
	}
}

// Refund возвращает amount по платежу. Нулевой amount означает возврат всего остатка.
func (s *Service) Refund(ctx context.Context, id string, amount int64) (*models.Payment, error) {
	const op = "services.payments.Refund"
	log := s.log.With(slog.String("op", op), slog.String("payment_id", id))

	p, err := s.repo.GetPayment(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("payment not found")
	}
	if err != nil {
		log.Error("failed to load payment", sl.Err(err))
		return nil, apperr.Upstream(err)
	}

	if amount < 0 {
		return nil, apperr.Validation("refund amount must be positive")
	}
	if amount == 0 {
		amount = p.Refundable()
	}
	if amount == 0 || amount > p.Refundable() {
		log.Info("refund rejected", slog.Int64("amount", amount), slog.Int64("refundable", p.Refundable()))
		return nil, ErrRefundExceedsBalance
	}
	if p.StripePaymentIntentID == "" {
		return nil, apperr.Validation("payment cannot be refunded")
	}
	if s.refunder == nil {
		return nil, billing.ErrNotConfigured
	}

	// Сумма резервируется до обращения к провайдеру: параллельный возврат
	// увидит новый остаток или конфликт и до Stripe не дойдёт.
	refunded := p.RefundedAmount + amount
	paymentStatus, subStatus := billing.RefundStatus(p.Amount, refunded)
	updated, err := s.repo.UpdatePaymentRefund(ctx, p.ID, p.RefundedAmount, refunded, paymentStatus)
	if errors.Is(err, storage.ErrConflict) {
		return nil, apperr.Conflict("payment was modified concurrently")
	}
	if err != nil {
		log.Error("failed to save refund", sl.Err(err))
		return nil, apperr.Upstream(err)
	}

	refundID, err := s.refunder.Refund(ctx, p.StripePaymentIntentID, amount)
	if err != nil {
		log.Error("provider refund failed", sl.Err(err))
		s.releaseRefund(context.WithoutCancel(ctx), log, p, refunded)
		if errors.Is(err, billing.ErrProviderAuth) {
			return nil, billing.ErrProviderAuth
		}
		return nil, apperr.Upstream(err)
	}

	if _, err := s.subs.UpdateStatus(ctx, p.UserID, subStatus); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		log.Warn("failed to update subscription after refund", sl.Err(err))
	}
	log.Info("payment refunded", slog.String("refund_id", refundID), slog.Int64("amount", amount))
	return updated, nil
}

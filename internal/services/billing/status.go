package billing

import (
	"github.com/stripe/stripe-go/v78"

	"github.com/magabrotheeeer/designhub/internal/models"
)

// SubscriptionStatus переводит статус подписки Stripe в статус подписки приложения.
// Неизвестные статусы считаются pending.
func SubscriptionStatus(status string) string {
	switch stripe.SubscriptionStatus(status) {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return models.StatusActive
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return models.StatusCancelled
	default:
		return models.StatusPending
	}
}

// RefundStatus возвращает статусы платежа и подписки после возврата суммы refunded из amount.
func RefundStatus(amount, refunded int64) (paymentStatus, subscriptionStatus string) {
	if refunded >= amount {
		return models.PaymentRefunded, models.StatusRefunded
	}
	return models.PaymentPartiallyRefunded, models.StatusPartiallyRefunded
}

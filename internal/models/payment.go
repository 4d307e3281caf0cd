package models

import "time"

// Статусы платежа.
const (
	PaymentSucceeded         = "succeeded"
	PaymentPending           = "pending"
	PaymentFailed            = "failed"
	PaymentRefunded          = "refunded"
	PaymentPartiallyRefunded = "partially_refunded"
)

// Payment — платёж по подписке. Суммы в минимальных единицах валюты.
type Payment struct {
	ID                    string    `json:"id"`
	UserID                string    `json:"user_id"`
	SubscriptionID        string    `json:"subscription_id,omitempty"`
	Amount                int64     `json:"amount"`
	RefundedAmount        int64     `json:"refunded_amount"`
	Currency              string    `json:"currency"`
	Status                string    `json:"status"`
	StripePaymentIntentID string    `json:"stripe_payment_intent_id,omitempty"`
	StripeInvoiceID       string    `json:"stripe_invoice_id,omitempty"`
	Description           string    `json:"description,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Refundable возвращает сумму, которую ещё можно вернуть.
func (p *Payment) Refundable() int64 {
	return p.Amount - p.RefundedAmount
}

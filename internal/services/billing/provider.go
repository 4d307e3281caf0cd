package billing

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotConfigured означает, что биллинг не настроен: нет ключа Stripe или секрета вебхука.
	ErrNotConfigured = errors.New("billing is not configured")
	// ErrPriceNotConfigured означает, что для пакета не задан price id.
	ErrPriceNotConfigured = fmt.Errorf("%w: price id is missing", ErrNotConfigured)
	// ErrProviderAuth означает, что Stripe отклонил ключ API.
	ErrProviderAuth = errors.New("billing provider authentication failed")
)

// CheckoutParams параметры сессии оформления подписки.
type CheckoutParams struct {
	CustomerID string
	PriceID    string
	UserID     string
	PackageID  string
	SuccessURL string
	CancelURL  string
}

// ProviderSubscription — подписка на стороне платёжного провайдера.
type ProviderSubscription struct {
	ID                string
	CustomerID        string
	Status            string
	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd bool
	Metadata          map[string]string
}

// Provider описывает операции платёжного провайдера, нужные мосту биллинга.
// Ошибка отклонённого ключа API должна оборачивать ErrProviderAuth.
type Provider interface {
	CreateCustomer(ctx context.Context, userID, email, name string) (string, error)
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	GetSubscription(ctx context.Context, id string) (*ProviderSubscription, error)
	Refund(ctx context.Context, paymentIntentID string, amount int64) (string, error)
}

package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/magabrotheeeer/designhub/internal/config"
	"github.com/magabrotheeeer/designhub/internal/lib/apperr"
	"github.com/magabrotheeeer/designhub/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/services/subscription"
	"github.com/magabrotheeeer/designhub/internal/storage/memory"
)

const webhookSecret = "whsec_test"

type ProviderMock struct{ mock.Mock }

func (m *ProviderMock) CreateCustomer(ctx context.Context, userID, email, name string) (string, error) {
	args := m.Called(ctx, userID, email, name)
	return args.String(0), args.Error(1)
}

func (m *ProviderMock) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error) {
	args := m.Called(ctx, params)
	return args.String(0), args.Error(1)
}

func (m *ProviderMock) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	args := m.Called(ctx, customerID, returnURL)
	return args.String(0), args.Error(1)
}

func (m *ProviderMock) GetSubscription(ctx context.Context, id string) (*ProviderSubscription, error) {
	args := m.Called(ctx, id)
	sub, _ := args.Get(0).(*ProviderSubscription)
	return sub, args.Error(1)
}

func (m *ProviderMock) Refund(ctx context.Context, paymentIntentID string, amount int64) (string, error) {
	args := m.Called(ctx, paymentIntentID, amount)
	return args.String(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

type fixture struct {
	store    *memory.Storage
	provider *ProviderMock
	svc      *Service
	user     *models.User
	pkg      *models.Package
}

func newFixture(t *testing.T, withProvider bool) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	user, err := st.CreateUser(ctx, models.User{Name: "Ann", Email: "ann@example.com", Role: models.RoleUser})
	require.NoError(t, err)
	pkg, err := st.CreatePackage(ctx, models.Package{Name: "Pro", Price: 49900, Currency: "usd", Active: true})
	require.NoError(t, err)

	log := newNoopLogger()
	subs := subscription.NewService(st, nil, rabbitmq.NopPublisher{}, log)
	cfg := config.Billing{
		StripeWebhookSecret: webhookSecret,
		PriceIDs:            map[string]string{"Pro": "price_pro"},
		SuccessPath:         "/dashboard?checkout=success",
		CancelPath:          "/dashboard/billing?checkout=cancelled",
		PortalReturnPath:    "/dashboard/billing",
	}
	f := &fixture{store: st, user: user, pkg: pkg}
	var provider Provider
	if withProvider {
		f.provider = new(ProviderMock)
		provider = f.provider
	}
	f.svc = NewService(st, subs, provider, cfg, "https://designhub.example/", log)
	return f
}

func (f *fixture) linkCustomer(t *testing.T, customerID string) {
	t.Helper()
	stored, err := f.store.ClaimStripeCustomerID(context.Background(), f.user.ID, customerID)
	require.NoError(t, err)
	require.Equal(t, customerID, stored)
}

func TestStartCheckout_Success(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.provider.On("CreateCustomer", mock.Anything, f.user.ID, "ann@example.com", "Ann").Return("cus_1", nil).Once()
	f.provider.On("CreateCheckoutSession", mock.Anything, CheckoutParams{
		CustomerID: "cus_1",
		PriceID:    "price_pro",
		UserID:     f.user.ID,
		PackageID:  f.pkg.ID,
		SuccessURL: "https://designhub.example/dashboard?checkout=success",
		CancelURL:  "https://designhub.example/dashboard/billing?checkout=cancelled",
	}).Return("https://checkout.stripe.com/s/1", nil).Twice()

	url, err := f.svc.StartCheckout(ctx, f.user.ID, "Pro")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/s/1", url)

	sub, err := f.store.GetSubscriptionByUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, sub.Status)
	assert.Equal(t, f.pkg.ID, sub.PackageID)

	user, err := f.store.GetUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "cus_1", user.StripeCustomerID)

	// повторный запуск переиспользует клиента и идентификатор пакета
	_, err = f.svc.StartCheckout(ctx, f.user.ID, f.pkg.ID)
	require.NoError(t, err)
	f.provider.AssertExpectations(t)
}

func TestStartCheckout_Errors(t *testing.T) {
	t.Run("price not configured", func(t *testing.T) {
		f := newFixture(t, true)
		_, err := f.store.CreatePackage(context.Background(), models.Package{Name: "Starter", Active: true})
		require.NoError(t, err)

		_, err = f.svc.StartCheckout(context.Background(), f.user.ID, "Starter")
		assert.ErrorIs(t, err, ErrPriceNotConfigured)
		assert.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("provider rejects key", func(t *testing.T) {
		f := newFixture(t, true)
		f.provider.On("CreateCustomer", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return("", fmt.Errorf("stripe: %w", ErrProviderAuth)).Once()

		_, err := f.svc.StartCheckout(context.Background(), f.user.ID, "Pro")
		assert.ErrorIs(t, err, ErrProviderAuth)
	})

	t.Run("unknown package", func(t *testing.T) {
		f := newFixture(t, true)
		_, err := f.svc.StartCheckout(context.Background(), f.user.ID, "Enterprise")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("already active", func(t *testing.T) {
		f := newFixture(t, true)
		_, err := f.store.UpsertSubscription(context.Background(), models.Subscription{UserID: f.user.ID, Status: models.StatusActive})
		require.NoError(t, err)

		_, err = f.svc.StartCheckout(context.Background(), f.user.ID, "Pro")
		assert.ErrorIs(t, err, apperr.ErrConflict)
	})

	t.Run("provider disabled", func(t *testing.T) {
		f := newFixture(t, false)
		_, err := f.svc.StartCheckout(context.Background(), f.user.ID, "Pro")
		assert.ErrorIs(t, err, ErrNotConfigured)
	})
}

func TestOpenPortal(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.OpenPortal(ctx, f.user.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	f.linkCustomer(t, "cus_1")
	f.provider.On("CreatePortalSession", mock.Anything, "cus_1", "https://designhub.example/dashboard/billing").
		Return("https://billing.stripe.com/p/1", nil).Once()
	url, err := f.svc.OpenPortal(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://billing.stripe.com/p/1", url)
}

func TestSync(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	_, err := f.store.UpsertSubscription(ctx, models.Subscription{
		UserID: f.user.ID, PackageID: f.pkg.ID, Status: models.StatusPending, StripeSubscriptionID: "sub_1",
	})
	require.NoError(t, err)
	f.provider.On("GetSubscription", mock.Anything, "sub_1").
		Return(&ProviderSubscription{ID: "sub_1", CustomerID: "cus_1", Status: "past_due"}, nil).Once()

	sub, err := f.svc.Sync(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, sub.Status)

	f.provider.On("GetSubscription", mock.Anything, "sub_1").
		Return(&ProviderSubscription{ID: "sub_1", CustomerID: "cus_1", Status: "active"}, nil).Once()
	sub, err = f.svc.Sync(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, sub.Status)
	assert.Equal(t, f.pkg.ID, sub.PackageID)
}

func TestSubscriptionStatusMapping(t *testing.T) {
	tests := map[string]string{
		"active":             models.StatusActive,
		"trialing":           models.StatusActive,
		"incomplete":         models.StatusPending,
		"past_due":           models.StatusPending,
		"unpaid":             models.StatusPending,
		"paused":             models.StatusPending,
		"canceled":           models.StatusCancelled,
		"incomplete_expired": models.StatusCancelled,
	}
	for in, want := range tests {
		assert.Equal(t, want, SubscriptionStatus(in), in)
	}
}

func TestRefundStatus(t *testing.T) {
	p, s := RefundStatus(1000, 400)
	assert.Equal(t, models.PaymentPartiallyRefunded, p)
	assert.Equal(t, models.StatusPartiallyRefunded, s)
	p, s = RefundStatus(1000, 1000)
	assert.Equal(t, models.PaymentRefunded, p)
	assert.Equal(t, models.StatusRefunded, s)
}

func TestWrapStripeErr(t *testing.T) {
	err := wrapStripeErr("op", &stripe.Error{HTTPStatusCode: http.StatusUnauthorized, Msg: "Invalid API Key provided"})
	assert.ErrorIs(t, err, ErrProviderAuth)

	err = wrapStripeErr("op", &stripe.Error{HTTPStatusCode: http.StatusBadRequest})
	assert.False(t, errors.Is(err, ErrProviderAuth))
}

func signedEvent(t *testing.T, eventType string, object any) ([]byte, string) {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_" + eventType,
		"object":      "event",
		"type":        eventType,
		"api_version": "2020-08-27",
		"data":        map[string]json.RawMessage{"object": raw},
	})
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: webhookSecret})
	return payload, signed.Header
}

func TestHandleWebhook_InvalidSignature(t *testing.T) {
	f := newFixture(t, false)
	payload, _ := signedEvent(t, EventCheckoutCompleted, map[string]any{"id": "cs_1"})

	err := f.svc.HandleWebhook(context.Background(), payload, "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestHandleWebhook_CheckoutCompletedActivates(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	payload, sig := signedEvent(t, EventCheckoutCompleted, map[string]any{
		"id":                  "cs_1",
		"object":              "checkout.session",
		"client_reference_id": f.user.ID,
		"customer":            "cus_9",
		"subscription":        "sub_9",
		"metadata":            map[string]string{"package_id": f.pkg.ID},
	})

	require.NoError(t, f.svc.HandleWebhook(ctx, payload, sig))

	sub, err := f.store.GetSubscriptionByUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, sub.Status)
	assert.Equal(t, "sub_9", sub.StripeSubscriptionID)
	assert.Equal(t, f.pkg.ID, sub.PackageID)

	user, err := f.store.GetUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "cus_9", user.StripeCustomerID)
	assert.Equal(t, models.StatusActive, user.SubscriptionStatus)
}

func TestHandleWebhook_SubscriptionDeletedCancels(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.linkCustomer(t, "cus_1")
	_, err := f.store.UpsertSubscription(ctx, models.Subscription{UserID: f.user.ID, Status: models.StatusActive, StripeSubscriptionID: "sub_1"})
	require.NoError(t, err)

	payload, sig := signedEvent(t, EventSubscriptionDeleted, map[string]any{
		"id": "sub_1", "object": "subscription", "customer": "cus_1", "status": "active",
	})
	require.NoError(t, f.svc.HandleWebhook(ctx, payload, sig))

	sub, err := f.store.GetSubscriptionByUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, sub.Status)
}

func TestHandleWebhook_InvoiceAndRefund(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.linkCustomer(t, "cus_1")

	invoice := map[string]any{
		"id": "in_1", "object": "invoice", "customer": "cus_1", "subscription": "sub_1",
		"payment_intent": "pi_1", "amount_paid": 49900, "currency": "usd",
	}
	payload, sig := signedEvent(t, EventInvoicePaymentSucceeded, invoice)
	require.NoError(t, f.svc.HandleWebhook(ctx, payload, sig))
	require.NoError(t, f.svc.HandleWebhook(ctx, payload, sig), "redelivery is idempotent")

	payments, err := f.store.ListPayments(ctx, f.user.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, int64(49900), payments[0].Amount)

	sub, err := f.store.GetSubscriptionByUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, sub.Status)

	payload, sig = signedEvent(t, EventChargeRefunded, map[string]any{
		"id": "ch_1", "object": "charge", "payment_intent": "pi_1", "amount": 49900, "amount_refunded": 10000,
	})
	require.NoError(t, f.svc.HandleWebhook(ctx, payload, sig))

	p, err := f.store.GetPaymentByIntent(ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), p.RefundedAmount)
	assert.Equal(t, models.PaymentPartiallyRefunded, p.Status)

	sub, err = f.store.GetSubscriptionByUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPartiallyRefunded, sub.Status)
}

func TestHandleWebhook_UnknownCustomerIsAcknowledged(t *testing.T) {
	f := newFixture(t, false)
	payload, sig := signedEvent(t, EventInvoicePaymentFailed, map[string]any{
		"id": "in_2", "object": "invoice", "customer": "cus_unknown",
	})
	assert.NoError(t, f.svc.HandleWebhook(context.Background(), payload, sig))
}

func TestHandleWebhook_NotConfigured(t *testing.T) {
	f := newFixture(t, false)
	f.svc.cfg.StripeWebhookSecret = ""
	err := f.svc.HandleWebhook(context.Background(), []byte("{}"), "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestEnsureCustomer_ConcurrentCallsLinkOneCustomer(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.provider.On("CreateCustomer", mock.Anything, f.user.ID, "ann@example.com", "Ann").
		After(20*time.Millisecond).Return("cus_1", nil).Once()
	f.provider.On("CreateCustomer", mock.Anything, f.user.ID, "ann@example.com", "Ann").
		After(20*time.Millisecond).Return("cus_2", nil).Maybe()

	const callers = 4
	results := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		user, err := f.store.GetUser(ctx, f.user.ID)
		require.NoError(t, err)
		wg.Add(1)
		go func(i int, user *models.User) {
			defer wg.Done()
			id, err := f.svc.EnsureCustomer(ctx, user)
			assert.NoError(t, err)
			results[i] = id
		}(i, user)
	}
	wg.Wait()

	stored, err := f.store.GetUser(ctx, f.user.ID)
	require.NoError(t, err)
	require.NotEmpty(t, stored.StripeCustomerID)
	for _, id := range results {
		assert.Equal(t, stored.StripeCustomerID, id)
	}
}

func TestEnsureCustomer_StaleUserKeepsLinkedCustomer(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	stale, err := f.store.GetUser(ctx, f.user.ID)
	require.NoError(t, err)
	f.linkCustomer(t, "cus_1")

	f.provider.On("CreateCustomer", mock.Anything, f.user.ID, "ann@example.com", "Ann").Return("cus_2", nil).Once()
	id, err := f.svc.EnsureCustomer(ctx, stale)
	require.NoError(t, err)
	assert.Equal(t, "cus_1", id)
	assert.Equal(t, "cus_1", stale.StripeCustomerID)

	user, err := f.store.GetUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "cus_1", user.StripeCustomerID)
}

func TestHandleWebhook_InvoiceFallsBackToSubscriptionMetadata(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.linkCustomer(t, "cus_1")

	payload, sig := signedEvent(t, EventInvoicePaymentSucceeded, map[string]any{
		"id": "in_2", "object": "invoice", "customer": "cus_orphan", "subscription": "sub_2",
		"payment_intent": "pi_2", "amount_paid": 49900, "currency": "usd",
		"subscription_details": map[string]any{"metadata": map[string]string{"user_id": f.user.ID}},
	})
	require.NoError(t, f.svc.HandleWebhook(ctx, payload, sig))

	payment, err := f.store.GetPaymentByIntent(ctx, "pi_2")
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, payment.UserID)
	assert.Equal(t, int64(49900), payment.Amount)

	user, err := f.store.GetUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "cus_1", user.StripeCustomerID, "linked customer is not overwritten")
}

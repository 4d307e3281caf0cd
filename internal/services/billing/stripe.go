package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// StripeProvider реализует Provider поверх stripe-go.
type StripeProvider struct {
	sc *client.API
}

// NewStripeProvider создаёт клиента Stripe. Для пустого ключа возвращает nil.
func NewStripeProvider(secretKey string) *StripeProvider {
	if secretKey == "" {
		return nil
	}
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &StripeProvider{sc: sc}
}

func (p *StripeProvider) CreateCustomer(ctx context.Context, userID, email, name string) (string, error) {
	const op = "billing.stripe.CreateCustomer"
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)
	// повторный запрос с тем же ключом вернёт того же клиента
	params.SetIdempotencyKey("customer-" + userID)
	cus, err := p.sc.Customers.New(params)
	if err != nil {
		return "", wrapStripeErr(op, err)
	}
	return cus.ID, nil
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, in CheckoutParams) (string, error) {
	const op = "billing.stripe.CreateCheckoutSession"
	meta := map[string]string{"user_id": in.UserID, "package_id": in.PackageID}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:          stripe.String(in.CustomerID),
		ClientReferenceID: stripe.String(in.UserID),
		SuccessURL:        stripe.String(in.SuccessURL),
		CancelURL:         stripe.String(in.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(in.PriceID),
			Quantity: stripe.Int64(1),
		}},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{Metadata: meta},
	}
	params.Context = ctx
	for k, v := range meta {
		params.AddMetadata(k, v)
	}
	sess, err := p.sc.CheckoutSessions.New(params)
	if err != nil {
		return "", wrapStripeErr(op, err)
	}
	return sess.URL, nil
}

func (p *StripeProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	const op = "billing.stripe.CreatePortalSession"
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	sess, err := p.sc.BillingPortalSessions.New(params)
	if err != nil {
		return "", wrapStripeErr(op, err)
	}
	return sess.URL, nil
}

func (p *StripeProvider) GetSubscription(ctx context.Context, id string) (*ProviderSubscription, error) {
	const op = "billing.stripe.GetSubscription"
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := p.sc.Subscriptions.Get(id, params)
	if err != nil {
		return nil, wrapStripeErr(op, err)
	}
	return fromStripeSubscription(sub), nil
}

func (p *StripeProvider) Refund(ctx context.Context, paymentIntentID string, amount int64) (string, error) {
	const op = "billing.stripe.Refund"
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
		Amount:        stripe.Int64(amount),
	}
	params.Context = ctx
	ref, err := p.sc.Refunds.New(params)
	if err != nil {
		return "", wrapStripeErr(op, err)
	}
	return ref.ID, nil
}

func fromStripeSubscription(sub *stripe.Subscription) *ProviderSubscription {
	out := &ProviderSubscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		Metadata:          sub.Metadata,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		out.CurrentPeriodEnd = &t
	}
	return out
}

func wrapStripeErr(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.HTTPStatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%s: %w: %w", op, ErrProviderAuth, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

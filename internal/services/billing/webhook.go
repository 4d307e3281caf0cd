package billing

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/magabrotheeeer/designhub/internal/lib/apperr"
	"github.com/magabrotheeeer/designhub/internal/lib/sl"
	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/storage"
)

// Типы событий Stripe, которые обрабатывает мост.
const (
	EventCheckoutCompleted       = "checkout.session.completed"
	EventSubscriptionCreated     = "customer.subscription.created"
	EventSubscriptionUpdated     = "customer.subscription.updated"
	EventSubscriptionDeleted     = "customer.subscription.deleted"
	EventInvoicePaymentSucceeded = "invoice.payment_succeeded"
	EventInvoicePaymentFailed    = "invoice.payment_failed"
	EventChargeRefunded          = "charge.refunded"
)

// HandleWebhook проверяет подпись события Stripe и применяет его к подпискам и платежам.
//
// События для неизвестных пользователей подтверждаются без изменений, чтобы Stripe
// не повторял их доставку. Сбой хранилища возвращается как ошибка и приводит к повтору.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	const op = "services.billing.HandleWebhook"
	if s.cfg.StripeWebhookSecret == "" {
		return ErrNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.cfg.StripeWebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		s.log.Warn("webhook signature rejected", slog.String("op", op), sl.Err(err))
		return apperr.Validation("invalid webhook signature")
	}

	log := s.log.With(
		slog.String("op", op),
		slog.String("event_id", event.ID),
		slog.String("event_type", string(event.Type)),
	)

	switch string(event.Type) {
	case EventCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return s.badPayload(log, err)
		}
		return s.onCheckoutCompleted(ctx, log, &sess)
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return s.badPayload(log, err)
		}
		remote := fromStripeSubscription(&sub)
		if string(event.Type) == EventSubscriptionDeleted {
			remote.Status = string(stripe.SubscriptionStatusCanceled)
		}
		return s.onSubscriptionChanged(ctx, log, remote)
	case EventInvoicePaymentSucceeded, EventInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return s.badPayload(log, err)
		}
		return s.onInvoice(ctx, log, &inv, string(event.Type) == EventInvoicePaymentSucceeded)
	case EventChargeRefunded:
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return s.badPayload(log, err)
		}
		return s.onChargeRefunded(ctx, log, &ch)
	default:
		log.Debug("webhook event ignored")
		return nil
	}
}

func (s *Service) badPayload(log *slog.Logger, err error) error {
	log.Error("failed to decode webhook object", sl.Err(err))
	return apperr.Validation("invalid webhook payload")
}

// findUser ищет пользователя по user_id из метаданных, а затем по идентификатору клиента Stripe.
// nil без ошибки означает, что пользователь не найден.
func (s *Service) findUser(ctx context.Context, userID, customerID string) (*models.User, error) {
	if userID != "" {
		user, err := s.repo.GetUser(ctx, userID)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.Upstream(err)
		}
	}
	if customerID != "" {
		user, err := s.repo.GetUserByStripeCustomerID(ctx, customerID)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.Upstream(err)
		}
	}
	return nil, nil
}

// linkCustomer привязывает клиента из события к пользователю без привязки.
// Уже привязанный клиент не перезаписывается.
func (s *Service) linkCustomer(ctx context.Context, log *slog.Logger, user *models.User, customerID string) error {
	if user.StripeCustomerID != "" || customerID == "" {
		return nil
	}
	stored, err := s.repo.ClaimStripeCustomerID(ctx, user.ID, customerID)
	if err != nil {
		log.Error("failed to save customer id", slog.String("customer_id", customerID), sl.Err(err))
		return apperr.Upstream(err)
	}
	if stored != customerID {
		log.Warn("event customer differs from linked customer",
			slog.String("customer_id", customerID), slog.String("linked_customer_id", stored))
	}
	user.StripeCustomerID = stored
	return nil
}

func (s *Service) onCheckoutCompleted(ctx context.Context, log *slog.Logger, sess *stripe.CheckoutSession) error {
	userID := sess.ClientReferenceID
	if userID == "" {
		userID = sess.Metadata["user_id"]
	}
	var customerID, subscriptionID string
	if sess.Customer != nil {
		customerID = sess.Customer.ID
	}
	if sess.Subscription != nil {
		subscriptionID = sess.Subscription.ID
	}

	user, err := s.findUser(ctx, userID, customerID)
	if err != nil {
		return err
	}
	if user == nil {
		log.Warn("checkout for unknown user", slog.String("customer_id", customerID))
		return nil
	}
	if err := s.linkCustomer(ctx, log, user, customerID); err != nil {
		return err
	}

	_, err = s.subs.Upsert(ctx, models.Subscription{
		UserID:               user.ID,
		PackageID:            sess.Metadata["package_id"],
		Status:               models.StatusActive,
		StripeCustomerID:     customerID,
		StripeSubscriptionID: subscriptionID,
	})
	if err != nil {
		return err
	}
	log.Info("checkout completed", slog.String("user_id", user.ID))
	return nil
}

func (s *Service) onSubscriptionChanged(ctx context.Context, log *slog.Logger, remote *ProviderSubscription) error {
	user, err := s.findUser(ctx, remote.Metadata["user_id"], remote.CustomerID)
	if err != nil {
		return err
	}
	if user == nil {
		log.Warn("subscription event for unknown user", slog.String("customer_id", remote.CustomerID))
		return nil
	}
	status := SubscriptionStatus(remote.Status)
	_, err = s.subs.Upsert(ctx, models.Subscription{
		UserID:               user.ID,
		PackageID:            remote.Metadata["package_id"],
		Status:               status,
		StripeCustomerID:     remote.CustomerID,
		StripeSubscriptionID: remote.ID,
		CurrentPeriodEnd:     remote.CurrentPeriodEnd,
		CancelAtPeriodEnd:    remote.CancelAtPeriodEnd,
	})
	if err != nil {
		return err
	}
	log.Info("subscription synced from provider", slog.String("user_id", user.ID), slog.String("status", status))
	return nil
}

func (s *Service) onInvoice(ctx context.Context, log *slog.Logger, inv *stripe.Invoice, paid bool) error {
	var customerID string
	if inv.Customer != nil {
		customerID = inv.Customer.ID
	}
	var userID string
	if inv.SubscriptionDetails != nil {
		userID = inv.SubscriptionDetails.Metadata["user_id"]
	}
	user, err := s.findUser(ctx, userID, customerID)
	if err != nil {
		return err
	}
	if user == nil {
		log.Warn("invoice for unknown customer", slog.String("customer_id", customerID))
		return nil
	}
	if err := s.linkCustomer(ctx, log, user, customerID); err != nil {
		return err
	}

	local, err := s.repo.GetSubscriptionByUser(ctx, user.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return apperr.Upstream(err)
	}

	if !paid {
		if local == nil {
			return nil
		}
		_, err := s.subs.UpdateStatus(ctx, user.ID, models.StatusPending)
		return err
	}

	payment := models.Payment{
		UserID:          user.ID,
		Amount:          inv.AmountPaid,
		Currency:        string(inv.Currency),
		Status:          models.PaymentSucceeded,
		StripeInvoiceID: inv.ID,
		Description:     inv.Description,
	}
	if inv.PaymentIntent != nil {
		payment.StripePaymentIntentID = inv.PaymentIntent.ID
	}
	if local != nil {
		payment.SubscriptionID = local.ID
	}
	saved, created, err := s.repo.CreatePayment(ctx, payment)
	if err != nil {
		log.Error("failed to record payment", sl.Err(err))
		return apperr.Upstream(err)
	}
	if created {
		log.Info("payment recorded", slog.String("payment_id", saved.ID), slog.Int64("amount", saved.Amount))
	}

	sub := models.Subscription{
		UserID:           user.ID,
		Status:           models.StatusActive,
		StripeCustomerID: customerID,
	}
	if inv.Subscription != nil {
		sub.StripeSubscriptionID = inv.Subscription.ID
	}
	if inv.PeriodEnd > 0 {
		t := time.Unix(inv.PeriodEnd, 0).UTC()
		sub.CurrentPeriodEnd = &t
	}
	_, err = s.subs.Upsert(ctx, sub)
	return err
}

func (s *Service) onChargeRefunded(ctx context.Context, log *slog.Logger, ch *stripe.Charge) error {
	if ch.PaymentIntent == nil || ch.PaymentIntent.ID == "" {
		log.Warn("refunded charge without payment intent", slog.String("charge_id", ch.ID))
		return nil
	}
	payment, err := s.repo.GetPaymentByIntent(ctx, ch.PaymentIntent.ID)
	if errors.Is(err, storage.ErrNotFound) {
		log.Warn("refund for unknown payment", slog.String("payment_intent", ch.PaymentIntent.ID))
		return nil
	}
	if err != nil {
		return apperr.Upstream(err)
	}

	refunded := ch.AmountRefunded
	if refunded > payment.Amount {
		refunded = payment.Amount
	}
	paymentStatus, subStatus := RefundStatus(payment.Amount, refunded)
	if refunded != payment.RefundedAmount {
		_, err := s.repo.UpdatePaymentRefund(ctx, payment.ID, payment.RefundedAmount, refunded, paymentStatus)
		if errors.Is(err, storage.ErrConflict) {
			return apperr.Conflict("payment was modified concurrently")
		}
		if err != nil {
			return apperr.Upstream(err)
		}
	}

	if _, err := s.subs.UpdateStatus(ctx, payment.UserID, subStatus); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	log.Info("refund applied", slog.String("payment_id", payment.ID), slog.Int64("refunded", refunded))
	return nil
}

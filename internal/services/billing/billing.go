// Package billing связывает подписки приложения со Stripe: создание клиента,
// оформление подписки, портал управления, обработка вебхуков и опрос статуса.
package billing

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/magabrotheeeer/designhub/internal/config"
	"github.com/magabrotheeeer/designhub/internal/lib/apperr"
	"github.com/magabrotheeeer/designhub/internal/lib/sl"
	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/storage"
)

// Repository определяет методы хранилища, нужные мосту биллинга.
type Repository interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error)
	ClaimStripeCustomerID(ctx context.Context, id, customerID string) (string, error)
	GetPackage(ctx context.Context, id string) (*models.Package, error)
	GetPackageByName(ctx context.Context, name string) (*models.Package, error)
	GetSubscriptionByUser(ctx context.Context, userID string) (*models.Subscription, error)
	GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error)
	CreatePayment(ctx context.Context, p models.Payment) (*models.Payment, bool, error)
	GetPaymentByIntent(ctx context.Context, intentID string) (*models.Payment, error)
	UpdatePaymentRefund(ctx context.Context, id string, expectedRefunded, refunded int64, status string) (*models.Payment, error)
}

// Subscriptions записывает подписки с инвалидацией кэша сессий и публикацией событий.
type Subscriptions interface {
	Upsert(ctx context.Context, sub models.Subscription) (*models.Subscription, error)
	UpdateStatus(ctx context.Context, userID, status string) (*models.Subscription, error)
}

// Service — мост между подписками приложения и Stripe.
type Service struct {
	repo      Repository
	subs      Subscriptions
	provider  Provider
	cfg       config.Billing
	publicURL string
	log       *slog.Logger

	// customers склеивает параллельное создание клиента для одного пользователя
	customers singleflight.Group
}

// NewService создаёт мост биллинга. provider равен nil, если ключ Stripe не задан.
func NewService(repo Repository, subs Subscriptions, provider Provider, cfg config.Billing, publicURL string, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		subs:      subs,
		provider:  provider,
		cfg:       cfg,
		publicURL: strings.TrimRight(publicURL, "/"),
		log:       log,
	}
}

// Enabled сообщает, настроен ли провайдер.
func (s *Service) Enabled() bool {
	return s.provider != nil
}

// EnsureCustomer возвращает идентификатор клиента Stripe, создавая его при первом обращении.
func (s *Service) EnsureCustomer(ctx context.Context, user *models.User) (string, error) {
	const op = "services.billing.EnsureCustomer"
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}
	if s.provider == nil {
		return "", ErrNotConfigured
	}
	log := s.log.With(slog.String("op", op), slog.String("user_id", user.ID))

	v, err, _ := s.customers.Do(user.ID, func() (any, error) {
		return s.createCustomer(ctx, log, user)
	})
	if err != nil {
		return "", err
	}
	customerID := v.(string)
	user.StripeCustomerID = customerID
	return customerID, nil
}

// createCustomer создаёт клиента у провайдера и привязывает его, если пользователь
// ещё не привязан. При гонке возвращается клиент, сохранённый первым.
func (s *Service) createCustomer(ctx context.Context, log *slog.Logger, user *models.User) (string, error) {
	customerID, err := s.provider.CreateCustomer(ctx, user.ID, user.Email, user.Name)
	if err != nil {
		return "", s.providerErr(log, "failed to create customer", err)
	}
	stored, err := s.repo.ClaimStripeCustomerID(ctx, user.ID, customerID)
	if err != nil {
		log.Error("failed to save customer id", slog.String("customer_id", customerID), sl.Err(err))
		return "", apperr.Upstream(err)
	}
	if stored != customerID {
		log.Warn("user already has a billing customer, new one is not linked",
			slog.String("customer_id", customerID), slog.String("linked_customer_id", stored))
		return stored, nil
	}
	log.Info("billing customer created", slog.String("customer_id", customerID))
	return stored, nil
}

// StartCheckout создаёт сессию оформления подписки на пакет и переводит подписку в pending.
// plan может быть идентификатором или именем пакета.
func (s *Service) StartCheckout(ctx context.Context, userID, plan string) (string, error) {
	const op = "services.billing.StartCheckout"
	log := s.log.With(slog.String("op", op), slog.String("user_id", userID), slog.String("plan", plan))

	pkg, err := s.resolvePackage(ctx, plan)
	if err != nil {
		return "", err
	}
	if !pkg.Active {
		return "", apperr.Validation("package is not available")
	}
	priceID := pkg.StripePriceID
	if priceID == "" {
		priceID = s.cfg.PriceIDs[pkg.Name]
	}
	if priceID == "" {
		log.Error("price id is not configured for package", slog.String("package", pkg.Name))
		return "", ErrPriceNotConfigured
	}
	if s.provider == nil {
		return "", ErrNotConfigured
	}

	current, err := s.repo.GetSubscriptionByUser(ctx, userID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Error("failed to load subscription", sl.Err(err))
		return "", apperr.Upstream(err)
	}
	if current != nil && current.Status == models.StatusActive {
		return "", apperr.Conflict("subscription is already active")
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return "", err
	}
	customerID, err := s.EnsureCustomer(ctx, user)
	if err != nil {
		return "", err
	}

	url, err := s.provider.CreateCheckoutSession(ctx, CheckoutParams{
		CustomerID: customerID,
		PriceID:    priceID,
		UserID:     userID,
		PackageID:  pkg.ID,
		SuccessURL: s.publicURL + s.cfg.SuccessPath,
		CancelURL:  s.publicURL + s.cfg.CancelPath,
	})
	if err != nil {
		return "", s.providerErr(log, "failed to create checkout session", err)
	}

	if _, err := s.subs.Upsert(ctx, models.Subscription{
		UserID:           userID,
		PackageID:        pkg.ID,
		Status:           models.StatusPending,
		StripeCustomerID: customerID,
	}); err != nil {
		return "", err
	}
	log.Info("checkout started", slog.String("package_id", pkg.ID))
	return url, nil
}

// OpenPortal создаёт сессию портала управления подпиской.
func (s *Service) OpenPortal(ctx context.Context, userID string) (string, error) {
	const op = "services.billing.OpenPortal"
	log := s.log.With(slog.String("op", op), slog.String("user_id", userID))
	if s.provider == nil {
		return "", ErrNotConfigured
	}
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.StripeCustomerID == "" {
		return "", apperr.NotFound("billing customer not found")
	}
	url, err := s.provider.CreatePortalSession(ctx, user.StripeCustomerID, s.publicURL+s.cfg.PortalReturnPath)
	if err != nil {
		return "", s.providerErr(log, "failed to create portal session", err)
	}
	return url, nil
}

// Sync перечитывает подписку у провайдера и применяет её статус.
func (s *Service) Sync(ctx context.Context, userID string) (*models.Subscription, error) {
	const op = "services.billing.Sync"
	log := s.log.With(slog.String("op", op), slog.String("user_id", userID))
	if s.provider == nil {
		return nil, ErrNotConfigured
	}
	current, err := s.repo.GetSubscriptionByUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("subscription not found")
	}
	if err != nil {
		log.Error("failed to load subscription", sl.Err(err))
		return nil, apperr.Upstream(err)
	}
	if current.StripeSubscriptionID == "" {
		return current, nil
	}

	remote, err := s.provider.GetSubscription(ctx, current.StripeSubscriptionID)
	if err != nil {
		return nil, s.providerErr(log, "failed to fetch subscription", err)
	}
	return s.subs.Upsert(ctx, models.Subscription{
		UserID:               userID,
		Status:               SubscriptionStatus(remote.Status),
		StripeCustomerID:     remote.CustomerID,
		StripeSubscriptionID: remote.ID,
		CurrentPeriodEnd:     remote.CurrentPeriodEnd,
		CancelAtPeriodEnd:    remote.CancelAtPeriodEnd,
	})
}

func (s *Service) resolvePackage(ctx context.Context, plan string) (*models.Package, error) {
	var (
		pkg *models.Package
		err error
	)
	if _, parseErr := uuid.Parse(plan); parseErr == nil {
		pkg, err = s.repo.GetPackage(ctx, plan)
	} else {
		pkg, err = s.repo.GetPackageByName(ctx, plan)
	}
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("package not found")
	}
	if err != nil {
		return nil, apperr.Upstream(err)
	}
	return pkg, nil
}

func (s *Service) loadUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, apperr.Upstream(err)
	}
	return user, nil
}

func (s *Service) providerErr(log *slog.Logger, msg string, err error) error {
	log.Error(msg, sl.Err(err))
	if errors.Is(err, ErrProviderAuth) {
		return ErrProviderAuth
	}
	return apperr.Upstream(err)
}

package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/storage"
)

// syncUserStatusLocked обновляет производный статус пользователя. Вызывается под s.mu.
func (s *Storage) syncUserStatusLocked(userID, status string) {
	if u, ok := s.users[userID]; ok {
		u.SubscriptionStatus = status
		u.UpdatedAt = s.now()
	}
}

func (s *Storage) CreateSubscription(ctx context.Context, sub models.Subscription) (*models.Subscription, error) {
	const op = "storage.memory.CreateSubscription"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[sub.UserID]; !ok {
		return nil, notFound(op)
	}
	if _, exists := s.subscriptions[sub.UserID]; exists {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}
	now := s.now()
	created := sub
	created.ID = newID()
	created.CreatedAt, created.UpdatedAt = now, now
	s.subscriptions[sub.UserID] = &created
	s.syncUserStatusLocked(sub.UserID, created.Status)
	out := created
	return &out, nil
}

func (s *Storage) UpsertSubscription(ctx context.Context, sub models.Subscription) (*models.Subscription, error) {
	const op = "storage.memory.UpsertSubscription"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[sub.UserID]; !ok {
		return nil, notFound(op)
	}
	now := s.now()
	existing, ok := s.subscriptions[sub.UserID]
	if !ok {
		created := sub
		created.ID = newID()
		created.CreatedAt, created.UpdatedAt = now, now
		s.subscriptions[sub.UserID] = &created
		s.syncUserStatusLocked(sub.UserID, created.Status)
		out := created
		return &out, nil
	}

	if sub.PackageID != "" {
		existing.PackageID = sub.PackageID
	}
	existing.Status = sub.Status
	if sub.StripeCustomerID != "" {
		existing.StripeCustomerID = sub.StripeCustomerID
	}
	if sub.StripeSubscriptionID != "" {
		existing.StripeSubscriptionID = sub.StripeSubscriptionID
	}
	if sub.CurrentPeriodEnd != nil {
		t := *sub.CurrentPeriodEnd
		existing.CurrentPeriodEnd = &t
	}
	existing.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
	existing.UpdatedAt = now
	s.syncUserStatusLocked(sub.UserID, existing.Status)
	out := *existing
	return &out, nil
}

func (s *Storage) UpdateSubscriptionStatus(ctx context.Context, userID, status string) (*models.Subscription, error) {
	const op = "storage.memory.UpdateSubscriptionStatus"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[userID]
	if !ok {
		return nil, notFound(op)
	}
	sub.Status = status
	sub.UpdatedAt = s.now()
	s.syncUserStatusLocked(userID, status)
	out := *sub
	return &out, nil
}

func (s *Storage) GetSubscriptionByUser(ctx context.Context, userID string) (*models.Subscription, error) {
	const op = "storage.memory.GetSubscriptionByUser"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subscriptions[userID]
	if !ok {
		return nil, notFound(op)
	}
	out := *sub
	return &out, nil
}

func (s *Storage) GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	const op = "storage.memory.GetSubscriptionByStripeID"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subscriptions {
		if stripeSubscriptionID != "" && sub.StripeSubscriptionID == stripeSubscriptionID {
			out := *sub
			return &out, nil
		}
	}
	return nil, notFound(op)
}

// Payments

func (s *Storage) CreatePayment(ctx context.Context, p models.Payment) (*models.Payment, bool, error) {
	const op = "storage.memory.CreatePayment"
	if err := ctxErr(ctx, op); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.StripeInvoiceID != "" {
		for _, existing := range s.payments {
			if existing.StripeInvoiceID == p.StripeInvoiceID {
				out := *existing
				return &out, false, nil
			}
		}
	}
	if _, ok := s.users[p.UserID]; !ok {
		return nil, false, notFound(op)
	}
	now := s.now()
	created := p
	created.ID = newID()
	created.CreatedAt, created.UpdatedAt = now, now
	s.payments[created.ID] = &created
	out := created
	return &out, true, nil
}

func (s *Storage) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	const op = "storage.memory.GetPayment"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, notFound(op)
	}
	out := *p
	return &out, nil
}

func (s *Storage) GetPaymentByIntent(ctx context.Context, intentID string) (*models.Payment, error) {
	const op = "storage.memory.GetPaymentByIntent"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *models.Payment
	for _, p := range s.payments {
		if intentID != "" && p.StripePaymentIntentID == intentID {
			if found == nil || p.CreatedAt.After(found.CreatedAt) {
				found = p
			}
		}
	}
	if found == nil {
		return nil, notFound(op)
	}
	out := *found
	return &out, nil
}

func (s *Storage) ListPayments(ctx context.Context, userID string, limit, offset int) ([]models.Payment, error) {
	const op = "storage.memory.ListPayments"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]models.Payment, 0)
	for _, p := range s.payments {
		if userID == "" || p.UserID == userID {
			result = append(result, *p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return paginate(result, limit, offset), nil
}

func (s *Storage) UpdatePaymentRefund(ctx context.Context, id string, expectedRefunded, refunded int64, status string) (*models.Payment, error) {
	const op = "storage.memory.UpdatePaymentRefund"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok || p.RefundedAmount != expectedRefunded || refunded > p.Amount {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrConflict)
	}
	p.RefundedAmount = refunded
	p.Status = status
	p.UpdatedAt = s.now()
	out := *p
	return &out, nil
}

package models

import "time"

// Subscription — подписка пользователя на пакет. У пользователя не больше одной подписки.
type Subscription struct {
	ID                   string     `json:"id"`
	UserID               string     `json:"user_id"`
	PackageID            string     `json:"package_id"`
	Status               string     `json:"status"`
	StripeCustomerID     string     `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID string     `json:"stripe_subscription_id,omitempty"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool       `json:"cancel_at_period_end"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Package — тарифный план, на который оформляется подписка.
// Price хранится в минимальных единицах валюты.
type Package struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Price         int64     `json:"price"`
	Currency      string    `json:"currency"`
	Features      []string  `json:"features"`
	Active        bool      `json:"active"`
	StripePriceID string    `json:"stripe_price_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

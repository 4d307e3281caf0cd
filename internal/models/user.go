// Package models содержит доменные структуры маркетплейса: пользователей, подписки,
// пакеты, заявки на дизайн, файлы, платежи и контент сайта.
// Структуры используются в бизнес‑логике, хранилище и HTTP-ответах.
package models

import "time"

// Роли пользователей.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Статусы подписки. StatusInactive означает, что подписки нет.
const (
	StatusActive            = "active"
	StatusPending           = "pending"
	StatusCancelled         = "cancelled"
	StatusRefunded          = "refunded"
	StatusPartiallyRefunded = "partially_refunded"
	StatusInactive          = "inactive"
)

// ValidSubscriptionStatus сообщает, может ли статус храниться в таблице subscriptions.
func ValidSubscriptionStatus(s string) bool {
	switch s {
	case StatusActive, StatusPending, StatusCancelled, StatusRefunded, StatusPartiallyRefunded:
		return true
	}
	return false
}

// ValidRole сообщает, является ли строка известной ролью.
func ValidRole(r string) bool {
	return r == RoleUser || r == RoleAdmin
}

// User представляет зарегистрированного пользователя системы.
//
// SubscriptionStatus — производное значение от subscriptions.status,
// пишется в той же транзакции, что и подписка.
type User struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Email               string    `json:"email"`
	PasswordHash        string    `json:"-"`
	Role                string    `json:"role"`
	SubscriptionStatus  string    `json:"subscription_status"`
	OnboardingStep      int       `json:"onboarding_step"`
	OnboardingCompleted bool      `json:"onboarding_completed"`
	StripeCustomerID    string    `json:"stripe_customer_id,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Identity — публичная часть пользователя, которую возвращает аутентификация.
// Хэш пароля сюда никогда не попадает.
type Identity struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Email               string    `json:"email"`
	Role                string    `json:"role"`
	SubscriptionStatus  string    `json:"subscription_status"`
	OnboardingStep      int       `json:"onboarding_step"`
	OnboardingCompleted bool      `json:"onboarding_completed"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Identity возвращает публичное представление пользователя.
func (u *User) Identity() *Identity {
	return &Identity{
		ID:                  u.ID,
		Name:                u.Name,
		Email:               u.Email,
		Role:                u.Role,
		SubscriptionStatus:  u.SubscriptionStatus,
		OnboardingStep:      u.OnboardingStep,
		OnboardingCompleted: u.OnboardingCompleted,
		CreatedAt:           u.CreatedAt,
		UpdatedAt:           u.UpdatedAt,
	}
}

// SessionSnapshot — данные пользователя, которые обновляются в токене сессии на каждом запросе.
type SessionSnapshot struct {
	Role                string `json:"role"`
	SubscriptionStatus  string `json:"subscription_status"`
	OnboardingStep      int    `json:"onboarding_step"`
	OnboardingCompleted bool   `json:"onboarding_completed"`
}

// UserFilter параметры выборки пользователей для администратора.
type UserFilter struct {
	Query  string
	Role   string
	Limit  int
	Offset int
}

// Actor — пользователь, от имени которого выполняется операция.
// Заполняется из claims токена сессии.
type Actor struct {
	ID                 string
	Role               string
	SubscriptionStatus string
}

// IsAdmin сообщает, является ли пользователь администратором.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Owns сообщает, принадлежит ли запись пользователю.
func (a Actor) Owns(userID string) bool {
	return a.ID != "" && a.ID == userID
}

// CanAccess разрешает доступ владельцу записи и администратору.
func (a Actor) CanAccess(userID string) bool {
	return a.IsAdmin() || a.Owns(userID)
}

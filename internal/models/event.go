package models

import "time"

// Типы событий, публикуемых в брокер уведомлений. Тип совпадает с routing key.
const (
	EventUserRegistered       = "user.registered"
	EventSubscriptionChanged  = "subscription.changed"
	EventRequestStatusChanged = "request.status_changed"
)

// Event — уведомление о доменном событии для notification-sender.
type Event struct {
	Type       string            `json:"type"`
	UserID     string            `json:"user_id"`
	Email      string            `json:"email"`
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

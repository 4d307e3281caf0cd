// Package middlewarectx содержит HTTP middleware приложения: чтение и обновление
// токена сессии, route guard, проверки доступа, ограничение частоты и метрики.
//
// Claims текущей сессии кладутся в контекст запроса и читаются обработчиками через ClaimsFrom и ActorFrom.
package middlewarectx

import (
	"context"

	"github.com/magabrotheeeer/designhub/internal/lib/jwt"
	"github.com/magabrotheeeer/designhub/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// ClaimsKey ключ claims сессии в контексте.
const ClaimsKey Key = "session_claims"

// WithClaims кладёт claims в контекст.
func WithClaims(ctx context.Context, claims *jwt.Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// ClaimsFrom возвращает claims сессии или nil, если запрос не аутентифицирован.
func ClaimsFrom(ctx context.Context) *jwt.Claims {
	claims, ok := ctx.Value(ClaimsKey).(*jwt.Claims)
	if !ok || claims == nil || claims.UserID() == "" {
		return nil
	}
	return claims
}

// ActorFrom возвращает пользователя текущего запроса.
func ActorFrom(ctx context.Context) (models.Actor, bool) {
	claims := ClaimsFrom(ctx)
	if claims == nil {
		return models.Actor{}, false
	}
	return models.Actor{
		ID:                 claims.UserID(),
		Role:               claims.Role,
		SubscriptionStatus: claims.SubscriptionStatus,
	}, true
}

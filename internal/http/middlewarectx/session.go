package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/designhub/internal/lib/jwt"
	"github.com/magabrotheeeer/designhub/internal/lib/sl"
)

// SessionRefresher проверяет токен и обновляет его claims из хранилища.
type SessionRefresher interface {
	Parse(token string) (*jwt.Claims, error)
	Refresh(ctx context.Context, claims *jwt.Claims) *jwt.Claims
	Sign(claims *jwt.Claims) (string, error)
}

// SessionMiddleware читает токен сессии, обновляет роль и статус подписки
// на каждом запросе и кладёт claims в контекст.
//
// Запрос без токена или с невалидным токеном проходит дальше как неаутентифицированный.
// Если обновлённые claims отличаются от исходных, cookie перевыпускается.
func SessionMiddleware(log *slog.Logger, sessions SessionRefresher, cookies Cookies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.SessionMiddleware"

			token, fromCookie := cookies.tokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			claims, err := sessions.Parse(token)
			if err != nil {
				log.Info("invalid session token", sl.Err(err))
				if fromCookie {
					cookies.Clear(w)
				}
				next.ServeHTTP(w, r)
				return
			}

			refreshed := sessions.Refresh(r.Context(), claims)
			if fromCookie && !refreshed.SameSession(claims) {
				signed, err := sessions.Sign(refreshed)
				if err != nil {
					log.Error("failed to re-issue session token", slog.String("user_id", claims.UserID()), sl.Err(err))
				} else {
					cookies.Set(w, signed)
					log.Debug("session token re-issued", slog.String("user_id", claims.UserID()))
				}
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), refreshed)))
		})
	}
}

// Package login реализует HTTP-обработчик входа по email и паролю.
//
// При успехе выпускается токен сессии, который кладётся в httpOnly cookie и дублируется в ответе.
// Любая причина отказа даёт один и тот же ответ 401.
package login

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/designhub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/designhub/internal/http/request"
	"github.com/magabrotheeeer/designhub/internal/http/response"
	"github.com/magabrotheeeer/designhub/internal/lib/jwt"
	"github.com/magabrotheeeer/designhub/internal/lib/sl"
	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/services/auth"
)

// Request — учетные данные пользователя.
//
// Поля не валидируются отдельно: пустые значения отклоняются тем же 401, что и неверный пароль.
type Request struct {
	Email    string `json:"email" example:"jane@example.com"`
	Password string `json:"password" example:"secret-password"`
}

// Authenticator проверяет учетные данные.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*models.Identity, error)
}

// Issuer выпускает токен сессии.
type Issuer interface {
	Issue(identity *models.Identity) (string, *jwt.Claims, error)
}

// Handler обрабатывает HTTP-запросы для входа.
type Handler struct {
	log      *slog.Logger
	auth     Authenticator
	sessions Issuer
	cookies  middlewarectx.Cookies
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, authenticator Authenticator, sessions Issuer, cookies middlewarectx.Cookies) *Handler {
	return &Handler{
		log:      log,
		auth:     authenticator,
		sessions: sessions,
		cookies:  cookies,
	}
}

// ServeHTTP godoc
// @Summary Вход пользователя
// @Description Проверяет email и пароль, выставляет cookie сессии и возвращает профиль и токен.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Учетные данные пользователя"
// @Success 200 {object} response.Response "Успешный вход"
// @Failure 401 {object} response.ErrorResponse "Неверные учетные данные"
// @Failure 429 {object} response.ErrorResponse "Слишком много попыток"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /auth/signin [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := request.DecodeJSON(r, &req, nil); err != nil {
		log.Info("failed to decode request body", sl.Err(err))
		response.Fail(w, r, auth.ErrInvalidCredentials)
		return
	}

	identity, err := h.auth.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		response.Fail(w, r, err)
		return
	}

	token, _, err := h.sessions.Issue(identity)
	if err != nil {
		log.Error("failed to issue session token", slog.String("user_id", identity.ID), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	h.cookies.Set(w, token)

	log.Info("login success", slog.String("user_id", identity.ID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user":  identity,
		"token": token,
	}))
}

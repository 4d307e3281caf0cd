// Package register реализует HTTP-обработчик регистрации пользователя.
//
// Новый пользователь получает роль USER и статус подписки inactive, сессия открывается сразу.
package register

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/designhub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/designhub/internal/http/request"
	"github.com/magabrotheeeer/designhub/internal/http/response"
	"github.com/magabrotheeeer/designhub/internal/lib/jwt"
	"github.com/magabrotheeeer/designhub/internal/lib/sl"
	"github.com/magabrotheeeer/designhub/internal/models"
)

// Request — данные для регистрации.
type Request struct {
	Name     string `json:"name" validate:"required,max=100" example:"Jane Doe"`
	Email    string `json:"email" validate:"required,email" example:"jane@example.com"`
	Password string `json:"password" validate:"required,min=8,max=72" example:"secret-password"`
}

// Service описывает бизнес-логику регистрации.
type Service interface {
	Register(ctx context.Context, name, email, password string) (*models.Identity, error)
}

// Issuer выпускает токен сессии.
type Issuer interface {
	Issue(identity *models.Identity) (string, *jwt.Claims, error)
}

// Handler обрабатывает HTTP-запросы на регистрацию.
type Handler struct {
	log      *slog.Logger
	service  Service
	sessions Issuer
	cookies  middlewarectx.Cookies
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, sessions Issuer, cookies middlewarectx.Cookies) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		sessions: sessions,
		cookies:  cookies,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Регистрация пользователя
// @Description Создает пользователя и открывает сессию.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Данные пользователя"
// @Success 201 {object} response.Response "Пользователь создан"
// @Failure 400 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 409 {object} response.ErrorResponse "Email уже занят"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /auth/register [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := request.DecodeJSON(r, &req, h.validate); err != nil {
		log.Info("invalid request", sl.Err(err))
		response.Invalid(w, r, err)
		return
	}

	identity, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		log.Info("registration failed", sl.Err(err))
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

	log.Info("user registered", slog.String("user_id", identity.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user":  identity,
		"token": token,
	}))
}

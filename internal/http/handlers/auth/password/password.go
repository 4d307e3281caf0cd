// Package password реализует HTTP-обработчик смены пароля текущего пользователя.
package password

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
	"github.com/magabrotheeeer/designhub/internal/lib/sl"
)

// Request — текущий и новый пароль.
type Request struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

// Service меняет пароль.
type Service interface {
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
}

// Handler обрабатывает смену пароля.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: validator.New()}
}

// ServeHTTP godoc
// @Summary Смена пароля
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Текущий и новый пароль"
// @Success 200 {object} response.Response "Пароль изменён"
// @Failure 400 {object} response.ErrorResponse "Ошибка валидации или неверный текущий пароль"
// @Failure 401 {object} response.ErrorResponse "Нет сессии"
// @Router /auth/password [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.password"
	actor, ok := middlewarectx.ActorFrom(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("user_id", actor.ID),
	)

	var req Request
	if err := request.DecodeJSON(r, &req, h.validate); err != nil {
		response.Invalid(w, r, err)
		return
	}
	if err := h.service.ChangePassword(r.Context(), actor.ID, req.CurrentPassword, req.NewPassword); err != nil {
		log.Info("password change failed", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	log.Info("password changed")
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"changed": true}))
}

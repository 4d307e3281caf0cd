// Package profile реализует HTTP-обработчики профиля и онбординга текущего пользователя.
package profile

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

// UpdateRequest — новые данные профиля.
type UpdateRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// OnboardingRequest — прогресс онбординга.
type OnboardingRequest struct {
	Step      int  `json:"step" validate:"min=0,max=100"`
	Completed bool `json:"completed"`
}

// Service описывает операции с профилем.
type Service interface {
	Profile(ctx context.Context, userID string) (*models.Identity, error)
	UpdateName(ctx context.Context, userID, name string) (*models.Identity, error)
	UpdateOnboarding(ctx context.Context, userID string, step int, completed bool) (*models.Identity, error)
}

// Sessions перевыпускает токен после изменения онбординга.
type Sessions interface {
	Refresh(ctx context.Context, claims *jwt.Claims) *jwt.Claims
	Sign(claims *jwt.Claims) (string, error)
}

// Handler обслуживает /profile и /onboarding.
type Handler struct {
	log      *slog.Logger
	service  Service
	sessions Sessions
	cookies  middlewarectx.Cookies
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, sessions Sessions, cookies middlewarectx.Cookies) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		sessions: sessions,
		cookies:  cookies,
		validate: validator.New(),
	}
}

// Get godoc
// @Summary Профиль
// @Tags Profile
// @Produce  json
// @Success 200 {object} response.Response "Профиль пользователя"
// @Failure 401 {object} response.ErrorResponse "Нет сессии"
// @Router /profile [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, _ := middlewarectx.ActorFrom(r.Context())
	identity, err := h.service.Profile(r.Context(), actor.ID)
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"user": identity}))
}

// Update godoc
// @Summary Изменить имя
// @Tags Profile
// @Accept  json
// @Produce  json
// @Param request body UpdateRequest true "Имя"
// @Success 200 {object} response.Response "Профиль обновлён"
// @Failure 400 {object} response.ErrorResponse "Ошибка валидации"
// @Router /profile [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.profile.update"
	actor, _ := middlewarectx.ActorFrom(r.Context())
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("user_id", actor.ID),
	)

	var req UpdateRequest
	if err := request.DecodeJSON(r, &req, h.validate); err != nil {
		response.Invalid(w, r, err)
		return
	}
	identity, err := h.service.UpdateName(r.Context(), actor.ID, req.Name)
	if err != nil {
		log.Info("profile update failed", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"user": identity}))
}

// Onboarding godoc
// @Summary Прогресс онбординга
// @Description Сохраняет шаг онбординга и перевыпускает токен сессии.
// @Tags Profile
// @Accept  json
// @Produce  json
// @Param request body OnboardingRequest true "Шаг и признак завершения"
// @Success 200 {object} response.Response "Онбординг обновлён"
// @Failure 400 {object} response.ErrorResponse "Ошибка валидации"
// @Router /onboarding [patch]
func (h *Handler) Onboarding(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.profile.onboarding"
	claims := middlewarectx.ClaimsFrom(r.Context())
	if claims == nil {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("user_id", claims.UserID()),
	)

	var req OnboardingRequest
	if err := request.DecodeJSON(r, &req, h.validate); err != nil {
		response.Invalid(w, r, err)
		return
	}
	identity, err := h.service.UpdateOnboarding(r.Context(), claims.UserID(), req.Step, req.Completed)
	if err != nil {
		log.Info("onboarding update failed", sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	updated := h.sessions.Refresh(r.Context(), claims)
	token, err := h.sessions.Sign(updated)
	if err != nil {
		log.Error("failed to sign session", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	h.cookies.Set(w, token)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"user": identity, "session": updated}))
}

// Package session реализует HTTP-обработчики чтения и явного обновления токена сессии.
//
// PATCH принимает поля онбординга и сохраняет их. Присланные клиентом роль и статус
// подписки игнорируются: claims перечитываются из хранилища, и токен перевыпускается.
package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/designhub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/designhub/internal/http/request"
	"github.com/magabrotheeeer/designhub/internal/http/response"
	"github.com/magabrotheeeer/designhub/internal/lib/jwt"
	"github.com/magabrotheeeer/designhub/internal/lib/sl"
	"github.com/magabrotheeeer/designhub/internal/services/auth"
)

// Service обновляет claims сессии.
type Service interface {
	Update(ctx context.Context, claims *jwt.Claims, patch auth.SessionPatch) (*jwt.Claims, error)
	Sign(claims *jwt.Claims) (string, error)
}

// Handler обслуживает /auth/session.
type Handler struct {
	log      *slog.Logger
	sessions Service
	cookies  middlewarectx.Cookies
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, sessions Service, cookies middlewarectx.Cookies) *Handler {
	return &Handler{log: log, sessions: sessions, cookies: cookies}
}

// Get godoc
// @Summary Текущая сессия
// @Description Возвращает claims сессии после обновления из хранилища.
// @Tags Auth
// @Produce  json
// @Success 200 {object} response.Response "Текущая сессия"
// @Failure 401 {object} response.ErrorResponse "Нет сессии"
// @Router /auth/session [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middlewarectx.ClaimsFrom(r.Context())
	if claims == nil {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"session": claims}))
}

// Update godoc
// @Summary Обновить сессию
// @Description Применяет поля онбординга, перечитывает роль и статус подписки и перевыпускает токен.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body auth.SessionPatch true "Поля онбординга"
// @Success 200 {object} response.Response "Обновлённая сессия"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или шаг онбординга"
// @Failure 401 {object} response.ErrorResponse "Нет сессии"
// @Router /auth/session [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.session.update"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	claims := middlewarectx.ClaimsFrom(r.Context())
	if claims == nil {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	var patch auth.SessionPatch
	if err := request.DecodeJSON(r, &patch, nil); err != nil && !errors.Is(err, request.ErrEmptyBody) {
		log.Info("invalid request", sl.Err(err))
		response.Invalid(w, r, err)
		return
	}

	updated, err := h.sessions.Update(r.Context(), claims, patch)
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	token, err := h.sessions.Sign(updated)
	if err != nil {
		log.Error("failed to sign session", slog.String("user_id", claims.UserID()), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	h.cookies.Set(w, token)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"session": updated, "token": token}))
}

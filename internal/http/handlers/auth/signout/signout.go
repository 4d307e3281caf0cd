// Package signout реализует HTTP-обработчик выхода: cookie сессии удаляется.
package signout

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/designhub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/designhub/internal/http/response"
)

// Handler обрабатывает выход пользователя.
type Handler struct {
	log     *slog.Logger
	cookies middlewarectx.Cookies
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, cookies middlewarectx.Cookies) *Handler {
	return &Handler{log: log, cookies: cookies}
}

// ServeHTTP godoc
// @Summary Выход
// @Description Удаляет cookie сессии.
// @Tags Auth
// @Produce  json
// @Success 200 {object} response.Response "Сессия закрыта"
// @Router /auth/signout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.signout"
	h.cookies.Clear(w)
	if claims := middlewarectx.ClaimsFrom(r.Context()); claims != nil {
		h.log.Info("user signed out",
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("user_id", claims.UserID()),
		)
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"signed_out": true}))
}

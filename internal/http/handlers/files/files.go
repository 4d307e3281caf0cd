// Package files реализует HTTP-обработчики файлов пользователя.
package files

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/designhub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/designhub/internal/http/response"
	"github.com/magabrotheeeer/designhub/internal/lib/sl"
	"github.com/magabrotheeeer/designhub/internal/models"
)

// Service описывает операции с файлами.
type Service interface {
	List(ctx context.Context, actor models.Actor, requestID string) ([]models.File, error)
	Delete(ctx context.Context, actor models.Actor, id string) error
}

// Handler обслуживает /files.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// List godoc
// @Summary Файлы пользователя
// @Tags Files
// @Produce  json
// @Param request_id query string false "Только файлы заявки"
// @Success 200 {object} response.Response "Файлы"
// @Failure 401 {object} response.ErrorResponse "Нет сессии"
// @Router /files [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := middlewarectx.ActorFrom(r.Context())
	list, err := h.service.List(r.Context(), actor, r.URL.Query().Get("request_id"))
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"files": list}))
}

// Delete godoc
// @Summary Удалить файл
// @Tags Files
// @Produce  json
// @Param id path string true "ID файла"
// @Success 200 {object} response.Response "Удалён"
// @Failure 404 {object} response.ErrorResponse "Не найден или чужой"
// @Router /files/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.files.delete"
	actor, _ := middlewarectx.ActorFrom(r.Context())
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.log.Info("failed to delete file",
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("file_id", id),
			sl.Err(err),
		)
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"deleted": id}))
}

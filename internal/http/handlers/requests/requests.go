// Package requests реализует HTTP-обработчики заявок на дизайн.
package requests

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/designhub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/designhub/internal/http/request"
	"github.com/magabrotheeeer/designhub/internal/http/response"
	"github.com/magabrotheeeer/designhub/internal/lib/sl"
	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/services/requests"
)

// Request — редактируемые поля заявки.
type Request struct {
	Title       string `json:"title" validate:"required,max=200" example:"Landing page hero"`
	Description string `json:"description" validate:"required,max=10000"`
	Category    string `json:"category" validate:"required,max=100" example:"web"`
	Priority    string `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH" example:"MEDIUM"`
}

func (req Request) input() requests.Input {
	return requests.Input{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
	}
}

// StatusRequest — новый статус заявки.
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PENDING IN_PROGRESS REVISIONS_REQUESTED COMPLETED CANCELED" example:"IN_PROGRESS"`
}

// Service описывает операции с заявками.
type Service interface {
	Create(ctx context.Context, actor models.Actor, in requests.Input) (*models.DesignRequest, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.DesignRequest, error)
	List(ctx context.Context, actor models.Actor, filter models.RequestFilter) ([]models.DesignRequest, error)
	Update(ctx context.Context, actor models.Actor, id string, in requests.Input) (*models.DesignRequest, error)
	ChangeStatus(ctx context.Context, actor models.Actor, id, to string) (*models.DesignRequest, error)
	Delete(ctx context.Context, actor models.Actor, id string) error
}

// Files отдаёт файлы заявки.
type Files interface {
	List(ctx context.Context, actor models.Actor, requestID string) ([]models.File, error)
}

// Handler обслуживает /requests.
type Handler struct {
	log      *slog.Logger
	service  Service
	files    Files
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, files Files) *Handler {
	return &Handler{log: log, service: service, files: files, validate: validator.New()}
}

func (h *Handler) logger(r *http.Request, op string, actor models.Actor) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("user_id", actor.ID),
	)
}

// List godoc
// @Summary Список заявок
// @Description Пользователь видит свои заявки, администратор все.
// @Tags Requests
// @Produce  json
// @Param status query string false "Фильтр по статусу"
// @Param limit query int false "Лимит"
// @Param offset query int false "Смещение"
// @Success 200 {object} response.Response "Заявки"
// @Failure 401 {object} response.ErrorResponse "Нет сессии"
// @Router /requests [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := middlewarectx.ActorFrom(r.Context())
	limit, offset := request.Page(r)
	filter := models.RequestFilter{
		UserID: r.URL.Query().Get("user_id"),
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: offset,
	}
	list, err := h.service.List(r.Context(), actor, filter)
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"requests": list}))
}

// Create godoc
// @Summary Создать заявку
// @Description Требуется активная подписка.
// @Tags Requests
// @Accept  json
// @Produce  json
// @Param request body Request true "Заявка"
// @Success 201 {object} response.Response "Создана"
// @Failure 400 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 403 {object} response.ErrorResponse "Нет активной подписки"
// @Router /requests [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := middlewarectx.ActorFrom(r.Context())
	log := h.logger(r, "handlers.requests.create", actor)

	var req Request
	if err := request.DecodeJSON(r, &req, h.validate); err != nil {
		response.Invalid(w, r, err)
		return
	}
	created, err := h.service.Create(r.Context(), actor, req.input())
	if err != nil {
		log.Info("failed to create request", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	log.Info("request created", slog.String("design_request_id", created.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"request": created}))
}

// Get godoc
// @Summary Заявка
// @Tags Requests
// @Produce  json
// @Param id path string true "ID заявки"
// @Success 200 {object} response.Response "Заявка"
// @Failure 404 {object} response.ErrorResponse "Не найдена или чужая"
// @Router /requests/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, _ := middlewarectx.ActorFrom(r.Context())
	dr, err := h.service.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"request": dr}))
}

// Update godoc
// @Summary Изменить заявку
// @Tags Requests
// @Accept  json
// @Produce  json
// @Param id path string true "ID заявки"
// @Param request body Request true "Заявка"
// @Success 200 {object} response.Response "Обновлена"
// @Failure 400 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 403 {object} response.ErrorResponse "Редактирование запрещено"
// @Router /requests/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	actor, _ := middlewarectx.ActorFrom(r.Context())
	id := chi.URLParam(r, "id")
	log := h.logger(r, "handlers.requests.update", actor)

	var req Request
	if err := request.DecodeJSON(r, &req, h.validate); err != nil {
		response.Invalid(w, r, err)
		return
	}
	updated, err := h.service.Update(r.Context(), actor, id, req.input())
	if err != nil {
		log.Info("failed to update request", slog.String("design_request_id", id), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"request": updated}))
}

// ChangeStatus godoc
// @Summary Сменить статус заявки
// @Description Пользователь может отменить заявку или запросить правки, администратор выполняет любой допустимый переход.
// @Tags Requests
// @Accept  json
// @Produce  json
// @Param id path string true "ID заявки"
// @Param request body StatusRequest true "Статус"
// @Success 200 {object} response.Response "Статус изменён"
// @Failure 400 {object} response.ErrorResponse "Недопустимый переход"
// @Failure 409 {object} response.ErrorResponse "Заявка изменилась параллельно"
// @Router /requests/{id}/status [patch]
func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := middlewarectx.ActorFrom(r.Context())
	id := chi.URLParam(r, "id")
	log := h.logger(r, "handlers.requests.status", actor)

	var req StatusRequest
	if err := request.DecodeJSON(r, &req, h.validate); err != nil {
		response.Invalid(w, r, err)
		return
	}
	updated, err := h.service.ChangeStatus(r.Context(), actor, id, req.Status)
	if err != nil {
		log.Info("failed to change request status", slog.String("design_request_id", id), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"request": updated}))
}

// Delete godoc
// @Summary Удалить заявку
// @Tags Requests
// @Produce  json
// @Param id path string true "ID заявки"
// @Success 200 {object} response.Response "Удалена"
// @Failure 403 {object} response.ErrorResponse "Удаление запрещено"
// @Failure 404 {object} response.ErrorResponse "Не найдена"
// @Router /requests/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := middlewarectx.ActorFrom(r.Context())
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.logger(r, "handlers.requests.delete", actor).Info("failed to delete request",
			slog.String("design_request_id", id), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"deleted": id}))
}

// Files godoc
// @Summary Файлы заявки
// @Tags Requests
// @Produce  json
// @Param id path string true "ID заявки"
// @Success 200 {object} response.Response "Файлы"
// @Failure 404 {object} response.ErrorResponse "Не найдена или чужая"
// @Router /requests/{id}/files [get]
func (h *Handler) Files(w http.ResponseWriter, r *http.Request) {
	actor, _ := middlewarectx.ActorFrom(r.Context())
	list, err := h.files.List(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"files": list}))
}

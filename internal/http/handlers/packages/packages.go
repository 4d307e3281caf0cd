// Package packages реализует HTTP-обработчики тарифных пакетов.
// Чтение открыто всем, изменение доступно администратору.
package packages

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
)

// Request — поля пакета, которые задаёт администратор.
type Request struct {
	Name          string   `json:"name" validate:"required,max=100" example:"Pro"`
	Description   string   `json:"description" validate:"max=2000"`
	Price         int64    `json:"price" validate:"min=0" example:"49900"`
	Currency      string   `json:"currency" validate:"omitempty,len=3" example:"usd"`
	Features      []string `json:"features"`
	Active        *bool    `json:"active"`
	StripePriceID string   `json:"stripe_price_id" example:"price_123"`
}

func (req Request) toModel(id string) models.Package {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return models.Package{
		ID:            id,
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		Currency:      req.Currency,
		Features:      req.Features,
		Active:        active,
		StripePriceID: req.StripePriceID,
	}
}

// Service описывает операции с пакетами.
type Service interface {
	List(ctx context.Context, actor models.Actor) ([]models.Package, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.Package, error)
	Create(ctx context.Context, p models.Package) (*models.Package, error)
	Update(ctx context.Context, p models.Package) (*models.Package, error)
	Archive(ctx context.Context, id string) error
}

// Handler обслуживает /packages.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: validator.New()}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// List godoc
// @Summary Список пакетов
// @Description Активные пакеты. Администратор видит и архивные.
// @Tags Packages
// @Produce  json
// @Success 200 {object} response.Response "Пакеты"
// @Router /packages [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := middlewarectx.ActorFrom(r.Context())
	list, err := h.service.List(r.Context(), actor)
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"packages": list}))
}

// Get godoc
// @Summary Пакет
// @Tags Packages
// @Produce  json
// @Param id path string true "ID пакета"
// @Success 200 {object} response.Response "Пакет"
// @Failure 404 {object} response.ErrorResponse "Не найден"
// @Router /packages/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, _ := middlewarectx.ActorFrom(r.Context())
	p, err := h.service.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"package": p}))
}

// Create godoc
// @Summary Создать пакет
// @Tags Packages
// @Accept  json
// @Produce  json
// @Param request body Request true "Пакет"
// @Success 201 {object} response.Response "Создан"
// @Failure 400 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 409 {object} response.ErrorResponse "Имя занято"
// @Router /packages [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.packages.create")
	var req Request
	if err := request.DecodeJSON(r, &req, h.validate); err != nil {
		response.Invalid(w, r, err)
		return
	}
	p, err := h.service.Create(r.Context(), req.toModel(""))
	if err != nil {
		log.Info("failed to create package", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"package": p}))
}

// Update godoc
// @Summary Изменить пакет
// @Tags Packages
// @Accept  json
// @Produce  json
// @Param id path string true "ID пакета"
// @Param request body Request true "Пакет"
// @Success 200 {object} response.Response "Обновлён"
// @Failure 400 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 404 {object} response.ErrorResponse "Не найден"
// @Router /packages/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.packages.update")
	var req Request
	if err := request.DecodeJSON(r, &req, h.validate); err != nil {
		response.Invalid(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	p, err := h.service.Update(r.Context(), req.toModel(id))
	if err != nil {
		log.Info("failed to update package", slog.String("package_id", id), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"package": p}))
}

// Archive godoc
// @Summary Архивировать пакет
// @Description Пакет снимается с продажи, подписки на него сохраняются.
// @Tags Packages
// @Produce  json
// @Param id path string true "ID пакета"
// @Success 200 {object} response.Response "Архивирован"
// @Failure 404 {object} response.ErrorResponse "Не найден"
// @Router /packages/{id} [delete]
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.packages.archive")
	id := chi.URLParam(r, "id")
	if err := h.service.Archive(r.Context(), id); err != nil {
		log.Info("failed to archive package", slog.String("package_id", id), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"archived": id}))
}

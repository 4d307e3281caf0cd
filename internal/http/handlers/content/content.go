// Package content реализует обработчики контента сайта: услуги, кейсы портфолио и отзывы.
// Чтение открыто всем. Услуги и отзывы меняет администратор, кейсы также их автор.
package content

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

// ServiceRequest — поля услуги.
type ServiceRequest struct {
	Title       string `json:"title" validate:"required,max=200" example:"Brand identity"`
	Description string `json:"description" validate:"max=5000"`
	Icon        string `json:"icon" validate:"max=100"`
	SortOrder   int    `json:"sort_order"`
}

// CaseStudyRequest — поля кейса. Пустой slug строится из заголовка.
type CaseStudyRequest struct {
	Title     string `json:"title" validate:"required,max=200" example:"Fintech rebrand"`
	Slug      string `json:"slug" validate:"max=200"`
	Summary   string `json:"summary" validate:"max=1000"`
	Body      string `json:"body"`
	CoverURL  string `json:"cover_url" validate:"omitempty,url"`
	Published bool   `json:"published"`
}

// TestimonialRequest — поля отзыва.
type TestimonialRequest struct {
	AuthorName string `json:"author_name" validate:"required,max=100"`
	Company    string `json:"company" validate:"max=100"`
	Quote      string `json:"quote" validate:"required,max=2000"`
	Rating     int    `json:"rating" validate:"min=1,max=5" example:"5"`
}

// Service описывает операции с контентом.
type Service interface {
	ListServices(ctx context.Context) ([]models.Service, error)
	GetService(ctx context.Context, id string) (*models.Service, error)
	CreateService(ctx context.Context, v models.Service) (*models.Service, error)
	UpdateService(ctx context.Context, v models.Service) (*models.Service, error)
	DeleteService(ctx context.Context, id string) error

	ListCaseStudies(ctx context.Context, actor models.Actor) ([]models.CaseStudy, error)
	GetCaseStudy(ctx context.Context, actor models.Actor, idOrSlug string) (*models.CaseStudy, error)
	CreateCaseStudy(ctx context.Context, actor models.Actor, v models.CaseStudy) (*models.CaseStudy, error)
	UpdateCaseStudy(ctx context.Context, actor models.Actor, v models.CaseStudy) (*models.CaseStudy, error)
	DeleteCaseStudy(ctx context.Context, actor models.Actor, id string) error

	ListTestimonials(ctx context.Context) ([]models.Testimonial, error)
	GetTestimonial(ctx context.Context, id string) (*models.Testimonial, error)
	CreateTestimonial(ctx context.Context, v models.Testimonial) (*models.Testimonial, error)
	UpdateTestimonial(ctx context.Context, v models.Testimonial) (*models.Testimonial, error)
	DeleteTestimonial(ctx context.Context, id string) error
}

// Handler обслуживает /services, /case-studies и /testimonials.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: validator.New()}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	actor, _ := middlewarectx.ActorFrom(r.Context())
	h.log.Info("content operation failed",
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("user_id", actor.ID),
		slog.String("id", chi.URLParam(r, "id")),
		sl.Err(err),
	)
	response.Fail(w, r, err)
}

func created(w http.ResponseWriter, r *http.Request, key string, v any) {
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{key: v}))
}

func ok(w http.ResponseWriter, r *http.Request, key string, v any) {
	render.JSON(w, r, response.StatusOKWithData(map[string]any{key: v}))
}

// ListServices godoc
// @Summary Услуги студии
// @Tags Content
// @Produce  json
// @Success 200 {object} response.Response "Услуги"
// @Router /services [get]
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListServices(r.Context())
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	ok(w, r, "services", list)
}

// GetService godoc
// @Summary Услуга
// @Tags Content
// @Produce  json
// @Param id path string true "ID услуги"
// @Success 200 {object} response.Response "Услуга"
// @Failure 404 {object} response.ErrorResponse "Не найдена"
// @Router /services/{id} [get]
func (h *Handler) GetService(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.GetService(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	ok(w, r, "service", v)
}

// CreateService godoc
// @Summary Создать услугу
// @Tags Content
// @Accept  json
// @Produce  json
// @Param request body ServiceRequest true "Услуга"
// @Success 201 {object} response.Response "Создана"
// @Failure 400 {object} response.ErrorResponse "Ошибка валидации"
// @Router /services [post]
func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	var req ServiceRequest
	if err := request.DecodeJSON(r, &req, h.validate); err != nil {
		response.Invalid(w, r, err)
		return
	}
	v, err := h.service.CreateService(r.Context(), req.toModel(""))
	if err != nil {
		h.fail(w, r, "handlers.content.create_service", err)
		return
	}
	created(w, r, "service", v)
}

// UpdateService godoc
// @Summary Изменить услугу
// @Tags Content
// @Accept  json
// @Produce  json
// @Param id path string true "ID услуги"
// @Param request body ServiceRequest true "Услуга"
// @Success 200 {object} response.Response "Обновлена"
// @Router /services/{id} [put]
func (h *Handler) UpdateService(w http.ResponseWriter, r *http.Request) {
	var req ServiceRequest
	if err := request.DecodeJSON(r, &req, h.validate); err != nil {
		response.Invalid(w, r, err)
		return
	}
	v, err := h.service.UpdateService(r.Context(), req.toModel(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "handlers.content.update_service", err)
		return
	}
	ok(w, r, "service", v)
}

// DeleteService godoc
// @Summary Удалить услугу
// @Tags Content
// @Param id path string true "ID услуги"
// @Success 200 {object} response.Response "Удалена"
// @Router /services/{id} [delete]
func (h *Handler) DeleteService(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.DeleteService(r.Context(), id); err != nil {
		h.fail(w, r, "handlers.content.delete_service", err)
		return
	}
	ok(w, r, "deleted", id)
}

// ListCaseStudies godoc
// @Summary Кейсы портфолио
// @Description Анонимные пользователи видят только опубликованные кейсы.
// @Tags Content
// @Produce  json
// @Success 200 {object} response.Response "Кейсы"
// @Router /case-studies [get]
func (h *Handler) ListCaseStudies(w http.ResponseWriter, r *http.Request) {
	actor, _ := middlewarectx.ActorFrom(r.Context())
	list, err := h.service.ListCaseStudies(r.Context(), actor)
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	ok(w, r, "case_studies", list)
}

// GetCaseStudy godoc
// @Summary Кейс
// @Tags Content
// @Produce  json
// @Param id path string true "ID или slug кейса"
// @Success 200 {object} response.Response "Кейс"
// @Failure 404 {object} response.ErrorResponse "Не найден"
// @Router /case-studies/{id} [get]
func (h *Handler) GetCaseStudy(w http.ResponseWriter, r *http.Request) {
	actor, _ := middlewarectx.ActorFrom(r.Context())
	v, err := h.service.GetCaseStudy(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	ok(w, r, "case_study", v)
}

// CreateCaseStudy godoc
// @Summary Создать кейс
// @Tags Content
// @Accept  json
// @Produce  json
// @Param request body CaseStudyRequest true "Кейс"
// @Success 201 {object} response.Response "Создан"
// @Failure 409 {object} response.ErrorResponse "Slug занят"
// @Router /case-studies [post]
func (h *Handler) CreateCaseStudy(w http.ResponseWriter, r *http.Request) {
	actor, _ := middlewarectx.ActorFrom(r.Context())
	var req CaseStudyRequest
	if err := request.DecodeJSON(r, &req, h.validate); err != nil {
		response.Invalid(w, r, err)
		return
	}
	v, err := h.service.CreateCaseStudy(r.Context(), actor, req.toModel(""))
	if err != nil {
		h.fail(w, r, "handlers.content.create_case_study", err)
		return
	}
	created(w, r, "case_study", v)
}

// UpdateCaseStudy godoc
// @Summary Изменить кейс
// @Tags Content
// @Accept  json
// @Produce  json
// @Param id path string true "ID кейса"
// @Param request body CaseStudyRequest true "Кейс"
// @Success 200 {object} response.Response "Обновлён"
// @Failure 403 {object} response.ErrorResponse "Не автор"
// @Router /case-studies/{id} [put]
func (h *Handler) UpdateCaseStudy(w http.ResponseWriter, r *http.Request) {
	actor, _ := middlewarectx.ActorFrom(r.Context())
	var req CaseStudyRequest
	if err := request.DecodeJSON(r, &req, h.validate); err != nil {
		response.Invalid(w, r, err)
		return
	}
	v, err := h.service.UpdateCaseStudy(r.Context(), actor, req.toModel(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "handlers.content.update_case_study", err)
		return
	}
	ok(w, r, "case_study", v)
}

// DeleteCaseStudy godoc
// @Summary Удалить кейс
// @Description Доступно администратору и автору кейса.
// @Tags Content
// @Param id path string true "ID кейса"
// @Success 200 {object} response.Response "Удалён"
// @Failure 403 {object} response.ErrorResponse "Не автор"
// @Router /case-studies/{id} [delete]
func (h *Handler) DeleteCaseStudy(w http.ResponseWriter, r *http.Request) {
	actor, _ := middlewarectx.ActorFrom(r.Context())
	id := chi.URLParam(r, "id")
	if err := h.service.DeleteCaseStudy(r.Context(), actor, id); err != nil {
		h.fail(w, r, "handlers.content.delete_case_study", err)
		return
	}
	ok(w, r, "deleted", id)
}

// ListTestimonials godoc
// @Summary Отзывы клиентов
// @Tags Content
// @Produce  json
// @Success 200 {object} response.Response "Отзывы"
// @Router /testimonials [get]
func (h *Handler) ListTestimonials(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListTestimonials(r.Context())
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	ok(w, r, "testimonials", list)
}

// GetTestimonial godoc
// @Summary Отзыв
// @Tags Content
// @Produce  json
// @Param id path string true "ID отзыва"
// @Success 200 {object} response.Response "Отзыв"
// @Router /testimonials/{id} [get]
func (h *Handler) GetTestimonial(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.GetTestimonial(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	ok(w, r, "testimonial", v)
}

// CreateTestimonial godoc
// @Summary Добавить отзыв
// @Tags Content
// @Accept  json
// @Produce  json
// @Param request body TestimonialRequest true "Отзыв"
// @Success 201 {object} response.Response "Создан"
// @Router /testimonials [post]
func (h *Handler) CreateTestimonial(w http.ResponseWriter, r *http.Request) {
	var req TestimonialRequest
	if err := request.DecodeJSON(r, &req, h.validate); err != nil {
		response.Invalid(w, r, err)
		return
	}
	v, err := h.service.CreateTestimonial(r.Context(), req.toModel(""))
	if err != nil {
		h.fail(w, r, "handlers.content.create_testimonial", err)
		return
	}
	created(w, r, "testimonial", v)
}

// UpdateTestimonial godoc
// @Summary Изменить отзыв
// @Tags Content
// @Accept  json
// @Produce  json
// @Param id path string true "ID отзыва"
// @Param request body TestimonialRequest true "Отзыв"
// @Success 200 {object} response.Response "Обновлён"
// @Router /testimonials/{id} [put]
func (h *Handler) UpdateTestimonial(w http.ResponseWriter, r *http.Request) {
	var req TestimonialRequest
	if err := request.DecodeJSON(r, &req, h.validate); err != nil {
		response.Invalid(w, r, err)
		return
	}
	v, err := h.service.UpdateTestimonial(r.Context(), req.toModel(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "handlers.content.update_testimonial", err)
		return
	}
	ok(w, r, "testimonial", v)
}

// DeleteTestimonial godoc
// @Summary Удалить отзыв
// @Tags Content
// @Param id path string true "ID отзыва"
// @Success 200 {object} response.Response "Удалён"
// @Router /testimonials/{id} [delete]
func (h *Handler) DeleteTestimonial(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.DeleteTestimonial(r.Context(), id); err != nil {
		h.fail(w, r, "handlers.content.delete_testimonial", err)
		return
	}
	ok(w, r, "deleted", id)
}

func (req ServiceRequest) toModel(id string) models.Service {
	return models.Service{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		Icon:        req.Icon,
		SortOrder:   req.SortOrder,
	}
}

func (req CaseStudyRequest) toModel(id string) models.CaseStudy {
	return models.CaseStudy{
		ID:        id,
		Title:     req.Title,
		Slug:      req.Slug,
		Summary:   req.Summary,
		Body:      req.Body,
		CoverURL:  req.CoverURL,
		Published: req.Published,
	}
}

func (req TestimonialRequest) toModel(id string) models.Testimonial {
	return models.Testimonial{
		ID:         id,
		AuthorName: req.AuthorName,
		Company:    req.Company,
		Quote:      req.Quote,
		Rating:     req.Rating,
	}
}

// Package payments реализует HTTP-обработчики платежей и возвратов.
package payments

import (
	"context"
	"errors"
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

// RefundRequest — сумма возврата в минимальных единицах. 0 возвращает весь остаток.
type RefundRequest struct {
	Amount int64 `json:"amount" validate:"min=0" example:"1000"`
}

// Service описывает операции с платежами.
type Service interface {
	List(ctx context.Context, actor models.Actor, userID string, limit, offset int) ([]models.Payment, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.Payment, error)
	Refund(ctx context.Context, id string, amount int64) (*models.Payment, error)
}

// Handler обслуживает /payments.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: validator.New()}
}

// List godoc
// @Summary Список платежей
// @Description Пользователь видит свои платежи, администратор может фильтровать по user_id.
// @Tags Payments
// @Produce  json
// @Param user_id query string false "Пользователь (для администратора)"
// @Param limit query int false "Лимит"
// @Param offset query int false "Смещение"
// @Success 200 {object} response.Response "Платежи"
// @Failure 401 {object} response.ErrorResponse "Нет сессии"
// @Router /payments [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := middlewarectx.ActorFrom(r.Context())
	limit, offset := request.Page(r)
	list, err := h.service.List(r.Context(), actor, r.URL.Query().Get("user_id"), limit, offset)
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"payments": list}))
}

// Get godoc
// @Summary Платёж
// @Tags Payments
// @Produce  json
// @Param id path string true "ID платежа"
// @Success 200 {object} response.Response "Платёж"
// @Failure 404 {object} response.ErrorResponse "Не найден или чужой"
// @Router /payments/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, _ := middlewarectx.ActorFrom(r.Context())
	p, err := h.service.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"payment": p}))
}

// Refund godoc
// @Summary Возврат платежа
// @Description Возврат через Stripe. Сумма не может превышать остаток к возврату.
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param id path string true "ID платежа"
// @Param request body RefundRequest false "Сумма"
// @Success 200 {object} response.Response "Возврат выполнен"
// @Failure 400 {object} response.ErrorResponse "Сумма больше остатка"
// @Failure 403 {object} response.ErrorResponse "Только администратор"
// @Failure 502 {object} response.ErrorResponse "Ошибка авторизации у провайдера"
// @Router /payments/{id}/refund [post]
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payments.refund"
	id := chi.URLParam(r, "id")
	actor, _ := middlewarectx.ActorFrom(r.Context())
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("user_id", actor.ID),
		slog.String("payment_id", id),
	)

	var req RefundRequest
	if err := request.DecodeJSON(r, &req, h.validate); err != nil && !errors.Is(err, request.ErrEmptyBody) {
		response.Invalid(w, r, err)
		return
	}
	p, err := h.service.Refund(r.Context(), id, req.Amount)
	if err != nil {
		log.Info("refund failed", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	log.Info("refund issued", slog.Int64("refunded_amount", p.RefundedAmount))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"payment": p}))
}

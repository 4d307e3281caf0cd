// Package billing реализует обработчики биллинга: статус подписки, оформление через Stripe,
// портал управления, ручная синхронизация и приём вебхуков.
package billing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/designhub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/designhub/internal/http/request"
	"github.com/magabrotheeeer/designhub/internal/http/response"
	"github.com/magabrotheeeer/designhub/internal/lib/apperr"
	"github.com/magabrotheeeer/designhub/internal/lib/sl"
	"github.com/magabrotheeeer/designhub/internal/models"
)

// SignatureHeader — заголовок подписи вебхука Stripe.
const SignatureHeader = "Stripe-Signature"

// maxWebhookBytes совпадает с лимитом тела, который рекомендует Stripe.
const maxWebhookBytes = 65536

// CheckoutRequest — план, на который оформляется подписка: имя или идентификатор пакета.
type CheckoutRequest struct {
	Plan string `json:"plan" validate:"required" example:"Pro"`
}

// Service описывает операции моста биллинга.
type Service interface {
	StartCheckout(ctx context.Context, userID, plan string) (string, error)
	OpenPortal(ctx context.Context, userID string) (string, error)
	Sync(ctx context.Context, userID string) (*models.Subscription, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// Subscriptions читает подписку пользователя.
type Subscriptions interface {
	Get(ctx context.Context, userID string) (*models.Subscription, error)
}

// Handler обслуживает /billing.
type Handler struct {
	log      *slog.Logger
	service  Service
	subs     Subscriptions
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, subs Subscriptions) *Handler {
	return &Handler{log: log, service: service, subs: subs, validate: validator.New()}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	actor, _ := middlewarectx.ActorFrom(r.Context())
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("user_id", actor.ID),
	)
}

// Subscription godoc
// @Summary Подписка текущего пользователя
// @Description Без подписки возвращает status inactive и пустую подписку.
// @Tags Billing
// @Produce  json
// @Success 200 {object} response.Response "Подписка"
// @Failure 401 {object} response.ErrorResponse "Нет сессии"
// @Router /billing/subscription [get]
func (h *Handler) Subscription(w http.ResponseWriter, r *http.Request) {
	actor, _ := middlewarectx.ActorFrom(r.Context())
	sub, err := h.subs.Get(r.Context(), actor.ID)
	if errors.Is(err, apperr.ErrNotFound) {
		render.JSON(w, r, response.StatusOKWithData(map[string]any{
			"status":       models.StatusInactive,
			"subscription": nil,
		}))
		return
	}
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"status":       sub.Status,
		"subscription": sub,
	}))
}

// Checkout godoc
// @Summary Оформить подписку
// @Description Создаёт сессию Stripe Checkout и возвращает её URL. Подписка переходит в pending до подтверждения оплаты.
// @Tags Billing
// @Accept  json
// @Produce  json
// @Param request body CheckoutRequest true "План"
// @Success 200 {object} response.Response "URL оформления"
// @Failure 404 {object} response.ErrorResponse "Пакет не найден"
// @Failure 500 {object} response.ErrorResponse "Биллинг не настроен"
// @Failure 502 {object} response.ErrorResponse "Ошибка авторизации у провайдера"
// @Router /billing/checkout [post]
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	actor, _ := middlewarectx.ActorFrom(r.Context())
	log := h.logger(r, "handlers.billing.checkout")

	var req CheckoutRequest
	if err := request.DecodeJSON(r, &req, h.validate); err != nil {
		response.Invalid(w, r, err)
		return
	}
	url, err := h.service.StartCheckout(r.Context(), actor.ID, req.Plan)
	if err != nil {
		log.Info("checkout failed", slog.String("plan", req.Plan), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	log.Info("checkout session created", slog.String("plan", req.Plan))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"url": url}))
}

// Portal godoc
// @Summary Портал управления подпиской
// @Tags Billing
// @Produce  json
// @Success 200 {object} response.Response "URL портала"
// @Failure 404 {object} response.ErrorResponse "Клиент Stripe не создан"
// @Router /billing/portal [post]
func (h *Handler) Portal(w http.ResponseWriter, r *http.Request) {
	actor, _ := middlewarectx.ActorFrom(r.Context())
	url, err := h.service.OpenPortal(r.Context(), actor.ID)
	if err != nil {
		h.logger(r, "handlers.billing.portal").Info("portal failed", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"url": url}))
}

// Sync godoc
// @Summary Синхронизировать подписку
// @Description Перечитывает подписку у Stripe и сохраняет её статус.
// @Tags Billing
// @Produce  json
// @Success 200 {object} response.Response "Подписка"
// @Router /billing/sync [post]
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	actor, _ := middlewarectx.ActorFrom(r.Context())
	sub, err := h.service.Sync(r.Context(), actor.ID)
	if err != nil {
		h.logger(r, "handlers.billing.sync").Info("sync failed", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"subscription": sub}))
}

// Webhook godoc
// @Summary Вебхук Stripe
// @Description Проверяет подпись Stripe-Signature и применяет событие к подпискам и платежам.
// @Tags Billing
// @Accept  json
// @Produce  json
// @Param Stripe-Signature header string true "Подпись Stripe"
// @Success 200 {object} response.Response "Событие принято"
// @Failure 400 {object} response.ErrorResponse "Неверная подпись"
// @Failure 500 {object} response.ErrorResponse "Ошибка обработки, Stripe повторит доставку"
// @Router /billing/webhook [post]
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	defer r.Body.Close()

	if err := h.service.HandleWebhook(r.Context(), payload, r.Header.Get(SignatureHeader)); err != nil {
		log.Warn("webhook not processed", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"received": true}))
}

// Package pages отдаёт JSON-модели страниц сайта, которые обслуживает route guard:
// кабинет, биллинг, новая заявка, оформление подписки и страницы входа.
//
// Доступ к страницам решает guard, обработчики только собирают данные.
package pages

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/designhub/internal/config"
	"github.com/magabrotheeeer/designhub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/designhub/internal/http/response"
	"github.com/magabrotheeeer/designhub/internal/lib/apperr"
	"github.com/magabrotheeeer/designhub/internal/lib/sl"
	"github.com/magabrotheeeer/designhub/internal/models"
)

const recentLimit = 5

// Profiles отдаёт профиль пользователя.
type Profiles interface {
	Profile(ctx context.Context, userID string) (*models.Identity, error)
}

// Subscriptions отдаёт подписку пользователя.
type Subscriptions interface {
	Get(ctx context.Context, userID string) (*models.Subscription, error)
}

// Requests отдаёт заявки.
type Requests interface {
	List(ctx context.Context, actor models.Actor, filter models.RequestFilter) ([]models.DesignRequest, error)
}

// Packages отдаёт тарифные пакеты.
type Packages interface {
	List(ctx context.Context, actor models.Actor) ([]models.Package, error)
}

// Payments отдаёт платежи.
type Payments interface {
	List(ctx context.Context, actor models.Actor, userID string, limit, offset int) ([]models.Payment, error)
}

// Deps источники данных страниц.
type Deps struct {
	Profiles      Profiles
	Subscriptions Subscriptions
	Requests      Requests
	Packages      Packages
	Payments      Payments
}

// Handler собирает модели страниц.
type Handler struct {
	log   *slog.Logger
	deps  Deps
	paths config.Guard
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, deps Deps, paths config.Guard) *Handler {
	return &Handler{log: log, deps: deps, paths: paths}
}

// Dashboard главная страница кабинета.
type Dashboard struct {
	User           *models.Identity       `json:"user"`
	Subscription   *models.Subscription   `json:"subscription"`
	RecentRequests []models.DesignRequest `json:"recent_requests"`
	Counts         map[string]int         `json:"counts"`
}

// BillingPage страница управления подпиской.
type BillingPage struct {
	Status       string               `json:"status"`
	Subscription *models.Subscription `json:"subscription"`
	Packages     []models.Package     `json:"packages"`
	Payments     []models.Payment     `json:"payments"`
}

// NewRequestPage форма новой заявки.
type NewRequestPage struct {
	Priorities   []string `json:"priorities"`
	Default      string   `json:"default_priority"`
	Subscription string   `json:"subscription_status"`
}

// CheckoutPage выбор плана перед оформлением.
type CheckoutPage struct {
	Plan     string           `json:"plan,omitempty"`
	Selected *models.Package  `json:"selected,omitempty"`
	Packages []models.Package `json:"packages"`
}

// AuthPage — страница входа или регистрации.
type AuthPage struct {
	Form        string `json:"form"`
	CallbackURL string `json:"callback_url"`
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.log.Error("failed to build page",
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		sl.Err(err),
	)
	response.Fail(w, r, err)
}

// subscription возвращает подписку или nil, если её нет.
func (h *Handler) subscription(ctx context.Context, userID string) (*models.Subscription, error) {
	sub, err := h.deps.Subscriptions.Get(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	return sub, err
}

// Dashboard godoc
// @Summary Кабинет
// @Tags Pages
// @Produce  json
// @Success 200 {object} response.Response "Модель страницы"
// @Router /dashboard [get]
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.pages.dashboard"
	actor, _ := middlewarectx.ActorFrom(r.Context())

	user, err := h.deps.Profiles.Profile(r.Context(), actor.ID)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	sub, err := h.subscription(r.Context(), actor.ID)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	all, err := h.deps.Requests.List(r.Context(), actor, models.RequestFilter{UserID: actor.ID})
	if err != nil {
		h.fail(w, r, op, err)
		return
	}

	counts := map[string]int{}
	for _, req := range all {
		counts[req.Status]++
	}
	recent := all
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}
	render.JSON(w, r, response.StatusOKWithData(Dashboard{
		User:           user,
		Subscription:   sub,
		RecentRequests: recent,
		Counts:         counts,
	}))
}

// Billing godoc
// @Summary Страница биллинга
// @Tags Pages
// @Produce  json
// @Success 200 {object} response.Response "Модель страницы"
// @Router /dashboard/billing [get]
func (h *Handler) Billing(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.pages.billing"
	actor, _ := middlewarectx.ActorFrom(r.Context())

	sub, err := h.subscription(r.Context(), actor.ID)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	pkgs, err := h.deps.Packages.List(r.Context(), models.Actor{})
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	payments, err := h.deps.Payments.List(r.Context(), actor, actor.ID, 20, 0)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}

	page := BillingPage{Status: models.StatusInactive, Subscription: sub, Packages: pkgs, Payments: payments}
	if sub != nil {
		page.Status = sub.Status
	}
	render.JSON(w, r, response.StatusOKWithData(page))
}

// NewRequest godoc
// @Summary Форма новой заявки
// @Description Доступна только с активной подпиской, иначе guard перенаправляет на биллинг.
// @Tags Pages
// @Produce  json
// @Success 200 {object} response.Response "Модель страницы"
// @Router /dashboard/requests/new [get]
func (h *Handler) NewRequest(w http.ResponseWriter, r *http.Request) {
	actor, _ := middlewarectx.ActorFrom(r.Context())
	render.JSON(w, r, response.StatusOKWithData(NewRequestPage{
		Priorities:   []string{models.PriorityLow, models.PriorityMedium, models.PriorityHigh},
		Default:      models.PriorityMedium,
		Subscription: actor.SubscriptionStatus,
	}))
}

// Checkout godoc
// @Summary Страница оформления подписки
// @Tags Pages
// @Produce  json
// @Param plan query string false "Имя или ID пакета"
// @Success 200 {object} response.Response "Модель страницы"
// @Router /checkout [get]
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.pages.checkout"
	plan := r.URL.Query().Get("plan")
	pkgs, err := h.deps.Packages.List(r.Context(), models.Actor{})
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	page := CheckoutPage{Plan: plan, Packages: pkgs}
	for i := range pkgs {
		if plan != "" && (pkgs[i].ID == plan || pkgs[i].Name == plan) {
			page.Selected = &pkgs[i]
			break
		}
	}
	render.JSON(w, r, response.StatusOKWithData(page))
}

// SignIn godoc
// @Summary Страница входа
// @Tags Pages
// @Produce  json
// @Param callbackUrl query string false "Куда вернуться после входа"
// @Success 200 {object} response.Response "Модель страницы"
// @Router /signin [get]
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	h.authPage(w, r, "signin")
}

// SignUp godoc
// @Summary Страница регистрации
// @Tags Pages
// @Produce  json
// @Success 200 {object} response.Response "Модель страницы"
// @Router /signup [get]
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	h.authPage(w, r, "signup")
}

func (h *Handler) authPage(w http.ResponseWriter, r *http.Request, form string) {
	render.JSON(w, r, response.StatusOKWithData(AuthPage{
		Form:        form,
		CallbackURL: safeCallback(r.URL.Query().Get("callbackUrl"), h.paths.DashboardPath),
	}))
}

// SubscribeTest godoc
// @Summary Тестовая страница подписки
// @Description Показывает данные сессии, которые видит guard.
// @Tags Pages
// @Produce  json
// @Success 200 {object} response.Response "Модель страницы"
// @Router /subscribe/test [get]
func (h *Handler) SubscribeTest(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"session": middlewarectx.ClaimsFrom(r.Context()),
	}))
}

// CheckSubscription godoc
// @Summary Проверка подписки
// @Description Перенаправляет в кабинет при активной подписке, иначе на страницу биллинга.
// @Tags Billing
// @Success 307 "Redirect"
// @Router /subscription/check [get]
func (h *Handler) CheckSubscription(w http.ResponseWriter, r *http.Request) {
	actor, ok := middlewarectx.ActorFrom(r.Context())
	target := h.paths.BillingPath
	switch {
	case !ok:
		target = h.paths.SignInPath + "?callbackUrl=" + url.QueryEscape(h.paths.DashboardPath)
	case actor.SubscriptionStatus == models.StatusActive:
		target = h.paths.DashboardPath
	}
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

// safeCallback пропускает только относительные пути этого сайта.
func safeCallback(raw, fallback string) string {
	if raw == "" {
		return fallback
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" || len(u.Path) == 0 || u.Path[0] != '/' {
		return fallback
	}
	return u.String()
}

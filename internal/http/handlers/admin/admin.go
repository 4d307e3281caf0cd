// Package admin реализует обработчики управления клиентами для администратора.
package admin

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
	"github.com/magabrotheeeer/designhub/internal/services/users"
)

// UserPatch — изменяемые администратором поля пользователя. Отсутствующее поле не меняется.
type UserPatch struct {
	Name               *string `json:"name,omitempty" validate:"omitempty,max=100"`
	Role               *string `json:"role,omitempty" validate:"omitempty,oneof=USER ADMIN" example:"ADMIN"`
	SubscriptionStatus *string `json:"subscription_status,omitempty" validate:"omitempty,oneof=active pending cancelled refunded partially_refunded" example:"active"`
}

// GrantRequest — выдача подписки пользователю.
type GrantRequest struct {
	UserID    string `json:"user_id" validate:"required"`
	PackageID string `json:"package_id" validate:"required"`
	Status    string `json:"status,omitempty" validate:"omitempty,oneof=active pending cancelled refunded partially_refunded"`
}

// Users описывает операции с пользователями.
type Users interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	Get(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, id string, patch users.Patch) (*models.User, error)
}

// Subscriptions выдаёт подписки.
type Subscriptions interface {
	Grant(ctx context.Context, userID, packageID, status string) (*models.Subscription, error)
}

// Handler обслуживает /admin.
type Handler struct {
	log      *slog.Logger
	users    Users
	subs     Subscriptions
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, users Users, subs Subscriptions) *Handler {
	return &Handler{log: log, users: users, subs: subs, validate: validator.New()}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	actor, _ := middlewarectx.ActorFrom(r.Context())
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("admin_id", actor.ID),
	)
}

// ListUsers godoc
// @Summary Клиенты
// @Tags Admin
// @Produce  json
// @Param q query string false "Поиск по имени или email"
// @Param role query string false "Роль"
// @Param limit query int false "Лимит"
// @Param offset query int false "Смещение"
// @Success 200 {object} response.Response "Пользователи"
// @Failure 403 {object} response.ErrorResponse "Только администратор"
// @Router /admin/users [get]
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := request.Page(r)
	list, err := h.users.List(r.Context(), models.UserFilter{
		Query:  r.URL.Query().Get("q"),
		Role:   r.URL.Query().Get("role"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"users": list}))
}

// GetUser godoc
// @Summary Клиент
// @Tags Admin
// @Produce  json
// @Param id path string true "ID пользователя"
// @Success 200 {object} response.Response "Пользователь"
// @Failure 404 {object} response.ErrorResponse "Не найден"
// @Router /admin/users/{id} [get]
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"user": u}))
}

// UpdateUser godoc
// @Summary Изменить клиента
// @Description Меняет имя, роль и статус подписки. Смена роли сбрасывает кэш сессии пользователя.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param id path string true "ID пользователя"
// @Param request body UserPatch true "Изменения"
// @Success 200 {object} response.Response "Обновлён"
// @Failure 400 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 404 {object} response.ErrorResponse "Не найден"
// @Router /admin/users/{id} [patch]
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	log := h.logger(r, "handlers.admin.update_user").With(slog.String("user_id", id))

	var req UserPatch
	if err := request.DecodeJSON(r, &req, h.validate); err != nil {
		response.Invalid(w, r, err)
		return
	}
	u, err := h.users.Update(r.Context(), id, users.Patch{
		Name:               req.Name,
		Role:               req.Role,
		SubscriptionStatus: req.SubscriptionStatus,
	})
	if err != nil {
		log.Info("failed to update user", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	log.Info("user updated by admin")
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"user": u}))
}

// GrantSubscription godoc
// @Summary Выдать подписку
// @Description Создаёт или обновляет подписку пользователя на пакет без оплаты.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param request body GrantRequest true "Подписка"
// @Success 200 {object} response.Response "Подписка"
// @Failure 400 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 404 {object} response.ErrorResponse "Пакет или пользователь не найден"
// @Router /admin/subscriptions [post]
func (h *Handler) GrantSubscription(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.grant_subscription")

	var req GrantRequest
	if err := request.DecodeJSON(r, &req, h.validate); err != nil {
		response.Invalid(w, r, err)
		return
	}
	sub, err := h.subs.Grant(r.Context(), req.UserID, req.PackageID, req.Status)
	if err != nil {
		log.Info("failed to grant subscription", slog.String("user_id", req.UserID), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	log.Info("subscription granted", slog.String("user_id", sub.UserID), slog.String("status", sub.Status))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"subscription": sub}))
}

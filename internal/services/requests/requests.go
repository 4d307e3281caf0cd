// Package requests содержит бизнес-логику заявок на дизайн: создание, редактирование,
// переходы статусов и права доступа.
package requests

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/designhub/internal/lib/apperr"
	"github.com/magabrotheeeer/designhub/internal/lib/sl"
	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/storage"
)

// Repository определяет методы хранилища заявок.
type Repository interface {
	CreateRequest(ctx context.Context, r models.DesignRequest) (*models.DesignRequest, error)
	GetRequest(ctx context.Context, id string) (*models.DesignRequest, error)
	ListRequests(ctx context.Context, filter models.RequestFilter) ([]models.DesignRequest, error)
	UpdateRequest(ctx context.Context, r models.DesignRequest) (*models.DesignRequest, error)
	// UpdateRequestStatus меняет статус, только если текущий статус равен from.
	UpdateRequestStatus(ctx context.Context, id, from, to string, completedAt *time.Time) (*models.DesignRequest, error)
	DeleteRequest(ctx context.Context, id string) error
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// EventPublisher публикует доменные события.
type EventPublisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// Input — редактируемые поля заявки.
type Input struct {
	Title       string
	Description string
	Category    string
	Priority    string
}

// Service реализует операции над заявками.
type Service struct {
	repo      Repository
	publisher EventPublisher
	log       *slog.Logger
	now       func() time.Time
}

// NewService создает новый экземпляр Service.
func NewService(repo Repository, publisher EventPublisher, log *slog.Logger) *Service {
	return &Service{repo: repo, publisher: publisher, log: log, now: time.Now}
}

// Create создаёт заявку в статусе PENDING. Нужна активная подписка.
func (s *Service) Create(ctx context.Context, actor models.Actor, in Input) (*models.DesignRequest, error) {
	const op = "services.requests.Create"
	if actor.SubscriptionStatus != models.StatusActive {
		return nil, apperr.Forbidden("active subscription required")
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	created, err := s.repo.CreateRequest(ctx, models.DesignRequest{
		UserID:      actor.ID,
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Priority:    in.Priority,
	})
	if err != nil {
		return nil, s.storageErr(op, err)
	}
	s.log.Info("design request created",
		slog.String("op", op),
		slog.String("user_id", actor.ID),
		slog.String("request_id", created.ID),
	)
	return created, nil
}

// Get возвращает заявку владельцу или администратору.
func (s *Service) Get(ctx context.Context, actor models.Actor, id string) (*models.DesignRequest, error) {
	const op = "services.requests.Get"
	r, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return nil, s.storageErr(op, err)
	}
	if !actor.CanAccess(r.UserID) {
		return nil, apperr.NotFound("request not found")
	}
	return r, nil
}

// List возвращает заявки. Обычный пользователь видит только свои.
func (s *Service) List(ctx context.Context, actor models.Actor, filter models.RequestFilter) ([]models.DesignRequest, error) {
	const op = "services.requests.List"
	if !actor.IsAdmin() {
		filter.UserID = actor.ID
	}
	list, err := s.repo.ListRequests(ctx, filter)
	if err != nil {
		return nil, s.storageErr(op, err)
	}
	return list, nil
}

// Update меняет поля заявки. Владелец может редактировать заявку только в PENDING
// и REVISIONS_REQUESTED, администратор в любом нефинальном статусе.
func (s *Service) Update(ctx context.Context, actor models.Actor, id string, in Input) (*models.DesignRequest, error) {
	const op = "services.requests.Update"
	r, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if isTerminal(r.Status) {
		return nil, apperr.Validation("request is closed")
	}
	if !actor.IsAdmin() && r.Status != models.RequestPending && r.Status != models.RequestRevisionsRequested {
		return nil, apperr.Forbidden("request cannot be edited in its current status")
	}
	if in.Title != "" {
		r.Title = in.Title
	}
	if in.Description != "" {
		r.Description = in.Description
	}
	if in.Category != "" {
		r.Category = in.Category
	}
	if in.Priority != "" {
		r.Priority = in.Priority
	}
	updated, err := s.repo.UpdateRequest(ctx, *r)
	if err != nil {
		return nil, s.storageErr(op, err)
	}
	return updated, nil
}

// ChangeStatus переводит заявку в статус to.
//
// Администратор выполняет любой допустимый переход. Владелец может только отменить
// заявку или запросить правки.
func (s *Service) ChangeStatus(ctx context.Context, actor models.Actor, id, to string) (*models.DesignRequest, error) {
	const op = "services.requests.ChangeStatus"
	log := s.log.With(slog.String("op", op), slog.String("request_id", id), slog.String("user_id", actor.ID))

	r, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && to != models.RequestCanceled && to != models.RequestRevisionsRequested {
		return nil, apperr.Forbidden("only administrators can set this status")
	}
	if !models.CanTransition(r.Status, to) {
		return nil, apperr.Validation("invalid status transition from " + r.Status + " to " + to)
	}

	var completedAt *time.Time
	if to == models.RequestCompleted {
		t := s.now().UTC()
		completedAt = &t
	}
	updated, err := s.repo.UpdateRequestStatus(ctx, id, r.Status, to, completedAt)
	if errors.Is(err, storage.ErrConflict) {
		return nil, apperr.Conflict("request status was changed concurrently")
	}
	if err != nil {
		return nil, s.storageErr(op, err)
	}
	log.Info("request status changed", slog.String("from", r.Status), slog.String("to", to))

	s.publishStatusChange(ctx, log, updated, r.Status)
	return updated, nil
}

// Delete удаляет заявку. Владелец может удалить только заявку в PENDING или CANCELED.
func (s *Service) Delete(ctx context.Context, actor models.Actor, id string) error {
	const op = "services.requests.Delete"
	r, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && r.Status != models.RequestPending && r.Status != models.RequestCanceled {
		return apperr.Forbidden("request cannot be deleted in its current status")
	}
	if err := s.repo.DeleteRequest(ctx, id); err != nil {
		return s.storageErr(op, err)
	}
	return nil
}

func (s *Service) publishStatusChange(ctx context.Context, log *slog.Logger, r *models.DesignRequest, from string) {
	event := models.Event{
		Type:   models.EventRequestStatusChanged,
		UserID: r.UserID,
		Attributes: map[string]string{
			"request_id": r.ID,
			"title":      r.Title,
			"from":       from,
			"status":     r.Status,
		},
	}
	if user, err := s.repo.GetUser(ctx, r.UserID); err == nil {
		event.Email = user.Email
		event.Name = user.Name
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Warn("failed to publish event", sl.Err(err))
	}
}

func (s *Service) storageErr(op string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("request not found")
	}
	s.log.Error("request storage failure", slog.String("op", op), sl.Err(err))
	return apperr.Upstream(err)
}

func isTerminal(status string) bool {
	return status == models.RequestCompleted || status == models.RequestCanceled
}

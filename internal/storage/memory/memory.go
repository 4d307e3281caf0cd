// Package memory реализует хранилище в памяти процесса с тем же набором методов,
// что и repository. Используется в тестах и при storage.driver: memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/storage"
)

// Storage хранит все сущности в map под одним мьютексом.
type Storage struct {
	mu            sync.RWMutex
	now           func() time.Time
	users         map[string]*models.User
	subscriptions map[string]*models.Subscription // по user_id
	packages      map[string]*models.Package
	requests      map[string]*models.DesignRequest
	files         map[string]*models.File
	payments      map[string]*models.Payment
	services      map[string]*models.Service
	caseStudies   map[string]*models.CaseStudy
	testimonials  map[string]*models.Testimonial
}

// New создаёт пустое хранилище.
func New() *Storage {
	return &Storage{
		now:           time.Now,
		users:         make(map[string]*models.User),
		subscriptions: make(map[string]*models.Subscription),
		packages:      make(map[string]*models.Package),
		requests:      make(map[string]*models.DesignRequest),
		files:         make(map[string]*models.File),
		payments:      make(map[string]*models.Payment),
		services:      make(map[string]*models.Service),
		caseStudies:   make(map[string]*models.CaseStudy),
		testimonials:  make(map[string]*models.Testimonial),
	}
}

// Close ничего не делает и нужен для единообразия с repository.
func (s *Storage) Close() error { return nil }

// Ping всегда успешен, пока контекст не отменён.
func (s *Storage) Ping(ctx context.Context) error {
	return ctxErr(ctx, "storage.memory.Ping")
}

func ctxErr(ctx context.Context, op string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
		return nil
	}
}

func notFound(op string) error {
	return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
}

func newID() string {
	return uuid.NewString()
}

func paginate[T any](items []T, limit, offset int) []T {
	p := storage.Page{Limit: limit, Offset: offset}.Normalize()
	if p.Offset >= len(items) {
		return make([]T, 0)
	}
	end := p.Offset + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[p.Offset:end]
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Users

func (s *Storage) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	const op = "storage.memory.CreateUser"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	email := normalizeEmail(user.Email)
	for _, u := range s.users {
		if u.Email == email {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}
	}
	now := s.now()
	u := user
	u.ID = newID()
	u.Email = email
	u.SubscriptionStatus = models.StatusInactive
	u.CreatedAt, u.UpdatedAt = now, now
	s.users[u.ID] = &u
	out := u
	return &out, nil
}

func (s *Storage) GetUser(ctx context.Context, id string) (*models.User, error) {
	const op = "storage.memory.GetUser"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, notFound(op)
	}
	out := *u
	return &out, nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.memory.GetUserByEmail"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = normalizeEmail(email)
	for _, u := range s.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, notFound(op)
}

func (s *Storage) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	const op = "storage.memory.GetUserByStripeCustomerID"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if customerID != "" && u.StripeCustomerID == customerID {
			out := *u
			return &out, nil
		}
	}
	return nil, notFound(op)
}

func (s *Storage) ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	const op = "storage.memory.ListUsers"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := strings.ToLower(filter.Query)
	result := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(u.Name), q) && !strings.Contains(u.Email, q) {
			continue
		}
		result = append(result, *u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return paginate(result, filter.Limit, filter.Offset), nil
}

func (s *Storage) updateUser(ctx context.Context, op, id string, fn func(u *models.User)) error {
	if err := ctxErr(ctx, op); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return notFound(op)
	}
	fn(u)
	u.UpdatedAt = s.now()
	return nil
}

func (s *Storage) UpdateUserName(ctx context.Context, id, name string) error {
	return s.updateUser(ctx, "storage.memory.UpdateUserName", id, func(u *models.User) { u.Name = name })
}

func (s *Storage) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return s.updateUser(ctx, "storage.memory.UpdatePasswordHash", id, func(u *models.User) { u.PasswordHash = hash })
}

func (s *Storage) UpdateOnboarding(ctx context.Context, id string, step int, completed bool) error {
	return s.updateUser(ctx, "storage.memory.UpdateOnboarding", id, func(u *models.User) {
		u.OnboardingStep = step
		u.OnboardingCompleted = completed
	})
}

func (s *Storage) UpdateUserRole(ctx context.Context, id, role string) error {
	return s.updateUser(ctx, "storage.memory.UpdateUserRole", id, func(u *models.User) { u.Role = role })
}

func (s *Storage) ClaimStripeCustomerID(ctx context.Context, id, customerID string) (string, error) {
	const op = "storage.memory.ClaimStripeCustomerID"
	if err := ctxErr(ctx, op); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return "", notFound(op)
	}
	if u.StripeCustomerID != "" {
		return u.StripeCustomerID, nil
	}
	for _, other := range s.users {
		if other.StripeCustomerID == customerID {
			return "", fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}
	}
	u.StripeCustomerID = customerID
	u.UpdatedAt = s.now()
	return customerID, nil
}

func (s *Storage) SessionSnapshot(ctx context.Context, userID string) (*models.SessionSnapshot, error) {
	const op = "storage.memory.SessionSnapshot"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, notFound(op)
	}
	status := models.StatusInactive
	if sub, ok := s.subscriptions[userID]; ok {
		status = sub.Status
	}
	return &models.SessionSnapshot{
		Role:                u.Role,
		SubscriptionStatus:  status,
		OnboardingStep:      u.OnboardingStep,
		OnboardingCompleted: u.OnboardingCompleted,
	}, nil
}

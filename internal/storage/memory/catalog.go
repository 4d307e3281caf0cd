package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/storage"
)

// Packages

func clonePackage(p *models.Package) *models.Package {
	out := *p
	out.Features = append([]string(nil), p.Features...)
	return &out
}

func (s *Storage) packageNameTakenLocked(name, exceptID string) bool {
	for _, p := range s.packages {
		if p.ID != exceptID && strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}

func (s *Storage) CreatePackage(ctx context.Context, p models.Package) (*models.Package, error) {
	const op = "storage.memory.CreatePackage"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.packageNameTakenLocked(p.Name, "") {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}
	now := s.now()
	created := *clonePackage(&p)
	created.ID = newID()
	created.CreatedAt, created.UpdatedAt = now, now
	s.packages[created.ID] = &created
	return clonePackage(&created), nil
}

func (s *Storage) UpdatePackage(ctx context.Context, p models.Package) (*models.Package, error) {
	const op = "storage.memory.UpdatePackage"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.packages[p.ID]
	if !ok {
		return nil, notFound(op)
	}
	if s.packageNameTakenLocked(p.Name, p.ID) {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}
	updated := *clonePackage(&p)
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = s.now()
	s.packages[p.ID] = &updated
	return clonePackage(&updated), nil
}

func (s *Storage) ArchivePackage(ctx context.Context, id string) error {
	const op = "storage.memory.ArchivePackage"
	if err := ctxErr(ctx, op); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.packages[id]
	if !ok {
		return notFound(op)
	}
	p.Active = false
	p.UpdatedAt = s.now()
	return nil
}

func (s *Storage) GetPackage(ctx context.Context, id string) (*models.Package, error) {
	const op = "storage.memory.GetPackage"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.packages[id]
	if !ok {
		return nil, notFound(op)
	}
	return clonePackage(p), nil
}

func (s *Storage) GetPackageByName(ctx context.Context, name string) (*models.Package, error) {
	const op = "storage.memory.GetPackageByName"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.packages {
		if strings.EqualFold(p.Name, name) {
			return clonePackage(p), nil
		}
	}
	return nil, notFound(op)
}

func (s *Storage) ListPackages(ctx context.Context, onlyActive bool) ([]models.Package, error) {
	const op = "storage.memory.ListPackages"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]models.Package, 0, len(s.packages))
	for _, p := range s.packages {
		if onlyActive && !p.Active {
			continue
		}
		result = append(result, *clonePackage(p))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Price != result[j].Price {
			return result[i].Price < result[j].Price
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// Design requests

func (s *Storage) CreateRequest(ctx context.Context, r models.DesignRequest) (*models.DesignRequest, error) {
	const op = "storage.memory.CreateRequest"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[r.UserID]; !ok {
		return nil, notFound(op)
	}
	now := s.now()
	created := r
	created.ID = newID()
	created.Status = models.RequestPending
	created.CompletedAt = nil
	created.CreatedAt, created.UpdatedAt = now, now
	s.requests[created.ID] = &created
	out := created
	return &out, nil
}

func (s *Storage) GetRequest(ctx context.Context, id string) (*models.DesignRequest, error) {
	const op = "storage.memory.GetRequest"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, notFound(op)
	}
	out := *r
	return &out, nil
}

func (s *Storage) ListRequests(ctx context.Context, filter models.RequestFilter) ([]models.DesignRequest, error) {
	const op = "storage.memory.ListRequests"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]models.DesignRequest, 0)
	for _, r := range s.requests {
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		result = append(result, *r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return paginate(result, filter.Limit, filter.Offset), nil
}

func (s *Storage) UpdateRequest(ctx context.Context, r models.DesignRequest) (*models.DesignRequest, error) {
	const op = "storage.memory.UpdateRequest"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.requests[r.ID]
	if !ok {
		return nil, notFound(op)
	}
	existing.Title = r.Title
	existing.Description = r.Description
	existing.Category = r.Category
	existing.Priority = r.Priority
	existing.UpdatedAt = s.now()
	out := *existing
	return &out, nil
}

func (s *Storage) UpdateRequestStatus(ctx context.Context, id, from, to string, completedAt *time.Time) (*models.DesignRequest, error) {
	const op = "storage.memory.UpdateRequestStatus"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok || r.Status != from {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrConflict)
	}
	r.Status = to
	r.CompletedAt = completedAt
	r.UpdatedAt = s.now()
	out := *r
	return &out, nil
}

func (s *Storage) DeleteRequest(ctx context.Context, id string) error {
	const op = "storage.memory.DeleteRequest"
	if err := ctxErr(ctx, op); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[id]; !ok {
		return notFound(op)
	}
	delete(s.requests, id)
	for _, f := range s.files {
		if f.DesignRequestID == id {
			f.DesignRequestID = ""
		}
	}
	return nil
}

// Files

func (s *Storage) CreateFile(ctx context.Context, f models.File) (*models.File, error) {
	const op = "storage.memory.CreateFile"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.files {
		if existing.Key == f.Key {
			out := *existing
			return &out, nil
		}
	}
	if _, ok := s.users[f.UserID]; !ok {
		return nil, notFound(op)
	}
	if f.DesignRequestID != "" {
		if _, ok := s.requests[f.DesignRequestID]; !ok {
			return nil, notFound(op)
		}
	}
	created := f
	created.ID = newID()
	created.CreatedAt = s.now()
	s.files[created.ID] = &created
	out := created
	return &out, nil
}

func (s *Storage) GetFile(ctx context.Context, id string) (*models.File, error) {
	const op = "storage.memory.GetFile"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[id]
	if !ok {
		return nil, notFound(op)
	}
	out := *f
	return &out, nil
}

func (s *Storage) ListFiles(ctx context.Context, userID, requestID string) ([]models.File, error) {
	const op = "storage.memory.ListFiles"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]models.File, 0)
	for _, f := range s.files {
		if userID != "" && f.UserID != userID {
			continue
		}
		if requestID != "" && f.DesignRequestID != requestID {
			continue
		}
		result = append(result, *f)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (s *Storage) DeleteFile(ctx context.Context, id string) error {
	const op = "storage.memory.DeleteFile"
	if err := ctxErr(ctx, op); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[id]; !ok {
		return notFound(op)
	}
	delete(s.files, id)
	return nil
}

package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/storage"
)

func (s *Storage) CreateService(ctx context.Context, v models.Service) (*models.Service, error) {
	const op = "storage.memory.CreateService"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	created := v
	created.ID = newID()
	created.CreatedAt, created.UpdatedAt = now, now
	s.services[created.ID] = &created
	out := created
	return &out, nil
}

func (s *Storage) UpdateService(ctx context.Context, v models.Service) (*models.Service, error) {
	const op = "storage.memory.UpdateService"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.services[v.ID]
	if !ok {
		return nil, notFound(op)
	}
	updated := v
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = s.now()
	s.services[v.ID] = &updated
	out := updated
	return &out, nil
}

func (s *Storage) GetService(ctx context.Context, id string) (*models.Service, error) {
	const op = "storage.memory.GetService"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.services[id]
	if !ok {
		return nil, notFound(op)
	}
	out := *v
	return &out, nil
}

func (s *Storage) ListServices(ctx context.Context) ([]models.Service, error) {
	const op = "storage.memory.ListServices"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]models.Service, 0, len(s.services))
	for _, v := range s.services {
		result = append(result, *v)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].SortOrder != result[j].SortOrder {
			return result[i].SortOrder < result[j].SortOrder
		}
		return result[i].Title < result[j].Title
	})
	return result, nil
}

func (s *Storage) DeleteService(ctx context.Context, id string) error {
	const op = "storage.memory.DeleteService"
	if err := ctxErr(ctx, op); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.services[id]; !ok {
		return notFound(op)
	}
	delete(s.services, id)
	return nil
}

func (s *Storage) slugTakenLocked(slug, exceptID string) bool {
	for _, cs := range s.caseStudies {
		if cs.ID != exceptID && cs.Slug == slug {
			return true
		}
	}
	return false
}

func (s *Storage) CreateCaseStudy(ctx context.Context, v models.CaseStudy) (*models.CaseStudy, error) {
	const op = "storage.memory.CreateCaseStudy"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slugTakenLocked(v.Slug, "") {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}
	if _, ok := s.users[v.AuthorID]; !ok {
		return nil, notFound(op)
	}
	now := s.now()
	created := v
	created.ID = newID()
	created.CreatedAt, created.UpdatedAt = now, now
	s.caseStudies[created.ID] = &created
	out := created
	return &out, nil
}

func (s *Storage) UpdateCaseStudy(ctx context.Context, v models.CaseStudy) (*models.CaseStudy, error) {
	const op = "storage.memory.UpdateCaseStudy"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.caseStudies[v.ID]
	if !ok {
		return nil, notFound(op)
	}
	if s.slugTakenLocked(v.Slug, v.ID) {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}
	updated := v
	updated.AuthorID = existing.AuthorID
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = s.now()
	s.caseStudies[v.ID] = &updated
	out := updated
	return &out, nil
}

func (s *Storage) GetCaseStudy(ctx context.Context, id string) (*models.CaseStudy, error) {
	const op = "storage.memory.GetCaseStudy"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.caseStudies[id]
	if !ok {
		return nil, notFound(op)
	}
	out := *v
	return &out, nil
}

func (s *Storage) GetCaseStudyBySlug(ctx context.Context, slug string) (*models.CaseStudy, error) {
	const op = "storage.memory.GetCaseStudyBySlug"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.caseStudies {
		if v.Slug == slug {
			out := *v
			return &out, nil
		}
	}
	return nil, notFound(op)
}

func (s *Storage) ListCaseStudies(ctx context.Context, onlyPublished bool) ([]models.CaseStudy, error) {
	const op = "storage.memory.ListCaseStudies"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]models.CaseStudy, 0, len(s.caseStudies))
	for _, v := range s.caseStudies {
		if onlyPublished && !v.Published {
			continue
		}
		result = append(result, *v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (s *Storage) DeleteCaseStudy(ctx context.Context, id string) error {
	const op = "storage.memory.DeleteCaseStudy"
	if err := ctxErr(ctx, op); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.caseStudies[id]; !ok {
		return notFound(op)
	}
	delete(s.caseStudies, id)
	return nil
}

func (s *Storage) CreateTestimonial(ctx context.Context, v models.Testimonial) (*models.Testimonial, error) {
	const op = "storage.memory.CreateTestimonial"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	if v.Rating < 1 || v.Rating > 5 {
		return nil, fmt.Errorf("%s: rating %d out of range", op, v.Rating)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	created := v
	created.ID = newID()
	created.CreatedAt, created.UpdatedAt = now, now
	s.testimonials[created.ID] = &created
	out := created
	return &out, nil
}

func (s *Storage) UpdateTestimonial(ctx context.Context, v models.Testimonial) (*models.Testimonial, error) {
	const op = "storage.memory.UpdateTestimonial"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	if v.Rating < 1 || v.Rating > 5 {
		return nil, fmt.Errorf("%s: rating %d out of range", op, v.Rating)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.testimonials[v.ID]
	if !ok {
		return nil, notFound(op)
	}
	updated := v
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = s.now()
	s.testimonials[v.ID] = &updated
	out := updated
	return &out, nil
}

func (s *Storage) GetTestimonial(ctx context.Context, id string) (*models.Testimonial, error) {
	const op = "storage.memory.GetTestimonial"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.testimonials[id]
	if !ok {
		return nil, notFound(op)
	}
	out := *v
	return &out, nil
}

func (s *Storage) ListTestimonials(ctx context.Context) ([]models.Testimonial, error) {
	const op = "storage.memory.ListTestimonials"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]models.Testimonial, 0, len(s.testimonials))
	for _, v := range s.testimonials {
		result = append(result, *v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (s *Storage) DeleteTestimonial(ctx context.Context, id string) error {
	const op = "storage.memory.DeleteTestimonial"
	if err := ctxErr(ctx, op); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.testimonials[id]; !ok {
		return notFound(op)
	}
	delete(s.testimonials, id)
	return nil
}

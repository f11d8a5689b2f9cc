package template

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/cliniq/emr/internal/domain/canvas"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, t *Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return s.repo.Create(ctx, t)
}

// SaveCanvas persists a live canvas as a named template. Highlight state is
// transient and stripped; saved components stay editable.
func (s *Service) SaveCanvas(ctx context.Context, name, specialty, doctorID string, comps []*canvas.Component) (*Template, error) {
	saved := make([]*canvas.Component, 0, len(comps))
	for _, c := range comps {
		cp := *c
		cp.IsHighlighted = false
		saved = append(saved, &cp)
	}
	t := &Template{
		Name:       name,
		Specialty:  specialty,
		DoctorID:   doctorID,
		Components: saved,
	}
	if err := s.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Template, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, t *Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return s.repo.Update(ctx, t)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, specialty string, limit, offset int) ([]*Template, int, error) {
	if specialty != "" {
		return s.repo.ListBySpecialty(ctx, specialty, limit, offset)
	}
	return s.repo.List(ctx, limit, offset)
}

// Instantiate returns fresh copies of a template's components, each with a
// new id, ready to append to a workspace canvas.
func (s *Service) Instantiate(ctx context.Context, id uuid.UUID) ([]*canvas.Component, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("template not found: %w", err)
	}
	out := make([]*canvas.Component, 0, len(t.Components))
	for _, c := range t.Components {
		cp := *c
		cp.ID = uuid.New().String()
		cp.IsEditable = true
		cp.IsHighlighted = false
		out = append(out, &cp)
	}
	return out, nil
}

package template

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryRepo is a thread-safe in-memory Repository. It is the default store
// when no database is configured and the fixture store in tests.
type memoryRepo struct {
	mu        sync.RWMutex
	templates map[uuid.UUID]*Template
	order     []uuid.UUID
}

// NewMemoryRepo creates an empty in-memory repository.
func NewMemoryRepo() Repository {
	return &memoryRepo{templates: make(map[uuid.UUID]*Template)}
}

func (r *memoryRepo) Create(_ context.Context, t *Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.ID = uuid.New()
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	cp := *t
	r.templates[t.ID] = &cp
	r.order = append(r.order, t.ID)
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[id]
	if !ok {
		return nil, fmt.Errorf("template %s not found", id)
	}
	cp := *t
	return &cp, nil
}

func (r *memoryRepo) Update(_ context.Context, t *Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.templates[t.ID]
	if !ok {
		return fmt.Errorf("template %s not found", t.ID)
	}
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = time.Now().UTC()
	cp := *t
	r.templates[t.ID] = &cp
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.templates[id]; !ok {
		return fmt.Errorf("template %s not found", id)
	}
	delete(r.templates, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *memoryRepo) List(_ context.Context, limit, offset int) ([]*Template, int, error) {
	return r.list("", limit, offset)
}

func (r *memoryRepo) ListBySpecialty(_ context.Context, specialty string, limit, offset int) ([]*Template, int, error) {
	return r.list(specialty, limit, offset)
}

func (r *memoryRepo) list(specialty string, limit, offset int) ([]*Template, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var filtered []*Template
	for _, id := range r.order {
		t := r.templates[id]
		if specialty == "" || strings.EqualFold(t.Specialty, specialty) {
			cp := *t
			filtered = append(filtered, &cp)
		}
	}
	total := len(filtered)
	if offset >= total {
		return []*Template{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return filtered[offset:end], total, nil
}

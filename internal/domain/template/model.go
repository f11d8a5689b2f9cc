// Package template implements saved canvas templates: a doctor can persist a
// built canvas under a name and reopen later workspaces from it instead of
// reseeding from scratch.
package template

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cliniq/emr/internal/domain/canvas"
)

// Template is one saved canvas layout.
type Template struct {
	ID         uuid.UUID           `json:"id"`
	Name       string              `json:"name"`
	Specialty  string              `json:"specialty"`
	DoctorID   string              `json:"doctorId,omitempty"`
	Components []*canvas.Component `json:"components"`
	CreatedAt  time.Time           `json:"createdAt"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}

// Validate checks the invariants required before persisting.
func (t *Template) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("name is required")
	}
	if t.Specialty == "" {
		return fmt.Errorf("specialty is required")
	}
	if len(t.Components) == 0 {
		return fmt.Errorf("at least one component is required")
	}
	for _, c := range t.Components {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("component %q: %w", c.Title, err)
		}
	}
	return nil
}

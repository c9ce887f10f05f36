package clinic

import (
	"context"

	"github.com/google/uuid"

	"github.com/therapynet/clinic-server/internal/platform/auth"
)

// Repository defines the persistence interface for clinics.
//
// Read methods take the caller's effective clinic filter; a clinic
// outside the filter reads as not found.
type Repository interface {
	Create(ctx context.Context, c *Clinic) error
	GetByID(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Clinic, error)
	GetBySlug(ctx context.Context, slug string, scope auth.ClinicFilter) (*Clinic, error)
	Update(ctx context.Context, c *Clinic) error
	List(ctx context.Context, scope auth.ClinicFilter, limit, offset int) ([]*Clinic, int, error)
}

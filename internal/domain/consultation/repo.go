package consultation

import (
	"context"

	"github.com/google/uuid"

	"github.com/therapynet/clinic-server/internal/platform/auth"
)

// Repository defines the persistence interface for consultations. Reads
// take the caller's effective clinic filter; rows outside the filter
// read as not found.
type Repository interface {
	Create(ctx context.Context, cons *Consultation) error
	GetByID(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Consultation, error)
	// GetForUpdate locks the row for the surrounding transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Consultation, error)
	GetByClient(ctx context.Context, clientID uuid.UUID, scope auth.ClinicFilter) (*Consultation, error)
	// Update writes the mutable content fields. Status is owned by
	// UpdateStatus.
	Update(ctx context.Context, cons *Consultation) error
	UpdateStatus(ctx context.Context, cons *Consultation) error
	List(ctx context.Context, scope auth.ClinicFilter, status Status, limit, offset int) ([]*Consultation, int, error)
}

package therapist

import (
	"context"

	"github.com/google/uuid"

	"github.com/therapynet/clinic-server/internal/platform/auth"
)

// Repository defines the persistence interface for therapists. Every
// method takes the caller's effective clinic filter; rows outside the
// filter read as not found.
type Repository interface {
	Create(ctx context.Context, t *Therapist) error
	GetByID(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Therapist, error)
	// GetForUpdate locks the row for the remainder of the surrounding
	// transaction. Callers must be inside one.
	GetForUpdate(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Therapist, error)
	Update(ctx context.Context, t *Therapist) error
	List(ctx context.Context, scope auth.ClinicFilter, status Status, limit, offset int) ([]*Therapist, int, error)
	// AdjustLoad atomically changes current_load by delta. The update is
	// guarded so the counter can never go negative; a violation returns
	// ErrLoadUnderflow.
	AdjustLoad(ctx context.Context, id uuid.UUID, delta int) error
	// CountActiveAssignments returns the true count of active assignments
	// for the therapist, for counter verification.
	CountActiveAssignments(ctx context.Context, id uuid.UUID) (int, error)
}

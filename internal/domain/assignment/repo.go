package assignment

import (
	"context"

	"github.com/google/uuid"

	"github.com/therapynet/clinic-server/internal/platform/auth"
)

// Repository defines the persistence interface for assignments. Reads
// take the caller's effective clinic filter; rows outside the filter
// read as not found. There is deliberately no Delete: history is
// append-only via status transitions.
type Repository interface {
	Create(ctx context.Context, a *Assignment) error
	GetByID(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Assignment, error)
	// GetForUpdate locks the row for the surrounding transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Assignment, error)
	// Terminate writes the status, end date and optional reason of a
	// finished assignment.
	Terminate(ctx context.Context, a *Assignment) error
	// ActiveForClient returns the client's active assignment, or
	// ErrNoActiveAssignment when there is none.
	ActiveForClient(ctx context.Context, clientID uuid.UUID, scope auth.ClinicFilter) (*Assignment, error)
	ListByClient(ctx context.Context, clientID uuid.UUID, scope auth.ClinicFilter, limit, offset int) ([]*Assignment, int, error)
	ListByTherapist(ctx context.Context, therapistID uuid.UUID, scope auth.ClinicFilter, status Status, limit, offset int) ([]*Assignment, int, error)
}

package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/therapynet/clinic-server/internal/platform/auth"
)

// ListFilter narrows therapist session listings. Zero values mean no
// filtering; From/To bound scheduled_at.
type ListFilter struct {
	Status Status
	From   *time.Time
	To     *time.Time
}

// Repository defines the persistence interface for therapy sessions.
// Reads take the caller's effective clinic filter; rows outside the
// filter read as not found.
type Repository interface {
	Create(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Session, error)
	// GetForUpdate locks the row for the surrounding transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Session, error)
	Update(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id uuid.UUID) error
	// NextSessionNumber returns the next sequence number for the
	// client-therapist pair. Callers must be inside a transaction so a
	// concurrent create resolves on the unique index.
	NextSessionNumber(ctx context.Context, clientID, therapistID uuid.UUID) (int, error)
	// TherapistBusyAt reports whether the therapist has another live
	// session overlapping the given window. exclude skips one session,
	// for rescheduling.
	TherapistBusyAt(ctx context.Context, therapistID uuid.UUID, from, to time.Time, exclude uuid.UUID) (bool, error)
	ListByClient(ctx context.Context, clientID uuid.UUID, scope auth.ClinicFilter, limit, offset int) ([]*Session, int, error)
	ListByTherapist(ctx context.Context, therapistID uuid.UUID, scope auth.ClinicFilter, f ListFilter, limit, offset int) ([]*Session, int, error)
	// CountCompleted returns how many sessions the client has finished.
	CountCompleted(ctx context.Context, clientID uuid.UUID) (int, error)
}

package assignment

import (
	"time"

	"github.com/google/uuid"

	"github.com/therapynet/clinic-server/internal/platform/workflow"
)

// Status of a client-therapist assignment. Active is the only state with
// outgoing transitions; the three terminal states record how the binding
// ended. Rows are never deleted, so the per-client assignment history is
// a complete audit trail.
type Status string

const (
	StatusActive      Status = "active"
	StatusCompleted   Status = "completed"
	StatusTransferred Status = "transferred"
	StatusCancelled   Status = "cancelled"
)

// Transitions is the assignment status table. Exposed for tests; the
// service methods are the only writers.
var Transitions = workflow.New(map[string][]string{
	string(StatusActive):      {string(StatusCompleted), string(StatusTransferred), string(StatusCancelled)},
	string(StatusCompleted):   {},
	string(StatusTransferred): {},
	string(StatusCancelled):   {},
})

// Assignment maps to the client_assignment table: a time-bounded binding
// of one client to one therapist. At most one active assignment may exist
// per client, enforced by a partial unique index on
// (client_id) WHERE status = 'active'.
type Assignment struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	ClinicID       uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	ClientID       uuid.UUID  `db:"client_id" json:"client_id"`
	TherapistID    uuid.UUID  `db:"therapist_id" json:"therapist_id"`
	AssignedByID   string     `db:"assigned_by_id" json:"assigned_by_id"`
	AssignedDate   time.Time  `db:"assigned_date" json:"assigned_date"`
	Status         Status     `db:"status" json:"status"`
	EndDate        *time.Time `db:"end_date" json:"end_date,omitempty"`
	TransferReason *string    `db:"transfer_reason" json:"transfer_reason,omitempty"`
	Notes          *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// Terminal reports whether the assignment has ended.
func (a *Assignment) Terminal() bool {
	return a.Status != StatusActive
}

package consultation

import (
	"time"

	"github.com/google/uuid"

	"github.com/therapynet/clinic-server/internal/platform/workflow"
)

// Status of an intake consultation record.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusArchived   Status = "archived"
)

// Transitions is the consultation state machine. A consultation in
// progress can fall back to draft, but once completed the only move
// left is archiving. Archived is terminal.
var Transitions = workflow.New(map[string][]string{
	string(StatusDraft):      {string(StatusInProgress)},
	string(StatusInProgress): {string(StatusCompleted), string(StatusDraft)},
	string(StatusCompleted):  {string(StatusArchived)},
	string(StatusArchived):   {},
})

// Editable reports whether the record's content may still change.
// Completed and archived consultations are immutable.
func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusInProgress
}

// Consultation maps to the consultation table. Each client has at most
// one consultation record, enforced by a unique index on client_id.
type Consultation struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	ClinicID    uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	ClientID    uuid.UUID  `db:"client_id" json:"client_id"`
	TherapistID uuid.UUID  `db:"therapist_id" json:"therapist_id"`
	Status      Status     `db:"status" json:"status"`
	Summary     *string    `db:"summary" json:"summary,omitempty"`
	Findings    *string    `db:"findings" json:"findings,omitempty"`
	StartedAt   *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

package client

import (
	"time"

	"github.com/google/uuid"

	"github.com/therapynet/clinic-server/internal/platform/workflow"
)

// Status tracks where a client is in their therapeutic lifecycle.
type Status string

const (
	StatusNew            Status = "new"
	StatusAssigned       Status = "assigned"
	StatusInConsultation Status = "in_consultation"
	StatusInTherapy      Status = "in_therapy"
	StatusDone           Status = "done"
	StatusArchived       Status = "archived"
)

// Lifecycle is the client-status transition table. It is the single
// owner of client-status changes: assignment, consultation and session
// services all route through Service.AdvanceStatus rather than writing
// the column themselves.
//
// The table is deliberately lenient about skipping intermediate stages
// (a client can go straight from assigned to in_therapy when no intake
// consultation is recorded). Archived is terminal.
var Lifecycle = workflow.New(map[string][]string{
	string(StatusNew):            {string(StatusAssigned), string(StatusArchived)},
	string(StatusAssigned):       {string(StatusInConsultation), string(StatusInTherapy), string(StatusDone), string(StatusArchived)},
	string(StatusInConsultation): {string(StatusInTherapy), string(StatusDone), string(StatusArchived)},
	string(StatusInTherapy):      {string(StatusDone), string(StatusArchived)},
	string(StatusDone):           {string(StatusAssigned), string(StatusArchived)},
	string(StatusArchived):       {},
})

// Client maps to the client table.
type Client struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	ClinicID  uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	FirstName string     `db:"first_name" json:"first_name"`
	LastName  string     `db:"last_name" json:"last_name"`
	BirthDate *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Phone     *string    `db:"phone" json:"phone,omitempty"`
	Email     *string    `db:"email" json:"email,omitempty"`
	Status    Status     `db:"status" json:"status"`
	Notes     *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

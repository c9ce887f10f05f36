package therapist

import (
	"time"

	"github.com/google/uuid"
)

// Status of a therapist. Inactive therapists keep their records and any
// running assignments but cannot accept new ones.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Therapist maps to the therapist table.
//
// CurrentLoad is the denormalized count of active assignments referencing
// this therapist. It is written only by the assignment lifecycle manager,
// inside the same transaction as the assignment row, and must always
// equal the true count.
type Therapist struct {
	ID            uuid.UUID `db:"id" json:"id"`
	ClinicID      uuid.UUID `db:"clinic_id" json:"clinic_id"`
	UserID        *string   `db:"user_id" json:"user_id,omitempty"`
	FirstName     string    `db:"first_name" json:"first_name"`
	LastName      string    `db:"last_name" json:"last_name"`
	LicenseNumber *string   `db:"license_number" json:"license_number,omitempty"`
	Specialties   []string  `db:"specialties" json:"specialties,omitempty"`
	Bio           *string   `db:"bio" json:"bio,omitempty"`
	Status        Status    `db:"status" json:"status"`
	CurrentLoad   int       `db:"current_load" json:"current_load"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

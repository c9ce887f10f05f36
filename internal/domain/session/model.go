package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/therapynet/clinic-server/internal/platform/workflow"
)

// Status of a therapy session.
type Status string

const (
	StatusPlanned    Status = "planned"
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Transitions is the session state machine. A scheduled session can be
// moved back to planned, and a cancelled one revived either way, but a
// completed session is final.
var Transitions = workflow.New(map[string][]string{
	string(StatusPlanned):    {string(StatusScheduled), string(StatusCancelled)},
	string(StatusScheduled):  {string(StatusInProgress), string(StatusPlanned), string(StatusCancelled)},
	string(StatusInProgress): {string(StatusCompleted), string(StatusCancelled)},
	string(StatusCompleted):  {},
	string(StatusCancelled):  {string(StatusPlanned), string(StatusScheduled)},
})

// Deletable reports whether the session may be removed. Sessions that
// have started or finished are part of the clinical record and stay.
func (s Status) Deletable() bool {
	return s == StatusPlanned || s == StatusScheduled || s == StatusCancelled
}

// Session maps to the therapy_session table. SessionNumber counts the
// client's sessions with a given therapist, unique per
// (client, therapist, number).
type Session struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	ClinicID      uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	ClientID      uuid.UUID  `db:"client_id" json:"client_id"`
	TherapistID   uuid.UUID  `db:"therapist_id" json:"therapist_id"`
	SessionNumber int        `db:"session_number" json:"session_number"`
	Status        Status     `db:"status" json:"status"`
	ScheduledAt   *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
	DurationMin   int        `db:"duration_min" json:"duration_min"`
	StartedAt     *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt   *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	Notes         *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Window returns the scheduled time range of the session. ok is false
// when the session has no scheduled time yet.
func (s *Session) Window() (start, end time.Time, ok bool) {
	if s.ScheduledAt == nil {
		return time.Time{}, time.Time{}, false
	}
	return *s.ScheduledAt, s.ScheduledAt.Add(time.Duration(s.DurationMin) * time.Minute), true
}

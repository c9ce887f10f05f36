package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/therapynet/clinic-server/internal/domain/assignment"
	"github.com/therapynet/clinic-server/internal/domain/client"
	"github.com/therapynet/clinic-server/internal/platform/auth"
	"github.com/therapynet/clinic-server/internal/platform/db"
)

var (
	ErrNotFound               = errors.New("session not found")
	ErrDuplicateSessionNumber = errors.New("session number already taken")
	ErrScheduleConflict       = errors.New("therapist has an overlapping session")
	ErrSessionNotDeletable    = errors.New("started or completed sessions cannot be deleted")
	ErrClientNotReady         = errors.New("client has no active assignment")
)

const defaultDurationMin = 50

// Service owns therapy sessions: their numbering per client-therapist
// pair, the scheduling conflict check and the status workflow.
type Service struct {
	repo        Repository
	assignments assignment.Repository
	clients     *client.Service
	tx          db.TxRunner
	now         func() time.Time
}

func NewService(repo Repository, assignments assignment.Repository, clients *client.Service, tx db.TxRunner) *Service {
	return &Service{
		repo:        repo,
		assignments: assignments,
		clients:     clients,
		tx:          tx,
		now:         time.Now,
	}
}

// CreateInput carries the parameters of a session creation. ScheduledAt
// is optional; without it the session is created as planned.
type CreateInput struct {
	ClientID    uuid.UUID  `json:"client_id"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	DurationMin int        `json:"duration_min,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
}

// Create adds the next session for a client. The client must have an
// active assignment; the session is recorded against that assignment's
// therapist. With a scheduled time the session starts out scheduled and
// the therapist's calendar is checked for an overlap.
func (s *Service) Create(ctx context.Context, in CreateInput, scope auth.ClinicFilter) (*Session, error) {
	var created *Session

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		act, err := s.assignments.ActiveForClient(ctx, in.ClientID, scope)
		if err != nil {
			if errors.Is(err, assignment.ErrNoActiveAssignment) {
				return ErrClientNotReady
			}
			return err
		}

		sess := &Session{
			ClinicID:    act.ClinicID,
			ClientID:    in.ClientID,
			TherapistID: act.TherapistID,
			Status:      StatusPlanned,
			ScheduledAt: in.ScheduledAt,
			DurationMin: in.DurationMin,
			Notes:       in.Notes,
		}
		if sess.DurationMin <= 0 {
			sess.DurationMin = defaultDurationMin
		}
		if in.ScheduledAt != nil {
			sess.Status = StatusScheduled
			from, to, _ := sess.Window()
			busy, err := s.repo.TherapistBusyAt(ctx, act.TherapistID, from, to, uuid.Nil)
			if err != nil {
				return err
			}
			if busy {
				return ErrScheduleConflict
			}
		}

		n, err := s.repo.NextSessionNumber(ctx, in.ClientID, act.TherapistID)
		if err != nil {
			return err
		}
		sess.SessionNumber = n

		if err := s.repo.Create(ctx, sess); err != nil {
			return err
		}
		created = sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Schedule sets or moves the session's time slot. Works from planned,
// scheduled or cancelled; the therapist's calendar is re-checked with
// this session excluded.
func (s *Service) Schedule(ctx context.Context, id uuid.UUID, at time.Time, scope auth.ClinicFilter) (*Session, error) {
	return s.transition(ctx, id, StatusScheduled, scope, func(ctx context.Context, sess *Session) error {
		sess.ScheduledAt = &at
		from, to, _ := sess.Window()
		busy, err := s.repo.TherapistBusyAt(ctx, sess.TherapistID, from, to, sess.ID)
		if err != nil {
			return err
		}
		if busy {
			return ErrScheduleConflict
		}
		return nil
	})
}

// Replan moves the session back to planned, clearing its time slot.
func (s *Service) Replan(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Session, error) {
	return s.transition(ctx, id, StatusPlanned, scope, func(ctx context.Context, sess *Session) error {
		sess.ScheduledAt = nil
		return nil
	})
}

// Start marks the session as running.
func (s *Service) Start(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Session, error) {
	return s.transition(ctx, id, StatusInProgress, scope, func(ctx context.Context, sess *Session) error {
		now := s.now()
		sess.StartedAt = &now
		return nil
	})
}

// Complete finishes the session, recording notes. The client's first
// completed session moves them to in_therapy when the lifecycle allows.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, notes *string, scope auth.ClinicFilter) (*Session, error) {
	return s.transition(ctx, id, StatusCompleted, scope, func(ctx context.Context, sess *Session) error {
		now := s.now()
		sess.CompletedAt = &now
		if notes != nil {
			sess.Notes = notes
		}

		// The first completed session marks the start of therapy.
		done, err := s.repo.CountCompleted(ctx, sess.ClientID)
		if err != nil {
			return err
		}
		if done > 0 {
			return nil
		}
		cl, err := s.clients.Get(ctx, sess.ClientID, scope)
		if err != nil {
			return err
		}
		if cl.Status != client.StatusInTherapy && client.Lifecycle.Can(string(cl.Status), string(client.StatusInTherapy)) {
			return s.clients.AdvanceStatus(ctx, sess.ClientID, client.StatusInTherapy, scope)
		}
		return nil
	})
}

// Cancel calls the session off. It stays in the record and can later be
// revived to planned or scheduled.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Session, error) {
	return s.transition(ctx, id, StatusCancelled, scope, nil)
}

// transition re-reads the session under a lock, checks the requested
// move against the state machine, lets apply mutate the row and writes
// it back, all in one transaction.
func (s *Service) transition(ctx context.Context, id uuid.UUID, target Status, scope auth.ClinicFilter, apply func(context.Context, *Session) error) (*Session, error) {
	var updated *Session

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		sess, err := s.repo.GetForUpdate(ctx, id, scope)
		if err != nil {
			return err
		}
		// Re-applying scheduled is allowed so a session can be moved
		// to a different slot.
		reschedule := sess.Status == target && target == StatusScheduled
		if !reschedule {
			if err := Transitions.Check(string(sess.Status), string(target)); err != nil {
				return err
			}
		}

		sess.Status = target
		if apply != nil {
			if err := apply(ctx, sess); err != nil {
				return err
			}
		}
		if err := s.repo.Update(ctx, sess); err != nil {
			return err
		}
		updated = sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a session that never happened. Sessions that have
// started or finished are clinical record and cannot be deleted.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		sess, err := s.repo.GetForUpdate(ctx, id, scope)
		if err != nil {
			return err
		}
		if !sess.Status.Deletable() {
			return ErrSessionNotDeletable
		}
		return s.repo.Delete(ctx, sess.ID)
	})
}

// Get returns one session within the caller's scope.
func (s *Service) Get(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Session, error) {
	return s.repo.GetByID(ctx, id, scope)
}

// ListByClient returns the client's sessions, newest first.
func (s *Service) ListByClient(ctx context.Context, clientID uuid.UUID, scope auth.ClinicFilter, limit, offset int) ([]*Session, int, error) {
	return s.repo.ListByClient(ctx, clientID, scope, limit, offset)
}

// ListByTherapist returns the therapist's sessions, optionally filtered
// by status and by scheduled-time window.
func (s *Service) ListByTherapist(ctx context.Context, therapistID uuid.UUID, scope auth.ClinicFilter, f ListFilter, limit, offset int) ([]*Session, int, error) {
	return s.repo.ListByTherapist(ctx, therapistID, scope, f, limit, offset)
}

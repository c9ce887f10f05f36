package assignment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/therapynet/clinic-server/internal/domain/client"
	"github.com/therapynet/clinic-server/internal/domain/therapist"
	"github.com/therapynet/clinic-server/internal/platform/auth"
	"github.com/therapynet/clinic-server/internal/platform/db"
)

// Business-rule violations on the assignment lifecycle. All are expected,
// recoverable conditions surfaced to the HTTP layer; none crash anything.
var (
	ErrNotFound                  = errors.New("assignment not found")
	ErrNoActiveAssignment        = errors.New("client has no active assignment")
	ErrDuplicateActiveAssignment = errors.New("client already has an active assignment")
	ErrAssignmentNotActive       = errors.New("assignment is not active")
	ErrTherapistInactive         = errors.New("therapist cannot accept assignments")
	ErrTherapistNotFound         = errors.New("therapist not found")
	ErrClientNotFound            = errors.New("client not found")
	ErrSameTherapist             = errors.New("transfer target is the current therapist")
)

// Service owns the client-therapist assignment lifecycle and the
// therapist caseload counters tied to it. Every operation runs as one
// transaction: the assignment write, the counter change and the client
// status change commit together or not at all. Rows involved in a guard
// are re-read under a lock first, so concurrent conflicting operations
// resolve against committed state.
type Service struct {
	repo       Repository
	therapists therapist.Repository
	clients    *client.Service
	tx         db.TxRunner
	now        func() time.Time
}

func NewService(repo Repository, therapists therapist.Repository, clients *client.Service, tx db.TxRunner) *Service {
	return &Service{
		repo:       repo,
		therapists: therapists,
		clients:    clients,
		tx:         tx,
		now:        time.Now,
	}
}

// AssignInput carries the parameters of an Assign operation.
type AssignInput struct {
	ClientID    uuid.UUID `json:"client_id"`
	TherapistID uuid.UUID `json:"therapist_id"`
	Notes       *string   `json:"notes,omitempty"`
}

// Assign creates the active assignment binding a client to a therapist
// and increments the therapist's caseload.
//
// The pre-check on an existing active assignment keeps the common case
// friendly; the partial unique index is what actually decides a race,
// surfacing ErrDuplicateActiveAssignment to the loser.
func (s *Service) Assign(ctx context.Context, actor string, in AssignInput, scope auth.ClinicFilter) (*Assignment, error) {
	var created *Assignment

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		th, err := s.therapists.GetForUpdate(ctx, in.TherapistID, scope)
		if err != nil {
			if errors.Is(err, therapist.ErrNotFound) {
				return ErrTherapistNotFound
			}
			return err
		}
		if th.Status != therapist.StatusActive {
			return ErrTherapistInactive
		}

		cl, err := s.clients.Get(ctx, in.ClientID, scope)
		if err != nil {
			if errors.Is(err, client.ErrNotFound) {
				return ErrClientNotFound
			}
			return err
		}
		if cl.Status == client.StatusArchived {
			return ErrClientNotFound
		}
		if cl.ClinicID != th.ClinicID {
			// A therapist can only see clients of their own clinic.
			return ErrClientNotFound
		}

		if _, err := s.repo.ActiveForClient(ctx, in.ClientID, scope); err == nil {
			return ErrDuplicateActiveAssignment
		} else if !errors.Is(err, ErrNoActiveAssignment) {
			return err
		}

		a := &Assignment{
			ClinicID:     cl.ClinicID,
			ClientID:     in.ClientID,
			TherapistID:  in.TherapistID,
			AssignedByID: actor,
			AssignedDate: s.now(),
			Status:       StatusActive,
			Notes:        in.Notes,
		}
		if err := s.repo.Create(ctx, a); err != nil {
			return err
		}
		if err := s.therapists.AdjustLoad(ctx, in.TherapistID, +1); err != nil {
			return err
		}

		// First assignment (or re-assignment after done) moves the
		// client forward; a client mid-lifecycle keeps their status.
		if cl.Status == client.StatusNew || cl.Status == client.StatusDone {
			if err := s.clients.AdvanceStatus(ctx, cl.ID, client.StatusAssigned, scope); err != nil {
				return err
			}
		}

		created = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Transfer atomically ends the active assignment and creates a new
// active one for the destination therapist, moving one unit of caseload
// between the two therapists.
func (s *Service) Transfer(ctx context.Context, actor string, assignmentID, newTherapistID uuid.UUID, reason string, scope auth.ClinicFilter) (*Assignment, error) {
	var created *Assignment

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetForUpdate(ctx, assignmentID, scope)
		if err != nil {
			return err
		}
		if a.Status != StatusActive {
			return ErrAssignmentNotActive
		}
		if a.TherapistID == newTherapistID {
			return ErrSameTherapist
		}

		next, err := s.therapists.GetForUpdate(ctx, newTherapistID, scope)
		if err != nil {
			if errors.Is(err, therapist.ErrNotFound) {
				return ErrTherapistNotFound
			}
			return err
		}
		if next.Status != therapist.StatusActive {
			return ErrTherapistInactive
		}
		if next.ClinicID != a.ClinicID {
			// Transfers stay within the clinic that owns the client.
			return ErrTherapistNotFound
		}

		end := s.now()
		a.Status = StatusTransferred
		a.EndDate = &end
		a.TransferReason = &reason
		if err := s.repo.Terminate(ctx, a); err != nil {
			return err
		}

		replacement := &Assignment{
			ClinicID:     a.ClinicID,
			ClientID:     a.ClientID,
			TherapistID:  newTherapistID,
			AssignedByID: actor,
			AssignedDate: end,
			Status:       StatusActive,
			Notes:        a.Notes,
		}
		if err := s.repo.Create(ctx, replacement); err != nil {
			return err
		}

		if err := s.therapists.AdjustLoad(ctx, a.TherapistID, -1); err != nil {
			return err
		}
		if err := s.therapists.AdjustLoad(ctx, newTherapistID, +1); err != nil {
			return err
		}

		created = replacement
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Complete ends the active assignment normally and moves the client to
// done.
func (s *Service) Complete(ctx context.Context, assignmentID uuid.UUID, scope auth.ClinicFilter) (*Assignment, error) {
	return s.terminate(ctx, assignmentID, StatusCompleted, nil, scope)
}

// Cancel ends the active assignment without completing the therapy,
// recording why. The client keeps their current lifecycle status so a
// later re-assignment can pick up where things stopped.
func (s *Service) Cancel(ctx context.Context, assignmentID uuid.UUID, reason string, scope auth.ClinicFilter) (*Assignment, error) {
	return s.terminate(ctx, assignmentID, StatusCancelled, &reason, scope)
}

func (s *Service) terminate(ctx context.Context, assignmentID uuid.UUID, target Status, reason *string, scope auth.ClinicFilter) (*Assignment, error) {
	var result *Assignment

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetForUpdate(ctx, assignmentID, scope)
		if err != nil {
			return err
		}
		if a.Status != StatusActive {
			return ErrAssignmentNotActive
		}

		end := s.now()
		a.Status = target
		a.EndDate = &end
		a.TransferReason = reason
		if err := s.repo.Terminate(ctx, a); err != nil {
			return err
		}
		if err := s.therapists.AdjustLoad(ctx, a.TherapistID, -1); err != nil {
			return err
		}

		if target == StatusCompleted {
			cl, err := s.clients.Get(ctx, a.ClientID, scope)
			if err != nil {
				return err
			}
			// Completion must still close out an archived client's
			// assignment and release the caseload slot; only movable
			// clients advance to done.
			if client.Lifecycle.Can(string(cl.Status), string(client.StatusDone)) {
				if err := s.clients.AdvanceStatus(ctx, a.ClientID, client.StatusDone, scope); err != nil {
					return err
				}
			}
		}

		result = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Get returns one assignment within the caller's scope.
func (s *Service) Get(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Assignment, error) {
	return s.repo.GetByID(ctx, id, scope)
}

// ActiveForClient returns the client's current active assignment.
func (s *Service) ActiveForClient(ctx context.Context, clientID uuid.UUID, scope auth.ClinicFilter) (*Assignment, error) {
	return s.repo.ActiveForClient(ctx, clientID, scope)
}

// History lists every assignment a client has ever had, newest first.
func (s *Service) History(ctx context.Context, clientID uuid.UUID, scope auth.ClinicFilter, limit, offset int) ([]*Assignment, int, error) {
	return s.repo.ListByClient(ctx, clientID, scope, limit, offset)
}

// Caseload lists a therapist's assignments, optionally filtered by status.
func (s *Service) Caseload(ctx context.Context, therapistID uuid.UUID, scope auth.ClinicFilter, status Status, limit, offset int) ([]*Assignment, int, error) {
	return s.repo.ListByTherapist(ctx, therapistID, scope, status, limit, offset)
}

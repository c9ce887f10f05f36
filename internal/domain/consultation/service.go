package consultation

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
	ErrNotFound           = errors.New("consultation not found")
	ErrConsultationExists = errors.New("client already has a consultation")
	ErrRecordImmutable    = errors.New("completed consultations cannot be modified")
	ErrTherapistMismatch  = errors.New("therapist is not assigned to this client")
	ErrClientNotReady     = errors.New("client has no active assignment")
)

// Service owns consultation records and their status workflow. A
// consultation is the structured intake step between assignment and
// regular therapy sessions.
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

// CreateInput carries the parameters of a consultation creation.
// TherapistID is optional; when set it must name the client's assigned
// therapist, otherwise the assignment's therapist is used.
type CreateInput struct {
	ClientID    uuid.UUID  `json:"client_id"`
	TherapistID *uuid.UUID `json:"therapist_id,omitempty"`
	Summary     *string    `json:"summary,omitempty"`
	Findings    *string    `json:"findings,omitempty"`
}

// Create opens a draft consultation for a client. The client must have
// an active assignment, and the consultation is recorded against that
// assignment's therapist. The one-per-client unique index decides a
// racing double create.
func (s *Service) Create(ctx context.Context, in CreateInput, scope auth.ClinicFilter) (*Consultation, error) {
	var created *Consultation

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		act, err := s.assignments.ActiveForClient(ctx, in.ClientID, scope)
		if err != nil {
			if errors.Is(err, assignment.ErrNoActiveAssignment) {
				return ErrClientNotReady
			}
			return err
		}
		if in.TherapistID != nil && *in.TherapistID != act.TherapistID {
			return ErrTherapistMismatch
		}

		cons := &Consultation{
			ClinicID:    act.ClinicID,
			ClientID:    in.ClientID,
			TherapistID: act.TherapistID,
			Status:      StatusDraft,
			Summary:     in.Summary,
			Findings:    in.Findings,
		}
		if err := s.repo.Create(ctx, cons); err != nil {
			return err
		}
		created = cons
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateInput carries the mutable content fields of a consultation.
type UpdateInput struct {
	Summary  *string `json:"summary,omitempty"`
	Findings *string `json:"findings,omitempty"`
}

// Update rewrites the record's content. Completed and archived
// consultations are immutable.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput, scope auth.ClinicFilter) (*Consultation, error) {
	var updated *Consultation

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		cons, err := s.repo.GetForUpdate(ctx, id, scope)
		if err != nil {
			return err
		}
		if !cons.Status.Editable() {
			return ErrRecordImmutable
		}

		cons.Summary = in.Summary
		cons.Findings = in.Findings
		if err := s.repo.Update(ctx, cons); err != nil {
			return err
		}
		updated = cons
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// TransitionStatus moves the consultation through its workflow. The row
// is re-read under a lock so a concurrent transition sees the committed
// state, not the one the caller looked at.
//
// Starting a consultation stamps started_at and moves the client to
// in_consultation; completing it stamps completed_at and moves the
// client to in_therapy.
func (s *Service) TransitionStatus(ctx context.Context, id uuid.UUID, target Status, scope auth.ClinicFilter) (*Consultation, error) {
	var updated *Consultation

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		cons, err := s.repo.GetForUpdate(ctx, id, scope)
		if err != nil {
			return err
		}
		if err := Transitions.Check(string(cons.Status), string(target)); err != nil {
			return err
		}

		now := s.now()
		switch target {
		case StatusInProgress:
			if cons.StartedAt == nil {
				cons.StartedAt = &now
			}
		case StatusCompleted:
			cons.CompletedAt = &now
		}
		cons.Status = target
		if err := s.repo.UpdateStatus(ctx, cons); err != nil {
			return err
		}

		switch target {
		case StatusInProgress:
			if err := s.advanceClient(ctx, cons.ClientID, client.StatusInConsultation, scope); err != nil {
				return err
			}
		case StatusCompleted:
			if err := s.advanceClient(ctx, cons.ClientID, client.StatusInTherapy, scope); err != nil {
				return err
			}
		}

		updated = cons
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// advanceClient moves the client forward only when the lifecycle table
// allows it. A client already past the target stage keeps their status.
func (s *Service) advanceClient(ctx context.Context, clientID uuid.UUID, target client.Status, scope auth.ClinicFilter) error {
	cl, err := s.clients.Get(ctx, clientID, scope)
	if err != nil {
		return err
	}
	if cl.Status == target || !client.Lifecycle.Can(string(cl.Status), string(target)) {
		return nil
	}
	return s.clients.AdvanceStatus(ctx, clientID, target, scope)
}

// Get returns one consultation within the caller's scope.
func (s *Service) Get(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Consultation, error) {
	return s.repo.GetByID(ctx, id, scope)
}

// GetByClient returns the client's consultation record.
func (s *Service) GetByClient(ctx context.Context, clientID uuid.UUID, scope auth.ClinicFilter) (*Consultation, error) {
	return s.repo.GetByClient(ctx, clientID, scope)
}

// List returns consultations within the caller's scope, optionally
// filtered by status.
func (s *Service) List(ctx context.Context, scope auth.ClinicFilter, status Status, limit, offset int) ([]*Consultation, int, error) {
	return s.repo.List(ctx, scope, status, limit, offset)
}

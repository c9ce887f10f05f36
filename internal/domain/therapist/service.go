package therapist

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/therapynet/clinic-server/internal/platform/auth"
)

var (
	// ErrNotFound covers both a nonexistent therapist and one outside the
	// caller's clinic scope.
	ErrNotFound = errors.New("therapist not found")

	// ErrLoadUnderflow means a caseload decrement would have taken
	// current_load below zero. Indicates a bookkeeping bug, never a user
	// error.
	ErrLoadUnderflow = errors.New("therapist caseload counter would go negative")
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, t *Therapist) error {
	if t.FirstName == "" || t.LastName == "" {
		return fmt.Errorf("therapist name is required")
	}
	if t.ClinicID == uuid.Nil {
		return fmt.Errorf("clinic_id is required")
	}
	t.Status = StatusActive
	t.CurrentLoad = 0
	return s.repo.Create(ctx, t)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Therapist, error) {
	return s.repo.GetByID(ctx, id, scope)
}

func (s *Service) Update(ctx context.Context, t *Therapist, scope auth.ClinicFilter) error {
	if t.FirstName == "" || t.LastName == "" {
		return fmt.Errorf("therapist name is required")
	}
	current, err := s.repo.GetByID(ctx, t.ID, scope)
	if err != nil {
		return err
	}
	// Status and load are managed elsewhere: status via Activate and
	// Deactivate, load via the assignment lifecycle.
	t.ClinicID = current.ClinicID
	t.Status = current.Status
	t.CurrentLoad = current.CurrentLoad
	return s.repo.Update(ctx, t)
}

func (s *Service) List(ctx context.Context, scope auth.ClinicFilter, status Status, limit, offset int) ([]*Therapist, int, error) {
	return s.repo.List(ctx, scope, status, limit, offset)
}

// Deactivate blocks the therapist from accepting new assignments.
// Existing assignments keep running until completed or transferred.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) error {
	return s.setStatus(ctx, id, scope, StatusInactive)
}

func (s *Service) Activate(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) error {
	return s.setStatus(ctx, id, scope, StatusActive)
}

func (s *Service) setStatus(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter, status Status) error {
	t, err := s.repo.GetByID(ctx, id, scope)
	if err != nil {
		return err
	}
	t.Status = status
	return s.repo.Update(ctx, t)
}

// VerifyLoad compares the stored caseload counter against the true count
// of active assignments. Used by operational tooling; a mismatch means
// the lifecycle invariant was violated somewhere.
func (s *Service) VerifyLoad(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (stored, actual int, err error) {
	t, err := s.repo.GetByID(ctx, id, scope)
	if err != nil {
		return 0, 0, err
	}
	actual, err = s.repo.CountActiveAssignments(ctx, id)
	if err != nil {
		return 0, 0, err
	}
	return t.CurrentLoad, actual, nil
}

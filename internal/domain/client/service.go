package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/therapynet/clinic-server/internal/platform/auth"
	"github.com/therapynet/clinic-server/internal/platform/db"
)

var (
	// ErrNotFound covers both a nonexistent client and one outside the
	// caller's clinic scope.
	ErrNotFound = errors.New("client not found")

	// ErrArchived rejects writes against an archived client.
	ErrArchived = errors.New("client is archived")
)

type Service struct {
	repo Repository
	tx   db.TxRunner
}

func NewService(repo Repository, tx db.TxRunner) *Service {
	return &Service{repo: repo, tx: tx}
}

func (s *Service) Create(ctx context.Context, c *Client) error {
	if c.FirstName == "" || c.LastName == "" {
		return fmt.Errorf("client name is required")
	}
	if c.ClinicID == uuid.Nil {
		return fmt.Errorf("clinic_id is required")
	}
	c.Status = StatusNew
	return s.repo.Create(ctx, c)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Client, error) {
	return s.repo.GetByID(ctx, id, scope)
}

func (s *Service) Update(ctx context.Context, c *Client, scope auth.ClinicFilter) error {
	if c.FirstName == "" || c.LastName == "" {
		return fmt.Errorf("client name is required")
	}
	current, err := s.repo.GetByID(ctx, c.ID, scope)
	if err != nil {
		return err
	}
	if current.Status == StatusArchived {
		return ErrArchived
	}
	c.ClinicID = current.ClinicID
	c.Status = current.Status
	return s.repo.Update(ctx, c)
}

func (s *Service) List(ctx context.Context, scope auth.ClinicFilter, status Status, limit, offset int) ([]*Client, int, error) {
	return s.repo.List(ctx, scope, status, limit, offset)
}

// AdvanceStatus moves the client through its lifecycle table. The current
// status is re-read under a row lock inside a transaction, so concurrent
// conflicting transitions resolve against committed state; the loser gets
// an InvalidTransitionError.
//
// Lifecycle services (assignments, consultations, sessions) call this
// from inside their own transactions; the runner joins rather than nests.
func (s *Service) AdvanceStatus(ctx context.Context, id uuid.UUID, target Status, scope auth.ClinicFilter) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetForUpdate(ctx, id, scope)
		if err != nil {
			return err
		}
		if current.Status == target {
			return nil
		}
		if err := Lifecycle.Check(string(current.Status), string(target)); err != nil {
			return err
		}
		return s.repo.UpdateStatus(ctx, id, target)
	})
}

// Archive soft-deletes the client via the lifecycle table. Archived is
// terminal; row data is retained.
func (s *Service) Archive(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) error {
	return s.AdvanceStatus(ctx, id, StatusArchived, scope)
}

package clinic

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"

	"github.com/therapynet/clinic-server/internal/platform/auth"
)

var (
	// ErrNotFound covers both a nonexistent clinic and one outside the
	// caller's scope; the two are deliberately indistinguishable.
	ErrNotFound = errors.New("clinic not found")

	// ErrSlugTaken reports a slug collision, enforced by the database.
	ErrSlugTaken = errors.New("clinic slug already in use")
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, c *Clinic) error {
	if c.Name == "" {
		return fmt.Errorf("clinic name is required")
	}
	if c.Slug == "" {
		return fmt.Errorf("clinic slug is required")
	}
	if !slugPattern.MatchString(c.Slug) {
		return fmt.Errorf("clinic slug must be lowercase alphanumeric with hyphens")
	}
	c.Active = true
	return s.repo.Create(ctx, c)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Clinic, error) {
	return s.repo.GetByID(ctx, id, scope)
}

func (s *Service) GetBySlug(ctx context.Context, slug string, scope auth.ClinicFilter) (*Clinic, error) {
	return s.repo.GetBySlug(ctx, slug, scope)
}

func (s *Service) Update(ctx context.Context, c *Clinic) error {
	if c.Name == "" {
		return fmt.Errorf("clinic name is required")
	}
	return s.repo.Update(ctx, c)
}

// Deactivate marks a clinic inactive. Records under the clinic are kept;
// only administrators can see an inactive clinic's data.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	c, err := s.repo.GetByID(ctx, id, auth.ScopeAll())
	if err != nil {
		return err
	}
	c.Active = false
	return s.repo.Update(ctx, c)
}

func (s *Service) List(ctx context.Context, scope auth.ClinicFilter, limit, offset int) ([]*Clinic, int, error) {
	return s.repo.List(ctx, scope, limit, offset)
}

package client

import (
	"context"

	"github.com/google/uuid"

	"github.com/therapynet/clinic-server/internal/platform/auth"
)

// Repository defines the persistence interface for clients. Every read
// takes the caller's effective clinic filter; rows outside the filter
// read as not found.
type Repository interface {
	Create(ctx context.Context, c *Client) error
	GetByID(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Client, error)
	// GetForUpdate locks the row for the surrounding transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Client, error)
	Update(ctx context.Context, c *Client) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	List(ctx context.Context, scope auth.ClinicFilter, status Status, limit, offset int) ([]*Client, int, error)
}

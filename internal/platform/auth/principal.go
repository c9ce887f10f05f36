package auth

import (
	"context"

	"github.com/google/uuid"
)

// Role is a principal's global role.
type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleClinicAdmin   Role = "clinic_admin"
	RoleTherapist     Role = "therapist"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdministrator, RoleClinicAdmin, RoleTherapist:
		return true
	}
	return false
}

// Principal is the authenticated actor behind a request. It is built once
// by the auth middleware from trusted token claims and passed explicitly
// to every decision point; nothing mutates it afterwards.
//
// Administrators act network-wide and may have no home clinic.
// Clinic admins and therapists belong to exactly one home clinic, and a
// therapist additionally carries the ID of their therapist record.
type Principal struct {
	UserID       string
	Role         Role
	HomeClinicID *uuid.UUID
	TherapistID  *uuid.UUID
}

// HomeClinic returns the principal's home clinic, if any.
func (p *Principal) HomeClinic() (uuid.UUID, bool) {
	if p.HomeClinicID == nil {
		return uuid.Nil, false
	}
	return *p.HomeClinicID, true
}

type principalKey struct{}

// WithPrincipal returns a context carrying the principal.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext retrieves the request principal, or nil when the
// request is unauthenticated.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}

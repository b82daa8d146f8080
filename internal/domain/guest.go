package domain

import "fmt"

type Role string

const (
	RoleGuest         Role = "Guest"
	RoleReceptionist  Role = "Receptionist"
	RoleAdministrator Role = "Administrator"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleGuest, RoleReceptionist, RoleAdministrator:
		return Role(s), nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrValidation, s)
}

type Roles []Role

// Privileged is the single authorization predicate for staff-only
// actions: cancellation outside the guest window and acting on
// reservations the principal does not own.
func (r Roles) Privileged() bool {
	for _, role := range r {
		if role == RoleReceptionist || role == RoleAdministrator {
			return true
		}
	}
	return false
}

// Principal is the already-authenticated acting party. Verification of
// identity and token handling happen upstream; the engine only consumes
// the result.
type Principal struct {
	ID    int64
	Roles Roles
}

// Guest is a requester profile, owned by the user catalog and read-only
// to the reservation engine.
type Guest struct {
	ID    int64
	Name  string
	Email string
	Phone string
}

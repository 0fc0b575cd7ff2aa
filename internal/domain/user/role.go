package user

import (
	"errors"
	"strings"
)

// Role is a user role carried in access tokens.
type Role string

const (
	RolePassenger Role = "PASSENGER" // rides and raises SOS
	RoleSupport   Role = "SUPPORT"   // emergency desk, reads SOS logs
	RoleAdmin     Role = "ADMIN"
)

var ErrInvalidRole = errors.New("invalid role")

// ParseRole normalizes (uppercases+trims) and validates a role string.
func ParseRole(s string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(s)))
	if role.Valid() {
		return role, nil
	}
	return "", ErrInvalidRole
}

// Valid reports whether role is one of the allowed role constants.
func (role Role) Valid() bool {
	switch role {
	case RolePassenger, RoleSupport, RoleAdmin:
		return true
	default:
		return false
	}
}

func (role Role) String() string {
	return string(role)
}

// CanReadEmergencyLogs reports whether the role may query SOS logs of other users.
func (role Role) CanReadEmergencyLogs() bool {
	return role == RoleSupport || role == RoleAdmin
}

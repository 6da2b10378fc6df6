package models

import (
	"errors"
	"strings"
)

var ErrUnknownRole = errors.New("unknown role")

type RoleID int

const (
	RoleAdmin          RoleID = 0
	RoleStudent        RoleID = 1
	RoleLecturer       RoleID = 2
	RoleAdministration RoleID = 3
)

type Role struct {
	ID          RoleID
	Description string
}

func (r RoleID) String() string {
	switch r {
	case RoleAdmin:
		return "Admin"
	case RoleStudent:
		return "Student"
	case RoleLecturer:
		return "Lecturer"
	case RoleAdministration:
		return "Administration"
	default:
		return "Unknown"
	}
}

func (r RoleID) Valid() bool {
	switch r {
	case RoleAdmin, RoleStudent, RoleLecturer, RoleAdministration:
		return true
	default:
		return false
	}
}

// ParseRole maps a role name as sent by clients onto the closed set of roles.
func ParseRole(name string) (RoleID, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "admin":
		return RoleAdmin, nil
	case "student":
		return RoleStudent, nil
	case "lecturer":
		return RoleLecturer, nil
	case "administration":
		return RoleAdministration, nil
	default:
		return 0, ErrUnknownRole
	}
}

// DefaultRoles is the reference data seeded at startup.
func DefaultRoles() []Role {
	ids := []RoleID{RoleAdmin, RoleStudent, RoleLecturer, RoleAdministration}
	roles := make([]Role, 0, len(ids))
	for _, id := range ids {
		roles = append(roles, Role{ID: id, Description: id.String()})
	}
	return roles
}

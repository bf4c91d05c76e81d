package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role is the closed set of authorization roles in the platform.
type Role int

const (
	// RoleStudent is the default role assigned at self-registration.
	RoleStudent Role = iota

	// RoleMentor reviews applications for internships assigned to them.
	RoleMentor

	// RoleAdmin has unrestricted access and bypasses ownership checks.
	RoleAdmin

	// RoleRecruiter creates internships and extends offers.
	RoleRecruiter
)

// String returns the wire representation of the role used in tokens,
// API responses, and the database.
func (r Role) String() string {
	switch r {
	case RoleStudent:
		return "student"
	case RoleMentor:
		return "mentor"
	case RoleAdmin:
		return "admin"
	case RoleRecruiter:
		return "recruiter"
	default:
		return "unknown"
	}
}

// ParseRole maps a wire string back to a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "student":
		return RoleStudent, nil
	case "mentor":
		return RoleMentor, nil
	case "admin":
		return RoleAdmin, nil
	case "recruiter":
		return RoleRecruiter, nil
	default:
		return RoleStudent, fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

package access

import (
	"errors"
	"strings"
)

// Role is the closed set of roles a profile may hold.
type Role string

const (
	RoleAdmin          Role = "Admin"
	RoleFoundationHead Role = "Foundation Head"
	RolePrincipal      Role = "Principal"
	RoleStaff          Role = "Staff"
	RoleTeacher        Role = "Teacher"
	RoleStudent        Role = "Student"
)

var (
	ErrUnknownRole = errors.New("unknown role")

	// Roles lists every role, highest priority first.
	Roles = []Role{RoleAdmin, RoleFoundationHead, RolePrincipal, RoleStaff, RoleTeacher, RoleStudent}

	rolePriorities = map[Role]int{
		// foundation wide: 60 - 50
		RoleAdmin:          60,
		RoleFoundationHead: 50,

		// school management: 40 - 30
		RolePrincipal: 40,
		RoleStaff:     30,

		RoleTeacher: 20,
		RoleStudent: 10,
	}
)

// ParseRole matches s case-insensitively against the known roles.
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(s)
	for _, r := range Roles {
		if strings.EqualFold(string(r), s) {
			return r, nil
		}
	}
	return "", ErrUnknownRole
}

func (r Role) Valid() bool {
	_, ok := rolePriorities[r]
	return ok
}

// Priority is 0 for unknown roles.
func (r Role) Priority() int {
	return rolePriorities[r]
}

// Unscoped roles see every school.
func (r Role) Unscoped() bool {
	return r == RoleAdmin || r == RoleFoundationHead
}

// CanAssign reports whether a profile holding r may grant target to someone else.
func (r Role) CanAssign(target Role) bool {
	return r.Valid() && target.Valid() && r.Priority() >= target.Priority()
}

func (r Role) String() string { return string(r) }

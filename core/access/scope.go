package access

// Principal is the part of a profile access checks care about.
type Principal struct {
	ID       string
	Role     Role
	SchoolID string
}

// Scope restricts the rows a query may return. The zero value is unrestricted.
//
// SchoolID limits rows to one school, TeacherID to rows the teacher owns and
// StudentID to rows reachable through the student's enrollments.
// Deny matches nothing.
type Scope struct {
	Deny      bool
	SchoolID  string
	TeacherID string
	StudentID string
}

var denyAll = Scope{Deny: true}

// ScopeFilter narrows base to what p may read.
//
// Unscoped roles get base unchanged. School scoped roles are pinned to their school,
// teachers to their own rows and students to their enrollments. A base scope that asks
// for another school, teacher or student is denied rather than widened. Unknown roles and
// scoped roles without a school are denied.
//
// The filter only mirrors the database access policy and is not a security boundary.
// ScopeFilter(p, ScopeFilter(p, s)) == ScopeFilter(p, s).
func ScopeFilter(p Principal, base Scope) Scope {
	if base.Deny || !p.Role.Valid() {
		return denyAll
	}
	if p.Role.Unscoped() {
		return base
	}
	if p.SchoolID == "" {
		return denyAll
	}

	scoped := base
	if !pin(&scoped.SchoolID, p.SchoolID) {
		return denyAll
	}

	switch p.Role {
	case RoleTeacher:
		if !pin(&scoped.TeacherID, p.ID) {
			return denyAll
		}
	case RoleStudent:
		if !pin(&scoped.StudentID, p.ID) {
			return denyAll
		}
	}
	return scoped
}

// pin sets *field to want unless it already holds a different value.
func pin(field *string, want string) bool {
	if *field != "" && *field != want {
		return false
	}
	*field = want
	return true
}

// Restricted reports whether the scope filters anything.
func (s Scope) Restricted() bool {
	return s != Scope{}
}

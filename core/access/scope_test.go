package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScopeFilter(t *testing.T) {
	admin := Principal{ID: "a1", Role: RoleAdmin}
	head := Principal{ID: "h1", Role: RoleFoundationHead}
	principal := Principal{ID: "p1", Role: RolePrincipal, SchoolID: "S1"}
	staff := Principal{ID: "s1", Role: RoleStaff, SchoolID: "S1"}
	teacher := Principal{ID: "t1", Role: RoleTeacher, SchoolID: "S1"}
	student := Principal{ID: "st1", Role: RoleStudent, SchoolID: "S1"}

	tests := []struct {
		name string
		p    Principal
		base Scope
		want Scope
	}{
		{name: "admin unrestricted", p: admin, want: Scope{}},
		{name: "admin keeps base", p: admin, base: Scope{SchoolID: "S2"}, want: Scope{SchoolID: "S2"}},
		{name: "foundation head unrestricted", p: head, want: Scope{}},
		{name: "principal pinned to school", p: principal, want: Scope{SchoolID: "S1"}},
		{name: "staff pinned to school", p: staff, want: Scope{SchoolID: "S1"}},
		{name: "staff same school", p: staff, base: Scope{SchoolID: "S1"}, want: Scope{SchoolID: "S1"}},
		{name: "staff other school", p: staff, base: Scope{SchoolID: "S2"}, want: Scope{Deny: true}},
		{name: "staff keeps teacher filter", p: staff, base: Scope{TeacherID: "t9"}, want: Scope{SchoolID: "S1", TeacherID: "t9"}},
		{name: "staff without school", p: Principal{ID: "s2", Role: RoleStaff}, want: Scope{Deny: true}},
		{name: "teacher owns rows", p: teacher, want: Scope{SchoolID: "S1", TeacherID: "t1"}},
		{name: "teacher other teacher", p: teacher, base: Scope{TeacherID: "t2"}, want: Scope{Deny: true}},
		{name: "student enrollments", p: student, want: Scope{SchoolID: "S1", StudentID: "st1"}},
		{name: "student other student", p: student, base: Scope{StudentID: "st2"}, want: Scope{Deny: true}},
		{name: "unknown role", p: Principal{ID: "x", Role: "Root", SchoolID: "S1"}, want: Scope{Deny: true}},
		{name: "denied base stays denied", p: admin, base: Scope{Deny: true}, want: Scope{Deny: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScopeFilter(tt.p, tt.base)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, ScopeFilter(tt.p, got), "ScopeFilter must be idempotent")
		})
	}
}

func TestScope_Restricted(t *testing.T) {
	assert.False(t, Scope{}.Restricted())
	assert.True(t, Scope{SchoolID: "S1"}.Restricted())
	assert.True(t, Scope{Deny: true}.Restricted())
}

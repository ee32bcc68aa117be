package access

import "sort"

// Capability names one thing a role is allowed to do.
type Capability string

const (
	ManageSchools     Capability = "manageSchools"
	ManageStaff       Capability = "manageStaff"
	ManageCourses     Capability = "manageCourses"
	ViewCourses       Capability = "viewCourses"
	ViewOwnCourses    Capability = "viewOwnCourses"
	ViewTeachers      Capability = "viewTeachers"
	ViewStudents      Capability = "viewStudents"
	ManageStudents    Capability = "manageStudents"
	ViewSchoolReports Capability = "viewSchoolReports"
	ViewGlobalReports Capability = "viewGlobalReports"
	GradeSubmissions  Capability = "gradeSubmissions"
	ViewAssignments   Capability = "viewAssignments"
	ViewLessons       Capability = "viewLessons"
	TakeQuizzes       Capability = "takeQuizzes"
	JoinDiscussions   Capability = "joinDiscussions"
	EnrollCourses     Capability = "enrollCourses"
	ManageSettings    Capability = "manageSettings"
)

// Capabilities is an immutable set of capabilities.
type Capabilities map[Capability]struct{}

func newCapabilities(caps ...Capability) Capabilities {
	set := make(Capabilities, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}

var (
	foundationCaps = newCapabilities(
		ManageSchools, ManageStaff, ManageCourses, ViewCourses, ViewTeachers,
		ViewStudents, ManageStudents, ViewSchoolReports, ViewGlobalReports, ManageSettings,
	)
	schoolCaps = newCapabilities(
		ManageCourses, ViewCourses, ViewTeachers, ViewStudents,
		ManageStudents, ViewSchoolReports, ManageSettings,
	)
	teacherCaps = newCapabilities(
		ManageCourses, ViewCourses, ViewOwnCourses, ViewStudents,
		GradeSubmissions, ViewAssignments, JoinDiscussions, ManageSettings,
	)
	studentCaps = newCapabilities(
		ViewCourses, ViewOwnCourses, ViewLessons, ViewAssignments,
		TakeQuizzes, JoinDiscussions, EnrollCourses, ManageSettings,
	)

	roleCaps = map[Role]Capabilities{
		RoleAdmin:          foundationCaps,
		RoleFoundationHead: foundationCaps,
		RolePrincipal:      schoolCaps,
		RoleStaff:          schoolCaps,
		RoleTeacher:        teacherCaps,
		RoleStudent:        studentCaps,
	}
)

// CapabilitiesFor derives the capability set of a role. Unknown roles get none.
func CapabilitiesFor(role Role) Capabilities {
	if caps, ok := roleCaps[role]; ok {
		return caps
	}
	return Capabilities{}
}

func (c Capabilities) Has(capability Capability) bool {
	_, ok := c[capability]
	return ok
}

// HasAny is true when no capability is required.
func (c Capabilities) HasAny(caps ...Capability) bool {
	if len(caps) == 0 {
		return true
	}
	for _, capability := range caps {
		if c.Has(capability) {
			return true
		}
	}
	return false
}

// List returns the capabilities sorted by name.
func (c Capabilities) List() []Capability {
	list := make([]Capability, 0, len(c))
	for capability := range c {
		list = append(list, capability)
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return list
}

package access

import (
	"errors"
	"strings"
)

// State of a route access attempt.
type State int

const (
	StateLoading State = iota
	StateAuthorized
	StateForbidden
	StateUnauthenticated
)

var stateNames = [...]string{"loading", "authorized", "forbidden", "unauthenticated"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

var ErrInvalidTransition = errors.New("route access already resolved")

// Route ties a path prefix to the capabilities that open it.
// No capabilities means any authenticated profile may enter.
type Route struct {
	Path     string
	AnyOf    []Capability
	Children []Route
}

// Routes is the dashboard route table.
var Routes = []Route{
	{Path: "/dashboard"},
	{Path: "/settings", AnyOf: []Capability{ManageSettings}},
	{Path: "/courses", AnyOf: []Capability{ViewCourses}, Children: []Route{
		{Path: "/courses/create", AnyOf: []Capability{ManageCourses}},
	}},
	{Path: "/admin/schools", AnyOf: []Capability{ManageSchools}},
	{Path: "/admin/staff", AnyOf: []Capability{ManageStaff}},
	{Path: "/admin/reports", AnyOf: []Capability{ViewGlobalReports}},
	{Path: "/staff/teachers", AnyOf: []Capability{ViewTeachers}},
	{Path: "/staff/students", AnyOf: []Capability{ManageStudents}},
	{Path: "/staff/reports", AnyOf: []Capability{ViewSchoolReports}},
	{Path: "/students", AnyOf: []Capability{ViewStudents}},
	{Path: "/assignments", AnyOf: []Capability{ViewAssignments}},
	{Path: "/quizzes", AnyOf: []Capability{TakeQuizzes}},
	{Path: "/discussions", AnyOf: []Capability{JoinDiscussions}},
	{Path: "/lessons", AnyOf: []Capability{ViewLessons}},
}

// RouteFor finds the most specific route matching path.
func RouteFor(path string) (Route, bool) {
	return matchRoute(Routes, path)
}

func matchRoute(routes []Route, path string) (Route, bool) {
	for _, r := range routes {
		if path == r.Path || strings.HasPrefix(path, r.Path+"/") {
			if child, ok := matchRoute(r.Children, path); ok {
				return child, true
			}
			return r, true
		}
	}
	return Route{}, false
}

// Gate resolves one route access attempt. It starts Loading and moves exactly once.
type Gate struct {
	state State
}

func NewGate() *Gate {
	return &Gate{state: StateLoading}
}

func (g *Gate) State() State { return g.state }

// Resolve moves the gate out of Loading. A nil principal means no session or no profile.
func (g *Gate) Resolve(p *Principal, anyOf ...Capability) (State, error) {
	if g.state != StateLoading {
		return g.state, ErrInvalidTransition
	}
	g.state = Decide(p, anyOf...)
	return g.state, nil
}

// Decide is the pure transition out of Loading.
func Decide(p *Principal, anyOf ...Capability) State {
	if p == nil {
		return StateUnauthenticated
	}
	if !p.Role.Valid() {
		return StateForbidden
	}
	if !CapabilitiesFor(p.Role).HasAny(anyOf...) {
		return StateForbidden
	}
	return StateAuthorized
}

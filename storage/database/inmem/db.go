// Package inmemdb keeps every repository in process memory. It backs the tests and
// local runs without PostgreSQL.
package inmemdb

import (
	"sync"

	"github.com/fatsal/lms/core/access"
	"github.com/fatsal/lms/core/auth"
	"github.com/fatsal/lms/core/course"
	"github.com/fatsal/lms/core/learning"
	"github.com/fatsal/lms/core/profile"
	"github.com/fatsal/lms/core/school"
)

// DB holds every table behind a single lock, so that scoped reads can join tables.
type DB struct {
	mu sync.RWMutex

	credentials map[string]*auth.Credential
	sessions    map[string]*auth.SessionRecord
	profiles    map[string]*profile.Profile
	schools     map[string]*school.School
	courses     map[string]*course.Course
	classes     map[string][]string // course id: class ids
	enrollments map[string]*course.Enrollment
	modules     map[string]*learning.Module
	lessons     map[string]*learning.Lesson
	assignments map[string]*learning.Assignment
	submissions map[string]*learning.Submission
	quizzes     map[string]*learning.Quiz
	discussions map[string]*learning.Discussion
}

func Open() *DB {
	return &DB{
		credentials: make(map[string]*auth.Credential),
		sessions:    make(map[string]*auth.SessionRecord),
		profiles:    make(map[string]*profile.Profile),
		schools:     make(map[string]*school.School),
		courses:     make(map[string]*course.Course),
		classes:     make(map[string][]string),
		enrollments: make(map[string]*course.Enrollment),
		modules:     make(map[string]*learning.Module),
		lessons:     make(map[string]*learning.Lesson),
		assignments: make(map[string]*learning.Assignment),
		submissions: make(map[string]*learning.Submission),
		quizzes:     make(map[string]*learning.Quiz),
		discussions: make(map[string]*learning.Discussion),
	}
}

// enrolled reports whether studentID is enrolled in courseID. Callers hold db.mu.
func (db *DB) enrolled(courseID, studentID string) bool {
	for _, e := range db.enrollments {
		if e.CourseID == courseID && e.StudentID == studentID {
			return true
		}
	}
	return false
}

// courseVisible reports whether the course is in scope. Callers hold db.mu.
func (db *DB) courseVisible(courseID string, scope access.Scope) bool {
	if scope.Deny {
		return false
	}
	c, ok := db.courses[courseID]
	if !ok {
		return false
	}
	if scope.SchoolID != "" && c.SchoolID != scope.SchoolID {
		return false
	}
	if scope.TeacherID != "" && c.TeacherID != scope.TeacherID {
		return false
	}
	if scope.StudentID != "" && !db.enrolled(c.ID, scope.StudentID) {
		return false
	}
	return true
}

// lessonCourse resolves the course of a lesson through its module. Callers hold db.mu.
func (db *DB) lessonCourse(lessonID string) (*course.Course, bool) {
	l, ok := db.lessons[lessonID]
	if !ok {
		return nil, false
	}
	m, ok := db.modules[l.ModuleID]
	if !ok {
		return nil, false
	}
	c, ok := db.courses[m.CourseID]
	return c, ok
}

package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/access"
	"github.com/fatsal/lms/core/course"
)

var errEnrollmentNotFound = core.NewNotFoundError("enrollment")

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(_ context.Context, c course.Course, classIDs []string) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.courses[c.ID] = &c
	if len(classIDs) > 0 {
		repo.db.classes[c.ID] = append([]string(nil), classIDs...)
	}
	return c, nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id string, scope access.Scope) (course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if !repo.db.courseVisible(id, scope) {
		return course.Course{}, course.ErrNotFound
	}
	return *repo.db.courses[id], nil
}

func (repo *courseRepository) filter(filter course.QueryFilter) []course.Course {
	courses := make([]course.Course, 0)
	search := strings.ToLower(filter.Search)
	for id, c := range repo.db.courses {
		if !repo.db.courseVisible(id, filter.Scope) {
			continue
		}
		if filter.PublishedOnly && !c.IsPublished {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(c.Title), search) &&
			!strings.Contains(strings.ToLower(c.Description.String), search) {
			continue
		}
		courses = append(courses, *c)
	}
	return courses
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	courses := repo.filter(filter)
	sort.SliceStable(courses, func(i, j int) bool {
		a, b := courses[i], courses[j]
		for _, ord := range ordering {
			switch ord.Field {
			case "title":
				if a.Title != b.Title {
					return (a.Title < b.Title) == ord.Ascending
				}
			case "created_at":
				if !a.CreatedAt.Equal(b.CreatedAt) {
					return a.CreatedAt.Before(b.CreatedAt) == ord.Ascending
				}
			case "updated_at":
				if !a.UpdatedAt.Equal(b.UpdatedAt) {
					return a.UpdatedAt.Before(b.UpdatedAt) == ord.Ascending
				}
			}
		}
		return a.ID < b.ID
	})
	return courses, nil
}

func (repo *courseRepository) CountCourses(_ context.Context, filter course.QueryFilter) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return len(repo.filter(filter)), nil
}

func (repo *courseRepository) CountByTeacher(_ context.Context, scope access.Scope) (map[string]int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	counts := make(map[string]int)
	for _, c := range repo.filter(course.QueryFilter{Scope: scope}) {
		counts[c.TeacherID]++
	}
	return counts, nil
}

func (repo *courseRepository) CreateEnrollment(_ context.Context, e course.Enrollment) (course.Enrollment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if repo.db.enrolled(e.CourseID, e.StudentID) {
		return course.Enrollment{}, course.ErrAlreadyEnrolled
	}
	repo.db.enrollments[e.ID] = &e
	return e, nil
}

func (repo *courseRepository) GetEnrollment(_ context.Context, courseID, studentID string) (course.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, e := range repo.db.enrollments {
		if e.CourseID == courseID && e.StudentID == studentID {
			return *e, nil
		}
	}
	return course.Enrollment{}, errEnrollmentNotFound
}

// enrollments returns the enrollments in scope; StudentID matches the enrollment itself.
func (repo *courseRepository) enrollments(scope access.Scope) []course.Enrollment {
	courseScope := scope
	courseScope.StudentID = ""

	enrollments := make([]course.Enrollment, 0)
	for _, e := range repo.db.enrollments {
		if scope.StudentID != "" && e.StudentID != scope.StudentID {
			continue
		}
		if repo.db.courseVisible(e.CourseID, courseScope) {
			enrollments = append(enrollments, *e)
		}
	}
	return enrollments
}

func (repo *courseRepository) QueryEnrollments(_ context.Context, scope access.Scope) ([]course.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	enrollments := repo.enrollments(scope)
	sort.Slice(enrollments, func(i, j int) bool { return enrollments[i].EnrolledAt.After(enrollments[j].EnrolledAt) })
	return enrollments, nil
}

func (repo *courseRepository) EnrollmentStats(_ context.Context, scope access.Scope) (course.EnrollmentStats, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var stats course.EnrollmentStats
	students := make(map[string]struct{})
	progress := 0
	for _, e := range repo.enrollments(scope) {
		students[e.StudentID] = struct{}{}
		stats.Enrollments++
		progress += e.Progress
		if e.CompletedAt.Valid {
			stats.Completed++
		}
	}
	stats.Students = len(students)
	if stats.Enrollments > 0 {
		stats.AverageProgress = float64(progress) / float64(stats.Enrollments)
	}
	return stats, nil
}

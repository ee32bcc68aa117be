package course

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/access"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("course")
	ErrAlreadyEnrolled = errors.New("already enrolled in this course")
)

type (
	// Repository applies access.Scope in its queries:
	// SchoolID and TeacherID match the course columns, StudentID goes through enrollments.
	Repository interface {
		CreateCourse(ctx context.Context, c Course, classIDs []string) (Course, error)
		GetCourse(ctx context.Context, id string, scope access.Scope) (Course, error)
		QueryCourses(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		CountCourses(ctx context.Context, filter QueryFilter) (int, error)
		// CountByTeacher returns {teacherID: courses} for the courses in scope.
		CountByTeacher(ctx context.Context, scope access.Scope) (map[string]int, error)

		CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		GetEnrollment(ctx context.Context, courseID, studentID string) (Enrollment, error)
		QueryEnrollments(ctx context.Context, scope access.Scope) ([]Enrollment, error)
		EnrollmentStats(ctx context.Context, scope access.Scope) (EnrollmentStats, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	now := time.Now().UTC()
	c := Course{
		ID:           uuid.NewString(),
		SchoolID:     nc.SchoolID,
		SubjectID:    null.NewString(nc.SubjectID, nc.SubjectID != ""),
		TeacherID:    nc.TeacherID,
		Title:        nc.Title,
		Description:  null.NewString(nc.Description, nc.Description != ""),
		ThumbnailURL: null.NewString(nc.ThumbnailURL, nc.ThumbnailURL != ""),
		IsPublished:  nc.IsPublished,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return svc.repo.CreateCourse(ctx, c, nc.ClassIDs)
}

func (svc *Service) GetByID(ctx context.Context, id string, scope access.Scope) (Course, error) {
	if scope.Deny {
		return Course{}, ErrNotFound
	}
	return svc.repo.GetCourse(ctx, id, scope)
}

func (svc *Service) Exists(ctx context.Context, id string, scope access.Scope) (bool, error) {
	if _, err := svc.GetByID(ctx, id, scope); err != nil {
		if core.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Query lists the courses in filter, newest first unless ordering says otherwise.
func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Course, error) {
	if filter.Scope.Deny {
		return []Course{}, nil
	}
	filter.Clean()
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	return svc.repo.QueryCourses(ctx, filter, ordering)
}

func (svc *Service) Count(ctx context.Context, filter QueryFilter) (int, error) {
	if filter.Scope.Deny {
		return 0, nil
	}
	filter.Clean()
	return svc.repo.CountCourses(ctx, filter)
}

func (svc *Service) CountByTeacher(ctx context.Context, scope access.Scope) (map[string]int, error) {
	if scope.Deny {
		return map[string]int{}, nil
	}
	return svc.repo.CountByTeacher(ctx, scope)
}

// Enroll adds student to a published course of the student's school.
func (svc *Service) Enroll(ctx context.Context, student access.Principal, courseID string) (Enrollment, error) {
	if student.Role != access.RoleStudent || student.SchoolID == "" {
		return Enrollment{}, ErrNotFound
	}

	// catalog lookup: every published course of the school, enrolled or not
	c, err := svc.repo.GetCourse(ctx, courseID, access.Scope{SchoolID: student.SchoolID})
	if err != nil {
		return Enrollment{}, err
	}
	if !c.IsPublished {
		return Enrollment{}, ErrNotFound
	}

	if _, err = svc.repo.GetEnrollment(ctx, c.ID, student.ID); err == nil {
		return Enrollment{}, core.NewValidationError(ErrAlreadyEnrolled, core.FieldError{Field: "course_id", Error: ErrAlreadyEnrolled.Error()})
	} else if !core.IsNotFound(err) {
		return Enrollment{}, errors.Wrap(err, "checking enrollment")
	}

	return svc.repo.CreateEnrollment(ctx, Enrollment{
		ID:         uuid.NewString(),
		CourseID:   c.ID,
		StudentID:  student.ID,
		EnrolledAt: time.Now().UTC(),
	})
}

func (svc *Service) Enrollments(ctx context.Context, scope access.Scope) ([]Enrollment, error) {
	if scope.Deny {
		return []Enrollment{}, nil
	}
	return svc.repo.QueryEnrollments(ctx, scope)
}

func (svc *Service) EnrollmentStats(ctx context.Context, scope access.Scope) (EnrollmentStats, error) {
	if scope.Deny {
		return EnrollmentStats{}, nil
	}
	return svc.repo.EnrollmentStats(ctx, scope)
}

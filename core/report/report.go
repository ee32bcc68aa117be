package report

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/access"
	"github.com/fatsal/lms/core/course"
	"github.com/fatsal/lms/core/learning"
	"github.com/fatsal/lms/core/profile"
	"github.com/fatsal/lms/core/school"
)

type (
	// DashboardStats are the stat cards of the dashboard. Students get the second group.
	DashboardStats struct {
		Role               access.Role `json:"role"`
		Courses            int         `json:"courses"`
		Students           int         `json:"students"`
		PendingSubmissions int         `json:"pending_submissions"`
		Discussions        int         `json:"discussions"`

		Assignments      int     `json:"assignments"`
		AverageProgress  float64 `json:"average_progress"`
		CompletedCourses int     `json:"completed_courses"`
	}

	TeacherRow struct {
		ID             string `json:"id"`
		FullName       string `json:"full_name"`
		Email          string `json:"email"`
		IdentityNumber string `json:"identity_number"`
		SchoolID       string `json:"school_id"`
		Courses        int    `json:"courses"`
	}

	TeacherReport struct {
		Teachers       []TeacherRow `json:"teachers"`
		TotalTeachers  int          `json:"total_teachers"`
		TotalCourses   int          `json:"total_courses"`
		AverageCourses float64      `json:"average_courses"`
	}

	SchoolSummary struct {
		SchoolID   string `json:"school_id"`
		SchoolName string `json:"school_name"`
		Level      string `json:"level"`
		Courses    int    `json:"courses"`
		Teachers   int    `json:"teachers"`
		Students   int    `json:"students"`
	}

	Service struct {
		profiles profile.ServiceInterface
		schools  *school.Service
		courses  *course.Service
		learning *learning.Service
	}
)

func NewService(profiles profile.ServiceInterface, schools *school.Service, courses *course.Service, learning *learning.Service) *Service {
	return &Service{profiles: profiles, schools: schools, courses: courses, learning: learning}
}

// Dashboard computes the stat cards of p within p's scope.
func (svc *Service) Dashboard(ctx context.Context, p access.Principal) (DashboardStats, error) {
	scope := access.ScopeFilter(p, access.Scope{})
	stats := DashboardStats{Role: p.Role}
	if scope.Deny {
		return stats, nil
	}

	var err error
	if stats.Courses, err = svc.courses.Count(ctx, course.QueryFilter{Scope: scope}); err != nil {
		return DashboardStats{}, errors.Wrap(err, "counting courses")
	}
	if stats.PendingSubmissions, err = svc.learning.PendingSubmissions(ctx, scope); err != nil {
		return DashboardStats{}, errors.Wrap(err, "counting pending submissions")
	}
	if stats.Discussions, err = svc.learning.CountDiscussions(ctx, scope); err != nil {
		return DashboardStats{}, errors.Wrap(err, "counting discussions")
	}

	switch p.Role {
	case access.RoleStudent:
		enr, err := svc.courses.EnrollmentStats(ctx, scope)
		if err != nil {
			return DashboardStats{}, errors.Wrap(err, "reading enrollments")
		}
		stats.Assignments = stats.PendingSubmissions
		stats.PendingSubmissions = 0
		stats.AverageProgress = round1(enr.AverageProgress)
		stats.CompletedCourses = enr.Completed
	case access.RoleTeacher:
		enr, err := svc.courses.EnrollmentStats(ctx, scope)
		if err != nil {
			return DashboardStats{}, errors.Wrap(err, "reading enrollments")
		}
		stats.Students = enr.Students
	default:
		if stats.Students, err = svc.profiles.Count(ctx, profile.QueryFilter{Scope: scope, Roles: []access.Role{access.RoleStudent}}); err != nil {
			return DashboardStats{}, errors.Wrap(err, "counting students")
		}
	}
	return stats, nil
}

// Teachers lists the teachers in p's scope with the number of courses each one owns.
func (svc *Service) Teachers(ctx context.Context, p access.Principal) (TeacherReport, error) {
	scope := access.ScopeFilter(p, access.Scope{})
	report := TeacherReport{Teachers: []TeacherRow{}}
	if scope.Deny {
		return report, nil
	}

	teachers, err := svc.profiles.Query(
		ctx,
		profile.QueryFilter{Scope: scope, Roles: []access.Role{access.RoleTeacher}},
		[]core.DBOrdering{{Field: "full_name", Ascending: true}},
	)
	if err != nil {
		return TeacherReport{}, errors.Wrap(err, "querying teachers")
	}
	counts, err := svc.courses.CountByTeacher(ctx, scope)
	if err != nil {
		return TeacherReport{}, errors.Wrap(err, "counting courses")
	}

	for _, t := range teachers {
		row := TeacherRow{
			ID:             t.ID,
			FullName:       t.FullName,
			Email:          t.Email,
			IdentityNumber: t.IdentityNumber,
			SchoolID:       t.SchoolID.String,
			Courses:        counts[t.ID],
		}
		report.Teachers = append(report.Teachers, row)
		report.TotalCourses += row.Courses
	}
	report.TotalTeachers = len(report.Teachers)
	if report.TotalTeachers > 0 {
		report.AverageCourses = round1(float64(report.TotalCourses) / float64(report.TotalTeachers))
	}
	return report, nil
}

// Schools summarizes every school in p's scope.
func (svc *Service) Schools(ctx context.Context, p access.Principal) ([]SchoolSummary, error) {
	scope := access.ScopeFilter(p, access.Scope{})
	summaries := make([]SchoolSummary, 0)
	if scope.Deny {
		return summaries, nil
	}

	schools, err := svc.schools.Query(ctx, access.Scope{SchoolID: scope.SchoolID})
	if err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}
	for _, s := range schools {
		sScope := access.ScopeFilter(p, access.Scope{SchoolID: s.ID})
		sum := SchoolSummary{SchoolID: s.ID, SchoolName: s.Name, Level: s.Level}
		if sum.Courses, err = svc.courses.Count(ctx, course.QueryFilter{Scope: sScope}); err != nil {
			return nil, errors.Wrap(err, "counting courses")
		}
		if sum.Teachers, err = svc.profiles.Count(ctx, profile.QueryFilter{Scope: sScope, Roles: []access.Role{access.RoleTeacher}}); err != nil {
			return nil, errors.Wrap(err, "counting teachers")
		}
		if sum.Students, err = svc.profiles.Count(ctx, profile.QueryFilter{Scope: sScope, Roles: []access.Role{access.RoleStudent}}); err != nil {
			return nil, errors.Wrap(err, "counting students")
		}
		summaries = append(summaries, sum)
	}
	return summaries, nil
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

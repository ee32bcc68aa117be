package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/access"
	"github.com/fatsal/lms/core/course"
)

const courseColumns = `c.id, c.school_id, c.subject_id, c.teacher_id, c.title, c.description, c.thumbnail_url, c.is_published, c.created_at, c.updated_at`

var courseOrdering = map[string]string{
	"title":      "c.title",
	"created_at": "c.created_at",
	"updated_at": "c.updated_at",
}

type courseRepository struct {
	exec core.DBExecutor
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(exec core.DBExecutor) *courseRepository {
	return &courseRepository{exec: exec}
}

func (repo courseRepository) CreateCourse(ctx context.Context, c course.Course, classIDs []string) (course.Course, error) {
	err := withTx(ctx, repo.exec, func(exec core.DBExecutor) error {
		q := `INSERT INTO courses (id, school_id, subject_id, teacher_id, title, description, thumbnail_url, is_published, created_at, updated_at)
			VALUES (:id, :school_id, :subject_id, :teacher_id, :title, :description, :thumbnail_url, :is_published, :created_at, :updated_at)`
		if _, err := exec.NamedExecContext(ctx, q, c); err != nil {
			return errors.Wrap(err, "inserting course")
		}
		for _, classID := range classIDs {
			if _, err := exec.ExecContext(ctx,
				`INSERT INTO course_classes (course_id, class_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, c.ID, classID); err != nil {
				return errors.Wrap(err, "linking course class")
			}
		}
		return nil
	})
	if err != nil {
		return course.Course{}, err
	}
	return c, nil
}

func (repo courseRepository) GetCourse(ctx context.Context, id string, scope access.Scope) (course.Course, error) {
	var c conds
	c.courseScope(scope, "c", "")
	c.add("c.id = ?", id)

	var crs course.Course
	q := repo.exec.Rebind(`SELECT ` + courseColumns + ` FROM courses c` + c.where())
	if err := repo.exec.GetContext(ctx, &crs, q, c.args...); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "getting course")
	}
	return crs, nil
}

func (repo courseRepository) filter(filter course.QueryFilter) conds {
	var c conds
	c.courseScope(filter.Scope, "c", "")
	if filter.PublishedOnly {
		c.add("c.is_published")
	}
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		c.add("(c.title ILIKE ? OR c.description ILIKE ?)", val, val)
	}
	return c
}

func (repo courseRepository) QueryCourses(ctx context.Context, filter course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	c := repo.filter(filter)
	courses := make([]course.Course, 0)
	q := repo.exec.Rebind(`SELECT ` + courseColumns + ` FROM courses c` + c.where() + orderBy(ordering, courseOrdering))
	if err := repo.exec.SelectContext(ctx, &courses, q, c.args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	return courses, nil
}

func (repo courseRepository) CountCourses(ctx context.Context, filter course.QueryFilter) (int, error) {
	c := repo.filter(filter)
	var n int
	if err := repo.exec.GetContext(ctx, &n, repo.exec.Rebind(`SELECT COUNT(*) FROM courses c`+c.where()), c.args...); err != nil {
		return 0, errors.Wrap(err, "counting courses")
	}
	return n, nil
}

func (repo courseRepository) CountByTeacher(ctx context.Context, scope access.Scope) (map[string]int, error) {
	var c conds
	c.courseScope(scope, "c", "")

	var rows []struct {
		TeacherID string `db:"teacher_id"`
		Courses   int    `db:"courses"`
	}
	q := repo.exec.Rebind(`SELECT c.teacher_id, COUNT(*) AS courses FROM courses c` + c.where() + ` GROUP BY c.teacher_id`)
	if err := repo.exec.SelectContext(ctx, &rows, q, c.args...); err != nil {
		return nil, errors.Wrap(err, "counting courses by teacher")
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.TeacherID] = r.Courses
	}
	return counts, nil
}

func (repo courseRepository) CreateEnrollment(ctx context.Context, e course.Enrollment) (course.Enrollment, error) {
	q := `INSERT INTO enrollments (id, course_id, student_id, progress, enrolled_at, completed_at)
		VALUES (:id, :course_id, :student_id, :progress, :enrolled_at, :completed_at)`
	if _, err := repo.exec.NamedExecContext(ctx, q, e); err != nil {
		if isUniqueViolation(err, "") {
			return course.Enrollment{}, course.ErrAlreadyEnrolled
		}
		return course.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return e, nil
}

func (repo courseRepository) GetEnrollment(ctx context.Context, courseID, studentID string) (course.Enrollment, error) {
	var e course.Enrollment
	q := `SELECT id, course_id, student_id, progress, enrolled_at, completed_at
		FROM enrollments WHERE course_id = $1 AND student_id = $2`
	if err := repo.exec.GetContext(ctx, &e, q, courseID, studentID); err != nil {
		return course.Enrollment{}, trapNoRowsErr(err, core.NewNotFoundError("enrollment"), "getting enrollment")
	}
	return e, nil
}

func (repo courseRepository) QueryEnrollments(ctx context.Context, scope access.Scope) ([]course.Enrollment, error) {
	var c conds
	c.courseScope(scope, "c", "e.student_id")

	enrollments := make([]course.Enrollment, 0)
	q := repo.exec.Rebind(`SELECT e.id, e.course_id, e.student_id, e.progress, e.enrolled_at, e.completed_at
		FROM enrollments e JOIN courses c ON c.id = e.course_id` + c.where() + ` ORDER BY e.enrolled_at DESC`)
	if err := repo.exec.SelectContext(ctx, &enrollments, q, c.args...); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	return enrollments, nil
}

func (repo courseRepository) EnrollmentStats(ctx context.Context, scope access.Scope) (course.EnrollmentStats, error) {
	var c conds
	c.courseScope(scope, "c", "e.student_id")

	var stats course.EnrollmentStats
	q := repo.exec.Rebind(`SELECT COUNT(DISTINCT e.student_id) AS students, COUNT(*) AS enrollments,
		COUNT(e.completed_at) AS completed, COALESCE(AVG(e.progress), 0) AS average_progress
		FROM enrollments e JOIN courses c ON c.id = e.course_id` + c.where())
	if err := repo.exec.GetContext(ctx, &stats, q, c.args...); err != nil {
		return course.EnrollmentStats{}, errors.Wrap(err, "reading enrollment stats")
	}
	return stats, nil
}

// Package sqlxrepos implements the core repositories on PostgreSQL through sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/access"
)

const uniqueViolation = "23505"

// conds collects AND-ed WHERE conditions written with ? bindvars.
type conds struct {
	clauses []string
	args    []interface{}
}

func (c *conds) add(clause string, args ...interface{}) {
	c.clauses = append(c.clauses, clause)
	c.args = append(c.args, args...)
}

func (c conds) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

// courseScope restricts rows to the courses visible in scope. course is the alias of the
// courses table. When studentCol is set, StudentID matches it directly instead of going
// through the enrollments of the course.
func (c *conds) courseScope(scope access.Scope, course, studentCol string) {
	if scope.Deny {
		c.add("FALSE")
		return
	}
	if scope.SchoolID != "" {
		c.add(course+".school_id = ?", scope.SchoolID)
	}
	if scope.TeacherID != "" {
		c.add(course+".teacher_id = ?", scope.TeacherID)
	}
	if scope.StudentID != "" {
		if studentCol != "" {
			c.add(studentCol+" = ?", scope.StudentID)
		} else {
			c.add("EXISTS (SELECT 1 FROM enrollments se WHERE se.course_id = "+course+".id AND se.student_id = ?)", scope.StudentID)
		}
	}
}

// bind expands slice args and rebinds the query for the driver of exec.
func bind(exec core.DBExecutor, query string, args []interface{}) (string, []interface{}, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, errors.Wrap(err, "binding query")
	}
	return exec.Rebind(query), args, nil
}

// orderBy keeps the orderings on allowed columns.
func orderBy(ordering []core.DBOrdering, allowed map[string]string) string {
	list := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if col, ok := allowed[ord.Field]; ok {
			list = append(list, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	if len(list) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(list, ", ")
}

// trapNoRowsErr maps "no rows" to notFound.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return constraint == "" || pqErr.Constraint == constraint
	}
	return false
}

func checkAffected(res sql.Result, notFound error, msg string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, msg)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// withTx runs fn in a transaction, unless exec is already one.
func withTx(ctx context.Context, exec core.DBExecutor, fn func(core.DBExecutor) error) error {
	db, ok := exec.(core.DB)
	if !ok {
		return fn(exec)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

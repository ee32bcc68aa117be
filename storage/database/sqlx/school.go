package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/access"
	"github.com/fatsal/lms/core/school"
)

const schoolColumns = `id, name, level, address, created_at, updated_at`

type schoolRepository struct {
	exec core.DBExecutor
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(exec core.DBExecutor) *schoolRepository {
	return &schoolRepository{exec: exec}
}

func schoolScope(scope access.Scope) conds {
	var c conds
	if scope.Deny {
		c.add("FALSE")
	} else if scope.SchoolID != "" {
		c.add("id = ?", scope.SchoolID)
	}
	return c
}

func (repo schoolRepository) CreateSchool(ctx context.Context, s school.School) (school.School, error) {
	q := `INSERT INTO schools (` + schoolColumns + `) VALUES (:id, :name, :level, :address, :created_at, :updated_at)`
	if _, err := repo.exec.NamedExecContext(ctx, q, s); err != nil {
		return school.School{}, errors.Wrap(err, "inserting school")
	}
	return s, nil
}

func (repo schoolRepository) GetSchool(ctx context.Context, id string, scope access.Scope) (school.School, error) {
	c := schoolScope(scope)
	c.add("id = ?", id)

	var s school.School
	q := repo.exec.Rebind(`SELECT ` + schoolColumns + ` FROM schools` + c.where())
	if err := repo.exec.GetContext(ctx, &s, q, c.args...); err != nil {
		return school.School{}, trapNoRowsErr(err, school.ErrNotFound, "getting school")
	}
	return s, nil
}

func (repo schoolRepository) QuerySchools(ctx context.Context, scope access.Scope) ([]school.School, error) {
	c := schoolScope(scope)
	schools := make([]school.School, 0)
	q := repo.exec.Rebind(`SELECT ` + schoolColumns + ` FROM schools` + c.where() + ` ORDER BY name ASC`)
	if err := repo.exec.SelectContext(ctx, &schools, q, c.args...); err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}
	return schools, nil
}

func (repo schoolRepository) CountSchools(ctx context.Context, scope access.Scope) (int, error) {
	c := schoolScope(scope)
	var n int
	if err := repo.exec.GetContext(ctx, &n, repo.exec.Rebind(`SELECT COUNT(*) FROM schools`+c.where()), c.args...); err != nil {
		return 0, errors.Wrap(err, "counting schools")
	}
	return n, nil
}

package inmemdb

import (
	"context"
	"sort"

	"github.com/fatsal/lms/core/access"
	"github.com/fatsal/lms/core/school"
)

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) *schoolRepository {
	return &schoolRepository{db: db}
}

func schoolVisible(s *school.School, scope access.Scope) bool {
	return !scope.Deny && (scope.SchoolID == "" || s.ID == scope.SchoolID)
}

func (repo *schoolRepository) CreateSchool(_ context.Context, s school.School) (school.School, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.schools[s.ID] = &s
	return s, nil
}

func (repo *schoolRepository) GetSchool(_ context.Context, id string, scope access.Scope) (school.School, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.schools[id]; ok && schoolVisible(s, scope) {
		return *s, nil
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) QuerySchools(_ context.Context, scope access.Scope) ([]school.School, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	schools := make([]school.School, 0)
	for _, s := range repo.db.schools {
		if schoolVisible(s, scope) {
			schools = append(schools, *s)
		}
	}
	sort.Slice(schools, func(i, j int) bool { return schools[i].Name < schools[j].Name })
	return schools, nil
}

func (repo *schoolRepository) CountSchools(ctx context.Context, scope access.Scope) (int, error) {
	schools, err := repo.QuerySchools(ctx, scope)
	return len(schools), err
}

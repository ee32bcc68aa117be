package school

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/access"
)

var ErrNotFound = core.NewNotFoundError("school")

// Levels of the schools run by the foundation.
var Levels = []string{"MA", "MTs", "MI", "RA", "TK"}

type (
	School struct {
		ID        string      `json:"id" db:"id"`
		Name      string      `json:"name" db:"name"`
		Level     string      `json:"level" db:"level"`
		Address   null.String `json:"address" db:"address"`
		CreatedAt time.Time   `json:"created_at" db:"created_at"`
		UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
	}

	NewSchool struct {
		Name    string `json:"name" validate:"required,min=3"`
		Level   string `json:"level" validate:"required,oneof=MA MTs MI RA TK"`
		Address string `json:"address" validate:"omitempty,max=255"`
	}

	// Repository filters on scope.SchoolID and scope.Deny.
	Repository interface {
		CreateSchool(ctx context.Context, s School) (School, error)
		GetSchool(ctx context.Context, id string, scope access.Scope) (School, error)
		QuerySchools(ctx context.Context, scope access.Scope) ([]School, error)
		CountSchools(ctx context.Context, scope access.Scope) (int, error)
	}

	Service struct {
		repo Repository
	}
)

func (ns *NewSchool) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Level = core.CleanString(ns.Level)
	ns.Address = core.CleanString(ns.Address)
	return validate.Struct(ns)
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, ns NewSchool) (School, error) {
	now := time.Now().UTC()
	return svc.repo.CreateSchool(ctx, School{
		ID:        uuid.NewString(),
		Name:      ns.Name,
		Level:     ns.Level,
		Address:   null.NewString(ns.Address, ns.Address != ""),
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *Service) GetByID(ctx context.Context, id string, scope access.Scope) (School, error) {
	if scope.Deny {
		return School{}, ErrNotFound
	}
	return svc.repo.GetSchool(ctx, id, scope)
}

// Query lists the schools ordered by name.
func (svc *Service) Query(ctx context.Context, scope access.Scope) ([]School, error) {
	if scope.Deny {
		return []School{}, nil
	}
	return svc.repo.QuerySchools(ctx, scope)
}

func (svc *Service) Count(ctx context.Context, scope access.Scope) (int, error) {
	if scope.Deny {
		return 0, nil
	}
	return svc.repo.CountSchools(ctx, scope)
}

// Names maps school ids to names, for listings that show the school of each row.
func (svc *Service) Names(ctx context.Context, scope access.Scope) (map[string]string, error) {
	schools, err := svc.Query(ctx, scope)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(schools))
	for _, s := range schools {
		names[s.ID] = s.Name
	}
	return names, nil
}

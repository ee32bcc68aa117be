package profile

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/fatsal/lms/core"
)

var (
	// errors
	ErrNotFound             = core.NewNotFoundError("profile")
	ErrEmailExists          = errors.New("a profile with this email already exists")
	ErrIdentityNumberExists = errors.New("a profile with this identity number already exists")
)

type (
	Repository interface {
		CheckUniqueness(ctx context.Context, identityNumber, email string, excludedIDs ...string) error
		CreateProfile(ctx context.Context, p Profile) (Profile, error)
		GetProfile(ctx context.Context, id string) (Profile, error)
		GetProfileByIdentityNumber(ctx context.Context, identityNumber string) (Profile, error)
		GetProfileByEmail(ctx context.Context, email string) (Profile, error)
		// QueryProfiles honors filter.Scope.SchoolID and Deny; ownership fields do not apply to profiles.
		QueryProfiles(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Profile, error)
		CountProfiles(ctx context.Context, filter QueryFilter) (int, error)
		UpdateProfile(ctx context.Context, p Profile) (Profile, error)
		DeleteProfile(ctx context.Context, id string) error
	}

	ServiceInterface interface {
		CheckUniqueness(identityNumber, email string, excluded ...Profile) error
		Create(ctx context.Context, id string, np NewProfile) (Profile, error)
		GetByID(ctx context.Context, id string) (Profile, error)
		GetByIdentityNumber(ctx context.Context, identityNumber string) (Profile, error)
		GetByEmail(ctx context.Context, email string) (Profile, error)
		Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Profile, error)
		Count(ctx context.Context, filter QueryFilter) (int, error)
		Update(ctx context.Context, orig Profile, up UpdateProfile) (Profile, error)
		Delete(ctx context.Context, id string) error
	}

	service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository) ServiceInterface {
	return &service{repo: repo}
}

func (svc *service) CheckUniqueness(identityNumber, email string, excluded ...Profile) error {
	ids := make([]string, 0, len(excluded))
	for _, p := range excluded {
		ids = append(ids, p.ID)
	}
	if err := svc.repo.CheckUniqueness(context.Background(), identityNumber, email, ids...); err != nil {
		var field string
		switch err {
		case ErrIdentityNumberExists:
			field = "identity_number"
		case ErrEmailExists:
			field = "email"
		default:
			return errors.Wrap(err, "checking uniqueness")
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// Create stores the profile of the auth identity id.
func (svc *service) Create(ctx context.Context, id string, np NewProfile) (Profile, error) {
	now := time.Now().UTC()
	p := Profile{
		ID:             id,
		Email:          np.Email,
		FullName:       np.FullName,
		IdentityNumber: np.IdentityNumber,
		Role:           np.Role,
		SchoolID:       null.NewString(np.SchoolID, np.SchoolID != ""),
		Phone:          null.NewString(np.Phone, np.Phone != ""),
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return svc.repo.CreateProfile(ctx, p)
}

func (svc *service) GetByID(ctx context.Context, id string) (Profile, error) {
	return svc.repo.GetProfile(ctx, id)
}

func (svc *service) GetByIdentityNumber(ctx context.Context, identityNumber string) (Profile, error) {
	return svc.repo.GetProfileByIdentityNumber(ctx, core.CleanString(identityNumber))
}

func (svc *service) GetByEmail(ctx context.Context, email string) (Profile, error) {
	return svc.repo.GetProfileByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Profile, error) {
	if filter.Scope.Deny {
		return []Profile{}, nil
	}
	filter.Clean()
	return svc.repo.QueryProfiles(ctx, filter, ordering)
}

func (svc *service) Count(ctx context.Context, filter QueryFilter) (int, error) {
	if filter.Scope.Deny {
		return 0, nil
	}
	filter.Clean()
	return svc.repo.CountProfiles(ctx, filter)
}

// Update applies a validated patch. The password part is handled by the auth backend.
func (svc *service) Update(ctx context.Context, orig Profile, up UpdateProfile) (Profile, error) {
	p := orig
	p.FullName = up.FullName
	if up.Phone != nil {
		p.Phone = null.NewString(*up.Phone, *up.Phone != "")
	}
	if up.SchoolID != nil {
		p.SchoolID = null.NewString(*up.SchoolID, *up.SchoolID != "")
	}
	if up.IsActive != nil {
		p.IsActive = *up.IsActive
	}
	p.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateProfile(ctx, p)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteProfile(ctx, id)
}

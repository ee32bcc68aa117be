package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/profile"
)

const profileColumns = `id, email, full_name, identity_number, role, school_id, phone, is_active, created_at, updated_at`

var profileOrdering = map[string]string{
	"full_name":       "full_name",
	"email":           "email",
	"identity_number": "identity_number",
	"role":            "role",
	"created_at":      "created_at",
}

type profileRepository struct {
	exec core.DBExecutor
}

var _ profile.Repository = (*profileRepository)(nil) // interface compliance check

func NewProfileRepository(exec core.DBExecutor) *profileRepository {
	return &profileRepository{exec: exec}
}

func (repo profileRepository) CheckUniqueness(ctx context.Context, identityNumber, email string, excludedIDs ...string) error {
	var c conds
	c.add("(identity_number = ? OR email = ?)", identityNumber, email)
	if len(excludedIDs) > 0 {
		c.add("id NOT IN (?)", excludedIDs)
	}
	q, args, err := bind(repo.exec, `SELECT identity_number, email FROM profiles`+c.where(), c.args)
	if err != nil {
		return err
	}

	var rows []struct {
		IdentityNumber string `db:"identity_number"`
		Email          string `db:"email"`
	}
	if err = repo.exec.SelectContext(ctx, &rows, q, args...); err != nil {
		return errors.Wrap(err, "checking profile uniqueness")
	}
	for _, r := range rows {
		if r.IdentityNumber == identityNumber {
			return profile.ErrIdentityNumberExists
		}
	}
	if len(rows) > 0 {
		return profile.ErrEmailExists
	}
	return nil
}

func (repo profileRepository) CreateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	q := `INSERT INTO profiles (` + profileColumns + `)
		VALUES (:id, :email, :full_name, :identity_number, :role, :school_id, :phone, :is_active, :created_at, :updated_at)`
	if _, err := repo.exec.NamedExecContext(ctx, q, p); err != nil {
		return profile.Profile{}, repo.trapUniqueErr(err, "inserting profile")
	}
	return p, nil
}

func (repo profileRepository) get(ctx context.Context, col, val string) (profile.Profile, error) {
	var p profile.Profile
	q := `SELECT ` + profileColumns + ` FROM profiles WHERE ` + col + ` = $1`
	if err := repo.exec.GetContext(ctx, &p, q, val); err != nil {
		return profile.Profile{}, trapNoRowsErr(err, profile.ErrNotFound, "getting profile by "+col)
	}
	return p, nil
}

func (repo profileRepository) GetProfile(ctx context.Context, id string) (profile.Profile, error) {
	return repo.get(ctx, "id", id)
}

func (repo profileRepository) GetProfileByIdentityNumber(ctx context.Context, identityNumber string) (profile.Profile, error) {
	return repo.get(ctx, "identity_number", identityNumber)
}

func (repo profileRepository) GetProfileByEmail(ctx context.Context, email string) (profile.Profile, error) {
	return repo.get(ctx, "email", email)
}

func (repo profileRepository) filter(filter profile.QueryFilter) conds {
	var c conds
	if filter.Scope.Deny {
		c.add("FALSE")
		return c
	}
	if filter.Scope.SchoolID != "" {
		c.add("school_id = ?", filter.Scope.SchoolID)
	}
	if len(filter.Roles) > 0 {
		roles := make([]string, 0, len(filter.Roles))
		for _, r := range filter.Roles {
			roles = append(roles, string(r))
		}
		c.add("role IN (?)", roles)
	}
	// profiles with FullName, Email or IdentityNumber matching the search keyword
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		c.add("(full_name ILIKE ? OR email ILIKE ? OR identity_number ILIKE ?)", val, val, val)
	}
	return c
}

func (repo profileRepository) QueryProfiles(ctx context.Context, filter profile.QueryFilter, ordering []core.DBOrdering) ([]profile.Profile, error) {
	c := repo.filter(filter)
	q, args, err := bind(repo.exec, `SELECT `+profileColumns+` FROM profiles`+c.where()+orderBy(ordering, profileOrdering), c.args)
	if err != nil {
		return nil, err
	}

	profiles := make([]profile.Profile, 0)
	if err = repo.exec.SelectContext(ctx, &profiles, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying profiles")
	}
	return profiles, nil
}

func (repo profileRepository) CountProfiles(ctx context.Context, filter profile.QueryFilter) (int, error) {
	c := repo.filter(filter)
	q, args, err := bind(repo.exec, `SELECT COUNT(*) FROM profiles`+c.where(), c.args)
	if err != nil {
		return 0, err
	}

	var n int
	if err = repo.exec.GetContext(ctx, &n, q, args...); err != nil {
		return 0, errors.Wrap(err, "counting profiles")
	}
	return n, nil
}

func (repo profileRepository) UpdateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	q := `UPDATE profiles SET email = :email, full_name = :full_name, identity_number = :identity_number,
		role = :role, school_id = :school_id, phone = :phone, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.exec.NamedExecContext(ctx, q, p)
	if err != nil {
		return profile.Profile{}, repo.trapUniqueErr(err, "updating profile")
	}
	if err = checkAffected(res, profile.ErrNotFound, "updating profile"); err != nil {
		return profile.Profile{}, err
	}
	return p, nil
}

func (repo profileRepository) DeleteProfile(ctx context.Context, id string) error {
	_, err := repo.exec.ExecContext(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	return errors.Wrap(err, "deleting profile")
}

func (repo profileRepository) trapUniqueErr(err error, msg string) error {
	switch {
	case isUniqueViolation(err, "profiles_identity_number_key"):
		return profile.ErrIdentityNumberExists
	case isUniqueViolation(err, "profiles_email_key"):
		return profile.ErrEmailExists
	}
	return errors.Wrap(err, msg)
}

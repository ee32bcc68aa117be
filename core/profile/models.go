package profile

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/access"
)

// Profile is the application user record, distinct from the raw auth identity.
type Profile struct {
	ID             string      `json:"id" db:"id"`
	Email          string      `json:"email" db:"email"`
	FullName       string      `json:"full_name" db:"full_name"`
	IdentityNumber string      `json:"identity_number" db:"identity_number"`
	Role           access.Role `json:"role" db:"role"`
	SchoolID       null.String `json:"school_id" db:"school_id"`
	Phone          null.String `json:"phone" db:"phone"`
	IsActive       bool        `json:"is_active" db:"is_active"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"` // UTC
	UpdatedAt      time.Time   `json:"updated_at" db:"updated_at"` // UTC
}

func (p Profile) Principal() access.Principal {
	return access.Principal{ID: p.ID, Role: p.Role, SchoolID: p.SchoolID.String}
}

func (p Profile) Capabilities() access.Capabilities {
	return access.CapabilitiesFor(p.Role)
}

// NewProfile contains information needed to create a new Profile and its credential.
type NewProfile struct {
	FullName        string      `json:"full_name" validate:"required,min=3"`
	Email           string      `json:"email" validate:"required,email"`
	IdentityNumber  string      `json:"identity_number" validate:"required,max=32,identity_number"`
	Role            access.Role `json:"role" validate:"required,role"`
	SchoolID        string      `json:"school_id" validate:"omitempty,uuid"`
	Phone           string      `json:"phone" validate:"omitempty,max=20"`
	Password        string      `json:"password" validate:"required"`
	PasswordConfirm string      `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (np *NewProfile) Validate(validate *validator.Validate, svc ServiceInterface) error {
	np.FullName = core.CleanString(np.FullName)
	np.Email = core.CleanString(np.Email, true /* lower */)
	np.IdentityNumber = core.CleanString(np.IdentityNumber)
	np.SchoolID = core.CleanString(np.SchoolID)
	np.Phone = core.CleanString(np.Phone)

	if err := validate.Struct(np); err != nil {
		return err
	}
	return svc.CheckUniqueness(np.IdentityNumber, np.Email)
}

// NewStaff is the administrative staff form. The password is set by the server.
type NewStaff struct {
	FullName       string `json:"full_name" validate:"required,min=3"`
	Email          string `json:"email" validate:"required,email"`
	IdentityNumber string `json:"identity_number" validate:"required,max=32,identity_number"`
	Phone          string `json:"phone" validate:"omitempty,max=20"`
	SchoolID       string `json:"school_id" validate:"required,uuid"`
}

func (ns *NewStaff) Validate(validate *validator.Validate, svc ServiceInterface) error {
	ns.FullName = core.CleanString(ns.FullName)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.IdentityNumber = core.CleanString(ns.IdentityNumber)
	ns.Phone = core.CleanString(ns.Phone)
	ns.SchoolID = core.CleanString(ns.SchoolID)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	return svc.CheckUniqueness(ns.IdentityNumber, ns.Email)
}

// Profile turns the form into a NewProfile holding the given temporary password.
func (ns NewStaff) Profile(tmpPassword string) NewProfile {
	return NewProfile{
		FullName:        ns.FullName,
		Email:           ns.Email,
		IdentityNumber:  ns.IdentityNumber,
		Role:            access.RoleStaff,
		SchoolID:        ns.SchoolID,
		Phone:           ns.Phone,
		Password:        tmpPassword,
		PasswordConfirm: tmpPassword,
	}
}

// UpdateProfile defines what may be provided to modify an existing Profile.
// Empty strings keep the current value; SchoolID and IsActive are administrative.
type UpdateProfile struct {
	FullName        string  `json:"full_name" validate:"omitempty,min=3"`
	Phone           *string `json:"phone" validate:"omitempty,max=20"`
	SchoolID        *string `json:"school_id" validate:"omitempty,uuid"`
	IsActive        *bool   `json:"is_active"`
	Password        string  `json:"password"`
	PasswordConfirm string  `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (up *UpdateProfile) Validate(orig Profile, validate *validator.Validate) error {
	if name := core.CleanString(up.FullName); name != "" {
		up.FullName = name
	} else {
		up.FullName = orig.FullName
	}
	if up.Phone != nil {
		phone := core.CleanString(*up.Phone)
		up.Phone = &phone
	}
	if up.SchoolID != nil {
		sid := core.CleanString(*up.SchoolID)
		up.SchoolID = &sid
	}
	if err := validate.Struct(up); err != nil {
		return err
	}
	if up.Password != "" {
		if tag := checkPassword(up.Password, up.FullName, orig.IdentityNumber, orig.Email); tag != "" {
			return core.NewValidationError(nil, core.FieldError{Field: "password", Error: passwordTexts[tag]})
		}
	}
	return nil
}

// IsAdministrative reports whether the patch touches fields only managers may change.
func (up UpdateProfile) IsAdministrative() bool {
	return up.SchoolID != nil || up.IsActive != nil
}

type QueryFilter struct {
	Scope  access.Scope  `query:"-"`
	Roles  []access.Role `query:"role"`
	Search string        `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

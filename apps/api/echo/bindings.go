package echoapi

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/access"
	"github.com/fatsal/lms/core/auth"
	"github.com/fatsal/lms/core/profile"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads `?ordering=title,-created_at`. Repositories drop fields they do not know.
func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field != "" {
			ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
		}
	}
}

type (
	// Page is the payload of every dashboard page: the caller's menu and the page data.
	Page struct {
		Menu    []access.MenuItem `json:"menu"`
		Profile profile.Profile   `json:"profile"`
		Data    interface{}       `json:"data"`
	}

	LoginRequest struct {
		IdentityNumber string `json:"identity_number" form:"identity_number" validate:"required"`
		Password       string `json:"password" form:"password" validate:"required"`
	}

	LoginResponse struct {
		Session  auth.Session      `json:"session"`
		Profile  profile.Profile   `json:"profile"`
		Menu     []access.MenuItem `json:"menu"`
		Redirect string            `json:"redirect"`
	}

	// LoginPage carries the outbound links shown next to the login form.
	LoginPage struct {
		AppName    string `json:"app_name"`
		SiakadURL  string `json:"siakad_url"`
		WebsiteURL string `json:"website_url"`
	}

	SessionResponse struct {
		Profile      profile.Profile     `json:"profile"`
		Capabilities []access.Capability `json:"capabilities"`
		Menu         []access.MenuItem   `json:"menu"`
	}

	RefreshRequest struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	PasswordResetConfirmRequest struct {
		UID             string `json:"uid" validate:"required"`
		Token           string `json:"token" validate:"required"`
		Password        string `json:"password" validate:"required"`
		PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	}

	// StaffPatch is what an administrator may change on a staff profile.
	StaffPatch struct {
		FullName string  `json:"full_name"`
		Phone    *string `json:"phone"`
		SchoolID *string `json:"school_id"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.IdentityNumber = core.CleanString(lr.IdentityNumber)
	return validate.Struct(lr)
}

func (rr *RefreshRequest) Validate(validate *validator.Validate) error {
	rr.RefreshToken = core.CleanString(rr.RefreshToken)
	return validate.Struct(rr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}

func (pr *PasswordResetConfirmRequest) Validate(validate *validator.Validate) error {
	pr.UID = core.CleanString(pr.UID)
	pr.Token = core.CleanString(pr.Token)
	return validate.Struct(pr)
}

func (sp StaffPatch) UpdateProfile() profile.UpdateProfile {
	return profile.UpdateProfile{FullName: sp.FullName, Phone: sp.Phone, SchoolID: sp.SchoolID}
}

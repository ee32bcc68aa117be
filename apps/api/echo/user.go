package echoapi

import (
	"net/http"
	"net/mail"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/access"
	"github.com/fatsal/lms/core/auth"
	"github.com/fatsal/lms/core/course"
	"github.com/fatsal/lms/core/profile"
	"github.com/fatsal/lms/core/school"
)

var errSchoolNotFound = core.NewValidationError(school.ErrNotFound, core.FieldError{Field: "school_id", Error: "school not found"})

// StaffRow is a staff profile with the name of its school.
type StaffRow struct {
	profile.Profile
	SchoolName string `json:"school_name"`
}

type userApi struct {
	conf     *core.Config
	logger   core.Logger
	provider *auth.Provider
	svc      profile.ServiceInterface
	schools  *school.Service
	courses  *course.Service
	mailer   core.EmailService
	validate *validator.Validate
}

func registerUserAPI(dash *echo.Group, deps ServerDeps) {
	api := userApi{
		conf:     deps.Conf,
		logger:   deps.Logger,
		provider: deps.Provider,
		svc:      deps.ProfileSvc,
		schools:  deps.SchoolSvc,
		courses:  deps.CourseSvc,
		mailer:   deps.Mailer,
		validate: deps.Validate,
	}

	dash.GET("/settings", api.retrieveSettings)
	dash.PUT("/settings", api.updateSettings)

	dash.GET("/admin/staff", api.queryStaff)
	dash.POST("/admin/staff", api.createStaff)
	dash.PUT("/admin/staff/:id", api.updateStaff)
	dash.DELETE("/admin/staff/:id", api.deleteStaff)

	dash.GET("/staff/students", api.queryStudents)
	dash.GET("/students", api.myStudents)
}

// Handlers

func (api *userApi) retrieveSettings(ctx echo.Context) error {
	return render(ctx, http.StatusOK, *getSessionContext(ctx).Profile)
}

func (api *userApi) updateSettings(ctx echo.Context) error {
	sc := getSessionContext(ctx)

	var data profile.UpdateProfile
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	// school and activation are managed from the staff pages
	if data.IsAdministrative() {
		return errForbidden
	}
	if err := data.Validate(*sc.Profile, api.validate); err != nil {
		return err
	}

	prof, err := api.provider.UpdateUser(ctx.Request().Context(), sc, *sc.Profile, data)
	if err != nil {
		return errors.Wrap(err, "updating settings")
	}
	return render(ctx, http.StatusOK, prof)
}

func (api *userApi) queryStaff(ctx echo.Context) error {
	sc := getSessionContext(ctx)
	scope := sc.Scope(access.Scope{})
	rctx := ctx.Request().Context()

	filter := profile.QueryFilter{}
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Scope = scope
	filter.Roles = []access.Role{access.RolePrincipal, access.RoleStaff}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	staff, err := api.svc.Query(rctx, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying staff")
	}
	names, err := api.schools.Names(rctx, scope)
	if err != nil {
		return errors.Wrap(err, "reading school names")
	}

	rows := make([]StaffRow, 0, len(staff))
	for _, p := range staff {
		rows = append(rows, StaffRow{Profile: p, SchoolName: names[p.SchoolID.String]})
	}
	return render(ctx, http.StatusOK, rows)
}

// createStaff registers a staff member with the default temporary password and mails it to them.
func (api *userApi) createStaff(ctx echo.Context) error {
	sc := getSessionContext(ctx)
	rctx := ctx.Request().Context()

	var data profile.NewStaff
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStaff")
	}
	if !sc.Profile.Role.CanAssign(access.RoleStaff) {
		return errForbidden
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}
	if err := api.checkSchool(ctx, sc, data.SchoolID); err != nil {
		return err
	}

	pwd := api.conf.Session.DefaultStaffPassword
	prof, err := api.provider.SignUp(rctx, data.Profile(pwd))
	if err != nil {
		return errors.Wrap(err, "creating staff")
	}

	if api.mailer != nil {
		api.mailer.SendMessages(core.NewEmailMessage(
			api.conf,
			mail.Address{Name: prof.FullName, Address: prof.Email},
			"Akun staff "+api.conf.AppName,
			"staff_welcome",
			map[string]string{
				"FullName":       prof.FullName,
				"IdentityNumber": prof.IdentityNumber,
				"Password":       pwd,
			},
		))
	}
	return render(ctx, http.StatusCreated, prof)
}

func (api *userApi) updateStaff(ctx echo.Context) error {
	sc := getSessionContext(ctx)

	target, err := api.findStaff(ctx, sc)
	if err != nil {
		return err
	}

	var data StaffPatch
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StaffPatch")
	}
	up := data.UpdateProfile()
	if err = up.Validate(target, api.validate); err != nil {
		return err
	}
	if up.SchoolID != nil {
		if *up.SchoolID == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "school_id", Error: "this field is required"})
		}
		if err = api.checkSchool(ctx, sc, *up.SchoolID); err != nil {
			return err
		}
	}

	prof, err := api.provider.UpdateUser(ctx.Request().Context(), sc, target, up)
	if err != nil {
		return errors.Wrap(err, "updating staff")
	}
	return render(ctx, http.StatusOK, prof)
}

// deleteStaff signs a staff member out everywhere and removes the account.
func (api *userApi) deleteStaff(ctx echo.Context) error {
	sc := getSessionContext(ctx)

	target, err := api.findStaff(ctx, sc)
	if err != nil {
		return err
	}
	if err = api.provider.DeleteUser(ctx.Request().Context(), target.ID); err != nil {
		return errors.Wrap(err, "deleting staff")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// findStaff loads the staff or principal profile named by the id param.
// Profiles of other roles, of other schools, or above the caller's rank are not found.
func (api *userApi) findStaff(ctx echo.Context, sc *auth.SessionContext) (profile.Profile, error) {
	target, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if core.IsNotFound(err) {
			return profile.Profile{}, errHttpNotFound
		}
		return profile.Profile{}, errors.Wrap(err, "finding staff")
	}
	if !(target.Role == access.RoleStaff || target.Role == access.RolePrincipal) {
		return profile.Profile{}, errHttpNotFound
	}
	if scope := sc.Scope(access.Scope{}); scope.SchoolID != "" && scope.SchoolID != target.SchoolID.String {
		return profile.Profile{}, errHttpNotFound
	}
	if !sc.Profile.Role.CanAssign(target.Role) {
		return profile.Profile{}, errForbidden
	}
	return target, nil
}

// queryStudents lists the student profiles of the caller's school.
func (api *userApi) queryStudents(ctx echo.Context) error {
	sc := getSessionContext(ctx)

	filter := profile.QueryFilter{}
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Scope = sc.Scope(access.Scope{})
	filter.Roles = []access.Role{access.RoleStudent}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	if len(ordering.Orderings) == 0 {
		ordering.Orderings = []core.DBOrdering{{Field: "full_name", Ascending: true}}
	}

	students, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return render(ctx, http.StatusOK, students)
}

// myStudents lists the students enrolled in a teacher's courses.
// Other roles get the students of their school.
func (api *userApi) myStudents(ctx echo.Context) error {
	sc := getSessionContext(ctx)
	if sc.Profile.Role != access.RoleTeacher {
		return api.queryStudents(ctx)
	}
	rctx := ctx.Request().Context()

	enrollments, err := api.courses.Enrollments(rctx, sc.Scope(access.Scope{}))
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}

	seen := make(map[string]bool, len(enrollments))
	students := make([]profile.Profile, 0, len(enrollments))
	for _, e := range enrollments {
		if seen[e.StudentID] {
			continue
		}
		seen[e.StudentID] = true

		p, err := api.svc.GetByID(rctx, e.StudentID)
		if err != nil {
			if core.IsNotFound(err) {
				continue
			}
			return errors.Wrap(err, "finding student")
		}
		students = append(students, p)
	}
	sort.Slice(students, func(i, j int) bool { return students[i].FullName < students[j].FullName })
	return render(ctx, http.StatusOK, students)
}

// checkSchool fails with a field error unless schoolID is visible to the caller.
func (api *userApi) checkSchool(ctx echo.Context, sc *auth.SessionContext, schoolID string) error {
	if _, err := api.schools.GetByID(ctx.Request().Context(), schoolID, sc.Scope(access.Scope{})); err != nil {
		if core.IsNotFound(err) {
			return errSchoolNotFound
		}
		return errors.Wrap(err, "finding school")
	}
	return nil
}

package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/access"
	"github.com/fatsal/lms/core/course"
	"github.com/fatsal/lms/core/learning"
	"github.com/fatsal/lms/core/profile"
	"github.com/fatsal/lms/core/report"
	"github.com/fatsal/lms/core/school"
)

// CourseForm holds the choices of the course creation form.
type CourseForm struct {
	Teachers []profile.Profile `json:"teachers"`
	Schools  []school.School   `json:"schools,omitempty"`
}

type pagesApi struct {
	profiles profile.ServiceInterface
	schools  *school.Service
	courses  *course.Service
	learning *learning.Service
	reports  *report.Service
	validate *validator.Validate
}

func registerPages(dash *echo.Group, deps ServerDeps) {
	api := pagesApi{
		profiles: deps.ProfileSvc,
		schools:  deps.SchoolSvc,
		courses:  deps.CourseSvc,
		learning: deps.LearningSvc,
		reports:  deps.ReportSvc,
		validate: deps.Validate,
	}

	dash.GET(dashboardPath, api.dashboard)

	dash.GET("/courses", api.queryCourses)
	dash.GET("/courses/catalog", api.catalog, requireCaps(access.EnrollCourses))
	dash.GET("/courses/create", api.courseForm)
	dash.POST("/courses/create", api.createCourse)
	dash.POST("/courses/:id/enroll", api.enroll, requireCaps(access.EnrollCourses))

	dash.GET("/lessons", api.lessons)
	dash.GET("/assignments", api.assignments)
	dash.GET("/quizzes", api.quizzes)
	dash.GET("/discussions", api.discussions)
	dash.POST("/discussions", api.startDiscussion)
}

// render wraps data with the caller's menu and profile.
// Only called behind the route guard, so the session is authenticated.
func render(ctx echo.Context, code int, data interface{}) error {
	sc := getSessionContext(ctx)
	if !sc.Authenticated() {
		return errUnauthorized
	}
	return ctx.JSON(code, Page{
		Menu:    access.MenuFor(sc.Profile.Role),
		Profile: *sc.Profile,
		Data:    data,
	})
}

// Handlers

func (api *pagesApi) dashboard(ctx echo.Context) error {
	stats, err := api.reports.Dashboard(ctx.Request().Context(), *getSessionContext(ctx).Principal())
	if err != nil {
		return errors.Wrap(err, "computing dashboard")
	}
	return render(ctx, http.StatusOK, stats)
}

func (api *pagesApi) queryCourses(ctx echo.Context) error {
	filter := course.QueryFilter{}
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Scope = getSessionContext(ctx).Scope(access.Scope{})
	ordering := new(Ordering)
	ordering.Bind(ctx)

	courses, err := api.courses.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return render(ctx, http.StatusOK, courses)
}

// catalog lists the published courses of a student's school, enrolled or not.
func (api *pagesApi) catalog(ctx echo.Context) error {
	p := getSessionContext(ctx).Principal()
	filter := course.QueryFilter{}
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Scope = access.Scope{SchoolID: p.SchoolID, Deny: p.SchoolID == ""}
	filter.PublishedOnly = true

	courses, err := api.courses.Query(ctx.Request().Context(), filter, nil)
	if err != nil {
		return errors.Wrap(err, "querying catalog")
	}
	return render(ctx, http.StatusOK, courses)
}

func (api *pagesApi) courseForm(ctx echo.Context) error {
	sc := getSessionContext(ctx)
	rctx := ctx.Request().Context()
	scope := sc.Scope(access.Scope{})

	form := CourseForm{Teachers: []profile.Profile{}}
	if sc.Profile.Role == access.RoleTeacher {
		form.Teachers = append(form.Teachers, *sc.Profile)
		return render(ctx, http.StatusOK, form)
	}

	teachers, err := api.profiles.Query(
		rctx,
		profile.QueryFilter{Scope: scope, Roles: []access.Role{access.RoleTeacher}},
		[]core.DBOrdering{{Field: "full_name", Ascending: true}},
	)
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	form.Teachers = teachers

	if sc.Profile.Role.Unscoped() {
		if form.Schools, err = api.schools.Query(rctx, scope); err != nil {
			return errors.Wrap(err, "querying schools")
		}
	}
	return render(ctx, http.StatusOK, form)
}

func (api *pagesApi) createCourse(ctx echo.Context) error {
	sc := getSessionContext(ctx)
	p := *sc.Principal()
	rctx := ctx.Request().Context()

	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate, p); err != nil {
		return err
	}

	if p.Role != access.RoleTeacher {
		teacher, err := api.profiles.GetByID(rctx, data.TeacherID)
		if err != nil && !core.IsNotFound(err) {
			return errors.Wrap(err, "finding teacher")
		}
		if err != nil || teacher.Role != access.RoleTeacher || teacher.SchoolID.String != data.SchoolID {
			return core.NewValidationError(nil, core.FieldError{Field: "teacher_id", Error: "not a teacher of this school"})
		}
	}
	if p.Role.Unscoped() {
		if _, err := api.schools.GetByID(rctx, data.SchoolID, sc.Scope(access.Scope{})); err != nil {
			if core.IsNotFound(err) {
				return errSchoolNotFound
			}
			return errors.Wrap(err, "finding school")
		}
	}

	c, err := api.courses.Create(rctx, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return render(ctx, http.StatusCreated, c)
}

func (api *pagesApi) enroll(ctx echo.Context) error {
	p := getSessionContext(ctx).Principal()
	e, err := api.courses.Enroll(ctx.Request().Context(), *p, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return render(ctx, http.StatusCreated, e)
}

func (api *pagesApi) lessons(ctx echo.Context) error {
	lessons, err := api.learning.Lessons(ctx.Request().Context(), getSessionContext(ctx).Scope(access.Scope{}))
	if err != nil {
		return errors.Wrap(err, "querying lessons")
	}
	return render(ctx, http.StatusOK, lessons)
}

func (api *pagesApi) assignments(ctx echo.Context) error {
	assignments, err := api.learning.Assignments(ctx.Request().Context(), getSessionContext(ctx).Scope(access.Scope{}))
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	return render(ctx, http.StatusOK, assignments)
}

func (api *pagesApi) quizzes(ctx echo.Context) error {
	quizzes, err := api.learning.Quizzes(ctx.Request().Context(), getSessionContext(ctx).Scope(access.Scope{}))
	if err != nil {
		return errors.Wrap(err, "querying quizzes")
	}
	return render(ctx, http.StatusOK, quizzes)
}

func (api *pagesApi) discussions(ctx echo.Context) error {
	discussions, err := api.learning.Discussions(ctx.Request().Context(), getSessionContext(ctx).Scope(access.Scope{}))
	if err != nil {
		return errors.Wrap(err, "querying discussions")
	}
	return render(ctx, http.StatusOK, discussions)
}

func (api *pagesApi) startDiscussion(ctx echo.Context) error {
	sc := getSessionContext(ctx)

	var data learning.NewDiscussion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDiscussion")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	d, err := api.learning.StartDiscussion(ctx.Request().Context(), *sc.Principal(), sc.Scope(access.Scope{}), data)
	if err != nil {
		return errors.Wrap(err, "starting discussion")
	}
	return render(ctx, http.StatusCreated, d)
}

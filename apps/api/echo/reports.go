package echoapi

import (
	"bytes"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/fatsal/lms/core/report"
	"github.com/fatsal/lms/core/school"
)

const (
	xlsxMIME           = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	teachersExportName = "laporan-guru.xlsx"
)

type (
	// FoundationReport is the report page of foundation wide roles.
	FoundationReport struct {
		Dashboard report.DashboardStats  `json:"dashboard"`
		Schools   []report.SchoolSummary `json:"schools"`
		Teachers  report.TeacherReport   `json:"teachers"`
	}

	// SchoolReport is the report page of school managers.
	SchoolReport struct {
		Dashboard report.DashboardStats `json:"dashboard"`
		School    *report.SchoolSummary `json:"school"`
		Teachers  report.TeacherReport  `json:"teachers"`
	}
)

type reportsApi struct {
	schools  *school.Service
	reports  *report.Service
	validate *validator.Validate
}

func registerReportsAPI(dash *echo.Group, deps ServerDeps) {
	api := reportsApi{
		schools:  deps.SchoolSvc,
		reports:  deps.ReportSvc,
		validate: deps.Validate,
	}

	dash.GET("/admin/schools", api.querySchools)
	dash.POST("/admin/schools", api.createSchool)
	dash.GET("/admin/reports", api.foundationReport)

	dash.GET("/staff/teachers", api.teachers)
	dash.GET("/staff/reports", api.schoolReport)
	dash.GET("/staff/reports/export", api.exportTeachers)
}

// Handlers

func (api *reportsApi) querySchools(ctx echo.Context) error {
	summaries, err := api.reports.Schools(ctx.Request().Context(), *getSessionContext(ctx).Principal())
	if err != nil {
		return errors.Wrap(err, "summarizing schools")
	}
	return render(ctx, http.StatusOK, summaries)
}

func (api *reportsApi) createSchool(ctx echo.Context) error {
	var data school.NewSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchool")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.schools.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating school")
	}
	return render(ctx, http.StatusCreated, s)
}

func (api *reportsApi) foundationReport(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	p := *getSessionContext(ctx).Principal()

	var (
		rep FoundationReport
		err error
	)
	if rep.Dashboard, err = api.reports.Dashboard(rctx, p); err != nil {
		return errors.Wrap(err, "computing dashboard")
	}
	if rep.Schools, err = api.reports.Schools(rctx, p); err != nil {
		return errors.Wrap(err, "summarizing schools")
	}
	if rep.Teachers, err = api.reports.Teachers(rctx, p); err != nil {
		return errors.Wrap(err, "reporting teachers")
	}
	return render(ctx, http.StatusOK, rep)
}

func (api *reportsApi) teachers(ctx echo.Context) error {
	rep, err := api.reports.Teachers(ctx.Request().Context(), *getSessionContext(ctx).Principal())
	if err != nil {
		return errors.Wrap(err, "reporting teachers")
	}
	return render(ctx, http.StatusOK, rep)
}

func (api *reportsApi) schoolReport(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	p := *getSessionContext(ctx).Principal()

	var (
		rep SchoolReport
		err error
	)
	if rep.Dashboard, err = api.reports.Dashboard(rctx, p); err != nil {
		return errors.Wrap(err, "computing dashboard")
	}
	if rep.Teachers, err = api.reports.Teachers(rctx, p); err != nil {
		return errors.Wrap(err, "reporting teachers")
	}
	if p.SchoolID != "" {
		summaries, err := api.reports.Schools(rctx, p)
		if err != nil {
			return errors.Wrap(err, "summarizing school")
		}
		for i := range summaries {
			if summaries[i].SchoolID == p.SchoolID {
				rep.School = &summaries[i]
			}
		}
	}
	return render(ctx, http.StatusOK, rep)
}

func (api *reportsApi) exportTeachers(ctx echo.Context) error {
	rep, err := api.reports.Teachers(ctx.Request().Context(), *getSessionContext(ctx).Principal())
	if err != nil {
		return errors.Wrap(err, "reporting teachers")
	}

	var buf bytes.Buffer
	if err = report.ExportTeachers(&buf, rep); err != nil {
		return errors.Wrap(err, "exporting teachers")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+teachersExportName+`"`)
	return ctx.Blob(http.StatusOK, xlsxMIME, buf.Bytes())
}

package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/access"
	"github.com/fatsal/lms/core/auth"
	"github.com/fatsal/lms/core/course"
	"github.com/fatsal/lms/core/learning"
	"github.com/fatsal/lms/core/profile"
	"github.com/fatsal/lms/core/report"
	"github.com/fatsal/lms/core/school"
	"github.com/fatsal/lms/services/metrics"
	"github.com/fatsal/lms/storage/database/inmem"
	"github.com/fatsal/lms/testutil"
)

type httpErr struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// page mirrors Page with the data left raw.
type page struct {
	Menu    []access.MenuItem `json:"menu"`
	Profile profile.Profile   `json:"profile"`
	Data    json.RawMessage   `json:"data"`
}

func newTestDeps(env *testutil.Env) ServerDeps {
	return ServerDeps{
		Conf:           env.Conf,
		Logger:         env.Logger,
		Provider:       env.Provider,
		ProfileSvc:     env.ProfileSv,
		SchoolSvc:      env.SchoolSv,
		CourseSvc:      env.CourseSv,
		LearningSvc:    env.LearnSv,
		ReportSvc:      env.ReportSv,
		Mailer:         env.Mailer,
		Metrics:        metrics.NewCollector("lms"),
		Validate:       env.Validate,
		Translator:     env.Translator,
		DisableReqLogs: true,
	}
}

func newAuthRequest(method, path, token string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", bearerPrefix+token)
	}
	return req
}

func newRequest(method, path string, body interface{}) *http.Request {
	return newAuthRequest(method, path, "", body)
}

func serve(srv Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodePage(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) page {
	t.Helper()
	var p page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p), rec.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(p.Data, data), string(p.Data))
	}
	return p
}

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) httpErr {
	t.Helper()
	var he httpErr
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &he), rec.Body.String())
	return he
}

func scrape(t *testing.T, collector *metrics.Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

// spySchoolRepo counts the reads of schools.
type spySchoolRepo struct {
	school.Repository
	reads int32
}

func (r *spySchoolRepo) GetSchool(ctx context.Context, id string, scope access.Scope) (school.School, error) {
	atomic.AddInt32(&r.reads, 1)
	return r.Repository.GetSchool(ctx, id, scope)
}

func (r *spySchoolRepo) QuerySchools(ctx context.Context, scope access.Scope) ([]school.School, error) {
	atomic.AddInt32(&r.reads, 1)
	return r.Repository.QuerySchools(ctx, scope)
}

func (r *spySchoolRepo) CountSchools(ctx context.Context, scope access.Scope) (int, error) {
	atomic.AddInt32(&r.reads, 1)
	return r.Repository.CountSchools(ctx, scope)
}

// spyCourseRepo counts the reads of courses and enrollments.
type spyCourseRepo struct {
	course.Repository
	reads int32
}

func (r *spyCourseRepo) GetCourse(ctx context.Context, id string, scope access.Scope) (course.Course, error) {
	atomic.AddInt32(&r.reads, 1)
	return r.Repository.GetCourse(ctx, id, scope)
}

func (r *spyCourseRepo) QueryCourses(ctx context.Context, filter course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	atomic.AddInt32(&r.reads, 1)
	return r.Repository.QueryCourses(ctx, filter, ordering)
}

func (r *spyCourseRepo) CountCourses(ctx context.Context, filter course.QueryFilter) (int, error) {
	atomic.AddInt32(&r.reads, 1)
	return r.Repository.CountCourses(ctx, filter)
}

func (r *spyCourseRepo) CountByTeacher(ctx context.Context, scope access.Scope) (map[string]int, error) {
	atomic.AddInt32(&r.reads, 1)
	return r.Repository.CountByTeacher(ctx, scope)
}

func (r *spyCourseRepo) QueryEnrollments(ctx context.Context, scope access.Scope) ([]course.Enrollment, error) {
	atomic.AddInt32(&r.reads, 1)
	return r.Repository.QueryEnrollments(ctx, scope)
}

func (r *spyCourseRepo) EnrollmentStats(ctx context.Context, scope access.Scope) (course.EnrollmentStats, error) {
	atomic.AddInt32(&r.reads, 1)
	return r.Repository.EnrollmentStats(ctx, scope)
}

// failingBackend refuses every sign out.
type failingBackend struct {
	auth.Backend
}

func (failingBackend) SignOut(context.Context, string) error {
	return core.NewBackendUnavailable("auth.signOut", errors.New("connection refused"))
}

// unreachableBackend cannot resolve any access token.
type unreachableBackend struct {
	auth.Backend
}

func (unreachableBackend) GetUser(context.Context, string) (auth.Identity, string, error) {
	return auth.Identity{}, "", core.NewBackendUnavailable("auth.getUser", errors.New("connection refused"))
}

func Test_home(t *testing.T) {
	env := testutil.NewEnv(t)
	srv := NewServer(newTestDeps(env))

	rec := serve(srv, newRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, dashboardPath, rec.Header().Get("Location"))
}

func Test_guard_unauthenticated(t *testing.T) {
	env := testutil.NewEnv(t)
	srv := NewServer(newTestDeps(env))

	tests := []struct {
		name  string
		path  string
		token string
	}{
		{name: "dashboard without session", path: "/dashboard"},
		{name: "courses without session", path: "/courses"},
		{name: "admin page without session", path: "/admin/schools"},
		{name: "settings without session", path: "/settings"},
		{name: "nested page without session", path: "/staff/reports/export"},
		{name: "garbage token", path: "/dashboard", token: "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(srv, newAuthRequest(http.MethodGet, tt.path, tt.token, nil))
			assert.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, loginPath, rec.Header().Get("Location"))
		})
	}
}

func Test_guard_backendUnavailable(t *testing.T) {
	env := testutil.NewEnv(t)
	sch := env.CreateSchool(t, "MA Fathus Salafi")
	teacher := env.CreateProfile(t, "Ahmad Fauzi", "198705122010011001", access.RoleTeacher, sch.ID, true)
	token := env.SignIn(t, teacher).AccessToken

	deps := newTestDeps(env)
	deps.Provider = auth.NewProvider(auth.ProviderOptions{
		Conf:     env.Conf,
		Logger:   env.Logger,
		Backend:  unreachableBackend{env.Backend},
		Profiles: env.ProfileSv,
		State:    env.State,
		Mailer:   env.Mailer,
	})
	srv := NewServer(deps)

	for _, path := range []string{dashboardPath, "/courses", "/students"} {
		rec := serve(srv, newAuthRequest(http.MethodGet, path, token, nil))
		assert.Equal(t, http.StatusSeeOther, rec.Code, path)
		assert.Equal(t, loginPath, rec.Header().Get("Location"), path)
	}
}

func Test_guard_unknownPath(t *testing.T) {
	env := testutil.NewEnv(t)
	srv := NewServer(newTestDeps(env))
	admin := env.CreateProfile(t, "Admin Yayasan", "ADM-001", access.RoleAdmin, "", true)
	token := env.SignIn(t, admin).AccessToken

	rec := serve(srv, newAuthRequest(http.MethodGet, "/not-a-page", token, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// Every link of a role's menu opens for that role.
func Test_guard_menuLinks(t *testing.T) {
	env := testutil.NewEnv(t)
	srv := NewServer(newTestDeps(env))
	sch := env.CreateSchool(t, "MA Fathus Salafi")

	identities := map[access.Role]string{
		access.RoleAdmin:          "ADM-001",
		access.RoleFoundationHead: "KY-001",
		access.RolePrincipal:      "197001011995031001",
		access.RoleStaff:          "199001012015042001",
		access.RoleTeacher:        "198705122010011001",
		access.RoleStudent:        "0051234567",
	}
	for _, role := range access.Roles {
		schoolID := sch.ID
		if role.Unscoped() {
			schoolID = ""
		}
		prof := env.CreateProfile(t, "Pengguna "+string(role), identities[role], role, schoolID, true)
		token := env.SignIn(t, prof).AccessToken

		hrefs := access.Hrefs(access.MenuFor(role))
		require.NotEmpty(t, hrefs, role)
		for _, href := range hrefs {
			rec := serve(srv, newAuthRequest(http.MethodGet, href, token, nil))
			assert.Equal(t, http.StatusOK, rec.Code, "%s %s: %s", role, href, rec.Body.String())
		}
	}
}

func Test_guard_forbidden(t *testing.T) {
	env := testutil.NewEnv(t)
	deps := newTestDeps(env)

	schools := &spySchoolRepo{Repository: inmemdb.NewSchoolRepository(env.DB)}
	courses := &spyCourseRepo{Repository: env.Courses}
	deps.SchoolSvc = school.NewService(schools)
	deps.CourseSvc = course.NewService(courses)
	deps.LearningSvc = learning.NewService(env.Learning, deps.CourseSvc)
	deps.ReportSvc = report.NewService(env.ProfileSv, deps.SchoolSvc, deps.CourseSvc, deps.LearningSvc)
	srv := NewServer(deps)

	sch := env.CreateSchool(t, "MTs Fathus Salafi")
	teacher := env.CreateProfile(t, "Ahmad Fauzi", "198705122010011001", access.RoleTeacher, sch.ID, true)
	student := env.CreateProfile(t, "Rizki Pratama", "0051234567", access.RoleStudent, sch.ID, true)
	admin := env.CreateProfile(t, "Admin Yayasan", "ADM-001", access.RoleAdmin, "", true)
	env.CreateCourse(t, sch.ID, teacher.ID, "Fiqih", true)

	studentToken := env.SignIn(t, student).AccessToken
	teacherToken := env.SignIn(t, teacher).AccessToken

	tests := []struct {
		name   string
		method string
		path   string
		token  string
	}{
		{name: "student on schools", method: http.MethodGet, path: "/admin/schools", token: studentToken},
		{name: "student on global reports", method: http.MethodGet, path: "/admin/reports", token: studentToken},
		{name: "student on school report export", method: http.MethodGet, path: "/staff/reports/export", token: studentToken},
		{name: "student creating a course", method: http.MethodPost, path: "/courses/create", token: studentToken},
		{name: "teacher on staff management", method: http.MethodGet, path: "/admin/staff", token: teacherToken},
		{name: "teacher on school student roster", method: http.MethodGet, path: "/staff/students", token: teacherToken},
		{name: "teacher on quizzes", method: http.MethodGet, path: "/quizzes", token: teacherToken},
		{name: "teacher on lessons", method: http.MethodGet, path: "/lessons", token: teacherToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(srv, newAuthRequest(tt.method, tt.path, tt.token, nil))
			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Equal(t, "you do not have access to this page", decodeErr(t, rec).Error)
		})
	}
	assert.Zero(t, atomic.LoadInt32(&schools.reads), "forbidden pages must not read schools")
	assert.Zero(t, atomic.LoadInt32(&courses.reads), "forbidden pages must not read courses")

	metricsOut := scrape(t, deps.Metrics)
	assert.Contains(t, metricsOut, `lms_route_access_total{route="/admin/schools",state="forbidden"} 1`)
	assert.Contains(t, metricsOut, `lms_route_access_total{route="/courses/create",state="forbidden"} 1`)

	t.Run("authorized page reads", func(t *testing.T) {
		rec := serve(srv, newAuthRequest(http.MethodGet, "/admin/schools", env.SignIn(t, admin).AccessToken, nil))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.NotZero(t, atomic.LoadInt32(&schools.reads))
		assert.NotZero(t, atomic.LoadInt32(&courses.reads))
	})
}

func Test_guard_unknownRole(t *testing.T) {
	env := testutil.NewEnv(t)
	srv := NewServer(newTestDeps(env))
	ctx := context.Background()
	sch := env.CreateSchool(t, "MI Fathus Salafi")

	prof := env.CreateProfile(t, "Pustakawan Sekolah", "199505052020121001", access.RoleStaff, sch.ID, true)
	prof.Role = access.Role("Librarian")
	_, err := inmemdb.NewProfileRepository(env.DB).UpdateProfile(ctx, prof)
	require.NoError(t, err)
	token := env.SignIn(t, prof).AccessToken

	for _, path := range []string{"/dashboard", "/settings", "/courses", "/staff/reports"} {
		rec := serve(srv, newAuthRequest(http.MethodGet, path, token, nil))
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}

	rec := serve(srv, newAuthRequest(http.MethodGet, "/session", token, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var sr SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sr))
	assert.Equal(t, prof.ID, sr.Profile.ID)
	assert.Empty(t, sr.Menu)
	assert.Empty(t, sr.Capabilities)
}

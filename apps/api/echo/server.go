package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/auth"
	"github.com/fatsal/lms/core/course"
	"github.com/fatsal/lms/core/learning"
	"github.com/fatsal/lms/core/profile"
	"github.com/fatsal/lms/core/report"
	"github.com/fatsal/lms/core/school"
	"github.com/fatsal/lms/services/metrics"
)

type (
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		Provider       *auth.Provider
		ProfileSvc     profile.ServiceInterface
		SchoolSvc      *school.Service
		CourseSvc      *course.Service
		LearningSvc    *learning.Service
		ReportSvc      *report.Service
		Mailer         core.EmailService
		Metrics        *metrics.Collector
		Validate       *validator.Validate
		Translator     ut.Translator
		DisableReqLogs bool
	}

	Server interface {
		http.Handler
		Start()
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
		Shutdown(ctx context.Context) error
		Close() error
	}

	server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	s := &server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	session := sessionMiddleware(s.deps.Provider, conf.Session.CookieName)
	guard := guardMiddleware(s.deps.Metrics)

	// the group catches unknown paths, so it goes first and "/" overrides it
	dash := s.app.Group("", session, guard)
	registerPages(dash, s.deps)
	registerUserAPI(dash, s.deps)
	registerReportsAPI(dash, s.deps)

	s.app.GET("/", home)
	registerAuthAPI(s.app, session, s.deps)
}

func (s *server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Errors() <-chan error {
	return s.errors
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func home(ctx echo.Context) error {
	return ctx.Redirect(http.StatusSeeOther, dashboardPath)
}

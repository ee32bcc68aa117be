package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/fatsal/lms/apps/api/echo"
	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/auth"
	"github.com/fatsal/lms/core/course"
	"github.com/fatsal/lms/core/learning"
	"github.com/fatsal/lms/core/profile"
	"github.com/fatsal/lms/core/report"
	"github.com/fatsal/lms/core/school"
	appfs "github.com/fatsal/lms/fs"
	emailsvc "github.com/fatsal/lms/services/email"
	"github.com/fatsal/lms/services/events"
	logsvc "github.com/fatsal/lms/services/logger"
	"github.com/fatsal/lms/services/metrics"
	"github.com/fatsal/lms/services/scheduler"
	inmemcache "github.com/fatsal/lms/storage/cache/inmem"
	rediscache "github.com/fatsal/lms/storage/cache/redis"
	"github.com/fatsal/lms/storage/database"
	sqlxrepos "github.com/fatsal/lms/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()
	ctx := context.Background()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	// set up session state
	var state auth.StateStore
	if conf.RedisURL != "" {
		client, err := rediscache.NewClient(ctx, conf.RedisURL)
		if err != nil {
			logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
		}
		defer func() { _ = client.Close() }()
		state = rediscache.NewStateStore(client, conf)
	} else {
		state = inmemcache.NewStateStore()
	}

	bus, err := events.NewBus(conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up event bus: %v", err), err)
	}
	defer func() {
		if err = bus.Close(); err != nil {
			logger.Error("closing event bus", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	sessions := sqlxrepos.NewSessionRepository(db)
	profileSvc := profile.NewService(sqlxrepos.NewProfileRepository(db))
	schoolSvc := school.NewService(sqlxrepos.NewSchoolRepository(db))
	courseSvc := course.NewService(sqlxrepos.NewCourseRepository(db))
	learningSvc := learning.NewService(sqlxrepos.NewLearningRepository(db), courseSvc)
	reportSvc := report.NewService(profileSvc, schoolSvc, courseSvc, learningSvc)
	provider := auth.NewProvider(auth.ProviderOptions{
		Conf:     conf,
		Logger:   logger,
		Backend:  auth.NewLocalBackend(conf, sqlxrepos.NewCredentialRepository(db), sessions),
		Profiles: profileSvc,
		State:    state,
		Bus:      bus,
		Mailer:   mailSvc,
	})
	collector := metrics.NewCollector("lms")

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate, translator := core.NewValidator()
	profile.InitValidators(validate, translator)

	if err = core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, !conf.Debug); err != nil {
		logger.Fatal(fmt.Sprintf("parsing email templates: %v", err), err)
	}
	if err = profile.LoadCommonPasswords(appfs.FS, appfs.CommonPasswordsFile); err != nil {
		logger.Error(fmt.Sprintf("loading common passwords: %v", err), err)
	}

	if err = provider.Start(ctx); err != nil {
		logger.Fatal(fmt.Sprintf("starting auth state subscription: %v", err), err)
	}
	defer func() { _ = provider.Close() }()

	reaper, err := scheduler.NewSessionReaper(conf, sessions, state, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up session reaper: %v", err), err)
	}
	reaper.Start()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /metrics - Prometheus counters of the guard and the identity provider.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	http.Handle("/metrics", collector.Handler())

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:        conf,
			Logger:      logger,
			Provider:    provider,
			ProfileSvc:  profileSvc,
			SchoolSvc:   schoolSvc,
			CourseSvc:   courseSvc,
			LearningSvc: learningSvc,
			ReportSvc:   reportSvc,
			Mailer:      mailSvc,
			Metrics:     collector,
			Validate:    validate,
			Translator:  translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
		reaper.Stop(ctx)
	}
}

func setUpDB(ctx context.Context, conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

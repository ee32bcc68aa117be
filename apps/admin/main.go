package main

import (
	"context"
	"log"
	"os"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/auth"
	"github.com/fatsal/lms/core/profile"
	appfs "github.com/fatsal/lms/fs"
	emailsvc "github.com/fatsal/lms/services/email"
	logsvc "github.com/fatsal/lms/services/logger"
	inmemcache "github.com/fatsal/lms/storage/cache/inmem"
	rediscache "github.com/fatsal/lms/storage/cache/redis"
	"github.com/fatsal/lms/storage/database"
	sqlxrepos "github.com/fatsal/lms/storage/database/sqlx"
)

var logger core.Logger

func main() {
	defer os.Exit(0)

	conf := core.NewConfig()
	ctx := context.Background()
	lgr := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	lgr.Enable(!conf.Debug)
	logger = lgr

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(database.Ping(ctx, db))

	// revoked sessions must reach the API's state store
	state := inmemcache.NewStateStore()
	if conf.RedisURL != "" {
		client, err := rediscache.NewClient(ctx, conf.RedisURL)
		errAndDie(err)
		defer client.Close()
		state = rediscache.NewStateStore(client, conf)
	}

	validate, translator := core.NewValidator()
	profile.InitValidators(validate, translator)
	if err = profile.LoadCommonPasswords(appfs.FS, appfs.CommonPasswordsFile); err != nil {
		logger.Warn("loading common passwords", err)
	}

	profiles := profile.NewService(sqlxrepos.NewProfileRepository(db))
	sessions := sqlxrepos.NewSessionRepository(db)

	// start CLI
	cli := commandLine{
		db: db,
		provider: auth.NewProvider(auth.ProviderOptions{
			Conf:     conf,
			Logger:   logger,
			Backend:  auth.NewLocalBackend(conf, sqlxrepos.NewCredentialRepository(db), sessions),
			Profiles: profiles,
			State:    state,
			Mailer:   emailsvc.NewConsoleService(conf, logger),
		}),
		profiles: profiles,
		validate: validate,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("command failed", err)
			log.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}

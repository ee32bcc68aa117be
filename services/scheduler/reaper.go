package scheduler

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/auth"
)

// SessionReaper periodically deletes sessions that expired or were revoked long ago.
// When the state store needs it, the reaper also forgets its old sign out markers.
type SessionReaper struct {
	cron       *cron.Cron
	sessions   auth.SessionRepository
	state      auth.StateStore
	logger     core.Logger
	retention  time.Duration
	refreshTTL time.Duration
	timeout    time.Duration
	nowFunc    func() time.Time
}

func NewSessionReaper(conf *core.Config, sessions auth.SessionRepository, state auth.StateStore, logger core.Logger) (*SessionReaper, error) {
	r := &SessionReaper{
		cron:       cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger))),
		sessions:   sessions,
		state:      state,
		logger:     logger,
		retention:  conf.Session.ReaperRetention,
		refreshTTL: conf.Session.RefreshTTL,
		timeout:    time.Minute,
		nowFunc:    time.Now,
	}
	if _, err := r.cron.AddFunc(conf.Session.ReaperSchedule, r.run); err != nil {
		return nil, errors.Wrapf(err, "scheduling session reaper %q", conf.Session.ReaperSchedule)
	}
	return r, nil
}

func (r *SessionReaper) Start() {
	r.cron.Start()
}

// Stop waits for a running pass to finish or ctx to be done.
func (r *SessionReaper) Stop(ctx context.Context) {
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (r *SessionReaper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if _, err := r.Reap(ctx); err != nil {
		r.logger.Error("reaping sessions", err)
	}
}

// Reap deletes the sessions that ended before the retention window.
func (r *SessionReaper) Reap(ctx context.Context) (int64, error) {
	olderThan := r.nowFunc().UTC().Add(-r.retention)
	n, err := r.sessions.DeleteExpiredSessions(ctx, olderThan)
	if err != nil {
		return 0, errors.Wrap(err, "deleting expired sessions")
	}
	if n > 0 {
		r.logger.Info("sessions reaped", map[string]interface{}{"count": n, "olderThan": olderThan})
	}

	if err = r.pruneState(ctx); err != nil {
		return n, err
	}
	return n, nil
}

// pruneState drops sign out markers older than any refresh token they could still reject.
func (r *SessionReaper) pruneState(ctx context.Context) error {
	pruner, ok := r.state.(auth.StatePruner)
	if !ok {
		return nil
	}
	keep := r.refreshTTL
	if r.retention > keep {
		keep = r.retention
	}
	clearedBefore := r.nowFunc().Add(-keep)
	n, err := pruner.PruneCleared(ctx, clearedBefore)
	if err != nil {
		return errors.Wrap(err, "pruning session state")
	}
	if n > 0 {
		r.logger.Info("session state pruned", map[string]interface{}{"count": n, "clearedBefore": clearedBefore})
	}
	return nil
}

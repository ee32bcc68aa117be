package scheduler

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/auth"
	"github.com/fatsal/lms/services/logger"
	"github.com/fatsal/lms/storage/database/inmem"
)

// recordingPruner remembers the cutoff of its last prune.
type recordingPruner struct {
	auth.StateStore
	clearedBefore time.Time
}

func (p *recordingPruner) PruneCleared(_ context.Context, clearedBefore time.Time) (int, error) {
	p.clearedBefore = clearedBefore
	return 1, nil
}

func TestSessionReaper_Reap(t *testing.T) {
	ctx := context.Background()
	conf := core.NewTestConfig()
	lgr := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	lgr.Enable(false)

	now := time.Date(2024, time.July, 15, 8, 0, 0, 0, time.UTC)
	sessions := inmemdb.NewSessionRepository(inmemdb.Open())
	records := []auth.SessionRecord{
		{ID: "active", RefreshExpiresAt: now.Add(time.Hour)},
		{ID: "recently-expired", RefreshExpiresAt: now.Add(-time.Hour)},
		{ID: "long-expired", RefreshExpiresAt: now.Add(-48 * time.Hour)},
		{ID: "recently-revoked", RefreshExpiresAt: now.Add(time.Hour), RevokedAt: null.TimeFrom(now.Add(-time.Hour))},
		{ID: "long-revoked", RefreshExpiresAt: now.Add(time.Hour), RevokedAt: null.TimeFrom(now.Add(-48 * time.Hour))},
	}
	for _, rec := range records {
		rec.UserID = "u-1"
		require.NoError(t, sessions.CreateSession(ctx, rec))
	}

	conf.Session.RefreshTTL = 72 * time.Hour
	state := &recordingPruner{}
	reaper, err := NewSessionReaper(conf, sessions, state, lgr)
	require.NoError(t, err)
	reaper.nowFunc = func() time.Time { return now }

	n, err := reaper.Reap(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	for _, id := range []string{"active", "recently-expired", "recently-revoked"} {
		_, err = sessions.GetSession(ctx, id)
		assert.NoError(t, err, id)
	}
	for _, id := range []string{"long-expired", "long-revoked"} {
		_, err = sessions.GetSession(ctx, id)
		assert.True(t, core.IsNotFound(err), id)
	}

	// markers live as long as the longest refresh token they may reject
	assert.Equal(t, now.Add(-72*time.Hour), state.clearedBefore)
}

func TestNewSessionReaper_badSchedule(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Session.ReaperSchedule = "every now and then"
	_, err := NewSessionReaper(conf, nil, nil, nil)
	assert.Error(t, err)
}

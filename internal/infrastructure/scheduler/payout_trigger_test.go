package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	appledger "github.com/primebond/ledger/internal/application/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	calls atomic.Int32
	err   error
}

func (r *countingRunner) RunTick(ctx context.Context) (*appledger.TickResult, error) {
	r.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("tick without deadline")
	}
	if r.err != nil {
		return nil, r.err
	}
	return &appledger.TickResult{Created: 1}, nil
}

func newTestTrigger(t *testing.T, runner TickRunner, at *time.Time) *PayoutTrigger {
	t.Helper()
	cfg := DefaultPayoutTriggerConfig()
	cfg.RunHour = 2
	cfg.RunMinute = 30
	trig, err := NewPayoutTrigger(cfg, runner, nil)
	require.NoError(t, err)
	trig.now = func() time.Time { return *at }
	return trig
}

func TestPayoutTrigger_OncePerDayAfterRunTime(t *testing.T) {
	runner := &countingRunner{}
	now := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
	trig := newTestTrigger(t, runner, &now)
	ctx := context.Background()

	assert.False(t, trig.checkAndTrigger(ctx), "before run time")

	now = now.Add(45 * time.Minute)
	assert.True(t, trig.checkAndTrigger(ctx))
	assert.False(t, trig.checkAndTrigger(ctx), "same day")

	now = now.Add(6 * time.Hour)
	assert.False(t, trig.checkAndTrigger(ctx))

	now = time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC)
	assert.True(t, trig.checkAndTrigger(ctx), "late start still ticks")
	assert.Equal(t, int32(2), runner.calls.Load())
}

func TestPayoutTrigger_RetriesAfterFailure(t *testing.T) {
	runner := &countingRunner{err: errors.New("database unavailable")}
	now := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	trig := newTestTrigger(t, runner, &now)
	ctx := context.Background()

	assert.True(t, trig.checkAndTrigger(ctx))
	runner.err = nil
	assert.True(t, trig.checkAndTrigger(ctx))
	assert.False(t, trig.checkAndTrigger(ctx))
	assert.Equal(t, int32(2), runner.calls.Load())
}

func TestPayoutTrigger_StartStop(t *testing.T) {
	runner := &countingRunner{}
	now := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	trig := newTestTrigger(t, runner, &now)

	require.NoError(t, trig.Start(context.Background()))
	require.NoError(t, trig.Start(context.Background()))
	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, trig.Stop(ctx))
	require.NoError(t, trig.Stop(ctx))
}

func TestPayoutTriggerConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultPayoutTriggerConfig().Validate())

	bad := DefaultPayoutTriggerConfig()
	bad.RunHour = 24
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = DefaultPayoutTriggerConfig()
	bad.CheckInterval = 0
	_, err := NewPayoutTrigger(bad, &countingRunner{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

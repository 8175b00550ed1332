// Package scheduler runs the payout scheduler once a day.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	appledger "github.com/primebond/ledger/internal/application/ledger"
	"go.uber.org/zap"
)

// ErrInvalidConfig is returned for an impossible run time or interval
var ErrInvalidConfig = errors.New("invalid scheduler configuration")

// TickRunner runs one payout scheduler tick
type TickRunner interface {
	RunTick(ctx context.Context) (*appledger.TickResult, error)
}

// PayoutTriggerConfig holds the daily trigger settings
type PayoutTriggerConfig struct {
	// RunHour and RunMinute are the UTC time of the daily tick
	RunHour   int
	RunMinute int
	// CheckInterval is how often the loop looks at the clock
	CheckInterval time.Duration
	// TickTimeout bounds a single tick
	TickTimeout time.Duration
}

// DefaultPayoutTriggerConfig runs the tick at 00:05 UTC
func DefaultPayoutTriggerConfig() PayoutTriggerConfig {
	return PayoutTriggerConfig{
		RunHour:       0,
		RunMinute:     5,
		CheckInterval: time.Minute,
		TickTimeout:   5 * time.Minute,
	}
}

// Validate checks the configured time of day and durations
func (c PayoutTriggerConfig) Validate() error {
	if c.RunHour < 0 || c.RunHour > 23 || c.RunMinute < 0 || c.RunMinute > 59 {
		return ErrInvalidConfig
	}
	if c.CheckInterval <= 0 || c.TickTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// PayoutTrigger fires one tick per UTC day once the configured time has
// passed. A process started after the run time still ticks that day.
type PayoutTrigger struct {
	config PayoutTriggerConfig
	runner TickRunner
	logger *zap.Logger
	now    func() time.Time

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	running     bool
	lastRunDate string
}

// NewPayoutTrigger creates a trigger for runner
func NewPayoutTrigger(config PayoutTriggerConfig, runner TickRunner, logger *zap.Logger) (*PayoutTrigger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PayoutTrigger{
		config: config,
		runner: runner,
		logger: logger.Named("payout-trigger"),
		now:    time.Now,
	}, nil
}

// Start launches the check loop
func (t *PayoutTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return nil
	}
	t.running = true
	ctx, t.cancel = context.WithCancel(ctx)
	t.mu.Unlock()

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Payout trigger started",
		zap.Int("run_hour", t.config.RunHour),
		zap.Int("run_minute", t.config.RunMinute),
		zap.Duration("check_interval", t.config.CheckInterval))
	return nil
}

// Stop cancels the loop and waits for a running tick to finish or ctx to expire
func (t *PayoutTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return nil
	}
	t.running = false
	cancel := t.cancel
	t.mu.Unlock()
	cancel()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		t.logger.Info("Payout trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *PayoutTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()
	t.checkAndTrigger(ctx)

	ticker := time.NewTicker(t.config.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.checkAndTrigger(ctx)
		}
	}
}

// checkAndTrigger runs the tick if today's run time has passed and today
// has not been ticked yet. It reports whether a tick was attempted.
func (t *PayoutTrigger) checkAndTrigger(ctx context.Context) bool {
	now := t.now().UTC()
	today := now.Format("2006-01-02")
	runAt := time.Date(now.Year(), now.Month(), now.Day(), t.config.RunHour, t.config.RunMinute, 0, 0, time.UTC)
	if now.Before(runAt) {
		return false
	}

	t.mu.Lock()
	if t.lastRunDate == today {
		t.mu.Unlock()
		return false
	}
	t.lastRunDate = today
	t.mu.Unlock()

	if _, err := t.TriggerNow(ctx); err != nil {
		// retry on the next check
		t.mu.Lock()
		t.lastRunDate = ""
		t.mu.Unlock()
	}
	return true
}

// TriggerNow runs one tick immediately under the tick timeout
func (t *PayoutTrigger) TriggerNow(ctx context.Context) (*appledger.TickResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.config.TickTimeout)
	defer cancel()

	res, err := t.runner.RunTick(ctx)
	if err != nil {
		t.logger.Error("Payout tick failed", zap.Error(err))
		return nil, err
	}
	t.logger.Info("Payout tick finished",
		zap.Bool("skipped", res.Skipped),
		zap.Int("due", res.Due),
		zap.Int64("created", res.Created),
		zap.Int64("promoted", res.Promoted),
		zap.Int("failed", res.Failed),
		zap.Duration("duration", res.Duration))
	return res, nil
}

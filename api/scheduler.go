/*
scheduler.go - Automated population scheduler

PURPOSE:
  Puts the next Program Increment on the calendar ahead of time, so nobody
  has to remember to press the populate button before PI planning.

DESIGN:
  - robfig/cron drives the trigger from a standard cron spec, evaluated in
    the calendar's timezone
  - Each tick expands the increment after today's and populates it
  - Population is idempotent, so ticks after the first only record skips
  - Overlapping ticks are skipped, not queued
  - Every tick is recorded in populate_runs, listed by GET /api/runs

CONFIGURATION:
  - Spec: cron spec (default from config: "0 6 * * 1")
  - Enabled: whether the scheduler is active

USAGE:
  scheduler := NewPopulateScheduler(handler, "0 6 * * 1", logger)
  if err := scheduler.Start(); err != nil { ... }
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: PopulateSchedule endpoint (manual population)
  - fiscal/populate.go: Populator
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/warp/pi-engine/fiscal"
)

// PopulateScheduler populates the next increment on a cron schedule.
type PopulateScheduler struct {
	Handler *Handler
	Spec    string
	Enabled bool

	logger *zap.Logger
	cron   *cron.Cron
	entry  cron.EntryID
	mu     sync.Mutex
}

// NewPopulateScheduler creates a new scheduler. A nil logger disables
// logging.
func NewPopulateScheduler(handler *Handler, spec string, logger *zap.Logger) *PopulateScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PopulateScheduler{
		Handler: handler,
		Spec:    spec,
		Enabled: true,
		logger:  logger,
	}
}

// Start begins the scheduler. It fails on a malformed spec and is a no-op
// when disabled or already running.
func (ps *PopulateScheduler) Start() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.Enabled {
		ps.logger.Info("scheduler disabled, not starting")
		return nil
	}
	if ps.cron != nil {
		return nil
	}

	schedule, err := cron.ParseStandard(ps.Spec)
	if err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", ps.Spec, err)
	}

	logger := cronLogger{ps.logger.Sugar()}
	c := cron.New(
		cron.WithLocation(ps.Handler.Engine.Config().Location()),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	ps.entry = c.Schedule(schedule, cron.FuncJob(ps.tick))
	c.Start()
	ps.cron = c

	ps.logger.Info("scheduler started",
		zap.String("spec", ps.Spec),
		zap.Time("next_run", c.Entry(ps.entry).Next))
	return nil
}

// Stop stops the scheduler and waits for a running tick to finish.
func (ps *PopulateScheduler) Stop() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.cron == nil {
		return
	}
	<-ps.cron.Stop().Done()
	ps.cron = nil
	ps.logger.Info("scheduler stopped")
}

// NextRun returns when the next tick fires, or the zero time when stopped.
func (ps *PopulateScheduler) NextRun() time.Time {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.cron == nil {
		return time.Time{}
	}
	return ps.cron.Entry(ps.entry).Next
}

// RunNow populates the next increment immediately (for testing/admin).
func (ps *PopulateScheduler) RunNow(ctx context.Context) (fiscal.PopulateResult, error) {
	inc, start, err := ps.Handler.Engine.NextIncrement()
	if err != nil {
		return fiscal.PopulateResult{}, fmt.Errorf("find next increment: %w", err)
	}
	s, err := fiscal.ExpandSchedule(ps.Handler.Engine.Config(), start, inc)
	if err != nil {
		return fiscal.PopulateResult{}, fmt.Errorf("expand %s: %w", inc, err)
	}

	result, _, err := ps.Handler.RunPopulate(ctx, s, TriggerScheduler)
	return result, err
}

func (ps *PopulateScheduler) tick() {
	result, err := ps.RunNow(context.Background())
	if err != nil {
		ps.logger.Error("scheduled populate failed", zap.Error(err))
		return
	}
	ps.logger.Info("scheduled populate completed",
		zap.String("increment", result.Increment.String()),
		zap.Int("created", len(result.Created)),
		zap.Int("skipped", len(result.Skipped)))
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

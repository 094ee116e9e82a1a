package fiscal

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/warp/pi-engine/generic"
)

// =============================================================================
// POPULATOR - Schedule -> calendar, skipping existing events
// =============================================================================

// PopulateResult reports what a population run did.
type PopulateResult struct {
	Increment Increment        `json:"increment"`
	Created   []generic.Event  `json:"created"`
	Skipped   []ScheduledEvent `json:"skipped"`
}

// Populator writes schedules into a calendar store. Runs are serialized
// through a mutex; overlapping triggers in one process never interleave.
// Across processes the store's own uniqueness constraint is the guard.
type Populator struct {
	mu     sync.Mutex
	logger *zap.Logger
}

// NewPopulator returns a Populator logging to logger (nil for no logging).
func NewPopulator(logger *zap.Logger) *Populator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Populator{logger: logger}
}

// Populate creates every event of s that is not already on the calendar. An
// existing event with the same title and start instant counts as present.
// When store supports transactions the run is all-or-nothing.
func (p *Populator) Populate(ctx context.Context, store generic.CalendarStore, s Schedule) (PopulateResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result PopulateResult
	run := func(cs generic.CalendarStore) error {
		result = PopulateResult{Increment: s.Increment}
		for _, ev := range s.Events() {
			created, err := p.ensure(ctx, cs, ev)
			if err != nil {
				return fmt.Errorf("populate %q: %w", ev.Title, err)
			}
			if created != nil {
				result.Created = append(result.Created, *created)
			} else {
				result.Skipped = append(result.Skipped, ev)
			}
		}
		return nil
	}

	var err error
	if tx, ok := store.(generic.TxCalendarStore); ok {
		err = tx.WithTx(ctx, run)
	} else {
		err = run(store)
	}
	if err != nil {
		p.logger.Error("populate failed",
			zap.String("increment", s.Increment.String()),
			zap.Error(err))
		return PopulateResult{Increment: s.Increment}, err
	}

	p.logger.Info("populate completed",
		zap.String("increment", s.Increment.String()),
		zap.String("start", s.Start.String()),
		zap.Int("created", len(result.Created)),
		zap.Int("skipped", len(result.Skipped)))
	return result, nil
}

// ensure creates ev unless an event with the same slot exists. It returns
// the created event, or nil when skipped.
func (p *Populator) ensure(ctx context.Context, cs generic.CalendarStore, ev ScheduledEvent) (*generic.Event, error) {
	want := ev.Event()
	existing, err := cs.ListEvents(ctx, ev.Start, ev.End)
	if err != nil {
		return nil, err
	}
	for _, e := range existing {
		if e.SameSlot(want) {
			p.logger.Debug("event exists, skipping",
				zap.String("title", ev.Title),
				zap.Time("start", ev.Start))
			return nil, nil
		}
	}

	id, err := cs.CreateEvent(ctx, want)
	if errors.Is(err, generic.ErrDuplicateEvent) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	want.ID = id
	p.logger.Debug("event created", zap.String("title", ev.Title), zap.String("id", string(id)))
	return &want, nil
}

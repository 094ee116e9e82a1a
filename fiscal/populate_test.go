package fiscal_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pi-engine/fiscal"
	"github.com/warp/pi-engine/generic"
	"github.com/warp/pi-engine/generic/store"
)

// plainStore hides WithTx so the populator takes the non-transactional path.
type plainStore struct {
	generic.CalendarStore
}

// failingStore fails the nth CreateEvent inside a transaction.
type failingStore struct {
	*store.Memory
	failAt int
}

var errBoom = errors.New("calendar unavailable")

func (f *failingStore) WithTx(ctx context.Context, fn func(generic.CalendarStore) error) error {
	return f.Memory.WithTx(ctx, func(cs generic.CalendarStore) error {
		return fn(&countingStore{CalendarStore: cs, failAt: f.failAt})
	})
}

type countingStore struct {
	generic.CalendarStore
	calls  int
	failAt int
}

func (c *countingStore) CreateEvent(ctx context.Context, ev generic.Event) (generic.EventID, error) {
	c.calls++
	if c.calls == c.failAt {
		return "", errBoom
	}
	return c.CalendarStore.CreateEvent(ctx, ev)
}

func expand(t *testing.T) fiscal.Schedule {
	t.Helper()
	s, err := fiscal.ExpandSchedule(impactConfig(t), date("2023-07-09"), pi234)
	require.NoError(t, err)
	return s
}

func TestPopulate_SecondRunCreatesNothing(t *testing.T) {
	// GIVEN: An empty calendar
	ctx := context.Background()
	mem := store.NewMemory()
	p := fiscal.NewPopulator(nil)
	s := expand(t)

	// WHEN: Populating the same schedule twice
	first, err := p.Populate(ctx, mem, s)
	require.NoError(t, err)
	second, err := p.Populate(ctx, mem, s)
	require.NoError(t, err)

	// THEN: The second run skips every event
	assert.Len(t, first.Created, 15)
	assert.Empty(t, first.Skipped)
	assert.Empty(t, second.Created)
	assert.Len(t, second.Skipped, 15)
	assert.Equal(t, 15, mem.Len())
	for _, ev := range first.Created {
		assert.NotEmpty(t, ev.ID)
	}
}

func TestPopulate_NonTransactionalStore(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	p := fiscal.NewPopulator(nil)
	s := expand(t)

	_, err := p.Populate(ctx, plainStore{mem}, s)
	require.NoError(t, err)
	res, err := p.Populate(ctx, plainStore{mem}, s)
	require.NoError(t, err)

	assert.Empty(t, res.Created)
	assert.Equal(t, 15, mem.Len())
}

func TestPopulate_SameTitleDifferentStartIsCreated(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	s := expand(t)

	review := s.Sprints[0].Review
	_, err := mem.CreateEvent(ctx, generic.Event{
		Title: review.Title,
		Start: review.Start.Add(-time.Hour),
		End:   review.End,
	})
	require.NoError(t, err)

	res, err := fiscal.NewPopulator(nil).Populate(ctx, mem, s)
	require.NoError(t, err)
	assert.Len(t, res.Created, 15)
	assert.Equal(t, 16, mem.Len())
}

func TestPopulate_PartialFailureRollsBack(t *testing.T) {
	// GIVEN: A calendar that fails on the fifth write
	ctx := context.Background()
	fs := &failingStore{Memory: store.NewMemory(), failAt: 5}

	// WHEN: Populating
	_, err := fiscal.NewPopulator(nil).Populate(ctx, fs, expand(t))

	// THEN: The error surfaces and nothing was kept
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 0, fs.Memory.Len())
}

func TestPopulate_ConcurrentRunsDoNotDuplicate(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	p := fiscal.NewPopulator(nil)
	s := expand(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Populate(ctx, plainStore{mem}, s)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 15, mem.Len())
}

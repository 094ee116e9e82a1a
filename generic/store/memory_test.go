package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pi-engine/generic"
	"github.com/warp/pi-engine/generic/store"
)

func at(day, hour int) time.Time {
	return time.Date(2023, time.July, day, hour, 0, 0, 0, time.UTC)
}

func TestMemory_CreateRejectsDuplicateSlot(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	id, err := m.CreateEvent(ctx, generic.Event{Title: "Sprint Review", Start: at(21, 10), End: at(21, 12)})
	require.NoError(t, err)

	_, err = m.CreateEvent(ctx, generic.Event{Title: "Sprint Review", Start: at(21, 10), End: at(21, 11)})
	require.ErrorIs(t, err, generic.ErrDuplicateEvent)

	var dup *generic.DuplicateEventError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, id, dup.ExistingID)
}

func TestMemory_ListEventsOverlapOrdered(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	for _, ev := range []generic.Event{
		{Title: "c", Start: at(20, 9), End: at(20, 10)},
		{Title: "a", Start: at(9, 0), End: at(22, 0), AllDay: true},
		{Title: "b", Start: at(14, 10), End: at(14, 12)},
		{Title: "late", Start: at(25, 10), End: at(25, 12)},
	} {
		_, err := m.CreateEvent(ctx, ev)
		require.NoError(t, err)
	}

	got, err := m.ListEvents(ctx, at(14, 0), at(21, 0))
	require.NoError(t, err)

	titles := make([]string, len(got))
	for i, ev := range got {
		titles[i] = ev.Title
	}
	assert.Equal(t, []string{"a", "b", "c"}, titles)
}

func TestMemory_WithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	_, err := m.CreateEvent(ctx, generic.Event{Title: "kept", Start: at(1, 9), End: at(1, 10)})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = m.WithTx(ctx, func(cs generic.CalendarStore) error {
		if _, err := cs.CreateEvent(ctx, generic.Event{Title: "dropped", Start: at(2, 9), End: at(2, 10)}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, m.Len())

	// A later event with the dropped slot is accepted again.
	_, err = m.CreateEvent(ctx, generic.Event{Title: "dropped", Start: at(2, 9), End: at(2, 10)})
	assert.NoError(t, err)
}

func TestTemplates_CopyAndReplace(t *testing.T) {
	ctx := context.Background()
	tpl := store.NewTemplates()
	tpl.PutTemplate(generic.Template{ID: "t1", Name: "Agenda", Body: "PI: {{Current PI}} / {{Current PI}}"})

	doc, err := tpl.CopyTemplate(ctx, "t1")
	require.NoError(t, err)
	require.NoError(t, tpl.FindAndReplace(ctx, doc, "{{Current PI}}", "FY24.1.1 Week 1"))

	got, ok := tpl.Document(doc)
	require.True(t, ok)
	assert.Equal(t, "PI: FY24.1.1 Week 1 / FY24.1.1 Week 1", got.Body)

	assert.ErrorIs(t, tpl.FindAndReplace(ctx, "nope", "x", "y"), generic.ErrDocumentNotFound)
	_, err = tpl.CopyTemplate(ctx, "nope")
	assert.ErrorIs(t, err, generic.ErrTemplateNotFound)
}

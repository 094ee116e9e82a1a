/*
store.go - Interfaces for the external collaborators the engine talks to

PURPOSE:
  Defines the boundary between the fiscal engine and the hosted calendar
  and document stores. The engine never persists anything itself; it reads
  and writes through these interfaces.

KEY INTERFACES:
  CalendarStore:   Create and list calendar events
  TxCalendarStore: Atomic multi-event writes (all-or-nothing population)
  TemplateStore:   Copy agenda templates and fill their placeholders

DUPLICATE CONTRACT:
  An event is identified by its exact title and start instant. Stores that
  can enforce uniqueness return ErrDuplicateEvent (usually wrapped in a
  DuplicateEventError) on a second write of the same pair; callers treat
  this as "already populated", not as a failure.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - fiscal/populate.go: Writes schedules through CalendarStore
  - fiscal/agenda.go: Fills templates through TemplateStore
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// CALENDAR STORE
// =============================================================================

type EventID string

// Event is a calendar entry. All-day events carry midnight Start and End
// instants where End is the last day of the event (inclusive).
type Event struct {
	ID        EventID
	Title     string
	Start     time.Time
	End       time.Time
	AllDay    bool
	CreatedAt time.Time
}

// SameSlot reports whether two events share title and start instant, the
// identity used for duplicate detection.
func (e Event) SameSlot(other Event) bool {
	return e.Title == other.Title && e.Start.Equal(other.Start)
}

// Overlaps reports whether the event intersects the closed window [from, to].
func (e Event) Overlaps(from, to time.Time) bool {
	return !e.End.Before(from) && !e.Start.After(to)
}

// CalendarStore creates and lists events.
type CalendarStore interface {
	// CreateEvent persists ev and returns its id.
	CreateEvent(ctx context.Context, ev Event) (EventID, error)

	// ListEvents returns events intersecting [start, end], ordered by Start.
	ListEvents(ctx context.Context, start, end time.Time) ([]Event, error)
}

// TxCalendarStore wraps CalendarStore with transaction support.
// If fn returns an error nothing it wrote is kept.
type TxCalendarStore interface {
	CalendarStore
	WithTx(ctx context.Context, fn func(CalendarStore) error) error
}

// =============================================================================
// TEMPLATE STORE
// =============================================================================

type TemplateID string
type DocumentID string

// Template is a named document body containing {{Placeholder}} markers.
type Template struct {
	ID   TemplateID
	Name string
	Body string
}

// Document is a copy of a template, possibly with placeholders filled.
type Document struct {
	ID         DocumentID
	TemplateID TemplateID
	Name       string
	Body       string
	CreatedAt  time.Time
}

// TemplateStore copies templates into documents and edits them.
type TemplateStore interface {
	CopyTemplate(ctx context.Context, id TemplateID) (DocumentID, error)
	FindAndReplace(ctx context.Context, doc DocumentID, placeholder, value string) error
}

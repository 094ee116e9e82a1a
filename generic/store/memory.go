// Package store provides in-memory implementations of the collaborator
// interfaces.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/pi-engine/generic"
)

// =============================================================================
// MEMORY CALENDAR - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu     sync.RWMutex
	events []generic.Event // ordered by Start
	slots  map[slot]generic.EventID
	now    func() time.Time
}

type slot struct {
	Title string
	Start int64
}

func slotOf(ev generic.Event) slot {
	return slot{Title: ev.Title, Start: ev.Start.UnixNano()}
}

func NewMemory() *Memory {
	return &Memory{
		slots: make(map[slot]generic.EventID),
		now:   time.Now,
	}
}

// CreateEvent adds an event. A second event with the same title and start
// is rejected with DuplicateEventError.
func (m *Memory) CreateEvent(_ context.Context, ev generic.Event) (generic.EventID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(ev)
}

func (m *Memory) createLocked(ev generic.Event) (generic.EventID, error) {
	if id, ok := m.slots[slotOf(ev)]; ok {
		return "", &generic.DuplicateEventError{
			Title:      ev.Title,
			Start:      ev.Start.Format(time.RFC3339),
			ExistingID: id,
		}
	}
	if ev.ID == "" {
		ev.ID = generic.EventID(uuid.NewString())
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = m.now().UTC()
	}

	// Binary search for insertion point keeps events ordered by Start.
	i := sort.Search(len(m.events), func(i int) bool {
		return m.events[i].Start.After(ev.Start)
	})
	m.events = append(m.events, generic.Event{})
	copy(m.events[i+1:], m.events[i:])
	m.events[i] = ev
	m.slots[slotOf(ev)] = ev.ID
	return ev.ID, nil
}

func (m *Memory) ListEvents(_ context.Context, start, end time.Time) ([]generic.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(start, end), nil
}

func (m *Memory) listLocked(start, end time.Time) []generic.Event {
	var result []generic.Event
	for _, ev := range m.events {
		if ev.Overlaps(start, end) {
			result = append(result, ev)
		}
	}
	return result
}

// Len returns the number of stored events.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

// WithTx executes fn against a view that writes directly to m. If fn fails,
// the pre-call state is restored.
func (m *Memory) WithTx(_ context.Context, fn func(generic.CalendarStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	if err := fn(&txView{parent: m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	events []generic.Event
	slots  map[slot]generic.EventID
}

func (m *Memory) snapshot() memorySnapshot {
	slots := make(map[slot]generic.EventID, len(m.slots))
	for k, v := range m.slots {
		slots[k] = v
	}
	return memorySnapshot{events: append([]generic.Event(nil), m.events...), slots: slots}
}

func (m *Memory) restore(s memorySnapshot) {
	m.events = s.events
	m.slots = s.slots
}

// txView is handed to WithTx callbacks; the parent lock is already held.
type txView struct {
	parent *Memory
}

func (tv *txView) CreateEvent(_ context.Context, ev generic.Event) (generic.EventID, error) {
	return tv.parent.createLocked(ev)
}

func (tv *txView) ListEvents(_ context.Context, start, end time.Time) ([]generic.Event, error) {
	return tv.parent.listLocked(start, end), nil
}

var (
	_ generic.TxCalendarStore = (*Memory)(nil)
	_ generic.CalendarStore   = (*txView)(nil)
)

// =============================================================================
// MEMORY TEMPLATES
// =============================================================================

// Templates is an in-memory TemplateStore.
type Templates struct {
	mu        sync.RWMutex
	templates map[generic.TemplateID]generic.Template
	documents map[generic.DocumentID]generic.Document
}

func NewTemplates() *Templates {
	return &Templates{
		templates: make(map[generic.TemplateID]generic.Template),
		documents: make(map[generic.DocumentID]generic.Document),
	}
}

// PutTemplate registers or replaces a template.
func (t *Templates) PutTemplate(tpl generic.Template) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.templates[tpl.ID] = tpl
}

func (t *Templates) CopyTemplate(_ context.Context, id generic.TemplateID) (generic.DocumentID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tpl, ok := t.templates[id]
	if !ok {
		return "", generic.ErrTemplateNotFound
	}
	doc := generic.Document{
		ID:         generic.DocumentID(uuid.NewString()),
		TemplateID: id,
		Name:       tpl.Name,
		Body:       tpl.Body,
		CreatedAt:  time.Now().UTC(),
	}
	t.documents[doc.ID] = doc
	return doc.ID, nil
}

func (t *Templates) FindAndReplace(_ context.Context, id generic.DocumentID, placeholder, value string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	doc, ok := t.documents[id]
	if !ok {
		return generic.ErrDocumentNotFound
	}
	doc.Body = strings.ReplaceAll(doc.Body, placeholder, value)
	t.documents[id] = doc
	return nil
}

// Document returns a copy of the stored document.
func (t *Templates) Document(id generic.DocumentID) (generic.Document, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	doc, ok := t.documents[id]
	return doc, ok
}

var _ generic.TemplateStore = (*Templates)(nil)

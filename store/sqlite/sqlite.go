/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Persists the calendar the engine populates, the agenda templates and the
  documents generated from them, plus an audit trail of population runs.

INTERFACES IMPLEMENTED:
  generic.CalendarStore:   Create and list events
  generic.TxCalendarStore: All-or-nothing population
  generic.TemplateStore:   Copy templates, fill placeholders

DUPLICATE CONTRACT:
  idx_events_slot is a unique index on (title, start_at). A second insert of
  the same slot fails with *generic.DuplicateEventError carrying the id of
  the row already there. Timestamps are stored as RFC3339 in UTC, so two
  instants that are Equal collide regardless of their zone.

KEY TABLES:
  events:        Calendar entries
  templates:     Agenda templates with {{placeholder}} markers
  documents:     Copies of templates, filled in place
  populate_runs: One row per population attempt

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WithTx holds the write lock for the
  whole transaction and routes every query through the *sql.Tx.

USAGE:
  store, err := sqlite.New("./data/piengine.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  result, err := populator.Populate(ctx, store, schedule)

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/warp/pi-engine/generic"
)

const timeLayout = time.RFC3339

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Calendar events
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		start_at TEXT NOT NULL,
		end_at TEXT NOT NULL,
		all_day INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- One event per (title, start): the duplicate contract
	CREATE UNIQUE INDEX IF NOT EXISTS idx_events_slot
		ON events(title, start_at);

	-- Window queries
	CREATE INDEX IF NOT EXISTS idx_events_range
		ON events(start_at, end_at);

	-- Agenda templates
	CREATE TABLE IF NOT EXISTS templates (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Documents copied from templates
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		template_id TEXT NOT NULL REFERENCES templates(id),
		name TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_template
		ON documents(template_id);

	-- Population audit trail
	CREATE TABLE IF NOT EXISTS populate_runs (
		id TEXT PRIMARY KEY,
		increment TEXT NOT NULL,
		pi_start TEXT NOT NULL,
		trigger_source TEXT NOT NULL,
		status TEXT NOT NULL,
		created INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_populate_runs_started
		ON populate_runs(started_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// execer and querier are satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type conn interface {
	execer
	querier
}

// =============================================================================
// CALENDAR STORE (generic.CalendarStore interface)
// =============================================================================

// CreateEvent inserts ev. A second event with the same title and start is
// rejected with *generic.DuplicateEventError.
func (s *Store) CreateEvent(ctx context.Context, ev generic.Event) (generic.EventID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return createEvent(ctx, s.db, ev)
}

func createEvent(ctx context.Context, db conn, ev generic.Event) (generic.EventID, error) {
	if ev.ID == "" {
		ev.ID = generic.EventID(uuid.NewString())
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO events (id, title, start_at, end_at, all_day, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		ev.ID,
		ev.Title,
		formatTime(ev.Start),
		formatTime(ev.End),
		ev.AllDay,
		formatTime(ev.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			dup := &generic.DuplicateEventError{Title: ev.Title, Start: formatTime(ev.Start)}
			// Best effort: the caller only needs the sentinel.
			_ = db.QueryRowContext(ctx,
				"SELECT id FROM events WHERE title = ? AND start_at = ?",
				ev.Title, formatTime(ev.Start),
			).Scan(&dup.ExistingID)
			return "", dup
		}
		return "", fmt.Errorf("failed to create event: %w", err)
	}

	return ev.ID, nil
}

// ListEvents returns events intersecting [start, end], ordered by start.
func (s *Store) ListEvents(ctx context.Context, start, end time.Time) ([]generic.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return listEvents(ctx, s.db, start, end)
}

func listEvents(ctx context.Context, db querier, start, end time.Time) ([]generic.Event, error) {
	query := `
		SELECT id, title, start_at, end_at, all_day, created_at
		FROM events
		WHERE end_at >= ? AND start_at <= ?
		ORDER BY start_at ASC, created_at ASC
	`

	rows, err := db.QueryContext(ctx, query, formatTime(start), formatTime(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []generic.Event
	for rows.Next() {
		var (
			ev                        generic.Event
			startAt, endAt, createdAt string
		)
		if err := rows.Scan(&ev.ID, &ev.Title, &startAt, &endAt, &ev.AllDay, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Start = parseTime(startAt)
		ev.End = parseTime(endAt)
		ev.CreatedAt = parseTime(createdAt)
		events = append(events, ev)
	}

	return events, rows.Err()
}

// CountEvents returns the number of stored events.
func (s *Store) CountEvents(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&n)
	return n, err
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxCalendarStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(generic.CalendarStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) CreateEvent(ctx context.Context, ev generic.Event) (generic.EventID, error) {
	return createEvent(ctx, ts.tx, ev)
}

func (ts *txStore) ListEvents(ctx context.Context, start, end time.Time) ([]generic.Event, error) {
	return listEvents(ctx, ts.tx, start, end)
}

// =============================================================================
// TEMPLATE STORE (generic.TemplateStore interface)
// =============================================================================

// SaveTemplate creates or replaces a template and returns its id. An empty
// ID is assigned a new one.
func (s *Store) SaveTemplate(ctx context.Context, t generic.Template) (generic.TemplateID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = generic.TemplateID(uuid.NewString())
	}
	now := formatTime(time.Now())

	query := `
		INSERT INTO templates (id, name, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			body = excluded.body,
			updated_at = excluded.updated_at
	`

	if _, err := s.db.ExecContext(ctx, query, t.ID, t.Name, t.Body, now, now); err != nil {
		return "", fmt.Errorf("failed to save template: %w", err)
	}
	return t.ID, nil
}

// GetTemplate returns a template by id.
func (s *Store) GetTemplate(ctx context.Context, id generic.TemplateID) (*generic.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var t generic.Template
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, body FROM templates WHERE id = ?", id,
	).Scan(&t.ID, &t.Name, &t.Body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("template %s: %w", id, generic.ErrTemplateNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CopyTemplate creates a new document from a template.
func (s *Store) CopyTemplate(ctx context.Context, id generic.TemplateID) (generic.DocumentID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var name, body string
	err := s.db.QueryRowContext(ctx,
		"SELECT name, body FROM templates WHERE id = ?", id,
	).Scan(&name, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("template %s: %w", id, generic.ErrTemplateNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to load template: %w", err)
	}

	docID := generic.DocumentID(uuid.NewString())
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, template_id, name, body, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, docID, id, name, body, formatTime(time.Now()))
	if err != nil {
		return "", fmt.Errorf("failed to create document: %w", err)
	}
	return docID, nil
}

// FindAndReplace replaces every occurrence of placeholder in the document.
func (s *Store) FindAndReplace(ctx context.Context, id generic.DocumentID, placeholder, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// REPLACE() keeps the edit in one statement; no read-modify-write race.
	res, err := s.db.ExecContext(ctx,
		"UPDATE documents SET body = REPLACE(body, ?, ?) WHERE id = ?",
		placeholder, value, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, generic.ErrDocumentNotFound)
	}
	return nil
}

// GetDocument returns a document by id.
func (s *Store) GetDocument(ctx context.Context, id generic.DocumentID) (*generic.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		d         generic.Document
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, template_id, name, body, created_at FROM documents WHERE id = ?", id,
	).Scan(&d.ID, &d.TemplateID, &d.Name, &d.Body, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, generic.ErrDocumentNotFound)
	}
	if err != nil {
		return nil, err
	}
	d.CreatedAt = parseTime(createdAt)
	return &d, nil
}

// =============================================================================
// POPULATE RUNS
// =============================================================================

// Run statuses.
const (
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// PopulateRun records one population attempt.
type PopulateRun struct {
	ID          string
	Increment   string
	PIStart     generic.TimePoint
	Trigger     string // api, scheduler, cli
	Status      string
	Created     int
	Skipped     int
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
}

// SaveRun inserts or updates a run.
func (s *Store) SaveRun(ctx context.Context, r PopulateRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	query := `
		INSERT INTO populate_runs (id, increment, pi_start, trigger_source, status,
			created, skipped, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			created = excluded.created,
			skipped = excluded.skipped,
			error = excluded.error,
			completed_at = excluded.completed_at
	`

	var completedAt *string
	if r.CompletedAt != nil {
		c := formatTime(*r.CompletedAt)
		completedAt = &c
	}

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Increment, r.PIStart.String(), r.Trigger, r.Status,
		r.Created, r.Skipped, nullString(r.Error),
		formatTime(r.StartedAt), completedAt,
	)
	return err
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]PopulateRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, increment, pi_start, trigger_source, status, created, skipped,
			error, started_at, completed_at
		FROM populate_runs
		ORDER BY started_at DESC, rowid DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []PopulateRun
	for rows.Next() {
		var (
			r                  PopulateRun
			piStart, startedAt string
			errText, completed sql.NullString
		)
		if err := rows.Scan(
			&r.ID, &r.Increment, &piStart, &r.Trigger, &r.Status, &r.Created, &r.Skipped,
			&errText, &startedAt, &completed,
		); err != nil {
			return nil, err
		}

		if r.PIStart, err = generic.ParseDate(piStart); err != nil {
			return nil, fmt.Errorf("run %s: pi_start: %w", r.ID, err)
		}
		r.Error = errText.String
		r.StartedAt = parseTime(startedAt)
		if completed.Valid {
			t := parseTime(completed.String)
			r.CompletedAt = &t
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// Helper functions

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

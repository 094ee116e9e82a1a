/*
handlers.go - HTTP API handlers for the fiscal PI engine

PURPOSE:
  Exposes label resolution, schedule expansion and calendar population via
  REST API. Handles HTTP request/response, JSON serialization, and
  delegates to the fiscal package.

ENDPOINTS:
  Labels:
    GET    /api/label?date=            Label for a date (default: today)
    GET    /api/label/next?date=       Label for the first of next month
    GET    /api/progress?date=         Position within the increment
    GET    /api/fiscal-year?date=      Federal fiscal year span

  Schedules:
    GET    /api/schedule?start=&fy=&pi=      Expanded increment
    GET    /api/schedule.ics?start=&fy=&pi=  Same, as iCalendar
    POST   /api/schedule/populate            Write it to the calendar
    GET    /api/events?from=&to=             Stored calendar events
    GET    /api/runs?limit=                  Population audit trail

  Agendas:
    POST   /api/templates              Register a template
    POST   /api/agendas                Copy a template and fill placeholders

SCHEDULE SELECTION:
  fy+pi picks an increment; start overrides where it begins. start alone
  expands the increment that begins on that date. Neither picks the
  increment after today's.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid dates, dates before the base date, bad parameters
  - 404: Template or document not found
  - 409: Duplicate event
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scheduler.go: Cron-triggered population
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/pi-engine/fiscal"
	"github.com/warp/pi-engine/generic"
	"github.com/warp/pi-engine/ics"
	"github.com/warp/pi-engine/store/sqlite"
)

// errBadRequest marks malformed query parameters and bodies.
var errBadRequest = errors.New("bad request")

// Populate triggers recorded in the run table.
const (
	TriggerAPI       = "api"
	TriggerScheduler = "scheduler"
	TriggerCLI       = "cli"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine    *fiscal.Engine
	Store     *sqlite.Store
	Populator *fiscal.Populator
	Logger    *zap.Logger

	fiscalYears generic.PeriodConfig
}

// NewHandler creates a new handler. A nil logger disables logging.
func NewHandler(engine *fiscal.Engine, store *sqlite.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Engine:    engine,
		Store:     store,
		Populator: fiscal.NewPopulator(logger.Named("populate")),
		Logger:    logger,
		fiscalYears: generic.PeriodConfig{
			Type:                 generic.PeriodFiscalYear,
			FiscalYearStartMonth: generic.FederalFiscalYearStart,
		},
	}
}

// =============================================================================
// LABEL HANDLERS
// =============================================================================

// GetLabel resolves ?date= (default today).
func (h *Handler) GetLabel(w http.ResponseWriter, r *http.Request) {
	date, err := h.dateParam(r, "date")
	if err != nil {
		h.fail(w, "Invalid date", err)
		return
	}

	label, err := fiscal.Resolve(h.Engine.Config(), date)
	if err != nil {
		h.fail(w, "Failed to resolve label", err)
		return
	}

	writeJSON(w, http.StatusOK, toLabelDTO(date, label))
}

// GetNextMonthLabel resolves the first day of the month after ?date=.
func (h *Handler) GetNextMonthLabel(w http.ResponseWriter, r *http.Request) {
	date, err := h.dateParam(r, "date")
	if err != nil {
		h.fail(w, "Invalid date", err)
		return
	}

	label, err := fiscal.ResolveNextMonth(h.Engine.Config(), date)
	if err != nil {
		h.fail(w, "Failed to resolve label", err)
		return
	}

	writeJSON(w, http.StatusOK, toLabelDTO(generic.FirstOfNextMonth(date), label))
}

// GetProgress reports the position of ?date= within its increment.
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	date, err := h.dateParam(r, "date")
	if err != nil {
		h.fail(w, "Invalid date", err)
		return
	}

	report, err := fiscal.Progress(h.Engine.Config(), date)
	if err != nil {
		h.fail(w, "Failed to compute progress", err)
		return
	}

	writeJSON(w, http.StatusOK, toProgressDTO(date, report))
}

// GetFiscalYear returns the federal fiscal year containing ?date=.
func (h *Handler) GetFiscalYear(w http.ResponseWriter, r *http.Request) {
	date, err := h.dateParam(r, "date")
	if err != nil {
		h.fail(w, "Invalid date", err)
		return
	}

	period := h.fiscalYears.PeriodFor(date)
	writeJSON(w, http.StatusOK, FiscalYearDTO{
		Date:       date.String(),
		FiscalYear: h.fiscalYears.ShortFiscalYearOf(date),
		Start:      period.Start.String(),
		End:        period.End.String(),
	})
}

// =============================================================================
// SCHEDULE HANDLERS
// =============================================================================

// GetSchedule expands an increment.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	s, err := h.scheduleFromQuery(r)
	if err != nil {
		h.fail(w, "Failed to expand schedule", err)
		return
	}

	writeJSON(w, http.StatusOK, toScheduleDTO(s))
}

// GetScheduleICS expands an increment and serves it as iCalendar.
func (h *Handler) GetScheduleICS(w http.ResponseWriter, r *http.Request) {
	s, err := h.scheduleFromQuery(r)
	if err != nil {
		h.fail(w, "Failed to expand schedule", err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="pi-%s.ics"`, s.Increment))
	if err := ics.ExportSchedule(w, s, time.Now()); err != nil {
		h.Logger.Error("ics export failed", zap.Error(err))
	}
}

// PopulateSchedule writes an increment to the calendar.
func (h *Handler) PopulateSchedule(w http.ResponseWriter, r *http.Request) {
	var req PopulateRequest
	// An empty body selects the next increment.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var start generic.TimePoint
	if req.Start != "" {
		var err error
		if start, err = generic.ParseDate(req.Start); err != nil {
			h.fail(w, "Invalid start", err)
			return
		}
	}
	var inc *fiscal.Increment
	if req.FiscalYear != 0 || req.ProgramIncrement != 0 {
		inc = &fiscal.Increment{FiscalYear: req.FiscalYear, Number: req.ProgramIncrement}
	}

	s, err := h.SelectSchedule(start, inc)
	if err != nil {
		h.fail(w, "Failed to expand schedule", err)
		return
	}

	result, run, err := h.RunPopulate(r.Context(), s, TriggerAPI)
	if err != nil {
		h.fail(w, "Failed to populate calendar", err)
		return
	}

	resp := PopulateResponse{
		RunID:     run.ID,
		Increment: result.Increment.String(),
		Created:   make([]EventDTO, len(result.Created)),
		Skipped:   make([]EventDTO, len(result.Skipped)),
	}
	for i, ev := range result.Created {
		resp.Created[i] = toEventDTO(ev)
	}
	for i, ev := range result.Skipped {
		resp.Skipped[i] = toScheduledEventDTO(ev)
	}
	writeJSON(w, http.StatusOK, resp)
}

// RunPopulate populates s and records the attempt in the run table. A run
// row is written even when population fails.
func (h *Handler) RunPopulate(ctx context.Context, s fiscal.Schedule, trigger string) (fiscal.PopulateResult, sqlite.PopulateRun, error) {
	run := sqlite.PopulateRun{
		ID:        uuid.NewString(),
		Increment: s.Increment.String(),
		PIStart:   s.Start,
		Trigger:   trigger,
		StartedAt: time.Now(),
	}

	result, err := h.Populator.Populate(ctx, h.Store, s)

	done := time.Now()
	run.CompletedAt = &done
	run.Created = len(result.Created)
	run.Skipped = len(result.Skipped)
	run.Status = sqlite.RunCompleted
	if err != nil {
		run.Status = sqlite.RunFailed
		run.Error = err.Error()
	}

	// Record with a fresh context so a cancelled request still leaves a trace.
	if saveErr := h.Store.SaveRun(context.WithoutCancel(ctx), run); saveErr != nil {
		h.Logger.Error("failed to record populate run", zap.String("run_id", run.ID), zap.Error(saveErr))
	}

	return result, run, err
}

// ListEvents returns stored events between ?from= and ?to= (inclusive
// dates). Both default to today's increment.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	cfg := h.Engine.Config()
	loc := cfg.Location()

	from, to, err := h.eventWindow(r)
	if err != nil {
		h.fail(w, "Invalid window", err)
		return
	}

	events, err := h.Store.ListEvents(r.Context(), from.At(0, 0, loc), to.At(23, 59, loc))
	if err != nil {
		h.fail(w, "Failed to list events", err)
		return
	}

	dtos := make([]EventDTO, len(events))
	for i, ev := range events {
		dtos[i] = toEventDTO(ev)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListRuns returns the population audit trail, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	runs, err := h.Store.ListRuns(r.Context(), limit)
	if err != nil {
		h.fail(w, "Failed to list runs", err)
		return
	}

	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// AGENDA HANDLERS
// =============================================================================

// CreateTemplate registers or replaces an agenda template.
func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req CreateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" || req.Body == "" {
		writeError(w, http.StatusBadRequest, "Name and body are required", nil)
		return
	}

	id, err := h.Store.SaveTemplate(r.Context(), generic.Template{
		ID:   generic.TemplateID(req.ID),
		Name: req.Name,
		Body: req.Body,
	})
	if err != nil {
		h.fail(w, "Failed to save template", err)
		return
	}

	writeJSON(w, http.StatusCreated, TemplateDTO{ID: string(id), Name: req.Name, Body: req.Body})
}

// CreateAgenda copies a template and fills its PI placeholders.
func (h *Handler) CreateAgenda(w http.ResponseWriter, r *http.Request) {
	var req CreateAgendaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.TemplateID == "" {
		writeError(w, http.StatusBadRequest, "template_id is required", nil)
		return
	}

	gen := &fiscal.AgendaGenerator{Engine: h.Engine, Templates: h.Store}
	docID, err := gen.Generate(r.Context(), generic.TemplateID(req.TemplateID))
	if err != nil {
		h.fail(w, "Failed to generate agenda", err)
		return
	}

	doc, err := h.Store.GetDocument(r.Context(), docID)
	if err != nil {
		h.fail(w, "Failed to load agenda", err)
		return
	}

	h.Logger.Info("agenda generated",
		zap.String("template_id", req.TemplateID),
		zap.String("document_id", string(docID)))

	writeJSON(w, http.StatusCreated, DocumentDTO{
		ID:         string(doc.ID),
		TemplateID: string(doc.TemplateID),
		Name:       doc.Name,
		Body:       doc.Body,
		CreatedAt:  doc.CreatedAt.Format(time.RFC3339),
	})
}

// Health pings the database.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// PARAMETER PARSING
// =============================================================================

// dateParam reads a YYYY-MM-DD query parameter, defaulting to today.
func (h *Handler) dateParam(r *http.Request, name string) (generic.TimePoint, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return h.Engine.Today(), nil
	}
	return generic.ParseDate(s)
}

func (h *Handler) scheduleFromQuery(r *http.Request) (fiscal.Schedule, error) {
	q := r.URL.Query()

	var start generic.TimePoint
	if s := q.Get("start"); s != "" {
		var err error
		if start, err = generic.ParseDate(s); err != nil {
			return fiscal.Schedule{}, err
		}
	}

	fy, pi := q.Get("fy"), q.Get("pi")
	if (fy == "") != (pi == "") {
		return fiscal.Schedule{}, fmt.Errorf("%w: fy and pi must be given together", errBadRequest)
	}

	var inc *fiscal.Increment
	if fy != "" {
		year, err := strconv.Atoi(fy)
		if err != nil {
			return fiscal.Schedule{}, fmt.Errorf("%w: fy %q", errBadRequest, fy)
		}
		number, err := strconv.Atoi(pi)
		if err != nil {
			return fiscal.Schedule{}, fmt.Errorf("%w: pi %q", errBadRequest, pi)
		}
		inc = &fiscal.Increment{FiscalYear: year, Number: number}
	}

	return h.SelectSchedule(start, inc)
}

// SelectSchedule applies the SCHEDULE SELECTION rules above.
func (h *Handler) SelectSchedule(start generic.TimePoint, inc *fiscal.Increment) (fiscal.Schedule, error) {
	cfg := h.Engine.Config()

	switch {
	case inc != nil && !start.IsZero():
		return fiscal.ExpandSchedule(cfg, start, *inc)
	case inc != nil:
		return fiscal.ExpandIncrement(cfg, *inc)
	case !start.IsZero():
		label, err := fiscal.Resolve(cfg, start)
		if err != nil {
			return fiscal.Schedule{}, err
		}
		return fiscal.ExpandSchedule(cfg, start, label.PI())
	default:
		next, nextStart, err := h.Engine.NextIncrement()
		if err != nil {
			return fiscal.Schedule{}, err
		}
		return fiscal.ExpandSchedule(cfg, nextStart, next)
	}
}

func (h *Handler) eventWindow(r *http.Request) (generic.TimePoint, generic.TimePoint, error) {
	q := r.URL.Query()
	cfg := h.Engine.Config()

	var from, to generic.TimePoint
	var err error
	if s := q.Get("from"); s != "" {
		if from, err = generic.ParseDate(s); err != nil {
			return from, to, err
		}
	} else if from, err = fiscal.PIStart(cfg, h.Engine.Today()); err != nil {
		return from, to, err
	}

	if s := q.Get("to"); s != "" {
		if to, err = generic.ParseDate(s); err != nil {
			return from, to, err
		}
	} else {
		next, err := fiscal.NextPIStart(cfg, from)
		if err != nil {
			return from, to, err
		}
		to = next.AddDays(-1)
	}

	if to.Before(from) {
		return from, to, fmt.Errorf("%w: %s", generic.ErrInvalidPeriod, generic.Period{Start: from, End: to})
	}
	return from, to, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), generic.IsClientError(err):
		return http.StatusBadRequest
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with the status statusFor picks. Server errors are logged.
func (h *Handler) fail(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error(message, zap.Error(err))
	}
	writeError(w, status, message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func strPtr(s string) *string {
	return &s
}

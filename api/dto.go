/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the fiscal model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Labels:    LabelDTO, ProgressDTO, FiscalYearDTO
  Schedules: ScheduleDTO, EventDTO
  Populate:  PopulateRequest, PopulateResponse, RunDTO
  Agendas:   CreateTemplateRequest, TemplateDTO, CreateAgendaRequest, DocumentDTO

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/pi-engine/fiscal"
	"github.com/warp/pi-engine/generic"
	"github.com/warp/pi-engine/store/sqlite"
)

// =============================================================================
// LABELS
// =============================================================================

// LabelDTO is a resolved date.
type LabelDTO struct {
	Date             string `json:"date"`
	Label            string `json:"label"`
	Numeric          string `json:"numeric"`
	SprintLabel      string `json:"sprint_label"`
	Increment        string `json:"increment"`
	FiscalYear       int    `json:"fiscal_year"`
	ProgramIncrement int    `json:"program_increment"`
	Sprint           int    `json:"sprint"`
	Week             int    `json:"week"`
	Flex             bool   `json:"flex"`
}

func toLabelDTO(date generic.TimePoint, l fiscal.Label) LabelDTO {
	return LabelDTO{
		Date:             date.String(),
		Label:            l.String(),
		Numeric:          l.Numeric(),
		SprintLabel:      l.SprintLabel(),
		Increment:        l.PI().String(),
		FiscalYear:       l.FiscalYear,
		ProgramIncrement: l.ProgramIncrement,
		Sprint:           l.Sprint,
		Week:             l.Week,
		Flex:             l.IsFlex(),
	}
}

// ProgressDTO reports how far into its increment a date is.
type ProgressDTO struct {
	Date      string `json:"date"`
	Label     string `json:"label"`
	Increment string `json:"increment"`
	PIStart   string `json:"pi_start"`
	NextStart string `json:"next_pi_start"`
	DayOfPI   int    `json:"day_of_pi"`
	TotalDays int    `json:"total_days"`
	Percent   string `json:"percent"`
}

func toProgressDTO(date generic.TimePoint, p fiscal.ProgressReport) ProgressDTO {
	return ProgressDTO{
		Date:      date.String(),
		Label:     p.Label.String(),
		Increment: p.Increment.String(),
		PIStart:   p.PIStart.String(),
		NextStart: p.NextStart.String(),
		DayOfPI:   p.DayOfPI,
		TotalDays: p.TotalDays,
		Percent:   p.Percent.String(),
	}
}

// FiscalYearDTO is the federal fiscal year containing a date.
type FiscalYearDTO struct {
	Date       string `json:"date"`
	FiscalYear int    `json:"fiscal_year"`
	Start      string `json:"start"`
	End        string `json:"end"`
}

// =============================================================================
// SCHEDULES
// =============================================================================

// EventDTO is a scheduled or stored calendar event.
type EventDTO struct {
	ID     string `json:"id,omitempty"`
	Kind   string `json:"kind,omitempty"`
	Title  string `json:"title"`
	Start  string `json:"start"`
	End    string `json:"end"`
	AllDay bool   `json:"all_day"`
}

func toScheduledEventDTO(ev fiscal.ScheduledEvent) EventDTO {
	return EventDTO{
		Kind:   string(ev.Kind),
		Title:  ev.Title,
		Start:  ev.Start.Format(time.RFC3339),
		End:    ev.End.Format(time.RFC3339),
		AllDay: ev.AllDay,
	}
}

func toEventDTO(ev generic.Event) EventDTO {
	return EventDTO{
		ID:     string(ev.ID),
		Title:  ev.Title,
		Start:  ev.Start.Format(time.RFC3339),
		End:    ev.End.Format(time.RFC3339),
		AllDay: ev.AllDay,
	}
}

// ScheduleDTO is the expanded layout of one increment.
type ScheduleDTO struct {
	Increment string     `json:"increment"`
	Start     string     `json:"start"`
	End       string     `json:"end"`
	Events    []EventDTO `json:"events"`
}

func toScheduleDTO(s fiscal.Schedule) ScheduleDTO {
	period := s.Period()
	events := s.Events()
	dto := ScheduleDTO{
		Increment: s.Increment.String(),
		Start:     period.Start.String(),
		End:       period.End.String(),
		Events:    make([]EventDTO, len(events)),
	}
	for i, ev := range events {
		dto.Events[i] = toScheduledEventDTO(ev)
	}
	return dto
}

// =============================================================================
// POPULATE
// =============================================================================

// PopulateRequest selects the increment to populate. All fields are
// optional; an empty body populates the next increment.
type PopulateRequest struct {
	Start            string `json:"start,omitempty"`
	FiscalYear       int    `json:"fiscal_year,omitempty"`
	ProgramIncrement int    `json:"pi,omitempty"`
}

// PopulateResponse reports a population run.
type PopulateResponse struct {
	RunID     string     `json:"run_id"`
	Increment string     `json:"increment"`
	Created   []EventDTO `json:"created"`
	Skipped   []EventDTO `json:"skipped"`
}

// RunDTO is one row of the population audit trail.
type RunDTO struct {
	ID          string  `json:"id"`
	Increment   string  `json:"increment"`
	PIStart     string  `json:"pi_start"`
	Trigger     string  `json:"trigger"`
	Status      string  `json:"status"`
	Created     int     `json:"created"`
	Skipped     int     `json:"skipped"`
	Error       string  `json:"error,omitempty"`
	StartedAt   string  `json:"started_at"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

func toRunDTO(r sqlite.PopulateRun) RunDTO {
	dto := RunDTO{
		ID:        r.ID,
		Increment: r.Increment,
		PIStart:   r.PIStart.String(),
		Trigger:   r.Trigger,
		Status:    r.Status,
		Created:   r.Created,
		Skipped:   r.Skipped,
		Error:     r.Error,
		StartedAt: r.StartedAt.Format(time.RFC3339),
	}
	if r.CompletedAt != nil {
		dto.CompletedAt = strPtr(r.CompletedAt.Format(time.RFC3339))
	}
	return dto
}

// =============================================================================
// AGENDAS
// =============================================================================

// CreateTemplateRequest registers an agenda template.
type CreateTemplateRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Body string `json:"body"`
}

// TemplateDTO represents a template in API responses.
type TemplateDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Body string `json:"body"`
}

// CreateAgendaRequest asks for a new agenda from a template.
type CreateAgendaRequest struct {
	TemplateID string `json:"template_id"`
}

// DocumentDTO represents a generated agenda.
type DocumentDTO struct {
	ID         string `json:"id"`
	TemplateID string `json:"template_id"`
	Name       string `json:"name"`
	Body       string `json:"body"`
	CreatedAt  string `json:"created_at"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

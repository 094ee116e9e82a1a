package fiscal

import (
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"
	"github.com/warp/pi-engine/generic"
)

// =============================================================================
// SCHEDULE - PI start date -> event layout
// =============================================================================

// EventKind classifies scheduled events.
type EventKind string

const (
	KindSprint          EventKind = "sprint"
	KindSprintReview    EventKind = "sprint_review"
	KindInnovationWeek  EventKind = "innovation_week"
	KindPlanningWeek    EventKind = "next_pi_planning"
	KindPlanningSession EventKind = "planning_session"
)

// Title formats. Sprint reviews always use the "Sprint Review - " prefix.
const (
	sprintTitle          = "PI %s Sprint %d"
	sprintReviewTitle    = "Sprint Review - PI %s Sprint %d"
	innovationWeekTitle  = "PI %s " + InnovationWeek
	planningWeekTitle    = "PI %s " + NextPIPlanning
	planningSessionTitle = "PI %s IMPACT PI Planning %s"
)

// clockSlot is a time-of-day window on a given day offset.
type clockSlot struct {
	name                string
	dayOffset           int
	startHour, startMin int
	endHour, endMin     int
}

var (
	sprintReviewSlot = clockSlot{startHour: 10, endHour: 12}

	// Offsets are days from the first day of the planning week.
	planningSessions = []clockSlot{
		{name: "Welcome", dayOffset: 2, startHour: 10, endHour: 11, endMin: 30},
		{name: "Management Review", dayOffset: 4, startHour: 9, startMin: 30, endHour: 12},
		{name: "Final Presentation", dayOffset: 5, startHour: 10, endHour: 11, endMin: 30},
	}
)

// ScheduledEvent is one entry of a Schedule. All-day events start and end
// at midnight of their first and last (inclusive) day.
type ScheduledEvent struct {
	Kind   EventKind `json:"kind"`
	Title  string    `json:"title"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	AllDay bool      `json:"all_day"`
}

// Period returns the calendar days the event covers.
func (e ScheduledEvent) Period() generic.Period {
	return generic.Period{Start: generic.DateOf(e.Start), End: generic.DateOf(e.End)}
}

// Event converts to the calendar store representation.
func (e ScheduledEvent) Event() generic.Event {
	return generic.Event{Title: e.Title, Start: e.Start, End: e.End, AllDay: e.AllDay}
}

// Sprint is a delivery sprint and its review meeting.
type Sprint struct {
	Number int            `json:"number"`
	Span   ScheduledEvent `json:"span"`
	Review ScheduledEvent `json:"review"`
}

// Schedule is the full layout of one Program Increment. It is recomputed on
// demand and never stored by the engine.
type Schedule struct {
	Increment        Increment         `json:"increment"`
	Start            generic.TimePoint `json:"start"`
	Sprints          []Sprint          `json:"sprints"`
	InnovationWeek   ScheduledEvent    `json:"innovation_week"`
	NextPIPlanning   ScheduledEvent    `json:"next_pi_planning"`
	PlanningSessions []ScheduledEvent  `json:"planning_sessions"`
}

// Period returns the 84 days the increment covers.
func (s Schedule) Period() generic.Period {
	return generic.NewPeriod(s.Start, IncrementDays)
}

// Spans returns the sprint and flex-week spans in order. They are
// contiguous and together cover Period().
func (s Schedule) Spans() []generic.Period {
	spans := make([]generic.Period, 0, len(s.Sprints)+2)
	for _, sp := range s.Sprints {
		spans = append(spans, sp.Span.Period())
	}
	return append(spans, s.InnovationWeek.Period(), s.NextPIPlanning.Period())
}

// Events returns every event ordered by start; ties keep layout order.
func (s Schedule) Events() []ScheduledEvent {
	events := make([]ScheduledEvent, 0, 2*len(s.Sprints)+2+len(s.PlanningSessions))
	for _, sp := range s.Sprints {
		events = append(events, sp.Span, sp.Review)
	}
	events = append(events, s.InnovationWeek, s.NextPIPlanning)
	events = append(events, s.PlanningSessions...)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
	return events
}

// ExpandSchedule lays out the increment inc beginning on start:
//   - five two-week sprints, each with a review on its last review weekday
//   - Innovation Week on days 70-76 and Next PI Planning on days 77-83
//   - the three planning sessions of the following increment
func ExpandSchedule(cfg *Config, start generic.TimePoint, inc Increment) (Schedule, error) {
	if start.IsZero() {
		return Schedule{}, &generic.InvalidDateError{Input: start.String()}
	}
	if err := inc.Validate(); err != nil {
		return Schedule{}, &generic.InvalidDateError{Input: inc.String(), Err: err}
	}
	loc := cfg.location
	label := inc.String()

	reviews, err := reviewDays(cfg, start)
	if err != nil {
		return Schedule{}, err
	}

	s := Schedule{Increment: inc, Start: start}
	for i := 1; i <= DeliverySprints; i++ {
		span := generic.NewPeriod(start.AddDays((i-1)*SprintDays), SprintDays)
		reviewDay, ok := lastIn(reviews, span)
		if !ok {
			return Schedule{}, fmt.Errorf("sprint %d of PI %s has no %s", i, label, cfg.reviewWeekday)
		}
		s.Sprints = append(s.Sprints, Sprint{
			Number: i,
			Span:   allDay(KindSprint, fmt.Sprintf(sprintTitle, label, i), span, loc),
			Review: sprintReviewSlot.on(KindSprintReview, fmt.Sprintf(sprintReviewTitle, label, i), reviewDay, loc),
		})
	}

	flexStart := start.AddDays(DeliverySprints * SprintDays)
	innovation := generic.NewPeriod(flexStart, DaysPerWeek)
	planning := innovation.NextPeriod()
	s.InnovationWeek = allDay(KindInnovationWeek, fmt.Sprintf(innovationWeekTitle, label), innovation, loc)
	s.NextPIPlanning = allDay(KindPlanningWeek, fmt.Sprintf(planningWeekTitle, label), planning, loc)

	next := inc.Next().String()
	for _, slot := range planningSessions {
		title := fmt.Sprintf(planningSessionTitle, next, slot.name)
		s.PlanningSessions = append(s.PlanningSessions,
			slot.on(KindPlanningSession, title, planning.Start.AddDays(slot.dayOffset), loc))
	}
	return s, nil
}

// ExpandIncrement expands inc from its computed start date.
func ExpandIncrement(cfg *Config, inc Increment) (Schedule, error) {
	start, err := IncrementStart(cfg, inc)
	if err != nil {
		return Schedule{}, err
	}
	return ExpandSchedule(cfg, start, inc)
}

// reviewDays lists every review weekday across the delivery sprints.
func reviewDays(cfg *Config, start generic.TimePoint) ([]generic.TimePoint, error) {
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: []rrule.Weekday{rruleWeekday(cfg.reviewWeekday)},
		Dtstart:   start.Time,
		Until:     start.AddDays(DeliverySprints*SprintDays - 1).Time,
	})
	if err != nil {
		return nil, fmt.Errorf("build review recurrence: %w", err)
	}
	occurrences := rule.All()
	days := make([]generic.TimePoint, len(occurrences))
	for i, t := range occurrences {
		days[i] = generic.DateOf(t)
	}
	return days, nil
}

func lastIn(days []generic.TimePoint, span generic.Period) (generic.TimePoint, bool) {
	var found generic.TimePoint
	ok := false
	for _, d := range days {
		if span.Contains(d) {
			found, ok = d, true
		}
	}
	return found, ok
}

func rruleWeekday(d time.Weekday) rrule.Weekday {
	return [...]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}[d]
}

func allDay(kind EventKind, title string, p generic.Period, loc *time.Location) ScheduledEvent {
	return ScheduledEvent{
		Kind:   kind,
		Title:  title,
		Start:  p.Start.At(0, 0, loc),
		End:    p.End.At(0, 0, loc),
		AllDay: true,
	}
}

func (c clockSlot) on(kind EventKind, title string, day generic.TimePoint, loc *time.Location) ScheduledEvent {
	return ScheduledEvent{
		Kind:  kind,
		Title: title,
		Start: day.At(c.startHour, c.startMin, loc),
		End:   day.At(c.endHour, c.endMin, loc),
	}
}

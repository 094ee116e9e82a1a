// Package ics converts PI schedules to iCalendar and reads holiday feeds
// back as adjustment weeks.
package ics

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/warp/pi-engine/fiscal"
	"github.com/warp/pi-engine/generic"
)

const productID = "-//Warp//PI Engine//EN"

// uidSpace scopes event UIDs so the same title and start always export with
// the same UID, and re-imports update instead of duplicating.
var uidSpace = uuid.MustParse("6f1c0a52-5c1e-4c8e-9f3e-7d0c1b9a4e21")

// EventUID returns the stable UID for an event slot.
func EventUID(title string, start time.Time) string {
	return uuid.NewSHA1(uidSpace, []byte(title+"|"+start.UTC().Format(time.RFC3339))).String() + "@pi-engine"
}

// ExportSchedule writes every event of s as a VCALENDAR named after the
// increment.
func ExportSchedule(w io.Writer, s fiscal.Schedule, stamp time.Time) error {
	return ExportEvents(w, "PI "+s.Increment.String(), s.Events(), stamp)
}

// ExportEvents writes events as a VCALENDAR. All-day events are emitted as
// DATE values with the exclusive DTEND iCalendar expects.
func ExportEvents(w io.Writer, name string, events []fiscal.ScheduledEvent, stamp time.Time) error {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetName(name)
		cal.SetXWRCalName(name)
	}

	for _, ev := range events {
		ve := cal.AddEvent(EventUID(ev.Title, ev.Start))
		ve.SetDtStampTime(stamp)
		ve.SetSummary(ev.Title)
		ve.AddCategory(string(ev.Kind))
		if ev.AllDay {
			ve.SetAllDayStartAt(ev.Start)
			ve.SetAllDayEndAt(ev.End.AddDate(0, 0, 1))
			ve.SetTimeTransparency(ical.TransparencyTransparent)
		} else {
			ve.SetStartAt(ev.Start)
			ve.SetEndAt(ev.End)
		}
	}

	if err := cal.SerializeTo(w); err != nil {
		return fmt.Errorf("failed to serialize calendar: %w", err)
	}
	return nil
}

// ImportAdjustmentWeeks reads a holiday feed and returns the sorted, unique
// week starts of every week an event touches. Events without a parsable
// DTSTART are skipped.
func ImportAdjustmentWeeks(r io.Reader, weekStart time.Weekday) ([]generic.TimePoint, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse holiday feed: %w", err)
	}

	seen := make(map[string]generic.TimePoint)
	for _, ve := range cal.Events() {
		first, last, err := eventDays(ve)
		if err != nil {
			continue
		}
		for wk := generic.StartOfWeek(first, weekStart); wk.BeforeOrEqual(last); wk = wk.AddWeeks(1) {
			seen[wk.String()] = wk
		}
	}

	weeks := make([]generic.TimePoint, 0, len(seen))
	for _, wk := range seen {
		weeks = append(weeks, wk)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Before(weeks[j]) })
	return weeks, nil
}

// eventDays returns the first and last calendar day an event covers.
func eventDays(ve *ical.VEvent) (generic.TimePoint, generic.TimePoint, error) {
	prop := ve.GetProperty(ical.ComponentPropertyDtStart)
	if prop == nil {
		return generic.TimePoint{}, generic.TimePoint{}, errors.New("missing DTSTART")
	}

	if isDateValue(prop) {
		start, err := ve.GetAllDayStartAt()
		if err != nil {
			return generic.TimePoint{}, generic.TimePoint{}, err
		}
		first := generic.DateOf(start)
		last := first
		if end, err := ve.GetAllDayEndAt(); err == nil {
			// DTEND is exclusive for DATE values.
			if d := generic.DateOf(end).AddDays(-1); d.After(first) {
				last = d
			}
		}
		return first, last, nil
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return generic.TimePoint{}, generic.TimePoint{}, err
	}
	first := generic.DateOf(start)
	last := first
	if end, err := ve.GetEndAt(); err == nil {
		if d := generic.DateOf(end); d.After(first) {
			last = d
		}
	}
	return first, last, nil
}

func isDateValue(prop *ical.IANAProperty) bool {
	if vs, ok := prop.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(prop.Value, "T")
}

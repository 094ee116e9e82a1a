package ics_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pi-engine/fiscal"
	"github.com/warp/pi-engine/generic"
	"github.com/warp/pi-engine/ics"
)

var stamp = time.Date(2023, 7, 1, 12, 0, 0, 0, time.UTC)

func impactConfig(t *testing.T) *fiscal.Config {
	t.Helper()
	cfg, err := fiscal.NewConfig(generic.MustParseDate("2023-04-16"),
		fiscal.Label{FiscalYear: 23, ProgramIncrement: 3, Sprint: 1, Week: 1})
	require.NoError(t, err)
	return cfg
}

func TestExportSchedule_ContainsEveryEvent(t *testing.T) {
	// GIVEN: The FY23 PI 4 schedule
	s, err := fiscal.ExpandSchedule(impactConfig(t), generic.MustParseDate("2023-07-09"),
		fiscal.Increment{FiscalYear: 23, Number: 4})
	require.NoError(t, err)

	// WHEN: Exporting to ICS
	var buf bytes.Buffer
	require.NoError(t, ics.ExportSchedule(&buf, s, stamp))

	// THEN: Parsing it back yields one VEVENT per scheduled event
	cal, err := ical.ParseCalendar(strings.NewReader(buf.String()))
	require.NoError(t, err)

	events := s.Events()
	require.Len(t, cal.Events(), len(events))

	summaries := make(map[string]bool)
	for _, ve := range cal.Events() {
		summaries[ve.GetProperty(ical.ComponentPropertySummary).Value] = true
	}
	for _, ev := range events {
		assert.True(t, summaries[ev.Title], "missing %q", ev.Title)
	}
}

func TestExportEvents_AllDayUsesExclusiveDateEnd(t *testing.T) {
	s, err := fiscal.ExpandSchedule(impactConfig(t), generic.MustParseDate("2023-07-09"),
		fiscal.Increment{FiscalYear: 23, Number: 4})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ics.ExportEvents(&buf, "", []fiscal.ScheduledEvent{s.Sprints[0].Span, s.Sprints[0].Review}, stamp))
	out := buf.String()

	// Sprint 1 covers 2023-07-09 through 2023-07-22.
	assert.Contains(t, out, "DTSTART;VALUE=DATE:20230709")
	assert.Contains(t, out, "DTEND;VALUE=DATE:20230723")
	// The review is a timed event on Friday 2023-07-21.
	assert.Contains(t, out, "DTSTART:20230721T100000Z")
	assert.Contains(t, out, "DTEND:20230721T120000Z")
}

func TestEventUID_Stable(t *testing.T) {
	start := time.Date(2023, 7, 21, 10, 0, 0, 0, time.UTC)
	a := ics.EventUID("Sprint Review - PI 23.4 Sprint 1", start)
	b := ics.EventUID("Sprint Review - PI 23.4 Sprint 1", start.In(time.FixedZone("X", 3600)))
	c := ics.EventUID("Sprint Review - PI 23.4 Sprint 2", start)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

const holidayFeed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Test//Holidays//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:july4@test\r\n" +
	"DTSTART;VALUE=DATE:20230704\r\n" +
	"DTEND;VALUE=DATE:20230705\r\n" +
	"SUMMARY:Independence Day\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:break@test\r\n" +
	"DTSTART;VALUE=DATE:20231222\r\n" +
	"DTEND;VALUE=DATE:20240102\r\n" +
	"SUMMARY:Winter Break\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:dup@test\r\n" +
	"DTSTART;VALUE=DATE:20230706\r\n" +
	"SUMMARY:Same week\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestImportAdjustmentWeeks(t *testing.T) {
	weeks, err := ics.ImportAdjustmentWeeks(strings.NewReader(holidayFeed), time.Sunday)
	require.NoError(t, err)

	got := make([]string, len(weeks))
	for i, w := range weeks {
		got[i] = w.String()
	}
	// Winter break runs Fri 12-22 through Mon 01-01 and touches three weeks.
	assert.Equal(t, []string{"2023-07-02", "2023-12-17", "2023-12-24", "2023-12-31"}, got)
}

func TestImportAdjustmentWeeks_FeedsConfig(t *testing.T) {
	weeks, err := ics.ImportAdjustmentWeeks(strings.NewReader(holidayFeed), time.Sunday)
	require.NoError(t, err)

	cfg, err := fiscal.NewConfig(generic.MustParseDate("2023-04-16"),
		fiscal.Label{FiscalYear: 23, ProgramIncrement: 3, Sprint: 1, Week: 1},
		fiscal.WithAdjustmentWeeks(weeks...))
	require.NoError(t, err)
	assert.True(t, cfg.IsAdjustmentWeek(generic.MustParseDate("2023-07-05")))
}

func TestImportAdjustmentWeeks_Malformed(t *testing.T) {
	_, err := ics.ImportAdjustmentWeeks(strings.NewReader("not a calendar"), time.Sunday)
	assert.Error(t, err)
}

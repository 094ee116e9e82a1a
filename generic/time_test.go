package generic_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pi-engine/generic"
)

func TestDaysBetween_IgnoresDaylightSaving(t *testing.T) {
	// GIVEN: Dates spanning the March 2023 US DST change
	from := generic.NewTimePoint(2023, time.March, 10)
	to := generic.NewTimePoint(2023, time.March, 20)

	// THEN: The difference is whole days
	assert.Equal(t, 10, generic.DaysBetween(from, to))
	assert.Equal(t, -10, generic.DaysBetween(to, from))
}

func TestDateOf_UsesInstantZone(t *testing.T) {
	zone := time.FixedZone("UTC+9", 9*3600)
	instant := time.Date(2023, 4, 15, 20, 0, 0, 0, time.UTC).In(zone)
	assert.Equal(t, "2023-04-16", generic.DateOf(instant).String())
}

func TestParseDate(t *testing.T) {
	tp, err := generic.ParseDate("2023-04-16")
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, tp.Weekday())

	_, err = generic.ParseDate("2023-13-01")
	assert.ErrorIs(t, err, generic.ErrInvalidDate)

	_, err = generic.ParseDate("")
	assert.ErrorIs(t, err, generic.ErrInvalidDate)
}

func TestTimePoint_JSON(t *testing.T) {
	in := struct {
		D generic.TimePoint `json:"d"`
	}{D: generic.NewTimePoint(2023, time.July, 2)}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2023-07-02"}`, string(data))

	var out struct {
		D generic.TimePoint `json:"d"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, in.D.Equal(out.D))
}

func TestStartOfWeek(t *testing.T) {
	wed := generic.NewTimePoint(2023, time.April, 19)
	assert.Equal(t, "2023-04-16", generic.StartOfWeek(wed, time.Sunday).String())
	assert.Equal(t, "2023-04-17", generic.StartOfWeek(wed, time.Monday).String())
	assert.Equal(t, "2023-04-19", generic.StartOfWeek(wed, time.Wednesday).String())
	assert.Equal(t, "2023-04-14", generic.OnOrBefore(wed, time.Friday).String())
}

func TestFloorDiv(t *testing.T) {
	assert.Equal(t, 1, generic.FloorDiv(13, 7))
	assert.Equal(t, -2, generic.FloorDiv(-13, 7))
	assert.Equal(t, -1, generic.FloorDiv(-7, 7))
	assert.Equal(t, 1, generic.FloorMod(-13, 7))
}

func TestFirstOfNextMonth(t *testing.T) {
	assert.Equal(t, "2023-05-01", generic.FirstOfNextMonth(generic.NewTimePoint(2023, time.April, 30)).String())
	assert.Equal(t, "2024-01-01", generic.FirstOfNextMonth(generic.NewTimePoint(2023, time.December, 15)).String())
	assert.Equal(t, "2024-02-29", generic.EndOfMonth(2024, time.February).String())
}

func TestParseWeekday(t *testing.T) {
	d, err := generic.ParseWeekday("sunday")
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, d)

	d, err = generic.ParseWeekday("FRIDAY")
	require.NoError(t, err)
	assert.Equal(t, time.Friday, d)

	_, err = generic.ParseWeekday("someday")
	assert.Error(t, err)
}

// =============================================================================
// PERIODS
// =============================================================================

func TestPeriod_NextPeriodIsContiguous(t *testing.T) {
	sprint := generic.NewPeriod(generic.NewTimePoint(2023, time.April, 16), 14)
	next := sprint.NextPeriod()

	assert.Equal(t, 14, sprint.Len())
	assert.Equal(t, "[2023-04-30, 2023-05-13]", next.String())
	assert.False(t, sprint.Overlaps(next))
	assert.Equal(t, sprint, next.PreviousPeriod())
	assert.Len(t, sprint.Days(), 14)
}

func TestPeriod_Validate(t *testing.T) {
	p := generic.Period{Start: generic.NewTimePoint(2023, time.May, 2), End: generic.NewTimePoint(2023, time.May, 1)}
	assert.ErrorIs(t, p.Validate(), generic.ErrInvalidPeriod)
}

func TestPeriodConfig_FiscalYear(t *testing.T) {
	pc := generic.PeriodConfig{Type: generic.PeriodFiscalYear, FiscalYearStartMonth: time.October}

	period := pc.PeriodFor(generic.NewTimePoint(2023, time.November, 5))
	assert.Equal(t, "[2023-10-01, 2024-09-30]", period.String())
	assert.Equal(t, 2024, pc.FiscalYearOf(generic.NewTimePoint(2023, time.November, 5)))
	assert.Equal(t, 2023, pc.FiscalYearOf(generic.NewTimePoint(2023, time.September, 30)))
	assert.Equal(t, 24, pc.ShortFiscalYearOf(generic.NewTimePoint(2023, time.October, 1)))
	assert.Equal(t, 23, pc.ShortFiscalYearOf(generic.NewTimePoint(2023, time.September, 30)))

	assert.Equal(t, "[2023-10-01, 2024-09-30]", pc.FiscalYearPeriod(24).String())
	assert.Equal(t, "[2023-10-01, 2024-09-30]", pc.FiscalYearPeriod(2024).String())
}

func TestPeriodConfig_CalendarYear(t *testing.T) {
	pc := generic.PeriodConfig{Type: generic.PeriodCalendarYear}
	assert.Equal(t, "[2023-01-01, 2023-12-31]", pc.PeriodFor(generic.NewTimePoint(2023, time.June, 1)).String())
}

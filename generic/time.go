/*
Package generic provides the calendar primitives the fiscal engine is
built on.

PURPOSE:
  Domain-agnostic date arithmetic, periods, error types and the store
  interfaces. Nothing here knows about Program Increments; the fiscal
  package layers the PI cadence on top.

KEY CONCEPTS IN THIS FILE (time.go):
  - TimePoint: A calendar date, always midnight UTC
  - Clock: Injectable "now" so tests can pin today
  - DaysBetween / FloorDiv: Day and week arithmetic that is exact across
    DST transitions and negative offsets

USAGE:
  d := generic.MustParseDate("2023-04-16")
  weeks := generic.FloorDiv(generic.DaysBetween(d, other), 7)

SEE ALSO:
  - period.go: Inclusive date ranges and fiscal-year periods
  - errors.go: Error types
  - store.go: Calendar and template store interfaces
*/
package generic

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// TIME POINT - Day-granular calendar date
// =============================================================================

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// TimePoint is a calendar date. It is always stored as midnight UTC so that
// day arithmetic never drifts across daylight-saving transitions.
type TimePoint struct {
	Time time.Time
}

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to its calendar date in the instant's own
// location, then re-anchors it in UTC.
func DateOf(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a "2006-01-02" date.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return TimePoint{}, &InvalidDateError{Input: s, Err: err}
	}
	return DateOf(t), nil
}

// MustParseDate is ParseDate for static tables and tests.
func MustParseDate(s string) TimePoint {
	tp, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return tp
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

func (tp TimePoint) normalize() time.Time {
	return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint   { return TimePoint{Time: tp.normalize().AddDate(0, 0, n)} }
func (tp TimePoint) AddWeeks(n int) TimePoint  { return tp.AddDays(7 * n) }
func (tp TimePoint) AddMonths(n int) TimePoint { return TimePoint{Time: tp.normalize().AddDate(0, n, 0)} }
func (tp TimePoint) AddYears(n int) TimePoint  { return TimePoint{Time: tp.normalize().AddDate(n, 0, 0)} }

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }

func (tp TimePoint) String() string {
	return tp.normalize().Format(DateLayout)
}

// At returns the instant at hour:minute on this date in loc.
func (tp TimePoint) At(hour, minute int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(tp.Year(), tp.Month(), tp.Day(), hour, minute, 0, 0, loc)
}

// MarshalText implements encoding.TextMarshaler so dates travel as
// "2006-01-02" in JSON and YAML.
func (tp TimePoint) MarshalText() ([]byte, error) {
	return []byte(tp.String()), nil
}

func (tp *TimePoint) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*tp = parsed
	return nil
}

// =============================================================================
// CLOCK - Source of "now", injectable for tests
// =============================================================================

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always reports the same instant.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// Today returns the current date according to clock.
func Today(clock Clock) TimePoint {
	if clock == nil {
		clock = SystemClock{}
	}
	return DateOf(clock.Now())
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

// DaysBetween returns the whole calendar days from -> to (negative when to is
// earlier).
func DaysBetween(from, to TimePoint) int {
	return int(to.normalize().Sub(from.normalize()).Hours() / 24)
}

// FloorDiv divides rounding toward negative infinity.
func FloorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// FloorMod is the non-negative remainder matching FloorDiv.
func FloorMod(a, b int) int {
	return a - FloorDiv(a, b)*b
}

// StartOfWeek returns the latest date on or before tp that falls on start.
func StartOfWeek(tp TimePoint, start time.Weekday) TimePoint {
	offset := FloorMod(int(tp.Weekday())-int(start), 7)
	return tp.AddDays(-offset)
}

// OnOrBefore returns the latest date on or before tp that falls on wd.
func OnOrBefore(tp TimePoint, wd time.Weekday) TimePoint {
	return StartOfWeek(tp, wd)
}

func StartOfYear(year int) TimePoint { return NewTimePoint(year, time.January, 1) }
func EndOfYear(year int) TimePoint   { return NewTimePoint(year, time.December, 31) }
func StartOfMonth(year int, month time.Month) TimePoint {
	return NewTimePoint(year, month, 1)
}
func EndOfMonth(year int, month time.Month) TimePoint {
	return StartOfMonth(year, month).AddMonths(1).AddDays(-1)
}

// FirstOfNextMonth returns the first day of the month after tp.
func FirstOfNextMonth(tp TimePoint) TimePoint {
	return StartOfMonth(tp.Year(), tp.Month()).AddMonths(1)
}

// ParseWeekday accepts English weekday names, case-insensitive.
func ParseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(s, d.String()) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", s)
}

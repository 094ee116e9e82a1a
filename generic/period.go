package generic

import "time"

// =============================================================================
// PERIOD - Inclusive span of calendar dates
// =============================================================================

// Period is the inclusive span [Start, End]. Sprints, flex weeks and fiscal
// years are all Periods.
type Period struct {
	Start TimePoint `json:"start"`
	End   TimePoint `json:"end"`
}

// NewPeriod returns the period of n days beginning at start.
func NewPeriod(start TimePoint, days int) Period {
	return Period{Start: start, End: start.AddDays(days - 1)}
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Len returns the number of days in the period, both ends included.
func (p Period) Len() int {
	return DaysBetween(p.Start, p.End) + 1
}

// Validate returns ErrInvalidPeriod when End is before Start.
func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

// Days returns all days in the period as a slice of TimePoints.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	current := p.Start
	for current.BeforeOrEqual(p.End) {
		days = append(days, current)
		current = current.AddDays(1)
	}
	return days
}

// Overlaps reports whether the two periods share at least one day.
func (p Period) Overlaps(other Period) bool {
	return !p.End.Before(other.Start) && !other.End.Before(p.Start)
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// NextPeriod returns the period of the same length immediately after p.
func (p Period) NextPeriod() Period {
	return NewPeriod(p.End.AddDays(1), p.Len())
}

// PreviousPeriod returns the period of the same length immediately before p.
func (p Period) PreviousPeriod() Period {
	return NewPeriod(p.Start.AddDays(-p.Len()), p.Len())
}

// PeriodType defines how periods are calculated
type PeriodType string

const (
	PeriodCalendarYear PeriodType = "calendar_year" // Jan 1 - Dec 31
	PeriodFiscalYear   PeriodType = "fiscal_year"   // Custom start (e.g., Oct 1)
)

// FederalFiscalYearStart is the month fiscal years begin in: FY N runs from
// October 1 of N-1 through September 30 of N.
const FederalFiscalYearStart = time.October

// PeriodConfig defines how to calculate periods
type PeriodConfig struct {
	Type PeriodType

	// For fiscal year: which month starts the fiscal year (1-12)
	FiscalYearStartMonth time.Month
}

// =============================================================================
// PERIOD CALCULATOR - Determines which period a date falls into
// =============================================================================

// PeriodFor returns the period that contains the given date
func (pc PeriodConfig) PeriodFor(date TimePoint) Period {
	switch pc.Type {
	case PeriodFiscalYear:
		return pc.fiscalYearPeriod(date)
	default:
		return Period{Start: StartOfYear(date.Year()), End: EndOfYear(date.Year())}
	}
}

func (pc PeriodConfig) startMonth() time.Month {
	if pc.FiscalYearStartMonth < time.January || pc.FiscalYearStartMonth > time.December {
		return FederalFiscalYearStart
	}
	return pc.FiscalYearStartMonth
}

func (pc PeriodConfig) fiscalYearPeriod(date TimePoint) Period {
	year := date.Year()
	fiscalStart := NewTimePoint(year, pc.startMonth(), 1)

	// If date is before fiscal year start, we're in previous fiscal year
	if date.Before(fiscalStart) {
		fiscalStart = NewTimePoint(year-1, pc.startMonth(), 1)
	}

	fiscalEnd := fiscalStart.AddYears(1).AddDays(-1)
	return Period{Start: fiscalStart, End: fiscalEnd}
}

// FiscalYearOf returns the fiscal year number (e.g. 2024) that
// contains date. Fiscal years are named after the calendar year they end in.
func (pc PeriodConfig) FiscalYearOf(date TimePoint) int {
	p := pc.fiscalYearPeriod(date)
	if pc.startMonth() == time.January {
		return p.Start.Year()
	}
	return p.End.Year()
}

// ShortFiscalYearOf is FiscalYearOf in the two-digit form labels use
// (2024 -> 24).
func (pc PeriodConfig) ShortFiscalYearOf(date TimePoint) int {
	return pc.FiscalYearOf(date) % 100
}

// FiscalYearPeriod returns the span of fiscal year fy. Short years (< 100)
// are read as 20xx, matching labels like FY24.
func (pc PeriodConfig) FiscalYearPeriod(fy int) Period {
	if fy < 100 {
		fy += 2000
	}
	startYear := fy - 1
	if pc.startMonth() == time.January {
		startYear = fy
	}
	start := NewTimePoint(startYear, pc.startMonth(), 1)
	return Period{Start: start, End: start.AddYears(1).AddDays(-1)}
}

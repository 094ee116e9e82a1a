// Package fiscal implements the Program-Increment calendar: resolving dates
// to PI/Sprint/Week labels and laying out the events of a PI.
package fiscal

import (
	"fmt"
	"time"

	"github.com/warp/pi-engine/generic"
)

// =============================================================================
// CONFIG - Immutable calendar definition
// =============================================================================

// Config anchors the PI sequence. Build it with NewConfig; the zero value is
// not usable. All fields are read-only after construction.
type Config struct {
	baseDate        generic.TimePoint
	base            Label
	adjustmentWeeks []generic.TimePoint
	weekStart       time.Weekday
	location        *time.Location
	reviewWeekday   time.Weekday
}

// Option customizes a Config under construction.
type Option func(*Config)

// WithAdjustmentWeeks sets the weeks excluded from sprint progression. Each
// date must start a week and the list must be strictly ascending.
func WithAdjustmentWeeks(weeks ...generic.TimePoint) Option {
	return func(c *Config) {
		c.adjustmentWeeks = append([]generic.TimePoint(nil), weeks...)
	}
}

// WithWeekStart sets the weekday weeks begin on (default Sunday).
func WithWeekStart(d time.Weekday) Option {
	return func(c *Config) { c.weekStart = d }
}

// WithLocation sets the zone event times are laid out in (default UTC).
func WithLocation(loc *time.Location) Option {
	return func(c *Config) { c.location = loc }
}

// WithReviewWeekday sets the day Sprint Reviews fall on (default Friday).
func WithReviewWeekday(d time.Weekday) Option {
	return func(c *Config) { c.reviewWeekday = d }
}

// NewConfig validates and builds a calendar definition. base is the label
// carried by baseDate.
func NewConfig(baseDate generic.TimePoint, base Label, opts ...Option) (*Config, error) {
	c := &Config{
		baseDate:      baseDate,
		base:          base,
		weekStart:     time.Sunday,
		location:      time.UTC,
		reviewWeekday: time.Friday,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// MustConfig is NewConfig for static definitions; it panics on error.
func MustConfig(baseDate generic.TimePoint, base Label, opts ...Option) *Config {
	c, err := NewConfig(baseDate, base, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Config) validate() error {
	if c.baseDate.IsZero() {
		return &generic.ConfigurationError{Field: "base_date", Reason: "required"}
	}
	if c.weekStart < time.Sunday || c.weekStart > time.Saturday {
		return &generic.ConfigurationError{Field: "week_start", Reason: fmt.Sprintf("unknown weekday %d", c.weekStart)}
	}
	if c.reviewWeekday < time.Sunday || c.reviewWeekday > time.Saturday {
		return &generic.ConfigurationError{Field: "review_weekday", Reason: fmt.Sprintf("unknown weekday %d", c.reviewWeekday)}
	}
	if c.location == nil {
		return &generic.ConfigurationError{Field: "timezone", Reason: "required"}
	}
	if c.baseDate.Weekday() != c.weekStart {
		return &generic.ConfigurationError{
			Field:  "base_date",
			Reason: fmt.Sprintf("%s is a %s, weeks start on %s", c.baseDate, c.baseDate.Weekday(), c.weekStart),
		}
	}
	if c.base.FiscalYear < 0 {
		return &generic.ConfigurationError{Field: "base_fiscal_year", Reason: "must not be negative"}
	}
	if c.base.ProgramIncrement < 1 || c.base.ProgramIncrement > IncrementsPerYear {
		return &generic.ConfigurationError{Field: "base_program_increment", Reason: "must be in [1,4]"}
	}
	if c.base.Sprint < 1 || c.base.Sprint > SprintsPerIncrement {
		return &generic.ConfigurationError{Field: "base_sprint", Reason: "must be in [1,6]"}
	}
	if c.base.Week < 1 || c.base.Week > WeeksPerSprint {
		return &generic.ConfigurationError{Field: "base_week", Reason: "must be in [1,2]"}
	}

	for i, w := range c.adjustmentWeeks {
		field := fmt.Sprintf("adjustment_weeks[%d]", i)
		if w.IsZero() {
			return &generic.ConfigurationError{Field: field, Reason: "empty date"}
		}
		if w.Weekday() != c.weekStart {
			return &generic.ConfigurationError{
				Field:  field,
				Reason: fmt.Sprintf("%s is a %s, weeks start on %s", w, w.Weekday(), c.weekStart),
			}
		}
		if !w.After(c.baseDate) {
			return &generic.ConfigurationError{
				Field:  field,
				Reason: fmt.Sprintf("%s must be after base date %s", w, c.baseDate),
			}
		}
		if i > 0 && !c.adjustmentWeeks[i-1].Before(w) {
			return &generic.ConfigurationError{
				Field:  field,
				Reason: fmt.Sprintf("%s is not after %s; weeks must be sorted ascending without repeats", w, c.adjustmentWeeks[i-1]),
			}
		}
	}
	return nil
}

// Accessors

func (c *Config) BaseDate() generic.TimePoint { return c.baseDate }
func (c *Config) Base() Label                 { return c.base }
func (c *Config) WeekStart() time.Weekday     { return c.weekStart }
func (c *Config) Location() *time.Location    { return c.location }
func (c *Config) ReviewWeekday() time.Weekday { return c.reviewWeekday }

func (c *Config) AdjustmentWeeks() []generic.TimePoint {
	return append([]generic.TimePoint(nil), c.adjustmentWeeks...)
}

// adjustmentsThrough counts adjustment weeks on or before date.
func (c *Config) adjustmentsThrough(date generic.TimePoint) int {
	n := 0
	for _, w := range c.adjustmentWeeks {
		if w.After(date) {
			break
		}
		n++
	}
	return n
}

// IsAdjustmentWeek reports whether date falls inside a configured
// adjustment week.
func (c *Config) IsAdjustmentWeek(date generic.TimePoint) bool {
	for _, w := range c.adjustmentWeeks {
		if generic.NewPeriod(w, 7).Contains(date) {
			return true
		}
		if w.After(date) {
			return false
		}
	}
	return false
}

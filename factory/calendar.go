/*
Package factory provides document to Go calendar conversion.

PURPOSE:
  Converts YAML or JSON calendar definitions into a validated *fiscal.Config.
  Moving the base date, adding an adjustment week or switching timezones is
  a config edit, not a code change.

DOCUMENT SCHEMA (YAML):
  base_date: "2023-04-16"
  base_fiscal_year: 23
  base_program_increment: 3
  base_sprint: 1
  base_week: 1
  adjustment_weeks:
    - "2023-07-02"
  week_start: sunday
  timezone: America/New_York
  review_weekday: friday

  The same keys are accepted as JSON.

USAGE:
  doc, err := factory.ParseCalendarYAML(data)
  cfg, err := factory.Build(doc)
  label, err := fiscal.Resolve(cfg, generic.MustParseDate("2023-07-20"))

SEE ALSO:
  - fiscal/config.go: Config and its validation rules
  - config/config.go: server config embedding a CalendarDoc
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/warp/pi-engine/fiscal"
	"github.com/warp/pi-engine/generic"
)

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

// CalendarDoc is the serialized form of a fiscal calendar. Omitted fields
// default to sprint 1 week 1, Sunday weeks, UTC and Friday reviews.
type CalendarDoc struct {
	BaseDate             string   `yaml:"base_date" json:"base_date"`
	BaseFiscalYear       int      `yaml:"base_fiscal_year" json:"base_fiscal_year"`
	BaseProgramIncrement int      `yaml:"base_program_increment" json:"base_program_increment"`
	BaseSprint           int      `yaml:"base_sprint,omitempty" json:"base_sprint,omitempty"`
	BaseWeek             int      `yaml:"base_week,omitempty" json:"base_week,omitempty"`
	AdjustmentWeeks      []string `yaml:"adjustment_weeks,omitempty" json:"adjustment_weeks,omitempty"`
	WeekStart            string   `yaml:"week_start,omitempty" json:"week_start,omitempty"`
	Timezone             string   `yaml:"timezone,omitempty" json:"timezone,omitempty"`
	ReviewWeekday        string   `yaml:"review_weekday,omitempty" json:"review_weekday,omitempty"`
}

// ImpactCalendarDoc is the calendar the IMPACT program has run on since
// FY23 PI 3: Sunday weeks, Friday reviews, no adjustments yet.
func ImpactCalendarDoc() CalendarDoc {
	return CalendarDoc{
		BaseDate:             "2023-04-16",
		BaseFiscalYear:       23,
		BaseProgramIncrement: 3,
		BaseSprint:           1,
		BaseWeek:             1,
		WeekStart:            "sunday",
		Timezone:             "UTC",
		ReviewWeekday:        "friday",
	}
}

// =============================================================================
// PARSING
// =============================================================================

// ParseCalendarYAML decodes a YAML calendar document.
func ParseCalendarYAML(data []byte) (CalendarDoc, error) {
	var doc CalendarDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return CalendarDoc{}, fmt.Errorf("failed to parse calendar YAML: %w", err)
	}
	return doc, nil
}

// ParseCalendarJSON decodes a JSON calendar document.
func ParseCalendarJSON(data []byte) (CalendarDoc, error) {
	var doc CalendarDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return CalendarDoc{}, fmt.Errorf("failed to parse calendar JSON: %w", err)
	}
	return doc, nil
}

// Build converts a document into a validated Config. Malformed fields come
// back as *generic.ConfigurationError naming the document key.
func Build(doc CalendarDoc) (*fiscal.Config, error) {
	base, err := generic.ParseDate(doc.BaseDate)
	if err != nil {
		return nil, &generic.ConfigurationError{Field: "base_date", Reason: err.Error()}
	}

	label := fiscal.Label{
		FiscalYear:       doc.BaseFiscalYear,
		ProgramIncrement: doc.BaseProgramIncrement,
		Sprint:           orDefault(doc.BaseSprint, 1),
		Week:             orDefault(doc.BaseWeek, 1),
	}

	var opts []fiscal.Option

	if doc.WeekStart != "" {
		wd, err := generic.ParseWeekday(doc.WeekStart)
		if err != nil {
			return nil, &generic.ConfigurationError{Field: "week_start", Reason: err.Error()}
		}
		opts = append(opts, fiscal.WithWeekStart(wd))
	}

	if doc.ReviewWeekday != "" {
		wd, err := generic.ParseWeekday(doc.ReviewWeekday)
		if err != nil {
			return nil, &generic.ConfigurationError{Field: "review_weekday", Reason: err.Error()}
		}
		opts = append(opts, fiscal.WithReviewWeekday(wd))
	}

	if doc.Timezone != "" {
		loc, err := time.LoadLocation(doc.Timezone)
		if err != nil {
			return nil, &generic.ConfigurationError{Field: "timezone", Reason: err.Error()}
		}
		opts = append(opts, fiscal.WithLocation(loc))
	}

	if len(doc.AdjustmentWeeks) > 0 {
		weeks := make([]generic.TimePoint, 0, len(doc.AdjustmentWeeks))
		for i, s := range doc.AdjustmentWeeks {
			w, err := generic.ParseDate(s)
			if err != nil {
				return nil, &generic.ConfigurationError{
					Field:  fmt.Sprintf("adjustment_weeks[%d]", i),
					Reason: err.Error(),
				}
			}
			weeks = append(weeks, w)
		}
		opts = append(opts, fiscal.WithAdjustmentWeeks(weeks...))
	}

	return fiscal.NewConfig(base, label, opts...)
}

// ToDoc converts a Config back to its document form.
func ToDoc(cfg *fiscal.Config) CalendarDoc {
	base := cfg.Base()
	doc := CalendarDoc{
		BaseDate:             cfg.BaseDate().String(),
		BaseFiscalYear:       base.FiscalYear,
		BaseProgramIncrement: base.ProgramIncrement,
		BaseSprint:           base.Sprint,
		BaseWeek:             base.Week,
		WeekStart:            lower(cfg.WeekStart()),
		Timezone:             cfg.Location().String(),
		ReviewWeekday:        lower(cfg.ReviewWeekday()),
	}
	for _, w := range cfg.AdjustmentWeeks() {
		doc.AdjustmentWeeks = append(doc.AdjustmentWeeks, w.String())
	}
	return doc
}

// =============================================================================
// HELPERS
// =============================================================================

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func lower(wd time.Weekday) string {
	return strings.ToLower(wd.String())
}

package fiscal

import (
	"github.com/shopspring/decimal"

	"github.com/warp/pi-engine/generic"
)

// ProgressReport describes how far into its increment a date is.
type ProgressReport struct {
	Label     Label             `json:"label"`
	Increment Increment         `json:"increment"`
	PIStart   generic.TimePoint `json:"pi_start"`
	NextStart generic.TimePoint `json:"next_pi_start"`
	DayOfPI   int               `json:"day_of_pi"` // 1-based
	TotalDays int               `json:"total_days"`
	Percent   decimal.Decimal   `json:"percent"`
}

// Progress reports the position of date within its increment. Adjustment
// weeks lengthen an increment, so TotalDays is the real distance between
// the two PI starts rather than a fixed 84.
func Progress(cfg *Config, date generic.TimePoint) (ProgressReport, error) {
	label, err := Resolve(cfg, date)
	if err != nil {
		return ProgressReport{}, err
	}
	start, err := PIStart(cfg, date)
	if err != nil {
		return ProgressReport{}, err
	}
	next, err := NextPIStart(cfg, date)
	if err != nil {
		return ProgressReport{}, err
	}

	day := generic.DaysBetween(start, date) + 1
	total := generic.DaysBetween(start, next)
	percent := decimal.NewFromInt(int64(day)).
		Div(decimal.NewFromInt(int64(total))).
		Mul(decimal.NewFromInt(100)).
		Round(1)

	return ProgressReport{
		Label:     label,
		Increment: label.PI(),
		PIStart:   start,
		NextStart: next,
		DayOfPI:   day,
		TotalDays: total,
		Percent:   percent,
	}, nil
}

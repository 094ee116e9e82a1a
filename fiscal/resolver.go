package fiscal

import (
	"time"

	"github.com/warp/pi-engine/generic"
)

// =============================================================================
// RESOLVER - Date -> Label
// =============================================================================
//
// Every date maps to an "effective week": whole weeks since the base date,
// minus one for every adjustment week already reached, plus the base
// label's own position inside its increment. All labels and PI boundaries
// derive from that single number:
//
//   week      = W mod 2 + 1
//   sprint    = (W / 2) mod 6 + 1
//   increment = W / 12 increments after the base increment

// Resolve returns the label for date.
func Resolve(cfg *Config, date generic.TimePoint) (Label, error) {
	w, err := effectiveWeek(cfg, date)
	if err != nil {
		return Label{}, err
	}
	return labelAt(cfg, w), nil
}

// ResolveTime resolves the calendar date of t in the calendar's zone.
func ResolveTime(cfg *Config, t time.Time) (Label, error) {
	if t.IsZero() {
		return Label{}, &generic.InvalidDateError{Input: "0001-01-01"}
	}
	return Resolve(cfg, generic.DateOf(t.In(cfg.location)))
}

// ResolveNextMonth resolves the first day of the month after date. Agendas
// use it for the "adjusted" PI shown ahead of a month boundary.
func ResolveNextMonth(cfg *Config, date generic.TimePoint) (Label, error) {
	if date.IsZero() {
		return Label{}, &generic.InvalidDateError{Input: date.String()}
	}
	return Resolve(cfg, generic.FirstOfNextMonth(date))
}

// PIStart returns the first day of the increment containing date. The
// result precedes the base date when the base label is not sprint 1 week 1
// and date is in the base increment.
func PIStart(cfg *Config, date generic.TimePoint) (generic.TimePoint, error) {
	w, err := effectiveWeek(cfg, date)
	if err != nil {
		return generic.TimePoint{}, err
	}
	return dateForWeek(cfg, (w/WeeksPerIncrement)*WeeksPerIncrement), nil
}

// NextPIStart returns the first day of the increment after the one
// containing date.
func NextPIStart(cfg *Config, date generic.TimePoint) (generic.TimePoint, error) {
	w, err := effectiveWeek(cfg, date)
	if err != nil {
		return generic.TimePoint{}, err
	}
	return dateForWeek(cfg, (w/WeeksPerIncrement+1)*WeeksPerIncrement), nil
}

// IncrementStart returns the first day of inc. Increments before the base
// increment are out of range.
func IncrementStart(cfg *Config, inc Increment) (generic.TimePoint, error) {
	if err := inc.Validate(); err != nil {
		return generic.TimePoint{}, &generic.InvalidDateError{Input: inc.String(), Err: err}
	}
	base := cfg.base.PI()
	idx := (inc.FiscalYear-base.FiscalYear)*IncrementsPerYear + (inc.Number - base.Number)
	if idx < 0 {
		return generic.TimePoint{}, &generic.OutOfRangeError{
			Date:     dateForWeek(cfg, idx*WeeksPerIncrement),
			BaseDate: cfg.baseDate,
		}
	}
	return dateForWeek(cfg, idx*WeeksPerIncrement), nil
}

func effectiveWeek(cfg *Config, date generic.TimePoint) (int, error) {
	if date.IsZero() {
		return 0, &generic.InvalidDateError{Input: date.String()}
	}
	if date.Before(cfg.baseDate) {
		return 0, &generic.OutOfRangeError{Date: date, BaseDate: cfg.baseDate}
	}
	days := generic.DaysBetween(cfg.baseDate, date) - DaysPerWeek*cfg.adjustmentsThrough(date)
	return days/DaysPerWeek + cfg.base.weekIndex(), nil
}

func labelAt(cfg *Config, w int) Label {
	period := w / WeeksPerSprint
	inc := w / WeeksPerIncrement
	base := cfg.base.ProgramIncrement - 1
	return Label{
		FiscalYear:       cfg.base.FiscalYear + (inc+base)/IncrementsPerYear,
		ProgramIncrement: (base+inc)%IncrementsPerYear + 1,
		Sprint:           period%SprintsPerIncrement + 1,
		Week:             w%WeeksPerSprint + 1,
	}
}

// dateForWeek is the inverse of effectiveWeek: the first day of effective
// week w, skipping over adjustment weeks.
func dateForWeek(cfg *Config, w int) generic.TimePoint {
	d := cfg.baseDate.AddWeeks(w - cfg.base.weekIndex())
	for _, adj := range cfg.adjustmentWeeks {
		if adj.After(d) {
			break
		}
		d = d.AddWeeks(1)
	}
	return d
}

// =============================================================================
// ENGINE - Resolver bound to a clock
// =============================================================================

// Engine answers "where are we now" questions for one calendar.
type Engine struct {
	cfg   *Config
	clock generic.Clock
}

// NewEngine binds cfg to clock; a nil clock reads the system time.
func NewEngine(cfg *Config, clock generic.Clock) *Engine {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	return &Engine{cfg: cfg, clock: clock}
}

func (e *Engine) Config() *Config { return e.cfg }

// Today is the current date in the calendar's zone.
func (e *Engine) Today() generic.TimePoint {
	return generic.DateOf(e.clock.Now().In(e.cfg.location))
}

// Current resolves today.
func (e *Engine) Current() (Label, error) {
	return Resolve(e.cfg, e.Today())
}

// Upcoming resolves the first day of next month.
func (e *Engine) Upcoming() (Label, error) {
	return ResolveNextMonth(e.cfg, e.Today())
}

// NextIncrement returns the increment after today's and its start date.
func (e *Engine) NextIncrement() (Increment, generic.TimePoint, error) {
	start, err := NextPIStart(e.cfg, e.Today())
	if err != nil {
		return Increment{}, generic.TimePoint{}, err
	}
	label, err := Resolve(e.cfg, start)
	if err != nil {
		return Increment{}, generic.TimePoint{}, err
	}
	return label.PI(), start, nil
}

package fiscal

import (
	"cmp"
	"fmt"
)

// Cadence constants.
const (
	IncrementsPerYear   = 4
	SprintsPerIncrement = 6 // five delivery sprints plus the flex block
	DeliverySprints     = 5
	WeeksPerSprint      = 2
	DaysPerWeek         = 7
	SprintDays          = WeeksPerSprint * DaysPerWeek
	WeeksPerIncrement   = SprintsPerIncrement * WeeksPerSprint
	IncrementDays       = WeeksPerIncrement * DaysPerWeek // 84
	FlexSprint          = SprintsPerIncrement
)

// Names rendered for the flex block instead of the numeric form.
const (
	InnovationWeek = "Innovation Week"
	NextPIPlanning = "Next PI Planning"
)

// =============================================================================
// INCREMENT - A fiscal year + program increment pair ("24.1")
// =============================================================================

// Increment identifies one Program Increment.
type Increment struct {
	FiscalYear int `json:"fiscal_year"`
	Number     int `json:"program_increment"`
}

func (i Increment) String() string {
	return fmt.Sprintf("%d.%d", i.FiscalYear, i.Number)
}

// Next returns the following increment; PI 4 rolls into PI 1 of the next
// fiscal year.
func (i Increment) Next() Increment {
	next := i.Number%IncrementsPerYear + 1
	fy := i.FiscalYear
	if next == 1 {
		fy++
	}
	return Increment{FiscalYear: fy, Number: next}
}

// Prev returns the preceding increment.
func (i Increment) Prev() Increment {
	if i.Number <= 1 {
		return Increment{FiscalYear: i.FiscalYear - 1, Number: IncrementsPerYear}
	}
	return Increment{FiscalYear: i.FiscalYear, Number: i.Number - 1}
}

// Validate checks that Number is in [1,4].
func (i Increment) Validate() error {
	if i.Number < 1 || i.Number > IncrementsPerYear {
		return fmt.Errorf("program increment %d out of range [1,%d]", i.Number, IncrementsPerYear)
	}
	if i.FiscalYear < 0 {
		return fmt.Errorf("fiscal year %d is negative", i.FiscalYear)
	}
	return nil
}

// =============================================================================
// LABEL - Position of a date within the PI cadence
// =============================================================================

// Label is the resolved position of a date: FY, PI, sprint (1-6) and week
// within the sprint (1-2).
type Label struct {
	FiscalYear       int `json:"fiscal_year"`
	ProgramIncrement int `json:"program_increment"`
	Sprint           int `json:"sprint"`
	Week             int `json:"week"`
}

// String renders "FY23.3.1 Week 1", or the flex-week names for sprint 6.
func (l Label) String() string {
	if l.Sprint == FlexSprint {
		if l.Week == 1 {
			return InnovationWeek
		}
		return NextPIPlanning
	}
	return fmt.Sprintf("FY%d.%d.%d Week %d", l.FiscalYear, l.ProgramIncrement, l.Sprint, l.Week)
}

// Numeric always renders the numeric form, flex weeks included.
func (l Label) Numeric() string {
	return fmt.Sprintf("FY%d.%d.%d Week %d", l.FiscalYear, l.ProgramIncrement, l.Sprint, l.Week)
}

// SprintLabel renders the sprint without the week, e.g. "FY23.3.1".
func (l Label) SprintLabel() string {
	return fmt.Sprintf("FY%d.%d.%d", l.FiscalYear, l.ProgramIncrement, l.Sprint)
}

// PI returns the increment the label belongs to.
func (l Label) PI() Increment {
	return Increment{FiscalYear: l.FiscalYear, Number: l.ProgramIncrement}
}

// IsFlex reports whether the label falls in the flex block.
func (l Label) IsFlex() bool { return l.Sprint == FlexSprint }

// Compare orders labels by (FiscalYear, ProgramIncrement, Sprint, Week).
func (l Label) Compare(other Label) int {
	return cmp.Or(
		cmp.Compare(l.FiscalYear, other.FiscalYear),
		cmp.Compare(l.ProgramIncrement, other.ProgramIncrement),
		cmp.Compare(l.Sprint, other.Sprint),
		cmp.Compare(l.Week, other.Week),
	)
}

// weekIndex is the zero-based week position of l inside its increment.
func (l Label) weekIndex() int {
	return (l.Sprint-1)*WeeksPerSprint + (l.Week - 1)
}

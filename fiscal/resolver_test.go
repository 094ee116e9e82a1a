package fiscal_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pi-engine/fiscal"
	"github.com/warp/pi-engine/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func date(s string) generic.TimePoint {
	return generic.MustParseDate(s)
}

// impactConfig is the calendar anchored on 2023-04-16 = FY23.3.1 Week 1.
func impactConfig(t *testing.T, opts ...fiscal.Option) *fiscal.Config {
	t.Helper()
	cfg, err := fiscal.NewConfig(date("2023-04-16"), fiscal.Label{
		FiscalYear: 23, ProgramIncrement: 3, Sprint: 1, Week: 1,
	}, opts...)
	require.NoError(t, err)
	return cfg
}

func resolve(t *testing.T, cfg *fiscal.Config, d string) fiscal.Label {
	t.Helper()
	label, err := fiscal.Resolve(cfg, date(d))
	require.NoError(t, err)
	return label
}

// =============================================================================
// LABEL RESOLUTION
// =============================================================================

func TestResolve_BaseScenario(t *testing.T) {
	cfg := impactConfig(t)

	tests := []struct {
		date string
		want string
	}{
		{"2023-04-16", "FY23.3.1 Week 1"},
		{"2023-04-22", "FY23.3.1 Week 1"},
		{"2023-04-23", "FY23.3.1 Week 2"},
		{"2023-04-30", "FY23.3.2 Week 1"},
		{"2023-06-11", "FY23.3.5 Week 1"},
		{"2023-06-25", "Innovation Week"},
		{"2023-07-01", "Innovation Week"},
		{"2023-07-02", "Next PI Planning"},
		{"2023-07-09", "FY23.4.1 Week 1"},
		{"2023-10-01", "FY24.1.1 Week 1"},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			assert.Equal(t, tt.want, resolve(t, cfg, tt.date).String())
		})
	}
}

func TestResolve_BaseDateReturnsBaseLabel(t *testing.T) {
	for _, base := range []fiscal.Label{
		{FiscalYear: 23, ProgramIncrement: 1, Sprint: 1, Week: 1},
		{FiscalYear: 23, ProgramIncrement: 2, Sprint: 3, Week: 2},
		{FiscalYear: 25, ProgramIncrement: 4, Sprint: 6, Week: 2},
		{FiscalYear: 24, ProgramIncrement: 3, Sprint: 5, Week: 1},
	} {
		t.Run(base.Numeric(), func(t *testing.T) {
			cfg, err := fiscal.NewConfig(date("2023-04-16"), base)
			require.NoError(t, err)

			got, err := fiscal.Resolve(cfg, cfg.BaseDate())
			require.NoError(t, err)
			assert.Equal(t, base, got)

			// Every day of the base week carries the base label.
			for d := 1; d < 7; d++ {
				got, err := fiscal.Resolve(cfg, cfg.BaseDate().AddDays(d))
				require.NoError(t, err)
				assert.Equal(t, base, got)
			}
		})
	}
}

func TestResolve_FlexWeeksNeverNumeric(t *testing.T) {
	cfg := impactConfig(t)

	// Walk ten increments; every sprint-6 week must use the special names.
	for w := 0; w < 10*fiscal.WeeksPerIncrement; w++ {
		label := resolve(t, cfg, cfg.BaseDate().AddWeeks(w).String())
		if label.Sprint != fiscal.FlexSprint {
			assert.Regexp(t, `^FY\d+\.[1-4]\.[1-5] Week [12]$`, label.String())
			continue
		}
		if label.Week == 1 {
			assert.Equal(t, fiscal.InnovationWeek, label.String())
		} else {
			assert.Equal(t, fiscal.NextPIPlanning, label.String())
		}
	}
}

func TestResolve_Monotonic(t *testing.T) {
	cfg := impactConfig(t)

	prev := resolve(t, cfg, "2023-04-16")
	for d := 1; d < 3*365; d++ {
		cur := resolve(t, cfg, date("2023-04-16").AddDays(d).String())
		require.GreaterOrEqual(t, cur.Compare(prev), 0, "label went backwards at day %d: %s -> %s", d, prev.Numeric(), cur.Numeric())
		prev = cur
	}
}

func TestResolve_AllBaseIncrementsWrap(t *testing.T) {
	for basePI := 1; basePI <= 4; basePI++ {
		cfg, err := fiscal.NewConfig(date("2023-04-16"), fiscal.Label{
			FiscalYear: 23, ProgramIncrement: basePI, Sprint: 1, Week: 1,
		})
		require.NoError(t, err)

		prev := cfg.Base().PI()
		for k := 0; k < 12; k++ {
			label := resolve(t, cfg, cfg.BaseDate().AddDays(k*fiscal.IncrementDays).String())

			wantPI := (basePI-1+k)%4 + 1
			wantFY := 23 + (basePI-1+k)/4
			assert.Equal(t, wantPI, label.ProgramIncrement, "base PI %d, increment +%d", basePI, k)
			assert.Equal(t, wantFY, label.FiscalYear, "base PI %d, increment +%d", basePI, k)
			assert.Equal(t, 1, label.Sprint)
			assert.Equal(t, 1, label.Week)

			if k > 0 {
				assert.Equal(t, prev.Next(), label.PI(), "increments must advance one at a time")
			}
			prev = label.PI()
		}
	}
}

// =============================================================================
// ADJUSTMENT WEEKS
// =============================================================================

func TestResolve_AdjustmentWeeksDelayLabels(t *testing.T) {
	// GIVEN: Two adjustment weeks in July 2023
	plain := impactConfig(t)
	adjusted := impactConfig(t, fiscal.WithAdjustmentWeeks(date("2023-07-02"), date("2023-07-16")))

	// WHEN: Resolving 2023-07-20 with and without them
	without := resolve(t, plain, "2023-07-20")
	with := resolve(t, adjusted, "2023-07-20")

	// THEN: The adjusted label is two weeks earlier in the sequence
	assert.Equal(t, "FY23.4.1 Week 2", without.String())
	assert.Equal(t, "Next PI Planning", with.String())
	assert.Equal(t, resolve(t, plain, "2023-07-06"), with)
}

func TestResolve_SingleAdjustmentShiftsByOneWeek(t *testing.T) {
	plain := impactConfig(t)
	adjusted := impactConfig(t, fiscal.WithAdjustmentWeeks(date("2023-05-28")))

	for d := date("2023-06-04"); d.Before(date("2024-06-01")); d = d.AddDays(1) {
		want, err := fiscal.Resolve(plain, d.AddWeeks(-1))
		require.NoError(t, err)
		got, err := fiscal.Resolve(adjusted, d)
		require.NoError(t, err)
		require.Equal(t, want, got, "date %s", d)
	}
}

func TestResolve_InsideAdjustmentWeekRepeatsPreviousWeek(t *testing.T) {
	cfg := impactConfig(t, fiscal.WithAdjustmentWeeks(date("2023-04-30")))

	before := resolve(t, cfg, "2023-04-29")
	for d := 0; d < 7; d++ {
		assert.Equal(t, before, resolve(t, cfg, date("2023-04-30").AddDays(d).String()))
	}
	assert.Equal(t, "FY23.3.2 Week 1", resolve(t, cfg, "2023-05-07").String())
	assert.True(t, cfg.IsAdjustmentWeek(date("2023-05-03")))
	assert.False(t, cfg.IsAdjustmentWeek(date("2023-05-07")))
}

// =============================================================================
// ERRORS
// =============================================================================

func TestResolve_BeforeBaseDateIsOutOfRange(t *testing.T) {
	cfg := impactConfig(t)

	_, err := fiscal.Resolve(cfg, date("2023-04-15"))
	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrOutOfRange)

	var rangeErr *generic.OutOfRangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, "2023-04-16", rangeErr.BaseDate.String())
}

func TestResolve_ZeroDateIsInvalid(t *testing.T) {
	cfg := impactConfig(t)

	_, err := fiscal.Resolve(cfg, generic.TimePoint{})
	assert.ErrorIs(t, err, generic.ErrInvalidDate)

	_, err = fiscal.ResolveTime(cfg, time.Time{})
	assert.ErrorIs(t, err, generic.ErrInvalidDate)

	_, err = fiscal.ResolveNextMonth(cfg, generic.TimePoint{})
	assert.ErrorIs(t, err, generic.ErrInvalidDate)
}

// =============================================================================
// NEXT MONTH, PI BOUNDARIES, ENGINE
// =============================================================================

func TestResolveNextMonth(t *testing.T) {
	cfg := impactConfig(t)

	got, err := fiscal.ResolveNextMonth(cfg, date("2023-04-20"))
	require.NoError(t, err)
	assert.Equal(t, resolve(t, cfg, "2023-05-01"), got)
	assert.Equal(t, "FY23.3.2 Week 1", got.String())
}

func TestResolveTime_UsesCalendarZone(t *testing.T) {
	east := time.FixedZone("UTC-5", -5*3600)
	cfg := impactConfig(t, fiscal.WithLocation(east))

	// 02:00 UTC on Sunday the 23rd is still Saturday the 22nd at UTC-5.
	got, err := fiscal.ResolveTime(cfg, time.Date(2023, 4, 23, 2, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "FY23.3.1 Week 1", got.String())
}

func TestPIStart(t *testing.T) {
	t.Run("base increment", func(t *testing.T) {
		cfg := impactConfig(t)
		start, err := fiscal.PIStart(cfg, date("2023-05-10"))
		require.NoError(t, err)
		assert.Equal(t, "2023-04-16", start.String())

		next, err := fiscal.NextPIStart(cfg, date("2023-05-10"))
		require.NoError(t, err)
		assert.Equal(t, "2023-07-09", next.String())
	})

	t.Run("skips adjustment weeks", func(t *testing.T) {
		cfg := impactConfig(t, fiscal.WithAdjustmentWeeks(date("2023-07-02"), date("2023-07-16")))

		next, err := fiscal.NextPIStart(cfg, date("2023-05-10"))
		require.NoError(t, err)
		assert.Equal(t, "2023-07-23", next.String())
		assert.Equal(t, "FY23.4.1 Week 1", resolve(t, cfg, "2023-07-23").String())

		start, err := fiscal.PIStart(cfg, date("2023-07-25"))
		require.NoError(t, err)
		assert.Equal(t, "2023-07-23", start.String())
	})

	t.Run("base mid-increment", func(t *testing.T) {
		cfg, err := fiscal.NewConfig(date("2023-04-16"), fiscal.Label{
			FiscalYear: 23, ProgramIncrement: 3, Sprint: 3, Week: 1,
		})
		require.NoError(t, err)

		start, err := fiscal.PIStart(cfg, date("2023-04-16"))
		require.NoError(t, err)
		assert.Equal(t, "2023-03-19", start.String())
	})
}

func TestIncrementStart(t *testing.T) {
	cfg := impactConfig(t)

	start, err := fiscal.IncrementStart(cfg, fiscal.Increment{FiscalYear: 23, Number: 4})
	require.NoError(t, err)
	assert.Equal(t, "2023-07-09", start.String())

	start, err = fiscal.IncrementStart(cfg, fiscal.Increment{FiscalYear: 24, Number: 1})
	require.NoError(t, err)
	assert.Equal(t, "2023-10-01", start.String())

	_, err = fiscal.IncrementStart(cfg, fiscal.Increment{FiscalYear: 23, Number: 2})
	assert.ErrorIs(t, err, generic.ErrOutOfRange)

	_, err = fiscal.IncrementStart(cfg, fiscal.Increment{FiscalYear: 23, Number: 5})
	assert.ErrorIs(t, err, generic.ErrInvalidDate)
}

func TestEngine(t *testing.T) {
	cfg := impactConfig(t)
	engine := fiscal.NewEngine(cfg, generic.FixedClock{T: time.Date(2023, 4, 20, 15, 0, 0, 0, time.UTC)})

	current, err := engine.Current()
	require.NoError(t, err)
	assert.Equal(t, "FY23.3.1 Week 1", current.String())

	upcoming, err := engine.Upcoming()
	require.NoError(t, err)
	assert.Equal(t, "FY23.3.2 Week 1", upcoming.String())

	inc, start, err := engine.NextIncrement()
	require.NoError(t, err)
	assert.Equal(t, fiscal.Increment{FiscalYear: 23, Number: 4}, inc)
	assert.Equal(t, "2023-07-09", start.String())
}

func TestIncrement_NextAndPrev(t *testing.T) {
	assert.Equal(t, fiscal.Increment{FiscalYear: 24, Number: 1}, fiscal.Increment{FiscalYear: 23, Number: 4}.Next())
	assert.Equal(t, fiscal.Increment{FiscalYear: 23, Number: 3}, fiscal.Increment{FiscalYear: 23, Number: 2}.Next())
	assert.Equal(t, fiscal.Increment{FiscalYear: 23, Number: 4}, fiscal.Increment{FiscalYear: 24, Number: 1}.Prev())
	assert.Equal(t, "24.1", fiscal.Increment{FiscalYear: 24, Number: 1}.String())
}

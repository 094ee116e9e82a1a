package main

import (
	"fmt"
	"os"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/pi-engine/api"
	"github.com/warp/pi-engine/config"
	"github.com/warp/pi-engine/factory"
	"github.com/warp/pi-engine/fiscal"
	"github.com/warp/pi-engine/generic"
	"github.com/warp/pi-engine/ics"
)

// =============================================================================
// LABEL
// =============================================================================

func (a *app) labelCmd() *cobra.Command {
	var next bool

	cmd := &cobra.Command{
		Use:   "label [date]",
		Short: "Print the PI label for a date (default: today)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			engine, err := a.engine(cfg)
			if err != nil {
				return err
			}

			date := engine.Today()
			if len(args) == 1 {
				if date, err = generic.ParseDate(args[0]); err != nil {
					return err
				}
			}
			if next {
				date = generic.FirstOfNextMonth(date)
			}

			label, err := fiscal.Resolve(engine.Config(), date)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", date, label)
			return nil
		},
	}

	cmd.Flags().BoolVar(&next, "next-month", false, "resolve the first day of the following month")
	return cmd
}

// =============================================================================
// SCHEDULE / POPULATE
// =============================================================================

// selection holds the flags shared by schedule and populate.
type selection struct {
	fiscalYear int
	pi         int
}

func (s *selection) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&s.fiscalYear, "fy", 0, "fiscal year of the increment (with --pi)")
	cmd.Flags().IntVar(&s.pi, "pi", 0, "program increment number 1-4 (with --fy)")
	cmd.MarkFlagsRequiredTogether("fy", "pi")
}

// resolve turns the optional start argument and flags into a schedule using
// the same rules as the HTTP API.
func (s *selection) resolve(h *api.Handler, args []string) (fiscal.Schedule, error) {
	var start generic.TimePoint
	if len(args) == 1 {
		var err error
		if start, err = generic.ParseDate(args[0]); err != nil {
			return fiscal.Schedule{}, err
		}
	}
	var inc *fiscal.Increment
	if s.fiscalYear != 0 || s.pi != 0 {
		inc = &fiscal.Increment{FiscalYear: s.fiscalYear, Number: s.pi}
	}
	return h.SelectSchedule(start, inc)
}

func (a *app) scheduleCmd() *cobra.Command {
	var sel selection
	var asICS bool

	cmd := &cobra.Command{
		Use:   "schedule [start]",
		Short: "Print the events of an increment (default: the next one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			engine, err := a.engine(cfg)
			if err != nil {
				return err
			}

			s, err := sel.resolve(api.NewHandler(engine, nil, a.logger), args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asICS {
				return ics.ExportSchedule(out, s, time.Now())
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "PI %s\t%s\n", s.Increment, s.Period())
			for _, ev := range s.Events() {
				fmt.Fprintf(tw, "%s\t%s\n", formatSpan(ev), ev.Title)
			}
			return tw.Flush()
		},
	}

	sel.register(cmd)
	cmd.Flags().BoolVar(&asICS, "ics", false, "write iCalendar instead of text")
	return cmd
}

func (a *app) populateCmd() *cobra.Command {
	var sel selection

	cmd := &cobra.Command{
		Use:   "populate [start]",
		Short: "Write an increment to the calendar, skipping events already there",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			h, store, err := a.handler(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			s, err := sel.resolve(h, args)
			if err != nil {
				return err
			}

			result, run, err := h.RunPopulate(cmd.Context(), s, api.TriggerCLI)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, ev := range result.Created {
				fmt.Fprintf(out, "created\t%s\n", ev.Title)
			}
			for _, ev := range result.Skipped {
				fmt.Fprintf(out, "skipped\t%s\n", ev.Title)
			}
			fmt.Fprintf(out, "PI %s: %d created, %d skipped (run %s)\n",
				result.Increment, len(result.Created), len(result.Skipped), run.ID)
			return nil
		},
	}

	sel.register(cmd)
	return cmd
}

func (a *app) runsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent population runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			h, store, err := a.handler(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := h.Store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tPI\tTRIGGER\tSTATUS\tCREATED\tSKIPPED\tERROR")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
					r.StartedAt.Format(time.RFC3339), r.Increment, r.Trigger, r.Status,
					r.Created, r.Skipped, r.Error)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to show (0 for all)")
	return cmd
}

// =============================================================================
// IMPORT ADJUSTMENTS
// =============================================================================

func (a *app) importAdjustmentsCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import-adjustments <file.ics>",
		Short: "Add every week touched by an iCalendar holiday feed as an adjustment week",
		Long: `Reads an iCalendar file and records each week any of its events
touches as an adjustment week in the config file. Weeks on or before the
calendar's base date are ignored, since they cannot shift any label.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Loaded without flag overrides, since it is written back.
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			current, err := cfg.FiscalConfig()
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			weeks, err := ics.ImportAdjustmentWeeks(f, current.WeekStart())
			if err != nil {
				return err
			}

			merged, added := mergeWeeks(cfg.Calendar.AdjustmentWeeks, weeks, current.BaseDate())
			doc := cfg.Calendar
			doc.AdjustmentWeeks = merged
			if _, err := factory.Build(doc); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, w := range added {
				fmt.Fprintf(out, "added\t%s\n", w)
			}
			fmt.Fprintf(out, "%d adjustment weeks added, %d total\n", len(added), len(merged))

			if dryRun || len(added) == 0 {
				return nil
			}
			cfg.Calendar = doc
			if err := cfg.Save(a.configPath); err != nil {
				return err
			}
			a.logger.Info("adjustment weeks imported",
				zap.String("config", a.configPath),
				zap.Int("added", len(added)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the weeks without saving")
	return cmd
}

// mergeWeeks adds the imported weeks after base to existing and returns the
// sorted union plus the weeks that were new.
func mergeWeeks(existing []string, imported []generic.TimePoint, base generic.TimePoint) ([]string, []string) {
	merged := slices.Clone(existing)
	var added []string
	for _, w := range imported {
		if !w.After(base) {
			continue
		}
		s := w.String()
		if slices.Contains(merged, s) {
			continue
		}
		merged = append(merged, s)
		added = append(added, s)
	}
	slices.Sort(merged)
	return merged, added
}

// =============================================================================
// HELPERS
// =============================================================================

func formatSpan(ev fiscal.ScheduledEvent) string {
	if ev.AllDay {
		first := generic.DateOf(ev.Start)
		last := generic.DateOf(ev.End)
		return fmt.Sprintf("%s..%s", first, last)
	}
	return fmt.Sprintf("%s %s-%s",
		generic.DateOf(ev.Start), ev.Start.Format("15:04"), ev.End.Format("15:04"))
}

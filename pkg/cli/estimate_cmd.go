package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"query-scheduler/internal/domain"
	"query-scheduler/internal/estimate"
)

type estimateResult struct {
	Schedule   domain.Schedule `json:"schedule"`
	DailyCalls int             `json:"daily_calls"`
	Baseline   *int            `json:"baseline_daily_calls,omitempty"`
	Delta      *int            `json:"delta,omitempty"`
	NextRuns   []time.Time     `json:"next_runs,omitempty"`
}

func newEstimateCmd() *cobra.Command {
	var (
		cronExpr, baseCron     string
		interval, baseInterval int
		next                   int
	)

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate how often a schedule fires per day",
		Example: `  qsched estimate --cron "*/15 9-17 * * 1-5"
  qsched estimate --interval 600 --baseline-cron "@hourly"
  qsched estimate --cron "0 6 * * *" --next 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := scheduleFromFlags(cronExpr, interval)
			if err != nil {
				return err
			}
			if s.IsZero() {
				return errors.New("one of --cron or --interval is required")
			}

			res := estimateResult{Schedule: s}
			if res.DailyCalls, err = estimate.EstimateDailyCalls(s); err != nil {
				return err
			}

			base, err := scheduleFromFlags(baseCron, baseInterval)
			if err != nil {
				return err
			}
			if !base.IsZero() {
				b, err := estimate.EstimateDailyCalls(base)
				if err != nil {
					return fmt.Errorf("baseline: %w", err)
				}
				d := res.DailyCalls - b
				res.Baseline, res.Delta = &b, &d
			}

			t := time.Now()
			for range next {
				if t, err = estimate.NextRun(s, t); err != nil {
					return err
				}
				res.NextRuns = append(res.NextRuns, t)
			}

			out := cmd.OutOrStdout()
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(out, res)
			}
			_, _ = fmt.Fprintf(out, "%s: %d calls/day\n", s, res.DailyCalls)
			if res.Delta != nil {
				_, _ = fmt.Fprintf(out, "Baseline %s: %d calls/day (%+d)\n", base, *res.Baseline, *res.Delta)
			}
			for _, r := range res.NextRuns {
				_, _ = fmt.Fprintf(out, "  next: %s\n", r.Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression (5 fields or a descriptor)")
	cmd.Flags().IntVar(&interval, "interval", 0, "Fixed interval in seconds")
	cmd.Flags().StringVar(&baseCron, "baseline-cron", "", "Current cron expression to compare against")
	cmd.Flags().IntVar(&baseInterval, "baseline-interval", 0, "Current interval in seconds to compare against")
	cmd.Flags().IntVar(&next, "next", 0, "Also print the next N trigger times")
	cmd.MarkFlagsMutuallyExclusive("cron", "interval")
	cmd.MarkFlagsMutuallyExclusive("baseline-cron", "baseline-interval")
	return cmd
}

func scheduleFromFlags(cronExpr string, interval int) (domain.Schedule, error) {
	switch {
	case cronExpr != "":
		return domain.CronSchedule(cronExpr), nil
	case interval < 0:
		return domain.Schedule{}, fmt.Errorf("interval must be positive, got %d", interval)
	case interval > 0:
		return domain.FixedIntervalSchedule(interval), nil
	default:
		return domain.Schedule{}, nil
	}
}

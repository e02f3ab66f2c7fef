package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autoperf/taudash/internal/profile"
)

var (
	showProfileJSON  bool
	showProfileType  string
	showProfileQuery profile.Query
)

var showProfileCmd = &cobra.Command{
	Use:   "show-profile <thread-id> <metric-id>",
	Short: "Show the timer profile of a thread for one metric",
	Long: `Show the timers of a thread for one metric, ordered by the selected
type's percentage, descending.

Examples:
  taudash show-profile 200 100
  taudash show-profile 200 100 --type inclusive --limit 20 --offset 20
  taudash show-profile 200 100 --json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		threadID, err := parseID("thread", args[0])
		if err != nil {
			return err
		}
		metricID, err := parseID("metric", args[1])
		if err != nil {
			return err
		}
		vt, err := profile.ParseValueType(showProfileType)
		if err != nil {
			return err
		}
		q := showProfileQuery
		q.ThreadID, q.MetricID, q.Type = threadID, metricID, vt
		if q, err = q.Normalize(); err != nil {
			return err
		}

		ctx := cmd.Context()
		s, err := openProfileDB(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		rows, err := s.Profile(ctx, q)
		if err != nil {
			return fmt.Errorf("show profile: %w", err)
		}

		out := cmd.OutOrStdout()
		if showProfileJSON {
			return writeJSON(out, rows)
		}
		t := newTable(out, "EXCL", "EXCL%", "INCL", "INCL%", "TIMER")
		for _, r := range rows {
			t.row(
				fmt.Sprintf("%.6g", r.ExclusiveValue),
				fmt.Sprintf("%.2f", r.ExclusivePercent),
				fmt.Sprintf("%.6g", r.InclusiveValue),
				fmt.Sprintf("%.2f", r.InclusivePercent),
				r.Callpath,
			)
		}
		return t.done(len(rows), "timer")
	},
}

func init() {
	rootCmd.AddCommand(showProfileCmd)
	addDatabaseFlags(showProfileCmd)
	showProfileCmd.Flags().BoolVar(&showProfileJSON, "json", false, "Output as JSON")
	showProfileCmd.Flags().StringVar(&showProfileType, "type", string(profile.Exclusive), "order by inclusive or exclusive percent")
	showProfileCmd.Flags().IntVar(&showProfileQuery.Offset, "offset", 0, "rows to skip")
	showProfileCmd.Flags().IntVar(&showProfileQuery.Limit, "limit", profile.DefaultLimit, "rows to return")
}

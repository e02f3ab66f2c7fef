package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autoperf/taudash/internal/profile"
)

var listMetricsJSON bool

var listMetricsCmd = &cobra.Command{
	Use:   "list-metrics <trial-id>",
	Short: "List the metrics measured in a trial",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		trialID, err := parseID("trial", args[0])
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		s, err := openProfileDB(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		metrics, err := s.Metrics(ctx, trialID)
		if err != nil {
			return fmt.Errorf("list metrics: %w", err)
		}

		out := cmd.OutOrStdout()
		if listMetricsJSON {
			return writeJSON(out, profile.OrderedMetrics(metrics))
		}
		t := newTable(out, "ID", "METRIC")
		for _, m := range metrics {
			t.row(m.ID, m.Name)
		}
		return t.done(len(metrics), "metric")
	},
}

func init() {
	rootCmd.AddCommand(listMetricsCmd)
	addDatabaseFlags(listMetricsCmd)
	listMetricsCmd.Flags().BoolVar(&listMetricsJSON, "json", false, "Output as JSON")
}

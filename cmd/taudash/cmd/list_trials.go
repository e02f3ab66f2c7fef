package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autoperf/taudash/internal/profile"
)

var listTrialsJSON bool

var listTrialsCmd = &cobra.Command{
	Use:   "list-trials [application]",
	Short: "List trials, optionally of one application",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openProfileDB(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		var trials []profile.Trial
		if len(args) == 1 {
			trials, err = s.Trials(ctx, args[0])
		} else {
			trials, err = s.AllTrials(ctx)
		}
		if err != nil {
			return fmt.Errorf("list trials: %w", err)
		}

		out := cmd.OutOrStdout()
		if listTrialsJSON {
			// Keep row order on the wire, as the API does.
			return writeJSON(out, profile.OrderedTrials(trials))
		}
		t := newTable(out, "ID", "TRIAL")
		for _, tr := range trials {
			t.row(tr.ID, tr.Name)
		}
		return t.done(len(trials), "trial")
	},
}

func init() {
	rootCmd.AddCommand(listTrialsCmd)
	addDatabaseFlags(listTrialsCmd)
	listTrialsCmd.Flags().BoolVar(&listTrialsJSON, "json", false, "Output as JSON")
}

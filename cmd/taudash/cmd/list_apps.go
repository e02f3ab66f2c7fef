package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listAppsJSON bool

var listAppsCmd = &cobra.Command{
	Use:   "list-apps",
	Short: "List applications in a profiling database",
	Long: `List the distinct application names recorded in the primary metadata
of a profiling database.

Examples:
  taudash list-apps
  taudash list-apps --db lulesh.db --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openProfileDB(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		apps, err := s.Applications(cmd.Context())
		if err != nil {
			return fmt.Errorf("list applications: %w", err)
		}

		out := cmd.OutOrStdout()
		if listAppsJSON {
			names := make([]string, len(apps))
			for i, a := range apps {
				names[i] = a.Name
			}
			return writeJSON(out, names)
		}
		if len(apps) == 0 {
			fmt.Fprintln(out, "No applications found. Use 'taudash init-db --demo' to create a demo database.")
			return nil
		}
		t := newTable(out, "APPLICATION")
		for _, a := range apps {
			t.row(a.Name)
		}
		return t.done(len(apps), "application")
	},
}

func init() {
	rootCmd.AddCommand(listAppsCmd)
	addDatabaseFlags(listAppsCmd)
	listAppsCmd.Flags().BoolVar(&listAppsJSON, "json", false, "Output as JSON")
}

package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/autoperf/taudash/internal/profile"
)

var listThreadsJSON bool

var listThreadsCmd = &cobra.Command{
	Use:   "list-threads <trial-id>",
	Short: "List the threads of a trial",
	Long: `List the threads of a trial. Aggregate threads are shown by name
(Mean, Total, Std Dev ...); the rest by their rank index.`,
	Args: cobra.ExactArgs(1),
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

		threads, err := s.Threads(ctx, trialID)
		if err != nil {
			return fmt.Errorf("list threads: %w", err)
		}

		out := cmd.OutOrStdout()
		if listThreadsJSON {
			return writeJSON(out, profile.OrderedThreads(threads))
		}
		t := newTable(out, "ID", "THREAD")
		for _, th := range threads {
			t.row(th.ID, th.Name)
		}
		return t.done(len(threads), "thread")
	},
}

// parseID parses a positive database id argument.
func parseID(what, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, s)
	}
	return id, nil
}

func init() {
	rootCmd.AddCommand(listThreadsCmd)
	addDatabaseFlags(listThreadsCmd)
	listThreadsCmd.Flags().BoolVar(&listThreadsJSON, "json", false, "Output as JSON")
}

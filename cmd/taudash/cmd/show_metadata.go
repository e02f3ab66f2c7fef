package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autoperf/taudash/internal/profile"
)

var showMetadataJSON bool

var showMetadataCmd = &cobra.Command{
	Use:   "show-metadata <trial-id>",
	Short: "Show the primary metadata of a trial",
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

		entries, err := s.Metadata(ctx, trialID)
		if err != nil {
			return fmt.Errorf("show metadata: %w", err)
		}

		out := cmd.OutOrStdout()
		if showMetadataJSON {
			return writeJSON(out, profile.OrderedMetadata(entries))
		}
		t := newTable(out, "NAME", "VALUE")
		for _, e := range entries {
			t.row(e.Name, e.Value)
		}
		return t.done(len(entries), "entry")
	},
}

func init() {
	rootCmd.AddCommand(showMetadataCmd)
	addDatabaseFlags(showMetadataCmd)
	showMetadataCmd.Flags().BoolVar(&showMetadataJSON, "json", false, "Output as JSON")
}

package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listProfilesJSON bool

var listProfilesCmd = &cobra.Command{
	Use:   "list-profiles",
	Short: "List saved connection profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openClientState()
		if err != nil {
			return err
		}
		defer st.Close()

		sessions, err := st.Sessions(ctx)
		if err != nil {
			return fmt.Errorf("list profiles: %w", err)
		}
		active, err := st.Active(ctx)
		if err != nil {
			return fmt.Errorf("read active profile: %w", err)
		}

		out := cmd.OutOrStdout()
		if listProfilesJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"active": active, "profiles": sessions})
		}
		if len(sessions) == 0 {
			fmt.Fprintln(out, "No profiles saved. Use 'taudash login --profile <name>' to add one.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, " \tNAME\tDRIVER\tHOST\tDATABASE\tUSER")
		for _, s := range sessions {
			mark := " "
			if s.Name == active {
				mark = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", mark, s.Name, dash(s.Driver), dash(s.DBHost), s.DBName, dash(s.DBUser))
		}
		return w.Flush()
	},
}

var removeProfileCmd = &cobra.Command{
	Use:   "remove-profile <name>",
	Short: "Delete a saved profile and its cached selection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openClientState()
		if err != nil {
			return err
		}
		defer st.Close()

		removed, err := st.RemoveSession(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("remove profile: %w", err)
		}
		if !removed {
			return fmt.Errorf("no saved profile %q", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed profile %q\n", args[0])
		return nil
	},
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	rootCmd.AddCommand(listProfilesCmd)
	rootCmd.AddCommand(removeProfileCmd)
	listProfilesCmd.Flags().BoolVar(&listProfilesJSON, "json", false, "Output as JSON")
}

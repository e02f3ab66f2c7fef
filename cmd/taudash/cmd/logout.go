package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logoutForget bool

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the active connection profile",
	Long: `Clear the active connection profile so 'taudash browse' starts from
the [datasource] defaults. With --forget the profile and its cached
selection are deleted as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openClientState()
		if err != nil {
			return err
		}
		defer st.Close()

		active, err := st.Active(ctx)
		if err != nil {
			return fmt.Errorf("read active profile: %w", err)
		}
		if active == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No active profile.")
			return nil
		}

		if logoutForget {
			if _, err := st.RemoveSession(ctx, active); err != nil {
				return fmt.Errorf("remove profile: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed profile %q\n", active)
			return nil
		}
		if err := st.SetActive(ctx, ""); err != nil {
			return fmt.Errorf("clear active profile: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Logged out of profile %q\n", active)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
	logoutCmd.Flags().BoolVar(&logoutForget, "forget", false, "also delete the profile and its cached selection")
}

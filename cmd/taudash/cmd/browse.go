package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/autoperf/taudash/internal/tui"
)

var browseProfile string

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Open the interactive profile browser",
	Long: `Open the terminal profile browser against a taudash server.

The browser logs in (pre-filled from the active profile), restores the
profile's last confirmed selection and shows the timer profile of the
resolved thread and metric.

Navigation:
  ↑/k, ↓/j    Move up/down
  PgUp/PgDn   Page up/down
  s, Enter    Open the selector (application, trial, metric, thread)
  Tab         Cycle profile / metadata / chart
  i           Toggle inclusive / exclusive ordering
  m           Load more rows
  r           Reload applications
  ?           Help
  q           Quit

In the selector:
  ←/→, Tab    Move between levels
  Enter       Select option
  /           Filter options by regular expression
  x           Clear level
  c           Confirm and remember the selection
  Esc         Close`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		client, err := newRemoteClient()
		if err != nil {
			return err
		}
		st, err := openClientState()
		if err != nil {
			return err
		}
		defer st.Close()

		creds, profileName, err := activeCredentials(ctx, st, browseProfile)
		if err != nil {
			return err
		}

		// The alt screen owns stdout and stderr; log to a file instead.
		tuiLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
		if verbose {
			f, err := os.OpenFile(cfg.LogFilePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			defer f.Close()
			tuiLogger = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
		}

		model := tui.New(client, st, tui.Options{
			Version:      Version,
			Session:      profileName,
			Login:        creds,
			ProfileLimit: cfg.Client.ProfileLimit,
			ApplyStale:   cfg.Client.LegacyStaleResults,
			Logger:       tuiLogger,
		})
		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("run tui: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(browseCmd)
	browseCmd.Flags().StringVar(&browseProfile, "profile", "", "connection profile (default: the active profile)")
}

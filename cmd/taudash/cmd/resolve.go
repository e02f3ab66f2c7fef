package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/autoperf/taudash/internal/profile"
	"github.com/autoperf/taudash/internal/selection"
)

var (
	resolveDirect   bool
	resolveProfile  string
	resolvePassword string
	resolveRows     int
	resolveInclType bool
	resolveJSON     bool
	resolveTarget   selection.Selection
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve the cached selection without the terminal UI",
	Long: `Run the application > trial > metric > thread cascade headlessly and
print the resolved selection with its top timers.

The target is the active profile's last confirmed selection, or the ids
given with --app, --trial, --metric and --thread. By default the cascade
runs against the server after logging in with the profile's parameters;
--direct reads the [datasource] database (or --db) instead.

Examples:
  taudash resolve
  taudash resolve --direct --db taudb.db --app demo --trial 10 --metric 100 --thread 200`,
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	addDatabaseFlags(resolveCmd)
	resolveCmd.Flags().BoolVar(&resolveDirect, "direct", false, "read the database directly instead of the server")
	resolveCmd.Flags().StringVar(&resolveProfile, "profile", "", "connection profile (default: the active profile)")
	resolveCmd.Flags().StringVar(&resolvePassword, "password", "", "database password for the server login")
	resolveCmd.Flags().IntVar(&resolveRows, "rows", 10, "number of timers to print")
	resolveCmd.Flags().BoolVar(&resolveInclType, "inclusive", false, "order timers by inclusive percent")
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "Output as JSON")
	resolveCmd.Flags().StringVar(&resolveTarget.AppName, "app", "", "application name")
	resolveCmd.Flags().Int64Var(&resolveTarget.TrialID, "trial", 0, "trial id")
	resolveCmd.Flags().Int64Var(&resolveTarget.MetricID, "metric", 0, "metric id")
	resolveCmd.Flags().Int64Var(&resolveTarget.ThreadID, "thread", 0, "thread id")
}

// fixedCache serves a selection given on the command line and ignores
// saves.
type fixedCache struct {
	sel selection.Selection
}

func (c fixedCache) LoadSelection() (selection.Selection, bool, error) {
	return c.sel, true, nil
}

func (c fixedCache) SaveSelection(selection.Selection) error {
	return nil
}

// resolveOutput is the --json shape.
type resolveOutput struct {
	Valid     string                  `json:"valid"`
	Ready     bool                    `json:"ready"`
	Selection selection.Selection     `json:"selection"`
	Names     map[string]string       `json:"names"`
	Metadata  []profile.MetadataEntry `json:"metadata"`
	Rows      []profile.ProfileRow    `json:"rows"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	st, err := openClientState()
	if err != nil {
		return err
	}
	defer st.Close()

	var src selection.Source
	creds, profileName, err := activeCredentials(ctx, st, resolveProfile)
	if err != nil {
		return err
	}
	if resolveDirect {
		db, err := openProfileDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()
		src = db
	} else {
		client, err := newRemoteClient()
		if err != nil {
			return err
		}
		creds.Password = resolvePassword
		ok, err := client.Login(ctx, creds)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		if !ok {
			return fmt.Errorf("login failed: the server could not open %q", creds.Name)
		}
		src = client
	}

	opts := selection.Options{Logger: logger, ApplyStale: cfg.Client.LegacyStaleResults}
	switch {
	case resolveTarget != (selection.Selection{}):
		opts.Cache = fixedCache{sel: resolveTarget}
	case profileName != "":
		opts.Cache = st.SelectionCache(ctx, profileName)
	default:
		return errors.New("nothing to resolve: no active profile; pass --app, --trial, --metric and --thread")
	}

	vtype := profile.Exclusive
	if resolveInclType {
		vtype = profile.Inclusive
	}
	ctrl := selection.NewController(selection.New(opts), selection.NewProfileView(resolveRows, vtype, opts))
	initial, err := ctrl.Start()
	if err != nil {
		return err
	}
	if err := selection.NewRunner(src, logger).Run(ctx, ctrl, initial); err != nil {
		return fmt.Errorf("resolve: %w", err)
	}

	state, view := ctrl.State(), ctrl.View()
	app, trial, metric, thread := state.ResolvedNames()
	out := resolveOutput{
		Valid:     state.Valid().String(),
		Ready:     state.Ready(),
		Selection: state.Resolved(),
		Names:     map[string]string{"application": app, "trial": trial, "metric": metric, "thread": thread},
		Metadata:  view.Metadata(),
		Rows:      view.Rows(),
	}

	w := cmd.OutOrStdout()
	if resolveJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	} else {
		printResolved(cmd, out, view.Type())
	}
	if state.Valid() != selection.ValidTrue {
		return errors.New("the selection no longer matches the database; choose again in 'taudash browse'")
	}
	return nil
}

func printResolved(cmd *cobra.Command, out resolveOutput, vt profile.ValueType) {
	w := cmd.OutOrStdout()
	if !out.Ready {
		fmt.Fprintf(w, "Selection not resolved (valid: %s)\n", out.Valid)
		return
	}
	sel := out.Selection
	fmt.Fprintf(w, "Application: %s\n", out.Names["application"])
	fmt.Fprintf(w, "Trial:       %s (%d)\n", out.Names["trial"], sel.TrialID)
	fmt.Fprintf(w, "Metric:      %s (%d)\n", out.Names["metric"], sel.MetricID)
	fmt.Fprintf(w, "Thread:      %s (%d)\n", out.Names["thread"], sel.ThreadID)
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "%s%%\tTIMER\t\n", vt)
	for _, r := range out.Rows {
		fmt.Fprintf(tw, "%.1f\t%s\t\n", r.Percent(vt), r.ShortName)
	}
	tw.Flush()
}

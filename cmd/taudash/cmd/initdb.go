package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autoperf/taudash/internal/taudb"
)

var initDBDemo bool

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Initialize a profiling database schema",
	Long: `Create a profiling database with the taudash read-model schema (trial,
primary_metadata, metric, thread, timer, timer_callpath, timer_call_data,
timer_value). It is safe to run multiple times; tables are only created if
they don't already exist.

With --demo the database is seeded with two applications (demo, lulesh)
for trying out the server and the browser.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		params := databaseParams()
		logger.Info("initializing database", "driver", params.Driver, "name", params.Name)

		s, err := taudb.Open(ctx, params, taudb.OpenOptions{DataDir: cfg.Datasource.DataDir, Create: true})
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer s.Close()

		if err := s.InitSchema(ctx); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
		if initDBDemo {
			if err := s.SeedDemo(ctx); err != nil {
				if !errors.Is(err, taudb.ErrNotEmpty) {
					return fmt.Errorf("seed demo data: %w", err)
				}
				logger.Warn("database already has trials; demo data not added")
			}
		}
		logger.Info("database initialized successfully")

		apps, err := s.Applications(ctx)
		if err != nil {
			return fmt.Errorf("count applications: %w", err)
		}
		trials, err := s.AllTrials(ctx)
		if err != nil {
			return fmt.Errorf("count trials: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Database: %s (%s)\n", params.Name, s.Driver())
		fmt.Fprintf(out, "  Applications: %d\n", len(apps))
		fmt.Fprintf(out, "  Trials:       %d\n", len(trials))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initDBCmd)
	addDatabaseFlags(initDBCmd)
	initDBCmd.Flags().BoolVar(&initDBDemo, "demo", false, "seed the demo data set")
}

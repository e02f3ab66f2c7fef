package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autoperf/taudash/internal/taudb"
)

var (
	dbName   string
	dbDriver string
)

// addDatabaseFlags registers the flags of commands that read a profiling
// database directly instead of going through a server.
func addDatabaseFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&dbName, "db", "", "profiling database file (default: [datasource] dbname)")
	cmd.Flags().StringVar(&dbDriver, "driver", "", "database driver: sqlite3 or duckdb (default: [datasource] driver)")
}

func databaseParams() taudb.ConnParams {
	return taudb.ConnParams{
		Driver: firstNonEmpty(dbDriver, cfg.Datasource.Driver),
		Host:   cfg.Datasource.DBHost,
		Name:   firstNonEmpty(dbName, cfg.Datasource.DBName),
		User:   cfg.Datasource.DBUser,
	}
}

// openProfileDB opens the profiling database read-only.
func openProfileDB(ctx context.Context) (*taudb.Store, error) {
	params := databaseParams()
	s, err := taudb.Open(ctx, params, taudb.OpenOptions{DataDir: cfg.Datasource.DataDir})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	logger.Debug("opened profiling database", "driver", s.Driver(), "name", params.Name)
	return s, nil
}

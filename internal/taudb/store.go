// Package taudb provides read access to TAUdb-style profiling databases.
package taudb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"
)

//go:embed schema.sql
var schemaFS embed.FS

// ErrConnect is returned when the profiling database cannot be opened or
// does not answer a ping. Login reports it to the user; everything else
// treats it as an unresolved request.
var ErrConnect = eris.New("cannot connect to profiling database")

// Supported drivers.
const (
	DriverSQLite = "sqlite3"
	DriverDuckDB = "duckdb"
)

const defaultSQLiteParams = "_busy_timeout=5000&_foreign_keys=ON"

// ConnParams identifies a profiling database, mirroring the login form.
// For file-backed drivers Name is the database file; Host and User are
// kept for display, and Password is never stored after Open returns.
type ConnParams struct {
	Driver   string `json:"driver,omitempty"`
	Host     string `json:"dbhost"`
	Name     string `json:"dbname"`
	User     string `json:"dbuser"`
	Password string `json:"-"`
}

// OpenOptions control how Open resolves and creates the database.
type OpenOptions struct {
	// DataDir resolves relative database file names.
	DataDir string
	// Create allows Open to create a missing database file.
	Create bool
}

// Store provides profiling queries over one database connection.
type Store struct {
	db     *sql.DB
	driver string
	path   string
	params ConnParams
}

// Open opens and pings the database named by params. Any failure wraps
// ErrConnect.
func Open(ctx context.Context, params ConnParams, opts OpenOptions) (*Store, error) {
	driver := params.Driver
	if driver == "" {
		driver = DriverSQLite
	}
	if params.Name == "" {
		return nil, eris.Wrap(ErrConnect, "database name is required")
	}

	path := params.Name
	if path != ":memory:" && !filepath.IsAbs(path) && opts.DataDir != "" {
		path = filepath.Join(opts.DataDir, path)
	}

	if path != ":memory:" {
		if _, err := os.Stat(path); err != nil {
			if !os.IsNotExist(err) || !opts.Create {
				return nil, eris.Wrapf(ErrConnect, "database %s: %v", path, err)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return nil, eris.Wrapf(err, "create db directory")
			}
		}
	}

	var dsn string
	switch driver {
	case DriverSQLite:
		dsn = sqliteDSN(path, opts.Create)
	case DriverDuckDB:
		dsn = duckDSN(path, opts.Create)
	default:
		return nil, eris.Wrapf(ErrConnect, "unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, eris.Wrapf(ErrConnect, "open %s: %v", driver, err)
	}
	if driver == DriverDuckDB || path == ":memory:" {
		// Session state (and in-memory data) lives on a single connection.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, eris.Wrapf(ErrConnect, "ping %s: %v", path, err)
	}

	params.Driver = driver
	params.Password = ""
	return &Store{db: db, driver: driver, path: path, params: params}, nil
}

func sqliteDSN(path string, create bool) string {
	if path == ":memory:" {
		return "file::memory:?_foreign_keys=ON"
	}
	if create {
		return "file:" + path + "?mode=rwc&" + defaultSQLiteParams
	}
	// Changing the journal mode is a write; read-only opens leave it alone.
	return "file:" + path + "?mode=ro&_busy_timeout=5000"
}

func duckDSN(path string, create bool) string {
	if path == ":memory:" {
		return ""
	}
	if create {
		return path
	}
	return path + "?access_mode=READ_ONLY"
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Params returns the connection parameters (without password).
func (s *Store) Params() ConnParams {
	return s.params
}

// Driver returns the database/sql driver name in use.
func (s *Store) Driver() string {
	return s.driver
}

// InitSchema creates the read-model tables if they don't exist.
func (s *Store) InitSchema(ctx context.Context) error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("read schema.sql: %w", err)
	}
	// DuckDB's driver executes one statement per call.
	for _, stmt := range splitStatements(string(schema)) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema: %w", err)
		}
	}
	return nil
}

// splitStatements splits a schema script on semicolons, dropping comments
// and blank statements. The schema contains no string literals with ';'.
func splitStatements(script string) []string {
	var lines []string
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		lines = append(lines, line)
	}
	var out []string
	for _, stmt := range strings.Split(strings.Join(lines, "\n"), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// withTx executes fn within a database transaction. If fn returns an error,
// the transaction is rolled back; otherwise it is committed.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// isSQLiteReadOnly reports whether err is SQLite refusing a write on a
// read-only connection.
func isSQLiteReadOnly(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrReadonly
	}
	return false
}

// Package clientstate persists the terminal client's saved connection
// profiles, the active profile, and the last confirmed selection of each
// profile in a small SQLite database.
package clientstate

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"

	"github.com/autoperf/taudash/internal/selection"
)

//go:embed schema.sql
var schema string

const activeKey = "active"

// Session is a saved connection profile.
type Session struct {
	Name   string `json:"name"`
	Driver string `json:"driver,omitempty"`
	DBHost string `json:"dbhost"`
	DBName string `json:"dbname"`
	DBUser string `json:"dbuser"`
}

// Store is the client state database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the state database at path (":memory:" for tests).
func Open(path string) (*Store, error) {
	dsn := "file::memory:?_foreign_keys=ON"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, eris.Wrap(err, "create state directory")
		}
		dsn = "file:" + path + "?_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, eris.Wrapf(err, "open client state %s", path)
	}
	// One connection keeps an in-memory database alive and serializes writes.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, eris.Wrapf(err, "init client state %s", path)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// AddSession saves a profile under sess.Name, replacing any profile of the
// same name. A profile without a name is not saved and false is returned.
func (s *Store) AddSession(ctx context.Context, sess Session) (bool, error) {
	if sess.Name == "" {
		return false, nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (name, driver, dbhost, dbname, dbuser) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			driver = excluded.driver,
			dbhost = excluded.dbhost,
			dbname = excluded.dbname,
			dbuser = excluded.dbuser`,
		sess.Name, sess.Driver, sess.DBHost, sess.DBName, sess.DBUser)
	if err != nil {
		return false, eris.Wrapf(err, "save session %q", sess.Name)
	}
	return true, nil
}

// GetSession returns a saved profile.
func (s *Store) GetSession(ctx context.Context, name string) (Session, bool, error) {
	sess := Session{Name: name}
	err := s.db.QueryRowContext(ctx,
		`SELECT driver, dbhost, dbname, dbuser FROM sessions WHERE name = ?`, name,
	).Scan(&sess.Driver, &sess.DBHost, &sess.DBName, &sess.DBUser)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, eris.Wrapf(err, "get session %q", name)
	}
	return sess, true, nil
}

// Sessions lists saved profiles by name.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, driver, dbhost, dbname, dbuser FROM sessions ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "list sessions")
	}
	defer rows.Close()

	out := []Session{}
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.Name, &sess.Driver, &sess.DBHost, &sess.DBName, &sess.DBUser); err != nil {
			return nil, eris.Wrap(err, "scan session")
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// RemoveSession deletes a profile and its cached selection. Removing the
// active profile clears the active name. It reports whether a profile was
// deleted.
func (s *Store) RemoveSession(ctx context.Context, name string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, eris.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE name = ?`, name)
	if err != nil {
		return false, eris.Wrapf(err, "remove session %q", name)
	}
	n, _ := res.RowsAffected()
	if _, err := tx.ExecContext(ctx, `DELETE FROM dscache WHERE session = ?`, name); err != nil {
		return false, eris.Wrapf(err, "remove cached selection of %q", name)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM settings WHERE key = ? AND value = ?`, activeKey, name); err != nil {
		return false, eris.Wrap(err, "clear active session")
	}
	if err := tx.Commit(); err != nil {
		return false, eris.Wrap(err, "commit")
	}
	return n > 0, nil
}

// SetActive records the active profile name. An empty name clears it.
func (s *Store) SetActive(ctx context.Context, name string) error {
	var err error
	if name == "" {
		_, err = s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, activeKey)
	} else {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, activeKey, name)
	}
	if err != nil {
		return eris.Wrapf(err, "set active session %q", name)
	}
	return nil
}

// Active returns the active profile name, or "" when none is set.
func (s *Store) Active(ctx context.Context) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, activeKey).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrap(err, "get active session")
	}
	return name, nil
}

// LoadSelection returns the cached selection of a profile.
func (s *Store) LoadSelection(ctx context.Context, session string) (selection.Selection, bool, error) {
	var sel selection.Selection
	err := s.db.QueryRowContext(ctx, `
		SELECT app_name, trial_id, metric_id, thread_id FROM dscache WHERE session = ?`, session,
	).Scan(&sel.AppName, &sel.TrialID, &sel.MetricID, &sel.ThreadID)
	if errors.Is(err, sql.ErrNoRows) {
		return selection.Selection{}, false, nil
	}
	if err != nil {
		return selection.Selection{}, false, eris.Wrapf(err, "load cached selection of %q", session)
	}
	return sel, true, nil
}

// SaveSelection replaces the cached selection of a profile.
func (s *Store) SaveSelection(ctx context.Context, session string, sel selection.Selection) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dscache (session, app_name, trial_id, metric_id, thread_id, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(session) DO UPDATE SET
			app_name = excluded.app_name,
			trial_id = excluded.trial_id,
			metric_id = excluded.metric_id,
			thread_id = excluded.thread_id,
			updated_at = excluded.updated_at`,
		session, sel.AppName, sel.TrialID, sel.MetricID, sel.ThreadID)
	if err != nil {
		return eris.Wrapf(err, "save cached selection of %q", session)
	}
	return nil
}

// SelectionCache adapts the cached selection of one profile to
// selection.Cache. With no active profile ("") nothing is read or written.
func (s *Store) SelectionCache(ctx context.Context, session string) selection.Cache {
	if session == "" {
		return nopCache{}
	}
	return &sessionCache{ctx: ctx, store: s, session: session}
}

type nopCache struct{}

func (nopCache) LoadSelection() (selection.Selection, bool, error) {
	return selection.Selection{}, false, nil
}

func (nopCache) SaveSelection(selection.Selection) error { return nil }

type sessionCache struct {
	ctx     context.Context
	store   *Store
	session string
}

func (c *sessionCache) LoadSelection() (selection.Selection, bool, error) {
	return c.store.LoadSelection(c.ctx, c.session)
}

func (c *sessionCache) SaveSelection(sel selection.Selection) error {
	return c.store.SaveSelection(c.ctx, c.session, sel)
}

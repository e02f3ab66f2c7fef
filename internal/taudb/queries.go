package taudb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/autoperf/taudash/internal/profile"
)

// Profile pagination bounds.
const (
	DefaultProfileLimit = profile.DefaultLimit
	MaxProfileLimit     = profile.MaxLimit
)

// ProfileQuery selects timer rows for one (thread, metric) pair.
type ProfileQuery = profile.Query

// Applications returns the distinct application names, sorted.
func (s *Store) Applications(ctx context.Context) ([]profile.Application, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT value
		FROM primary_metadata
		WHERE name = 'Application' AND value IS NOT NULL
		ORDER BY value`)
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	defer rows.Close()

	apps := []profile.Application{}
	for rows.Next() {
		var a profile.Application
		if err := rows.Scan(&a.Name); err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

// Trials returns the trials tagged with the given application name.
func (s *Store) Trials(ctx context.Context, appName string) ([]profile.Trial, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trial.id, trial.name
		FROM trial
		INNER JOIN primary_metadata ON primary_metadata.trial = trial.id
		WHERE primary_metadata.name = 'Application'
		  AND primary_metadata.value = ?
		ORDER BY trial.id`, appName)
	if err != nil {
		return nil, fmt.Errorf("query trials for %q: %w", appName, err)
	}
	return scanTrials(rows)
}

// AllTrials returns every trial regardless of application.
func (s *Store) AllTrials(ctx context.Context) ([]profile.Trial, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM trial ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query trials: %w", err)
	}
	return scanTrials(rows)
}

func scanTrials(rows *sql.Rows) ([]profile.Trial, error) {
	defer rows.Close()
	trials := []profile.Trial{}
	for rows.Next() {
		var t profile.Trial
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("scan trial: %w", err)
		}
		trials = append(trials, t)
	}
	return trials, rows.Err()
}

// Metrics returns the metrics measured in a trial.
func (s *Store) Metrics(ctx context.Context, trialID int64) ([]profile.Metric, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name FROM metric WHERE trial = ? ORDER BY id`, trialID)
	if err != nil {
		return nil, fmt.Errorf("query metrics for trial %d: %w", trialID, err)
	}
	defer rows.Close()

	metrics := []profile.Metric{}
	for rows.Next() {
		var m profile.Metric
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// Threads returns the threads of a trial with display names resolved from
// their thread_index.
func (s *Store) Threads(ctx context.Context, trialID int64) ([]profile.Thread, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, thread_index FROM thread WHERE trial = ? ORDER BY id`, trialID)
	if err != nil {
		return nil, fmt.Errorf("query threads for trial %d: %w", trialID, err)
	}
	defer rows.Close()

	threads := []profile.Thread{}
	for rows.Next() {
		var (
			id    int64
			index int64
		)
		if err := rows.Scan(&id, &index); err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		threads = append(threads, profile.Thread{ID: id, Name: profile.ThreadName(index)})
	}
	return threads, rows.Err()
}

// Metadata returns the primary metadata of a trial in storage order.
func (s *Store) Metadata(ctx context.Context, trialID int64) ([]profile.MetadataEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, COALESCE(value, '') FROM primary_metadata WHERE trial = ?`, trialID)
	if err != nil {
		return nil, fmt.Errorf("query metadata for trial %d: %w", trialID, err)
	}
	defer rows.Close()

	entries := []profile.MetadataEntry{}
	for rows.Next() {
		var e profile.MetadataEntry
		if err := rows.Scan(&e.Name, &e.Value); err != nil {
			return nil, fmt.Errorf("scan metadata: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// profileOrderColumns whitelists the ORDER BY column per value type.
var profileOrderColumns = map[profile.ValueType]string{
	profile.Inclusive: "timer_value.inclusive_percent",
	profile.Exclusive: "timer_value.exclusive_percent",
}

// Profile returns the timer rows for a (thread, metric) pair, ordered by the
// selected type's percentage, descending.
func (s *Store) Profile(ctx context.Context, q ProfileQuery) ([]profile.ProfileRow, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT
			timer_callpath.name,
			timer.id,
			timer.short_name,
			COALESCE(timer_value.inclusive_value, 0),
			COALESCE(timer_value.inclusive_percent, 0),
			COALESCE(timer_value.exclusive_value, 0),
			COALESCE(timer_value.exclusive_percent, 0)
		FROM timer_call_data
		INNER JOIN timer_value ON timer_call_data.id = timer_value.timer_call_data
		INNER JOIN timer_callpath ON timer_callpath.id = timer_call_data.timer_callpath
		INNER JOIN timer ON timer.id = timer_callpath.timer
		WHERE timer_call_data.thread = ?
		  AND timer_value.metric = ?
		ORDER BY %s DESC, timer_call_data.id
		LIMIT ? OFFSET ?`, profileOrderColumns[q.Type])

	rows, err := s.db.QueryContext(ctx, query, q.ThreadID, q.MetricID, q.Limit, q.Offset)
	if err != nil {
		return nil, fmt.Errorf("query profile thread=%d metric=%d: %w", q.ThreadID, q.MetricID, err)
	}
	defer rows.Close()

	out := []profile.ProfileRow{}
	for rows.Next() {
		var r profile.ProfileRow
		if err := rows.Scan(
			&r.Callpath, &r.ID, &r.ShortName,
			&r.InclusiveValue, &r.InclusivePercent,
			&r.ExclusiveValue, &r.ExclusivePercent,
		); err != nil {
			return nil, fmt.Errorf("scan profile row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

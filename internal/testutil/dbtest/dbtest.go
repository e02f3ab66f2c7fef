// Package dbtest provides shared helpers for building in-memory profiling
// databases in tests. Builders hand out ids from counters so tests can mix
// the demo data set with rows of their own.
package dbtest

import (
	"context"
	"testing"

	"github.com/autoperf/taudash/internal/taudb"
)

// TestDB wraps an in-memory taudb.Store with id counters and builder helpers.
type TestDB struct {
	Store *taudb.Store
	T     testing.TB

	nextTrialID    int64
	nextMetricID   int64
	nextThreadID   int64
	nextTimerID    int64
	nextCallDataID int64
}

// NewTestDB opens an empty in-memory database with the schema loaded.
func NewTestDB(t testing.TB) *TestDB {
	t.Helper()

	ctx := context.Background()
	st, err := taudb.Open(ctx, taudb.ConnParams{Name: ":memory:"}, taudb.OpenOptions{Create: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if err := st.InitSchema(ctx); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	return &TestDB{
		Store:          st,
		T:              t,
		nextTrialID:    900,
		nextMetricID:   9000,
		nextThreadID:   19000,
		nextTimerID:    29000,
		nextCallDataID: 39000,
	}
}

// NewDemoDB opens an in-memory database seeded with taudb's demo data set:
// applications demo and lulesh, trials 10, 11 and 20, with trial 10's first
// metric 100 (TIME) and first thread 200 (Mean (No Null)).
func NewDemoDB(t testing.TB) *TestDB {
	t.Helper()
	tdb := NewTestDB(t)
	if err := tdb.Store.SeedDemo(context.Background()); err != nil {
		t.Fatalf("seed demo: %v", err)
	}
	return tdb
}

func (tdb *TestDB) exec(query string, args ...any) {
	tdb.T.Helper()
	if _, err := tdb.Store.DB().Exec(query, args...); err != nil {
		tdb.T.Fatalf("exec %q: %v", query, err)
	}
}

// TrialOpts configures a trial. An empty App leaves the trial outside every
// application.
type TrialOpts struct {
	App      string
	Name     string
	Metadata [][2]string
}

// AddTrial inserts a trial with its Application tag and extra metadata.
func (tdb *TestDB) AddTrial(opts TrialOpts) int64 {
	tdb.T.Helper()
	id := tdb.nextTrialID
	tdb.nextTrialID++
	name := opts.Name
	if name == "" {
		name = "trial"
	}
	tdb.exec(`INSERT INTO trial (id, name) VALUES (?, ?)`, id, name)
	if opts.App != "" {
		tdb.exec(`INSERT INTO primary_metadata (trial, name, value) VALUES (?, 'Application', ?)`, id, opts.App)
	}
	for _, md := range opts.Metadata {
		tdb.exec(`INSERT INTO primary_metadata (trial, name, value) VALUES (?, ?, ?)`, id, md[0], md[1])
	}
	return id
}

// AddMetric inserts a metric for trialID.
func (tdb *TestDB) AddMetric(trialID int64, name string) int64 {
	tdb.T.Helper()
	id := tdb.nextMetricID
	tdb.nextMetricID++
	tdb.exec(`INSERT INTO metric (id, trial, name) VALUES (?, ?, ?)`, id, trialID, name)
	return id
}

// AddThread inserts a thread with the given thread_index.
func (tdb *TestDB) AddThread(trialID, index int64) int64 {
	tdb.T.Helper()
	id := tdb.nextThreadID
	tdb.nextThreadID++
	tdb.exec(`INSERT INTO thread (id, trial, thread_index) VALUES (?, ?, ?)`, id, trialID, index)
	return id
}

// TimerOpts describes one profile row.
type TimerOpts struct {
	TrialID          int64
	ThreadID         int64
	MetricID         int64
	ShortName        string
	Callpath         string // defaults to ShortName
	InclusiveValue   float64
	ExclusiveValue   float64
	InclusivePercent float64
	ExclusivePercent float64
}

// AddTimer inserts a timer, its call path, and one call-data/value row.
// It returns the timer id.
func (tdb *TestDB) AddTimer(opts TimerOpts) int64 {
	tdb.T.Helper()
	timerID := tdb.nextTimerID
	tdb.nextTimerID++
	callDataID := tdb.nextCallDataID
	tdb.nextCallDataID++

	callpath := opts.Callpath
	if callpath == "" {
		callpath = opts.ShortName
	}
	tdb.exec(`INSERT INTO timer (id, trial, name, short_name) VALUES (?, ?, ?, ?)`,
		timerID, opts.TrialID, opts.ShortName, opts.ShortName)
	// Call path ids share the timer id space.
	tdb.exec(`INSERT INTO timer_callpath (id, timer, name) VALUES (?, ?, ?)`,
		timerID, timerID, callpath)
	tdb.exec(`INSERT INTO timer_call_data (id, timer_callpath, thread, calls) VALUES (?, ?, ?, 1)`,
		callDataID, timerID, opts.ThreadID)
	tdb.exec(`INSERT INTO timer_value (timer_call_data, metric, inclusive_value, exclusive_value, inclusive_percent, exclusive_percent)
		VALUES (?, ?, ?, ?, ?, ?)`,
		callDataID, opts.MetricID, opts.InclusiveValue, opts.ExclusiveValue, opts.InclusivePercent, opts.ExclusivePercent)
	return timerID
}

// Package selectiontest provides in-memory fakes for exercising the
// selection cascade without a server.
package selectiontest

import (
	"context"
	"fmt"
	"sync"

	"github.com/autoperf/taudash/internal/profile"
	"github.com/autoperf/taudash/internal/selection"
)

// FakeSource is an in-memory selection.Source. Unknown keys return empty
// lists, as the server does.
type FakeSource struct {
	Apps            []profile.Application
	TrialsByApp     map[string][]profile.Trial
	MetricsByTrial  map[int64][]profile.Metric
	ThreadsByTrial  map[int64][]profile.Thread
	MetadataByTrial map[int64][]profile.MetadataEntry
	// Rows is keyed by {threadID, metricID} and already sorted the way
	// the server would sort them for exclusive ordering.
	Rows map[[2]int64][]profile.ProfileRow

	// Errs forces a kind of request to fail.
	Errs map[selection.Kind]error
	// Block, when non-nil, holds every request until it is closed or the
	// request context ends.
	Block chan struct{}

	mu    sync.Mutex
	calls []string
}

var _ selection.Source = (*FakeSource)(nil)

// Demo returns a source holding two applications shaped like the demo
// database: demo (trials 10 and 11) and lulesh (trial 20).
func Demo() *FakeSource {
	rows := make([]profile.ProfileRow, 0, 7)
	for i, name := range []string{"solve", "MPI_Allreduce", "read_input", "write_output", "halo_exchange", "MPI_Send", "main"} {
		pct := float64(40 - 5*i)
		rows = append(rows, profile.ProfileRow{
			Callpath:         "main => " + name,
			ID:               int64(1000 + i),
			ShortName:        name,
			ExclusiveValue:   pct * 1000,
			ExclusivePercent: pct,
			InclusiveValue:   pct * 2000,
			InclusivePercent: pct * 2,
		})
	}
	return &FakeSource{
		Apps: []profile.Application{{Name: "demo"}, {Name: "lulesh"}},
		TrialsByApp: map[string][]profile.Trial{
			"demo":   {{ID: 10, Name: "trialA"}, {ID: 11, Name: "trialB"}},
			"lulesh": {{ID: 20, Name: "lulesh-8rank"}},
		},
		MetricsByTrial: map[int64][]profile.Metric{
			10: {{ID: 100, Name: "TIME"}, {ID: 101, Name: "PAPI_FP_OPS"}},
			11: {{ID: 110, Name: "TIME"}},
			20: {{ID: 120, Name: "TIME"}, {ID: 121, Name: "PAPI_TOT_CYC"}},
		},
		ThreadsByTrial: map[int64][]profile.Thread{
			10: {{ID: 200, Name: "Mean (No Null)"}, {ID: 201, Name: "Total"}, {ID: 202, Name: "0"}},
			11: {{ID: 210, Name: "Mean (No Null)"}, {ID: 211, Name: "Mean"}},
			20: {{ID: 220, Name: "Mean (No Null)"}, {ID: 221, Name: "Total"}},
		},
		MetadataByTrial: map[int64][]profile.MetadataEntry{
			10: {{Name: "Application", Value: "demo"}, {Name: "Hostname", Value: "node001"}},
			11: {{Name: "Application", Value: "demo"}},
			20: {{Name: "Application", Value: "lulesh"}},
		},
		Rows: map[[2]int64][]profile.ProfileRow{
			{200, 100}: rows,
		},
	}
}

// Calls returns the requests served so far, e.g. "trials(demo)".
func (f *FakeSource) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *FakeSource) enter(ctx context.Context, k selection.Kind, call string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.Errs[k]
}

func (f *FakeSource) Applications(ctx context.Context) ([]profile.Application, error) {
	if err := f.enter(ctx, selection.KindApplications, "applications"); err != nil {
		return nil, err
	}
	return f.Apps, nil
}

func (f *FakeSource) Trials(ctx context.Context, appName string) ([]profile.Trial, error) {
	if err := f.enter(ctx, selection.KindTrials, fmt.Sprintf("trials(%s)", appName)); err != nil {
		return nil, err
	}
	return orEmpty(f.TrialsByApp[appName]), nil
}

func (f *FakeSource) Metrics(ctx context.Context, trialID int64) ([]profile.Metric, error) {
	if err := f.enter(ctx, selection.KindMetrics, fmt.Sprintf("metrics(%d)", trialID)); err != nil {
		return nil, err
	}
	return orEmpty(f.MetricsByTrial[trialID]), nil
}

func (f *FakeSource) Threads(ctx context.Context, trialID int64) ([]profile.Thread, error) {
	if err := f.enter(ctx, selection.KindThreads, fmt.Sprintf("threads(%d)", trialID)); err != nil {
		return nil, err
	}
	return orEmpty(f.ThreadsByTrial[trialID]), nil
}

func (f *FakeSource) Metadata(ctx context.Context, trialID int64) ([]profile.MetadataEntry, error) {
	if err := f.enter(ctx, selection.KindMetadata, fmt.Sprintf("metadata(%d)", trialID)); err != nil {
		return nil, err
	}
	return orEmpty(f.MetadataByTrial[trialID]), nil
}

func (f *FakeSource) Profile(ctx context.Context, q profile.Query) ([]profile.ProfileRow, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	call := fmt.Sprintf("profile(%d,%d,%s,%d,%d)", q.ThreadID, q.MetricID, q.Type, q.Offset, q.Limit)
	if err := f.enter(ctx, selection.KindProfile, call); err != nil {
		return nil, err
	}
	rows := f.Rows[[2]int64{q.ThreadID, q.MetricID}]
	if q.Offset >= len(rows) {
		return []profile.ProfileRow{}, nil
	}
	end := q.Offset + q.Limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[q.Offset:end], nil
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// MemoryCache is an in-memory selection.Cache.
type MemoryCache struct {
	Sel     selection.Selection
	Has     bool
	LoadErr error
	SaveErr error
	Saves   int
}

func (c *MemoryCache) LoadSelection() (selection.Selection, bool, error) {
	if c.LoadErr != nil {
		return selection.Selection{}, false, c.LoadErr
	}
	return c.Sel, c.Has, nil
}

func (c *MemoryCache) SaveSelection(sel selection.Selection) error {
	if c.SaveErr != nil {
		return c.SaveErr
	}
	c.Sel, c.Has = sel, true
	c.Saves++
	return nil
}

package selection_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/autoperf/taudash/internal/selection"
	"github.com/autoperf/taudash/internal/selection/selectiontest"
	"github.com/autoperf/taudash/internal/testutil/dbtest"
)

func TestRunnerAgainstDatabase(t *testing.T) {
	db := dbtest.NewDemoDB(t)
	cache := &selectiontest.MemoryCache{Sel: demoSelection, Has: true}
	c := newController(cache)
	r := selection.NewRunner(db.Store, nil)

	start, err := c.Start()
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Run(context.Background(), c, start); err != nil {
		t.Fatalf("Run: %v", err)
	}

	s := c.State()
	if !s.Ready() || s.Valid() != selection.ValidTrue {
		t.Fatalf("ready=%v valid=%v", s.Ready(), s.Valid())
	}
	v := c.View()
	if len(v.Rows()) != 7 || v.Rows()[0].ShortName != "solve" {
		t.Errorf("rows = %d, first %+v", len(v.Rows()), v.Rows())
	}
	if len(v.Metadata()) != 5 {
		t.Errorf("metadata = %d, want 5", len(v.Metadata()))
	}
}

func TestRunnerManualSelection(t *testing.T) {
	db := dbtest.NewDemoDB(t)
	c := newController(&selectiontest.MemoryCache{})
	r := selection.NewRunner(db.Store, nil)
	ctx := context.Background()

	start, err := c.Start()
	if err != nil {
		t.Fatal(err)
	}
	run := func(fs []selection.Fetch) {
		t.Helper()
		if err := r.Run(ctx, c, fs); err != nil {
			t.Fatalf("Run: %v", err)
		}
	}
	run(start)
	run(c.Select(selection.LevelApplication, 1))
	run(c.Select(selection.LevelTrial, 0))
	run(c.Select(selection.LevelMetric, 1))
	run(c.Select(selection.LevelThread, 0))
	confirm, err := c.Confirm()
	if err != nil {
		t.Fatal(err)
	}
	run(confirm)

	want := selection.Selection{AppName: "lulesh", TrialID: 20, MetricID: 121, ThreadID: 220}
	if got := c.State().Resolved(); got != want {
		t.Errorf("Resolved() = %+v, want %+v", got, want)
	}
	if len(c.View().Rows()) != 7 {
		t.Errorf("rows = %d", len(c.View().Rows()))
	}
}

func TestRunnerStopsOnCancel(t *testing.T) {
	src := selectiontest.Demo()
	src.Block = make(chan struct{})
	s := selection.New(selection.Options{})
	r := selection.NewRunner(src, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := r.Run(ctx, s, s.FetchApplications())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() = %v, want deadline exceeded", err)
	}
}

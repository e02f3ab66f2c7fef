package selection

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Applier consumes results on the logic goroutine. State, ProfileView (via
// Controller) and Controller implement it.
type Applier interface {
	Apply(Result) []Fetch
}

// Runner executes fetches concurrently and applies their results on the
// calling goroutine until nothing is pending. It is the headless host used
// by the resolve command and by tests.
type Runner struct {
	src    Source
	logger *slog.Logger
}

// NewRunner returns a Runner reading from src.
func NewRunner(src Source, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{src: src, logger: logger}
}

// Run starts initial and keeps applying results and starting follow-ups
// until none remain or ctx ends.
func (r *Runner) Run(ctx context.Context, a Applier, initial []Fetch) error {
	g, gctx := errgroup.WithContext(ctx)
	results := make(chan Result)
	inflight := 0

	launch := func(fs []Fetch) {
		for _, f := range fs {
			f := f
			inflight++
			r.logger.Debug("fetch", "fetch", f.String())
			g.Go(func() error {
				res := f.Run(gctx, r.src)
				select {
				case results <- res:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}
	}

	launch(initial)
	for inflight > 0 {
		select {
		case res := <-results:
			inflight--
			launch(a.Apply(res))
		case <-ctx.Done():
			_ = g.Wait()
			return ctx.Err()
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	// A fetch cut short by ctx still delivers its failed result.
	return ctx.Err()
}

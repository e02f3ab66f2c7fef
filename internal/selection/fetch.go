package selection

import (
	"context"
	"fmt"

	"github.com/autoperf/taudash/internal/profile"
)

// Source supplies option lists and profile data. remote.Client serves it
// over HTTP; taudb.Store serves it straight from a database.
type Source interface {
	Applications(ctx context.Context) ([]profile.Application, error)
	Trials(ctx context.Context, appName string) ([]profile.Trial, error)
	Metrics(ctx context.Context, trialID int64) ([]profile.Metric, error)
	Threads(ctx context.Context, trialID int64) ([]profile.Thread, error)
	Metadata(ctx context.Context, trialID int64) ([]profile.MetadataEntry, error)
	Profile(ctx context.Context, q profile.Query) ([]profile.ProfileRow, error)
}

// Kind identifies what a Fetch retrieves. The first four kinds line up
// with the selection levels.
type Kind int

const (
	KindApplications Kind = iota
	KindTrials
	KindMetrics
	KindThreads
	KindMetadata
	KindProfile
)

var kindNames = [...]string{"applications", "trials", "metrics", "threads", "metadata", "profile"}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// level reports the selection level a list kind feeds.
func (k Kind) level() (Level, bool) {
	if k >= KindApplications && k <= KindThreads {
		return Level(k), true
	}
	return 0, false
}

// Fetch is a pending request. Gen is the generation of the level (or the
// profile view) the request was issued for; results carrying an older
// generation are stale.
type Fetch struct {
	Kind    Kind
	Gen     uint64
	AppName string        // KindTrials
	TrialID int64         // KindMetrics, KindThreads, KindMetadata
	Query   profile.Query // KindProfile
	Append  bool          // KindProfile: append rows instead of replacing them
}

func (f Fetch) String() string {
	switch f.Kind {
	case KindTrials:
		return fmt.Sprintf("trials(%q)#%d", f.AppName, f.Gen)
	case KindMetrics, KindThreads, KindMetadata:
		return fmt.Sprintf("%s(%d)#%d", f.Kind, f.TrialID, f.Gen)
	case KindProfile:
		return fmt.Sprintf("profile(thread=%d,metric=%d,%s,off=%d)#%d",
			f.Query.ThreadID, f.Query.MetricID, f.Query.Type, f.Query.Offset, f.Gen)
	default:
		return fmt.Sprintf("%s#%d", f.Kind, f.Gen)
	}
}

// Result carries a completed Fetch back to the logic goroutine. Only the
// slice matching Fetch.Kind is set.
type Result struct {
	Fetch        Fetch
	Applications []profile.Application
	Trials       []profile.Trial
	Metrics      []profile.Metric
	Threads      []profile.Thread
	Metadata     []profile.MetadataEntry
	Rows         []profile.ProfileRow
	Err          error
}

// Run performs the fetch against src. It is safe to call from any goroutine.
func (f Fetch) Run(ctx context.Context, src Source) Result {
	res := Result{Fetch: f}
	switch f.Kind {
	case KindApplications:
		res.Applications, res.Err = src.Applications(ctx)
	case KindTrials:
		res.Trials, res.Err = src.Trials(ctx, f.AppName)
	case KindMetrics:
		res.Metrics, res.Err = src.Metrics(ctx, f.TrialID)
	case KindThreads:
		res.Threads, res.Err = src.Threads(ctx, f.TrialID)
	case KindMetadata:
		res.Metadata, res.Err = src.Metadata(ctx, f.TrialID)
	case KindProfile:
		res.Rows, res.Err = src.Profile(ctx, f.Query)
	default:
		res.Err = fmt.Errorf("unknown fetch kind %d", int(f.Kind))
	}
	return res
}

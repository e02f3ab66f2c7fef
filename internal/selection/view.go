package selection

import (
	"log/slog"

	"github.com/autoperf/taudash/internal/profile"
)

// ProfileView holds the metadata and timer rows of the resolved selection.
// Like State it performs no I/O and is owned by one goroutine.
type ProfileView struct {
	limit      int
	vtype      profile.ValueType
	applyStale bool
	logger     *slog.Logger

	sel      Selection
	active   bool
	metadata []profile.MetadataEntry
	rows     []profile.ProfileRow
	offset   int
	gen      uint64
	metaGen  uint64
	loading  bool
	more     bool
}

// NewProfileView creates an empty view. limit <= 0 uses profile.DefaultLimit.
func NewProfileView(limit int, vtype profile.ValueType, opts Options) *ProfileView {
	if limit <= 0 {
		limit = profile.DefaultLimit
	}
	if vtype == "" {
		vtype = profile.Exclusive
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileView{limit: limit, vtype: vtype, applyStale: opts.ApplyStale, logger: logger}
}

// Show switches the view to sel, discarding loaded data, and returns the
// metadata and first-page fetches.
func (v *ProfileView) Show(sel Selection) []Fetch {
	v.sel = sel
	v.active = true
	v.metadata = nil
	v.rows = nil
	v.offset = 0
	v.gen++
	v.metaGen++
	v.loading = true
	v.more = false
	return []Fetch{
		{Kind: KindMetadata, Gen: v.metaGen, TrialID: sel.TrialID},
		v.rowsFetch(false),
	}
}

func (v *ProfileView) rowsFetch(appendRows bool) Fetch {
	return Fetch{
		Kind: KindProfile,
		Gen:  v.gen,
		Query: profile.Query{
			ThreadID: v.sel.ThreadID,
			MetricID: v.sel.MetricID,
			Type:     v.vtype,
			Offset:   v.offset,
			Limit:    v.limit,
		},
		Append: appendRows,
	}
}

// LoadMore requests the next page, to be appended to the current rows.
// It returns nothing while a page is already loading.
func (v *ProfileView) LoadMore() []Fetch {
	if !v.active || v.loading {
		return nil
	}
	v.offset += v.limit
	v.loading = true
	return []Fetch{v.rowsFetch(true)}
}

// SetType changes the ordering column and reloads from the first page.
func (v *ProfileView) SetType(t profile.ValueType) []Fetch {
	if t == v.vtype {
		return nil
	}
	v.vtype = t
	if !v.active {
		return nil
	}
	v.gen++
	v.rows = nil
	v.offset = 0
	v.loading = true
	v.more = false
	return []Fetch{v.rowsFetch(false)}
}

// ToggleType flips between inclusive and exclusive ordering.
func (v *ProfileView) ToggleType() []Fetch {
	return v.SetType(v.vtype.Toggle())
}

// Apply folds a metadata or profile result into the view.
func (v *ProfileView) Apply(res Result) {
	if res.Fetch.Kind != KindMetadata && res.Fetch.Kind != KindProfile {
		return
	}
	current := v.gen
	if res.Fetch.Kind == KindMetadata {
		current = v.metaGen
	}
	if res.Fetch.Gen != current && !v.applyStale {
		v.logger.Debug("dropping stale result", "fetch", res.Fetch.String(), "current_gen", current)
		return
	}
	if res.Err != nil {
		v.logger.Debug("fetch failed", "fetch", res.Fetch.String(), "error", res.Err)
		if res.Fetch.Kind == KindProfile && res.Fetch.Gen == v.gen {
			v.loading = false
			// The failed page is requested again by the next LoadMore.
			if res.Fetch.Append {
				v.offset = res.Fetch.Query.Offset - v.limit
			}
		}
		return
	}

	if res.Fetch.Kind == KindMetadata {
		v.metadata = res.Metadata
		return
	}
	if res.Fetch.Append {
		v.rows = append(v.rows, res.Rows...)
	} else {
		v.rows = res.Rows
	}
	v.loading = false
	v.more = len(res.Rows) >= res.Fetch.Query.Limit && res.Fetch.Query.Limit > 0
}

// Active reports whether Show has been called.
func (v *ProfileView) Active() bool { return v.active }

// Selection returns the selection being shown.
func (v *ProfileView) Selection() Selection { return v.sel }

// Metadata returns the trial metadata in server order.
func (v *ProfileView) Metadata() []profile.MetadataEntry { return v.metadata }

// Rows returns the loaded timer rows.
func (v *ProfileView) Rows() []profile.ProfileRow { return v.rows }

// Type returns the ordering column.
func (v *ProfileView) Type() profile.ValueType { return v.vtype }

// Limit returns the page size.
func (v *ProfileView) Limit() int { return v.limit }

// Offset returns the offset of the last requested page.
func (v *ProfileView) Offset() int { return v.offset }

// Loading reports whether a page is in flight.
func (v *ProfileView) Loading() bool { return v.loading }

// HasMore reports whether the last page was full, so another may exist.
func (v *ProfileView) HasMore() bool { return v.more }

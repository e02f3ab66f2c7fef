// Package selection implements the cascading Application -> Trial ->
// {Metric, Thread} selection used to pick a profile to display.
//
// State never performs I/O. Operations return the Fetches they need; a
// host runs them (concurrently if it likes) and hands each Result back to
// Apply on the goroutine that owns the State. Listeners registered with
// Subscribe observe every change synchronously, in emission order.
package selection

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/autoperf/taudash/internal/profile"
)

// ErrIncompleteSelection is returned by ConfirmSelection when a level has
// nothing selected.
var ErrIncompleteSelection = errors.New("selection incomplete: choose an application, trial, metric and thread")

// Level is one step of the cascade.
type Level int

const (
	LevelApplication Level = iota
	LevelTrial
	LevelMetric
	LevelThread
)

// Levels lists the levels in cascade order.
var Levels = []Level{LevelApplication, LevelTrial, LevelMetric, LevelThread}

var levelNames = [...]string{"Application", "Trial", "Metric", "Thread"}

func (l Level) String() string {
	if l >= 0 && int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Valid records whether the cached selection has been reconciled with
// server data.
type Valid int8

const (
	ValidUnknown Valid = iota
	ValidFalse
	ValidTrue
)

func (v Valid) String() string {
	switch v {
	case ValidFalse:
		return "false"
	case ValidTrue:
		return "true"
	default:
		return "unknown"
	}
}

// Event is a change notification.
type Event int

const (
	EventAppsLoaded Event = iota
	EventTrialsLoaded
	EventMetricsLoaded
	EventThreadsLoaded
	EventSelectionChanged
	// EventReady: metric and thread are resolved and the selection is trusted.
	EventReady
	// EventInvalid: a cached value was not found; the user must choose.
	EventInvalid
)

var eventNames = [...]string{"apps-loaded", "trials-loaded", "metrics-loaded", "threads-loaded", "selection-changed", "ready", "invalid"}

func (e Event) String() string {
	if e >= 0 && int(e) < len(eventNames) {
		return eventNames[e]
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// Selection is a fully resolved choice. It is also the persisted cache shape.
type Selection struct {
	AppName  string `json:"appName"`
	TrialID  int64  `json:"trialId"`
	MetricID int64  `json:"metricId"`
	ThreadID int64  `json:"threadId"`
}

// Cache persists the confirmed selection of the active session.
type Cache interface {
	LoadSelection() (Selection, bool, error)
	SaveSelection(Selection) error
}

// Options configure a State.
type Options struct {
	Cache Cache
	// ApplyStale applies results whose generation is out of date, so a
	// slow response for an earlier choice can overwrite a newer one.
	ApplyStale bool
	Logger     *slog.Logger
}

// State is the selection state machine. It is not safe for concurrent use.
type State struct {
	cache      Cache
	applyStale bool
	logger     *slog.Logger
	listeners  []func(Event)

	target    Selection
	hasTarget bool

	apps    []profile.Application
	trials  []profile.Trial
	metrics []profile.Metric
	threads []profile.Thread

	appIdx, trialIdx, metricIdx, threadIdx int

	resolved Selection
	valid    Valid
	ready    bool

	gen [4]uint64
}

// New creates a State with nothing selected.
func New(opts Options) *State {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &State{
		cache:      opts.Cache,
		applyStale: opts.ApplyStale,
		logger:     logger,
		appIdx:     -1,
		trialIdx:   -1,
		metricIdx:  -1,
		threadIdx:  -1,
	}
}

// Subscribe registers fn for every subsequent event.
func (s *State) Subscribe(fn func(Event)) {
	s.listeners = append(s.listeners, fn)
}

func (s *State) emit(e Event) {
	for _, fn := range s.listeners {
		fn(e)
	}
}

// LoadCachedSelection reads the persisted selection and keeps it as the
// match target for arriving lists. It selects nothing.
func (s *State) LoadCachedSelection() error {
	if s.cache == nil {
		return nil
	}
	sel, ok, err := s.cache.LoadSelection()
	if err != nil {
		return fmt.Errorf("load cached selection: %w", err)
	}
	s.target, s.hasTarget = sel, ok
	s.logger.Debug("cached selection", "found", ok, "app", sel.AppName,
		"trial", sel.TrialID, "metric", sel.MetricID, "thread", sel.ThreadID)
	return nil
}

// FetchApplications requests the application list.
func (s *State) FetchApplications() []Fetch {
	return []Fetch{s.issue(KindApplications)}
}

func (s *State) issue(k Kind) Fetch {
	lvl, _ := k.level()
	s.gen[lvl]++
	return Fetch{Kind: k, Gen: s.gen[lvl]}
}

// Apply folds a completed fetch into the state and returns any follow-up
// fetches. Failed and stale results leave the state untouched.
func (s *State) Apply(res Result) []Fetch {
	lvl, ok := res.Fetch.Kind.level()
	if !ok {
		return nil
	}
	if res.Fetch.Gen != s.gen[lvl] && !s.applyStale {
		s.logger.Debug("dropping stale result", "fetch", res.Fetch.String(), "current_gen", s.gen[lvl])
		return nil
	}
	if res.Err != nil {
		s.logger.Debug("fetch failed", "fetch", res.Fetch.String(), "error", res.Err)
		return nil
	}

	switch lvl {
	case LevelApplication:
		return s.applyApplications(res.Applications)
	case LevelTrial:
		return s.applyTrials(res.Trials)
	case LevelMetric:
		return s.applyMetrics(res.Metrics)
	default:
		return s.applyThreads(res.Threads)
	}
}

func (s *State) applyApplications(apps []profile.Application) []Fetch {
	s.apps = apps
	s.emit(EventAppsLoaded)
	if s.valid == ValidTrue {
		return nil
	}
	if s.hasTarget {
		for i, a := range apps {
			if a.Name == s.target.AppName {
				return s.setApp(i)
			}
		}
	}
	s.invalidate(LevelApplication)
	return nil
}

func (s *State) applyTrials(trials []profile.Trial) []Fetch {
	s.trials = trials
	s.emit(EventTrialsLoaded)
	if s.valid == ValidTrue {
		return nil
	}
	if s.hasTarget {
		for i, t := range trials {
			if t.ID == s.target.TrialID {
				return s.setTrial(i)
			}
		}
	}
	s.invalidate(LevelTrial)
	return nil
}

func (s *State) applyMetrics(metrics []profile.Metric) []Fetch {
	s.metrics = metrics
	s.emit(EventMetricsLoaded)
	if s.valid == ValidTrue {
		return nil
	}
	if s.hasTarget {
		for i, m := range metrics {
			if m.ID == s.target.MetricID {
				s.setMetric(i)
				return nil
			}
		}
	}
	s.invalidate(LevelMetric)
	return nil
}

func (s *State) applyThreads(threads []profile.Thread) []Fetch {
	s.threads = threads
	s.emit(EventThreadsLoaded)
	if s.valid == ValidTrue {
		return nil
	}
	if s.hasTarget {
		for i, t := range threads {
			if t.ID == s.target.ThreadID {
				s.setThread(i)
				return nil
			}
		}
	}
	s.invalidate(LevelThread)
	return nil
}

func (s *State) invalidate(at Level) {
	if s.valid == ValidFalse {
		return
	}
	s.valid = ValidFalse
	s.logger.Debug("cached selection not found", "level", at.String())
	s.emit(EventInvalid)
}

// normIndex maps anything outside [0, n) to -1.
func normIndex(i, n int) int {
	if i < 0 || i >= n {
		return -1
	}
	return i
}

// SelectApplication selects the application at index i (-1 clears it).
func (s *State) SelectApplication(i int) []Fetch {
	return s.setApp(normIndex(i, len(s.apps)))
}

// SelectTrial selects the trial at index i (-1 clears it).
func (s *State) SelectTrial(i int) []Fetch {
	return s.setTrial(normIndex(i, len(s.trials)))
}

// SelectMetric selects the metric at index i (-1 clears it).
func (s *State) SelectMetric(i int) []Fetch {
	s.setMetric(normIndex(i, len(s.metrics)))
	return nil
}

// SelectThread selects the thread at index i (-1 clears it).
func (s *State) SelectThread(i int) []Fetch {
	s.setThread(normIndex(i, len(s.threads)))
	return nil
}

// Select dispatches to the Select method of a level.
func (s *State) Select(l Level, i int) []Fetch {
	switch l {
	case LevelApplication:
		return s.SelectApplication(i)
	case LevelTrial:
		return s.SelectTrial(i)
	case LevelMetric:
		return s.SelectMetric(i)
	default:
		return s.SelectThread(i)
	}
}

func (s *State) setApp(i int) []Fetch {
	if i == s.appIdx {
		return nil
	}
	s.appIdx = i
	s.emit(EventSelectionChanged)

	fetches := s.setTrial(-1)
	if i >= 0 {
		f := s.issue(KindTrials)
		f.AppName = s.apps[i].Name
		return append(fetches, f)
	}
	s.gen[LevelTrial]++
	s.trials = nil
	s.emit(EventTrialsLoaded)
	return fetches
}

func (s *State) setTrial(i int) []Fetch {
	if i == s.trialIdx {
		return nil
	}
	s.trialIdx = i
	s.emit(EventSelectionChanged)

	s.setMetric(-1)
	s.setThread(-1)
	if i >= 0 {
		id := s.trials[i].ID
		m := s.issue(KindMetrics)
		m.TrialID = id
		t := s.issue(KindThreads)
		t.TrialID = id
		return []Fetch{m, t}
	}
	s.gen[LevelMetric]++
	s.gen[LevelThread]++
	s.metrics = nil
	s.threads = nil
	s.emit(EventMetricsLoaded)
	s.emit(EventThreadsLoaded)
	return nil
}

func (s *State) setMetric(i int) {
	if i == s.metricIdx {
		return
	}
	s.metricIdx = i
	s.emit(EventSelectionChanged)
	s.updateProfile()
}

func (s *State) setThread(i int) {
	if i == s.threadIdx {
		return
	}
	s.threadIdx = i
	s.emit(EventSelectionChanged)
	s.updateProfile()
}

// updateProfile runs whenever the metric or thread index changes.
func (s *State) updateProfile() {
	if s.metricIdx < 0 || s.threadIdx < 0 {
		s.ready = false
		return
	}
	s.resolved = s.current()
	s.ready = true
	switch s.valid {
	case ValidUnknown:
		s.valid = ValidTrue
		s.emit(EventReady)
	case ValidTrue:
		s.emit(EventReady)
	}
}

// current resolves the selected indexes; unselected levels resolve to zero
// values.
func (s *State) current() Selection {
	var sel Selection
	if i := normIndex(s.appIdx, len(s.apps)); i >= 0 {
		sel.AppName = s.apps[i].Name
	}
	if i := normIndex(s.trialIdx, len(s.trials)); i >= 0 {
		sel.TrialID = s.trials[i].ID
	}
	if i := normIndex(s.metricIdx, len(s.metrics)); i >= 0 {
		sel.MetricID = s.metrics[i].ID
	}
	if i := normIndex(s.threadIdx, len(s.threads)); i >= 0 {
		sel.ThreadID = s.threads[i].ID
	}
	return sel
}

// ConfirmSelection resolves the four selected options, persists them for
// the active session, marks the selection valid and emits EventReady.
// When persisting fails the state is left unchanged.
func (s *State) ConfirmSelection() error {
	for _, l := range Levels {
		if s.Index(l) < 0 {
			return ErrIncompleteSelection
		}
	}
	sel := s.current()
	if s.cache != nil {
		if err := s.cache.SaveSelection(sel); err != nil {
			return fmt.Errorf("persist selection: %w", err)
		}
	}
	s.resolved = sel
	s.target, s.hasTarget = sel, true
	s.ready = true
	s.valid = ValidTrue
	s.emit(EventReady)
	return nil
}

// Index returns the selected index of a level, or -1. Indexes left
// pointing past a replaced list read as -1.
func (s *State) Index(l Level) int {
	switch l {
	case LevelApplication:
		return normIndex(s.appIdx, len(s.apps))
	case LevelTrial:
		return normIndex(s.trialIdx, len(s.trials))
	case LevelMetric:
		return normIndex(s.metricIdx, len(s.metrics))
	default:
		return normIndex(s.threadIdx, len(s.threads))
	}
}

// Options returns the display names of a level's options in server order.
func (s *State) Options(l Level) []string {
	var out []string
	switch l {
	case LevelApplication:
		for _, a := range s.apps {
			out = append(out, a.Name)
		}
	case LevelTrial:
		for _, t := range s.trials {
			out = append(out, t.Name)
		}
	case LevelMetric:
		for _, m := range s.metrics {
			out = append(out, m.Name)
		}
	default:
		for _, t := range s.threads {
			out = append(out, t.Name)
		}
	}
	return out
}

// Applications returns the current application list.
func (s *State) Applications() []profile.Application { return s.apps }

// Trials returns the current trial list.
func (s *State) Trials() []profile.Trial { return s.trials }

// Metrics returns the current metric list.
func (s *State) Metrics() []profile.Metric { return s.metrics }

// Threads returns the current thread list.
func (s *State) Threads() []profile.Thread { return s.threads }

// Valid reports whether the cached selection has been reconciled.
func (s *State) Valid() Valid { return s.valid }

// Ready reports whether a metric and a thread are both resolved.
func (s *State) Ready() bool { return s.ready }

// Resolved returns the selection recorded when Ready last became true, or
// the last confirmed one.
func (s *State) Resolved() Selection { return s.resolved }

// Target returns the cached selection being matched, if any.
func (s *State) Target() (Selection, bool) { return s.target, s.hasTarget }

// ResolvedNames returns display names for the resolved selection, for
// status lines.
func (s *State) ResolvedNames() (app, trial, metric, thread string) {
	app = s.resolved.AppName
	for _, t := range s.trials {
		if t.ID == s.resolved.TrialID {
			trial = t.Name
			break
		}
	}
	for _, m := range s.metrics {
		if m.ID == s.resolved.MetricID {
			metric = m.Name
			break
		}
	}
	for _, t := range s.threads {
		if t.ID == s.resolved.ThreadID {
			thread = t.Name
			break
		}
	}
	return app, trial, metric, thread
}

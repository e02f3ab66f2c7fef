// Package session tracks logged-in API clients and the profiling database
// each one is bound to.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/autoperf/taudash/internal/profile"
	"github.com/autoperf/taudash/internal/taudb"
)

// CookieName is the HTTP cookie carrying the session id.
const CookieName = "taudash_session"

// Store is an open profiling database bound to a session.
type Store interface {
	Applications(ctx context.Context) ([]profile.Application, error)
	Trials(ctx context.Context, appName string) ([]profile.Trial, error)
	AllTrials(ctx context.Context) ([]profile.Trial, error)
	Metrics(ctx context.Context, trialID int64) ([]profile.Metric, error)
	Threads(ctx context.Context, trialID int64) ([]profile.Thread, error)
	Metadata(ctx context.Context, trialID int64) ([]profile.MetadataEntry, error)
	Profile(ctx context.Context, q taudb.ProfileQuery) ([]profile.ProfileRow, error)
	Params() taudb.ConnParams
	Close() error
}

// OpenFunc opens and verifies a profiling database.
type OpenFunc func(ctx context.Context, params taudb.ConnParams) (Store, error)

// TaudbOpener returns an OpenFunc backed by taudb.Open.
func TaudbOpener(opts taudb.OpenOptions) OpenFunc {
	return func(ctx context.Context, params taudb.ConnParams) (Store, error) {
		st, err := taudb.Open(ctx, params, opts)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
}

// handle pins a store while requests use it. A retired handle is closed
// when its last user releases it.
type handle struct {
	store   Store
	refs    int
	retired bool
}

type entry struct {
	h        *handle
	lastUsed time.Time
}

// Manager owns the session table. Safe for concurrent use.
type Manager struct {
	open   OpenFunc
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewManager creates a Manager whose sessions expire after ttl of inactivity.
func NewManager(open OpenFunc, ttl time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		open:     open,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// retireLocked marks h retired and reports whether nobody holds it, in
// which case the caller closes it after releasing m.mu.
func retireLocked(h *handle) bool {
	h.retired = true
	return h.refs == 0
}

func (m *Manager) closeStore(h *handle, what string) error {
	err := h.store.Close()
	if err != nil {
		m.logger.Warn(what, "error", err)
	}
	return err
}

// Login opens the database described by params and binds it to session id,
// replacing any store the session held before. An empty or unknown id gets a
// fresh session. On failure the existing session is left as it was and the
// open error (wrapping taudb.ErrConnect for unreachable databases) is
// returned. The returned id is the session to hand back to the client.
func (m *Manager) Login(ctx context.Context, id string, params taudb.ConnParams) (string, error) {
	st, err := m.open(ctx, params)
	if err != nil {
		m.logger.Info("login failed", "dbhost", params.Host, "dbname", params.Name, "error", err)
		return id, err
	}

	m.mu.Lock()
	old, ok := m.sessions[id]
	if !ok || id == "" {
		id = uuid.NewString()
	}
	m.sessions[id] = &entry{h: &handle{store: st}, lastUsed: m.now()}
	closeOld := ok && retireLocked(old.h)
	m.mu.Unlock()

	if closeOld {
		m.closeStore(old.h, "close replaced store")
	}
	m.logger.Info("login", "session", shortID(id), "dbhost", params.Host, "dbname", params.Name, "dbuser", params.User)
	return id, nil
}

// Acquire returns the store of a live session, marks the session used and
// pins the store until release is called. Logout, Sweep and a relogin
// defer closing a pinned store to its last release.
func (m *Manager) Acquire(id string) (st Store, release func(), ok bool) {
	if id == "" {
		return nil, nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, nil, false
	}
	e.lastUsed = m.now()
	h := e.h
	h.refs++
	var once sync.Once
	return h.store, func() { once.Do(func() { m.release(h) }) }, true
}

func (m *Manager) release(h *handle) {
	m.mu.Lock()
	h.refs--
	closeNow := h.retired && h.refs == 0
	m.mu.Unlock()
	if closeNow {
		m.closeStore(h, "close released store")
	}
}

// Logout ends a session and closes its store once no request holds it. It
// reports whether the session existed.
func (m *Manager) Logout(id string) bool {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	closeNow := ok && retireLocked(e.h)
	m.mu.Unlock()
	if !ok {
		return false
	}
	if closeNow {
		m.closeStore(e.h, "close store on logout")
	}
	m.logger.Info("logout", "session", shortID(id))
	return true
}

// Sweep ends sessions idle for longer than the TTL and returns how many
// were removed.
func (m *Manager) Sweep(now time.Time) int {
	var expired, closable []*handle
	m.mu.Lock()
	for id, e := range m.sessions {
		if now.Sub(e.lastUsed) > m.ttl {
			expired = append(expired, e.h)
			if retireLocked(e.h) {
				closable = append(closable, e.h)
			}
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, h := range closable {
		m.closeStore(h, "close expired store")
	}
	if len(expired) > 0 {
		m.logger.Info("swept idle sessions", "count", len(expired))
	}
	return len(expired)
}

// SweepJob adapts Sweep to a scheduler job.
func (m *Manager) SweepJob(ctx context.Context) error {
	m.Sweep(m.now())
	return ctx.Err()
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close ends every session. Stores still pinned by a request close on
// their last release.
func (m *Manager) Close() error {
	var closable []*handle
	m.mu.Lock()
	for _, e := range m.sessions {
		if retireLocked(e.h) {
			closable = append(closable, e.h)
		}
	}
	m.sessions = make(map[string]*entry)
	m.mu.Unlock()

	var errs []error
	for _, h := range closable {
		if err := h.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

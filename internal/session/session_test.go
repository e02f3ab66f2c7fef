package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/autoperf/taudash/internal/profile"
	"github.com/autoperf/taudash/internal/taudb"
)

type fakeStore struct {
	params taudb.ConnParams
	closed int
}

func (f *fakeStore) Applications(context.Context) ([]profile.Application, error) {
	return nil, nil
}

func (f *fakeStore) Trials(context.Context, string) ([]profile.Trial, error) {
	return nil, nil
}

func (f *fakeStore) AllTrials(context.Context) ([]profile.Trial, error) {
	return nil, nil
}

func (f *fakeStore) Metrics(context.Context, int64) ([]profile.Metric, error) {
	return nil, nil
}

func (f *fakeStore) Threads(context.Context, int64) ([]profile.Thread, error) {
	return nil, nil
}

func (f *fakeStore) Metadata(context.Context, int64) ([]profile.MetadataEntry, error) {
	return nil, nil
}

func (f *fakeStore) Profile(context.Context, taudb.ProfileQuery) ([]profile.ProfileRow, error) {
	return nil, nil
}

func (f *fakeStore) Params() taudb.ConnParams { return f.params }

func (f *fakeStore) Close() error {
	f.closed++
	return nil
}

// fakeOpener opens fakeStores, failing for dbname "down".
type fakeOpener struct {
	opened []*fakeStore
}

func (o *fakeOpener) open(_ context.Context, p taudb.ConnParams) (Store, error) {
	if p.Name == "down" {
		return nil, taudb.ErrConnect
	}
	st := &fakeStore{params: p}
	o.opened = append(o.opened, st)
	return st, nil
}

func newTestManager(ttl time.Duration) (*Manager, *fakeOpener) {
	o := &fakeOpener{}
	return NewManager(o.open, ttl, nil), o
}

// lookup acquires and immediately releases a session's store.
func lookup(m *Manager, id string) (Store, bool) {
	st, release, ok := m.Acquire(id)
	if ok {
		release()
	}
	return st, ok
}

func TestLoginCreatesSession(t *testing.T) {
	m, _ := newTestManager(time.Hour)
	id, err := m.Login(context.Background(), "", taudb.ConnParams{Host: "h", Name: "perf.db", User: "u"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if id == "" {
		t.Fatal("Login returned empty id")
	}
	st, ok := lookup(m, id)
	if !ok {
		t.Fatal("Get(id) found no session")
	}
	if st.Params().Name != "perf.db" {
		t.Errorf("Params().Name = %q", st.Params().Name)
	}
}

func TestLoginUnknownIDGetsFreshSession(t *testing.T) {
	m, _ := newTestManager(time.Hour)
	id, err := m.Login(context.Background(), "forged", taudb.ConnParams{Name: "a"})
	if err != nil {
		t.Fatal(err)
	}
	if id == "forged" {
		t.Error("Login reused a client-supplied unknown id")
	}
}

func TestReloginReplacesStore(t *testing.T) {
	m, o := newTestManager(time.Hour)
	ctx := context.Background()
	id, _ := m.Login(ctx, "", taudb.ConnParams{Name: "a"})
	id2, err := m.Login(ctx, id, taudb.ConnParams{Name: "b"})
	if err != nil {
		t.Fatal(err)
	}
	if id2 != id {
		t.Errorf("relogin id = %q, want %q", id2, id)
	}
	if o.opened[0].closed != 1 {
		t.Errorf("old store closed %d times, want 1", o.opened[0].closed)
	}
	st, _ := lookup(m, id)
	if st.Params().Name != "b" {
		t.Errorf("store = %q, want b", st.Params().Name)
	}
}

func TestFailedLoginKeepsExistingSession(t *testing.T) {
	m, o := newTestManager(time.Hour)
	ctx := context.Background()
	id, _ := m.Login(ctx, "", taudb.ConnParams{Name: "a"})

	_, err := m.Login(ctx, id, taudb.ConnParams{Name: "down"})
	if !errors.Is(err, taudb.ErrConnect) {
		t.Fatalf("Login(down) error = %v, want ErrConnect", err)
	}
	st, ok := lookup(m, id)
	if !ok || st.Params().Name != "a" {
		t.Errorf("session after failed login = %v, %v", st, ok)
	}
	if o.opened[0].closed != 0 {
		t.Error("existing store closed by failed login")
	}
}

func TestLogout(t *testing.T) {
	m, o := newTestManager(time.Hour)
	id, _ := m.Login(context.Background(), "", taudb.ConnParams{Name: "a"})

	if !m.Logout(id) {
		t.Error("Logout(id) = false, want true")
	}
	if _, ok := lookup(m, id); ok {
		t.Error("session survives logout")
	}
	if o.opened[0].closed != 1 {
		t.Errorf("store closed %d times, want 1", o.opened[0].closed)
	}
	if m.Logout(id) {
		t.Error("second Logout = true, want false")
	}
}

func TestSweepExpiresIdleSessions(t *testing.T) {
	m, o := newTestManager(time.Hour)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	m.now = func() time.Time { return now }

	ctx := context.Background()
	idle, _ := m.Login(ctx, "", taudb.ConnParams{Name: "idle"})
	active, _ := m.Login(ctx, "", taudb.ConnParams{Name: "active"})

	now = base.Add(50 * time.Minute)
	lookup(m, active)

	if n := m.Sweep(base.Add(90 * time.Minute)); n != 1 {
		t.Errorf("Sweep removed %d, want 1", n)
	}
	if _, ok := lookup(m, idle); ok {
		t.Error("idle session survived sweep")
	}
	if _, ok := lookup(m, active); !ok {
		t.Error("active session was swept")
	}
	if o.opened[0].closed != 1 {
		t.Error("idle store not closed")
	}
}

func TestCloseEndsAllSessions(t *testing.T) {
	m, o := newTestManager(time.Hour)
	ctx := context.Background()
	m.Login(ctx, "", taudb.ConnParams{Name: "a"})
	m.Login(ctx, "", taudb.ConnParams{Name: "b"})

	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d after Close", m.Len())
	}
	for i, st := range o.opened {
		if st.closed != 1 {
			t.Errorf("store %d closed %d times", i, st.closed)
		}
	}
}

func TestPinnedStoreOutlivesSessionEnd(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		end  func(m *Manager, id string)
	}{
		{"logout", func(m *Manager, id string) { m.Logout(id) }},
		{"relogin", func(m *Manager, id string) { m.Login(ctx, id, taudb.ConnParams{Name: "b"}) }},
		{"sweep", func(m *Manager, id string) { m.Sweep(time.Now().Add(2 * time.Hour)) }},
		{"close", func(m *Manager, id string) { m.Close() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, o := newTestManager(time.Hour)
			id, _ := m.Login(ctx, "", taudb.ConnParams{Name: "a"})

			st, release, ok := m.Acquire(id)
			if !ok {
				t.Fatal("Acquire found no session")
			}
			tt.end(m, id)
			if o.opened[0].closed != 0 {
				t.Fatal("store closed while a request still holds it")
			}
			if st.Params().Name != "a" {
				t.Errorf("pinned store = %q, want a", st.Params().Name)
			}

			release()
			release()
			if o.opened[0].closed != 1 {
				t.Errorf("store closed %d times after release, want 1", o.opened[0].closed)
			}
		})
	}
}

func TestReleaseKeepsLiveSessionOpen(t *testing.T) {
	m, o := newTestManager(time.Hour)
	id, _ := m.Login(context.Background(), "", taudb.ConnParams{Name: "a"})

	_, release, _ := m.Acquire(id)
	release()
	if o.opened[0].closed != 0 {
		t.Error("release closed the store of a live session")
	}
	if _, ok := lookup(m, id); !ok {
		t.Error("session lost after release")
	}
}

func TestTaudbOpenerMissingFile(t *testing.T) {
	open := TaudbOpener(taudb.OpenOptions{DataDir: t.TempDir()})
	_, err := open(context.Background(), taudb.ConnParams{Name: "nope.db"})
	if !errors.Is(err, taudb.ErrConnect) {
		t.Errorf("error = %v, want ErrConnect", err)
	}
}

package tui

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/autoperf/taudash/internal/clientstate"
	"github.com/autoperf/taudash/internal/remote"
	"github.com/autoperf/taudash/internal/selection"
	"github.com/autoperf/taudash/internal/selection/selectiontest"
)

// ansiStart is the escape sequence prefix found in styled terminal output.
const ansiStart = "\x1b["

// colorProfileMu serializes tests that mutate the global lipgloss color profile.
var colorProfileMu sync.Mutex

// forceColorProfile sets lipgloss to ANSI color output for tests that assert
// on styled output and restores the original profile via t.Cleanup.
func forceColorProfile(t *testing.T) {
	t.Helper()
	colorProfileMu.Lock()
	orig := lipgloss.ColorProfile()
	lipgloss.SetColorProfile(termenv.ANSI)
	t.Cleanup(func() {
		lipgloss.SetColorProfile(orig)
		colorProfileMu.Unlock()
	})
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

var demoSelection = selection.Selection{AppName: "demo", TrialID: 10, MetricID: 100, ThreadID: 200}

// fakeClient serves the demo fake data and accepts logins to "demo.db".
type fakeClient struct {
	*selectiontest.FakeSource
	loggedIn bool
	loginErr error
	logins   []remote.Credentials
}

func (c *fakeClient) Login(ctx context.Context, creds remote.Credentials) (bool, error) {
	c.logins = append(c.logins, creds)
	if c.loginErr != nil {
		return false, c.loginErr
	}
	c.loggedIn = creds.Name == "demo.db"
	return c.loggedIn, nil
}

func (c *fakeClient) LoggedIn(ctx context.Context) (remote.SessionInfo, error) {
	if c.loggedIn {
		return remote.SessionInfo{Status: remote.StatusGood, DBName: "demo.db"}, nil
	}
	return remote.SessionInfo{Status: "Fail"}, nil
}

func newProfiles(t *testing.T) *clientstate.Store {
	t.Helper()
	st, err := clientstate.Open(":memory:")
	if err != nil {
		t.Fatalf("clientstate.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startModel builds a model and runs Init to completion.
func startModel(t *testing.T, client *fakeClient, profiles Profiles, opts Options) Model {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	m := New(client, profiles, opts)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = updated.(Model)
	return drain(t, m, m.Init())
}

// drain runs cmd and every command it produces, feeding the messages back
// into the model until nothing is left. Spinner ticks are dropped so the
// animation loop does not run.
func drain(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 500 {
			t.Fatal("command loop did not settle")
		}
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case nil, spinner.TickMsg:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			updated, next := m.Update(msg)
			m = updated.(Model)
			queue = append(queue, next)
		}
	}
	return m
}

// press sends one key and returns the model and its command unrun.
func press(m Model, key string) (Model, tea.Cmd) {
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		msg = tea.KeyMsg{Type: tea.KeyShiftTab}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	case "ctrl+c":
		msg = tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	updated, cmd := m.Update(msg)
	return updated.(Model), cmd
}

// pressAndDrain sends a key and runs the resulting commands.
func pressAndDrain(t *testing.T, m Model, key string) Model {
	t.Helper()
	m, cmd := press(m, key)
	return drain(t, m, cmd)
}

func newCachedProfiles(t *testing.T, session string, sel selection.Selection) *clientstate.Store {
	t.Helper()
	p := newProfiles(t)
	if err := p.SaveSelection(context.Background(), session, sel); err != nil {
		t.Fatal(err)
	}
	return p
}

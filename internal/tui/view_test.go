package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/autoperf/taudash/internal/selection/selectiontest"
)

func TestViewFitsTerminalWidth(t *testing.T) {
	client := &fakeClient{FakeSource: selectiontest.Demo(), loggedIn: true}
	m := startModel(t, client, newCachedProfiles(t, "lab", demoSelection), Options{Session: "lab", Version: "v1.0.0"})

	for _, p := range []pane{paneProfile, paneMetadata, paneChart} {
		m.pane = p
		for i, line := range strings.Split(m.View(), "\n") {
			if w := lipgloss.Width(line); w > 120 {
				t.Errorf("pane %d line %d width %d > 120", p, i, w)
			}
		}
	}
	if title := stripANSI(m.titleBar()); !strings.Contains(title, "taudash v1.0.0") {
		t.Errorf("title = %q", title)
	}
}

func TestStyledCursorRow(t *testing.T) {
	forceColorProfile(t)
	client := &fakeClient{FakeSource: selectiontest.Demo(), loggedIn: true}
	m := startModel(t, client, newCachedProfiles(t, "lab", demoSelection), Options{Session: "lab"})

	out := m.profileTableView()
	if !strings.Contains(out, ansiStart) {
		t.Fatal("expected ANSI styling in profile table")
	}
	if !strings.Contains(stripANSI(out), "main => solve") {
		t.Errorf("profile table missing top row:\n%s", stripANSI(out))
	}
}

func TestResizeNarrow(t *testing.T) {
	client := &fakeClient{FakeSource: selectiontest.Demo(), loggedIn: true}
	m := startModel(t, client, newCachedProfiles(t, "lab", demoSelection), Options{Session: "lab"})

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 50, Height: 12})
	m = updated.(Model)
	if m.pageSize != 7 {
		t.Errorf("pageSize = %d, want 7", m.pageSize)
	}
	for i, line := range strings.Split(m.View(), "\n") {
		if w := lipgloss.Width(line); w > 50 {
			t.Errorf("line %d width %d > 50: %q", i, w, stripANSI(line))
		}
	}
}

func TestHelpOverlayClosesOnAnyKey(t *testing.T) {
	client := &fakeClient{FakeSource: selectiontest.Demo(), loggedIn: true}
	m := startModel(t, client, newCachedProfiles(t, "lab", demoSelection), Options{Session: "lab"})

	m, _ = press(m, "?")
	if !strings.Contains(stripANSI(m.View()), "toggle inclusive / exclusive ordering") {
		t.Error("help not shown")
	}
	m, _ = press(m, "x")
	if m.helpOpen {
		t.Error("help still open")
	}
}

func TestInactiveProfileHint(t *testing.T) {
	client := &fakeClient{FakeSource: selectiontest.Demo(), loggedIn: true}
	m := startModel(t, client, newProfiles(t), Options{})
	m.selectorOpen = false

	out := stripANSI(m.View())
	for _, want := range []string{"No profile selected", "Press s to choose"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}
}

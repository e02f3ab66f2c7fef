package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/autoperf/taudash/internal/selection"
)

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	switch m.screen {
	case screenLogin:
		return m.handleLoginKeys(msg)
	case screenBrowse:
		if m.helpOpen {
			m.helpOpen = false
			return m, nil
		}
		if m.selectorOpen {
			if m.filterEditing {
				return m.handleFilterKeys(msg)
			}
			return m.handleSelectorKeys(msg)
		}
		return m.handleBrowseKeys(msg)
	}
	if msg.String() == "q" {
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) handleLoginKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.quitting = true
		return m, tea.Quit
	case "tab", "down":
		m.focusField((m.focusInput + 1) % fieldCount)
		return m, nil
	case "shift+tab", "up":
		m.focusField((m.focusInput + fieldCount - 1) % fieldCount)
		return m, nil
	case "enter":
		if m.loggingIn {
			return m, nil
		}
		if m.inputs[fieldName].Value() == "" {
			m.loginErr = "Database name is required"
			m.focusField(fieldName)
			return m, nil
		}
		m.loggingIn = true
		m.loginErr = ""
		cmd := m.submitLogin()
		if m.inflight == 0 {
			cmd = tea.Batch(cmd, m.spinner.Tick)
		}
		m.inflight = 1
		return m, cmd
	}

	var cmd tea.Cmd
	m.inputs[m.focusInput], cmd = m.inputs[m.focusInput].Update(msg)
	return m, cmd
}

func (m *Model) focusField(i int) {
	m.inputs[m.focusInput].Blur()
	m.focusInput = i
	m.inputs[i].Focus()
}

func (m Model) handleBrowseKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	view := m.ctrl.View()
	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "?":
		m.helpOpen = true
		return m, nil
	case "s", "enter":
		m.openSelector()
		return m, nil
	case "tab":
		m.pane = (m.pane + 1) % 3
		m.cursor, m.scrollOffset = 0, 0
		return m, nil
	case "shift+tab":
		m.pane = (m.pane + 2) % 3
		m.cursor, m.scrollOffset = 0, 0
		return m, nil
	case "i", "t":
		if !view.Active() {
			return m, nil
		}
		cmd := m.fetchCmds(m.ctrl.ToggleType())
		m.setFlash("Ordering by " + string(view.Type()) + " percent")
		return m, cmd
	case "m":
		if !view.Active() {
			return m, nil
		}
		if view.Loading() {
			return m, nil
		}
		if !view.HasMore() {
			m.setFlash("No more rows")
			return m, nil
		}
		return m, m.fetchCmds(m.ctrl.LoadMore())
	case "r":
		return m, m.fetchCmds(m.ctrl.Refresh())
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		m.cursor++
	case "pgup", "ctrl+u":
		m.cursor = max(m.cursor-m.pageSize, 0)
	case "pgdown", "ctrl+d":
		m.cursor += m.pageSize
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.cursor = 1 << 30
	}
	m.clampCursor()
	return m, nil
}

func (m Model) handleSelectorKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	l := m.focusLevel
	visible := m.visibleOptions(l)
	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "esc", "s":
		m.selectorOpen = false
		return m, nil
	case "tab", "right", "l":
		if l < selection.LevelThread {
			m.focusLevel++
		}
		return m, nil
	case "shift+tab", "left", "h":
		if l > selection.LevelApplication {
			m.focusLevel--
		}
		return m, nil
	case "up", "k":
		if m.levelCursor[l] > 0 {
			m.levelCursor[l]--
		}
		return m, nil
	case "down", "j":
		if m.levelCursor[l] < len(visible)-1 {
			m.levelCursor[l]++
		}
		return m, nil
	case "/":
		m.filterEditing = true
		m.filterInput.SetValue(m.filters[l])
		m.filterInput.CursorEnd()
		return m, m.filterInput.Focus()
	case "x":
		cmd := m.fetchCmds(m.ctrl.Select(l, -1))
		m.resetLowerCursors(l)
		return m, cmd
	case "enter", " ":
		if len(visible) == 0 {
			return m, nil
		}
		cmd := m.fetchCmds(m.ctrl.Select(l, visible[m.levelCursor[l]]))
		m.resetLowerCursors(l)
		if l < selection.LevelThread {
			m.focusLevel++
		}
		return m, cmd
	case "c":
		fetches, err := m.ctrl.Confirm()
		if err != nil {
			m.setFlash(err.Error())
			return m, nil
		}
		m.selectorOpen = false
		m.cursor, m.scrollOffset = 0, 0
		return m, m.fetchCmds(fetches)
	}
	return m, nil
}

// resetLowerCursors moves the cursors of the levels below l to the top;
// their option lists are about to be replaced.
func (m *Model) resetLowerCursors(l selection.Level) {
	for lower := l + 1; lower <= selection.LevelThread; lower++ {
		m.levelCursor[lower] = 0
	}
}

func (m Model) handleFilterKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.filterEditing = false
		m.filterInput.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	m.filters[m.focusLevel] = m.filterInput.Value()
	m.levelCursor[m.focusLevel] = 0
	return m, cmd
}

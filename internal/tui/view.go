package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/autoperf/taudash/internal/profile"
	"github.com/autoperf/taudash/internal/selection"
)

// Monochrome theme - adaptive for light and dark terminals
var (
	bgBase   = lipgloss.AdaptiveColor{Light: "#ffffff", Dark: "#000000"}
	bgAlt    = lipgloss.AdaptiveColor{Light: "#f0f0f0", Dark: "#181818"}
	bgCursor = lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#282828"}

	titleBarStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#333333"}).
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#ffffff"}).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#999999"}).
			Background(bgBase).
			Padding(0, 1)

	spinnerStyle = lipgloss.NewStyle().
			Bold(true).
			Background(bgBase)

	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Background(bgBase)

	separatorStyle = lipgloss.NewStyle().
			Faint(true).
			Background(bgBase)

	cursorRowStyle = lipgloss.NewStyle().
			Background(bgCursor)

	normalRowStyle = lipgloss.NewStyle().
			Background(bgBase)

	altRowStyle = lipgloss.NewStyle().
			Background(bgAlt)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#999999"}).
			Background(bgBase).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Background(bgBase)

	flashStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#996600", Dark: "#ffcc00"}).
			Background(bgBase)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)

	focusedPanelStyle = panelStyle.
				BorderForeground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#ffffff"})

	selectedOptionStyle = lipgloss.NewStyle().
				Bold(true)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(1, 2).
			Background(bgBase)

	modalTitleStyle = lipgloss.NewStyle().
			Bold(true)
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	switch m.screen {
	case screenConnecting:
		return m.titleBar() + "\n" + statusStyle.Render(m.spinner.View()+" Checking session...")
	case screenLogin:
		return m.loginView()
	}

	var body string
	switch {
	case m.helpOpen:
		body = m.helpView()
	case m.selectorOpen:
		body = m.selectorView()
	case m.pane == paneMetadata:
		body = m.metadataView()
	case m.pane == paneChart:
		body = m.chartView()
	default:
		body = m.profileTableView()
	}
	return strings.Join([]string{m.titleBar(), m.statusLine(), body, m.footerView()}, "\n")
}

func (m Model) viewWidth() int {
	if m.width <= 0 {
		return 80
	}
	return m.width
}

func (m Model) titleBar() string {
	title := "taudash"
	if m.opts.Version != "" {
		title += " " + m.opts.Version
	}
	if m.session != "" {
		title += " - " + m.session
	}
	return titleBarStyle.Width(m.viewWidth()).Render(title)
}

// statusLine shows the resolved selection by name once it is ready.
func (m Model) statusLine() string {
	st := m.ctrl.State()
	var line string
	if st.Ready() {
		app, trial, metric, thread := st.ResolvedNames()
		line = fmt.Sprintf("%s > %s > %s > %s", app, trial, metric, thread)
		if st.Valid() != selection.ValidTrue {
			line += "  (press c in the selector to confirm)"
		}
	} else {
		line = "No profile selected"
	}
	return statusStyle.Render(truncateRunes(line, max(m.viewWidth()-2, 1)))
}

func (m Model) loginView() string {
	labels := [fieldCount]string{"Host", "Database", "User", "Password", "Profile"}
	var b strings.Builder
	b.WriteString(m.titleBar())
	b.WriteString("\n\n")
	b.WriteString(modalTitleStyle.Render("Connect to a profiling database"))
	b.WriteString("\n\n")
	for i, in := range m.inputs {
		b.WriteString(padRight(labels[i]+":", 10))
		b.WriteString(in.View())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if m.loggingIn {
		b.WriteString(m.spinner.View() + " Logging in...\n")
	} else if m.loginErr != "" {
		b.WriteString(errorStyle.Render(m.loginErr) + "\n")
	}
	b.WriteString(footerStyle.Render("tab: next field | enter: log in | esc: quit"))
	return b.String()
}

func (m Model) profileTableView() string {
	v := m.ctrl.View()
	if !v.Active() {
		return m.fill(statusStyle.Render("Press s to choose an application, trial, metric and thread."), 1)
	}

	width := m.viewWidth()
	valueWidth, pctWidth := 10, 8
	nameWidth := max(width-2*(valueWidth+pctWidth)-5, 10)
	vt := v.Type()

	mark := func(t profile.ValueType) string {
		if t == vt {
			return "▼"
		}
		return ""
	}
	header := padRight("Timer", nameWidth) + " " +
		padLeft("Excl"+mark(profile.Exclusive), valueWidth) + " " +
		padLeft("Excl%", pctWidth) + " " +
		padLeft("Incl"+mark(profile.Inclusive), valueWidth) + " " +
		padLeft("Incl%", pctWidth)

	lines := []string{
		tableHeaderStyle.Render(padRight(header, width)),
		separatorStyle.Render(strings.Repeat("─", width)),
	}
	rows := v.Rows()
	end := min(m.scrollOffset+m.pageSize, len(rows))
	for i := m.scrollOffset; i < end; i++ {
		r := rows[i]
		line := padRight(truncateLeft(r.Callpath, nameWidth), nameWidth) + " " +
			padLeft(formatValue(r.ExclusiveValue), valueWidth) + " " +
			padLeft(formatPercent(r.ExclusivePercent), pctWidth) + " " +
			padLeft(formatValue(r.InclusiveValue), valueWidth) + " " +
			padLeft(formatPercent(r.InclusivePercent), pctWidth)
		lines = append(lines, m.rowStyle(i).Render(padRight(line, width)))
	}
	if len(rows) == 0 && !v.Loading() {
		lines = append(lines, statusStyle.Render("No timers for this thread and metric."))
	}
	return m.fill(strings.Join(lines, "\n"), len(lines))
}

func (m Model) metadataView() string {
	v := m.ctrl.View()
	entries := v.Metadata()
	width := m.viewWidth()
	nameWidth := min(32, width/3)

	lines := []string{
		tableHeaderStyle.Render(padRight(padRight("Name", nameWidth)+" Value", width)),
		separatorStyle.Render(strings.Repeat("─", width)),
	}
	end := min(m.scrollOffset+m.pageSize, len(entries))
	for i := m.scrollOffset; i < end; i++ {
		e := entries[i]
		line := padRight(truncateRunes(e.Name, nameWidth), nameWidth) + " " +
			truncateRunes(e.Value, max(width-nameWidth-1, 1))
		lines = append(lines, m.rowStyle(i).Render(padRight(line, width)))
	}
	return m.fill(strings.Join(lines, "\n"), len(lines))
}

func (m Model) chartView() string {
	v := m.ctrl.View()
	title := tableHeaderStyle.Render(fmt.Sprintf("Share of %s percent", v.Type()))
	chart := renderShareChart(v.Rows(), v.Type(), m.viewWidth()-2, max(m.pageSize-2, 1))
	lines := append([]string{title}, chart...)
	return m.fill(strings.Join(lines, "\n"), len(lines))
}

func (m Model) rowStyle(i int) lipgloss.Style {
	switch {
	case i == m.cursor:
		return cursorRowStyle
	case i%2 == 1:
		return altRowStyle
	default:
		return normalRowStyle
	}
}

// selectorView renders the four levels side by side with the selected
// option bold and the focused level outlined.
func (m Model) selectorView() string {
	st := m.ctrl.State()
	colWidth := max((m.viewWidth()-8*len(selection.Levels))/len(selection.Levels), 8)
	listHeight := max(m.pageSize-6, 3)

	cols := make([]string, 0, len(selection.Levels))
	for _, l := range selection.Levels {
		names := st.Options(l)
		visible := m.visibleOptions(l)
		selected := st.Index(l)

		var b strings.Builder
		b.WriteString(modalTitleStyle.Render(l.String()))
		b.WriteString("\n")
		switch {
		case m.filterEditing && l == m.focusLevel:
			b.WriteString(m.filterInput.View())
		case m.filters[l] != "":
			b.WriteString(truncateRunes("/"+m.filters[l], colWidth))
		default:
			b.WriteString(separatorStyle.Render(strings.Repeat("─", colWidth)))
		}
		b.WriteString("\n")

		start := 0
		if cur := m.levelCursor[l]; cur >= listHeight {
			start = cur - listHeight + 1
		}
		end := min(start+listHeight, len(visible))
		for i := start; i < end; i++ {
			idx := visible[i]
			prefix := "  "
			if l == m.focusLevel && i == m.levelCursor[l] {
				prefix = "> "
			}
			text := prefix + truncateRunes(names[idx], colWidth-2)
			if idx == selected {
				text = selectedOptionStyle.Render(text)
			}
			b.WriteString(padRight(text, colWidth))
			b.WriteString("\n")
		}
		if len(visible) == 0 {
			b.WriteString(padRight("  (none)", colWidth))
		}

		style := panelStyle
		if l == m.focusLevel {
			style = focusedPanelStyle
		}
		cols = append(cols, style.Width(colWidth+2).Render(strings.TrimRight(b.String(), "\n")))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func (m Model) helpView() string {
	lines := []string{
		modalTitleStyle.Render("Keys"),
		"",
		"s / enter   open the selector",
		"tab         profile / metadata / chart",
		"i           toggle inclusive / exclusive ordering",
		"m           load more rows",
		"r           reload applications",
		"q           quit",
		"",
		"In the selector:",
		"tab / arrows  move between levels and options",
		"enter         select option",
		"x             clear level",
		"/             filter options (regexp)",
		"c             confirm and remember the selection",
		"esc           close",
	}
	return modalStyle.Render(strings.Join(lines, "\n"))
}

// fill pads content with blank lines so the footer stays at the bottom.
func (m Model) fill(content string, usedLines int) string {
	// title, status and footer take three lines
	remaining := m.height - 3 - usedLines
	if m.height == 0 || remaining <= 0 {
		return content
	}
	return content + strings.Repeat("\n", remaining)
}

func (m Model) footerView() string {
	var parts []string
	if m.inflight > 0 {
		parts = append(parts, m.spinner.View())
	}
	v := m.ctrl.View()
	if v.Active() {
		n := fmt.Sprintf("%d rows", len(v.Rows()))
		if v.HasMore() {
			n += " (m: more)"
		}
		parts = append(parts, n)
	}
	switch {
	case m.err != nil:
		parts = append(parts, errorStyle.Render("Error: "+m.err.Error()))
	case m.flash() != "":
		parts = append(parts, flashStyle.Render(m.flash()))
	default:
		parts = append(parts, "s: select | tab: pane | i: incl/excl | ?: help | q: quit")
	}
	return footerStyle.Render(truncateToWidth(strings.Join(parts, " | "), max(m.viewWidth()-2, 1)))
}

// Package tui provides the terminal profile browser for taudash.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/autoperf/taudash/internal/clientstate"
	"github.com/autoperf/taudash/internal/remote"
	"github.com/autoperf/taudash/internal/selection"
)

// Client is the server connection the browser reads from.
type Client interface {
	selection.Source
	Login(ctx context.Context, creds remote.Credentials) (bool, error)
	LoggedIn(ctx context.Context) (remote.SessionInfo, error)
}

// Profiles stores saved connection profiles and per-profile selections.
type Profiles interface {
	AddSession(ctx context.Context, sess clientstate.Session) (bool, error)
	SetActive(ctx context.Context, name string) error
	SelectionCache(ctx context.Context, session string) selection.Cache
}

// Options configuration for TUI.
type Options struct {
	Version string
	// Session is the active profile name; its cached selection is restored.
	Session string
	// Login pre-fills the login form.
	Login        remote.Credentials
	ProfileLimit int
	ApplyStale   bool
	Logger       *slog.Logger
}

// screen is the top-level mode of the browser.
type screen int

const (
	screenConnecting screen = iota // Waiting for the logged-in check
	screenLogin
	screenBrowse
)

// pane is what the browse screen shows below the status line.
type pane int

const (
	paneProfile pane = iota
	paneMetadata
	paneChart
)

// Login form fields, in tab order.
const (
	fieldHost = iota
	fieldName
	fieldUser
	fieldPass
	fieldProfile
	fieldCount
)

// flashDuration is how long flash messages are displayed.
const flashDuration = 4 * time.Second

// Model is the main TUI model following the Elm architecture.
type Model struct {
	client   Client
	profiles Profiles
	opts     Options
	logger   *slog.Logger

	screen  screen
	session string

	// Login form
	inputs     []textinput.Model
	focusInput int
	loginErr   string
	loggingIn  bool

	// Selection and profile data
	ctrl      *selection.Controller
	lastValid selection.Valid

	// Browse screen
	pane         pane
	cursor       int
	scrollOffset int

	// Selector overlay: one filter and cursor per level
	selectorOpen  bool
	focusLevel    selection.Level
	levelCursor   [4]int
	filters       [4]string
	filterInput   textinput.Model
	filterEditing bool

	helpOpen bool

	// Terminal dimensions
	width    int
	height   int
	pageSize int

	// Loading state
	inflight int
	spinner  spinner.Model
	err      error

	// Flash message (temporary notification)
	flashMessage   string
	flashExpiresAt time.Time

	quitting bool
}

// New creates a new TUI model.
func New(client Client, profiles Profiles, opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	inputs := make([]textinput.Model, fieldCount)
	placeholders := [fieldCount]string{"database host", "database name", "user", "password", "save as (optional)"}
	values := [fieldCount]string{opts.Login.Host, opts.Login.Name, opts.Login.User, "", opts.Session}
	for i := range inputs {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = 256
		ti.Width = 40
		ti.SetValue(values[i])
		if i == fieldPass {
			ti.EchoMode = textinput.EchoPassword
			ti.EchoCharacter = '*'
		}
		inputs[i] = ti
	}
	inputs[fieldHost].Focus()

	fi := textinput.New()
	fi.Placeholder = "regexp filter"
	fi.CharLimit = 200
	fi.Width = 30

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return Model{
		client:      client,
		profiles:    profiles,
		opts:        opts,
		logger:      logger,
		screen:      screenConnecting,
		session:     opts.Session,
		inputs:      inputs,
		filterInput: fi,
		spinner:     sp,
		pageSize:    20,
		inflight:    1,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.checkLogin(), m.spinner.Tick)
}

// loggedInMsg reports the initial session check.
type loggedInMsg struct {
	info remote.SessionInfo
	err  error
}

// loginResultMsg reports a submitted login form.
type loginResultMsg struct {
	ok      bool
	err     error
	profile string
	creds   remote.Credentials
}

// fetchResultMsg carries a completed selection fetch.
type fetchResultMsg struct {
	res selection.Result
}

func (m Model) checkLogin() tea.Cmd {
	client := m.client
	return func() (msg tea.Msg) {
		defer func() {
			if r := recover(); r != nil {
				msg = loggedInMsg{err: fmt.Errorf("session check panic: %v", r)}
			}
		}()
		info, err := client.LoggedIn(context.Background())
		return loggedInMsg{info: info, err: err}
	}
}

func (m Model) submitLogin() tea.Cmd {
	client := m.client
	creds := remote.Credentials{
		Driver:   m.opts.Login.Driver,
		Host:     m.inputs[fieldHost].Value(),
		Name:     m.inputs[fieldName].Value(),
		User:     m.inputs[fieldUser].Value(),
		Password: m.inputs[fieldPass].Value(),
	}
	profile := m.inputs[fieldProfile].Value()
	return func() (msg tea.Msg) {
		defer func() {
			if r := recover(); r != nil {
				msg = loginResultMsg{err: fmt.Errorf("login panic: %v", r)}
			}
		}()
		ok, err := client.Login(context.Background(), creds)
		creds.Password = ""
		return loginResultMsg{ok: ok, err: err, profile: profile, creds: creds}
	}
}

// fetchCmds turns pending fetches into commands. Each runs on its own
// goroutine and reports back through fetchResultMsg.
func (m *Model) fetchCmds(fetches []selection.Fetch) tea.Cmd {
	if len(fetches) == 0 {
		return nil
	}
	src := m.client
	cmds := make([]tea.Cmd, 0, len(fetches)+1)
	if m.inflight == 0 {
		cmds = append(cmds, m.spinner.Tick)
	}
	for _, f := range fetches {
		f := f
		m.inflight++
		cmds = append(cmds, func() (msg tea.Msg) {
			defer func() {
				if r := recover(); r != nil {
					msg = fetchResultMsg{res: selection.Result{Fetch: f, Err: fmt.Errorf("fetch panic: %v", r)}}
				}
			}()
			return fetchResultMsg{res: f.Run(context.Background(), src)}
		})
	}
	return tea.Batch(cmds...)
}

// startBrowse builds the selection controller for the active profile and
// requests the first lists.
func (m Model) startBrowse() (Model, tea.Cmd) {
	opts := selection.Options{ApplyStale: m.opts.ApplyStale, Logger: m.logger}
	if m.profiles != nil {
		opts.Cache = m.profiles.SelectionCache(context.Background(), m.session)
	}
	m.ctrl = selection.NewController(selection.New(opts), selection.NewProfileView(m.opts.ProfileLimit, "", opts))
	m.screen = screenBrowse
	m.lastValid = selection.ValidUnknown
	m.cursor, m.scrollOffset = 0, 0

	fetches, err := m.ctrl.Start()
	if err != nil {
		// An unreadable cache only costs the restored selection.
		m.logger.Warn("cached selection unavailable", "error", err)
		fetches = m.ctrl.Refresh()
	}
	return m, m.fetchCmds(fetches)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = max(msg.Width, 0)
		m.height = max(msg.Height, 0)
		// Reserve space for: title bar, status line, table header, separator, footer
		m.pageSize = max(m.height-5, 1)
		return m, nil

	case spinner.TickMsg:
		if m.inflight == 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case loggedInMsg:
		m.inflight = 0
		if msg.err != nil {
			m.screen = screenLogin
			m.loginErr = "Cannot reach server: " + msg.err.Error()
			return m, nil
		}
		if !msg.info.LoggedIn() {
			m.screen = screenLogin
			return m, nil
		}
		return m.startBrowse()

	case loginResultMsg:
		m.loggingIn = false
		m.inflight = 0
		if msg.err != nil {
			m.loginErr = "Login error: " + msg.err.Error()
			return m, nil
		}
		if !msg.ok {
			m.loginErr = "Login failed: the server could not open that database"
			return m, nil
		}
		m.loginErr = ""
		m.inputs[fieldPass].SetValue("")
		if msg.profile != "" && m.profiles != nil {
			ctx := context.Background()
			sess := clientstate.Session{
				Name:   msg.profile,
				Driver: msg.creds.Driver,
				DBHost: msg.creds.Host,
				DBName: msg.creds.Name,
				DBUser: msg.creds.User,
			}
			if _, err := m.profiles.AddSession(ctx, sess); err != nil {
				m.logger.Warn("save profile", "error", err)
			} else if err := m.profiles.SetActive(ctx, msg.profile); err != nil {
				m.logger.Warn("set active profile", "error", err)
			}
			m.session = msg.profile
		}
		return m.startBrowse()

	case fetchResultMsg:
		if m.inflight > 0 {
			m.inflight--
		}
		if m.ctrl == nil {
			return m, nil
		}
		if msg.res.Err != nil {
			m.err = msg.res.Err
		} else {
			m.err = nil
		}
		prevRows := len(m.ctrl.View().Rows())
		cmd := m.fetchCmds(m.ctrl.Apply(msg.res))
		m.afterApply(prevRows)
		return m, cmd
	}
	return m, nil
}

// afterApply reacts to state transitions after a result was applied.
func (m *Model) afterApply(prevRows int) {
	st := m.ctrl.State()
	if v := st.Valid(); v != m.lastValid {
		if v == selection.ValidFalse {
			// The cached selection no longer exists; let the user choose.
			m.openSelector()
		}
		m.lastValid = v
	}
	if rows := len(m.ctrl.View().Rows()); rows < prevRows {
		m.cursor, m.scrollOffset = 0, 0
	}
	for _, l := range selection.Levels {
		if n := len(m.visibleOptions(l)); m.levelCursor[l] >= n {
			m.levelCursor[l] = max(n-1, 0)
		}
	}
	m.clampCursor()
}

func (m *Model) openSelector() {
	m.selectorOpen = true
	m.focusLevel = selection.LevelApplication
	for _, l := range selection.Levels {
		m.syncLevelCursor(l)
	}
}

// syncLevelCursor moves a level's cursor onto its selected option when the
// option is visible under the current filter.
func (m *Model) syncLevelCursor(l selection.Level) {
	visible := m.visibleOptions(l)
	sel := m.ctrl.State().Index(l)
	m.levelCursor[l] = 0
	for i, idx := range visible {
		if idx == sel {
			m.levelCursor[l] = i
			return
		}
	}
}

// visibleOptions returns indexes of a level's options passing its filter.
func (m Model) visibleOptions(l selection.Level) []int {
	if m.ctrl == nil {
		return nil
	}
	return selection.FilterOptions(m.ctrl.State().Options(l), m.filters[l])
}

func (m *Model) clampCursor() {
	n := 0
	switch m.pane {
	case paneProfile, paneChart:
		n = len(m.ctrl.View().Rows())
	case paneMetadata:
		n = len(m.ctrl.View().Metadata())
	}
	if m.cursor >= n {
		m.cursor = max(n-1, 0)
	}
	if m.scrollOffset > m.cursor {
		m.scrollOffset = m.cursor
	}
	if m.cursor >= m.scrollOffset+m.pageSize {
		m.scrollOffset = m.cursor - m.pageSize + 1
	}
}

// setFlash shows a temporary message until it expires or is replaced.
func (m *Model) setFlash(text string) {
	m.flashMessage = text
	m.flashExpiresAt = time.Now().Add(flashDuration)
}

func (m Model) flash() string {
	if m.flashMessage == "" || time.Now().After(m.flashExpiresAt) {
		return ""
	}
	return m.flashMessage
}

// Loading reports whether any request is in flight.
func (m Model) Loading() bool { return m.inflight > 0 }

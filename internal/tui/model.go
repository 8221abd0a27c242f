// Package tui renders the four OFlow screens and the loading and error
// affordances in the terminal.
package tui

import (
	"context"
	stderrors "errors"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/errors"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/identity"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/route"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/teams"
)

// Screen is what the TUI currently shows.
type Screen int

// Screens
const (
	ScreenLoading Screen = iota
	ScreenLogin
	ScreenTeamSelect
	ScreenChannelSetup
	ScreenMain
	ScreenError
)

func screenFor(dest route.Destination) Screen {
	switch dest {
	case route.DestTeamSelect:
		return ScreenTeamSelect
	case route.DestChannelSetup:
		return ScreenChannelSetup
	case route.DestMain:
		return ScreenMain
	}
	return ScreenLogin
}

// Actions is what the screens can ask the client to do. Navigation is never
// performed here; it follows from the state changes these cause.
type Actions interface {
	Login(ctx context.Context, provider string) error
	SelectTeam(teamID string)
	RetryTeams(ctx context.Context) error
	Logout(ctx context.Context) error

	Identity() identity.Identity
	Teams() []teams.Membership
}

// Model represents the TUI application state
type Model struct {
	ctx     context.Context
	actions Actions

	screen  Screen
	state   route.State
	profile identity.Identity
	teams   []teams.Membership
	cursor  int

	spinner spinner.Model

	// UI state
	width    int
	height   int
	busy     string
	notice   string
	quitting bool

	// Error state
	lastError string

	styles Styles
}

// Styles contains lipgloss styles for the TUI
type Styles struct {
	Title       lipgloss.Style
	Subtitle    lipgloss.Style
	Status      lipgloss.Style
	Error       lipgloss.Style
	Success     lipgloss.Style
	Warning     lipgloss.Style
	Muted       lipgloss.Style
	Border      lipgloss.Style
	Highlighted lipgloss.Style
	Help        lipgloss.Style
	Key         lipgloss.Style
	KeyDesc     lipgloss.Style
}

// NewModel creates a model that shows the loading affordance until the
// route guard navigates.
func NewModel(ctx context.Context, actions Actions) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))

	return Model{
		ctx:     ctx,
		actions: actions,
		screen:  ScreenLoading,
		spinner: s,
		styles:  DefaultStyles(),
	}
}

// DefaultStyles returns the default lipgloss styles
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")). // Purple
			MarginBottom(1),
		Subtitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")). // Gray
			MarginBottom(1),
		Status: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")), // Cyan
		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")), // Red
		Success: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("46")), // Green
		Warning: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("226")), // Yellow
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")), // Gray
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")). // Purple
			Padding(1, 2),
		Highlighted: lipgloss.NewStyle().
			Background(lipgloss.Color("63")).  // Purple
			Foreground(lipgloss.Color("230")). // Light yellow
			Bold(true).
			Padding(0, 1),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")). // Gray
			MarginTop(1),
		Key: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")), // Purple
		KeyDesc: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")), // Gray
	}
}

// Screen returns the current screen.
func (m Model) Screen() Screen {
	return m.screen
}

// Init initializes the TUI model (required by Bubble Tea)
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages and updates the model state (required by Bubble Tea)
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case NavigateMsg:
		m.screen = screenFor(msg.Destination)
		m.state = msg.State
		m.lastError = ""
		m.refresh()
		return m, nil

	case LoadingMsg:
		m.screen = ScreenLoading
		return m, m.spinner.Tick

	case ErrorMsg:
		m.screen = ScreenError
		m.lastError = describe(msg.Err)
		return m, nil

	case actionDoneMsg:
		m.busy = ""
		m.notice = ""
		switch {
		case msg.err == nil:
		case errors.CodeOf(msg.err) == errors.ErrCodeAuthCancelled:
			m.notice = "Login cancelled"
		default:
			m.lastError = describe(msg.err)
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if m.screen != ScreenLoading && m.busy == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the TUI (required by Bubble Tea)
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	switch m.screen {
	case ScreenLoading:
		return m.renderLoading()
	case ScreenLogin:
		return m.renderLogin()
	case ScreenTeamSelect:
		return m.renderTeamSelect()
	case ScreenChannelSetup:
		return m.renderChannelSetup()
	case ScreenMain:
		return m.renderMain()
	case ScreenError:
		return m.renderError()
	default:
		return "Unknown screen"
	}
}

// handleKeyPress handles keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Ctrl+C always quits
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	if msg.String() == "q" && m.busy == "" {
		m.quitting = true
		return m, tea.Quit
	}

	if m.busy != "" {
		return m, nil
	}

	switch m.screen {
	case ScreenLogin:
		switch msg.String() {
		case "l":
			return m.run("Waiting for LINE login in your browser", func(ctx context.Context) error {
				return m.actions.Login(ctx, "line")
			})
		case "a":
			return m.run("Waiting for Sign in with Apple", func(ctx context.Context) error {
				return m.actions.Login(ctx, "apple")
			})
		}

	case ScreenTeamSelect:
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.teams)-1 {
				m.cursor++
			}
		case "enter":
			if m.cursor < len(m.teams) {
				return m.selectTeam(m.teams[m.cursor].TeamID)
			}
		case "r":
			return m.run("Refreshing teams", m.actions.RetryTeams)
		case "o":
			return m.run("Logging out", m.actions.Logout)
		}

	case ScreenChannelSetup:
		switch msg.String() {
		case "r":
			return m.run("Checking LINE channel", m.actions.RetryTeams)
		case "t":
			return m.selectTeam("")
		case "o":
			return m.run("Logging out", m.actions.Logout)
		}

	case ScreenMain:
		switch msg.String() {
		case "t":
			return m.selectTeam("")
		case "o":
			return m.run("Logging out", m.actions.Logout)
		}

	case ScreenError:
		switch msg.String() {
		case "r", "enter":
			return m.run("Retrying", m.actions.RetryTeams)
		case "o":
			return m.run("Logging out", m.actions.Logout)
		}
	}

	return m, nil
}

// run performs fn off the update loop and reports back with actionDoneMsg.
func (m Model) run(busy string, fn func(ctx context.Context) error) (tea.Model, tea.Cmd) {
	m.busy = busy
	m.notice = ""
	m.lastError = ""
	ctx := m.ctx
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		return actionDoneMsg{err: fn(ctx)}
	})
}

func (m Model) selectTeam(teamID string) (tea.Model, tea.Cmd) {
	actions := m.actions
	return m, func() tea.Msg {
		actions.SelectTeam(teamID)
		return actionDoneMsg{}
	}
}

func (m *Model) refresh() {
	if m.actions == nil {
		return
	}
	m.profile = m.actions.Identity()
	m.teams = m.actions.Teams()
	if m.cursor >= len(m.teams) {
		m.cursor = max(len(m.teams)-1, 0)
	}
}

// describe keeps the first line of an error; suggestions are for the CLI.
func describe(err error) string {
	if err == nil {
		return ""
	}
	var oe *errors.OFlowError
	if stderrors.As(err, &oe) {
		return oe.Message
	}
	return err.Error()
}

// NavigateMsg switches to the screen for a route destination.
type NavigateMsg struct {
	Destination route.Destination
	State       route.State
}

// LoadingMsg shows the loading affordance.
type LoadingMsg struct{}

// ErrorMsg shows the error affordance.
type ErrorMsg struct {
	Err error
}

type actionDoneMsg struct {
	err error
}

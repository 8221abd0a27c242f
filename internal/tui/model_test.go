package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/errors"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/identity"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/route"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/teams"
)

type fakeActions struct {
	mu        sync.Mutex
	logins    []string
	selected  []string
	retries   int
	logouts   int
	loginErr  error
	memberset []teams.Membership
}

func (f *fakeActions) Login(ctx context.Context, provider string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins = append(f.logins, provider)
	return f.loginErr
}

func (f *fakeActions) SelectTeam(teamID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = append(f.selected, teamID)
}

func (f *fakeActions) RetryTeams(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retries++
	return nil
}

func (f *fakeActions) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts++
	return nil
}

func (f *fakeActions) Identity() identity.Identity {
	return identity.Identity{LoggedIn: true, DisplayName: "Mei", Hydrated: true}
}

func (f *fakeActions) Teams() []teams.Membership { return f.memberset }

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends a key and runs the resulting command, feeding any
// actionDoneMsg back into the model.
func press(t *testing.T, m Model, k string) Model {
	t.Helper()
	next, cmd := m.Update(key(k))
	m = next.(Model)
	for _, msg := range drain(cmd) {
		if done, ok := msg.(actionDoneMsg); ok {
			next, _ = m.Update(done)
			m = next.(Model)
		}
	}
	return m
}

// drain runs cmd, expanding batches; spinner ticks are skipped.
func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()

	var msg tea.Msg
	select {
	case msg = <-done:
	case <-time.After(50 * time.Millisecond):
		// A spinner tick waits for its interval; it carries nothing we need.
		return nil
	}

	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, drain(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func navigate(t *testing.T, m Model, dest route.Destination, state route.State) Model {
	t.Helper()
	next, _ := m.Update(NavigateMsg{Destination: dest, State: state})
	return next.(Model)
}

func TestNewModelStartsLoading(t *testing.T) {
	m := NewModel(context.Background(), &fakeActions{})
	assert.Equal(t, ScreenLoading, m.Screen())
	assert.Contains(t, m.View(), "Loading")
	assert.NotNil(t, m.Init())
}

func TestNavigateMsgSelectsScreen(t *testing.T) {
	tests := []struct {
		dest route.Destination
		want Screen
	}{
		{route.DestLogin, ScreenLogin},
		{route.DestTeamSelect, ScreenTeamSelect},
		{route.DestChannelSetup, ScreenChannelSetup},
		{route.DestMain, ScreenMain},
	}

	for _, tt := range tests {
		t.Run(string(tt.dest), func(t *testing.T) {
			m := navigate(t, NewModel(context.Background(), &fakeActions{}), tt.dest, route.NoTeam())
			assert.Equal(t, tt.want, m.Screen())
		})
	}
}

func TestLoadingAndErrorMessages(t *testing.T) {
	m := navigate(t, NewModel(context.Background(), &fakeActions{}), route.DestMain, route.Complete("t1"))

	next, _ := m.Update(ErrorMsg{Err: errors.New(errors.ErrCodeTeamFetchFailed, "failed to load teams")})
	m = next.(Model)
	assert.Equal(t, ScreenError, m.Screen())
	assert.Contains(t, m.View(), "failed to load teams")

	next, _ = m.Update(LoadingMsg{})
	assert.Equal(t, ScreenLoading, next.(Model).Screen())
}

func TestLoginKeys(t *testing.T) {
	actions := &fakeActions{}
	m := navigate(t, NewModel(context.Background(), actions), route.DestLogin, route.Unauthenticated())
	assert.Contains(t, m.View(), "Log in with LINE")

	m = press(t, m, "l")
	m = press(t, m, "a")

	assert.Equal(t, []string{"line", "apple"}, actions.logins)
	assert.Empty(t, m.busy)
}

func TestLoginCancelledShowsNotice(t *testing.T) {
	actions := &fakeActions{loginErr: errors.New(errors.ErrCodeAuthCancelled, "sign-in cancelled")}
	m := navigate(t, NewModel(context.Background(), actions), route.DestLogin, route.Unauthenticated())

	m = press(t, m, "a")
	assert.Equal(t, "Login cancelled", m.notice)
	assert.Empty(t, m.lastError)
}

func TestLoginFailureShowsError(t *testing.T) {
	actions := &fakeActions{loginErr: errors.NewLoginFailedError("LINE", fmt.Errorf("server_error"))}
	m := navigate(t, NewModel(context.Background(), actions), route.DestLogin, route.Unauthenticated())

	m = press(t, m, "l")
	assert.Equal(t, "LINE login failed", m.lastError)
	assert.Equal(t, ScreenLogin, m.Screen(), "a failed login stays on the login screen")
}

func TestTeamSelect(t *testing.T) {
	channel := "c1"
	actions := &fakeActions{memberset: []teams.Membership{
		{TeamID: "t1", TeamName: "Bakery", Role: teams.RoleOwner, LineChannelID: &channel},
		{TeamID: "t2", TeamName: "Cafe", Role: teams.RoleMember},
	}}
	m := navigate(t, NewModel(context.Background(), actions), route.DestTeamSelect, route.NoTeam())

	view := m.View()
	assert.Contains(t, view, "Bakery")
	assert.Contains(t, view, "Cafe")

	m = press(t, m, "down")
	m = press(t, m, "down")
	assert.Equal(t, 1, m.cursor, "cursor stops at the last team")

	press(t, m, "enter")
	assert.Equal(t, []string{"t2"}, actions.selected)
}

func TestChannelSetupKeys(t *testing.T) {
	actions := &fakeActions{}
	m := navigate(t, NewModel(context.Background(), actions), route.DestChannelSetup, route.Incomplete("t2", "Cafe"))
	assert.Contains(t, m.View(), "Cafe")

	m = press(t, m, "r")
	m = press(t, m, "t")
	press(t, m, "o")

	assert.Equal(t, 1, actions.retries)
	assert.Equal(t, []string{""}, actions.selected, "switching team clears the selection")
	assert.Equal(t, 1, actions.logouts)
}

func TestErrorScreenRetry(t *testing.T) {
	actions := &fakeActions{}
	m := NewModel(context.Background(), actions)
	next, _ := m.Update(ErrorMsg{Err: fmt.Errorf("boom")})
	m = next.(Model)

	press(t, m, "r")
	assert.Equal(t, 1, actions.retries)
	assert.Zero(t, actions.logouts, "a failed fetch never logs out by itself")
}

func TestQuit(t *testing.T) {
	m := NewModel(context.Background(), &fakeActions{})
	next, cmd := m.Update(key("ctrl+c"))
	require.NotNil(t, cmd)
	assert.True(t, next.(Model).quitting)
	assert.Equal(t, "", next.(Model).View())
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (r *recordingSender) Send(msg tea.Msg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recordingSender) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func TestAdapterQueuesUntilAttached(t *testing.T) {
	a := NewAdapter()
	a.ShowLoading()
	a.Navigate(route.DestLogin, route.Unauthenticated())

	s := &recordingSender{}
	a.Attach(s)
	a.ShowError(fmt.Errorf("boom"))

	require.Eventually(t, func() bool { return s.len() == 3 }, time.Second, 5*time.Millisecond)
	a.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.IsType(t, LoadingMsg{}, s.msgs[0])
	assert.Equal(t, NavigateMsg{Destination: route.DestLogin, State: route.Unauthenticated()}, s.msgs[1])
	assert.IsType(t, ErrorMsg{}, s.msgs[2])

	a.Navigate(route.DestMain, route.Complete("t1"))
	assert.Len(t, s.msgs, 3, "messages after Close are dropped")
}

func TestViewsRenderHelp(t *testing.T) {
	m := navigate(t, NewModel(context.Background(), &fakeActions{}), route.DestMain, route.Complete("t1"))
	view := m.View()
	assert.True(t, strings.Contains(view, "switch team"))
	assert.Contains(t, view, "Signed in as")
}

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) renderHeader(b *strings.Builder, title string) {
	b.WriteString(m.styles.Title.Render(title))
	b.WriteString("\n")
	if m.profile.LoggedIn && m.profile.DisplayName != "" {
		b.WriteString(m.styles.Muted.Render("Signed in as ") + m.styles.Subtitle.Render(m.profile.DisplayName))
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

// renderFooter shows the busy spinner, the last error or notice, and the
// key help line.
func (m Model) renderFooter(b *strings.Builder, keys ...[2]string) {
	if m.busy != "" {
		b.WriteString(m.spinner.View() + " " + m.styles.Status.Render(m.busy))
		b.WriteString("\n\n")
	}
	if m.lastError != "" {
		errorBox := m.styles.Border.
			BorderForeground(lipgloss.Color("196")). // Red border
			Render(m.styles.Error.Render("Error: ") + m.lastError)
		b.WriteString(errorBox)
		b.WriteString("\n\n")
	}
	if m.notice != "" {
		b.WriteString(m.styles.Warning.Render(m.notice))
		b.WriteString("\n\n")
	}
	b.WriteString(m.renderHelpLine(keys...))
}

func (m Model) renderLoading() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("OFlow"))
	b.WriteString("\n\n")
	b.WriteString(m.spinner.View() + " " + m.styles.Muted.Render("Loading your account..."))
	b.WriteString("\n\n")
	b.WriteString(m.renderHelpLine([2]string{"q", "quit"}))
	return b.String()
}

func (m Model) renderLogin() string {
	var b strings.Builder
	m.renderHeader(&b, "Welcome to OFlow")
	b.WriteString(m.styles.Subtitle.Render("Log in to manage your shop's LINE orders."))
	b.WriteString("\n\n")
	b.WriteString(m.styles.Key.Render("[l]") + " " + m.styles.KeyDesc.Render("Log in with LINE"))
	b.WriteString("\n")
	b.WriteString(m.styles.Key.Render("[a]") + " " + m.styles.KeyDesc.Render("Sign in with Apple"))
	b.WriteString("\n\n")
	m.renderFooter(&b, [2]string{"l", "LINE"}, [2]string{"a", "Apple"}, [2]string{"q", "quit"})
	return b.String()
}

func (m Model) renderTeamSelect() string {
	var b strings.Builder
	m.renderHeader(&b, "Choose a team")

	if len(m.teams) == 0 {
		b.WriteString(m.styles.Muted.Render("You are not a member of any team yet."))
		b.WriteString("\n")
		b.WriteString(m.styles.Muted.Render("Create one with 'oflow teams create' or join with 'oflow teams join'."))
		b.WriteString("\n\n")
	}

	for i, t := range m.teams {
		line := TeamLabel(t)
		if i == m.cursor {
			b.WriteString(m.styles.Highlighted.Render(">") + " " + m.styles.Status.Render(line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	if len(m.teams) > 0 {
		b.WriteString("\n")
	}

	m.renderFooter(&b,
		[2]string{"↑/↓", "move"},
		[2]string{"enter", "select"},
		[2]string{"r", "refresh"},
		[2]string{"o", "log out"},
		[2]string{"q", "quit"},
	)
	return b.String()
}

func (m Model) renderChannelSetup() string {
	var b strings.Builder
	m.renderHeader(&b, "Connect a LINE channel")

	name := m.state.TeamName
	if name == "" {
		name = m.state.TeamID
	}
	body := fmt.Sprintf("%s has no LINE Official Account connected yet.\n\n"+
		"Connect the channel in the OFlow app or the LINE Developers console,\n"+
		"then press r to check again.", m.styles.Status.Render(name))
	b.WriteString(m.styles.Border.Render(body))
	b.WriteString("\n\n")

	m.renderFooter(&b,
		[2]string{"r", "check again"},
		[2]string{"t", "switch team"},
		[2]string{"o", "log out"},
		[2]string{"q", "quit"},
	)
	return b.String()
}

func (m Model) renderMain() string {
	var b strings.Builder
	m.renderHeader(&b, "OFlow")

	team := m.state.TeamID
	for _, t := range m.teams {
		if t.TeamID == m.state.TeamID {
			team = TeamLabel(t)
			break
		}
	}
	b.WriteString(m.styles.Muted.Render("Team: ") + m.styles.Success.Render(team))
	b.WriteString("\n\n")
	b.WriteString(m.styles.Subtitle.Render("Your team is ready. Orders arrive through your LINE channel."))
	b.WriteString("\n\n")

	m.renderFooter(&b,
		[2]string{"t", "switch team"},
		[2]string{"o", "log out"},
		[2]string{"q", "quit"},
	)
	return b.String()
}

func (m Model) renderError() string {
	var b strings.Builder
	m.renderHeader(&b, "Could not load your teams")
	b.WriteString(m.styles.Muted.Render("You are still logged in. Check your connection and retry."))
	b.WriteString("\n\n")
	m.renderFooter(&b,
		[2]string{"r", "retry"},
		[2]string{"o", "log out"},
		[2]string{"q", "quit"},
	)
	return b.String()
}

// renderHelpLine renders the help line at the bottom
func (m Model) renderHelpLine(keys ...[2]string) string {
	items := make([]string, 0, len(keys))
	for _, k := range keys {
		items = append(items, m.styles.Key.Render(k[0])+" "+k[1])
	}
	return m.styles.Help.Render(strings.Join(items, " • "))
}

// Package route derives where the user belongs from their identity and team
// memberships, and drives navigation when that answer changes.
package route

import "fmt"

// Tag identifies a State variant.
type Tag int

// State variants
const (
	TagUnauthenticated Tag = iota
	TagNoTeam
	TagIncomplete
	TagComplete
)

func (t Tag) String() string {
	switch t {
	case TagUnauthenticated:
		return "unauthenticated"
	case TagNoTeam:
		return "authenticated_no_team"
	case TagIncomplete:
		return "authenticated_incomplete"
	case TagComplete:
		return "authenticated_complete"
	}
	return fmt.Sprintf("tag(%d)", int(t))
}

// State is the derived route. TeamID is set for TagIncomplete and
// TagComplete; TeamName only for TagIncomplete.
type State struct {
	Tag      Tag
	TeamID   string
	TeamName string
}

// Unauthenticated is the logged-out state.
func Unauthenticated() State { return State{Tag: TagUnauthenticated} }

// NoTeam is a logged-in user without a usable team selection.
func NoTeam() State { return State{Tag: TagNoTeam} }

// Incomplete is a selected team that still needs a LINE channel.
func Incomplete(teamID, teamName string) State {
	return State{Tag: TagIncomplete, TeamID: teamID, TeamName: teamName}
}

// Complete is a selected, fully set up team.
func Complete(teamID string) State {
	return State{Tag: TagComplete, TeamID: teamID}
}

func (s State) String() string {
	switch s.Tag {
	case TagIncomplete:
		return fmt.Sprintf("%s(%s, %q)", s.Tag, s.TeamID, s.TeamName)
	case TagComplete:
		return fmt.Sprintf("%s(%s)", s.Tag, s.TeamID)
	}
	return s.Tag.String()
}

// Destination is a screen.
type Destination string

// Screens
const (
	DestLogin        Destination = "login"
	DestTeamSelect   Destination = "team_select"
	DestChannelSetup Destination = "channel_setup"
	DestMain         Destination = "main"
)

// Destination maps each state to its screen.
func (s State) Destination() Destination {
	switch s.Tag {
	case TagNoTeam:
		return DestTeamSelect
	case TagIncomplete:
		return DestChannelSetup
	case TagComplete:
		return DestMain
	}
	return DestLogin
}

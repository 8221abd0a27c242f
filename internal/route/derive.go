package route

import "github.com/supermanko1102/oflow-monorepo-sub001/internal/teams"

// Derive computes the route. An empty currentTeamID means no selection and
// nil memberships mean the list has not loaded; both, like a selection that
// is no longer in the list, resolve to NoTeam.
func Derive(loggedIn bool, currentTeamID string, memberships []teams.Membership) State {
	if !loggedIn {
		return Unauthenticated()
	}
	if currentTeamID == "" || memberships == nil {
		return NoTeam()
	}

	team, ok := teams.Find(memberships, currentTeamID)
	if !ok {
		return NoTeam()
	}
	if !team.Complete() {
		return Incomplete(team.TeamID, team.TeamName)
	}
	return Complete(team.TeamID)
}

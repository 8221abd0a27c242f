package route

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/teams"
)

func genMemberships() *rapid.Generator[[]teams.Membership] {
	return rapid.Custom(func(t *rapid.T) []teams.Membership {
		if rapid.Bool().Draw(t, "not_loaded") {
			return nil
		}
		n := rapid.IntRange(0, 6).Draw(t, "n")
		list := make([]teams.Membership, n)
		for i := range list {
			list[i] = teams.Membership{
				TeamID:      fmt.Sprintf("team-%d", i),
				TeamName:    rapid.StringMatching(`[A-Za-z ]{1,12}`).Draw(t, "team_name"),
				Role:        rapid.SampledFrom([]teams.Role{teams.RoleOwner, teams.RoleAdmin, teams.RoleMember}).Draw(t, "role"),
				MemberCount: rapid.IntRange(1, 20).Draw(t, "member_count"),
			}
			if rapid.Bool().Draw(t, "has_channel") {
				id := fmt.Sprintf("16%08d", i)
				list[i].LineChannelID = &id
			}
		}
		return list
	})
}

// genTeamID draws "", an id that may exist, or one that never does.
func genTeamID() *rapid.Generator[string] {
	return rapid.OneOf(
		rapid.Just(""),
		rapid.Custom(func(t *rapid.T) string {
			return fmt.Sprintf("team-%d", rapid.IntRange(0, 6).Draw(t, "idx"))
		}),
		rapid.Just("deleted-team"),
	)
}

// TestDerive_LoggedOutIsAlwaysUnauthenticated checks rule 1 dominates every other input.
func TestDerive_LoggedOutIsAlwaysUnauthenticated(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		teamID := genTeamID().Draw(t, "team_id")
		list := genMemberships().Draw(t, "teams")

		if got := Derive(false, teamID, list); got != Unauthenticated() {
			t.Fatalf("Derive(false, %q, ...) = %v, want unauthenticated", teamID, got)
		}
	})
}

// TestDerive_NoSelectionOrNoListIsNoTeam checks a missing selection or an unloaded list never resolves a team.
func TestDerive_NoSelectionOrNoListIsNoTeam(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		list := genMemberships().Draw(t, "teams")
		if got := Derive(true, "", list); got != NoTeam() {
			t.Fatalf("empty selection derived %v", got)
		}

		teamID := genTeamID().Draw(t, "team_id")
		if got := Derive(true, teamID, nil); got != NoTeam() {
			t.Fatalf("unloaded list derived %v", got)
		}
	})
}

// TestDerive_MatchesMembership checks rules 3 to 5 against a direct lookup.
func TestDerive_MatchesMembership(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		teamID := genTeamID().Draw(t, "team_id")
		list := genMemberships().Draw(t, "teams")

		got := Derive(true, teamID, list)

		team, found := teams.Find(list, teamID)
		switch {
		case teamID == "" || list == nil || !found:
			if got.Tag != TagNoTeam {
				t.Fatalf("unresolvable team %q derived %v", teamID, got)
			}
		case team.LineChannelID == nil:
			if got != Incomplete(team.TeamID, team.TeamName) {
				t.Fatalf("team without channel derived %v", got)
			}
		default:
			if got != Complete(team.TeamID) {
				t.Fatalf("complete team derived %v", got)
			}
		}
	})
}

// TestDerive_IsDeterministic checks the function is pure.
func TestDerive_IsDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		loggedIn := rapid.Bool().Draw(t, "logged_in")
		teamID := genTeamID().Draw(t, "team_id")
		list := genMemberships().Draw(t, "teams")

		first := Derive(loggedIn, teamID, list)
		for i := 0; i < 3; i++ {
			if again := Derive(loggedIn, teamID, list); again != first {
				t.Fatalf("Derive not deterministic: %v then %v", first, again)
			}
		}
	})
}

// TestDerive_DestinationIsTotal checks every derived state maps to one of the four screens.
func TestDerive_DestinationIsTotal(t *testing.T) {
	valid := map[Destination]Tag{
		DestLogin:        TagUnauthenticated,
		DestTeamSelect:   TagNoTeam,
		DestChannelSetup: TagIncomplete,
		DestMain:         TagComplete,
	}

	rapid.Check(t, func(t *rapid.T) {
		s := Derive(rapid.Bool().Draw(t, "logged_in"), genTeamID().Draw(t, "team_id"), genMemberships().Draw(t, "teams"))
		tag, ok := valid[s.Destination()]
		if !ok || tag != s.Tag {
			t.Fatalf("state %v mapped to %q", s, s.Destination())
		}
	})
}

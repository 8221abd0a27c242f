// Package teams fetches the merchant's team memberships and caches them for
// the route guard.
package teams

// Role is the caller's role within a team.
type Role string

// Roles
const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// Membership is one team the user belongs to.
type Membership struct {
	TeamID             string  `json:"team_id"`
	TeamName           string  `json:"team_name"`
	TeamSlug           string  `json:"team_slug,omitempty"`
	Role               Role    `json:"role"`
	MemberCount        int     `json:"member_count"`
	LineChannelID      *string `json:"line_channel_id"`
	LineChannelName    string  `json:"line_channel_name,omitempty"`
	SubscriptionStatus string  `json:"subscription_status,omitempty"`
}

// Complete reports whether a LINE channel has been attached to the team.
func (m Membership) Complete() bool {
	return m.LineChannelID != nil && *m.LineChannelID != ""
}

// Find returns the membership with teamID.
func Find(teams []Membership, teamID string) (Membership, bool) {
	for _, t := range teams {
		if t.TeamID == teamID {
			return t, true
		}
	}
	return Membership{}, false
}

// Package callback parses the redirect URL the backend sends a finished
// login to, whether it arrives through the loopback listener or as a deep link.
package callback

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/teams"
)

// Profile is the user's display identity returned with a login.
type Profile struct {
	LineUserID  string `json:"line_user_id,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	PictureURL  string `json:"picture_url,omitempty"`
}

// Payload is a parsed login redirect.
type Payload struct {
	Error            string
	ErrorDescription string

	AccessToken  string
	RefreshToken string
	State        string
	Profile      Profile

	// Teams is nil when the redirect carried no parseable team list.
	Teams []teams.Membership
}

// Failed reports whether the backend redirected with an error.
func (p Payload) Failed() bool {
	return p.Error != ""
}

// HasTokens reports whether both tokens are present.
func (p Payload) HasTokens() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

// Parse reads a redirect URL. Parameters may be in the query or, as some
// providers send them, in the fragment; query values win.
func Parse(raw string) (Payload, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Payload{}, fmt.Errorf("invalid callback URL: %w", err)
	}

	params := u.Query()
	if u.Fragment != "" {
		frag, err := url.ParseQuery(u.Fragment)
		if err == nil {
			for k, vs := range frag {
				if params.Get(k) == "" {
					params[k] = vs
				}
			}
		}
	}

	p := Payload{
		Error:            params.Get("error"),
		ErrorDescription: params.Get("error_description"),
		AccessToken:      params.Get("access_token"),
		RefreshToken:     params.Get("refresh_token"),
		State:            params.Get("state"),
		Profile: Profile{
			LineUserID:  params.Get("line_user_id"),
			UserID:      params.Get("user_id"),
			DisplayName: params.Get("display_name"),
			PictureURL:  params.Get("picture_url"),
		},
		Teams: parseTeams(params.Get("teams")),
	}

	if !p.Failed() && !p.HasTokens() {
		return p, fmt.Errorf("callback URL carries neither an error nor a token pair")
	}
	return p, nil
}

// parseTeams decodes the teams parameter. url.Values has already undone one
// level of escaping; a second level is tolerated.
func parseTeams(raw string) []teams.Membership {
	if raw == "" {
		return nil
	}
	if !strings.HasPrefix(strings.TrimSpace(raw), "[") {
		if unescaped, err := url.QueryUnescape(raw); err == nil {
			raw = unescaped
		}
	}

	var list []teams.Membership
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil
	}
	if list == nil {
		return []teams.Membership{}
	}
	return list
}

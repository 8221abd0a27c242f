// Package identity holds the persisted "who is logged in" state and the
// hydration latch every routing decision waits on.
package identity

import (
	"encoding/json"
)

// Identity is the persisted login state. Hydrated is recomputed every launch.
type Identity struct {
	LoggedIn      bool   `json:"isLoggedIn"`
	LineUserID    string `json:"lineUserId,omitempty"`
	UserID        string `json:"userId,omitempty"`
	DisplayName   string `json:"userName,omitempty"`
	PictureURL    string `json:"userPictureUrl,omitempty"`
	AccessToken   string `json:"accessToken,omitempty"`
	CurrentTeamID string `json:"currentTeamId,omitempty"`

	Hydrated bool `json:"-"`
}

// persisted is the envelope older clients wrote: {"state": {...}, "version": 0}.
type persisted struct {
	State   *Identity `json:"state"`
	Version int       `json:"version"`
}

// decode accepts both the flat object and the enveloped form. Anything
// unreadable decodes to the zero Identity.
func decode(raw string) (Identity, bool) {
	var env persisted
	if err := json.Unmarshal([]byte(raw), &env); err == nil && env.State != nil {
		return *env.State, true
	}

	var id Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		return Identity{}, false
	}
	return id, true
}

func encode(id Identity) (string, error) {
	data, err := json.Marshal(id)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Package oauth drives the LINE and Apple login handshakes. Flows return
// what the provider issued and never touch the identity store.
package oauth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/callback"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/errors"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/teams"
)

// Providers
const (
	ProviderLINE  = "line"
	ProviderApple = "apple"
)

// ErrCancelled is returned (match with errors.Is) when the user backs out
// of a sign-in that reports cancellation as an error.
var ErrCancelled = errors.New(errors.ErrCodeAuthCancelled, "sign-in cancelled")

// Result is a successful provider login.
type Result struct {
	Provider     string
	AccessToken  string
	RefreshToken string
	Profile      callback.Profile
	// Teams is nil when the backend did not send a list.
	Teams []teams.Membership
}

// Payload converts r into the shape callback ingestion consumes.
func (r *Result) Payload() callback.Payload {
	return callback.Payload{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		Profile:      r.Profile,
		Teams:        r.Teams,
	}
}

// randomString returns n random bytes, base64url encoded.
func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate random string: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

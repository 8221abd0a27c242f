// Package session owns the backend session: the token pair issued by the
// identity provider, its validation, and the single-flight handling of
// authorization failures.
package session

import (
	"context"
	"time"
)

// User is the backend account a session belongs to.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Session is the token pair issued by the identity provider.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	// ExpiresAt is a Unix timestamp in seconds; zero means unknown.
	ExpiresAt int64 `json:"expires_at,omitempty"`
	User      User  `json:"user"`
}

// Expiry returns the access token expiry, if known.
func (s *Session) Expiry() (time.Time, bool) {
	if s == nil || s.ExpiresAt == 0 {
		return time.Time{}, false
	}
	return time.Unix(s.ExpiresAt, 0), true
}

// ExpiresWithin reports whether the access token expires before now+d.
// A session with unknown expiry never does.
func (s *Session) ExpiresWithin(now time.Time, d time.Duration) bool {
	exp, ok := s.Expiry()
	if !ok {
		return false
	}
	return !now.Add(d).Before(exp)
}

// Event is an auth state change emitted by a Provider.
type Event string

// Auth state change events
const (
	EventSignedIn       Event = "SIGNED_IN"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
	EventSignedOut      Event = "SIGNED_OUT"
	EventSessionExpired Event = "SESSION_EXPIRED"
)

// Listener receives auth state changes. The session is nil for
// EventSignedOut and EventSessionExpired.
type Listener func(Event, *Session)

// Provider is the identity provider client.
type Provider interface {
	// GetSession returns the current session, refreshing it when it is
	// about to expire. It returns nil without error when there is none.
	GetSession(ctx context.Context) (*Session, error)

	// SetSession installs a token pair issued elsewhere, replacing any
	// current session.
	SetSession(ctx context.Context, accessToken, refreshToken string) (*Session, error)

	// SignOut revokes and forgets the current session.
	SignOut(ctx context.Context) error

	// OnAuthStateChange registers l and returns a function that removes it.
	OnAuthStateChange(l Listener) (unsubscribe func())
}

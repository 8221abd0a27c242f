package session

import (
	"context"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/errors"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/log"
)

// Validator answers "is there a live backend session?" on behalf of the
// identity store and the login flows.
type Validator struct {
	provider Provider
	logger   *log.Logger
}

// NewValidator wraps provider.
func NewValidator(provider Provider, logger *log.Logger) *Validator {
	if logger == nil {
		logger = log.Nop()
	}
	return &Validator{provider: provider, logger: logger.Named("session")}
}

// CurrentSession returns the live session or nil. It never fails; transport
// and provider errors are logged and reported as no session.
func (v *Validator) CurrentSession(ctx context.Context) *Session {
	s, err := v.provider.GetSession(ctx)
	if err != nil {
		v.logger.WithError(err).Debug("session lookup failed")
		return nil
	}
	return s
}

// InstallSession makes the token pair the current session. Any provider
// failure, or a provider that returns no user, is a SESSION-001 error.
func (v *Validator) InstallSession(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	s, err := v.provider.SetSession(ctx, accessToken, refreshToken)
	if err != nil {
		return nil, errors.NewSessionInstallError(err)
	}
	if s == nil || s.User.ID == "" {
		return nil, errors.NewSessionInstallError(nil)
	}
	return s, nil
}

// AccessToken returns the bearer token for authenticated API calls.
func (v *Validator) AccessToken(ctx context.Context) (string, error) {
	s, err := v.provider.GetSession(ctx)
	if err != nil {
		return "", err
	}
	if s == nil {
		return "", errors.NewNotLoggedInError()
	}
	return s.AccessToken, nil
}

// OnExpired calls fn whenever the provider independently decides the
// session has expired.
func (v *Validator) OnExpired(fn func()) (unsubscribe func()) {
	return v.provider.OnAuthStateChange(func(e Event, _ *Session) {
		if e == EventSessionExpired {
			fn()
		}
	})
}

// SignOut ends the provider session.
func (v *Validator) SignOut(ctx context.Context) error {
	return v.provider.SignOut(ctx)
}

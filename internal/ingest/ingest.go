// Package ingest turns a finished login into client state: it installs the
// backend session, seeds the team directory and records the identity.
package ingest

import (
	"context"
	"fmt"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/callback"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/errors"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/log"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/metrics"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/oauth"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/session"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/teams"
)

// SessionInstaller makes a token pair the current backend session.
type SessionInstaller interface {
	InstallSession(ctx context.Context, accessToken, refreshToken string) (*session.Session, error)
}

// TeamSeeder accepts a membership list delivered with the login.
type TeamSeeder interface {
	Seed(teams []teams.Membership)
}

// IdentityRecorder records who logged in.
type IdentityRecorder interface {
	LoginWithProvider(lineUserID, userID, displayName, pictureURL, accessToken string)
}

// Ingester is the one place a login result becomes client state.
type Ingester struct {
	sessions SessionInstaller
	teams    TeamSeeder
	ids      IdentityRecorder
	metrics  *metrics.Metrics
	logger   *log.Logger
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(i *Ingester) { i.logger = l.Named("ingest") }
}

// WithMetrics counts failures by error code.
func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Ingester) { i.metrics = m }
}

// New creates an Ingester.
func New(sessions SessionInstaller, seeder TeamSeeder, ids IdentityRecorder, opts ...Option) *Ingester {
	i := &Ingester{
		sessions: sessions,
		teams:    seeder,
		ids:      ids,
		logger:   log.Nop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Ingest applies p. An error payload or a rejected session leaves every
// piece of client state untouched.
func (i *Ingester) Ingest(ctx context.Context, provider string, p callback.Payload) (*session.Session, error) {
	s, err := i.ingest(ctx, provider, p)
	if err != nil {
		i.metrics.RecordError(string(errors.CodeOf(err)), "ingest")
		i.logger.WithError(err).Warn("login not ingested", "provider", provider)
		return nil, err
	}
	return s, nil
}

func (i *Ingester) ingest(ctx context.Context, provider string, p callback.Payload) (*session.Session, error) {
	if p.Failed() {
		reason := p.Error
		if p.ErrorDescription != "" {
			reason += ": " + p.ErrorDescription
		}
		return nil, errors.NewLoginFailedError(providerName(provider), fmt.Errorf("%s", reason))
	}
	if !p.HasTokens() {
		return nil, errors.New(errors.ErrCodeAuthInvalidResponse, "login callback is missing the session tokens")
	}

	s, err := i.sessions.InstallSession(ctx, p.AccessToken, p.RefreshToken)
	if err != nil {
		return nil, err
	}

	if p.Teams != nil {
		i.teams.Seed(p.Teams)
	}

	userID := p.Profile.UserID
	if userID == "" {
		userID = s.User.ID
	}
	i.ids.LoginWithProvider(p.Profile.LineUserID, userID, p.Profile.DisplayName, p.Profile.PictureURL, s.AccessToken)

	i.logger.Info("login ingested", "provider", provider, "user_id", userID, "teams_seeded", p.Teams != nil)
	return s, nil
}

// Result ingests what a login flow returned.
func (i *Ingester) Result(ctx context.Context, r *oauth.Result) (*session.Session, error) {
	return i.Ingest(ctx, r.Provider, r.Payload())
}

// Link ingests a deep link or pasted callback URL. Links are always the
// LINE redirect; Apple completes in-process.
func (i *Ingester) Link(ctx context.Context, rawURL string) (*session.Session, error) {
	p, err := callback.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeAuthInvalidResponse, "not an OFlow login link", err).
			WithSuggestion("Paste the full URL the browser finished on")
	}
	return i.Ingest(ctx, oauth.ProviderLINE, p)
}

func providerName(provider string) string {
	switch provider {
	case oauth.ProviderLINE:
		return "LINE"
	case oauth.ProviderApple:
		return "Apple"
	default:
		return "Login"
	}
}

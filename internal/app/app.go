// Package app wires the client together: storage, the backend session, the
// identity store, the team directory, the single-flight reconciler and the
// route guard.
package app

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/config"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/errors"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/identity"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/ingest"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/log"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/metrics"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/oauth"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/platform"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/route"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/session"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/storage"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/teams"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/version"
)

// LoginTimeout bounds how long a browser login may stay open.
const LoginTimeout = 5 * time.Minute

// Login outcomes recorded in metrics
const (
	outcomeSuccess   = "success"
	outcomeCancelled = "cancelled"
	outcomeFailed    = "failed"
)

// Options configures New. Only Config is required.
type Options struct {
	Config *config.Config
	Logger *log.Logger

	// KV overrides the configured storage backend.
	KV storage.KV

	// Registry receives the client metrics. A private one is created if nil.
	Registry *prometheus.Registry

	HTTPClient *http.Client

	// Browser creates the browser for one login. Defaults to a loopback
	// browser that opens the system browser.
	Browser func() (oauth.Browser, error)

	// Notice is shown the auth and cancel URLs when the loopback browser opens.
	Notice func(authURL, cancelURL string)

	// AppleSignIn replaces the web Sign in with Apple flow.
	AppleSignIn oauth.NativeSignIn

	// AppleKeySet replaces Apple's published signing keys.
	AppleKeySet oidc.KeySet
}

// App is one running client.
type App struct {
	Config   *config.Config
	Logger   *log.Logger
	KV       storage.KV
	API      *platform.Client
	Sessions *session.GoTrueClient

	Validator   *session.Validator
	Store       *identity.Store
	TeamsClient *teams.Client
	Directory   *teams.Directory
	Reconciler  *session.Reconciler
	Ingester    *ingest.Ingester

	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	opts   Options
	unsubs []func()
}

// New builds the object graph. Nothing touches the network or storage
// until Hydrate or a command runs.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.NewConfigInvalidError("no configuration loaded")
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.L()
	}

	kv := opts.KV
	if kv == nil {
		var err error
		kv, err = storage.Open(cfg.Storage)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreBackend, "failed to open storage", err).
				WithSuggestion("Check storage.backend in ~/.oflow/config.yaml")
		}
	}

	reg := opts.Registry
	var m *metrics.Metrics
	if reg == nil {
		reg, m = metrics.NewRegistry()
	} else {
		m = metrics.NewMetrics(reg)
	}

	apiOpts := []platform.Option{
		platform.WithAnonKey(cfg.API.AnonKey),
		platform.WithTimeout(cfg.API.Timeout),
		platform.WithLogger(logger),
	}
	if opts.HTTPClient != nil {
		apiOpts = append(apiOpts, platform.WithHTTPClient(opts.HTTPClient))
	}
	api := platform.NewClient(cfg.API.URL, apiOpts...)

	a := &App{
		Config:   cfg,
		Logger:   logger,
		KV:       kv,
		API:      api,
		Registry: reg,
		Metrics:  m,
		opts:     opts,
	}

	a.Sessions = session.NewGoTrueClient(api, kv, session.WithLogger(logger))
	a.Validator = session.NewValidator(a.Sessions, logger)
	a.Store = identity.NewStore(kv, a.Validator, identity.WithLogger(logger), identity.WithMetrics(m))

	// The directory is reset by the reconciler, and its client reports 401s
	// to the reconciler.
	a.Reconciler = session.NewReconciler(a.Store, a.Validator, m, logger, func() { a.Directory.Reset() })
	a.TeamsClient = teams.NewClient(api, a.Validator,
		teams.WithRetries(cfg.API.Retries),
		teams.WithObserver(a.Reconciler),
		teams.WithClientMetrics(m),
		teams.WithClientLogger(logger),
	)
	a.Directory = teams.NewDirectory(a.TeamsClient,
		teams.WithDirectoryMetrics(m),
		teams.WithDirectoryLogger(logger),
	)
	a.Ingester = ingest.New(a.Validator, a.Directory, a.Store,
		ingest.WithLogger(logger),
		ingest.WithMetrics(m),
	)

	a.unsubs = append(a.unsubs,
		a.Reconciler.Watch(a.Validator),
		a.Sessions.OnAuthStateChange(func(e session.Event, s *session.Session) {
			if e == session.EventTokenRefreshed && s != nil {
				a.Store.SetAccessToken(s.AccessToken)
			}
		}),
	)

	logger.Debug("client assembled", "api", cfg.API.URL, "storage", cfg.Storage.Backend, "user_agent", version.UserAgent())
	return a, nil
}

// Hydrate restores and reconciles the persisted identity. Routing waits on it.
func (a *App) Hydrate(ctx context.Context) identity.Identity {
	return a.Store.Load(ctx)
}

// Start attaches a route guard driving nav. Call it before or after
// Hydrate; the guard stays pending until hydration completes.
func (a *App) Start(ctx context.Context, nav route.Navigator) (*route.Guard, func()) {
	guard := route.NewGuard(nav, route.WithMetrics(a.Metrics), route.WithLogger(a.Logger))
	stop := guard.Watch(ctx, a.Store, a.Directory)
	return guard, stop
}

// Login runs a provider flow and ingests its result. A cancelled login
// returns oauth.ErrCancelled and changes nothing.
func (a *App) Login(ctx context.Context, provider string) error {
	ctx, cancel := context.WithTimeout(ctx, LoginTimeout)
	defer cancel()

	start := time.Now()
	res, err := a.runFlow(ctx, provider)
	if err == nil && res == nil {
		err = oauth.ErrCancelled
	}
	if err == nil {
		_, err = a.Ingester.Result(ctx, res)
	}

	switch {
	case err == nil:
		a.Metrics.RecordLogin(provider, outcomeSuccess, time.Since(start))
	case errors.CodeOf(err) == errors.ErrCodeAuthCancelled:
		a.Metrics.RecordLogin(provider, outcomeCancelled, time.Since(start))
	default:
		a.Metrics.RecordLogin(provider, outcomeFailed, time.Since(start))
		a.Metrics.RecordError(string(errors.CodeOf(err)), "login")
	}
	return err
}

func (a *App) runFlow(ctx context.Context, provider string) (*oauth.Result, error) {
	switch provider {
	case oauth.ProviderLINE:
		cfg := oauth.LINEConfig{
			ChannelID:   a.Config.LINE.ChannelID,
			CallbackURL: a.Config.LINECallbackURL(),
			Scopes:      a.Config.LINE.Scopes,
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		browser, err := a.newBrowser()
		if err != nil {
			return nil, err
		}
		defer closeBrowser(browser)
		return oauth.NewLINEFlow(cfg, a.KV, browser, a.Logger).Login(ctx)

	case oauth.ProviderApple:
		cfg := oauth.AppleConfig{ClientID: a.Config.Apple.ClientID}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		native := a.opts.AppleSignIn
		if native == nil {
			browser, err := a.newBrowser()
			if err != nil {
				return nil, err
			}
			defer closeBrowser(browser)
			native = &oauth.WebAppleSignIn{
				ClientID: a.Config.Apple.ClientID,
				RelayURL: a.Config.AppleRelayURL(),
				Browser:  browser,
			}
		}
		keySet := a.opts.AppleKeySet
		if keySet == nil {
			keySet = oauth.NewAppleKeySet(ctx)
		}
		flow := oauth.NewAppleFlow(cfg, native, keySet, a.API, a.Logger)
		return flow.Login(ctx)
	}
	return nil, errors.New(errors.ErrCodeAuthNotConfigured, "unknown login provider: "+provider).
		WithSuggestion("Use 'line' or 'apple'")
}

func (a *App) newBrowser() (oauth.Browser, error) {
	if a.opts.Browser != nil {
		return a.opts.Browser()
	}
	opts := []oauth.LoopbackOption{oauth.WithBrowserLogger(a.Logger)}
	if a.opts.Notice != nil {
		opts = append(opts, oauth.WithNotice(a.opts.Notice))
	}
	return oauth.NewLoopbackBrowser("127.0.0.1:0", opts...)
}

func closeBrowser(b oauth.Browser) {
	if c, ok := b.(io.Closer); ok {
		_ = c.Close()
	}
}

// Link ingests a deep link or pasted callback URL.
func (a *App) Link(ctx context.Context, rawURL string) error {
	_, err := a.Ingester.Link(ctx, rawURL)
	return err
}

// Logout clears the identity and the team cache, then ends the backend
// session. The local state is cleared even when sign-out fails.
func (a *App) Logout(ctx context.Context) error {
	a.Store.Logout()
	a.Directory.Reset()
	if err := a.Validator.SignOut(ctx); err != nil {
		a.Logger.WithError(err).Warn("backend sign out failed")
		return err
	}
	return nil
}

// SelectTeam records the team selection without validating it.
func (a *App) SelectTeam(teamID string) {
	a.Store.SetCurrentTeamID(teamID)
}

// UseTeam selects teamID after checking the caller belongs to it.
func (a *App) UseTeam(ctx context.Context, teamID string) (*teams.Membership, error) {
	list, err := a.ListTeams(ctx)
	if err != nil {
		return nil, err
	}
	m, ok := teams.Find(list, teamID)
	if !ok {
		return nil, errors.NewTeamNotFoundError(teamID)
	}
	a.Store.SetCurrentTeamID(teamID)
	return &m, nil
}

// ListTeams returns the cached list, fetching it when none has loaded.
func (a *App) ListTeams(ctx context.Context) ([]teams.Membership, error) {
	if err := a.requireLogin(); err != nil {
		return nil, err
	}
	if view := a.Directory.Snapshot(); view.Status == teams.StatusLoaded {
		return view.Teams, nil
	}
	return a.Directory.Fetch(ctx)
}

// RetryTeams refetches the membership list.
func (a *App) RetryTeams(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	_, err := a.Directory.Fetch(ctx)
	return err
}

// CreateTeam creates a team owned by the caller and selects it.
func (a *App) CreateTeam(ctx context.Context, req teams.CreateRequest) (*teams.Membership, error) {
	if err := a.requireLogin(); err != nil {
		return nil, err
	}
	m, err := a.TeamsClient.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	return m, a.afterMembershipChange(ctx, m)
}

// JoinTeam joins a team by invite code and selects it.
func (a *App) JoinTeam(ctx context.Context, inviteCode string) (*teams.Membership, error) {
	if err := a.requireLogin(); err != nil {
		return nil, err
	}
	m, err := a.TeamsClient.Join(ctx, inviteCode)
	if err != nil {
		return nil, err
	}
	return m, a.afterMembershipChange(ctx, m)
}

// LeaveTeam leaves teamID. Leaving the selected team clears the selection.
func (a *App) LeaveTeam(ctx context.Context, teamID string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	if err := a.TeamsClient.Leave(ctx, teamID); err != nil {
		return err
	}
	if a.Store.Snapshot().CurrentTeamID == teamID {
		a.Store.SetCurrentTeamID("")
	}
	return a.afterMembershipChange(ctx, nil)
}

func (a *App) afterMembershipChange(ctx context.Context, selected *teams.Membership) error {
	if selected != nil && selected.TeamID != "" {
		a.Store.SetCurrentTeamID(selected.TeamID)
	}
	a.Directory.Reset()
	_, err := a.Directory.Fetch(ctx)
	return err
}

// Identity returns the current identity.
func (a *App) Identity() identity.Identity {
	return a.Store.Snapshot()
}

// Teams returns the last loaded membership list.
func (a *App) Teams() []teams.Membership {
	return a.Directory.Snapshot().Teams
}

// RouteState hydrates if needed, loads teams for a logged-in user and
// derives where they belong. Used by non-interactive commands.
func (a *App) RouteState(ctx context.Context) (route.State, error) {
	id := a.Hydrate(ctx)
	if !id.LoggedIn {
		return route.Unauthenticated(), nil
	}
	list, err := a.ListTeams(ctx)
	if err != nil {
		return route.State{}, err
	}
	id = a.Store.Snapshot()
	return route.Derive(id.LoggedIn, id.CurrentTeamID, list), nil
}

// ServeMetrics exposes the registry on addr until ctx is cancelled.
func (a *App) ServeMetrics(ctx context.Context, addr string) (string, <-chan error, error) {
	return metrics.Serve(ctx, addr, a.Registry)
}

func (a *App) requireLogin() error {
	id := a.Store.Snapshot()
	if !id.Hydrated || !id.LoggedIn {
		return errors.NewNotLoggedInError()
	}
	return nil
}

// Close unsubscribes listeners and releases the storage backend.
func (a *App) Close() error {
	for _, unsub := range a.unsubs {
		unsub()
	}
	a.unsubs = nil
	if c, ok := a.KV.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/errors"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/log"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/platform"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/storage"
)

// DefaultRefreshSkew refreshes access tokens this long before they expire.
const DefaultRefreshSkew = 60 * time.Second

// GoTrueClient speaks the Supabase Auth REST dialect and keeps the current
// session in a storage.KV under storage.KeySession.
type GoTrueClient struct {
	api    *platform.Client
	kv     storage.KV
	logger *log.Logger
	skew   time.Duration
	now    func() time.Time

	// refreshMu serialises refreshes so concurrent callers do not spend the
	// same single-use refresh token twice.
	refreshMu sync.Mutex

	mu        sync.Mutex
	listeners map[int]Listener
	nextID    int
}

// GoTrueOption configures a GoTrueClient.
type GoTrueOption func(*GoTrueClient)

// WithRefreshSkew overrides DefaultRefreshSkew.
func WithRefreshSkew(d time.Duration) GoTrueOption {
	return func(c *GoTrueClient) { c.skew = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) GoTrueOption {
	return func(c *GoTrueClient) { c.now = now }
}

// WithLogger sets the client logger.
func WithLogger(l *log.Logger) GoTrueOption {
	return func(c *GoTrueClient) { c.logger = l.Named("gotrue") }
}

// NewGoTrueClient creates a provider client backed by api and kv.
func NewGoTrueClient(api *platform.Client, kv storage.KV, opts ...GoTrueOption) *GoTrueClient {
	c := &GoTrueClient{
		api:       api,
		kv:        kv,
		logger:    log.Nop(),
		skew:      DefaultRefreshSkew,
		now:       time.Now,
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// tokenResponse is the body of /auth/v1/token.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         User   `json:"user"`
}

func (r tokenResponse) session(now time.Time) *Session {
	s := &Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    r.ExpiresAt,
		User:         r.User,
	}
	if s.ExpiresAt == 0 && r.ExpiresIn > 0 {
		s.ExpiresAt = now.Add(time.Duration(r.ExpiresIn) * time.Second).Unix()
	}
	if s.ExpiresAt == 0 {
		s.ExpiresAt = tokenExpiry(s.AccessToken)
	}
	return s
}

// GetSession returns the stored session, refreshing it when it expires
// within the skew window. A refresh the server rejects clears the session
// and emits EventSessionExpired.
func (c *GoTrueClient) GetSession(ctx context.Context) (*Session, error) {
	s, err := c.load(ctx)
	if err != nil || s == nil {
		return nil, err
	}
	if !s.ExpiresWithin(c.now(), c.skew) {
		return s, nil
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Another caller may have refreshed while we waited.
	s, err = c.load(ctx)
	if err != nil || s == nil {
		return nil, err
	}
	if !s.ExpiresWithin(c.now(), c.skew) {
		return s, nil
	}

	refreshed, err := c.refresh(ctx, s.RefreshToken)
	if err != nil {
		if rejected(err) {
			c.logger.Info("refresh token rejected, session expired", "user_id", s.User.ID)
			c.forget(ctx)
			c.emit(EventSessionExpired, nil)
			return nil, errors.Wrap(errors.ErrCodeSessionExpired, "session expired", err)
		}
		// Transient failure: keep serving the old token while it is still valid.
		if exp, _ := s.Expiry(); c.now().Before(exp) {
			c.logger.Warn("token refresh failed, using current token", "error", err)
			return s, nil
		}
		return nil, err
	}

	if err := c.save(ctx, refreshed); err != nil {
		return nil, err
	}
	c.emit(EventTokenRefreshed, refreshed)
	return refreshed, nil
}

// SetSession validates accessToken against /auth/v1/user and installs the pair.
// An already expired access token is refreshed first.
func (c *GoTrueClient) SetSession(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	if accessToken == "" || refreshToken == "" {
		return nil, errors.New(errors.ErrCodeSessionInstall, "access and refresh tokens are required")
	}

	s := &Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    tokenExpiry(accessToken),
	}

	if exp, ok := s.Expiry(); ok && !c.now().Before(exp) {
		refreshed, err := c.refresh(ctx, refreshToken)
		if err != nil {
			return nil, err
		}
		s = refreshed
	} else {
		user, err := c.GetUser(ctx, accessToken)
		if err != nil {
			return nil, err
		}
		s.User = *user
	}

	if s.User.ID == "" {
		return nil, errors.New(errors.ErrCodeSessionInstall, "provider returned no user")
	}
	if err := c.save(ctx, s); err != nil {
		return nil, err
	}

	c.emit(EventSignedIn, s)
	return s, nil
}

// GetUser fetches the account behind accessToken.
func (c *GoTrueClient) GetUser(ctx context.Context, accessToken string) (*User, error) {
	var user User
	err := c.api.Do(ctx, platform.Request{
		Method: http.MethodGet,
		Path:   "/auth/v1/user",
		Token:  accessToken,
		Op:     "get user",
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SignOut revokes the session server-side (best effort) and forgets it locally.
func (c *GoTrueClient) SignOut(ctx context.Context) error {
	s, err := c.load(ctx)
	if err != nil {
		c.logger.Warn("failed to read session during sign out", "error", err)
	}

	if s != nil && s.AccessToken != "" {
		err := c.api.Do(ctx, platform.Request{
			Method: http.MethodPost,
			Path:   "/auth/v1/logout",
			Query:  url.Values{"scope": {"local"}},
			Token:  s.AccessToken,
			Op:     "sign out",
		}, nil)
		if err != nil {
			c.logger.Debug("remote sign out failed", "error", err)
		}
	}

	if err := c.kv.RemoveItem(ctx, storage.KeySession); err != nil {
		return err
	}
	c.emit(EventSignedOut, nil)
	return nil
}

// OnAuthStateChange registers l.
func (c *GoTrueClient) OnAuthStateChange(l Listener) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = l
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

func (c *GoTrueClient) refresh(ctx context.Context, refreshToken string) (*Session, error) {
	var resp tokenResponse
	err := c.api.Do(ctx, platform.Request{
		Method: http.MethodPost,
		Path:   "/auth/v1/token",
		Query:  url.Values{"grant_type": {"refresh_token"}},
		Body:   map[string]string{"refresh_token": refreshToken},
		Op:     "refresh session",
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, errors.New(errors.ErrCodeAuthInvalidResponse, "refresh returned no access token")
	}
	return resp.session(c.now()), nil
}

// rejected reports whether err means the server refused the credentials,
// as opposed to being unreachable.
func rejected(err error) bool {
	if errors.CodeOf(err) == errors.ErrCodeSessionUnauthorized {
		return true
	}
	status := platform.StatusCode(err)
	return status >= 400 && status < 500 && status != http.StatusTooManyRequests
}

func (c *GoTrueClient) load(ctx context.Context) (*Session, error) {
	raw, ok, err := c.kv.GetItem(ctx, storage.KeySession)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil || s.AccessToken == "" {
		c.logger.Warn("discarding unreadable stored session")
		_ = c.kv.RemoveItem(ctx, storage.KeySession)
		return nil, nil
	}
	return &s, nil
}

func (c *GoTrueClient) save(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return c.kv.SetItem(ctx, storage.KeySession, string(data))
}

func (c *GoTrueClient) forget(ctx context.Context) {
	if err := c.kv.RemoveItem(ctx, storage.KeySession); err != nil {
		c.logger.Warn("failed to remove stored session", "error", err)
	}
}

// emit calls listeners outside the lock.
func (c *GoTrueClient) emit(e Event, s *Session) {
	c.mu.Lock()
	ls := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		ls = append(ls, l)
	}
	c.mu.Unlock()

	for _, l := range ls {
		l(e, s)
	}
}

package health

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/config"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/platform"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/session"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/storage"
)

// probeKey is written and removed by the storage check.
const probeKey = "health_probe"

// BackendChecker calls the identity provider's health endpoint.
type BackendChecker struct {
	api *platform.Client
}

// NewBackendChecker checks the backend behind api.
func NewBackendChecker(api *platform.Client) *BackendChecker {
	return &BackendChecker{api: api}
}

// Name implements Checker.
func (c *BackendChecker) Name() string { return "backend" }

// Check implements Checker.
func (c *BackendChecker) Check(ctx context.Context) *Result {
	start := time.Now()
	err := c.api.Do(ctx, platform.Request{
		Method: http.MethodGet,
		Path:   "/auth/v1/health",
		Op:     "health check",
	}, nil)
	latency := time.Since(start)

	if err != nil {
		r := Unhealthy("backend is unreachable").
			WithDetail("url", c.api.BaseURL).
			WithDetail("error", err.Error()).
			WithLatency(latency)
		if code := platform.StatusCode(err); code != 0 {
			r.Message = fmt.Sprintf("backend answered %d", code)
		}
		return r
	}
	return Healthy("backend is reachable").
		WithDetail("url", c.api.BaseURL).
		WithLatency(latency)
}

// StorageChecker round-trips a probe value through the KV.
type StorageChecker struct {
	kv storage.KV
}

// NewStorageChecker checks kv.
func NewStorageChecker(kv storage.KV) *StorageChecker {
	return &StorageChecker{kv: kv}
}

// Name implements Checker.
func (c *StorageChecker) Name() string { return "storage" }

// Check implements Checker.
func (c *StorageChecker) Check(ctx context.Context) *Result {
	want := strconv.FormatInt(time.Now().UnixNano(), 10)
	if err := c.kv.SetItem(ctx, probeKey, want); err != nil {
		return Unhealthy("storage is not writable").WithDetail("error", err.Error())
	}
	defer func() { _ = c.kv.RemoveItem(ctx, probeKey) }()

	got, ok, err := c.kv.GetItem(ctx, probeKey)
	switch {
	case err != nil:
		return Unhealthy("storage is not readable").WithDetail("error", err.Error())
	case !ok || got != want:
		return Unhealthy("storage returned a different value than was written")
	}
	return Healthy(fmt.Sprintf("storage round trip ok (%T)", c.kv))
}

// SessionChecker reports whether a backend session is installed.
type SessionChecker struct {
	sessions interface {
		CurrentSession(ctx context.Context) *session.Session
	}
}

// NewSessionChecker checks the session held by v.
func NewSessionChecker(v *session.Validator) *SessionChecker {
	return &SessionChecker{sessions: v}
}

// Name implements Checker.
func (c *SessionChecker) Name() string { return "session" }

// Check implements Checker. A missing session only degrades: the client
// still works and routes to login.
func (c *SessionChecker) Check(ctx context.Context) *Result {
	s := c.sessions.CurrentSession(ctx)
	if s == nil {
		return Degraded("no backend session; run 'oflow login line'")
	}
	r := Healthy("backend session is valid").WithDetail("user_id", s.User.ID)
	if exp, ok := s.Expiry(); ok {
		r.WithDetail("expires_at", exp.UTC().Format(time.RFC3339))
	}
	return r
}

// LoginConfigChecker reports which login providers are configured.
type LoginConfigChecker struct {
	cfg *config.Config
}

// NewLoginConfigChecker checks cfg.
func NewLoginConfigChecker(cfg *config.Config) *LoginConfigChecker {
	return &LoginConfigChecker{cfg: cfg}
}

// Name implements Checker.
func (c *LoginConfigChecker) Name() string { return "login-config" }

// Check implements Checker.
func (c *LoginConfigChecker) Check(ctx context.Context) *Result {
	line := c.cfg.LINE.ChannelID != ""
	apple := c.cfg.Apple.ClientID != ""

	var r *Result
	switch {
	case line && apple:
		r = Healthy("LINE and Apple login are configured")
	case line || apple:
		r = Degraded("only one login provider is configured")
	default:
		r = Unhealthy("no login provider is configured; set OFLOW_LINE_CHANNEL_ID")
	}
	return r.WithDetail("line", line).WithDetail("apple", apple)
}

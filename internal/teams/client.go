package teams

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/errors"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/log"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/metrics"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/platform"
)

const operationsPath = "/functions/v1/team-operations"

// ErrUnauthorized matches (via errors.Is) a team call the backend rejected with 401.
var ErrUnauthorized = errors.New(errors.ErrCodeSessionUnauthorized, "unauthorized")

// TokenSource supplies the bearer token for team calls.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// UnauthorizedObserver is told about every failed call so 401s can start
// the single-flight logout.
type UnauthorizedObserver interface {
	Observe(ctx context.Context, err error) error
}

// Client calls the team-operations edge function.
type Client struct {
	api      *platform.Client
	tokens   TokenSource
	observer UnauthorizedObserver
	maxTries uint
	backOff  func() backoff.BackOff
	metrics  *metrics.Metrics
	logger   *log.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRetries sets how many times a transient List failure is retried.
func WithRetries(n uint) ClientOption {
	return func(c *Client) { c.maxTries = n + 1 }
}

// WithBackOff replaces the exponential retry schedule.
func WithBackOff(fn func() backoff.BackOff) ClientOption {
	return func(c *Client) { c.backOff = fn }
}

// WithObserver routes failures through o.
func WithObserver(o UnauthorizedObserver) ClientOption {
	return func(c *Client) { c.observer = o }
}

// WithClientMetrics records retries.
func WithClientMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// WithClientLogger sets the logger.
func WithClientLogger(l *log.Logger) ClientOption {
	return func(c *Client) { c.logger = l.Named("teams") }
}

// NewClient creates a team API client.
func NewClient(api *platform.Client, tokens TokenSource, opts ...ClientOption) *Client {
	c := &Client{
		api:      api,
		tokens:   tokens,
		maxTries: 4,
		backOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 300 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
		logger: log.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// operationResponse is the envelope every action answers with.
type operationResponse struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
	Teams   []Membership    `json:"teams,omitempty"`
	Team    *Membership     `json:"team,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (r operationResponse) failure() string {
	if r.Error != "" {
		return r.Error
	}
	if r.Message != "" {
		return r.Message
	}
	return "operation reported success=false"
}

// List returns the caller's memberships. Network, 5xx and 429 failures are
// retried with exponential backoff; everything else fails immediately.
func (c *Client) List(ctx context.Context) ([]Membership, error) {
	op := func() ([]Membership, error) {
		var raw json.RawMessage
		err := c.call(ctx, platform.Request{
			Method: http.MethodGet,
			Path:   operationsPath,
			Query:  url.Values{"action": {"list"}},
			Op:     "list teams",
		}, &raw)
		if err != nil {
			if errors.IsRetryable(err) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}

		teams, err := decodeList(raw)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		return teams, nil
	}

	teams, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(c.backOff()),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.metrics.RecordTeamFetchRetry()
			c.logger.Debug("retrying team list", "error", err, "next", next)
		}),
	)
	if err != nil {
		return nil, c.classify(ctx, err, "list teams")
	}
	return teams, nil
}

// decodeList accepts a bare array or the {"success":..,"teams":[..]} envelope.
func decodeList(raw json.RawMessage) ([]Membership, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var teams []Membership
		if err := json.Unmarshal(trimmed, &teams); err != nil {
			return nil, errors.Wrap(errors.ErrCodeTeamFetchFailed, "malformed team list", err)
		}
		return normalize(teams), nil
	}

	var resp operationResponse
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, errors.Wrap(errors.ErrCodeTeamFetchFailed, "malformed team list", err)
	}
	if !resp.Success {
		return nil, errors.New(errors.ErrCodeTeamFetchFailed, resp.failure())
	}
	if resp.Teams == nil && len(resp.Data) > 0 {
		var teams []Membership
		if err := json.Unmarshal(resp.Data, &teams); err != nil {
			return nil, errors.Wrap(errors.ErrCodeTeamFetchFailed, "malformed team list", err)
		}
		return normalize(teams), nil
	}
	return normalize(resp.Teams), nil
}

// normalize guarantees a non-nil slice so "loaded, zero teams" differs from "not loaded".
func normalize(teams []Membership) []Membership {
	if teams == nil {
		return []Membership{}
	}
	return teams
}

// CreateRequest describes a new team.
type CreateRequest struct {
	Name            string
	LineChannelName string
}

// Create makes a team owned by the caller.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*Membership, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errors.New(errors.ErrCodeTeamInvalidInput, "team name is required")
	}

	body := map[string]string{"action": "create", "team_name": name}
	if req.LineChannelName != "" {
		body["line_channel_name"] = req.LineChannelName
	}
	return c.mutate(ctx, "create team", body)
}

// Join joins a team by invite code.
func (c *Client) Join(ctx context.Context, inviteCode string) (*Membership, error) {
	code := strings.TrimSpace(inviteCode)
	if code == "" {
		return nil, errors.New(errors.ErrCodeTeamInvalidInput, "invite code is required")
	}
	return c.mutate(ctx, "join team", map[string]string{"action": "join", "invite_code": code})
}

// Leave leaves teamID.
func (c *Client) Leave(ctx context.Context, teamID string) error {
	if teamID == "" {
		return errors.New(errors.ErrCodeTeamInvalidInput, "team id is required")
	}
	_, err := c.mutate(ctx, "leave team", map[string]string{"action": "leave", "team_id": teamID})
	return err
}

func (c *Client) mutate(ctx context.Context, op string, body map[string]string) (*Membership, error) {
	var resp operationResponse
	err := c.call(ctx, platform.Request{
		Method: http.MethodPost,
		Path:   operationsPath,
		Body:   body,
		Op:     op,
	}, &resp)
	if err != nil {
		return nil, c.classify(ctx, err, op)
	}
	if !resp.Success {
		return nil, errors.New(errors.ErrCodeTeamOperation, fmt.Sprintf("%s: %s", op, resp.failure()))
	}
	return resp.Team, nil
}

func (c *Client) call(ctx context.Context, req platform.Request, target any) error {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return err
	}
	req.Token = token
	return c.api.Do(ctx, req, target)
}

// classify notifies the observer and gives plain 4xx failures a team code.
func (c *Client) classify(ctx context.Context, err error, op string) error {
	if c.observer != nil {
		err = c.observer.Observe(ctx, err)
	}
	if errors.CodeOf(err) != "" {
		return err
	}
	if status := platform.StatusCode(err); status == http.StatusNotFound {
		return errors.Wrap(errors.ErrCodeTeamNotFound, op, err)
	}
	if op == "list teams" {
		return errors.Wrap(errors.ErrCodeTeamFetchFailed, op, err)
	}
	return errors.Wrap(errors.ErrCodeTeamOperation, op, err)
}

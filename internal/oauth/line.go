package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/callback"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/errors"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/log"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/storage"
)

// LINE Login v2.1 endpoints
const (
	LINEAuthorizeURL = "https://access.line.me/oauth2/v2.1/authorize"
	LINETokenURL     = "https://api.line.me/oauth2/v2.1/token"
)

// LINEConfig configures the LINE flow.
type LINEConfig struct {
	ChannelID string
	// CallbackURL is the backend endpoint that exchanges the code.
	CallbackURL string
	Scopes      []string
}

// Validate reports AUTH-007 when no channel id is set.
func (c LINEConfig) Validate() error {
	if c.ChannelID == "" {
		return errors.New(errors.ErrCodeAuthNotConfigured, "LINE channel id is not configured").
			WithSuggestion("Set line.channel_id in ~/.oflow/config.yaml or OFLOW_LINE_CHANNEL_ID")
	}
	return nil
}

// pending is what the flow keeps in storage while the browser is open.
type pending struct {
	State        string    `json:"state"`
	CodeVerifier string    `json:"code_verifier"`
	RedirectURI  string    `json:"redirect_uri"`
	CreatedAt    time.Time `json:"created_at"`
}

// statePayload travels through LINE to the backend callback, which needs
// the verifier for the code exchange and the app redirect to finish on.
type statePayload struct {
	CSRF         string `json:"csrf"`
	CodeVerifier string `json:"code_verifier"`
	RedirectURI  string `json:"redirect_uri"`
}

// LINEFlow runs LINE Login with PKCE against the backend callback.
type LINEFlow struct {
	cfg     LINEConfig
	kv      storage.KV
	browser Browser
	logger  *log.Logger
}

// NewLINEFlow creates the flow.
func NewLINEFlow(cfg LINEConfig, kv storage.KV, browser Browser, logger *log.Logger) *LINEFlow {
	if logger == nil {
		logger = log.Nop()
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"profile", "openid"}
	}
	return &LINEFlow{cfg: cfg, kv: kv, browser: browser, logger: logger.Named("line")}
}

func (f *LINEFlow) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID: f.cfg.ChannelID,
		Endpoint: oauth2.Endpoint{
			AuthURL:  LINEAuthorizeURL,
			TokenURL: LINETokenURL,
		},
		RedirectURL: f.cfg.CallbackURL,
		Scopes:      f.cfg.Scopes,
	}
}

// Login returns (nil, nil) when the user cancels. The PKCE artifacts are
// removed from storage on every exit path.
func (f *LINEFlow) Login(ctx context.Context) (*Result, error) {
	if err := f.cfg.Validate(); err != nil {
		return nil, err
	}

	p, err := f.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer f.clear(ctx)

	authURL, err := f.authURL(p)
	if err != nil {
		return nil, err
	}

	callbackURL, err := f.browser.OpenAuthSession(ctx, authURL)
	if err != nil {
		if errors.CodeOf(err) == errors.ErrCodeAuthCancelled {
			f.logger.Info("LINE login cancelled")
			return nil, nil
		}
		return nil, err
	}

	payload, err := callback.Parse(callbackURL)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeAuthInvalidResponse, "unexpected LINE callback", err)
	}
	if payload.State != "" && payload.State != p.State {
		return nil, errors.New(errors.ErrCodeAuthStateMismatch, "LINE callback state does not match").
			WithSuggestion("Start the login again from this terminal")
	}
	if payload.Failed() {
		if payload.Error == "access_denied" {
			f.logger.Info("LINE consent declined")
			return nil, nil
		}
		reason := payload.Error
		if payload.ErrorDescription != "" {
			reason += ": " + payload.ErrorDescription
		}
		return nil, errors.NewLoginFailedError("LINE", fmt.Errorf("%s", reason))
	}

	return &Result{
		Provider:     ProviderLINE,
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		Profile:      payload.Profile,
		Teams:        payload.Teams,
	}, nil
}

func (f *LINEFlow) begin(ctx context.Context) (*pending, error) {
	state, err := randomString(32)
	if err != nil {
		return nil, err
	}
	p := &pending{
		State:        state,
		CodeVerifier: oauth2.GenerateVerifier(),
		RedirectURI:  f.browser.RedirectURL(),
		CreatedAt:    time.Now().UTC(),
	}

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal pending login: %w", err)
	}
	if err := f.kv.SetItem(ctx, storage.KeyOAuthPending, string(data)); err != nil {
		return nil, err
	}
	return p, nil
}

// clear runs on a fresh context so cancellation cannot leave artifacts behind.
func (f *LINEFlow) clear(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := f.kv.RemoveItem(cleanupCtx, storage.KeyOAuthPending); err != nil {
		f.logger.WithError(err).Warn("failed to clear pending LINE login")
	}
}

func (f *LINEFlow) authURL(p *pending) (string, error) {
	state, err := json.Marshal(statePayload{
		CSRF:         p.State,
		CodeVerifier: p.CodeVerifier,
		RedirectURI:  p.RedirectURI,
	})
	if err != nil {
		return "", fmt.Errorf("marshal state: %w", err)
	}

	return f.oauth2Config().AuthCodeURL(
		base64.RawURLEncoding.EncodeToString(state),
		oauth2.S256ChallengeOption(p.CodeVerifier),
		oauth2.SetAuthURLParam("bot_prompt", "normal"),
	), nil
}

package oauth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/callback"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/errors"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/log"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/platform"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/teams"
)

// Sign in with Apple endpoints
const (
	AppleIssuer       = "https://appleid.apple.com"
	AppleAuthorizeURL = AppleIssuer + "/auth/authorize"
	AppleKeysURL      = AppleIssuer + "/auth/keys"
)

const appleExchangeTimeout = 30 * time.Second

// AppleErrorCode is a native sign-in failure code.
type AppleErrorCode string

// Native sign-in error codes
const (
	AppleErrCanceled        AppleErrorCode = "ERR_REQUEST_CANCELED"
	AppleErrInvalidResponse AppleErrorCode = "ERR_INVALID_RESPONSE"
	AppleErrRequestFailed   AppleErrorCode = "ERR_REQUEST_FAILED"
	AppleErrNotHandled      AppleErrorCode = "ERR_REQUEST_NOT_HANDLED"
	AppleErrNotInteractive  AppleErrorCode = "ERR_REQUEST_NOT_INTERACTIVE"
	AppleErrUnknown         AppleErrorCode = "ERR_REQUEST_UNKNOWN"
)

// AppleError is returned by a NativeSignIn.
type AppleError struct {
	Code    AppleErrorCode
	Message string
}

func (e *AppleError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// AppleRequest is what the native sign-in is asked for.
type AppleRequest struct {
	// Nonce is the SHA-256 hex digest of the raw nonce.
	Nonce  string
	Scopes []string
}

// AppleCredential is what a successful native sign-in returns.
type AppleCredential struct {
	IdentityToken     string
	AuthorizationCode string
	FullName          string
	Email             string
}

// NativeSignIn is the platform Sign in with Apple sheet.
type NativeSignIn interface {
	SignIn(ctx context.Context, req AppleRequest) (*AppleCredential, error)
}

// AppleConfig configures the Apple flow.
type AppleConfig struct {
	ClientID string
	Issuer   string
}

// Validate reports AUTH-007 when no client id is set.
func (c AppleConfig) Validate() error {
	if c.ClientID == "" {
		return errors.New(errors.ErrCodeAuthNotConfigured, "Apple client id is not configured").
			WithSuggestion("Set apple.client_id in ~/.oflow/config.yaml or OFLOW_APPLE_CLIENT_ID")
	}
	return nil
}

// AppleFlow runs Sign in with Apple and exchanges the identity token with
// the backend.
type AppleFlow struct {
	cfg      AppleConfig
	native   NativeSignIn
	verifier *oidc.IDTokenVerifier
	api      *platform.Client
	logger   *log.Logger
}

// NewAppleKeySet fetches Apple's signing keys on demand.
func NewAppleKeySet(ctx context.Context) oidc.KeySet {
	return oidc.NewRemoteKeySet(ctx, AppleKeysURL)
}

// NewAppleFlow creates the flow. keySet verifies identity tokens locally.
func NewAppleFlow(cfg AppleConfig, native NativeSignIn, keySet oidc.KeySet, api *platform.Client, logger *log.Logger) *AppleFlow {
	if cfg.Issuer == "" {
		cfg.Issuer = AppleIssuer
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &AppleFlow{
		cfg:      cfg,
		native:   native,
		verifier: oidc.NewVerifier(cfg.Issuer, keySet, &oidc.Config{ClientID: cfg.ClientID}),
		api:      api,
		logger:   logger.Named("apple"),
	}
}

type appleExchangeResponse struct {
	Success      bool               `json:"success"`
	Error        string             `json:"error,omitempty"`
	AccessToken  string             `json:"access_token"`
	RefreshToken string             `json:"refresh_token"`
	User         appleExchangeUser  `json:"user"`
	Teams        []teams.Membership `json:"teams"`
}

type appleExchangeUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	PictureURL  string `json:"picture_url"`
}

// Login returns ErrCancelled when the user dismisses the sign-in.
func (f *AppleFlow) Login(ctx context.Context) (*Result, error) {
	if err := f.cfg.Validate(); err != nil {
		return nil, err
	}

	rawNonce, err := randomString(32)
	if err != nil {
		return nil, err
	}
	hashedNonce := hashNonce(rawNonce)

	cred, err := f.native.SignIn(ctx, AppleRequest{Nonce: hashedNonce, Scopes: []string{"name", "email"}})
	if err != nil {
		return nil, mapAppleError(err)
	}
	if cred == nil || cred.IdentityToken == "" {
		return nil, errors.New(errors.ErrCodeAuthInvalidResponse, "Apple returned no identity token")
	}

	idToken, err := f.verifier.Verify(ctx, cred.IdentityToken)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeAuthIDTokenInvalid, "Apple identity token rejected", err)
	}
	if idToken.Nonce != hashedNonce {
		return nil, errors.New(errors.ErrCodeAuthIDTokenInvalid, "Apple identity token nonce mismatch")
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, appleExchangeTimeout)
	defer cancel()

	var resp appleExchangeResponse
	err = f.api.Do(exchangeCtx, platform.Request{
		Method: http.MethodPost,
		Path:   "/functions/v1/auth-apple-callback",
		Body: map[string]string{
			"id_token":           cred.IdentityToken,
			"nonce":              rawNonce,
			"authorization_code": cred.AuthorizationCode,
			"full_name":          cred.FullName,
			"email":              cred.Email,
		},
		Op: "apple exchange",
	}, &resp)
	if err != nil {
		if errors.IsRetryable(err) {
			return nil, err
		}
		return nil, errors.NewLoginFailedError("Apple", err)
	}
	if !resp.Success || resp.AccessToken == "" || resp.RefreshToken == "" {
		reason := resp.Error
		if reason == "" {
			reason = "backend did not issue a session"
		}
		return nil, errors.NewLoginFailedError("Apple", fmt.Errorf("%s", reason))
	}

	displayName := resp.User.DisplayName
	if displayName == "" {
		displayName = cred.FullName
	}
	userID := resp.User.ID
	if userID == "" {
		userID = idToken.Subject
	}

	f.logger.Info("Apple login exchanged", "user_id", userID)
	return &Result{
		Provider:     ProviderApple,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		Profile: callback.Profile{
			UserID:      userID,
			DisplayName: displayName,
			PictureURL:  resp.User.PictureURL,
		},
		Teams: resp.Teams,
	}, nil
}

func hashNonce(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// mapAppleError turns native codes into distinct user-facing reasons.
func mapAppleError(err error) error {
	var ae *AppleError
	if !stderrors.As(err, &ae) {
		return errors.NewLoginFailedError("Apple", err)
	}

	switch ae.Code {
	case AppleErrCanceled:
		return ErrCancelled
	case AppleErrInvalidResponse:
		return errors.Wrap(errors.ErrCodeAuthInvalidResponse, "Apple returned an invalid response", ae).
			WithSuggestion("Try signing in again")
	case AppleErrRequestFailed:
		return errors.Wrap(errors.ErrCodeAuthRequestFailed, "the Apple sign-in request failed", ae).
			WithSuggestion("Check your network connection and try again")
	case AppleErrNotHandled, AppleErrNotInteractive:
		return errors.Wrap(errors.ErrCodeAuthRequestFailed, "Apple sign-in is not available here", ae).
			WithSuggestion("Use 'oflow login line' instead")
	default:
		return errors.NewLoginFailedError("Apple", ae)
	}
}

// WebAppleSignIn signs in through appleid.apple.com in the browser. Apple
// posts the result to RelayURL, which redirects to the browser's loopback.
type WebAppleSignIn struct {
	ClientID string
	RelayURL string
	Browser  Browser
}

// SignIn implements NativeSignIn.
func (w *WebAppleSignIn) SignIn(ctx context.Context, req AppleRequest) (*AppleCredential, error) {
	csrf, err := randomString(24)
	if err != nil {
		return nil, err
	}
	state, err := json.Marshal(map[string]string{
		"csrf":         csrf,
		"redirect_uri": w.Browser.RedirectURL(),
	})
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("client_id", w.ClientID)
	q.Set("redirect_uri", w.RelayURL)
	q.Set("response_type", "code id_token")
	q.Set("response_mode", "form_post")
	q.Set("scope", strings.Join(req.Scopes, " "))
	encodedState := base64.RawURLEncoding.EncodeToString(state)
	q.Set("state", encodedState)
	q.Set("nonce", req.Nonce)

	cbURL, err := w.Browser.OpenAuthSession(ctx, AppleAuthorizeURL+"?"+q.Encode())
	if err != nil {
		if errors.CodeOf(err) == errors.ErrCodeAuthCancelled {
			return nil, &AppleError{Code: AppleErrCanceled}
		}
		return nil, &AppleError{Code: AppleErrRequestFailed, Message: err.Error()}
	}

	u, err := url.Parse(cbURL)
	if err != nil {
		return nil, &AppleError{Code: AppleErrInvalidResponse, Message: err.Error()}
	}
	params := u.Query()

	switch params.Get("error") {
	case "":
	case "user_cancelled_authorize":
		return nil, &AppleError{Code: AppleErrCanceled}
	default:
		return nil, &AppleError{Code: AppleErrRequestFailed, Message: params.Get("error")}
	}

	if params.Get("state") != "" && params.Get("state") != encodedState {
		return nil, &AppleError{Code: AppleErrInvalidResponse, Message: "state mismatch"}
	}
	idToken := params.Get("id_token")
	if idToken == "" {
		return nil, &AppleError{Code: AppleErrInvalidResponse, Message: "missing id_token"}
	}

	cred := &AppleCredential{
		IdentityToken:     idToken,
		AuthorizationCode: params.Get("code"),
	}
	// Apple only sends the user object on the first authorization.
	if raw := params.Get("user"); raw != "" {
		var user struct {
			Name struct {
				FirstName string `json:"firstName"`
				LastName  string `json:"lastName"`
			} `json:"name"`
			Email string `json:"email"`
		}
		if json.Unmarshal([]byte(raw), &user) == nil {
			cred.FullName = strings.TrimSpace(user.Name.FirstName + " " + user.Name.LastName)
			cred.Email = user.Email
		}
	}
	return cred, nil
}

package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/errors"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/storage"
)

// fakeBrowser plays the part of the user and the backend callback.
type fakeBrowser struct {
	redirect string
	respond  func(authURL string) (string, error)
	authURL  string
}

func (b *fakeBrowser) RedirectURL() string { return b.redirect }

func (b *fakeBrowser) OpenAuthSession(ctx context.Context, authURL string) (string, error) {
	b.authURL = authURL
	return b.respond(authURL)
}

// decodeState does what the backend callback does with the state parameter.
func decodeState(t *testing.T, authURL string) statePayload {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(u.Query().Get("state"))
	require.NoError(t, err)

	var sp statePayload
	require.NoError(t, json.Unmarshal(raw, &sp))
	return sp
}

func newLINEFlow(t *testing.T, kv storage.KV, respond func(t *testing.T, authURL string) (string, error)) (*LINEFlow, *fakeBrowser) {
	t.Helper()
	b := &fakeBrowser{
		redirect: "http://127.0.0.1:5555/callback",
		respond:  func(authURL string) (string, error) { return respond(t, authURL) },
	}
	flow := NewLINEFlow(LINEConfig{
		ChannelID:   "1650000000",
		CallbackURL: "https://api.oflow.test/functions/v1/auth-line-callback",
	}, kv, b, nil)
	return flow, b
}

func assertNoPending(t *testing.T, kv storage.KV) {
	t.Helper()
	_, ok, err := kv.GetItem(context.Background(), storage.KeyOAuthPending)
	require.NoError(t, err)
	assert.False(t, ok, "PKCE artifacts should be removed")
}

func TestLINELogin_Success(t *testing.T) {
	kv := storage.NewMemoryKV()
	flow, b := newLINEFlow(t, kv, func(t *testing.T, authURL string) (string, error) {
		raw, ok, err := kv.GetItem(context.Background(), storage.KeyOAuthPending)
		require.NoError(t, err)
		require.True(t, ok, "pending login should be stored while the browser is open")

		var p pending
		require.NoError(t, json.Unmarshal([]byte(raw), &p))

		sp := decodeState(t, authURL)
		assert.Equal(t, p.State, sp.CSRF)
		assert.Equal(t, p.CodeVerifier, sp.CodeVerifier)
		assert.Equal(t, "http://127.0.0.1:5555/callback", sp.RedirectURI)

		q := url.Values{}
		q.Set("access_token", "access-1")
		q.Set("refresh_token", "refresh-1")
		q.Set("state", sp.CSRF)
		q.Set("line_user_id", "U123")
		q.Set("user_id", "user-1")
		q.Set("display_name", "Mei")
		q.Set("teams", `[{"team_id":"t1","team_name":"Bakery","role":"owner","member_count":1,"line_channel_id":null}]`)
		return sp.RedirectURI + "?" + q.Encode(), nil
	})

	res, err := flow.Login(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, ProviderLINE, res.Provider)
	assert.Equal(t, "access-1", res.AccessToken)
	assert.Equal(t, "refresh-1", res.RefreshToken)
	assert.Equal(t, "U123", res.Profile.LineUserID)
	assert.Equal(t, "Mei", res.Profile.DisplayName)
	require.Len(t, res.Teams, 1)
	assert.Equal(t, "t1", res.Teams[0].TeamID)

	u, err := url.Parse(b.authURL)
	require.NoError(t, err)
	assert.Equal(t, "access.line.me", u.Host)
	q := u.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "1650000000", q.Get("client_id"))
	assert.Equal(t, "https://api.oflow.test/functions/v1/auth-line-callback", q.Get("redirect_uri"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	assert.Equal(t, "profile openid", q.Get("scope"))

	assertNoPending(t, kv)
}

func TestLINELogin_ExitPathsClearArtifacts(t *testing.T) {
	tests := []struct {
		name     string
		respond  func(t *testing.T, authURL string) (string, error)
		wantNil  bool
		wantCode errors.ErrorCode
	}{
		{
			name: "browser cancelled",
			respond: func(t *testing.T, authURL string) (string, error) {
				return "", ErrBrowserCancelled
			},
			wantNil: true,
		},
		{
			name: "consent declined",
			respond: func(t *testing.T, authURL string) (string, error) {
				return "http://127.0.0.1:5555/callback?error=access_denied", nil
			},
			wantNil: true,
		},
		{
			name: "backend error",
			respond: func(t *testing.T, authURL string) (string, error) {
				return "http://127.0.0.1:5555/callback?error=server_error&error_description=exchange+failed", nil
			},
			wantCode: errors.ErrCodeAuthProviderRejected,
		},
		{
			name: "state mismatch",
			respond: func(t *testing.T, authURL string) (string, error) {
				return "http://127.0.0.1:5555/callback?access_token=a&refresh_token=r&state=forged", nil
			},
			wantCode: errors.ErrCodeAuthStateMismatch,
		},
		{
			name: "garbage callback",
			respond: func(t *testing.T, authURL string) (string, error) {
				return "http://127.0.0.1:5555/callback?foo=bar", nil
			},
			wantCode: errors.ErrCodeAuthInvalidResponse,
		},
		{
			name: "browser timeout",
			respond: func(t *testing.T, authURL string) (string, error) {
				return "", errors.NewTimeoutError("browser sign-in", context.DeadlineExceeded)
			},
			wantCode: errors.ErrCodeNetworkTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := storage.NewMemoryKV()
			flow, _ := newLINEFlow(t, kv, tt.respond)

			res, err := flow.Login(context.Background())
			assert.Nil(t, res)
			if tt.wantNil {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, errors.CodeOf(err))
			}
			assertNoPending(t, kv)
		})
	}
}

func TestLINELogin_CancelledContextStillClears(t *testing.T) {
	kv := storage.NewMemoryKV()
	ctx, cancel := context.WithCancel(context.Background())

	flow, _ := newLINEFlow(t, kv, func(t *testing.T, authURL string) (string, error) {
		cancel()
		return "", ErrBrowserCancelled
	})

	res, err := flow.Login(ctx)
	assert.NoError(t, err)
	assert.Nil(t, res)
	assertNoPending(t, kv)
}

func TestLINELogin_NotConfigured(t *testing.T) {
	kv := storage.NewMemoryKV()
	flow := NewLINEFlow(LINEConfig{}, kv, &fakeBrowser{}, nil)

	_, err := flow.Login(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAuthNotConfigured, errors.CodeOf(err))
	assertNoPending(t, kv)
}

func TestResultPayload(t *testing.T) {
	res := &Result{AccessToken: "a", RefreshToken: "r"}
	p := res.Payload()
	assert.True(t, p.HasTokens())
	assert.False(t, p.Failed())
	assert.Nil(t, p.Teams)
}

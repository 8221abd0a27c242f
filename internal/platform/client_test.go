package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/errors"
)

func TestDo_HeadersAndDecode(t *testing.T) {
	var got *http.Request
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	c := NewClient(server.URL+"/", WithAnonKey("anon-key"))

	var out struct {
		Success bool `json:"success"`
	}
	err := c.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/functions/v1/team-operations",
		Query:  url.Values{"action": {"create"}},
		Body:   map[string]string{"action": "create"},
		Token:  "user-token",
		Op:     "create team",
	}, &out)
	require.NoError(t, err)
	assert.True(t, out.Success)

	assert.Equal(t, "/functions/v1/team-operations", got.URL.Path)
	assert.Equal(t, "create", got.URL.Query().Get("action"))
	assert.Equal(t, "Bearer user-token", got.Header.Get("Authorization"))
	assert.Equal(t, "anon-key", got.Header.Get("apikey"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Contains(t, got.Header.Get("User-Agent"), "oflow-cli/")
	_, err = uuid.Parse(got.Header.Get("X-Request-ID"))
	assert.NoError(t, err, "X-Request-ID should be a UUID")
	assert.Equal(t, "create", gotBody["action"])
}

func TestDo_StatusClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode errors.ErrorCode
		wantMsg  string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"msg":"JWT expired"}`, errors.ErrCodeSessionUnauthorized, "JWT expired"},
		{"server error", http.StatusBadGateway, `upstream down`, errors.ErrCodeServer, "upstream down"},
		{"rate limited", http.StatusTooManyRequests, `{"error":"slow down"}`, errors.ErrCodeServer, "slow down"},
		{"bad request", http.StatusBadRequest, `{"error":"invalid_grant","error_description":"Invalid Refresh Token"}`, "", "Invalid Refresh Token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			err := NewClient(server.URL).Do(context.Background(), Request{Method: http.MethodGet, Path: "/x", Op: "probe"}, nil)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errors.CodeOf(err))
			assert.Equal(t, tt.status, StatusCode(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestDo_TransportErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	c := NewClient(server.URL, WithTimeout(20*time.Millisecond))
	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/slow", Op: "slow call"}, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNetworkTimeout, errors.CodeOf(err))
	assert.True(t, errors.IsRetryable(err))

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	err = NewClient(closedURL).Do(context.Background(), Request{Method: http.MethodGet, Path: "/", Op: "dial"}, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNetwork, errors.CodeOf(err))
}

func TestDo_CallerCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewClient(server.URL).Do(ctx, Request{Method: http.MethodGet, Path: "/", Op: "cancelled"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	var out map[string]any
	err := NewClient(server.URL).Do(context.Background(), Request{Method: http.MethodGet, Path: "/", Op: "decode"}, &out)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAuthInvalidResponse, errors.CodeOf(err))
}

package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeSessionMissing, "test error message")

	if err.Code != ErrCodeSessionMissing {
		t.Errorf("expected code %s, got %s", ErrCodeSessionMissing, err.Code)
	}

	if err.Message != "test error message" {
		t.Errorf("expected message 'test error message', got '%s'", err.Message)
	}

	if err.Cause != nil {
		t.Errorf("expected nil cause, got %v", err.Cause)
	}
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	err := Wrap(ErrCodeStoreReadFailed, "failed to read identity", cause)

	if err.Code != ErrCodeStoreReadFailed {
		t.Errorf("expected code %s, got %s", ErrCodeStoreReadFailed, err.Code)
	}

	if !errors.Is(err, cause) {
		t.Errorf("Wrap should support errors.Is")
	}
}

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name     string
		err      *OFlowError
		wantCode string
		wantMsg  string
	}{
		{
			name:     "simple error",
			err:      New(ErrCodeTeamNotFound, "team gone"),
			wantCode: "TEAM-002",
			wantMsg:  "team gone",
		},
		{
			name:     "error with cause",
			err:      Wrap(ErrCodeNetwork, "list teams", fmt.Errorf("connection refused")),
			wantCode: "NET-001",
			wantMsg:  "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()

			if !strings.Contains(errStr, tt.wantCode) {
				t.Errorf("error string should contain code %s, got: %s", tt.wantCode, errStr)
			}

			if !strings.Contains(errStr, tt.wantMsg) {
				t.Errorf("error string should contain message '%s', got: %s", tt.wantMsg, errStr)
			}
		})
	}
}

func TestWithSuggestionAndDocs(t *testing.T) {
	docsURL := "https://oflow.example.com/docs/login"
	err := New(ErrCodeAuthProviderRejected, "login failed").
		WithSuggestion("Try again").
		WithSuggestions("Check the LINE app", "Check the clock").
		WithDocs(docsURL)

	if len(err.Suggestions) != 3 {
		t.Errorf("expected 3 suggestions, got %d", len(err.Suggestions))
	}

	errStr := err.Error()
	for _, want := range []string{"Suggestions:", "Try again", "Check the clock", "Documentation:", docsURL} {
		if !strings.Contains(errStr, want) {
			t.Errorf("error string should contain %q, got: %s", want, errStr)
		}
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("fetch: %w", Wrap(ErrCodeSessionUnauthorized, "401 from backend", nil))

	if !errors.Is(err, New(ErrCodeSessionUnauthorized, "")) {
		t.Error("errors.Is should match an OFlowError sentinel with the same code")
	}
	if errors.Is(err, New(ErrCodeSessionExpired, "")) {
		t.Error("errors.Is should not match a different code")
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(nil); got != "" {
		t.Errorf("expected empty code for nil, got %s", got)
	}
	if got := CodeOf(fmt.Errorf("plain")); got != "" {
		t.Errorf("expected empty code for plain error, got %s", got)
	}

	wrapped := fmt.Errorf("outer: %w", NewTimeoutError("list teams", nil))
	if got := CodeOf(wrapped); got != ErrCodeNetworkTimeout {
		t.Errorf("expected %s, got %s", ErrCodeNetworkTimeout, got)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{NewNetworkError("login", nil), true},
		{NewTimeoutError("login", nil), true},
		{New(ErrCodeServer, "503"), true},
		{New(ErrCodeAuthProviderRejected, "bad code"), false},
		{fmt.Errorf("plain"), false},
	}

	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *OFlowError
		code ErrorCode
	}{
		{"login failed", NewLoginFailedError("LINE", nil), ErrCodeAuthProviderRejected},
		{"session install", NewSessionInstallError(nil), ErrCodeSessionInstall},
		{"not logged in", NewNotLoggedInError(), ErrCodeSessionMissing},
		{"team not found", NewTeamNotFoundError("t1"), ErrCodeTeamNotFound},
		{"config invalid", NewConfigInvalidError("api_url is empty"), ErrCodeConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, tt.err.Code)
			}
			if len(tt.err.Suggestions) == 0 {
				t.Error("expected at least one suggestion")
			}
		})
	}
}

func TestErrorCodes(t *testing.T) {
	codes := []ErrorCode{
		ErrCodeAuthCancelled,
		ErrCodeAuthProviderRejected,
		ErrCodeAuthIDTokenInvalid,
		ErrCodeSessionInstall,
		ErrCodeSessionUnauthorized,
		ErrCodeTeamFetchFailed,
		ErrCodeTeamNoneSelected,
		ErrCodeStoreReadFailed,
		ErrCodeNetwork,
		ErrCodeConfigInvalid,
	}

	for _, code := range codes {
		parts := strings.Split(string(code), "-")
		if len(parts) != 2 {
			t.Errorf("error code %s should have format CATEGORY-NNN", code)
			continue
		}

		if len(parts[1]) != 3 {
			t.Errorf("error code %s should have 3-digit number", code)
		}

		if code.Category() != parts[0] {
			t.Errorf("Category() = %s, want %s", code.Category(), parts[0])
		}
	}
}

package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Authentication errors (AUTH-001 to AUTH-099)
	ErrCodeAuthCancelled        ErrorCode = "AUTH-001"
	ErrCodeAuthProviderRejected ErrorCode = "AUTH-002"
	ErrCodeAuthStateMismatch    ErrorCode = "AUTH-003"
	ErrCodeAuthInvalidResponse  ErrorCode = "AUTH-004"
	ErrCodeAuthRequestFailed    ErrorCode = "AUTH-005"
	ErrCodeAuthIDTokenInvalid   ErrorCode = "AUTH-006"
	ErrCodeAuthNotConfigured    ErrorCode = "AUTH-007"

	// Session errors (SESSION-001 to SESSION-099)
	ErrCodeSessionInstall      ErrorCode = "SESSION-001"
	ErrCodeSessionExpired      ErrorCode = "SESSION-002"
	ErrCodeSessionUnauthorized ErrorCode = "SESSION-003"
	ErrCodeSessionMissing      ErrorCode = "SESSION-004"

	// Team errors (TEAM-001 to TEAM-099)
	ErrCodeTeamFetchFailed  ErrorCode = "TEAM-001"
	ErrCodeTeamNotFound     ErrorCode = "TEAM-002"
	ErrCodeTeamOperation    ErrorCode = "TEAM-003"
	ErrCodeTeamInvalidInput ErrorCode = "TEAM-004"
	ErrCodeTeamNoneSelected ErrorCode = "TEAM-005"

	// Storage errors (STORE-001 to STORE-099)
	ErrCodeStoreReadFailed  ErrorCode = "STORE-001"
	ErrCodeStoreWriteFailed ErrorCode = "STORE-002"
	ErrCodeStoreBackend     ErrorCode = "STORE-003"

	// Network errors (NET-001 to NET-099)
	ErrCodeNetwork        ErrorCode = "NET-001"
	ErrCodeNetworkTimeout ErrorCode = "NET-002"
	ErrCodeServer         ErrorCode = "NET-003"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigInvalid ErrorCode = "CONFIG-001"
	ErrCodeConfigRead    ErrorCode = "CONFIG-002"
)

// OFlowError represents an enhanced error with code, suggestions, and documentation
type OFlowError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *OFlowError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *OFlowError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *OFlowError carrying the same code.
// This lets callers match on sentinel values built with New.
func (e *OFlowError) Is(target error) bool {
	t, ok := target.(*OFlowError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates a new OFlowError
func New(code ErrorCode, message string) *OFlowError {
	return &OFlowError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new OFlowError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *OFlowError {
	return &OFlowError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *OFlowError) WithSuggestion(suggestion string) *OFlowError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *OFlowError) WithSuggestions(suggestions ...string) *OFlowError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *OFlowError) WithDocs(url string) *OFlowError {
	e.DocsURL = url
	return e
}

// CodeOf returns the code of the first OFlowError in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var oe *OFlowError
	if stderrors.As(err, &oe) {
		return oe.Code
	}
	return ""
}

// Category returns the family prefix of a code, e.g. "AUTH" for "AUTH-002".
func (c ErrorCode) Category() string {
	s := string(c)
	if i := strings.IndexByte(s, '-'); i > 0 {
		return s[:i]
	}
	return s
}

// Common error constructors for frequently used errors

// NewLoginFailedError is the user-facing failure for a rejected provider login.
func NewLoginFailedError(provider string, cause error) *OFlowError {
	return Wrap(ErrCodeAuthProviderRejected, fmt.Sprintf("%s login failed", provider), cause).
		WithSuggestion("Try logging in again").
		WithSuggestion("Run 'oflow status' to check the current session")
}

// NewSessionInstallError is returned when the backend refuses an issued token pair.
func NewSessionInstallError(cause error) *OFlowError {
	return Wrap(ErrCodeSessionInstall, "could not install backend session", cause).
		WithSuggestion("Log in again with 'oflow login line' or 'oflow login apple'")
}

// NewNotLoggedInError is returned by commands that need an authenticated identity.
func NewNotLoggedInError() *OFlowError {
	return New(ErrCodeSessionMissing, "not logged in").
		WithSuggestion("Run 'oflow login line' to authenticate")
}

// NewNetworkError wraps a transport-level failure as retryable.
func NewNetworkError(op string, cause error) *OFlowError {
	return Wrap(ErrCodeNetwork, fmt.Sprintf("network error during %s", op), cause).
		WithSuggestion("Check your internet connection and retry")
}

// NewTimeoutError wraps a request that exceeded its deadline.
func NewTimeoutError(op string, cause error) *OFlowError {
	return Wrap(ErrCodeNetworkTimeout, fmt.Sprintf("%s timed out", op), cause).
		WithSuggestion("The OFlow backend may be slow; retry in a moment")
}

// NewTeamNotFoundError is returned when a team id is not in the caller's membership list.
func NewTeamNotFoundError(teamID string) *OFlowError {
	return New(ErrCodeTeamNotFound, fmt.Sprintf("team not found: %s", teamID)).
		WithSuggestion("Run 'oflow teams list' to see the teams you belong to")
}

// NewConfigInvalidError creates a configuration validation error
func NewConfigInvalidError(details string) *OFlowError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", details)).
		WithSuggestion("Run 'oflow config view' to inspect the effective configuration")
}

// IsRetryable reports whether err is a network-class failure worth retrying.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case ErrCodeNetwork, ErrCodeNetworkTimeout, ErrCodeServer:
		return true
	}
	return false
}

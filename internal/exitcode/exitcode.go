package exitcode

import (
	"context"
	stderrors "errors"
	"os"
	"strings"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// ConfigError indicates an unreadable or invalid configuration file
	ConfigError = 3

	// TeamError indicates a team operation or team selection failure
	TeamError = 4

	// AuthError indicates an authentication or authorization failure
	AuthError = 5

	// NetworkError indicates a network connectivity issue
	NetworkError = 6

	// Interrupted indicates the user cancelled the operation (128 + SIGINT)
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	Exit(DetermineExitCode(err))
}

// DetermineExitCode maps an error to an exit code using the OFlowError code
// family found in its chain.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	if stderrors.Is(err, context.Canceled) {
		return Interrupted
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return NetworkError
	}

	code := errors.CodeOf(err)
	if code == errors.ErrCodeAuthCancelled {
		return Interrupted
	}

	switch code.Category() {
	case "AUTH", "SESSION":
		return AuthError
	case "NET":
		return NetworkError
	case "TEAM":
		return TeamError
	case "CONFIG":
		return ConfigError
	}

	// cobra reports flag and argument problems as plain errors
	msg := err.Error()
	for _, marker := range []string{"unknown command", "unknown flag", "required flag", "accepts ", "invalid argument"} {
		if strings.Contains(msg, marker) {
			return UsageError
		}
	}

	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags or arguments)"
	case ConfigError:
		return "Configuration error"
	case TeamError:
		return "Team error"
	case AuthError:
		return "Authentication error"
	case NetworkError:
		return "Network error"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}

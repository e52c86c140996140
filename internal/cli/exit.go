package cli

import "errors"

// Exit codes distinguish why a command stopped, so shell-level
// orchestration can branch without parsing output.
const (
	// ExitBlocked means a blocking condition: a failed gate, a pending
	// or rejected manual approval, or a blocked promotion.
	ExitBlocked = 1

	// ExitToolUnavailable means a required external command is not
	// configured or cannot be run at all.
	ExitToolUnavailable = 3
)

// ExitError carries a process exit code alongside the underlying error.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps an Execute error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

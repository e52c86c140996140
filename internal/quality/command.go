package quality

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const maxDetailBytes = 2048

// CommandRunner adapts an external tool (static analyzer, secret
// scanner, dependency auditor) to the Runner interface. The tool is a
// command that exits 0 for pass and non-zero for fail; the orchestrator
// knows nothing about its implementation.
type CommandRunner struct {
	// Argv is the command and its arguments.
	Argv []string

	// Timeout bounds a single invocation. Zero means no extra bound
	// beyond the caller's context.
	Timeout time.Duration
}

// Run executes the tool. A command that cannot be found or started maps
// to ErrToolUnavailable so the evaluator can apply the degrade policy.
func (r CommandRunner) Run(ctx context.Context) (bool, string, error) {
	if len(r.Argv) == 0 {
		return false, "", fmt.Errorf("no command configured: %w", ErrToolUnavailable)
	}

	if _, err := exec.LookPath(r.Argv[0]); err != nil {
		return false, "", fmt.Errorf("%s: %w", r.Argv[0], ErrToolUnavailable)
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.Argv[0], r.Argv[1:]...)
	output, err := cmd.CombinedOutput()
	detail := truncate(strings.TrimSpace(string(output)))

	if err == nil {
		if detail == "" {
			detail = "ok"
		}
		return true, detail, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if detail == "" {
			detail = fmt.Sprintf("exit status %d", exitErr.ExitCode())
		}
		return false, detail, nil
	}

	// The command existed but could not be started or was cut off.
	return false, "", fmt.Errorf("%s: %v: %w", r.Argv[0], err, ErrToolUnavailable)
}

func truncate(s string) string {
	if len(s) <= maxDetailBytes {
		return s
	}
	return s[:maxDetailBytes] + "... (truncated)"
}

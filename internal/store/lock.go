package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// LockName is the advisory lock filename inside a feature directory.
const LockName = "workflow.lock"

// Lock is an advisory per-feature lock held around a load-mutate-save
// cycle. Exactly one phase-runner is assumed active per feature; the
// lock makes that assumption enforced instead of implicit.
type Lock struct {
	path string
}

// Acquire takes the advisory lock for a feature directory. Contention
// returns ErrLocked immediately; this orchestrator fails fast rather
// than waiting on another writer.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure feature directory: %w", err)
	}
	path := filepath.Join(dir, LockName)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, lockContention(path)
		}
		return nil, fmt.Errorf("create lock file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write lock file: %w", err)
	}

	return &Lock{path: path}, nil
}

// Release removes the lock file.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	return nil
}

// lockContention builds the ErrLocked error, noting when the holding
// process no longer exists. A stale lock is reported, never auto-broken.
func lockContention(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, ErrLocked)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("%s: %w", path, ErrLocked)
	}
	if !processAlive(pid) {
		return fmt.Errorf("%s held by dead process %d (remove the lock file to recover): %w", path, pid, ErrLocked)
	}
	return fmt.Errorf("%s held by process %d: %w", path, pid, ErrLocked)
}

// processAlive checks for the pid with a null signal.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

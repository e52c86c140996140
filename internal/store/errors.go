package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates no workflow document exists yet. Callers
	// should run initialization rather than treat this as corruption.
	ErrNotFound = errors.New("workflow document not found")

	// ErrLocked indicates another phase-runner holds the advisory lock
	// for this feature. Callers should fail fast, not wait.
	ErrLocked = errors.New("workflow document is locked by another process")
)

// SchemaError reports a document that exists but is malformed. It is
// never auto-repaired; operator intervention is required.
type SchemaError struct {
	Path     string
	Problems []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("invalid workflow document %s: %s", e.Path, strings.Join(e.Problems, "; "))
}

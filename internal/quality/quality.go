// Package quality evaluates automated quality gates: named sets of
// sub-checks aggregated to a single pass/fail and persisted with the
// workflow document before the caller proceeds.
package quality

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"shipway/internal/feature"
)

// ErrToolUnavailable indicates a sub-check's tool could not be run at
// all. It is handled inside the evaluator by the degrade policy and
// never surfaces to callers.
var ErrToolUnavailable = errors.New("tool unavailable")

const (
	degradedDetail = "tool unavailable, skipped"
	criticalDetail = "tool unavailable — critical check cannot degrade."
)

// Runner executes one sub-check and reports its verdict.
type Runner interface {
	Run(ctx context.Context) (passed bool, detail string, err error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context) (bool, string, error)

func (f RunnerFunc) Run(ctx context.Context) (bool, string, error) { return f(ctx) }

// Check is one named sub-check within a quality gate.
//
// A missing non-critical tool degrades to a warning: the check passes
// with a diagnostic detail. A missing critical tool (a secret scanner,
// for example) is a security blind spot and degrades to a hard fail.
type Check struct {
	Name     string
	Runner   Runner
	Critical bool
}

// Saver persists the workflow document. Satisfied by *store.Store.
type Saver interface {
	Save(dir string, doc *feature.Document) error
}

// Evaluator runs quality gates and persists their results.
type Evaluator struct {
	store Saver
	dir   string
	log   *zap.Logger
}

// NewEvaluator creates an evaluator that persists results into the
// feature directory's workflow document.
func NewEvaluator(store Saver, dir string, log *zap.Logger) *Evaluator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Evaluator{store: store, dir: dir, log: log}
}

// Run evaluates every sub-check in order, aggregates passed as the AND
// of all sub-check results, writes the result into the document, and
// persists the document before returning. Downstream phase transitions
// read the persisted result rather than re-running scans.
func (e *Evaluator) Run(ctx context.Context, doc *feature.Document, gateName string, checks []Check) (*feature.QualityGateResult, error) {
	if len(checks) == 0 {
		return nil, fmt.Errorf("quality gate %q has no sub-checks configured", gateName)
	}

	result := &feature.QualityGateResult{
		Timestamp: time.Now().UTC(),
		SubChecks: make([]feature.SubCheck, 0, len(checks)),
	}

	for _, check := range checks {
		passed, detail := e.runCheck(ctx, gateName, check)
		result.SubChecks = append(result.SubChecks, feature.SubCheck{
			Name:   check.Name,
			Passed: passed,
			Detail: detail,
		})
	}
	result.Recompute()

	if doc.QualityGates == nil {
		doc.QualityGates = map[string]*feature.QualityGateResult{}
	}
	doc.QualityGates[gateName] = result

	if err := e.store.Save(e.dir, doc); err != nil {
		return nil, fmt.Errorf("persist quality gate %q: %w", gateName, err)
	}

	e.log.Info("quality gate evaluated",
		zap.String("gate", gateName),
		zap.Bool("passed", result.Passed),
		zap.Int("subChecks", len(result.SubChecks)))

	return result, nil
}

// runCheck applies the degrade policy around a single runner.
func (e *Evaluator) runCheck(ctx context.Context, gateName string, check Check) (bool, string) {
	passed, detail, err := check.Runner.Run(ctx)
	if err == nil {
		return passed, detail
	}

	if errors.Is(err, ErrToolUnavailable) {
		if check.Critical {
			e.log.Warn("critical check tool unavailable, failing gate",
				zap.String("gate", gateName), zap.String("check", check.Name))
			return false, criticalDetail
		}
		e.log.Warn("check tool unavailable, degrading to warning",
			zap.String("gate", gateName), zap.String("check", check.Name))
		return true, degradedDetail
	}

	// Any other runner error is a real failure of the check.
	return false, fmt.Sprintf("check error: %v", err)
}

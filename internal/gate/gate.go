// Package gate manages human-approval checkpoints embedded in the
// workflow document. Gates are resumption points: the phase-runner
// exits while a gate is pending, the operator approves out-of-band,
// and the runner is re-invoked.
package gate

import (
	"fmt"
	"time"

	"shipway/internal/feature"
)

// InvalidTransitionError reports a gate transition outside the
// pending -> approved / pending -> rejected table.
type InvalidTransitionError struct {
	Gate string
	From feature.GateStatus
	To   feature.GateStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("gate %q: invalid transition %s -> %s", e.Gate, e.From, e.To)
}

// Controller mutates manual gates on a workflow document.
type Controller struct {
	// StaleAfter flags pending gates older than this window. Zero
	// disables staleness reporting. Stale gates are surfaced to the
	// operator, never auto-approved or auto-rejected.
	StaleAfter time.Duration
}

// Open creates the named gate in pending state. Opening an
// already-pending gate is idempotent and returns the existing gate.
func (c *Controller) Open(doc *feature.Document, name string) (*feature.ManualGate, error) {
	if doc.Workflow.ManualGates == nil {
		doc.Workflow.ManualGates = map[string]*feature.ManualGate{}
	}
	if existing, ok := doc.Workflow.ManualGates[name]; ok {
		if existing.Status == feature.GatePending {
			return existing, nil
		}
		return nil, &InvalidTransitionError{Gate: name, From: existing.Status, To: feature.GatePending}
	}

	g := &feature.ManualGate{
		Status:    feature.GatePending,
		StartedAt: time.Now().UTC(),
	}
	doc.Workflow.ManualGates[name] = g
	return g, nil
}

// Approve moves a pending gate to approved, recording who approved it.
func (c *Controller) Approve(doc *feature.Document, name, approvedBy string) error {
	g, err := c.require(doc, name, feature.GateApproved)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	g.Status = feature.GateApproved
	g.ApprovedAt = &now
	g.ApprovedBy = approvedBy
	return nil
}

// Reject moves a pending gate to rejected.
func (c *Controller) Reject(doc *feature.Document, name string) error {
	g, err := c.require(doc, name, feature.GateRejected)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	g.Status = feature.GateRejected
	g.RejectedAt = &now
	return nil
}

// Reset is the out-of-band administrative action that returns a
// terminal gate to pending. It is not a normal workflow transition.
func (c *Controller) Reset(doc *feature.Document, name string) error {
	g := doc.Gate(name)
	if g == nil {
		return fmt.Errorf("gate %q has not been opened", name)
	}
	g.Status = feature.GatePending
	g.StartedAt = time.Now().UTC()
	g.ApprovedAt = nil
	g.RejectedAt = nil
	g.ApprovedBy = ""
	return nil
}

// Stale returns the names of pending gates older than StaleAfter,
// for operator attention. Reports nothing when staleness is disabled.
func (c *Controller) Stale(doc *feature.Document, now time.Time) []string {
	if c.StaleAfter <= 0 {
		return nil
	}
	var stale []string
	for name, g := range doc.Workflow.ManualGates {
		if g.Status == feature.GatePending && now.Sub(g.StartedAt) >= c.StaleAfter {
			stale = append(stale, name)
		}
	}
	return stale
}

func (c *Controller) require(doc *feature.Document, name string, to feature.GateStatus) (*feature.ManualGate, error) {
	g := doc.Gate(name)
	if g == nil {
		return nil, fmt.Errorf("gate %q has not been opened", name)
	}
	if g.Status != feature.GatePending {
		return nil, &InvalidTransitionError{Gate: name, From: g.Status, To: to}
	}
	return g, nil
}

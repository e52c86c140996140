package feature

import "fmt"

// Outcome is the result of executing a phase.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

// ParseOutcome validates an outcome string.
func ParseOutcome(s string) (Outcome, error) {
	switch Outcome(s) {
	case OutcomeCompleted, OutcomeFailed:
		return Outcome(s), nil
	}
	return "", fmt.Errorf("invalid outcome: %q (valid: completed, failed)", s)
}

// PhaseMismatchError reports an attempt to complete a phase that is not
// the workflow's current phase. This is an ordering bug upstream, not a
// recoverable condition.
type PhaseMismatchError struct {
	Current   Phase
	Attempted Phase
}

func (e *PhaseMismatchError) Error() string {
	return fmt.Sprintf("phase mismatch: attempted to complete %s but current phase is %s",
		e.Attempted, e.Current)
}

// Advance records the outcome of the current phase and moves the
// workflow forward.
//
// A completed outcome appends the phase to the completed set (removing
// it from the failed set if an earlier attempt failed) and advances to
// the next phase in the topology. When there is no next phase the
// workflow is marked completed and the current phase is left unchanged;
// re-invoking Advance on the terminal phase is a no-op.
//
// A failed outcome records the phase in the failed set and marks the
// workflow failed. The current phase does not advance, so an operator
// re-invocation can retry the phase; a later completed outcome migrates
// the phase from the failed set to the completed set.
func Advance(doc *Document, completed Phase, outcome Outcome) error {
	if completed != doc.Workflow.Phase {
		return &PhaseMismatchError{Current: doc.Workflow.Phase, Attempted: completed}
	}

	if outcome == OutcomeFailed {
		doc.Workflow.FailedPhases = appendPhase(doc.Workflow.FailedPhases, completed)
		doc.Workflow.CompletedPhases = removePhase(doc.Workflow.CompletedPhases, completed)
		doc.Workflow.Status = StatusFailed
		return nil
	}

	if doc.Workflow.Status == StatusCompleted && doc.HasCompleted(completed) {
		// Terminal state already recorded.
		return nil
	}

	next, err := NextPhase(doc.DeploymentModel, completed)
	if err != nil {
		return err
	}

	doc.Workflow.CompletedPhases = appendPhase(doc.Workflow.CompletedPhases, completed)
	doc.Workflow.FailedPhases = removePhase(doc.Workflow.FailedPhases, completed)

	if next == "" {
		doc.Workflow.Status = StatusCompleted
		doc.Feature.RoadmapStatus = RoadmapShipped
		return nil
	}

	doc.Workflow.Phase = next
	doc.Workflow.Status = StatusInProgress
	return nil
}

// appendPhase appends p if it is not already present.
func appendPhase(phases []Phase, p Phase) []Phase {
	for _, existing := range phases {
		if existing == p {
			return phases
		}
	}
	return append(phases, p)
}

// removePhase removes p while preserving order.
func removePhase(phases []Phase, p Phase) []Phase {
	out := phases[:0]
	for _, existing := range phases {
		if existing != p {
			out = append(out, existing)
		}
	}
	return out
}

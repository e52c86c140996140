package feature

import (
	"errors"
	"testing"
)

func newTestDoc(t *testing.T, model DeploymentModel) *Document {
	t.Helper()
	doc, err := NewDocument("checkout-v2", "Checkout v2", "feature/checkout-v2", model)
	if err != nil {
		t.Fatalf("NewDocument: %v", err)
	}
	return doc
}

func advanceTo(t *testing.T, doc *Document, target Phase) {
	t.Helper()
	for doc.Workflow.Phase != target {
		if err := Advance(doc, doc.Workflow.Phase, OutcomeCompleted); err != nil {
			t.Fatalf("Advance(%s): %v", doc.Workflow.Phase, err)
		}
	}
}

func TestAdvanceImplementToOptimize(t *testing.T) {
	doc := newTestDoc(t, ModelStagingProd)
	advanceTo(t, doc, PhaseImplement)

	if err := Advance(doc, PhaseImplement, OutcomeCompleted); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	if doc.Workflow.Phase != PhaseOptimize {
		t.Errorf("phase = %s, expected optimize", doc.Workflow.Phase)
	}
	if !doc.HasCompleted(PhaseImplement) {
		t.Error("implement not appended to completedPhases")
	}
	last := doc.Workflow.CompletedPhases[len(doc.Workflow.CompletedPhases)-1]
	if last != PhaseImplement {
		t.Errorf("completedPhases tail = %s, expected implement", last)
	}
}

func TestAdvancePhaseMismatchDoesNotMutate(t *testing.T) {
	doc := newTestDoc(t, ModelStagingProd)
	advanceTo(t, doc, PhaseImplement)
	completedBefore := len(doc.Workflow.CompletedPhases)
	failedBefore := len(doc.Workflow.FailedPhases)

	err := Advance(doc, PhaseOptimize, OutcomeCompleted)

	var mismatch *PhaseMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected PhaseMismatchError, got %v", err)
	}
	if mismatch.Current != PhaseImplement || mismatch.Attempted != PhaseOptimize {
		t.Errorf("mismatch fields = %+v", mismatch)
	}
	if len(doc.Workflow.CompletedPhases) != completedBefore {
		t.Error("completedPhases mutated on mismatch")
	}
	if len(doc.Workflow.FailedPhases) != failedBefore {
		t.Error("failedPhases mutated on mismatch")
	}
	if doc.Workflow.Phase != PhaseImplement {
		t.Errorf("phase mutated on mismatch: %s", doc.Workflow.Phase)
	}
}

func TestAdvanceFailedOutcomeKeepsPhase(t *testing.T) {
	doc := newTestDoc(t, ModelDirectProd)
	advanceTo(t, doc, PhaseImplement)

	if err := Advance(doc, PhaseImplement, OutcomeFailed); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	if doc.Workflow.Phase != PhaseImplement {
		t.Errorf("failed outcome advanced phase to %s", doc.Workflow.Phase)
	}
	if doc.Workflow.Status != StatusFailed {
		t.Errorf("status = %s, expected failed", doc.Workflow.Status)
	}
	if !doc.HasFailed(PhaseImplement) {
		t.Error("implement not recorded in failedPhases")
	}
}

func TestAdvanceRetryMigratesFailedToCompleted(t *testing.T) {
	doc := newTestDoc(t, ModelLocalOnly)
	advanceTo(t, doc, PhaseImplement)

	if err := Advance(doc, PhaseImplement, OutcomeFailed); err != nil {
		t.Fatalf("Advance(failed): %v", err)
	}
	if err := Advance(doc, PhaseImplement, OutcomeCompleted); err != nil {
		t.Fatalf("Advance(completed): %v", err)
	}

	if doc.HasFailed(PhaseImplement) {
		t.Error("implement still in failedPhases after successful retry")
	}
	if !doc.HasCompleted(PhaseImplement) {
		t.Error("implement missing from completedPhases after retry")
	}
	if doc.Workflow.Phase != PhaseOptimize {
		t.Errorf("phase = %s, expected optimize", doc.Workflow.Phase)
	}
	if doc.Workflow.Status != StatusInProgress {
		t.Errorf("status = %s, expected in_progress", doc.Workflow.Status)
	}
}

func TestAdvanceTerminalIsIdempotent(t *testing.T) {
	doc := newTestDoc(t, ModelLocalOnly)
	advanceTo(t, doc, PhaseFinalize)

	if err := Advance(doc, PhaseFinalize, OutcomeCompleted); err != nil {
		t.Fatalf("Advance(finalize): %v", err)
	}
	if doc.Workflow.Status != StatusCompleted {
		t.Fatalf("status = %s, expected completed", doc.Workflow.Status)
	}
	if doc.Workflow.Phase != PhaseFinalize {
		t.Errorf("terminal advance changed phase to %s", doc.Workflow.Phase)
	}
	if doc.Feature.RoadmapStatus != RoadmapShipped {
		t.Errorf("roadmapStatus = %s, expected shipped", doc.Feature.RoadmapStatus)
	}

	completed := len(doc.Workflow.CompletedPhases)
	if err := Advance(doc, PhaseFinalize, OutcomeCompleted); err != nil {
		t.Fatalf("re-invoking terminal advance: %v", err)
	}
	if len(doc.Workflow.CompletedPhases) != completed {
		t.Error("terminal re-invocation duplicated completedPhases entry")
	}
}

func TestAdvanceFullRunCompletesEveryPhase(t *testing.T) {
	for _, model := range []DeploymentModel{ModelStagingProd, ModelDirectProd, ModelLocalOnly} {
		doc := newTestDoc(t, model)
		phases, err := Phases(model)
		if err != nil {
			t.Fatalf("Phases(%s): %v", model, err)
		}
		for doc.Workflow.Status != StatusCompleted {
			if err := Advance(doc, doc.Workflow.Phase, OutcomeCompleted); err != nil {
				t.Fatalf("%s: Advance(%s): %v", model, doc.Workflow.Phase, err)
			}
		}
		if len(doc.Workflow.CompletedPhases) != len(phases) {
			t.Errorf("%s: completed %d phases, expected %d",
				model, len(doc.Workflow.CompletedPhases), len(phases))
		}
	}
}

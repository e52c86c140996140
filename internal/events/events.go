// Package events records orchestrator lifecycle events to a per-feature
// audit log. Events are append-only JSONL; the workflow document holds
// current state, the event log holds how it got there.
package events

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType identifies what happened.
type EventType string

// Workflow lifecycle events.
const (
	WorkflowInitialized EventType = "workflow.initialized"
	WorkflowCompleted   EventType = "workflow.completed"
)

// Phase lifecycle events.
const (
	PhaseAdvanced EventType = "phase.advanced"
	PhaseFailed   EventType = "phase.failed"
	PhaseBlocked  EventType = "phase.blocked"
)

// Manual gate events.
const (
	GateOpened   EventType = "gate.opened"
	GateApproved EventType = "gate.approved"
	GateRejected EventType = "gate.rejected"
	GateReset    EventType = "gate.reset"
)

// Quality gate events.
const (
	QualityPassed EventType = "quality.passed"
	QualityFailed EventType = "quality.failed"
)

// Deployment and rollback events.
const (
	DeployRecorded EventType = "deploy.recorded"
	DeployHealth   EventType = "deploy.health"
	RollbackPassed EventType = "rollback.verified"
	RollbackFailed EventType = "rollback.failed"
)

// Budget events.
const (
	BudgetComputed   EventType = "budget.computed"
	CompactionNeeded EventType = "budget.compaction_needed"
)

// Event is a single occurrence in the orchestrator lifecycle.
type Event struct {
	ID      string            `json:"id"`
	Time    time.Time         `json:"time"`
	Type    EventType         `json:"type"`
	Slug    string            `json:"slug"`
	Payload map[string]string `json:"payload,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// New creates an event with a fresh id and timestamp.
func New(eventType EventType, slug string) Event {
	return Event{
		ID:   ulid.Make().String(),
		Time: time.Now().UTC(),
		Type: eventType,
		Slug: slug,
	}
}

// WithPayload returns a copy of the event with the payload set.
func (e Event) WithPayload(payload map[string]string) Event {
	e.Payload = payload
	return e
}

// WithError returns a copy of the event with the error message set.
func (e Event) WithError(err error) Event {
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

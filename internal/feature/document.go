package feature

import (
	"fmt"
	"time"
)

// SchemaVersion is the document schema this build reads and writes.
// The major component gates loading: documents with a newer major are
// rejected rather than guessed at.
const SchemaVersion = "1.0"

// RoadmapStatus tracks where a feature sits on the product roadmap.
type RoadmapStatus string

const (
	RoadmapBacklog    RoadmapStatus = "backlog"
	RoadmapNext       RoadmapStatus = "next"
	RoadmapInProgress RoadmapStatus = "in_progress"
	RoadmapShipped    RoadmapStatus = "shipped"
)

// WorkflowStatus is the coarse state of the whole pipeline.
type WorkflowStatus string

const (
	StatusPending    WorkflowStatus = "pending"
	StatusInProgress WorkflowStatus = "in_progress"
	StatusCompleted  WorkflowStatus = "completed"
	StatusFailed     WorkflowStatus = "failed"
)

// GateStatus is the state of a human-approval checkpoint.
type GateStatus string

const (
	GatePending  GateStatus = "pending"
	GateApproved GateStatus = "approved"
	GateRejected GateStatus = "rejected"
)

// Environment names a deployment target tracked by the orchestrator.
type Environment string

const (
	EnvStaging    Environment = "staging"
	EnvProduction Environment = "production"
)

// ParseEnvironment validates an environment name.
func ParseEnvironment(s string) (Environment, error) {
	switch Environment(s) {
	case EnvStaging, EnvProduction:
		return Environment(s), nil
	}
	return "", fmt.Errorf("invalid environment: %q (valid: staging, production)", s)
}

// Meta describes the feature itself, independent of pipeline progress.
type Meta struct {
	Slug          string        `yaml:"slug"`
	Title         string        `yaml:"title"`
	BranchName    string        `yaml:"branchName"`
	Created       time.Time     `yaml:"created"`
	LastUpdated   time.Time     `yaml:"lastUpdated"`
	RoadmapStatus RoadmapStatus `yaml:"roadmapStatus"`
}

// PhaseState tracks pipeline position and per-phase outcomes.
// CompletedPhases is append-only; a phase name lives in at most one of
// CompletedPhases/FailedPhases at a time.
type PhaseState struct {
	Phase           Phase                  `yaml:"phase"`
	Status          WorkflowStatus         `yaml:"status"`
	CompletedPhases []Phase                `yaml:"completedPhases"`
	FailedPhases    []Phase                `yaml:"failedPhases"`
	ManualGates     map[string]*ManualGate `yaml:"manualGates,omitempty"`
}

// ManualGate models one human-approval checkpoint.
// Approved/rejected are terminal unless explicitly reset by an operator.
type ManualGate struct {
	Status     GateStatus `yaml:"status"`
	StartedAt  time.Time  `yaml:"startedAt"`
	ApprovedAt *time.Time `yaml:"approvedAt,omitempty"`
	RejectedAt *time.Time `yaml:"rejectedAt,omitempty"`
	ApprovedBy string     `yaml:"approvedBy,omitempty"`
}

// SubCheck is one named check inside a quality gate. Order is preserved.
type SubCheck struct {
	Name   string `yaml:"name"`
	Passed bool   `yaml:"passed"`
	Detail string `yaml:"detail,omitempty"`
}

// QualityGateResult is the aggregated outcome of a named quality gate.
// Passed is always the AND of every sub-check.
type QualityGateResult struct {
	Passed    bool       `yaml:"passed"`
	Timestamp time.Time  `yaml:"timestamp"`
	SubChecks []SubCheck `yaml:"subChecks"`
}

// Recompute derives Passed from the sub-checks.
func (r *QualityGateResult) Recompute() {
	r.Passed = true
	for _, c := range r.SubChecks {
		if !c.Passed {
			r.Passed = false
			return
		}
	}
}

// DeploymentRecord is the single current deployment of one environment.
// Prior records live in the deployment history log, not here.
type DeploymentRecord struct {
	Deployed      bool              `yaml:"deployed"`
	Timestamp     time.Time         `yaml:"timestamp"`
	CommitSHA     string            `yaml:"commitSha"`
	RunID         string            `yaml:"runId"`
	DeploymentIDs map[string]string `yaml:"deploymentIds,omitempty"`
	URL           string            `yaml:"url,omitempty"`
	HealthChecks  map[string]bool   `yaml:"healthChecks,omitempty"`
}

// RollbackVerification records the outcome of exercising a rollback
// against an environment's previous deployment.
type RollbackVerification struct {
	Environment Environment `yaml:"environment"`
	VerifiedAt  time.Time   `yaml:"verifiedAt"`
	FromID      string      `yaml:"fromId"`
	ToID        string      `yaml:"toId"`
	Passed      bool        `yaml:"passed"`
	FailedStep  string      `yaml:"failedStep,omitempty"`
}

// DeploymentState holds the current record per environment plus the
// latest rollback verification result.
type DeploymentState struct {
	Staging              *DeploymentRecord     `yaml:"staging,omitempty"`
	Production           *DeploymentRecord     `yaml:"production,omitempty"`
	RollbackVerification *RollbackVerification `yaml:"rollbackVerification,omitempty"`
}

// Record returns the current record for an environment (may be nil).
func (d *DeploymentState) Record(env Environment) *DeploymentRecord {
	switch env {
	case EnvStaging:
		return d.Staging
	case EnvProduction:
		return d.Production
	}
	return nil
}

// SetRecord replaces the current record for an environment.
func (d *DeploymentState) SetRecord(env Environment, rec *DeploymentRecord) {
	switch env {
	case EnvStaging:
		d.Staging = rec
	case EnvProduction:
		d.Production = rec
	}
}

// Tier is a budget tier covering a group of pipeline phases.
type Tier string

const (
	TierPlanning       Tier = "planning"
	TierImplementation Tier = "implementation"
	TierOptimization   Tier = "optimization"
)

// BudgetState is the artifact size budget snapshot for the feature.
// CompactionNeeded is derived from the numbers and never set directly.
type BudgetState struct {
	PhaseTier        Tier `yaml:"phase"`
	Budget           int  `yaml:"budget"`
	EstimatedUsage   int  `yaml:"estimatedUsage"`
	CompactionNeeded bool `yaml:"compactionNeeded"`
}

// ContextState groups context-management bookkeeping.
type ContextState struct {
	TokenBudget *BudgetState `yaml:"tokenBudget,omitempty"`
}

// Metadata carries document-level versioning.
type Metadata struct {
	SchemaVersion string `yaml:"schemaVersion"`
}

// Document is the single persisted state document for one feature.
// It is the audit trail: entries are appended or status-flipped,
// never deleted.
type Document struct {
	Feature         Meta                          `yaml:"feature"`
	DeploymentModel DeploymentModel               `yaml:"deploymentModel"`
	Workflow        PhaseState                    `yaml:"workflow"`
	QualityGates    map[string]*QualityGateResult `yaml:"qualityGates,omitempty"`
	Deployment      DeploymentState               `yaml:"deployment"`
	Context         ContextState                  `yaml:"context"`
	Metadata        Metadata                      `yaml:"metadata"`
}

// NewDocument creates a workflow document at the first phase of the
// chosen topology.
func NewDocument(slug, title, branch string, model DeploymentModel) (*Document, error) {
	first, err := FirstPhase(model)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Document{
		Feature: Meta{
			Slug:          slug,
			Title:         title,
			BranchName:    branch,
			Created:       now,
			LastUpdated:   now,
			RoadmapStatus: RoadmapInProgress,
		},
		DeploymentModel: model,
		Workflow: PhaseState{
			Phase:           first,
			Status:          StatusInProgress,
			CompletedPhases: []Phase{},
			FailedPhases:    []Phase{},
			ManualGates:     map[string]*ManualGate{},
		},
		QualityGates: map[string]*QualityGateResult{},
		Metadata:     Metadata{SchemaVersion: SchemaVersion},
	}, nil
}

// Gate returns the named manual gate, or nil if it was never opened.
func (d *Document) Gate(name string) *ManualGate {
	if d.Workflow.ManualGates == nil {
		return nil
	}
	return d.Workflow.ManualGates[name]
}

// GateResult returns the persisted quality gate result, or nil.
func (d *Document) GateResult(name string) *QualityGateResult {
	if d.QualityGates == nil {
		return nil
	}
	return d.QualityGates[name]
}

// HasCompleted reports whether a phase is in the completed set.
func (d *Document) HasCompleted(p Phase) bool {
	for _, c := range d.Workflow.CompletedPhases {
		if c == p {
			return true
		}
	}
	return false
}

// HasFailed reports whether a phase is in the failed set.
func (d *Document) HasFailed(p Phase) bool {
	for _, f := range d.Workflow.FailedPhases {
		if f == p {
			return true
		}
	}
	return false
}

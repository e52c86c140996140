package feature

import (
	"fmt"
	"strconv"
	"strings"
)

// Problems returns every schema violation in the document, or nil when
// the document is well-formed. The store refuses to load or save a
// document with problems; it never repairs one.
func (d *Document) Problems() []string {
	var problems []string

	if d.Feature.Slug == "" {
		problems = append(problems, "feature.slug: required")
	}
	if d.Metadata.SchemaVersion == "" {
		problems = append(problems, "metadata.schemaVersion: required")
	} else if err := checkSchemaVersion(d.Metadata.SchemaVersion); err != nil {
		problems = append(problems, "metadata.schemaVersion: "+err.Error())
	}

	phases, err := Phases(d.DeploymentModel)
	if err != nil {
		problems = append(problems, "deploymentModel: "+err.Error())
		return problems
	}

	member := func(p Phase) bool {
		for _, candidate := range phases {
			if candidate == p {
				return true
			}
		}
		return false
	}

	if !member(d.Workflow.Phase) {
		problems = append(problems, fmt.Sprintf("workflow.phase: %q is not in the %s topology",
			d.Workflow.Phase, d.DeploymentModel))
	}
	switch d.Workflow.Status {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed:
	default:
		problems = append(problems, fmt.Sprintf("workflow.status: invalid value %q", d.Workflow.Status))
	}

	switch d.Feature.RoadmapStatus {
	case RoadmapBacklog, RoadmapNext, RoadmapInProgress, RoadmapShipped:
	default:
		problems = append(problems, fmt.Sprintf("feature.roadmapStatus: invalid value %q", d.Feature.RoadmapStatus))
	}

	completed := map[Phase]bool{}
	for _, p := range d.Workflow.CompletedPhases {
		if !member(p) {
			problems = append(problems, fmt.Sprintf("workflow.completedPhases: %q is not in the %s topology", p, d.DeploymentModel))
		}
		completed[p] = true
	}
	for _, p := range d.Workflow.FailedPhases {
		if !member(p) {
			problems = append(problems, fmt.Sprintf("workflow.failedPhases: %q is not in the %s topology", p, d.DeploymentModel))
		}
		if completed[p] {
			problems = append(problems, fmt.Sprintf("workflow: phase %q appears in both completedPhases and failedPhases", p))
		}
	}

	for name, g := range d.Workflow.ManualGates {
		if g == nil {
			problems = append(problems, fmt.Sprintf("workflow.manualGates.%s: null entry", name))
			continue
		}
		switch g.Status {
		case GatePending, GateApproved, GateRejected:
		default:
			problems = append(problems, fmt.Sprintf("workflow.manualGates.%s.status: invalid value %q", name, g.Status))
		}
	}

	for name, r := range d.QualityGates {
		if r == nil {
			problems = append(problems, fmt.Sprintf("qualityGates.%s: null entry", name))
			continue
		}
		want := true
		for _, c := range r.SubChecks {
			if !c.Passed {
				want = false
				break
			}
		}
		if r.Passed != want {
			problems = append(problems, fmt.Sprintf("qualityGates.%s.passed: %v does not match sub-check results", name, r.Passed))
		}
	}

	return problems
}

// checkSchemaVersion fails closed on unknown or newer major versions.
func checkSchemaVersion(version string) error {
	major, _, ok := strings.Cut(version, ".")
	if !ok {
		return fmt.Errorf("malformed version %q", version)
	}
	n, err := strconv.Atoi(major)
	if err != nil {
		return fmt.Errorf("malformed version %q", version)
	}
	supported, _, _ := strings.Cut(SchemaVersion, ".")
	max, _ := strconv.Atoi(supported)
	if n > max {
		return fmt.Errorf("version %s is newer than supported %s", version, SchemaVersion)
	}
	if n < 1 {
		return fmt.Errorf("version %s is not supported", version)
	}
	return nil
}

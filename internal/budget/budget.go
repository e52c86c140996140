// Package budget estimates cumulative artifact size per phase tier and
// flags when context compaction is required. Compaction itself is a
// downstream action; this package only does the arithmetic.
package budget

import (
	"fmt"

	"shipway/internal/feature"
)

// tierBudgets is the token budget per phase tier. Compaction triggers
// at 80% of the budget.
var tierBudgets = map[feature.Tier]int{
	feature.TierPlanning:       75_000,
	feature.TierImplementation: 100_000,
	feature.TierOptimization:   125_000,
}

// bytesPerToken is the estimation heuristic: tokens = ceil(bytes / 4).
const bytesPerToken = 4

// Artifact is one document contributing to the context estimate.
type Artifact struct {
	Name string
	Size int64
}

// ParseTier validates a phase tier name.
func ParseTier(s string) (feature.Tier, error) {
	tier := feature.Tier(s)
	if _, ok := tierBudgets[tier]; !ok {
		return "", fmt.Errorf("invalid phase tier: %q (valid: planning, implementation, optimization)", s)
	}
	return tier, nil
}

// Compute derives the budget state for a tier from artifact sizes.
// CompactionNeeded is purely derived: usage >= 80% of the tier budget.
func Compute(tier feature.Tier, artifacts []Artifact) (feature.BudgetState, error) {
	budget, ok := tierBudgets[tier]
	if !ok {
		return feature.BudgetState{}, fmt.Errorf("invalid phase tier: %q", tier)
	}

	usage := 0
	for _, a := range artifacts {
		usage += int((a.Size + bytesPerToken - 1) / bytesPerToken)
	}

	return feature.BudgetState{
		PhaseTier:        tier,
		Budget:           budget,
		EstimatedUsage:   usage,
		CompactionNeeded: usage*5 >= budget*4,
	}, nil
}

// TierFor maps a phase to its budget tier.
func TierFor(p feature.Phase) feature.Tier {
	switch p {
	case feature.PhaseSpec, feature.PhaseClarify, feature.PhasePlan, feature.PhaseTasks, feature.PhaseAnalyze:
		return feature.TierPlanning
	case feature.PhaseImplement:
		return feature.TierImplementation
	default:
		return feature.TierOptimization
	}
}

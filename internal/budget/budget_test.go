package budget

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shipway/internal/feature"
)

func TestComputeEstimatesTokensFromBytes(t *testing.T) {
	state, err := Compute(feature.TierPlanning, []Artifact{
		{Name: "spec.md", Size: 4000},
		{Name: "plan.md", Size: 4001}, // rounds up
	})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if state.EstimatedUsage != 1000+1001 {
		t.Errorf("estimatedUsage = %d, expected 2001", state.EstimatedUsage)
	}
	if state.Budget != 75_000 {
		t.Errorf("budget = %d, expected 75000", state.Budget)
	}
	if state.CompactionNeeded {
		t.Error("compaction should not be needed at 2001 tokens")
	}
}

func TestCompactionThresholds(t *testing.T) {
	tests := []struct {
		tier   feature.Tier
		budget int
	}{
		{feature.TierPlanning, 75_000},
		{feature.TierImplementation, 100_000},
		{feature.TierOptimization, 125_000},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			threshold := tt.budget * 4 / 5

			// Exactly 80% of budget: compaction needed.
			at, err := Compute(tt.tier, []Artifact{{Name: "a", Size: int64(threshold * 4)}})
			if err != nil {
				t.Fatalf("Compute: %v", err)
			}
			if !at.CompactionNeeded {
				t.Errorf("usage %d of budget %d: expected compactionNeeded=true", at.EstimatedUsage, tt.budget)
			}

			// One token below the threshold: not needed.
			below, err := Compute(tt.tier, []Artifact{{Name: "a", Size: int64((threshold - 1) * 4)}})
			if err != nil {
				t.Fatalf("Compute: %v", err)
			}
			if below.CompactionNeeded {
				t.Errorf("usage %d of budget %d: expected compactionNeeded=false", below.EstimatedUsage, tt.budget)
			}
		})
	}
}

func TestPlanningTierOverThreshold(t *testing.T) {
	// 61,000 estimated tokens against the 75,000 planning budget
	// (threshold 60,000) must demand compaction.
	state, err := Compute(feature.TierPlanning, []Artifact{
		{Name: "spec.md", Size: 120_000},
		{Name: "plan.md", Size: 84_000},
		{Name: "tasks.md", Size: 40_000},
	})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if state.EstimatedUsage != 61_000 {
		t.Fatalf("estimatedUsage = %d, expected 61000", state.EstimatedUsage)
	}
	if !state.CompactionNeeded {
		t.Error("expected compactionNeeded=true at 61000/75000")
	}
}

func TestComputeRejectsUnknownTier(t *testing.T) {
	if _, err := Compute(feature.Tier("shipping"), nil); err == nil {
		t.Error("expected error for unknown tier")
	}
	if _, err := ParseTier("shipping"); err == nil {
		t.Error("expected parse error for unknown tier")
	}
}

func TestTierFor(t *testing.T) {
	if TierFor(feature.PhasePlan) != feature.TierPlanning {
		t.Error("plan should map to planning tier")
	}
	if TierFor(feature.PhaseImplement) != feature.TierImplementation {
		t.Error("implement should map to implementation tier")
	}
	if TierFor(feature.PhaseOptimize) != feature.TierOptimization {
		t.Error("optimize should map to optimization tier")
	}
	if TierFor(feature.PhaseShipProd) != feature.TierOptimization {
		t.Error("ship-prod should map to optimization tier")
	}
}

func TestScanSkipsOrchestratorFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("spec.md", strings.Repeat("x", 400))
	write("plan.md", strings.Repeat("y", 100))
	write("workflow.yaml", strings.Repeat("z", 9999))
	write("events.log", strings.Repeat("z", 9999))
	write("notes.bin", strings.Repeat("z", 9999))

	artifacts, err := Scan(dir)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(artifacts) != 2 {
		t.Fatalf("artifacts = %v, expected spec.md and plan.md only", artifacts)
	}
	if artifacts[0].Name != "plan.md" || artifacts[1].Name != "spec.md" {
		t.Errorf("artifacts = %v, expected sorted [plan.md spec.md]", artifacts)
	}
	if artifacts[1].Size != 400 {
		t.Errorf("spec.md size = %d, expected 400", artifacts[1].Size)
	}
}

package feature

import "testing"

func TestNextPhaseWalksEveryTopologyToTerminal(t *testing.T) {
	counts := map[DeploymentModel]int{
		ModelStagingProd: 12,
		ModelDirectProd:  10,
		ModelLocalOnly:   10,
	}

	for model, want := range counts {
		t.Run(string(model), func(t *testing.T) {
			current, err := FirstPhase(model)
			if err != nil {
				t.Fatalf("FirstPhase(%s): %v", model, err)
			}

			visited := map[Phase]bool{}
			steps := 0
			for {
				if visited[current] {
					t.Fatalf("phase %s visited twice", current)
				}
				visited[current] = true
				steps++

				next, err := NextPhase(model, current)
				if err != nil {
					t.Fatalf("NextPhase(%s, %s): %v", model, current, err)
				}
				if next == "" {
					break
				}
				current = next
			}

			if steps != want {
				t.Errorf("walked %d phases, expected %d", steps, want)
			}
		})
	}
}

func TestNextPhaseRejectsForeignPhase(t *testing.T) {
	// ship-stage only exists in the staging_prod topology.
	if _, err := NextPhase(ModelDirectProd, PhaseShipStage); err == nil {
		t.Error("expected error for ship-stage under direct_prod")
	}
	if _, err := NextPhase(ModelLocalOnly, PhaseValidateStage); err == nil {
		t.Error("expected error for validate-stage under local_only")
	}
}

func TestNextPhaseUnknownModel(t *testing.T) {
	if _, err := NextPhase(DeploymentModel("canary"), PhaseSpec); err == nil {
		t.Error("expected error for unknown deployment model")
	}
}

func TestParseDeploymentModel(t *testing.T) {
	tests := []struct {
		input       string
		expected    DeploymentModel
		shouldError bool
	}{
		{"staging_prod", ModelStagingProd, false},
		{"direct_prod", ModelDirectProd, false},
		{"local_only", ModelLocalOnly, false},
		{"", "", true},
		{"staging", "", true},
	}

	for _, tt := range tests {
		result, err := ParseDeploymentModel(tt.input)
		if tt.shouldError && err == nil {
			t.Errorf("ParseDeploymentModel(%q) expected error, got nil", tt.input)
		}
		if !tt.shouldError && err != nil {
			t.Errorf("ParseDeploymentModel(%q) unexpected error: %v", tt.input, err)
		}
		if result != tt.expected {
			t.Errorf("ParseDeploymentModel(%q) = %v, expected %v", tt.input, result, tt.expected)
		}
	}
}

func TestRequiredGate(t *testing.T) {
	if name, ok := RequiredGate(PhasePreview); !ok || name != "preview" {
		t.Errorf("RequiredGate(preview) = %q, %v", name, ok)
	}
	if name, ok := RequiredGate(PhaseValidateStage); !ok || name != "staging-validation" {
		t.Errorf("RequiredGate(validate-stage) = %q, %v", name, ok)
	}
	if _, ok := RequiredGate(PhaseImplement); ok {
		t.Error("implement should not require a manual gate")
	}
}

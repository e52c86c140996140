package feature

import "fmt"

// Phase is a single step in a feature delivery pipeline.
type Phase string

const (
	PhaseSpec          Phase = "spec"
	PhaseClarify       Phase = "clarify"
	PhasePlan          Phase = "plan"
	PhaseTasks         Phase = "tasks"
	PhaseAnalyze       Phase = "analyze"
	PhaseImplement     Phase = "implement"
	PhaseOptimize      Phase = "optimize"
	PhasePreview       Phase = "preview"
	PhaseShipStage     Phase = "ship-stage"
	PhaseValidateStage Phase = "validate-stage"
	PhaseShipProd      Phase = "ship-prod"
	PhaseBuildLocal    Phase = "build-local"
	PhaseFinalize      Phase = "finalize"
)

// DeploymentModel selects which phase topology a feature follows.
// It is fixed at feature inception; changing it mid-flight is unsupported.
type DeploymentModel string

const (
	ModelStagingProd DeploymentModel = "staging_prod"
	ModelDirectProd  DeploymentModel = "direct_prod"
	ModelLocalOnly   DeploymentModel = "local_only"
)

// topologies maps each deployment model to its fixed, ordered phase list.
var topologies = map[DeploymentModel][]Phase{
	ModelStagingProd: {
		PhaseSpec, PhaseClarify, PhasePlan, PhaseTasks, PhaseAnalyze,
		PhaseImplement, PhaseOptimize, PhasePreview, PhaseShipStage,
		PhaseValidateStage, PhaseShipProd, PhaseFinalize,
	},
	ModelDirectProd: {
		PhaseSpec, PhaseClarify, PhasePlan, PhaseTasks, PhaseAnalyze,
		PhaseImplement, PhaseOptimize, PhasePreview, PhaseShipProd,
		PhaseFinalize,
	},
	ModelLocalOnly: {
		PhaseSpec, PhaseClarify, PhasePlan, PhaseTasks, PhaseAnalyze,
		PhaseImplement, PhaseOptimize, PhasePreview, PhaseBuildLocal,
		PhaseFinalize,
	},
}

// phaseGates binds phases that block on a human checkpoint to the
// manual gate that must be approved before the phase may complete.
var phaseGates = map[Phase]string{
	PhasePreview:       "preview",
	PhaseValidateStage: "staging-validation",
}

// Phases returns the ordered phase list for a deployment model.
func Phases(model DeploymentModel) ([]Phase, error) {
	phases, ok := topologies[model]
	if !ok {
		return nil, fmt.Errorf("unknown deployment model: %s", model)
	}
	return phases, nil
}

// FirstPhase returns the initial phase for a deployment model.
func FirstPhase(model DeploymentModel) (Phase, error) {
	phases, err := Phases(model)
	if err != nil {
		return "", err
	}
	return phases[0], nil
}

// NextPhase returns the phase that follows current in the model's
// topology. An empty Phase means current is the terminal phase.
func NextPhase(model DeploymentModel, current Phase) (Phase, error) {
	phases, err := Phases(model)
	if err != nil {
		return "", err
	}
	for i, p := range phases {
		if p == current {
			if i == len(phases)-1 {
				return "", nil
			}
			return phases[i+1], nil
		}
	}
	return "", fmt.Errorf("phase %s is not part of the %s topology", current, model)
}

// RequiredGate returns the manual gate a phase depends on, if any.
func RequiredGate(p Phase) (string, bool) {
	name, ok := phaseGates[p]
	return name, ok
}

// ParseDeploymentModel validates a deployment model string.
func ParseDeploymentModel(s string) (DeploymentModel, error) {
	model := DeploymentModel(s)
	if _, ok := topologies[model]; !ok {
		return "", fmt.Errorf("invalid deployment model: %q (valid: staging_prod, direct_prod, local_only)", s)
	}
	return model, nil
}

// ParsePhase validates a phase name against the given model's topology.
func ParsePhase(model DeploymentModel, s string) (Phase, error) {
	phases, err := Phases(model)
	if err != nil {
		return "", err
	}
	for _, p := range phases {
		if p == Phase(s) {
			return p, nil
		}
	}
	return "", fmt.Errorf("invalid phase %q for model %s", s, model)
}

func (p Phase) String() string { return string(p) }

func (m DeploymentModel) String() string { return string(m) }

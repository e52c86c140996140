package deploy

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"shipway/internal/feature"
)

// CommandAlias implements AliasController by shelling out to platform
// commands configured in shipway.yml. The orchestrator does not know
// the deployment platform; it only runs commands and reads exit codes.
type CommandAlias struct {
	// SetArgv is invoked as: argv... <env> <component> <deployment-id>.
	SetArgv []string

	// ResolveArgv is invoked as: argv... <env> <component> and must
	// print the deployment id the alias currently serves.
	ResolveArgv []string

	// ProbeArgv is invoked as: argv... <env>; exit 0 means live.
	ProbeArgv []string
}

func (a *CommandAlias) Retarget(ctx context.Context, env feature.Environment, component, deploymentID string) error {
	if len(a.SetArgv) == 0 {
		return fmt.Errorf("no alias set command configured")
	}
	argv := append(append([]string{}, a.SetArgv...), string(env), component, deploymentID)
	out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("retarget %s/%s -> %s: %v: %s", env, component, deploymentID, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (a *CommandAlias) Resolve(ctx context.Context, env feature.Environment, component string) (string, error) {
	if len(a.ResolveArgv) == 0 {
		return "", fmt.Errorf("no alias resolve command configured")
	}
	argv := append(append([]string{}, a.ResolveArgv...), string(env), component)
	out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).Output()
	if err != nil {
		return "", fmt.Errorf("resolve alias %s/%s: %w", env, component, err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (a *CommandAlias) Probe(ctx context.Context, env feature.Environment) error {
	if len(a.ProbeArgv) == 0 {
		return fmt.Errorf("no probe command configured")
	}
	argv := append(append([]string{}, a.ProbeArgv...), string(env))
	out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("liveness probe for %s: %v: %s", env, err, strings.TrimSpace(string(out)))
	}
	return nil
}

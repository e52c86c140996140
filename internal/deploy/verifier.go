package deploy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"shipway/internal/feature"
	"shipway/internal/retry"
)

// AliasController points an environment's live alias at a deployment
// and inspects where it currently points. Implementations shell out to
// the deployment platform; tests use fakes.
type AliasController interface {
	// Retarget points the component's alias at the given deployment id.
	Retarget(ctx context.Context, env feature.Environment, component, deploymentID string) error

	// Resolve returns the deployment id the component's alias serves.
	Resolve(ctx context.Context, env feature.Environment, component string) (string, error)

	// Probe checks the environment's liveness endpoint.
	Probe(ctx context.Context, env feature.Environment) error
}

// DefaultRetry bounds the alias propagation polling loop.
var DefaultRetry = retry.Config{
	MaxAttempts: 10,
	Interval:    2 * time.Second,
}

// Verifier exercises a captured previous deployment to prove rollback
// capability: roll back to the prior deployment, confirm it serves
// traffic, then roll forward to the current one.
type Verifier struct {
	alias   AliasController
	history *History
	retry   retry.Config
	log     *zap.Logger
}

// NewVerifier creates a Verifier. A zero retry config falls back to
// DefaultRetry.
func NewVerifier(alias AliasController, history *History, cfg retry.Config, log *zap.Logger) *Verifier {
	if cfg.MaxAttempts == 0 {
		cfg = DefaultRetry
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Verifier{alias: alias, history: history, retry: cfg, log: log}
}

// Verify runs the full rollback test against an environment and writes
// the outcome onto the document. Any failing step aborts with a
// *VerificationError naming that step; the environment's deployment
// records are never modified, only the alias is moved and restored.
func (v *Verifier) Verify(ctx context.Context, doc *feature.Document, env feature.Environment) (*feature.RollbackVerification, error) {
	current := doc.Deployment.Record(env)
	if current == nil || len(current.DeploymentIDs) == 0 {
		return v.fail(doc, env, &VerificationError{
			Step:   StepReadHistory,
			Detail: fmt.Sprintf("no current deployment with component ids recorded for %s", env),
		})
	}

	previous, err := v.history.Latest(env)
	if err != nil {
		return v.fail(doc, env, &VerificationError{Step: StepReadHistory, Err: err})
	}
	if previous == nil {
		return v.fail(doc, env, &VerificationError{
			Step:   StepReadHistory,
			Detail: fmt.Sprintf("no prior deployment of %s to roll back to", env),
		})
	}

	components := sharedComponents(current.DeploymentIDs, previous.DeploymentIDs)
	if len(components) == 0 {
		return v.fail(doc, env, &VerificationError{
			Step:   StepReadHistory,
			Detail: "current and previous deployments share no components",
		})
	}

	for _, component := range components {
		prevID := previous.DeploymentIDs[component]
		curID := current.DeploymentIDs[component]
		v.log.Info("verifying rollback",
			zap.String("environment", string(env)),
			zap.String("component", component),
			zap.String("from", curID),
			zap.String("to", prevID))

		if verr := v.exercise(ctx, env, component, prevID, curID); verr != nil {
			return v.fail(doc, env, verr)
		}
	}

	verification := &feature.RollbackVerification{
		Environment: env,
		VerifiedAt:  time.Now().UTC(),
		FromID:      joinIDs(components, current.DeploymentIDs),
		ToID:        joinIDs(components, previous.DeploymentIDs),
		Passed:      true,
	}
	doc.Deployment.RollbackVerification = verification
	return verification, nil
}

// exercise rolls one component back and forward again.
func (v *Verifier) exercise(ctx context.Context, env feature.Environment, component, prevID, curID string) *VerificationError {
	if err := v.alias.Retarget(ctx, env, component, prevID); err != nil {
		return &VerificationError{Step: StepRetarget, Detail: component, Err: err}
	}

	if err := v.awaitAlias(ctx, env, component, prevID); err != nil {
		return &VerificationError{Step: StepPropagation, Detail: component, Err: err}
	}

	if err := v.alias.Probe(ctx, env); err != nil {
		return &VerificationError{Step: StepLiveness, Detail: component, Err: err}
	}

	if err := v.alias.Retarget(ctx, env, component, curID); err != nil {
		return &VerificationError{Step: StepRollForward, Detail: component, Err: err}
	}
	if err := v.awaitAlias(ctx, env, component, curID); err != nil {
		return &VerificationError{Step: StepRollForward, Detail: component, Err: err}
	}

	if err := v.alias.Probe(ctx, env); err != nil {
		return &VerificationError{Step: StepRollForwardProbe, Detail: component, Err: err}
	}

	return nil
}

// awaitAlias polls until the alias resolves to the wanted id.
func (v *Verifier) awaitAlias(ctx context.Context, env feature.Environment, component, want string) error {
	result := retry.Do(ctx, v.retry, func(ctx context.Context) error {
		got, err := v.alias.Resolve(ctx, env, component)
		if err != nil {
			return err
		}
		if got != want {
			return fmt.Errorf("alias resolves to %s, waiting for %s", got, want)
		}
		return nil
	})
	if !result.Success {
		return fmt.Errorf("after %d attempts: %w", result.Attempts, result.LastErr)
	}
	return nil
}

// fail records the failed verification on the document and returns the
// error. Deployment records are left exactly as they were.
func (v *Verifier) fail(doc *feature.Document, env feature.Environment, verr *VerificationError) (*feature.RollbackVerification, error) {
	doc.Deployment.RollbackVerification = &feature.RollbackVerification{
		Environment: env,
		VerifiedAt:  time.Now().UTC(),
		Passed:      false,
		FailedStep:  verr.Step,
	}
	v.log.Warn("rollback verification failed",
		zap.String("environment", string(env)),
		zap.String("step", verr.Step),
		zap.Error(verr))
	return nil, verr
}

func sharedComponents(current, previous map[string]string) []string {
	var components []string
	for name := range current {
		if _, ok := previous[name]; ok {
			components = append(components, name)
		}
	}
	sort.Strings(components)
	return components
}

func joinIDs(components []string, ids map[string]string) string {
	parts := make([]string, 0, len(components))
	for _, c := range components {
		parts = append(parts, c+"="+ids[c])
	}
	return strings.Join(parts, ",")
}

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"shipway/internal/config"
	"shipway/internal/deploy"
	"shipway/internal/events"
	"shipway/internal/feature"
	"shipway/internal/retry"
	"shipway/internal/store"
)

// NewRollbackCmd creates the rollback command group
func NewRollbackCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Prove rollback capability",
	}
	cmd.AddCommand(newRollbackVerifyCmd(app))
	return cmd
}

func newRollbackVerifyCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <environment>",
		Short: "Exercise a rollback to the previous deployment and back",
		Long: `Exercise a rollback to the previous deployment and back.

The environment's alias is pointed at the previous deployment, checked
for liveness, then restored. Deployment records are never modified;
the outcome is written to the workflow document either way. Under the
staging_prod model a passing verification is what unlocks production
promotion.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.VerifyRollback(cmd, args[0])
		},
	}
}

// VerifyRollback runs the rollback verifier under the feature lock.
func (a *App) VerifyRollback(cmd *cobra.Command, envArg string) error {
	env, err := feature.ParseEnvironment(envArg)
	if err != nil {
		return err
	}

	cfg, err := config.Load(a.dir)
	if err != nil {
		return err
	}
	if len(cfg.Rollback.AliasSetCommand) == 0 ||
		len(cfg.Rollback.AliasResolveCommand) == 0 ||
		len(cfg.Rollback.ProbeCommand) == 0 {
		return &ExitError{Code: ExitToolUnavailable, Err: fmt.Errorf(
			"rollback commands are not configured in %s", config.FileName)}
	}

	lock, err := store.Acquire(a.dir)
	if err != nil {
		return err
	}
	defer lock.Release()

	doc, err := a.store.Load(a.dir)
	if err != nil {
		return err
	}

	history, err := deploy.OpenHistory(a.dir)
	if err != nil {
		return err
	}
	defer history.Close()

	alias := &deploy.CommandAlias{
		SetArgv:     cfg.Rollback.AliasSetCommand,
		ResolveArgv: cfg.Rollback.AliasResolveCommand,
		ProbeArgv:   cfg.Rollback.ProbeCommand,
	}
	verifier := deploy.NewVerifier(alias, history, retry.Config{
		MaxAttempts: cfg.Rollback.MaxAttempts,
		Interval:    cfg.RollbackInterval(),
	}, a.log)

	verification, verr := verifier.Verify(cmd.Context(), doc, env)

	// The outcome is persisted whether or not verification passed; a
	// failed verification is itself state production promotion reads.
	if err := a.store.Save(a.dir, doc); err != nil {
		return err
	}

	if verr != nil {
		var vfail *deploy.VerificationError
		if errors.As(verr, &vfail) {
			a.record(events.New(events.RollbackFailed, doc.Feature.Slug).WithError(verr).WithPayload(map[string]string{
				"environment": string(env),
				"step":        vfail.Step,
			}))
			return &ExitError{Code: ExitBlocked, Err: verr}
		}
		return verr
	}

	a.record(events.New(events.RollbackPassed, doc.Feature.Slug).WithPayload(map[string]string{
		"environment": string(env),
		"from":        verification.FromID,
		"to":          verification.ToID,
	}))
	fmt.Fprintf(cmd.OutOrStdout(), "rollback verified for %s: %s -> %s and back\n",
		env, verification.FromID, verification.ToID)
	return nil
}

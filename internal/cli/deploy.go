package cli

import (
	"errors"
	"fmt"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/spf13/cobra"

	"shipway/internal/deploy"
	"shipway/internal/events"
	"shipway/internal/feature"
	"shipway/internal/store"
)

// DeployRecordOptions holds flags for the deploy record command
type DeployRecordOptions struct {
	SHA    string
	RunID  string
	URL    string
	Failed bool
	IDs    []string
}

// NewDeployCmd creates the deploy command group
func NewDeployCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Track deployments per environment",
	}
	cmd.AddCommand(newDeployRecordCmd(app), newDeployHealthCmd(app))
	return cmd
}

func newDeployRecordCmd(app *App) *cobra.Command {
	var opts DeployRecordOptions

	cmd := &cobra.Command{
		Use:   "record <environment>",
		Short: "Record the current deployment of an environment",
		Long: `Record the current deployment of an environment.

Each environment carries exactly one current record; recording again
archives the prior record to the deployment history. Under the
staging_prod model a successful production record is refused until a
passing rollback verification exists that is newer than the latest
staging deployment.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RecordDeployment(args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.SHA, "sha", "", "Commit SHA (default: HEAD of the enclosing git repository)")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "CI run identifier (required)")
	cmd.Flags().StringVar(&opts.URL, "url", "", "Deployed environment URL")
	cmd.Flags().BoolVar(&opts.Failed, "failed", false, "Record a failed deployment attempt")
	cmd.Flags().StringArrayVar(&opts.IDs, "id", nil,
		"Component deployment id as component=id (repeatable)")
	_ = cmd.MarkFlagRequired("run-id")

	return cmd
}

// RecordDeployment writes a deployment record under the feature lock.
func (a *App) RecordDeployment(envArg string, opts DeployRecordOptions) error {
	env, err := feature.ParseEnvironment(envArg)
	if err != nil {
		return err
	}

	ids, err := parseComponentIDs(opts.IDs)
	if err != nil {
		return err
	}

	sha := opts.SHA
	if sha == "" {
		sha, err = headSHA(a.dir)
		if err != nil {
			return fmt.Errorf("no --sha given and %w", err)
		}
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

	rec := &feature.DeploymentRecord{
		Deployed:      !opts.Failed,
		CommitSHA:     sha,
		RunID:         opts.RunID,
		DeploymentIDs: ids,
		URL:           opts.URL,
	}

	tracker := deploy.NewTracker(history, a.log)
	if err := tracker.Record(doc, env, rec); err != nil {
		var blocked *deploy.PromotionBlockedError
		if errors.As(err, &blocked) {
			return &ExitError{Code: ExitBlocked, Err: err}
		}
		return err
	}
	if err := a.store.Save(a.dir, doc); err != nil {
		return err
	}

	a.record(events.New(events.DeployRecorded, doc.Feature.Slug).WithPayload(map[string]string{
		"environment": string(env),
		"runId":       rec.RunID,
		"sha":         rec.CommitSHA,
		"deployed":    fmt.Sprintf("%t", rec.Deployed),
	}))
	fmt.Fprintf(a.rootCmd.OutOrStdout(), "recorded %s deployment %s (sha %s)\n",
		env, rec.RunID, shortSHA(rec.CommitSHA))
	return nil
}

func newDeployHealthCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "health <environment> <check> <pass|fail>",
		Short: "Record a health check verdict on the current deployment",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RecordHealthCheck(args[0], args[1], args[2])
		},
	}
}

// RecordHealthCheck stores a named health check result.
func (a *App) RecordHealthCheck(envArg, check, verdict string) error {
	env, err := feature.ParseEnvironment(envArg)
	if err != nil {
		return err
	}

	var passed bool
	switch verdict {
	case "pass":
		passed = true
	case "fail":
		passed = false
	default:
		return fmt.Errorf("invalid verdict %q (valid: pass, fail)", verdict)
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

	tracker := deploy.NewTracker(nil, a.log)
	if err := tracker.RecordHealthCheck(doc, env, check, passed); err != nil {
		return err
	}
	if err := a.store.Save(a.dir, doc); err != nil {
		return err
	}

	a.record(events.New(events.DeployHealth, doc.Feature.Slug).WithPayload(map[string]string{
		"environment": string(env),
		"check":       check,
		"passed":      fmt.Sprintf("%t", passed),
	}))
	fmt.Fprintf(a.rootCmd.OutOrStdout(), "%s health check %q: %s\n", env, check, verdict)
	return nil
}

// headSHA resolves the commit at HEAD of the repository enclosing dir.
func headSHA(dir string) (string, error) {
	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("no git repository found at or above %s: %w", dir, err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

func parseComponentIDs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	ids := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		component, id, ok := strings.Cut(pair, "=")
		if !ok || component == "" || id == "" {
			return nil, fmt.Errorf("invalid --id %q, expected component=id", pair)
		}
		ids[component] = id
	}
	return ids, nil
}

func shortSHA(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}

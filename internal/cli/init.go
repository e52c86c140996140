package cli

import (
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"shipway/internal/events"
	"shipway/internal/feature"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// InitOptions holds flags for the init command
type InitOptions struct {
	Model  string
	Title  string
	Branch string
}

// NewInitCmd creates the init command
func NewInitCmd(app *App) *cobra.Command {
	opts := InitOptions{Model: string(feature.ModelStagingProd)}

	cmd := &cobra.Command{
		Use:   "init <slug>",
		Short: "Create a workflow document for a new feature",
		Long: `Create a workflow document for a new feature.

The deployment model fixes the phase topology at inception; it cannot
be changed once the workflow exists.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.InitFeature(args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Model, "model", opts.Model,
		"Deployment model (staging_prod, direct_prod, local_only)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "Human-readable feature title")
	cmd.Flags().StringVar(&opts.Branch, "branch", "", "Branch name (default feature/<slug>)")

	return cmd
}

// InitFeature creates and persists a fresh workflow document.
func (a *App) InitFeature(slug string, opts InitOptions) error {
	if !slugPattern.MatchString(slug) {
		return fmt.Errorf("invalid slug %q: use lowercase words separated by hyphens", slug)
	}

	model, err := feature.ParseDeploymentModel(opts.Model)
	if err != nil {
		return err
	}

	title := opts.Title
	if title == "" {
		title = slug
	}
	branch := opts.Branch
	if branch == "" {
		branch = "feature/" + slug
	}

	doc, err := feature.NewDocument(slug, title, branch, model)
	if err != nil {
		return err
	}

	if err := a.store.Init(a.dir, doc); err != nil {
		return err
	}

	a.record(events.New(events.WorkflowInitialized, slug).WithPayload(map[string]string{
		"model": string(model),
		"phase": string(doc.Workflow.Phase),
	}))

	fmt.Fprintf(a.rootCmd.OutOrStdout(), "initialized %s (%s) at phase %s\n",
		slug, model, doc.Workflow.Phase)
	return nil
}

package cli

import (
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"shipway/internal/feature"
)

// StatusOptions holds flags for the status command
type StatusOptions struct {
	JSON bool
}

// statusOutput is the JSON shape of the status command.
type statusOutput struct {
	Slug            string               `json:"slug"`
	Title           string               `json:"title"`
	DeploymentModel string               `json:"deploymentModel"`
	Phase           string               `json:"phase"`
	Status          string               `json:"status"`
	Phases          []statusPhase        `json:"phases"`
	ManualGates     map[string]string    `json:"manualGates,omitempty"`
	QualityGates    map[string]bool      `json:"qualityGates,omitempty"`
	Staging         *statusDeployment    `json:"staging,omitempty"`
	Production      *statusDeployment    `json:"production,omitempty"`
	Rollback        *statusRollback      `json:"rollback,omitempty"`
	Budget          *feature.BudgetState `json:"budget,omitempty"`
}

type statusPhase struct {
	Name  string `json:"name"`
	State string `json:"state"` // completed, failed, current, pending
}

type statusDeployment struct {
	Deployed  bool      `json:"deployed"`
	RunID     string    `json:"runId"`
	CommitSHA string    `json:"commitSha"`
	Timestamp time.Time `json:"timestamp"`
}

type statusRollback struct {
	Passed     bool      `json:"passed"`
	VerifiedAt time.Time `json:"verifiedAt"`
	FailedStep string    `json:"failedStep,omitempty"`
}

// NewStatusCmd creates the status command
func NewStatusCmd(app *App) *cobra.Command {
	var opts StatusOptions

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the feature's pipeline position and gates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.ShowStatus(cmd, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Output as JSON")
	return cmd
}

// ShowStatus renders the workflow document.
func (a *App) ShowStatus(cmd *cobra.Command, opts StatusOptions) error {
	doc, err := a.store.Load(a.dir)
	if err != nil {
		return err
	}

	if opts.JSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(buildStatus(doc))
	}

	useColor := term.IsTerminal(int(os.Stdout.Fd()))
	renderStatus(cmd.OutOrStdout(), doc, newStyles(useColor))
	return nil
}

func buildStatus(doc *feature.Document) statusOutput {
	out := statusOutput{
		Slug:            doc.Feature.Slug,
		Title:           doc.Feature.Title,
		DeploymentModel: string(doc.DeploymentModel),
		Phase:           string(doc.Workflow.Phase),
		Status:          string(doc.Workflow.Status),
	}

	phases, _ := feature.Phases(doc.DeploymentModel)
	for _, p := range phases {
		out.Phases = append(out.Phases, statusPhase{Name: string(p), State: phaseDisplayState(doc, p)})
	}

	if len(doc.Workflow.ManualGates) > 0 {
		out.ManualGates = map[string]string{}
		for name, g := range doc.Workflow.ManualGates {
			out.ManualGates[name] = string(g.Status)
		}
	}
	if len(doc.QualityGates) > 0 {
		out.QualityGates = map[string]bool{}
		for name, r := range doc.QualityGates {
			out.QualityGates[name] = r.Passed
		}
	}

	out.Staging = toStatusDeployment(doc.Deployment.Staging)
	out.Production = toStatusDeployment(doc.Deployment.Production)

	if v := doc.Deployment.RollbackVerification; v != nil {
		out.Rollback = &statusRollback{Passed: v.Passed, VerifiedAt: v.VerifiedAt, FailedStep: v.FailedStep}
	}
	out.Budget = doc.Context.TokenBudget
	return out
}

func toStatusDeployment(rec *feature.DeploymentRecord) *statusDeployment {
	if rec == nil {
		return nil
	}
	return &statusDeployment{
		Deployed:  rec.Deployed,
		RunID:     rec.RunID,
		CommitSHA: rec.CommitSHA,
		Timestamp: rec.Timestamp,
	}
}

func phaseDisplayState(doc *feature.Document, p feature.Phase) string {
	switch {
	case doc.HasFailed(p):
		return "failed"
	case doc.HasCompleted(p):
		return "completed"
	case doc.Workflow.Phase == p && doc.Workflow.Status != feature.StatusCompleted:
		return "current"
	default:
		return "pending"
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

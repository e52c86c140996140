package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"shipway/internal/events"
	"shipway/internal/feature"
	"shipway/internal/gate"
	"shipway/internal/store"
)

// NewAdvanceCmd creates the advance command
func NewAdvanceCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "advance <phase> <outcome>",
		Short: "Record a phase outcome and move the workflow forward",
		Long: `Record a phase outcome and move the workflow forward.

The phase argument must name the workflow's current phase; outcome is
"completed" or "failed". Phases that sit behind a manual gate only
complete once the gate is approved; a pending gate blocks with exit
code 1 so the operator can approve out-of-band and re-invoke.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.AdvancePhase(args[0], args[1])
		},
	}
}

// AdvancePhase applies one phase transition under the feature lock.
func (a *App) AdvancePhase(phaseArg, outcomeArg string) error {
	lock, err := store.Acquire(a.dir)
	if err != nil {
		return err
	}
	defer lock.Release()

	doc, err := a.store.Load(a.dir)
	if err != nil {
		return err
	}

	phase, err := feature.ParsePhase(doc.DeploymentModel, phaseArg)
	if err != nil {
		return err
	}
	outcome, err := feature.ParseOutcome(outcomeArg)
	if err != nil {
		return err
	}

	if outcome == feature.OutcomeCompleted {
		if blocked, err := a.enforceGate(doc, phase); err != nil {
			return err
		} else if blocked != nil {
			return blocked
		}
	}

	before := doc.Workflow.Phase
	if err := feature.Advance(doc, phase, outcome); err != nil {
		return err
	}
	if err := a.store.Save(a.dir, doc); err != nil {
		return err
	}

	slug := doc.Feature.Slug
	out := a.rootCmd.OutOrStdout()
	switch {
	case outcome == feature.OutcomeFailed:
		a.record(events.New(events.PhaseFailed, slug).WithPayload(map[string]string{
			"phase": string(phase),
		}))
		fmt.Fprintf(out, "phase %s failed; re-invoke to retry\n", phase)
	case doc.Workflow.Status == feature.StatusCompleted:
		a.record(events.New(events.WorkflowCompleted, slug).WithPayload(map[string]string{
			"phase": string(phase),
		}))
		fmt.Fprintf(out, "workflow complete: %s shipped\n", slug)
	default:
		a.record(events.New(events.PhaseAdvanced, slug).WithPayload(map[string]string{
			"from": string(before),
			"to":   string(doc.Workflow.Phase),
		}))
		fmt.Fprintf(out, "advanced %s -> %s\n", before, doc.Workflow.Phase)
	}
	return nil
}

// enforceGate blocks completion of a gated phase until its manual gate
// is approved. Reaching a gated phase with no gate opens it, so the
// operator always has something to approve.
func (a *App) enforceGate(doc *feature.Document, phase feature.Phase) (*ExitError, error) {
	gateName, required := feature.RequiredGate(phase)
	if !required {
		return nil, nil
	}

	g := doc.Gate(gateName)
	if g == nil {
		ctrl := &gate.Controller{}
		if _, err := ctrl.Open(doc, gateName); err != nil {
			return nil, err
		}
		if err := a.store.Save(a.dir, doc); err != nil {
			return nil, err
		}
		a.record(events.New(events.GateOpened, doc.Feature.Slug).WithPayload(map[string]string{
			"gate": gateName,
		}))
		g = doc.Gate(gateName)
	}

	switch g.Status {
	case feature.GateApproved:
		return nil, nil
	case feature.GateRejected:
		a.record(events.New(events.PhaseBlocked, doc.Feature.Slug).WithPayload(map[string]string{
			"phase": string(phase),
			"gate":  gateName,
		}))
		return &ExitError{Code: ExitBlocked, Err: fmt.Errorf(
			"phase %s is blocked: gate %q was rejected (reset it to retry)", phase, gateName)}, nil
	default:
		a.record(events.New(events.PhaseBlocked, doc.Feature.Slug).WithPayload(map[string]string{
			"phase": string(phase),
			"gate":  gateName,
		}))
		return &ExitError{Code: ExitBlocked, Err: fmt.Errorf(
			"phase %s is waiting on gate %q (approve it and re-invoke)", phase, gateName)}, nil
	}
}

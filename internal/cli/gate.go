package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"shipway/internal/config"
	"shipway/internal/events"
	"shipway/internal/feature"
	"shipway/internal/gate"
	"shipway/internal/quality"
	"shipway/internal/store"
)

// NewGateCmd creates the gate command group
func NewGateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Run quality gates and manage manual approvals",
	}

	cmd.AddCommand(
		newGateRunCmd(app),
		newGateOpenCmd(app),
		newGateApproveCmd(app),
		newGateRejectCmd(app),
		newGateResetCmd(app),
		newGateStaleCmd(app),
	)
	return cmd
}

func newGateRunCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run <gate>",
		Short: "Evaluate a quality gate and persist the result",
		Long: `Evaluate a quality gate and persist the result.

Sub-checks come from shipway.yml (or the built-in security gate). The
result is written into the workflow document before the command exits;
a failing gate exits with code 1.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunQualityGate(cmd, args[0])
		},
	}
}

// RunQualityGate evaluates a configured gate under the feature lock.
func (a *App) RunQualityGate(cmd *cobra.Command, gateName string) error {
	cfg, err := config.Load(a.dir)
	if err != nil {
		return err
	}
	gc, ok := cfg.QualityGates[gateName]
	if !ok {
		return fmt.Errorf("quality gate %q is not configured", gateName)
	}

	checks := make([]quality.Check, 0, len(gc.Checks))
	for _, cc := range gc.Checks {
		checks = append(checks, quality.Check{
			Name:     cc.Name,
			Critical: cc.Critical,
			Runner:   quality.CommandRunner{Argv: cc.Command, Timeout: cc.CheckTimeout()},
		})
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

	result, err := quality.NewEvaluator(a.store, a.dir, a.log).Run(cmd.Context(), doc, gateName, checks)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, c := range result.SubChecks {
		mark := "PASS"
		if !c.Passed {
			mark = "FAIL"
		}
		fmt.Fprintf(out, "  [%s] %s", mark, c.Name)
		if c.Detail != "" {
			fmt.Fprintf(out, ": %s", c.Detail)
		}
		fmt.Fprintln(out)
	}

	if !result.Passed {
		a.record(events.New(events.QualityFailed, doc.Feature.Slug).WithPayload(map[string]string{
			"gate": gateName,
		}))
		return &ExitError{Code: ExitBlocked, Err: fmt.Errorf("quality gate %q failed", gateName)}
	}

	a.record(events.New(events.QualityPassed, doc.Feature.Slug).WithPayload(map[string]string{
		"gate": gateName,
	}))
	fmt.Fprintf(out, "quality gate %q passed\n", gateName)
	return nil
}

func newGateOpenCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "open <gate>",
		Short: "Open a manual gate in pending state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.mutateGate(args[0], events.GateOpened, func(ctrl *gate.Controller, doc *feature.Document) error {
				_, err := ctrl.Open(doc, args[0])
				return err
			})
		},
	}
}

func newGateApproveCmd(app *App) *cobra.Command {
	var approvedBy string

	cmd := &cobra.Command{
		Use:   "approve <gate>",
		Short: "Approve a pending manual gate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.mutateGate(args[0], events.GateApproved, func(ctrl *gate.Controller, doc *feature.Document) error {
				return ctrl.Approve(doc, args[0], approvedBy)
			})
		},
	}
	cmd.Flags().StringVar(&approvedBy, "by", "", "Who approved the gate")
	return cmd
}

func newGateRejectCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reject <gate>",
		Short: "Reject a pending manual gate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.mutateGate(args[0], events.GateRejected, func(ctrl *gate.Controller, doc *feature.Document) error {
				return ctrl.Reject(doc, args[0])
			})
		},
	}
}

func newGateResetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <gate>",
		Short: "Administratively return a decided gate to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.mutateGate(args[0], events.GateReset, func(ctrl *gate.Controller, doc *feature.Document) error {
				return ctrl.Reset(doc, args[0])
			})
		},
	}
}

func newGateStaleCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stale",
		Short: "List pending gates older than the configured window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.ListStaleGates(cmd)
		},
	}
}

// mutateGate applies one gate transition under the feature lock.
func (a *App) mutateGate(name string, eventType events.EventType, fn func(*gate.Controller, *feature.Document) error) error {
	lock, err := store.Acquire(a.dir)
	if err != nil {
		return err
	}
	defer lock.Release()

	doc, err := a.store.Load(a.dir)
	if err != nil {
		return err
	}

	ctrl := &gate.Controller{}
	if err := fn(ctrl, doc); err != nil {
		return err
	}
	if err := a.store.Save(a.dir, doc); err != nil {
		return err
	}

	a.record(events.New(eventType, doc.Feature.Slug).WithPayload(map[string]string{
		"gate": name,
	}))
	fmt.Fprintf(a.rootCmd.OutOrStdout(), "gate %q is now %s\n", name, doc.Gate(name).Status)
	return nil
}

// ListStaleGates reports pending gates past the configured window.
func (a *App) ListStaleGates(cmd *cobra.Command) error {
	cfg, err := config.Load(a.dir)
	if err != nil {
		return err
	}
	doc, err := a.store.Load(a.dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	window := cfg.StaleWindow()
	if window <= 0 {
		fmt.Fprintln(out, "stale gate reporting is disabled (set manualGates.staleAfter in shipway.yml)")
		return nil
	}

	ctrl := &gate.Controller{StaleAfter: window}
	stale := ctrl.Stale(doc, time.Now().UTC())
	if len(stale) == 0 {
		fmt.Fprintln(out, "no stale gates")
		return nil
	}
	for _, name := range stale {
		g := doc.Gate(name)
		fmt.Fprintf(out, "%s: pending since %s\n", name, g.StartedAt.Format(time.RFC3339))
	}
	return nil
}

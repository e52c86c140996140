package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"shipway/internal/budget"
	"shipway/internal/events"
	"shipway/internal/store"
)

// BudgetOptions holds flags for the budget command
type BudgetOptions struct {
	Tier      string
	Artifacts []string
}

// NewBudgetCmd creates the budget command
func NewBudgetCmd(app *App) *cobra.Command {
	var opts BudgetOptions

	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Estimate context usage against the phase tier budget",
		Long: `Estimate context usage against the phase tier budget.

Artifact sizes come from --artifact flags or, when none are given, from
scanning the feature directory's documents. The snapshot is written to
the workflow document; compaction is flagged at 80% of the tier budget
but never performed here.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.ComputeBudget(opts)
		},
	}

	cmd.Flags().StringVar(&opts.Tier, "tier", "",
		"Phase tier (planning, implementation, optimization); default derived from the current phase")
	cmd.Flags().StringArrayVar(&opts.Artifacts, "artifact", nil,
		"Artifact size as name=bytes (repeatable; default: scan the feature directory)")

	return cmd
}

// ComputeBudget snapshots the budget state onto the workflow document.
func (a *App) ComputeBudget(opts BudgetOptions) error {
	lock, err := store.Acquire(a.dir)
	if err != nil {
		return err
	}
	defer lock.Release()

	doc, err := a.store.Load(a.dir)
	if err != nil {
		return err
	}

	tier := budget.TierFor(doc.Workflow.Phase)
	if opts.Tier != "" {
		tier, err = budget.ParseTier(opts.Tier)
		if err != nil {
			return err
		}
	}

	artifacts, err := parseArtifacts(opts.Artifacts)
	if err != nil {
		return err
	}
	if artifacts == nil {
		artifacts, err = budget.Scan(a.dir)
		if err != nil {
			return err
		}
	}

	state, err := budget.Compute(tier, artifacts)
	if err != nil {
		return err
	}

	doc.Context.TokenBudget = &state
	if err := a.store.Save(a.dir, doc); err != nil {
		return err
	}

	eventType := events.BudgetComputed
	if state.CompactionNeeded {
		eventType = events.CompactionNeeded
	}
	a.record(events.New(eventType, doc.Feature.Slug).WithPayload(map[string]string{
		"tier":   string(state.PhaseTier),
		"budget": strconv.Itoa(state.Budget),
		"usage":  strconv.Itoa(state.EstimatedUsage),
	}))

	out := a.rootCmd.OutOrStdout()
	fmt.Fprintf(out, "tier %s: estimated %d of %d tokens (%d artifacts)\n",
		state.PhaseTier, state.EstimatedUsage, state.Budget, len(artifacts))
	if state.CompactionNeeded {
		fmt.Fprintln(out, "context compaction needed: usage is at or above 80% of the budget")
	}
	return nil
}

func parseArtifacts(pairs []string) ([]budget.Artifact, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	artifacts := make([]budget.Artifact, 0, len(pairs))
	for _, pair := range pairs {
		name, sizeStr, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --artifact %q, expected name=bytes", pair)
		}
		size, err := strconv.ParseInt(sizeStr, 10, 64)
		if err != nil || size < 0 {
			return nil, fmt.Errorf("invalid --artifact size in %q", pair)
		}
		artifacts = append(artifacts, budget.Artifact{Name: name, Size: size})
	}
	return artifacts, nil
}

package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"shipway/internal/feature"
)

// Phase symbols in status output.
const (
	symbolComplete = "✓"
	symbolCurrent  = "●"
	symbolPending  = "○"
	symbolFailed   = "✗"
)

// styles contains the lipgloss styles for status rendering
type styles struct {
	Title    lipgloss.Style
	Dim      lipgloss.Style
	Complete lipgloss.Style
	Current  lipgloss.Style
	Failed   lipgloss.Style
	Warn     lipgloss.Style
}

// newStyles returns the status styles, plain when stdout is not a TTY.
func newStyles(useColor bool) styles {
	if !useColor {
		return styles{}
	}
	return styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		Dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Complete: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Current:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Failed:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Warn:     lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
	}
}

// renderStatus writes the human-readable status view.
func renderStatus(w io.Writer, doc *feature.Document, st styles) {
	fmt.Fprintf(w, "%s %s\n",
		st.Title.Render(doc.Feature.Slug),
		st.Dim.Render(fmt.Sprintf("(%s, %s)", doc.DeploymentModel, doc.Workflow.Status)))
	if doc.Feature.Title != doc.Feature.Slug && doc.Feature.Title != "" {
		fmt.Fprintf(w, "%s\n", st.Dim.Render(doc.Feature.Title))
	}
	fmt.Fprintln(w)

	phases, _ := feature.Phases(doc.DeploymentModel)
	for _, p := range phases {
		var line string
		switch phaseDisplayState(doc, p) {
		case "completed":
			line = st.Complete.Render(fmt.Sprintf("  %s %s", symbolComplete, p))
		case "failed":
			line = st.Failed.Render(fmt.Sprintf("  %s %s (failed)", symbolFailed, p))
		case "current":
			line = st.Current.Render(fmt.Sprintf("  %s %s", symbolCurrent, p))
		default:
			line = st.Dim.Render(fmt.Sprintf("  %s %s", symbolPending, p))
		}
		fmt.Fprintln(w, line)
	}

	if len(doc.Workflow.ManualGates) > 0 {
		fmt.Fprintf(w, "\n%s\n", st.Title.Render("Manual gates"))
		for _, name := range sortedKeys(doc.Workflow.ManualGates) {
			g := doc.Workflow.ManualGates[name]
			style := st.Warn
			switch g.Status {
			case feature.GateApproved:
				style = st.Complete
			case feature.GateRejected:
				style = st.Failed
			}
			fmt.Fprintf(w, "  %s: %s\n", name, style.Render(string(g.Status)))
		}
	}

	if len(doc.QualityGates) > 0 {
		fmt.Fprintf(w, "\n%s\n", st.Title.Render("Quality gates"))
		for _, name := range sortedKeys(doc.QualityGates) {
			r := doc.QualityGates[name]
			verdict := st.Complete.Render("passed")
			if !r.Passed {
				verdict = st.Failed.Render("failed")
			}
			fmt.Fprintf(w, "  %s: %s %s\n", name, verdict,
				st.Dim.Render(r.Timestamp.Format(time.RFC3339)))
		}
	}

	renderDeployment(w, st, "staging", doc.Deployment.Staging)
	renderDeployment(w, st, "production", doc.Deployment.Production)

	if v := doc.Deployment.RollbackVerification; v != nil {
		fmt.Fprintf(w, "\n%s\n", st.Title.Render("Rollback verification"))
		if v.Passed {
			fmt.Fprintf(w, "  %s %s\n", st.Complete.Render("passed"),
				st.Dim.Render(v.VerifiedAt.Format(time.RFC3339)))
		} else {
			fmt.Fprintf(w, "  %s at step %s\n", st.Failed.Render("failed"), v.FailedStep)
		}
	}

	if b := doc.Context.TokenBudget; b != nil {
		fmt.Fprintf(w, "\n%s\n", st.Title.Render("Token budget"))
		fmt.Fprintf(w, "  %s tier: %d / %d tokens\n", b.PhaseTier, b.EstimatedUsage, b.Budget)
		if b.CompactionNeeded {
			fmt.Fprintf(w, "  %s\n", st.Warn.Render("compaction needed"))
		}
	}
}

func renderDeployment(w io.Writer, st styles, name string, rec *feature.DeploymentRecord) {
	if rec == nil {
		return
	}
	fmt.Fprintf(w, "\n%s\n", st.Title.Render("Deployment: "+name))
	verdict := st.Complete.Render("deployed")
	if !rec.Deployed {
		verdict = st.Failed.Render("failed")
	}
	fmt.Fprintf(w, "  %s run %s sha %s %s\n", verdict, rec.RunID, shortSHA(rec.CommitSHA),
		st.Dim.Render(rec.Timestamp.Format(time.RFC3339)))
	for _, check := range sortedKeys(rec.HealthChecks) {
		mark := st.Complete.Render(symbolComplete)
		if !rec.HealthChecks[check] {
			mark = st.Failed.Render(symbolFailed)
		}
		fmt.Fprintf(w, "    %s %s\n", mark, check)
	}
}

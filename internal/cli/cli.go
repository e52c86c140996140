// Package cli wires the shipway commands. Each invocation is one step
// of a feature workflow: the process loads the document, applies one
// transition, persists it, and exits. Manual gates are resumption
// points, not in-process waits.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"shipway/internal/events"
	"shipway/internal/logging"
	"shipway/internal/store"
)

// App represents the CLI application with all wired dependencies
type App struct {
	rootCmd *cobra.Command

	store *store.Store

	// Runtime state
	dir     string
	verbose bool
	log     *zap.Logger

	// Version information
	version string
	commit  string
	date    string
}

// New creates a new CLI application
func New() *App {
	app := &App{store: store.New()}
	app.setupRootCmd()
	return app
}

// Execute runs the CLI application
func (a *App) Execute() error {
	defer func() {
		if a.log != nil {
			_ = a.log.Sync()
		}
	}()
	return a.rootCmd.Execute()
}

// SetVersion sets the version strings for the version command
func (a *App) SetVersion(version, commit, date string) {
	a.version = version
	a.commit = commit
	a.date = date
}

// setupRootCmd configures the root Cobra command
func (a *App) setupRootCmd() {
	a.rootCmd = &cobra.Command{
		Use:   "shipway",
		Short: "Feature delivery workflow orchestrator",
		Long: `Shipway drives features through a fixed delivery pipeline, from spec
to production, persisting all state in a per-feature workflow document
so any invocation can resume exactly where the last one stopped.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("dir") && viper.GetString("dir") != "" {
				a.dir = viper.GetString("dir")
			}
			log, err := logging.New(a.verbose)
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			a.log = log
			return nil
		},
	}

	a.rootCmd.PersistentFlags().StringVarP(&a.dir, "dir", "d", ".",
		"Feature directory holding the workflow document")
	a.rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false,
		"Verbose output")

	viper.SetEnvPrefix("SHIPWAY")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("dir", a.rootCmd.PersistentFlags().Lookup("dir"))

	a.rootCmd.AddCommand(
		NewInitCmd(a),
		NewStatusCmd(a),
		NewAdvanceCmd(a),
		NewGateCmd(a),
		NewDeployCmd(a),
		NewRollbackCmd(a),
		NewBudgetCmd(a),
		NewVersionCmd(a),
	)
}

// recorder returns the audit log recorder for the feature directory.
func (a *App) recorder() *events.Recorder {
	return events.NewRecorder(a.dir)
}

// record appends an audit event. The audit log is best-effort: a write
// failure is logged, never turned into a command failure.
func (a *App) record(e events.Event) {
	if err := a.recorder().Record(e); err != nil {
		a.log.Warn("failed to record event", zap.String("type", string(e.Type)), zap.Error(err))
	}
}

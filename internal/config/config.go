// Package config loads the orchestrator's tool configuration from
// shipway.yml. The config describes external collaborators (scanner
// commands, alias and probe commands) and tunables; workflow state
// never lives here.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the config filename looked up in the feature directory.
const FileName = "shipway.yml"

// CheckConfig describes one quality-gate sub-check backed by an
// external command.
type CheckConfig struct {
	// Name identifies the sub-check inside its gate.
	Name string `yaml:"name"`

	// Command is the tool invocation; exit 0 means pass.
	Command []string `yaml:"command"`

	// Critical makes a missing tool a hard fail instead of a skip.
	Critical bool `yaml:"critical,omitempty"`

	// Timeout bounds one invocation (e.g. "5m"). Empty means unbounded.
	Timeout string `yaml:"timeout,omitempty"`
}

// GateConfig is the ordered sub-check list for one quality gate.
type GateConfig struct {
	Checks []CheckConfig `yaml:"checks"`
}

// RollbackConfig wires the rollback verifier to the deployment platform.
type RollbackConfig struct {
	// AliasSetCommand is invoked as: argv... <env> <component> <id>.
	AliasSetCommand []string `yaml:"aliasSetCommand,omitempty"`

	// AliasResolveCommand is invoked as: argv... <env> <component>
	// and prints the deployment id the alias currently serves.
	AliasResolveCommand []string `yaml:"aliasResolveCommand,omitempty"`

	// ProbeCommand is invoked as: argv... <env>; exit 0 means live.
	ProbeCommand []string `yaml:"probeCommand,omitempty"`

	// MaxAttempts bounds alias propagation polling.
	MaxAttempts int `yaml:"maxAttempts,omitempty"`

	// Interval between polling attempts (e.g. "2s").
	Interval string `yaml:"interval,omitempty"`
}

// ManualGateConfig tunes manual gate handling.
type ManualGateConfig struct {
	// StaleAfter flags pending gates older than this window
	// (e.g. "168h"). Empty or "0" disables staleness reporting.
	// Stale gates are only reported, never auto-resolved.
	StaleAfter string `yaml:"staleAfter,omitempty"`
}

// Config models shipway.yml.
type Config struct {
	QualityGates map[string]GateConfig `yaml:"qualityGates,omitempty"`
	Rollback     RollbackConfig        `yaml:"rollback,omitempty"`
	ManualGates  ManualGateConfig      `yaml:"manualGates,omitempty"`
}

// Default returns the configuration used when no shipway.yml exists.
// The security gate wires the conventional scanners; an absent tool
// degrades per the evaluator's policy, except the critical secrets
// check.
func Default() *Config {
	return &Config{
		QualityGates: map[string]GateConfig{
			"security": {
				Checks: []CheckConfig{
					{Name: "sast", Command: []string{"semgrep", "scan", "--error", "--quiet"}},
					{Name: "secrets", Command: []string{"gitleaks", "detect", "--no-banner"}, Critical: true},
					{Name: "deps", Command: []string{"osv-scanner", "."}},
				},
			},
		},
		Rollback: RollbackConfig{
			MaxAttempts: 10,
			Interval:    "2s",
		},
	}
}

// Load reads shipway.yml from the feature directory, falling back to
// Default when the file does not exist.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the config for internal consistency.
func (c *Config) Validate() error {
	for gate, gc := range c.QualityGates {
		if len(gc.Checks) == 0 {
			return fmt.Errorf("qualityGates.%s: no checks configured", gate)
		}
		seen := map[string]bool{}
		for _, check := range gc.Checks {
			if check.Name == "" {
				return fmt.Errorf("qualityGates.%s: check with empty name", gate)
			}
			if seen[check.Name] {
				return fmt.Errorf("qualityGates.%s: duplicate check %q", gate, check.Name)
			}
			seen[check.Name] = true
			if len(check.Command) == 0 {
				return fmt.Errorf("qualityGates.%s.%s: no command configured", gate, check.Name)
			}
			if _, err := parseDuration(check.Timeout); err != nil {
				return fmt.Errorf("qualityGates.%s.%s: timeout: %w", gate, check.Name, err)
			}
		}
	}

	if c.Rollback.MaxAttempts <= 0 {
		return fmt.Errorf("rollback.maxAttempts must be positive")
	}
	if _, err := parseDuration(c.Rollback.Interval); err != nil {
		return fmt.Errorf("rollback.interval: %w", err)
	}
	if _, err := parseDuration(c.ManualGates.StaleAfter); err != nil {
		return fmt.Errorf("manualGates.staleAfter: %w", err)
	}
	return nil
}

// RollbackInterval returns the parsed polling interval.
func (c *Config) RollbackInterval() time.Duration {
	d, _ := parseDuration(c.Rollback.Interval)
	return d
}

// StaleWindow returns the parsed stale-gate window, zero when disabled.
func (c *Config) StaleWindow() time.Duration {
	d, _ := parseDuration(c.ManualGates.StaleAfter)
	return d
}

// CheckTimeout returns the parsed per-check timeout, zero when unbounded.
func (cc CheckConfig) CheckTimeout() time.Duration {
	d, _ := parseDuration(cc.Timeout)
	return d
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q must not be negative", s)
	}
	return d, nil
}

// Package cmd implements the accord command line interface.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/seankim-business/accord/internal/config"
	"github.com/seankim-business/accord/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "accord",
	Short: "Agent coordination engine",
	Long: `accord coordinates autonomous agents over a shared Redis instance.

Agents broadcast events on a pub/sub channel, negotiate directly when one
needs something from another, and escalate to a director when they cannot
settle it themselves.

Core Commands:
  serve                 Run a coordination engine process
  agents                List known agents and their states
  state <agent-id>      Show one agent's coordination context
  respond <neg-id>      Answer a pending negotiation
  decide <neg-id>       Arbitrate an escalated negotiation
  audit                 Show recent escalations and decisions
  init                  Write an accord.yaml interactively`,
}

var configPath string

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to accord.yaml (default: ./accord.yaml or built-in defaults)")
}

// loadConfig resolves the effective configuration for a command run.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.LoadOrDefault()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger from config.
func newLogger(cfg *config.Config) *logger.Logger {
	log := logger.New()
	log.SetLevel(logger.ParseLevel(cfg.Log.Level))
	log.SetJSON(cfg.Log.JSON)
	return log
}

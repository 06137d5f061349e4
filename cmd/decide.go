package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seankim-business/accord/internal/director"
	"github.com/seankim-business/accord/internal/engine"
	"github.com/seankim-business/accord/internal/ui"
)

var decideCmd = &cobra.Command{
	Use:   "decide <negotiation-id>",
	Short: "Arbitrate an escalated negotiation",
	Long: `Arbitrate an escalated negotiation as this deployment's director.

The ruling is deterministic for a given escalation and workload snapshot,
written exactly once, and broadcast so every engine process applies it.`,
	Args: cobra.ExactArgs(1),
	RunE: runDecide,
}

func init() {
	rootCmd.AddCommand(decideCmd)
}

func runDecide(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	eng := engine.New(cfg, log)
	ctx := context.Background()
	if err := eng.Start(ctx); err != nil {
		return err
	}
	defer eng.Stop()

	dec, err := eng.Director().Decide(ctx, args[0])
	if errors.Is(err, director.ErrEscalationNotFound) {
		return fmt.Errorf("no escalation found for %s; only escalated negotiations can be decided", args[0])
	}
	if err != nil {
		return err
	}

	fmt.Println(ui.Success(fmt.Sprintf("decision %s for %s", dec.Verdict, dec.NegotiationID)))
	fmt.Printf("  %s %s\n", ui.StyleCyan.Render("Rationale:"), dec.Rationale)
	fmt.Printf("  %s %v\n", ui.StyleCyan.Render("Agents:"), dec.NotifyAgents)
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/seankim-business/accord/internal/kv"
	"github.com/seankim-business/accord/internal/state"
	"github.com/seankim-business/accord/internal/ui"
)

var stateCmd = &cobra.Command{
	Use:   "state <agent-id>",
	Short: "Show one agent's coordination context",
	Args:  cobra.ExactArgs(1),
	RunE:  runState,
}

func init() {
	rootCmd.AddCommand(stateCmd)
}

func runState(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	rdb := newRedis(cfg)
	defer rdb.Close()

	machine := state.NewMachine(kv.NewRedisStore(rdb), cfg.Coordination.KeyPrefix, cfg.StateTTL(), log)
	agent, err := machine.State(context.Background(), args[0])
	if err != nil {
		return err
	}

	fmt.Print(ui.Header(agent.AgentID))
	fmt.Printf("  %s %s\n", ui.StyleCyan.Render("State:"), ui.StateBadge(string(agent.State)))
	if agent.CurrentTask != "" {
		fmt.Printf("  %s %s\n", ui.StyleCyan.Render("Task:"), agent.CurrentTask)
	}
	if agent.BlockedReason != "" {
		fmt.Printf("  %s %s\n", ui.StyleCyan.Render("Blocked:"), agent.BlockedReason)
	}
	if len(agent.ActiveNegotiations) > 0 {
		fmt.Printf("  %s %s\n", ui.StyleCyan.Render("Negotiations:"), strings.Join(agent.ActiveNegotiations, ", "))
	}
	if len(agent.PendingDecisions) > 0 {
		fmt.Printf("  %s %s\n", ui.StyleCyan.Render("Pending decisions:"), strings.Join(agent.PendingDecisions, ", "))
	}
	fmt.Printf("  %s %s\n", ui.StyleCyan.Render("Last change:"), ui.StyleDim.Render(agent.LastStateChange.Local().Format(time.RFC3339)))
	return nil
}

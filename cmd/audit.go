package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/seankim-business/accord/internal/audit"
	"github.com/seankim-business/accord/internal/ui"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent escalations and director decisions",
	Args:  cobra.NoArgs,
	RunE:  runAudit,
}

var auditLimit int64

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.Flags().Int64VarP(&auditLimit, "limit", "n", 20, "number of entries to show")
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	rdb := newRedis(cfg)
	defer rdb.Close()

	recorder := audit.NewRecorder(rdb, cfg.Audit.Stream, cfg.Audit.MaxLen, log)
	entries, err := recorder.Recent(context.Background(), auditLimit)
	if err != nil {
		return fmt.Errorf("read audit stream: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("Audit stream is empty")
		return nil
	}

	fmt.Print(ui.Header("Audit trail"))
	for _, e := range entries {
		kind := ui.StyleYellow.Render(e.Kind)
		if e.Kind == "decision" {
			kind = ui.StyleGreen.Render(e.Kind)
		}
		fmt.Printf("%s  %s  %s  %s\n",
			ui.StyleDim.Render(e.At.Local().Format(time.RFC3339)),
			kind,
			e.NegotiationID,
			ui.StyleDim.Render(strings.Join(e.AgentIDs, ",")),
		)
		if e.Detail != "" {
			fmt.Printf("    %s\n", e.Detail)
		}
	}
	return nil
}

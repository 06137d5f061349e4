package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/seankim-business/accord/internal/engine"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a coordination engine process",
	Long: `Run a coordination engine connected to the shared Redis instance.

The process subscribes to the coordination channel, applies director
decisions to local agent state, and keeps running until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	eng := engine.New(cfg, log)
	ctx := context.Background()
	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	log.Info("received %s, shutting down", sig)

	return eng.Stop()
}

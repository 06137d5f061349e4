package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/seankim-business/accord/internal/config"
	"github.com/seankim-business/accord/internal/ui"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an accord.yaml interactively",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	path := config.DefaultFile
	if configPath != "" {
		path = configPath
	}

	if _, err := os.Stat(path); err == nil {
		overwrite, err := ui.PromptConfirm(fmt.Sprintf("%s exists, overwrite?", path), false)
		if err != nil {
			return err
		}
		if !overwrite {
			fmt.Println("Aborted")
			return nil
		}
	}

	cfg := config.Default()

	addr, err := ui.PromptDefault("Redis address:", cfg.Redis.Addr)
	if err != nil {
		return err
	}
	cfg.Redis.Addr = addr

	password, err := ui.PromptSecret("Redis password (empty for none):")
	if err != nil {
		return err
	}
	cfg.Redis.Password = password

	channel, err := ui.PromptDefault("Coordination channel:", cfg.Coordination.Channel)
	if err != nil {
		return err
	}
	cfg.Coordination.Channel = channel

	prefix, err := ui.PromptDefault("Key prefix:", cfg.Coordination.KeyPrefix)
	if err != nil {
		return err
	}
	cfg.Coordination.KeyPrefix = prefix

	timeout, err := ui.PromptDefault("Negotiation timeout (seconds):", strconv.Itoa(cfg.Coordination.NegotiationTimeoutSeconds))
	if err != nil {
		return err
	}
	seconds, err := strconv.Atoi(timeout)
	if err != nil || seconds < 1 {
		return fmt.Errorf("invalid timeout %q", timeout)
	}
	cfg.Coordination.NegotiationTimeoutSeconds = seconds

	directorID, err := ui.PromptDefault("Director id:", cfg.Director.ID)
	if err != nil {
		return err
	}
	cfg.Director.ID = directorID

	webhook, err := ui.PromptOptional("Escalation webhook URL (empty to disable):")
	if err != nil {
		return err
	}
	cfg.Webhook.URL = webhook

	level, err := ui.PromptSelect("Log level:", []string{"info", "debug", "warn", "error"})
	if err != nil {
		return err
	}
	cfg.Log.Level = level

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(path); err != nil {
		return err
	}

	fmt.Println(ui.Success("wrote " + path))
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seankim-business/accord/internal/engine"
	"github.com/seankim-business/accord/internal/negotiation"
	"github.com/seankim-business/accord/internal/ui"
)

var respondCmd = &cobra.Command{
	Use:   "respond <negotiation-id>",
	Short: "Answer a pending negotiation on an agent's behalf",
	Long: `Answer a pending negotiation: accept it, reject it with a reason, or
counter with alternative terms (key=value pairs).

Examples:
  accord respond neg-123 --from agent-b --decision accept
  accord respond neg-123 --from agent-b --decision reject --reason "at capacity"
  accord respond neg-123 --from agent-b --decision counter --terms deadline=friday`,
	Args: cobra.ExactArgs(1),
	RunE: runRespond,
}

var (
	respondFrom     string
	respondDecision string
	respondReason   string
	respondTerms    []string
)

func init() {
	rootCmd.AddCommand(respondCmd)
	respondCmd.Flags().StringVar(&respondFrom, "from", "", "responding agent id (required)")
	respondCmd.Flags().StringVar(&respondDecision, "decision", "", "accept, reject or counter (required)")
	respondCmd.Flags().StringVar(&respondReason, "reason", "", "reason for a rejection")
	respondCmd.Flags().StringSliceVar(&respondTerms, "terms", nil, "counter terms as key=value pairs")
	_ = respondCmd.MarkFlagRequired("from")
	_ = respondCmd.MarkFlagRequired("decision")
}

func runRespond(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	resp := negotiation.Response{
		ResponderID: respondFrom,
		Decision:    negotiation.Decision(respondDecision),
		Reason:      respondReason,
	}
	if len(respondTerms) > 0 {
		resp.Counter = make(map[string]string, len(respondTerms))
		for _, term := range respondTerms {
			k, v, ok := strings.Cut(term, "=")
			if !ok {
				return fmt.Errorf("invalid term %q, want key=value", term)
			}
			resp.Counter[k] = v
		}
	}

	eng := engine.New(cfg, log)
	ctx := context.Background()
	if err := eng.Start(ctx); err != nil {
		return err
	}
	defer eng.Stop()

	if err := eng.Negotiations().Respond(ctx, args[0], resp); err != nil {
		return err
	}
	fmt.Println(ui.Success(fmt.Sprintf("response %s recorded for %s", respondDecision, args[0])))
	return nil
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/seankim-business/accord/internal/config"
	"github.com/seankim-business/accord/internal/state"
	"github.com/seankim-business/accord/internal/ui"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List known agents and their coordination states",
	Args:  cobra.NoArgs,
	RunE:  runAgents,
}

func init() {
	rootCmd.AddCommand(agentsCmd)
}

func newRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func runAgents(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rdb := newRedis(cfg)
	defer rdb.Close()
	ctx := context.Background()

	agents, err := scanAgents(ctx, rdb, cfg.Coordination.KeyPrefix)
	if err != nil {
		return err
	}
	if len(agents) == 0 {
		fmt.Println("No agents known")
		return nil
	}

	sort.Slice(agents, func(i, j int) bool { return agents[i].AgentID < agents[j].AgentID })

	fmt.Print(ui.Header("Agents"))
	fmt.Printf("%s%s%s%s\n",
		ui.TableHeaderStyle.Render(pad("AGENT", 20)),
		ui.TableHeaderStyle.Render(pad("STATE", 20)),
		ui.TableHeaderStyle.Render(pad("TASK", 16)),
		ui.TableHeaderStyle.Render("LAST CHANGE"),
	)
	for _, a := range agents {
		task := a.CurrentTask
		if task == "" {
			task = "-"
		}
		fmt.Printf("%s%s%s%s\n",
			ui.TableCellStyle.Render(pad(a.AgentID, 20)),
			ui.TableCellStyle.Render(ui.StateBadge(string(a.State))+pad("", 20-len(a.State))),
			ui.TableCellStyle.Render(pad(task, 16)),
			ui.StyleDim.Render(a.LastStateChange.Local().Format(time.RFC3339)),
		)
	}
	return nil
}

// scanAgents walks <prefix>:agent:*:state and parses each stored context.
func scanAgents(ctx context.Context, rdb *redis.Client, prefix string) ([]*state.Context, error) {
	pattern := fmt.Sprintf("%s:agent:*:state", prefix)
	var agents []*state.Context
	var cursor uint64
	for {
		keys, next, err := rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan agents: %w", err)
		}
		for _, key := range keys {
			raw, err := rdb.Get(ctx, key).Result()
			if err == redis.Nil {
				continue // expired between scan and get
			}
			if err != nil {
				return nil, err
			}
			var agent state.Context
			if err := json.Unmarshal([]byte(raw), &agent); err != nil {
				continue // skip corrupt records rather than failing the listing
			}
			agents = append(agents, &agent)
		}
		cursor = next
		if cursor == 0 {
			return agents, nil
		}
	}
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s + " "
	}
	return s + strings.Repeat(" ", width-len(s))
}

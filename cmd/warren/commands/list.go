package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/warrenhq/warren/pkg/sharestore"
)

var (
	listJSON bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all shares in the instance",
	Long: `List every share in the configured instance.

For each share, displays:
  • Share ID
  • Coordinator conversation ID
  • Team conversation count
  • Shared file count
  • Age

Use --json for machine-readable output.`,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(listCmd)
}

// shareInfo is the row model for both output formats.
type shareInfo struct {
	ID          string `json:"id"`
	Coordinator string `json:"coordinator_conversation_id"`
	Teams       int    `json:"team_count"`
	Files       int    `json:"file_count"`
	Age         string `json:"age"`
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := storeFromConfig()
	if err != nil {
		return err
	}
	defer store.Close()

	shares, err := store.ListShares(ctx)
	if err != nil {
		return fmt.Errorf("failed to list shares: %w", err)
	}

	var infos []shareInfo
	for _, s := range shares {
		teams, err := store.ListTeamConversations(ctx, s.ID)
		if err != nil {
			return fmt.Errorf("failed to count team conversations: %w", err)
		}
		files, err := store.ListFileRecords(ctx, s.ID)
		if err != nil {
			return fmt.Errorf("failed to count shared files: %w", err)
		}

		infos = append(infos, shareInfo{
			ID:          s.ID,
			Coordinator: s.CoordinatorConversationID,
			Teams:       len(teams),
			Files:       len(files),
			Age:         formatDuration(time.Since(time.UnixMilli(s.CreatedAtMs))),
		})
	}

	if len(infos) == 0 {
		if listJSON {
			fmt.Println("[]")
		} else {
			fmt.Println("No shares found.")
			fmt.Println()
			fmt.Println("Shares appear once the engine observes a coordinator conversation.")
		}
		return nil
	}

	if listJSON {
		outputJSON(infos)
	} else {
		outputTable(infos)
	}

	return nil
}

// storeFromConfig builds a share store client from warren.yml.
func storeFromConfig() (*sharestore.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	return sharestore.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.Instance)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)

	hours := d / time.Hour
	d -= hours * time.Hour

	minutes := d / time.Minute
	d -= minutes * time.Minute

	seconds := d / time.Second

	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	} else {
		return fmt.Sprintf("%ds", seconds)
	}
}

func outputJSON(infos []shareInfo) {
	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		fmt.Printf("Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func outputTable(infos []shareInfo) {
	// Print header
	fmt.Printf("%-38s %-30s %-6s %-6s %s\n", "SHARE", "COORDINATOR", "TEAMS", "FILES", "AGE")

	// Print rows
	for _, info := range infos {
		coordinator := info.Coordinator
		if len(coordinator) > 30 {
			coordinator = "..." + coordinator[len(coordinator)-27:]
		}

		fmt.Printf("%-38s %-30s %-6d %-6d %s\n", info.ID, coordinator, info.Teams, info.Files, info.Age)
	}
}

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/warrenhq/warren/internal/filter"
	"github.com/warrenhq/warren/internal/printer"
	"github.com/warrenhq/warren/internal/timespec"
	"github.com/warrenhq/warren/pkg/sharestore"
)

var (
	logJSON  bool
	logSince string
	logUntil string
	logType  string
	logActor string
)

var logCmd = &cobra.Command{
	Use:   "log SHARE_ID",
	Short: "Show a share's audit log",
	Long: `Render the append-only event log of one share, oldest first.

Entries record what happened to the share: creation, team joins, file shares
and deletions, brief and digest updates, information requests. Order reflects
append-completion order, not necessarily real-world event order.

Examples:
  # Render the log as colored lines
  warren log 4f8e...

  # Only file activity from the last hour
  warren log 4f8e... --type 'file_*' --since 1h

  # What did a particular team conversation trigger?
  warren log 4f8e... --actor conv-team-3

  # Pipe the raw events to jq
  warren log 4f8e... --json | jq '.[] | select(.type=="file_shared")'`,
	Args: cobra.ExactArgs(1),
	RunE: runLog,
}

func init() {
	logCmd.Flags().BoolVar(&logJSON, "json", false, "Output raw events as JSON")
	logCmd.Flags().StringVar(&logSince, "since", "", "Only show events after this time (duration like '1h30m' or RFC3339)")
	logCmd.Flags().StringVar(&logUntil, "until", "", "Only show events before this time (duration like '1h30m' or RFC3339)")
	logCmd.Flags().StringVar(&logType, "type", "", "Only show events whose type matches this glob (e.g. 'file_*')")
	logCmd.Flags().StringVar(&logActor, "actor", "", "Only show events triggered by this conversation ID")
	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	shareID := args[0]

	sinceMS, untilMS, err := timespec.ParseRange(logSince, logUntil)
	if err != nil {
		return err
	}
	criteria := &filter.Criteria{
		SinceTimestampMs: sinceMS,
		UntilTimestampMs: untilMS,
		TypeGlob:         logType,
		Actor:            logActor,
	}

	store, err := storeFromConfig()
	if err != nil {
		return err
	}
	defer store.Close()

	if _, err := store.GetShare(ctx, shareID); err != nil {
		return printer.Error(
			"share not found",
			fmt.Sprintf("No share with ID %s in this instance.", shareID),
			[]string{"List known shares:\n  warren list"},
		)
	}

	entries, err := store.ListEvents(ctx, shareID)
	if err != nil {
		return fmt.Errorf("failed to read event log: %w", err)
	}

	var matched []*sharestore.Event
	for _, e := range entries {
		if criteria.Matches(e) {
			matched = append(matched, e)
		}
	}

	if logJSON {
		if matched == nil {
			matched = []*sharestore.Event{}
		}
		data, err := json.MarshalIndent(matched, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal events: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if len(matched) == 0 {
		if criteria.HasFilters() {
			fmt.Println("No events match the given filters.")
		} else {
			fmt.Println("No events recorded for this share yet.")
		}
		return nil
	}

	for _, e := range matched {
		printer.Event(time.UnixMilli(e.CreatedAtMs), string(e.Type), e.Message)
	}
	return nil
}

package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/warrenhq/warren/internal/filter"
	"github.com/warrenhq/warren/internal/printer"
)

var (
	watchShareID string
	watchType    string
	watchActor   string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the live share event feed",
	Long: `Subscribe to the instance's share event feed and print events as they are
appended, until interrupted.

Delivery is at-most-once: events appended while the watcher is disconnected
are not replayed. Use 'warren log' for the durable history.

Examples:
  # Watch everything happening in the instance
  warren watch

  # Watch a single share
  warren watch --share 4f8e...

  # Only file activity
  warren watch --type 'file_*'`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchShareID, "share", "", "Only show events for this share ID")
	watchCmd.Flags().StringVar(&watchType, "type", "", "Only show events whose type matches this glob (e.g. 'file_*')")
	watchCmd.Flags().StringVar(&watchActor, "actor", "", "Only show events triggered by this conversation ID")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	criteria := &filter.Criteria{
		TypeGlob: watchType,
		Actor:    watchActor,
	}

	store, err := storeFromConfig()
	if err != nil {
		return err
	}
	defer store.Close()

	sub, err := store.SubscribeShareEvents(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	printer.Step("watching share events (ctrl-c to stop)\n")

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			printer.Warning("dropped one event: %v\n", err)
		case e, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if watchShareID != "" && e.ShareID != watchShareID {
				continue
			}
			if !criteria.Matches(e) {
				continue
			}
			printer.Event(time.UnixMilli(e.CreatedAtMs), string(e.Type), e.Message)
		}
	}
}

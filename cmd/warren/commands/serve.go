package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/warrenhq/warren/internal/conversation"
	"github.com/warrenhq/warren/internal/digest"
	"github.com/warrenhq/warren/internal/engine"
	"github.com/warrenhq/warren/internal/events"
	"github.com/warrenhq/warren/internal/lifecycle"
	"github.com/warrenhq/warren/internal/logger"
	"github.com/warrenhq/warren/internal/printer"
	"github.com/warrenhq/warren/internal/roles"
	"github.com/warrenhq/warren/internal/share"
	filesync "github.com/warrenhq/warren/internal/sync"
	"github.com/warrenhq/warren/pkg/sharestore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the share coordination engine",
	Long: `Run the engine: subscribe to the platform's conversation event bus and
keep every share's replicas in step until interrupted.

The engine handles conversation creation (share setup, template minting, team
joins), coordinator file fan-out, message mirroring with background digest
refresh, and information request bookkeeping.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return printer.Error(
			"invalid configuration",
			err.Error(),
			[]string{fmt.Sprintf("Check %s against the documented schema", configPath)},
		)
	}

	log := logger.New("engine")
	defer log.Sync()

	store, err := sharestore.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.Instance)
	if err != nil {
		return fmt.Errorf("failed to create share store client: %w", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := store.Ping(ctx); err != nil {
		return printer.Error(
			"cannot reach Redis",
			err.Error(),
			[]string{fmt.Sprintf("Verify redis.addr (%s) is correct and Redis is running", cfg.Redis.Addr)},
		)
	}

	conversations, err := conversation.NewHTTPClient(conversation.HTTPClientOptions{
		BaseURL:   cfg.Platform.BaseURL,
		APIToken:  cfg.Platform.APIToken,
		UserAgent: fmt.Sprintf("warren/%s", version),
	})
	if err != nil {
		return fmt.Errorf("failed to create platform client: %w", err)
	}

	eventLog := events.NewLog(store, logger.New("events"))
	notifier := events.NewNotifier(store, conversations, logger.New("notifier"))
	shares := share.NewManager(store, conversations, eventLog, notifier,
		*cfg.Messages.MaxCoordinatorMessages, logger.New("share"))
	syncer := filesync.NewSynchronizer(store, conversations, eventLog, notifier,
		time.Duration(*cfg.Sync.TargetTimeoutSeconds)*time.Second, logger.New("sync"))
	lifecycleManager := lifecycle.NewManager(store, conversations, shares, syncer, eventLog,
		lifecycle.WelcomeMessages{
			Coordinator: cfg.Messages.CoordinatorWelcome,
			Team:        cfg.Messages.TeamWelcome,
		}, logger.New("lifecycle"))
	refresher := digest.NewRefresher(store, eventLog, notifier,
		&digest.CondensingSummarizer{MaxMessages: *cfg.Digest.MaxMessages},
		*cfg.Digest.QueueSize, logger.New("digest"))

	e := engine.New(engine.Options{
		Store:         store,
		Conversations: conversations,
		Reconciler:    roles.NewReconciler(store, conversations, logger.New("roles")),
		Lifecycle:     lifecycleManager,
		Shares:        shares,
		Sync:          syncer,
		Digest:        refresher,
		Logger:        log,
	})

	printer.Success("warren engine starting (instance: %s)\n", cfg.Instance)
	return e.Run(ctx)
}

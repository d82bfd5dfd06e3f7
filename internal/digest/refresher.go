// Package digest maintains each share's auto-summarized knowledge digest.
//
// Refreshes run as background jobs on a single worker, decoupled from the
// message path that triggers them: enqueueing never blocks and a failed
// refresh never affects the outcome of the event that requested it.
package digest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/warrenhq/warren/internal/events"
	"github.com/warrenhq/warren/internal/logger"
	"github.com/warrenhq/warren/pkg/sharestore"
)

// DefaultQueueSize bounds the number of pending refresh jobs. Shares already
// queued are not deduplicated; a dropped job is recovered by the next
// coordinator message.
const DefaultQueueSize = 64

// Summarizer condenses mirrored coordinator messages into digest content.
type Summarizer interface {
	Summarize(ctx context.Context, messages []*sharestore.CoordinatorMessage) (string, error)
}

// CondensingSummarizer is the built-in summarizer: a plain bullet list of the
// most recent coordinator-authored messages. Swap in an LLM-backed
// implementation for real summarization.
type CondensingSummarizer struct {
	// MaxMessages caps how many trailing messages are included; 0 means all.
	MaxMessages int
}

// Summarize implements Summarizer.
func (s *CondensingSummarizer) Summarize(ctx context.Context, messages []*sharestore.CoordinatorMessage) (string, error) {
	if s.MaxMessages > 0 && len(messages) > s.MaxMessages {
		messages = messages[len(messages)-s.MaxMessages:]
	}

	var b strings.Builder
	for _, msg := range messages {
		if msg.IsAssistant {
			continue
		}
		fmt.Fprintf(&b, "- %s\n", strings.TrimSpace(msg.Content))
	}
	return b.String(), nil
}

// Refresher is the background digest-refresh job queue.
type Refresher struct {
	store      *sharestore.Client
	eventLog   *events.Log
	notifier   *events.Notifier
	summarizer Summarizer
	log        *logger.Logger

	jobs      chan string
	closeOnce sync.Once
	done      chan struct{}
}

// NewRefresher creates a refresher. Call Start to begin processing and Close
// to drain and stop. A non-positive queueSize falls back to DefaultQueueSize.
func NewRefresher(store *sharestore.Client, eventLog *events.Log, notifier *events.Notifier, summarizer Summarizer, queueSize int, log *logger.Logger) *Refresher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Refresher{
		store:      store,
		eventLog:   eventLog,
		notifier:   notifier,
		summarizer: summarizer,
		log:        log,
		jobs:       make(chan string, queueSize),
		done:       make(chan struct{}),
	}
}

// Start runs the worker until the context is cancelled or Close is called.
func (r *Refresher) Start(ctx context.Context) {
	go func() {
		defer close(r.done)
		for {
			select {
			case <-ctx.Done():
				return
			case shareID, ok := <-r.jobs:
				if !ok {
					return
				}
				if err := r.Refresh(ctx, shareID); err != nil {
					// Failure isolation: log and move on, the triggering
					// event already completed independently.
					r.log.Warnw("digest refresh failed",
						"share_id", shareID,
						"error", err)
				}
			}
		}
	}()
}

// Enqueue requests a background refresh for a share. Never blocks: when the
// queue is full the job is dropped and the next coordinator message will
// trigger another attempt.
func (r *Refresher) Enqueue(shareID string) {
	select {
	case r.jobs <- shareID:
	default:
		r.log.Warnw("digest refresh queue full, dropping job",
			"share_id", shareID)
	}
}

// Close stops accepting jobs and waits for the worker to finish the queue.
func (r *Refresher) Close() {
	r.closeOnce.Do(func() { close(r.jobs) })
	<-r.done
}

// Refresh rebuilds one share's digest synchronously: summarize the mirrored
// coordinator messages, store the result, log it and refresh the digest view
// everywhere.
func (r *Refresher) Refresh(ctx context.Context, shareID string) error {
	messages, err := r.store.ListCoordinatorMessages(ctx, shareID, 0)
	if err != nil {
		return fmt.Errorf("failed to read coordinator messages: %w", err)
	}
	if len(messages) == 0 {
		return nil
	}

	content, err := r.summarizer.Summarize(ctx, messages)
	if err != nil {
		return fmt.Errorf("failed to summarize: %w", err)
	}

	d := &sharestore.Digest{
		Content:            content,
		SourceMessageCount: len(messages),
		UpdatedAtMs:        time.Now().UnixMilli(),
	}
	if err := r.store.SetDigest(ctx, shareID, d); err != nil {
		return fmt.Errorf("failed to write digest: %w", err)
	}

	if err := r.eventLog.Append(ctx, shareID, sharestore.EventTypeDigestUpdated, "digest refreshed", "", nil); err != nil {
		r.log.Warnw("digest refreshed but event append failed",
			"share_id", shareID,
			"error", err)
	}

	if err := r.notifier.NotifyStateUpdate(ctx, shareID, []string{events.ViewDigest}); err != nil {
		r.log.Warnw("failed to notify replicas of digest refresh",
			"share_id", shareID,
			"error", err)
	}
	return nil
}

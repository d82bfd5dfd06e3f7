// Package engine is the top-level event loop: it consumes inbound
// conversation events from the platform bus and dispatches each one onto its
// own goroutine.
//
// There is no global lock over a share. Concurrent handlers for the same
// share are expected and safe: the store's collection mutations are atomic
// and every handler is isolated, so one failing or panicking event never
// takes down the loop or another handler.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/warrenhq/warren/internal/conversation"
	"github.com/warrenhq/warren/internal/digest"
	"github.com/warrenhq/warren/internal/lifecycle"
	"github.com/warrenhq/warren/internal/logger"
	"github.com/warrenhq/warren/internal/roles"
	"github.com/warrenhq/warren/internal/share"
	filesync "github.com/warrenhq/warren/internal/sync"
	"github.com/warrenhq/warren/pkg/sharestore"
)

// apologyNotice is the generic notice posted when a handler fails in a way
// the recovery paths could not absorb.
const apologyNotice = "Something went wrong while processing the last update. Please try again."

// Engine wires the subsystems together and runs the dispatch loop.
type Engine struct {
	store         *sharestore.Client
	conversations conversation.Store
	reconciler    *roles.Reconciler
	lifecycle     *lifecycle.Manager
	shares        *share.Manager
	sync          *filesync.Synchronizer
	digest        *digest.Refresher
	log           *logger.Logger

	handlers sync.WaitGroup
}

// Options carries the engine's collaborators.
type Options struct {
	Store         *sharestore.Client
	Conversations conversation.Store
	Reconciler    *roles.Reconciler
	Lifecycle     *lifecycle.Manager
	Shares        *share.Manager
	Sync          *filesync.Synchronizer
	Digest        *digest.Refresher
	Logger        *logger.Logger
}

// New creates an engine from its collaborators.
func New(opts Options) *Engine {
	return &Engine{
		store:         opts.Store,
		conversations: opts.Conversations,
		reconciler:    opts.Reconciler,
		lifecycle:     opts.Lifecycle,
		shares:        opts.Shares,
		sync:          opts.Sync,
		digest:        opts.Digest,
		log:           opts.Logger,
	}
}

// Run consumes the conversation event bus until the context is cancelled.
// Each event is handled on its own goroutine; Run waits for in-flight
// handlers before returning.
func (e *Engine) Run(ctx context.Context) error {
	sub, err := e.store.SubscribeConversationEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to conversation events: %w", err)
	}
	defer sub.Close()

	e.digest.Start(ctx)
	defer e.digest.Close()

	e.log.Infow("engine started")

	for {
		select {
		case <-ctx.Done():
			e.handlers.Wait()
			e.log.Infow("engine stopped")
			return nil

		case err, ok := <-sub.Errors():
			if !ok {
				e.handlers.Wait()
				return nil
			}
			e.log.Errorw("conversation event subscription error", "error", err)

		case ev, ok := <-sub.Events():
			if !ok {
				e.handlers.Wait()
				return nil
			}
			e.handlers.Add(1)
			go func(ev *sharestore.ConversationEvent) {
				defer e.handlers.Done()
				e.handle(ctx, ev)
			}(ev)
		}
	}
}

// handle dispatches one event. Panics are recovered here so a single bad
// event cannot crash the process; the affected conversation gets one
// best-effort apology notice.
func (e *Engine) handle(ctx context.Context, ev *sharestore.ConversationEvent) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Errorw("panic while handling conversation event",
				"event_id", ev.ID,
				"event_type", ev.Type,
				"conversation_id", ev.ConversationID,
				"panic", r)
			e.apologize(ctx, ev.ConversationID)
		}
	}()

	var err error
	switch ev.Type {
	case sharestore.ConversationEventCreated:
		err = e.lifecycle.OnConversationCreated(ctx, ev.ConversationID)
	case sharestore.ConversationEventUpdated:
		err = e.onConversationUpdated(ctx, ev)
	case sharestore.ConversationEventMessageCreated:
		err = e.onMessageCreated(ctx, ev)
	case sharestore.ConversationEventFileCreated:
		err = e.onFileChanged(ctx, ev, filesync.OpCreate)
	case sharestore.ConversationEventFileUpdated:
		err = e.onFileChanged(ctx, ev, filesync.OpUpdate)
	case sharestore.ConversationEventFileDeleted:
		err = e.onFileChanged(ctx, ev, filesync.OpDelete)
	case sharestore.ConversationEventParticipantJoined:
		err = e.lifecycle.OnParticipantJoined(ctx, ev.ConversationID, ev.Participant)
	default:
		e.log.Debugw("ignoring unrecognized event type",
			"event_id", ev.ID,
			"event_type", ev.Type)
		return
	}

	if err != nil {
		// Fan-out and reconciliation failures were already absorbed where
		// they happened; anything surfacing here is logged for the audit
		// trail, never pushed at end users.
		e.log.Errorw("event handler failed",
			"event_id", ev.ID,
			"event_type", ev.Type,
			"conversation_id", ev.ConversationID,
			"error", err)
	}
}

// onConversationUpdated keeps the template conversation's title in step with
// the coordinator's.
func (e *Engine) onConversationUpdated(ctx context.Context, ev *sharestore.ConversationEvent) error {
	res, ok := e.reconciler.Resolve(ctx, ev.ConversationID)
	if !ok || res.Role != sharestore.RoleCoordinator {
		return nil
	}

	conv, err := e.conversations.GetConversation(ctx, ev.ConversationID)
	if err != nil {
		return fmt.Errorf("failed to load updated conversation: %w", err)
	}
	return e.shares.SyncTemplateTitle(ctx, res.ShareID, conv.Title)
}

// onMessageCreated mirrors coordinator chat into the share and queues a
// digest refresh. Assistant messages are mirrored too (the summarizer skips
// them) but never trigger a refresh of their own.
func (e *Engine) onMessageCreated(ctx context.Context, ev *sharestore.ConversationEvent) error {
	if ev.Message == nil {
		return nil
	}

	res, ok := e.reconciler.Resolve(ctx, ev.ConversationID)
	if !ok || res.Role != sharestore.RoleCoordinator {
		return nil
	}

	// Transient status while the message is being processed.
	if err := e.conversations.UpdateParticipantStatus(ctx, ev.ConversationID, "syncing knowledge"); err != nil {
		e.log.Debugw("failed to set participant status",
			"conversation_id", ev.ConversationID,
			"error", err)
	}
	defer func() {
		if err := e.conversations.UpdateParticipantStatus(ctx, ev.ConversationID, ""); err != nil {
			e.log.Debugw("failed to clear participant status",
				"conversation_id", ev.ConversationID,
				"error", err)
		}
	}()

	if err := e.shares.MirrorCoordinatorMessage(ctx, res.ShareID, &sharestore.CoordinatorMessage{
		MessageID:   ev.Message.ID,
		SenderName:  ev.Message.SenderName,
		IsAssistant: ev.Message.IsAssistant,
		Content:     ev.Message.Content,
		TimestampMs: ev.TimestampMs,
	}); err != nil {
		return err
	}

	// The digest catches up in the background; its failure never affects
	// this handler's outcome.
	if !ev.Message.IsAssistant {
		e.digest.Enqueue(res.ShareID)
	}
	return nil
}

// onFileChanged propagates coordinator file operations. Team file events are
// deliberately left alone: team files are local-only and never reach the
// index or other conversations.
func (e *Engine) onFileChanged(ctx context.Context, ev *sharestore.ConversationEvent, op filesync.Op) error {
	if ev.File == nil {
		return nil
	}

	res, ok := e.reconciler.Resolve(ctx, ev.ConversationID)
	if !ok {
		return nil
	}
	if res.Role != sharestore.RoleCoordinator {
		e.log.Debugw("ignoring non-coordinator file event",
			"conversation_id", ev.ConversationID,
			"filename", ev.File.Filename,
			"role", res.Role)
		return nil
	}

	return e.sync.OnCoordinatorFileChanged(ctx, res.ShareID, ev.ConversationID, ev.File, op)
}

// apologize posts the generic failure notice. Best effort.
func (e *Engine) apologize(ctx context.Context, conversationID string) {
	msg := conversation.NewMessage{Content: apologyNotice, Kind: conversation.MessageKindNotice}
	if err := e.conversations.SendMessage(ctx, conversationID, msg); err != nil {
		e.log.Warnw("failed to send apology notice",
			"conversation_id", conversationID,
			"error", err)
	}
}

// Package events provides the append-only audit log and the refresh
// notifier for shares.
//
// The two are deliberately split: appending an event records what happened
// (durable, ordered by append completion), while notifying tells every
// replica of a share to re-read its cached views (ephemeral, fire-and-forget).
// Most mutating operations do both, in that order.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/warrenhq/warren/internal/conversation"
	"github.com/warrenhq/warren/internal/logger"
	"github.com/warrenhq/warren/pkg/sharestore"
)

// Known view names carried by refresh signals. Replicas re-read only the
// views named in the signal; the payload never contains artifact content.
const (
	ViewBrief    = "brief"
	ViewFileList = "file_list"
	ViewDigest   = "digest"
	ViewRequests = "requests"
	ViewTeam     = "team"
)

// Log appends structured events to a share's audit trail.
type Log struct {
	store *sharestore.Client
	log   *logger.Logger
}

// NewLog creates an event log over the given store.
func NewLog(store *sharestore.Client, log *logger.Logger) *Log {
	return &Log{store: store, log: log}
}

// Append records one event against the share. The store publishes the event
// to live subscribers as part of the append; order in the log reflects
// append-completion order, not causal order.
func (l *Log) Append(ctx context.Context, shareID string, eventType sharestore.EventType, message, actorConversationID string, metadata map[string]string) error {
	e := &sharestore.Event{
		ID:                  uuid.New().String(),
		ShareID:             shareID,
		Type:                eventType,
		Message:             message,
		Metadata:            metadata,
		ActorConversationID: actorConversationID,
		CreatedAtMs:         time.Now().UnixMilli(),
	}

	if err := l.store.AppendEvent(ctx, e); err != nil {
		l.log.Errorw("failed to append share event",
			"share_id", shareID,
			"event_type", eventType,
			"error", err)
		return fmt.Errorf("failed to append share event: %w", err)
	}

	l.log.Debugw("share event appended",
		"share_id", shareID,
		"event_type", eventType,
		"event_id", e.ID)
	return nil
}

// Notifier broadcasts view-refresh signals to every conversation in a share.
type Notifier struct {
	store         *sharestore.Client
	conversations conversation.Store
	log           *logger.Logger
}

// NewNotifier creates a notifier over the given store and platform client.
func NewNotifier(store *sharestore.Client, conversations conversation.Store, log *logger.Logger) *Notifier {
	return &Notifier{store: store, conversations: conversations, log: log}
}

// NotifyStateUpdate tells every replica of a share (coordinator, template,
// every team conversation) that the named views are stale and should be
// re-read from the store. The signal carries view names only, so the
// notification path stays O(1) in payload size regardless of artifact size.
//
// Delivery is best effort per target: a failure to reach one conversation is
// collected and does not block the others.
func (n *Notifier) NotifyStateUpdate(ctx context.Context, shareID string, views []string) error {
	share, err := n.store.GetShare(ctx, shareID)
	if err != nil {
		return fmt.Errorf("failed to load share for notification: %w", err)
	}

	teams, err := n.store.ListTeamConversations(ctx, shareID)
	if err != nil {
		return fmt.Errorf("failed to list team conversations for notification: %w", err)
	}

	targets := make([]string, 0, len(teams)+2)
	targets = append(targets, share.CoordinatorConversationID)
	if share.TemplateConversationID != "" {
		targets = append(targets, share.TemplateConversationID)
	}
	targets = append(targets, teams...)

	var errs error
	for _, conversationID := range targets {
		if err := n.notifyConversation(ctx, shareID, conversationID, views); err != nil {
			n.log.Warnw("failed to notify conversation of state update",
				"share_id", shareID,
				"conversation_id", conversationID,
				"error", err)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (n *Notifier) notifyConversation(ctx context.Context, shareID, conversationID string, views []string) error {
	var errs error
	for _, view := range views {
		err := n.conversations.SendStateEvent(ctx, conversationID, conversation.StateEvent{
			StateID: view,
			Event:   "updated",
		})
		errs = multierr.Append(errs, err)
	}

	errs = multierr.Append(errs, n.store.PublishRefresh(ctx, conversationID, &sharestore.RefreshSignal{
		ShareID: shareID,
		Views:   views,
	}))
	return errs
}

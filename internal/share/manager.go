// Package share implements the share-level management operations that sit
// above the raw store: creating shares and their shareable template
// conversations, maintaining the knowledge brief, mirroring coordinator
// messages, and tracking information requests from team conversations.
package share

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/warrenhq/warren/internal/conversation"
	"github.com/warrenhq/warren/internal/events"
	"github.com/warrenhq/warren/internal/logger"
	"github.com/warrenhq/warren/pkg/sharestore"
)

// DefaultMaxCoordinatorMessages caps the mirrored coordinator message list.
const DefaultMaxCoordinatorMessages = 50

// shareIDNamespace seeds the deterministic derivation of share IDs from
// coordinator conversation IDs.
var shareIDNamespace = uuid.MustParse("7d44b227-91b9-4a6e-8c3f-5a20e4d1b6f8")

// Manager performs share-level operations.
type Manager struct {
	store                  *sharestore.Client
	conversations          conversation.Store
	eventLog               *events.Log
	notifier               *events.Notifier
	maxCoordinatorMessages int
	log                    *logger.Logger
}

// NewManager creates a share manager. A non-positive maxCoordinatorMessages
// falls back to DefaultMaxCoordinatorMessages.
func NewManager(store *sharestore.Client, conversations conversation.Store, eventLog *events.Log, notifier *events.Notifier, maxCoordinatorMessages int, log *logger.Logger) *Manager {
	if maxCoordinatorMessages <= 0 {
		maxCoordinatorMessages = DefaultMaxCoordinatorMessages
	}
	return &Manager{
		store:                  store,
		conversations:          conversations,
		eventLog:               eventLog,
		notifier:               notifier,
		maxCoordinatorMessages: maxCoordinatorMessages,
		log:                    log,
	}
}

// CreateShare mints the share owned by the given coordinator conversation
// and records the creation in the audit log. The share ID is derived from
// the coordinator conversation ID, so a retry after a crash partway through
// coordinator setup resumes the existing share instead of minting an orphan.
func (m *Manager) CreateShare(ctx context.Context, coordinatorConversationID string) (*sharestore.Share, error) {
	s := &sharestore.Share{
		ID:                        uuid.NewSHA1(shareIDNamespace, []byte(coordinatorConversationID)).String(),
		CoordinatorConversationID: coordinatorConversationID,
		CreatedAtMs:               time.Now().UnixMilli(),
	}
	if err := m.store.CreateShare(ctx, s); err != nil {
		if errors.Is(err, sharestore.ErrShareExists) {
			existing, err := m.store.GetShare(ctx, s.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to load existing share: %w", err)
			}
			return existing, nil
		}
		return nil, fmt.Errorf("failed to create share: %w", err)
	}

	if err := m.eventLog.Append(ctx, s.ID, sharestore.EventTypeShareCreated, "share created", coordinatorConversationID, nil); err != nil {
		m.log.Warnw("share created but event append failed",
			"share_id", s.ID,
			"error", err)
	}
	return s, nil
}

// CreateShareableTemplate asks the platform to mint the dormant template
// conversation carrying the share's join link, then binds its ID to the
// share. The template conversation exists only to be redeemed; it is never
// used directly by a human.
func (m *Manager) CreateShareableTemplate(ctx context.Context, s *sharestore.Share) (string, string, error) {
	templateConversationID, shareURL, err := m.conversations.CreateShareableConversation(ctx, s.CoordinatorConversationID, s.ID)
	if err != nil {
		return "", "", fmt.Errorf("failed to create shareable conversation: %w", err)
	}

	if err := m.store.SetTemplateConversation(ctx, s.ID, templateConversationID); err != nil {
		return "", "", fmt.Errorf("failed to bind template conversation: %w", err)
	}
	return templateConversationID, shareURL, nil
}

// UpdateBrief replaces the share's knowledge brief, logs the change and
// refreshes every replica's brief view.
func (m *Manager) UpdateBrief(ctx context.Context, shareID, actorConversationID string, brief *sharestore.Brief) error {
	brief.UpdatedAtMs = time.Now().UnixMilli()
	if err := m.store.SetBrief(ctx, shareID, brief); err != nil {
		return fmt.Errorf("failed to write brief: %w", err)
	}

	if err := m.eventLog.Append(ctx, shareID, sharestore.EventTypeBriefUpdated,
		fmt.Sprintf("brief updated: %s", brief.Title), actorConversationID, nil); err != nil {
		m.log.Warnw("brief updated but event append failed",
			"share_id", shareID,
			"error", err)
	}

	if err := m.notifier.NotifyStateUpdate(ctx, shareID, []string{events.ViewBrief}); err != nil {
		m.log.Warnw("failed to notify replicas of brief update",
			"share_id", shareID,
			"error", err)
	}
	return nil
}

// Brief reads the share's current knowledge brief.
func (m *Manager) Brief(ctx context.Context, shareID string) (*sharestore.Brief, error) {
	return m.store.GetBrief(ctx, shareID)
}

// MirrorCoordinatorMessage appends a coordinator chat message to the share's
// mirrored message list so team-side tooling can read the coordinator's
// narrative without access to the coordinator conversation itself. The list
// is capped; older messages fall off.
func (m *Manager) MirrorCoordinatorMessage(ctx context.Context, shareID string, msg *sharestore.CoordinatorMessage) error {
	if msg.TimestampMs == 0 {
		msg.TimestampMs = time.Now().UnixMilli()
	}
	if err := m.store.AppendCoordinatorMessage(ctx, shareID, msg, m.maxCoordinatorMessages); err != nil {
		return fmt.Errorf("failed to mirror coordinator message: %w", err)
	}
	return nil
}

// CreateInformationRequest files a new request from a team conversation,
// logs it and refreshes the requests view everywhere.
func (m *Manager) CreateInformationRequest(ctx context.Context, shareID, requestorConversationID, title, detail string) (*sharestore.InformationRequest, error) {
	req := &sharestore.InformationRequest{
		ID:                      uuid.New().String(),
		ShareID:                 shareID,
		RequestorConversationID: requestorConversationID,
		Title:                   title,
		Detail:                  detail,
		Status:                  sharestore.RequestStatusOpen,
		CreatedAtMs:             time.Now().UnixMilli(),
	}
	if err := m.store.PutInformationRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create information request: %w", err)
	}

	if err := m.eventLog.Append(ctx, shareID, sharestore.EventTypeRequestCreated,
		fmt.Sprintf("information request: %s", title), requestorConversationID,
		map[string]string{"request_id": req.ID}); err != nil {
		m.log.Warnw("request created but event append failed",
			"share_id", shareID,
			"request_id", req.ID,
			"error", err)
	}

	if err := m.notifier.NotifyStateUpdate(ctx, shareID, []string{events.ViewRequests}); err != nil {
		m.log.Warnw("failed to notify replicas of new request",
			"share_id", shareID,
			"error", err)
	}
	return req, nil
}

// ResolveInformationRequest marks a request resolved with the coordinator's
// answer. Resolving an already-resolved request is an idempotent no-op.
func (m *Manager) ResolveInformationRequest(ctx context.Context, shareID, requestID, resolverConversationID, resolution string) error {
	req, err := m.store.GetInformationRequest(ctx, shareID, requestID)
	if err != nil {
		return fmt.Errorf("failed to load information request: %w", err)
	}
	if req.Status == sharestore.RequestStatusResolved {
		return nil
	}

	req.Status = sharestore.RequestStatusResolved
	req.Resolution = resolution
	req.ResolvedAtMs = time.Now().UnixMilli()
	if err := m.store.PutInformationRequest(ctx, req); err != nil {
		return fmt.Errorf("failed to resolve information request: %w", err)
	}

	if err := m.eventLog.Append(ctx, shareID, sharestore.EventTypeRequestResolved,
		fmt.Sprintf("request resolved: %s", req.Title), resolverConversationID,
		map[string]string{"request_id": req.ID}); err != nil {
		m.log.Warnw("request resolved but event append failed",
			"share_id", shareID,
			"request_id", req.ID,
			"error", err)
	}

	if err := m.notifier.NotifyStateUpdate(ctx, shareID, []string{events.ViewRequests}); err != nil {
		m.log.Warnw("failed to notify replicas of resolved request",
			"share_id", shareID,
			"error", err)
	}
	return nil
}

// SyncTemplateTitle keeps the dormant template conversation's title in step
// with the coordinator conversation so redeemed copies open with the right
// name. No-op until the template exists.
func (m *Manager) SyncTemplateTitle(ctx context.Context, shareID, title string) error {
	s, err := m.store.GetShare(ctx, shareID)
	if err != nil {
		return fmt.Errorf("failed to load share: %w", err)
	}
	if s.TemplateConversationID == "" {
		return nil
	}

	if err := m.conversations.UpdateTitle(ctx, s.TemplateConversationID, title); err != nil {
		return fmt.Errorf("failed to update template title: %w", err)
	}
	return nil
}

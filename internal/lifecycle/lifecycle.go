// Package lifecycle decides, exactly once per conversation, which of the
// three kinds a newly observed conversation is and runs the matching setup
// branch.
//
// The decision is a single table over the creation metadata (share ID,
// redemption token, import lineage); no other code path re-derives kind
// heuristics. All three branches are replay-safe: conversation-created
// events can arrive more than once and every step leads with an
// already-associated check.
package lifecycle

import (
	"context"
	"fmt"

	"github.com/warrenhq/warren/internal/conversation"
	"github.com/warrenhq/warren/internal/events"
	"github.com/warrenhq/warren/internal/logger"
	"github.com/warrenhq/warren/internal/share"
	filesync "github.com/warrenhq/warren/internal/sync"
	"github.com/warrenhq/warren/pkg/sharestore"
)

// Kind is the classification of a newly created conversation.
type Kind string

const (
	// KindCoordinator starts a brand-new share and owns its artifacts.
	KindCoordinator Kind = "coordinator"

	// KindTemplate is the dormant conversation carrying the join link.
	KindTemplate Kind = "template"

	// KindTeam is a conversation minted by redeeming the template's link.
	KindTeam Kind = "team"

	// KindUnknown is metadata this machine does not recognize; the
	// conversation is left alone.
	KindUnknown Kind = "unknown"
)

// Classify maps a conversation's creation metadata to its kind.
//
// Decision table over {has share ID, has redemption token, has import
// lineage}: a conversation with no share binding at all becomes the
// coordinator of a new share; a share-bound conversation with import lineage
// was created by redeeming the template's link and is a team instance; a
// share-bound conversation without lineage is the template itself.
func Classify(conv *conversation.Conversation) Kind {
	shareID := conv.MetadataValue(conversation.MetadataShareID)
	hasToken := conv.MetadataValue(conversation.MetadataRedemptionToken) != ""
	hasLineage := conv.ImportedFromConversationID != ""

	switch {
	case shareID == "" && !hasToken:
		return KindCoordinator
	case shareID != "" && hasLineage:
		return KindTeam
	case shareID != "":
		return KindTemplate
	default:
		return KindUnknown
	}
}

// WelcomeMessages holds the templates posted into newly set-up
// conversations. The coordinator template receives the share URL as its one
// format argument.
type WelcomeMessages struct {
	Coordinator string
	Team        string
}

// Manager runs the per-kind setup branches.
type Manager struct {
	store         *sharestore.Client
	conversations conversation.Store
	shares        *share.Manager
	sync          *filesync.Synchronizer
	eventLog      *events.Log
	welcome       WelcomeMessages
	log           *logger.Logger
}

// NewManager creates a lifecycle manager.
func NewManager(store *sharestore.Client, conversations conversation.Store, shares *share.Manager, sync *filesync.Synchronizer, eventLog *events.Log, welcome WelcomeMessages, log *logger.Logger) *Manager {
	return &Manager{
		store:         store,
		conversations: conversations,
		shares:        shares,
		sync:          sync,
		eventLog:      eventLog,
		welcome:       welcome,
		log:           log,
	}
}

// OnConversationCreated binds a newly observed conversation to a share
// according to its classification. Safe to call repeatedly for the same
// conversation: at-least-once event delivery must not create a second share,
// a second team entry or a duplicate role record.
func (m *Manager) OnConversationCreated(ctx context.Context, conversationID string) error {
	conv, err := m.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}

	switch kind := Classify(conv); kind {
	case KindCoordinator:
		return m.setupCoordinator(ctx, conv)
	case KindTemplate:
		return m.setupTemplate(ctx, conv)
	case KindTeam:
		return m.setupTeam(ctx, conv)
	default:
		m.log.Warnw("conversation metadata did not classify, leaving alone",
			"conversation_id", conversationID)
		return nil
	}
}

// setupCoordinator creates a new share owned by this conversation, mints the
// shareable template conversation and posts the welcome message carrying the
// join link. On replay it resumes from whichever step is still missing.
func (m *Manager) setupCoordinator(ctx context.Context, conv *conversation.Conversation) error {
	var (
		s      *sharestore.Share
		replay bool
	)

	record, err := m.store.GetRoleRecord(ctx, conv.ID)
	switch {
	case err == nil:
		if record.Role != sharestore.RoleCoordinator {
			return fmt.Errorf("conversation %s already bound with role %q", conv.ID, record.Role)
		}
		replay = true
		if s, err = m.store.GetShare(ctx, record.ShareID); err != nil {
			return fmt.Errorf("failed to load share on replay: %w", err)
		}
	case sharestore.IsNotFound(err):
		if s, err = m.shares.CreateShare(ctx, conv.ID); err != nil {
			return err
		}
		if err := m.store.BindConversation(ctx, &sharestore.RoleRecord{
			ConversationID: conv.ID,
			ShareID:        s.ID,
			Role:           sharestore.RoleCoordinator,
		}); err != nil {
			return fmt.Errorf("failed to bind coordinator role: %w", err)
		}
		m.writeCacheMetadata(ctx, conv.ID, s.ID, sharestore.RoleCoordinator)
	default:
		return fmt.Errorf("failed to check existing association: %w", err)
	}

	// Template creation is resumed if an earlier attempt failed midway.
	if s.TemplateConversationID != "" {
		if replay {
			m.log.Debugw("coordinator creation replayed, already set up",
				"conversation_id", conv.ID,
				"share_id", s.ID)
		}
		return nil
	}

	_, shareURL, err := m.shares.CreateShareableTemplate(ctx, s)
	if err != nil {
		return err
	}

	if m.welcome.Coordinator != "" {
		msg := conversation.NewMessage{
			Content: fmt.Sprintf(m.welcome.Coordinator, shareURL),
			Kind:    conversation.MessageKindChat,
		}
		if err := m.conversations.SendMessage(ctx, conv.ID, msg); err != nil {
			m.log.Warnw("failed to send coordinator welcome",
				"conversation_id", conv.ID,
				"error", err)
		}
	}

	m.log.Infow("coordinator conversation set up",
		"conversation_id", conv.ID,
		"share_id", s.ID)
	return nil
}

// setupTemplate associates the dormant template conversation with its share.
// The template never gets a role record beyond the association and never
// receives a welcome message: no human uses it directly.
func (m *Manager) setupTemplate(ctx context.Context, conv *conversation.Conversation) error {
	shareID := conv.MetadataValue(conversation.MetadataShareID)

	if err := m.store.AssociateConversation(ctx, conv.ID, shareID); err != nil {
		return fmt.Errorf("failed to associate template conversation: %w", err)
	}

	m.log.Infow("template conversation associated",
		"conversation_id", conv.ID,
		"share_id", shareID)
	return nil
}

// setupTeam registers a redeemed conversation as a team instance: atomic
// append to the share's team set, TEAM role record, join-time file sync,
// welcome message and a TEAM_JOINED audit entry. The team-set append is the
// idempotence pivot: a replay finds the member already present and skips the
// one-time steps.
func (m *Manager) setupTeam(ctx context.Context, conv *conversation.Conversation) error {
	shareID := conv.MetadataValue(conversation.MetadataShareID)

	added, err := m.store.AddTeamConversation(ctx, shareID, conv.ID)
	if err != nil {
		return fmt.Errorf("failed to add team conversation: %w", err)
	}

	if err := m.store.BindConversation(ctx, &sharestore.RoleRecord{
		ConversationID: conv.ID,
		ShareID:        shareID,
		Role:           sharestore.RoleTeam,
	}); err != nil {
		return fmt.Errorf("failed to bind team role: %w", err)
	}
	m.writeCacheMetadata(ctx, conv.ID, shareID, sharestore.RoleTeam)

	// Files shared before this conversation existed arrive here, not through
	// the original fan-out.
	if err := m.sync.SyncToConversation(ctx, shareID, conv.ID); err != nil {
		m.log.Warnw("join-time file sync incomplete",
			"conversation_id", conv.ID,
			"share_id", shareID,
			"error", err)
	}

	if !added {
		m.log.Debugw("team creation replayed, already a member",
			"conversation_id", conv.ID,
			"share_id", shareID)
		return nil
	}

	if m.welcome.Team != "" {
		msg := conversation.NewMessage{Content: m.welcome.Team, Kind: conversation.MessageKindChat}
		if err := m.conversations.SendMessage(ctx, conv.ID, msg); err != nil {
			m.log.Warnw("failed to send team welcome",
				"conversation_id", conv.ID,
				"error", err)
		}
	}

	if err := m.eventLog.Append(ctx, shareID, sharestore.EventTypeTeamJoined,
		"team conversation joined", conv.ID, nil); err != nil {
		m.log.Warnw("team joined but event append failed",
			"share_id", shareID,
			"error", err)
	}

	m.log.Infow("team conversation set up",
		"conversation_id", conv.ID,
		"share_id", shareID)
	return nil
}

// OnParticipantJoined handles a human joining an existing team conversation:
// re-run the join-time file sync so the conversation is current, and record
// the join.
func (m *Manager) OnParticipantJoined(ctx context.Context, conversationID string, participant *sharestore.ParticipantInfo) error {
	record, err := m.store.GetRoleRecord(ctx, conversationID)
	if err != nil {
		if sharestore.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to resolve association: %w", err)
	}
	if record.Role != sharestore.RoleTeam {
		return nil
	}

	if err := m.sync.SyncToConversation(ctx, record.ShareID, conversationID); err != nil {
		m.log.Warnw("participant-join file sync incomplete",
			"conversation_id", conversationID,
			"share_id", record.ShareID,
			"error", err)
	}

	name := ""
	if participant != nil {
		name = participant.Name
	}
	if err := m.eventLog.Append(ctx, record.ShareID, sharestore.EventTypeParticipantJoined,
		fmt.Sprintf("participant joined: %s", name), conversationID, nil); err != nil {
		m.log.Warnw("participant joined but event append failed",
			"share_id", record.ShareID,
			"error", err)
	}
	return nil
}

// writeCacheMetadata stamps the conversation-local metadata cache. Best
// effort: the role reconciler repairs a missed write on the next event.
func (m *Manager) writeCacheMetadata(ctx context.Context, conversationID, shareID string, role sharestore.Role) {
	if err := m.conversations.SetMetadata(ctx, conversationID, conversation.MetadataShareID, shareID); err != nil {
		m.log.Warnw("failed to cache share ID on conversation",
			"conversation_id", conversationID,
			"error", err)
		return
	}
	if err := m.conversations.SetMetadata(ctx, conversationID, conversation.MetadataShareRole, string(role)); err != nil {
		m.log.Warnw("failed to cache role on conversation",
			"conversation_id", conversationID,
			"error", err)
	}
}

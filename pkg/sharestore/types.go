package sharestore

import (
	"fmt"

	"github.com/google/uuid"
)

// Role identifies what a conversation is allowed to do within a share.
// Roles are immutable once recorded: a conversation is bound to exactly one
// role in exactly one share for its whole lifetime.
type Role string

const (
	// RoleCoordinator owns authoring of the brief, files and digest.
	RoleCoordinator Role = "coordinator"

	// RoleTeam consumes replicated artifacts and authors local-only content.
	RoleTeam Role = "team"
)

// Validate checks if the Role is a valid enum value.
func (r Role) Validate() error {
	switch r {
	case RoleCoordinator, RoleTeam:
		return nil
	default:
		return fmt.Errorf("unknown role: %q", r)
	}
}

// Share is the root aggregate binding one coordinator conversation, one
// shareable template conversation and N team conversations together.
// The coordinator conversation ID is set exactly once at creation and never
// changes. The team set and the file index live in their own Redis keys and
// are not part of this struct; read them through the client.
type Share struct {
	ID                        string `json:"id"`                          // UUID - stable share identifier
	CoordinatorConversationID string `json:"coordinator_conversation_id"` // Set once at creation
	TemplateConversationID    string `json:"template_conversation_id"`    // Empty until the template conversation is created
	CreatedAtMs               int64  `json:"created_at_ms"`               // Unix timestamp in milliseconds
}

// Validate checks if the Share has valid field values.
func (s *Share) Validate() error {
	if !isValidUUID(s.ID) {
		return fmt.Errorf("invalid share ID: not a valid UUID")
	}

	if s.CoordinatorConversationID == "" {
		return fmt.Errorf("coordinator conversation ID cannot be empty")
	}

	return nil
}

// RoleRecord is the durable per-conversation association record.
// ShareID is always set; Role is empty for the shareable template conversation,
// which is associated with a share but never acts as coordinator or team.
type RoleRecord struct {
	ConversationID string `json:"conversation_id"`
	ShareID        string `json:"share_id"`
	Role           Role   `json:"role,omitempty"` // Empty for the template conversation
}

// Validate checks if the RoleRecord has valid field values.
func (r *RoleRecord) Validate() error {
	if r.ConversationID == "" {
		return fmt.Errorf("conversation ID cannot be empty")
	}

	if !isValidUUID(r.ShareID) {
		return fmt.Errorf("invalid share ID: not a valid UUID")
	}

	if r.Role != "" {
		if err := r.Role.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// FileRecord describes one coordinator-authored file in the share's file index.
// Team-authored files never enter the index; they stay local to the team
// conversation that created them.
type FileRecord struct {
	Filename          string `json:"filename"`
	ContentHash       string `json:"content_hash"` // Opaque version marker from the platform
	Version           int    `json:"version"`      // Incremented on every re-upload
	IsCoordinatorFile bool   `json:"is_coordinator_file"`
	UpdatedAtMs       int64  `json:"updated_at_ms"`
}

// Validate checks if the FileRecord has valid field values.
func (f *FileRecord) Validate() error {
	if f.Filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	if f.Version < 1 {
		return fmt.Errorf("invalid version: must be >= 1, got %d", f.Version)
	}

	return nil
}

// EventType classifies entries in a share's append-only event log.
type EventType string

const (
	EventTypeShareCreated      EventType = "share_created"
	EventTypeTeamJoined        EventType = "team_joined"
	EventTypeParticipantJoined EventType = "participant_joined"
	EventTypeFileShared        EventType = "file_shared"
	EventTypeFileDeleted       EventType = "file_deleted"
	EventTypeBriefUpdated      EventType = "brief_updated"
	EventTypeDigestUpdated     EventType = "digest_updated"
	EventTypeRequestCreated    EventType = "request_created"
	EventTypeRequestResolved   EventType = "request_resolved"
	EventTypeCustom            EventType = "custom"
)

// Validate checks if the EventType is a valid enum value.
func (t EventType) Validate() error {
	switch t {
	case EventTypeShareCreated, EventTypeTeamJoined, EventTypeParticipantJoined,
		EventTypeFileShared, EventTypeFileDeleted, EventTypeBriefUpdated,
		EventTypeDigestUpdated, EventTypeRequestCreated, EventTypeRequestResolved,
		EventTypeCustom:
		return nil
	default:
		return fmt.Errorf("unknown event type: %q", t)
	}
}

// Event is one entry in a share's audit log. Events are append-only and never
// mutated or removed. Log order is append-completion order, which under
// concurrent handlers is not guaranteed to match real-world event order.
type Event struct {
	ID                  string            `json:"id"` // UUID
	ShareID             string            `json:"share_id"`
	Type                EventType         `json:"type"`
	Message             string            `json:"message"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	ActorConversationID string            `json:"actor_conversation_id,omitempty"`
	CreatedAtMs         int64             `json:"created_at_ms"`
}

// Validate checks if the Event has valid field values.
func (e *Event) Validate() error {
	if !isValidUUID(e.ID) {
		return fmt.Errorf("invalid event ID: not a valid UUID")
	}

	if !isValidUUID(e.ShareID) {
		return fmt.Errorf("invalid share ID: not a valid UUID")
	}

	if err := e.Type.Validate(); err != nil {
		return fmt.Errorf("invalid event type: %w", err)
	}

	if e.Message == "" {
		return fmt.Errorf("event message cannot be empty")
	}

	return nil
}

// Brief is the coordinator-authored description of what a share is for.
type Brief struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Goals       []string `json:"goals,omitempty"`
	UpdatedAtMs int64    `json:"updated_at_ms"`
}

// Digest is the auto-summarized knowledge state of a share, refreshed in the
// background after coordinator messages.
type Digest struct {
	Content            string `json:"content"`
	SourceMessageCount int    `json:"source_message_count"`
	UpdatedAtMs        int64  `json:"updated_at_ms"`
}

// CoordinatorMessage is a coordinator chat message mirrored into the share so
// team-side tooling can read the coordinator's narrative without access to the
// coordinator conversation itself.
type CoordinatorMessage struct {
	MessageID   string `json:"message_id"`
	SenderName  string `json:"sender_name"`
	IsAssistant bool   `json:"is_assistant"`
	Content     string `json:"content"`
	TimestampMs int64  `json:"timestamp_ms"`
}

// RequestStatus tracks the lifecycle of an information request.
type RequestStatus string

const (
	RequestStatusOpen     RequestStatus = "open"
	RequestStatusResolved RequestStatus = "resolved"
)

// InformationRequest is a team conversation's ask for knowledge the
// coordinator has not shared yet. Created by team conversations, resolved by
// the coordinator.
type InformationRequest struct {
	ID                      string        `json:"id"` // UUID
	ShareID                 string        `json:"share_id"`
	RequestorConversationID string        `json:"requestor_conversation_id"`
	Title                   string        `json:"title"`
	Detail                  string        `json:"detail,omitempty"`
	Status                  RequestStatus `json:"status"`
	Resolution              string        `json:"resolution,omitempty"`
	CreatedAtMs             int64         `json:"created_at_ms"`
	ResolvedAtMs            int64         `json:"resolved_at_ms,omitempty"`
}

// Validate checks if the InformationRequest has valid field values.
func (r *InformationRequest) Validate() error {
	if !isValidUUID(r.ID) {
		return fmt.Errorf("invalid request ID: not a valid UUID")
	}

	if !isValidUUID(r.ShareID) {
		return fmt.Errorf("invalid share ID: not a valid UUID")
	}

	if r.RequestorConversationID == "" {
		return fmt.Errorf("requestor conversation ID cannot be empty")
	}

	if r.Title == "" {
		return fmt.Errorf("request title cannot be empty")
	}

	if r.Status != RequestStatusOpen && r.Status != RequestStatusResolved {
		return fmt.Errorf("unknown request status: %q", r.Status)
	}

	return nil
}

// RefreshSignal is the payload published on a conversation's refresh channel.
// It carries view names only, never view content, so the notification path
// stays O(1) regardless of artifact size.
type RefreshSignal struct {
	ShareID string   `json:"share_id"`
	Views   []string `json:"views"`
}

// ConversationEventType classifies inbound events from the conversation
// platform.
type ConversationEventType string

const (
	ConversationEventCreated           ConversationEventType = "conversation_created"
	ConversationEventUpdated           ConversationEventType = "conversation_updated"
	ConversationEventMessageCreated    ConversationEventType = "message_created"
	ConversationEventFileCreated       ConversationEventType = "file_created"
	ConversationEventFileUpdated       ConversationEventType = "file_updated"
	ConversationEventFileDeleted       ConversationEventType = "file_deleted"
	ConversationEventParticipantJoined ConversationEventType = "participant_joined"
)

// Validate checks if the ConversationEventType is a valid enum value.
func (t ConversationEventType) Validate() error {
	switch t {
	case ConversationEventCreated, ConversationEventUpdated,
		ConversationEventMessageCreated, ConversationEventFileCreated,
		ConversationEventFileUpdated, ConversationEventFileDeleted,
		ConversationEventParticipantJoined:
		return nil
	default:
		return fmt.Errorf("unknown conversation event type: %q", t)
	}
}

// MessageInfo carries the sender attribution and content of a chat message.
type MessageInfo struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	SenderID    string `json:"sender_id"`
	SenderName  string `json:"sender_name"`
	IsAssistant bool   `json:"is_assistant"`
}

// FileInfo identifies a conversation file in an inbound file event.
type FileInfo struct {
	Filename    string `json:"filename"`
	ContentHash string `json:"content_hash,omitempty"`
}

// ParticipantInfo identifies a participant in a join event.
type ParticipantInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ConversationEvent is one inbound event from the conversation platform,
// published on the conversation_events channel and consumed by the engine.
// Exactly one of Message, File or Participant is set depending on Type.
type ConversationEvent struct {
	ID             string                `json:"id"` // UUID
	Type           ConversationEventType `json:"type"`
	ConversationID string                `json:"conversation_id"`
	TimestampMs    int64                 `json:"timestamp_ms"`
	Message        *MessageInfo          `json:"message,omitempty"`
	File           *FileInfo             `json:"file,omitempty"`
	Participant    *ParticipantInfo      `json:"participant,omitempty"`
}

// Validate checks if the ConversationEvent has valid field values.
func (e *ConversationEvent) Validate() error {
	if !isValidUUID(e.ID) {
		return fmt.Errorf("invalid event ID: not a valid UUID")
	}

	if err := e.Type.Validate(); err != nil {
		return err
	}

	if e.ConversationID == "" {
		return fmt.Errorf("conversation ID cannot be empty")
	}

	return nil
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

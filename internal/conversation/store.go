// Package conversation is the boundary to the conversation platform: the
// external system that owns conversation replicas, their message histories,
// their files and their per-conversation metadata blobs.
//
// Warren treats the platform purely as an event source and sink. The one piece
// of platform state warren reasons about is the metadata view: a free-form
// key/value attachment on each conversation that warren uses as a fast local
// cache of share ID and role. The cache is never trusted without
// reconciliation against the share store.
package conversation

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a conversation or file does not exist on the
// platform.
var ErrNotFound = errors.New("conversation not found")

// Metadata keys warren reads and writes on conversations. ShareID and
// ShareRole form the cached role view; the remaining keys are set by the
// platform at conversation creation and only ever read.
const (
	MetadataShareID         = "share_id"
	MetadataShareRole       = "share_role"
	MetadataRedemptionToken = "share_redemption_token"
	MetadataTeamShape       = "team_shape"
)

// MessageKind distinguishes chat content from system notices.
type MessageKind string

const (
	MessageKindChat   MessageKind = "chat"
	MessageKindNotice MessageKind = "notice"
)

// Conversation is the platform's view of one conversation replica.
type Conversation struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Metadata map[string]string `json:"metadata"`

	// ImportedFromConversationID is the import lineage: set when this
	// conversation was created by redeeming another conversation's share
	// link. Empty otherwise.
	ImportedFromConversationID string `json:"imported_from_conversation_id,omitempty"`
}

// MetadataValue returns a metadata field, tolerating a nil map.
func (c *Conversation) MetadataValue(key string) string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata[key]
}

// NewMessage is an outbound message to a conversation.
type NewMessage struct {
	Content  string            `json:"content"`
	Kind     MessageKind       `json:"kind"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// StateEvent asks a conversation's UI to act on a named state view,
// e.g. focus the brief panel.
type StateEvent struct {
	StateID string `json:"state_id"`
	Event   string `json:"event"`
}

// Store is the conversation platform client. All operations are keyed by
// conversation ID and suspend on network I/O; callers pass a context with
// whatever deadline they can tolerate.
type Store interface {
	// GetConversation fetches a conversation including its metadata view.
	GetConversation(ctx context.Context, conversationID string) (*Conversation, error)

	// SendMessage posts a message into a conversation.
	SendMessage(ctx context.Context, conversationID string, msg NewMessage) error

	// UpdateParticipantStatus sets the assistant participant's transient
	// status text. An empty status clears it.
	UpdateParticipantStatus(ctx context.Context, conversationID, status string) error

	// SendStateEvent delivers a UI state event to a conversation.
	SendStateEvent(ctx context.Context, conversationID string, ev StateEvent) error

	// SetMetadata writes one metadata field on a conversation.
	SetMetadata(ctx context.Context, conversationID, key, value string) error

	// UpdateTitle renames a conversation.
	UpdateTitle(ctx context.Context, conversationID, title string) error

	// CopyFile copies a file's bytes from one conversation to another,
	// overwriting any existing file with the same name.
	CopyFile(ctx context.Context, sourceConversationID, targetConversationID, filename string) error

	// DeleteFile removes a file from a conversation. Deleting a missing
	// file returns ErrNotFound.
	DeleteFile(ctx context.Context, conversationID, filename string) error

	// ListFiles returns the filenames present in a conversation.
	ListFiles(ctx context.Context, conversationID string) ([]string, error)

	// CreateShareableConversation asks the platform to mint the dormant
	// template conversation carrying the share's join link. Returns the new
	// conversation's ID and the redeemable share URL.
	CreateShareableConversation(ctx context.Context, sourceConversationID, shareID string) (conversationID, shareURL string, err error)
}

// IsNotFound reports whether err means the conversation or file is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

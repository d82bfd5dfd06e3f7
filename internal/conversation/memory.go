package conversation

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-memory Store used by tests and local development. It is
// thread-safe and mimics the platform's observable behavior: metadata blobs,
// file copies by name, import lineage on redeemed conversations.
//
// The exported hook fields let tests inject failures at specific operations;
// when nil they are ignored.
type Memory struct {
	mu            sync.Mutex
	conversations map[string]*memConversation

	GetConversationHook func(conversationID string) error
	SetMetadataHook     func(conversationID, key string) error
	CopyFileHook        func(sourceID, targetID, filename string) error
	SendMessageHook     func(conversationID string) error
}

type memConversation struct {
	title        string
	metadata     map[string]string
	importedFrom string
	files        map[string]string // filename -> content
	messages     []NewMessage
	stateEvents  []StateEvent
	status       string
}

// NewMemory creates an empty in-memory platform.
func NewMemory() *Memory {
	return &Memory{conversations: make(map[string]*memConversation)}
}

// Add registers a conversation with the given metadata. Overwrites any
// existing conversation with the same ID.
func (m *Memory) Add(conversationID, title string, metadata map[string]string) {
	m.AddWithLineage(conversationID, title, metadata, "")
}

// AddWithLineage registers a conversation created by redeeming another
// conversation's share link.
func (m *Memory) AddWithLineage(conversationID, title string, metadata map[string]string, importedFrom string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}

	m.conversations[conversationID] = &memConversation{
		title:        title,
		metadata:     md,
		importedFrom: importedFrom,
		files:        make(map[string]string),
	}
}

// SetFile places file content into a conversation directly, bypassing CopyFile.
func (m *Memory) SetFile(conversationID, filename, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[conversationID]
	if !ok {
		return ErrNotFound
	}
	conv.files[filename] = content
	return nil
}

// Messages returns the messages sent to a conversation, in order.
func (m *Memory) Messages(conversationID string) []NewMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conv, ok := m.conversations[conversationID]; ok {
		return append([]NewMessage(nil), conv.messages...)
	}
	return nil
}

// StateEvents returns the state events delivered to a conversation, in order.
func (m *Memory) StateEvents(conversationID string) []StateEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conv, ok := m.conversations[conversationID]; ok {
		return append([]StateEvent(nil), conv.stateEvents...)
	}
	return nil
}

// Status returns the conversation's current participant status text.
func (m *Memory) Status(conversationID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conv, ok := m.conversations[conversationID]; ok {
		return conv.status
	}
	return ""
}

// FileContent returns a file's content and whether it exists.
func (m *Memory) FileContent(conversationID, filename string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[conversationID]
	if !ok {
		return "", false
	}
	content, ok := conv.files[filename]
	return content, ok
}

// GetConversation implements Store.
func (m *Memory) GetConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	if m.GetConversationHook != nil {
		if err := m.GetConversationHook(conversationID); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[conversationID]
	if !ok {
		return nil, ErrNotFound
	}

	metadata := make(map[string]string, len(conv.metadata))
	for k, v := range conv.metadata {
		metadata[k] = v
	}

	return &Conversation{
		ID:                         conversationID,
		Title:                      conv.title,
		Metadata:                   metadata,
		ImportedFromConversationID: conv.importedFrom,
	}, nil
}

// SendMessage implements Store.
func (m *Memory) SendMessage(ctx context.Context, conversationID string, msg NewMessage) error {
	if m.SendMessageHook != nil {
		if err := m.SendMessageHook(conversationID); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[conversationID]
	if !ok {
		return ErrNotFound
	}
	conv.messages = append(conv.messages, msg)
	return nil
}

// UpdateParticipantStatus implements Store.
func (m *Memory) UpdateParticipantStatus(ctx context.Context, conversationID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[conversationID]
	if !ok {
		return ErrNotFound
	}
	conv.status = status
	return nil
}

// SendStateEvent implements Store.
func (m *Memory) SendStateEvent(ctx context.Context, conversationID string, ev StateEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[conversationID]
	if !ok {
		return ErrNotFound
	}
	conv.stateEvents = append(conv.stateEvents, ev)
	return nil
}

// SetMetadata implements Store.
func (m *Memory) SetMetadata(ctx context.Context, conversationID, key, value string) error {
	if m.SetMetadataHook != nil {
		if err := m.SetMetadataHook(conversationID, key); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[conversationID]
	if !ok {
		return ErrNotFound
	}
	conv.metadata[key] = value
	return nil
}

// UpdateTitle implements Store.
func (m *Memory) UpdateTitle(ctx context.Context, conversationID, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[conversationID]
	if !ok {
		return ErrNotFound
	}
	conv.title = title
	return nil
}

// CopyFile implements Store.
func (m *Memory) CopyFile(ctx context.Context, sourceConversationID, targetConversationID, filename string) error {
	if m.CopyFileHook != nil {
		if err := m.CopyFileHook(sourceConversationID, targetConversationID, filename); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	source, ok := m.conversations[sourceConversationID]
	if !ok {
		return ErrNotFound
	}
	content, ok := source.files[filename]
	if !ok {
		return ErrNotFound
	}
	target, ok := m.conversations[targetConversationID]
	if !ok {
		return ErrNotFound
	}
	target.files[filename] = content
	return nil
}

// DeleteFile implements Store.
func (m *Memory) DeleteFile(ctx context.Context, conversationID, filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[conversationID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := conv.files[filename]; !ok {
		return ErrNotFound
	}
	delete(conv.files, filename)
	return nil
}

// ListFiles implements Store.
func (m *Memory) ListFiles(ctx context.Context, conversationID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[conversationID]
	if !ok {
		return nil, ErrNotFound
	}

	filenames := make([]string, 0, len(conv.files))
	for name := range conv.files {
		filenames = append(filenames, name)
	}
	sort.Strings(filenames)
	return filenames, nil
}

// CreateShareableConversation implements Store. The minted conversation
// carries the share ID and team-shape flag in its metadata, matching what the
// platform stamps on real template conversations.
func (m *Memory) CreateShareableConversation(ctx context.Context, sourceConversationID, shareID string) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	source, ok := m.conversations[sourceConversationID]
	if !ok {
		return "", "", ErrNotFound
	}

	token := uuid.New().String()
	conversationID := "conv-template-" + token[:8]

	m.conversations[conversationID] = &memConversation{
		title: source.title,
		metadata: map[string]string{
			MetadataShareID:   shareID,
			MetadataTeamShape: "true",
		},
		files: make(map[string]string),
	}

	return conversationID, fmt.Sprintf("https://platform.local/redeem/%s", token), nil
}

package sharestore

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis values
//
// Entities read field-by-field (shares, role records) are stored as hashes.
// Entities only ever read whole (file records, events, requests) are stored
// as JSON strings inside hash fields or list entries.

// ShareToHash converts a Share struct to a Redis hash format.
func ShareToHash(s *Share) map[string]interface{} {
	return map[string]interface{}{
		"id":                          s.ID,
		"coordinator_conversation_id": s.CoordinatorConversationID,
		"template_conversation_id":    s.TemplateConversationID,
		"created_at_ms":               s.CreatedAtMs,
	}
}

// HashToShare converts a Redis hash to a Share struct.
func HashToShare(hash map[string]string) (*Share, error) {
	createdAtMs, err := strconv.ParseInt(hash["created_at_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at_ms field: %w", err)
	}

	return &Share{
		ID:                        hash["id"],
		CoordinatorConversationID: hash["coordinator_conversation_id"],
		TemplateConversationID:    hash["template_conversation_id"],
		CreatedAtMs:               createdAtMs,
	}, nil
}

// HashToRoleRecord converts a Redis hash to a RoleRecord struct.
// The role field may be absent for template conversations.
func HashToRoleRecord(hash map[string]string) *RoleRecord {
	return &RoleRecord{
		ConversationID: hash["conversation_id"],
		ShareID:        hash["share_id"],
		Role:           Role(hash["role"]),
	}
}

// FileRecordToJSON encodes a FileRecord for storage in the file index hash.
func FileRecordToJSON(f *FileRecord) (string, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("failed to marshal file record: %w", err)
	}
	return string(data), nil
}

// JSONToFileRecord decodes a FileRecord from its file index representation.
func JSONToFileRecord(data string) (*FileRecord, error) {
	var f FileRecord
	if err := json.Unmarshal([]byte(data), &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal file record: %w", err)
	}
	return &f, nil
}

// EventToJSON encodes an Event for the log list and the share events channel.
func EventToJSON(e *Event) (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event: %w", err)
	}
	return string(data), nil
}

// JSONToEvent decodes an Event from a log list entry.
func JSONToEvent(data string) (*Event, error) {
	var e Event
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return &e, nil
}

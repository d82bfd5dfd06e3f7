package sharestore

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name to enable
// multiple Warren instances to safely coexist on a single Redis server.
//
// Key pattern: warren:{instance_name}:{entity}:{id}[:{sub}]
// Channel pattern: warren:{instance_name}:{event_type}_events

// ShareKey returns the Redis key for a share's root hash.
// Pattern: warren:{instance_name}:share:{share_id}
func ShareKey(instanceName, shareID string) string {
	return fmt.Sprintf("warren:%s:share:%s", instanceName, shareID)
}

// ShareTeamKey returns the Redis key for a share's team conversation set.
// Membership is mutated with SADD only, so concurrent link redemptions
// cannot lose an update.
// Pattern: warren:{instance_name}:share:{share_id}:team
func ShareTeamKey(instanceName, shareID string) string {
	return fmt.Sprintf("warren:%s:share:%s:team", instanceName, shareID)
}

// ShareFilesKey returns the Redis key for a share's file index hash.
// Fields are filenames, values are FileRecord JSON.
// Pattern: warren:{instance_name}:share:{share_id}:files
func ShareFilesKey(instanceName, shareID string) string {
	return fmt.Sprintf("warren:%s:share:%s:files", instanceName, shareID)
}

// ShareFileVersionsKey returns the Redis key for a share's file version
// counter hash. Fields are filenames, values are integers mutated with
// HINCRBY only, so concurrent upserts of the same filename cannot lose an
// increment.
// Pattern: warren:{instance_name}:share:{share_id}:file_versions
func ShareFileVersionsKey(instanceName, shareID string) string {
	return fmt.Sprintf("warren:%s:share:%s:file_versions", instanceName, shareID)
}

// ShareLogKey returns the Redis key for a share's append-only event log list.
// Pattern: warren:{instance_name}:share:{share_id}:log
func ShareLogKey(instanceName, shareID string) string {
	return fmt.Sprintf("warren:%s:share:%s:log", instanceName, shareID)
}

// ShareBriefKey returns the Redis key for a share's brief.
// Pattern: warren:{instance_name}:share:{share_id}:brief
func ShareBriefKey(instanceName, shareID string) string {
	return fmt.Sprintf("warren:%s:share:%s:brief", instanceName, shareID)
}

// ShareDigestKey returns the Redis key for a share's knowledge digest.
// Pattern: warren:{instance_name}:share:{share_id}:digest
func ShareDigestKey(instanceName, shareID string) string {
	return fmt.Sprintf("warren:%s:share:%s:digest", instanceName, shareID)
}

// ShareMessagesKey returns the Redis key for a share's mirrored coordinator
// message list.
// Pattern: warren:{instance_name}:share:{share_id}:messages
func ShareMessagesKey(instanceName, shareID string) string {
	return fmt.Sprintf("warren:%s:share:%s:messages", instanceName, shareID)
}

// ShareRequestsKey returns the Redis key for a share's information request hash.
// Fields are request IDs, values are InformationRequest JSON.
// Pattern: warren:{instance_name}:share:{share_id}:requests
func ShareRequestsKey(instanceName, shareID string) string {
	return fmt.Sprintf("warren:%s:share:%s:requests", instanceName, shareID)
}

// ConversationKey returns the Redis key for a conversation's role record hash.
// Pattern: warren:{instance_name}:conversation:{conversation_id}
func ConversationKey(instanceName, conversationID string) string {
	return fmt.Sprintf("warren:%s:conversation:%s", instanceName, conversationID)
}

// ShareEventsChannel returns the Pub/Sub channel carrying every appended log
// event across all shares of the instance.
// Pattern: warren:{instance_name}:share_events
func ShareEventsChannel(instanceName string) string {
	return fmt.Sprintf("warren:%s:share_events", instanceName)
}

// ConversationEventsChannel returns the Pub/Sub channel carrying inbound
// conversation platform events for the engine.
// Pattern: warren:{instance_name}:conversation_events
func ConversationEventsChannel(instanceName string) string {
	return fmt.Sprintf("warren:%s:conversation_events", instanceName)
}

// RefreshChannel returns the per-conversation Pub/Sub channel used to signal
// that locally cached views should re-read from the share store.
// Pattern: warren:{instance_name}:conversation:{conversation_id}:refresh
func RefreshChannel(instanceName, conversationID string) string {
	return fmt.Sprintf("warren:%s:conversation:%s:refresh", instanceName, conversationID)
}

// Package roles resolves the authoritative role of a conversation by merging
// two independently-updatable signals: the conversation's local metadata cache
// and the share store's durable role record.
//
// The store is authoritative by contract, not by timestamp. Whenever the two
// sides disagree the store value wins and the cache is repaired; the cache is
// only ever trusted alone when the store confirms the conversation is at
// least associated with a share.
package roles

import (
	"context"

	"github.com/warrenhq/warren/internal/conversation"
	"github.com/warrenhq/warren/internal/logger"
	"github.com/warrenhq/warren/pkg/sharestore"
)

// Resolution is the reconciled share membership of a conversation.
type Resolution struct {
	ShareID string
	Role    sharestore.Role
}

// Reconciler merges the cached and durable views of a conversation's role.
type Reconciler struct {
	store         *sharestore.Client
	conversations conversation.Store
	log           *logger.Logger
}

// NewReconciler creates a reconciler over the given store and platform client.
func NewReconciler(store *sharestore.Client, conversations conversation.Store, log *logger.Logger) *Reconciler {
	return &Reconciler{store: store, conversations: conversations, log: log}
}

// Resolve returns the authoritative role for a conversation, repairing
// whichever side is stale. Returns (nil, false) when the conversation is not
// part of any share.
//
// Resolve is idempotent and safe to call on every inbound event. Read or
// write failures on either side are logged and treated as "absent" for that
// side, so reconciliation degrades gracefully instead of aborting the
// caller's event handling. At most one repair write happens per call.
func (r *Reconciler) Resolve(ctx context.Context, conversationID string) (*Resolution, bool) {
	cache := r.readCache(ctx, conversationID)
	record := r.readStore(ctx, conversationID)

	storeHasRole := record != nil && record.Role != ""
	cacheHasRole := cache != nil && cache.Role != ""

	switch {
	case storeHasRole && cacheHasRole && record.Role == cache.Role:
		// Fast path: both sides agree, no writes.
		return &Resolution{ShareID: record.ShareID, Role: record.Role}, true

	case storeHasRole && cacheHasRole:
		// Conflict: the store is the durable source of truth; overwrite the
		// cache. Authority is fixed, never time-based.
		r.log.Warnw("role conflict, store wins",
			"conversation_id", conversationID,
			"cache_role", cache.Role,
			"store_role", record.Role)
		r.writeCache(ctx, conversationID, record.ShareID, record.Role)
		return &Resolution{ShareID: record.ShareID, Role: record.Role}, true

	case storeHasRole:
		// Store only: repair the cache.
		r.writeCache(ctx, conversationID, record.ShareID, record.Role)
		return &Resolution{ShareID: record.ShareID, Role: record.Role}, true

	case cacheHasRole:
		// Cache only: the cache value is unverified until the store confirms
		// the conversation is associated with a share.
		if record == nil {
			r.log.Debugw("cached role has no share association, ignoring",
				"conversation_id", conversationID,
				"cache_role", cache.Role)
			return nil, false
		}

		if err := r.store.SetConversationRole(ctx, conversationID, cache.Role); err != nil {
			r.log.Warnw("failed to repair store from cached role",
				"conversation_id", conversationID,
				"cache_role", cache.Role,
				"error", err)
			return nil, false
		}
		return &Resolution{ShareID: record.ShareID, Role: cache.Role}, true

	default:
		// Neither side knows this conversation.
		return nil, false
	}
}

// ShareID returns the share a conversation belongs to, if any. Unlike roles,
// a bare association is enough (the template conversation has one without a
// role).
func (r *Reconciler) ShareID(ctx context.Context, conversationID string) (string, bool) {
	if record := r.readStore(ctx, conversationID); record != nil {
		return record.ShareID, true
	}

	// Store unavailable or unaware; a cached share ID alone is unverified.
	return "", false
}

// readCache reads the conversation-local metadata view. Failures and absent
// values both come back as nil.
func (r *Reconciler) readCache(ctx context.Context, conversationID string) *Resolution {
	conv, err := r.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		r.log.Warnw("failed to read conversation metadata cache",
			"conversation_id", conversationID,
			"error", err)
		return nil
	}

	role := sharestore.Role(conv.MetadataValue(conversation.MetadataShareRole))
	if role != "" && role.Validate() != nil {
		r.log.Warnw("ignoring invalid cached role",
			"conversation_id", conversationID,
			"cache_role", role)
		role = ""
	}

	return &Resolution{
		ShareID: conv.MetadataValue(conversation.MetadataShareID),
		Role:    role,
	}
}

// readStore reads the durable role record. Failures and absent records both
// come back as nil.
func (r *Reconciler) readStore(ctx context.Context, conversationID string) *sharestore.RoleRecord {
	record, err := r.store.GetRoleRecord(ctx, conversationID)
	if err != nil {
		if !sharestore.IsNotFound(err) {
			r.log.Warnw("failed to read role record from share store",
				"conversation_id", conversationID,
				"error", err)
		}
		return nil
	}
	return record
}

// writeCache repairs the conversation-local metadata view. Best effort: a
// failed repair is logged and retried implicitly on the next Resolve call.
func (r *Reconciler) writeCache(ctx context.Context, conversationID, shareID string, role sharestore.Role) {
	if err := r.conversations.SetMetadata(ctx, conversationID, conversation.MetadataShareID, shareID); err != nil {
		r.log.Warnw("failed to repair cached share ID",
			"conversation_id", conversationID,
			"error", err)
		return
	}
	if err := r.conversations.SetMetadata(ctx, conversationID, conversation.MetadataShareRole, string(role)); err != nil {
		r.log.Warnw("failed to repair cached role",
			"conversation_id", conversationID,
			"error", err)
	}
}

package sharestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Sentinel errors for write-once violations. The share binding and role of a
// conversation are immutable by contract; these errors surface attempts to
// rebind rather than silently overwriting.
var (
	// ErrShareExists is returned when creating a share whose ID already exists.
	ErrShareExists = errors.New("share already exists")

	// ErrShareConflict is returned when a conversation is already associated
	// with a different share.
	ErrShareConflict = errors.New("conversation already associated with a different share")

	// ErrRoleConflict is returned when a conversation already holds a
	// different role. Roles never flip.
	ErrRoleConflict = errors.New("conversation already holds a different role")

	// ErrNotAssociated is returned when a role is set on a conversation that
	// has no share association yet.
	ErrNotAssociated = errors.New("conversation is not associated with a share")

	// ErrTemplateBound is returned when a share already has a different
	// template conversation bound.
	ErrTemplateBound = errors.New("share already has a template conversation")
)

// Client provides instance-scoped Redis operations for the share store.
// All keys and channels are automatically namespaced with the instance name.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient creates a new share store client for the specified instance.
// The client automatically namespaces all keys and channels with the instance name.
//
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
// After calling Close(), the client should not be used.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// CreateShare writes a new share to Redis.
// Validates the share before writing. Returns ErrShareExists if a share with
// the same ID was already created, so lifecycle replays cannot mint a second
// share under the same ID.
func (c *Client) CreateShare(ctx context.Context, s *Share) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid share: %w", err)
	}

	key := ShareKey(c.instanceName, s.ID)

	// HSETNX on the id field is the existence guard; only the winner of a
	// concurrent create proceeds to write the remaining fields.
	created, err := c.rdb.HSetNX(ctx, key, "id", s.ID).Result()
	if err != nil {
		return fmt.Errorf("failed to create share in Redis: %w", err)
	}
	if !created {
		return ErrShareExists
	}

	if err := c.rdb.HSet(ctx, key, ShareToHash(s)).Err(); err != nil {
		return fmt.Errorf("failed to write share fields to Redis: %w", err)
	}

	return nil
}

// GetShare retrieves a share by ID.
// Returns (nil, redis.Nil) if the share doesn't exist.
// Use IsNotFound() to check for not-found errors.
func (c *Client) GetShare(ctx context.Context, shareID string) (*Share, error) {
	key := ShareKey(c.instanceName, shareID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read share from Redis: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	share, err := HashToShare(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize share: %w", err)
	}

	return share, nil
}

// ListShares scans the instance namespace for every share, sorted by
// creation time. Intended for CLI inspection, not hot paths: SCAN walks the
// whole share keyspace.
func (c *Client) ListShares(ctx context.Context) ([]*Share, error) {
	pattern := ShareKey(c.instanceName, "*")

	var shares []*Share
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		// The pattern also matches per-share subkeys (team set, file index,
		// log); only the bare share hash has the ID as its final segment.
		shareID := key[strings.LastIndex(key, ":")+1:]
		if ShareKey(c.instanceName, shareID) != key {
			continue
		}

		share, err := c.GetShare(ctx, shareID)
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, err
		}
		shares = append(shares, share)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan shares: %w", err)
	}

	sort.Slice(shares, func(i, j int) bool {
		return shares[i].CreatedAtMs < shares[j].CreatedAtMs
	})
	return shares, nil
}

// SetTemplateConversation binds the shareable template conversation to a share.
// The binding is write-once: rebinding the same conversation is an idempotent
// no-op, binding a different one returns ErrTemplateBound.
func (c *Client) SetTemplateConversation(ctx context.Context, shareID, conversationID string) error {
	if conversationID == "" {
		return fmt.Errorf("conversation ID cannot be empty")
	}

	key := ShareKey(c.instanceName, shareID)

	exists, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check share existence: %w", err)
	}
	if exists == 0 {
		return redis.Nil
	}

	set, err := c.rdb.HSetNX(ctx, key, "template_conversation_id", conversationID).Result()
	if err != nil {
		return fmt.Errorf("failed to set template conversation: %w", err)
	}
	if set {
		return nil
	}

	// The share hash is written with an empty template_conversation_id at
	// creation, so HSETNX loses even on first bind. Claim the empty slot or
	// verify the existing binding matches.
	current, err := c.rdb.HGet(ctx, key, "template_conversation_id").Result()
	if err != nil {
		return fmt.Errorf("failed to read template conversation: %w", err)
	}
	if current == "" {
		if err := c.rdb.HSet(ctx, key, "template_conversation_id", conversationID).Err(); err != nil {
			return fmt.Errorf("failed to set template conversation: %w", err)
		}
		return nil
	}
	if current != conversationID {
		return ErrTemplateBound
	}

	return nil
}

// AddTeamConversation appends a conversation to the share's team set.
// Backed by SADD, so the append is atomic and idempotent: two concurrent link
// redemptions for different conversations both land, and a replayed redemption
// for the same conversation is a no-op.
// Returns true if the conversation was newly added.
func (c *Client) AddTeamConversation(ctx context.Context, shareID, conversationID string) (bool, error) {
	if conversationID == "" {
		return false, fmt.Errorf("conversation ID cannot be empty")
	}

	key := ShareTeamKey(c.instanceName, shareID)
	added, err := c.rdb.SAdd(ctx, key, conversationID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to add team conversation: %w", err)
	}

	return added > 0, nil
}

// ListTeamConversations returns the share's team conversation IDs, sorted.
// Returns an empty slice if the share has no team conversations yet.
func (c *Client) ListTeamConversations(ctx context.Context, shareID string) ([]string, error) {
	key := ShareTeamKey(c.instanceName, shareID)
	members, err := c.rdb.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list team conversations: %w", err)
	}

	sort.Strings(members)
	return members, nil
}

// AssociateConversation records that a conversation belongs to a share,
// without assigning a role. Used for the shareable template conversation,
// which is associated but never acts. The association is write-once:
// re-associating with the same share is a no-op, with a different share
// returns ErrShareConflict.
func (c *Client) AssociateConversation(ctx context.Context, conversationID, shareID string) error {
	if conversationID == "" {
		return fmt.Errorf("conversation ID cannot be empty")
	}

	key := ConversationKey(c.instanceName, conversationID)

	set, err := c.rdb.HSetNX(ctx, key, "share_id", shareID).Result()
	if err != nil {
		return fmt.Errorf("failed to associate conversation: %w", err)
	}
	if !set {
		current, err := c.rdb.HGet(ctx, key, "share_id").Result()
		if err != nil {
			return fmt.Errorf("failed to read existing association: %w", err)
		}
		if current != shareID {
			return ErrShareConflict
		}
		return nil
	}

	if err := c.rdb.HSet(ctx, key, "conversation_id", conversationID).Err(); err != nil {
		return fmt.Errorf("failed to write conversation ID: %w", err)
	}

	return nil
}

// SetConversationRole assigns a role to an already-associated conversation.
// Roles are write-once: setting the same role again is an idempotent no-op,
// setting a different role returns ErrRoleConflict. Returns ErrNotAssociated
// if the conversation has no share association.
func (c *Client) SetConversationRole(ctx context.Context, conversationID string, role Role) error {
	if err := role.Validate(); err != nil {
		return fmt.Errorf("invalid role: %w", err)
	}

	key := ConversationKey(c.instanceName, conversationID)

	exists, err := c.rdb.HExists(ctx, key, "share_id").Result()
	if err != nil {
		return fmt.Errorf("failed to check conversation association: %w", err)
	}
	if !exists {
		return ErrNotAssociated
	}

	set, err := c.rdb.HSetNX(ctx, key, "role", string(role)).Result()
	if err != nil {
		return fmt.Errorf("failed to set conversation role: %w", err)
	}
	if !set {
		current, err := c.rdb.HGet(ctx, key, "role").Result()
		if err != nil {
			return fmt.Errorf("failed to read existing role: %w", err)
		}
		if current != string(role) {
			return ErrRoleConflict
		}
	}

	return nil
}

// BindConversation associates a conversation with a share and assigns its role
// in one call. Idempotent under replay; conflicting rebinds surface
// ErrShareConflict or ErrRoleConflict.
func (c *Client) BindConversation(ctx context.Context, rec *RoleRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid role record: %w", err)
	}

	if err := c.AssociateConversation(ctx, rec.ConversationID, rec.ShareID); err != nil {
		return err
	}

	if rec.Role == "" {
		return nil
	}

	return c.SetConversationRole(ctx, rec.ConversationID, rec.Role)
}

// GetRoleRecord retrieves a conversation's association record.
// Returns (nil, redis.Nil) if the conversation has no association.
// The Role field is empty for template conversations.
func (c *Client) GetRoleRecord(ctx context.Context, conversationID string) (*RoleRecord, error) {
	key := ConversationKey(c.instanceName, conversationID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read role record from Redis: %w", err)
	}

	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	return HashToRoleRecord(hashData), nil
}

// PutFileRecord writes or replaces a file record in the share's file index.
// A re-upload of an existing filename is an update, never an error.
func (c *Client) PutFileRecord(ctx context.Context, shareID string, rec *FileRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid file record: %w", err)
	}

	data, err := FileRecordToJSON(rec)
	if err != nil {
		return err
	}

	key := ShareFilesKey(c.instanceName, shareID)
	if err := c.rdb.HSet(ctx, key, rec.Filename, data).Err(); err != nil {
		return fmt.Errorf("failed to write file record to Redis: %w", err)
	}

	return nil
}

// BumpFileVersion atomically increments and returns the version counter for
// a filename in the share's index. Backed by HINCRBY, so two concurrent
// upserts of the same filename always observe distinct versions. New
// filenames start at version 1. The counter survives record deletion, so a
// re-shared filename continues the sequence instead of reusing old numbers.
func (c *Client) BumpFileVersion(ctx context.Context, shareID, filename string) (int, error) {
	if filename == "" {
		return 0, fmt.Errorf("filename cannot be empty")
	}

	key := ShareFileVersionsKey(c.instanceName, shareID)
	v, err := c.rdb.HIncrBy(ctx, key, filename, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to bump file version: %w", err)
	}

	return int(v), nil
}

// GetFileRecord retrieves one file record by filename.
// Returns (nil, redis.Nil) if the file is not in the index.
func (c *Client) GetFileRecord(ctx context.Context, shareID, filename string) (*FileRecord, error) {
	key := ShareFilesKey(c.instanceName, shareID)

	data, err := c.rdb.HGet(ctx, key, filename).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, redis.Nil
		}
		return nil, fmt.Errorf("failed to read file record from Redis: %w", err)
	}

	rec, err := JSONToFileRecord(data)
	if err != nil {
		return nil, err
	}

	// The counter hash is the version authority; the JSON copy can trail it
	// when concurrent upserts interleave.
	v, err := c.rdb.HGet(ctx, ShareFileVersionsKey(c.instanceName, shareID), filename).Int()
	switch {
	case err == nil:
		rec.Version = v
	case !errors.Is(err, redis.Nil):
		return nil, fmt.Errorf("failed to read file version counter: %w", err)
	}

	return rec, nil
}

// DeleteFileRecord removes a file record from the index.
// Deleting a filename that is not present is a no-op, not an error.
// Returns true if a record was actually removed.
func (c *Client) DeleteFileRecord(ctx context.Context, shareID, filename string) (bool, error) {
	key := ShareFilesKey(c.instanceName, shareID)
	removed, err := c.rdb.HDel(ctx, key, filename).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete file record: %w", err)
	}

	return removed > 0, nil
}

// ListFileRecords returns all file records in the share's index, sorted by
// filename. Returns an empty slice for shares with no files.
func (c *Client) ListFileRecords(ctx context.Context, shareID string) ([]*FileRecord, error) {
	key := ShareFilesKey(c.instanceName, shareID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list file records: %w", err)
	}

	versions, err := c.rdb.HGetAll(ctx, ShareFileVersionsKey(c.instanceName, shareID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read file version counters: %w", err)
	}

	records := make([]*FileRecord, 0, len(hashData))
	for _, data := range hashData {
		rec, err := JSONToFileRecord(data)
		if err != nil {
			return nil, err
		}
		if raw, ok := versions[rec.Filename]; ok {
			if v, err := strconv.Atoi(raw); err == nil {
				rec.Version = v
			}
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Filename < records[j].Filename
	})

	return records, nil
}

// AppendEvent appends an event to the share's log and publishes it on the
// share events channel. The append uses RPUSH, so concurrent appends are
// atomic; log order is append-completion order. The publish is best effort:
// the call succeeds once the event is durably in the log.
func (c *Client) AppendEvent(ctx context.Context, e *Event) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	data, err := EventToJSON(e)
	if err != nil {
		return err
	}

	key := ShareLogKey(c.instanceName, e.ShareID)
	if err := c.rdb.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("failed to append event to Redis: %w", err)
	}

	// The live feed is advisory and at-most-once; the durable append above is
	// the source of truth. A failed publish must not report the append as
	// failed.
	channel := ShareEventsChannel(c.instanceName)
	_ = c.rdb.Publish(ctx, channel, data).Err()

	return nil
}

// ListEvents returns the share's full event log in append order.
func (c *Client) ListEvents(ctx context.Context, shareID string) ([]*Event, error) {
	key := ShareLogKey(c.instanceName, shareID)

	entries, err := c.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}

	events := make([]*Event, 0, len(entries))
	for _, entry := range entries {
		e, err := JSONToEvent(entry)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	return events, nil
}

// SetBrief writes the share's brief.
func (c *Client) SetBrief(ctx context.Context, shareID string, b *Brief) error {
	return c.setJSON(ctx, ShareBriefKey(c.instanceName, shareID), b, "brief")
}

// GetBrief retrieves the share's brief.
// Returns (nil, redis.Nil) if no brief has been written yet.
func (c *Client) GetBrief(ctx context.Context, shareID string) (*Brief, error) {
	var b Brief
	if err := c.getJSON(ctx, ShareBriefKey(c.instanceName, shareID), &b, "brief"); err != nil {
		return nil, err
	}
	return &b, nil
}

// SetDigest writes the share's knowledge digest.
func (c *Client) SetDigest(ctx context.Context, shareID string, d *Digest) error {
	return c.setJSON(ctx, ShareDigestKey(c.instanceName, shareID), d, "digest")
}

// GetDigest retrieves the share's knowledge digest.
// Returns (nil, redis.Nil) if no digest has been generated yet.
func (c *Client) GetDigest(ctx context.Context, shareID string) (*Digest, error) {
	var d Digest
	if err := c.getJSON(ctx, ShareDigestKey(c.instanceName, shareID), &d, "digest"); err != nil {
		return nil, err
	}
	return &d, nil
}

// AppendCoordinatorMessage mirrors a coordinator chat message into the share.
// When maxMessages > 0 the list is trimmed to the newest maxMessages entries.
func (c *Client) AppendCoordinatorMessage(ctx context.Context, shareID string, msg *CoordinatorMessage, maxMessages int) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal coordinator message: %w", err)
	}

	key := ShareMessagesKey(c.instanceName, shareID)
	if err := c.rdb.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("failed to append coordinator message: %w", err)
	}

	if maxMessages > 0 {
		if err := c.rdb.LTrim(ctx, key, int64(-maxMessages), -1).Err(); err != nil {
			return fmt.Errorf("failed to trim coordinator messages: %w", err)
		}
	}

	return nil
}

// ListCoordinatorMessages returns up to limit of the newest mirrored
// coordinator messages, oldest first. limit <= 0 returns all.
func (c *Client) ListCoordinatorMessages(ctx context.Context, shareID string, limit int) ([]*CoordinatorMessage, error) {
	key := ShareMessagesKey(c.instanceName, shareID)

	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}

	entries, err := c.rdb.LRange(ctx, key, start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read coordinator messages: %w", err)
	}

	messages := make([]*CoordinatorMessage, 0, len(entries))
	for _, entry := range entries {
		var m CoordinatorMessage
		if err := json.Unmarshal([]byte(entry), &m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal coordinator message: %w", err)
		}
		messages = append(messages, &m)
	}

	return messages, nil
}

// PutInformationRequest writes or replaces an information request.
func (c *Client) PutInformationRequest(ctx context.Context, req *InformationRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid information request: %w", err)
	}

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal information request: %w", err)
	}

	key := ShareRequestsKey(c.instanceName, req.ShareID)
	if err := c.rdb.HSet(ctx, key, req.ID, data).Err(); err != nil {
		return fmt.Errorf("failed to write information request: %w", err)
	}

	return nil
}

// GetInformationRequest retrieves one information request by ID.
// Returns (nil, redis.Nil) if the request doesn't exist.
func (c *Client) GetInformationRequest(ctx context.Context, shareID, requestID string) (*InformationRequest, error) {
	key := ShareRequestsKey(c.instanceName, shareID)

	data, err := c.rdb.HGet(ctx, key, requestID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, redis.Nil
		}
		return nil, fmt.Errorf("failed to read information request: %w", err)
	}

	var req InformationRequest
	if err := json.Unmarshal([]byte(data), &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal information request: %w", err)
	}

	return &req, nil
}

// ListInformationRequests returns all information requests for a share,
// oldest first.
func (c *Client) ListInformationRequests(ctx context.Context, shareID string) ([]*InformationRequest, error) {
	key := ShareRequestsKey(c.instanceName, shareID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list information requests: %w", err)
	}

	requests := make([]*InformationRequest, 0, len(hashData))
	for _, data := range hashData {
		var req InformationRequest
		if err := json.Unmarshal([]byte(data), &req); err != nil {
			return nil, fmt.Errorf("failed to unmarshal information request: %w", err)
		}
		requests = append(requests, &req)
	}

	sort.Slice(requests, func(i, j int) bool {
		return requests[i].CreatedAtMs < requests[j].CreatedAtMs
	})

	return requests, nil
}

// PublishRefresh signals a single conversation replica that its cached views
// are stale. The payload names the affected views only.
func (c *Client) PublishRefresh(ctx context.Context, conversationID string, sig *RefreshSignal) error {
	data, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("failed to marshal refresh signal: %w", err)
	}

	channel := RefreshChannel(c.instanceName, conversationID)
	if err := c.rdb.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish refresh signal: %w", err)
	}

	return nil
}

// PublishConversationEvent places an inbound platform event on the engine's
// event bus.
func (c *Client) PublishConversationEvent(ctx context.Context, e *ConversationEvent) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid conversation event: %w", err)
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation event: %w", err)
	}

	channel := ConversationEventsChannel(c.instanceName)
	if err := c.rdb.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish conversation event: %w", err)
	}

	return nil
}

// setJSON writes a JSON-encoded value at key.
func (c *Client) setJSON(ctx context.Context, key string, v interface{}, what string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", what, err)
	}

	if err := c.rdb.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s to Redis: %w", what, err)
	}

	return nil
}

// getJSON reads a JSON-encoded value at key into v.
// Returns redis.Nil unchanged when the key is absent.
func (c *Client) getJSON(ctx context.Context, key string, v interface{}, what string) error {
	data, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return redis.Nil
		}
		return fmt.Errorf("failed to read %s from Redis: %w", what, err)
	}

	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", what, err)
	}

	return nil
}

// Subscription is an active Pub/Sub subscription delivering decoded values of
// type T. Caller must call Close() when done to clean up resources.
type Subscription[T any] struct {
	events <-chan *T
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of decoded events.
// The channel is closed when the subscription is closed or the context is cancelled.
func (s *Subscription[T]) Events() <-chan *T {
	return s.events
}

// Errors returns the channel of subscription errors.
// Errors include JSON unmarshaling failures and other non-fatal issues.
// The subscription continues after errors - messages are skipped.
func (s *Subscription[T]) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription[T]) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// subscribeJSON subscribes to channel and decodes each payload as T.
// Events are delivered on a buffered channel (size 10) to prevent blocking.
// If the subscriber is too slow, events may be dropped by Redis Pub/Sub
// (at-most-once delivery).
func subscribeJSON[T any](ctx context.Context, rdb *redis.Client, channel string) *Subscription[T] {
	pubsub := rdb.Subscribe(ctx, channel)

	eventsChan := make(chan *T, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var value T
				if err := json.Unmarshal([]byte(msg.Payload), &value); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal event on %s: %w", channel, err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &value:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription[T]{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}
}

// SubscribeShareEvents subscribes to every log event appended across the
// instance's shares. Caller must call subscription.Close() when done.
func (c *Client) SubscribeShareEvents(ctx context.Context) (*Subscription[Event], error) {
	return subscribeJSON[Event](ctx, c.rdb, ShareEventsChannel(c.instanceName)), nil
}

// SubscribeConversationEvents subscribes to the inbound platform event bus.
// Caller must call subscription.Close() when done.
func (c *Client) SubscribeConversationEvents(ctx context.Context) (*Subscription[ConversationEvent], error) {
	return subscribeJSON[ConversationEvent](ctx, c.rdb, ConversationEventsChannel(c.instanceName)), nil
}

// SubscribeRefresh subscribes to a single conversation's refresh channel.
// Caller must call subscription.Close() when done.
func (c *Client) SubscribeRefresh(ctx context.Context, conversationID string) (*Subscription[RefreshSignal], error) {
	return subscribeJSON[RefreshSignal](ctx, c.rdb, RefreshChannel(c.instanceName, conversationID)), nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
// Use this to check if a Get* call returned "not found".
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}

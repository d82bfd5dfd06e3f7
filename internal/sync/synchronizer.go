// Package sync propagates coordinator-authored files to a share's team
// conversations.
//
// Propagation is strictly one-way. Coordinator file changes update the
// share's file index and fan out to every team conversation; team file
// changes stay local to the conversation that made them and never touch the
// index or other replicas.
package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"go.uber.org/multierr"

	"github.com/warrenhq/warren/internal/conversation"
	"github.com/warrenhq/warren/internal/events"
	"github.com/warrenhq/warren/internal/logger"
	"github.com/warrenhq/warren/pkg/sharestore"
)

// Op is a file operation observed in the coordinator conversation.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// DefaultTargetTimeout bounds each per-conversation copy or delete during
// fan-out. One slow target must not hold up the rest of the batch.
const DefaultTargetTimeout = 30 * time.Second

// Synchronizer replicates coordinator files into team conversations.
type Synchronizer struct {
	store         *sharestore.Client
	conversations conversation.Store
	eventLog      *events.Log
	notifier      *events.Notifier
	targetTimeout time.Duration
	log           *logger.Logger
}

// NewSynchronizer creates a synchronizer. A non-positive targetTimeout falls
// back to DefaultTargetTimeout.
func NewSynchronizer(store *sharestore.Client, conversations conversation.Store, eventLog *events.Log, notifier *events.Notifier, targetTimeout time.Duration, log *logger.Logger) *Synchronizer {
	if targetTimeout <= 0 {
		targetTimeout = DefaultTargetTimeout
	}
	return &Synchronizer{
		store:         store,
		conversations: conversations,
		eventLog:      eventLog,
		notifier:      notifier,
		targetTimeout: targetTimeout,
		log:           log,
	}
}

// OnCoordinatorFileChanged handles one coordinator file operation. The caller
// must have already resolved the acting conversation's role as coordinator.
//
// The file index write happens first; if it fails nothing is propagated, so
// replicas never see a file the durable index does not. Fan-out to team
// conversations is concurrent with per-target timeouts, and one target's
// failure never blocks the others. The audit event is appended even when some
// targets failed, so the log reflects intent under partial failure. Replicas
// are then told to refresh their file list; no chat message is generated.
//
// The returned error aggregates per-target fan-out failures. They are for
// logging only and must not be surfaced to end users.
func (s *Synchronizer) OnCoordinatorFileChanged(ctx context.Context, shareID, coordinatorConversationID string, file *sharestore.FileInfo, op Op) error {
	if op == OpDelete {
		return s.propagateDelete(ctx, shareID, coordinatorConversationID, file.Filename)
	}
	return s.propagateUpsert(ctx, shareID, coordinatorConversationID, file)
}

func (s *Synchronizer) propagateUpsert(ctx context.Context, shareID, coordinatorConversationID string, file *sharestore.FileInfo) error {
	// The HINCRBY-backed counter makes the version bump atomic: two
	// concurrent upserts of the same filename take distinct versions, and a
	// create colliding with an existing index entry is a re-upload that
	// simply takes the next one.
	version, err := s.store.BumpFileVersion(ctx, shareID, file.Filename)
	if err != nil {
		return fmt.Errorf("failed to bump file version: %w", err)
	}

	record := &sharestore.FileRecord{
		Filename:          file.Filename,
		ContentHash:       file.ContentHash,
		Version:           version,
		IsCoordinatorFile: true,
		UpdatedAtMs:       time.Now().UnixMilli(),
	}
	if err := s.store.PutFileRecord(ctx, shareID, record); err != nil {
		return fmt.Errorf("failed to write file index: %w", err)
	}

	fanoutErr := s.fanOut(ctx, shareID, file.Filename, func(ctx context.Context, target string) error {
		return s.conversations.CopyFile(ctx, coordinatorConversationID, target, file.Filename)
	})

	s.finish(ctx, shareID, coordinatorConversationID, sharestore.EventTypeFileShared,
		fmt.Sprintf("shared file %q (v%d)", file.Filename, version), file.Filename)
	return fanoutErr
}

func (s *Synchronizer) propagateDelete(ctx context.Context, shareID, coordinatorConversationID, filename string) error {
	existed, err := s.store.DeleteFileRecord(ctx, shareID, filename)
	if err != nil {
		return fmt.Errorf("failed to delete from file index: %w", err)
	}
	if !existed {
		// Deleting a file the index never knew about is a no-op, not an error.
		s.log.Debugw("ignoring delete of unindexed file",
			"share_id", shareID,
			"filename", filename)
		return nil
	}

	fanoutErr := s.fanOut(ctx, shareID, filename, func(ctx context.Context, target string) error {
		err := s.conversations.DeleteFile(ctx, target, filename)
		if conversation.IsNotFound(err) {
			// Target never received the file; nothing to remove.
			return nil
		}
		return err
	})

	s.finish(ctx, shareID, coordinatorConversationID, sharestore.EventTypeFileDeleted,
		fmt.Sprintf("deleted file %q", filename), filename)
	return fanoutErr
}

// fanOut applies one operation to every team conversation concurrently.
// The target list is a snapshot at invocation time; conversations joining
// after the snapshot pick the file up through join-time sync instead.
func (s *Synchronizer) fanOut(ctx context.Context, shareID, filename string, apply func(ctx context.Context, target string) error) error {
	targets, err := s.store.ListTeamConversations(ctx, shareID)
	if err != nil {
		s.log.Errorw("failed to snapshot team conversations for fan-out",
			"share_id", shareID,
			"filename", filename,
			"error", err)
		return fmt.Errorf("failed to list fan-out targets: %w", err)
	}

	var (
		mu   gosync.Mutex
		errs error
		wg   gosync.WaitGroup
	)
	for _, target := range targets {
		wg.Add(1)
		go func(target string) {
			defer wg.Done()

			targetCtx, cancel := context.WithTimeout(ctx, s.targetTimeout)
			defer cancel()

			if err := apply(targetCtx, target); err != nil {
				s.log.Warnw("fan-out to team conversation failed",
					"share_id", shareID,
					"conversation_id", target,
					"filename", filename,
					"error", err)
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("conversation %s: %w", target, err))
				mu.Unlock()
			}
		}(target)
	}
	wg.Wait()
	return errs
}

// finish appends the audit event and pushes a refresh signal. Both are best
// effort at this point: the index write already succeeded, so failures here
// are logged rather than returned.
func (s *Synchronizer) finish(ctx context.Context, shareID, actorConversationID string, eventType sharestore.EventType, message, filename string) {
	metadata := map[string]string{
		"filename":   filename,
		"owner_role": string(sharestore.RoleCoordinator),
	}
	if err := s.eventLog.Append(ctx, shareID, eventType, message, actorConversationID, metadata); err != nil {
		s.log.Errorw("failed to append file event",
			"share_id", shareID,
			"filename", filename,
			"error", err)
	}

	if err := s.notifier.NotifyStateUpdate(ctx, shareID, []string{events.ViewFileList}); err != nil {
		s.log.Warnw("failed to notify replicas of file change",
			"share_id", shareID,
			"filename", filename,
			"error", err)
	}
}

// SyncToConversation copies every indexed coordinator file into one
// conversation. Used at join time so late-joining team conversations catch up
// on files shared before they existed, and again on participant joins.
func (s *Synchronizer) SyncToConversation(ctx context.Context, shareID, targetConversationID string) error {
	share, err := s.store.GetShare(ctx, shareID)
	if err != nil {
		return fmt.Errorf("failed to load share for join-time sync: %w", err)
	}

	records, err := s.store.ListFileRecords(ctx, shareID)
	if err != nil {
		return fmt.Errorf("failed to list file index for join-time sync: %w", err)
	}

	var errs error
	for _, record := range records {
		if !record.IsCoordinatorFile {
			continue
		}

		copyCtx, cancel := context.WithTimeout(ctx, s.targetTimeout)
		err := s.conversations.CopyFile(copyCtx, share.CoordinatorConversationID, targetConversationID, record.Filename)
		cancel()
		if err != nil {
			s.log.Warnw("join-time file sync failed",
				"share_id", shareID,
				"conversation_id", targetConversationID,
				"filename", record.Filename,
				"error", err)
			errs = multierr.Append(errs, fmt.Errorf("file %s: %w", record.Filename, err))
		}
	}
	return errs
}

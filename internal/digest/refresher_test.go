package digest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warrenhq/warren/internal/conversation"
	"github.com/warrenhq/warren/internal/events"
	"github.com/warrenhq/warren/internal/logger"
	"github.com/warrenhq/warren/pkg/sharestore"
)

type fixture struct {
	store         *sharestore.Client
	conversations *conversation.Memory
	shareID       string
	eventLog      *events.Log
	notifier      *events.Notifier
}

func newFixture(t *testing.T) *fixture {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	store, err := sharestore.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	share := &sharestore.Share{
		ID:                        uuid.New().String(),
		CoordinatorConversationID: "conv-coordinator",
		CreatedAtMs:               time.Now().UnixMilli(),
	}
	require.NoError(t, store.CreateShare(ctx, share))

	conversations := conversation.NewMemory()
	conversations.Add("conv-coordinator", "Coordinator", nil)

	nop := logger.NewNop()
	return &fixture{
		store:         store,
		conversations: conversations,
		shareID:       share.ID,
		eventLog:      events.NewLog(store, nop),
		notifier:      events.NewNotifier(store, conversations, nop),
	}
}

func (f *fixture) mirror(t *testing.T, content string, isAssistant bool) {
	t.Helper()
	require.NoError(t, f.store.AppendCoordinatorMessage(context.Background(), f.shareID, &sharestore.CoordinatorMessage{
		MessageID:   uuid.New().String(),
		SenderName:  "alex",
		IsAssistant: isAssistant,
		Content:     content,
		TimestampMs: time.Now().UnixMilli(),
	}, 0))
}

func TestCondensingSummarizer(t *testing.T) {
	s := &CondensingSummarizer{MaxMessages: 2}

	content, err := s.Summarize(context.Background(), []*sharestore.CoordinatorMessage{
		{Content: "old", IsAssistant: false},
		{Content: "decided on plan B", IsAssistant: false},
		{Content: "Noted.", IsAssistant: true},
	})
	require.NoError(t, err)

	// Only the trailing window, assistant messages excluded.
	assert.Equal(t, "- decided on plan B\n", content)
}

func TestRefreshWritesDigest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mirror(t, "kickoff is monday", false)
	f.mirror(t, "budget approved", false)

	r := NewRefresher(f.store, f.eventLog, f.notifier, &CondensingSummarizer{}, 0, logger.NewNop())
	require.NoError(t, r.Refresh(ctx, f.shareID))

	d, err := f.store.GetDigest(ctx, f.shareID)
	require.NoError(t, err)
	assert.Contains(t, d.Content, "kickoff is monday")
	assert.Contains(t, d.Content, "budget approved")
	assert.Equal(t, 2, d.SourceMessageCount)

	entries, err := f.store.ListEvents(ctx, f.shareID)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, sharestore.EventTypeDigestUpdated, entries[len(entries)-1].Type)

	evs := f.conversations.StateEvents("conv-coordinator")
	require.NotEmpty(t, evs)
	assert.Equal(t, events.ViewDigest, evs[0].StateID)
}

func TestRefreshWithoutMessagesIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := NewRefresher(f.store, f.eventLog, f.notifier, &CondensingSummarizer{}, 0, logger.NewNop())
	require.NoError(t, r.Refresh(ctx, f.shareID))

	_, err := f.store.GetDigest(ctx, f.shareID)
	assert.True(t, sharestore.IsNotFound(err))
}

func TestBackgroundWorkerProcessesJobs(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.mirror(t, "status update", false)

	r := NewRefresher(f.store, f.eventLog, f.notifier, &CondensingSummarizer{}, 4, logger.NewNop())
	r.Start(ctx)

	r.Enqueue(f.shareID)
	r.Close()

	d, err := f.store.GetDigest(context.Background(), f.shareID)
	require.NoError(t, err)
	assert.Contains(t, d.Content, "status update")
}

type failingSummarizer struct{}

func (failingSummarizer) Summarize(ctx context.Context, messages []*sharestore.CoordinatorMessage) (string, error) {
	return "", errors.New("model unavailable")
}

func TestWorkerSurvivesRefreshFailure(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.mirror(t, "status update", false)

	r := NewRefresher(f.store, f.eventLog, f.notifier, failingSummarizer{}, 4, logger.NewNop())
	r.Start(ctx)

	// A failing job must not kill the worker.
	r.Enqueue(f.shareID)
	r.Enqueue(f.shareID)
	r.Close()

	// Digest stays absent, but nothing else broke.
	_, err := f.store.GetDigest(context.Background(), f.shareID)
	assert.True(t, sharestore.IsNotFound(err))
}

func TestEnqueueNeverBlocks(t *testing.T) {
	f := newFixture(t)

	// Worker not started, queue of one: the second enqueue is dropped.
	r := NewRefresher(f.store, f.eventLog, f.notifier, &CondensingSummarizer{}, 1, logger.NewNop())

	done := make(chan struct{})
	go func() {
		r.Enqueue(f.shareID)
		r.Enqueue(f.shareID)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked")
	}
}

package share

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warrenhq/warren/internal/conversation"
	"github.com/warrenhq/warren/internal/events"
	"github.com/warrenhq/warren/internal/logger"
	"github.com/warrenhq/warren/pkg/sharestore"
)

func setupManager(t *testing.T) (*Manager, *sharestore.Client, *conversation.Memory) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	store, err := sharestore.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	conversations := conversation.NewMemory()
	nop := logger.NewNop()
	manager := NewManager(store, conversations, events.NewLog(store, nop), events.NewNotifier(store, conversations, nop), 3, nop)
	return manager, store, conversations
}

func TestCreateShare(t *testing.T) {
	manager, store, conversations := setupManager(t)
	ctx := context.Background()
	conversations.Add("conv-coordinator", "Coordinator", nil)

	s, err := manager.CreateShare(ctx, "conv-coordinator")
	require.NoError(t, err)
	assert.Equal(t, "conv-coordinator", s.CoordinatorConversationID)
	assert.NotZero(t, s.CreatedAtMs)

	stored, err := store.GetShare(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, stored.ID)

	entries, err := store.ListEvents(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, sharestore.EventTypeShareCreated, entries[0].Type)
}

func TestCreateShareResumesExistingShare(t *testing.T) {
	manager, store, conversations := setupManager(t)
	ctx := context.Background()
	conversations.Add("conv-coordinator", "Coordinator", nil)

	first, err := manager.CreateShare(ctx, "conv-coordinator")
	require.NoError(t, err)

	// A retry after a crash partway through coordinator setup lands here:
	// the derived ID matches, so the existing share is returned instead of a
	// second one being minted.
	second, err := manager.CreateShare(ctx, "conv-coordinator")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	shares, err := store.ListShares(ctx)
	require.NoError(t, err)
	assert.Len(t, shares, 1)

	// The creation is logged once.
	entries, err := store.ListEvents(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, sharestore.EventTypeShareCreated, entries[0].Type)
}

func TestCreateShareableTemplate(t *testing.T) {
	manager, store, conversations := setupManager(t)
	ctx := context.Background()
	conversations.Add("conv-coordinator", "Launch planning", nil)

	s, err := manager.CreateShare(ctx, "conv-coordinator")
	require.NoError(t, err)

	templateID, shareURL, err := manager.CreateShareableTemplate(ctx, s)
	require.NoError(t, err)
	assert.NotEmpty(t, templateID)
	assert.Contains(t, shareURL, "redeem")

	stored, err := store.GetShare(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, templateID, stored.TemplateConversationID)

	// The minted conversation carries the share binding in its metadata.
	conv, err := conversations.GetConversation(ctx, templateID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, conv.MetadataValue(conversation.MetadataShareID))
	assert.Equal(t, "true", conv.MetadataValue(conversation.MetadataTeamShape))
}

func TestUpdateBrief(t *testing.T) {
	manager, store, conversations := setupManager(t)
	ctx := context.Background()
	conversations.Add("conv-coordinator", "Coordinator", nil)

	s, err := manager.CreateShare(ctx, "conv-coordinator")
	require.NoError(t, err)

	brief := &sharestore.Brief{
		Title:       "Launch plan",
		Description: "Everything the team needs for the launch.",
		Goals:       []string{"ship by friday"},
	}
	require.NoError(t, manager.UpdateBrief(ctx, s.ID, "conv-coordinator", brief))

	stored, err := manager.Brief(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "Launch plan", stored.Title)
	assert.NotZero(t, stored.UpdatedAtMs)

	// Brief update logs an event and refreshes the brief view.
	entries, err := store.ListEvents(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, sharestore.EventTypeBriefUpdated, entries[len(entries)-1].Type)

	evs := conversations.StateEvents("conv-coordinator")
	require.NotEmpty(t, evs)
	assert.Equal(t, events.ViewBrief, evs[0].StateID)
}

func TestMirrorCoordinatorMessagesCapped(t *testing.T) {
	manager, store, conversations := setupManager(t) // cap of 3
	ctx := context.Background()
	conversations.Add("conv-coordinator", "Coordinator", nil)

	s, err := manager.CreateShare(ctx, "conv-coordinator")
	require.NoError(t, err)

	for i, content := range []string{"one", "two", "three", "four"} {
		require.NoError(t, manager.MirrorCoordinatorMessage(ctx, s.ID, &sharestore.CoordinatorMessage{
			MessageID:   content,
			SenderName:  "alex",
			Content:     content,
			TimestampMs: int64(i + 1),
		}))
	}

	msgs, err := store.ListCoordinatorMessages(ctx, s.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "two", msgs[0].Content)
	assert.Equal(t, "four", msgs[2].Content)
}

func TestInformationRequestLifecycle(t *testing.T) {
	manager, store, conversations := setupManager(t)
	ctx := context.Background()
	conversations.Add("conv-coordinator", "Coordinator", nil)
	conversations.Add("conv-team-1", "Team", nil)

	s, err := manager.CreateShare(ctx, "conv-coordinator")
	require.NoError(t, err)
	_, err = store.AddTeamConversation(ctx, s.ID, "conv-team-1")
	require.NoError(t, err)

	req, err := manager.CreateInformationRequest(ctx, s.ID, "conv-team-1", "Need the budget sheet", "Q3 numbers specifically")
	require.NoError(t, err)
	assert.Equal(t, sharestore.RequestStatusOpen, req.Status)

	t.Run("resolve", func(t *testing.T) {
		require.NoError(t, manager.ResolveInformationRequest(ctx, s.ID, req.ID, "conv-coordinator", "uploaded as budget.xlsx"))

		stored, err := store.GetInformationRequest(ctx, s.ID, req.ID)
		require.NoError(t, err)
		assert.Equal(t, sharestore.RequestStatusResolved, stored.Status)
		assert.Equal(t, "uploaded as budget.xlsx", stored.Resolution)
		assert.NotZero(t, stored.ResolvedAtMs)
	})

	t.Run("resolve twice is a no-op", func(t *testing.T) {
		require.NoError(t, manager.ResolveInformationRequest(ctx, s.ID, req.ID, "conv-coordinator", "different answer"))

		stored, err := store.GetInformationRequest(ctx, s.ID, req.ID)
		require.NoError(t, err)
		assert.Equal(t, "uploaded as budget.xlsx", stored.Resolution)
	})

	t.Run("events logged", func(t *testing.T) {
		entries, err := store.ListEvents(ctx, s.ID)
		require.NoError(t, err)

		var types []sharestore.EventType
		for _, e := range entries {
			types = append(types, e.Type)
		}
		assert.Contains(t, types, sharestore.EventTypeRequestCreated)
		assert.Contains(t, types, sharestore.EventTypeRequestResolved)
	})
}

func TestSyncTemplateTitle(t *testing.T) {
	manager, _, conversations := setupManager(t)
	ctx := context.Background()
	conversations.Add("conv-coordinator", "Launch planning", nil)

	s, err := manager.CreateShare(ctx, "conv-coordinator")
	require.NoError(t, err)

	t.Run("no-op before template exists", func(t *testing.T) {
		assert.NoError(t, manager.SyncTemplateTitle(ctx, s.ID, "Renamed"))
	})

	templateID, _, err := manager.CreateShareableTemplate(ctx, s)
	require.NoError(t, err)

	t.Run("renames the template", func(t *testing.T) {
		require.NoError(t, manager.SyncTemplateTitle(ctx, s.ID, "Renamed"))

		conv, err := conversations.GetConversation(ctx, templateID)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", conv.Title)
	})
}

package lifecycle

import (
	"context"
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
	"github.com/warrenhq/warren/internal/share"
	filesync "github.com/warrenhq/warren/internal/sync"
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
	eventLog := events.NewLog(store, nop)
	notifier := events.NewNotifier(store, conversations, nop)
	shares := share.NewManager(store, conversations, eventLog, notifier, 0, nop)
	syncer := filesync.NewSynchronizer(store, conversations, eventLog, notifier, time.Second, nop)

	welcome := WelcomeMessages{
		Coordinator: "Welcome! Share this link with your team: %s",
		Team:        "Welcome to the team workspace.",
	}
	return NewManager(store, conversations, shares, syncer, eventLog, welcome, nop), store, conversations
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		conv *conversation.Conversation
		want Kind
	}{
		{
			name: "bare conversation becomes coordinator",
			conv: &conversation.Conversation{ID: "c1"},
			want: KindCoordinator,
		},
		{
			name: "share-bound without lineage is the template",
			conv: &conversation.Conversation{
				ID: "c2",
				Metadata: map[string]string{
					conversation.MetadataShareID:   uuid.New().String(),
					conversation.MetadataTeamShape: "true",
				},
			},
			want: KindTemplate,
		},
		{
			name: "share-bound with lineage is a team instance",
			conv: &conversation.Conversation{
				ID:                         "c3",
				Metadata:                   map[string]string{conversation.MetadataShareID: uuid.New().String()},
				ImportedFromConversationID: "conv-template",
			},
			want: KindTeam,
		},
		{
			name: "redemption token without share binding is unknown",
			conv: &conversation.Conversation{
				ID:       "c4",
				Metadata: map[string]string{conversation.MetadataRedemptionToken: "tok"},
			},
			want: KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.conv))
		})
	}
}

func TestCoordinatorBranch(t *testing.T) {
	m, store, conversations := setupManager(t)
	ctx := context.Background()
	conversations.Add("conv-coordinator", "Launch planning", nil)

	require.NoError(t, m.OnConversationCreated(ctx, "conv-coordinator"))

	record, err := store.GetRoleRecord(ctx, "conv-coordinator")
	require.NoError(t, err)
	assert.Equal(t, sharestore.RoleCoordinator, record.Role)

	s, err := store.GetShare(ctx, record.ShareID)
	require.NoError(t, err)
	assert.Equal(t, "conv-coordinator", s.CoordinatorConversationID)
	assert.NotEmpty(t, s.TemplateConversationID)

	t.Run("cache stamped", func(t *testing.T) {
		conv, err := conversations.GetConversation(ctx, "conv-coordinator")
		require.NoError(t, err)
		assert.Equal(t, record.ShareID, conv.MetadataValue(conversation.MetadataShareID))
		assert.Equal(t, "coordinator", conv.MetadataValue(conversation.MetadataShareRole))
	})

	t.Run("welcome carries the share URL", func(t *testing.T) {
		msgs := conversations.Messages("conv-coordinator")
		require.Len(t, msgs, 1)
		assert.Contains(t, msgs[0].Content, "redeem")
	})

	t.Run("replay does not mint a second share", func(t *testing.T) {
		require.NoError(t, m.OnConversationCreated(ctx, "conv-coordinator"))

		again, err := store.GetRoleRecord(ctx, "conv-coordinator")
		require.NoError(t, err)
		assert.Equal(t, record.ShareID, again.ShareID)

		// No extra welcome message either.
		assert.Len(t, conversations.Messages("conv-coordinator"), 1)
	})
}

func TestCoordinatorSetupResumesOrphanShare(t *testing.T) {
	m, store, conversations := setupManager(t)
	ctx := context.Background()
	conversations.Add("conv-coordinator", "Launch planning", nil)

	// Simulate a crash between share creation and role binding: the share
	// exists but the conversation never got its role record.
	nop := logger.NewNop()
	shares := share.NewManager(store, conversations,
		events.NewLog(store, nop), events.NewNotifier(store, conversations, nop), 0, nop)
	orphan, err := shares.CreateShare(ctx, "conv-coordinator")
	require.NoError(t, err)

	require.NoError(t, m.OnConversationCreated(ctx, "conv-coordinator"))

	// The retry adopted the existing share rather than minting a second one.
	record, err := store.GetRoleRecord(ctx, "conv-coordinator")
	require.NoError(t, err)
	assert.Equal(t, orphan.ID, record.ShareID)

	all, err := store.ListShares(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestTemplateBranch(t *testing.T) {
	m, store, conversations := setupManager(t)
	ctx := context.Background()
	conversations.Add("conv-coordinator", "Launch planning", nil)
	require.NoError(t, m.OnConversationCreated(ctx, "conv-coordinator"))

	record, err := store.GetRoleRecord(ctx, "conv-coordinator")
	require.NoError(t, err)
	s, err := store.GetShare(ctx, record.ShareID)
	require.NoError(t, err)
	templateID := s.TemplateConversationID

	// The platform fires a creation event for the minted template too.
	require.NoError(t, m.OnConversationCreated(ctx, templateID))

	t.Run("associated without a role", func(t *testing.T) {
		rec, err := store.GetRoleRecord(ctx, templateID)
		require.NoError(t, err)
		assert.Equal(t, s.ID, rec.ShareID)
		assert.Empty(t, rec.Role)
	})

	t.Run("never welcomed", func(t *testing.T) {
		assert.Empty(t, conversations.Messages(templateID))
	})

	t.Run("replay is a no-op", func(t *testing.T) {
		require.NoError(t, m.OnConversationCreated(ctx, templateID))
		assert.Empty(t, conversations.Messages(templateID))
	})
}

func TestTeamBranch(t *testing.T) {
	m, store, conversations := setupManager(t)
	ctx := context.Background()
	conversations.Add("conv-coordinator", "Launch planning", nil)
	require.NoError(t, m.OnConversationCreated(ctx, "conv-coordinator"))

	record, err := store.GetRoleRecord(ctx, "conv-coordinator")
	require.NoError(t, err)
	shareID := record.ShareID
	s, err := store.GetShare(ctx, shareID)
	require.NoError(t, err)

	// A file shared before anyone joins.
	require.NoError(t, conversations.SetFile("conv-coordinator", "spec.pdf", "v1"))
	require.NoError(t, store.PutFileRecord(ctx, shareID, &sharestore.FileRecord{
		Filename:          "spec.pdf",
		Version:           1,
		IsCoordinatorFile: true,
		UpdatedAtMs:       time.Now().UnixMilli(),
	}))

	// Redemption mints a team conversation with lineage from the template.
	conversations.AddWithLineage("conv-team-1", "Launch planning", map[string]string{
		conversation.MetadataShareID: shareID,
	}, s.TemplateConversationID)

	require.NoError(t, m.OnConversationCreated(ctx, "conv-team-1"))

	t.Run("registered in the team set with TEAM role", func(t *testing.T) {
		teams, err := store.ListTeamConversations(ctx, shareID)
		require.NoError(t, err)
		assert.Equal(t, []string{"conv-team-1"}, teams)

		rec, err := store.GetRoleRecord(ctx, "conv-team-1")
		require.NoError(t, err)
		assert.Equal(t, sharestore.RoleTeam, rec.Role)
	})

	t.Run("join-time sync delivered earlier files", func(t *testing.T) {
		content, ok := conversations.FileContent("conv-team-1", "spec.pdf")
		require.True(t, ok)
		assert.Equal(t, "v1", content)
	})

	t.Run("welcomed and logged", func(t *testing.T) {
		msgs := conversations.Messages("conv-team-1")
		require.Len(t, msgs, 1)
		assert.Equal(t, "Welcome to the team workspace.", msgs[0].Content)

		entries, err := store.ListEvents(ctx, shareID)
		require.NoError(t, err)

		joined := 0
		for _, e := range entries {
			if e.Type == sharestore.EventTypeTeamJoined {
				joined++
			}
		}
		assert.Equal(t, 1, joined)
	})

	t.Run("replay adds nothing", func(t *testing.T) {
		require.NoError(t, m.OnConversationCreated(ctx, "conv-team-1"))

		teams, err := store.ListTeamConversations(ctx, shareID)
		require.NoError(t, err)
		assert.Len(t, teams, 1)
		assert.Len(t, conversations.Messages("conv-team-1"), 1)

		entries, err := store.ListEvents(ctx, shareID)
		require.NoError(t, err)
		joined := 0
		for _, e := range entries {
			if e.Type == sharestore.EventTypeTeamJoined {
				joined++
			}
		}
		assert.Equal(t, 1, joined)
	})
}

func TestRoleImmutableAcrossLifecycle(t *testing.T) {
	m, store, conversations := setupManager(t)
	ctx := context.Background()
	conversations.Add("conv-coordinator", "Launch planning", nil)
	require.NoError(t, m.OnConversationCreated(ctx, "conv-coordinator"))

	record, err := store.GetRoleRecord(ctx, "conv-coordinator")
	require.NoError(t, err)

	// Metadata later claims the coordinator is a team conversation; the
	// recorded role must not budge.
	require.NoError(t, conversations.SetMetadata(ctx, "conv-coordinator", conversation.MetadataShareRole, "team"))
	conversations.AddWithLineage("conv-coordinator", "Launch planning", map[string]string{
		conversation.MetadataShareID: record.ShareID,
	}, "conv-template")

	err = m.OnConversationCreated(ctx, "conv-coordinator")
	require.Error(t, err)

	again, err := store.GetRoleRecord(ctx, "conv-coordinator")
	require.NoError(t, err)
	assert.Equal(t, sharestore.RoleCoordinator, again.Role)
}

func TestOnParticipantJoined(t *testing.T) {
	m, store, conversations := setupManager(t)
	ctx := context.Background()
	conversations.Add("conv-coordinator", "Launch planning", nil)
	require.NoError(t, m.OnConversationCreated(ctx, "conv-coordinator"))

	record, err := store.GetRoleRecord(ctx, "conv-coordinator")
	require.NoError(t, err)
	shareID := record.ShareID

	conversations.AddWithLineage("conv-team-1", "Launch planning", map[string]string{
		conversation.MetadataShareID: shareID,
	}, "conv-template")
	require.NoError(t, m.OnConversationCreated(ctx, "conv-team-1"))

	// A file shared after the team conversation joined but before a second
	// participant shows up.
	require.NoError(t, conversations.SetFile("conv-coordinator", "notes.md", "n1"))
	require.NoError(t, store.PutFileRecord(ctx, shareID, &sharestore.FileRecord{
		Filename:          "notes.md",
		Version:           1,
		IsCoordinatorFile: true,
		UpdatedAtMs:       time.Now().UnixMilli(),
	}))
	require.NoError(t, conversations.DeleteFile(ctx, "conv-team-1", "notes.md"))

	require.NoError(t, m.OnParticipantJoined(ctx, "conv-team-1", &sharestore.ParticipantInfo{ID: "p1", Name: "Jordan"}))

	_, ok := conversations.FileContent("conv-team-1", "notes.md")
	assert.True(t, ok)

	entries, err := store.ListEvents(ctx, shareID)
	require.NoError(t, err)
	assert.Equal(t, sharestore.EventTypeParticipantJoined, entries[len(entries)-1].Type)

	t.Run("no-op for unassociated conversations", func(t *testing.T) {
		conversations.Add("conv-stranger", "Chat", nil)
		assert.NoError(t, m.OnParticipantJoined(ctx, "conv-stranger", nil))
	})
}

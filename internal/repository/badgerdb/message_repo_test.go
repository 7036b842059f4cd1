package badgerdb_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/dom/league-chat/internal/domain"
	"github.com/dom/league-chat/internal/repository/badgerdb"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMessage(sender, recipient, content string, ts int64) *domain.Message {
	return &domain.Message{
		ID:                uuid.Must(uuid.NewV7()),
		SenderUsername:    sender,
		RecipientUsername: recipient,
		Content:           content,
		Timestamp:         ts,
	}
}

func TestMessageRepository_GetConversation(t *testing.T) {
	repo := badgerdb.NewMessageRepository(newTestDB(t))
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		sender, recipient := "alice", "bob"
		if i%2 == 0 {
			sender, recipient = "bob", "alice"
		}
		require.NoError(t, repo.Create(ctx, newMessage(sender, recipient, fmt.Sprintf("m%d", i), int64(1000+i))))
	}
	// Unrelated conversations must not leak into the pair
	require.NoError(t, repo.Create(ctx, newMessage("alice", "carol", "other", 1003)))
	require.NoError(t, repo.Create(ctx, newMessage("alicebob", "x", "prefix", 1003)))

	tests := []struct {
		name   string
		userA  string
		userB  string
		limit  int
		offset int
		want   []string
	}{
		{name: "first page newest first", userA: "alice", userB: "bob", limit: 2, offset: 0, want: []string{"m5", "m4"}},
		{name: "second page", userA: "alice", userB: "bob", limit: 2, offset: 2, want: []string{"m3", "m2"}},
		{name: "last partial page", userA: "alice", userB: "bob", limit: 2, offset: 4, want: []string{"m1"}},
		{name: "pair order does not matter", userA: "bob", userB: "alice", limit: 10, offset: 0, want: []string{"m5", "m4", "m3", "m2", "m1"}},
		{name: "past the end", userA: "alice", userB: "bob", limit: 2, offset: 10, want: []string{}},
		{name: "no conversation", userA: "bob", userB: "carol", limit: 10, offset: 0, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.GetConversation(ctx, tt.userA, tt.userB, tt.limit, tt.offset)
			require.NoError(t, err)
			require.NotNil(t, got)

			contents := make([]string, 0, len(got))
			for _, m := range got {
				assert.True(t, m.Involves(tt.userA, tt.userB))
				contents = append(contents, m.Content)
			}
			assert.Equal(t, tt.want, contents)
		})
	}
}

func TestMessageRepository_SameMillisecondKeepsCreationOrder(t *testing.T) {
	repo := badgerdb.NewMessageRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newMessage("alice", "bob", "1", 5000)))
	require.NoError(t, repo.Create(ctx, newMessage("alice", "bob", "2", 5000)))

	got, err := repo.GetConversation(ctx, "alice", "bob", 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].Content)
	assert.Equal(t, "1", got[1].Content)
}

func TestMessageRepository_ConversationsAreIsolated(t *testing.T) {
	repo := badgerdb.NewMessageRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newMessage("alice", "bob", "mine", 1000)))
	require.NoError(t, repo.Create(ctx, newMessage("alice", "bob\x00x", "secret", 1001)))
	require.NoError(t, repo.Create(ctx, newMessage("a\x00b", "c", "left", 1002)))
	require.NoError(t, repo.Create(ctx, newMessage("a", "b\x00c", "right", 1003)))

	tests := []struct {
		userA string
		userB string
		want  []string
	}{
		{userA: "alice", userB: "bob", want: []string{"mine"}},
		{userA: "alice", userB: "bob\x00x", want: []string{"secret"}},
		{userA: "a\x00b", userB: "c", want: []string{"left"}},
		{userA: "a", userB: "b\x00c", want: []string{"right"}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q/%q", tt.userA, tt.userB), func(t *testing.T) {
			got, err := repo.GetConversation(ctx, tt.userA, tt.userB, 10, 0)
			require.NoError(t, err)

			contents := make([]string, 0, len(got))
			for _, m := range got {
				assert.True(t, m.Involves(tt.userA, tt.userB))
				contents = append(contents, m.Content)
			}
			assert.Equal(t, tt.want, contents)
		})
	}
}

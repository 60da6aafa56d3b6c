package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisHistory(t *testing.T, ttl time.Duration) (*RedisHistoryStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisHistoryStore(client, ttl), mr
}

func TestRedisHistoryStoreRoundTrip(t *testing.T) {
	store, mr := newRedisHistory(t, time.Hour)
	ctx := context.Background()

	history := []ChatMessage{
		{Role: ChatRoleUser, Content: "What are your hours?"},
		{Role: ChatRoleAssistant, Content: "We are open 9 to 5."},
	}
	require.NoError(t, store.Save(ctx, "c1", history))

	assert.True(t, mr.Exists("conversation:c1"))
	assert.Equal(t, time.Hour, mr.TTL("conversation:c1"))

	loaded, err := store.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, history, loaded)
}

func TestRedisHistoryStoreMissingAndExpired(t *testing.T) {
	store, mr := newRedisHistory(t, time.Minute)
	ctx := context.Background()

	_, err := store.Load(ctx, "missing")
	assert.True(t, errors.Is(err, ErrConversationNotFound))

	require.NoError(t, store.Save(ctx, "c1", []ChatMessage{{Role: ChatRoleUser, Content: "hi"}}))
	mr.FastForward(2 * time.Minute)
	_, err = store.Load(ctx, "c1")
	assert.True(t, errors.Is(err, ErrConversationNotFound))
}

func TestRedisHistoryStoreDefaultTTLAndTrim(t *testing.T) {
	store, mr := newRedisHistory(t, 0)
	ctx := context.Background()

	history := make([]ChatMessage, maxStoredTurns+5)
	for i := range history {
		history[i] = ChatMessage{Role: ChatRoleUser, Content: "turn"}
	}
	history[0].Content = "oldest"
	require.NoError(t, store.Save(ctx, "c1", history))

	assert.Equal(t, DefaultHistoryTTL, mr.TTL("conversation:c1"))
	loaded, err := store.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, loaded, maxStoredTurns)
	assert.NotEqual(t, "oldest", loaded[0].Content)
}

func TestRedisHistoryStoreCorruptValue(t *testing.T) {
	store, mr := newRedisHistory(t, time.Hour)
	require.NoError(t, mr.Set("conversation:bad", "not json"))

	_, err := store.Load(context.Background(), "bad")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrConversationNotFound))
}

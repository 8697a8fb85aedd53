package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisStore(client, nil)
	ctx := context.Background()

	record, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, record)

	locked, err := store.Lock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, locked)

	locked, err = store.Lock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, locked)

	processedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Set(ctx, "k", &Record{Status: StatusCompleted, ProcessedAt: processedAt}, time.Hour))

	record, err = store.Get(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, StatusCompleted, record.Status)
	assert.True(t, processedAt.Equal(record.ProcessedAt))

	require.NoError(t, store.ReleaseLock(ctx, "k"))
	assert.False(t, mr.Exists(lockKey("k")))
}

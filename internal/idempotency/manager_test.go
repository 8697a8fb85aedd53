package idempotency

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

func newTestManager(t *testing.T) (Manager, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewManager(NewRedisStore(client, nil), nil), mr
}

func TestManager_ExecuteOnce(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()
	key := CallbackKey("cb-1")

	calls := 0
	op := func(context.Context) error {
		calls++
		return nil
	}

	first, err := m.Execute(ctx, key, time.Hour, op)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := m.Execute(ctx, key, time.Hour, op)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)

	assert.Equal(t, 1, calls)
	assert.False(t, mr.Exists(lockKey(key)))
	assert.Equal(t, time.Hour, mr.TTL(recordKey(key)))
}

func TestManager_RecordExpires(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()
	key := CallbackKey("cb-2")

	calls := 0
	op := func(context.Context) error {
		calls++
		return nil
	}

	_, err := m.Execute(ctx, key, time.Minute, op)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	result, err := m.Execute(ctx, key, time.Minute, op)
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.Equal(t, 2, calls)
}

func TestManager_FailedOperationIsNotRecorded(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()
	key := CallbackKey("cb-3")
	opErr := errors.New("handler failed")

	_, err := m.Execute(ctx, key, time.Hour, func(context.Context) error { return opErr })
	require.ErrorIs(t, err, opErr)
	assert.False(t, mr.Exists(recordKey(key)))

	result, err := m.Execute(ctx, key, time.Hour, func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
}

func TestManager_InProgress(t *testing.T) {
	m, mr := newTestManager(t)
	key := CallbackKey("cb-4")
	require.NoError(t, mr.Set(lockKey(key), StatusProcessing))

	_, err := m.Execute(context.Background(), key, time.Hour, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrRequestInProgress)
}

func TestManager_StoreUnavailable(t *testing.T) {
	m, mr := newTestManager(t)
	mr.Close()

	_, err := m.Execute(context.Background(), CallbackKey("cb-5"), time.Hour, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestCallbackKey(t *testing.T) {
	assert.Equal(t, CallbackKey("abc"), CallbackKey("abc"))
	assert.NotEqual(t, CallbackKey("abc"), CallbackKey("abd"))
	assert.Len(t, CallbackKey("abc"), 64)
}

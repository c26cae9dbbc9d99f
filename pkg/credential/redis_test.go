package credential

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), mr.Addr(), "", 0, "test:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStore(t *testing.T) {
	store, _ := newMiniredisStore(t)
	testStoreInterface(t, store)
}

func TestRedisStoreUsesPrefix(t *testing.T) {
	store, mr := newMiniredisStore(t)

	require.NoError(t, store.Set(context.Background(), KeyAccessToken, "value"))

	raw, err := mr.Get("test:" + KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "value", raw)
	assert.Zero(t, mr.TTL("test:"+KeyAccessToken))
}

func TestRedisStoreDefaultPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreWithClient(client, "")
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Set(context.Background(), KeyUserData, "{}"))
	assert.True(t, mr.Exists("boardadmin:"+KeyUserData))
}

func TestRedisStoreConnectionFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisStore(context.Background(), addr, "", 0, "")
	assert.ErrorContains(t, err, "failed to connect to redis")

	_, err = NewRedisStore(context.Background(), "", "", 0, "")
	assert.Error(t, err)
}

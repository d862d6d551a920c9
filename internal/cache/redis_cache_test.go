package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type projection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client), mr
}

func TestKey(t *testing.T) {
	assert.Equal(t, "identity:email:a@x.com", Key("identity", "email", "A@X.com"))
	assert.Equal(t, "resource:id:3f2c", Key("resource", "id", "3F2C"))
}

func TestSetGetUntilTTL(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	key := Key("resource", "id", "r-1")

	require.NoError(t, SetJSON(ctx, c, key, projection{ID: "r-1", Name: "X"}, time.Minute))

	got, ok, err := GetJSON[projection](ctx, c, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, projection{ID: "r-1", Name: "X"}, got)

	mr.FastForward(61 * time.Second)

	_, ok, err = GetJSON[projection](ctx, c, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoveMakesEntryAbsentImmediately(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	key := Key("identity", "email", "a@x.com")

	require.NoError(t, c.Set(ctx, key, []byte(`{"id":"1"}`), time.Hour))
	require.NoError(t, c.Remove(ctx, key))

	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoveMissingKeyIsNoop(t *testing.T) {
	c, _ := newTestCache(t)
	assert.NoError(t, c.Remove(context.Background(), "identity:email:nobody@x.com"))
}

func TestGetJSONRejectsCorruptEntry(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set("resource:id:bad", "{not json"))

	_, ok, err := GetJSON[projection](context.Background(), c, "resource:id:bad")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestGetSurfacesConnectionErrors(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	c := NewRedisCache(client)
	mr.Close()

	_, ok, err := c.Get(context.Background(), "resource:id:r-1")
	assert.Error(t, err)
	assert.False(t, ok)
}

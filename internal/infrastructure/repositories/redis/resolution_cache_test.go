package redis

import (
	"context"
	"testing"
	"time"

	"callplayer/internal/core/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return s, client
}

func TestRedisResolutionCache_SetGet(t *testing.T) {
	s, client := newTestClient(t)
	c := NewRedisResolutionCache(client)
	ctx := context.Background()

	_, err := c.Get(ctx, "never gonna")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)

	media := &domain.ResolvedMedia{Query: "never gonna", AudioURL: "https://audio", VideoURL: "https://video"}
	require.NoError(t, c.Set(ctx, "never gonna", media, time.Minute))

	got, err := c.Get(ctx, "never gonna")
	require.NoError(t, err)
	assert.Equal(t, media, got)
	assert.True(t, s.Exists(resolutionKeyPrefix+"never gonna"))

	s.FastForward(2 * time.Minute)
	_, err = c.Get(ctx, "never gonna")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestRedisResolutionCache_CorruptEntry(t *testing.T) {
	s, client := newTestClient(t)
	c := NewRedisResolutionCache(client)

	require.NoError(t, s.Set(resolutionKeyPrefix+"bad", "{not json"))

	_, err := c.Get(context.Background(), "bad")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrCacheMiss)
}

func TestMigrate_DropsEntriesWithoutTTL(t *testing.T) {
	s, client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, s.Set(resolutionKeyPrefix+"stale", "{}"))
	require.NoError(t, s.Set(resolutionKeyPrefix+"fresh", "{}"))
	s.SetTTL(resolutionKeyPrefix+"fresh", time.Hour)

	require.NoError(t, Migrate(ctx, client, nil))

	assert.False(t, s.Exists(resolutionKeyPrefix+"stale"))
	assert.True(t, s.Exists(resolutionKeyPrefix+"fresh"))

	version, err := getSchemaVersion(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)

	// second run is a no-op
	require.NoError(t, s.Set(resolutionKeyPrefix+"later", "{}"))
	require.NoError(t, Migrate(ctx, client, nil))
	assert.True(t, s.Exists(resolutionKeyPrefix+"later"))
}

func TestNewRedisClient(t *testing.T) {
	s := miniredis.RunT(t)

	client, err := NewRedisClient(ClientOptions{Address: s.Addr(), PoolSize: 4}, nil)
	require.NoError(t, err)
	defer CloseRedisClient(client)

	version, err := getSchemaVersion(context.Background(), client)
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)

	_, err = NewRedisClient(ClientOptions{Address: "127.0.0.1:1", ConnectTimeout: 200 * time.Millisecond}, nil)
	assert.Error(t, err)

	assert.NoError(t, CloseRedisClient(nil))
}

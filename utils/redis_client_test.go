package utils

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	m := miniredis.RunT(t)
	require.NotNil(t, InitRedis(m.Addr(), "", 0))
	t.Cleanup(CloseRedis)
	return m
}

func TestTryLockWithoutRedis(t *testing.T) {
	ok, release := TryLock("job", time.Minute)
	assert.True(t, ok)
	release()
}

func TestTryLockReleasesOnlyItsOwnLock(t *testing.T) {
	m := startRedis(t)

	ok, releaseFirst := TryLock("job", time.Minute)
	require.True(t, ok)
	ok, _ = TryLock("job", time.Minute)
	assert.False(t, ok)

	// the first holder overruns its ttl and another instance takes over
	m.FastForward(2 * time.Minute)
	require.False(t, m.Exists("lock:job"))
	ok, releaseSecond := TryLock("job", time.Minute)
	require.True(t, ok)

	releaseFirst()
	assert.True(t, m.Exists("lock:job"))

	releaseSecond()
	assert.False(t, m.Exists("lock:job"))
}

func TestCacheGenerationAndInvalidation(t *testing.T) {
	m := startRedis(t)

	assert.Zero(t, CacheGeneration("gen:board"))
	BumpGeneration("gen:board")
	BumpGeneration("gen:board")
	assert.EqualValues(t, 2, CacheGeneration("gen:board"))

	CacheSetJSON("board:1", []int{1, 2}, time.Minute)
	CacheSetJSON("board:2", []int{3}, time.Minute)
	CacheSetJSON("other", []int{4}, 0)
	var got []int
	require.True(t, CacheGetJSON("board:1", &got))
	assert.Equal(t, []int{1, 2}, got)

	InvalidateByPrefix("board:")
	assert.False(t, CacheGetJSON("board:1", &got))
	assert.False(t, m.Exists("board:2"))
	assert.True(t, m.Exists("other"))
	assert.Equal(t, defaultCacheTTL, m.TTL("other"))
}

func TestTokenBlacklistUsesRedis(t *testing.T) {
	m := startRedis(t)

	BlacklistToken("tok-1", time.Now().Add(time.Hour))
	assert.True(t, m.Exists("jwt:blacklist:tok-1"))
	assert.Greater(t, m.TTL("jwt:blacklist:tok-1"), 59*time.Minute)
	assert.True(t, IsTokenBlacklisted("tok-1"))
	assert.False(t, IsTokenBlacklisted("tok-2"))

	// revocation lapses with the token
	m.FastForward(time.Hour + time.Second)
	assert.False(t, IsTokenBlacklisted("tok-1"))

	BlacklistToken("expired", time.Now().Add(-time.Minute))
	assert.False(t, m.Exists("jwt:blacklist:expired"))
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isagip/barangay-dashboard-api/internal/repository"
)

type countedLoad struct {
	calls int
	value []string
	err   error
}

func (l *countedLoad) load(context.Context) ([]string, error) {
	l.calls++
	return l.value, l.err
}

func newRedisCache(t *testing.T, enabled bool) (*miniredis.Miniredis, *CacheService, *MetricsService) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	metrics := NewMetricsService()
	return mr, NewCacheService(repository.NewCacheRepository(client, "isagip:", nil), metrics, time.Minute, nil, enabled), metrics
}

func TestRememberReadsThrough(t *testing.T) {
	mr, cache, metrics := newRedisCache(t, true)
	ctx := context.Background()
	loader := &countedLoad{value: []string{"AMB-1", "AMB-2"}}
	key := CacheKey("fleet", "board")

	first, err := Remember(ctx, cache, key, 0, loader.load)
	require.NoError(t, err)
	second, err := Remember(ctx, cache, key, 0, loader.load)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, loader.calls)
	assert.True(t, mr.Exists("isagip:fleet:board"))
	assert.Equal(t, time.Minute, mr.TTL("isagip:fleet:board"))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheHits))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheMisses))

	cache.Invalidate(ctx, key)
	_, err = Remember(ctx, cache, key, 0, loader.load)
	require.NoError(t, err)
	assert.Equal(t, 2, loader.calls)
}

func TestRememberDoesNotCacheErrors(t *testing.T) {
	mr, cache, _ := newRedisCache(t, true)
	loader := &countedLoad{err: errors.New("store offline")}

	_, err := Remember(context.Background(), cache, "summary", 0, loader.load)
	assert.EqualError(t, err, "store offline")
	assert.False(t, mr.Exists("isagip:summary"))
}

func TestRememberDisabledAlwaysLoads(t *testing.T) {
	mr, cache, _ := newRedisCache(t, false)
	loader := &countedLoad{value: []string{"x"}}

	for i := 0; i < 3; i++ {
		_, err := Remember(context.Background(), cache, "summary", 0, loader.load)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, loader.calls)
	assert.False(t, mr.Exists("isagip:summary"))

	var none *CacheService
	_, err := Remember(context.Background(), none, "summary", 0, loader.load)
	require.NoError(t, err)
	none.Invalidate(context.Background(), "summary")
}

func TestRememberRecoversFromCorruptEntry(t *testing.T) {
	mr, cache, _ := newRedisCache(t, true)
	require.NoError(t, mr.Set("isagip:summary", "{not json"))
	loader := &countedLoad{value: []string{"fresh"}}

	got, err := Remember(context.Background(), cache, "summary", 0, loader.load)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, got)
	assert.Equal(t, 1, loader.calls)
}

package availability

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestSlotCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewSlotCache(redisClient, time.Minute)

	doctorID := uuid.New()
	day := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, doctorID, day)
	require.NoError(t, err)
	require.False(t, ok, "expected empty cache")

	slots := []string{"09:00", "09:30"}
	require.NoError(t, cache.Set(ctx, doctorID, day, slots))

	got, ok, err := cache.Get(ctx, doctorID, day)
	require.NoError(t, err)
	require.True(t, ok, "expected cache hit")
	require.Equal(t, slots, got)

	require.NoError(t, cache.InvalidateDay(ctx, doctorID, day))
	_, ok, err = cache.Get(ctx, doctorID, day)
	require.NoError(t, err)
	require.False(t, ok, "expected cache miss after invalidation")
}

func TestSlotCacheKeysArePerDoctorAndDay(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewSlotCache(redisClient, time.Minute)

	doctorID := uuid.New()
	monday := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	tuesday := monday.AddDate(0, 0, 1)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, doctorID, monday, []string{"09:00"}))
	require.NoError(t, cache.Set(ctx, doctorID, tuesday, []string{"14:00"}))

	require.NoError(t, cache.InvalidateDay(ctx, doctorID, monday))

	_, ok, err := cache.Get(ctx, doctorID, monday)
	require.NoError(t, err)
	require.False(t, ok, "monday should be invalidated")

	got, ok, err := cache.Get(ctx, doctorID, tuesday)
	require.NoError(t, err)
	require.True(t, ok, "tuesday should survive")
	require.Equal(t, []string{"14:00"}, got)
}

func TestSlotCacheEmptyListIsCacheable(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewSlotCache(redisClient, time.Minute)

	doctorID := uuid.New()
	day := time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, doctorID, day, []string{}))
	got, ok, err := cache.Get(ctx, doctorID, day)
	require.NoError(t, err)
	require.True(t, ok, "an empty slot day is still a valid cache entry")
	require.Empty(t, got)
}

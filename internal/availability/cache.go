package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SlotCache is a best-effort accelerator for computed slot lists. It is
// never a source of truth: the booking-time reservation stays authoritative
// regardless of cache freshness.
type SlotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSlotCache wraps a redis client with a short TTL.
func NewSlotCache(client *redis.Client, ttl time.Duration) *SlotCache {
	if client == nil {
		panic("availability: redis client required")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SlotCache{client: client, ttl: ttl}
}

func slotKey(doctorID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("slots:%s:%s", doctorID, day.Format("2006-01-02"))
}

// Get returns the cached slot list and whether the key was present.
func (c *SlotCache) Get(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]string, bool, error) {
	raw, err := c.client.Get(ctx, slotKey(doctorID, day)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("availability: cache get: %w", err)
	}
	var slots []string
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, false, fmt.Errorf("availability: cache decode: %w", err)
	}
	return slots, true, nil
}

// Set stores the computed slot list under the per-day key.
func (c *SlotCache) Set(ctx context.Context, doctorID uuid.UUID, day time.Time, slots []string) error {
	raw, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("availability: cache encode: %w", err)
	}
	if err := c.client.Set(ctx, slotKey(doctorID, day), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("availability: cache set: %w", err)
	}
	return nil
}

// InvalidateDay drops the cached slots for a doctor/date. Called whenever a
// booking or cancellation touches that date.
func (c *SlotCache) InvalidateDay(ctx context.Context, doctorID uuid.UUID, day time.Time) error {
	if err := c.client.Del(ctx, slotKey(doctorID, day)).Err(); err != nil {
		return fmt.Errorf("availability: cache invalidate: %w", err)
	}
	return nil
}

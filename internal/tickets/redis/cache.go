package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-sorteos/internal/models"
)

const keyPrefix = "raffle_availability:"

// AvailabilityCache keeps short lived availability counters per raffle. Values
// may lag in-flight reservations by up to the TTL.
type AvailabilityCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewAvailabilityCache(client *redis.Client, ttl time.Duration) *AvailabilityCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &AvailabilityCache{Client: client, TTL: ttl}
}

func key(raffleID string) string {
	return keyPrefix + raffleID
}

// Get returns the cached counters. ok is false on a miss.
func (c *AvailabilityCache) Get(ctx context.Context, raffleID string) (models.Availability, bool, error) {
	raw, err := c.Client.Get(ctx, key(raffleID)).Bytes()
	if err == redis.Nil {
		return models.Availability{}, false, nil
	}
	if err != nil {
		return models.Availability{}, false, err
	}

	var a models.Availability
	if err := json.Unmarshal(raw, &a); err != nil {
		// A corrupt entry is a miss; the next Set overwrites it.
		return models.Availability{}, false, nil
	}
	return a, true, nil
}

func (c *AvailabilityCache) Set(ctx context.Context, a models.Availability) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal availability: %w", err)
	}
	return c.Client.Set(ctx, key(a.RaffleID), raw, c.TTL).Err()
}

func (c *AvailabilityCache) Invalidate(ctx context.Context, raffleID string) error {
	return c.Client.Del(ctx, key(raffleID)).Err()
}

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/guestwifi/guestgate/cache"
)

// StatusStore implements cache.StatusStore backed by Redis, for deployments
// where several portal instances share one controller.
type StatusStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewStatusStore creates a Redis-backed status store.
func NewStatusStore(client *redis.Client, prefix string, ttl time.Duration) *StatusStore {
	return &StatusStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (r *StatusStore) redisKey(mac string) string {
	return fmt.Sprintf("%s:status:%s", r.prefix, mac)
}

// Set stores a status entry with the store's TTL.
func (r *StatusStore) Set(ctx context.Context, entry cache.StatusEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal status entry: %w", err)
	}
	if err := r.client.Set(ctx, r.redisKey(entry.MAC), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set status in Redis: %w", err)
	}
	return nil
}

// Get retrieves a cached status entry. A Redis failure is treated as a
// cache miss.
func (r *StatusStore) Get(ctx context.Context, mac string) (*cache.StatusEntry, bool) {
	payload, err := r.client.Get(ctx, r.redisKey(mac)).Bytes()
	if err != nil {
		return nil, false
	}

	var entry cache.StatusEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, false
	}
	return &entry, true
}

// Delete removes a device's cached status.
func (r *StatusStore) Delete(ctx context.Context, mac string) error {
	if err := r.client.Del(ctx, r.redisKey(mac)).Err(); err != nil {
		return fmt.Errorf("failed to delete status from Redis: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (r *StatusStore) Close() error {
	return r.client.Close()
}

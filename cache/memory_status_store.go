package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStatusStore implements StatusStore using ttlcache.
type MemoryStatusStore struct {
	cache *ttlcache.Cache[string, StatusEntry]
	ttl   time.Duration
}

// NewMemoryStatusStore creates an in-memory status store with automatic
// cleanup. Every entry lives for ttl after it was written.
func NewMemoryStatusStore(ttl time.Duration) *MemoryStatusStore {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, StatusEntry](ttl),
		ttlcache.WithDisableTouchOnHit[string, StatusEntry](),
	)

	go cache.Start()

	return &MemoryStatusStore{
		cache: cache,
		ttl:   ttl,
	}
}

// Set implements StatusStore.Set.
func (s *MemoryStatusStore) Set(_ context.Context, entry StatusEntry) error {
	s.cache.Set(entry.MAC, entry, s.ttl)
	return nil
}

// Get implements StatusStore.Get.
func (s *MemoryStatusStore) Get(_ context.Context, mac string) (*StatusEntry, bool) {
	item := s.cache.Get(mac)
	if item == nil {
		return nil, false
	}
	entry := item.Value()
	return &entry, true
}

// Delete removes a device's cached status.
func (s *MemoryStatusStore) Delete(_ context.Context, mac string) error {
	s.cache.Delete(mac)
	return nil
}

// Close stops the cleanup goroutine.
func (s *MemoryStatusStore) Close() error {
	s.cache.Stop()
	return nil
}

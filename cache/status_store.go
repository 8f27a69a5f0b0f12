package cache

import (
	"context"
	"time"
)

// StatusEntry is a cached controller-side authorization status for a device.
type StatusEntry struct {
	MAC              string    `json:"mac"`
	Authorized       bool      `json:"authorized"`
	RemainingSeconds int64     `json:"remaining_seconds"`
	CheckedAt        time.Time `json:"checked_at"`
}

// StatusStore caches controller status lookups so that portal status polls
// do not hammer the controller. Entries are short-lived; a miss simply
// means the controller must be asked again.
type StatusStore interface {
	Set(ctx context.Context, entry StatusEntry) error
	Get(ctx context.Context, mac string) (*StatusEntry, bool)
	Delete(ctx context.Context, mac string) error
	Close() error
}

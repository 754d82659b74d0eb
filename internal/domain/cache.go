package domain

import (
	"context"
	"time"
)

// MarketCache caches catalog metadata between scan cycles so a scan does not
// have to refetch both catalogs when nothing changed.
type MarketCache interface {
	SetCatalog(ctx context.Context, venue Venue, markets []Market, ttl time.Duration) error
	GetCatalog(ctx context.Context, venue Venue) ([]Market, error)
	Invalidate(ctx context.Context, venue Venue) error
}

// SignalBus provides pub/sub for detection and execution events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// LockManager provides distributed locking, used to serialize executions on
// the same matched pair across processes.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

package executor

import (
	"sync"
	"time"
)

// Dedup suppresses repeat executions of the same matched pair within a
// cooldown window. Safe for concurrent use.
type Dedup struct {
	mu   sync.Mutex
	seen map[string]time.Time // pair key -> last execution start
	ttl  time.Duration
}

// NewDedup creates a Dedup with the given cooldown window.
func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

// IsDuplicate reports whether the key fired within the window. A miss (or an
// expired entry) records the key and returns false.
func (d *Dedup) IsDuplicate(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if last, ok := d.seen[key]; ok && now.Sub(last) < d.ttl {
		return true
	}
	d.seen[key] = now

	// Opportunistic sweep keeps the map bounded without a background task.
	if len(d.seen) > 1024 {
		for k, ts := range d.seen {
			if now.Sub(ts) >= d.ttl {
				delete(d.seen, k)
			}
		}
	}
	return false
}

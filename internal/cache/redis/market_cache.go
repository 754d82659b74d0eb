package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// MarketCache implements domain.MarketCache as one JSON blob per venue
// catalog. A whole catalog is written and read at once; per-market lookups
// never happen between scan cycles.
//
// Key schema: catalog:{venue}
type MarketCache struct {
	rdb *redis.Client
}

// NewMarketCache creates a MarketCache backed by the given Client.
func NewMarketCache(c *Client) *MarketCache {
	return &MarketCache{rdb: c.Underlying()}
}

var _ domain.MarketCache = (*MarketCache)(nil)

func catalogKey(venue domain.Venue) string {
	return "catalog:" + string(venue)
}

// SetCatalog stores a venue's catalog with the given TTL.
func (mc *MarketCache) SetCatalog(ctx context.Context, venue domain.Venue, markets []domain.Market, ttl time.Duration) error {
	data, err := json.Marshal(markets)
	if err != nil {
		return fmt.Errorf("redis: marshal catalog %s: %w", venue, err)
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if err := mc.rdb.Set(ctx, catalogKey(venue), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set catalog %s: %w", venue, err)
	}
	return nil
}

// GetCatalog returns the cached catalog, or ErrNotFound on a miss.
func (mc *MarketCache) GetCatalog(ctx context.Context, venue domain.Venue) ([]domain.Market, error) {
	data, err := mc.rdb.Get(ctx, catalogKey(venue)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("redis: catalog %s: %w", venue, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("redis: get catalog %s: %w", venue, err)
	}

	var markets []domain.Market
	if err := json.Unmarshal(data, &markets); err != nil {
		return nil, fmt.Errorf("redis: unmarshal catalog %s: %w", venue, err)
	}
	return markets, nil
}

// Invalidate drops a venue's cached catalog.
func (mc *MarketCache) Invalidate(ctx context.Context, venue domain.Venue) error {
	if err := mc.rdb.Del(ctx, catalogKey(venue)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate catalog %s: %w", venue, err)
	}
	return nil
}

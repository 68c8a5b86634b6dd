package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"deriv-core/pkg/cache"
	"deriv-core/pkg/deriv"
)

// SpecFetcher loads the tradable contract entries for a symbol.
type SpecFetcher interface {
	ContractsFor(ctx context.Context, symbol string) ([]deriv.ContractSpec, error)
}

// SpecCache keeps contract specs for at most the TTL. Concurrent misses for
// the same symbol share one broker round trip. A TTL of zero fetches every
// time.
type SpecCache struct {
	fetch SpecFetcher
	cache *cache.Sharded[[]deriv.ContractSpec]
	group singleflight.Group
	log   zerolog.Logger
}

func NewSpecCache(fetch SpecFetcher, ttl time.Duration, log zerolog.Logger) *SpecCache {
	return &SpecCache{
		fetch: fetch,
		cache: cache.New[[]deriv.ContractSpec](ttl),
		log:   log.With().Str("component", "contract_specs").Logger(),
	}
}

// WithClock swaps the cache time source.
func (c *SpecCache) WithClock(now func() time.Time) *SpecCache {
	c.cache.WithClock(now)
	return c
}

// SetTTL changes how long fetched specs are reused.
func (c *SpecCache) SetTTL(ttl time.Duration) { c.cache.SetTTL(ttl) }

// Get returns fresh specs for symbol.
func (c *SpecCache) Get(ctx context.Context, symbol string) ([]deriv.ContractSpec, error) {
	if c.cache.TTL() > 0 {
		if specs, age, ok := c.cache.GetWithAge(symbol); ok {
			c.log.Debug().Str("symbol", symbol).Dur("age", age).Msg("contract specs reused")
			return specs, nil
		}
	}

	v, err, _ := c.group.Do(symbol, func() (any, error) {
		specs, err := c.fetch.ContractsFor(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if c.cache.TTL() > 0 {
			c.cache.Set(symbol, specs)
		}
		return specs, nil
	})
	if err != nil {
		return nil, fmt.Errorf("contracts_for %s: %w", symbol, err)
	}
	return v.([]deriv.ContractSpec), nil
}

// Invalidate drops the cached specs for symbol.
func (c *SpecCache) Invalidate(symbol string) { c.cache.Delete(symbol) }

package poller

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rickgao/odds-history/internal/model"
)

// DefaultCacheTTL bounds how long a league's events are reused within a run.
const DefaultCacheTTL = 50 * time.Minute

// FetchFunc fetches a league's events from the provider.
type FetchFunc func(ctx context.Context) ([]model.ProviderEvent, error)

type cacheEntry struct {
	events    []model.ProviderEvent
	fetchedAt time.Time
}

// LeagueCache is a read-through cache of league events scoped to one run.
// Concurrent lookups for the same league share a single in-flight fetch.
// Failed fetches are not cached.
type LeagueCache struct {
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewLeagueCache creates an empty cache. A non-positive ttl selects DefaultCacheTTL.
func NewLeagueCache(ttl time.Duration) *LeagueCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &LeagueCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the league's events, calling fetch on a miss or expired entry.
// hit reports whether the value came from the cache or a shared fetch.
func (c *LeagueCache) Get(ctx context.Context, league string, fetch FetchFunc) (events []model.ProviderEvent, hit bool, err error) {
	if events, ok := c.lookup(league); ok {
		return events, true, nil
	}

	v, err, shared := c.group.Do(league, func() (any, error) {
		// Another caller may have filled the entry while we waited.
		if events, ok := c.lookup(league); ok {
			return events, nil
		}
		events, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[league] = cacheEntry{events: events, fetchedAt: c.now()}
		c.mu.Unlock()
		return events, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]model.ProviderEvent), shared, nil
}

// FetchedAt returns when the league's cached value was fetched.
func (c *LeagueCache) FetchedAt(league string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[league]
	return e.fetchedAt, ok
}

func (c *LeagueCache) lookup(league string) ([]model.ProviderEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[league]
	if !ok || c.now().Sub(e.fetchedAt) >= c.ttl {
		return nil, false
	}
	return e.events, true
}

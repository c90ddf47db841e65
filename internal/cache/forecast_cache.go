package cache

import (
	"strings"
	"time"

	"fincast/internal/core"
)

// DefaultForecastTTL is how long a computed snapshot stays fresh.
const DefaultForecastTTL = 60 * time.Minute

const keySep = "\x00"

// ForecastCache memoizes forecast/simulation snapshots per (user, period).
// Concurrent misses for the same key may each compute; the last Put wins.
type ForecastCache struct {
	entries *LRUCache[core.Snapshot]
	now     func() time.Time
}

// NewForecastCache creates a cache holding at most maxEntries snapshots.
// A non-positive ttl uses DefaultForecastTTL.
func NewForecastCache(maxEntries int, ttl time.Duration, opts ...Option) *ForecastCache {
	if ttl <= 0 {
		ttl = DefaultForecastTTL
	}
	o := lruOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &ForecastCache{
		entries: NewLRUCache[core.Snapshot](maxEntries, ttl, opts...),
		now:     o.now,
	}
}

func forecastKey(userID, period string) string {
	return userID + keySep + period
}

// Get returns the live snapshot for userID and period.
func (c *ForecastCache) Get(userID, period string) (core.Snapshot, bool) {
	return c.entries.Get(forecastKey(userID, period))
}

// Put stores s, stamping ComputedAt with the cache clock when unset.
func (c *ForecastCache) Put(s core.Snapshot) core.Snapshot {
	if s.ComputedAt.IsZero() {
		s.ComputedAt = c.now()
	}
	c.entries.Set(forecastKey(s.UserID, s.Period), s)
	return s
}

// GetOrCompute returns the cached snapshot or computes and stores a new one.
// The boolean reports a cache hit. Errors from compute are not cached.
func (c *ForecastCache) GetOrCompute(userID, period string, compute func() (core.Snapshot, error)) (core.Snapshot, bool, error) {
	if s, ok := c.Get(userID, period); ok {
		return s, true, nil
	}
	s, err := compute()
	if err != nil {
		return core.Snapshot{}, false, err
	}
	s.UserID, s.Period = userID, period
	return c.Put(s), false, nil
}

// Invalidate drops the snapshot of one period.
func (c *ForecastCache) Invalidate(userID, period string) {
	c.entries.Delete(forecastKey(userID, period))
}

// InvalidateUser drops every period cached for userID.
func (c *ForecastCache) InvalidateUser(userID string) int {
	prefix := userID + keySep
	return c.entries.DeleteFunc(func(key string) bool {
		return strings.HasPrefix(key, prefix)
	})
}

// CleanExpired implements Cleaner.
func (c *ForecastCache) CleanExpired() int {
	return c.entries.CleanExpired()
}

// Size is the number of stored snapshots, live or not yet cleaned.
func (c *ForecastCache) Size() int {
	return c.entries.Size()
}

// Now is the cache clock.
func (c *ForecastCache) Now() time.Time {
	return c.now()
}

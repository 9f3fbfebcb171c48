package checks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mrimoveis/leadcache/internal/cache"
	"github.com/mrimoveis/leadcache/internal/monitoring"
)

const defaultCacheTimeout = 5 * time.Second

// CacheStore returns a readiness probe that reads the leads cache entry. An empty cache is
// healthy; a corrupt entry is degraded because loads still work and the next refresh
// overwrites it.
func CacheStore(store cache.Store, ttl, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck("cache", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if store == nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDown,
				Details:  "cache store not configured",
				Duration: time.Since(start),
			}
		}

		probeCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout, defaultCacheTimeout))
		defer cancel()

		entry, err := store.Read(probeCtx)
		switch {
		case errors.Is(err, cache.ErrCacheMiss):
			return monitoring.ProbeResult{
				Status:   monitoring.StatusUp,
				Details:  "cache empty",
				Duration: time.Since(start),
			}
		case errors.Is(err, cache.ErrCorrupt):
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDegraded,
				Details:  err.Error(),
				Duration: time.Since(start),
			}
		case err != nil:
			return monitoring.ResultFromError("cache", err, time.Since(start))
		}

		now := time.Now()
		state := "stale"
		if cache.IsFresh(entry, ttl, now) {
			state = "fresh"
		}
		return monitoring.ProbeResult{
			Status:   monitoring.StatusUp,
			Details:  fmt.Sprintf("%d leads, %s, age %s", len(entry.Leads), state, entry.Age(now).Round(time.Second)),
			Duration: time.Since(start),
		}
	})
}

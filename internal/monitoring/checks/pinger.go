package checks

import (
	"context"
	"time"

	"github.com/mrimoveis/leadcache/internal/monitoring"
)

const defaultPingTimeout = 2 * time.Second

// Pinger represents the minimal interface required to probe a remote cache backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Backend returns a readiness probe for a remote cache backend (redis, memcache). When
// pinger is nil the backend is not in use and the probe reports StatusUp.
func Backend(name string, pinger Pinger, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck(name, func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if pinger == nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusUp,
				Details:  name + " disabled",
				Duration: time.Since(start),
			}
		}

		probeCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout, defaultPingTimeout))
		defer cancel()

		if err := pinger.Ping(probeCtx); err != nil {
			return monitoring.ResultFromError(name, err, time.Since(start))
		}

		return monitoring.ProbeResult{
			Status:   monitoring.StatusUp,
			Duration: time.Since(start),
		}
	})
}

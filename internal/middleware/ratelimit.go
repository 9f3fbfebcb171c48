package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	appErrors "github.com/mrimoveis/leadcache/pkg/errors"
	"github.com/mrimoveis/leadcache/pkg/response"
)

// RateLimit limits requests per (clientIP, route) within a fixed window. Counters live in
// process memory, which suits the single-instance deployment of the leads API.
func RateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	return newRateLimiter(maxRequests, window, time.Now).handle
}

type rateCounter struct {
	count     int
	windowEnd time.Time
}

type rateLimiter struct {
	max       int
	window    time.Duration
	clock     func() time.Time
	mu        sync.Mutex
	data      map[string]*rateCounter
	nextSweep time.Time
}

func newRateLimiter(maxRequests int, window time.Duration, clock func() time.Time) *rateLimiter {
	return &rateLimiter{
		max:    maxRequests,
		window: window,
		clock:  clock,
		data:   make(map[string]*rateCounter),
	}
}

func (l *rateLimiter) handle(c *gin.Context) {
	if l.max <= 0 || l.window <= 0 {
		c.Next()
		return
	}

	count, resetIn := l.increment(c.ClientIP() + "|" + c.FullPath())
	remaining := l.max - count
	if remaining < 0 {
		remaining = 0
	}

	c.Header("X-RateLimit-Limit", strconv.Itoa(l.max))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
	c.Header("X-RateLimit-Reset", strconv.Itoa(int(resetIn.Seconds())))

	if count > l.max {
		response.Error(c, appErrors.ErrTooManyRequests)
		c.Abort()
		return
	}
	c.Next()
}

func (l *rateLimiter) increment(key string) (int, time.Duration) {
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	// expired counters are swept inline, at most once per window
	if now.After(l.nextSweep) {
		for k, v := range l.data {
			if now.After(v.windowEnd) {
				delete(l.data, k)
			}
		}
		l.nextSweep = now.Add(l.window)
	}

	ct, ok := l.data[key]
	if !ok || now.After(ct.windowEnd) {
		ct = &rateCounter{windowEnd: now.Add(l.window)}
		l.data[key] = ct
	}
	ct.count++
	return ct.count, ct.windowEnd.Sub(now)
}

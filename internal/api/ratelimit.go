package api

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type limiterEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

// clientLimiter keeps one token bucket per client address.
type clientLimiter struct {
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
	clients map[string]*limiterEntry
}

// newClientLimiter returns a limiter that allows everything when rps <= 0.
func newClientLimiter(rps float64, burst int) *clientLimiter {
	if burst < 1 {
		burst = 1
	}
	l := rate.Limit(rps)
	if rps <= 0 {
		l = rate.Inf
	}
	return &clientLimiter{rps: l, burst: burst, clients: map[string]*limiterEntry{}}
}

func (c *clientLimiter) allow(key string) bool {
	c.mu.Lock()
	e, ok := c.clients[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(c.rps, c.burst)}
		c.clients[key] = e
	}
	e.seen = time.Now()
	c.mu.Unlock()
	return e.lim.Allow()
}

func (c *clientLimiter) prune(idle time.Duration) {
	cutoff := time.Now().Add(-idle)
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.clients {
		if e.seen.Before(cutoff) {
			delete(c.clients, k)
		}
	}
}

package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	// limiterIdleTTL is how long an IP may stay silent before its limiter is
	// dropped from the pool.
	limiterIdleTTL = 10 * time.Minute
	// limiterSweepEvery bounds how often the pool scans for idle entries.
	limiterSweepEvery = time.Minute
)

// limiterPool hands out one token-bucket limiter per client IP and evicts
// entries that have been idle for limiterIdleTTL, so the pool stays bounded
// by the set of recently active clients.
type limiterPool struct {
	mu        sync.Mutex
	perSecond float64
	burst     int
	entries   map[string]*limiterEntry
	lastSweep time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLimiterPool(perSecond float64, burst int) *limiterPool {
	return &limiterPool{
		perSecond: perSecond,
		burst:     burst,
		entries:   make(map[string]*limiterEntry),
	}
}

func (p *limiterPool) get(ip string, now time.Time) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if now.Sub(p.lastSweep) >= limiterSweepEvery {
		p.sweepLocked(now)
	}

	e, ok := p.entries[ip]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(p.perSecond), p.burst)}
		p.entries[ip] = e
	}
	e.lastSeen = now
	return e.limiter
}

func (p *limiterPool) sweepLocked(now time.Time) {
	for ip, e := range p.entries {
		if now.Sub(e.lastSeen) >= limiterIdleTTL {
			delete(p.entries, ip)
		}
	}
	p.lastSweep = now
}

func (p *limiterPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// RateLimit throttles a route per client IP with a token bucket.
func RateLimit(perSecond float64, burst int) gin.HandlerFunc {
	pool := newLimiterPool(perSecond, burst)

	return func(c *gin.Context) {
		if !pool.get(c.ClientIP(), time.Now()).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}

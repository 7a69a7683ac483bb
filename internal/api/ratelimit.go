package api

import (
	"sync"

	"golang.org/x/time/rate"
)

// perKeyLimiter rate-limits by an arbitrary string key (here, remote
// address), on top of golang.org/x/time/rate's single-key Limiter
// (SUPPLEMENTED FEATURES: coarse edge-level login throttling ahead of
// internal/identity's own per-email LoginLimiter).
type perKeyLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newPerKeyLimiter(rps float64, burst int) *perKeyLimiter {
	return &perKeyLimiter{limiters: make(map[string]*rate.Limiter), rps: rate.Limit(rps), burst: burst}
}

func (p *perKeyLimiter) Allow(key string) bool {
	p.mu.Lock()
	l, ok := p.limiters[key]
	if !ok {
		l = rate.NewLimiter(p.rps, p.burst)
		p.limiters[key] = l
	}
	p.mu.Unlock()
	return l.Allow()
}

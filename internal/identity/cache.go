package identity

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v4"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// cacheTTL bounds how long a verified token's Principal is trusted without
// re-parsing the JWT — short enough that a revoked signing key set takes
// effect quickly, long enough to matter under load (spec.md §4.1). An
// entry never outlives the token's own exp claim.
const cacheTTL = 5 * time.Minute

type cacheEntry struct {
	principal Principal
	err       error
	expiresAt time.Time
}

// CachingVerifier wraps a Verifier with a bounded LRU cache keyed on the
// raw token string, collapsing concurrent verifications of the same token
// into a single JWT parse via singleflight.
type CachingVerifier struct {
	verifier *Verifier
	cache    *lru.Cache
	group    singleflight.Group
}

// NewCachingVerifier builds a CachingVerifier holding up to size entries.
func NewCachingVerifier(v *Verifier, size int) (*CachingVerifier, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &CachingVerifier{verifier: v, cache: c}, nil
}

// Verify returns the cached Principal for raw if present and unexpired,
// otherwise parses the token, caches the outcome (including failures, to
// absorb repeated-bad-token retries), and returns it.
func (c *CachingVerifier) Verify(raw string) (Principal, error) {
	if v, ok := c.cache.Get(raw); ok {
		entry := v.(cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			return entry.principal, entry.err
		}
		c.cache.Remove(raw)
	}

	v, err, _ := c.group.Do(raw, func() (interface{}, error) {
		p, verr := c.verifier.Verify(raw)
		expiresAt := time.Now().Add(cacheTTL)
		var tc claims
		if _, _, perr := new(jwt.Parser).ParseUnverified(raw, &tc); perr == nil && tc.ExpiresAt != nil && tc.ExpiresAt.Time.Before(expiresAt) {
			expiresAt = tc.ExpiresAt.Time
		}
		c.cache.Add(raw, cacheEntry{principal: p, err: verr, expiresAt: expiresAt})
		return p, verr
	})
	if err != nil {
		return Principal{}, err
	}
	return v.(Principal), nil
}

// Invalidate drops a cached verification outcome, used when a token is
// explicitly revoked (logout, password change) ahead of its natural expiry.
func (c *CachingVerifier) Invalidate(raw string) {
	c.cache.Remove(raw)
}

// LoginLimiter rate-limits login attempts per identity (spec.md
// SUPPLEMENTED FEATURES: brute-force mitigation on /auth/login), keyed by
// a caller-supplied string (typically the normalized email or client IP).
type LoginLimiter struct {
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewLoginLimiter allows burst attempts immediately, refilling at rps
// thereafter, per key.
func NewLoginLimiter(rps float64, burst int) *LoginLimiter {
	return &LoginLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Allow reports whether key (e.g. an email address) may attempt another
// login right now.
func (l *LoginLimiter) Allow(key string) bool {
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[key] = lim
	}
	return lim.Allow()
}

// Wait blocks until key's limiter would allow another attempt or ctx is
// done, for callers that prefer backpressure over an immediate rejection.
func (l *LoginLimiter) Wait(ctx context.Context, key string) error {
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[key] = lim
	}
	return lim.Wait(ctx)
}

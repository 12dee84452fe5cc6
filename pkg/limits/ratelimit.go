// Package limits throttles clients of the wizard endpoints.
package limits

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/gabrielmiguelok/formwizard/pkg/logging"
)

// KeyFunc derives the limiter key for a request.
type KeyFunc func(*http.Request) string

// TokenBucket keeps one rate.Limiter per key.
type TokenBucket struct {
	limit   rate.Limit
	burst   int
	now     func() time.Time
	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// BucketOption configures a TokenBucket.
type BucketOption func(*TokenBucket)

// WithBucketClock sets the time source.
func WithBucketClock(now func() time.Time) BucketOption {
	return func(tb *TokenBucket) { tb.now = now }
}

// NewTokenBucket allows perSecond operations per second per key with bursts
// of up to burst.
func NewTokenBucket(perSecond float64, burst int, opts ...BucketOption) *TokenBucket {
	if burst < 1 {
		burst = 1
	}
	tb := &TokenBucket{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	for _, opt := range opts {
		opt(tb)
	}
	return tb
}

// Allow reports whether one operation is allowed for key.
func (tb *TokenBucket) Allow(key string) bool {
	return tb.AllowN(key, 1)
}

// AllowN reports whether n operations are allowed for key, consuming the
// tokens when they are.
func (tb *TokenBucket) AllowN(key string, n int) bool {
	now := tb.now()

	tb.mu.Lock()
	b, ok := tb.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(tb.limit, tb.burst)}
		tb.buckets[key] = b
	}
	b.lastSeen = now
	tb.mu.Unlock()

	return b.limiter.AllowN(now, n)
}

// Sweep forgets buckets idle for longer than idle and returns how many
// were removed.
func (tb *TokenBucket) Sweep(idle time.Duration) int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	cutoff := tb.now().Add(-idle)
	removed := 0
	for key, b := range tb.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(tb.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (tb *TokenBucket) Len() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return len(tb.buckets)
}

// RateLimitMiddleware answers 429 once key has used up its tokens.
func RateLimitMiddleware(tb *TokenBucket, key KeyFunc, logger logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if !tb.Allow(k) {
				logger.Warn("rate limit exceeded",
					logging.String("client", k),
					logging.String("path", r.URL.Path),
				)
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP keys requests by the peer address.
func ClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// ForwardedClientIP prefers X-Forwarded-For and X-Real-IP. Use it only
// behind a proxy that sets them.
func ForwardedClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return ClientIP(r)
}

package limits

import (
	"net/http"
	"sync"
	"sync/atomic"
)

// ConnectionLimiter caps concurrent requests per key. Live connections hold
// their slot for as long as the socket is open.
type ConnectionLimiter struct {
	maxPerKey int
	mu        sync.Mutex
	active    map[string]int
	blocked   atomic.Int64
}

// NewConnectionLimiter creates a limiter. maxPerKey below 1 defaults to 100.
func NewConnectionLimiter(maxPerKey int) *ConnectionLimiter {
	if maxPerKey <= 0 {
		maxPerKey = 100
	}
	return &ConnectionLimiter{maxPerKey: maxPerKey, active: make(map[string]int)}
}

// Acquire takes a slot for key, returning false when none is free.
func (cl *ConnectionLimiter) Acquire(key string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.active[key] >= cl.maxPerKey {
		cl.blocked.Add(1)
		return false
	}
	cl.active[key]++
	return true
}

// Release returns a slot taken by Acquire.
func (cl *ConnectionLimiter) Release(key string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if n := cl.active[key]; n <= 1 {
		delete(cl.active, key)
	} else {
		cl.active[key] = n - 1
	}
}

// Count returns the slots held by key.
func (cl *ConnectionLimiter) Count(key string) int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.active[key]
}

// Blocked returns how many acquisitions were refused.
func (cl *ConnectionLimiter) Blocked() int64 {
	return cl.blocked.Load()
}

// Middleware answers 429 when the client holds too many connections.
func (cl *ConnectionLimiter) Middleware(key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if !cl.Acquire(k) {
				http.Error(w, "Too Many Connections", http.StatusTooManyRequests)
				return
			}
			defer cl.Release(k)
			next.ServeHTTP(w, r)
		})
	}
}

package limits

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gabrielmiguelok/formwizard/pkg/logging"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTokenBucket_BurstThenRefill(t *testing.T) {
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	tb := NewTokenBucket(2, 3, WithBucketClock(c.now))

	for i := 0; i < 3; i++ {
		assert.True(t, tb.Allow("a"), "request %d", i)
	}
	assert.False(t, tb.Allow("a"))
	assert.True(t, tb.Allow("b"), "keys are independent")

	c.advance(500 * time.Millisecond)
	assert.True(t, tb.Allow("a"))
	assert.False(t, tb.Allow("a"))

	c.advance(time.Hour)
	assert.True(t, tb.AllowN("a", 3), "refill is capped at burst")
	assert.False(t, tb.Allow("a"))
}

func TestTokenBucket_Sweep(t *testing.T) {
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	tb := NewTokenBucket(1, 1, WithBucketClock(c.now))
	tb.Allow("old")
	c.advance(2 * time.Minute)
	tb.Allow("new")

	assert.Equal(t, 1, tb.Sweep(time.Minute))
	assert.Equal(t, 1, tb.Len())
}

func TestRateLimitMiddleware(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	tb := NewTokenBucket(0, 1)
	h := RateLimitMiddleware(tb, ClientIP, logging.NewZapLogger(zap.New(core)))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }),
	)

	req := httptest.NewRequest(http.MethodPost, "/event", nil)
	req.RemoteAddr = "10.0.0.1:5000"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	require.Equal(t, 1, logs.FilterMessage("rate limit exceeded").Len())
	assert.Equal(t, "10.0.0.1", logs.All()[0].ContextMap()["client"])
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		direct  string
		proxied string
	}{
		{"peer only", "10.0.0.1:80", nil, "10.0.0.1", "10.0.0.1"},
		{"no port", "10.0.0.1", nil, "10.0.0.1", "10.0.0.1"},
		{"forwarded", "10.0.0.1:80", map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.1"}, "10.0.0.1", "1.2.3.4"},
		{"real ip", "10.0.0.1:80", map[string]string{"X-Real-IP": " 5.6.7.8 "}, "10.0.0.1", "5.6.7.8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.direct, ClientIP(req))
			assert.Equal(t, tt.proxied, ForwardedClientIP(req))
		})
	}
}

func TestConnectionLimiter(t *testing.T) {
	cl := NewConnectionLimiter(2)
	assert.True(t, cl.Acquire("a"))
	assert.True(t, cl.Acquire("a"))
	assert.False(t, cl.Acquire("a"))
	assert.True(t, cl.Acquire("b"))
	assert.Equal(t, int64(1), cl.Blocked())

	cl.Release("a")
	assert.Equal(t, 1, cl.Count("a"))
	cl.Release("a")
	cl.Release("a")
	assert.Equal(t, 0, cl.Count("a"))
}

func TestConnectionLimiter_Middleware(t *testing.T) {
	cl := NewConnectionLimiter(1)
	entered := make(chan struct{})
	release := make(chan struct{})
	h := cl.Middleware(ClientIP)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
	}))

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	req.RemoteAddr = "10.0.0.1:80"
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(httptest.NewRecorder(), req)
	}()
	<-entered

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	close(release)
	<-done
	assert.Equal(t, 0, cl.Count("10.0.0.1"))
}

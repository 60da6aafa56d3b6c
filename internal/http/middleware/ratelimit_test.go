package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFrozenLimiter(perSecond float64, burst int, at *time.Time) *RateLimiter {
	rl := NewRateLimiter(perSecond, burst)
	rl.now = func() time.Time { return *at }
	return rl
}

func TestRateLimiterBurstAndRefill(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	rl := newFrozenLimiter(1, 2, &now)

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"), "burst exhausted")
	assert.True(t, rl.Allow("10.0.0.2"), "other clients have their own bucket")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("10.0.0.1"), "one token refilled")
	assert.False(t, rl.Allow("10.0.0.1"))
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	rl := newFrozenLimiter(1, 1, &now)
	rl.Allow("a")
	now = now.Add(5 * time.Minute)
	rl.Allow("b")

	now = now.Add(6 * time.Minute)
	assert.Equal(t, 1, rl.Evict())
	rl.mu.Lock()
	_, kept := rl.clients["b"]
	rl.mu.Unlock()
	assert.True(t, kept)
}

func TestRateLimiterRunStops(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		rl.Run(time.Millisecond, stop)
		close(done)
	}()
	close(stop)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after stop")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	rl := newFrozenLimiter(1, 1, &now)
	calls := 0
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	send := func(remote, realIP string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/calendly/book", nil)
		req.RemoteAddr = remote
		if realIP != "" {
			req.Header.Set("X-Real-Ip", realIP)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, send("192.0.2.1:1234", "").Code)
	rec := send("192.0.2.1:5678", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code, "same host on a new port shares the bucket")
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])

	assert.Equal(t, http.StatusOK, send("192.0.2.1:9999", "198.51.100.7").Code)
	assert.Equal(t, 2, calls)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "not-a-hostport"
	assert.Equal(t, "not-a-hostport", clientIP(req))
}

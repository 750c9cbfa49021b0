package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_BlocksAfterBurst(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/public/slots", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, req)
		codes = append(codes, rw.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	other := httptest.NewRequest(http.MethodGet, "/api/v1/public/slots", nil)
	other.RemoteAddr = "198.51.100.2:5555"
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, other)
	assert.Equal(t, http.StatusOK, rw.Code)
}

func TestRateLimiter_SweepDropsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(5, time.Second)
	now := time.Now()
	rl.allow("a", now)
	rl.allow("b", now.Add(2*time.Second))

	removed := rl.sweep(now.Add(4 * time.Second))
	assert.Equal(t, 1, removed)
	assert.Len(t, rl.visitors, 1)
}

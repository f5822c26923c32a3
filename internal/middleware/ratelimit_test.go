package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryLimiterFixedWindow(t *testing.T) {
	l := NewMemoryLimiter()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(context.Background(), "1.2.3.4", 3, time.Minute)
		assert.NoError(t, err)
		assert.True(t, ok, "request %d within the limit", i+1)
	}

	ok, err := l.Allow(context.Background(), "1.2.3.4", 3, time.Minute)
	assert.NoError(t, err)
	assert.False(t, ok, "fourth request exceeds the limit")

	ok, _ = l.Allow(context.Background(), "5.6.7.8", 3, time.Minute)
	assert.True(t, ok, "limits are per key")
}

func TestMemoryLimiterWindowExpiry(t *testing.T) {
	l := NewMemoryLimiter()

	ok, _ := l.Allow(context.Background(), "1.2.3.4", 1, 10*time.Millisecond)
	assert.True(t, ok)
	ok, _ = l.Allow(context.Background(), "1.2.3.4", 1, 10*time.Millisecond)
	assert.False(t, ok)

	time.Sleep(20 * time.Millisecond)
	ok, _ = l.Allow(context.Background(), "1.2.3.4", 1, 10*time.Millisecond)
	assert.True(t, ok, "the window resets after it elapses")
}

func TestRateLimitRejectsOverLimit(t *testing.T) {
	handler := RateLimit(NewMemoryLimiter(), 2, time.Minute)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

type errLimiter struct{}

func (errLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return false, errors.New("redis unavailable")
}

func TestRateLimitFailsOpen(t *testing.T) {
	handler := RateLimit(errLimiter{}, 1, time.Minute)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClientIPForRateLimitPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "garbage, 203.0.113.9")
	assert.Equal(t, "203.0.113.9", clientIPForRateLimit(req))

	req.Header.Del("X-Forwarded-For")
	assert.Equal(t, "10.0.0.1", clientIPForRateLimit(req))
}

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiterBurstThenReject(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	defer rl.Close()

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "keys have independent buckets")
}

func TestRateLimiterEvictsIdleKeys(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Close()

	rl.Allow("a")
	rl.evictIdle(time.Now().Add(time.Minute))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.limiters)
}

func TestRateLimitMiddlewareKeysBySubject(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	defer rl.Close()
	mw := RateLimit(rl)

	do := func(subject string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/booking/sessions/s/submit", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		if subject != "" {
			claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: subject}}
			req = req.WithContext(WithClaims(context.Background(), claims, "tok"))
		}
		rec := httptest.NewRecorder()
		mw(okHandler(nil)).ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("user-1"))
	assert.Equal(t, http.StatusTooManyRequests, do("user-1"))
	assert.Equal(t, http.StatusOK, do("user-2"), "same IP, different subject")
	assert.Equal(t, http.StatusOK, do(""), "anonymous keyed by IP")
	assert.Equal(t, http.StatusTooManyRequests, do(""))
}

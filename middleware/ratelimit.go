// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/danielhkuo/connected-mate/auth"
	"github.com/danielhkuo/connected-mate/metrics"
)

// Idle client limiters are dropped after this long
const limiterIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a token bucket per client. Clients are keyed by a
// salted hash of their IP so raw addresses are never held.
type RateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	salt      string
	lastPrune time.Time

	// TrustProxy keys clients by X-Forwarded-For / X-Real-IP instead of
	// the connection address
	TrustProxy bool

	now func() time.Time
}

// NewRateLimiter allows perMinute requests per client per minute, with
// burst on top
func NewRateLimiter(perMinute, burst int, salt string) *RateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    burst,
		salt:     salt,
		now:      time.Now,
	}
}

// Allow reports whether the client identified by ip may proceed
func (rl *RateLimiter) Allow(ip string) bool {
	key := auth.HashIP(ip, rl.salt)
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastPrune) > time.Minute {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) > limiterIdleTTL {
				delete(rl.visitors, k)
			}
		}
		rl.lastPrune = now
	}

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Clients returns how many clients are currently tracked
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// Limit wraps a handler so over-limit clients get 429
func (rl *RateLimiter) Limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(GetClientIP(r, rl.TrustProxy)) {
			metrics.RecordRateLimited()
			// Seconds until the next token
			retry := int(math.Ceil(1 / float64(rl.limit)))
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			CodedErrorResponse(w, http.StatusTooManyRequests, "rate_limited", "Too many requests, slow down")
			return
		}
		next(w, r)
	}
}

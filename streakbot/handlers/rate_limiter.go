package handlers

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/time/rate"
)

// RateLimiter hands out one token bucket per user. Buckets of users not
// seen for a while are evicted by the LRU.
type RateLimiter struct {
	mu       sync.Mutex
	limiters *lru.Cache
	limit    rate.Limit
	burst    int
}

func NewRateLimiter(perSecond float64, burst, size int) *RateLimiter {
	cache, _ := lru.New(size)
	return &RateLimiter{
		limiters: cache,
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

// Allow reports whether userID may run a command now.
func (r *RateLimiter) Allow(userID string) bool {
	return r.get(userID).Allow()
}

func (r *RateLimiter) get(userID string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.limiters.Get(userID); ok {
		return v.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(r.limit, r.burst)
	r.limiters.Add(userID, limiter)
	return limiter
}

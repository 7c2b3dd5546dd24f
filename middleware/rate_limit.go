package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/earlywake/backend/utils"
)

type rateLimiter struct {
	limiter *rate.Limiter
	expires time.Time
	mu      sync.Mutex
}

type limiterSet struct {
	mu       sync.Mutex
	limiters map[string]*rateLimiter
}

// RateLimitMiddleware applies a per-IP token bucket allowing perMinute requests.
// Each call owns its own bucket set.
func RateLimitMiddleware(perMinute int) gin.HandlerFunc {
	r := rate.Every(time.Minute / time.Duration(atLeast(perMinute, 1)))
	burst := atLeast(perMinute/2, 1)
	set := &limiterSet{limiters: map[string]*rateLimiter{}}

	return func(ctx *gin.Context) {
		ip := ctx.ClientIP()
		limiter := set.get(ip, r, burst)

		limiter.mu.Lock()
		allowed := limiter.limiter.Allow()
		limiter.mu.Unlock()

		if !allowed {
			utils.Error(ctx, http.StatusTooManyRequests, 42901, "rate limit exceeded")
			ctx.Abort()
			return
		}

		ctx.Next()
	}
}

func (s *limiterSet) get(key string, limit rate.Limit, burst int) *rateLimiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleanupExpiredLocked()

	if limiter, ok := s.limiters[key]; ok {
		limiter.expires = time.Now().Add(5 * time.Minute)
		return limiter
	}

	limiter := &rateLimiter{
		limiter: rate.NewLimiter(limit, burst),
		expires: time.Now().Add(5 * time.Minute),
	}
	s.limiters[key] = limiter
	return limiter
}

func (s *limiterSet) cleanupExpiredLocked() {
	now := time.Now()
	for key, limiter := range s.limiters {
		if now.After(limiter.expires) {
			delete(s.limiters, key)
		}
	}
}

func atLeast(a, b int) int {
	if a > b {
		return a
	}
	return b
}

package middleware

import (
	"math"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"friend-connect-backend/internal/common/errors"
)

// limiterIdle is how long an unused per-user limiter is kept.
const limiterIdle = 10 * time.Minute

// UserRateLimiter keeps one token bucket per authenticated user.
type UserRateLimiter struct {
	limit rate.Limit
	burst int

	mu        sync.Mutex
	limiters  map[string]*userLimiter
	lastPrune time.Time
	now       func() time.Time
}

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewUserRateLimiter allows perMinute events per user with the given burst.
// perMinute <= 0 disables limiting.
func NewUserRateLimiter(perMinute, burst int) *UserRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60)
	}
	return &UserRateLimiter{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*userLimiter),
		now:      time.Now,
	}
}

func (l *UserRateLimiter) get(userID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastPrune) > limiterIdle {
		for id, ul := range l.limiters {
			if now.Sub(ul.lastSeen) > limiterIdle {
				delete(l.limiters, id)
			}
		}
		l.lastPrune = now
	}
	ul, ok := l.limiters[userID]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[userID] = ul
	}
	ul.lastSeen = now
	return ul.limiter
}

// Middleware rejects requests over the user's budget with 429.
func (l *UserRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.limit == rate.Inf {
			c.Next()
			return
		}
		userID := CurrentUserID(c)
		if userID == "" {
			userID = "ip:" + c.ClientIP()
		}
		lim := l.get(userID)
		now := l.now()
		if !lim.AllowN(now, 1) {
			retry := time.Duration(float64(time.Second) / float64(l.limit))
			_ = c.Error(errors.NewRateLimitError(retry).
				WithDetail("retry_after_seconds", int(math.Ceil(retry.Seconds()))))
			c.Abort()
			return
		}
		c.Next()
	}
}

package middleware

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/guiqiqi/itmo-moodle-agent/errors"
	"github.com/guiqiqi/itmo-moodle-agent/resilience"
)

const sweepInterval = 5 * time.Minute

// Throttle limits requests per client address with one token bucket per
// address. Exhausted clients get RATE_LIMITED (429).
func Throttle(cfg resilience.RateLimiterConfig) gin.HandlerFunc {
	cfg.ApplyDefaults()
	limiter := resilience.NewKeyedRateLimiter(cfg)
	retryAfter := strconv.Itoa(max(1, int(1/cfg.Rate)))

	var lastSweep atomic.Int64
	lastSweep.Store(time.Now().UnixNano())

	return func(c *gin.Context) {
		now := time.Now().UnixNano()
		if last := lastSweep.Load(); now-last > int64(sweepInterval) && lastSweep.CompareAndSwap(last, now) {
			limiter.Sweep()
		}

		if !limiter.Allow(c.ClientIP()) {
			c.Header("Retry-After", retryAfter)
			abortWithError(c, apperrors.RateLimited())
			return
		}
		c.Next()
	}
}

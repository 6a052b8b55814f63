package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"student-service/internal/adapter/ratelimit"
)

// RateLimiter returns a Gin middleware that admits requests through a
// per-client token bucket. Redis errors let the request through.
func RateLimiter(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Enabled() {
			c.Next()
			return
		}

		allowed, _ := limiter.Allow(c.Request.Context(), "http:"+c.ClientIP())
		if !allowed {
			cfg := limiter.Config()
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": fmt.Sprintf("Rate limit exceeded: %.2f requests/second (burst capacity: %d)", cfg.RequestsPerSecond, cfg.Burst),
			})
			return
		}

		c.Next()
	}
}

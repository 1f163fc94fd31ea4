package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"siteaudit/pkg/metrics"
)

// Middleware limits ops endpoint requests per client IP.
func Middleware(l *KeyedLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if clientIP == "" {
			clientIP = c.RemoteIP()
		}

		if !l.Allow(clientIP) {
			metrics.RateLimitRequestsTotal.WithLabelValues("limited").Inc()
			c.Header("X-RateLimit-Limit", formatRate(l.cfg.RPS))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "rate limit exceeded",
				"error_code": "RATE_LIMIT_EXCEEDED",
			})
			return
		}

		metrics.RateLimitRequestsTotal.WithLabelValues("allowed").Inc()
		c.Header("X-RateLimit-Limit", formatRate(l.cfg.RPS))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(l.Remaining(clientIP)))
		c.Next()
	}
}

func formatRate(rps float64) string {
	return strconv.FormatFloat(rps, 'f', -1, 64)
}

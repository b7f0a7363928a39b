package ratelimit

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ZanzyTHEbar/synastry-o-meter/internal/errors"
)

// HandleRateLimitStatus describes the limits that apply to the caller
func (rl *RateLimiter) HandleRateLimitStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		endpoints := gin.H{}
		for name, limit := range rl.config.EndpointLimits {
			endpoints[name] = gin.H{"limit": limit, "period": "1 minute"}
		}

		c.JSON(http.StatusOK, gin.H{
			"ip": c.ClientIP(),
			"limits": gin.H{
				"ip_per_minute": gin.H{
					"limit":  rl.config.IPLimitPerMin,
					"burst":  rl.config.IPLimitPerMin * rl.config.BurstMultiplier,
					"period": "1 minute",
				},
				"endpoints": endpoints,
			},
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

// HandleRateLimitStats returns limiter and metrics statistics
func (rl *RateLimiter) HandleRateLimitStats() gin.HandlerFunc {
	return func(c *gin.Context) {
		keyCount, err := rl.GetKeyCount(c.Request.Context())
		if err != nil {
			apperrors.Abort(c, apperrors.NewUnavailableError("rate limit store", err))
			return
		}

		var rateLimitMetrics map[string]interface{}
		if rl.metrics != nil {
			rateLimitMetrics = rl.metrics.GetRateLimitStats()
		}

		c.JSON(http.StatusOK, gin.H{
			"total_keys":    keyCount,
			"limiter_stats": rl.GetStats(),
			"metrics":       rateLimitMetrics,
			"timestamp":     time.Now().Format(time.RFC3339),
		})
	}
}

// HandleInvalidateIP resets every budget held by the IP in the path
func (rl *RateLimiter) HandleInvalidateIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.Param("ip")
		if ip == "" {
			apperrors.Abort(c, apperrors.NewValidationError("IP address is required", map[string]string{"ip": "missing"}))
			return
		}

		removed, err := rl.InvalidateIP(c.Request.Context(), ip)
		if err != nil {
			apperrors.Abort(c, apperrors.NewUnavailableError("rate limit store", err))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":   "IP rate limits invalidated",
			"ip":        ip,
			"removed":   removed,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

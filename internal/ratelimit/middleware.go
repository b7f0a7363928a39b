package ratelimit

import (
	"log/slog"
	"math"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ZanzyTHEbar/synastry-o-meter/internal/errors"
)

func setHeaders(c *gin.Context, prefix string, result *Result) {
	c.Header(prefix+"-Limit", strconv.Itoa(result.Limit))
	c.Header(prefix+"-Remaining", strconv.Itoa(result.Remaining))
	c.Header(prefix+"-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func retryAfterSeconds(result *Result) string {
	return strconv.Itoa(int(math.Ceil(result.RetryAfter.Seconds())))
}

func (rl *RateLimiter) block(c *gin.Context, scope string, result *Result) {
	if rl.prom != nil {
		rl.prom.RateLimitBlocks.WithLabelValues(scope).Inc()
	}
	retry := retryAfterSeconds(result)
	c.Header("Retry-After", retry)
	apperrors.Abort(c, apperrors.NewRateLimitError(retry+"s"))
}

// IPRateLimitMiddleware enforces the per-IP budget. Limiter failures never
// block a request.
func (rl *RateLimiter) IPRateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		result, err := rl.AllowIP(c.Request.Context(), ip)
		if err != nil {
			slog.Error("Rate limit check failed", "ip", ip, "error", err)
			c.Next()
			return
		}

		setHeaders(c, "X-RateLimit", result)

		if !result.Allowed {
			if rl.metrics != nil {
				rl.metrics.IncrementRateLimitIPBlock()
			}
			rl.block(c, "ip", result)
			return
		}

		c.Next()
	}
}

// EndpointRateLimitMiddleware enforces the per-IP budget of one endpoint.
// Endpoints without a configured limit pass through.
func (rl *RateLimiter) EndpointRateLimitMiddleware(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		result, limited, err := rl.AllowEndpoint(c.Request.Context(), endpoint, ip)
		if err != nil {
			slog.Error("Endpoint rate limit check failed", "endpoint", endpoint, "ip", ip, "error", err)
			c.Next()
			return
		}
		if !limited {
			c.Next()
			return
		}

		setHeaders(c, "X-RateLimit-Endpoint", result)

		if !result.Allowed {
			if rl.metrics != nil {
				rl.metrics.IncrementRateLimitEndpoint(endpoint)
			}
			rl.block(c, "endpoint", result)
			return
		}

		c.Next()
	}
}

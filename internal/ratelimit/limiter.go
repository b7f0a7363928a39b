package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"golang.org/x/time/rate"

	"github.com/ZanzyTHEbar/synastry-o-meter/internal/monitoring"
	"github.com/ZanzyTHEbar/synastry-o-meter/internal/resilience"
)

const keyPrefix = "synastry:ratelimit:"

// Config holds rate limiter configuration
type Config struct {
	IPLimitPerMin   int            // per client IP across all scoring endpoints
	EndpointLimits  map[string]int // per client IP and endpoint, per minute
	BurstMultiplier int            // burst capacity of the IP bucket
	CleanupInterval time.Duration
	MaxFallbackKeys int
}

// DefaultConfig returns default rate limiting configuration
func DefaultConfig() Config {
	return Config{
		IPLimitPerMin: 120,
		EndpointLimits: map[string]int{
			"batch": 20,
		},
		BurstMultiplier: 2,
		CleanupInterval: time.Hour,
		MaxFallbackKeys: 10000,
	}
}

// Rate is a request budget over a period
type Rate struct {
	Limit  int
	Burst  int // zero means Limit
	Period time.Duration
}

func (r Rate) burst() int {
	if r.Burst > 0 {
		return r.Burst
	}
	return r.Limit
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
	Backend    string
}

type fallbackEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter provides distributed rate limiting with Redis and an in-memory
// token bucket fallback
type RateLimiter struct {
	redisLimiter *redis_rate.Limiter
	redisClient  *RedisClient
	breaker      *resilience.CircuitBreaker
	config       Config
	metrics      *monitoring.Metrics
	prom         *monitoring.PromRegistry

	fallback      map[string]*fallbackEntry
	fallbackMutex sync.Mutex

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a new rate limiter. A nil or disabled redis client
// means in-memory limiting only.
func NewRateLimiter(redisClient *RedisClient, config Config, metrics *monitoring.Metrics, prom *monitoring.PromRegistry) *RateLimiter {
	if redisClient == nil {
		redisClient = &RedisClient{}
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Hour
	}
	if config.BurstMultiplier <= 0 {
		config.BurstMultiplier = 1
	}

	rl := &RateLimiter{
		redisClient: redisClient,
		config:      config,
		metrics:     metrics,
		prom:        prom,
		fallback:    make(map[string]*fallbackEntry),
		stop:        make(chan struct{}),
	}

	if redisClient.IsEnabled() {
		rl.redisLimiter = redis_rate.NewLimiter(redisClient.GetClient())
		rl.breaker = resilience.NewCircuitBreaker("redis", resilience.CircuitBreakerConfig{
			FailureThreshold: 3,
			RecoveryTimeout:  15 * time.Second,
		})
		rl.breaker.OnStateChange(func(name string, from, to resilience.CircuitBreakerState) {
			slog.Warn("Rate limit backend state changed", "backend", name, "from", from.String(), "to", to.String())
		})
		slog.Info("Redis rate limiter initialized")
	} else {
		slog.Warn("Redis unavailable, using in-memory rate limiting only")
	}

	go rl.cleanupLoop()

	return rl
}

// Close stops the cleanup goroutine
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// AllowIP checks the per-minute budget of a client IP
func (rl *RateLimiter) AllowIP(ctx context.Context, ip string) (*Result, error) {
	return rl.Allow(ctx, keyPrefix+"ip:"+ip, Rate{
		Limit:  rl.config.IPLimitPerMin,
		Burst:  rl.config.IPLimitPerMin * rl.config.BurstMultiplier,
		Period: time.Minute,
	})
}

// AllowEndpoint checks the per-minute budget of a client IP on one endpoint.
// ok is false when the endpoint has no dedicated limit.
func (rl *RateLimiter) AllowEndpoint(ctx context.Context, endpoint, ip string) (res *Result, ok bool, err error) {
	limit, ok := rl.config.EndpointLimits[endpoint]
	if !ok || limit <= 0 {
		return nil, false, nil
	}
	res, err = rl.Allow(ctx, fmt.Sprintf("%sendpoint:%s:%s", keyPrefix, endpoint, ip), Rate{Limit: limit, Period: time.Minute})
	return res, true, err
}

// Allow checks one request against the budget of key, using Redis when it
// is healthy and the in-memory bucket otherwise
func (rl *RateLimiter) Allow(ctx context.Context, key string, r Rate) (*Result, error) {
	if r.Limit <= 0 || r.Period <= 0 {
		return nil, fmt.Errorf("invalid rate %d per %s", r.Limit, r.Period)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if rl.redisClient.IsEnabled() && rl.redisLimiter != nil {
		var result *Result
		err := rl.breaker.Call(func() error {
			var err error
			result, err = rl.allowRedis(ctx, key, r)
			return err
		})
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			slog.Warn("Redis rate limit check failed, using fallback", "key", key, "error", err)
			if rl.metrics != nil {
				rl.metrics.IncrementRateLimitRedisError()
			}
		}
	}

	if rl.metrics != nil {
		rl.metrics.IncrementRateLimitFallback()
	}
	return rl.allowFallback(key, r), nil
}

func (rl *RateLimiter) allowRedis(ctx context.Context, key string, r Rate) (*Result, error) {
	res, err := rl.redisLimiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   r.Limit,
		Burst:  r.burst(),
		Period: r.Period,
	})
	if err != nil {
		return nil, fmt.Errorf("redis rate limit check failed: %w", err)
	}

	return &Result{
		Allowed:    res.Allowed > 0,
		Limit:      res.Limit.Rate,
		Remaining:  res.Remaining,
		ResetAt:    time.Now().Add(res.ResetAfter),
		RetryAfter: max(res.RetryAfter, 0),
		Backend:    "redis",
	}, nil
}

func (rl *RateLimiter) allowFallback(key string, r Rate) *Result {
	now := time.Now()

	rl.fallbackMutex.Lock()
	entry, exists := rl.fallback[key]
	if !exists {
		every := rate.Limit(float64(r.Limit) / r.Period.Seconds())
		entry = &fallbackEntry{limiter: rate.NewLimiter(every, r.burst())}
		rl.fallback[key] = entry
	}
	entry.lastSeen = now
	rl.fallbackMutex.Unlock()

	result := &Result{
		Limit:   r.Limit,
		ResetAt: now.Add(r.Period),
		Backend: "memory",
	}

	res := entry.limiter.ReserveN(now, 1)
	if !res.OK() {
		result.RetryAfter = r.Period
		return result
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		result.RetryAfter = delay
		result.ResetAt = now.Add(delay)
		return result
	}

	result.Allowed = true
	result.Remaining = max(int(entry.limiter.TokensAt(now)), 0)
	return result
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.cleanup(rl.config.CleanupInterval)
		}
	}
}

// cleanup drops fallback buckets idle for longer than idle, and everything
// when the map outgrows MaxFallbackKeys
func (rl *RateLimiter) cleanup(idle time.Duration) int {
	rl.fallbackMutex.Lock()
	defer rl.fallbackMutex.Unlock()

	before := len(rl.fallback)
	if rl.config.MaxFallbackKeys > 0 && before > rl.config.MaxFallbackKeys {
		rl.fallback = make(map[string]*fallbackEntry)
	} else {
		cutoff := time.Now().Add(-idle)
		for k, e := range rl.fallback {
			if e.lastSeen.Before(cutoff) {
				delete(rl.fallback, k)
			}
		}
	}

	removed := before - len(rl.fallback)
	if removed > 0 {
		slog.Info("Cleaned up fallback rate limiters", "removed", removed)
	}
	return removed
}

// GetStats returns rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.fallbackMutex.Lock()
	fallbackCount := len(rl.fallback)
	rl.fallbackMutex.Unlock()

	stats := map[string]interface{}{
		"redis_enabled":     rl.redisClient.IsEnabled(),
		"fallback_limiters": fallbackCount,
		"ip_limit_per_min":  rl.config.IPLimitPerMin,
		"endpoint_limits":   rl.config.EndpointLimits,
	}

	if rl.redisClient.IsEnabled() {
		stats["redis_pool"] = rl.redisClient.GetPoolStats()
		stats["redis_breaker"] = rl.breaker.Stats()
	}

	return stats
}

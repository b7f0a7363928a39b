package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/ZanzyTHEbar/synastry-o-meter/internal/apidocs"
	"github.com/ZanzyTHEbar/synastry-o-meter/internal/batch"
	"github.com/ZanzyTHEbar/synastry-o-meter/internal/cache"
	"github.com/ZanzyTHEbar/synastry-o-meter/internal/config"
	apperrors "github.com/ZanzyTHEbar/synastry-o-meter/internal/errors"
	"github.com/ZanzyTHEbar/synastry-o-meter/internal/middleware"
	"github.com/ZanzyTHEbar/synastry-o-meter/internal/monitoring"
	"github.com/ZanzyTHEbar/synastry-o-meter/internal/ratelimit"
	"github.com/ZanzyTHEbar/synastry-o-meter/internal/security"
	"github.com/ZanzyTHEbar/synastry-o-meter/internal/synastry"
	"github.com/ZanzyTHEbar/synastry-o-meter/internal/types"
)

const (
	reportPath      = "/v1/synastry/report"
	directionalPath = "/v1/synastry/directional"
	batchPath       = "/v1/synastry/batch"
	tablesPath      = "/v1/synastry/tables"
)

// server owns every long-lived dependency of the HTTP API
type server struct {
	cfg      *config.Config
	rules    *synastry.RuleSet
	analyzer *synastry.Analyzer
	runner   *batch.Runner

	metrics *monitoring.Metrics
	prom    *monitoring.PromRegistry
	logger  *monitoring.Logger

	cache      *cache.Cache
	redis      *ratelimit.RedisClient
	limiter    *ratelimit.RateLimiter
	security   *security.SecurityMiddleware
	compressor *middleware.CompressionMiddleware

	started time.Time
}

// newServer wires the scoring core and the request pipeline. redisClient may
// be nil, in which case rate limiting stays in memory.
func newServer(cfg *config.Config, rules *synastry.RuleSet, redisClient *ratelimit.RedisClient, logger *monitoring.Logger) (*server, error) {
	analyzer, err := synastry.NewAnalyzer(rules)
	if err != nil {
		return nil, apperrors.NewConfigurationError("rule set rejected by analyzer", err)
	}

	s := &server{
		cfg:      cfg,
		rules:    rules,
		analyzer: analyzer,
		metrics:  monitoring.NewMetrics(),
		prom:     monitoring.NewPromRegistry(),
		logger:   logger,
		redis:    redisClient,
		started:  time.Now(),
	}

	s.runner = batch.NewRunner(analyzer, cfg.Batch.Concurrency, func(mode string, in synastry.Input, item types.BatchItem) {
		switch {
		case item.Report != nil:
			s.observe("batch_"+mode, item.Report.Orientation, item.Percent, item.Report.Afflictions.Penalty, item.Report.Modules)
		case item.Directional != nil:
			s.observe("batch_"+mode, item.Directional.Orientation, item.Percent, item.Directional.Afflictions.Penalty, item.Directional.Modules)
		}
	})

	s.cache = cache.NewCache(cfg.Cache.TTL, cfg.Cache.MaxItems, rules.Version)

	rlConfig := ratelimit.DefaultConfig()
	rlConfig.IPLimitPerMin = cfg.RateLimit.PerMinute
	rlConfig.BurstMultiplier = cfg.RateLimit.BurstMultiplier
	rlConfig.EndpointLimits["batch"] = cfg.RateLimit.BatchPerMinute
	s.limiter = ratelimit.NewRateLimiter(redisClient, rlConfig, s.metrics, s.prom)

	secConfig := security.DefaultSecurityConfig()
	secConfig.AllowedOrigins = cfg.Security.AllowedOrigins
	secConfig.MaxBodyBytes = cfg.Security.MaxBodyBytes
	secConfig.RequestTimeout = cfg.Security.RequestTimeout
	secConfig.EnableHSTS = cfg.Security.EnableHSTS
	secConfig.AdminToken = cfg.Security.AdminToken
	s.security = security.NewSecurityMiddleware(secConfig)
	s.compressor = middleware.NewCompressionMiddleware(middleware.DefaultCompressionConfig())

	return s, nil
}

// Close releases background workers and connections
func (s *server) Close() {
	s.cache.Close()
	s.limiter.Close()
	if s.redis.IsEnabled() {
		apperrors.SafeClose(s.redis, "redis")
	}
}

// observe records one scored pair in both metric sinks
func (s *server) observe(kind string, o synastry.Orientation, percent int, pen synastry.PenaltyResult, mods []synastry.ModuleScore) {
	s.metrics.RecordEvaluation(kind, percent, pen.Penalty != 0)
	s.prom.ObserveEvaluation(kind, string(o), percent, pen.Base, s.rules.Penalty.MutualBase)
	for _, m := range mods {
		s.prom.ObserveModule(m.Key, m.Normalized)
	}
}

func (s *server) setupRouter() *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(s.security.Config().TrustedProxies); err != nil {
		s.logger.Warn("Invalid trusted proxy list, trusting none", "error", err)
		_ = r.SetTrustedProxies(nil)
	}

	r.Use(apperrors.RecoveryHandler())
	r.Use(monitoring.RequestIDMiddleware())
	r.Use(monitoring.MonitoringMiddleware(s.metrics, s.prom, s.logger))
	r.Use(monitoring.SecurityMonitoringMiddleware(s.logger, s.security.Config().MaxBodyBytes))
	r.Use(s.security.CORS())
	r.Use(s.security.SecurityHeaders)
	r.Use(apperrors.ErrorHandler())

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", s.handleMetrics)
	r.GET("/metrics/prometheus", gin.WrapH(s.prom.Handler()))
	r.GET("/cache/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.cache.Stats())
	})
	r.GET("/ratelimit/status", s.limiter.HandleRateLimitStatus())
	r.GET("/ratelimit/stats", s.limiter.HandleRateLimitStats())
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	admin := r.Group("/admin", s.security.AdminAuth)
	admin.DELETE("/ratelimit/ip/:ip", s.limiter.HandleInvalidateIP())
	admin.DELETE("/cache", func(c *gin.Context) {
		removed := s.cache.Size()
		s.cache.Clear()
		s.logger.SystemLogger("cache_cleared", "admin request")
		c.JSON(http.StatusOK, gin.H{"message": "cache cleared", "removed": removed})
	})

	if os.Getenv("ENABLE_PROFILING") == "true" {
		mountProfiling(r)
	}

	v1 := r.Group("/v1/synastry")
	v1.Use(s.limiter.IPRateLimitMiddleware())
	v1.Use(s.security.RequestTimeout)
	v1.Use(s.security.BodyLimit)
	v1.Use(s.security.ValidateContentType)
	v1.Use(s.cache.Middleware(s.logger, []cache.Recorder{s.metrics, s.prom}, reportPath, directionalPath))

	v1.POST("/report", s.handleReport)
	v1.POST("/directional", s.handleDirectional)
	v1.POST("/batch", s.limiter.EndpointRateLimitMiddleware("batch"), s.compressor.Handler(), s.handleBatch)
	v1.GET("/tables", s.handleTables)

	return r
}

func (s *server) handleHealth(c *gin.Context) {
	status := "ok"
	backends := map[string]interface{}{
		"rate_limiter": "memory",
		"ruleset":      s.rules.Version,
	}

	if s.redis.IsEnabled() {
		backends["rate_limiter"] = "redis"
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		err := s.redis.HealthCheck(ctx)
		cancel()
		redisStatus := map[string]interface{}{"enabled": true, "healthy": err == nil}
		if err != nil {
			status = "degraded"
			redisStatus["error"] = err.Error()
		}
		backends["redis"] = redisStatus
	} else {
		backends["redis"] = map[string]interface{}{"enabled": false}
	}

	c.JSON(http.StatusOK, types.HealthResponse{
		Status:         status,
		Version:        version,
		RulesetVersion: s.rules.Version,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds:  time.Since(s.started).Seconds(),
		Backends:       backends,
	})
}

func (s *server) handleMetrics(c *gin.Context) {
	stats := s.metrics.GetStats()
	stats["cache"] = s.cache.Stats()
	stats["rate_limit"] = s.metrics.GetRateLimitStats()
	stats["compression"] = s.compressor.GetStats()
	c.JSON(http.StatusOK, stats)
}

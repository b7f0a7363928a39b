package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/synastry-o-meter/internal/config"
	apperrors "github.com/ZanzyTHEbar/synastry-o-meter/internal/errors"
	"github.com/ZanzyTHEbar/synastry-o-meter/internal/monitoring"
	"github.com/ZanzyTHEbar/synastry-o-meter/internal/ratelimit"
	"github.com/ZanzyTHEbar/synastry-o-meter/internal/resilience"
	"github.com/ZanzyTHEbar/synastry-o-meter/internal/ruleset"
	"github.com/ZanzyTHEbar/synastry-o-meter/internal/synastry"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	configPath := flag.String("config", getEnvOrDefault("CONFIG_PATH", "synastry.yaml"), "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		os.Exit(1)
	}

	// Structured logging setup
	logger := monitoring.NewLoggerWithOutput(os.Stdout, monitoring.ParseLevel(cfg.Log.Level))
	slog.SetDefault(logger.Logger)
	gin.SetMode(cfg.Server.GinMode)

	rules, err := loadRules(cfg.Ruleset.Path)
	if err != nil {
		slog.Error("Failed to load rule set", "path", cfg.Ruleset.Path, "error", err)
		os.Exit(1)
	}
	slog.Info("Rule set loaded", "version", rules.Version, "path", cfg.Ruleset.Path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient := connectRedis(ctx, cfg, logger)

	srv, err := newServer(cfg, rules, redisClient, logger)
	if err != nil {
		slog.Error("Failed to initialize server", "error", err)
		os.Exit(1)
	}

	sampler := monitoring.NewRuntimeSampler(30*time.Second, srv.metrics, logger)
	sampler.Start(ctx)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.setupRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.Server.Port, "version", version)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	cancel()
	srv.Close()
	slog.Info("Server exited")
}

// loadRules reads rule overrides from dir, or the built-in tables when dir
// is empty
func loadRules(dir string) (*synastry.RuleSet, error) {
	if dir == "" {
		return ruleset.LoadDefault()
	}
	return ruleset.LoadDir(dir)
}

// connectRedis retries the initial connection and degrades to in-memory
// rate limiting when redis stays unreachable
func connectRedis(ctx context.Context, cfg *config.Config, logger *monitoring.Logger) *ratelimit.RedisClient {
	if cfg.Redis.Addr == "" {
		logger.SystemLogger("redis_disabled", "no REDIS_ADDR configured, using in-memory rate limiting")
		return nil
	}

	var client *ratelimit.RedisClient
	start := time.Now()
	err := resilience.Retry(ctx, func(ctx context.Context) error {
		c, err := ratelimit.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return apperrors.NewUnavailableError("redis", err)
		}
		client = c
		return nil
	})
	logger.BackendLogger("redis", "connect", time.Since(start), err)

	if err != nil {
		slog.Warn("Redis unavailable, falling back to in-memory rate limiting", "addr", cfg.Redis.Addr, "error", err)
		return nil
	}
	return client
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

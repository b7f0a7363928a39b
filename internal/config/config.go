package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all service configuration.
type Config struct {
	Server struct {
		Port            string        `yaml:"port"`
		GinMode         string        `yaml:"gin_mode"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	RateLimit struct {
		PerMinute       int `yaml:"per_minute"`
		BurstMultiplier int `yaml:"burst_multiplier"`
		BatchPerMinute  int `yaml:"batch_per_minute"`
	} `yaml:"rate_limit"`
	Cache struct {
		TTL      time.Duration `yaml:"ttl"`
		MaxItems int           `yaml:"max_items"`
	} `yaml:"cache"`
	Ruleset struct {
		Path string `yaml:"path"`
	} `yaml:"ruleset"`
	Security struct {
		AllowedOrigins []string      `yaml:"allowed_origins"`
		MaxBodyBytes   int64         `yaml:"max_body_bytes"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
		EnableHSTS     bool          `yaml:"enable_hsts"`
		AdminToken     string        `yaml:"admin_token"`
	} `yaml:"security"`
	Batch struct {
		Concurrency   int `yaml:"concurrency"`
		MaxCandidates int `yaml:"max_candidates"`
	} `yaml:"batch"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides, then defaults. A missing file is not an error; an empty path
// skips the file.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("GIN_MODE"); v != "" {
		c.Server.GinMode = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("RULESET_PATH"); v != "" {
		c.Ruleset.Path = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		c.Security.AdminToken = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.Security.AllowedOrigins = splitList(v)
	}

	ints := []struct {
		env string
		dst *int
	}{
		{"REDIS_DB", &c.Redis.DB},
		{"RATE_LIMIT_PER_MIN", &c.RateLimit.PerMinute},
		{"BATCH_CONCURRENCY", &c.Batch.Concurrency},
	}
	for _, i := range ints {
		v := os.Getenv(i.env)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", i.env, err)
		}
		*i.dst = n
	}

	if v := os.Getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CACHE_TTL: %w", err)
		}
		c.Cache.TTL = d
	}
	if v := os.Getenv("ENABLE_HSTS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ENABLE_HSTS: %w", err)
		}
		c.Security.EnableHSTS = b
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.GinMode == "" {
		c.Server.GinMode = "release"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.RateLimit.PerMinute == 0 {
		c.RateLimit.PerMinute = 120
	}
	if c.RateLimit.BurstMultiplier == 0 {
		c.RateLimit.BurstMultiplier = 2
	}
	if c.RateLimit.BatchPerMinute == 0 {
		c.RateLimit.BatchPerMinute = 20
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 15 * time.Minute
	}
	if c.Cache.MaxItems == 0 {
		c.Cache.MaxItems = 10000
	}
	if len(c.Security.AllowedOrigins) == 0 {
		c.Security.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	if c.Security.MaxBodyBytes == 0 {
		c.Security.MaxBodyBytes = 1 << 20
	}
	if c.Security.RequestTimeout == 0 {
		c.Security.RequestTimeout = 10 * time.Second
	}
	if c.Batch.Concurrency == 0 {
		c.Batch.Concurrency = 8
	}
	if c.Batch.MaxCandidates == 0 {
		c.Batch.MaxCandidates = 100
	}
}

// Validate checks the loaded values are usable.
func (c *Config) Validate() error {
	if p, err := strconv.Atoi(c.Server.Port); err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("server.port %q is not a valid port", c.Server.Port)
	}
	switch c.Server.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.gin_mode %q must be debug, release or test", c.Server.GinMode)
	}
	if c.RateLimit.PerMinute < 0 || c.RateLimit.BatchPerMinute < 0 {
		return fmt.Errorf("rate_limit values must not be negative")
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}
	if c.Batch.Concurrency < 1 {
		return fmt.Errorf("batch.concurrency must be positive")
	}
	if c.Batch.MaxCandidates < 1 {
		return fmt.Errorf("batch.max_candidates must be positive")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db must not be negative")
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

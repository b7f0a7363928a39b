package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// InvalidateIP removes every budget held by an IP address, including its
// per-endpoint budgets
func (rl *RateLimiter) InvalidateIP(ctx context.Context, ip string) (int, error) {
	if ip == "" {
		return 0, fmt.Errorf("ip is required")
	}

	ipKey := keyPrefix + "ip:" + ip
	endpointSuffix := ":" + ip

	rl.fallbackMutex.Lock()
	removed := 0
	for k := range rl.fallback {
		if k == ipKey || (strings.HasPrefix(k, keyPrefix+"endpoint:") && strings.HasSuffix(k, endpointSuffix)) {
			delete(rl.fallback, k)
			removed++
		}
	}
	rl.fallbackMutex.Unlock()

	if !rl.redisClient.IsEnabled() {
		slog.Info("Invalidated IP rate limits (in-memory)", "ip", ip, "count", removed)
		return removed, nil
	}

	n, err := rl.deleteByPattern(ctx, ipKey)
	if err != nil {
		return removed, err
	}
	m, err := rl.deleteByPattern(ctx, keyPrefix+"endpoint:*"+endpointSuffix)
	return removed + n + m, err
}

// GetKeyCount returns the number of budgets currently tracked
func (rl *RateLimiter) GetKeyCount(ctx context.Context) (int, error) {
	if !rl.redisClient.IsEnabled() {
		rl.fallbackMutex.Lock()
		defer rl.fallbackMutex.Unlock()
		return len(rl.fallback), nil
	}

	client := rl.redisClient.GetClient()
	var cursor uint64
	count := 0
	for {
		keys, next, err := client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to scan keys: %w", err)
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}

func (rl *RateLimiter) deleteByPattern(ctx context.Context, pattern string) (int, error) {
	client := rl.redisClient.GetClient()

	var cursor uint64
	deletedCount := 0

	for {
		keys, nextCursor, err := client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return deletedCount, fmt.Errorf("failed to scan keys: %w", err)
		}

		if len(keys) > 0 {
			deleted, err := client.Del(ctx, keys...).Result()
			if err != nil {
				return deletedCount, fmt.Errorf("failed to delete keys: %w", err)
			}
			deletedCount += int(deleted)
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	slog.Info("Deleted rate limit keys by pattern", "pattern", pattern, "count", deletedCount)
	return deletedCount, nil
}

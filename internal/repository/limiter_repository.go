package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LoginLimiter throttles repeated login attempts per (ip, email) pair using
// a fixed Redis window. A nil client disables throttling, matching how the
// rest of the service degrades when Redis is unavailable.
type LoginLimiter struct {
	client      *redis.Client
	logger      *zap.Logger
	maxAttempts int
	window      time.Duration
}

// NewLoginLimiter constructs a login limiter.
func NewLoginLimiter(client *redis.Client, logger *zap.Logger, maxAttempts int, window time.Duration) *LoginLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoginLimiter{client: client, logger: logger, maxAttempts: maxAttempts, window: window}
}

// Allow records an attempt for the key and reports whether it is still under
// the limit. Redis failures fail open: a broken cache must not lock every
// user out.
func (l *LoginLimiter) Allow(ctx context.Context, ip, email string) bool {
	if l.client == nil || l.maxAttempts <= 0 {
		return true
	}

	key := fmt.Sprintf("login_attempts:%s:%s", ip, email)
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		l.logger.Warn("login limiter unavailable", zap.Error(err))
		return true
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			l.logger.Warn("login limiter expire failed", zap.Error(err))
		}
	}
	return count <= int64(l.maxAttempts)
}

// Reset clears the attempt counter after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, ip, email string) {
	if l.client == nil {
		return
	}
	key := fmt.Sprintf("login_attempts:%s:%s", ip, email)
	if err := l.client.Del(ctx, key).Err(); err != nil {
		l.logger.Warn("login limiter reset failed", zap.Error(err))
	}
}

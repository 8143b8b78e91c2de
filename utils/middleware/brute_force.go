package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/edu-materials-api/utils/cache"
	"github.com/sahilchouksey/edu-materials-api/utils/response"
)

// BruteForceProtection locks out IPs with repeated failed logins. A nil
// cache disables it.
type BruteForceProtection struct {
	redisCache *cache.RedisCache
}

// NewBruteForceProtection creates a new brute force protection instance
func NewBruteForceProtection(redisCache *cache.RedisCache) *BruteForceProtection {
	return &BruteForceProtection{
		redisCache: redisCache,
	}
}

func attemptKey(ip string) string { return fmt.Sprintf("brute_force:attempts:%s", ip) }
func lockKey(ip string) string    { return fmt.Sprintf("brute_force:lock:%s", ip) }

// CheckLockout rejects requests from a locked out IP with 429
func (b *BruteForceProtection) CheckLockout() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if b == nil || b.redisCache == nil {
			return c.Next()
		}

		ctx := c.UserContext()
		key := lockKey(c.IP())

		locked, err := b.redisCache.Exists(ctx, key)
		if err != nil {
			// Redis trouble never blocks logins
			return c.Next()
		}

		if locked {
			ttl, _ := b.redisCache.TTL(ctx, key)
			retryAfter := int(ttl.Seconds())
			if retryAfter < 0 {
				retryAfter = 60
			}

			c.Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			return response.TooManyRequests(c, fmt.Sprintf("Too many failed attempts. Try again in %d seconds", retryAfter))
		}

		return c.Next()
	}
}

// LockoutFor returns the lockout applied after attempts failures in the window
func LockoutFor(attempts int64) time.Duration {
	switch {
	case attempts >= 25:
		return 24 * time.Hour
	case attempts >= 10:
		return time.Hour
	case attempts >= 5:
		return 2 * time.Minute
	default:
		return 0
	}
}

// RecordFailedAttempt counts a failed login and applies progressive lockouts
func (b *BruteForceProtection) RecordFailedAttempt(ctx context.Context, ip string) error {
	if b == nil || b.redisCache == nil {
		return nil
	}

	attempts, err := b.redisCache.Increment(ctx, attemptKey(ip))
	if err != nil {
		return nil
	}

	// 15 minute counting window
	if attempts == 1 {
		_ = b.redisCache.Expire(ctx, attemptKey(ip), 15*time.Minute)
	}

	lockDuration := LockoutFor(attempts)
	if lockDuration == 0 {
		return nil
	}

	return b.redisCache.Set(ctx, lockKey(ip), "locked", lockDuration)
}

// RecordSuccessfulAttempt clears failed attempts on successful login
func (b *BruteForceProtection) RecordSuccessfulAttempt(ctx context.Context, ip string) error {
	if b == nil || b.redisCache == nil {
		return nil
	}
	return b.redisCache.Delete(ctx, attemptKey(ip), lockKey(ip))
}

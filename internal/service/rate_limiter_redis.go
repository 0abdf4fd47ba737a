package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Incrementa el contador del día y fija su vencimiento a medianoche UTC la primera vez.
const dailyQuotaScript = `
local used = redis.call("INCR", KEYS[1])
if used == 1 then
  redis.call("EXPIREAT", KEYS[1], ARGV[1])
end
return used
`

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type redisRateLimiter struct {
	client redisEvaler
	tier   RateLimitTier
	now    func() time.Time
}

// NewRedisRateLimiter comparte la cuota diaria del tier entre instancias; si Redis falla deja pasar.
func NewRedisRateLimiter(client *redis.Client, tier RateLimitTier) RateLimiter {
	if client == nil {
		return nil
	}
	return newRedisRateLimiter(client, tier)
}

func newRedisRateLimiter(client redisEvaler, tier RateLimitTier) *redisRateLimiter {
	if tier.RequestsPerDay <= 0 {
		tier.RequestsPerDay = 1
	}
	return &redisRateLimiter{
		client: client,
		tier:   tier,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// quotaKey arma analysis:rl:<tier>:<yyyy-mm-dd>:<clave>.
func (l *redisRateLimiter) quotaKey(key string, now time.Time) string {
	return fmt.Sprintf("analysis:rl:%s:%s:%s", l.tier.Name, dayBucket(now), key)
}

func (l *redisRateLimiter) Allow(key string) bool {
	if l == nil || l.client == nil {
		return true
	}
	key = normalizeLimiterKey(key)
	if key == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	now := l.now()
	used, err := l.client.Eval(ctx, dailyQuotaScript, []string{l.quotaKey(key, now)}, nextDay(now).Unix()).Int()
	if err != nil {
		return true
	}
	return used <= l.tier.RequestsPerDay
}

package service

import (
	"strings"
	"sync"
	"time"
)

// RateLimitTier define la cuota diaria de análisis de un plan.
type RateLimitTier struct {
	Name           string
	RequestsPerDay int
}

var rateLimitTiers = map[string]RateLimitTier{
	"free":       {Name: "free", RequestsPerDay: 5},
	"pro":        {Name: "pro", RequestsPerDay: 50},
	"enterprise": {Name: "enterprise", RequestsPerDay: 500},
}

// TierByName devuelve el tier pedido; los nombres desconocidos caen en free.
func TierByName(name string) RateLimitTier {
	if tier, ok := rateLimitTiers[strings.ToLower(strings.TrimSpace(name))]; ok {
		return tier
	}
	return rateLimitTiers["free"]
}

// RateLimiter limita la cantidad de análisis por clave de cliente.
type RateLimiter interface {
	Allow(key string) bool
}

// noopRateLimiter deja pasar todo; es el default con rate limiting deshabilitado.
type noopRateLimiter struct{}

func NewNoopRateLimiter() RateLimiter { return noopRateLimiter{} }

func (noopRateLimiter) Allow(string) bool { return true }

// dayBucket identifica el día UTC en que cae t. La cuota se reinicia a medianoche UTC.
func dayBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func nextDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}

type dailyCount struct {
	day   string
	count int
}

type memoryRateLimiter struct {
	mu     sync.Mutex
	tier   RateLimitTier
	counts map[string]dailyCount
	now    func() time.Time
}

// NewMemoryRateLimiter cuenta análisis por clave y por día UTC con la cuota del tier.
func NewMemoryRateLimiter(tier RateLimitTier) RateLimiter {
	if tier.RequestsPerDay <= 0 {
		tier.RequestsPerDay = 1
	}
	return &memoryRateLimiter{
		tier:   tier,
		counts: make(map[string]dailyCount),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (l *memoryRateLimiter) Allow(key string) bool {
	key = normalizeLimiterKey(key)
	if key == "" {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	day := dayBucket(l.now())
	entry := l.counts[key]
	if entry.day != day {
		entry = dailyCount{day: day}
	}
	if entry.count >= l.tier.RequestsPerDay {
		l.counts[key] = entry
		return false
	}
	entry.count++
	l.counts[key] = entry
	return true
}

// Sweep borra los contadores de días anteriores.
func (l *memoryRateLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	today := dayBucket(l.now())
	removed := 0
	for key, entry := range l.counts {
		if entry.day != today {
			delete(l.counts, key)
			removed++
		}
	}
	return removed
}

func normalizeLimiterKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

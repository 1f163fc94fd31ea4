package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"siteaudit/pkg/metrics"
)

type Config struct {
	RPS             float64
	Burst           int
	CleanupInterval time.Duration
	MaxAge          time.Duration
}

func DefaultConfig() Config {
	return Config{
		RPS:             10.0,
		Burst:           20,
		CleanupInterval: 5 * time.Minute,
		MaxAge:          10 * time.Minute,
	}
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter keeps one token bucket per key. Idle buckets are dropped by
// Cleanup.
type KeyedLimiter struct {
	cfg      Config
	mu       sync.Mutex
	limiters map[string]*entry
	now      func() time.Time
}

func New(cfg Config) *KeyedLimiter {
	def := DefaultConfig()
	if cfg.RPS <= 0 {
		cfg.RPS = def.RPS
	}
	if cfg.Burst < 1 {
		cfg.Burst = def.Burst
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = def.MaxAge
	}
	return &KeyedLimiter{
		cfg:      cfg,
		limiters: make(map[string]*entry),
		now:      time.Now,
	}
}

func (l *KeyedLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rate.Limit(l.cfg.RPS), l.cfg.Burst)}
		l.limiters[key] = e
	}
	e.lastSeen = l.now()
	return e.limiter
}

func (l *KeyedLimiter) Allow(key string) bool {
	return l.get(key).Allow()
}

// Wait blocks until key has a token or ctx is done.
func (l *KeyedLimiter) Wait(ctx context.Context, key string) error {
	lim := l.get(key)
	if lim.Allow() {
		metrics.RateLimitRequestsTotal.WithLabelValues("allowed").Inc()
		return nil
	}

	metrics.RateLimitRequestsTotal.WithLabelValues("delayed").Inc()
	return lim.Wait(ctx)
}

func (l *KeyedLimiter) Remaining(key string) int {
	lim := l.get(key)
	remaining := int(lim.Tokens())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Cleanup drops buckets idle for longer than MaxAge and reports how many
// were removed.
func (l *KeyedLimiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, e := range l.limiters {
		if now.Sub(e.lastSeen) > l.cfg.MaxAge {
			delete(l.limiters, key)
			removed++
		}
	}
	return removed
}

// Run calls Cleanup every CleanupInterval until ctx is done.
func (l *KeyedLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Cleanup()
		}
	}
}

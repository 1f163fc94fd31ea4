// Package dedup suppresses audit jobs that repeat an audit already claimed
// for the same site within a time window.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"siteaudit/internal/config"
	"siteaudit/internal/constants"
	"siteaudit/internal/logger"
	"siteaudit/pkg/metrics"
	"siteaudit/pkg/models"
)

type Guard struct {
	repo         Repository
	window       time.Duration
	allowOnError bool
	logger       logger.Logger
	now          func() time.Time
}

func NewGuard(repo Repository, cfg config.DedupConfig, log logger.Logger) *Guard {
	if log == nil {
		log = logger.NopLogger()
	}
	return &Guard{
		repo:         repo,
		window:       cfg.Window,
		allowOnError: cfg.OnRedisError != constants.FallbackDeny,
		logger:       log,
		now:          time.Now,
	}
}

// Key identifies a job by audit type and site key.
func Key(msg models.AuditMessage) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s", msg.Type, msg.SiteKey())))
	return constants.CacheKeyPrefixDedup + hex.EncodeToString(sum[:])
}

// Acquire claims msg for the current window. It reports false when another
// job already holds the claim.
func (g *Guard) Acquire(ctx context.Context, msg models.AuditMessage) (bool, error) {
	start := time.Now()
	fresh, err := g.repo.SetNX(ctx, Key(msg), g.now().Unix(), g.window)
	if err != nil {
		metrics.ObserveDedup("error", time.Since(start))
		if g.allowOnError {
			g.logger.WarnwCtx(ctx, "Redis error during dedup check, allowing job", "error", err)
			return true, nil
		}
		return false, fmt.Errorf("dedup check failed: %w", err)
	}

	status := "unique"
	if !fresh {
		status = "duplicate"
	}
	metrics.ObserveDedup(status, time.Since(start))
	return fresh, nil
}

// Release drops the claim so a retried job is not treated as a duplicate.
func (g *Guard) Release(ctx context.Context, msg models.AuditMessage) {
	if err := g.repo.Delete(ctx, Key(msg)); err != nil {
		g.logger.WarnwCtx(ctx, "Failed to release dedup claim", "error", err)
	}
}

package dataaccess

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"siteaudit/internal/configuration"
	"siteaudit/internal/constants"
	"siteaudit/internal/logger"
	"siteaudit/pkg/metrics"
	"siteaudit/pkg/models"
)

// CachedDataAccess serves reads from Redis before falling back to next.
// Redis failures never fail a read; they are logged and skipped. Missing
// entities are not cached so that newly created sites show up at once.
type CachedDataAccess struct {
	next   DataAccess
	client redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedDataAccess(next DataAccess, client redis.Cmdable, ttl time.Duration, log logger.Logger) *CachedDataAccess {
	return &CachedDataAccess{next: next, client: client, ttl: ttl, logger: log}
}

func (c *CachedDataAccess) GetSiteByID(ctx context.Context, siteID string) (*models.Site, error) {
	return cached(ctx, c, "site", constants.CacheKeyPrefixSite+siteID, func() (*models.Site, error) {
		return c.next.GetSiteByID(ctx, siteID)
	})
}

func (c *CachedDataAccess) GetOrganizationByID(ctx context.Context, orgID string) (*models.Organization, error) {
	return cached(ctx, c, "organization", constants.CacheKeyPrefixOrg+orgID, func() (*models.Organization, error) {
		return c.next.GetOrganizationByID(ctx, orgID)
	})
}

func (c *CachedDataAccess) GetConfiguration(ctx context.Context) (*configuration.Configuration, error) {
	return cached(ctx, c, "configuration", constants.CacheKeyPrefixConfig, func() (*configuration.Configuration, error) {
		return c.next.GetConfiguration(ctx)
	})
}

func (c *CachedDataAccess) AddAudit(ctx context.Context, record *models.AuditRecord) (*models.AuditRecord, error) {
	return c.next.AddAudit(ctx, record)
}

// InvalidateConfiguration drops the cached configuration.
func (c *CachedDataAccess) InvalidateConfiguration(ctx context.Context) error {
	return NewCacheInvalidator(c.client).InvalidateConfiguration(ctx)
}

// CacheInvalidator drops cached entries for processes that only write.
type CacheInvalidator struct {
	client redis.Cmdable
}

func NewCacheInvalidator(client redis.Cmdable) *CacheInvalidator {
	return &CacheInvalidator{client: client}
}

func (i *CacheInvalidator) InvalidateConfiguration(ctx context.Context) error {
	return i.client.Del(ctx, constants.CacheKeyPrefixConfig).Err()
}

func cached[T any](ctx context.Context, c *CachedDataAccess, entity, key string, load func() (*T, error)) (*T, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var value T
		jsonErr := json.Unmarshal(raw, &value)
		if jsonErr == nil {
			metrics.IncCacheRequest(entity, "hit")
			return &value, nil
		}
		c.logger.WarnwCtx(ctx, "Discarding undecodable cache entry", "key", key, "error", jsonErr)
	case errors.Is(err, redis.Nil):
		metrics.IncCacheRequest(entity, "miss")
	default:
		metrics.IncCacheRequest(entity, "error")
		c.logger.WarnwCtx(ctx, "Cache read failed, falling back to store", "key", key, "error", err)
	}

	value, err := load()
	if err != nil || value == nil {
		return value, err
	}

	if data, err := json.Marshal(value); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.WarnwCtx(ctx, "Cache write failed", "key", key, "error", err)
		}
	}

	return value, nil
}

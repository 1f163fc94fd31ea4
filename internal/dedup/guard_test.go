package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siteaudit/internal/config"
	"siteaudit/pkg/models"
)

type memoryRepo struct {
	keys map[string]time.Duration
	err  error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{keys: make(map[string]time.Duration)}
}

func (m *memoryRepo) SetNX(_ context.Context, key string, _ interface{}, ttl time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = ttl
	return true, nil
}

func (m *memoryRepo) Delete(_ context.Context, key string) error {
	delete(m.keys, key)
	return m.err
}

func TestGuard_AcquireAndRelease(t *testing.T) {
	repo := newMemoryRepo()
	g := NewGuard(repo, config.DedupConfig{Enabled: true, Window: time.Minute}, nil)
	ctx := context.Background()
	msg := models.AuditMessage{Type: "cwv", SiteID: "site-1"}

	fresh, err := g.Acquire(ctx, msg)
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Equal(t, time.Minute, repo.keys[Key(msg)])

	fresh, err = g.Acquire(ctx, models.AuditMessage{Type: "cwv", URL: "site-1"})
	require.NoError(t, err)
	assert.False(t, fresh, "url and siteId name the same site")

	fresh, err = g.Acquire(ctx, models.AuditMessage{Type: "apex", SiteID: "site-1"})
	require.NoError(t, err)
	assert.True(t, fresh)

	g.Release(ctx, msg)
	fresh, err = g.Acquire(ctx, msg)
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestGuard_RedisErrorFallback(t *testing.T) {
	msg := models.AuditMessage{Type: "cwv", SiteID: "site-1"}

	allow := NewGuard(&memoryRepo{err: errors.New("connection refused")}, config.DedupConfig{Window: time.Minute, OnRedisError: "allow"}, nil)
	fresh, err := allow.Acquire(context.Background(), msg)
	require.NoError(t, err)
	assert.True(t, fresh)

	deny := NewGuard(&memoryRepo{err: errors.New("connection refused")}, config.DedupConfig{Window: time.Minute, OnRedisError: "deny"}, nil)
	fresh, err = deny.Acquire(context.Background(), msg)
	require.Error(t, err)
	assert.False(t, fresh)
}

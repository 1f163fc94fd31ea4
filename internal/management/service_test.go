package management

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siteaudit/internal/configuration"
	apperrors "siteaudit/pkg/errors"
	"siteaudit/pkg/models"
)

type memoryStore struct {
	versions []*configuration.Configuration
}

func (m *memoryStore) GetLatest(context.Context) (*configuration.Configuration, error) {
	if len(m.versions) == 0 {
		return nil, nil
	}
	latest := m.versions[len(m.versions)-1]
	cp := configuration.New()
	cp.Version = latest.Version
	for name, h := range latest.Handlers {
		cp.SetHandler(name, h)
	}
	return cp, nil
}

func (m *memoryStore) Save(_ context.Context, cfg *configuration.Configuration) (int, error) {
	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	cfg.Version = len(m.versions) + 1
	m.versions = append(m.versions, cfg)
	return cfg.Version, nil
}

type countingInvalidator struct {
	calls int
	err   error
}

func (c *countingInvalidator) InvalidateConfiguration(context.Context) error {
	c.calls++
	return c.err
}

func TestService_ApplyWritesNewVersions(t *testing.T) {
	store := &memoryStore{}
	inv := &countingInvalidator{}
	svc := NewService(store, nil, WithInvalidator(inv))
	ctx := context.Background()
	site := &models.Site{ID: "site-1", OrganizationID: "org-1"}

	_, err := svc.SetDefault(ctx, "cwv", true, "ops")
	require.NoError(t, err)

	cfg, err := svc.Apply(ctx, Change{Handler: "cwv", Scope: ScopeOrg, ID: "org-1", Enable: false, ChangedBy: "ops"})
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Version)
	assert.False(t, cfg.IsHandlerEnabledForSite("cwv", site, nil))

	cfg, err = svc.Apply(ctx, Change{Handler: "cwv", Scope: ScopeOrg, ID: "org-1", Enable: true})
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Version)
	assert.True(t, cfg.IsHandlerEnabledForSite("cwv", site, nil))

	assert.Len(t, store.versions, 3)
	assert.Equal(t, 3, inv.calls)
}

func TestService_ApplyUnknownHandlerIsCreated(t *testing.T) {
	svc := NewService(&memoryStore{}, nil)
	cfg, err := svc.Apply(context.Background(), Change{Handler: "apex", Scope: ScopeSite, ID: "site-1", Enable: true})
	require.NoError(t, err)

	h, ok := cfg.GetHandler("apex")
	require.True(t, ok)
	assert.Equal(t, []string{"site-1"}, h.Enabled.Sites)
	assert.False(t, h.EnabledByDefault)
}

func TestService_ApplyValidation(t *testing.T) {
	svc := NewService(&memoryStore{}, nil)
	ctx := context.Background()

	_, err := svc.Apply(ctx, Change{Scope: ScopeSite, ID: "site-1"})
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.Apply(ctx, Change{Handler: "cwv", Scope: "region", ID: "eu"})
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.Apply(ctx, Change{Handler: "cwv", Scope: ScopeSite})
	assert.True(t, apperrors.IsValidation(err))
}

func TestService_InvalidationFailureDoesNotFailChange(t *testing.T) {
	inv := &countingInvalidator{err: errors.New("redis down")}
	svc := NewService(&memoryStore{}, nil, WithInvalidator(inv))

	_, err := svc.SetDefault(context.Background(), "cwv", true, "ops")
	require.NoError(t, err)
	assert.Equal(t, 1, inv.calls)
}

package dispatch

import (
	"context"
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siteaudit/internal/audit"
	"siteaudit/internal/configuration"
	"siteaudit/pkg/errors"
	"siteaudit/pkg/models"
	"siteaudit/pkg/ratelimit"
)

type stubDataAccess struct {
	audits int
}

func (s *stubDataAccess) GetSiteByID(_ context.Context, id string) (*models.Site, error) {
	if id != "site-id" {
		return nil, nil
	}
	return &models.Site{ID: id, BaseURL: "https://space.cat", OrganizationID: "org-id"}, nil
}

func (s *stubDataAccess) GetOrganizationByID(_ context.Context, id string) (*models.Organization, error) {
	return &models.Organization{ID: id}, nil
}

func (s *stubDataAccess) GetConfiguration(context.Context) (*configuration.Configuration, error) {
	cfg := configuration.New()
	cfg.SetHandler("dummy", configuration.HandlerConfig{EnabledByDefault: true})
	cfg.SetHandler("flaky", configuration.HandlerConfig{EnabledByDefault: true})
	cfg.SetHandler("notify", configuration.HandlerConfig{EnabledByDefault: true})
	return cfg, nil
}

func (s *stubDataAccess) AddAudit(_ context.Context, r *models.AuditRecord) (*models.AuditRecord, error) {
	s.audits++
	return r, nil
}

type stubQueue struct{ sent int }

func (q *stubQueue) SendMessage(context.Context, string, interface{}) error {
	q.sent++
	return nil
}

func newDispatcher(t *testing.T, limiter *ratelimit.KeyedLimiter) (*Dispatcher, *stubDataAccess, *stubQueue) {
	t.Helper()

	ok, err := audit.NewBuilder().
		WithURLResolver(audit.NoopURLResolver).
		WithRunner(func(context.Context, string, *audit.Runtime, *models.Site) (*models.RunnerResult, error) {
			return &models.RunnerResult{AuditResult: map[string]interface{}{"metric": 42}, FullAuditRef: "ref"}, nil
		}).
		Build()
	require.NoError(t, err)

	flaky, err := audit.NewBuilder().
		WithURLResolver(audit.NoopURLResolver).
		WithRunner(func(context.Context, string, *audit.Runtime, *models.Site) (*models.RunnerResult, error) {
			return nil, stderrors.New("upstream timeout")
		}).
		Build()
	require.NoError(t, err)

	reg := NewRegistry()
	reg.Register("dummy", ok)
	reg.Register("flaky", flaky)

	da := &stubDataAccess{}
	q := &stubQueue{}
	rt := &audit.Runtime{DataAccess: da, Queue: q, Env: audit.Env{AuditResultsQueueURL: "audit-results"}}
	return NewDispatcher(reg, rt, limiter, nil), da, q
}

func TestDispatcher_Handle(t *testing.T) {
	tests := []struct {
		name       string
		msg        models.AuditMessage
		wantStatus int
		wantErr    bool
		wantFatal  bool
	}{
		{
			name:       "success",
			msg:        models.AuditMessage{Type: "dummy", URL: "site-id"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "invalid message",
			msg:        models.AuditMessage{URL: "site-id"},
			wantStatus: http.StatusBadRequest,
			wantErr:    true,
			wantFatal:  true,
		},
		{
			name:       "unknown type",
			msg:        models.AuditMessage{Type: "lhs", SiteID: "site-id"},
			wantStatus: http.StatusNotFound,
			wantErr:    true,
			wantFatal:  true,
		},
		{
			name:       "unknown site",
			msg:        models.AuditMessage{Type: "dummy", SiteID: "other"},
			wantStatus: http.StatusNotFound,
			wantErr:    true,
			wantFatal:  true,
		},
		{
			name:       "runner failure is retryable",
			msg:        models.AuditMessage{Type: "flaky", SiteID: "site-id"},
			wantStatus: http.StatusInternalServerError,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _, _ := newDispatcher(t, nil)
			resp, err := d.Handle(context.Background(), tt.msg)
			require.NotNil(t, resp)
			assert.Equal(t, tt.wantStatus, resp.Status)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantFatal, errors.IsFatal(err))
		})
	}
}

func TestDispatcher_HandlerFuncRunsPipeline(t *testing.T) {
	d, da, q := newDispatcher(t, ratelimit.New(ratelimit.Config{RPS: 100, Burst: 10}))

	err := d.HandlerFunc()(context.Background(), models.AuditMessage{Type: "dummy", URL: "site-id"})
	require.NoError(t, err)
	assert.Equal(t, 1, da.audits)
	assert.Equal(t, 1, q.sent)
}

func TestDispatcher_RateLimitCancelled(t *testing.T) {
	d, _, _ := newDispatcher(t, ratelimit.New(ratelimit.Config{RPS: 0.001, Burst: 1}))
	_, err := d.Handle(context.Background(), models.AuditMessage{Type: "dummy", URL: "site-id"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp, err := d.Handle(ctx, models.AuditMessage{Type: "dummy", URL: "site-id"})
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Status)
	assert.False(t, errors.IsFatal(err))
}

func TestRegistry_Types(t *testing.T) {
	reg := NewRegistry()
	a, err := audit.NewBuilder().WithRunner(func(context.Context, string, *audit.Runtime, *models.Site) (*models.RunnerResult, error) {
		return &models.RunnerResult{}, nil
	}).Build()
	require.NoError(t, err)

	reg.Register("cwv", a)
	reg.Register("apex", a)
	assert.Equal(t, []string{"apex", "cwv"}, reg.Types())

	got, ok := reg.Get("cwv")
	assert.True(t, ok)
	assert.Same(t, a, got)
}

type fakeDedup struct {
	claimed  map[string]bool
	released int
}

func (f *fakeDedup) Acquire(_ context.Context, msg models.AuditMessage) (bool, error) {
	key := msg.Type + "|" + msg.SiteKey()
	if f.claimed[key] {
		return false, nil
	}
	f.claimed[key] = true
	return true, nil
}

func (f *fakeDedup) Release(_ context.Context, msg models.AuditMessage) {
	delete(f.claimed, msg.Type+"|"+msg.SiteKey())
	f.released++
}

func TestDispatcher_Dedup(t *testing.T) {
	d, da, _ := newDispatcher(t, nil)
	dd := &fakeDedup{claimed: make(map[string]bool)}
	d.WithDeduplicator(dd)
	ctx := context.Background()

	_, err := d.Handle(ctx, models.AuditMessage{Type: "dummy", URL: "site-id"})
	require.NoError(t, err)
	resp, err := d.Handle(ctx, models.AuditMessage{Type: "dummy", SiteID: "site-id"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, 1, da.audits)

	// failed runs give up their claim so the retry is not skipped
	_, err = d.Handle(ctx, models.AuditMessage{Type: "flaky", SiteID: "site-id"})
	require.Error(t, err)
	assert.Equal(t, 1, dd.released)
	_, err = d.Handle(ctx, models.AuditMessage{Type: "flaky", SiteID: "site-id"})
	require.Error(t, err)
	assert.Equal(t, 2, dd.released)
}

func TestDispatcher_PostProcessorFailureIsNotRetried(t *testing.T) {
	d, da, q := newDispatcher(t, nil)
	notifyErr := stderrors.New("slack unavailable")
	a, err := audit.NewBuilder().
		WithURLResolver(audit.NoopURLResolver).
		WithRunner(func(context.Context, string, *audit.Runtime, *models.Site) (*models.RunnerResult, error) {
			return &models.RunnerResult{AuditResult: map[string]interface{}{"metric": 42}, FullAuditRef: "ref"}, nil
		}).
		WithPostProcessors(func(context.Context, string, *models.AuditRecord, *audit.Runtime) error {
			return notifyErr
		}).
		Build()
	require.NoError(t, err)
	d.registry.Register("notify", a)
	dd := &fakeDedup{claimed: make(map[string]bool)}
	d.WithDeduplicator(dd)

	resp, err := d.Handle(context.Background(), models.AuditMessage{Type: "notify", SiteID: "site-id"})
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.True(t, errors.IsFatal(err))
	assert.ErrorIs(t, err, notifyErr)
	assert.Equal(t, "post-processing failed for notify: slack unavailable", errors.Message(err))

	assert.Equal(t, 1, da.audits)
	assert.Equal(t, 1, q.sent)
	assert.Zero(t, dd.released)
}

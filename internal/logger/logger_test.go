package logger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"siteaudit/pkg/logging"
)

func TestWarnwCtx_PrependsContextFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := FromZap(zap.New(core))
	log.(*SugaredLogger).SetServiceName("audit-worker")

	ctx := logging.WithAudit(context.Background(), "cwv", "site-1")
	log.WarnwCtx(ctx, "cwv audits disabled", "extra", 1)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	fields := entry.ContextMap()
	assert.Equal(t, "cwv", fields["audit_type"])
	assert.Equal(t, "site-1", fields["site_id"])
	assert.Equal(t, "audit-worker", fields["service_name"])
	assert.EqualValues(t, 1, fields["extra"])
}

func TestNew_WithFile(t *testing.T) {
	log, err := New(Options{Level: "debug", File: filepath.Join(t.TempDir(), "worker.log")})
	require.NoError(t, err)
	log.Infow("logger online")
	_ = log.Sync()
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  port: 9090
broker:
  type: kafka
  kafka:
    brokers: ["localhost:9092"]
    group_id: audit-worker
    input_topic: audit_jobs
    dlq_topic: audit_jobs_dlq
database:
  mongodb:
    uri: mongodb://localhost:27017
    database: siteaudit
audit:
  results_queue_url: audit_results
  redirect:
    max_hops: 5
    timeout: 3s
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Broker.Kafka.Brokers)
	assert.Equal(t, "audit_results", cfg.Audit.ResultsQueueURL)
	assert.Equal(t, 5, cfg.Audit.Redirect.MaxHops)
	assert.Equal(t, 3*time.Second, cfg.Audit.Redirect.Timeout)
	assert.Equal(t, 3, cfg.Broker.Kafka.Retry.MaxAttempts)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("AUDIT_RESULTS_QUEUE_URL", "from-env")
	t.Setenv("BROKER_KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Audit.ResultsQueueURL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Broker.Kafka.Brokers)
}

func TestValidateStatic(t *testing.T) {
	valid := func() *Config {
		cfg, err := LoadConfig(writeConfig(t, sampleConfig))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing results queue", func(c *Config) { c.Audit.ResultsQueueURL = "" }, "audit.results_queue_url"},
		{"bad mongo uri", func(c *Config) { c.Database.MongoDB.URI = "http://x" }, "database.mongodb.uri"},
		{"unknown broker", func(c *Config) { c.Broker.Type = "rabbitmq" }, "broker.type"},
		{"negative hops", func(c *Config) { c.Audit.Redirect.MaxHops = -1 }, "audit.redirect.max_hops"},
		{"rate limit without rps", func(c *Config) { c.Audit.RateLimit.Enabled = true }, "audit.rate_limit"},
		{"dedup without window", func(c *Config) { c.Audit.Dedup = DedupConfig{Enabled: true, OnRedisError: "allow"} }, "audit.dedup.window"},
		{"dedup bad fallback", func(c *Config) {
			c.Audit.Dedup = DedupConfig{Enabled: true, Window: time.Minute, OnRedisError: "retry"}
		}, "audit.dedup.on_redis_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := ValidateStatic(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

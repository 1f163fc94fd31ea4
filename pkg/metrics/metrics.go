package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	AuditsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audits_total",
			Help: "Total number of audit runs by type and outcome (count)",
		},
		[]string{"type", "status"},
	)

	AuditDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audit_duration_ms",
			Help:    "End to end audit run duration in milliseconds",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		},
		[]string{"type", "status"},
	)

	AuditStageFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_stage_failures_total",
			Help: "Total number of audit failures by pipeline stage (count)",
		},
		[]string{"type", "stage"},
	)

	ResolverRedirectHops = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "url_resolver_redirect_hops",
			Help:    "Number of redirects followed while resolving a base URL (count)",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
		},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of audit jobs checked against the rate limit (count)",
		},
		[]string{"status"},
	)

	DedupJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_dedup_jobs_total",
			Help: "Total number of audit jobs checked for duplicates by outcome (count)",
		},
		[]string{"status"},
	)

	DedupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audit_dedup_duration_ms",
			Help:    "Duration of duplicate checks in milliseconds",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		},
		[]string{"status"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to DLQ (count)",
		},
		[]string{"service", "topic", "reason"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	CacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataaccess_cache_requests_total",
			Help: "Total number of data access cache lookups (count)",
		},
		[]string{"entity", "result"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"database", "operation", "status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_ms",
			Help:    "Duration of database queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"database", "operation"},
	)
)

var (
	auditOnce          sync.Once
	brokerOnce         sync.Once
	circuitBreakerOnce sync.Once
	dataAccessOnce     sync.Once
)

func RegisterAuditMetrics() {
	auditOnce.Do(func() {
		prometheus.MustRegister(AuditsTotal)
		prometheus.MustRegister(AuditDuration)
		prometheus.MustRegister(AuditStageFailuresTotal)
		prometheus.MustRegister(ResolverRedirectHops)
		prometheus.MustRegister(RateLimitRequestsTotal)
		prometheus.MustRegister(DedupJobsTotal)
		prometheus.MustRegister(DedupDuration)
	})
}

func RegisterBrokerMetrics() {
	brokerOnce.Do(func() {
		prometheus.MustRegister(RetryAttemptsTotal)
		prometheus.MustRegister(DLQMessagesTotal)
		prometheus.MustRegister(KafkaMessagesReadTotal)
		prometheus.MustRegister(KafkaMessagesWrittenTotal)
		prometheus.MustRegister(KafkaWriteDuration)
	})
}

func RegisterCircuitBreakerMetrics() {
	circuitBreakerOnce.Do(func() {
		prometheus.MustRegister(CircuitBreakerState)
		prometheus.MustRegister(CircuitBreakerRequests)
		prometheus.MustRegister(CircuitBreakerFailures)
	})
}

func RegisterDataAccessMetrics() {
	dataAccessOnce.Do(func() {
		prometheus.MustRegister(CacheRequestsTotal)
		prometheus.MustRegister(DatabaseQueriesTotal)
		prometheus.MustRegister(DatabaseQueryDuration)
	})
}

func ObserveAudit(auditType, status string, duration time.Duration) {
	AuditsTotal.WithLabelValues(auditType, status).Inc()
	AuditDuration.WithLabelValues(auditType, status).Observe(float64(duration.Milliseconds()))
}

func IncAuditStageFailure(auditType, stage string) {
	AuditStageFailuresTotal.WithLabelValues(auditType, stage).Inc()
}

func ObserveRedirectHops(hops int) {
	ResolverRedirectHops.Observe(float64(hops))
}

func ObserveDedup(status string, duration time.Duration) {
	DedupJobsTotal.WithLabelValues(status).Inc()
	DedupDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

func IncCacheRequest(entity, result string) {
	CacheRequestsTotal.WithLabelValues(entity, result).Inc()
}

func IncDatabaseQuery(database, operation, status string) {
	DatabaseQueriesTotal.WithLabelValues(database, operation, status).Inc()
}

func ObserveDatabaseQueryDuration(database, operation string, duration time.Duration) {
	DatabaseQueryDuration.WithLabelValues(database, operation).Observe(float64(duration.Milliseconds()))
}

package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout     = 10 * time.Second
	DefaultMaxRedirectHops = 20
	DefaultUserAgent       = "siteaudit-worker/1.0"
	DefaultScheme          = "https://"
)

const (
	CacheKeyPrefixSite   = "site:"
	CacheKeyPrefixOrg    = "org:"
	CacheKeyPrefixConfig = "configuration:latest"
	CacheKeyPrefixDedup  = "audit:dedup:"
)

const (
	FallbackAllow = "allow"
	FallbackDeny  = "deny"
)

const (
	DefaultInputTopic = "audit_jobs"
)

const (
	DefaultMongoDBName = "siteaudit"

	CollectionSites         = "sites"
	CollectionOrganizations = "organizations"
	CollectionAudits        = "audits"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultCacheTTLSeconds = 300
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

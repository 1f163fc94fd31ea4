package logging

import (
	"context"
)

type contextKey string

const (
	TraceIDKey     contextKey = "trace_id"
	MessageIDKey   contextKey = "message_id"
	ServiceNameKey contextKey = "service_name"
	AuditTypeKey   contextKey = "audit_type"
	SiteIDKey      contextKey = "site_id"
)

// orderedKeys fixes the order in which context fields are emitted.
var orderedKeys = []contextKey{TraceIDKey, MessageIDKey, ServiceNameKey, AuditTypeKey, SiteIDKey}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, MessageIDKey, messageID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, ServiceNameKey, serviceName)
}

// WithAudit tags ctx with the audit type and site key being processed.
func WithAudit(ctx context.Context, auditType, siteID string) context.Context {
	ctx = context.WithValue(ctx, AuditTypeKey, auditType)
	return context.WithValue(ctx, SiteIDKey, siteID)
}

func get(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

func GetTraceID(ctx context.Context) string {
	return get(ctx, TraceIDKey)
}

func GetMessageID(ctx context.Context) string {
	return get(ctx, MessageIDKey)
}

func GetServiceName(ctx context.Context) string {
	return get(ctx, ServiceNameKey)
}

func GetAuditType(ctx context.Context) string {
	return get(ctx, AuditTypeKey)
}

func GetSiteID(ctx context.Context) string {
	return get(ctx, SiteIDKey)
}

// GetLogFields returns the non-empty context fields as alternating
// key/value pairs for sugared zap loggers.
func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, len(orderedKeys)*2)
	for _, key := range orderedKeys {
		if v := get(ctx, key); v != "" {
			fields = append(fields, string(key), v)
		}
	}
	return fields
}

package models

import "time"

// AuditMessage is the inbound job consumed from the audit jobs topic.
// URL is historically overloaded to carry a site id; it is treated as an
// opaque site key, never parsed as a URL.
type AuditMessage struct {
	Type         string                 `json:"type" validate:"required"`
	URL          string                 `json:"url,omitempty" validate:"required_without=SiteID"`
	SiteID       string                 `json:"siteId,omitempty" validate:"required_without=URL"`
	AuditContext map[string]interface{} `json:"auditContext,omitempty"`
}

// SiteKey returns the identifier handed to the site provider. SiteID wins
// over URL when both are present.
func (m AuditMessage) SiteKey() string {
	if m.SiteID != "" {
		return m.SiteID
	}
	return m.URL
}

// AuditResultMessage is published downstream once an audit is persisted.
type AuditResultMessage struct {
	Type         string                 `json:"type"`
	URL          string                 `json:"url"`
	AuditContext map[string]interface{} `json:"auditContext"`
	AuditResult  map[string]interface{} `json:"auditResult"`
}

// RunnerResult is what an audit runner hands back to the pipeline.
type RunnerResult struct {
	AuditResult  map[string]interface{} `json:"auditResult"`
	FullAuditRef string                 `json:"fullAuditRef"`
}

// AuditRecord is the immutable, persisted outcome of one audit run.
type AuditRecord struct {
	ID           string                 `json:"id,omitempty" bson:"_id,omitempty"`
	SiteID       string                 `json:"siteId" bson:"site_id"`
	IsLive       bool                   `json:"isLive" bson:"is_live"`
	AuditedAt    time.Time              `json:"auditedAt" bson:"audited_at"`
	AuditType    string                 `json:"auditType" bson:"audit_type"`
	AuditResult  map[string]interface{} `json:"auditResult" bson:"audit_result"`
	FullAuditRef string                 `json:"fullAuditRef" bson:"full_audit_ref"`
}

// DeadLetter wraps an audit job that exhausted its retries.
type DeadLetter struct {
	ID          string       `json:"id"`
	Message     AuditMessage `json:"message"`
	Reason      string       `json:"reason"`
	SourceTopic string       `json:"sourceTopic"`
	Timestamp   time.Time    `json:"timestamp"`
}

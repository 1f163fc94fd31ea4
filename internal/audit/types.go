package audit

import (
	"context"

	"siteaudit/internal/broker"
	"siteaudit/internal/dataaccess"
	"siteaudit/internal/logger"
	"siteaudit/pkg/models"
)

// Env holds the environment values audits read at run time.
type Env struct {
	AuditResultsQueueURL string
}

// Runtime carries the collaborators of a single Run. It is supplied by the
// caller on every invocation; an Audit keeps no reference to it.
type Runtime struct {
	DataAccess dataaccess.DataAccess
	Queue      broker.QueueClient
	Env        Env
	Logger     logger.Logger
}

func (rt *Runtime) log() logger.Logger {
	if rt == nil || rt.Logger == nil {
		return logger.NopLogger()
	}
	return rt.Logger
}

// Response is the HTTP-style outcome of a Run.
type Response struct {
	Status int `json:"status"`
}

type (
	SiteProvider  func(ctx context.Context, siteID string, rt *Runtime) (*models.Site, error)
	OrgProvider   func(ctx context.Context, orgID string, rt *Runtime) (*models.Organization, error)
	URLResolver   func(ctx context.Context, site *models.Site) (string, error)
	Runner        func(ctx context.Context, baseURL string, rt *Runtime, site *models.Site) (*models.RunnerResult, error)
	Persister     func(ctx context.Context, record *models.AuditRecord, rt *Runtime) error
	MessageSender func(ctx context.Context, msg *models.AuditResultMessage, rt *Runtime) error
	PostProcessor func(ctx context.Context, finalURL string, record *models.AuditRecord, rt *Runtime) error
)

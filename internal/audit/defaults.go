package audit

import (
	"context"

	"siteaudit/pkg/errors"
	"siteaudit/pkg/models"
)

func DefaultSiteProvider(ctx context.Context, siteID string, rt *Runtime) (*models.Site, error) {
	if rt == nil || rt.DataAccess == nil {
		return nil, errors.Validation("data access is required")
	}

	site, err := rt.DataAccess.GetSiteByID(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, errors.NotFound("Site with id %s not found", siteID)
	}
	return site, nil
}

func DefaultOrgProvider(ctx context.Context, orgID string, rt *Runtime) (*models.Organization, error) {
	if rt == nil || rt.DataAccess == nil {
		return nil, errors.Validation("data access is required")
	}

	org, err := rt.DataAccess.GetOrganizationByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, errors.NotFound("Org with id %s not found", orgID)
	}
	return org, nil
}

// DefaultPersister stores the record as is.
func DefaultPersister(ctx context.Context, record *models.AuditRecord, rt *Runtime) error {
	if rt == nil || rt.DataAccess == nil {
		return errors.Validation("data access is required")
	}
	_, err := rt.DataAccess.AddAudit(ctx, record)
	return err
}

// DefaultMessageSender publishes msg to the queue named by
// AUDIT_RESULTS_QUEUE_URL.
func DefaultMessageSender(ctx context.Context, msg *models.AuditResultMessage, rt *Runtime) error {
	if rt == nil || rt.Env.AuditResultsQueueURL == "" {
		return errors.Validation("AUDIT_RESULTS_QUEUE_URL is not configured")
	}
	if rt.Queue == nil {
		return errors.Validation("queue client is required")
	}
	return rt.Queue.SendMessage(ctx, rt.Env.AuditResultsQueueURL, msg)
}

package dataaccess

import (
	"context"

	"siteaudit/internal/configuration"
	"siteaudit/pkg/models"
)

// DataAccess is the persistence surface audits depend on. Lookups of
// missing entities return (nil, nil); errors are reserved for failures.
type DataAccess interface {
	GetSiteByID(ctx context.Context, siteID string) (*models.Site, error)
	GetOrganizationByID(ctx context.Context, orgID string) (*models.Organization, error)
	GetConfiguration(ctx context.Context) (*configuration.Configuration, error)
	AddAudit(ctx context.Context, record *models.AuditRecord) (*models.AuditRecord, error)
}

type EntityRepository interface {
	GetSiteByID(ctx context.Context, siteID string) (*models.Site, error)
	GetOrganizationByID(ctx context.Context, orgID string) (*models.Organization, error)
	AddAudit(ctx context.Context, record *models.AuditRecord) (*models.AuditRecord, error)
}

type ConfigurationStore interface {
	GetLatest(ctx context.Context) (*configuration.Configuration, error)
	Save(ctx context.Context, cfg *configuration.Configuration) (int, error)
}

// Store joins the entity repository and the configuration store into one
// DataAccess.
type Store struct {
	entities EntityRepository
	configs  ConfigurationStore
}

func NewStore(entities EntityRepository, configs ConfigurationStore) *Store {
	return &Store{entities: entities, configs: configs}
}

func (s *Store) GetSiteByID(ctx context.Context, siteID string) (*models.Site, error) {
	return s.entities.GetSiteByID(ctx, siteID)
}

func (s *Store) GetOrganizationByID(ctx context.Context, orgID string) (*models.Organization, error) {
	return s.entities.GetOrganizationByID(ctx, orgID)
}

func (s *Store) GetConfiguration(ctx context.Context) (*configuration.Configuration, error) {
	return s.configs.GetLatest(ctx)
}

func (s *Store) AddAudit(ctx context.Context, record *models.AuditRecord) (*models.AuditRecord, error) {
	return s.entities.AddAudit(ctx, record)
}

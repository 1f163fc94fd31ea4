package dataaccess

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"siteaudit/internal/constants"
	apperrors "siteaudit/pkg/errors"
	"siteaudit/pkg/metrics"
	"siteaudit/pkg/models"
)

type MongoRepository struct {
	sites  *mongo.Collection
	orgs   *mongo.Collection
	audits *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		sites:  db.Collection(constants.CollectionSites),
		orgs:   db.Collection(constants.CollectionOrganizations),
		audits: db.Collection(constants.CollectionAudits),
	}
}

func (r *MongoRepository) GetSiteByID(ctx context.Context, siteID string) (*models.Site, error) {
	var site models.Site
	found, err := r.findByID(ctx, r.sites, "get_site", siteID, &site)
	if err != nil || !found {
		return nil, err
	}
	return &site, nil
}

func (r *MongoRepository) GetOrganizationByID(ctx context.Context, orgID string) (*models.Organization, error) {
	var org models.Organization
	found, err := r.findByID(ctx, r.orgs, "get_organization", orgID, &org)
	if err != nil || !found {
		return nil, err
	}
	return &org, nil
}

// AddAudit inserts record. Audits are never updated, so an id collision is
// reported as an error rather than overwritten.
func (r *MongoRepository) AddAudit(ctx context.Context, record *models.AuditRecord) (*models.AuditRecord, error) {
	if record == nil {
		return nil, apperrors.Validation("audit record is required")
	}

	stored := *record
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}

	start := time.Now()
	_, err := r.audits.InsertOne(ctx, stored)
	observe("insert_audit", start, err)
	if err != nil {
		return nil, apperrors.Transport(err, "failed to store %s audit for site %s", stored.AuditType, stored.SiteID)
	}

	return &stored, nil
}

// SaveSite upserts a site document.
func (r *MongoRepository) SaveSite(ctx context.Context, site *models.Site) error {
	now := time.Now().UTC()
	if site.CreatedAt.IsZero() {
		site.CreatedAt = now
	}
	site.UpdatedAt = now
	return r.upsert(ctx, r.sites, "save_site", site.ID, site)
}

// SaveOrganization upserts an organization document.
func (r *MongoRepository) SaveOrganization(ctx context.Context, org *models.Organization) error {
	now := time.Now().UTC()
	if org.CreatedAt.IsZero() {
		org.CreatedAt = now
	}
	org.UpdatedAt = now
	return r.upsert(ctx, r.orgs, "save_organization", org.ID, org)
}

// LatestAudits returns the newest audits of auditType for siteID.
func (r *MongoRepository) LatestAudits(ctx context.Context, siteID, auditType string, limit int64) ([]models.AuditRecord, error) {
	filter := bson.M{"site_id": siteID, "audit_type": auditType}
	opts := options.Find().SetSort(bson.D{{Key: "audited_at", Value: -1}}).SetLimit(limit)

	start := time.Now()
	cursor, err := r.audits.Find(ctx, filter, opts)
	observe("find_audits", start, err)
	if err != nil {
		return nil, apperrors.Transport(err, "failed to query audits for site %s", siteID)
	}
	defer cursor.Close(ctx)

	var records []models.AuditRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, apperrors.Transport(err, "failed to decode audits for site %s", siteID)
	}
	return records, nil
}

func (r *MongoRepository) findByID(ctx context.Context, coll *mongo.Collection, op, id string, out interface{}) (bool, error) {
	start := time.Now()
	err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		observe(op, start, nil)
		return false, nil
	}
	observe(op, start, err)
	if err != nil {
		return false, apperrors.Transport(err, "failed to read %s %s", coll.Name(), id)
	}
	return true, nil
}

func (r *MongoRepository) upsert(ctx context.Context, coll *mongo.Collection, op, id string, doc interface{}) error {
	start := time.Now()
	_, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	observe(op, start, err)
	if err != nil {
		return apperrors.Transport(err, "failed to write %s %s", coll.Name(), id)
	}
	return nil
}

func observe(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.IncDatabaseQuery("mongodb", op, status)
	metrics.ObserveDatabaseQueryDuration("mongodb", op, time.Since(start))
}

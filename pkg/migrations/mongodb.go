package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"siteaudit/internal/constants"
)

// EnsureMongoIndexes creates the indexes the audit worker queries by.
// Collections themselves are created on first insert.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	plan := map[string][]mongo.IndexModel{
		constants.CollectionAudits: {
			{
				Keys:    bson.D{{Key: "site_id", Value: 1}, {Key: "audit_type", Value: 1}, {Key: "audited_at", Value: -1}},
				Options: options.Index().SetName("idx_audits_site_type_audited_at"),
			},
			{
				Keys:    bson.D{{Key: "audited_at", Value: -1}},
				Options: options.Index().SetName("idx_audits_audited_at"),
			},
		},
		constants.CollectionSites: {
			{
				Keys:    bson.D{{Key: "organization_id", Value: 1}},
				Options: options.Index().SetName("idx_sites_organization_id"),
			},
			{
				Keys:    bson.D{{Key: "base_url", Value: 1}},
				Options: options.Index().SetName("idx_sites_base_url").SetUnique(true),
			},
		},
	}

	for collection, indexes := range plan {
		_, err := db.Collection(collection).Indexes().CreateMany(ctx, indexes)
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
		}
	}

	return nil
}

package dataaccess

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"siteaudit/internal/configuration"
	apperrors "siteaudit/pkg/errors"
	"siteaudit/pkg/metrics"
)

const uniqueViolation = "23505"

// ConfigurationRepository keeps every configuration version as a JSONB row.
type ConfigurationRepository struct {
	db *sqlx.DB
}

func NewConfigurationRepository(db *sqlx.DB) *ConfigurationRepository {
	return &ConfigurationRepository{db: db}
}

type configurationRow struct {
	Version   int       `db:"version"`
	Data      []byte    `db:"data"`
	CreatedAt time.Time `db:"created_at"`
}

func (r *ConfigurationRepository) GetLatest(ctx context.Context) (*configuration.Configuration, error) {
	const q = `
		SELECT version, data, created_at
		FROM configurations
		ORDER BY version DESC
		LIMIT 1`

	start := time.Now()
	var row configurationRow
	err := r.db.GetContext(ctx, &row, q)
	if errors.Is(err, sql.ErrNoRows) {
		observePostgres("get_configuration", start, nil)
		return nil, nil
	}
	observePostgres("get_configuration", start, err)
	if err != nil {
		return nil, apperrors.Transport(err, "failed to read configuration")
	}

	cfg := configuration.New()
	if err := json.Unmarshal(row.Data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration version %d: %w", row.Version, err)
	}
	cfg.Version = row.Version

	return cfg, nil
}

// Save validates cfg and stores it as the next version, which it returns.
func (r *ConfigurationRepository) Save(ctx context.Context, cfg *configuration.Configuration) (int, error) {
	if err := cfg.Validate(); err != nil {
		return 0, err
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return 0, fmt.Errorf("failed to encode configuration: %w", err)
	}

	const q = `
		INSERT INTO configurations (version, data)
		VALUES ((SELECT COALESCE(MAX(version), 0) + 1 FROM configurations), $1)
		RETURNING version`

	start := time.Now()
	var version int
	err = r.db.GetContext(ctx, &version, q, data)
	observePostgres("save_configuration", start, err)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return 0, apperrors.Transport(err, "concurrent configuration update").AsRetryable()
		}
		return 0, apperrors.Transport(err, "failed to save configuration")
	}

	cfg.Version = version
	return version, nil
}

func observePostgres(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.IncDatabaseQuery("postgres", op, status)
	metrics.ObserveDatabaseQueryDuration("postgres", op, time.Since(start))
}

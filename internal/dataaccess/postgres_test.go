package dataaccess

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siteaudit/internal/configuration"
	apperrors "siteaudit/pkg/errors"
)

func newMockRepo(t *testing.T) (*ConfigurationRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewConfigurationRepository(sqlx.NewDb(db, "postgres")), mock
}

const selectLatest = `SELECT version, data, created_at\s+FROM configurations\s+ORDER BY version DESC`

func TestConfigurationRepository_GetLatest(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(selectLatest).
		WillReturnRows(sqlmock.NewRows([]string{"version", "data", "created_at"}).
			AddRow(7, []byte(`{"handlers":{"cwv":{"enabledByDefault":true}}}`), time.Now()))

	cfg, err := repo.GetLatest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 7, cfg.Version)

	h, ok := cfg.GetHandler("cwv")
	assert.True(t, ok)
	assert.True(t, h.EnabledByDefault)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigurationRepository_GetLatestEmpty(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(selectLatest).
		WillReturnRows(sqlmock.NewRows([]string{"version", "data", "created_at"}))

	cfg, err := repo.GetLatest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cfg)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigurationRepository_GetLatestFailure(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(selectLatest).WillReturnError(assert.AnError)

	_, err := repo.GetLatest(context.Background())
	require.Error(t, err)
	assert.Equal(t, "failed to read configuration", apperrors.Message(err))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestConfigurationRepository_Save(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`INSERT INTO configurations`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(4))

	cfg := configuration.New()
	cfg.EnableHandlerForSite("cwv", "site-1")

	version, err := repo.Save(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 4, version)
	assert.Equal(t, 4, cfg.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigurationRepository_SaveConflictIsRetryable(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`INSERT INTO configurations`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: uniqueViolation})

	_, err := repo.Save(context.Background(), configuration.New())
	require.Error(t, err)

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.IsRetryable())
}

func TestConfigurationRepository_SaveRejectsInvalid(t *testing.T) {
	repo, mock := newMockRepo(t)

	_, err := repo.Save(context.Background(), &configuration.Configuration{})
	assert.True(t, apperrors.IsValidation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

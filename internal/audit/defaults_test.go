package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siteaudit/pkg/errors"
	"siteaudit/pkg/models"
)

func TestDefaultProviders(t *testing.T) {
	_, _, rt, _ := newFixture()

	site, err := DefaultSiteProvider(context.Background(), "site-id", rt)
	require.NoError(t, err)
	assert.Equal(t, "org-id", site.OrganizationID)

	_, err = DefaultSiteProvider(context.Background(), "nope", rt)
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, "Site with id nope not found", errors.Message(err))

	org, err := DefaultOrgProvider(context.Background(), "org-id", rt)
	require.NoError(t, err)
	assert.Equal(t, "Space Cat", org.Name)

	_, err = DefaultOrgProvider(context.Background(), "nope", rt)
	assert.Equal(t, "Org with id nope not found", errors.Message(err))
}

func TestDefaultPersister(t *testing.T) {
	da, _, rt, _ := newFixture()
	record := &models.AuditRecord{SiteID: "site-id", AuditType: "dummy"}

	require.NoError(t, DefaultPersister(context.Background(), record, rt))
	require.Len(t, da.audits, 1)
	assert.Same(t, record, da.audits[0])
}

func TestDefaultMessageSender(t *testing.T) {
	_, q, rt, _ := newFixture()
	msg := &models.AuditResultMessage{Type: "dummy", URL: "https://space.cat"}

	require.NoError(t, DefaultMessageSender(context.Background(), msg, rt))
	require.Len(t, q.sent, 1)
	assert.Equal(t, "some-queue-url", q.sent[0].queueURL)
	assert.Same(t, msg, q.sent[0].body)

	rt.Env.AuditResultsQueueURL = ""
	err := DefaultMessageSender(context.Background(), msg, rt)
	assert.True(t, errors.IsValidation(err))
}

func TestDefaults_RequireDataAccess(t *testing.T) {
	_, err := DefaultSiteProvider(context.Background(), "site-id", &Runtime{})
	assert.True(t, errors.IsValidation(err))

	err = DefaultPersister(context.Background(), &models.AuditRecord{}, nil)
	assert.True(t, errors.IsValidation(err))
}

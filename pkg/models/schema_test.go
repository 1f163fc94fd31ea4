package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAuditMessage(t *testing.T) {
	tests := []struct {
		name      string
		msg       *AuditMessage
		wantField string
	}{
		{
			name:      "nil message",
			msg:       nil,
			wantField: "message",
		},
		{
			name:      "missing type",
			msg:       &AuditMessage{URL: "site-id"},
			wantField: "type",
		},
		{
			name:      "blank type",
			msg:       &AuditMessage{Type: "   ", SiteID: "site-id"},
			wantField: "type",
		},
		{
			name:      "missing site key",
			msg:       &AuditMessage{Type: "cwv"},
			wantField: "siteId",
		},
		{
			name: "url only",
			msg:  &AuditMessage{Type: "cwv", URL: "site-id"},
		},
		{
			name: "site id only",
			msg:  &AuditMessage{Type: "cwv", SiteID: "site-id"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAuditMessage(tt.msg)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantField, vErr.Field)
		})
	}
}

func TestAuditMessage_SiteKey(t *testing.T) {
	assert.Equal(t, "from-url", AuditMessage{URL: "from-url"}.SiteKey())
	assert.Equal(t, "from-site-id", AuditMessage{URL: "from-url", SiteID: "from-site-id"}.SiteKey())
}

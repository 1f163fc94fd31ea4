package cel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siteaudit/pkg/models"
)

func TestNewEvaluator(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)
	assert.NotNil(t, eval)
}

var conditionExamples = map[string]string{
	"live_only":          `is_live`,
	"single_site":        `site_id == "9f1c2a"`,
	"org_allow_list":     `org_id in ["org-1", "org-2"]`,
	"domain_suffix":      `base_url.endsWith(".com")`,
	"https_only":         `base_url.startsWith("https://")`,
	"delivery_type":      `delivery_type == "aem_edge"`,
	"org_name_prefix":    `org_name.startsWith("Acme")`,
	"combined_condition": `is_live && !base_url.contains("staging")`,
}

func TestConditionExamplesCompile(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	for name, expr := range conditionExamples {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, eval.ValidateCondition(expr))
		})
	}
}

func TestValidateCondition(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	tests := []struct {
		name      string
		expr      string
		wantError bool
	}{
		{name: "bool variable", expr: `is_live`},
		{name: "string comparison", expr: `site_id == "abc"`},
		{name: "syntax error", expr: `site_id ==`, wantError: true},
		{name: "undefined variable", expr: `payload.status == "x"`, wantError: true},
		{name: "non bool result", expr: `base_url`, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eval.ValidateCondition(tt.expr)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEvaluateCondition(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	site := &models.Site{ID: "site-1", BaseURL: "https://www.example.com", OrganizationID: "org-1", IsLive: true}
	org := &models.Organization{ID: "org-1", Name: "Acme Corp"}

	tests := []struct {
		name string
		expr string
		site *models.Site
		org  *models.Organization
		want bool
	}{
		{name: "live site", expr: `is_live`, site: site, org: org, want: true},
		{name: "org allow list", expr: `org_id in ["org-1"]`, site: site, org: org, want: true},
		{name: "org name", expr: `org_name.startsWith("Acme")`, site: site, org: org, want: true},
		{name: "staging excluded", expr: `!base_url.contains("staging")`, site: site, org: org, want: true},
		{name: "other site", expr: `site_id == "site-2"`, site: site, org: org, want: false},
		{name: "nil entities use zero values", expr: `site_id == "" && !is_live`, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.EvaluateCondition(context.Background(), tt.expr, tt.site, tt.org)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateCondition_CompileError(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	_, err = eval.EvaluateCondition(context.Background(), `unknown == 1`, nil, nil)
	assert.Error(t, err)
}

// Package runners holds audit runners shipped with the worker.
package runners

import (
	"context"
	"io"
	"net/http"
	"time"

	"siteaudit/internal/audit"
	"siteaudit/internal/constants"
	"siteaudit/pkg/errors"
	"siteaudit/pkg/models"
)

const ReachabilityType = "reachability"

// NewReachability returns a runner that issues a GET to the audit URL and
// reports the status code and latency. A nil client gets a default one.
func NewReachability(client *http.Client) audit.Runner {
	if client == nil {
		client = &http.Client{Timeout: constants.DefaultHTTPTimeout}
	}

	return func(ctx context.Context, baseURL string, _ *audit.Runtime, site *models.Site) (*models.RunnerResult, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
		if err != nil {
			return nil, errors.Validation("invalid audit url %s: %v", baseURL, err)
		}
		req.Header.Set("User-Agent", constants.DefaultUserAgent)

		start := time.Now()
		resp, err := client.Do(req)
		if err != nil {
			return nil, errors.Transport(err, "failed to reach %s", baseURL)
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		latency := time.Since(start)

		return &models.RunnerResult{
			AuditResult: map[string]interface{}{
				"statusCode": resp.StatusCode,
				"latencyMs":  latency.Milliseconds(),
				"reachable":  resp.StatusCode >= constants.HTTPStatusOKMin && resp.StatusCode < constants.HTTPStatusOKMax,
				"siteId":     site.ID,
			},
			FullAuditRef: baseURL,
		}, nil
	}
}

package audit

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"siteaudit/internal/constants"
	"siteaudit/pkg/errors"
	"siteaudit/pkg/metrics"
	"siteaudit/pkg/models"
)

// maxDrainBytes bounds how much of a redirect body is read before the
// connection is reused.
const maxDrainBytes = 64 << 10

type ResolverOptions struct {
	MaxHops   int
	Timeout   time.Duration
	UserAgent string
	// Client is used as a template; its CheckRedirect is always replaced.
	Client *http.Client
}

var defaultResolver = NewRedirectResolver(ResolverOptions{})

// DefaultURLResolver follows the redirect chain of the site's base URL and
// returns the host of the final destination.
func DefaultURLResolver(ctx context.Context, site *models.Site) (string, error) {
	return defaultResolver(ctx, site)
}

// NoopURLResolver returns the host of the site's base URL without any
// network access.
func NoopURLResolver(_ context.Context, site *models.Site) (string, error) {
	u, err := siteURL(site)
	if err != nil {
		return "", err
	}
	return u.Host, nil
}

func NewRedirectResolver(opts ResolverOptions) URLResolver {
	if opts.MaxHops <= 0 {
		opts.MaxHops = constants.DefaultMaxRedirectHops
	}
	if opts.Timeout <= 0 {
		opts.Timeout = constants.DefaultHTTPTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = constants.DefaultUserAgent
	}

	client := &http.Client{}
	if opts.Client != nil {
		c := *opts.Client
		client = &c
	}
	if client.Timeout == 0 {
		client.Timeout = opts.Timeout
	}
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return func(ctx context.Context, site *models.Site) (string, error) {
		current, err := siteURL(site)
		if err != nil {
			return "", err
		}

		for hops := 0; ; hops++ {
			next, err := fetchOnce(ctx, client, current, opts.UserAgent)
			if err != nil {
				return "", err
			}
			if next == nil {
				metrics.ObserveRedirectHops(hops)
				return current.Host, nil
			}
			if hops+1 > opts.MaxHops {
				metrics.ObserveRedirectHops(hops)
				return "", errors.Transport(nil, "too many redirects resolving %s (max %d)", site.BaseURL, opts.MaxHops)
			}
			current = next
		}
	}
}

// fetchOnce issues a single GET and returns the redirect target, or nil
// when the response ends the chain.
func fetchOnce(ctx context.Context, client *http.Client, target *url.URL, userAgent string) (*url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, errors.Validation("invalid url %s: %v", target, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Transport(err, "failed to fetch %s", target)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	if resp.StatusCode < 300 || resp.StatusCode > 399 {
		return nil, nil
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return nil, nil
	}

	next, err := target.Parse(location)
	if err != nil {
		return nil, errors.Transport(err, "invalid redirect location %q from %s", location, target)
	}
	return next, nil
}

func siteURL(site *models.Site) (*url.URL, error) {
	if site == nil || strings.TrimSpace(site.BaseURL) == "" {
		return nil, errors.Validation("site has no base URL")
	}

	raw := strings.TrimSpace(site.BaseURL)
	if !strings.Contains(raw, "://") {
		raw = constants.DefaultScheme + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Validation("invalid base URL %s: %v", site.BaseURL, err)
	}
	if u.Host == "" {
		return nil, errors.Validation("base URL %s has no host", site.BaseURL)
	}
	return u, nil
}

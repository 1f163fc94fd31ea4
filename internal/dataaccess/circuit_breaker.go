package dataaccess

import (
	"context"
	"errors"

	"github.com/sony/gobreaker"

	"siteaudit/internal/config"
	"siteaudit/internal/configuration"
	"siteaudit/pkg/circuitbreaker"
	apperrors "siteaudit/pkg/errors"
	"siteaudit/pkg/models"
)

type CircuitBreakerDataAccess struct {
	next DataAccess
	cb   *circuitbreaker.Wrapper
}

func NewCircuitBreakerDataAccess(next DataAccess, cfg config.CircuitBreakerConfig) *CircuitBreakerDataAccess {
	if !cfg.Enabled {
		return &CircuitBreakerDataAccess{next: next}
	}

	cbConfig := circuitbreaker.DefaultConfig("dataaccess")
	if cfg.MaxRequests > 0 {
		cbConfig.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		cbConfig.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		cbConfig.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 {
		cbConfig.FailureRatio = cfg.FailureRatio
	}
	if cfg.MinRequests > 0 {
		cbConfig.MinRequests = cfg.MinRequests
	}
	// Bad input is not a sign of an unhealthy store.
	cbConfig.IsSuccessful = func(err error) bool {
		return err == nil || apperrors.IsValidation(err) || errors.Is(err, context.Canceled)
	}

	return &CircuitBreakerDataAccess{next: next, cb: circuitbreaker.NewWrapper(cbConfig)}
}

func (d *CircuitBreakerDataAccess) GetSiteByID(ctx context.Context, siteID string) (*models.Site, error) {
	return execute(ctx, d, func() (*models.Site, error) { return d.next.GetSiteByID(ctx, siteID) })
}

func (d *CircuitBreakerDataAccess) GetOrganizationByID(ctx context.Context, orgID string) (*models.Organization, error) {
	return execute(ctx, d, func() (*models.Organization, error) { return d.next.GetOrganizationByID(ctx, orgID) })
}

func (d *CircuitBreakerDataAccess) GetConfiguration(ctx context.Context) (*configuration.Configuration, error) {
	return execute(ctx, d, func() (*configuration.Configuration, error) { return d.next.GetConfiguration(ctx) })
}

func (d *CircuitBreakerDataAccess) AddAudit(ctx context.Context, record *models.AuditRecord) (*models.AuditRecord, error) {
	return execute(ctx, d, func() (*models.AuditRecord, error) { return d.next.AddAudit(ctx, record) })
}

func (d *CircuitBreakerDataAccess) State() string {
	if d.cb == nil {
		return "disabled"
	}
	return d.cb.State().String()
}

func execute[T any](ctx context.Context, d *CircuitBreakerDataAccess, fn func() (*T, error)) (*T, error) {
	if d.cb == nil {
		return fn()
	}

	result, err := d.cb.Execute(ctx, func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, apperrors.Transport(err, "data access circuit breaker is %s", d.cb.State().String())
	}
	if err != nil {
		return nil, err
	}

	value, _ := result.(*T)
	return value, nil
}

// Package management applies operator changes to the handler
// configuration. Every change is written as a new configuration version.
package management

import (
	"context"
	"fmt"

	"siteaudit/internal/configuration"
	"siteaudit/internal/dataaccess"
	"siteaudit/internal/logger"
	"siteaudit/pkg/errors"
)

type Scope string

const (
	ScopeSite Scope = "site"
	ScopeOrg  Scope = "org"
)

// Change enables or disables one handler for one site or organization.
type Change struct {
	Handler   string
	Scope     Scope
	ID        string
	Enable    bool
	ChangedBy string
}

func (c Change) action() string {
	if c.Enable {
		return "enable"
	}
	return "disable"
}

// Invalidator drops cached copies of the configuration.
type Invalidator interface {
	InvalidateConfiguration(ctx context.Context) error
}

type ServiceOption func(*Service)

func WithInvalidator(inv Invalidator) ServiceOption {
	return func(s *Service) {
		s.invalidator = inv
	}
}

type Service struct {
	store       dataaccess.ConfigurationStore
	invalidator Invalidator
	logger      logger.Logger
}

func NewService(store dataaccess.ConfigurationStore, log logger.Logger, opts ...ServiceOption) *Service {
	if log == nil {
		log = logger.NopLogger()
	}
	s := &Service{store: store, logger: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns the latest configuration, or an empty first version when
// none has been stored yet.
func (s *Service) Current(ctx context.Context) (*configuration.Configuration, error) {
	cfg, err := s.store.GetLatest(ctx)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return configuration.New(), nil
	}
	return cfg, nil
}

func (s *Service) Apply(ctx context.Context, ch Change) (*configuration.Configuration, error) {
	if ch.Handler == "" {
		return nil, errors.Validation("handler is required")
	}
	if ch.ID == "" {
		return nil, errors.Validation("%s id is required", ch.Scope)
	}

	cfg, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := cfg.GetHandler(ch.Handler); !ok {
		cfg.SetHandler(ch.Handler, configuration.HandlerConfig{})
	}

	switch {
	case ch.Scope == ScopeSite && ch.Enable:
		cfg.EnableHandlerForSite(ch.Handler, ch.ID)
	case ch.Scope == ScopeSite:
		cfg.DisableHandlerForSite(ch.Handler, ch.ID)
	case ch.Scope == ScopeOrg && ch.Enable:
		cfg.EnableHandlerForOrg(ch.Handler, ch.ID)
	case ch.Scope == ScopeOrg:
		cfg.DisableHandlerForOrg(ch.Handler, ch.ID)
	default:
		return nil, errors.Validation("unknown scope %q", ch.Scope)
	}

	return s.save(ctx, cfg, ch.Handler, fmt.Sprintf("%s_%s", ch.action(), ch.Scope), ch.ChangedBy)
}

// SetDefault changes whether handler runs for sites not listed explicitly.
func (s *Service) SetDefault(ctx context.Context, handler string, enabled bool, changedBy string) (*configuration.Configuration, error) {
	if handler == "" {
		return nil, errors.Validation("handler is required")
	}

	cfg, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	h, _ := cfg.GetHandler(handler)
	h.EnabledByDefault = enabled
	cfg.SetHandler(handler, h)

	return s.save(ctx, cfg, handler, "set_default", changedBy)
}

func (s *Service) save(ctx context.Context, cfg *configuration.Configuration, handler, action, changedBy string) (*configuration.Configuration, error) {
	version, err := s.store.Save(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if s.invalidator != nil {
		if err := s.invalidator.InvalidateConfiguration(ctx); err != nil {
			s.logger.WarnwCtx(ctx, "Failed to invalidate cached configuration", "error", err)
		}
	}

	s.logger.InfowCtx(ctx, "Configuration updated",
		"version", version,
		"handler", handler,
		"action", action,
		"changed_by", changedBy,
	)
	return cfg, nil
}

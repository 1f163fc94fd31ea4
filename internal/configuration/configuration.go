package configuration

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"siteaudit/pkg/cel"
	"siteaudit/pkg/errors"
	"siteaudit/pkg/models"
)

// Configuration is one version of the handler enablement settings. A new
// version is written for every change; readers always see the latest.
type Configuration struct {
	Version  int                      `json:"version" db:"version"`
	Handlers map[string]HandlerConfig `json:"handlers"`
}

type HandlerConfig struct {
	EnabledByDefault bool         `json:"enabledByDefault"`
	Enabled          ListConfig   `json:"enabled"`
	Disabled         ListConfig   `json:"disabled"`
	Dependencies     []Dependency `json:"dependencies,omitempty"`
	// Condition is a CEL expression that must also hold for an enabled
	// handler to run.
	Condition string `json:"condition,omitempty"`
}

type ListConfig struct {
	Sites []string `json:"sites,omitempty"`
	Orgs  []string `json:"orgs,omitempty"`
}

type Dependency struct {
	Handler string   `json:"handler"`
	Actions []string `json:"actions,omitempty"`
}

var (
	evaluatorOnce sync.Once
	evaluator     *cel.Evaluator
	evaluatorErr  error
)

func conditionEvaluator() (*cel.Evaluator, error) {
	evaluatorOnce.Do(func() {
		evaluator, evaluatorErr = cel.NewEvaluator()
	})
	return evaluator, evaluatorErr
}

func New() *Configuration {
	return &Configuration{Version: 1, Handlers: make(map[string]HandlerConfig)}
}

func (c *Configuration) GetHandler(handlerType string) (HandlerConfig, bool) {
	if c == nil || c.Handlers == nil {
		return HandlerConfig{}, false
	}
	h, ok := c.Handlers[handlerType]
	return h, ok
}

func (c *Configuration) SetHandler(handlerType string, h HandlerConfig) {
	if c.Handlers == nil {
		c.Handlers = make(map[string]HandlerConfig)
	}
	c.Handlers[handlerType] = h
}

// IsHandlerEnabledForSite resolves whether handlerType should run for site.
// Explicit disables beat explicit enables, which beat the default.
func (c *Configuration) IsHandlerEnabledForSite(handlerType string, site *models.Site, org *models.Organization) bool {
	h, ok := c.GetHandler(handlerType)
	if !ok || site == nil {
		return false
	}

	orgID := site.OrganizationID
	if org != nil && org.ID != "" {
		orgID = org.ID
	}

	var enabled bool
	switch {
	case slices.Contains(h.Disabled.Sites, site.ID), slices.Contains(h.Disabled.Orgs, orgID):
		return false
	case slices.Contains(h.Enabled.Sites, site.ID), slices.Contains(h.Enabled.Orgs, orgID):
		enabled = true
	default:
		enabled = h.EnabledByDefault
	}

	if !enabled || h.Condition == "" {
		return enabled
	}

	eval, err := conditionEvaluator()
	if err != nil {
		return false
	}
	ok, err = eval.EvaluateCondition(context.Background(), h.Condition, site, org)
	return err == nil && ok
}

func (c *Configuration) EnableHandlerForSite(handlerType, siteID string) {
	c.updateHandler(handlerType, func(h *HandlerConfig) {
		h.Disabled.Sites = remove(h.Disabled.Sites, siteID)
		h.Enabled.Sites = appendUnique(h.Enabled.Sites, siteID)
	})
}

func (c *Configuration) DisableHandlerForSite(handlerType, siteID string) {
	c.updateHandler(handlerType, func(h *HandlerConfig) {
		h.Enabled.Sites = remove(h.Enabled.Sites, siteID)
		h.Disabled.Sites = appendUnique(h.Disabled.Sites, siteID)
	})
}

func (c *Configuration) EnableHandlerForOrg(handlerType, orgID string) {
	c.updateHandler(handlerType, func(h *HandlerConfig) {
		h.Disabled.Orgs = remove(h.Disabled.Orgs, orgID)
		h.Enabled.Orgs = appendUnique(h.Enabled.Orgs, orgID)
	})
}

func (c *Configuration) DisableHandlerForOrg(handlerType, orgID string) {
	c.updateHandler(handlerType, func(h *HandlerConfig) {
		h.Enabled.Orgs = remove(h.Enabled.Orgs, orgID)
		h.Disabled.Orgs = appendUnique(h.Disabled.Orgs, orgID)
	})
}

func (c *Configuration) updateHandler(handlerType string, fn func(h *HandlerConfig)) {
	h, _ := c.GetHandler(handlerType)
	fn(&h)
	c.SetHandler(handlerType, h)
}

// Validate checks list disjointness, dependency targets and conditions.
func (c *Configuration) Validate() error {
	if c == nil {
		return errors.Validation("configuration is required")
	}
	if c.Version < 1 {
		return errors.Validation("configuration version must be positive, got %d", c.Version)
	}

	for name, h := range c.Handlers {
		if name == "" {
			return errors.Validation("handler type cannot be empty")
		}
		if id, found := overlap(h.Enabled.Sites, h.Disabled.Sites); found {
			return errors.Validation("handler %s: site %s is both enabled and disabled", name, id)
		}
		if id, found := overlap(h.Enabled.Orgs, h.Disabled.Orgs); found {
			return errors.Validation("handler %s: org %s is both enabled and disabled", name, id)
		}
		for _, dep := range h.Dependencies {
			if _, ok := c.Handlers[dep.Handler]; !ok {
				return errors.Validation("handler %s depends on unknown handler %s", name, dep.Handler)
			}
		}
		if h.Condition != "" {
			eval, err := conditionEvaluator()
			if err != nil {
				return fmt.Errorf("failed to create CEL evaluator: %w", err)
			}
			if err := eval.ValidateCondition(h.Condition); err != nil {
				return errors.Validation("handler %s: invalid condition: %v", name, err)
			}
		}
	}

	return nil
}

func appendUnique(list []string, id string) []string {
	if slices.Contains(list, id) {
		return list
	}
	return append(list, id)
}

func remove(list []string, id string) []string {
	return slices.DeleteFunc(list, func(v string) bool { return v == id })
}

func overlap(a, b []string) (string, bool) {
	for _, v := range a {
		if slices.Contains(b, v) {
			return v, true
		}
	}
	return "", false
}

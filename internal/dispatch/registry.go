package dispatch

import (
	"sort"
	"sync"

	"siteaudit/internal/audit"
)

// Registry maps audit types to their pipelines.
type Registry struct {
	mu     sync.RWMutex
	audits map[string]*audit.Audit
}

func NewRegistry() *Registry {
	return &Registry{audits: make(map[string]*audit.Audit)}
}

// Register adds or replaces the pipeline for auditType.
func (r *Registry) Register(auditType string, a *audit.Audit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audits[auditType] = a
}

func (r *Registry) Get(auditType string) (*audit.Audit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.audits[auditType]
	return a, ok
}

func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.audits))
	for t := range r.audits {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

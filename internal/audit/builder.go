package audit

import (
	"time"

	"siteaudit/pkg/errors"
)

// Builder assembles an Audit. Every slot except the runner is optional and
// falls back to its default implementation.
type Builder struct {
	siteProvider   SiteProvider
	orgProvider    OrgProvider
	urlResolver    URLResolver
	runner         Runner
	persister      Persister
	messageSender  MessageSender
	postProcessors []PostProcessor
	clock          func() time.Time
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) WithSiteProvider(fn SiteProvider) *Builder {
	b.siteProvider = fn
	return b
}

func (b *Builder) WithOrgProvider(fn OrgProvider) *Builder {
	b.orgProvider = fn
	return b
}

func (b *Builder) WithURLResolver(fn URLResolver) *Builder {
	b.urlResolver = fn
	return b
}

func (b *Builder) WithRunner(fn Runner) *Builder {
	b.runner = fn
	return b
}

func (b *Builder) WithPersister(fn Persister) *Builder {
	b.persister = fn
	return b
}

func (b *Builder) WithMessageSender(fn MessageSender) *Builder {
	b.messageSender = fn
	return b
}

func (b *Builder) WithPostProcessors(fns ...PostProcessor) *Builder {
	b.postProcessors = fns
	return b
}

// WithClock overrides the source of auditedAt timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) Build() (*Audit, error) {
	if b.runner == nil {
		return nil, errors.Validation("runner must be a function")
	}

	postProcessors := make([]PostProcessor, len(b.postProcessors))
	for i, fn := range b.postProcessors {
		if fn == nil {
			return nil, errors.Validation("post-processor at index %d must be a function", i)
		}
		postProcessors[i] = fn
	}

	a := &Audit{
		siteProvider:   b.siteProvider,
		orgProvider:    b.orgProvider,
		urlResolver:    b.urlResolver,
		runner:         b.runner,
		persister:      b.persister,
		messageSender:  b.messageSender,
		postProcessors: postProcessors,
		clock:          b.clock,
	}

	if a.siteProvider == nil {
		a.siteProvider = DefaultSiteProvider
	}
	if a.orgProvider == nil {
		a.orgProvider = DefaultOrgProvider
	}
	if a.urlResolver == nil {
		a.urlResolver = DefaultURLResolver
	}
	if a.persister == nil {
		a.persister = DefaultPersister
	}
	if a.messageSender == nil {
		a.messageSender = DefaultMessageSender
	}
	if a.clock == nil {
		a.clock = time.Now
	}

	return a, nil
}

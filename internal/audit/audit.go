package audit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/codes"

	"siteaudit/internal/constants"
	"siteaudit/pkg/errors"
	"siteaudit/pkg/logging"
	"siteaudit/pkg/metrics"
	"siteaudit/pkg/models"
	"siteaudit/pkg/tracing"
)

const (
	stageSite          = "site"
	stageOrg           = "org"
	stageConfiguration = "configuration"
	stageResolve       = "resolve"
	stageRun           = "run"
	stagePersist       = "persist"
	stageSend          = "send"
	stagePostProcess   = "post_process"
)

// Audit is an immutable pipeline assembled by Builder. Run is safe for
// concurrent use.
type Audit struct {
	siteProvider   SiteProvider
	orgProvider    OrgProvider
	urlResolver    URLResolver
	runner         Runner
	persister      Persister
	messageSender  MessageSender
	postProcessors []PostProcessor
	clock          func() time.Time
}

type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

func fail(stage string, err error) error {
	return &stageError{stage: stage, err: err}
}

// Run drives one audit for msg. A disabled audit type is not an error: it
// logs a warning and returns a 200 response without touching the site.
func (a *Audit) Run(ctx context.Context, msg *models.AuditMessage, rt *Runtime) (*Response, error) {
	if msg == nil {
		return nil, errors.Validation("audit message cannot be nil")
	}
	if rt == nil {
		rt = &Runtime{}
	}

	siteKey := msg.SiteKey()
	ctx = logging.WithAudit(ctx, msg.Type, siteKey)
	ctx, span := tracing.StartAuditSpan(ctx, msg.Type, siteKey)
	defer span.End()

	start := time.Now()
	log := rt.log()

	res, err := a.execute(ctx, msg, siteKey, rt)
	if err != nil {
		elapsed := time.Since(start)
		stage := stageRun
		var se *stageError
		if errors.As(err, &se) {
			stage = se.stage
			err = se.err
		}
		metrics.IncAuditStageFailure(msg.Type, stage)
		metrics.ObserveAudit(msg.Type, "failed", elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)

		auditErr := &Error{Type: msg.Type, SiteKey: siteKey, Cause: err}
		log.ErrorwCtx(ctx, fmt.Sprintf("%s audit failed for site %s after %.3f seconds", msg.Type, siteKey, elapsed.Seconds()),
			"stage", stage,
			"error", err,
		)
		return nil, auditErr
	}

	if res.skipped {
		metrics.ObserveAudit(msg.Type, "skipped", time.Since(start))
		return &Response{Status: http.StatusOK}, nil
	}

	for i, pp := range a.postProcessors {
		if err := pp(ctx, res.host, res.record, rt); err != nil {
			metrics.IncAuditStageFailure(msg.Type, stagePostProcess)
			span.RecordError(err)
			span.SetStatus(codes.Error, stagePostProcess)
			log.ErrorwCtx(ctx, "audit post-processor failed", "index", i, "error", err)
			return nil, err
		}
	}

	elapsed := time.Since(start)
	metrics.ObserveAudit(msg.Type, "success", elapsed)
	log.InfowCtx(ctx, fmt.Sprintf("%s audit for %s completed in %.3f seconds", msg.Type, res.host, elapsed.Seconds()))

	return &Response{Status: http.StatusOK}, nil
}

type runResult struct {
	skipped bool
	host    string
	record  *models.AuditRecord
}

// execute covers the wrapped stages: every error it returns becomes an
// audit Error.
func (a *Audit) execute(ctx context.Context, msg *models.AuditMessage, siteKey string, rt *Runtime) (*runResult, error) {
	site, err := a.siteProvider(ctx, siteKey, rt)
	if err != nil {
		return nil, fail(stageSite, err)
	}
	if site == nil {
		return nil, fail(stageSite, errors.NotFound("Site with id %s not found", siteKey))
	}

	org, err := a.orgProvider(ctx, site.OrganizationID, rt)
	if err != nil {
		return nil, fail(stageOrg, err)
	}
	if org == nil {
		return nil, fail(stageOrg, errors.NotFound("Org with id %s not found", site.OrganizationID))
	}

	if rt.DataAccess == nil {
		return nil, fail(stageConfiguration, errors.Validation("data access is required"))
	}
	cfg, err := rt.DataAccess.GetConfiguration(ctx)
	if err != nil {
		return nil, fail(stageConfiguration, err)
	}
	if !cfg.IsHandlerEnabledForSite(msg.Type, site, org) {
		rt.log().WarnwCtx(ctx, fmt.Sprintf("%s audits disabled for site %s, skipping...", msg.Type, site.ID))
		return &runResult{skipped: true}, nil
	}

	host, err := a.urlResolver(ctx, site)
	if err != nil {
		return nil, fail(stageResolve, err)
	}
	auditURL := constants.DefaultScheme + host

	result, err := a.invokeRunner(ctx, auditURL, rt, site)
	if err != nil {
		return nil, fail(stageRun, err)
	}

	record := &models.AuditRecord{
		SiteID:       site.ID,
		IsLive:       site.IsLive,
		AuditedAt:    a.clock().UTC(),
		AuditType:    msg.Type,
		AuditResult:  result.AuditResult,
		FullAuditRef: result.FullAuditRef,
	}
	if err := a.persister(ctx, record, rt); err != nil {
		return nil, fail(stagePersist, err)
	}

	auditContext := make(map[string]interface{}, len(msg.AuditContext)+2)
	for k, v := range msg.AuditContext {
		auditContext[k] = v
	}
	auditContext["finalUrl"] = host
	auditContext["fullAuditRef"] = result.FullAuditRef

	out := &models.AuditResultMessage{
		Type:         msg.Type,
		URL:          auditURL,
		AuditContext: auditContext,
		AuditResult:  result.AuditResult,
	}
	if err := a.messageSender(ctx, out, rt); err != nil {
		return nil, fail(stageSend, err)
	}

	return &runResult{host: host, record: record}, nil
}

// invokeRunner turns a runner panic into an error so it is reported like
// any other runner failure.
func (a *Audit) invokeRunner(ctx context.Context, auditURL string, rt *Runtime, site *models.Site) (result *models.RunnerResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = errors.RecoverPanic(r)
		}
	}()

	result, err = a.runner(ctx, auditURL, rt, site)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, errors.ErrInternal.WithDetail("message", "runner returned no result")
	}
	return result, nil
}

package dispatch

import (
	"context"
	stderrors "errors"
	"net/http"

	"siteaudit/internal/audit"
	"siteaudit/internal/broker"
	"siteaudit/internal/logger"
	"siteaudit/pkg/errors"
	"siteaudit/pkg/models"
	"siteaudit/pkg/ratelimit"
)

// Deduplicator claims a job so that repeats of it can be skipped.
type Deduplicator interface {
	Acquire(ctx context.Context, msg models.AuditMessage) (bool, error)
	Release(ctx context.Context, msg models.AuditMessage)
}

// Dispatcher routes inbound audit jobs to the registered pipeline for
// their type.
type Dispatcher struct {
	registry *Registry
	runtime  *audit.Runtime
	limiter  *ratelimit.KeyedLimiter
	dedup    Deduplicator
	logger   logger.Logger
}

// NewDispatcher builds a Dispatcher. limiter may be nil to disable
// throttling.
func NewDispatcher(registry *Registry, rt *audit.Runtime, limiter *ratelimit.KeyedLimiter, log logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.NopLogger()
	}
	return &Dispatcher{
		registry: registry,
		runtime:  rt,
		limiter:  limiter,
		logger:   log,
	}
}

// WithDeduplicator enables duplicate suppression.
func (d *Dispatcher) WithDeduplicator(dd Deduplicator) *Dispatcher {
	d.dedup = dd
	return d
}

// Handle runs one audit job. The response status mirrors the error: 400
// for invalid jobs, 404 for unknown types or entities, 500 otherwise.
// Errors that cannot succeed on retry are marked fatal, as are
// post-processor failures since the result was already published.
func (d *Dispatcher) Handle(ctx context.Context, msg models.AuditMessage) (*audit.Response, error) {
	if err := models.ValidateAuditMessage(&msg); err != nil {
		var ve *models.ValidationError
		appErr := errors.Validation("%s", err.Error())
		if stderrors.As(err, &ve) {
			appErr = errors.Validation("%s", ve.Message).WithDetail("field", ve.Field)
		}
		d.logger.WarnwCtx(ctx, "Rejected invalid audit job", "error", appErr.Reason())
		return &audit.Response{Status: http.StatusBadRequest}, appErr.AsFatal()
	}

	a, ok := d.registry.Get(msg.Type)
	if !ok {
		err := errors.NotFound("no audit registered for type %s", msg.Type).AsFatal()
		d.logger.WarnwCtx(ctx, "Unknown audit type", "type", msg.Type)
		return &audit.Response{Status: http.StatusNotFound}, err
	}

	if d.dedup != nil {
		fresh, err := d.dedup.Acquire(ctx, msg)
		if err != nil {
			return &audit.Response{Status: http.StatusServiceUnavailable},
				errors.Transport(err, "duplicate check failed for %s", msg.Type).AsRetryable()
		}
		if !fresh {
			d.logger.InfowCtx(ctx, "Duplicate audit job skipped", "type", msg.Type, "site", msg.SiteKey())
			return &audit.Response{Status: http.StatusOK}, nil
		}
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx, msg.Type); err != nil {
			d.release(ctx, msg)
			return &audit.Response{Status: http.StatusServiceUnavailable},
				errors.Transport(err, "rate limit wait interrupted for %s", msg.Type).AsRetryable()
		}
	}

	resp, err := a.Run(ctx, &msg, d.runtime)
	if err != nil {
		var auditErr *audit.Error
		if !stderrors.As(err, &auditErr) {
			// Only post-processing failed. The record is already stored and
			// published, so the job keeps its claim and is not retried.
			d.logger.ErrorwCtx(ctx, "Audit post-processing failed", "type", msg.Type, "site", msg.SiteKey(), "error", err)
			return &audit.Response{Status: http.StatusInternalServerError},
				errors.ErrInternal.WithCause(err).WithDetail("message", "post-processing failed for "+msg.Type).AsFatal()
		}
		d.release(ctx, msg)
		return &audit.Response{Status: errors.ToHTTPStatus(err)}, err
	}
	return resp, nil
}

func (d *Dispatcher) release(ctx context.Context, msg models.AuditMessage) {
	if d.dedup != nil {
		d.dedup.Release(context.WithoutCancel(ctx), msg)
	}
}

// HandlerFunc adapts the dispatcher to a broker consumer.
func (d *Dispatcher) HandlerFunc() broker.HandlerFunc {
	return func(ctx context.Context, msg models.AuditMessage) error {
		_, err := d.Handle(ctx, msg)
		return err
	}
}

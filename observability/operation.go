package observability

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/guiqiqi/itmo-moodle-agent/errors"
	"github.com/guiqiqi/itmo-moodle-agent/logger"
)

// OutcomeSuccess is the outcome of an operation that returned no error.
const OutcomeSuccess = "success"

// Operation is a traced and counted unit of work.
type Operation struct {
	ctx     context.Context
	name    string
	span    trace.Span
	metrics *Metrics
	start   time.Time
}

// StartOperation opens a span named name. Request and user ids in ctx
// become span attributes. metrics may be nil.
func StartOperation(ctx context.Context, metrics *Metrics, name string) (context.Context, *Operation) {
	ctx, span := StartSpan(ctx, name)
	span.SetAttributes(attribute.String(AttrOperation, name))
	if id := logger.RequestIDFromContext(ctx); id != "" {
		span.SetAttributes(attribute.String(AttrRequestID, id))
	}
	if id := logger.UserIDFromContext(ctx); id != "" {
		span.SetAttributes(attribute.String(AttrUserID, id))
	}
	return ctx, &Operation{ctx: ctx, name: name, span: span, metrics: metrics, start: time.Now()}
}

// SetAttribute adds a string attribute to the operation's span.
func (o *Operation) SetAttribute(key, value string) {
	o.span.SetAttributes(attribute.String(key, value))
}

// End closes the span and records the outcome derived from err.
func (o *Operation) End(err error) {
	outcome := Outcome(err)
	o.span.SetAttributes(attribute.String(AttrOutcome, outcome))
	if err != nil {
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, outcome)
	}
	o.span.End()
	if o.metrics != nil {
		o.metrics.RecordOperation(o.ctx, o.name, outcome, time.Since(o.start))
	}
}

// Outcome names the result of an operation: success, the lowercased
// AppError code, or internal_error.
func Outcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	if appErr, ok := apperrors.AsAppError(err); ok {
		return strings.ToLower(string(appErr.Code))
	}
	return strings.ToLower(string(apperrors.ErrCodeInternal))
}

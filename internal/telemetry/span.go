package telemetry

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
)

// SpanAttributes tag a pipeline span.
type SpanAttributes struct {
	DocumentID string
	Strategy   string
	Operation  string
}

// Span is a nil-safe handle on a Sentry span.
type Span struct {
	inner *sentry.Span
}

// StartSpan opens a child of the span in ctx, or a new transaction when
// there is none.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(name)
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}

	if attrs.DocumentID != "" {
		span.SetTag("document_id", attrs.DocumentID)
	}
	if attrs.Strategy != "" {
		span.SetTag("strategy", attrs.Strategy)
	}
	if attrs.Operation != "" {
		span.Op = attrs.Operation
	}

	return span.Context(), &Span{inner: span}
}

// End finishes the span.
func (s *Span) End() {
	if s != nil && s.inner != nil {
		s.inner.Finish()
	}
}

// SetData records a measurement such as chunk counts or the retrieval path.
func (s *Span) SetData(key string, value interface{}) {
	if s != nil && s.inner != nil {
		s.inner.SetData(key, value)
	}
}

// SetError marks the span failed and reports err.
func (s *Span) SetError(err error) {
	if s == nil || s.inner == nil || err == nil {
		return
	}
	s.inner.Status = sentry.SpanStatusInternalError
	CaptureError(s.inner.Context(), err)
}

// CaptureError reports err on the request's hub, or the global one.
func CaptureError(ctx context.Context, err error) {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}

// RecordFallback leaves a breadcrumb when a pipeline stage degrades, so a
// later error event shows which fallbacks the request went through.
func RecordFallback(ctx context.Context, stage, reason string) {
	crumb := &sentry.Breadcrumb{
		Type:      "default",
		Category:  "fallback." + stage,
		Message:   reason,
		Level:     sentry.LevelWarning,
		Timestamp: time.Now(),
	}
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.AddBreadcrumb(crumb, nil)
		return
	}
	sentry.AddBreadcrumb(crumb)
}

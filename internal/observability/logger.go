package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

const (
	attrTraceID    = "trace_id"
	attrSpanID     = "span_id"
	attrService    = "service"
	attrProject    = "project"
	attrRepository = "repository"
)

type repositoryKey struct{}

// WithRepository tags ctx with the repository being collected. Records logged
// through a TracingHandler with that context carry a repository attribute.
func WithRepository(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, repositoryKey{}, name)
}

// RepositoryFrom returns the repository name set by WithRepository.
func RepositoryFrom(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(repositoryKey{}).(string)

	return name, ok && name != ""
}

// TracingHandler is an [slog.Handler] that adds the current span, and the
// repository a worker is collecting, to every record. The service and project
// are attached once to the inner handler and stay at the top level under
// groups.
type TracingHandler struct {
	inner slog.Handler
}

// NewTracingHandler wraps inner. An empty project is omitted.
func NewTracingHandler(inner slog.Handler, service, project string) *TracingHandler {
	attrs := []slog.Attr{slog.String(attrService, service)}
	if project != "" {
		attrs = append(attrs, slog.String(attrProject, project))
	}

	return &TracingHandler{inner: inner.WithAttrs(attrs)}
}

// Enabled delegates to the inner handler.
func (th *TracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return th.inner.Enabled(ctx, level)
}

// Handle adds context attributes and delegates.
func (th *TracingHandler) Handle(ctx context.Context, record slog.Record) error {
	if name, ok := RepositoryFrom(ctx); ok {
		record.AddAttrs(slog.String(attrRepository, name))
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String(attrTraceID, sc.TraceID().String()),
			slog.String(attrSpanID, sc.SpanID().String()),
		)
	}

	handleErr := th.inner.Handle(ctx, record)
	if handleErr != nil {
		return fmt.Errorf("handle log record: %w", handleErr)
	}

	return nil
}

// WithAttrs implements [slog.Handler].
func (th *TracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TracingHandler{inner: th.inner.WithAttrs(attrs)}
}

// WithGroup implements [slog.Handler].
func (th *TracingHandler) WithGroup(name string) slog.Handler {
	return &TracingHandler{inner: th.inner.WithGroup(name)}
}

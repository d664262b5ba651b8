package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// withTrace prepends the trace and span ids of the active span in ctx, so log
// lines can be joined with exported spans.
func withTrace(ctx context.Context, args []any) []any {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return args
	}
	out := make([]any, 0, len(args)+4)
	out = append(out, "trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
	return append(out, args...)
}

package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "phantomviews"

// DBOperation is the kind of content-store statement being traced.
type DBOperation string

const (
	DBOperationQuery  DBOperation = "query"
	DBOperationInsert DBOperation = "insert"
	DBOperationUpdate DBOperation = "update"
	DBOperationExec   DBOperation = "exec"
)

// EndFunc ends a span, recording err on it when non-nil. Call it from a
// deferred closure so it sees the final error:
//
//	ctx, endSpan := tracing.StartDBSpan(ctx, "tours", tracing.DBOperationQuery)
//	defer func() { endSpan(err) }()
type EndFunc func(err error)

func ender(span trace.Span) EndFunc {
	return func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// StartSpan starts an internal span for a domain operation such as
// "payment.handle_webhook".
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, EndFunc) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, ender(span)
}

// StartDBSpan starts a client span for a PostgreSQL statement on table.
func StartDBSpan(ctx context.Context, table string, operation DBOperation) (context.Context, EndFunc) {
	name := string(operation)
	attrs := []attribute.KeyValue{
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", string(operation)),
	}
	if table != "" {
		name += " " + table
		attrs = append(attrs, attribute.String("db.sql.table", table))
	}

	ctx, span := otel.Tracer(instrumentationName+"/db").Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	return ctx, ender(span)
}

// StartGatewaySpan starts a client span for a call to a payment gateway API.
func StartGatewaySpan(ctx context.Context, gateway, operation string) (context.Context, EndFunc) {
	ctx, span := otel.Tracer(instrumentationName+"/gateway").Start(ctx, gateway+" "+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("payment.gateway", gateway),
			attribute.String("payment.operation", operation),
		),
	)
	return ctx, ender(span)
}

// AddEvent records a named event on the span in ctx, if any.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// SetAttributes sets attributes on the span in ctx, if any.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}

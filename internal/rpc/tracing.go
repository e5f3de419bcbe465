package rpc

import (
	"context"

	"github.com/signalsfoundry/sitecover/internal/logging"
	"github.com/signalsfoundry/sitecover/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

const tracerName = "github.com/signalsfoundry/sitecover/internal/rpc"

// TracingUnaryServerInterceptor names and annotates the server span. When the
// otelgrpc stats handler is not installed it starts the span itself. The
// span status follows the gRPC code the caller will see.
func TracingUnaryServerInterceptor() grpc.UnaryServerInterceptor {
	tracer := otel.Tracer(tracerName)

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		service, method := observability.SplitMethod(info.FullMethod)
		name := "RPC/" + service + "/" + method

		span := trace.SpanFromContext(ctx)
		owned := !span.SpanContext().IsValid()
		if owned {
			ctx, span = tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()
		} else {
			span.SetName(name)
		}

		span.SetAttributes(
			attribute.String("rpc.system", "grpc"),
			attribute.String("rpc.service", service),
			attribute.String("rpc.method", method),
		)
		if id := logging.RequestIDFromContext(ctx); id != "" {
			span.SetAttributes(attribute.String("request_id", id))
		}

		resp, err := handler(ctx, req)
		code := status.Code(ToStatusError(err))
		span.SetAttributes(attribute.Int("rpc.grpc.status_code", int(code)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, code.String())
		}
		return resp, err
	}
}

func startSiteSpan(ctx context.Context, name string, siteID int64, extra ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs := append([]attribute.KeyValue{attribute.Int64("site.id", siteID)}, extra...)
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

func startGroupSpan(ctx context.Context, name string, groupID int64) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attribute.Int64("group.id", groupID)))
}

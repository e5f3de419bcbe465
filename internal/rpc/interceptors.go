package rpc

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/signalsfoundry/sitecover/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	requestIDMetadataKey = "x-request-id"
	maxRequestIDLen      = 128
)

// RequestIDUnaryServerInterceptor takes the request id from inbound
// metadata, or generates one, and stores it with a request logger on the
// context. The id is echoed back in the response header. Overlong ids are
// replaced.
func RequestIDUnaryServerInterceptor(base logging.Logger) grpc.UnaryServerInterceptor {
	if base == nil {
		base = logging.Noop()
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if id := incomingRequestID(ctx); id != "" {
			ctx = logging.ContextWithRequestID(ctx, id)
		}

		ctx, reqLog := logging.WithRequestLogger(ctx, base.With(logging.String("method", info.FullMethod)))
		ctx = logging.ContextWithLogger(ctx, reqLog)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDMetadataKey, logging.RequestIDFromContext(ctx)))

		return handler(ctx, req)
	}
}

// RecoveryUnaryServerInterceptor turns a handler panic into codes.Internal
// and logs the stack.
func RecoveryUnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				logging.FromContext(ctx, nil).Error(ctx, "panic in RPC handler",
					logging.String("method", info.FullMethod),
					logging.String("panic", fmt.Sprint(r)),
					logging.String("stack", string(debug.Stack())),
				)
				resp, err = nil, status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

// ErrorMappingUnaryServerInterceptor converts handler errors with
// ToStatusError so every method reports a meaningful code.
func ErrorMappingUnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		return resp, ToStatusError(err)
	}
}

func incomingRequestID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get(requestIDMetadataKey)
	if len(vals) == 0 || len(vals[0]) > maxRequestIDLen {
		return ""
	}
	return vals[0]
}

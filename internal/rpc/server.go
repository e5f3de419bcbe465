// Package rpc exposes the coverage service over gRPC.
package rpc

import (
	"github.com/signalsfoundry/sitecover/internal/logging"
	"github.com/signalsfoundry/sitecover/internal/observability"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServerOptions configures NewServer.
type ServerOptions struct {
	Logger  logging.Logger
	Metrics *observability.RPCCollector
	// Tracing installs the otelgrpc stats handler.
	Tracing bool
}

// NewServer builds a gRPC server with the request id, recovery, tracing,
// metrics and error mapping interceptors, the coverage service and the health service.
// The returned health server reports SERVING for the coverage service.
func NewServer(svc CoverageServiceServer, opts ServerOptions) (*grpc.Server, *health.Server) {
	interceptors := []grpc.UnaryServerInterceptor{
		RequestIDUnaryServerInterceptor(opts.Logger),
		RecoveryUnaryServerInterceptor(),
		TracingUnaryServerInterceptor(),
	}
	if opts.Metrics != nil {
		interceptors = append(interceptors, opts.Metrics.UnaryServerInterceptor())
	}
	interceptors = append(interceptors, ErrorMappingUnaryServerInterceptor())

	serverOpts := []grpc.ServerOption{grpc.ChainUnaryInterceptor(interceptors...)}
	if opts.Tracing {
		serverOpts = append(serverOpts, grpc.StatsHandler(otelgrpc.NewServerHandler()))
	}
	server := grpc.NewServer(serverOpts...)

	RegisterCoverageServiceServer(server, svc)
	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, hs)
	return server, hs
}

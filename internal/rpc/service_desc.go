package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "sitecover.v1.CoverageService"

const (
	EvaluateSiteMethod = "/" + ServiceName + "/EvaluateSite"
	EnrichGroupMethod  = "/" + ServiceName + "/EnrichGroup"
	MergeStatusMethod  = "/" + ServiceName + "/MergeStatus"
	SetVisitMethod     = "/" + ServiceName + "/SetVisit"
	FilterSitesMethod  = "/" + ServiceName + "/FilterSites"
	SiteHistoryMethod  = "/" + ServiceName + "/SiteHistory"
)

// CoverageServiceServer is the server API. Messages are JSON-shaped
// google.protobuf.Struct values.
type CoverageServiceServer interface {
	EvaluateSite(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EnrichGroup(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MergeStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetVisit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FilterSites(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SiteHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// CoverageServiceDesc describes the service for grpc.Server.RegisterService.
var CoverageServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CoverageServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "EvaluateSite", Handler: unaryHandler(EvaluateSiteMethod, CoverageServiceServer.EvaluateSite)},
		{MethodName: "EnrichGroup", Handler: unaryHandler(EnrichGroupMethod, CoverageServiceServer.EnrichGroup)},
		{MethodName: "MergeStatus", Handler: unaryHandler(MergeStatusMethod, CoverageServiceServer.MergeStatus)},
		{MethodName: "SetVisit", Handler: unaryHandler(SetVisitMethod, CoverageServiceServer.SetVisit)},
		{MethodName: "FilterSites", Handler: unaryHandler(FilterSitesMethod, CoverageServiceServer.FilterSites)},
		{MethodName: "SiteHistory", Handler: unaryHandler(SiteHistoryMethod, CoverageServiceServer.SiteHistory)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sitecover/v1/coverage.proto",
}

// RegisterCoverageServiceServer registers srv on s.
func RegisterCoverageServiceServer(s grpc.ServiceRegistrar, srv CoverageServiceServer) {
	s.RegisterService(&CoverageServiceDesc, srv)
}

type structMethod func(CoverageServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call structMethod) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CoverageServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(CoverageServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// CoverageServiceClient calls the service over a client connection.
type CoverageServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewCoverageServiceClient(cc grpc.ClientConnInterface) *CoverageServiceClient {
	return &CoverageServiceClient{cc: cc}
}

func (c *CoverageServiceClient) EvaluateSite(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, EvaluateSiteMethod, in, opts...)
}

func (c *CoverageServiceClient) EnrichGroup(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, EnrichGroupMethod, in, opts...)
}

func (c *CoverageServiceClient) MergeStatus(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MergeStatusMethod, in, opts...)
}

func (c *CoverageServiceClient) SetVisit(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, SetVisitMethod, in, opts...)
}

func (c *CoverageServiceClient) FilterSites(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, FilterSitesMethod, in, opts...)
}

func (c *CoverageServiceClient) SiteHistory(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, SiteHistoryMethod, in, opts...)
}

func (c *CoverageServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

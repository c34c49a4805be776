package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name. Requests and responses are
// google.protobuf.Struct messages carrying the JSON form of the service DTOs.
const ServiceName = "evaluation.v1.EvaluationAnalytics"

const (
	methodScoreSubmission     = "/" + ServiceName + "/ScoreSubmission"
	methodPreviewDraft        = "/" + ServiceName + "/PreviewDraft"
	methodGetDashboardMetrics = "/" + ServiceName + "/GetDashboardMetrics"
)

// EvaluationAnalyticsServer is the server API for the EvaluationAnalytics service.
type EvaluationAnalyticsServer interface {
	ScoreSubmission(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PreviewDraft(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetDashboardMetrics(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes EvaluationAnalytics for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EvaluationAnalyticsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ScoreSubmission", Handler: unaryHandler(methodScoreSubmission, EvaluationAnalyticsServer.ScoreSubmission)},
		{MethodName: "PreviewDraft", Handler: unaryHandler(methodPreviewDraft, EvaluationAnalyticsServer.PreviewDraft)},
		{MethodName: "GetDashboardMetrics", Handler: unaryHandler(methodGetDashboardMetrics, EvaluationAnalyticsServer.GetDashboardMetrics)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "evaluation/v1/evaluation.proto",
}

func RegisterEvaluationAnalyticsServer(s grpc.ServiceRegistrar, srv EvaluationAnalyticsServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type structMethod func(EvaluationAnalyticsServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call structMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(EvaluationAnalyticsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(EvaluationAnalyticsServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// EvaluationAnalyticsClient is the client API for the EvaluationAnalytics service.
type EvaluationAnalyticsClient struct {
	cc grpc.ClientConnInterface
}

func NewEvaluationAnalyticsClient(cc grpc.ClientConnInterface) *EvaluationAnalyticsClient {
	return &EvaluationAnalyticsClient{cc: cc}
}

func (c *EvaluationAnalyticsClient) ScoreSubmission(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodScoreSubmission, in, opts...)
}

func (c *EvaluationAnalyticsClient) PreviewDraft(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodPreviewDraft, in, opts...)
}

func (c *EvaluationAnalyticsClient) GetDashboardMetrics(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodGetDashboardMetrics, in, opts...)
}

func (c *EvaluationAnalyticsClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

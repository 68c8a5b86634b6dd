package safety

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"deriv-core/pkg/config"
)

// Register exposes e on s under the safety.v1.SafetyEngine service, the
// same contract Native speaks.
func Register(s grpc.ServiceRegistrar, e Engine) {
	s.RegisterService(&serviceDesc, e)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Engine)(nil),
	Methods: []grpc.MethodDesc{
		unary("Init", func(ctx context.Context, e Engine, in *structpb.Struct) (any, error) {
			var s config.Settings
			if err := fromStruct(in, &s); err != nil {
				return nil, err
			}
			return struct{}{}, e.Init(ctx, s)
		}),
		unary("ProcessTick", func(ctx context.Context, e Engine, in *structpb.Struct) (any, error) {
			var t Tick
			if err := fromStruct(in, &t); err != nil {
				return nil, err
			}
			return e.ProcessTick(ctx, t)
		}),
		unary("ExecuteTrade", func(ctx context.Context, e Engine, in *structpb.Struct) (any, error) {
			var p TradeParams
			if err := fromStruct(in, &p); err != nil {
				return nil, err
			}
			return e.ExecuteTrade(ctx, p)
		}),
		unary("GetState", func(ctx context.Context, e Engine, _ *structpb.Struct) (any, error) {
			return e.State(ctx)
		}),
	},
	Streams: []grpc.StreamDesc{},
}

type handler func(ctx context.Context, e Engine, in *structpb.Struct) (any, error)

func unary(name string, h handler) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			call := func(ctx context.Context, req any) (any, error) {
				out, err := h(ctx, srv.(Engine), req.(*structpb.Struct))
				if err != nil {
					return nil, err
				}
				return toStruct(out)
			}
			if interceptor == nil {
				return call(ctx, in)
			}
			return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: method(name)}, call)
		},
	}
}

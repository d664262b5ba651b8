package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Service and method names of the federated login API. Messages are
// google.protobuf.Struct documents.
const (
	ServiceName = "idlink.v1.FederatedLogin"
	LoginMethod = "/" + ServiceName + "/Login"
	LinkMethod  = "/" + ServiceName + "/Link"
	PingMethod  = "/" + ServiceName + "/Ping"

	IdentitiesMethod = "/" + ServiceName + "/Identities"
	RevokeMethod     = "/" + ServiceName + "/Revoke"
)

// FederatedLoginServer is the server API of the FederatedLogin service.
type FederatedLoginServer interface {
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Link(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Ping(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Identities(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Revoke(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(FederatedLoginServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(FederatedLoginServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(FederatedLoginServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// FederatedLoginServiceDesc describes the service for grpc.Server.RegisterService.
var FederatedLoginServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FederatedLoginServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Login", Handler: unaryHandler(LoginMethod, FederatedLoginServer.Login)},
		{MethodName: "Link", Handler: unaryHandler(LinkMethod, FederatedLoginServer.Link)},
		{MethodName: "Ping", Handler: unaryHandler(PingMethod, FederatedLoginServer.Ping)},
		{MethodName: "Identities", Handler: unaryHandler(IdentitiesMethod, FederatedLoginServer.Identities)},
		{MethodName: "Revoke", Handler: unaryHandler(RevokeMethod, FederatedLoginServer.Revoke)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "idlink/v1/federated_login.proto",
}

// RegisterFederatedLoginServer registers srv with s.
func RegisterFederatedLoginServer(s grpc.ServiceRegistrar, srv FederatedLoginServer) {
	s.RegisterService(&FederatedLoginServiceDesc, srv)
}

// FederatedLoginClient is the client API of the FederatedLogin service.
type FederatedLoginClient struct {
	cc grpc.ClientConnInterface
}

func NewFederatedLoginClient(cc grpc.ClientConnInterface) *FederatedLoginClient {
	return &FederatedLoginClient{cc: cc}
}

func (c *FederatedLoginClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FederatedLoginClient) Login(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, LoginMethod, in, opts...)
}

func (c *FederatedLoginClient) Link(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, LinkMethod, in, opts...)
}

func (c *FederatedLoginClient) Ping(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, PingMethod, in, opts...)
}

func (c *FederatedLoginClient) Identities(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, IdentitiesMethod, in, opts...)
}

func (c *FederatedLoginClient) Revoke(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, RevokeMethod, in, opts...)
}

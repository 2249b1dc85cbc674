package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Identity service names.
const (
	IdentityServiceName = "foodadvisor.v1.Identity"

	MethodLogin     = "/foodadvisor.v1.Identity/Login"
	MethodWhoAmI    = "/foodadvisor.v1.Identity/WhoAmI"
	MethodListUsers = "/foodadvisor.v1.Identity/ListUsers"
)

// PublicMethods need no token.
var PublicMethods = map[string]bool{MethodLogin: true}

// AdminMethods need the administrator role.
var AdminMethods = map[string]bool{MethodListUsers: true}

// IdentityServer is the server API of foodadvisor.v1.Identity. Messages are
// well-known protobuf types so no generated code is required.
type IdentityServer interface {
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WhoAmI(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListUsers(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterIdentityServer registers srv on s.
func RegisterIdentityServer(s grpc.ServiceRegistrar, srv IdentityServer) {
	s.RegisterService(&IdentityServiceDesc, srv)
}

func unaryHandler[Req any](method string, call func(IdentityServer, context.Context, *Req) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(IdentityServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(IdentityServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// IdentityServiceDesc describes foodadvisor.v1.Identity.
var IdentityServiceDesc = grpc.ServiceDesc{
	ServiceName: IdentityServiceName,
	HandlerType: (*IdentityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Login", Handler: unaryHandler(MethodLogin, IdentityServer.Login)},
		{MethodName: "WhoAmI", Handler: unaryHandler(MethodWhoAmI, IdentityServer.WhoAmI)},
		{MethodName: "ListUsers", Handler: unaryHandler(MethodListUsers, IdentityServer.ListUsers)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "foodadvisor/v1/identity.proto",
}

// IdentityClient calls foodadvisor.v1.Identity.
type IdentityClient struct {
	cc grpc.ClientConnInterface
}

// NewIdentityClient wraps a client connection.
func NewIdentityClient(cc grpc.ClientConnInterface) *IdentityClient {
	return &IdentityClient{cc: cc}
}

func (c *IdentityClient) Login(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodLogin, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *IdentityClient) WhoAmI(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodWhoAmI, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *IdentityClient) ListUsers(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodListUsers, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

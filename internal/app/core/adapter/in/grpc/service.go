package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName gRPC 服務名稱，payload 一律使用 google.protobuf.Struct
const ServiceName = "ledger.v1.LedgerService"

const (
	MethodCreateAccount = "/" + ServiceName + "/CreateAccount"
	MethodLogin         = "/" + ServiceName + "/Login"
	MethodDeposit       = "/" + ServiceName + "/Deposit"
	MethodWithdraw      = "/" + ServiceName + "/Withdraw"
	MethodTransfer      = "/" + ServiceName + "/Transfer"
	MethodGetAccount    = "/" + ServiceName + "/GetAccount"
)

// LedgerServiceServer 帳務服務的 server 端介面
type LedgerServiceServer interface {
	CreateAccount(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Deposit(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Withdraw(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Transfer(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	GetAccount(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// LedgerServiceDesc 手動宣告的 ServiceDesc，取代 protoc 產生的程式碼
var LedgerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateAccount", Handler: unaryHandler(MethodCreateAccount, LedgerServiceServer.CreateAccount)},
		{MethodName: "Login", Handler: unaryHandler(MethodLogin, LedgerServiceServer.Login)},
		{MethodName: "Deposit", Handler: unaryHandler(MethodDeposit, LedgerServiceServer.Deposit)},
		{MethodName: "Withdraw", Handler: unaryHandler(MethodWithdraw, LedgerServiceServer.Withdraw)},
		{MethodName: "Transfer", Handler: unaryHandler(MethodTransfer, LedgerServiceServer.Transfer)},
		{MethodName: "GetAccount", Handler: unaryHandler(MethodGetAccount, LedgerServiceServer.GetAccount)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ledger/v1/ledger.proto",
}

// RegisterLedgerServiceServer 註冊服務
func RegisterLedgerServiceServer(s grpc.ServiceRegistrar, srv LedgerServiceServer) {
	s.RegisterService(&LedgerServiceDesc, srv)
}

type unaryMethod func(LedgerServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

type methodHandler = func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error)

func unaryHandler(fullMethod string, call unaryMethod) methodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LedgerServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// LedgerServiceClient 帳務服務的 client
type LedgerServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewLedgerServiceClient(cc grpc.ClientConnInterface) *LedgerServiceClient {
	return &LedgerServiceClient{cc: cc}
}

func (c *LedgerServiceClient) CreateAccount(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodCreateAccount, in, opts...)
}

func (c *LedgerServiceClient) Login(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodLogin, in, opts...)
}

func (c *LedgerServiceClient) Deposit(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodDeposit, in, opts...)
}

func (c *LedgerServiceClient) Withdraw(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodWithdraw, in, opts...)
}

func (c *LedgerServiceClient) Transfer(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodTransfer, in, opts...)
}

func (c *LedgerServiceClient) GetAccount(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetAccount, in, opts...)
}

func (c *LedgerServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

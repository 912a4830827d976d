package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "booking.v1.BookingService"

// BookingServiceServer — RPC ядра бронирования.
type BookingServiceServer interface {
	CreateBooking(context.Context, *CreateBookingRequest) (*BookingReply, error)
	CancelBooking(context.Context, *CancelBookingRequest) (*BookingReply, error)
	DeclineBooking(context.Context, *DeclineBookingRequest) (*BookingReply, error)
	GetBooking(context.Context, *GetBookingRequest) (*BookingReply, error)
	InitiatePayment(context.Context, *InitiatePaymentRequest) (*PaymentReply, error)
	// HandleGatewayCallback принимает тело вебхука как есть: transaction_id, status и поля шлюза.
	HandleGatewayCallback(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RequestRefund(context.Context, *RequestRefundRequest) (*PaymentReply, error)
	ApproveRefund(context.Context, *ApproveRefundRequest) (*PaymentReply, error)
	RejectRefund(context.Context, *RejectRefundRequest) (*PaymentReply, error)
	RequestPayout(context.Context, *RequestPayoutRequest) (*PayoutReply, error)
	ProcessPayout(context.Context, *ProcessPayoutRequest) (*PayoutReply, error)
	FailPayout(context.Context, *FailPayoutRequest) (*PayoutReply, error)
	GetBalance(context.Context, *GetBalanceRequest) (*BalanceReply, error)
}

// BookingServiceDesc собран вручную в том же виде, что и сгенерированный protoc-gen-go-grpc.
var BookingServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BookingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateBooking", BookingServiceServer.CreateBooking),
		unary("CancelBooking", BookingServiceServer.CancelBooking),
		unary("DeclineBooking", BookingServiceServer.DeclineBooking),
		unary("GetBooking", BookingServiceServer.GetBooking),
		unary("InitiatePayment", BookingServiceServer.InitiatePayment),
		unary("HandleGatewayCallback", BookingServiceServer.HandleGatewayCallback),
		unary("RequestRefund", BookingServiceServer.RequestRefund),
		unary("ApproveRefund", BookingServiceServer.ApproveRefund),
		unary("RejectRefund", BookingServiceServer.RejectRefund),
		unary("RequestPayout", BookingServiceServer.RequestPayout),
		unary("ProcessPayout", BookingServiceServer.ProcessPayout),
		unary("FailPayout", BookingServiceServer.FailPayout),
		unary("GetBalance", BookingServiceServer.GetBalance),
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterBookingServiceServer(s grpc.ServiceRegistrar, srv BookingServiceServer) {
	s.RegisterService(&BookingServiceDesc, srv)
}

func unary[Req, Resp any](name string, call func(BookingServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			impl := srv.(BookingServiceServer)
			if interceptor == nil {
				return call(impl, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(impl, ctx, req.(*Req))
			})
		},
	}
}

// Client — клиент BookingService поверх любого соединения; всегда шлёт JSON.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateBooking(ctx context.Context, in *CreateBookingRequest, opts ...grpc.CallOption) (*BookingReply, error) {
	return invoke[BookingReply](ctx, c.cc, "CreateBooking", in, opts)
}

func (c *Client) CancelBooking(ctx context.Context, in *CancelBookingRequest, opts ...grpc.CallOption) (*BookingReply, error) {
	return invoke[BookingReply](ctx, c.cc, "CancelBooking", in, opts)
}

func (c *Client) DeclineBooking(ctx context.Context, in *DeclineBookingRequest, opts ...grpc.CallOption) (*BookingReply, error) {
	return invoke[BookingReply](ctx, c.cc, "DeclineBooking", in, opts)
}

func (c *Client) GetBooking(ctx context.Context, in *GetBookingRequest, opts ...grpc.CallOption) (*BookingReply, error) {
	return invoke[BookingReply](ctx, c.cc, "GetBooking", in, opts)
}

func (c *Client) InitiatePayment(ctx context.Context, in *InitiatePaymentRequest, opts ...grpc.CallOption) (*PaymentReply, error) {
	return invoke[PaymentReply](ctx, c.cc, "InitiatePayment", in, opts)
}

func (c *Client) HandleGatewayCallback(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, "HandleGatewayCallback", in, opts)
}

func (c *Client) RequestRefund(ctx context.Context, in *RequestRefundRequest, opts ...grpc.CallOption) (*PaymentReply, error) {
	return invoke[PaymentReply](ctx, c.cc, "RequestRefund", in, opts)
}

func (c *Client) ApproveRefund(ctx context.Context, in *ApproveRefundRequest, opts ...grpc.CallOption) (*PaymentReply, error) {
	return invoke[PaymentReply](ctx, c.cc, "ApproveRefund", in, opts)
}

func (c *Client) RejectRefund(ctx context.Context, in *RejectRefundRequest, opts ...grpc.CallOption) (*PaymentReply, error) {
	return invoke[PaymentReply](ctx, c.cc, "RejectRefund", in, opts)
}

func (c *Client) RequestPayout(ctx context.Context, in *RequestPayoutRequest, opts ...grpc.CallOption) (*PayoutReply, error) {
	return invoke[PayoutReply](ctx, c.cc, "RequestPayout", in, opts)
}

func (c *Client) ProcessPayout(ctx context.Context, in *ProcessPayoutRequest, opts ...grpc.CallOption) (*PayoutReply, error) {
	return invoke[PayoutReply](ctx, c.cc, "ProcessPayout", in, opts)
}

func (c *Client) FailPayout(ctx context.Context, in *FailPayoutRequest, opts ...grpc.CallOption) (*PayoutReply, error) {
	return invoke[PayoutReply](ctx, c.cc, "FailPayout", in, opts)
}

func (c *Client) GetBalance(ctx context.Context, in *GetBalanceRequest, opts ...grpc.CallOption) (*BalanceReply, error) {
	return invoke[BalanceReply](ctx, c.cc, "GetBalance", in, opts)
}

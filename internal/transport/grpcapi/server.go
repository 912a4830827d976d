// Package grpcapi реализует gRPC-поверхность ядра бронирования.
package grpcapi

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Leganyst/tour-marketplace/internal/model"
	"github.com/Leganyst/tour-marketplace/internal/policy"
	"github.com/Leganyst/tour-marketplace/internal/service"
	"github.com/Leganyst/tour-marketplace/internal/transport/view"
)

type Services struct {
	Bookings *service.BookingService
	Payments *service.PaymentService
	Payouts  *service.PayoutService
}

type Server struct {
	svc Services
}

var _ BookingServiceServer = (*Server)(nil)

func NewServer(svc Services) *Server {
	return &Server{svc: svc}
}

// New собирает gRPC-сервер с сервисом бронирования и health-checks.
// Порядок перехватчиков: recovery, логирование, перевод ошибок в статусы.
func New(svc Services, log logrus.FieldLogger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts = append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			recoveryInterceptor(log),
			loggingInterceptor(log),
			errorInterceptor(),
		),
	}, opts...)
	srv := grpc.NewServer(opts...)
	RegisterBookingServiceServer(srv, NewServer(svc))

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return srv, hs
}

func (s *Server) CreateBooking(ctx context.Context, req *CreateBookingRequest) (*BookingReply, error) {
	actor, err := requireActor(ctx, model.ActorTraveler)
	if err != nil {
		return nil, err
	}
	res, err := s.svc.Bookings.CreateBooking(ctx, service.CreateBookingInput{
		TourID:          req.TourID,
		SlotID:          req.SlotID,
		TouristID:       actor.ID,
		NumGuests:       req.NumGuests,
		SpecialRequests: req.SpecialRequests,
	})
	if err != nil {
		return nil, err
	}
	p := view.FromPayment(res.Payment)
	return &BookingReply{Booking: view.FromBooking(res.Booking), Payment: &p}, nil
}

func (s *Server) CancelBooking(ctx context.Context, req *CancelBookingRequest) (*BookingReply, error) {
	actor, err := requireActor(ctx, model.ActorTraveler, model.ActorGuide, model.ActorAdmin)
	if err != nil {
		return nil, err
	}
	res, err := s.svc.Bookings.CancelBooking(ctx, service.CancelInput{
		BookingID:    req.BookingID,
		Actor:        actor,
		Reason:       req.Reason,
		Circumstance: policy.Circumstance(strings.ToUpper(strings.TrimSpace(req.Circumstance))),
	})
	if err != nil {
		return nil, err
	}
	out := &BookingReply{
		Booking:      view.FromBooking(res.Booking),
		RefundTier:   string(res.Quote.Tier),
		RefundAmount: res.RefundAmount,
	}
	if res.Payment != nil {
		p := view.FromPayment(res.Payment)
		out.Payment = &p
	}
	return out, nil
}

func (s *Server) DeclineBooking(ctx context.Context, req *DeclineBookingRequest) (*BookingReply, error) {
	actor, err := requireActor(ctx, model.ActorGuide)
	if err != nil {
		return nil, err
	}
	b, err := s.svc.Bookings.DeclineBooking(ctx, req.BookingID, actor.ID, req.Reason)
	if err != nil {
		return nil, err
	}
	return &BookingReply{Booking: view.FromBooking(b)}, nil
}

func (s *Server) GetBooking(ctx context.Context, req *GetBookingRequest) (*BookingReply, error) {
	actor, err := requireActor(ctx, model.ActorTraveler, model.ActorGuide, model.ActorAdmin)
	if err != nil {
		return nil, err
	}
	b, err := s.svc.Bookings.GetBooking(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if err := actor.CanAccess(b); err != nil {
		return nil, err
	}
	out := &BookingReply{Booking: view.FromBooking(b)}
	payments, err := s.svc.Payments.ListBookingPayments(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	if n := len(payments); n > 0 {
		p := view.FromPayment(&payments[n-1])
		out.Payment = &p
	}
	return out, nil
}

func (s *Server) InitiatePayment(ctx context.Context, req *InitiatePaymentRequest) (*PaymentReply, error) {
	actor, err := requireActor(ctx, model.ActorTraveler, model.ActorAdmin)
	if err != nil {
		return nil, err
	}
	if err := s.checkPaymentOwner(ctx, req.PaymentID, actor); err != nil {
		return nil, err
	}
	res, err := s.svc.Payments.InitiatePayment(ctx, req.PaymentID)
	if err != nil {
		return nil, err
	}
	return &PaymentReply{Payment: view.FromPayment(res.Payment), RedirectURL: res.RedirectURL}, nil
}

func (s *Server) HandleGatewayCallback(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if _, err := requireActor(ctx, model.ActorSystem); err != nil {
		return nil, err
	}
	payload := req.AsMap()
	outcome, err := s.svc.Payments.HandleGatewayCallback(ctx, service.CallbackInput{
		TransactionID: stringField(payload, "transaction_id", "transactionId"),
		Status:        stringField(payload, "status"),
		Payload:       payload,
	})
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]any{"outcome": string(outcome)})
}

func (s *Server) RequestRefund(ctx context.Context, req *RequestRefundRequest) (*PaymentReply, error) {
	actor, err := requireActor(ctx, model.ActorAdmin, model.ActorSystem)
	if err != nil {
		return nil, err
	}
	p, err := s.svc.Payments.RequestRefund(ctx, service.RefundRequest{
		PaymentID:  req.PaymentID,
		Reason:     req.Reason,
		Amount:     req.Amount,
		AdminNotes: req.AdminNotes,
		Actor:      actor,
	})
	if err != nil {
		return nil, err
	}
	return &PaymentReply{Payment: view.FromPayment(p)}, nil
}

func (s *Server) ApproveRefund(ctx context.Context, req *ApproveRefundRequest) (*PaymentReply, error) {
	actor, err := requireActor(ctx, model.ActorAdmin)
	if err != nil {
		return nil, err
	}
	p, err := s.svc.Payments.ApproveRefund(ctx, req.PaymentID, req.AdminNotes, actor)
	if err != nil {
		return nil, err
	}
	return &PaymentReply{Payment: view.FromPayment(p)}, nil
}

func (s *Server) RejectRefund(ctx context.Context, req *RejectRefundRequest) (*PaymentReply, error) {
	actor, err := requireActor(ctx, model.ActorAdmin)
	if err != nil {
		return nil, err
	}
	p, err := s.svc.Payments.RejectRefund(ctx, req.PaymentID, req.Reason, actor)
	if err != nil {
		return nil, err
	}
	return &PaymentReply{Payment: view.FromPayment(p)}, nil
}

func (s *Server) RequestPayout(ctx context.Context, req *RequestPayoutRequest) (*PayoutReply, error) {
	actor, err := requireActor(ctx, model.ActorGuide)
	if err != nil {
		return nil, err
	}
	p, err := s.svc.Payouts.RequestPayout(ctx, service.PayoutRequest{
		GuideID:        actor.ID,
		Amount:         req.Amount,
		PaymentMethod:  req.PaymentMethod,
		AccountDetails: req.AccountDetails,
	})
	if err != nil {
		return nil, err
	}
	return &PayoutReply{Payout: view.FromPayout(p)}, nil
}

func (s *Server) ProcessPayout(ctx context.Context, req *ProcessPayoutRequest) (*PayoutReply, error) {
	actor, err := requireActor(ctx, model.ActorAdmin)
	if err != nil {
		return nil, err
	}
	p, err := s.svc.Payouts.ProcessPayout(ctx, req.PayoutID, req.ProviderPayoutID, actor)
	if err != nil {
		return nil, err
	}
	return &PayoutReply{Payout: view.FromPayout(p)}, nil
}

func (s *Server) FailPayout(ctx context.Context, req *FailPayoutRequest) (*PayoutReply, error) {
	actor, err := requireActor(ctx, model.ActorAdmin)
	if err != nil {
		return nil, err
	}
	p, err := s.svc.Payouts.FailPayout(ctx, req.PayoutID, req.Reason, actor)
	if err != nil {
		return nil, err
	}
	return &PayoutReply{Payout: view.FromPayout(p)}, nil
}

func (s *Server) GetBalance(ctx context.Context, req *GetBalanceRequest) (*BalanceReply, error) {
	actor, err := requireActor(ctx, model.ActorGuide, model.ActorAdmin)
	if err != nil {
		return nil, err
	}
	guideID := req.GuideID
	if actor.Kind == model.ActorGuide {
		if guideID != uuid.Nil && guideID != actor.ID {
			return nil, status.Error(codes.PermissionDenied, "guide may read only own balance")
		}
		guideID = actor.ID
	}
	bal, err := s.svc.Payouts.AvailableBalance(ctx, guideID)
	if err != nil {
		return nil, err
	}
	return &BalanceReply{
		GuideID:   bal.GuideID,
		Earned:    bal.Earned,
		Locked:    bal.Locked,
		Available: bal.Available,
		Pending:   bal.Pending,
		SentNet:   bal.Sent,
		Currency:  bal.Currency,
	}, nil
}

func (s *Server) checkPaymentOwner(ctx context.Context, paymentID uuid.UUID, actor service.Actor) error {
	p, err := s.svc.Payments.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	b, err := s.svc.Bookings.GetBooking(ctx, p.BookingID)
	if err != nil {
		return err
	}
	return actor.CanAccess(b)
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

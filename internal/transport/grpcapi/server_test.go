package grpcapi

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Leganyst/tour-marketplace/internal/db/dbtest"
	"github.com/Leganyst/tour-marketplace/internal/gateway"
	"github.com/Leganyst/tour-marketplace/internal/logging"
	"github.com/Leganyst/tour-marketplace/internal/model"
	"github.com/Leganyst/tour-marketplace/internal/notify"
	"github.com/Leganyst/tour-marketplace/internal/policy"
	"github.com/Leganyst/tour-marketplace/internal/service"
)

type harness struct {
	client *Client
	conn   *grpc.ClientConn
	guide  *model.Guide
	tour   *model.Tour
	slot   *model.AvailabilitySlot
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	gdb := dbtest.Open(t)
	settings := policy.Settings{
		PlatformFee:     policy.FeeConfig{Enabled: true, Type: policy.FeePercentage, Percentage: 10},
		ServiceFee:      policy.FeeConfig{Enabled: true, Type: policy.FeePercentage, Percentage: 10},
		MinimumPayout:   500,
		DefaultCurrency: "USD",
	}
	d := service.NewDeps(gdb, settings, notify.Nop{}, logging.Discard())

	guide := &model.Guide{DisplayName: "Harbour Tours"}
	if err := gdb.Create(guide).Error; err != nil {
		t.Fatalf("create guide: %v", err)
	}
	tour := &model.Tour{GuideID: guide.ID, Title: "Night kayak", Currency: "USD", IsActive: true}
	if err := gdb.Create(tour).Error; err != nil {
		t.Fatalf("create tour: %v", err)
	}
	slot, err := service.NewAvailabilityService(d).CreateSlot(context.Background(), service.CreateSlotInput{
		GuideID:        guide.ID,
		TourID:         tour.ID,
		StartTime:      time.Now().UTC().Add(72 * time.Hour).Truncate(time.Minute),
		DurationMins:   120,
		PricePerPerson: 1000,
		MaxGroupSize:   2,
	})
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}

	srv, _ := New(Services{
		Bookings: service.NewBookingService(d),
		Payments: service.NewPaymentService(d, gateway.NewSandbox(""), time.Second),
		Payouts:  service.NewPayoutService(d),
	}, logging.Discard())

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufconn: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return &harness{client: NewClient(conn), conn: conn, guide: guide, tour: tour, slot: slot}
}

func as(kind model.ActorKind, id uuid.UUID) context.Context {
	return WithActor(context.Background(), service.Actor{Kind: kind, ID: id})
}

func wantCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	if got := status.Code(err); got != code {
		t.Fatalf("expected %s, got %s (%v)", code, got, err)
	}
}

func TestBookingService_EndToEnd(t *testing.T) {
	h := newHarness(t)
	traveler := uuid.New()
	system := as(model.ActorSystem, uuid.Nil)

	created, err := h.client.CreateBooking(as(model.ActorTraveler, traveler), &CreateBookingRequest{
		TourID:    h.tour.ID,
		SlotID:    h.slot.ID,
		NumGuests: 2,
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	if created.Booking.AmountTotal != 2200 || created.Booking.TouristID != traveler || created.Payment == nil {
		t.Fatalf("unexpected booking reply: %+v", created)
	}

	_, err = h.client.CreateBooking(as(model.ActorTraveler, uuid.New()), &CreateBookingRequest{
		TourID:    h.tour.ID,
		SlotID:    h.slot.ID,
		NumGuests: 1,
	})
	wantCode(t, err, codes.ResourceExhausted)

	started, err := h.client.InitiatePayment(as(model.ActorTraveler, traveler), &InitiatePaymentRequest{PaymentID: created.Payment.ID})
	if err != nil {
		t.Fatalf("initiate payment: %v", err)
	}
	if started.RedirectURL == "" || started.Payment.TransactionID == nil {
		t.Fatalf("expected redirect and transaction id, got %+v", started)
	}

	body, err := structpb.NewStruct(map[string]any{
		"transaction_id": *started.Payment.TransactionID,
		"status":         "succeeded",
	})
	if err != nil {
		t.Fatalf("callback body: %v", err)
	}
	for i, want := range []string{"APPLIED", "DUPLICATE"} {
		out, err := h.client.HandleGatewayCallback(system, body)
		if err != nil {
			t.Fatalf("callback #%d: %v", i+1, err)
		}
		if got := out.GetFields()["outcome"].GetStringValue(); got != want {
			t.Fatalf("callback #%d: expected %s, got %s", i+1, want, got)
		}
	}

	got, err := h.client.GetBooking(as(model.ActorGuide, h.guide.ID), &GetBookingRequest{BookingID: created.Booking.ID})
	if err != nil {
		t.Fatalf("get booking: %v", err)
	}
	if got.Booking.Status != string(model.BookingStatusConfirmed) || got.Payment == nil || got.Payment.Status != string(model.PaymentStatusSucceeded) {
		t.Fatalf("expected confirmed and paid, got %+v", got)
	}

	_, err = h.client.GetBooking(as(model.ActorTraveler, uuid.New()), &GetBookingRequest{BookingID: created.Booking.ID})
	wantCode(t, err, codes.PermissionDenied)

	cancelled, err := h.client.CancelBooking(as(model.ActorTraveler, traveler), &CancelBookingRequest{
		BookingID: created.Booking.ID,
		Reason:    "flight cancelled",
	})
	if err != nil {
		t.Fatalf("cancel booking: %v", err)
	}
	if cancelled.RefundTier != string(policy.TierFull) || cancelled.RefundAmount != 2200 {
		t.Fatalf("expected full refund of 2200, got %s %d", cancelled.RefundTier, cancelled.RefundAmount)
	}
	if cancelled.Payment == nil || cancelled.Payment.Status != string(model.PaymentStatusRefundPending) {
		t.Fatalf("expected REFUND_PENDING payment, got %+v", cancelled.Payment)
	}

	_, err = h.client.CancelBooking(as(model.ActorTraveler, traveler), &CancelBookingRequest{
		BookingID: created.Booking.ID,
		Reason:    "again",
	})
	wantCode(t, err, codes.FailedPrecondition)

	approved, err := h.client.ApproveRefund(as(model.ActorAdmin, uuid.New()), &ApproveRefundRequest{
		PaymentID:  created.Payment.ID,
		AdminNotes: "ok",
	})
	if err != nil {
		t.Fatalf("approve refund: %v", err)
	}
	if approved.Payment.Status != string(model.PaymentStatusRefunded) {
		t.Fatalf("expected REFUNDED, got %s", approved.Payment.Status)
	}
}

func TestBookingService_ActorRules(t *testing.T) {
	h := newHarness(t)

	_, err := h.client.CreateBooking(context.Background(), &CreateBookingRequest{TourID: h.tour.ID, SlotID: h.slot.ID, NumGuests: 1})
	wantCode(t, err, codes.Unauthenticated)

	_, err = h.client.CreateBooking(as(model.ActorGuide, h.guide.ID), &CreateBookingRequest{TourID: h.tour.ID, SlotID: h.slot.ID, NumGuests: 1})
	wantCode(t, err, codes.PermissionDenied)

	_, err = h.client.ApproveRefund(as(model.ActorTraveler, uuid.New()), &ApproveRefundRequest{PaymentID: uuid.New()})
	wantCode(t, err, codes.PermissionDenied)

	_, err = h.client.HandleGatewayCallback(as(model.ActorAdmin, uuid.New()), &structpb.Struct{})
	wantCode(t, err, codes.PermissionDenied)

	_, err = h.client.GetBalance(as(model.ActorGuide, h.guide.ID), &GetBalanceRequest{GuideID: uuid.New()})
	wantCode(t, err, codes.PermissionDenied)

	_, err = h.client.CreateBooking(as(model.ActorTraveler, uuid.New()), &CreateBookingRequest{TourID: h.tour.ID, SlotID: h.slot.ID, NumGuests: 0})
	wantCode(t, err, codes.InvalidArgument)

	_, err = h.client.GetBooking(as(model.ActorAdmin, uuid.New()), &GetBookingRequest{BookingID: uuid.New()})
	wantCode(t, err, codes.NotFound)
}

func TestBookingService_PayoutsAndBalance(t *testing.T) {
	h := newHarness(t)
	guideCtx := as(model.ActorGuide, h.guide.ID)

	bal, err := h.client.GetBalance(guideCtx, &GetBalanceRequest{})
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if bal.GuideID != h.guide.ID || bal.Available != 0 || bal.Currency != "USD" {
		t.Fatalf("unexpected balance: %+v", bal)
	}

	_, err = h.client.RequestPayout(guideCtx, &RequestPayoutRequest{Amount: 100, PaymentMethod: "bank_transfer"})
	wantCode(t, err, codes.InvalidArgument)

	_, err = h.client.RequestPayout(guideCtx, &RequestPayoutRequest{Amount: 1000, PaymentMethod: "bank_transfer"})
	wantCode(t, err, codes.FailedPrecondition)

	_, err = h.client.ProcessPayout(as(model.ActorAdmin, uuid.New()), &ProcessPayoutRequest{PayoutID: uuid.New()})
	wantCode(t, err, codes.NotFound)
}

func TestHealthService(t *testing.T) {
	h := newHarness(t)
	resp, err := healthpb.NewHealthClient(h.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %s", resp.GetStatus())
	}
}

func TestToStatus(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{nil, codes.OK},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{status.Error(codes.Unauthenticated, "x"), codes.Unauthenticated},
		{errString("boom"), codes.Internal},
	}
	for _, c := range cases {
		if got := status.Code(toStatus(c.err)); got != c.want {
			t.Fatalf("toStatus(%v): expected %s, got %s", c.err, c.want, got)
		}
	}
}

type errString string

func (e errString) Error() string { return string(e) }

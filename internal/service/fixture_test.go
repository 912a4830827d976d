package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/tour-marketplace/internal/apperr"
	"github.com/Leganyst/tour-marketplace/internal/calendar"
	"github.com/Leganyst/tour-marketplace/internal/db/dbtest"
	"github.com/Leganyst/tour-marketplace/internal/gateway"
	"github.com/Leganyst/tour-marketplace/internal/logging"
	"github.com/Leganyst/tour-marketplace/internal/model"
	"github.com/Leganyst/tour-marketplace/internal/notify"
	"github.com/Leganyst/tour-marketplace/internal/policy"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingNotifier) Notify(_ context.Context, e notify.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingNotifier) count(typ model.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

type fixture struct {
	db    *gorm.DB
	d     *Deps
	gw    *gateway.Sandbox
	notes *recordingNotifier

	mu    sync.Mutex
	clock time.Time

	avail    *AvailabilityService
	bookings *BookingService
	payments *PaymentService
	payouts  *PayoutService
}

func testSettings() policy.Settings {
	return policy.Settings{
		PlatformFee:     policy.FeeConfig{Enabled: true, Type: policy.FeePercentage, Percentage: 10},
		ServiceFee:      policy.FeeConfig{Enabled: true, Type: policy.FeePercentage, Percentage: 10},
		MinimumPayout:   500,
		DefaultCurrency: "USD",
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		db:    dbtest.Open(t),
		gw:    gateway.NewSandbox(""),
		notes: &recordingNotifier{},
		clock: time.Now().UTC().Truncate(time.Second),
	}
	f.d = NewDeps(f.db, testSettings(), f.notes, logging.Discard())
	f.d.Now = f.now

	f.avail = NewAvailabilityService(f.d)
	f.bookings = NewBookingService(f.d)
	f.payments = NewPaymentService(f.d, f.gw, time.Second)
	f.payouts = NewPayoutService(f.d)
	return f
}

func (f *fixture) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clock
}

func (f *fixture) setNow(at time.Time) {
	f.mu.Lock()
	f.clock = at.UTC()
	f.mu.Unlock()
}

func (f *fixture) seedTour(t *testing.T) (*model.Guide, *model.Tour) {
	t.Helper()

	guide := &model.Guide{DisplayName: "Old Town Walks"}
	if err := f.db.Create(guide).Error; err != nil {
		t.Fatalf("create guide: %v", err)
	}
	tour := &model.Tour{
		GuideID:  guide.ID,
		Title:    "Rooftops at dusk",
		Currency: "USD",
		IsActive: true,
	}
	if err := f.db.Create(tour).Error; err != nil {
		t.Fatalf("create tour: %v", err)
	}
	return guide, tour
}

// seedSlot создаёт слот через сервис и при необходимости занимает booked мест.
func (f *fixture) seedSlot(t *testing.T, guide *model.Guide, tour *model.Tour, start time.Time, price int64, maxGroup, booked int) *model.AvailabilitySlot {
	t.Helper()

	slot, err := f.avail.CreateSlot(context.Background(), CreateSlotInput{
		GuideID:        guide.ID,
		TourID:         tour.ID,
		StartTime:      start,
		DurationMins:   180,
		PricePerPerson: price,
		MaxGroupSize:   maxGroup,
	})
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}
	if booked > 0 {
		if err := f.avail.ReserveSeats(context.Background(), slot.ID, booked); err != nil {
			t.Fatalf("pre-book seats: %v", err)
		}
		slot.BookedCount = booked
	}
	return slot
}

func (f *fixture) book(t *testing.T, tour *model.Tour, slot *model.AvailabilitySlot, guests int) *CreateBookingResult {
	t.Helper()

	res, err := f.bookings.CreateBooking(context.Background(), CreateBookingInput{
		TourID:    tour.ID,
		SlotID:    slot.ID,
		TouristID: uuid.New(),
		NumGuests: guests,
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return res
}

// pay проводит попытку через песочницу и подтверждает её вебхуком.
func (f *fixture) pay(t *testing.T, p *model.Payment) string {
	t.Helper()

	ctx := context.Background()
	started, err := f.payments.InitiatePayment(ctx, p.ID)
	if err != nil {
		t.Fatalf("initiate payment: %v", err)
	}
	txID := *started.Payment.TransactionID
	outcome, err := f.payments.HandleGatewayCallback(ctx, CallbackInput{TransactionID: txID, Status: "succeeded"})
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	if outcome != CallbackApplied {
		t.Fatalf("expected APPLIED, got %s", outcome)
	}
	return txID
}

func (f *fixture) reloadBooking(t *testing.T, id uuid.UUID) *model.Booking {
	t.Helper()
	b, err := f.d.Bookings.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload booking: %v", err)
	}
	return b
}

func (f *fixture) reloadPayment(t *testing.T, id uuid.UUID) *model.Payment {
	t.Helper()
	p, err := f.d.Payments.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload payment: %v", err)
	}
	return p
}

func (f *fixture) reloadSlot(t *testing.T, id uuid.UUID) *model.AvailabilitySlot {
	t.Helper()
	s, err := f.d.Slots.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload slot: %v", err)
	}
	return s
}

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if !errors.Is(err, &apperr.Error{Kind: kind}) {
		t.Fatalf("expected %s error, got %v", kind, err)
	}
}

func calendarPage(page, size int) calendar.PageRequest {
	return calendar.PageRequest{Page: page, PageSize: size}
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/tour-marketplace/internal/model"
)

func (f *fixture) backdateBooking(t *testing.T, id uuid.UUID, at time.Time) {
	t.Helper()
	err := f.db.Model(&model.Booking{}).
		Where("id = ?", id).
		UpdateColumn("created_at", at.UTC()).Error
	if err != nil {
		t.Fatalf("backdate booking: %v", err)
	}
}

func TestSweeper_CompleteElapsed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	guide, tour := f.seedTour(t)

	early := f.seedSlot(t, guide, tour, f.now().Add(24*time.Hour), 1000, 4, 0)
	late := f.seedSlot(t, guide, tour, f.now().Add(96*time.Hour), 1000, 4, 0)

	done := f.book(t, tour, early, 1)
	f.pay(t, done.Payment)
	upcoming := f.book(t, tour, late, 1)
	f.pay(t, upcoming.Payment)
	unpaid := f.book(t, tour, early, 1)

	sweeper := NewSweeper(f.d, f.bookings, 0, time.Minute)
	rep, err := sweeper.CompleteElapsed(ctx, early.EndTime.Add(time.Hour))
	if err != nil {
		t.Fatalf("complete elapsed: %v", err)
	}
	if rep.Completed != 1 {
		t.Fatalf("expected 1 completed, got %+v", rep)
	}
	if got := f.reloadBooking(t, done.Booking.ID).Status; got != model.BookingStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", got)
	}
	if got := f.reloadBooking(t, upcoming.Booking.ID).Status; got != model.BookingStatusConfirmed {
		t.Fatalf("future tour must stay CONFIRMED, got %s", got)
	}
	if got := f.reloadBooking(t, unpaid.Booking.ID).Status; got != model.BookingStatusPending {
		t.Fatalf("unpaid booking must not complete, got %s", got)
	}

	// Повторный проход ничего не меняет.
	rep, err = sweeper.CompleteElapsed(ctx, early.EndTime.Add(time.Hour))
	if err != nil {
		t.Fatalf("repeat sweep: %v", err)
	}
	if rep.Completed != 0 {
		t.Fatalf("expected nothing on repeat, got %+v", rep)
	}
}

func TestSweeper_ExpireUnpaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	guide, tour := f.seedTour(t)
	slot := f.seedSlot(t, guide, tour, f.now().Add(72*time.Hour), 1000, 6, 0)

	stale := f.book(t, tour, slot, 2)
	inFlight := f.book(t, tour, slot, 1)
	fresh := f.book(t, tour, slot, 1)
	paid := f.book(t, tour, slot, 1)
	f.pay(t, paid.Payment)

	if _, err := f.payments.InitiatePayment(ctx, inFlight.Payment.ID); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	old := time.Now().UTC().Add(-2 * time.Hour)
	f.backdateBooking(t, stale.Booking.ID, old)
	f.backdateBooking(t, inFlight.Booking.ID, old)
	f.backdateBooking(t, paid.Booking.ID, old)

	sweeper := NewSweeper(f.d, f.bookings, 30*time.Minute, time.Minute)
	rep, err := sweeper.ExpireUnpaid(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("expire unpaid: %v", err)
	}
	if rep.Expired != 1 {
		t.Fatalf("expected 1 expired, got %+v", rep)
	}

	b := f.reloadBooking(t, stale.Booking.ID)
	if b.Status != model.BookingStatusCancelled || b.CancelledBy == nil || *b.CancelledBy != model.ActorSystem {
		t.Fatalf("expected system cancellation, got status=%s by=%v", b.Status, b.CancelledBy)
	}
	if got := f.reloadPayment(t, stale.Payment.ID).Status; got != model.PaymentStatusCancelled {
		t.Fatalf("expected voided payment, got %s", got)
	}
	for _, id := range []uuid.UUID{inFlight.Booking.ID, fresh.Booking.ID} {
		if got := f.reloadBooking(t, id).Status; got != model.BookingStatusPending {
			t.Fatalf("booking %s must stay PENDING, got %s", id, got)
		}
	}
	if got := f.reloadBooking(t, paid.Booking.ID).Status; got != model.BookingStatusConfirmed {
		t.Fatalf("paid booking must stay CONFIRMED, got %s", got)
	}
	if got := f.reloadSlot(t, slot.ID).BookedCount; got != 3 {
		t.Fatalf("expected 3 seats held after expiry, got %d", got)
	}
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	guide, tour := f.seedTour(t)
	slot := f.seedSlot(t, guide, tour, f.now().Add(72*time.Hour), 1000, 4, 0)
	created := f.book(t, tour, slot, 1)
	f.backdateBooking(t, created.Booking.ID, time.Now().UTC().Add(-time.Hour))

	// Часы сервиса уже за окном оплаты.
	f.setNow(time.Now().UTC())
	sweeper := NewSweeper(f.d, f.bookings, time.Minute, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(stopped)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for f.reloadBooking(t, created.Booking.ID).Status != model.BookingStatusCancelled {
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("sweeper did not expire booking in time")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatalf("sweeper did not stop after cancel")
	}
}

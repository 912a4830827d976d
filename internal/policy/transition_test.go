package policy

import (
	"errors"
	"testing"

	"github.com/Leganyst/tour-marketplace/internal/apperr"
	"github.com/Leganyst/tour-marketplace/internal/model"
)

func TestIsLegalTransition_Booking(t *testing.T) {
	legal := [][2]model.BookingStatus{
		{model.BookingStatusPending, model.BookingStatusConfirmed},
		{model.BookingStatusPending, model.BookingStatusDeclined},
		{model.BookingStatusPending, model.BookingStatusCancelled},
		{model.BookingStatusConfirmed, model.BookingStatusCancelled},
		{model.BookingStatusConfirmed, model.BookingStatusCompleted},
	}
	for _, tr := range legal {
		if !IsLegalTransition(EntityBooking, string(tr[0]), string(tr[1])) {
			t.Fatalf("%s -> %s should be legal", tr[0], tr[1])
		}
	}

	illegal := [][2]model.BookingStatus{
		{model.BookingStatusCompleted, model.BookingStatusPending},
		{model.BookingStatusCompleted, model.BookingStatusConfirmed},
		{model.BookingStatusDeclined, model.BookingStatusConfirmed},
		{model.BookingStatusCancelled, model.BookingStatusConfirmed},
		{model.BookingStatusPending, model.BookingStatusCompleted},
		{model.BookingStatusConfirmed, model.BookingStatusDeclined},
	}
	for _, tr := range illegal {
		if IsLegalTransition(EntityBooking, string(tr[0]), string(tr[1])) {
			t.Fatalf("%s -> %s should be illegal", tr[0], tr[1])
		}
	}
}

func TestIsLegalTransition_Payment(t *testing.T) {
	if !IsLegalTransition(EntityPayment, string(model.PaymentStatusSucceeded), string(model.PaymentStatusRefundPending)) {
		t.Fatalf("SUCCEEDED -> REFUND_PENDING should be legal")
	}
	if IsLegalTransition(EntityPayment, string(model.PaymentStatusSucceeded), string(model.PaymentStatusCancelled)) {
		t.Fatalf("SUCCEEDED -> CANCELLED must go through REFUND_PENDING")
	}
	if IsLegalTransition(EntityPayment, string(model.PaymentStatusRefunded), string(model.PaymentStatusSucceeded)) {
		t.Fatalf("REFUNDED -> SUCCEEDED should be illegal")
	}
	if IsLegalTransition(EntityPayment, string(model.PaymentStatusFailed), string(model.PaymentStatusSucceeded)) {
		t.Fatalf("FAILED is terminal")
	}
	if IsLegalTransition(EntityPayment, string(model.PaymentStatusPending), string(model.PaymentStatusSucceeded)) {
		t.Fatalf("PENDING -> SUCCEEDED must pass through INITIATED")
	}
}

func TestIsLegalTransition_Payout(t *testing.T) {
	if !IsLegalTransition(EntityPayout, string(model.PayoutStatusPending), string(model.PayoutStatusSent)) {
		t.Fatalf("PROCESSING is optional, PENDING -> SENT should be legal")
	}
	if !IsLegalTransition(EntityPayout, string(model.PayoutStatusProcessing), string(model.PayoutStatusFailed)) {
		t.Fatalf("PROCESSING -> FAILED should be legal")
	}
	if IsLegalTransition(EntityPayout, string(model.PayoutStatusProcessing), string(model.PayoutStatusCancelled)) {
		t.Fatalf("PROCESSING -> CANCELLED should be illegal")
	}
	if IsLegalTransition(EntityPayout, string(model.PayoutStatusSent), string(model.PayoutStatusFailed)) {
		t.Fatalf("SENT is terminal")
	}
}

func TestIsLegalTransition_UnknownEntity(t *testing.T) {
	if IsLegalTransition(Entity("review"), "A", "B") {
		t.Fatalf("unknown entity should never be legal")
	}
}

func TestCheckTransition_ReturnsTypedError(t *testing.T) {
	err := CheckTransition(EntityBooking, model.BookingStatusCompleted, model.BookingStatusConfirmed)
	if !errors.Is(err, apperr.ErrInvalidStateTransition) {
		t.Fatalf("expected InvalidStateTransition, got %v", err)
	}
	if apperr.KindOf(err) != apperr.KindInvalidStateTransition {
		t.Fatalf("kind = %s", apperr.KindOf(err))
	}
	if err := CheckTransition(EntityBooking, model.BookingStatusPending, model.BookingStatusConfirmed); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

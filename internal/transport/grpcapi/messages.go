package grpcapi

import (
	"github.com/google/uuid"

	"github.com/Leganyst/tour-marketplace/internal/transport/view"
)

type CreateBookingRequest struct {
	TourID          uuid.UUID `json:"tour_id"`
	SlotID          uuid.UUID `json:"slot_id"`
	NumGuests       int       `json:"num_guests"`
	SpecialRequests string    `json:"special_requests,omitempty"`
}

type BookingReply struct {
	Booking view.Booking  `json:"booking"`
	Payment *view.Payment `json:"payment,omitempty"`
	// Заполняются только при отмене.
	RefundTier   string `json:"refund_tier,omitempty"`
	RefundAmount int64  `json:"refund_amount,omitempty"`
}

type CancelBookingRequest struct {
	BookingID    uuid.UUID `json:"booking_id"`
	Reason       string    `json:"reason"`
	Circumstance string    `json:"circumstance,omitempty"`
}

type DeclineBookingRequest struct {
	BookingID uuid.UUID `json:"booking_id"`
	Reason    string    `json:"reason"`
}

type GetBookingRequest struct {
	BookingID uuid.UUID `json:"booking_id"`
}

type InitiatePaymentRequest struct {
	PaymentID uuid.UUID `json:"payment_id"`
}

type PaymentReply struct {
	Payment     view.Payment `json:"payment"`
	RedirectURL string       `json:"redirect_url,omitempty"`
}

type RequestRefundRequest struct {
	PaymentID  uuid.UUID `json:"payment_id"`
	Reason     string    `json:"reason"`
	Amount     int64     `json:"amount"`
	AdminNotes string    `json:"admin_notes,omitempty"`
}

type ApproveRefundRequest struct {
	PaymentID  uuid.UUID `json:"payment_id"`
	AdminNotes string    `json:"admin_notes,omitempty"`
}

type RejectRefundRequest struct {
	PaymentID uuid.UUID `json:"payment_id"`
	Reason    string    `json:"reason"`
}

type RequestPayoutRequest struct {
	Amount         int64          `json:"amount"`
	PaymentMethod  string         `json:"payment_method"`
	AccountDetails map[string]any `json:"account_details,omitempty"`
}

type PayoutReply struct {
	Payout view.Payout `json:"payout"`
}

type ProcessPayoutRequest struct {
	PayoutID         uuid.UUID `json:"payout_id"`
	ProviderPayoutID string    `json:"provider_payout_id,omitempty"`
}

type FailPayoutRequest struct {
	PayoutID uuid.UUID `json:"payout_id"`
	Reason   string    `json:"reason"`
}

// GetBalanceRequest: гид получает свой баланс, GuideID читается только у администратора.
type GetBalanceRequest struct {
	GuideID uuid.UUID `json:"guide_id,omitempty"`
}

type BalanceReply struct {
	GuideID   uuid.UUID `json:"guide_id"`
	Earned    int64     `json:"earned"`
	Locked    int64     `json:"locked"`
	Available int64     `json:"available"`
	Pending   int64     `json:"pending"`
	SentNet   int64     `json:"sent_net"`
	Currency  string    `json:"currency"`
}

// Package view — представления сущностей ядра для внешних ответов.
package view

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/tour-marketplace/internal/model"
)

type Slot struct {
	ID             uuid.UUID  `json:"id"`
	TourID         uuid.UUID  `json:"tour_id"`
	GuideID        uuid.UUID  `json:"guide_id"`
	ScheduleID     *uuid.UUID `json:"schedule_id,omitempty"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        time.Time  `json:"end_time"`
	PricePerPerson int64      `json:"price_per_person"`
	Currency       string     `json:"currency"`
	MaxGroupSize   int        `json:"max_group_size"`
	BookedCount    int        `json:"booked_count"`
	SeatsLeft      int        `json:"seats_left"`
	IsAvailable    bool       `json:"is_available"`
}

func FromSlot(s *model.AvailabilitySlot) Slot {
	return Slot{
		ID:             s.ID,
		TourID:         s.TourID,
		GuideID:        s.GuideID,
		ScheduleID:     s.ScheduleID,
		StartTime:      s.StartTime.UTC(),
		EndTime:        s.EndTime.UTC(),
		PricePerPerson: s.PricePerPerson,
		Currency:       s.Currency,
		MaxGroupSize:   s.MaxGroupSize,
		BookedCount:    s.BookedCount,
		SeatsLeft:      s.SeatsLeft(),
		IsAvailable:    s.IsAvailable,
	}
}

type Tour struct {
	ID          uuid.UUID `json:"id"`
	GuideID     uuid.UUID `json:"guide_id"`
	Title       string    `json:"title"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description,omitempty"`
	Languages   []string  `json:"languages"`
	MinPrice    int64     `json:"min_price"`
	MaxPrice    int64     `json:"max_price"`
	Currency    string    `json:"currency"`
	IsActive    bool      `json:"is_active"`
}

func FromTour(t *model.Tour) Tour {
	langs := []string(t.Languages)
	if langs == nil {
		langs = []string{}
	}
	return Tour{
		ID:          t.ID,
		GuideID:     t.GuideID,
		Title:       t.Title,
		Category:    t.Category,
		Description: t.Description,
		Languages:   langs,
		MinPrice:    t.MinPrice,
		MaxPrice:    t.MaxPrice,
		Currency:    t.Currency,
		IsActive:    t.IsActive,
	}
}

type Schedule struct {
	ID        uuid.UUID       `json:"id"`
	GuideID   uuid.UUID       `json:"guide_id"`
	TourID    uuid.UUID       `json:"tour_id"`
	TimeZone  string          `json:"time_zone"`
	Rules     json.RawMessage `json:"rules,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func FromSchedule(s *model.Schedule) Schedule {
	return Schedule{
		ID:        s.ID,
		GuideID:   s.GuideID,
		TourID:    s.TourID,
		TimeZone:  s.TimeZone,
		Rules:     json.RawMessage(s.Rules),
		CreatedAt: s.CreatedAt.UTC(),
	}
}

type Booking struct {
	ID                 uuid.UUID        `json:"id"`
	TourID             uuid.UUID        `json:"tour_id"`
	GuideID            uuid.UUID        `json:"guide_id"`
	TouristID          uuid.UUID        `json:"tourist_id"`
	SlotID             uuid.UUID        `json:"slot_id"`
	StartAt            time.Time        `json:"start_at"`
	EndAt              time.Time        `json:"end_at"`
	NumGuests          int              `json:"num_guests"`
	TourPrice          int64            `json:"tour_price"`
	ServiceFee         int64            `json:"service_fee"`
	AmountTotal        int64            `json:"amount_total"`
	Currency           string           `json:"currency"`
	Status             string           `json:"status"`
	SpecialRequests    string           `json:"special_requests,omitempty"`
	CancellationReason *string          `json:"cancellation_reason,omitempty"`
	CancelledBy        *model.ActorKind `json:"cancelled_by,omitempty"`
	CancelledAt        *time.Time       `json:"cancelled_at,omitempty"`
	ConfirmedAt        *time.Time       `json:"confirmed_at,omitempty"`
	CompletedAt        *time.Time       `json:"completed_at,omitempty"`
	DeclinedAt         *time.Time       `json:"declined_at,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
}

func FromBooking(b *model.Booking) Booking {
	return Booking{
		ID:                 b.ID,
		TourID:             b.TourID,
		GuideID:            b.GuideID,
		TouristID:          b.TouristID,
		SlotID:             b.AvailabilitySlotID,
		StartAt:            b.StartAt.UTC(),
		EndAt:              b.EndAt.UTC(),
		NumGuests:          b.NumGuests,
		TourPrice:          b.TourPrice,
		ServiceFee:         b.ServiceFee,
		AmountTotal:        b.AmountTotal,
		Currency:           b.Currency,
		Status:             string(b.Status),
		SpecialRequests:    b.SpecialRequests,
		CancellationReason: b.CancellationReason,
		CancelledBy:        b.CancelledBy,
		CancelledAt:        b.CancelledAt,
		ConfirmedAt:        b.ConfirmedAt,
		CompletedAt:        b.CompletedAt,
		DeclinedAt:         b.DeclinedAt,
		CreatedAt:          b.CreatedAt.UTC(),
	}
}

type Payment struct {
	ID            uuid.UUID      `json:"id"`
	BookingID     uuid.UUID      `json:"booking_id"`
	Amount        int64          `json:"amount"`
	Currency      string         `json:"currency"`
	Status        string         `json:"status"`
	TransactionID *string        `json:"transaction_id,omitempty"`
	Provider      string         `json:"provider,omitempty"`
	RedirectURL   string         `json:"redirect_url,omitempty"`
	FailureReason string         `json:"failure_reason,omitempty"`
	RefundAmount  int64          `json:"refund_amount,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

func FromPayment(p *model.Payment) Payment {
	return Payment{
		ID:            p.ID,
		BookingID:     p.BookingID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Status:        string(p.Status),
		TransactionID: p.TransactionID,
		Provider:      p.Provider,
		RedirectURL:   p.RedirectURL,
		FailureReason: p.FailureReason,
		RefundAmount:  p.RefundAmount(),
		Metadata:      p.MetadataMap(),
		CreatedAt:     p.CreatedAt.UTC(),
	}
}

type Payout struct {
	ID               uuid.UUID  `json:"id"`
	GuideID          uuid.UUID  `json:"guide_id"`
	Amount           int64      `json:"amount"`
	PlatformFee      int64      `json:"platform_fee"`
	NetAmount        int64      `json:"net_amount"`
	Currency         string     `json:"currency"`
	PaymentMethod    string     `json:"payment_method"`
	Status           string     `json:"status"`
	RequestedAt      time.Time  `json:"requested_at"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`
	FailureReason    *string    `json:"failure_reason,omitempty"`
	ProviderPayoutID *string    `json:"provider_payout_id,omitempty"`
}

// FromPayout не отдаёт реквизиты счёта гида.
func FromPayout(p *model.Payout) Payout {
	return Payout{
		ID:               p.ID,
		GuideID:          p.GuideID,
		Amount:           p.Amount,
		PlatformFee:      p.PlatformFee,
		NetAmount:        p.NetAmount,
		Currency:         p.Currency,
		PaymentMethod:    p.PaymentMethod,
		Status:           string(p.Status),
		RequestedAt:      p.RequestedAt.UTC(),
		ProcessedAt:      p.ProcessedAt,
		FailureReason:    p.FailureReason,
		ProviderPayoutID: p.ProviderPayoutID,
	}
}

type Event struct {
	Type       string          `json:"type"`
	Aggregate  string          `json:"aggregate"`
	ID         uuid.UUID       `json:"aggregate_id"`
	Actor      model.ActorKind `json:"actor"`
	FromStatus string          `json:"from_status,omitempty"`
	ToStatus   string          `json:"to_status,omitempty"`
	Details    map[string]any  `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

func FromEvent(e *model.Event) Event {
	return Event{
		Type:       string(e.EventType),
		Aggregate:  string(e.AggregateType),
		ID:         e.AggregateID,
		Actor:      e.ActorKind,
		FromStatus: e.FromStatus,
		ToStatus:   e.ToStatus,
		Details:    e.DetailsMap(),
		CreatedAt:  e.CreatedAt.UTC(),
	}
}

// Slice применяет fn к каждому элементу.
func Slice[T, U any](items []T, fn func(*T) U) []U {
	out := make([]U, 0, len(items))
	for i := range items {
		out = append(out, fn(&items[i]))
	}
	return out
}

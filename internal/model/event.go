package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Тип события аудита. Тот же тип уходит во внешние уведомления.
type EventType string

const (
	EventBookingCreated   EventType = "BOOKING_CREATED"
	EventBookingConfirmed EventType = "BOOKING_CONFIRMED"
	EventBookingDeclined  EventType = "BOOKING_DECLINED"
	EventBookingCancelled EventType = "BOOKING_CANCELLED"
	EventBookingCompleted EventType = "BOOKING_COMPLETED"

	EventPaymentInitiated EventType = "PAYMENT_INITIATED"
	EventPaymentSuccess   EventType = "PAYMENT_SUCCESS"
	EventPaymentFailed    EventType = "PAYMENT_FAILED"
	EventPaymentVoided    EventType = "PAYMENT_VOIDED"
	EventRefundRequested  EventType = "REFUND_REQUESTED"
	EventRefundApproved   EventType = "REFUND_APPROVED"
	EventRefundRejected   EventType = "REFUND_REJECTED"

	EventPayoutRequested  EventType = "PAYOUT_REQUESTED"
	EventPayoutProcessing EventType = "PAYOUT_PROCESSING"
	EventPayoutProcessed  EventType = "PAYOUT_PROCESSED"
	EventPayoutFailed     EventType = "PAYOUT_FAILED"
	EventPayoutCancelled  EventType = "PAYOUT_CANCELLED"
)

// Aggregate — сущность, к которой относится событие.
type Aggregate string

const (
	AggregateBooking Aggregate = "booking"
	AggregatePayment Aggregate = "payment"
	AggregatePayout  Aggregate = "payout"
)

// events — журнал аудита переходов состояний.
type Event struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	EventType EventType `gorm:"type:varchar(64);not null;index"`

	CreatedAt time.Time `gorm:"not null;index"`

	AggregateType Aggregate `gorm:"type:varchar(32);not null"`
	AggregateID   uuid.UUID `gorm:"type:uuid;not null;index"`

	ActorKind ActorKind  `gorm:"type:varchar(16)"`
	ActorID   *uuid.UUID `gorm:"type:uuid;index"`

	FromStatus string `gorm:"type:varchar(32)"`
	ToStatus   string `gorm:"type:varchar(32)"`

	Details datatypes.JSON `gorm:"type:jsonb"`
}

func (e *Event) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}

// DetailsMap разбирает details; пустые или битые данные дают nil.
func (e *Event) DetailsMap() map[string]any {
	if len(e.Details) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(e.Details, &out); err != nil {
		return nil
	}
	return out
}

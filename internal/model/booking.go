package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusDeclined  BookingStatus = "DECLINED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
)

// Terminal — из статуса нет выходов.
func (s BookingStatus) Terminal() bool {
	return s == BookingStatusDeclined || s == BookingStatusCancelled || s == BookingStatusCompleted
}

// ActorKind — кто инициировал действие над бронью.
type ActorKind string

const (
	ActorTraveler ActorKind = "TRAVELER"
	ActorGuide    ActorKind = "GUIDE"
	ActorAdmin    ActorKind = "ADMIN"
	ActorSystem   ActorKind = "SYSTEM"
)

// bookings
type Booking struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	TourID             uuid.UUID `gorm:"type:uuid;not null;index"`
	GuideID            uuid.UUID `gorm:"type:uuid;not null;index"`
	TouristID          uuid.UUID `gorm:"type:uuid;not null;index"`
	AvailabilitySlotID uuid.UUID `gorm:"type:uuid;not null;index"`

	StartAt time.Time `gorm:"not null"`
	EndAt   time.Time `gorm:"not null;index"`

	NumGuests int `gorm:"not null;check:chk_booking_guests,num_guests >= 1"`

	// Суммы в минорных единицах. AmountTotal = TourPrice + ServiceFee.
	TourPrice   int64  `gorm:"not null"`
	ServiceFee  int64  `gorm:"not null;default:0"`
	AmountTotal int64  `gorm:"not null"`
	Currency    string `gorm:"type:varchar(3);not null"`

	Status BookingStatus `gorm:"type:varchar(32);not null;index"`

	SpecialRequests    string     `gorm:"type:text"`
	CancellationReason *string    `gorm:"type:text"`
	CancelledBy        *ActorKind `gorm:"type:varchar(16)"`
	CancelledAt        *time.Time
	ConfirmedAt        *time.Time
	CompletedAt        *time.Time
	DeclinedAt         *time.Time

	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`

	Slot     *AvailabilitySlot `gorm:"foreignKey:AvailabilitySlotID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Tour     *Tour             `gorm:"foreignKey:TourID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Payments []Payment         `gorm:"foreignKey:BookingID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (b *Booking) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}

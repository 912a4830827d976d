package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// availability_slots — окно тура с фиксированной вместимостью и ценой.
// booked_count меняется только через ReserveSeats/ReleaseSeats.
type AvailabilitySlot struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	GuideID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	TourID     uuid.UUID  `gorm:"type:uuid;not null;index"`
	ScheduleID *uuid.UUID `gorm:"type:uuid;index"`

	SpecificDate datatypes.Date `gorm:"type:date;not null;index"`
	StartTime    time.Time      `gorm:"not null;index"`
	EndTime      time.Time      `gorm:"not null"`
	DurationMins int            `gorm:"not null"`

	PricePerPerson int64  `gorm:"not null"`
	Currency       string `gorm:"type:varchar(3);not null;default:'USD'"`

	MaxGroupSize int `gorm:"not null;check:chk_slot_capacity,max_group_size > 0"`
	BookedCount  int `gorm:"not null;default:0;check:chk_slot_booked,booked_count >= 0 AND booked_count <= max_group_size"`

	// Видимость слота, которой управляет гид. Не зависит от заполненности.
	IsAvailable bool `gorm:"not null;default:true"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Tour  *Tour  `gorm:"foreignKey:TourID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Guide *Guide `gorm:"foreignKey:GuideID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (s *AvailabilitySlot) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// SeatsLeft — свободные места по снимку. Для решения о брони не годится.
func (s *AvailabilitySlot) SeatsLeft() int {
	left := s.MaxGroupSize - s.BookedCount
	if left < 0 {
		return 0
	}
	return left
}

// Bookable — слот открыт гидом и в нём есть место.
func (s *AvailabilitySlot) Bookable() bool {
	return s.IsAvailable && s.SeatsLeft() > 0
}

package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// schedules — правило повторения, из которого гид сгенерировал пачку слотов.
type Schedule struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	GuideID uuid.UUID `gorm:"type:uuid;not null;index"`
	TourID  uuid.UUID `gorm:"type:uuid;not null;index"`

	// Чистые даты без времени (datatypes.Date)
	StartDate *datatypes.Date `gorm:"type:date"`
	EndDate   *datatypes.Date `gorm:"type:date"`

	TimeZone string `gorm:"type:varchar(64);not null;default:'UTC'"`

	// Правило повторения в виде JSON (JSONB в Postgres).
	Rules datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (s *Schedule) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

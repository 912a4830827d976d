package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Guide — местный гид, владелец туров и слотов.
// Верификация гида в ядро не входит.
type Guide struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	// Имя/отображаемое название в интерфейсе.
	DisplayName  string `gorm:"type:varchar(255);not null"`
	ContactEmail string `gorm:"type:varchar(255)"`

	// Краткое описание, специализация и т.п.
	Description string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Tours []Tour             `gorm:"foreignKey:GuideID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Slots []AvailabilitySlot `gorm:"foreignKey:GuideID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (g *Guide) BeforeCreate(*gorm.DB) error {
	ensureID(&g.ID)
	return nil
}

// ensureID выдаёт UUID на стороне приложения: gen_random_uuid() есть только в Postgres.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// travelers — путешественники, которые бронируют туры.
type Traveler struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	DisplayName  string `gorm:"type:varchar(255)"`
	ContactEmail string `gorm:"type:varchar(255)"`
	ContactPhone string `gorm:"type:varchar(32)"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (t *Traveler) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// tours
type Tour struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	GuideID uuid.UUID `gorm:"type:uuid;not null;index"`

	Title       string `gorm:"type:varchar(255);not null"`
	Category    string `gorm:"type:varchar(64);index"`
	Description string `gorm:"type:text"`

	Languages datatypes.JSONSlice[string] `gorm:"type:jsonb"`

	// Границы цены за человека в минорных единицах валюты.
	MinPrice int64  `gorm:"not null;default:0"`
	MaxPrice int64  `gorm:"not null;default:0"`
	Currency string `gorm:"type:varchar(3);not null;default:'USD'"`

	IsActive bool `gorm:"not null;default:true;index"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Guide *Guide `gorm:"foreignKey:GuideID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (t *Tour) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "PENDING"
	PayoutStatusProcessing PayoutStatus = "PROCESSING"
	PayoutStatusSent       PayoutStatus = "SENT"
	PayoutStatusFailed     PayoutStatus = "FAILED"
	PayoutStatusCancelled  PayoutStatus = "CANCELLED"
)

// payouts — заявка гида на вывод средств.
type Payout struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	GuideID uuid.UUID `gorm:"type:uuid;not null;index"`

	// Amount — запрошенная сумма, NetAmount = Amount - PlatformFee.
	Amount      int64  `gorm:"not null"`
	PlatformFee int64  `gorm:"not null;default:0"`
	NetAmount   int64  `gorm:"not null"`
	Currency    string `gorm:"type:varchar(3);not null"`

	PaymentMethod  string            `gorm:"type:varchar(64);not null"`
	AccountDetails datatypes.JSONMap `gorm:"type:jsonb"`

	Status PayoutStatus `gorm:"type:varchar(32);not null;index"`

	RequestedAt      time.Time `gorm:"not null"`
	ProcessedAt      *time.Time
	FailureReason    *string `gorm:"type:text"`
	ProviderPayoutID *string `gorm:"type:varchar(255)"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (p *Payout) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// guide_ledgers — строка-замок для проверки баланса при создании выплаты.
// Баланс здесь не хранится: он всегда пересчитывается из броней и выплат.
type GuideLedger struct {
	GuideID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	UpdatedAt time.Time `gorm:"not null"`
}

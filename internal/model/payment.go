package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentStatusPending       PaymentStatus = "PENDING"
	PaymentStatusInitiated     PaymentStatus = "INITIATED"
	PaymentStatusSucceeded     PaymentStatus = "SUCCEEDED"
	PaymentStatusFailed        PaymentStatus = "FAILED"
	PaymentStatusCancelled     PaymentStatus = "CANCELLED"
	PaymentStatusRefundPending PaymentStatus = "REFUND_PENDING"
	PaymentStatusRefunded      PaymentStatus = "REFUNDED"
)

// Open — попытка ещё может завершиться деньгами у платформы.
// На одну бронь допустима только одна открытая попытка.
func (s PaymentStatus) Open() bool {
	return s == PaymentStatusPending || s == PaymentStatusInitiated
}

// payments — попытка оплаты брони. У брони их может быть несколько по истории.
type Payment struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	BookingID uuid.UUID `gorm:"type:uuid;not null;index"`

	Amount   int64         `gorm:"not null"`
	Currency string        `gorm:"type:varchar(3);not null"`
	Status   PaymentStatus `gorm:"type:varchar(32);not null;index"`

	// Идентификатор транзакции шлюза; уникален, когда задан.
	TransactionID *string `gorm:"type:varchar(255);uniqueIndex"`
	Provider      string  `gorm:"type:varchar(64);not null"`
	RedirectURL   string  `gorm:"type:text"`
	FailureReason string  `gorm:"type:text"`

	// RefundSum — сумма запрошенного или проведённого возврата, 0 вне
	// REFUND_PENDING/REFUNDED. Копия refundAmount из metadata для агрегатов.
	RefundSum int64 `gorm:"not null;default:0"`
	// Возврат отправлен в шлюз и ещё не закрыт; пусто вне REFUND_PENDING.
	RefundClaimedAt *time.Time

	// Непрозрачный payload шлюза плюс поля возврата (см. PaymentMetadata).
	Metadata datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	if len(p.Metadata) == 0 {
		p.Metadata = datatypes.JSON("{}")
	}
	return nil
}

// Ключи metadata, которыми владеет ядро. Остальные ключи пишет шлюз.
const (
	MetaRefundAmount    = "refundAmount"
	MetaRefundedAt      = "refundedAt"
	MetaRefundReason    = "refundReason"
	MetaAdminNotes      = "adminNotes"
	MetaRefundRequested = "refundRequestedAt"
	MetaGateway         = "gateway"
	MetaGatewayStatus   = "gatewayStatus"
)

// RefundIdempotencyKey — ключ возврата у шлюза: попытка плюс момент запроса
// возврата. Повторное одобрение того же запроса даёт тот же ключ.
func (p *Payment) RefundIdempotencyKey() string {
	requested, _ := p.MetadataMap()[MetaRefundRequested].(string)
	return p.ID.String() + ":" + requested
}

// MetadataMap разбирает metadata в map; битый JSON даёт пустую карту.
func (p *Payment) MetadataMap() map[string]any {
	out := map[string]any{}
	if len(p.Metadata) == 0 {
		return out
	}
	if err := json.Unmarshal(p.Metadata, &out); err != nil {
		return map[string]any{}
	}
	return out
}

// RefundAmount — сумма возврата, записанная в metadata, или 0.
func (p *Payment) RefundAmount() int64 {
	v, ok := p.MetadataMap()[MetaRefundAmount]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}

// MergeMetadata возвращает metadata с наложенными значениями patch.
func MergeMetadata(current datatypes.JSON, patch map[string]any) (datatypes.JSON, error) {
	base := map[string]any{}
	if len(current) > 0 {
		if err := json.Unmarshal(current, &base); err != nil {
			base = map[string]any{}
		}
	}
	for k, v := range patch {
		base[k] = v
	}
	raw, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

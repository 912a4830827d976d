package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrRejected — шлюз отклонил операцию. Повтор с теми же данными бессмыслен.
var ErrRejected = errors.New("gateway: rejected")

// Rejected оборачивает ErrRejected причиной от провайдера.
func Rejected(reason string) error {
	if reason == "" {
		return ErrRejected
	}
	return fmt.Errorf("%w: %s", ErrRejected, reason)
}

type ChargeRequest struct {
	PaymentID uuid.UUID
	BookingID uuid.UUID
	Amount    int64
	Currency  string
	Metadata  map[string]string
}

type ChargeResult struct {
	TransactionID string
	RedirectURL   string
	// Raw — ответ провайдера как есть, попадает в metadata платежа.
	Raw map[string]any
}

type RefundRequest struct {
	TransactionID string
	Amount        int64
	// IdempotencyKey: повтор с тем же ключом не возвращает деньги второй раз.
	IdempotencyKey string
}

// Gateway — внешний платёжный провайдер.
// Реализации обязаны уважать ctx: по нему ядро ограничивает время ожидания.
type Gateway interface {
	Name() string
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, req RefundRequest) error
}

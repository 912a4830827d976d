package policy

import (
	"slices"

	"github.com/Leganyst/tour-marketplace/internal/apperr"
	"github.com/Leganyst/tour-marketplace/internal/model"
)

// Entity — сущность с машиной состояний.
type Entity string

const (
	EntityBooking Entity = "booking"
	EntityPayment Entity = "payment"
	EntityPayout  Entity = "payout"
)

var bookingTransitions = map[model.BookingStatus][]model.BookingStatus{
	model.BookingStatusPending:   {model.BookingStatusConfirmed, model.BookingStatusDeclined, model.BookingStatusCancelled},
	model.BookingStatusConfirmed: {model.BookingStatusCompleted, model.BookingStatusCancelled},
}

var paymentTransitions = map[model.PaymentStatus][]model.PaymentStatus{
	model.PaymentStatusPending:   {model.PaymentStatusInitiated, model.PaymentStatusCancelled},
	model.PaymentStatusInitiated: {model.PaymentStatusSucceeded, model.PaymentStatusFailed, model.PaymentStatusCancelled},
	model.PaymentStatusSucceeded: {model.PaymentStatusRefundPending},
	// Отказ администратора в возврате возвращает платёж в SUCCEEDED.
	model.PaymentStatusRefundPending: {model.PaymentStatusRefunded, model.PaymentStatusSucceeded},
	// Шлюз списал деньги уже после аннулирования попытки: только в возврат.
	model.PaymentStatusCancelled: {model.PaymentStatusRefundPending},
}

var payoutTransitions = map[model.PayoutStatus][]model.PayoutStatus{
	model.PayoutStatusPending:    {model.PayoutStatusProcessing, model.PayoutStatusSent, model.PayoutStatusCancelled, model.PayoutStatusFailed},
	model.PayoutStatusProcessing: {model.PayoutStatusSent, model.PayoutStatusFailed},
}

// IsLegalTransition проверяет переход по таблице соответствующей сущности.
func IsLegalTransition(entity Entity, from, to string) bool {
	switch entity {
	case EntityBooking:
		return slices.Contains(bookingTransitions[model.BookingStatus(from)], model.BookingStatus(to))
	case EntityPayment:
		return slices.Contains(paymentTransitions[model.PaymentStatus(from)], model.PaymentStatus(to))
	case EntityPayout:
		return slices.Contains(payoutTransitions[model.PayoutStatus(from)], model.PayoutStatus(to))
	default:
		return false
	}
}

// CheckTransition — то же, что IsLegalTransition, но с типизированной ошибкой.
func CheckTransition[S ~string](entity Entity, from, to S) error {
	if !IsLegalTransition(entity, string(from), string(to)) {
		return apperr.Transition(string(entity), string(from), string(to))
	}
	return nil
}

package apperr

import (
	"errors"
	"fmt"
)

// Kind классифицирует отказ операции. По Kind транспорт выбирает код ответа,
// а аудит берёт текст причины.
type Kind string

const (
	KindSlotUnavailable        Kind = "slot_unavailable"
	KindSlotFull               Kind = "slot_full"
	KindInvalidStateTransition Kind = "invalid_state_transition"
	KindInsufficientBalance    Kind = "insufficient_balance"
	KindBelowMinimumPayout     Kind = "below_minimum_payout"
	KindGatewayTimeout         Kind = "gateway_timeout"
	KindGatewayRejected        Kind = "gateway_rejected"
	KindValidation             Kind = "validation"
	KindNotFound               Kind = "not_found"
	KindForbidden              Kind = "forbidden"
	KindInternal               Kind = "internal"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is позволяет сравнивать с шаблонами вида &Error{Kind: KindSlotFull}.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Шаблоны для errors.Is.
var (
	ErrSlotUnavailable        = &Error{Kind: KindSlotUnavailable}
	ErrSlotFull               = &Error{Kind: KindSlotFull}
	ErrInvalidStateTransition = &Error{Kind: KindInvalidStateTransition}
	ErrInsufficientBalance    = &Error{Kind: KindInsufficientBalance}
	ErrBelowMinimumPayout     = &Error{Kind: KindBelowMinimumPayout}
	ErrGatewayTimeout         = &Error{Kind: KindGatewayTimeout}
	ErrGatewayRejected        = &Error{Kind: KindGatewayRejected}
	ErrValidation             = &Error{Kind: KindValidation}
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrForbidden              = &Error{Kind: KindForbidden}
)

// KindOf возвращает Kind первой *Error в цепочке или KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Validation — короткий конструктор для ошибок входных данных.
func Validation(msg string) *Error {
	return New(KindValidation, msg)
}

// Transition формирует ошибку недопустимого перехода состояния.
func Transition(entity, from, to string) *Error {
	return Newf(KindInvalidStateTransition, "%s: %s -> %s is not allowed", entity, from, to)
}

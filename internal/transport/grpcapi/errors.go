package grpcapi

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Leganyst/tour-marketplace/internal/apperr"
)

var kindCodes = map[apperr.Kind]codes.Code{
	apperr.KindSlotFull:               codes.ResourceExhausted,
	apperr.KindSlotUnavailable:        codes.FailedPrecondition,
	apperr.KindInvalidStateTransition: codes.FailedPrecondition,
	apperr.KindInsufficientBalance:    codes.FailedPrecondition,
	apperr.KindBelowMinimumPayout:     codes.InvalidArgument,
	apperr.KindGatewayTimeout:         codes.Unavailable,
	apperr.KindGatewayRejected:        codes.Aborted,
	apperr.KindValidation:             codes.InvalidArgument,
	apperr.KindNotFound:               codes.NotFound,
	apperr.KindForbidden:              codes.PermissionDenied,
}

// toStatus переводит ошибку сервиса в gRPC-статус. Kind уходит клиенту
// префиксом сообщения, чтобы различать SlotFull и прочие FailedPrecondition.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return status.Error(codes.Internal, "internal error")
	}
	code, ok := kindCodes[ae.Kind]
	if !ok {
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, string(ae.Kind)+": "+ae.Message)
}

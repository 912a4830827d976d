package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Leganyst/tour-marketplace/internal/apperr"
	"github.com/Leganyst/tour-marketplace/internal/gateway"
	"github.com/Leganyst/tour-marketplace/internal/model"
	"github.com/Leganyst/tour-marketplace/internal/policy"
)

// PaymentService координирует попытки оплаты и возвраты.
// Вызовы шлюза идут вне транзакций и ограничены timeout.
type PaymentService struct {
	d       *Deps
	gw      gateway.Gateway
	timeout time.Duration
}

func NewPaymentService(d *Deps, gw gateway.Gateway, timeout time.Duration) *PaymentService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PaymentService{d: d, gw: gw, timeout: timeout}
}

type InitiateResult struct {
	Payment     *model.Payment
	RedirectURL string
}

// InitiatePayment выставляет счёт у шлюза и переводит попытку в INITIATED.
// Таймаут оставляет попытку в PENDING для безопасного повтора; отказ шлюза
// переводит её в FAILED. Для уже INITIATED возвращается сохранённая ссылка.
func (s *PaymentService) InitiatePayment(ctx context.Context, paymentID uuid.UUID) (*InitiateResult, error) {
	p, err := s.d.Payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, lookup(err, "payment", paymentID)
	}
	if p.Status == model.PaymentStatusInitiated {
		return &InitiateResult{Payment: p, RedirectURL: p.RedirectURL}, nil
	}
	if err := policy.CheckTransition(policy.EntityPayment, p.Status, model.PaymentStatusInitiated); err != nil {
		return nil, err
	}
	b, err := s.d.Bookings.GetByID(ctx, p.BookingID)
	if err != nil {
		return nil, lookup(err, "booking", p.BookingID)
	}
	if b.Status != model.BookingStatusPending {
		return nil, apperr.Newf(apperr.KindInvalidStateTransition, "booking %s is %s, payment is not expected", b.ID, b.Status)
	}

	log := s.d.Log.WithFields(logrus.Fields{
		"payment_id": p.ID,
		"booking_id": b.ID,
		"amount":     p.Amount,
		"gateway":    s.gw.Name(),
	})

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	charge, err := s.gw.Charge(cctx, gateway.ChargeRequest{
		PaymentID: p.ID,
		BookingID: b.ID,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Metadata: map[string]string{
			"tour_id":    b.TourID.String(),
			"tourist_id": b.TouristID.String(),
		},
	})
	switch {
	case err == nil:
	case errors.Is(err, gateway.ErrRejected):
		log.WithError(err).Warn("charge rejected")
		if ferr := s.failRejected(ctx, p, b, err.Error()); ferr != nil {
			return nil, ferr
		}
		return nil, apperr.Wrap(apperr.KindGatewayRejected, err, "payment rejected by gateway")
	default:
		// Таймаут и сетевые сбои не дают ответа шлюза: попытка остаётся PENDING.
		log.WithError(err).Warn("charge did not complete")
		return nil, apperr.Wrap(apperr.KindGatewayTimeout, err, "payment gateway did not respond")
	}

	var changes []change
	err = s.d.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.d.in(tx)

		patch := map[string]any{model.MetaGateway: s.gw.Name()}
		for k, v := range charge.Raw {
			patch[k] = v
		}
		meta, err := model.MergeMetadata(p.Metadata, patch)
		if err != nil {
			return storeErr(err, "merge metadata")
		}
		txID := charge.TransactionID
		ok, err := r.payments.Transition(ctx, p.ID, model.PaymentStatusPending, model.PaymentStatusInitiated, map[string]any{
			"transaction_id": txID,
			"redirect_url":   charge.RedirectURL,
			"provider":       s.gw.Name(),
			"metadata":       meta,
		})
		if err != nil {
			return storeErr(err, "initiate payment")
		}
		if !ok {
			cur, err := r.payments.GetByID(ctx, p.ID)
			if err != nil {
				return lookup(err, "payment", p.ID)
			}
			if cur.Status == model.PaymentStatusInitiated {
				// Параллельный вызов успел раньше; его счёт и считаем действующим.
				log.WithField("orphan_transaction_id", txID).Warn("concurrent initiate, keeping first charge")
				p = cur
				return nil
			}
			return apperr.Transition(string(policy.EntityPayment), string(cur.Status), string(model.PaymentStatusInitiated))
		}
		from := p.Status
		p.Status, p.TransactionID, p.RedirectURL, p.Provider, p.Metadata = model.PaymentStatusInitiated, &txID, charge.RedirectURL, s.gw.Name(), meta

		changes = append(changes, paymentChange(model.EventPaymentInitiated, p, b, Actor{Kind: model.ActorTraveler, ID: b.TouristID}, from, p.Status).
			with("transaction_id", txID))
		return s.d.record(ctx, r.events, changes...)
	})
	if err != nil {
		return nil, err
	}

	log.WithField("transaction_id", *p.TransactionID).Info("payment initiated")
	s.d.publish(ctx, changes...)
	return &InitiateResult{Payment: p, RedirectURL: p.RedirectURL}, nil
}

// failRejected: PENDING -> INITIATED -> FAILED одной транзакцией, прямого
// перехода PENDING -> FAILED в таблице нет.
func (s *PaymentService) failRejected(ctx context.Context, p *model.Payment, b *model.Booking, reason string) error {
	var changes []change
	err := s.d.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.d.in(tx)
		ok, err := r.payments.Transition(ctx, p.ID, model.PaymentStatusPending, model.PaymentStatusInitiated, map[string]any{
			"provider": s.gw.Name(),
		})
		if err != nil {
			return storeErr(err, "initiate payment")
		}
		if !ok {
			return nil
		}
		ok, err = r.payments.Transition(ctx, p.ID, model.PaymentStatusInitiated, model.PaymentStatusFailed, map[string]any{
			"failure_reason": reason,
		})
		if err != nil {
			return storeErr(err, "fail payment")
		}
		if !ok {
			return nil
		}
		p.Status, p.FailureReason, p.Provider = model.PaymentStatusFailed, reason, s.gw.Name()
		changes = append(changes, paymentChange(model.EventPaymentFailed, p, b, systemActor, model.PaymentStatusPending, model.PaymentStatusFailed).
			with("reason", reason))
		return s.d.record(ctx, r.events, changes...)
	})
	if err != nil {
		return err
	}
	s.d.publish(ctx, changes...)
	return nil
}

// CallbackOutcome — что сделал обработчик вебхука.
type CallbackOutcome string

const (
	CallbackApplied   CallbackOutcome = "APPLIED"
	CallbackDuplicate CallbackOutcome = "DUPLICATE"
	CallbackIgnored   CallbackOutcome = "IGNORED"
)

type CallbackInput struct {
	TransactionID string
	Status        string
	// Payload — тело вебхука; неизвестные поля сохраняются в metadata как есть.
	Payload map[string]any
}

type gatewayResult int

const (
	resultUnknown gatewayResult = iota
	resultSuccess
	resultFailure
)

func classifyGatewayStatus(status string) gatewayResult {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "succeeded", "success", "paid", "captured", "completed":
		return resultSuccess
	case "failed", "failure", "declined", "rejected", "canceled", "cancelled", "expired":
		return resultFailure
	default:
		return resultUnknown
	}
}

// HandleGatewayCallback применяет итог оплаты. Идемпотентен по transactionId:
// повтор того же колбэка возвращает DUPLICATE и ничего не меняет.
func (s *PaymentService) HandleGatewayCallback(ctx context.Context, in CallbackInput) (CallbackOutcome, error) {
	if strings.TrimSpace(in.TransactionID) == "" {
		return "", apperr.Validation("transaction id is required")
	}
	result := classifyGatewayStatus(in.Status)
	if result == resultUnknown {
		return "", apperr.Newf(apperr.KindValidation, "unknown gateway status %q", in.Status)
	}

	now := s.d.now()
	outcome := CallbackIgnored
	var (
		changes []change
		payment *model.Payment
	)

	err := s.d.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.d.in(tx)

		found, err := r.payments.GetByTransactionID(ctx, in.TransactionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Newf(apperr.KindNotFound, "no payment for transaction %s", in.TransactionID)
			}
			return storeErr(err, "load payment")
		}

		// Сначала бронь, потом попытка: тот же порядок блокировок, что у отмены.
		b, err := r.bookings.GetForUpdate(ctx, found.BookingID)
		if err != nil {
			return lookup(err, "booking", found.BookingID)
		}
		p, err := r.payments.GetByID(ctx, found.ID)
		if err != nil {
			return lookup(err, "payment", found.ID)
		}
		payment = p

		patch := map[string]any{model.MetaGatewayStatus: in.Status}
		for k, v := range in.Payload {
			if isCoreMetaKey(k) {
				continue
			}
			patch[k] = v
		}
		meta, err := model.MergeMetadata(p.Metadata, patch)
		if err != nil {
			return storeErr(err, "merge metadata")
		}

		actor := systemActor
		switch {
		case result == resultSuccess && p.Status == model.PaymentStatusInitiated:
			ok, err := r.payments.Transition(ctx, p.ID, p.Status, model.PaymentStatusSucceeded, map[string]any{"metadata": meta})
			if err != nil {
				return storeErr(err, "capture payment")
			}
			if !ok {
				outcome = CallbackDuplicate
				return nil
			}
			from := p.Status
			p.Status, p.Metadata = model.PaymentStatusSucceeded, meta
			changes = append(changes, paymentChange(model.EventPaymentSuccess, p, b, actor, from, p.Status))

			confirmed, ok, err := confirmBooking(ctx, r, b, actor, now)
			if err != nil {
				return err
			}
			if ok {
				changes = append(changes, confirmed)
			} else {
				// Бронь закрыли раньше, чем пришли деньги: возвращаем всё.
				c, err := queueRefund(ctx, r, p, b, actor, p.Amount, "captured after booking was closed", "", now)
				if err != nil {
					return err
				}
				changes = append(changes, c)
			}
			outcome = CallbackApplied

		case result == resultSuccess && p.Status == model.PaymentStatusCancelled:
			p.Metadata = meta
			c, err := queueRefund(ctx, r, p, b, actor, p.Amount, "captured after payment was voided", "", now)
			if err != nil {
				return err
			}
			changes = append(changes, c)
			outcome = CallbackApplied

		case result == resultSuccess && (p.Status == model.PaymentStatusSucceeded ||
			p.Status == model.PaymentStatusRefundPending || p.Status == model.PaymentStatusRefunded):
			outcome = CallbackDuplicate

		case result == resultFailure && p.Status == model.PaymentStatusInitiated:
			reason := failureReason(in.Payload, in.Status)
			ok, err := r.payments.Transition(ctx, p.ID, p.Status, model.PaymentStatusFailed, map[string]any{
				"metadata":       meta,
				"failure_reason": reason,
			})
			if err != nil {
				return storeErr(err, "fail payment")
			}
			if !ok {
				outcome = CallbackDuplicate
				return nil
			}
			from := p.Status
			p.Status, p.Metadata, p.FailureReason = model.PaymentStatusFailed, meta, reason
			changes = append(changes, paymentChange(model.EventPaymentFailed, p, b, actor, from, p.Status).with("reason", reason))
			outcome = CallbackApplied

		case result == resultFailure && (p.Status == model.PaymentStatusFailed || p.Status == model.PaymentStatusCancelled):
			outcome = CallbackDuplicate

		default:
			outcome = CallbackIgnored
		}

		if len(changes) == 0 {
			return nil
		}
		return s.d.record(ctx, r.events, changes...)
	})
	if err != nil {
		return "", err
	}

	fields := logrus.Fields{
		"transaction_id": in.TransactionID,
		"gateway_status": in.Status,
		"outcome":        outcome,
		"payment_id":     payment.ID,
		"payment_status": payment.Status,
	}
	if outcome == CallbackIgnored {
		s.d.Log.WithFields(fields).Warn("gateway callback ignored")
	} else {
		s.d.Log.WithFields(fields).Info("gateway callback handled")
	}
	s.d.publish(ctx, changes...)
	return outcome, nil
}

// RetryPayment открывает новую попытку для PENDING-брони, если открытой нет.
// Места остаются за бронью.
func (s *PaymentService) RetryPayment(ctx context.Context, bookingID uuid.UUID, actor Actor) (*model.Payment, error) {
	var p *model.Payment
	err := s.d.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.d.in(tx)

		b, err := r.bookings.GetForUpdate(ctx, bookingID)
		if err != nil {
			return lookup(err, "booking", bookingID)
		}
		if err := authorizeBookingActor(b, actor); err != nil {
			return err
		}
		if b.Status != model.BookingStatusPending {
			return apperr.Newf(apperr.KindInvalidStateTransition, "booking %s is %s, payment retry is not allowed", b.ID, b.Status)
		}
		open, err := r.payments.FindOpenByBooking(ctx, b.ID)
		if err != nil {
			return storeErr(err, "load payment")
		}
		if open != nil {
			return apperr.Newf(apperr.KindInvalidStateTransition, "payment %s is still %s", open.ID, open.Status)
		}

		p = &model.Payment{
			BookingID: b.ID,
			Amount:    b.AmountTotal,
			Currency:  b.Currency,
			Status:    model.PaymentStatusPending,
		}
		if err := r.payments.Create(ctx, p); err != nil {
			return storeErr(err, "create payment")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.d.Log.WithFields(logrus.Fields{"booking_id": bookingID, "payment_id": p.ID}).Info("payment retry opened")
	return p, nil
}

type RefundRequest struct {
	PaymentID  uuid.UUID `json:"payment_id" validate:"required"`
	Reason     string    `json:"reason"`
	Amount     int64     `json:"amount"`
	AdminNotes string    `json:"admin_notes"`
	Actor      Actor     `json:"actor"`
}

// RequestRefund ставит оплаченную попытку в очередь на возврат.
func (s *PaymentService) RequestRefund(ctx context.Context, in RefundRequest) (*model.Payment, error) {
	reason, err := requireReason(in.Reason, "refund reason")
	if err != nil {
		return nil, err
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.Amount <= 0 {
		return nil, apperr.Validation("refund amount must be positive")
	}

	now := s.d.now()
	var (
		p       *model.Payment
		changes []change
	)
	err = s.d.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.d.in(tx)
		p, err = r.payments.GetByID(ctx, in.PaymentID)
		if err != nil {
			return lookup(err, "payment", in.PaymentID)
		}
		if p.Status != model.PaymentStatusSucceeded {
			return apperr.Transition(string(policy.EntityPayment), string(p.Status), string(model.PaymentStatusRefundPending))
		}
		if in.Amount > p.Amount {
			return apperr.Newf(apperr.KindValidation, "refund amount %d exceeds payment amount %d", in.Amount, p.Amount)
		}
		b, err := r.bookings.GetByID(ctx, p.BookingID)
		if err != nil {
			return lookup(err, "booking", p.BookingID)
		}
		c, err := queueRefund(ctx, r, p, b, in.Actor, in.Amount, reason, in.AdminNotes, now)
		if err != nil {
			return err
		}
		changes = append(changes, c)
		return s.d.record(ctx, r.events, changes...)
	})
	if err != nil {
		return nil, err
	}
	s.d.Log.WithFields(logrus.Fields{"payment_id": p.ID, "amount": in.Amount}).Info("refund requested")
	s.d.publish(ctx, changes...)
	return p, nil
}

// ApproveRefund возвращает деньги через шлюз и закрывает попытку в REFUNDED.
// Перед вызовом шлюза попытка захватывается: параллельное одобрение того же
// возврата получает InvalidStateTransition. При таймауте шлюза захват
// снимается и попытка остаётся REFUND_PENDING.
func (s *PaymentService) ApproveRefund(ctx context.Context, paymentID uuid.UUID, adminNotes string, actor Actor) (*model.Payment, error) {
	p, err := s.d.Payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, lookup(err, "payment", paymentID)
	}
	if err := policy.CheckTransition(policy.EntityPayment, p.Status, model.PaymentStatusRefunded); err != nil {
		return nil, err
	}
	amount := p.RefundAmount()
	if amount <= 0 || amount > p.Amount {
		return nil, apperr.Newf(apperr.KindValidation, "payment %s has invalid refund amount %d", p.ID, amount)
	}
	if p.TransactionID == nil {
		return nil, apperr.Newf(apperr.KindValidation, "payment %s has no gateway transaction", p.ID)
	}

	log := s.d.Log.WithFields(logrus.Fields{
		"payment_id":     p.ID,
		"transaction_id": *p.TransactionID,
		"amount":         amount,
	})

	if err := s.claimRefund(ctx, p); err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	err = s.gw.Refund(cctx, gateway.RefundRequest{
		TransactionID:  *p.TransactionID,
		Amount:         amount,
		IdempotencyKey: p.RefundIdempotencyKey(),
	})
	if err != nil {
		if rerr := s.d.Payments.ReleaseRefundClaim(context.WithoutCancel(ctx), p.ID); rerr != nil {
			log.WithError(rerr).Error("release refund claim")
		}
		if errors.Is(err, gateway.ErrRejected) {
			log.WithError(err).Warn("refund rejected by gateway")
			return nil, apperr.Wrap(apperr.KindGatewayRejected, err, "refund rejected by gateway")
		}
		log.WithError(err).Warn("refund did not complete")
		return nil, apperr.Wrap(apperr.KindGatewayTimeout, err, "payment gateway did not respond")
	}

	now := s.d.now()
	var changes []change
	err = s.d.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.d.in(tx)
		patch := map[string]any{
			model.MetaRefundedAt: now.Format(time.RFC3339),
		}
		if notes := strings.TrimSpace(adminNotes); notes != "" {
			patch[model.MetaAdminNotes] = notes
		}
		meta, err := model.MergeMetadata(p.Metadata, patch)
		if err != nil {
			return storeErr(err, "merge metadata")
		}
		ok, err := r.payments.Transition(ctx, p.ID, model.PaymentStatusRefundPending, model.PaymentStatusRefunded, map[string]any{
			"metadata":          meta,
			"refund_claimed_at": nil,
		})
		if err != nil {
			return storeErr(err, "refund payment")
		}
		if !ok {
			log.Error("refund sent but payment changed concurrently")
			cur, err := r.payments.GetByID(ctx, p.ID)
			if err != nil {
				return lookup(err, "payment", p.ID)
			}
			return apperr.Transition(string(policy.EntityPayment), string(cur.Status), string(model.PaymentStatusRefunded))
		}
		from := p.Status
		p.Status, p.Metadata, p.RefundClaimedAt = model.PaymentStatusRefunded, meta, nil

		b, err := r.bookings.GetByID(ctx, p.BookingID)
		if err != nil {
			return lookup(err, "booking", p.BookingID)
		}
		changes = append(changes, paymentChange(model.EventRefundApproved, p, b, actor, from, p.Status).with("refund_amount", amount))
		return s.d.record(ctx, r.events, changes...)
	})
	if err != nil {
		return nil, err
	}
	log.Info("refund approved")
	s.d.publish(ctx, changes...)
	return p, nil
}

// claimRefund помечает возврат как отправляемый. Захват, переживший два
// таймаута шлюза, считается брошенным: повтор уйдёт с тем же ключом
// идемпотентности.
func (s *PaymentService) claimRefund(ctx context.Context, p *model.Payment) error {
	now := s.d.now()
	ok, err := s.d.Payments.ClaimRefund(ctx, p.ID, now, now.Add(-2*s.timeout))
	if err != nil {
		return storeErr(err, "claim refund")
	}
	if ok {
		return nil
	}
	cur, err := s.d.Payments.GetByID(ctx, p.ID)
	if err != nil {
		return lookup(err, "payment", p.ID)
	}
	if cur.Status != model.PaymentStatusRefundPending {
		return apperr.Transition(string(policy.EntityPayment), string(cur.Status), string(model.PaymentStatusRefunded))
	}
	return apperr.Newf(apperr.KindInvalidStateTransition, "refund for payment %s is already being processed", p.ID)
}

// RejectRefund возвращает попытку из REFUND_PENDING в SUCCEEDED.
func (s *PaymentService) RejectRefund(ctx context.Context, paymentID uuid.UUID, reason string, actor Actor) (*model.Payment, error) {
	reason, err := requireReason(reason, "rejection reason")
	if err != nil {
		return nil, err
	}
	now := s.d.now()
	var (
		p       *model.Payment
		changes []change
	)
	err = s.d.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.d.in(tx)
		p, err = r.payments.GetByID(ctx, paymentID)
		if err != nil {
			return lookup(err, "payment", paymentID)
		}
		// В SUCCEEDED ведёт и INITIATED, но отказ в возврате возможен только из REFUND_PENDING.
		if p.Status != model.PaymentStatusRefundPending {
			return apperr.Transition(string(policy.EntityPayment), string(p.Status), string(model.PaymentStatusSucceeded))
		}
		// Захват закрывает отказ от одобрения, уже ушедшего в шлюз.
		ok, err := r.payments.ClaimRefund(ctx, p.ID, now, now.Add(-2*s.timeout))
		if err != nil {
			return storeErr(err, "claim refund")
		}
		if !ok {
			return apperr.Newf(apperr.KindInvalidStateTransition, "refund for payment %s is already being processed", p.ID)
		}
		requested := p.RefundAmount()
		meta, err := model.MergeMetadata(p.Metadata, map[string]any{
			model.MetaRefundAmount: nil,
			"refundRejectedReason": reason,
			"refundRejectedAt":     now.Format(time.RFC3339),
			"refundRejectedAmount": requested,
		})
		if err != nil {
			return storeErr(err, "merge metadata")
		}
		ok, err = r.payments.Transition(ctx, p.ID, model.PaymentStatusRefundPending, model.PaymentStatusSucceeded, map[string]any{
			"metadata":          meta,
			"refund_sum":        0,
			"refund_claimed_at": nil,
		})
		if err != nil {
			return storeErr(err, "reject refund")
		}
		if !ok {
			cur, err := r.payments.GetByID(ctx, p.ID)
			if err != nil {
				return lookup(err, "payment", p.ID)
			}
			return apperr.Transition(string(policy.EntityPayment), string(cur.Status), string(model.PaymentStatusSucceeded))
		}
		from := p.Status
		p.Status, p.Metadata, p.RefundSum, p.RefundClaimedAt = model.PaymentStatusSucceeded, meta, 0, nil
		b, err := r.bookings.GetByID(ctx, p.BookingID)
		if err != nil {
			return lookup(err, "booking", p.BookingID)
		}
		changes = append(changes, paymentChange(model.EventRefundRejected, p, b, actor, from, p.Status).with("reason", reason))
		return s.d.record(ctx, r.events, changes...)
	})
	if err != nil {
		return nil, err
	}
	s.d.Log.WithFields(logrus.Fields{"payment_id": p.ID}).Info("refund rejected")
	s.d.publish(ctx, changes...)
	return p, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, paymentID uuid.UUID) (*model.Payment, error) {
	p, err := s.d.Payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, lookup(err, "payment", paymentID)
	}
	return p, nil
}

func (s *PaymentService) ListBookingPayments(ctx context.Context, bookingID uuid.UUID) ([]model.Payment, error) {
	payments, err := s.d.Payments.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, storeErr(err, "list payments")
	}
	return payments, nil
}

// queueRefund: SUCCEEDED|CANCELLED -> REFUND_PENDING с суммой и причиной в metadata.
// Строку аудита пишет вызывающий вместе с остальными изменениями.
func queueRefund(ctx context.Context, r repos, p *model.Payment, b *model.Booking, actor Actor, amount int64, reason, adminNotes string, now time.Time) (change, error) {
	if err := policy.CheckTransition(policy.EntityPayment, p.Status, model.PaymentStatusRefundPending); err != nil {
		return change{}, err
	}
	patch := map[string]any{
		model.MetaRefundAmount:    amount,
		model.MetaRefundReason:    reason,
		model.MetaRefundRequested: now.Format(time.RFC3339),
	}
	if notes := strings.TrimSpace(adminNotes); notes != "" {
		patch[model.MetaAdminNotes] = notes
	}
	meta, err := model.MergeMetadata(p.Metadata, patch)
	if err != nil {
		return change{}, storeErr(err, "merge metadata")
	}
	ok, err := r.payments.Transition(ctx, p.ID, p.Status, model.PaymentStatusRefundPending, map[string]any{
		"metadata":   meta,
		"refund_sum": amount,
	})
	if err != nil {
		return change{}, storeErr(err, "queue refund")
	}
	if !ok {
		cur, err := r.payments.GetByID(ctx, p.ID)
		if err != nil {
			return change{}, lookup(err, "payment", p.ID)
		}
		return change{}, apperr.Transition(string(policy.EntityPayment), string(cur.Status), string(model.PaymentStatusRefundPending))
	}
	from := p.Status
	p.Status, p.Metadata, p.RefundSum = model.PaymentStatusRefundPending, meta, amount
	return paymentChange(model.EventRefundRequested, p, b, actor, from, p.Status).
		with("refund_amount", amount).
		with("reason", reason), nil
}

func isCoreMetaKey(k string) bool {
	switch k {
	case model.MetaRefundAmount, model.MetaRefundedAt, model.MetaRefundReason,
		model.MetaAdminNotes, model.MetaRefundRequested, model.MetaGateway:
		return true
	}
	return false
}

func failureReason(payload map[string]any, status string) string {
	for _, key := range []string{"failure_reason", "reason", "message", "error"} {
		if v, ok := payload[key].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return "gateway reported " + status
}

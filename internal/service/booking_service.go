package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Leganyst/tour-marketplace/internal/apperr"
	"github.com/Leganyst/tour-marketplace/internal/calendar"
	"github.com/Leganyst/tour-marketplace/internal/model"
	"github.com/Leganyst/tour-marketplace/internal/policy"
)

// BookingService ведёт жизненный цикл брони.
// Каждый переход — compare-and-set по статусу: проигравший гонку получает
// InvalidStateTransition, а не перезаписывает чужой результат.
type BookingService struct {
	d *Deps
}

func NewBookingService(d *Deps) *BookingService {
	return &BookingService{d: d}
}

type CreateBookingInput struct {
	TourID          uuid.UUID `json:"tour_id" validate:"required"`
	SlotID          uuid.UUID `json:"slot_id" validate:"required"`
	TouristID       uuid.UUID `json:"tourist_id" validate:"required"`
	NumGuests       int       `json:"num_guests"`
	SpecialRequests string    `json:"special_requests" validate:"max=2000"`
}

type CreateBookingResult struct {
	Booking *model.Booking
	Payment *model.Payment
}

// CreateBooking резервирует места и создаёт Booking(PENDING) с Payment(PENDING)
// в одной транзакции. Если места не заняты, не создаётся ничего.
func (s *BookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (*CreateBookingResult, error) {
	if in.NumGuests < 1 {
		return nil, apperr.Validation("num_guests must be at least 1")
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	now := s.d.now()
	res := &CreateBookingResult{}
	var created change

	err := s.d.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.d.in(tx)

		tour, err := r.tours.GetByID(ctx, in.TourID)
		if err != nil {
			return lookup(err, "tour", in.TourID)
		}
		if !tour.IsActive {
			return apperr.Newf(apperr.KindSlotUnavailable, "tour %s is not bookable", tour.ID)
		}

		// Снимок нужен только для проверок и цены; вместимость решает reserveSeats.
		slot, err := r.slots.GetByID(ctx, in.SlotID)
		if err != nil {
			return lookup(err, "slot", in.SlotID)
		}
		if slot.TourID != tour.ID {
			return apperr.Validation("slot does not belong to tour")
		}
		if !slot.StartTime.After(now) {
			return apperr.Newf(apperr.KindSlotUnavailable, "slot %s has already started", slot.ID)
		}

		if err := reserveSeats(ctx, r.slots, slot.ID, in.NumGuests); err != nil {
			return err
		}

		if _, err := r.travelers.EnsureByID(ctx, in.TouristID); err != nil {
			return storeErr(err, "ensure traveler")
		}

		tourPrice := slot.PricePerPerson * int64(in.NumGuests)
		serviceFee := policy.ComputeServiceFee(tourPrice, s.d.Settings.ServiceFee)
		currency := slot.Currency
		if currency == "" {
			currency = s.d.Settings.DefaultCurrency
		}

		b := &model.Booking{
			TourID:             tour.ID,
			GuideID:            slot.GuideID,
			TouristID:          in.TouristID,
			AvailabilitySlotID: slot.ID,
			StartAt:            slot.StartTime.UTC(),
			EndAt:              slot.EndTime.UTC(),
			NumGuests:          in.NumGuests,
			TourPrice:          tourPrice,
			ServiceFee:         serviceFee,
			AmountTotal:        tourPrice + serviceFee,
			Currency:           currency,
			Status:             model.BookingStatusPending,
			SpecialRequests:    in.SpecialRequests,
		}
		if err := r.bookings.Create(ctx, b); err != nil {
			return storeErr(err, "create booking")
		}

		p := &model.Payment{
			BookingID: b.ID,
			Amount:    b.AmountTotal,
			Currency:  b.Currency,
			Status:    model.PaymentStatusPending,
		}
		if err := r.payments.Create(ctx, p); err != nil {
			return storeErr(err, "create payment")
		}

		created = bookingChange(model.EventBookingCreated, b, Actor{Kind: model.ActorTraveler, ID: in.TouristID}, "", model.BookingStatusPending).
			with("payment_id", p.ID.String()).
			with("num_guests", b.NumGuests).
			with("amount_total", b.AmountTotal)
		if err := s.d.record(ctx, r.events, created); err != nil {
			return err
		}

		res.Booking, res.Payment = b, p
		return nil
	})
	if err != nil {
		s.d.Log.WithFields(logrus.Fields{
			"slot_id":    in.SlotID,
			"tourist_id": in.TouristID,
			"num_guests": in.NumGuests,
			"reason":     apperr.KindOf(err),
		}).Info("booking rejected")
		return nil, err
	}

	s.d.Log.WithFields(logrus.Fields{
		"booking_id": res.Booking.ID,
		"payment_id": res.Payment.ID,
		"slot_id":    res.Booking.AvailabilitySlotID,
		"amount":     res.Booking.AmountTotal,
	}).Info("booking created")
	s.d.publish(ctx, created)
	return res, nil
}

type CancelInput struct {
	BookingID    uuid.UUID           `json:"booking_id"`
	Actor        Actor               `json:"actor"`
	Reason       string              `json:"reason"`
	Circumstance policy.Circumstance `json:"circumstance"`
}

type CancelResult struct {
	Booking *model.Booking
	Quote   policy.RefundQuote
	// RefundAmount — сколько поставлено в возврат; 0, если брони не платили.
	RefundAmount int64
	// Payment — оплаченная попытка, ушедшая в REFUND_PENDING, если была.
	Payment *model.Payment
}

// CancelBooking отменяет PENDING или CONFIRMED бронь: освобождает места,
// аннулирует незавершённую оплату и ставит в возврат сумму по политике.
func (s *BookingService) CancelBooking(ctx context.Context, in CancelInput) (*CancelResult, error) {
	reason, err := requireReason(in.Reason, "cancellation reason")
	if err != nil {
		return nil, err
	}
	if err := validateStruct(in.Actor); err != nil {
		return nil, err
	}
	if !in.Circumstance.Valid() {
		return nil, apperr.Newf(apperr.KindValidation, "unknown circumstance %q", in.Circumstance)
	}
	if in.Circumstance != policy.CircumstanceNone && in.Actor.Kind != model.ActorAdmin {
		return nil, apperr.New(apperr.KindForbidden, "special circumstances can only be asserted by an admin")
	}

	now := s.d.now()
	res := &CancelResult{}
	var changes []change

	err = s.d.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.d.in(tx)

		b, err := r.bookings.GetByID(ctx, in.BookingID)
		if err != nil {
			return lookup(err, "booking", in.BookingID)
		}
		if err := authorizeBookingActor(b, in.Actor); err != nil {
			return err
		}
		from := b.Status
		if err := policy.CheckTransition(policy.EntityBooking, from, model.BookingStatusCancelled); err != nil {
			return err
		}

		quote := policy.ComputeCancellationRefund(policy.RefundInput{
			TourStartAt:  b.StartAt,
			CancelledAt:  now,
			TourPrice:    b.TourPrice,
			ServiceFee:   b.ServiceFee,
			Initiator:    in.Actor.Kind,
			Circumstance: in.Circumstance,
		})

		by := in.Actor.Kind
		ok, err := r.bookings.Transition(ctx, b.ID, from, model.BookingStatusCancelled, map[string]any{
			"cancelled_at":        now,
			"cancellation_reason": reason,
			"cancelled_by":        by,
		})
		if err != nil {
			return storeErr(err, "cancel booking")
		}
		if !ok {
			return lostRace(ctx, r, b.ID, model.BookingStatusCancelled)
		}
		b.Status = model.BookingStatusCancelled
		b.CancelledAt, b.CancellationReason, b.CancelledBy = &now, &reason, &by

		if err := r.slots.Release(ctx, b.AvailabilitySlotID, b.NumGuests); err != nil {
			return storeErr(err, "release seats")
		}

		voided, err := voidOpenPayment(ctx, r, b, in.Actor)
		if err != nil {
			return err
		}
		changes = append(changes, voided...)

		paid, err := r.payments.FindByBookingStatus(ctx, b.ID, model.PaymentStatusSucceeded)
		if err != nil {
			return storeErr(err, "load payment")
		}
		if paid != nil && quote.RefundAmount > 0 {
			amount := min(quote.RefundAmount, paid.Amount)
			c, err := queueRefund(ctx, r, paid, b, in.Actor, amount, "booking cancelled: "+reason, "", now)
			if err != nil {
				return err
			}
			changes = append(changes, c)
			res.RefundAmount = amount
			res.Payment = paid
		}

		cancelled := bookingChange(model.EventBookingCancelled, b, in.Actor, from, model.BookingStatusCancelled).
			with("reason", reason).
			with("tier", string(quote.Tier)).
			with("refund_amount", res.RefundAmount)
		if in.Circumstance != policy.CircumstanceNone {
			cancelled = cancelled.with("circumstance", string(in.Circumstance))
		}
		changes = append(changes, cancelled)
		if err := s.d.record(ctx, r.events, changes...); err != nil {
			return err
		}

		res.Booking = b
		res.Quote = quote
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.d.Log.WithFields(logrus.Fields{
		"booking_id":    res.Booking.ID,
		"actor":         in.Actor.Kind,
		"tier":          res.Quote.Tier,
		"refund_amount": res.RefundAmount,
	}).Info("booking cancelled")
	s.d.publish(ctx, changes...)
	return res, nil
}

// DeclineBooking — гид отказывает по брони, пока она не оплачена.
func (s *BookingService) DeclineBooking(ctx context.Context, bookingID, guideID uuid.UUID, reason string) (*model.Booking, error) {
	reason, err := requireReason(reason, "decline reason")
	if err != nil {
		return nil, err
	}
	actor := Actor{Kind: model.ActorGuide, ID: guideID}
	now := s.d.now()

	var (
		out     *model.Booking
		changes []change
	)
	err = s.d.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.d.in(tx)

		b, err := r.bookings.GetByID(ctx, bookingID)
		if err != nil {
			return lookup(err, "booking", bookingID)
		}
		if b.GuideID != guideID {
			return apperr.New(apperr.KindForbidden, "booking belongs to another guide")
		}
		if err := policy.CheckTransition(policy.EntityBooking, b.Status, model.BookingStatusDeclined); err != nil {
			return err
		}

		ok, err := r.bookings.Transition(ctx, b.ID, b.Status, model.BookingStatusDeclined, map[string]any{
			"declined_at":         now,
			"cancellation_reason": reason,
		})
		if err != nil {
			return storeErr(err, "decline booking")
		}
		if !ok {
			return lostRace(ctx, r, b.ID, model.BookingStatusDeclined)
		}
		from := b.Status
		b.Status, b.DeclinedAt, b.CancellationReason = model.BookingStatusDeclined, &now, &reason

		if err := r.slots.Release(ctx, b.AvailabilitySlotID, b.NumGuests); err != nil {
			return storeErr(err, "release seats")
		}
		voided, err := voidOpenPayment(ctx, r, b, actor)
		if err != nil {
			return err
		}
		changes = append(voided, bookingChange(model.EventBookingDeclined, b, actor, from, b.Status).with("reason", reason))
		if err := s.d.record(ctx, r.events, changes...); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.d.Log.WithFields(logrus.Fields{"booking_id": out.ID, "guide_id": guideID}).Info("booking declined")
	s.d.publish(ctx, changes...)
	return out, nil
}

// MarkCompleted переводит CONFIRMED в COMPLETED после окончания тура.
// Повторный вызов для COMPLETED ничего не делает.
func (s *BookingService) MarkCompleted(ctx context.Context, bookingID uuid.UUID, now time.Time) (*model.Booking, error) {
	now = now.UTC()
	var (
		out     *model.Booking
		changes []change
	)
	err := s.d.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.d.in(tx)

		b, err := r.bookings.GetByID(ctx, bookingID)
		if err != nil {
			return lookup(err, "booking", bookingID)
		}
		if b.Status == model.BookingStatusCompleted {
			out = b
			return nil
		}
		if err := policy.CheckTransition(policy.EntityBooking, b.Status, model.BookingStatusCompleted); err != nil {
			return err
		}
		if b.EndAt.After(now) {
			return apperr.Newf(apperr.KindValidation, "tour ends at %s", b.EndAt.Format(time.RFC3339))
		}

		ok, err := r.bookings.Transition(ctx, b.ID, b.Status, model.BookingStatusCompleted, map[string]any{
			"completed_at": now,
		})
		if err != nil {
			return storeErr(err, "complete booking")
		}
		if !ok {
			return lostRace(ctx, r, b.ID, model.BookingStatusCompleted)
		}
		from := b.Status
		b.Status, b.CompletedAt = model.BookingStatusCompleted, &now

		changes = append(changes, bookingChange(model.EventBookingCompleted, b, systemActor, from, b.Status).
			with("tour_price", b.TourPrice))
		if err := s.d.record(ctx, r.events, changes...); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(changes) > 0 {
		s.d.Log.WithFields(logrus.Fields{"booking_id": out.ID, "guide_id": out.GuideID}).Info("booking completed")
		s.d.publish(ctx, changes...)
	}
	return out, nil
}

// CancellationPreview — то, что увидит пользователь до подтверждения отмены.
type CancellationPreview struct {
	Quote policy.RefundQuote
	Paid  bool
	// RefundAmount — сумма к возврату с учётом того, была ли оплата.
	RefundAmount int64
}

// QuoteCancellation считает возврат той же функцией, что и CancelBooking.
func (s *BookingService) QuoteCancellation(ctx context.Context, bookingID uuid.UUID, actor Actor, circumstance policy.Circumstance, at time.Time) (*CancellationPreview, error) {
	if !circumstance.Valid() {
		return nil, apperr.Newf(apperr.KindValidation, "unknown circumstance %q", circumstance)
	}
	if at.IsZero() {
		at = s.d.now()
	}
	b, err := s.d.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, lookup(err, "booking", bookingID)
	}
	if err := authorizeBookingActor(b, actor); err != nil {
		return nil, err
	}
	if err := policy.CheckTransition(policy.EntityBooking, b.Status, model.BookingStatusCancelled); err != nil {
		return nil, err
	}

	quote := policy.ComputeCancellationRefund(policy.RefundInput{
		TourStartAt:  b.StartAt,
		CancelledAt:  at.UTC(),
		TourPrice:    b.TourPrice,
		ServiceFee:   b.ServiceFee,
		Initiator:    actor.Kind,
		Circumstance: circumstance,
	})
	paid, err := s.d.Payments.FindByBookingStatus(ctx, b.ID, model.PaymentStatusSucceeded)
	if err != nil {
		return nil, storeErr(err, "load payment")
	}
	preview := &CancellationPreview{Quote: quote, Paid: paid != nil}
	if paid != nil {
		preview.RefundAmount = min(quote.RefundAmount, paid.Amount)
	}
	return preview, nil
}

func (s *BookingService) GetBooking(ctx context.Context, bookingID uuid.UUID) (*model.Booking, error) {
	b, err := s.d.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, lookup(err, "booking", bookingID)
	}
	return b, nil
}

func (s *BookingService) ListTravelerBookings(ctx context.Context, touristID uuid.UUID, page calendar.PageRequest) (calendar.Page[model.Booking], error) {
	items, total, err := s.d.Bookings.ListByTourist(ctx, touristID, page.Limit(), page.Offset())
	if err != nil {
		return calendar.Page[model.Booking]{}, storeErr(err, "list bookings")
	}
	return calendar.NewPage(items, total, page), nil
}

func (s *BookingService) ListGuideBookings(ctx context.Context, guideID uuid.UUID, statuses []model.BookingStatus, page calendar.PageRequest) (calendar.Page[model.Booking], error) {
	items, total, err := s.d.Bookings.ListByGuide(ctx, guideID, statuses, page.Limit(), page.Offset())
	if err != nil {
		return calendar.Page[model.Booking]{}, storeErr(err, "list bookings")
	}
	return calendar.NewPage(items, total, page), nil
}

// History — журнал переходов брони и её платежей.
func (s *BookingService) History(ctx context.Context, bookingID uuid.UUID) ([]model.Event, error) {
	events, err := s.d.Events.ListByAggregate(ctx, bookingID)
	if err != nil {
		return nil, storeErr(err, "load history")
	}
	payments, err := s.d.Payments.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, storeErr(err, "load payments")
	}
	for _, p := range payments {
		pe, err := s.d.Events.ListByAggregate(ctx, p.ID)
		if err != nil {
			return nil, storeErr(err, "load history")
		}
		events = append(events, pe...)
	}
	sortEvents(events)
	return events, nil
}

// confirmBooking — PENDING -> CONFIRMED после успешной оплаты, внутри транзакции платежа.
// ok=false: бронь уже не PENDING (отменена или отклонена раньше колбэка).
func confirmBooking(ctx context.Context, r repos, b *model.Booking, actor Actor, now time.Time) (change, bool, error) {
	if err := policy.CheckTransition(policy.EntityBooking, b.Status, model.BookingStatusConfirmed); err != nil {
		return change{}, false, nil
	}
	ok, err := r.bookings.Transition(ctx, b.ID, b.Status, model.BookingStatusConfirmed, map[string]any{
		"confirmed_at": now,
	})
	if err != nil {
		return change{}, false, storeErr(err, "confirm booking")
	}
	if !ok {
		return change{}, false, nil
	}
	from := b.Status
	b.Status, b.ConfirmedAt = model.BookingStatusConfirmed, &now
	return bookingChange(model.EventBookingConfirmed, b, actor, from, b.Status), true, nil
}

// voidOpenPayment аннулирует незавершённую попытку оплаты брони, если она есть.
func voidOpenPayment(ctx context.Context, r repos, b *model.Booking, actor Actor) ([]change, error) {
	open, err := r.payments.FindOpenByBooking(ctx, b.ID)
	if err != nil {
		return nil, storeErr(err, "load payment")
	}
	if open == nil {
		return nil, nil
	}
	ok, err := r.payments.Transition(ctx, open.ID, open.Status, model.PaymentStatusCancelled, map[string]any{
		"failure_reason": "booking closed before payment completed",
	})
	if err != nil {
		return nil, storeErr(err, "void payment")
	}
	if !ok {
		// Колбэк успел раньше; оплаченную попытку обработает вызывающий.
		return nil, nil
	}
	from := open.Status
	open.Status = model.PaymentStatusCancelled
	return []change{paymentChange(model.EventPaymentVoided, open, b, actor, from, open.Status)}, nil
}

// authorizeBookingActor: путешественник и гид действуют только со своими бронями.
func authorizeBookingActor(b *model.Booking, actor Actor) error {
	switch actor.Kind {
	case model.ActorTraveler:
		if actor.ID != b.TouristID {
			return apperr.New(apperr.KindForbidden, "booking belongs to another traveler")
		}
	case model.ActorGuide:
		if actor.ID != b.GuideID {
			return apperr.New(apperr.KindForbidden, "booking belongs to another guide")
		}
	case model.ActorAdmin, model.ActorSystem:
	default:
		return apperr.Newf(apperr.KindValidation, "unknown actor %q", actor.Kind)
	}
	return nil
}

// CanAccess — та же проверка для транспортов, читающих бронь вне операций.
func (a Actor) CanAccess(b *model.Booking) error {
	return authorizeBookingActor(b, a)
}

// lostRace перечитывает бронь после проигранного compare-and-set.
func lostRace(ctx context.Context, r repos, id uuid.UUID, to model.BookingStatus) error {
	cur, err := r.bookings.GetByID(ctx, id)
	if err != nil {
		return lookup(err, "booking", id)
	}
	return apperr.Transition(string(policy.EntityBooking), string(cur.Status), string(to))
}

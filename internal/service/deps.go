package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Leganyst/tour-marketplace/internal/apperr"
	"github.com/Leganyst/tour-marketplace/internal/db"
	"github.com/Leganyst/tour-marketplace/internal/model"
	"github.com/Leganyst/tour-marketplace/internal/notify"
	"github.com/Leganyst/tour-marketplace/internal/policy"
	"github.com/Leganyst/tour-marketplace/internal/repository"
)

var validate = validator.New()

// Deps — общие зависимости сервисов ядра.
type Deps struct {
	Tx db.TxRunner

	Guides    repository.GuideRepository
	Tours     repository.TourRepository
	Schedules repository.ScheduleRepository
	Slots     repository.SlotRepository
	Bookings  repository.BookingRepository
	Payments  repository.PaymentRepository
	Payouts   repository.PayoutRepository
	Events    repository.EventRepository
	Travelers repository.TravelerRepository

	Notifier notify.Notifier
	Settings policy.Settings
	Log      logrus.FieldLogger

	// Now подменяется в тестах.
	Now func() time.Time
}

// NewDeps собирает Deps на GORM-репозиториях поверх одного *gorm.DB.
func NewDeps(gdb *gorm.DB, settings policy.Settings, notifier notify.Notifier, log logrus.FieldLogger) *Deps {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Deps{
		Tx:        db.NewTxRunner(gdb),
		Guides:    repository.NewGormGuideRepository(gdb),
		Tours:     repository.NewGormTourRepository(gdb),
		Schedules: repository.NewGormScheduleRepository(gdb),
		Slots:     repository.NewGormSlotRepository(gdb),
		Bookings:  repository.NewGormBookingRepository(gdb),
		Payments:  repository.NewGormPaymentRepository(gdb),
		Payouts:   repository.NewGormPayoutRepository(gdb),
		Events:    repository.NewGormEventRepository(gdb),
		Travelers: repository.NewGormTravelerRepository(gdb),
		Notifier:  notifier,
		Settings:  settings,
		Log:       log,
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

func (d *Deps) now() time.Time {
	if d.Now == nil {
		return time.Now().UTC()
	}
	return d.Now().UTC()
}

// Actor — кто выполняет операцию.
type Actor struct {
	Kind model.ActorKind `json:"kind" validate:"required,oneof=TRAVELER GUIDE ADMIN SYSTEM"`
	ID   uuid.UUID       `json:"id"`
}

var systemActor = Actor{Kind: model.ActorSystem}

func (a Actor) idPtr() *uuid.UUID {
	if a.ID == uuid.Nil {
		return nil
	}
	id := a.ID
	return &id
}

// change — один переход: строка аудита в транзакции и уведомление после коммита.
type change struct {
	typ       model.EventType
	aggregate model.Aggregate
	id        uuid.UUID
	actor     Actor
	from, to  string
	details   map[string]any

	traveler *uuid.UUID
	guide    *uuid.UUID
}

func bookingChange(typ model.EventType, b *model.Booking, actor Actor, from, to model.BookingStatus) change {
	traveler, guide := b.TouristID, b.GuideID
	return change{
		typ:       typ,
		aggregate: model.AggregateBooking,
		id:        b.ID,
		actor:     actor,
		from:      string(from),
		to:        string(to),
		traveler:  &traveler,
		guide:     &guide,
	}
}

func paymentChange(typ model.EventType, p *model.Payment, b *model.Booking, actor Actor, from, to model.PaymentStatus) change {
	c := change{
		typ:       typ,
		aggregate: model.AggregatePayment,
		id:        p.ID,
		actor:     actor,
		from:      string(from),
		to:        string(to),
		details:   map[string]any{"booking_id": p.BookingID.String(), "amount": p.Amount},
	}
	if b != nil {
		traveler, guide := b.TouristID, b.GuideID
		c.traveler, c.guide = &traveler, &guide
	}
	return c
}

func payoutChange(typ model.EventType, p *model.Payout, actor Actor, from, to model.PayoutStatus) change {
	guide := p.GuideID
	return change{
		typ:       typ,
		aggregate: model.AggregatePayout,
		id:        p.ID,
		actor:     actor,
		from:      string(from),
		to:        string(to),
		details:   map[string]any{"amount": p.Amount, "net_amount": p.NetAmount},
		guide:     &guide,
	}
}

func (c change) with(key string, v any) change {
	details := make(map[string]any, len(c.details)+1)
	for k, val := range c.details {
		details[k] = val
	}
	details[key] = v
	c.details = details
	return c
}

// record пишет строки аудита через репозиторий текущей транзакции.
func (d *Deps) record(ctx context.Context, events repository.EventRepository, changes ...change) error {
	for _, c := range changes {
		var details datatypes.JSON
		if len(c.details) > 0 {
			raw, err := json.Marshal(c.details)
			if err != nil {
				return fmt.Errorf("marshal event details: %w", err)
			}
			details = raw
		}
		ev := &model.Event{
			EventType:     c.typ,
			AggregateType: c.aggregate,
			AggregateID:   c.id,
			ActorKind:     c.actor.Kind,
			ActorID:       c.actor.idPtr(),
			FromStatus:    c.from,
			ToStatus:      c.to,
			Details:       details,
		}
		if err := events.Create(ctx, ev); err != nil {
			return fmt.Errorf("record %s: %w", c.typ, err)
		}
	}
	return nil
}

// publish отправляет уведомления; вызывается только после коммита.
func (d *Deps) publish(ctx context.Context, changes ...change) {
	at := d.now()
	for _, c := range changes {
		data := map[string]any{}
		for k, v := range c.details {
			data[k] = v
		}
		if c.from != "" {
			data["from"] = c.from
		}
		if c.to != "" {
			data["to"] = c.to
		}
		d.Notifier.Notify(ctx, notify.Event{
			Type:        c.typ,
			AggregateID: c.id,
			TravelerID:  c.traveler,
			GuideID:     c.guide,
			Data:        data,
			OccurredAt:  at,
		})
	}
}

// lookup переводит ошибку репозитория в apperr.
func lookup(err error, what string, id uuid.UUID) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Newf(apperr.KindNotFound, "%s %s not found", what, id)
	}
	return storeErr(err, "load "+what)
}

// storeErr оборачивает ошибки хранилища, уже типизированные ошибки пропускает как есть.
func storeErr(err error, msg string) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Wrap(apperr.KindInternal, err, msg)
}

// validateStruct прогоняет validator и собирает ошибки в одну ValidationError.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation(err.Error())
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return apperr.Validation(strings.Join(parts, "; "))
}

func requireReason(reason, what string) (string, error) {
	r := strings.TrimSpace(reason)
	if r == "" {
		return "", apperr.Validation(what + " is required")
	}
	return r, nil
}

// repos — репозитории, привязанные к одной транзакции.
type repos struct {
	tours     repository.TourRepository
	slots     repository.SlotRepository
	bookings  repository.BookingRepository
	payments  repository.PaymentRepository
	payouts   repository.PayoutRepository
	events    repository.EventRepository
	travelers repository.TravelerRepository
}

func (d *Deps) in(tx *gorm.DB) repos {
	return repos{
		tours:     d.Tours.WithTx(tx),
		slots:     d.Slots.WithTx(tx),
		bookings:  d.Bookings.WithTx(tx),
		payments:  d.Payments.WithTx(tx),
		payouts:   d.Payouts.WithTx(tx),
		events:    d.Events.WithTx(tx),
		travelers: d.Travelers.WithTx(tx),
	}
}

func sortEvents(events []model.Event) {
	slices.SortStableFunc(events, func(a, b model.Event) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

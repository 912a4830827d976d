package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Leganyst/tour-marketplace/internal/apperr"
)

const sweepBatch = 100

// Sweeper — фоновые задачи: завершение прошедших туров и отмена
// неоплаченных броней. Обе задачи идемпотентны и безопасны при гонках
// с пользовательскими действиями.
type Sweeper struct {
	d             *Deps
	bookings      *BookingService
	paymentWindow time.Duration
	interval      time.Duration
}

func NewSweeper(d *Deps, bookings *BookingService, paymentWindow, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{d: d, bookings: bookings, paymentWindow: paymentWindow, interval: interval}
}

type SweepReport struct {
	Completed int
	Expired   int
	Skipped   int
}

// CompleteElapsed завершает CONFIRMED-брони с endAt <= now.
func (s *Sweeper) CompleteElapsed(ctx context.Context, now time.Time) (SweepReport, error) {
	var rep SweepReport
	for {
		batch, err := s.d.Bookings.ListConfirmedEndedBefore(ctx, now, sweepBatch)
		if err != nil {
			return rep, storeErr(err, "list elapsed bookings")
		}
		progressed := false
		for _, b := range batch {
			_, err := s.bookings.MarkCompleted(ctx, b.ID, now)
			switch {
			case err == nil:
				rep.Completed++
				progressed = true
			case apperr.KindOf(err) == apperr.KindInvalidStateTransition:
				// Бронь успели отменить.
				rep.Skipped++
			default:
				return rep, err
			}
		}
		if len(batch) < sweepBatch || !progressed {
			return rep, nil
		}
	}
}

// ExpireUnpaid отменяет PENDING-брони, не оплаченные за paymentWindow.
// Брони со свежей попыткой у шлюза не трогаются до следующего прохода.
func (s *Sweeper) ExpireUnpaid(ctx context.Context, now time.Time) (SweepReport, error) {
	var rep SweepReport
	if s.paymentWindow <= 0 {
		return rep, nil
	}
	cutoff := now.Add(-s.paymentWindow)
	for {
		batch, err := s.d.Bookings.ListUnpaidPendingBefore(ctx, cutoff, sweepBatch)
		if err != nil {
			return rep, storeErr(err, "list unpaid bookings")
		}
		progressed := false
		for _, b := range batch {
			_, err := s.bookings.CancelBooking(ctx, CancelInput{
				BookingID: b.ID,
				Actor:     systemActor,
				Reason:    "payment window elapsed",
			})
			switch {
			case err == nil:
				rep.Expired++
				progressed = true
			case apperr.KindOf(err) == apperr.KindInvalidStateTransition:
				rep.Skipped++
			default:
				return rep, err
			}
		}
		if len(batch) < sweepBatch || !progressed {
			return rep, nil
		}
	}
}

// Run гоняет обе задачи по тикеру до отмены ctx.
func (s *Sweeper) Run(ctx context.Context) {
	log := s.d.Log.WithField("component", "sweeper")
	log.WithField("interval", s.interval.String()).Info("sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.tick(ctx, log)
		select {
		case <-ctx.Done():
			log.Info("sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) tick(ctx context.Context, log logrus.FieldLogger) {
	now := s.d.now()

	done, err := s.CompleteElapsed(ctx, now)
	if err != nil && ctx.Err() == nil {
		log.WithError(err).Error("complete elapsed bookings")
	}
	expired, err := s.ExpireUnpaid(ctx, now)
	if err != nil && ctx.Err() == nil {
		log.WithError(err).Error("expire unpaid bookings")
	}
	if done.Completed+expired.Expired > 0 {
		log.WithFields(logrus.Fields{
			"completed": done.Completed,
			"expired":   expired.Expired,
		}).Info("sweep finished")
	}
}

package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Leganyst/tour-marketplace/internal/apperr"
	"github.com/Leganyst/tour-marketplace/internal/calendar"
	"github.com/Leganyst/tour-marketplace/internal/model"
	"github.com/Leganyst/tour-marketplace/internal/policy"
	"github.com/Leganyst/tour-marketplace/internal/repository"
)

// PayoutService — выплаты гидам. Баланс нигде не хранится и каждый раз
// пересчитывается из броней и выплат.
type PayoutService struct {
	d *Deps
}

func NewPayoutService(d *Deps) *PayoutService {
	return &PayoutService{d: d}
}

type Balance struct {
	GuideID uuid.UUID `json:"guide_id"`
	// Earned — TourPrice завершённых броней с успешной оплатой.
	Earned int64 `json:"earned"`
	// Locked — выплаты не в FAILED/CANCELLED.
	Locked    int64 `json:"locked"`
	Available int64 `json:"available"`
	// Pending — оплаченные подтверждённые брони, тур ещё не завершён.
	Pending  int64  `json:"pending"`
	Sent     int64  `json:"sent_net"`
	Currency string `json:"currency"`
}

func (s *PayoutService) AvailableBalance(ctx context.Context, guideID uuid.UUID) (*Balance, error) {
	if guideID == uuid.Nil {
		return nil, apperr.Validation("guide_id is required")
	}
	return s.balance(ctx, s.d.Payouts, guideID)
}

func (s *PayoutService) balance(ctx context.Context, payouts repository.PayoutRepository, guideID uuid.UUID) (*Balance, error) {
	earned, err := payouts.EarnedTotal(ctx, guideID)
	if err != nil {
		return nil, storeErr(err, "sum earnings")
	}
	locked, err := payouts.LockedTotal(ctx, guideID)
	if err != nil {
		return nil, storeErr(err, "sum payouts")
	}
	pending, err := payouts.PendingTotal(ctx, guideID)
	if err != nil {
		return nil, storeErr(err, "sum pending")
	}
	sent, err := payouts.SentNetTotal(ctx, guideID)
	if err != nil {
		return nil, storeErr(err, "sum sent")
	}
	return &Balance{
		GuideID:   guideID,
		Earned:    earned,
		Locked:    locked,
		Available: earned - locked,
		Pending:   pending,
		Sent:      sent,
		Currency:  s.d.Settings.DefaultCurrency,
	}, nil
}

type PayoutRequest struct {
	GuideID        uuid.UUID      `json:"guide_id" validate:"required"`
	Amount         int64          `json:"amount"`
	PaymentMethod  string         `json:"payment_method" validate:"required,max=64"`
	AccountDetails map[string]any `json:"account_details"`
}

// RequestPayout: проверка баланса и создание выплаты идут под локом строки
// гида, поэтому два параллельных запроса не превысят баланс вместе.
func (s *PayoutService) RequestPayout(ctx context.Context, in PayoutRequest) (*model.Payout, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.Amount <= 0 {
		return nil, apperr.Validation("payout amount must be positive")
	}
	settings := s.d.Settings
	if in.Amount < settings.MinimumPayout {
		return nil, apperr.Newf(apperr.KindBelowMinimumPayout, "minimum payout is %d, requested %d", settings.MinimumPayout, in.Amount)
	}

	now := s.d.now()
	var (
		payout  *model.Payout
		changes []change
	)
	err := s.d.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.d.in(tx)

		if err := r.payouts.LockGuide(ctx, in.GuideID); err != nil {
			return storeErr(err, "lock guide ledger")
		}
		bal, err := s.balance(ctx, r.payouts, in.GuideID)
		if err != nil {
			return err
		}
		if in.Amount > bal.Available {
			return apperr.Newf(apperr.KindInsufficientBalance, "available balance is %d, requested %d", bal.Available, in.Amount)
		}

		fee := policy.ComputePlatformFee(in.Amount, settings.PlatformFee)
		payout = &model.Payout{
			GuideID:        in.GuideID,
			Amount:         in.Amount,
			PlatformFee:    fee,
			NetAmount:      in.Amount - fee,
			Currency:       settings.DefaultCurrency,
			PaymentMethod:  in.PaymentMethod,
			AccountDetails: datatypes.JSONMap(in.AccountDetails),
			Status:         model.PayoutStatusPending,
			RequestedAt:    now,
		}
		if err := r.payouts.Create(ctx, payout); err != nil {
			return storeErr(err, "create payout")
		}
		changes = append(changes, payoutChange(model.EventPayoutRequested, payout, Actor{Kind: model.ActorGuide, ID: in.GuideID}, "", model.PayoutStatusPending).
			with("platform_fee", fee))
		return s.d.record(ctx, r.events, changes...)
	})
	if err != nil {
		s.d.Log.WithFields(logrus.Fields{
			"guide_id": in.GuideID,
			"amount":   in.Amount,
			"reason":   apperr.KindOf(err),
		}).Info("payout rejected")
		return nil, err
	}

	s.d.Log.WithFields(logrus.Fields{
		"payout_id":    payout.ID,
		"guide_id":     payout.GuideID,
		"amount":       payout.Amount,
		"platform_fee": payout.PlatformFee,
	}).Info("payout requested")
	s.d.publish(ctx, changes...)
	return payout, nil
}

// StartProcessing — необязательный шаг PENDING -> PROCESSING.
func (s *PayoutService) StartProcessing(ctx context.Context, payoutID uuid.UUID, actor Actor) (*model.Payout, error) {
	return s.move(ctx, payoutID, model.PayoutStatusProcessing, model.EventPayoutProcessing, actor, nil, nil)
}

// ProcessPayout подтверждает отправку денег гиду: PENDING|PROCESSING -> SENT.
func (s *PayoutService) ProcessPayout(ctx context.Context, payoutID uuid.UUID, providerPayoutID string, actor Actor) (*model.Payout, error) {
	now := s.d.now()
	updates := map[string]any{"processed_at": now}
	if providerPayoutID != "" {
		updates["provider_payout_id"] = providerPayoutID
	}
	return s.move(ctx, payoutID, model.PayoutStatusSent, model.EventPayoutProcessed, actor, updates, func(p *model.Payout) {
		p.ProcessedAt = &now
		if providerPayoutID != "" {
			id := providerPayoutID
			p.ProviderPayoutID = &id
		}
	})
}

// FailPayout: сумма возвращается в доступный баланс сама, так как FAILED
// в расчёте не участвует.
func (s *PayoutService) FailPayout(ctx context.Context, payoutID uuid.UUID, failureReason string, actor Actor) (*model.Payout, error) {
	reason, err := requireReason(failureReason, "failure reason")
	if err != nil {
		return nil, err
	}
	return s.move(ctx, payoutID, model.PayoutStatusFailed, model.EventPayoutFailed, actor, map[string]any{
		"failure_reason": reason,
	}, func(p *model.Payout) {
		p.FailureReason = &reason
	})
}

// CancelPayout — гид отзывает ещё не обработанную заявку.
func (s *PayoutService) CancelPayout(ctx context.Context, payoutID, guideID uuid.UUID) (*model.Payout, error) {
	p, err := s.d.Payouts.GetByID(ctx, payoutID)
	if err != nil {
		return nil, lookup(err, "payout", payoutID)
	}
	if p.GuideID != guideID {
		return nil, apperr.New(apperr.KindForbidden, "payout belongs to another guide")
	}
	return s.move(ctx, payoutID, model.PayoutStatusCancelled, model.EventPayoutCancelled, Actor{Kind: model.ActorGuide, ID: guideID}, nil, nil)
}

func (s *PayoutService) move(
	ctx context.Context,
	payoutID uuid.UUID,
	to model.PayoutStatus,
	typ model.EventType,
	actor Actor,
	updates map[string]any,
	apply func(*model.Payout),
) (*model.Payout, error) {
	var (
		p       *model.Payout
		changes []change
	)
	err := s.d.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.d.in(tx)
		var err error
		p, err = r.payouts.GetByID(ctx, payoutID)
		if err != nil {
			return lookup(err, "payout", payoutID)
		}
		from := p.Status
		if err := policy.CheckTransition(policy.EntityPayout, from, to); err != nil {
			return err
		}
		ok, err := r.payouts.Transition(ctx, p.ID, from, to, updates)
		if err != nil {
			return storeErr(err, "update payout")
		}
		if !ok {
			cur, err := r.payouts.GetByID(ctx, p.ID)
			if err != nil {
				return lookup(err, "payout", p.ID)
			}
			return apperr.Transition(string(policy.EntityPayout), string(cur.Status), string(to))
		}
		p.Status = to
		if apply != nil {
			apply(p)
		}
		c := payoutChange(typ, p, actor, from, to)
		if p.FailureReason != nil {
			c = c.with("reason", *p.FailureReason)
		}
		changes = append(changes, c)
		return s.d.record(ctx, r.events, changes...)
	})
	if err != nil {
		return nil, err
	}
	s.d.Log.WithFields(logrus.Fields{
		"payout_id": p.ID,
		"guide_id":  p.GuideID,
		"status":    p.Status,
	}).Info("payout updated")
	s.d.publish(ctx, changes...)
	return p, nil
}

func (s *PayoutService) GetPayout(ctx context.Context, payoutID uuid.UUID) (*model.Payout, error) {
	p, err := s.d.Payouts.GetByID(ctx, payoutID)
	if err != nil {
		return nil, lookup(err, "payout", payoutID)
	}
	return p, nil
}

func (s *PayoutService) ListPayouts(ctx context.Context, guideID uuid.UUID, page calendar.PageRequest) (calendar.Page[model.Payout], error) {
	items, total, err := s.d.Payouts.ListByGuide(ctx, guideID, page.Limit(), page.Offset())
	if err != nil {
		return calendar.Page[model.Payout]{}, storeErr(err, "list payouts")
	}
	return calendar.NewPage(items, total, page), nil
}

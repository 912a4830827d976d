package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/tour-marketplace/internal/model"
)

type PayoutRepository interface {
	Create(ctx context.Context, payout *model.Payout) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Payout, error)
	ListByGuide(ctx context.Context, guideID uuid.UUID, limit, offset int) ([]model.Payout, int64, error)
	Transition(ctx context.Context, id uuid.UUID, from, to model.PayoutStatus, updates map[string]any) (bool, error)

	// LockGuide берёт строчный лок гида на время транзакции.
	// Вызывать только внутри WithTx.
	LockGuide(ctx context.Context, guideID uuid.UUID) error
	// EarnedTotal — сумма TourPrice завершённых оплаченных броней гида
	// за вычетом возвратов (запрошенных и проведённых).
	EarnedTotal(ctx context.Context, guideID uuid.UUID) (int64, error)
	// PendingTotal — подтверждённые оплаченные брони, тур которых ещё не завершён.
	PendingTotal(ctx context.Context, guideID uuid.UUID) (int64, error)
	// LockedTotal — сумма Amount выплат не в FAILED/CANCELLED.
	LockedTotal(ctx context.Context, guideID uuid.UUID) (int64, error)
	// SentNetTotal — сумма NetAmount отправленных выплат.
	SentNetTotal(ctx context.Context, guideID uuid.UUID) (int64, error)

	WithTx(tx *gorm.DB) PayoutRepository
}

type GormPayoutRepository struct {
	db *gorm.DB
}

func NewGormPayoutRepository(db *gorm.DB) *GormPayoutRepository {
	return &GormPayoutRepository{db: db}
}

func (r *GormPayoutRepository) WithTx(tx *gorm.DB) PayoutRepository {
	return &GormPayoutRepository{db: tx}
}

func (r *GormPayoutRepository) Create(ctx context.Context, payout *model.Payout) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

func (r *GormPayoutRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Payout, error) {
	var p model.Payout
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormPayoutRepository) ListByGuide(ctx context.Context, guideID uuid.UUID, limit, offset int) ([]model.Payout, int64, error) {
	var (
		payouts []model.Payout
		total   int64
	)
	q := r.db.WithContext(ctx).
		Model(&model.Payout{}).
		Where("guide_id = ?", guideID)

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Order("requested_at DESC").Find(&payouts).Error; err != nil {
		return nil, 0, err
	}
	return payouts, total, nil
}

func (r *GormPayoutRepository) Transition(
	ctx context.Context,
	id uuid.UUID,
	from, to model.PayoutStatus,
	updates map[string]any,
) (bool, error) {
	update := map[string]any{
		"status": to,
	}
	for k, v := range updates {
		update[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&model.Payout{}).
		Where("id = ? AND status = ?", id, from).
		Updates(update)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// LockGuide: INSERT ... ON CONFLICT DO NOTHING гарантирует строку,
// SELECT ... FOR UPDATE держит её до конца транзакции. В SQLite FOR UPDATE
// опускается драйвером, а сериализацию даёт сама запись в транзакции.
func (r *GormPayoutRepository) LockGuide(ctx context.Context, guideID uuid.UUID) error {
	db := r.db.WithContext(ctx)
	ledger := model.GuideLedger{GuideID: guideID}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&ledger).Error; err != nil {
		return err
	}
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&ledger, "guide_id = ?", guideID).Error; err != nil {
		return err
	}
	return db.Model(&model.GuideLedger{}).
		Where("guide_id = ?", guideID).
		Update("updated_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
}

func (r *GormPayoutRepository) EarnedTotal(ctx context.Context, guideID uuid.UUID) (int64, error) {
	return r.sumPaidBookings(ctx, guideID, model.BookingStatusCompleted)
}

func (r *GormPayoutRepository) PendingTotal(ctx context.Context, guideID uuid.UUID) (int64, error) {
	return r.sumPaidBookings(ctx, guideID, model.BookingStatusConfirmed)
}

// sumPaidBookings: TourPrice броней с проведённой оплатой за вычетом возврата.
// Возврат сверх TourPrice приходится на сервисный сбор и гида не касается.
func (r *GormPayoutRepository) sumPaidBookings(ctx context.Context, guideID uuid.UUID, status model.BookingStatus) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Select(`COALESCE(SUM(bookings.tour_price - CASE
			WHEN payments.refund_sum < bookings.tour_price THEN payments.refund_sum
			ELSE bookings.tour_price END), 0)`).
		Joins("JOIN payments ON payments.booking_id = bookings.id").
		Where("bookings.guide_id = ? AND bookings.status = ?", guideID, status).
		Where("payments.status IN ?", []model.PaymentStatus{
			model.PaymentStatusSucceeded,
			model.PaymentStatusRefundPending,
			model.PaymentStatusRefunded,
		}).
		Scan(&total).Error
	return total, err
}

func (r *GormPayoutRepository) LockedTotal(ctx context.Context, guideID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Payout{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("guide_id = ?", guideID).
		Where("status NOT IN ?", []model.PayoutStatus{model.PayoutStatusFailed, model.PayoutStatusCancelled}).
		Scan(&total).Error
	return total, err
}

func (r *GormPayoutRepository) SentNetTotal(ctx context.Context, guideID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Payout{}).
		Select("COALESCE(SUM(net_amount), 0)").
		Where("guide_id = ? AND status = ?", guideID, model.PayoutStatusSent).
		Scan(&total).Error
	return total, err
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/tour-marketplace/internal/model"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*model.Payment, error)
	// FindOpenByBooking — единственная открытая (PENDING/INITIATED) попытка брони или nil.
	FindOpenByBooking(ctx context.Context, bookingID uuid.UUID) (*model.Payment, error)
	// FindByBookingStatus — последняя попытка брони в заданном статусе или nil.
	FindByBookingStatus(ctx context.Context, bookingID uuid.UUID, status model.PaymentStatus) (*model.Payment, error)
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]model.Payment, error)
	// Transition — compare-and-set по статусу, как у броней.
	Transition(ctx context.Context, id uuid.UUID, from, to model.PaymentStatus, updates map[string]any) (bool, error)
	// ClaimRefund захватывает REFUND_PENDING-попытку под отправку возврата.
	// Захват старше staleBefore считается брошенным и перехватывается.
	ClaimRefund(ctx context.Context, id uuid.UUID, at, staleBefore time.Time) (bool, error)
	// ReleaseRefundClaim снимает захват, статус не меняет.
	ReleaseRefundClaim(ctx context.Context, id uuid.UUID) error

	WithTx(tx *gorm.DB) PaymentRepository
}

type GormPaymentRepository struct {
	db *gorm.DB
}

func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

func (r *GormPaymentRepository) WithTx(tx *gorm.DB) PaymentRepository {
	return &GormPaymentRepository{db: tx}
}

func (r *GormPaymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *GormPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var p model.Payment
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormPaymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*model.Payment, error) {
	var p model.Payment
	if err := r.db.WithContext(ctx).First(&p, "transaction_id = ?", transactionID).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormPaymentRepository) FindOpenByBooking(ctx context.Context, bookingID uuid.UUID) (*model.Payment, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Where("status IN ?", []model.PaymentStatus{model.PaymentStatusPending, model.PaymentStatusInitiated}).
		Order("created_at DESC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormPaymentRepository) FindByBookingStatus(ctx context.Context, bookingID uuid.UUID, status model.PaymentStatus) (*model.Payment, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).
		Where("booking_id = ? AND status = ?", bookingID, status).
		Order("created_at DESC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormPaymentRepository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *GormPaymentRepository) Transition(
	ctx context.Context,
	id uuid.UUID,
	from, to model.PaymentStatus,
	updates map[string]any,
) (bool, error) {
	update := map[string]any{
		"status": to,
	}
	for k, v := range updates {
		update[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(update)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormPaymentRepository) ClaimRefund(ctx context.Context, id uuid.UUID, at, staleBefore time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ? AND status = ?", id, model.PaymentStatusRefundPending).
		Where("refund_claimed_at IS NULL OR refund_claimed_at < ?", staleBefore).
		Update("refund_claimed_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormPaymentRepository) ReleaseRefundClaim(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ?", id).
		Update("refund_claimed_at", nil).
		Error
}

package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/tour-marketplace/internal/model"
)

type BookingRepository interface {
	// Создать новое бронирование.
	Create(ctx context.Context, booking *model.Booking) error
	// Получить бронирование по ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	// GetForUpdate — то же, но со строчным локом до конца транзакции.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	// Transition меняет статус, только если текущий статус равен from.
	// false — бронь уже в другом статусе (кто-то успел раньше).
	Transition(ctx context.Context, id uuid.UUID, from, to model.BookingStatus, updates map[string]any) (bool, error)
	// Брони путешественника с пагинацией, новые сначала.
	ListByTourist(ctx context.Context, touristID uuid.UUID, limit, offset int) ([]model.Booking, int64, error)
	// Брони гида со статусом из statuses (пустой список: любые).
	ListByGuide(ctx context.Context, guideID uuid.UUID, statuses []model.BookingStatus, limit, offset int) ([]model.Booking, int64, error)
	// Подтверждённые брони, чей тур закончился до now.
	ListConfirmedEndedBefore(ctx context.Context, now time.Time, limit int) ([]model.Booking, error)
	// PENDING-брони старше cutoff без свежей попытки оплаты у шлюза.
	ListUnpaidPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.Booking, error)

	WithTx(tx *gorm.DB) BookingRepository
}

// Реализация на GORM.
type GormBookingRepository struct {
	db *gorm.DB
}

func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

func (r *GormBookingRepository) WithTx(tx *gorm.DB) BookingRepository {
	return &GormBookingRepository{db: tx}
}

func (r *GormBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *GormBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	var b model.Booking
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *GormBookingRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	var b model.Booking
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&b, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *GormBookingRepository) Transition(
	ctx context.Context,
	id uuid.UUID,
	from, to model.BookingStatus,
	updates map[string]any,
) (bool, error) {
	update := map[string]any{
		"status": to,
	}
	for k, v := range updates {
		update[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("id = ? AND status = ?", id, from).
		Updates(update)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormBookingRepository) ListByTourist(
	ctx context.Context,
	touristID uuid.UUID,
	limit, offset int,
) ([]model.Booking, int64, error) {
	var (
		bookings []model.Booking
		total    int64
	)

	q := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("tourist_id = ?", touristID)

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	if err := q.Order("created_at DESC").Find(&bookings).Error; err != nil {
		return nil, 0, err
	}

	return bookings, total, nil
}

func (r *GormBookingRepository) ListByGuide(
	ctx context.Context,
	guideID uuid.UUID,
	statuses []model.BookingStatus,
	limit, offset int,
) ([]model.Booking, int64, error) {
	var (
		bookings []model.Booking
		total    int64
	)

	q := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("guide_id = ?", guideID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	if err := q.Order("start_at ASC").Find(&bookings).Error; err != nil {
		return nil, 0, err
	}

	return bookings, total, nil
}

func (r *GormBookingRepository) ListConfirmedEndedBefore(ctx context.Context, now time.Time, limit int) ([]model.Booking, error) {
	var bookings []model.Booking
	q := r.db.WithContext(ctx).
		Where("status = ?", model.BookingStatusConfirmed).
		Where("end_at <= ?", now.UTC()).
		Order("end_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *GormBookingRepository) ListUnpaidPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.Booking, error) {
	inFlight := r.db.Model(&model.Payment{}).
		Select("1").
		Where("payments.booking_id = bookings.id").
		Where("payments.status = ? AND payments.updated_at > ?", model.PaymentStatusInitiated, cutoff.UTC())

	var bookings []model.Booking
	q := r.db.WithContext(ctx).
		Where("status = ?", model.BookingStatusPending).
		Where("created_at <= ?", cutoff.UTC()).
		Where("NOT EXISTS (?)", inFlight).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

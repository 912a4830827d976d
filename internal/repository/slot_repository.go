package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/tour-marketplace/internal/model"
)

type SlotRepository interface {
	// Слоты тура по интервалу; при onlyBookable только открытые и с местами.
	ListByTourRange(ctx context.Context, tourID uuid.UUID, from, to time.Time, onlyBookable bool, limit, offset int) ([]model.AvailabilitySlot, int64, error)
	// Все слоты гида, пересекающие интервал (для проверки наложений).
	ListByGuideOverlapping(ctx context.Context, guideID uuid.UUID, from, to time.Time) ([]model.AvailabilitySlot, error)
	// Найти слот по ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.AvailabilitySlot, error)
	// Создать слоты.
	Create(ctx context.Context, slots ...*model.AvailabilitySlot) error
	// Переключить видимость слота.
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) error
	// Reserve атомарно занимает count мест. false, если условие не выполнилось.
	Reserve(ctx context.Context, id uuid.UUID, count int) (bool, error)
	// Release освобождает count мест, не опускаясь ниже нуля.
	Release(ctx context.Context, id uuid.UUID, count int) error

	WithTx(tx *gorm.DB) SlotRepository
}

type GormSlotRepository struct {
	db *gorm.DB
}

func NewGormSlotRepository(db *gorm.DB) *GormSlotRepository {
	return &GormSlotRepository{db: db}
}

func (r *GormSlotRepository) WithTx(tx *gorm.DB) SlotRepository {
	return &GormSlotRepository{db: tx}
}

func (r *GormSlotRepository) ListByTourRange(
	ctx context.Context,
	tourID uuid.UUID,
	from, to time.Time,
	onlyBookable bool,
	limit, offset int,
) ([]model.AvailabilitySlot, int64, error) {
	var slots []model.AvailabilitySlot
	q := r.db.WithContext(ctx).
		Model(&model.AvailabilitySlot{}).
		Where("tour_id = ?", tourID).
		Where("start_time >= ? AND end_time <= ?", from.UTC(), to.UTC())

	if onlyBookable {
		q = q.Where("is_available = ? AND booked_count < max_group_size", true)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	if err := q.Order("start_time ASC").Find(&slots).Error; err != nil {
		return nil, 0, err
	}

	return slots, total, nil
}

func (r *GormSlotRepository) ListByGuideOverlapping(
	ctx context.Context,
	guideID uuid.UUID,
	from, to time.Time,
) ([]model.AvailabilitySlot, error) {
	var slots []model.AvailabilitySlot
	err := r.db.WithContext(ctx).
		Where("guide_id = ?", guideID).
		Where("start_time < ? AND end_time > ?", to.UTC(), from.UTC()).
		Order("start_time ASC").
		Find(&slots).Error
	if err != nil {
		return nil, err
	}
	return slots, nil
}

func (r *GormSlotRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.AvailabilitySlot, error) {
	var slot model.AvailabilitySlot
	if err := r.db.WithContext(ctx).First(&slot, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &slot, nil
}

func (r *GormSlotRepository) Create(ctx context.Context, slots ...*model.AvailabilitySlot) error {
	if len(slots) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(slots).Error
}

func (r *GormSlotRepository) SetAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	res := r.db.WithContext(ctx).
		Model(&model.AvailabilitySlot{}).
		Where("id = ?", id).
		Update("is_available", available)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Reserve — единственная точка изменения вместимости вверх: проверка и инкремент
// выполняются одним UPDATE, решение принимает сама БД.
func (r *GormSlotRepository) Reserve(ctx context.Context, id uuid.UUID, count int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.AvailabilitySlot{}).
		Where("id = ?", id).
		Where("is_available = ?", true).
		Where("booked_count + ? <= max_group_size", count).
		Update("booked_count", gorm.Expr("booked_count + ?", count))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormSlotRepository) Release(ctx context.Context, id uuid.UUID, count int) error {
	return r.db.WithContext(ctx).
		Model(&model.AvailabilitySlot{}).
		Where("id = ?", id).
		Update("booked_count", gorm.Expr("CASE WHEN booked_count > ? THEN booked_count - ? ELSE 0 END", count, count)).
		Error
}

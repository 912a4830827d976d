package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/tour-marketplace/internal/model"
)

type TourRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Tour, error)
	Create(ctx context.Context, tour *model.Tour) error
	List(ctx context.Context, onlyActive bool, limit, offset int) ([]model.Tour, int64, error)
	ListByGuide(ctx context.Context, guideID uuid.UUID) ([]model.Tour, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	WithTx(tx *gorm.DB) TourRepository
}

type GormTourRepository struct {
	db *gorm.DB
}

func NewGormTourRepository(db *gorm.DB) *GormTourRepository {
	return &GormTourRepository{db: db}
}

func (r *GormTourRepository) WithTx(tx *gorm.DB) TourRepository {
	return &GormTourRepository{db: tx}
}

func (r *GormTourRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Tour, error) {
	var t model.Tour
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *GormTourRepository) Create(ctx context.Context, tour *model.Tour) error {
	return r.db.WithContext(ctx).Create(tour).Error
}

func (r *GormTourRepository) List(ctx context.Context, onlyActive bool, limit, offset int) ([]model.Tour, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Tour{})
	if onlyActive {
		q = q.Where("is_active = ?", true)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var tours []model.Tour
	if err := q.Order("title ASC").Limit(limit).Offset(offset).Find(&tours).Error; err != nil {
		return nil, 0, err
	}
	return tours, total, nil
}

func (r *GormTourRepository) ListByGuide(ctx context.Context, guideID uuid.UUID) ([]model.Tour, error) {
	var tours []model.Tour
	err := r.db.WithContext(ctx).
		Where("guide_id = ?", guideID).
		Order("title ASC").
		Find(&tours).Error
	if err != nil {
		return nil, err
	}
	return tours, nil
}

func (r *GormTourRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.db.WithContext(ctx).
		Model(&model.Tour{}).
		Where("id = ?", id).
		Update("is_active", active).
		Error
}

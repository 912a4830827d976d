package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/tour-marketplace/internal/model"
)

type ScheduleRepository interface {
	Create(ctx context.Context, schedule *model.Schedule) error
	// ListByGuide возвращает расписания гида.
	ListByGuide(ctx context.Context, guideID uuid.UUID) ([]model.Schedule, error)
	WithTx(tx *gorm.DB) ScheduleRepository
}

type GormScheduleRepository struct {
	db *gorm.DB
}

func NewGormScheduleRepository(db *gorm.DB) *GormScheduleRepository {
	return &GormScheduleRepository{db: db}
}

func (r *GormScheduleRepository) WithTx(tx *gorm.DB) ScheduleRepository {
	return &GormScheduleRepository{db: tx}
}

func (r *GormScheduleRepository) Create(ctx context.Context, schedule *model.Schedule) error {
	return r.db.WithContext(ctx).Create(schedule).Error
}

func (r *GormScheduleRepository) ListByGuide(ctx context.Context, guideID uuid.UUID) ([]model.Schedule, error) {
	var schedules []model.Schedule
	err := r.db.WithContext(ctx).
		Where("guide_id = ?", guideID).
		Order("created_at DESC").
		Find(&schedules).Error
	if err != nil {
		return nil, err
	}
	return schedules, nil
}

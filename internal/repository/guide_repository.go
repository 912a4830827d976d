package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/tour-marketplace/internal/model"
)

type GuideRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Guide, error)
	Create(ctx context.Context, guide *model.Guide) error
}

type GormGuideRepository struct {
	db *gorm.DB
}

func NewGormGuideRepository(db *gorm.DB) *GormGuideRepository {
	return &GormGuideRepository{db: db}
}

func (r *GormGuideRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Guide, error) {
	var g model.Guide
	if err := r.db.WithContext(ctx).First(&g, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *GormGuideRepository) Create(ctx context.Context, guide *model.Guide) error {
	return r.db.WithContext(ctx).Create(guide).Error
}

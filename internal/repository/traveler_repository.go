package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/tour-marketplace/internal/model"
)

type TravelerRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Traveler, error)
	// EnsureByID возвращает путешественника, создавая пустой профиль при первом обращении.
	EnsureByID(ctx context.Context, id uuid.UUID) (*model.Traveler, error)
	WithTx(tx *gorm.DB) TravelerRepository
}

type GormTravelerRepository struct {
	db *gorm.DB
}

func NewGormTravelerRepository(db *gorm.DB) *GormTravelerRepository {
	return &GormTravelerRepository{db: db}
}

func (r *GormTravelerRepository) WithTx(tx *gorm.DB) TravelerRepository {
	return &GormTravelerRepository{db: tx}
}

func (r *GormTravelerRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Traveler, error) {
	var t model.Traveler
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *GormTravelerRepository) EnsureByID(ctx context.Context, id uuid.UUID) (*model.Traveler, error) {
	if id == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	var t model.Traveler
	tx := r.db.WithContext(ctx).First(&t, "id = ?", id)
	if tx.Error == nil {
		return &t, nil
	}
	if !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		return nil, tx.Error
	}

	t = model.Traveler{ID: id}
	if err := r.db.WithContext(ctx).Create(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

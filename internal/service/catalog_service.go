package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/Leganyst/tour-marketplace/internal/apperr"
	"github.com/Leganyst/tour-marketplace/internal/calendar"
	"github.com/Leganyst/tour-marketplace/internal/model"
)

// CatalogService — туры гидов и их расписания.
type CatalogService struct {
	d *Deps
}

func NewCatalogService(d *Deps) *CatalogService {
	return &CatalogService{d: d}
}

type CreateTourInput struct {
	GuideID     uuid.UUID `validate:"required"`
	Title       string    `validate:"required,max=255"`
	Category    string    `validate:"max=64"`
	Description string
	Languages   []string
	MinPrice    int64  `validate:"gte=0"`
	MaxPrice    int64  `validate:"gte=0,gtefield=MinPrice"`
	Currency    string `validate:"omitempty,len=3"`
}

// CreateTour заводит активный тур существующего гида.
func (s *CatalogService) CreateTour(ctx context.Context, in CreateTourInput) (*model.Tour, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if _, err := s.guide(ctx, in.GuideID); err != nil {
		return nil, err
	}
	currency := strings.ToUpper(in.Currency)
	if currency == "" {
		currency = s.d.Settings.DefaultCurrency
	}

	tour := &model.Tour{
		GuideID:     in.GuideID,
		Title:       in.Title,
		Category:    in.Category,
		Description: in.Description,
		Languages:   datatypes.JSONSlice[string](in.Languages),
		MinPrice:    in.MinPrice,
		MaxPrice:    in.MaxPrice,
		Currency:    currency,
		IsActive:    true,
	}
	if err := s.d.Tours.Create(ctx, tour); err != nil {
		return nil, storeErr(err, "create tour")
	}
	s.d.Log.WithFields(logrus.Fields{"tour_id": tour.ID, "guide_id": tour.GuideID}).Info("tour created")
	return tour, nil
}

// SetTourActive скрывает тур из бронирования или возвращает его. Уже
// созданные брони не трогает.
func (s *CatalogService) SetTourActive(ctx context.Context, guideID, tourID uuid.UUID, active bool) (*model.Tour, error) {
	tour, err := s.d.Tours.GetByID(ctx, tourID)
	if err != nil {
		return nil, lookup(err, "tour", tourID)
	}
	if tour.GuideID != guideID {
		return nil, apperr.New(apperr.KindForbidden, "tour belongs to another guide")
	}
	if err := s.d.Tours.SetActive(ctx, tourID, active); err != nil {
		return nil, storeErr(err, "update tour")
	}
	tour.IsActive = active
	return tour, nil
}

func (s *CatalogService) ListTours(ctx context.Context, onlyActive bool, page calendar.PageRequest) (calendar.Page[model.Tour], error) {
	items, total, err := s.d.Tours.List(ctx, onlyActive, page.Limit(), page.Offset())
	if err != nil {
		return calendar.Page[model.Tour]{}, storeErr(err, "list tours")
	}
	return calendar.NewPage(items, total, page), nil
}

func (s *CatalogService) ListGuideTours(ctx context.Context, guideID uuid.UUID) ([]model.Tour, error) {
	if _, err := s.guide(ctx, guideID); err != nil {
		return nil, err
	}
	tours, err := s.d.Tours.ListByGuide(ctx, guideID)
	if err != nil {
		return nil, storeErr(err, "list tours")
	}
	return tours, nil
}

func (s *CatalogService) ListGuideSchedules(ctx context.Context, guideID uuid.UUID) ([]model.Schedule, error) {
	if _, err := s.guide(ctx, guideID); err != nil {
		return nil, err
	}
	schedules, err := s.d.Schedules.ListByGuide(ctx, guideID)
	if err != nil {
		return nil, storeErr(err, "list schedules")
	}
	return schedules, nil
}

func (s *CatalogService) guide(ctx context.Context, guideID uuid.UUID) (*model.Guide, error) {
	g, err := s.d.Guides.GetByID(ctx, guideID)
	if err != nil {
		return nil, lookup(err, "guide", guideID)
	}
	return g, nil
}

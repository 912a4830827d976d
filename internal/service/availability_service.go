package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Leganyst/tour-marketplace/internal/apperr"
	"github.com/Leganyst/tour-marketplace/internal/calendar"
	"github.com/Leganyst/tour-marketplace/internal/model"
	"github.com/Leganyst/tour-marketplace/internal/repository"
)

// AvailabilityService — слоты гида и их вместимость.
type AvailabilityService struct {
	d *Deps
}

func NewAvailabilityService(d *Deps) *AvailabilityService {
	return &AvailabilityService{d: d}
}

// ReserveSeats атомарно занимает count мест. При отказе возвращает SlotFull или SlotUnavailable.
func (s *AvailabilityService) ReserveSeats(ctx context.Context, slotID uuid.UUID, count int) error {
	if count < 1 {
		return apperr.Validation("seat count must be at least 1")
	}
	return reserveSeats(ctx, s.d.Slots, slotID, count)
}

// reserveSeats: решение принимает условный UPDATE, повторное чтение слота
// нужно только чтобы назвать причину отказа.
func reserveSeats(ctx context.Context, slots repository.SlotRepository, slotID uuid.UUID, count int) error {
	ok, err := slots.Reserve(ctx, slotID, count)
	if err != nil {
		return storeErr(err, "reserve seats")
	}
	if ok {
		return nil
	}

	slot, err := slots.GetByID(ctx, slotID)
	if err != nil {
		return lookup(err, "slot", slotID)
	}
	if !slot.IsAvailable {
		return apperr.Newf(apperr.KindSlotUnavailable, "slot %s is closed for booking", slotID)
	}
	return apperr.Newf(apperr.KindSlotFull, "slot %s has %d seats left, %d requested", slotID, slot.SeatsLeft(), count)
}

func (s *AvailabilityService) ReleaseSeats(ctx context.Context, slotID uuid.UUID, count int) error {
	if count < 1 {
		return apperr.Validation("seat count must be at least 1")
	}
	if err := s.d.Slots.Release(ctx, slotID, count); err != nil {
		return storeErr(err, "release seats")
	}
	return nil
}

// GetSlot — снимок для отображения.
func (s *AvailabilityService) GetSlot(ctx context.Context, slotID uuid.UUID) (*model.AvailabilitySlot, error) {
	slot, err := s.d.Slots.GetByID(ctx, slotID)
	if err != nil {
		return nil, lookup(err, "slot", slotID)
	}
	return slot, nil
}

type CreateSlotInput struct {
	GuideID        uuid.UUID `json:"guide_id" validate:"required"`
	TourID         uuid.UUID `json:"tour_id" validate:"required"`
	StartTime      time.Time `json:"start_time" validate:"required"`
	DurationMins   int       `json:"duration_mins" validate:"gte=15,lte=1440"`
	PricePerPerson int64     `json:"price_per_person" validate:"gt=0"`
	Currency       string    `json:"currency" validate:"omitempty,len=3"`
	MaxGroupSize   int       `json:"max_group_size" validate:"gte=1,lte=500"`
	TimeZone       string    `json:"time_zone"`
}

func (s *AvailabilityService) CreateSlot(ctx context.Context, in CreateSlotInput) (*model.AvailabilitySlot, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	loc, err := loadLocation(in.TimeZone)
	if err != nil {
		return nil, err
	}

	var slot *model.AvailabilitySlot
	err = s.d.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		tour, err := s.ownedTour(ctx, s.d.Tours.WithTx(tx), in.GuideID, in.TourID)
		if err != nil {
			return err
		}

		tr := calendar.TimeRange{
			Start: in.StartTime.UTC(),
			End:   in.StartTime.UTC().Add(time.Duration(in.DurationMins) * time.Minute),
		}
		slots := s.d.Slots.WithTx(tx)
		if err := checkNoOverlap(ctx, slots, in.GuideID, []calendar.TimeRange{tr}); err != nil {
			return err
		}

		slot = newSlot(tour, nil, tr, loc, in.PricePerPerson, in.Currency, in.MaxGroupSize)
		if err := slots.Create(ctx, slot); err != nil {
			return storeErr(err, "create slot")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.d.Log.WithFields(logrus.Fields{
		"slot_id":  slot.ID,
		"tour_id":  slot.TourID,
		"guide_id": slot.GuideID,
		"start":    slot.StartTime,
	}).Info("slot created")
	return slot, nil
}

// RecurringSlotsInput — окно гида по правилу повторения.
// SlotDuration > 0 режет каждое вхождение на несколько слотов.
type RecurringSlotsInput struct {
	GuideID        uuid.UUID              `json:"guide_id" validate:"required"`
	TourID         uuid.UUID              `json:"tour_id" validate:"required"`
	Rule           calendar.RecurringRule `json:"rule"`
	From           time.Time              `json:"from" validate:"required"`
	To             time.Time              `json:"to" validate:"required"`
	TimeZone       string                 `json:"time_zone"`
	SlotDuration   time.Duration          `json:"slot_duration"`
	PricePerPerson int64                  `json:"price_per_person" validate:"gt=0"`
	Currency       string                 `json:"currency" validate:"omitempty,len=3"`
	MaxGroupSize   int                    `json:"max_group_size" validate:"gte=1,lte=500"`
}

type RecurringSlotsResult struct {
	Schedule *model.Schedule
	Slots    []*model.AvailabilitySlot
}

// MaxScheduleWindow — самое длинное окно, которое разворачивается за раз.
const MaxScheduleWindow = 180 * 24 * time.Hour

func (s *AvailabilityService) CreateRecurringSlots(ctx context.Context, in RecurringSlotsInput) (*RecurringSlotsResult, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.SlotDuration < 0 {
		return nil, apperr.Validation("slot_duration must not be negative")
	}
	loc, err := loadLocation(in.TimeZone)
	if err != nil {
		return nil, err
	}
	window, err := calendar.NormalizeTimeRange(in.From, in.To, loc, MaxScheduleWindow)
	if err != nil {
		return nil, apperr.Validation("invalid schedule window")
	}

	// Время суток правила трактуется в поясе гида.
	rule := in.Rule
	st := rule.Start
	rule.Start = time.Date(st.Year(), st.Month(), st.Day(), st.Hour(), st.Minute(), 0, 0, loc)

	occurrences, err := calendar.ExpandRecurringRule(rule, window)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "invalid recurring rule")
	}

	var ranges []calendar.TimeRange
	for _, occ := range occurrences {
		if in.SlotDuration == 0 {
			ranges = append(ranges, occ)
			continue
		}
		parts, err := calendar.SplitToTimeSlots(occ, in.SlotDuration)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, err, "invalid slot duration")
		}
		ranges = append(ranges, parts...)
	}
	if len(ranges) == 0 {
		return nil, apperr.Validation("rule produces no slots inside the window")
	}
	for i := range ranges {
		ranges[i] = calendar.TimeRange{Start: ranges[i].Start.UTC(), End: ranges[i].End.UTC()}
	}

	rulesJSON, err := json.Marshal(rule)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "marshal rule")
	}
	startDate := datatypes.Date(window.Start)
	endDate := datatypes.Date(window.End)

	res := &RecurringSlotsResult{}
	err = s.d.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		tour, err := s.ownedTour(ctx, s.d.Tours.WithTx(tx), in.GuideID, in.TourID)
		if err != nil {
			return err
		}
		slots := s.d.Slots.WithTx(tx)
		if err := checkNoOverlap(ctx, slots, in.GuideID, ranges); err != nil {
			return err
		}

		sched := &model.Schedule{
			GuideID:   in.GuideID,
			TourID:    in.TourID,
			StartDate: &startDate,
			EndDate:   &endDate,
			TimeZone:  loc.String(),
			Rules:     rulesJSON,
		}
		if err := s.d.Schedules.WithTx(tx).Create(ctx, sched); err != nil {
			return storeErr(err, "create schedule")
		}

		created := make([]*model.AvailabilitySlot, 0, len(ranges))
		for _, r := range ranges {
			created = append(created, newSlot(tour, &sched.ID, r, loc, in.PricePerPerson, in.Currency, in.MaxGroupSize))
		}
		if err := slots.Create(ctx, created...); err != nil {
			return storeErr(err, "create slots")
		}
		res.Schedule = sched
		res.Slots = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.d.Log.WithFields(logrus.Fields{
		"schedule_id": res.Schedule.ID,
		"guide_id":    in.GuideID,
		"slots":       len(res.Slots),
	}).Info("recurring slots created")
	return res, nil
}

// SetAvailability — ручной переключатель гида. Закрытый слот не бронируется
// даже при свободных местах; на уже созданные брони не влияет.
func (s *AvailabilityService) SetAvailability(ctx context.Context, guideID, slotID uuid.UUID, available bool) (*model.AvailabilitySlot, error) {
	slot, err := s.d.Slots.GetByID(ctx, slotID)
	if err != nil {
		return nil, lookup(err, "slot", slotID)
	}
	if slot.GuideID != guideID {
		return nil, apperr.New(apperr.KindForbidden, "slot belongs to another guide")
	}
	if err := s.d.Slots.SetAvailability(ctx, slotID, available); err != nil {
		return nil, lookup(err, "slot", slotID)
	}
	slot.IsAvailable = available
	return slot, nil
}

type ListSlotsInput struct {
	TourID       uuid.UUID
	From, To     time.Time
	OnlyBookable bool
	Page         calendar.PageRequest
}

func (s *AvailabilityService) ListSlots(ctx context.Context, in ListSlotsInput) (calendar.Page[model.AvailabilitySlot], error) {
	if in.TourID == uuid.Nil {
		return calendar.Page[model.AvailabilitySlot]{}, apperr.Validation("tour_id is required")
	}
	if in.From.IsZero() {
		in.From = s.d.now()
	}
	if in.To.IsZero() {
		in.To = in.From.AddDate(0, 1, 0)
	}
	if !in.To.After(in.From) {
		return calendar.Page[model.AvailabilitySlot]{}, apperr.Validation("to must be after from")
	}
	items, total, err := s.d.Slots.ListByTourRange(ctx, in.TourID, in.From, in.To, in.OnlyBookable, in.Page.Limit(), in.Page.Offset())
	if err != nil {
		return calendar.Page[model.AvailabilitySlot]{}, storeErr(err, "list slots")
	}
	return calendar.NewPage(items, total, in.Page), nil
}

func (s *AvailabilityService) ownedTour(ctx context.Context, tours repository.TourRepository, guideID, tourID uuid.UUID) (*model.Tour, error) {
	tour, err := tours.GetByID(ctx, tourID)
	if err != nil {
		return nil, lookup(err, "tour", tourID)
	}
	if tour.GuideID != guideID {
		return nil, apperr.New(apperr.KindForbidden, "tour belongs to another guide")
	}
	if !tour.IsActive {
		return nil, apperr.Validation("tour is not active")
	}
	return tour, nil
}

func checkNoOverlap(ctx context.Context, slots repository.SlotRepository, guideID uuid.UUID, ranges []calendar.TimeRange) error {
	from, to := ranges[0].Start, ranges[0].End
	for _, r := range ranges {
		if r.Start.Before(from) {
			from = r.Start
		}
		if r.End.After(to) {
			to = r.End
		}
	}
	existing, err := slots.ListByGuideOverlapping(ctx, guideID, from, to)
	if err != nil {
		return storeErr(err, "load guide slots")
	}
	taken := make([]calendar.TimeRange, 0, len(existing)+len(ranges))
	for _, e := range existing {
		taken = append(taken, calendar.TimeRange{Start: e.StartTime, End: e.EndTime})
	}
	for _, r := range ranges {
		if ok, conflicts := calendar.HasOverlap(r, taken); ok {
			return apperr.Newf(apperr.KindValidation, "slot %s-%s overlaps %d existing slot(s)",
				r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339), len(conflicts))
		}
		taken = append(taken, r)
	}
	return nil
}

func newSlot(tour *model.Tour, scheduleID *uuid.UUID, r calendar.TimeRange, loc *time.Location, price int64, currency string, maxGroup int) *model.AvailabilitySlot {
	if currency == "" {
		currency = tour.Currency
	}
	local := r.Start.In(loc)
	return &model.AvailabilitySlot{
		GuideID:        tour.GuideID,
		TourID:         tour.ID,
		ScheduleID:     scheduleID,
		SpecificDate:   datatypes.Date(time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)),
		StartTime:      r.Start.UTC(),
		EndTime:        r.End.UTC(),
		DurationMins:   int(r.Duration() / time.Minute),
		PricePerPerson: price,
		Currency:       currency,
		MaxGroupSize:   maxGroup,
		IsAvailable:    true,
	}
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, apperr.Newf(apperr.KindValidation, "unknown time zone %q", name)
	}
	return loc, nil
}

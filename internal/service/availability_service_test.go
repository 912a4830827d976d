package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/tour-marketplace/internal/apperr"
	"github.com/Leganyst/tour-marketplace/internal/calendar"
)

func TestReserveSeats_LastSeatGoesToExactlyOneCaller(t *testing.T) {
	f := newFixture(t)
	guide, tour := f.seedTour(t)
	slot := f.seedSlot(t, guide, tour, f.now().Add(72*time.Hour), 1000, 3, 2)

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		full    int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.avail.ReserveSeats(context.Background(), slot.ID, 1)
			mu.Lock()
			defer mu.Unlock()
			switch apperr.KindOf(err) {
			case "":
				success++
			case apperr.KindSlotFull:
				full++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if success != 1 || full != callers-1 {
		t.Fatalf("expected 1 success and %d full, got %d and %d", callers-1, success, full)
	}
	if got := f.reloadSlot(t, slot.ID).BookedCount; got != 3 {
		t.Fatalf("expected bookedCount 3, got %d", got)
	}
}

func TestReserveSeats_ClosedSlotIsUnavailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	guide, tour := f.seedTour(t)
	slot := f.seedSlot(t, guide, tour, f.now().Add(72*time.Hour), 1000, 4, 0)

	if _, err := f.avail.SetAvailability(ctx, guide.ID, slot.ID, false); err != nil {
		t.Fatalf("close slot: %v", err)
	}
	wantKind(t, f.avail.ReserveSeats(ctx, slot.ID, 1), apperr.KindSlotUnavailable)

	if got := f.reloadSlot(t, slot.ID).BookedCount; got != 0 {
		t.Fatalf("bookedCount changed on rejected reserve: %d", got)
	}
}

func TestReserveSeats_RejectsBadCountAndUnknownSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wantKind(t, f.avail.ReserveSeats(ctx, uuid.New(), 0), apperr.KindValidation)
	wantKind(t, f.avail.ReserveSeats(ctx, uuid.New(), 1), apperr.KindNotFound)
}

func TestReleaseSeats_NeverGoesBelowZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	guide, tour := f.seedTour(t)
	slot := f.seedSlot(t, guide, tour, f.now().Add(72*time.Hour), 1000, 4, 1)

	if err := f.avail.ReleaseSeats(ctx, slot.ID, 3); err != nil {
		t.Fatalf("release: %v", err)
	}
	if got := f.reloadSlot(t, slot.ID).BookedCount; got != 0 {
		t.Fatalf("expected bookedCount 0, got %d", got)
	}
}

func TestSetAvailability_OtherGuideForbidden(t *testing.T) {
	f := newFixture(t)
	guide, tour := f.seedTour(t)
	slot := f.seedSlot(t, guide, tour, f.now().Add(72*time.Hour), 1000, 4, 0)

	_, err := f.avail.SetAvailability(context.Background(), uuid.New(), slot.ID, false)
	wantKind(t, err, apperr.KindForbidden)
}

func TestCreateSlot_RejectsOverlap(t *testing.T) {
	f := newFixture(t)
	guide, tour := f.seedTour(t)
	start := f.now().Add(72 * time.Hour)
	f.seedSlot(t, guide, tour, start, 1000, 4, 0)

	_, err := f.avail.CreateSlot(context.Background(), CreateSlotInput{
		GuideID:        guide.ID,
		TourID:         tour.ID,
		StartTime:      start.Add(time.Hour),
		DurationMins:   60,
		PricePerPerson: 1000,
		MaxGroupSize:   4,
	})
	wantKind(t, err, apperr.KindValidation)

	// Слот встык к существующему допустим.
	if _, err := f.avail.CreateSlot(context.Background(), CreateSlotInput{
		GuideID:        guide.ID,
		TourID:         tour.ID,
		StartTime:      start.Add(3 * time.Hour),
		DurationMins:   60,
		PricePerPerson: 1000,
		MaxGroupSize:   4,
	}); err != nil {
		t.Fatalf("adjacent slot: %v", err)
	}
}

func TestCreateSlot_ForeignTourForbidden(t *testing.T) {
	f := newFixture(t)
	_, tour := f.seedTour(t)

	_, err := f.avail.CreateSlot(context.Background(), CreateSlotInput{
		GuideID:        uuid.New(),
		TourID:         tour.ID,
		StartTime:      f.now().Add(72 * time.Hour),
		DurationMins:   60,
		PricePerPerson: 1000,
		MaxGroupSize:   4,
	})
	wantKind(t, err, apperr.KindForbidden)
}

func TestCreateRecurringSlots_WeeklySplit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	guide, tour := f.seedTour(t)

	// 3 марта 2031 года приходится на понедельник.
	from := time.Date(2031, 3, 3, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 14)

	res, err := f.avail.CreateRecurringSlots(ctx, RecurringSlotsInput{
		GuideID: guide.ID,
		TourID:  tour.ID,
		Rule: calendar.RecurringRule{
			Freq:       calendar.FreqWeekly,
			Interval:   1,
			Weekdays:   []time.Weekday{time.Monday, time.Wednesday},
			Start:      time.Date(2031, 3, 3, 10, 0, 0, 0, time.UTC),
			Duration:   2 * time.Hour,
			Exceptions: []string{"2031-03-05"},
		},
		From:           from,
		To:             to,
		SlotDuration:   time.Hour,
		PricePerPerson: 2500,
		MaxGroupSize:   6,
	})
	if err != nil {
		t.Fatalf("create recurring slots: %v", err)
	}

	// Пн 3, Пн 10, Ср 12 (Ср 5 в исключениях), по два часовых слота.
	if len(res.Slots) != 6 {
		t.Fatalf("expected 6 slots, got %d", len(res.Slots))
	}
	for _, s := range res.Slots {
		if s.ScheduleID == nil || *s.ScheduleID != res.Schedule.ID {
			t.Fatalf("slot %s is not linked to schedule", s.ID)
		}
		if s.DurationMins != 60 {
			t.Fatalf("expected 60 minute slots, got %d", s.DurationMins)
		}
	}

	page, err := f.avail.ListSlots(ctx, ListSlotsInput{TourID: tour.ID, From: from, To: to})
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	if page.Total != 6 {
		t.Fatalf("expected 6 listed slots, got %d", page.Total)
	}

	// Правило, пересекающее созданные слоты, отклоняется целиком.
	_, err = f.avail.CreateRecurringSlots(ctx, RecurringSlotsInput{
		GuideID: guide.ID,
		TourID:  tour.ID,
		Rule: calendar.RecurringRule{
			Freq:     calendar.FreqDaily,
			Interval: 1,
			Start:    time.Date(2031, 3, 3, 10, 30, 0, 0, time.UTC),
			Duration: time.Hour,
		},
		From:           from,
		To:             from.AddDate(0, 0, 1),
		PricePerPerson: 2500,
		MaxGroupSize:   6,
	})
	wantKind(t, err, apperr.KindValidation)
}

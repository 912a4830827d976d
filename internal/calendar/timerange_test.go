package calendar

import (
	"errors"
	"testing"
	"time"
)

func mustTime(t *testing.T, year int, month time.Month, day, hour, min int) time.Time {
	t.Helper()
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func TestNormalizeTimeRange_SwappedBounds(t *testing.T) {
	start := mustTime(t, 2025, 1, 1, 12, 0)
	end := mustTime(t, 2025, 1, 1, 10, 0)

	tr, err := NormalizeTimeRange(start, end, time.UTC, 0)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !tr.Start.Equal(end) || !tr.End.Equal(start) {
		t.Fatalf("expected Start=%v End=%v, got %v", end, start, tr)
	}
}

func TestNormalizeTimeRange_MaxDuration(t *testing.T) {
	start := mustTime(t, 2025, 1, 1, 10, 0)
	end := mustTime(t, 2025, 1, 1, 15, 0)

	tr, err := NormalizeTimeRange(start, end, time.UTC, 2*time.Hour)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := tr.Duration(); got != 2*time.Hour {
		t.Fatalf("expected duration 2h, got %v", got)
	}
}

func TestNormalizeTimeRange_InvalidZero(t *testing.T) {
	_, err := NormalizeTimeRange(time.Time{}, mustTime(t, 2025, 1, 1, 10, 0), nil, 0)
	if !errors.Is(err, ErrInvalidTimeRange) {
		t.Fatalf("expected ErrInvalidTimeRange, got %v", err)
	}
}

func TestSplitToTimeSlots_TailDropped(t *testing.T) {
	tr := TimeRange{
		Start: mustTime(t, 2025, 1, 1, 9, 0),
		End:   mustTime(t, 2025, 1, 1, 14, 30),
	}
	slots, err := SplitToTimeSlots(tr, 2*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if !slots[1].End.Equal(mustTime(t, 2025, 1, 1, 13, 0)) {
		t.Fatalf("unexpected last slot end %v", slots[1].End)
	}
}

func TestSplitToTimeSlots_InvalidDuration(t *testing.T) {
	_, err := SplitToTimeSlots(TimeRange{}, 0)
	if !errors.Is(err, ErrSlotDuration) {
		t.Fatalf("expected ErrSlotDuration, got %v", err)
	}
}

func TestHasOverlap_TouchIsNotOverlap(t *testing.T) {
	r := TimeRange{Start: mustTime(t, 2025, 1, 1, 10, 0), End: mustTime(t, 2025, 1, 1, 11, 0)}
	existing := []TimeRange{
		{Start: mustTime(t, 2025, 1, 1, 9, 0), End: mustTime(t, 2025, 1, 1, 10, 0)},
		{Start: mustTime(t, 2025, 1, 1, 11, 0), End: mustTime(t, 2025, 1, 1, 12, 0)},
	}
	if ok, _ := HasOverlap(r, existing); ok {
		t.Fatalf("adjacent ranges must not overlap")
	}
}

func TestHasOverlap_OverlapFound(t *testing.T) {
	r := TimeRange{Start: mustTime(t, 2025, 1, 1, 10, 0), End: mustTime(t, 2025, 1, 1, 12, 0)}
	existing := []TimeRange{
		{Start: mustTime(t, 2025, 1, 1, 8, 0), End: mustTime(t, 2025, 1, 1, 9, 0)},
		{Start: mustTime(t, 2025, 1, 1, 11, 30), End: mustTime(t, 2025, 1, 1, 13, 0)},
	}
	ok, conflicts := HasOverlap(r, existing)
	if !ok {
		t.Fatalf("expected overlap, got none")
	}
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(conflicts))
	}
}

func TestExpandRecurringRule_Daily(t *testing.T) {
	rule := RecurringRule{
		Freq:     FreqDaily,
		Interval: 1,
		Start:    mustTime(t, 2025, 1, 1, 10, 0),
		Duration: time.Hour,
	}
	window := TimeRange{
		Start: mustTime(t, 2025, 1, 1, 0, 0),
		End:   mustTime(t, 2025, 1, 4, 0, 0),
	}

	events, err := ExpandRecurringRule(rule, window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []time.Time{
		mustTime(t, 2025, 1, 1, 10, 0),
		mustTime(t, 2025, 1, 2, 10, 0),
		mustTime(t, 2025, 1, 3, 10, 0),
	}
	if len(events) != len(expected) {
		t.Fatalf("expected %d events, got %d", len(expected), len(events))
	}
	for i, ev := range events {
		if !ev.Start.Equal(expected[i]) {
			t.Fatalf("event %d: expected start %v, got %v", i, expected[i], ev.Start)
		}
	}
}

func TestExpandRecurringRule_WeeklyEveryOtherWeek(t *testing.T) {
	// 2025-01-06 это понедельник.
	rule := RecurringRule{
		Freq:     FreqWeekly,
		Interval: 2,
		Weekdays: []time.Weekday{time.Monday, time.Wednesday},
		Start:    mustTime(t, 2025, 1, 6, 9, 0),
		Duration: 3 * time.Hour,
	}
	window := TimeRange{
		Start: mustTime(t, 2025, 1, 6, 0, 0),
		End:   mustTime(t, 2025, 1, 21, 0, 0),
	}

	events, err := ExpandRecurringRule(rule, window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []time.Time{
		mustTime(t, 2025, 1, 6, 9, 0),
		mustTime(t, 2025, 1, 8, 9, 0),
		mustTime(t, 2025, 1, 20, 9, 0),
	}
	if len(events) != len(expected) {
		t.Fatalf("expected %d events, got %d: %v", len(expected), len(events), events)
	}
	for i, ev := range events {
		if !ev.Start.Equal(expected[i]) {
			t.Fatalf("event %d: expected start %v, got %v", i, expected[i], ev.Start)
		}
	}
}

func TestExpandRecurringRule_Exceptions(t *testing.T) {
	rule := RecurringRule{
		Freq:       FreqDaily,
		Start:      mustTime(t, 2025, 1, 1, 10, 0),
		Duration:   time.Hour,
		Exceptions: []string{"2025-01-02"},
	}
	window := TimeRange{
		Start: mustTime(t, 2025, 1, 1, 0, 0),
		End:   mustTime(t, 2025, 1, 4, 0, 0),
	}

	events, err := ExpandRecurringRule(rule, window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[1].Start.Day() != 3 {
		t.Fatalf("expected second event on Jan 3, got %v", events[1].Start)
	}
}

func TestExpandRecurringRule_InvalidDuration(t *testing.T) {
	rule := RecurringRule{
		Freq:  FreqDaily,
		Start: mustTime(t, 2025, 1, 1, 10, 0),
	}
	window := TimeRange{
		Start: mustTime(t, 2025, 1, 1, 0, 0),
		End:   mustTime(t, 2025, 1, 10, 0, 0),
	}
	if _, err := ExpandRecurringRule(rule, window); err == nil {
		t.Fatalf("expected error for zero duration, got nil")
	}
}

package calendar

import (
	"errors"
	"time"
)

var (
	ErrInvalidTimeRange = errors.New("invalid time range")
	ErrSlotDuration     = errors.New("slot duration must be positive")
	ErrRuleStart        = errors.New("recurring rule: start is required")
	ErrRuleTooLong      = errors.New("recurring rule: too many occurrences")
)

// MaxOccurrences ограничивает разворот одного правила.
const MaxOccurrences = 500

// TimeRange — интервал [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

func (tr TimeRange) Duration() time.Duration {
	return tr.End.Sub(tr.Start)
}

// NormalizeTimeRange:
//   - меняет местами перепутанные границы;
//   - переводит в loc, если он задан;
//   - обрезает интервал до maxDuration, если maxDuration > 0.
func NormalizeTimeRange(start, end time.Time, loc *time.Location, maxDuration time.Duration) (TimeRange, error) {
	if start.IsZero() || end.IsZero() {
		return TimeRange{}, ErrInvalidTimeRange
	}
	if end.Before(start) {
		start, end = end, start
	}
	if loc != nil {
		start = start.In(loc)
		end = end.In(loc)
	}
	if maxDuration > 0 && end.Sub(start) > maxDuration {
		end = start.Add(maxDuration)
	}
	if !end.After(start) {
		return TimeRange{}, ErrInvalidTimeRange
	}
	return TimeRange{Start: start, End: end}, nil
}

// SplitToTimeSlots режет интервал на куски по slotDuration.
// Хвост короче slotDuration отбрасывается.
func SplitToTimeSlots(tr TimeRange, slotDuration time.Duration) ([]TimeRange, error) {
	if slotDuration <= 0 {
		return nil, ErrSlotDuration
	}
	var out []TimeRange
	for cur := tr.Start; !cur.Add(slotDuration).After(tr.End); cur = cur.Add(slotDuration) {
		out = append(out, TimeRange{Start: cur, End: cur.Add(slotDuration)})
	}
	return out, nil
}

// HasOverlap возвращает интервалы из existing, пересекающие r.
// Касание концами пересечением не считается.
func HasOverlap(r TimeRange, existing []TimeRange) (bool, []TimeRange) {
	var conflicts []TimeRange
	for _, e := range existing {
		if overlaps(r, e) {
			conflicts = append(conflicts, e)
		}
	}
	return len(conflicts) > 0, conflicts
}

func overlaps(a, b TimeRange) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

type Frequency string

const (
	FreqDaily  Frequency = "DAILY"
	FreqWeekly Frequency = "WEEKLY"
)

// RecurringRule — повторяющееся окно гида.
// Start задаёт первое вхождение и время суток в его часовом поясе.
type RecurringRule struct {
	Freq     Frequency      `json:"freq"`
	Interval int            `json:"interval"`
	Weekdays []time.Weekday `json:"weekdays,omitempty"`
	Start    time.Time      `json:"start"`
	Duration time.Duration  `json:"duration"`
	// Даты-исключения в формате 2006-01-02.
	Exceptions []string `json:"exceptions,omitempty"`
}

// ExpandRecurringRule разворачивает правило в интервалы, целиком лежащие в window.
// Шаг считается в календарных днях пояса rule.Start, так что переход на летнее
// время не сдвигает время начала.
func ExpandRecurringRule(rule RecurringRule, window TimeRange) ([]TimeRange, error) {
	if rule.Duration <= 0 {
		return nil, ErrSlotDuration
	}
	if rule.Start.IsZero() {
		return nil, ErrRuleStart
	}
	if rule.Interval <= 0 {
		rule.Interval = 1
	}
	if !window.End.After(window.Start) {
		return []TimeRange{}, nil
	}

	skip := make(map[string]struct{}, len(rule.Exceptions))
	for _, d := range rule.Exceptions {
		skip[d] = struct{}{}
	}

	var out []TimeRange
	for day := 0; ; day++ {
		cur := rule.Start.AddDate(0, 0, day)
		if !cur.Before(window.End) {
			break
		}
		if !matches(rule, day, cur) {
			continue
		}
		if _, ok := skip[cur.Format(time.DateOnly)]; ok {
			continue
		}
		occ := TimeRange{Start: cur, End: cur.Add(rule.Duration)}
		if occ.Start.Before(window.Start) || occ.End.After(window.End) {
			continue
		}
		if len(out) >= MaxOccurrences {
			return nil, ErrRuleTooLong
		}
		out = append(out, occ)
	}
	return out, nil
}

func matches(rule RecurringRule, day int, t time.Time) bool {
	switch rule.Freq {
	case FreqWeekly:
		week := day / 7
		if week%rule.Interval != 0 {
			return false
		}
		if len(rule.Weekdays) == 0 {
			return day%7 == 0
		}
		return containsWeekday(rule.Weekdays, t.Weekday())
	default:
		return day%rule.Interval == 0
	}
}

func containsWeekday(list []time.Weekday, w time.Weekday) bool {
	for _, d := range list {
		if d == w {
			return true
		}
	}
	return false
}

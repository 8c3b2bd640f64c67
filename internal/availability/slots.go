package availability

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coachbridge/coachcal/internal/model"
)

var (
	// Запрошенная длительность вне политики расписания.
	ErrDurationOutOfRange = errors.New("requested duration outside schedule policy")
	ErrUnknownTimeZone    = errors.New("schedule has unknown time zone")
)

// Slot — конкретный бронируемый интервал в таймзоне коуча.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DaySlots — слоты одной календарной даты, для группировки в выдаче.
type DaySlots struct {
	Date  string `json:"date"`
	Slots []Slot `json:"slots"`
}

// ComputeSlots вычисляет бронируемые слоты расписания в диапазоне дат
// [from, to] с учётом busy-интервалов провайдера.
//
// Порядок на каждую дату:
//  1. окна доступности: исключение даты полностью замещает еженедельное
//     правило (в том числе пустым набором окон);
//  2. вычитание склеенных busy-интервалов;
//  3. буферы до/после;
//  4. нарезка на слоты запрошенной длительности с шагом SlotInterval;
//  5. отбрасывание слотов раньше now + MinimumNotice.
//
// Выход отсортирован по возрастанию начала и сгруппирован по датам.
func ComputeSlots(
	schedule *model.CoachingSchedule,
	busy []TimeRange,
	from, to time.Time,
	requestedDuration int,
	now time.Time,
) ([]DaySlots, error) {
	if requestedDuration == 0 {
		requestedDuration = schedule.DefaultDuration
	}
	if requestedDuration < schedule.MinimumDuration || requestedDuration > schedule.MaximumDuration {
		return nil, fmt.Errorf("%w: %d min not in [%d, %d]",
			ErrDurationOutOfRange, requestedDuration, schedule.MinimumDuration, schedule.MaximumDuration)
	}
	if !schedule.AllowCustomDuration && requestedDuration != schedule.DefaultDuration {
		return nil, fmt.Errorf("%w: custom duration disabled", ErrDurationOutOfRange)
	}

	loc, err := time.LoadLocation(schedule.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimeZone, schedule.TimeZone)
	}

	duration := time.Duration(requestedDuration) * time.Minute
	step := duration
	if schedule.SlotInterval > 0 {
		step = time.Duration(schedule.SlotInterval) * time.Minute
	}
	notBefore := now.Add(time.Duration(schedule.MinimumNotice) * time.Minute)

	mergedBusy := MergeIntervals(busy)
	overrides := overridesByDate(schedule.DateOverrides())
	weekly := schedule.WeeklySlots()

	var out []DaySlots

	first := dateOnly(from.In(loc))
	last := dateOnly(to.In(loc))
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		windows, err := windowsForDate(day, weekly, overrides, loc)
		if err != nil {
			return nil, err
		}

		var daySlots []Slot
		for _, w := range windows {
			for _, free := range SubtractIntervals(w, mergedBusy) {
				buffered, ok := Shrink(free,
					time.Duration(schedule.BufferBefore)*time.Minute,
					time.Duration(schedule.BufferAfter)*time.Minute)
				if !ok {
					continue
				}
				candidates, err := SplitToTimeSlots(buffered, duration, step)
				if err != nil {
					return nil, err
				}
				for _, c := range candidates {
					if c.Start.Before(notBefore) {
						continue
					}
					daySlots = append(daySlots, Slot{Start: c.Start, End: c.End})
				}
			}
		}

		if len(daySlots) > 0 {
			out = append(out, DaySlots{
				Date:  day.Format("2006-01-02"),
				Slots: daySlots,
			})
		}
	}

	return out, nil
}

// windowsForDate разворачивает эффективные окна доступности даты.
// Исключение по дате имеет приоритет над еженедельным правилом.
func windowsForDate(
	day time.Time,
	weekly []model.WeeklySlot,
	overrides map[string]model.DateOverride,
	loc *time.Location,
) ([]TimeRange, error) {
	dateKey := day.Format("2006-01-02")

	if ov, ok := overrides[dateKey]; ok {
		if ov.Unavailable {
			return nil, nil
		}
		var windows []TimeRange
		for _, w := range ov.Windows {
			tr, err := windowRange(day, w.StartTime, w.EndTime, loc)
			if err != nil {
				return nil, err
			}
			windows = append(windows, tr)
		}
		return windows, nil
	}

	weekday := day.Weekday().String()
	var windows []TimeRange
	for _, slot := range weekly {
		if !containsDay(slot.Days, weekday) {
			continue
		}
		tr, err := windowRange(day, slot.StartTime, slot.EndTime, loc)
		if err != nil {
			return nil, err
		}
		windows = append(windows, tr)
	}
	return windows, nil
}

func overridesByDate(overrides []model.DateOverride) map[string]model.DateOverride {
	m := make(map[string]model.DateOverride, len(overrides))
	for _, ov := range overrides {
		m[ov.Date] = ov
	}
	return m
}

func containsDay(days []string, weekday string) bool {
	for _, d := range days {
		if strings.EqualFold(d, weekday) {
			return true
		}
	}
	return false
}

// windowRange собирает абсолютный интервал даты day из времени "HH:MM".
func windowRange(day time.Time, startTime, endTime string, loc *time.Location) (TimeRange, error) {
	start, err := clockOnDate(day, startTime, loc)
	if err != nil {
		return TimeRange{}, err
	}
	end, err := clockOnDate(day, endTime, loc)
	if err != nil {
		return TimeRange{}, err
	}
	if !end.After(start) {
		return TimeRange{}, fmt.Errorf("%w: %s-%s", ErrInvalidTimeRange, startTime, endTime)
	}
	return TimeRange{Start: start, End: end}, nil
}

func clockOnDate(day time.Time, clock string, loc *time.Location) (time.Time, error) {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse clock %q: %w", clock, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), parsed.Hour(), parsed.Minute(), 0, 0, loc), nil
}

func dateOnly(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
